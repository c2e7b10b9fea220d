package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/welldanyogia/mailclean/internal/logger"
	"github.com/welldanyogia/mailclean/internal/metrics"
	"github.com/welldanyogia/mailclean/internal/parser"
	"github.com/welldanyogia/mailclean/internal/preview"
	"github.com/welldanyogia/mailclean/internal/sanitizer"
	"github.com/welldanyogia/mailclean/internal/thread"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

// Handler handles HTTP requests for the cleaning endpoints
type Handler struct {
	preview      *preview.Service
	validate     *validator.Validate
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewHandler creates a new Handler instance
func NewHandler(svc *preview.Service, maxBodyBytes int64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		preview:      svc,
		validate:     newValidator(),
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Clean handles POST /api/v1/clean
func (h *Handler) Clean(w http.ResponseWriter, r *http.Request) {
	var req CleanRequest
	if !h.decode(w, r, &req) {
		return
	}

	start := time.Now()
	cleaned := sanitizer.Clean(*req.Body)
	metrics.ObserveDuration("clean", start)

	writeSuccess(w, http.StatusOK, CleanResponse{Cleaned: cleaned})
}

// Thread handles POST /api/v1/thread
func (h *Handler) Thread(w http.ResponseWriter, r *http.Request) {
	var req CleanRequest
	if !h.decode(w, r, &req) {
		return
	}

	start := time.Now()
	segments := thread.Parse(*req.Body)
	metrics.ObserveDuration("thread", start)

	writeSuccess(w, http.StatusOK, ThreadResponse{Segments: segments})
}

// Significance handles POST /api/v1/significance
func (h *Handler) Significance(w http.ResponseWriter, r *http.Request) {
	var req SignificanceRequest
	if !h.decode(w, r, &req) {
		return
	}

	writeSuccess(w, http.StatusOK, SignificanceResponse{
		Significant: sanitizer.HasSignificantCleaning(*req.Raw, *req.Cleaned),
	})
}

// Preview handles POST /api/v1/preview
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !h.decode(w, r, &req) {
		return
	}

	result := h.preview.Build(r.Context(), preview.Input{
		Text:    req.Text,
		HTML:    req.HTML,
		Summary: req.Summary,
	})

	writeSuccess(w, http.StatusOK, result)
}

// ParseMessage handles POST /api/v1/messages/parse. The body is a raw
// RFC 5322 message; an optional summary query parameter overrides the
// subject as the preview fallback.
func (h *Handler) ParseMessage(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || (mediaType != "message/rfc822" && mediaType != "text/plain") {
			writeError(w, http.StatusBadRequest, CodeValidationError, "Unsupported content type", map[string][]string{
				"content_type": {"must be message/rfc822 or text/plain"},
			})
			return
		}
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		h.handleReadError(w, err)
		return
	}

	result, parsed, err := h.preview.BuildFromMessage(r.Context(), raw, r.URL.Query().Get("summary"))
	if err != nil {
		h.handleMessageError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, MessageResponse{
		Message: ToMessageSummary(parsed),
		Preview: result,
	})
}

// decode reads a size-limited JSON body into dst and validates it. It
// writes the error response itself and reports whether the handler should
// continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.handleReadError(w, err)
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, CodeValidationError, "Request validation failed", validationDetails(verrs))
			return false
		}
		writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body", nil)
		return false
	}
	return true
}

// handleReadError maps body read and decode failures to HTTP responses
func (h *Handler) handleReadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "Request body too large", map[string][]string{
			"body": {"must not exceed " + formatBytes(tooLarge.Limit)},
		})
		return
	}
	writeError(w, http.StatusBadRequest, CodeInvalidJSON, "Invalid request body", nil)
}

// handleMessageError maps message intake errors to HTTP responses
func (h *Handler) handleMessageError(w http.ResponseWriter, r *http.Request, err error) {
	var parseErr *parser.ParseError
	switch {
	case errors.As(err, &parseErr):
		writeError(w, http.StatusUnprocessableEntity, CodeParseError, "Message could not be parsed", map[string][]string{
			"stage": {parseErr.Stage},
		})
	default:
		logger.WithCorrelationID(r.Context(), h.logger).Error("Failed to build message preview", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "An unexpected error occurred", nil)
	}
}

// validationDetails groups validation failures by JSON field name
func validationDetails(verrs validator.ValidationErrors) map[string][]string {
	details := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = append(details[fe.Field()], validationMessage(fe))
	}
	return details
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return "is required when " + strings.ToLower(fe.Param()) + " is empty"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return strconv.FormatInt(n>>20, 10) + " MiB"
	case n >= 1<<10 && n%(1<<10) == 0:
		return strconv.FormatInt(n>>10, 10) + " KiB"
	default:
		return strconv.FormatInt(n, 10) + " bytes"
	}
}
