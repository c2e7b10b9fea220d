// Command mailclean cleans an email body read from a file or stdin and
// prints the reply text, its thread segments or a full preview.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/welldanyogia/mailclean/internal/api"
	"github.com/welldanyogia/mailclean/internal/logger"
	"github.com/welldanyogia/mailclean/internal/parser"
	"github.com/welldanyogia/mailclean/internal/preview"
	"github.com/welldanyogia/mailclean/internal/sanitizer"
	"github.com/welldanyogia/mailclean/internal/thread"
)

const (
	modeClean   = "clean"
	modeThread  = "thread"
	modePreview = "preview"
)

type options struct {
	Mode    string `short:"m" long:"mode" default:"clean" choice:"clean" choice:"thread" choice:"preview" description:"What to print"`
	Message bool   `long:"message" description:"Treat the input as a full RFC 5322 message"`
	HTML    string `long:"html" value-name:"FILE" description:"HTML body, used when the text body is blank"`
	Summary string `long:"summary" value-name:"TEXT" description:"Preview fallback when cleaning leaves nothing"`
	Trace   bool   `long:"trace" description:"Print the text after each cleaning stage to stderr"`
	Verbose bool   `short:"v" long:"verbose" description:"Log at debug level"`

	Args struct {
		File string `positional-arg-name:"FILE" description:"Input file, stdin when omitted or -"`
	} `positional-args:"yes"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var opts options
	p := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	p.ShortDescription = "Clean email bodies"
	if _, err := p.ParseArgs(args); err != nil {
		var fe *flags.Error
		if errors.As(err, &fe) && fe.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, fe.Message)
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	log := logger.NewWithWriter(logger.Config{Level: level, Format: "text"}, stderr)

	if err := execute(context.Background(), opts, stdin, stdout, stderr, log); err != nil {
		fmt.Fprintf(stderr, "mailclean: %v\n", err)
		return 1
	}
	return 0
}

func execute(ctx context.Context, opts options, stdin io.Reader, stdout, stderr io.Writer, log *slog.Logger) error {
	raw, err := readInput(opts.Args.File, stdin)
	if err != nil {
		return err
	}

	in := preview.Input{Text: string(raw), Summary: opts.Summary}
	if opts.HTML != "" {
		html, err := os.ReadFile(opts.HTML)
		if err != nil {
			return fmt.Errorf("read html body: %w", err)
		}
		in.HTML = string(html)
	}

	var parsed *parser.ParsedEmail
	if opts.Message {
		parsed, err = parser.NewEmailParser().Parse(raw)
		if err != nil {
			return fmt.Errorf("parse message: %w", err)
		}
		in.Text = parsed.BodyText
		if in.HTML == "" {
			in.HTML = parsed.BodyHTML
		}
		if in.Summary == "" {
			in.Summary = parsed.Subject
		}
		log.Debug("message parsed",
			slog.Int64("size_bytes", parsed.SizeBytes),
			slog.Int("attachments", len(parsed.Attachments)),
		)
	}

	svc := preview.NewService(preview.Config{}, nil, log)
	body, _ := svc.BodyText(in)

	if opts.Trace {
		if err := writeTrace(stderr, body); err != nil {
			return err
		}
	}

	switch opts.Mode {
	case modeThread:
		return writeJSON(stdout, api.ThreadResponse{Segments: thread.Parse(body)})
	case modePreview:
		result := svc.Build(ctx, in)
		if parsed != nil {
			return writeJSON(stdout, api.MessageResponse{
				Message: api.ToMessageSummary(parsed),
				Preview: result,
			})
		}
		return writeJSON(stdout, result)
	default:
		_, err := fmt.Fprintln(stdout, sanitizer.Clean(body))
		return err
	}
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func writeTrace(w io.Writer, body string) error {
	for _, step := range sanitizer.ContentPipeline.Trace(body) {
		if _, err := fmt.Fprintf(w, "== %s (%d bytes)\n%s\n", step.Stage, len(step.Output), step.Output); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
