package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/welldanyogia/mailclean/internal/api"
	"github.com/welldanyogia/mailclean/internal/preview"
)

const replyBody = "Thanks, see you then.\n\nSent from my iPhone\n\nOn Mon, 5 Jan 2024, Jane Doe wrote:\n> Lunch on Friday?"

func runCLI(t *testing.T, stdin string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_Clean(t *testing.T) {
	code, out, errOut := runCLI(t, replyBody)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, errOut)
	}
	if out != "Thanks, see you then.\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestRun_Thread(t *testing.T) {
	code, out, errOut := runCLI(t, replyBody, "--mode", "thread")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, errOut)
	}

	var resp api.ThreadResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Segments) != 2 || resp.Segments[1].Attribution == nil || resp.Segments[1].Attribution.Sender != "Jane Doe" {
		t.Errorf("segments = %+v", resp.Segments)
	}
}

func TestRun_PreviewFromFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "body.txt")
	html := filepath.Join(dir, "body.html")
	if err := os.WriteFile(input, []byte("   "), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(html, []byte("<p>Rendered reply</p>"), 0o600); err != nil {
		t.Fatal(err)
	}

	code, out, errOut := runCLI(t, "", "-m", "preview", "--html", html, input)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, errOut)
	}

	var result preview.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Source != preview.SourceHTML || result.Cleaned != "Rendered reply" {
		t.Errorf("result = %+v", result)
	}
}

func TestRun_Message(t *testing.T) {
	msg := "From: Bob <bob@example.com>\r\nSubject: Re: Lunch\r\n\r\n" + strings.ReplaceAll(replyBody, "\n", "\r\n")

	code, out, errOut := runCLI(t, msg, "--message", "--mode", "preview")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, errOut)
	}

	var resp api.MessageResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message.From != "bob@example.com" || resp.Message.Subject != "Re: Lunch" {
		t.Errorf("message = %+v", resp.Message)
	}
	if resp.Preview.Cleaned != "Thanks, see you then." {
		t.Errorf("preview = %+v", resp.Preview)
	}
}

func TestRun_Trace(t *testing.T) {
	code, _, errOut := runCLI(t, replyBody, "--trace")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	for _, stage := range []string{"== decode", "== reply_header", "== tidy"} {
		if !strings.Contains(errOut, stage) {
			t.Errorf("trace missing %q:\n%s", stage, errOut)
		}
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name     string
		stdin    string
		args     []string
		wantCode int
	}{
		{"unknown mode", "x", []string{"--mode", "summarize"}, 2},
		{"unknown flag", "x", []string{"--nope"}, 2},
		{"missing file", "", []string{filepath.Join(t.TempDir(), "missing.txt")}, 1},
		{"empty message", "", []string{"--message"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := runCLI(t, tt.stdin, tt.args...)
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d", code, tt.wantCode)
			}
			if errOut == "" {
				t.Error("expected an error message on stderr")
			}
		})
	}
}

func TestRun_Help(t *testing.T) {
	code, out, _ := runCLI(t, "", "--help")
	if code != 0 {
		t.Errorf("exit code = %d", code)
	}
	if !strings.Contains(out, "--mode") {
		t.Errorf("help output = %q", out)
	}
}
