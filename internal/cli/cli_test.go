package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lvcoi/ytdl-here/internal/app"
	"github.com/lvcoi/ytdl-here/internal/config"
	"github.com/lvcoi/ytdl-here/internal/engine"
)

type stubEngine struct{}

func (stubEngine) Name() string { return "stub" }

func (stubEngine) Extract(ctx context.Context, url string, opts engine.ExtractOptions) (*engine.Metadata, error) {
	if strings.Contains(url, "missing") {
		return &engine.Metadata{Title: "Empty"}, nil
	}
	return &engine.Metadata{
		Title:    "Clip",
		Duration: 10,
		Formats:  []engine.Format{{ID: "18", Ext: "mp4", Width: 640, Height: 360, FPS: 30, TBR: 500, Note: "360p"}},
	}, nil
}

func (stubEngine) Transfer(ctx context.Context, url string, opts engine.TransferOptions) error {
	if strings.Contains(url, "broken") {
		return &engine.TransferError{URL: url, Err: errors.New("connection reset")}
	}
	return nil
}

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	dir := t.TempDir()
	var out, errOut bytes.Buffer
	streams := app.Streams{In: strings.NewReader(""), Out: &out, Err: &errOut}

	root := &command{v: config.New(), streams: streams, newApp: func(cfg config.Config, mode app.Mode, s app.Streams) (*app.App, error) {
		return app.New(cfg, mode, s, app.WithEngine(stubEngine{}))
	}}
	cmd := root.root()
	base := []string{
		"--history-db", filepath.Join(dir, "history.db"),
		"--log-level", "error",
		"--dir", filepath.Join(dir, "out"),
	}
	cmd.SetArgs(append(args, base...))
	err := cmd.ExecuteContext(context.Background())
	code := 0
	var ee exitError
	switch {
	case errors.As(err, &ee):
		code = ee.code
	case err != nil:
		code = engine.ExitCode(err)
		errOut.WriteString(err.Error())
	}
	return code, out.String(), errOut.String()
}

func TestFormatsCommand(t *testing.T) {
	code, out, errOut := execute(t, "formats", "https://youtu.be/aaaaaaaaaaa")
	if code != 0 {
		t.Fatalf("code = %d, stderr = %s", code, errOut)
	}
	if !strings.Contains(out, "640x360") || !strings.Contains(out, "Available formats:") {
		t.Fatalf("output:\n%s", out)
	}
}

func TestFormatsEmptyCatalog(t *testing.T) {
	code, _, errOut := execute(t, "formats", "https://example.com/missing")
	if code != 4 {
		t.Fatalf("code = %d, stderr = %s", code, errOut)
	}
	if !strings.Contains(errOut, "no formats found") {
		t.Fatalf("stderr = %q", errOut)
	}
}

func TestGetCommandExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"success", []string{"get", "https://example.com/v/ok"}, 0},
		{"transfer failure", []string{"get", "https://example.com/v/broken"}, 5},
		{"invalid url", []string{"get", "nope"}, 3},
		{"no args", []string{"get"}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, _, errOut := execute(t, tc.args...)
			if code != tc.want {
				t.Fatalf("code = %d, want %d (stderr %s)", code, tc.want, errOut)
			}
		})
	}
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown engine", []string{"formats", "https://example.com/v", "--engine", "curl"}},
		{"missing config file", []string{"formats", "https://example.com/v", "--config", "/nonexistent/ytdl-here.yaml"}},
		{"history disabled", []string{"history", "--no-history"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if code, _, errOut := execute(t, tc.args...); code != 3 {
				t.Fatalf("code = %d, want 3 (stderr %s)", code, errOut)
			}
		})
	}
}

func TestHistoryCommand(t *testing.T) {
	code, out, errOut := execute(t, "history", "--failed")
	if code != 0 {
		t.Fatalf("code = %d, stderr = %s", code, errOut)
	}
	if !strings.Contains(out, "No jobs recorded.") {
		t.Fatalf("output:\n%s", out)
	}
}
