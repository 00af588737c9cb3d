package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lvcoi/ytdl-here/internal/config"
	"github.com/lvcoi/ytdl-here/internal/engine"
)

type fakeEngine struct {
	failExtract  map[string]bool
	failTransfer map[string]bool
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Extract(ctx context.Context, url string, opts engine.ExtractOptions) (*engine.Metadata, error) {
	if f.failExtract[url] {
		return nil, &engine.ExtractionError{URL: url, Err: errors.New("unavailable")}
	}
	if opts.EnumerateEntries {
		return &engine.Metadata{Entries: []engine.Entry{
			{ID: "aaaaaaaaaaa", Title: "one"},
			{ID: "bbbbbbbbbbb", Title: "two"},
		}}, nil
	}
	return &engine.Metadata{
		ID:       "aaaaaaaaaaa",
		Title:    "Clip",
		Duration: 60,
		Formats: []engine.Format{
			{ID: "18", Ext: "mp4", Width: 640, Height: 360, FPS: 30, TBR: 500, Note: "360p"},
			{ID: "22", Ext: "mp4", Width: 1280, Height: 720, FPS: 30, TBR: 1500, Note: "720p"},
		},
	}, nil
}

func (f *fakeEngine) Transfer(ctx context.Context, url string, opts engine.TransferOptions) error {
	if f.failTransfer[url] {
		return &engine.TransferError{URL: url, Err: errors.New("HTTP Error 403")}
	}
	if opts.Progress != nil {
		opts.Progress(engine.Progress{BytesDone: 50, BytesTotal: 100, Phase: engine.PhaseDownloading, Title: "Clip"})
		opts.Progress(engine.Progress{BytesDone: 100, BytesTotal: 100, Phase: engine.PhaseDownloading, Title: "Clip"})
	}
	return nil
}

const (
	goodURL = "https://www.youtube.com/watch?v=aaaaaaaaaaa"
	badURL  = "https://www.youtube.com/watch?v=zzzzzzzzzzz"
)

func newTestApp(t *testing.T, mode Mode, in string, eng *fakeEngine, mutate func(*config.Config)) (*App, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		Dir:               filepath.Join(dir, "downloads"),
		Engine:            config.EngineYtDlp,
		ClipboardInterval: time.Second,
		EditCooldown:      0,
		NoClipboard:       true,
		Plain:             true,
		LogLevel:          "error",
		HistoryDB:         filepath.Join(dir, "history.db"),
		FetchTimeout:      time.Minute,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	var out bytes.Buffer
	a, err := New(cfg, mode, Streams{In: strings.NewReader(in), Out: &out, Err: io.Discard}, WithEngine(eng))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, &out
}

func TestGetReportsResultsAndExitCode(t *testing.T) {
	eng := &fakeEngine{failTransfer: map[string]bool{badURL: true}}
	a, out := newTestApp(t, ModeOneShot, "", eng, nil)

	results, code := a.Get(context.Background(), []string{goodURL, badURL, "not a url"}, "", false)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3: %+v", len(results), results)
	}
	if code != 5 {
		t.Fatalf("exit code = %d, want 5", code)
	}
	byURL := map[string]Result{}
	for _, r := range results {
		byURL[r.URL] = r
	}
	if r := byURL[goodURL]; r.Err != nil || r.Title != "Clip" {
		t.Fatalf("good result = %+v", r)
	}
	if r := byURL[badURL]; r.Err == nil || !strings.Contains(r.Error, "403") {
		t.Fatalf("bad result = %+v", r)
	}
	if r := byURL["not a url"]; engine.CategoryOf(r.Err) != engine.CategoryInvalidURL {
		t.Fatalf("invalid url result = %+v", r)
	}
	text := out.String()
	for _, want := range []string{"Download completed: Clip", "Download failed:", "Failed files:\n" + badURL} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestGetJSON(t *testing.T) {
	a, out := newTestApp(t, ModeOneShot, "", &fakeEngine{}, nil)
	_, code := a.Get(context.Background(), []string{goodURL}, "22", true)
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	var res Result
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &res); err != nil {
		t.Fatalf("decoding %q: %v", out.String(), err)
	}
	if res.URL != goodURL || res.Title != "Clip" || res.Error != "" {
		t.Fatalf("result = %+v", res)
	}
}

func TestGetExpandsPlaylist(t *testing.T) {
	a, out := newTestApp(t, ModeOneShot, "", &fakeEngine{}, nil)
	results, code := a.Get(context.Background(), []string{"https://www.youtube.com/playlist?list=PL1"}, "720p", false)
	if code != 0 || len(results) != 2 {
		t.Fatalf("code=%d results=%+v", code, results)
	}
	if !strings.Contains(out.String(), "Playlist expanded: 2 items") {
		t.Fatalf("output:\n%s", out.String())
	}
}

func TestHistoryListsJobs(t *testing.T) {
	eng := &fakeEngine{failTransfer: map[string]bool{badURL: true}}
	a, out := newTestApp(t, ModeOneShot, "", eng, nil)
	a.Get(context.Background(), []string{goodURL, badURL}, "", false)

	out.Reset()
	if err := a.History(context.Background(), true, 10); err != nil {
		t.Fatalf("History: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, badURL) || strings.Contains(text, goodURL) {
		t.Fatalf("failed-only history:\n%s", text)
	}

	out.Reset()
	if err := a.History(context.Background(), false, 0); err != nil {
		t.Fatalf("History: %v", err)
	}
	if !strings.Contains(out.String(), goodURL) {
		t.Fatalf("history:\n%s", out.String())
	}
}

func TestHistoryDisabled(t *testing.T) {
	a, _ := newTestApp(t, ModeOneShot, "", &fakeEngine{}, func(c *config.Config) { c.NoHistory = true })
	err := a.History(context.Background(), false, 0)
	if engine.ExitCode(err) != 3 {
		t.Fatalf("err = %v", err)
	}
}

func TestFormats(t *testing.T) {
	a, out := newTestApp(t, ModeOneShot, "", &fakeEngine{}, nil)
	if err := a.Formats(context.Background(), "https://youtu.be/aaaaaaaaaaa"); err != nil {
		t.Fatalf("Formats: %v", err)
	}
	text := out.String()
	first := strings.Index(text, "1280x720")
	second := strings.Index(text, "640x360")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("formats not listed widest first:\n%s", text)
	}

	err := a.Formats(context.Background(), "ftp://example.com")
	if engine.ExitCode(err) != 3 {
		t.Fatalf("invalid url err = %v", err)
	}
}

func TestInteractivePlainSession(t *testing.T) {
	eng := &fakeEngine{failTransfer: map[string]bool{badURL: true}}
	input := goodURL + "\n1\n\n" + badURL + "\n1\n\n"
	a, out := newTestApp(t, ModePlain, input, eng, nil)

	err := a.Interactive(context.Background(), "")
	if engine.CategoryOf(err) != engine.CategoryPartialFailure {
		t.Fatalf("err = %v, want partial failure", err)
	}
	if engine.ExitCode(err) != 2 {
		t.Fatalf("exit code = %d", engine.ExitCode(err))
	}
	if !strings.Contains(out.String(), "Failed files:") {
		t.Fatalf("missing summary:\n%s", out.String())
	}
}

func TestGetExpansionFailure(t *testing.T) {
	const list = "https://www.youtube.com/playlist?list=PLgone"
	a, out := newTestApp(t, ModeOneShot, "", &fakeEngine{failExtract: map[string]bool{list: true}}, nil)
	results, code := a.Get(context.Background(), []string{list}, "", false)
	if len(results) != 1 || results[0].URL != list || code != 4 {
		t.Fatalf("code=%d results=%+v", code, results)
	}
	if !strings.Contains(out.String(), "Failed files:\n"+list) {
		t.Fatalf("output:\n%s", out.String())
	}
}
