package plain

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lvcoi/ytdl-here/internal/catalog"
	"github.com/lvcoi/ytdl-here/internal/classify"
	"github.com/lvcoi/ytdl-here/internal/clipwatch"
	"github.com/lvcoi/ytdl-here/internal/dispatch"
	"github.com/lvcoi/ytdl-here/internal/engine"
	"github.com/lvcoi/ytdl-here/internal/progress"
	"github.com/lvcoi/ytdl-here/internal/session"
)

type stubBuilder struct {
	err error
}

func (b stubBuilder) Build(ctx context.Context, cand classify.Candidate) (catalog.Catalog, error) {
	if b.err != nil {
		return catalog.Catalog{URL: cand.URL, Kind: cand.Kind}, b.err
	}
	if cand.Kind == classify.Collection {
		return catalog.Catalog{URL: cand.URL, Kind: cand.Kind, Entries: catalog.TierEntries()}, nil
	}
	entries := catalog.Entries([]engine.Format{
		{ID: "22", Ext: "mp4", Width: 1280, Height: 720, FPS: 30, TBR: 1500, Note: "720p"},
		{ID: "18", Ext: "mp4", Width: 640, Height: 360, FPS: 30, TBR: 500, Note: "360p"},
	}, 60)
	return catalog.Catalog{URL: cand.URL, Kind: cand.Kind, Title: "Clip", Entries: entries}, nil
}

type stubDispatcher struct {
	reqs []dispatch.Request
}

func (d *stubDispatcher) Dispatch(req dispatch.Request) { d.reqs = append(d.reqs, req) }

func runSession(t *testing.T, b stubBuilder, input, initial string) (string, *stubDispatcher) {
	t.Helper()
	d := &stubDispatcher{}
	ctrl := session.NewController(context.Background(), session.Config{
		Builder:    b,
		Dispatcher: d,
		Gate:       clipwatch.NewGate(0),
		Dir:        "/downloads",
		Log:        zerolog.Nop(),
	})
	var out bytes.Buffer
	err := Run(context.Background(), Options{
		Controller: ctrl,
		Queue:      session.NewQueue(8),
		In:         strings.NewReader(input),
		Out:        &out,
		InitialURL: initial,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String(), d
}

func TestRunDownloadsChosenFormat(t *testing.T) {
	out, d := runSession(t, stubBuilder{}, "https://youtu.be/aaaaaaaaaaa\nabc\n9\n2\n/tmp/videos\nexit\n", "")

	for _, want := range []string{
		promptURL,
		"Fetching formats for https://www.youtube.com/w...",
		session.StatusVideoReady,
		"Available formats:",
		"Resolution",
		"1280x720",
		"Invalid choice, enter a number between 1 and 2.",
		"Enter download path or press enter to use /downloads: ",
		"Starting download...",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if len(d.reqs) != 1 {
		t.Fatalf("dispatched %d requests, want 1", len(d.reqs))
	}
	want := dispatch.Request{URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa", Dir: "/tmp/videos", Selector: "18"}
	if d.reqs[0] != want {
		t.Fatalf("request = %+v, want %+v", d.reqs[0], want)
	}
}

func TestRunDefaultDirectory(t *testing.T) {
	_, d := runSession(t, stubBuilder{}, "1\n\nquit\n", "https://www.youtube.com/watch?v=aaaaaaaaaaa")
	if len(d.reqs) != 1 || d.reqs[0].Dir != "/downloads" || d.reqs[0].Selector != "22" {
		t.Fatalf("unexpected requests %+v", d.reqs)
	}
}

func TestRunPlaylistTiers(t *testing.T) {
	out, d := runSession(t, stubBuilder{}, "https://www.youtube.com/playlist?list=PL1\n3\n\nexit\n", "")
	if !strings.Contains(out, session.StatusPlaylistReady) || !strings.Contains(out, "Available quality tiers:") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if len(d.reqs) != 1 || d.reqs[0].Selector != catalog.Tier1080p {
		t.Fatalf("unexpected requests %+v", d.reqs)
	}
}

func TestRunFetchErrorReturnsToPrompt(t *testing.T) {
	out, d := runSession(t, stubBuilder{err: errors.New("boom")}, "https://example.com/v/1\nexit\n", "")
	if !strings.Contains(out, "Error: boom") {
		t.Fatalf("error not shown:\n%s", out)
	}
	if strings.Count(out, promptURL) != 2 {
		t.Fatalf("expected the URL prompt twice:\n%s", out)
	}
	if len(d.reqs) != 0 {
		t.Fatalf("nothing should be dispatched, got %+v", d.reqs)
	}
}

func TestRunEndsOnEOF(t *testing.T) {
	out, _ := runSession(t, stubBuilder{}, "", "")
	if out != promptURL {
		t.Fatalf("output = %q", out)
	}
}

func TestPrinterThinsProgress(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out)
	job := dispatch.Job{ID: "j", Title: "Clip"}
	sample := func(done int64, phase progress.Phase) dispatch.Event {
		return dispatch.Event{Kind: dispatch.EventJobProgress, Job: job,
			Sample: progress.Sample{JobID: "j", BytesDone: done, BytesTotal: 100, Phase: phase}}
	}

	p.Event(dispatch.Event{Kind: dispatch.EventJobStarted, Job: job})
	for _, done := range []int64{1, 5, 12, 15, 19, 55, 100} {
		p.Event(sample(done, progress.Downloading))
	}
	p.Event(sample(100, progress.Finalizing))
	p.Event(sample(100, progress.Finalizing))
	p.Event(dispatch.Event{Kind: dispatch.EventJobFinished, Job: job})

	want := strings.Join([]string{
		"Starting Clip",
		"Clip: Downloading... 1%",
		"Clip: Downloading... 12%",
		"Clip: Downloading... 55%",
		"Clip: Downloading... 100%",
		"Clip: Processing downloaded video...",
		"Download completed: Clip",
	}, "\n") + "\n"
	if out.String() != want {
		t.Fatalf("output:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestPrintCatalogRow(t *testing.T) {
	var out bytes.Buffer
	entries := catalog.Entries([]engine.Format{{ID: "18", Ext: "mp4", Width: 640, Height: 360, FPS: 30, TBR: 500, Note: "360p"}}, 0)
	PrintCatalog(&out, catalog.Catalog{Entries: entries})
	want := "1  | 640x360    | 30  | mp4    | N/A           | 500.0    | 360p      "
	if !strings.Contains(out.String(), want) {
		t.Fatalf("row missing %q:\n%s", want, out.String())
	}
}
