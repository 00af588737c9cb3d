package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/lvcoi/ytdl-here/internal/catalog"
	"github.com/lvcoi/ytdl-here/internal/classify"
	"github.com/lvcoi/ytdl-here/internal/clipwatch"
	"github.com/lvcoi/ytdl-here/internal/dispatch"
	"github.com/lvcoi/ytdl-here/internal/engine"
	"github.com/lvcoi/ytdl-here/internal/progress"
	"github.com/lvcoi/ytdl-here/internal/session"
)

type stubBuilder struct{}

func (stubBuilder) Build(ctx context.Context, cand classify.Candidate) (catalog.Catalog, error) {
	if cand.Kind == classify.Collection {
		return catalog.Catalog{URL: cand.URL, Kind: cand.Kind, Entries: catalog.TierEntries()}, nil
	}
	entries := catalog.Entries([]engine.Format{
		{ID: "22", Ext: "mp4", Width: 1280, Height: 720, FPS: 30, TBR: 1500},
		{ID: "18", Ext: "mp4", Width: 640, Height: 360, FPS: 30, TBR: 500},
	}, 60)
	return catalog.Catalog{URL: cand.URL, Kind: cand.Kind, Title: "Clip", Entries: entries}, nil
}

type stubDispatcher struct {
	reqs []dispatch.Request
}

func (d *stubDispatcher) Dispatch(req dispatch.Request) { d.reqs = append(d.reqs, req) }

type stubReader struct {
	text string
	err  error
}

func (r stubReader) ReadAll() (string, error) { return r.text, r.err }

const videoURL = "https://www.youtube.com/watch?v=aaaaaaaaaaa"

func newTestModel(t *testing.T, reader clipwatch.Reader) (*Model, *session.Controller, *stubDispatcher) {
	t.Helper()
	d := &stubDispatcher{}
	ctrl := session.NewController(context.Background(), session.Config{
		Builder:    stubBuilder{},
		Dispatcher: d,
		Gate:       clipwatch.NewGate(0),
		Dir:        "/downloads",
		Log:        zerolog.Nop(),
	})
	m := New(Options{
		Controller:        ctrl,
		Queue:             session.NewQueue(4),
		Clipboard:         reader,
		ClipboardInterval: time.Second,
	})
	return m, ctrl, d
}

func typeText(m *Model, s string) {
	for _, r := range s {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func fetch(t *testing.T, m *Model, ctrl *session.Controller, cmd tea.Cmd) {
	t.Helper()
	if ctrl.State().Phase != session.Fetching {
		t.Fatalf("phase = %s, want fetching", ctrl.State().Phase)
	}
	if cmd == nil {
		t.Fatal("expected a command")
	}
	// The fetch is the batch member returning a CatalogMsg; run the
	// builder directly instead of unpacking the batch.
	cand := ctrl.State().Candidate
	cat, err := stubBuilder{}.Build(context.Background(), cand)
	m.Update(session.CatalogMsg{Seq: cand.Seq, Catalog: cat, Err: err})
}

func TestEnterFetchesAndDownloads(t *testing.T) {
	m, ctrl, d := newTestModel(t, nil)

	typeText(m, videoURL)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	fetch(t, m, ctrl, cmd)

	st := ctrl.State()
	if st.Phase != session.Ready || st.Status != session.StatusVideoReady {
		t.Fatalf("unexpected state %+v", st)
	}
	if m.focus != focusFormats {
		t.Fatalf("focus = %d, want format list", m.focus)
	}
	if view := m.View(); !strings.Contains(view, "1280x720") || !strings.Contains(view, "Formats: Clip") {
		t.Fatalf("view missing catalog:\n%s", view)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if len(d.reqs) != 1 {
		t.Fatalf("dispatched %d requests, want 1", len(d.reqs))
	}
	req := d.reqs[0]
	if req.URL != videoURL || req.Selector != "18" || req.Dir != "/downloads" {
		t.Fatalf("unexpected request %+v", req)
	}
	if ctrl.State().Phase != session.Ready {
		t.Fatal("session should stay ready after a download request")
	}
}

func TestPasteTriggersFetch(t *testing.T) {
	m, ctrl, _ := newTestModel(t, nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(videoURL), Paste: true})
	fetch(t, m, ctrl, cmd)
	if st := ctrl.State(); st.Source != session.SourcePasted || st.Phase != session.Ready {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestClipboardTickFillsURLField(t *testing.T) {
	m, ctrl, _ := newTestModel(t, stubReader{text: videoURL})
	_, cmd := m.Update(clipwatch.TickMsg{Text: videoURL, At: time.Now()})
	if cmd == nil {
		t.Fatal("expected fetch and next tick")
	}
	if got := m.url.Value(); got != videoURL {
		t.Fatalf("url field = %q", got)
	}
	if st := ctrl.State(); st.Source != session.SourceClipboard || st.Phase != session.Fetching {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestClipboardErrorStopsTicks(t *testing.T) {
	m, ctrl, _ := newTestModel(t, stubReader{err: errors.New("no clipboard")})
	_, cmd := m.Update(clipwatch.TickMsg{Err: errors.New("no clipboard")})
	if cmd != nil {
		t.Fatal("no further ticks expected after a read error")
	}
	if ctrl.ClipboardEnabled() {
		t.Fatal("clipboard watch still enabled")
	}
	if !strings.Contains(m.View(), session.StatusClipboardOff) {
		t.Fatal("view does not report the disabled clipboard")
	}
}

func TestNilClipboardDisablesWatch(t *testing.T) {
	_, ctrl, _ := newTestModel(t, nil)
	if ctrl.ClipboardEnabled() {
		t.Fatal("watch should be off without a reader")
	}
}

func TestProgressEventsRender(t *testing.T) {
	m, ctrl, _ := newTestModel(t, nil)
	job := dispatch.Job{ID: "j1", SourceURL: videoURL, Title: "Clip"}

	m.Update(session.EventMsg{Event: dispatch.Event{Kind: dispatch.EventJobStarted, Job: job}})
	_, cmd := m.Update(session.EventMsg{Event: dispatch.Event{
		Kind:   dispatch.EventJobProgress,
		Job:    job,
		Sample: progress.Sample{JobID: "j1", BytesDone: 50, BytesTotal: 200, Phase: progress.Downloading},
	}})
	if cmd == nil {
		t.Fatal("expected next-event and bar commands")
	}
	st := ctrl.State()
	if !st.HasDisplay || st.Display.Percent != 25 || st.Active != 1 {
		t.Fatalf("unexpected state %+v", st)
	}
	view := m.View()
	if !strings.Contains(view, " 25%") || !strings.Contains(view, "active 1") {
		t.Fatalf("view missing progress:\n%s", view)
	}

	m.Update(session.EventMsg{Event: dispatch.Event{Kind: dispatch.EventJobFinished, Job: job}})
	if st := ctrl.State(); st.Active != 0 || st.Finished != 1 {
		t.Fatalf("unexpected counts %+v", st)
	}
}

func TestFocusReturnClearsHandledURL(t *testing.T) {
	m, ctrl, _ := newTestModel(t, nil)
	typeText(m, videoURL)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	fetch(t, m, ctrl, cmd)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("u")})
	if m.focus != focusURL {
		t.Fatalf("focus = %d, want url", m.focus)
	}
	if m.url.Value() != "" {
		t.Fatalf("url field not cleared: %q", m.url.Value())
	}
}

func TestDirectoryField(t *testing.T) {
	m, ctrl, _ := newTestModel(t, nil)
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != focusDir {
		t.Fatalf("focus = %d, want dir", m.focus)
	}
	m.dir.SetValue("/tmp/videos")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if got := ctrl.State().Dir; got != "/tmp/videos" {
		t.Fatalf("dir = %q", got)
	}
}
