// Package session holds the interactive session state machine. All methods
// of Controller must be called from the interface loop; background work is
// returned as tea.Cmd values and its results come back as messages.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/lvcoi/ytdl-here/internal/catalog"
	"github.com/lvcoi/ytdl-here/internal/classify"
	"github.com/lvcoi/ytdl-here/internal/clipwatch"
	"github.com/lvcoi/ytdl-here/internal/dispatch"
	"github.com/lvcoi/ytdl-here/internal/progress"
)

var (
	ErrNotReady      = errors.New("no catalog is ready for download")
	ErrNoSelection   = errors.New("no format selected")
	ErrInvalidChoice = errors.New("choice is out of range")
	errNoDirectory   = errors.New("no download directory set")
)

type Phase int

const (
	Idle Phase = iota
	Fetching
	Ready
	Dispatching
)

func (p Phase) String() string {
	switch p {
	case Fetching:
		return "fetching"
	case Ready:
		return "ready"
	case Dispatching:
		return "dispatching"
	default:
		return "idle"
	}
}

// Source says where a URL came from.
type Source int

const (
	SourceTyped Source = iota
	SourcePasted
	SourceClipboard
	SourceArgument
)

func (s Source) String() string {
	switch s {
	case SourcePasted:
		return "paste"
	case SourceClipboard:
		return "clipboard"
	case SourceArgument:
		return "argument"
	default:
		return "typed"
	}
}

// Status lines.
const (
	StatusWaiting        = "Waiting for a URL"
	StatusVideoReady     = "Video Ready. Choose a Format"
	StatusPlaylistReady  = "Playlist Ready. Choose a Preferred Format"
	StatusNoFormats      = "No formats found"
	StatusClipboardOff   = "Clipboard unavailable, enter URLs manually"
	statusURLPreviewSize = 25
)

// State is a snapshot of the session.
type State struct {
	Phase     Phase
	Candidate classify.Candidate
	Source    Source
	Catalog   catalog.Catalog
	// Selected indexes Catalog.Entries; -1 when nothing is selected.
	Selected      int
	Busy          bool
	LastClipboard string
	Dir           string
	Status        string
	Display       progress.Display
	HasDisplay    bool
	LastError     error
	Active        int
	Finished      int
	Failed        int
}

// SelectedEntry returns the chosen catalog entry.
func (s State) SelectedEntry() (catalog.Entry, bool) {
	if s.Selected < 0 || s.Selected >= len(s.Catalog.Entries) {
		return catalog.Entry{}, false
	}
	return s.Catalog.Entries[s.Selected], true
}

// CatalogMsg carries a finished catalog build for candidate Seq.
type CatalogMsg struct {
	Seq     uint64
	Catalog catalog.Catalog
	Err     error
}

// CatalogBuilder is satisfied by *catalog.Builder.
type CatalogBuilder interface {
	Build(ctx context.Context, cand classify.Candidate) (catalog.Catalog, error)
}

// Dispatcher is satisfied by *dispatch.Dispatcher.
type Dispatcher interface {
	Dispatch(req dispatch.Request)
}

type Config struct {
	Builder    CatalogBuilder
	Dispatcher Dispatcher
	Classifier *classify.Classifier
	Gate       *clipwatch.Gate
	Dir        string
	Log        zerolog.Logger
}

// Controller owns the single SessionState.
type Controller struct {
	ctx        context.Context
	builder    CatalogBuilder
	dispatcher Dispatcher
	classifier *classify.Classifier
	gate       *clipwatch.Gate
	reporter   *progress.Reporter
	log        zerolog.Logger
	now        func() time.Time

	seq   uint64
	state State
}

func NewController(ctx context.Context, cfg Config) *Controller {
	c := &Controller{
		ctx:        ctx,
		builder:    cfg.Builder,
		dispatcher: cfg.Dispatcher,
		classifier: cfg.Classifier,
		gate:       cfg.Gate,
		reporter:   progress.NewReporter(),
		log:        cfg.Log.With().Str("component", "session").Logger(),
		now:        time.Now,
	}
	if c.classifier == nil {
		c.classifier = classify.Default()
	}
	if c.gate == nil {
		c.gate = clipwatch.NewGate(clipwatch.DefaultCooldown)
	}
	c.state = State{Selected: -1, Dir: cfg.Dir, Status: StatusWaiting}
	return c
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	s := c.state
	s.LastClipboard = c.gate.LastSeen()
	s.Catalog.Entries = append([]catalog.Entry(nil), c.state.Catalog.Entries...)
	return s
}

// URLChanged binds a new candidate and returns the catalog fetch. It returns
// nil when raw is empty or is the URL already fetching or ready. The
// clipboard gate only ever holds raw clipboard text: a paste records what
// was pasted, typed and argument URLs leave it alone.
func (c *Controller) URLChanged(raw string, src Source) tea.Cmd {
	url := classify.Normalize(raw)
	if url == "" {
		return nil
	}
	if url == c.state.Candidate.URL && c.state.Phase != Idle {
		return nil
	}
	if src == SourcePasted {
		c.gate.Mark(raw)
	}

	c.seq++
	cand := classify.Candidate{URL: url, Kind: c.classifier.Classify(url), Seq: c.seq}
	c.state.Candidate = cand
	c.state.Source = src
	c.state.Catalog = catalog.Catalog{}
	c.state.Selected = -1
	c.state.Phase = Fetching
	c.state.Busy = true
	c.state.LastError = nil
	c.state.Status = fmt.Sprintf("Fetching formats for %s...", truncate(url, statusURLPreviewSize))
	c.log.Info().Str("url", url).Str("kind", cand.Kind.String()).Str("source", src.String()).Uint64("seq", cand.Seq).Msg("url changed")

	ctx, builder := c.ctx, c.builder
	return func() tea.Msg {
		cat, err := builder.Build(ctx, cand)
		return CatalogMsg{Seq: cand.Seq, Catalog: cat, Err: err}
	}
}

// CatalogReady applies a finished build. Results for superseded candidates
// are dropped; the return value reports whether msg was applied.
func (c *Controller) CatalogReady(msg CatalogMsg) bool {
	if msg.Seq != c.state.Candidate.Seq || c.state.Phase != Fetching {
		c.log.Debug().Uint64("seq", msg.Seq).Uint64("current", c.state.Candidate.Seq).Msg("stale catalog dropped")
		return false
	}
	c.state.Busy = false
	err := msg.Err
	if err == nil && msg.Catalog.Empty() {
		err = catalog.ErrEmptyCatalog
	}
	if err != nil {
		c.state.Phase = Idle
		c.state.Catalog = catalog.Catalog{}
		c.state.LastError = err
		if errors.Is(err, catalog.ErrEmptyCatalog) {
			c.state.Status = StatusNoFormats
		} else {
			c.state.Status = "Error: " + err.Error()
		}
		return true
	}
	c.state.Catalog = msg.Catalog
	c.state.Selected = 0
	c.state.Phase = Ready
	if msg.Catalog.Kind == classify.Collection {
		c.state.Status = StatusPlaylistReady
	} else {
		c.state.Status = StatusVideoReady
	}
	return true
}

// ChooseFormat records entry i of the active catalog.
func (c *Controller) ChooseFormat(i int) error {
	if c.state.Phase != Ready {
		return ErrNotReady
	}
	if i < 0 || i >= len(c.state.Catalog.Entries) {
		return ErrInvalidChoice
	}
	c.state.Selected = i
	return nil
}

// SetDir sets the destination directory for later downloads.
func (c *Controller) SetDir(dir string) {
	if dir = strings.TrimSpace(dir); dir != "" {
		c.state.Dir = dir
	}
}

// RequestDownload hands the selection to the dispatcher and returns to
// Ready at once; transfers run in the background.
func (c *Controller) RequestDownload() error {
	if c.state.Phase != Ready {
		return ErrNotReady
	}
	entry, ok := c.state.SelectedEntry()
	if !ok {
		return ErrNoSelection
	}
	if c.state.Dir == "" {
		return errNoDirectory
	}
	c.state.Phase = Dispatching
	req := dispatch.Request{URL: c.state.Candidate.URL, Dir: c.state.Dir, Selector: entry.Selector()}
	c.dispatcher.Dispatch(req)
	c.log.Info().Str("url", req.URL).Str("selector", req.Selector).Str("dir", req.Dir).Msg("download requested")
	c.state.Phase = Ready
	if c.state.Candidate.Kind == classify.Collection {
		c.state.Status = "Expanding playlist..."
	} else {
		c.state.Status = "Starting download..."
	}
	return nil
}

// TouchURLField opens the clipboard cooldown. It reports whether the field
// should be cleared because it still shows the last handled URL.
func (c *Controller) TouchURLField(current string) bool {
	c.gate.Suppress(c.now())
	current = strings.TrimSpace(current)
	return current != "" && (current == c.gate.LastSeen() || current == c.state.Candidate.URL)
}

// Clipboard handles one clipboard sample. A read error turns the watch off
// for the rest of the session.
func (c *Controller) Clipboard(msg clipwatch.TickMsg) tea.Cmd {
	if c.gate.Disabled() {
		return nil
	}
	if msg.Err != nil {
		c.gate.Disable()
		c.log.Warn().Err(msg.Err).Msg("clipboard watch disabled")
		if c.state.Phase == Idle && c.state.Candidate.IsZero() {
			c.state.Status = StatusClipboardOff
		}
		return nil
	}
	at := msg.At
	if at.IsZero() {
		at = c.now()
	}
	url, ok := c.gate.Observe(msg.Text, at)
	if !ok {
		return nil
	}
	return c.URLChanged(url, SourceClipboard)
}

// ClipboardEnabled reports whether clipboard ticks should keep running.
func (c *Controller) ClipboardEnabled() bool {
	return !c.gate.Disabled()
}

// DisableClipboard turns the watch off, e.g. by configuration.
func (c *Controller) DisableClipboard() {
	c.gate.Disable()
}

// HandleEvent applies a worker event.
func (c *Controller) HandleEvent(ev dispatch.Event) {
	switch ev.Kind {
	case dispatch.EventJobStarted:
		c.state.Active++
		c.reporter.Reset()
		c.state.HasDisplay = false
		c.state.Display = progress.Display{}
		c.state.Status = "Starting " + describe(ev.Job)
	case dispatch.EventJobProgress:
		c.state.Display = c.reporter.OnSample(ev.Sample)
		c.state.HasDisplay = true
		c.state.Status = c.state.Display.Status
	case dispatch.EventJobFinished:
		c.state.Active = max(c.state.Active-1, 0)
		c.state.Finished++
		c.state.Status = "Download completed: " + describe(ev.Job)
	case dispatch.EventJobFailed:
		c.state.Active = max(c.state.Active-1, 0)
		c.state.Failed++
		c.state.LastError = ev.Err
		c.state.Status = "Download failed: " + describe(ev.Job)
	case dispatch.EventExpanded:
		c.state.Status = fmt.Sprintf("Playlist expanded: %d items", ev.Count)
	case dispatch.EventExpansionFailed:
		c.state.Failed++
		c.state.LastError = ev.Err
		c.state.Status = "Could not expand playlist: " + errText(ev.Err)
	}
}

func describe(job dispatch.Job) string {
	if job.Title != "" {
		return job.Title
	}
	return job.SourceURL
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Summary renders the end-of-session failure list, or "" when nothing
// failed.
func Summary(failed []string) string {
	if len(failed) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Failed files:\n")
	for _, u := range failed {
		b.WriteString(u)
		b.WriteByte('\n')
	}
	return b.String()
}
