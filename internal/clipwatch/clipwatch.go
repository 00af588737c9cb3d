// Package clipwatch polls the system clipboard for URLs.
package clipwatch

import (
	"errors"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lvcoi/ytdl-here/internal/classify"
)

const (
	DefaultInterval = 1000 * time.Millisecond
	DefaultCooldown = 500 * time.Millisecond
)

// ErrUnsupported is returned when no clipboard utility is available.
var ErrUnsupported = errors.New("clipboard access is not supported on this system")

// Reader reads the current clipboard text.
type Reader interface {
	ReadAll() (string, error)
}

// SystemReader reads the OS clipboard.
type SystemReader struct{}

func (SystemReader) ReadAll() (string, error) {
	if clipboard.Unsupported {
		return "", ErrUnsupported
	}
	return clipboard.ReadAll()
}

// Gate decides which clipboard samples become URL changes. It is not safe
// for concurrent use; the interface loop owns it.
type Gate struct {
	cooldown      time.Duration
	lastSeen      string
	suppressUntil time.Time
	disabled      bool
}

func NewGate(cooldown time.Duration) *Gate {
	if cooldown < 0 {
		cooldown = 0
	}
	return &Gate{cooldown: cooldown}
}

// Observe returns the URL to act on, if any. Text seen during a cooldown is
// not recorded, so it can still fire once the cooldown ends.
func (g *Gate) Observe(text string, now time.Time) (string, bool) {
	if g.disabled || now.Before(g.suppressUntil) {
		return "", false
	}
	text = strings.TrimSpace(text)
	if !classify.IsHTTPURL(text) || text == g.lastSeen {
		return "", false
	}
	g.lastSeen = text
	return text, true
}

// Suppress opens a cooldown window starting at now.
func (g *Gate) Suppress(now time.Time) {
	g.suppressUntil = now.Add(g.cooldown)
}

// Mark records raw clipboard text as already handled, e.g. when the user
// pasted it. Callers must pass the text as it would appear on the clipboard,
// not a normalized form.
func (g *Gate) Mark(text string) {
	g.lastSeen = strings.TrimSpace(text)
}

func (g *Gate) LastSeen() string { return g.lastSeen }

// Disable stops the gate from accepting further samples.
func (g *Gate) Disable() { g.disabled = true }

func (g *Gate) Disabled() bool { return g.disabled }

// TickMsg carries one clipboard sample into the interface loop.
type TickMsg struct {
	Text string
	Err  error
	At   time.Time
}

// Tick schedules one clipboard read after interval. The read runs off the
// interface loop.
func Tick(r Reader, interval time.Duration) tea.Cmd {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return tea.Tick(interval, func(at time.Time) tea.Msg {
		text, err := r.ReadAll()
		return TickMsg{Text: text, Err: err, At: at}
	})
}
