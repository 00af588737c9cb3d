// Package tui is the interactive terminal surface.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	progressbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lvcoi/ytdl-here/internal/clipwatch"
	"github.com/lvcoi/ytdl-here/internal/session"
)

type focus int

const (
	focusURL focus = iota
	focusFormats
	focusDir
	focusCount
)

const (
	urlPlaceholder = "Paste or type a video URL"
	minListRows    = 5
)

type Options struct {
	Controller *session.Controller
	Queue      *session.Queue
	// Clipboard is nil when clipboard watching is off.
	Clipboard         clipwatch.Reader
	ClipboardInterval time.Duration
	InitialURL        string
}

// Model is the Bubble Tea model. It forwards every user action to the
// session controller and renders the controller's state.
type Model struct {
	ctrl     *session.Controller
	queue    *session.Queue
	reader   clipwatch.Reader
	interval time.Duration
	initial  string

	url  textinput.Model
	dir  textinput.Model
	spin spinner.Model
	bar  progressbar.Model

	focus  focus
	cursor int
	offset int
	width  int
	height int
	notice string
}

func New(opts Options) *Model {
	url := textinput.New()
	url.Placeholder = urlPlaceholder
	url.Prompt = "› "
	url.CharLimit = 2048
	url.Width = 72
	url.Focus()

	st := opts.Controller.State()
	dir := textinput.New()
	dir.Prompt = "› "
	dir.CharLimit = 4096
	dir.Width = 72
	dir.SetValue(st.Dir)

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	spin.Style = spinnerStyle

	bar := progressbar.New(
		progressbar.WithGradient("#FF006E", "#00F5FF"),
		progressbar.WithWidth(60),
		progressbar.WithoutPercentage(),
	)

	if opts.Clipboard == nil {
		opts.Controller.DisableClipboard()
	}
	return &Model{
		ctrl:     opts.Controller,
		queue:    opts.Queue,
		reader:   opts.Clipboard,
		interval: opts.ClipboardInterval,
		initial:  strings.TrimSpace(opts.InitialURL),
		url:      url,
		dir:      dir,
		spin:     spin,
		bar:      bar,
		width:    80,
		height:   24,
	}
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spin.Tick, m.queue.Next()}
	if m.reader != nil && m.ctrl.ClipboardEnabled() {
		cmds = append(cmds, clipwatch.Tick(m.reader, m.interval))
	}
	if m.initial != "" {
		m.url.SetValue(m.initial)
		cmds = append(cmds, m.ctrl.URLChanged(m.initial, session.SourceArgument))
	}
	return tea.Batch(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.bar.Width = max(msg.Width-12, 10)
		m.url.Width = max(msg.Width-8, 20)
		m.dir.Width = max(msg.Width-8, 20)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case session.CatalogMsg:
		if m.ctrl.CatalogReady(msg) {
			m.cursor, m.offset = 0, 0
			if m.ctrl.State().Phase == session.Ready && m.focus == focusURL {
				m.setFocus(focusFormats)
			}
		}
		return m, nil

	case session.EventMsg:
		m.ctrl.HandleEvent(msg.Event)
		m.queue.Ack()
		cmds := []tea.Cmd{m.queue.Next()}
		if st := m.ctrl.State(); st.HasDisplay && st.Display.HasPercent {
			cmds = append(cmds, m.bar.SetPercent(float64(st.Display.Percent)/100))
		}
		return m, tea.Batch(cmds...)

	case session.QueueClosedMsg:
		return m, nil

	case clipwatch.TickMsg:
		var cmds []tea.Cmd
		if cmd := m.ctrl.Clipboard(msg); cmd != nil {
			m.url.SetValue(m.ctrl.State().Candidate.URL)
			m.notice = ""
			cmds = append(cmds, cmd)
		}
		if m.ctrl.ClipboardEnabled() {
			cmds = append(cmds, clipwatch.Tick(m.reader, m.interval))
		}
		if len(cmds) == 0 {
			return m, nil
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case progressbar.FrameMsg:
		pm, cmd := m.bar.Update(msg)
		if bar, ok := pm.(progressbar.Model); ok {
			m.bar = bar
		}
		return m, cmd
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusURL:
		m.url, cmd = m.url.Update(msg)
	case focusDir:
		m.dir, cmd = m.dir.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Next):
		return m, m.setFocus((m.focus + 1) % focusCount)
	case key.Matches(msg, keys.Prev):
		return m, m.setFocus((m.focus + focusCount - 1) % focusCount)
	}

	switch m.focus {
	case focusURL:
		return m.handleURLKey(msg)
	case focusDir:
		return m.handleDirKey(msg)
	default:
		return m.handleFormatKey(msg)
	}
}

func (m *Model) handleURLKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		return m, m.submitURL(session.SourceTyped)
	case tea.KeyEsc:
		return m, tea.Quit
	}
	m.ctrl.TouchURLField(m.url.Value())
	var cmd tea.Cmd
	m.url, cmd = m.url.Update(msg)
	if msg.Paste {
		return m, tea.Batch(cmd, m.submitURL(session.SourcePasted))
	}
	return m, cmd
}

func (m *Model) submitURL(src session.Source) tea.Cmd {
	m.notice = ""
	return m.ctrl.URLChanged(m.url.Value(), src)
}

func (m *Model) handleDirKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.ctrl.SetDir(m.dir.Value())
		m.dir.SetValue(m.ctrl.State().Dir)
		return m, m.setFocus(focusFormats)
	case tea.KeyEsc:
		m.dir.SetValue(m.ctrl.State().Dir)
		return m, m.setFocus(focusFormats)
	}
	var cmd tea.Cmd
	m.dir, cmd = m.dir.Update(msg)
	return m, cmd
}

func (m *Model) handleFormatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	entries := m.ctrl.State().Catalog.Entries
	switch {
	case key.Matches(msg, keys.Leave):
		return m, tea.Quit
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.Down):
		if m.cursor < len(entries)-1 {
			m.cursor++
		}
	case key.Matches(msg, keys.Top):
		m.cursor = 0
	case key.Matches(msg, keys.Bottom):
		m.cursor = max(len(entries)-1, 0)
	case key.Matches(msg, keys.EditURL):
		return m, m.setFocus(focusURL)
	case key.Matches(msg, keys.EditDir):
		return m, m.setFocus(focusDir)
	case key.Matches(msg, keys.Download):
		m.download()
	}
	m.clampOffset()
	return m, nil
}

func (m *Model) download() {
	if err := m.ctrl.ChooseFormat(m.cursor); err != nil {
		m.notice = err.Error()
		return
	}
	if err := m.ctrl.RequestDownload(); err != nil {
		m.notice = err.Error()
		return
	}
	m.notice = ""
}

// setFocus moves focus; entering the URL field opens the clipboard
// cooldown and clears a stale URL so the user can type over it.
func (m *Model) setFocus(f focus) tea.Cmd {
	m.focus = f
	m.url.Blur()
	m.dir.Blur()
	switch f {
	case focusURL:
		if m.ctrl.TouchURLField(m.url.Value()) {
			m.url.SetValue("")
		}
		return m.url.Focus()
	case focusDir:
		return m.dir.Focus()
	}
	return nil
}

func (m *Model) listRows() int {
	return max(m.height-16, minListRows)
}

func (m *Model) clampOffset() {
	rows := m.listRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
}

func (m *Model) View() string {
	st := m.ctrl.State()
	var b strings.Builder

	b.WriteString(titleStyle.Render(" ytdl-here "))
	b.WriteString("\n\n")

	b.WriteString(m.label("URL", focusURL))
	b.WriteString("\n")
	b.WriteString(m.url.View())
	b.WriteString("\n\n")

	b.WriteString(m.label("Save to", focusDir))
	b.WriteString("\n")
	b.WriteString(m.dir.View())
	b.WriteString("\n\n")

	status := st.Status
	if st.Busy {
		status = m.spin.View() + " " + status
	}
	if st.Phase == session.Idle && st.LastError != nil {
		b.WriteString(errorStyle.Render(status))
	} else {
		b.WriteString(statusStyle.Render(status))
	}
	b.WriteString("\n")

	if len(st.Catalog.Entries) > 0 {
		b.WriteString(m.label(formatsHeading(st), focusFormats))
		b.WriteString("\n")
		b.WriteString(listStyle.Render(m.renderList(st)))
		b.WriteString("\n")
	}

	if st.HasDisplay {
		if st.Display.HasPercent {
			b.WriteString(m.bar.View())
			b.WriteString(" ")
			b.WriteString(percentStyle.Render(fmt.Sprintf("%3d%%", st.Display.Percent)))
		} else {
			b.WriteString(m.spin.View())
			b.WriteString(" ")
			b.WriteString(statusStyle.Render(st.Display.Status))
		}
		b.WriteString("\n")
	}
	if st.Active > 0 || st.Finished > 0 || st.Failed > 0 {
		b.WriteString(countStyle.Render(fmt.Sprintf("active %d · done %d · failed %d", st.Active, st.Finished, st.Failed)))
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString(errorStyle.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render(m.help()))
	return b.String()
}

func formatsHeading(st session.State) string {
	if st.Catalog.Title != "" {
		return "Formats: " + st.Catalog.Title
	}
	return "Formats"
}

func (m *Model) label(text string, f focus) string {
	if m.focus == f {
		return focusedLabelStyle.Render(text)
	}
	return labelStyle.Render(text)
}

func (m *Model) renderList(st session.State) string {
	rows := m.listRows()
	end := min(m.offset+rows, len(st.Catalog.Entries))
	lines := make([]string, 0, rows)
	for i := m.offset; i < end; i++ {
		label := st.Catalog.Entries[i].Label
		switch {
		case i == m.cursor && m.focus == focusFormats:
			lines = append(lines, selectedStyle.Render("▶ "+label))
		case i == m.cursor:
			lines = append(lines, formatStyle.Render("▶ "+label))
		default:
			lines = append(lines, formatStyle.Render("  "+label))
		}
	}
	return strings.Join(lines, "\n")
}

func (m *Model) help() string {
	var bindings []key.Binding
	switch m.focus {
	case focusURL:
		bindings = []key.Binding{withHelp(keys.Submit, "fetch formats"), keys.Next, keys.Quit}
	case focusDir:
		bindings = []key.Binding{withHelp(keys.Submit, "set directory"), keys.Next, keys.Quit}
	default:
		bindings = []key.Binding{keys.Up, keys.Down, keys.Download, keys.EditURL, keys.EditDir, keys.Leave}
	}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	return strings.Join(parts, " · ")
}

func withHelp(b key.Binding, desc string) key.Binding {
	b.SetHelp(b.Help().Key, desc)
	return b
}
