// Package tui plays a session in the terminal.
package tui

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tmpim/asciiplay"
	"github.com/tmpim/asciiplay/stream"
)

var (
	statusStyle = lipgloss.NewStyle().Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

const helpText = "space play/pause · ←/→ step · c color · l loop · +/- fps · q quit"

// UpdateMsg carries a session update into the program.
type UpdateMsg stream.Update

// Bridge forwards session updates to a program attached after the session
// was created.
type Bridge struct {
	mutex   sync.Mutex
	program *tea.Program
}

// Attach starts forwarding to p.
func (b *Bridge) Attach(p *tea.Program) {
	b.mutex.Lock()
	b.program = p
	b.mutex.Unlock()
}

// OnUpdate is a stream.SessionOptions.OnUpdate callback.
func (b *Bridge) OnUpdate(u stream.Update) {
	b.mutex.Lock()
	p := b.program
	b.mutex.Unlock()

	if p != nil {
		go p.Send(UpdateMsg(u))
	}
}

// Model is the terminal player.
type Model struct {
	session  *stream.Session
	bar      progress.Model
	quitting bool
}

// New returns a player for session.
func New(session *stream.Session) *Model {
	return &Model{
		session: session,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case tea.WindowSizeMsg:
		if msg.Width > 10 {
			m.bar.Width = min(msg.Width-10, 60)
		}
	case UpdateMsg:
	}
	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	player := m.session.Player()

	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		player.Stop()
		return m, tea.Quit
	case " ", "space":
		player.Toggle()
	case "left", "h":
		player.Step(-1)
	case "right":
		player.Step(1)
	case "c":
		m.session.SetColorEnabled(!m.session.ColorEnabled())
	case "l":
		player.SetLoop(!player.Loop())
	case "+", "=":
		player.SetFPS(player.FPS() + 1)
	case "-", "_":
		player.SetFPS(player.FPS() - 1)
	}

	return m, nil
}

// View implements tea.Model
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	loading := m.session.Progress()

	switch {
	case m.session.Err() != nil:
		b.WriteString(errorStyle.Render(m.session.Err().Error()))
		b.WriteString("\n")
	case loading.Phase == asciiplay.PhaseLoadingText:
		b.WriteString(loading.String())
		b.WriteString("\n")
	default:
		if view, ok := m.session.View(); ok {
			frame := view.Text
			if view.Surface != nil {
				frame = RenderRaster(view.Surface.Raster, len(asciiplay.TextLines(view.Text)))
			}
			b.WriteString(frame)
			if !strings.HasSuffix(frame, "\n") {
				b.WriteString("\n")
			}
		}
	}

	b.WriteString(statusStyle.Render(m.status()))
	b.WriteString("\n")

	if loading.Phase == asciiplay.PhaseLoadingColors && loading.Total > 0 {
		fraction := float64(loading.Loaded) / float64(loading.Total)
		b.WriteString(m.bar.ViewAs(fraction))
		fmt.Fprintf(&b, " colors %d/%d\n", loading.Loaded, loading.Total)
	}

	b.WriteString(helpStyle.Render(helpText))
	return b.String()
}

func (m *Model) status() string {
	player := m.session.Player()
	total := player.Total()
	index := player.Index()
	if total > 0 {
		index++
	}

	onOff := func(v bool) string {
		if v {
			return "on"
		}
		return "off"
	}

	return fmt.Sprintf("%s  %s  %d/%d  %d fps  loop %s  color %s",
		m.session.Title(), player.State(), index, total, player.FPS(),
		onOff(player.Loop()), onOff(m.session.ColorEnabled()))
}

// RenderRaster draws raster batches as terminal text, one styled span per
// batch, over rows lines. Cells not covered by a batch are spaces.
func RenderRaster(raster *asciiplay.Raster, rows int) string {
	lines := make([]strings.Builder, rows)
	cols := make([]int, rows)

	for _, batch := range raster.Batches {
		if batch.Row < 0 || batch.Row >= rows {
			continue
		}
		line := &lines[batch.Row]
		if gap := batch.Column - cols[batch.Row]; gap > 0 {
			line.WriteString(strings.Repeat(" ", gap))
			cols[batch.Row] += gap
		}
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(batch.Hex()))
		line.WriteString(style.Render(batch.Text))
		cols[batch.Row] += utf8.RuneCountInString(batch.Text)
	}

	var b strings.Builder
	for i := range lines {
		b.WriteString(lines[i].String())
		b.WriteString("\n")
	}
	return b.String()
}
