package tui

import (
	"context"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmpim/asciiplay"
	"github.com/tmpim/asciiplay/host"
	"github.com/tmpim/asciiplay/playback"
	"github.com/tmpim/asciiplay/stream"
)

type idleTicker struct{}

func (idleTicker) C() <-chan time.Time { return nil }
func (idleTicker) Stop()               {}

func newTestModel(t *testing.T, frames ...string) *Model {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	session, err := stream.NewSession(stream.SessionOptions{
		Access:     host.NewLocal(log),
		FontSize:   10,
		FPS:        12,
		Rasterizer: asciiplay.DefaultRasterizer,
		Log:        log,
		NewTicker:  func(time.Duration) playback.Ticker { return idleTicker{} },
	})
	require.NoError(t, err)
	t.Cleanup(session.Close)

	if len(frames) > 0 {
		dir := t.TempDir()
		for i, text := range frames {
			name := filepath.Join(dir, "frame_"+string(rune('1'+i))+".txt")
			require.NoError(t, os.WriteFile(name, []byte(text), 0o644))
		}
		require.NoError(t, session.Open(context.Background(), dir))
		<-session.Loaded()
	}

	return New(session)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestRenderRaster(t *testing.T) {
	raster := &asciiplay.Raster{Batches: []asciiplay.RasterBatch{
		{Text: "ab", Row: 0, Column: 1, Color: color.RGBA{R: 255, A: 255}},
		{Text: "c", Row: 0, Column: 5, Color: color.RGBA{G: 255, A: 255}},
		{Text: "z", Row: 2, Column: 0, Color: color.RGBA{B: 255, A: 255}},
		{Text: "out", Row: 9, Column: 0},
	}}

	assert.Equal(t, " ab  c\n\nz\n", RenderRaster(raster, 3))
}

func TestKeysControlPlayer(t *testing.T) {
	m := newTestModel(t, "a\n", "b\n", "c\n")
	player := m.session.Player()

	m.Update(key("right"))
	assert.Equal(t, 1, player.Index())
	m.Update(key("left"))
	m.Update(key("h"))
	assert.Equal(t, 2, player.Index())

	m.Update(key("space"))
	assert.True(t, player.Playing())
	m.Update(key("space"))
	assert.False(t, player.Playing())

	m.Update(key("+"))
	assert.Equal(t, 13, player.FPS())
	m.Update(key("-"))
	m.Update(key("_"))
	assert.Equal(t, 11, player.FPS())

	loop := player.Loop()
	m.Update(key("l"))
	assert.Equal(t, !loop, player.Loop())

	m.Update(key("c"))
	assert.True(t, m.session.ColorEnabled())
}

func TestQuit(t *testing.T) {
	m := newTestModel(t, "a\n")
	m.session.Player().Start()

	_, cmd := m.Update(key("ctrl+c"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.False(t, m.session.Player().Playing())
	assert.Empty(t, m.View())
}

func TestViewShowsFrameAndStatus(t *testing.T) {
	m := newTestModel(t, "hello\n", "world\n")

	view := m.View()
	assert.Contains(t, view, "hello\n")
	assert.Contains(t, view, "stopped  1/2  12 fps")
	assert.Contains(t, view, helpText)
}

func TestViewShowsError(t *testing.T) {
	m := newTestModel(t)
	require.Error(t, m.session.Open(context.Background(), filepath.Join(t.TempDir(), "none")))

	assert.Contains(t, m.View(), "directory does not exist")
}

func TestWindowSizeResizesBar(t *testing.T) {
	m := newTestModel(t)
	m.Update(tea.WindowSizeMsg{Width: 50, Height: 20})
	assert.Equal(t, 40, m.bar.Width)
	m.Update(tea.WindowSizeMsg{Width: 200, Height: 20})
	assert.Equal(t, 60, m.bar.Width)
}
