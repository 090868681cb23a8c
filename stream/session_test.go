package stream

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmpim/asciiplay"
	"github.com/tmpim/asciiplay/host"
	"github.com/tmpim/asciiplay/playback"
)

func quietLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// writeProject creates a frame directory with one text frame per entry of
// frames. Frames at the indices in colored also get a red .colors file.
func writeProject(t *testing.T, frames []string, colored ...int) string {
	t.Helper()
	dir := t.TempDir()

	for i, text := range frames {
		stem := filepath.Join(dir, "frame_"+string(rune('1'+i)))
		require.NoError(t, os.WriteFile(stem+".txt", []byte(text), 0o644))
	}

	for _, i := range colored {
		rows, cols := asciiplay.GridSize(frames[i])
		cells := &asciiplay.ColoredCells{
			Width:  cols,
			Height: rows,
			Glyphs: bytes.Repeat([]byte{'#'}, rows*cols),
			RGB:    bytes.Repeat([]byte{255, 0, 0}, rows*cols),
		}
		buf := new(bytes.Buffer)
		require.NoError(t, cells.WriteColors(buf))
		stem := filepath.Join(dir, "frame_"+string(rune('1'+i)))
		require.NoError(t, os.WriteFile(stem+".colors", buf.Bytes(), 0o644))
	}

	return dir
}

type updates struct {
	mutex sync.Mutex
	kinds []UpdateKind
}

func (u *updates) record(up Update) {
	u.mutex.Lock()
	u.kinds = append(u.kinds, up.Kind)
	u.mutex.Unlock()
}

func (u *updates) count(kind UpdateKind) int {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	n := 0
	for _, k := range u.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

func newTestSession(t *testing.T, modify ...func(*SessionOptions)) *Session {
	t.Helper()
	opts := SessionOptions{
		Access:     host.NewLocal(quietLog()),
		FontSize:   10,
		Rasterizer: asciiplay.DefaultRasterizer,
		Log:        quietLog(),
		NewTicker: func(time.Duration) playback.Ticker {
			return idleTicker{}
		},
	}
	for _, m := range modify {
		m(&opts)
	}

	s, err := NewSession(opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

type idleTicker struct{}

func (idleTicker) C() <-chan time.Time { return nil }
func (idleTicker) Stop()               {}

func waitLoaded(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Loaded():
	case <-time.After(5 * time.Second):
		t.Fatal("load did not finish")
	}
}

func TestNewSessionValidates(t *testing.T) {
	_, err := NewSession(SessionOptions{FontSize: 10})
	assert.Error(t, err)

	_, err = NewSession(SessionOptions{Access: host.NewLocal(quietLog())})
	assert.Error(t, err)
}

func TestSessionOpenLoadsBothPhases(t *testing.T) {
	dir := writeProject(t, []string{"ab\ncd\n", "ef\ngh\n", "ij\nkl\n"}, 0, 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, host.DetailsFile), []byte("FPS: 12\n"), 0o644))

	var ups updates
	s := newTestSession(t, func(o *SessionOptions) { o.OnUpdate = ups.record })

	require.NoError(t, s.Open(context.Background(), dir))
	assert.Equal(t, 3, s.FrameCount())
	assert.Equal(t, 12, s.Player().FPS())
	assert.Equal(t, 0, s.Player().Index())

	waitLoaded(t, s)

	assert.Equal(t, asciiplay.PhaseComplete, s.Phase())
	assert.NoError(t, s.Err())
	progress := s.Progress()
	assert.Equal(t, 3, progress.Loaded)
	assert.Equal(t, 2, progress.Colored)

	frame, ok := s.Frame(0)
	require.True(t, ok)
	assert.Equal(t, "ab\ncd\n", frame.Content)
	require.NotNil(t, frame.Cells)
	assert.Equal(t, "abcd", string(frame.Cells.Glyphs))

	frame, _ = s.Frame(1)
	assert.Nil(t, frame.Cells)

	assert.Equal(t, filepath.Base(dir), s.Title())
	assert.Len(t, s.Files(), 3)
	assert.Equal(t, 3, ups.count(UpdateProgress))
	assert.GreaterOrEqual(t, ups.count(UpdateState), 3)
}

func TestSessionDefaultFPSWithoutDetails(t *testing.T) {
	dir := writeProject(t, []string{"a\n"})
	s := newTestSession(t, func(o *SessionOptions) { o.FPS = 30 })

	require.NoError(t, s.Open(context.Background(), dir))
	assert.Equal(t, 30, s.Player().FPS())
	assert.Empty(t, s.AudioURI())
}

func TestSessionOpenAudio(t *testing.T) {
	dir := writeProject(t, []string{"a\n"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, host.AudioFile), []byte("ID3"), 0o644))

	s := newTestSession(t)
	require.NoError(t, s.Open(context.Background(), dir))
	assert.Equal(t, "data:audio/mpeg;base64,SUQz", s.AudioURI())
	assert.True(t, s.Details().HasAudio())
}

func TestSessionOpenFailures(t *testing.T) {
	s := newTestSession(t)

	err := s.Open(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, asciiplay.ErrNotFound)
	assert.Equal(t, asciiplay.PhaseIdle, s.Phase())
	assert.Equal(t, err, s.Err())
	assert.Zero(t, s.FrameCount())
	waitLoaded(t, s)

	err = s.Open(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no frames found in directory")

	dir := writeProject(t, []string{"a\n", "b\n"})
	require.NoError(t, os.Remove(filepath.Join(dir, "frame_2.txt")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame_2.cframe"), []byte{0}, 0o644))

	err = s.Open(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame_2.txt")
	assert.ErrorIs(t, err, asciiplay.ErrFormat)
	assert.Zero(t, s.FrameCount(), "a failed text phase publishes nothing")
}

func TestSessionReopenClearsError(t *testing.T) {
	s := newTestSession(t)
	require.Error(t, s.Open(context.Background(), filepath.Join(t.TempDir(), "missing")))

	require.NoError(t, s.Open(context.Background(), writeProject(t, []string{"a\n"})))
	assert.NoError(t, s.Err())
	waitLoaded(t, s)
}

func TestSessionViewUsesCacheInColor(t *testing.T) {
	dir := writeProject(t, []string{"ab\n", "cd\n"}, 0)
	s := newTestSession(t, func(o *SessionOptions) { o.Color = true })

	require.NoError(t, s.Open(context.Background(), dir))
	waitLoaded(t, s)

	view, ok := s.View()
	require.True(t, ok)
	assert.Equal(t, 0, view.Index)
	assert.Equal(t, 2, view.Total)
	require.NotNil(t, view.Surface)
	require.Len(t, view.Surface.Raster.Batches, 1)
	assert.Equal(t, "ab", view.Surface.Raster.Batches[0].Text)

	view, _ = s.ViewAt(1)
	assert.Nil(t, view.Surface)
	assert.Equal(t, "cd\n", view.Text)

	s.SetColorEnabled(false)
	view, _ = s.ViewAt(0)
	assert.Nil(t, view.Surface)

	_, ok = s.ViewAt(9)
	assert.False(t, ok)
}

func TestSessionFontSize(t *testing.T) {
	dir := writeProject(t, []string{"abcd\nefgh\n"}, 0)
	var ups updates
	s := newTestSession(t, func(o *SessionOptions) {
		o.Color = true
		o.OnUpdate = ups.record
	})
	require.NoError(t, s.Open(context.Background(), dir))
	waitLoaded(t, s)

	assert.Error(t, s.SetFontSize(0))

	require.NoError(t, s.SetFontSize(14))
	assert.Equal(t, 14.0, s.FontSize())
	assert.Equal(t, 1400, s.Cache().Epoch())
	assert.Equal(t, 1, ups.count(UpdateDisplay))

	view, _ := s.View()
	require.NotNil(t, view.Surface)
	assert.Equal(t, 14.0, view.Surface.Raster.Metrics.FontSize)

	size, err := s.FitFontSize(240, 1000)
	require.NoError(t, err)
	assert.Equal(t, size, s.FontSize())
	assert.LessOrEqual(t, 4*size*asciiplay.DefaultCharWidthRatio, 240.0)
}

// reopeningAccess opens next on the session the first time a frame of the
// current load is read, superseding that load mid text phase.
type reopeningAccess struct {
	*host.Local
	session    *Session
	next       string
	reopened   atomic.Bool
	superseded <-chan struct{}
}

func (a *reopeningAccess) ReadFrameText(ctx context.Context, path string) (string, error) {
	if a.reopened.CompareAndSwap(false, true) {
		a.superseded = a.session.Loaded()
		if err := a.session.Open(ctx, a.next); err != nil {
			return "", err
		}
	}
	return a.Local.ReadFrameText(ctx, path)
}

func TestSessionSupersededOpenReleasesLoaded(t *testing.T) {
	first := writeProject(t, []string{"a\n", "b\n"})
	second := writeProject(t, []string{"x\n", "y\n", "z\n"})

	access := &reopeningAccess{Local: host.NewLocal(quietLog()), next: second}
	s := newTestSession(t, func(o *SessionOptions) { o.Access = access })
	access.session = s

	require.NoError(t, s.Open(context.Background(), first))

	select {
	case <-access.superseded:
	case <-time.After(5 * time.Second):
		t.Fatal("superseded load never signaled Loaded")
	}

	waitLoaded(t, s)
	assert.Equal(t, second, s.Path())
	assert.Equal(t, 3, s.FrameCount())
	assert.Equal(t, asciiplay.PhaseComplete, s.Phase())
}
