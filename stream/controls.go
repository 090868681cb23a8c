package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmpim/asciiplay"
)

// State is the player state reported to clients.
type State struct {
	Title    string   `json:"title"`
	Path     string   `json:"path"`
	Phase    string   `json:"phase"`
	Loading  string   `json:"loading,omitempty"`
	Progress Progress `json:"progress"`
	Error    string   `json:"error,omitempty"`

	State    string  `json:"state"`
	Index    int     `json:"index"`
	Total    int     `json:"total"`
	Fraction float64 `json:"fraction"`
	FPS      int     `json:"fps"`
	Loop     bool    `json:"loop"`

	Color    bool    `json:"color"`
	FontSize float64 `json:"fontSize"`
	Epoch    int     `json:"epoch"`

	Audio   AudioState `json:"audio"`
	Clients int        `json:"clients"`
}

var errNoFrames = &asciiplay.Error{
	Kind: asciiplay.InvalidInput,
	Op:   "stream",
	Msg:  "no frames loaded",
}

// State returns the current player state.
func (m *Manager) State() State {
	s := m.session
	player := s.Player()
	progress := s.Progress()

	state := State{
		Title:    s.Title(),
		Path:     s.Path(),
		Phase:    progress.Phase.String(),
		Progress: progress,
		State:    player.State().String(),
		Index:    player.Index(),
		Total:    player.Total(),
		Fraction: player.Progress(),
		FPS:      player.FPS(),
		Loop:     player.Loop(),
		Color:    s.ColorEnabled(),
		FontSize: s.FontSize(),
		Epoch:    asciiplay.FontEpoch(s.FontSize()),
		Audio:    m.audio.State(),
		Clients:  m.Clients(),
	}

	switch progress.Phase {
	case asciiplay.PhaseLoadingText, asciiplay.PhaseLoadingColors:
		state.Loading = progress.String()
	}
	if err := s.Err(); err != nil {
		state.Error = err.Error()
	}

	return state
}

// Open loads path and attaches its audio track, if any, to playback.
func (m *Manager) Open(ctx context.Context, path string) (State, error) {
	m.session.Player().SetAudio(nil)

	if err := m.session.Open(ctx, path); err != nil {
		m.audio.Unload()
		return m.State(), err
	}

	if uri := m.session.AudioURI(); uri != "" {
		m.audio.Load(uri)
		m.session.Player().SetAudio(m.audio)
	} else {
		m.audio.Unload()
	}

	m.log.WithField("path", path).Info("opened frames")
	state := m.State()
	m.broadcastJSON(SubscriptionMetadata, PacketMetadata, state)
	m.broadcastFrame(state.Index)
	return state, nil
}

// Play starts playback from the current frame.
func (m *Manager) Play() (State, error) {
	if m.session.FrameCount() == 0 {
		return m.State(), errNoFrames
	}
	m.session.Player().Start()
	return m.State(), nil
}

// Pause stops playback on the current frame.
func (m *Manager) Pause() State {
	m.session.Player().Stop()
	return m.State()
}

// Toggle flips between playing and paused.
func (m *Manager) Toggle() (State, error) {
	if m.session.Player().Playing() {
		return m.Pause(), nil
	}
	return m.Play()
}

// Seek jumps to fraction, in [0, 1], of the way through the frames.
func (m *Manager) Seek(fraction float64) (State, error) {
	if m.session.FrameCount() == 0 {
		return m.State(), errNoFrames
	}
	if fraction < 0 || fraction > 1 {
		return m.State(), &asciiplay.Error{
			Kind: asciiplay.InvalidInput,
			Op:   "Seek",
			Msg:  fmt.Sprintf("position must be between 0 and 1, got %v", fraction),
		}
	}
	m.session.Player().Seek(fraction)
	return m.State(), nil
}

// Step moves delta frames, wrapping at either end.
func (m *Manager) Step(delta int) (State, error) {
	if m.session.FrameCount() == 0 {
		return m.State(), errNoFrames
	}
	m.session.Player().Step(delta)
	return m.State(), nil
}

// SetFPS changes the frame rate.
func (m *Manager) SetFPS(fps int) (State, error) {
	if fps <= 0 {
		return m.State(), &asciiplay.Error{
			Kind: asciiplay.InvalidInput,
			Op:   "SetFPS",
			Msg:  fmt.Sprintf("fps must be positive, got %d", fps),
		}
	}
	m.session.Player().SetFPS(fps)
	state := m.State()
	m.broadcastJSON(SubscriptionMetadata, PacketMetadata, state)
	return state, nil
}

// SetFontSize changes the font size used for rasterizing.
func (m *Manager) SetFontSize(size float64) (State, error) {
	if err := m.session.SetFontSize(size); err != nil {
		return m.State(), &asciiplay.Error{
			Kind: asciiplay.InvalidInput,
			Op:   "SetFontSize",
			Err:  err,
		}
	}
	return m.State(), nil
}

// Fit sizes the font to a container of width by height pixels.
func (m *Manager) Fit(width, height float64) (State, error) {
	if width <= 0 || height <= 0 {
		return m.State(), &asciiplay.Error{
			Kind: asciiplay.InvalidInput,
			Op:   "Fit",
			Msg:  "container size must be positive",
		}
	}
	if _, err := m.session.FitFontSize(width, height); err != nil {
		return m.State(), err
	}
	return m.State(), nil
}

// SetColor switches colored display on or off.
func (m *Manager) SetColor(enabled bool) State {
	m.session.SetColorEnabled(enabled)
	return m.State()
}

// SetLoop switches looping on or off.
func (m *Manager) SetLoop(loop bool) State {
	m.session.Player().SetLoop(loop)
	state := m.State()
	m.broadcastJSON(SubscriptionMetadata, PacketMetadata, state)
	return state
}

// SetVolume changes the client audio volume.
func (m *Manager) SetVolume(volume float64, muted bool) State {
	m.audio.SetVolume(volume)
	m.audio.SetMuted(muted)
	return m.State()
}

// IsNoFrames reports whether err was returned because nothing is loaded.
func IsNoFrames(err error) bool {
	return errors.Is(err, errNoFrames)
}
