package stream

import (
	"math"
	"sync"
	"time"
)

// Audio commands sent to clients in PacketAudio messages.
const (
	AudioLoad   = "load"
	AudioUnload = "unload"
	AudioPlay   = "play"
	AudioPause  = "pause"
	AudioSeek   = "seek"
	AudioVolume = "volume"
)

// AudioCommand tells clients what to do with their audio element.
type AudioCommand struct {
	Command  string  `json:"command"`
	Position float64 `json:"position"`
	Playing  bool    `json:"playing"`
	Volume   float64 `json:"volume"`
	Muted    bool    `json:"muted"`
	// Source is the data URI of the track, sent with AudioLoad only.
	Source string `json:"source,omitempty"`
}

// AudioState is a snapshot of the client audio clock.
type AudioState struct {
	Loaded   bool    `json:"loaded"`
	Playing  bool    `json:"playing"`
	Position float64 `json:"position"`
	Volume   float64 `json:"volume"`
	Muted    bool    `json:"muted"`
}

// ClientAudio is the audio track played by connected clients. It keeps its
// own clock so the scheduler can measure drift without a round trip.
type ClientAudio struct {
	mutex   sync.Mutex
	send    func(AudioCommand)
	now     func() time.Time
	source  string
	playing bool
	base    float64
	started time.Time
	volume  float64
	muted   bool
}

// NewClientAudio returns an unloaded track that reports commands to send.
func NewClientAudio(send func(AudioCommand)) *ClientAudio {
	return &ClientAudio{
		send:   send,
		now:    time.Now,
		volume: 1,
	}
}

func (a *ClientAudio) positionLocked() float64 {
	if !a.playing {
		return a.base
	}
	return a.base + a.now().Sub(a.started).Seconds()
}

func (a *ClientAudio) commandLocked(cmd string) AudioCommand {
	return AudioCommand{
		Command:  cmd,
		Position: a.positionLocked(),
		Playing:  a.playing,
		Volume:   a.volume,
		Muted:    a.muted,
	}
}

func (a *ClientAudio) dispatch(c AudioCommand) {
	if a.send != nil {
		a.send(c)
	}
}

// Load replaces the track with the one at source, stopped at 0.
func (a *ClientAudio) Load(source string) {
	a.mutex.Lock()
	a.source = source
	a.playing = false
	a.base = 0
	c := a.commandLocked(AudioLoad)
	c.Source = source
	a.mutex.Unlock()

	a.dispatch(c)
}

// Unload drops the track.
func (a *ClientAudio) Unload() {
	a.mutex.Lock()
	if a.source == "" {
		a.mutex.Unlock()
		return
	}
	a.source = ""
	a.playing = false
	a.base = 0
	c := a.commandLocked(AudioUnload)
	a.mutex.Unlock()

	a.dispatch(c)
}

// LoadCommand returns the command that brings a new client up to date, or
// false without a track.
func (a *ClientAudio) LoadCommand() (AudioCommand, bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.source == "" {
		return AudioCommand{}, false
	}
	c := a.commandLocked(AudioLoad)
	c.Source = a.source
	return c, true
}

// Position returns the estimated playback position in seconds.
func (a *ClientAudio) Position() float64 {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.positionLocked()
}

// Seek moves the track to seconds.
func (a *ClientAudio) Seek(seconds float64) {
	a.mutex.Lock()
	a.base = math.Max(0, seconds)
	a.started = a.now()
	c := a.commandLocked(AudioSeek)
	a.mutex.Unlock()

	a.dispatch(c)
}

// Play resumes the track.
func (a *ClientAudio) Play() {
	a.mutex.Lock()
	if a.playing {
		a.mutex.Unlock()
		return
	}
	a.playing = true
	a.started = a.now()
	c := a.commandLocked(AudioPlay)
	a.mutex.Unlock()

	a.dispatch(c)
}

// Pause holds the track at its current position.
func (a *ClientAudio) Pause() {
	a.mutex.Lock()
	if !a.playing {
		a.mutex.Unlock()
		return
	}
	a.base = a.positionLocked()
	a.playing = false
	c := a.commandLocked(AudioPause)
	a.mutex.Unlock()

	a.dispatch(c)
}

// SetVolume sets the volume, clamped to [0, 1].
func (a *ClientAudio) SetVolume(volume float64) {
	a.mutex.Lock()
	a.volume = math.Max(0, math.Min(1, volume))
	c := a.commandLocked(AudioVolume)
	a.mutex.Unlock()

	a.dispatch(c)
}

// SetMuted mutes or unmutes the track.
func (a *ClientAudio) SetMuted(muted bool) {
	a.mutex.Lock()
	a.muted = muted
	c := a.commandLocked(AudioVolume)
	a.mutex.Unlock()

	a.dispatch(c)
}

// State returns a snapshot of the clock.
func (a *ClientAudio) State() AudioState {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return AudioState{
		Loaded:   a.source != "",
		Playing:  a.playing,
		Position: a.positionLocked(),
		Volume:   a.volume,
		Muted:    a.muted,
	}
}
