package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func newTestAudio() (*ClientAudio, *clock, *[]AudioCommand) {
	var sent []AudioCommand
	a := NewClientAudio(func(c AudioCommand) { sent = append(sent, c) })
	c := &clock{now: time.Unix(1000, 0)}
	a.now = c.Now
	return a, c, &sent
}

func TestClientAudioClock(t *testing.T) {
	a, c, sent := newTestAudio()

	a.Load("data:audio/mpeg;base64,AA==")
	require.Len(t, *sent, 1)
	assert.Equal(t, AudioLoad, (*sent)[0].Command)
	assert.Equal(t, "data:audio/mpeg;base64,AA==", (*sent)[0].Source)

	a.Play()
	c.now = c.now.Add(1500 * time.Millisecond)
	assert.InDelta(t, 1.5, a.Position(), 1e-9)

	a.Pause()
	c.now = c.now.Add(time.Hour)
	assert.InDelta(t, 1.5, a.Position(), 1e-9)

	a.Seek(-4)
	assert.Equal(t, 0.0, a.Position())

	a.Seek(2)
	a.Play()
	c.now = c.now.Add(time.Second)
	state := a.State()
	assert.True(t, state.Loaded)
	assert.True(t, state.Playing)
	assert.InDelta(t, 3, state.Position, 1e-9)

	var commands []string
	for _, cmd := range *sent {
		commands = append(commands, cmd.Command)
	}
	assert.Equal(t, []string{AudioLoad, AudioPlay, AudioPause, AudioSeek, AudioSeek, AudioPlay}, commands)
}

func TestClientAudioIdempotent(t *testing.T) {
	a, _, sent := newTestAudio()

	a.Unload()
	a.Pause()
	assert.Empty(t, *sent)

	a.Load("x")
	a.Play()
	a.Play()
	assert.Len(t, *sent, 2)

	a.Unload()
	assert.Equal(t, AudioUnload, (*sent)[2].Command)
	assert.False(t, a.State().Loaded)
	assert.False(t, a.State().Playing)

	_, ok := a.LoadCommand()
	assert.False(t, ok)
}

func TestClientAudioVolume(t *testing.T) {
	a, _, sent := newTestAudio()
	assert.Equal(t, 1.0, a.State().Volume)

	a.SetVolume(3)
	assert.Equal(t, 1.0, a.State().Volume)
	a.SetVolume(-1)
	assert.Equal(t, 0.0, a.State().Volume)
	a.SetVolume(0.25)
	a.SetMuted(true)

	last := (*sent)[len(*sent)-1]
	assert.Equal(t, AudioVolume, last.Command)
	assert.Equal(t, 0.25, last.Volume)
	assert.True(t, last.Muted)
}

func TestClientAudioLoadCommand(t *testing.T) {
	a, c, _ := newTestAudio()
	a.Load("src")
	a.Play()
	c.now = c.now.Add(2 * time.Second)

	cmd, ok := a.LoadCommand()
	require.True(t, ok)
	assert.Equal(t, AudioLoad, cmd.Command)
	assert.Equal(t, "src", cmd.Source)
	assert.True(t, cmd.Playing)
	assert.InDelta(t, 2, cmd.Position, 1e-9)
}
