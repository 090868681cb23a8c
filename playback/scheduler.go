// Package playback advances the current frame on a fixed cadence and keeps
// an external audio track in step with it.
package playback

import (
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the playback state.
type State int

// Playback states.
const (
	Stopped State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "stopped"
}

// DriftThreshold is how far the audio may drift from the frame position
// before starting playback re-seeks it.
const DriftThreshold = 0.1

// Audio is an external audio track synchronized to playback.
type Audio interface {
	// Position returns the current playback position in seconds.
	Position() float64
	Seek(seconds float64)
	Play()
	Pause()
}

// Ticker delivers timer ticks.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Event describes the scheduler after a change.
type Event struct {
	Index int
	Total int
	State State
}

// Options configures a Scheduler.
type Options struct {
	FPS  int
	Loop bool
	// Audio may be nil.
	Audio Audio
	// OnChange is called, outside the scheduler's lock, after the index or
	// state changes.
	OnChange func(Event)
	// NewTicker overrides the timer source.
	NewTicker func(time.Duration) Ticker
	Log       logrus.FieldLogger
}

// Interval returns the tick period for fps: max(1, round(1000/fps)) ms.
func Interval(fps int) time.Duration {
	if fps <= 0 {
		return time.Second
	}
	ms := math.Round(1000 / float64(fps))
	if ms < 1 {
		ms = 1
	}
	return time.Duration(ms) * time.Millisecond
}

// Scheduler advances the frame index while playing.
type Scheduler struct {
	mutex  sync.Mutex
	state  State
	index  int
	total  int
	fps    int
	loop   bool
	audio  Audio
	timer  chan struct{}
	events []Event

	onChange  func(Event)
	newTicker func(time.Duration) Ticker
	log       logrus.FieldLogger
}

// New returns a stopped scheduler with no frames.
func New(opts Options) *Scheduler {
	if opts.FPS <= 0 {
		opts.FPS = 24
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewTimeTicker
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	return &Scheduler{
		fps:       opts.FPS,
		loop:      opts.Loop,
		audio:     opts.Audio,
		onChange:  opts.OnChange,
		newTicker: opts.NewTicker,
		log:       opts.Log.WithField("component", "playback"),
	}
}

// Start begins playback from the current index. It has no effect without
// frames.
func (s *Scheduler) Start() {
	s.mutex.Lock()
	if s.state == Playing || s.total == 0 {
		s.mutex.Unlock()
		return
	}
	s.state = Playing

	if s.audio != nil {
		target := float64(s.index) / float64(s.fps)
		if math.Abs(s.audio.Position()-target) > DriftThreshold {
			s.audio.Seek(target)
		}
		s.audio.Play()
	}

	s.startTimerLocked()
	s.emitLocked()
	s.flush()
}

// Stop halts playback and holds the current index.
func (s *Scheduler) Stop() {
	s.mutex.Lock()
	s.stopLocked()
	s.flush()
}

func (s *Scheduler) stopLocked() {
	s.stopTimerLocked()
	if s.state != Playing {
		return
	}
	s.state = Stopped
	if s.audio != nil {
		s.audio.Pause()
	}
	s.emitLocked()
}

// Toggle starts a stopped scheduler and stops a playing one.
func (s *Scheduler) Toggle() {
	if s.State() == Playing {
		s.Stop()
	} else {
		s.Start()
	}
}

// Tick advances one frame. At the last frame it wraps to the first when
// looping, and otherwise stops on the last frame.
func (s *Scheduler) Tick() {
	s.mutex.Lock()
	s.tickLocked()
	s.flush()
}

func (s *Scheduler) tickLocked() {
	if s.state != Playing || s.total == 0 {
		return
	}

	if s.index >= s.total-1 {
		if !s.loop {
			s.stopLocked()
			return
		}
		s.index = 0
	} else {
		s.index++
	}

	s.emitLocked()
}

// Seek stops playback and jumps to fraction of the way through the
// frames, re-seeking audio to the exact frame time.
func (s *Scheduler) Seek(fraction float64) {
	s.mutex.Lock()
	if s.total == 0 || math.IsNaN(fraction) || math.IsInf(fraction, 0) {
		s.mutex.Unlock()
		return
	}

	s.stopLocked()

	fraction = math.Max(0, math.Min(1, fraction))
	s.index = int(math.Round(fraction * float64(s.total-1)))

	if s.audio != nil {
		s.audio.Seek(float64(s.index) / float64(s.fps))
	}

	s.emitLocked()
	s.flush()
}

// Step stops playback and moves delta frames, wrapping at either end.
func (s *Scheduler) Step(delta int) {
	s.mutex.Lock()
	if s.total == 0 {
		s.mutex.Unlock()
		return
	}

	s.stopLocked()

	s.index = ((s.index+delta)%s.total + s.total) % s.total

	s.emitLocked()
	s.flush()
}

// SetFPS changes the frame rate, restarting the timer at the new cadence
// when playing. Non-positive rates are ignored.
func (s *Scheduler) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	s.mutex.Lock()
	if fps != s.fps {
		s.fps = fps
		if s.state == Playing {
			s.startTimerLocked()
		}
	}
	s.mutex.Unlock()
}

// SetTotal changes the frame count, keeping the index when it is still in
// range. Playing continues at the same cadence with a fresh timer.
func (s *Scheduler) SetTotal(total int) {
	if total < 0 {
		total = 0
	}

	s.mutex.Lock()
	s.total = total
	if s.index >= total {
		s.index = 0
		if total > 0 {
			s.index = total - 1
		}
	}

	if s.state == Playing {
		if total == 0 {
			s.stopLocked()
		} else {
			s.startTimerLocked()
		}
	}

	s.emitLocked()
	s.flush()
}

// Reset stops playback and rewinds to the first of total frames.
func (s *Scheduler) Reset(total int) {
	s.mutex.Lock()
	s.stopLocked()
	s.index = 0
	s.mutex.Unlock()
	s.SetTotal(total)
}

// SetLoop enables or disables wrapping at the last frame.
func (s *Scheduler) SetLoop(loop bool) {
	s.mutex.Lock()
	s.loop = loop
	s.mutex.Unlock()
}

// SetAudio replaces the synchronized audio track; nil detaches it.
func (s *Scheduler) SetAudio(audio Audio) {
	s.mutex.Lock()
	if s.audio != nil && s.state == Playing {
		s.audio.Pause()
	}
	s.audio = audio
	s.mutex.Unlock()
}

// Close stops the timer.
func (s *Scheduler) Close() {
	s.Stop()
}

// Index returns the current frame index.
func (s *Scheduler) Index() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.index
}

// State returns the playback state.
func (s *Scheduler) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// Playing reports whether the scheduler is playing.
func (s *Scheduler) Playing() bool {
	return s.State() == Playing
}

// FPS returns the frame rate.
func (s *Scheduler) FPS() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.fps
}

// Loop reports whether looping is enabled.
func (s *Scheduler) Loop() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.loop
}

// Total returns the frame count.
func (s *Scheduler) Total() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.total
}

// Progress returns the position as a fraction of total-1, or 0 with fewer
// than two frames.
func (s *Scheduler) Progress() float64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.total <= 1 {
		return 0
	}
	return float64(s.index) / float64(s.total-1)
}

func (s *Scheduler) startTimerLocked() {
	s.stopTimerLocked()

	done := make(chan struct{})
	s.timer = done
	t := s.newTicker(Interval(s.fps))

	go func() {
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C():
				s.mutex.Lock()
				if s.timer != done {
					s.mutex.Unlock()
					return
				}
				s.tickLocked()
				s.flush()
			}
		}
	}()
}

func (s *Scheduler) stopTimerLocked() {
	if s.timer != nil {
		close(s.timer)
		s.timer = nil
	}
}

func (s *Scheduler) emitLocked() {
	s.events = append(s.events, Event{Index: s.index, Total: s.total, State: s.state})
}

// flush releases the lock and delivers pending events.
func (s *Scheduler) flush() {
	events := s.events
	s.events = nil
	onChange := s.onChange
	s.mutex.Unlock()

	if onChange == nil {
		return
	}
	for _, e := range events {
		onChange(e)
	}
}
