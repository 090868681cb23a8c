package stream

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tmpim/asciiplay"
	"github.com/tmpim/asciiplay/host"
	"github.com/tmpim/asciiplay/loader"
	"github.com/tmpim/asciiplay/playback"
	"github.com/tmpim/asciiplay/rendercache"
)

// UpdateKind says what changed in a session.
type UpdateKind int

// Update kinds.
const (
	// UpdateFrame is sent when the displayed index or playback state
	// changes.
	UpdateFrame UpdateKind = iota + 1
	// UpdateState is sent when a load starts, fails or changes phase.
	UpdateState
	// UpdateProgress is sent after every color attempt.
	UpdateProgress
	// UpdateDisplay is sent when the font size or color mode changes.
	UpdateDisplay
)

// Update is a change notification from a session.
type Update struct {
	Kind  UpdateKind
	Event playback.Event
}

// SessionOptions configures a Session.
type SessionOptions struct {
	Access     host.Access
	FPS        int
	Loop       bool
	Color      bool
	FontSize   float64
	Metrics    asciiplay.Metrics
	Fit        asciiplay.FitOptions
	Rasterizer asciiplay.Rasterizer
	Policy     asciiplay.YieldPolicy
	// Paint makes the render cache paint surfaces onto images.
	Paint    bool
	OnUpdate func(Update)
	// NewTicker overrides the playback timer source.
	NewTicker func(time.Duration) playback.Ticker
	Log       logrus.FieldLogger
}

// Progress reports how far a load has come.
type Progress struct {
	Phase asciiplay.LoadingPhase `json:"phase"`
	// Loaded counts frames processed in the current phase.
	Loaded int `json:"loaded"`
	Total  int `json:"total"`
	// Colored counts frames that received color data.
	Colored int `json:"colored"`
}

// String renders the progress as a loading message.
func (p Progress) String() string {
	if p.Total == 0 {
		return "Loading frames..."
	}
	pct := int(float64(p.Loaded) / float64(p.Total) * 100)
	return fmt.Sprintf("Loading frames... %d / %d (%d%%)", p.Loaded, p.Total, pct)
}

// View is what should be displayed for the current index.
type View struct {
	Index int
	Total int
	Text  string
	// Surface is set when the frame is shown in color.
	Surface *asciiplay.Surface
	// Hit reports whether the surface came from the warm cache.
	Hit bool
}

// Session owns one directory load at a time: its frames, loading phase,
// render cache and playback. Opening a new path supersedes all background
// work of the previous one.
type Session struct {
	access     host.Access
	loader     *loader.Loader
	cache      *rendercache.Cache
	player     *playback.Scheduler
	fit        asciiplay.FitOptions
	metrics    asciiplay.Metrics
	defaultFPS int
	onUpdate   func(Update)
	log        logrus.FieldLogger
	gen        asciiplay.Generation
	ctx        context.Context
	cancel     func()
	background sync.WaitGroup

	mutex    sync.RWMutex
	path     string
	phase    asciiplay.LoadingPhase
	files    []asciiplay.FrameFile
	seq      *asciiplay.Sequence
	details  host.ProjectDetails
	audioURI string
	err      error
	progress Progress
	color    bool
	fontSize float64
	loaded   chan struct{}
}

// NewSession creates an idle session and starts its cache warmer.
func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Access == nil {
		return nil, fmt.Errorf("stream: NewSession: access must be specified")
	}
	if opts.FontSize <= 0 {
		return nil, fmt.Errorf("stream: NewSession: font size must be positive")
	}

	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	if opts.FPS <= 0 {
		opts.FPS = 24
	}
	if opts.Metrics.CharWidthRatio == 0 {
		opts.Metrics.CharWidthRatio = asciiplay.DefaultCharWidthRatio
	}
	if opts.Metrics.LineHeightRatio == 0 {
		opts.Metrics.LineHeightRatio = asciiplay.DefaultLineHeightRatio
	}
	if opts.Fit.MaxFontSize == 0 {
		opts.Fit = asciiplay.DefaultFitOptions
		opts.Fit.CharWidthRatio = opts.Metrics.CharWidthRatio
		opts.Fit.LineHeightRatio = opts.Metrics.LineHeightRatio
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		access:     opts.Access,
		fit:        opts.Fit,
		metrics:    opts.Metrics,
		defaultFPS: opts.FPS,
		onUpdate:   opts.OnUpdate,
		log:        log.WithField("component", "session"),
		ctx:        ctx,
		cancel:     cancel,
		color:      opts.Color,
		fontSize:   opts.FontSize,
		loaded:     closedChan(),
	}

	s.player = playback.New(playback.Options{
		FPS:       opts.FPS,
		Loop:      opts.Loop,
		NewTicker: opts.NewTicker,
		Log:       log,
		OnChange: func(e playback.Event) {
			s.emit(Update{Kind: UpdateFrame, Event: e})
		},
	})

	ld, err := loader.New(loader.Options{
		Access: opts.Access,
		Policy: opts.Policy,
		State:  s.playbackState,
		Log:    log,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	s.loader = ld

	s.cache = rendercache.New(rendercache.Options{
		Rasterizer: opts.Rasterizer,
		Paint:      opts.Paint,
		Policy:     opts.Policy,
		State:      s.playbackState,
		Log:        log,
	})
	if err := s.cache.Reset(nil, s.currentMetrics()); err != nil {
		cancel()
		return nil, err
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		s.cache.Run(ctx)
	}()

	return s, nil
}

func closedChan() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

func (s *Session) playbackState() (playing, colorEnabled bool) {
	return s.player.Playing(), s.ColorEnabled()
}

func (s *Session) emit(u Update) {
	if s.onUpdate != nil {
		s.onUpdate(u)
	}
}

// Player returns the session's playback scheduler.
func (s *Session) Player() *playback.Scheduler {
	return s.player
}

// Cache returns the session's render cache.
func (s *Session) Cache() *rendercache.Cache {
	return s.cache
}

// Open loads path, a frame directory or a single frame file. The text
// phase runs before Open returns; on failure no frames are published and
// the error is kept as the session's only visible error. The color phase
// continues in the background.
func (s *Session) Open(ctx context.Context, path string) error {
	token := s.gen.Next()
	loaded := make(chan struct{})

	s.player.Reset(0)

	s.mutex.Lock()
	s.path = path
	s.phase = asciiplay.PhaseLoadingText
	s.files = nil
	s.seq = nil
	s.details = host.ProjectDetails{}
	s.audioURI = ""
	s.err = nil
	s.progress = Progress{Phase: asciiplay.PhaseLoadingText}
	s.loaded = loaded
	s.mutex.Unlock()

	if err := s.cache.Reset(nil, s.currentMetrics()); err != nil {
		return s.fail(token, loaded, err)
	}
	s.emit(Update{Kind: UpdateState})

	log := s.log.WithField("path", path)

	details, err := s.access.ReadProjectDetails(ctx, path)
	if err != nil {
		log.WithError(err).Warn("failed to read project details")
	}
	fps := s.defaultFPS
	if details.FPS > 0 {
		fps = details.FPS
	}
	s.player.SetFPS(fps)

	var audioURI string
	if details.HasAudio() {
		audioURI, err = s.access.ReadAudioAsDataURI(ctx, details.AudioPath)
		if err != nil {
			log.WithError(err).Warn("failed to read audio")
			details.AudioPath = ""
		}
	}

	files, err := s.access.EnumerateFrames(ctx, path)
	if err != nil {
		return s.fail(token, loaded, fmt.Errorf("failed to list frames: %w", err))
	}
	if len(files) == 0 {
		return s.fail(token, loaded, asciiplay.NotFoundError("Open", path, "no frames found in directory"))
	}

	s.setProgress(token, Progress{Phase: asciiplay.PhaseLoadingText, Total: len(files)})

	frames, err := s.loader.LoadText(ctx, files, func(n, total int) {
		s.setProgress(token, Progress{Phase: asciiplay.PhaseLoadingText, Loaded: n, Total: total})
	})
	if err != nil {
		return s.fail(token, loaded, err)
	}

	seq := asciiplay.NewSequence(token, frames)

	s.mutex.Lock()
	if !token.Current() {
		s.mutex.Unlock()
		close(loaded)
		return nil
	}
	s.files = files
	s.seq = seq
	s.details = details
	s.audioURI = audioURI
	s.phase = asciiplay.PhaseLoadingColors
	s.progress = Progress{Phase: asciiplay.PhaseLoadingColors, Total: len(files)}
	s.mutex.Unlock()

	if err := s.cache.Reset(seq, s.currentMetrics()); err != nil {
		return s.fail(token, loaded, err)
	}
	s.player.Reset(len(frames))

	log.WithFields(logrus.Fields{
		"frames": len(frames),
		"fps":    s.player.FPS(),
		"audio":  details.HasAudio(),
	}).Info("frames loaded")
	s.emit(Update{Kind: UpdateState})

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		s.loadColors(token, loaded, seq, files)
	}()

	return nil
}

func (s *Session) loadColors(token asciiplay.Token, loaded chan struct{},
	seq *asciiplay.Sequence, files []asciiplay.FrameFile) {
	defer close(loaded)

	result, err := s.loader.LoadColors(s.ctx, seq, files,
		func(index, total int, cells *asciiplay.ColoredCells) {
			if cells != nil {
				s.cache.Notify(index)
			}

			s.mutex.Lock()
			if !token.Current() {
				s.mutex.Unlock()
				return
			}
			s.progress.Loaded = index + 1
			if cells != nil {
				s.progress.Colored++
			}
			s.mutex.Unlock()

			s.emit(Update{Kind: UpdateProgress})
		})
	if err != nil || result.Abandoned {
		return
	}

	s.mutex.Lock()
	if !token.Current() {
		s.mutex.Unlock()
		return
	}
	s.phase = asciiplay.PhaseComplete
	s.progress.Phase = asciiplay.PhaseComplete
	s.mutex.Unlock()

	s.log.WithFields(logrus.Fields{
		"path":    s.Path(),
		"colored": result.Colored,
	}).Info("color loading complete")
	s.emit(Update{Kind: UpdateState})
}

func (s *Session) setProgress(token asciiplay.Token, p Progress) {
	s.mutex.Lock()
	if token.Current() {
		s.progress = p
	}
	s.mutex.Unlock()
}

func (s *Session) fail(token asciiplay.Token, loaded chan struct{}, err error) error {
	close(loaded)

	s.mutex.Lock()
	if !token.Current() {
		s.mutex.Unlock()
		return err
	}
	s.phase = asciiplay.PhaseIdle
	s.err = err
	s.files = nil
	s.seq = nil
	s.progress = Progress{}
	s.mutex.Unlock()

	s.log.WithError(err).WithField("path", s.Path()).Error("failed to load frames")
	s.emit(Update{Kind: UpdateState})
	return err
}

// Loaded returns a channel closed once the current load has finished or
// failed.
func (s *Session) Loaded() <-chan struct{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.loaded
}

// Close stops all background work of the session.
func (s *Session) Close() {
	s.gen.Next()
	s.player.Close()
	s.cancel()
	s.background.Wait()
}

// Path returns the opened path.
func (s *Session) Path() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.path
}

// Title returns a display name for the opened path.
func (s *Session) Title() string {
	path := s.Path()
	if path == "" {
		return ""
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Phase returns the loading phase.
func (s *Session) Phase() asciiplay.LoadingPhase {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.phase
}

// Progress returns the loading progress.
func (s *Session) Progress() Progress {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.progress
}

// Err returns the error of the last failed load.
func (s *Session) Err() error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.err
}

// Files returns the enumerated frame files.
func (s *Session) Files() []asciiplay.FrameFile {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return append([]asciiplay.FrameFile(nil), s.files...)
}

// FrameCount returns the number of loaded frames.
func (s *Session) FrameCount() int {
	return s.sequence().Len()
}

// Frame returns the frame at index.
func (s *Session) Frame(index int) (asciiplay.Frame, bool) {
	return s.sequence().Frame(index)
}

func (s *Session) sequence() *asciiplay.Sequence {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.seq
}

// Details returns the project details of the opened path.
func (s *Session) Details() host.ProjectDetails {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.details
}

// AudioURI returns the audio track as a data URI, or "" without audio.
func (s *Session) AudioURI() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.audioURI
}

// ColorEnabled reports whether frames are displayed in color.
func (s *Session) ColorEnabled() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.color
}

// SetColorEnabled switches between colored and plain display.
func (s *Session) SetColorEnabled(enabled bool) {
	s.mutex.Lock()
	changed := s.color != enabled
	s.color = enabled
	s.mutex.Unlock()

	if changed {
		s.emit(Update{Kind: UpdateDisplay})
	}
}

// FontSize returns the current font size.
func (s *Session) FontSize() float64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.fontSize
}

func (s *Session) currentMetrics() asciiplay.Metrics {
	m := s.metrics
	m.FontSize = s.FontSize()
	return m
}

// SetFontSize changes the font size. A change of cache epoch invalidates
// every cached surface.
func (s *Session) SetFontSize(size float64) error {
	if size <= 0 {
		return fmt.Errorf("stream: SetFontSize: font size must be positive, got %v", size)
	}

	s.mutex.Lock()
	s.fontSize = size
	s.mutex.Unlock()

	if err := s.cache.SetMetrics(s.currentMetrics()); err != nil {
		return err
	}

	s.emit(Update{Kind: UpdateDisplay})
	return nil
}

// FitFontSize sizes the font so the first frame fits a container of the
// given pixel size. It returns the font size in effect afterwards.
func (s *Session) FitFontSize(width, height float64) (float64, error) {
	frame, ok := s.Frame(0)
	if !ok {
		return s.FontSize(), nil
	}

	size, ok := asciiplay.FitFontSize(frame.Content, width, height, s.fit)
	if !ok {
		return s.FontSize(), nil
	}

	return size, s.SetFontSize(size)
}

// View returns what to display at the current index. Colored frames come
// from the render cache; a miss renders once synchronously.
func (s *Session) View() (View, bool) {
	index := s.player.Index()
	return s.ViewAt(index)
}

// ViewAt returns what to display at index.
func (s *Session) ViewAt(index int) (View, bool) {
	seq := s.sequence()
	frame, ok := seq.Frame(index)
	if !ok {
		return View{}, false
	}

	view := View{
		Index: index,
		Total: seq.Len(),
		Text:  frame.Content,
	}

	if s.ColorEnabled() && frame.Cells != nil {
		view.Surface, view.Hit = s.cache.Get(index)
	}

	return view, true
}
