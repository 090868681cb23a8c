package host

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"
)

// DefaultWatchPatterns match every file a frame directory load reads.
var DefaultWatchPatterns = []string{"*.{txt,cframe,colors}", DetailsFile, AudioFile}

// Watcher reports changes to the files of a frame directory. Bursts of
// events are coalesced into one notification per debounce window.
type Watcher struct {
	dir      string
	patterns []glob.Glob
	debounce time.Duration
	fs       *fsnotify.Watcher
	log      logrus.FieldLogger
}

// NewWatcher watches path, or the directory containing path when it is a
// file. Only base names matching one of patterns trigger notifications.
func NewWatcher(path string, patterns []string, debounce time.Duration, log logrus.FieldLogger) (*Watcher, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("host: NewWatcher: %w", err)
	}

	dir := path
	if !info.IsDir() {
		dir = filepath.Dir(path)
	}

	if len(patterns) == 0 {
		patterns = DefaultWatchPatterns
	}

	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("host: NewWatcher: bad pattern %q: %w", p, err)
		}
		compiled = append(compiled, g)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("host: NewWatcher: %w", err)
	}

	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("host: NewWatcher: watch %s: %w", dir, err)
	}

	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Watcher{
		dir:      dir,
		patterns: compiled,
		debounce: debounce,
		fs:       fsw,
		log:      log.WithFields(logrus.Fields{"component": "watcher", "directory": dir}),
	}, nil
}

// Matches reports whether a changed file should trigger a reload.
func (w *Watcher) Matches(path string) bool {
	name := filepath.Base(path)
	for _, g := range w.patterns {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Run calls onChange after every debounced burst of matching events until
// ctx is done. It closes the watcher on return.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	defer w.fs.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod || !w.Matches(event.Name) {
				continue
			}
			w.log.WithField("file", event.Name).Debug("frame directory changed")
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			onChange()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watcher error")
		}
	}
}
