// Package loader loads frame sequences in two phases: all text first, so
// playback can start immediately, then color companions in the background.
package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tmpim/asciiplay"
	"github.com/tmpim/asciiplay/host"
)

// Options configures a Loader.
type Options struct {
	Access host.Access
	// Policy paces the color phase between frames.
	Policy asciiplay.YieldPolicy
	// State reports the live playback state to the yield policy.
	State asciiplay.PlaybackState
	Log   logrus.FieldLogger
}

func (o *Options) validate() error {
	if o.Access == nil {
		return errors.New("loader: New: access must be specified")
	}
	if o.Policy.Backoff < 0 || o.Policy.Min < 0 {
		return errors.New("loader: New: yield intervals must not be negative")
	}
	return nil
}

// Loader runs the text and color phases over an ordered frame list.
type Loader struct {
	access host.Access
	policy asciiplay.YieldPolicy
	state  asciiplay.PlaybackState
	log    logrus.FieldLogger
}

// New returns a loader.
func New(opts Options) (*Loader, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Loader{
		access: opts.Access,
		policy: opts.Policy,
		state:  opts.State,
		log:    log.WithField("component", "loader"),
	}, nil
}

// TextProgressFunc is called after each frame text is read.
type TextProgressFunc func(loaded, total int)

// LoadText reads the text of every frame in order. Any failure aborts the
// phase and nothing is returned but the error, which names the frame.
func (l *Loader) LoadText(ctx context.Context, files []asciiplay.FrameFile,
	progress TextProgressFunc) ([]asciiplay.Frame, error) {
	frames := make([]asciiplay.Frame, 0, len(files))

	for i, file := range files {
		content, err := l.access.ReadFrameText(ctx, file.Path)
		if err != nil {
			return nil, fmt.Errorf("loader: failed to read frame %s: %w", file.Name, err)
		}

		frames = append(frames, asciiplay.Frame{Content: content})

		if progress != nil {
			progress(i+1, len(files))
		}
	}

	return frames, nil
}

// ColorProgressFunc is called after every color attempt with the processed
// index, the total and the attached payload, or nil when the frame has no
// usable color data.
type ColorProgressFunc func(index, total int, cells *asciiplay.ColoredCells)

// ColorResult summarizes a color phase.
type ColorResult struct {
	// Colored counts frames that received a payload.
	Colored int
	// Abandoned is set when the sequence's generation was superseded
	// before the phase finished.
	Abandoned bool
}

// LoadColors attaches color payloads to seq in enumeration order. Color is
// best effort: a frame whose companion is missing or malformed simply stays
// uncolored. The phase stops silently as soon as seq's generation is no
// longer current; only ctx cancellation is returned as an error.
func (l *Loader) LoadColors(ctx context.Context, seq *asciiplay.Sequence,
	files []asciiplay.FrameFile, progress ColorProgressFunc) (ColorResult, error) {
	var result ColorResult
	token := seq.Token()
	total := len(files)

	for i, file := range files {
		if !token.Current() {
			result.Abandoned = true
			return result, nil
		}

		cells := l.readCells(ctx, seq, i, file)
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if cells != nil {
			if seq.AttachCells(token, i, cells) {
				result.Colored++
			} else if !token.Current() {
				result.Abandoned = true
				return result, nil
			} else {
				cells = nil
			}
		}

		if !token.Current() {
			result.Abandoned = true
			return result, nil
		}

		if progress != nil {
			progress(i, total, cells)
		}

		if i < total-1 {
			if err := l.policy.Yield(ctx, l.state); err != nil {
				return result, err
			}
		}
	}

	return result, nil
}

func (l *Loader) readCells(ctx context.Context, seq *asciiplay.Sequence, index int,
	file asciiplay.FrameFile) *asciiplay.ColoredCells {
	log := l.log.WithFields(logrus.Fields{"frame": file.Name, "index": index})

	bin, err := l.access.ReadOptionalBinary(ctx, file.Path)
	if err != nil {
		log.WithError(err).Debug("no color: companion unreadable")
		return nil
	}
	if bin == nil {
		return nil
	}

	frame, ok := seq.Frame(index)
	if !ok {
		return nil
	}

	cells, err := bin.Decode(frame.Content)
	if err != nil {
		log.WithError(err).WithField("kind", bin.Kind).Debug("no color: companion malformed")
		return nil
	}

	return cells
}
