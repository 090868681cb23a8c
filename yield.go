package asciiplay

import (
	"context"
	"runtime"
	"time"
)

// DefaultBackoff is the yield interval used while color work is invisible.
const DefaultBackoff = 16 * time.Millisecond

// YieldPolicy decides how long background work steps aside between items.
// Color work backs off while black-and-white playback is live, since its
// results are not visible yet; otherwise it yields for the minimum interval.
type YieldPolicy struct {
	Backoff time.Duration
	Min     time.Duration
}

// DefaultYieldPolicy backs off for DefaultBackoff and otherwise only yields
// the processor.
var DefaultYieldPolicy = YieldPolicy{Backoff: DefaultBackoff}

// Delay returns the yield interval for the given playback state.
func (p YieldPolicy) Delay(playing, colorEnabled bool) time.Duration {
	if playing && !colorEnabled {
		return p.Backoff
	}
	return p.Min
}

// PlaybackState reports whether playback is live and color is displayed.
type PlaybackState func() (playing, colorEnabled bool)

// Yield steps aside for the interval the policy picks for state. A zero
// interval only yields the processor. It returns ctx.Err() if ctx ends
// first.
func (p YieldPolicy) Yield(ctx context.Context, state PlaybackState) error {
	var playing, colorEnabled bool
	if state != nil {
		playing, colorEnabled = state()
	}

	d := p.Delay(playing, colorEnabled)
	if d <= 0 {
		runtime.Gosched()
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
