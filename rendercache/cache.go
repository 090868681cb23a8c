// Package rendercache keeps rasterized frames warm for the current font
// size.
package rendercache

import (
	"context"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tmpim/asciiplay"
	"golang.org/x/sync/singleflight"
)

// Source is the frame sequence a cache renders from.
type Source interface {
	Len() int
	Frame(index int) (asciiplay.Frame, bool)
}

// Options configures a Cache.
type Options struct {
	Rasterizer asciiplay.Rasterizer
	// Paint also paints every raster onto an image.
	Paint bool
	// Policy paces the warmer between frames.
	Policy asciiplay.YieldPolicy
	State  asciiplay.PlaybackState
	Log    logrus.FieldLogger
}

// Stats counts cache activity since the cache was created.
type Stats struct {
	Hits        uint64
	Misses      uint64
	SyncRenders uint64
	WarmRenders uint64
	// Discarded counts renders dropped because their generation expired.
	Discarded uint64
}

// Cache maps frame indices to surfaces rendered at one font-size epoch.
// Resetting the source or changing the epoch drops every entry at once.
type Cache struct {
	opts Options
	log  logrus.FieldLogger

	mutex   sync.Mutex
	gen     asciiplay.Generation
	token   asciiplay.Token
	source  Source
	metrics asciiplay.Metrics
	painter *asciiplay.Painter
	entries []*asciiplay.Surface
	queue   []int
	queued  []bool
	stats   Stats

	wake  chan struct{}
	group singleflight.Group
}

// New returns an empty cache. Reset must be called before use.
func New(opts Options) *Cache {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Cache{
		opts: opts,
		log:  log.WithField("component", "rendercache"),
		wake: make(chan struct{}, 1),
	}
}

// Reset starts a new cache generation for source at metrics m. All
// entries are dropped and every frame that already has color is queued for
// warming. Renders of older generations are discarded when they finish.
func (c *Cache) Reset(source Source, m asciiplay.Metrics) error {
	var painter *asciiplay.Painter
	if c.opts.Paint && source != nil {
		var err error
		painter, err = asciiplay.NewPainter(m)
		if err != nil {
			return err
		}
	}

	c.mutex.Lock()
	c.token = c.gen.Next()
	c.source = source
	c.metrics = m
	c.painter = painter

	n := 0
	if source != nil {
		n = source.Len()
	}
	c.entries = make([]*asciiplay.Surface, n)
	c.queued = make([]bool, n)
	c.queue = c.queue[:0]

	for i := 0; i < n; i++ {
		if frame, ok := source.Frame(i); ok && frame.Cells != nil {
			c.enqueueLocked(i)
		}
	}
	c.mutex.Unlock()

	c.log.WithFields(logrus.Fields{
		"frames": n,
		"epoch":  m.Epoch(),
	}).Debug("render cache reset")

	c.signal()
	return nil
}

// SetMetrics changes the font metrics. A change of epoch invalidates the
// whole cache; an equal epoch is a no-op.
func (c *Cache) SetMetrics(m asciiplay.Metrics) error {
	c.mutex.Lock()
	same := c.source != nil && c.metrics.Epoch() == m.Epoch() &&
		c.metrics.CharWidthRatio == m.CharWidthRatio &&
		c.metrics.LineHeightRatio == m.LineHeightRatio
	source := c.source
	c.mutex.Unlock()

	if same {
		return nil
	}
	return c.Reset(source, m)
}

// Metrics returns the metrics of the current generation.
func (c *Cache) Metrics() asciiplay.Metrics {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.metrics
}

// Epoch returns the font-size epoch of the current generation.
func (c *Cache) Epoch() int {
	return c.Metrics().Epoch()
}

// Notify queues index for warming, typically because its color data just
// became available.
func (c *Cache) Notify(index int) {
	c.mutex.Lock()
	if index >= 0 && index < len(c.entries) && c.entries[index] == nil {
		c.enqueueLocked(index)
	}
	c.mutex.Unlock()
	c.signal()
}

func (c *Cache) enqueueLocked(index int) {
	if c.queued[index] {
		return
	}
	c.queued[index] = true
	c.queue = append(c.queue, index)
}

func (c *Cache) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Lookup returns the cached surface at index without rendering.
func (c *Cache) Lookup(index int) (*asciiplay.Surface, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if index < 0 || index >= len(c.entries) || c.entries[index] == nil {
		return nil, false
	}
	return c.entries[index], true
}

// Get returns the surface at index, rendering it synchronously on a miss.
// hit reports whether the surface was already cached. A nil surface means
// the frame has no color payload and should be shown as plain text.
func (c *Cache) Get(index int) (surface *asciiplay.Surface, hit bool) {
	c.mutex.Lock()
	if index < 0 || index >= len(c.entries) {
		c.mutex.Unlock()
		return nil, false
	}
	if s := c.entries[index]; s != nil {
		c.stats.Hits++
		c.mutex.Unlock()
		return s, true
	}
	c.stats.Misses++
	token := c.token
	c.mutex.Unlock()

	key := strconv.FormatUint(token.Value(), 10) + ":" + strconv.Itoa(index)
	v, _, _ := c.group.Do(key, func() (interface{}, error) {
		s := c.render(token, index, true)
		return s, nil
	})

	s, _ := v.(*asciiplay.Surface)
	return s, false
}

// render draws the frame at index for generation token and stores the
// result if the generation is still current.
func (c *Cache) render(token asciiplay.Token, index int, sync bool) *asciiplay.Surface {
	c.mutex.Lock()
	if !token.Current() {
		c.mutex.Unlock()
		return nil
	}
	if s := c.entries[index]; s != nil {
		c.mutex.Unlock()
		return s
	}
	source := c.source
	metrics := c.metrics
	painter := c.painter
	c.mutex.Unlock()

	frame, ok := source.Frame(index)
	if !ok || frame.Cells == nil {
		return nil
	}

	var surface *asciiplay.Surface
	if painter != nil {
		surface = painter.Surface(c.opts.Rasterizer, frame.Cells)
	} else {
		surface = &asciiplay.Surface{Raster: c.opts.Rasterizer.Rasterize(frame.Cells, metrics)}
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if sync {
		c.stats.SyncRenders++
	} else {
		c.stats.WarmRenders++
	}

	if !token.Current() {
		c.stats.Discarded++
		return surface
	}

	c.entries[index] = surface
	return surface
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.stats
}

// Warm returns the number of cached entries.
func (c *Cache) Warm() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	n := 0
	for _, s := range c.entries {
		if s != nil {
			n++
		}
	}
	return n
}

func (c *Cache) next() (asciiplay.Token, int, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for len(c.queue) > 0 {
		index := c.queue[0]
		c.queue = c.queue[1:]
		c.queued[index] = false
		if c.entries[index] == nil {
			return c.token, index, true
		}
	}
	return asciiplay.Token{}, 0, false
}

// Run drains the warming queue until ctx is done, yielding between items
// with the configured policy.
func (c *Cache) Run(ctx context.Context) error {
	for {
		token, index, ok := c.next()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.wake:
				continue
			}
		}

		c.render(token, index, false)

		if err := c.opts.Policy.Yield(ctx, c.opts.State); err != nil {
			return err
		}
	}
}
