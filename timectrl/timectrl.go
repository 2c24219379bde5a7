package timectrl

import (
	"context"
	"sync"
	"time"
)

// Clock is the read side of a frame clock. Layout and session code depend
// on it rather than on FrameClock so tests can step time by hand.
type Clock interface {
	// Now returns the time of the latest frame.
	Now() time.Time
	// Frames returns how many frames have been delivered.
	Frames() int
}

// Mode describes how the FrameClock paces frames.
type Mode int

const (
	// RealTime delivers one frame per Interval of wall-clock time.
	RealTime Mode = iota
	// Accelerated delivers frames back to back, still advancing frame time
	// by Interval. Headless rendering uses it to settle layouts quickly.
	Accelerated
)

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

// ParseMode maps "accelerated" to Accelerated and anything else to RealTime.
func ParseMode(s string) Mode {
	if s == "accelerated" {
		return Accelerated
	}
	return RealTime
}

// FrameClock stands in for the browser's animation frame: it advances frame
// time and notifies listeners once per frame.
type FrameClock struct {
	mu        sync.RWMutex
	StartTime time.Time
	Interval  time.Duration
	Mode      Mode

	current time.Time
	frames  int

	listeners map[int]func(time.Time)
	nextID    int
}

// NewFrameClock constructs a clock. A non-positive interval defaults to
// 60 frames per second.
func NewFrameClock(start time.Time, interval time.Duration, mode Mode) *FrameClock {
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &FrameClock{
		StartTime: start,
		Interval:  interval,
		Mode:      mode,
		current:   start,
		listeners: make(map[int]func(time.Time)),
	}
}

// Now returns the current frame time. Implements Clock.
func (c *FrameClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Frames returns the number of frames delivered. Implements Clock.
func (c *FrameClock) Frames() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frames
}

// SetTime moves frame time without delivering a frame.
func (c *FrameClock) SetTime(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// AddListener registers a callback invoked on every frame, in registration
// order. The returned func removes it.
func (c *FrameClock) AddListener(fn func(time.Time)) (remove func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Step delivers a single frame synchronously and returns its time.
func (c *FrameClock) Step() time.Time {
	c.mu.Lock()
	c.current = c.current.Add(c.Interval)
	c.frames++
	now := c.current
	listeners := make([]func(time.Time), 0, len(c.listeners))
	for i := 0; i < c.nextID; i++ {
		if fn, ok := c.listeners[i]; ok {
			listeners = append(listeners, fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(now)
	}
	return now
}

// Start delivers frames in a separate goroutine until frames have been
// delivered (non-positive means no limit) or ctx is done. It returns a
// channel that is closed when the clock stops.
func (c *FrameClock) Start(ctx context.Context, frames int) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		var tick <-chan time.Time
		if c.Mode == RealTime {
			ticker := time.NewTicker(c.Interval)
			defer ticker.Stop()
			tick = ticker.C
		}

		for n := 0; frames <= 0 || n < frames; n++ {
			if tick != nil {
				select {
				case <-ctx.Done():
					return
				case <-tick:
				}
			} else if ctx.Err() != nil {
				return
			}
			c.Step()
		}
	}()
	return done
}
