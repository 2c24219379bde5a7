package render

import (
	"io"
	"sync"

	"github.com/signalsfoundry/stockflow-editor/layout"
)

// Source publishes layout events.
type Source interface {
	Subscribe(func(layout.Event)) (unsubscribe func())
	Frame() layout.Frame
}

// Sync mirrors the engine's latest frame for drawing. It is safe to read
// from a goroutine other than the one driving the engine.
type Sync struct {
	mu          sync.RWMutex
	frame       layout.Frame
	last        layout.EventType
	frames      int
	unsubscribe func()
	onFrame     func(layout.Event)
}

// SyncOption configures a Sync.
type SyncOption func(*Sync)

// WithFrameHook calls fn after every frame is stored.
func WithFrameHook(fn func(layout.Event)) SyncOption {
	return func(s *Sync) { s.onFrame = fn }
}

// NewSync subscribes to src and starts from its current frame.
func NewSync(src Source, opts ...SyncOption) *Sync {
	s := &Sync{frame: src.Frame()}
	for _, opt := range opts {
		opt(s)
	}
	s.unsubscribe = src.Subscribe(s.receive)
	return s
}

func (s *Sync) receive(ev layout.Event) {
	s.mu.Lock()
	s.frame = ev.Frame
	s.last = ev.Type
	s.frames++
	hook := s.onFrame
	s.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
}

// Frame returns the latest frame. Sync satisfies Scene.
func (s *Sync) Frame() layout.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// Frames is the number of frames received.
func (s *Sync) Frames() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

// Last is the type of the latest event received.
func (s *Sync) Last() layout.EventType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// WriteSVG draws the latest frame.
func (s *Sync) WriteSVG(w io.Writer) error {
	return WriteSVG(w, s.Frame())
}

// Close stops receiving frames.
func (s *Sync) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}
