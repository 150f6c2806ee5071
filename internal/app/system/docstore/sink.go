package docstore

import (
	"sync"

	"github.com/dalemusser/planhub/internal/domain/models"
)

// Sink is the Subscription half shared by store implementations. It holds
// at most one undelivered snapshot: a newer snapshot replaces an unread
// older one, which is safe because every snapshot carries the full state.
type Sink struct {
	mu      sync.Mutex
	ch      chan models.Plan
	done    chan struct{}
	closed  bool
	err     error
	release func()
}

// NewSink returns an open sink. release is called once, outside the sink's
// lock, when the sink closes for any reason.
func NewSink(release func()) *Sink {
	return &Sink{
		ch:      make(chan models.Plan, 1),
		done:    make(chan struct{}),
		release: release,
	}
}

// Push offers a snapshot without blocking. It returns false once closed.
func (s *Sink) Push(p models.Plan) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- p
	return true
}

// Fail closes the sink, recording err as the reason.
func (s *Sink) Fail(err error) { s.finish(err) }

// Close implements Subscription.
func (s *Sink) Close() { s.finish(nil) }

func (s *Sink) finish(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	// Drop any buffered snapshot so nothing is delivered after close.
	select {
	case <-s.ch:
	default:
	}
	close(s.ch)
	close(s.done)
	release := s.release
	s.release = nil
	s.mu.Unlock()

	if release != nil {
		release()
	}
}

func (s *Sink) Updates() <-chan models.Plan { return s.ch }

func (s *Sink) Done() <-chan struct{} { return s.done }

func (s *Sink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Closed reports whether the sink has finished.
func (s *Sink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var _ Subscription = (*Sink)(nil)
