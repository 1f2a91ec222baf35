package refresh

import (
	"context"
	"sync"
	"time"

	logx "birthdayd/pkg/logx"
)

// LocalScheduler is an in-process TaskScheduler backed by a single timer.
// It holds at most one outstanding request; Submit of a new request replaces
// the previous one. When the timer fires it invokes the wake callback on a
// supervised goroutine with a background-derived context.
type LocalScheduler struct {
	wake func(ctx context.Context) error
	now  func() time.Time
	log  logx.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending *Request
	closed  bool

	base   context.Context
	cancel context.CancelFunc
}

func NewLocalScheduler(log logx.Logger) *LocalScheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &LocalScheduler{
		now:    time.Now,
		log:    log,
		base:   base,
		cancel: cancel,
	}
}

// SetWake installs the wake-up callback. Must be called before Submit.
func (s *LocalScheduler) SetWake(fn func(ctx context.Context) error) {
	s.mu.Lock()
	s.wake = fn
	s.mu.Unlock()
}

// Submit arms the timer for the request's earliest-begin instant, replacing
// any outstanding request. A request in the past fires immediately.
func (s *LocalScheduler) Submit(req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return context.Canceled
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	delay := req.EarliestBegin.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	r := req
	s.pending = &r
	s.timer = time.AfterFunc(delay, func() { s.fire(r) })
	return nil
}

// Cancel drops the outstanding request, if any.
func (s *LocalScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
}

// Pending reports the outstanding request, if any.
func (s *LocalScheduler) Pending() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	return []Request{*s.pending}
}

// Stop cancels the outstanding request and the context handed to wake
// callbacks. Safe to call more than once.
func (s *LocalScheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
	s.mu.Unlock()
	s.cancel()
}

func (s *LocalScheduler) fire(req Request) {
	s.mu.Lock()
	if s.pending != nil && s.pending.EarliestBegin.Equal(req.EarliestBegin) {
		s.pending = nil
		s.timer = nil
	}
	wake := s.wake
	closed := s.closed
	s.mu.Unlock()

	if closed || wake == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("wake callback panicked", logx.Any("panic", r))
		}
	}()
	if err := wake(s.base); err != nil && err != context.Canceled {
		s.log.Warn("wake callback failed", logx.Err(err))
	}
}
