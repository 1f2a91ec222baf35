// Package supervisor manages named goroutines tied to a shared context,
// with panic recovery and timeout-aware graceful stop.
package supervisor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	logx "birthdayd/pkg/logx"
)

type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	log logx.Logger
	wg  sync.WaitGroup
}

func New(parent context.Context, log logx.Logger) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	return &Supervisor{ctx: ctx, cancel: cancel, log: log}
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Go runs fn in a named goroutine. Panics are recovered and logged; a
// panicking goroutine does not take the process down.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("goroutine panic",
					logx.String("name", name),
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())))
			}
		}()

		start := time.Now()
		err := fn(s.ctx)
		if err != nil && err != context.Canceled && s.ctx.Err() == nil {
			s.log.Warn("goroutine exited with error",
				logx.String("name", name),
				logx.Err(err),
				logx.Duration("ran", time.Since(start)))
			return
		}
		s.log.Debug("goroutine exited", logx.String("name", name),
			logx.Duration("ran", time.Since(start)))
	}()
}

// GoRestart runs fn like Go, restarting it with a small backoff whenever it
// returns a non-context error. It stops for good once the supervisor context
// is done.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error) {
	s.Go(name, func(ctx context.Context) error {
		backoff := 250 * time.Millisecond
		for {
			err := runRecovered(fn, ctx)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == nil || err == context.Canceled {
				return nil
			}
			s.log.Warn("goroutine restarting",
				logx.String("name", name), logx.Err(err), logx.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
		}
	})
}

func runRecovered(fn func(ctx context.Context) error, ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Stop cancels the supervisor context and waits for all goroutines, bounded
// by ctx's deadline.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("supervisor stop: %w", ctx.Err())
	}
}
