package testqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// Scheduler runs a cycle once, or immediately and then on every interval tick
type Scheduler struct {
	interval time.Duration
	log      log.Logger
	cycle    func(ctx context.Context) error

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. A zero interval selects run-once mode.
func NewScheduler(interval time.Duration, logger log.Logger, cycle func(ctx context.Context) error) *Scheduler {
	return &Scheduler{
		interval: interval,
		log:      logger,
		cycle:    cycle,
		done:     make(chan struct{}),
	}
}

// Start runs the first cycle and returns its error. In periodic mode later
// cycles run in the background and their errors are only logged.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cycle == nil {
		return errors.New("cycle must be set before starting scheduler")
	}

	s.done = make(chan struct{})
	s.running.Store(true)

	if s.interval <= 0 {
		s.log.Info("Running once")
		return s.cycle(ctx)
	}

	s.log.Info("Starting periodic runs", "interval", s.interval)
	if err := s.cycle(ctx); err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if !s.running.Load() {
					return
				}
				s.log.Info("Running periodic cycle")
				if err := s.cycle(ctx); err != nil {
					s.log.Error("Error running periodic cycle", "err", err)
				}
			case <-s.done:
				s.log.Debug("Done signal received, stopping scheduler")
				return
			case <-ctx.Done():
				s.log.Debug("Context canceled, stopping scheduler")
				s.running.Store(false)
				return
			}
		}
	}()
	return nil
}

// Stop prevents further cycles. A cycle in progress is not interrupted.
func (s *Scheduler) Stop() {
	if !s.running.Swap(false) {
		return
	}
	close(s.done)
}

func (s *Scheduler) Stopped() bool {
	return !s.running.Load()
}

// WaitForShutdown blocks until the background goroutine has exited or ctx is done
func (s *Scheduler) WaitForShutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.log.Warn("Timed out waiting for scheduler to stop", "err", ctx.Err())
		return ctx.Err()
	}
}
