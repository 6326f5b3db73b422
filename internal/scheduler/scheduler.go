// Package scheduler triggers periodic refreshes. An interval of zero
// disables the timer entirely (manual refresh only), and reconfiguring
// cancels the old loop before starting a new one so duplicate timers can
// never coexist.
package scheduler

import (
	"context"
	"sync"
	"time"

	"feedkeep/pkg/logger"
)

// RefreshFunc runs one refresh cycle. Errors are logged, not propagated;
// the next tick tries again.
type RefreshFunc func(ctx context.Context) error

type Scheduler struct {
	refresh RefreshFunc

	mu         sync.Mutex
	interval   time.Duration
	stopCh     chan struct{}
	wg         sync.WaitGroup
	cancelFunc context.CancelFunc
}

func New(refresh RefreshFunc, interval time.Duration) *Scheduler {
	return &Scheduler{refresh: refresh, interval: interval}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLocked()
}

func (s *Scheduler) startLocked() {
	if s.interval <= 0 || s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.stopCh, s.interval)
	logger.Info("scheduler started", "module", "scheduler", "interval", s.interval)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
	s.wg.Wait()
	logger.Info("scheduler stopped", "module", "scheduler")
}

func (s *Scheduler) stopLocked() {
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
}

// Reconfigure replaces the refresh interval, cancelling the running loop
// (and any in-flight refresh) first. Zero leaves the scheduler stopped.
func (s *Scheduler) Reconfigure(interval time.Duration) {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = interval
	s.startLocked()
}

func (s *Scheduler) run(stopCh chan struct{}, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runRefresh(stopCh, interval)
		case <-stopCh:
			return
		}
	}
}

func (s *Scheduler) runRefresh(stopCh chan struct{}, interval time.Duration) {
	// A cycle gets at most one interval before it is cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), interval)

	s.mu.Lock()
	// Ignore a refresh racing a Stop/Reconfigure that already moved on.
	if s.stopCh != stopCh {
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancelFunc = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		if s.stopCh == stopCh {
			s.cancelFunc = nil
		}
		s.mu.Unlock()
	}()

	if err := s.refresh(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Info("scheduled refresh cancelled", "module", "scheduler")
			return
		}
		logger.Error("scheduled refresh failed", "module", "scheduler", "error", err)
	}
}
