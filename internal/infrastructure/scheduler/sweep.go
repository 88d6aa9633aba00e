package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StaleSweeper re-enqueues referenced identities whose verdict expired and
// returns how many it enqueued
type StaleSweeper interface {
	SweepStale(ctx context.Context, batch int) (int, error)
}

// SweepConfig schedules the stale sweep
type SweepConfig struct {
	Interval time.Duration
	// Batch bounds the identities enqueued per run
	Batch int
	// Immediate runs once right after Start, before the first tick
	Immediate bool
}

// Sweep runs a StaleSweeper on a ticker.
type Sweep struct {
	cfg     SweepConfig
	sweeper StaleSweeper
	logger  *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastRun time.Time
}

func NewSweep(cfg SweepConfig, sweeper StaleSweeper, logger *zap.Logger) *Sweep {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Batch < 1 {
		cfg.Batch = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweep{cfg: cfg, sweeper: sweeper, logger: logger.Named("stale_sweep")}
}

// Start begins the ticker loop. Starting twice is a no-op.
func (s *Sweep) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return nil
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	s.logger.Info("Stale VAT sweep scheduled",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("batch", s.cfg.Batch))
	return nil
}

// Stop ends the loop and waits for a running sweep until ctx is done.
func (s *Sweep) Stop(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	if done == nil {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	s.done = nil
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweep) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	if s.cfg.Immediate {
		s.RunOnce(ctx)
	}
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce sweeps synchronously and returns how many identities were
// enqueued. Failures are logged and count as zero.
func (s *Sweep) RunOnce(ctx context.Context) int {
	n, err := s.sweeper.SweepStale(ctx, s.cfg.Batch)
	if err != nil {
		s.logger.Error("Stale VAT sweep failed", zap.Error(err))
		return 0
	}
	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()
	if n > 0 {
		s.logger.Info("Stale VAT identities re-enqueued", zap.Int("count", n))
	}
	return n
}

// LastRun is when a sweep last succeeded
func (s *Sweep) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}
