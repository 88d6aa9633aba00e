package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	appvatid "github.com/ledgerly/invoicing/internal/application/vatid"
	"github.com/ledgerly/invoicing/internal/domain/shared"
)

var (
	ErrStopped   = errors.New("validation pool is not running")
	ErrQueueFull = errors.New("validation queue is full")
)

// maxBackoffShift caps the retry delay at RetryDelay * 2^maxBackoffShift
const maxBackoffShift = 4

// Executor validates one identity against the VAT provider
type Executor interface {
	Execute(ctx context.Context, job appvatid.ValidationJob) error
}

// PoolConfig sizes the pool. Zero values take the defaults of
// DefaultPoolConfig.
type PoolConfig struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
	// RetryAttempts is how many times a failed validation is retried
	RetryAttempts int
	// RetryDelay is the first backoff; later retries double it
	RetryDelay time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:       4,
		QueueSize:     256,
		JobTimeout:    30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Minute,
	}
}

func (c PoolConfig) withDefaults() PoolConfig {
	def := DefaultPoolConfig()
	if c.Workers < 1 {
		c.Workers = def.Workers
	}
	if c.QueueSize < 1 {
		c.QueueSize = def.QueueSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = def.JobTimeout
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = def.RetryDelay
	}
	return c
}

// attempt is a queued job with the number of times it already failed
type attempt struct {
	job      appvatid.ValidationJob
	failures int
}

// Pool executes validation jobs on a fixed number of workers. A job that
// fails with a provider or concurrency error is retried with exponential
// backoff; jobs for identities that no longer exist are dropped.
type Pool struct {
	cfg    PoolConfig
	exec   Executor
	logger *zap.Logger

	queue   chan attempt
	workers sync.WaitGroup

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	timers  map[*time.Timer]struct{}
}

func NewPool(cfg PoolConfig, exec Executor, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Pool{
		cfg:    cfg,
		exec:   exec,
		logger: logger.Named("vat_validation"),
		queue:  make(chan attempt, cfg.QueueSize),
		timers: make(map[*time.Timer]struct{}),
	}
}

// Start launches the workers. Starting a running pool is a no-op.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	for range p.cfg.Workers {
		p.workers.Add(1)
		go p.work(ctx)
	}
	p.logger.Info("Validation pool started",
		zap.Int("workers", p.cfg.Workers),
		zap.Int("queue_size", p.cfg.QueueSize))
	return nil
}

// Stop cancels pending retries, lets workers finish their current job and
// waits for them until ctx is done. Queued jobs are discarded.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	for t := range p.timers {
		t.Stop()
	}
	clear(p.timers)
	close(p.queue)
	p.cancel()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.logger.Info("Validation pool stopped")
		return nil
	case <-ctx.Done():
		p.logger.Warn("Validation pool did not drain before shutdown deadline")
		return ctx.Err()
	}
}

// Enqueue implements the resolver's job queue. It never blocks: a full
// queue is reported and the identity stays pending for the next sweep.
func (p *Pool) Enqueue(_ context.Context, job appvatid.ValidationJob) error {
	return p.submit(attempt{job: job})
}

// QueueLength reports jobs waiting for a worker
func (p *Pool) QueueLength() int {
	return len(p.queue)
}

func (p *Pool) submit(a attempt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return ErrStopped
	}
	select {
	case p.queue <- a:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) work(ctx context.Context) {
	defer p.workers.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-p.queue:
			if !ok {
				return
			}
			p.run(ctx, a)
		}
	}
}

func (p *Pool) run(ctx context.Context, a attempt) {
	jobCtx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	defer cancel()

	err := p.exec.Execute(jobCtx, a.job)
	if err == nil {
		return
	}
	a.failures++
	log := p.logger.With(
		zap.String("vat_identity_id", a.job.IdentityID.String()),
		zap.String("country", a.job.Country),
		zap.Int("failures", a.failures),
		zap.Error(err))

	if !retryable(err) || a.failures > p.cfg.RetryAttempts {
		log.Warn("Validation abandoned; identity stays pending")
		return
	}
	delay := p.backoff(a.failures)
	log.Info("Validation failed; retrying", zap.Duration("delay", delay))
	p.retryAfter(delay, a)
}

// retryable rejects errors a second attempt cannot fix
func retryable(err error) bool {
	cat, ok := shared.CategoryOf(err)
	if !ok {
		return true
	}
	return cat != shared.CategoryNotFound && cat != shared.CategoryValidation
}

func (p *Pool) backoff(failures int) time.Duration {
	return p.cfg.RetryDelay << min(failures-1, maxBackoffShift)
}

func (p *Pool) retryAfter(delay time.Duration, a attempt) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		p.mu.Lock()
		delete(p.timers, t)
		p.mu.Unlock()
		if err := p.submit(a); err != nil {
			p.logger.Warn("Retry not queued",
				zap.String("vat_identity_id", a.job.IdentityID.String()),
				zap.Error(err))
		}
	})
	p.timers[t] = struct{}{}
}

var _ appvatid.JobQueue = (*Pool)(nil)
