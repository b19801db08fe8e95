package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"zizyhub/observability"
)

// ErrNoDispatcher is returned when the processor runs without a dispatcher.
var ErrNoDispatcher = errors.New("settlement: dispatcher not configured")

// Metrics is the instrumentation surface the processor reports to.
type Metrics = observability.SettlementMetrics

// Status summarises the processor for operators.
type Status struct {
	Paused      bool      `json:"paused"`
	Pending     int64     `json:"pending"`
	LastRun     time.Time `json:"lastRun"`
	LastSettled int       `json:"lastSettled"`
}

// Processor drains pending jobs through a Dispatcher with exponential backoff.
type Processor struct {
	store       *Store
	dispatcher  Dispatcher
	metrics     *Metrics
	clock       clockwork.Clock
	logger      *slog.Logger
	interval    time.Duration
	maxAttempts int
	batchSize   int
	backoffBase time.Duration
	backoffMax  time.Duration

	mu      sync.Mutex
	paused  bool
	lastRun time.Time
	settled int
}

// ProcessorOption customises the processor instance.
type ProcessorOption func(*Processor)

func WithDispatcher(d Dispatcher) ProcessorOption {
	return func(p *Processor) { p.dispatcher = d }
}

// WithMetrics overrides the default metrics registry.
func WithMetrics(m *Metrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

func WithClock(clock clockwork.Clock) ProcessorOption {
	return func(p *Processor) { p.clock = clock }
}

func WithLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) { p.logger = logger }
}

// WithPollInterval configures how often pending jobs are polled.
func WithPollInterval(interval time.Duration) ProcessorOption {
	return func(p *Processor) { p.interval = interval }
}

// WithMaxAttempts bounds dispatch attempts before a job is marked FAILED.
func WithMaxAttempts(n int) ProcessorOption {
	return func(p *Processor) { p.maxAttempts = n }
}

func WithBatchSize(n int) ProcessorOption {
	return func(p *Processor) { p.batchSize = n }
}

// WithBackoff sets the first retry delay and its ceiling.
func WithBackoff(base, max time.Duration) ProcessorOption {
	return func(p *Processor) {
		p.backoffBase = base
		p.backoffMax = max
	}
}

// WithPaused starts the processor paused.
func WithPaused(paused bool) ProcessorOption {
	return func(p *Processor) { p.paused = paused }
}

func NewProcessor(store *Store, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:       store,
		metrics:     observability.Settlement(),
		clock:       clockwork.NewRealClock(),
		logger:      slog.Default(),
		interval:    5 * time.Second,
		maxAttempts: 8,
		batchSize:   50,
		backoffBase: time.Second,
		backoffMax:  5 * time.Minute,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.interval <= 0 {
		p.interval = 5 * time.Second
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = 1
	}
	if p.batchSize <= 0 {
		p.batchSize = 50
	}
	if p.backoffBase <= 0 {
		p.backoffBase = time.Second
	}
	if p.backoffMax < p.backoffBase {
		p.backoffMax = p.backoffBase
	}
	p.logger = p.logger.With(slog.String("component", "settlement"))
	p.metrics.SetPause(p.paused)
	return p
}

// Pause stops dispatching until Resume. In-flight batches finish.
func (p *Processor) Pause() {
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
	p.metrics.SetPause(true)
	p.logger.Warn("settlement processor paused")
}

func (p *Processor) Resume() {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
	p.metrics.SetPause(false)
	p.logger.Info("settlement processor resumed")
}

func (p *Processor) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Status reports pause state and backlog.
func (p *Processor) Status(ctx context.Context) (Status, error) {
	pending, err := p.store.CountPending(ctx)
	if err != nil {
		return Status{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{Paused: p.paused, Pending: pending, LastRun: p.lastRun, LastSettled: p.settled}, nil
}

// Run polls until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		if _, err := p.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Error("settlement batch failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
		}
	}
}

// RunOnce dispatches one batch of due jobs and returns how many settled.
func (p *Processor) RunOnce(ctx context.Context) (int, error) {
	if p.Paused() {
		return 0, nil
	}
	if p.dispatcher == nil {
		return 0, ErrNoDispatcher
	}
	now := p.clock.Now()
	jobs, err := p.store.Due(ctx, now, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("settlement: load due jobs: %w", err)
	}
	settled := 0
	for i := range jobs {
		if err := ctx.Err(); err != nil {
			return settled, err
		}
		if p.Paused() {
			break
		}
		ok, err := p.process(ctx, &jobs[i])
		if err != nil {
			return settled, err
		}
		if ok {
			settled++
		}
	}
	if pending, err := p.store.CountPending(ctx); err == nil {
		p.metrics.SetPending(int(pending))
	}
	p.mu.Lock()
	p.lastRun = now
	p.settled = settled
	p.mu.Unlock()
	return settled, nil
}

// process dispatches one job. Dispatch failures are recorded on the job;
// only store failures are returned.
func (p *Processor) process(ctx context.Context, job *Job) (bool, error) {
	chain := strconv.FormatUint(job.ChainID, 10)
	ref, err := p.dispatcher.Dispatch(ctx, job)
	now := p.clock.Now()
	if err == nil {
		if err := p.store.MarkSettled(ctx, job.ID, ref, now); err != nil {
			return false, err
		}
		amount, _ := new(big.Int).SetString(job.Amount, 10)
		p.metrics.ObserveDispatch(chain, amount, now.Sub(job.CreatedAt))
		p.logger.Info("settlement job dispatched",
			slog.String("jobid", job.ID.String()),
			slog.Uint64("chainid", job.ChainID),
			slog.String("reference", ref))
		return true, nil
	}
	attempts := job.Attempts + 1
	failed := attempts >= p.maxAttempts || errors.Is(err, ErrPermanent)
	reason := "transient"
	if errors.Is(err, ErrPermanent) {
		reason = "permanent"
	}
	p.metrics.RecordError(chain, reason)
	next := now.Add(p.backoff(attempts))
	if err := p.store.Reschedule(ctx, job.ID, attempts, err.Error(), next, failed); err != nil {
		return false, err
	}
	level := slog.LevelWarn
	if failed {
		level = slog.LevelError
	}
	p.logger.Log(ctx, level, "settlement dispatch failed",
		slog.String("jobid", job.ID.String()),
		slog.Int("attempts", attempts),
		slog.Bool("failed", failed),
		slog.Any("error", err))
	return false, nil
}

func (p *Processor) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	if attempt > 30 {
		return p.backoffMax
	}
	d := p.backoffBase * time.Duration(1<<uint(attempt-1))
	if d <= 0 || d > p.backoffMax {
		return p.backoffMax
	}
	return d
}

// Retry requeues a failed job.
func (p *Processor) Retry(ctx context.Context, id string) (*Job, error) {
	jobID, err := parseJobID(id)
	if err != nil {
		return nil, err
	}
	return p.store.Retry(ctx, jobID, p.clock.Now())
}
