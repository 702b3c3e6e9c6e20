// Package queue sequences and deduplicates scoring jobs. At most one job
// per account is queued or running at any time; a bounded worker pool
// executes the fetch → lemmatize → score → commit pipeline and is the sole
// writer of snapshot cache records.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Lucent/lexical-diversity/internal/corpus"
	"github.com/Lucent/lexical-diversity/internal/fetch"
	"github.com/Lucent/lexical-diversity/internal/lemma"
	"github.com/Lucent/lexical-diversity/internal/mtld"
	"github.com/Lucent/lexical-diversity/internal/store"
	apperrors "github.com/Lucent/lexical-diversity/pkg/errors"
	"github.com/Lucent/lexical-diversity/pkg/kafka"
	"github.com/Lucent/lexical-diversity/pkg/metrics"
	"github.com/Lucent/lexical-diversity/pkg/resilience"
)

// State is a job lifecycle state.
type State string

const (
	StateQueued    State = "QUEUED"
	StateRunning   State = "RUNNING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Job is the unit of scoring work for one account.
type Job struct {
	ID          string     `json:"job_id"`
	Account     string     `json:"account"`
	State       State      `json:"state"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ErrorKind   string     `json:"error_kind,omitempty"`
	ErrorDetail string     `json:"error_detail,omitempty"`
}

// EventPublisher receives a score event after each successful job. A nil
// publisher disables event emission.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Options holds the queue's policy knobs, resolved from config by the
// caller.
type Options struct {
	Workers          int
	Capacity         int
	JobTimeout       time.Duration
	Retention        time.Duration
	MinPosts         int
	MinTokens        int
	FetchMaxAttempts int
}

// Deps are the collaborators a job pipeline runs against.
type Deps struct {
	Fetcher    fetch.Fetcher
	Lemmatizer lemma.Lemmatizer
	Scorer     *mtld.Scorer
	Store      store.Store
	Events     EventPublisher
	Metrics    *metrics.Metrics
}

// Queue owns the job table and the worker pool.
type Queue struct {
	opts Options
	deps Deps

	mu   sync.Mutex
	jobs map[string]*Job // account → most recent job

	pending chan string // account handles awaiting a worker
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// New creates a stopped Queue; call Start to launch the workers.
func New(opts Options, deps Deps) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 16
	}
	if opts.Retention <= 0 {
		opts.Retention = 30 * time.Minute
	}
	return &Queue{
		opts:    opts,
		deps:    deps,
		jobs:    make(map[string]*Job),
		pending: make(chan string, opts.Capacity),
		logger:  slog.Default().With("component", "job-queue"),
	}
}

// Start launches the worker pool and the terminal-job janitor. Workers run
// until ctx is cancelled; Close waits for them.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	q.wg.Add(1)
	go q.janitor(ctx)
	q.logger.Info("queue started",
		"workers", q.opts.Workers,
		"capacity", q.opts.Capacity,
		"job_timeout", q.opts.JobTimeout,
	)
}

// Close waits for all workers to drain after their context was cancelled.
func (q *Queue) Close() {
	q.wg.Wait()
}

// Submit enqueues a scoring job for the account, or returns the job that is
// already queued or running for it. The boolean reports whether a new job
// was created. Submit never blocks on job execution.
func (q *Queue) Submit(account string) (Job, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.jobs[account]; ok && !existing.State.Terminal() {
		if q.deps.Metrics != nil {
			q.deps.Metrics.JobsDedupedTotal.Inc()
		}
		return *existing, false, nil
	}

	job := &Job{
		ID:         uuid.NewString(),
		Account:    account,
		State:      StateQueued,
		EnqueuedAt: time.Now().UTC(),
	}
	select {
	case q.pending <- account:
	default:
		return Job{}, false, fmt.Errorf("%w: %d jobs pending", apperrors.ErrQueueFull, len(q.pending))
	}
	q.jobs[account] = job
	if q.deps.Metrics != nil {
		q.deps.Metrics.JobsSubmittedTotal.Inc()
		q.deps.Metrics.QueueDepth.Set(float64(len(q.pending)))
	}
	q.logger.Info("job enqueued", "account", account, "job_id", job.ID)
	return *job, true, nil
}

// Status returns a snapshot of the account's most recent job. Terminal jobs
// remain visible for the retention period.
func (q *Queue) Status(account string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[account]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	logger := q.logger.With("worker", id)
	for {
		select {
		case <-ctx.Done():
			return
		case account := <-q.pending:
			if q.deps.Metrics != nil {
				q.deps.Metrics.QueueDepth.Set(float64(len(q.pending)))
			}
			q.run(ctx, account, logger)
		}
	}
}

// run executes the scoring pipeline for one account. Every failure is
// classified onto the job record; nothing is written to the snapshot cache
// unless the whole pipeline succeeded.
func (q *Queue) run(ctx context.Context, account string, logger *slog.Logger) {
	start := q.transition(account, StateRunning)
	if start == nil {
		return
	}
	logger.Info("job started", "account", account, "job_id", start.ID)

	jobCtx := ctx
	var cancel context.CancelFunc
	if q.opts.JobTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, q.opts.JobTimeout)
		defer cancel()
	}

	begin := time.Now()
	err := q.execute(jobCtx, account)

	if err != nil && jobCtx.Err() == context.DeadlineExceeded && !errors.Is(err, apperrors.ErrTimeout) {
		err = fmt.Errorf("%w: job exceeded %v: %v", apperrors.ErrTimeout, q.opts.JobTimeout, err)
	}
	q.complete(account, err)

	if q.deps.Metrics != nil {
		q.deps.Metrics.JobDuration.Observe(time.Since(begin).Seconds())
	}
	if err != nil {
		logger.Warn("job failed",
			"account", account,
			"job_id", start.ID,
			"kind", apperrors.Kind(err),
			"error", err,
		)
	} else {
		logger.Info("job succeeded",
			"account", account,
			"job_id", start.ID,
			"duration", time.Since(begin).Round(time.Millisecond),
		)
	}
}

func (q *Queue) execute(ctx context.Context, account string) error {
	var c *corpus.Corpus
	err := resilience.Retry(ctx, "fetch "+account,
		resilience.RetryConfig{MaxAttempts: q.opts.FetchMaxAttempts},
		func(err error) bool {
			retryable := errors.Is(err, apperrors.ErrFetchFailed)
			if retryable && q.deps.Metrics != nil {
				q.deps.Metrics.FetchRetriesTotal.Inc()
			}
			return retryable
		},
		func() error {
			var fetchErr error
			c, fetchErr = q.deps.Fetcher.Fetch(ctx, account)
			return fetchErr
		},
	)
	if err != nil {
		return err
	}

	if len(c.Posts) < q.opts.MinPosts {
		return fmt.Errorf("%w: %d posts fetched, %d required",
			apperrors.ErrInsufficientData, len(c.Posts), q.opts.MinPosts)
	}

	// An unchanged corpus already has a committed score; skip the
	// lemmatize and score stages entirely.
	fingerprint := c.Fingerprint()
	if cached, err := q.deps.Store.Get(ctx, account, fingerprint); err == nil {
		q.logger.Info("snapshot already scored",
			"account", account,
			"fingerprint", cached.Fingerprint,
		)
		return nil
	}

	tokens, err := q.deps.Lemmatizer.Lemmatize(ctx, c.Text())
	if err != nil {
		return err
	}
	if len(tokens) < q.opts.MinTokens {
		return fmt.Errorf("%w: %d lemma tokens, %d required",
			apperrors.ErrInsufficientData, len(tokens), q.opts.MinTokens)
	}

	result, err := q.deps.Scorer.Analyze(tokens)
	if err != nil {
		return err
	}

	record := store.FromResult(account, fingerprint, result, time.Now().UTC())
	if err := q.deps.Store.Put(ctx, record); err != nil {
		return fmt.Errorf("committing score for %s: %w", account, err)
	}
	if q.deps.Metrics != nil {
		q.deps.Metrics.ScoredTokens.Observe(float64(result.TokenCount))
	}
	q.publishEvent(ctx, record)
	return nil
}

// publishEvent emits a score.computed event. Failures are logged, never
// fatal to the job: the cache commit already happened.
func (q *Queue) publishEvent(ctx context.Context, record *store.Score) {
	if q.deps.Events == nil {
		return
	}
	event := kafka.Event{
		Key: record.Account,
		Value: map[string]any{
			"type":        "score.computed",
			"account":     record.Account,
			"fingerprint": record.Fingerprint,
			"score":       record.Score,
			"token_count": record.TokenCount,
			"computed_at": record.ComputedAt,
		},
	}
	if err := q.deps.Events.Publish(ctx, event); err != nil {
		q.logger.Error("score event publish failed", "account", record.Account, "error", err)
	}
}

// transition moves the account's job to the given state and returns a
// snapshot, or nil when the job vanished (swept while queued).
func (q *Queue) transition(account string, state State) *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[account]
	if !ok {
		return nil
	}
	job.State = state
	if state == StateRunning {
		now := time.Now().UTC()
		job.StartedAt = &now
	}
	snapshot := *job
	return &snapshot
}

func (q *Queue) complete(account string, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[account]
	if !ok {
		return
	}
	now := time.Now().UTC()
	job.CompletedAt = &now
	if err != nil {
		job.State = StateFailed
		job.ErrorKind = apperrors.Kind(err)
		job.ErrorDetail = err.Error()
	} else {
		job.State = StateSucceeded
	}
	if q.deps.Metrics != nil {
		q.deps.Metrics.JobsCompletedTotal.WithLabelValues(string(job.State), job.ErrorKind).Inc()
	}
}

// janitor sweeps terminal jobs older than the retention period so the job
// table stays bounded. The snapshot cache is unaffected.
func (q *Queue) janitor(ctx context.Context) {
	defer q.wg.Done()
	interval := q.opts.Retention / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.sweep()
		}
	}
}

func (q *Queue) sweep() {
	cutoff := time.Now().UTC().Add(-q.opts.Retention)
	q.mu.Lock()
	defer q.mu.Unlock()
	for account, job := range q.jobs {
		if job.State.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(q.jobs, account)
		}
	}
}
