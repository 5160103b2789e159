package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/proctor/internal/database"
)

// Queue states of a webhook_queue row
const (
	StatusPending   = "pending"
	StatusSending   = "sending"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Interval:  5 * time.Second,
		BatchSize: 10,
		BaseDelay: time.Second,
		MaxDelay:  5 * time.Minute,
	}
}

// Worker redelivers queued findings. Each pass claims due rows (pending to
// sending), posts them, then settles every row as delivered, pending with a
// later next_retry_at, or failed.
type Worker struct {
	db      database.PgxPool
	service *Service
	logger  *slog.Logger
	config  WorkerConfig

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewWorker(db database.PgxPool, service *Service, logger *slog.Logger, config WorkerConfig) *Worker {
	def := DefaultWorkerConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = def.BaseDelay
	}
	if config.MaxDelay < config.BaseDelay {
		config.MaxDelay = def.MaxDelay
	}

	return &Worker{
		db:      db,
		service: service,
		logger:  logger.With("component", "webhook_worker"),
		config:  config,
		stop:    make(chan struct{}),
	}
}

// Start runs the worker in the background until Stop or ctx ends
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.Run(ctx)
	}()
}

// Run blocks until Stop or ctx ends
func (w *Worker) Run(ctx context.Context) {
	// rows left in sending by a previous process never got settled
	if n, err := w.Requeue(ctx); err != nil {
		w.logger.Error("failed to requeue interrupted deliveries", "error", err)
	} else if n > 0 {
		w.logger.Info("requeued interrupted deliveries", "count", n)
	}

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.logger.Info("webhook worker started", "interval", w.config.Interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("webhook worker stopped")
			return
		case <-w.stop:
			w.logger.Info("webhook worker stopped")
			return
		case <-ticker.C:
			if _, err := w.Drain(ctx); err != nil {
				w.logger.Error("failed to process webhook queue", "error", err)
			}
		}
	}
}

// Stop waits for a worker launched by Start, including a pass in flight,
// so the pool can be closed right after
func (w *Worker) Stop() {
	w.once.Do(func() { close(w.stop) })
	w.wg.Wait()
}

// Requeue returns rows stuck in sending to pending
func (w *Worker) Requeue(ctx context.Context) (int64, error) {
	tag, err := w.db.Exec(ctx, `
		UPDATE webhook_queue
		SET status = 'pending', updated_at = NOW()
		WHERE status = 'sending'
	`)
	if err != nil {
		return 0, fmt.Errorf("requeue: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Drain runs one claim/deliver/settle pass and returns how many rows it claimed
func (w *Worker) Drain(ctx context.Context) (int, error) {
	jobs, err := w.claim(ctx)
	if err != nil {
		return 0, err
	}

	for i := range jobs {
		if err := w.settle(ctx, &jobs[i], w.attempt(ctx, &jobs[i])); err != nil {
			w.logger.Error("failed to settle webhook job",
				"job_id", jobs[i].ID,
				"error", err,
			)
		}
	}

	return len(jobs), nil
}

func (w *Worker) claim(ctx context.Context) ([]Job, error) {
	query := `
		UPDATE webhook_queue
		SET status = 'sending', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM webhook_queue
			WHERE status = 'pending' AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT $1
		)
		RETURNING id, url, event_type, payload, attempts, max_attempts
	`

	rows, err := w.db.Query(ctx, query, w.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("claim webhook jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.URL, &job.EventType, &job.Payload, &job.Attempts, &job.MaxAttempts); err != nil {
			return nil, fmt.Errorf("scan webhook job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

func (w *Worker) attempt(ctx context.Context, job *Job) error {
	if job.URL != w.service.Target().URL {
		return errTargetChanged
	}
	return w.service.deliver(ctx, job.EventType, job.Payload)
}

var errTargetChanged = errors.New("webhook target changed")

func (w *Worker) settle(ctx context.Context, job *Job, deliveryErr error) error {
	query := `
		UPDATE webhook_queue
		SET status = $2, attempts = $3, next_retry_at = $4, last_error = $5, updated_at = NOW()
		WHERE id = $1
	`

	attempts := job.Attempts + 1
	status, lastError := StatusDelivered, ""
	var next *time.Time

	switch {
	case deliveryErr == nil:
	case errors.Is(deliveryErr, errTargetChanged) || attempts >= job.MaxAttempts:
		status, lastError = StatusFailed, deliveryErr.Error()
	default:
		status, lastError = StatusPending, deliveryErr.Error()
		at := time.Now().Add(Backoff(job.Attempts, w.config.BaseDelay, w.config.MaxDelay))
		next = &at
	}

	if _, err := w.db.Exec(ctx, query, job.ID, status, attempts, next, lastError); err != nil {
		return fmt.Errorf("settle %s: %w", status, err)
	}

	switch status {
	case StatusDelivered:
		w.logger.Info("webhook job delivered", "job_id", job.ID, "attempts", attempts)
	case StatusFailed:
		w.logger.Warn("webhook job failed", "job_id", job.ID, "attempts", attempts, "error", lastError)
	default:
		w.logger.Info("webhook job scheduled for retry", "job_id", job.ID, "attempts", attempts, "next_retry", *next)
	}

	return nil
}

// Backoff doubles base per previous attempt, capped at max
func Backoff(attempts int, base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	return d
}
