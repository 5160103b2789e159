package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/proctor/internal/metrics"
)

// Worker plays alarms off the tick loop. Requests go through a bounded
// queue consumed by a fixed number of players, so plays may overlap and a
// full queue drops the request instead of blocking.
type Worker struct {
	player  Player
	logger  *slog.Logger
	metrics *metrics.Metrics

	queue       chan Request
	workers     int
	playTimeout time.Duration

	// Lifecycle
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// WorkerConfig holds configuration for the alarm worker
type WorkerConfig struct {
	QueueSize   int           // Pending plays (default: 32)
	Workers     int           // Concurrent plays (default: 4)
	PlayTimeout time.Duration // Upper bound for one play (default: 30 seconds)
}

// DefaultWorkerConfig returns default configuration
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		QueueSize:   32,
		Workers:     4,
		PlayTimeout: 30 * time.Second,
	}
}

// NewWorker creates the alarm worker. m may be nil.
func NewWorker(player Player, logger *slog.Logger, m *metrics.Metrics, config WorkerConfig) *Worker {
	defaults := DefaultWorkerConfig()
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.PlayTimeout <= 0 {
		config.PlayTimeout = defaults.PlayTimeout
	}

	return &Worker{
		player:      player,
		logger:      logger.With("component", "alarm_worker"),
		metrics:     m,
		queue:       make(chan Request, config.QueueSize),
		workers:     config.Workers,
		playTimeout: config.PlayTimeout,
		done:        make(chan struct{}),
	}
}

// Start begins the players
func (w *Worker) Start() {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run()
	}
	w.logger.Info("alarm worker started",
		"queue_size", cap(w.queue),
		"workers", w.workers,
	)
}

// Stop waits for in-flight plays and abandons queued ones
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		w.logger.Info("alarm worker stopped", "abandoned", len(w.queue))
	})
}

// Enqueue never blocks. It reports false when the request was dropped.
func (w *Worker) Enqueue(req Request) bool {
	select {
	case <-w.done:
		return false
	default:
	}

	select {
	case w.queue <- req:
		return true
	default:
		if w.metrics != nil {
			w.metrics.AlarmsDropped.Add(1)
		}
		w.logger.Warn("alarm dropped - queue full",
			"session_id", req.SessionID,
			"kind", req.Kind,
		)
		return false
	}
}

func (w *Worker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case req := <-w.queue:
			w.play(req)
		}
	}
}

func (w *Worker) play(req Request) {
	ctx, cancel := context.WithTimeout(context.Background(), w.playTimeout)
	defer cancel()

	if err := w.player.Play(ctx); err != nil {
		// falha de alarme nunca interrompe o monitoramento
		if w.metrics != nil {
			w.metrics.AlarmsFailed.Add(1)
		}
		w.logger.Error("alarm playback failed",
			"session_id", req.SessionID,
			"kind", req.Kind,
			"error", err,
		)
		return
	}

	if w.metrics != nil {
		w.metrics.AlarmsPlayed.Add(1)
	}
	w.logger.Debug("alarm played", "session_id", req.SessionID, "kind", req.Kind)
}
