package sound

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/proctor/internal/detector"
)

// Poller samples a SoundProbe on its own goroutine so the tick loop only reads
// the latest outcome and never waits for a sampling window.
type Poller struct {
	probe  detector.SoundProbe
	logger *slog.Logger
	retry  time.Duration

	mu     sync.RWMutex
	latest detector.Signal[bool]

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPoller(probe detector.SoundProbe, logger *slog.Logger) *Poller {
	return &Poller{
		probe:  probe,
		logger: logger.With("component", "sound_poller"),
		retry:  time.Second,
		latest: detector.Absent[bool](),
	}
}

// Start begins polling in a background goroutine
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.run(ctx)
	p.logger.Info("sound poller started")
}

// Stop cancels polling and waits for the goroutine to exit
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("sound poller stopped")
}

// Latest returns the outcome of the last completed window. Absent until the
// first window finishes.
func (p *Poller) Latest() detector.Signal[bool] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	for ctx.Err() == nil {
		present, err := p.probe.ProbeSound(ctx)
		if ctx.Err() != nil {
			return
		}

		p.mu.Lock()
		p.latest = detector.From(present, err)
		p.mu.Unlock()

		if err == nil {
			continue
		}

		if errors.Is(err, ErrProbeClosed) {
			p.logger.Warn("sound source closed, polling stopped", "error", err)
			return
		}

		p.logger.Warn("sound probe failed", "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.retry):
		}
	}
}
