package alert

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/metrics"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWorker_PlaysQueuedAlarms(t *testing.T) {
	var played atomic.Int32
	player := PlayerFunc(func(ctx context.Context) error {
		played.Add(1)
		return nil
	})

	m := metrics.New()
	w := NewWorker(player, discardLogger(), m, WorkerConfig{QueueSize: 8, Workers: 2})
	w.Start()
	defer w.Stop()

	for i := 0; i < 5; i++ {
		assert.True(t, w.Enqueue(Request{SessionID: uuid.New(), Kind: domain.FindingAbsence}))
	}

	require.Eventually(t, func() bool { return played.Load() == 5 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return m.AlarmsPlayed.Load() == 5 }, time.Second, 5*time.Millisecond)
}

func TestWorker_PlaysOverlap(t *testing.T) {
	release := make(chan struct{})
	var running atomic.Int32
	var peak atomic.Int32

	player := PlayerFunc(func(ctx context.Context) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return nil
	})

	w := NewWorker(player, discardLogger(), nil, WorkerConfig{QueueSize: 4, Workers: 3})
	w.Start()

	for i := 0; i < 3; i++ {
		w.Enqueue(Request{Kind: domain.FindingSoundDetected})
	}

	require.Eventually(t, func() bool { return peak.Load() == 3 }, time.Second, 5*time.Millisecond)
	close(release)
	w.Stop()
}

func TestWorker_EnqueueDropsWhenFull(t *testing.T) {
	m := metrics.New()
	// not started, so nothing drains the queue
	w := NewWorker(NopPlayer{}, discardLogger(), m, WorkerConfig{QueueSize: 1, Workers: 1})

	assert.True(t, w.Enqueue(Request{Kind: domain.FindingAbsence}))
	assert.False(t, w.Enqueue(Request{Kind: domain.FindingAbsence}))
	assert.Equal(t, uint64(1), m.AlarmsDropped.Load())
}

func TestWorker_FailuresAreCounted(t *testing.T) {
	m := metrics.New()
	var wg sync.WaitGroup
	wg.Add(1)

	player := PlayerFunc(func(ctx context.Context) error {
		defer wg.Done()
		return errors.New("no audio device")
	})

	w := NewWorker(player, discardLogger(), m, WorkerConfig{QueueSize: 1, Workers: 1})
	w.Start()
	defer w.Stop()

	w.Enqueue(Request{Kind: domain.FindingIdentityMismatch})
	wg.Wait()

	assert.Eventually(t, func() bool { return m.AlarmsFailed.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(0), m.AlarmsPlayed.Load())
}

func TestWorker_EnqueueAfterStop(t *testing.T) {
	w := NewWorker(NopPlayer{}, discardLogger(), nil, DefaultWorkerConfig())
	w.Start()
	w.Stop()
	w.Stop()

	assert.False(t, w.Enqueue(Request{Kind: domain.FindingAbsence}))
}

func TestCommandPlayer(t *testing.T) {
	_, err := NewCommandPlayer("  ", "alert.wav")
	assert.ErrorIs(t, err, ErrNoAlarmCommand)

	ok, err := NewCommandPlayer("true", "alert.wav")
	require.NoError(t, err)
	assert.NoError(t, ok.Play(context.Background()))

	failing, err := NewCommandPlayer("false", "alert.wav")
	require.NoError(t, err)
	assert.Error(t, failing.Play(context.Background()))
}

func TestSeverityFor(t *testing.T) {
	assert.Equal(t, SeverityCritical, SeverityFor(domain.FindingIdentityMismatch))
	assert.Equal(t, SeverityCritical, SeverityFor(domain.FindingObjectDetected))
	assert.Equal(t, SeverityWarning, SeverityFor(domain.FindingAbsence))
	assert.Equal(t, SeverityWarning, SeverityFor(domain.FindingLookingAway))
	assert.Equal(t, SeverityInfo, SeverityFor(domain.FindingPeriodicCapture))
}
