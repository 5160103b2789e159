package alert

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/metrics"
	"github.com/saturnino-fabrica-de-software/proctor/internal/webhook"
)

type recordingPublisher struct {
	name string
	err  error

	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Name() string { return p.name }

func (p *recordingPublisher) Publish(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

func TestNotifier_Send(t *testing.T) {
	ok := &recordingPublisher{name: "ok"}
	broken := &recordingPublisher{name: "broken", err: errors.New("broker down")}

	n := NewNotifier(discardLogger(), nil, ok, broken)
	ev := NewEvent(uuid.New(), 3, domain.NewSoundDetected(time.Now()), "")

	err := n.Send(context.Background(), ev)
	assert.EqualError(t, err, "failed to send 1/2 notifications")
	assert.Len(t, ok.Events(), 1)
	assert.Len(t, broken.Events(), 1)
}

func TestNotifier_AsyncKeepsOrder(t *testing.T) {
	pub := &recordingPublisher{name: "rec"}
	m := metrics.New()

	n := NewNotifier(discardLogger(), m, pub)
	n.Start()

	sessionID := uuid.New()
	for seq := int64(1); seq <= 20; seq++ {
		n.Enqueue(NewEvent(sessionID, seq, domain.NewSoundDetected(time.Now()), ""))
	}
	n.Stop()

	events := pub.Events()
	require.Len(t, events, 20)
	for i, ev := range events {
		assert.Equal(t, int64(i+1), ev.Seq)
	}
	assert.Equal(t, uint64(0), m.PublishErrors.Load())
}

func TestNotifier_CountsPublishErrors(t *testing.T) {
	m := metrics.New()
	n := NewNotifier(discardLogger(), m, &recordingPublisher{name: "broken", err: errors.New("x")})
	n.Start()
	n.Enqueue(NewEvent(uuid.New(), 1, domain.NewIdentityMismatch(time.Now()), ""))
	n.Stop()

	assert.Equal(t, uint64(1), m.PublishErrors.Load())
}

func TestWebhookPublisher(t *testing.T) {
	var gotType string
	var got webhook.EventPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get(webhook.EventHeader)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sessionID := uuid.New()
	at := time.Date(2025, 3, 1, 10, 0, 12, 0, time.UTC)
	pub := NewWebhookPublisher(webhook.NewService(webhook.Target{URL: srv.URL, Secret: "k"}, nil))

	err := pub.Publish(context.Background(), NewEvent(sessionID, 12, domain.NewAbsence(at, 10*time.Second), "snapshots/no_face.jpg"))
	require.NoError(t, err)

	assert.Equal(t, "finding.no_face", gotType)
	assert.Equal(t, sessionID, got.SessionID)
	assert.True(t, at.Equal(got.Timestamp))
	assert.Equal(t, "webhook", pub.Name())
}
