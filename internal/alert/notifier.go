package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/proctor/internal/metrics"
	"github.com/saturnino-fabrica-de-software/proctor/internal/webhook"
)

// Publisher forwards finding events to an external channel
type Publisher interface {
	Name() string
	Publish(ctx context.Context, event Event) error
}

// Notifier fans events out to every publisher from a single goroutine, so
// each channel sees the events of a session in order.
type Notifier struct {
	publishers []Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	timeout    time.Duration

	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func NewNotifier(logger *slog.Logger, m *metrics.Metrics, publishers ...Publisher) *Notifier {
	return &Notifier{
		publishers: publishers,
		logger:     logger.With("component", "notifier"),
		metrics:    m,
		timeout:    15 * time.Second,
		events:     make(chan Event, 256),
		done:       make(chan struct{}),
	}
}

func (n *Notifier) Start() {
	n.wg.Add(1)
	go n.run()
}

// Stop delivers what is already queued, then returns
func (n *Notifier) Stop() {
	n.once.Do(func() {
		close(n.done)
		n.wg.Wait()
	})
}

// Enqueue is non-blocking; a full buffer counts as a publish error
func (n *Notifier) Enqueue(event Event) {
	if len(n.publishers) == 0 {
		return
	}
	select {
	case n.events <- event:
	default:
		if n.metrics != nil {
			n.metrics.PublishErrors.Add(1)
		}
		n.logger.Warn("finding event dropped - buffer full", "session_id", event.SessionID, "event", event.Event)
	}
}

func (n *Notifier) run() {
	defer n.wg.Done()

	for {
		select {
		case ev := <-n.events:
			n.publish(ev)
		case <-n.done:
			for {
				select {
				case ev := <-n.events:
					n.publish(ev)
				default:
					return
				}
			}
		}
	}
}

func (n *Notifier) publish(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := n.Send(ctx, ev); err != nil && n.metrics != nil {
		n.metrics.PublishErrors.Add(1)
	}
}

// Send publishes synchronously to every channel and reports how many failed
func (n *Notifier) Send(ctx context.Context, event Event) error {
	var failed int

	for _, p := range n.publishers {
		if err := p.Publish(ctx, event); err != nil {
			n.logger.Error("failed to publish finding",
				"channel", p.Name(),
				"session_id", event.SessionID,
				"event", event.Event,
				"error", err,
			)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("failed to send %d/%d notifications", failed, len(n.publishers))
	}

	return nil
}

// WebhookPublisher posts each finding as a signed "finding.<event>" webhook
type WebhookPublisher struct {
	service *webhook.Service
}

func NewWebhookPublisher(service *webhook.Service) *WebhookPublisher {
	return &WebhookPublisher{service: service}
}

func (p *WebhookPublisher) Name() string { return "webhook" }

func (p *WebhookPublisher) Publish(ctx context.Context, event Event) error {
	payload := webhook.EventPayload{
		Type:      "finding." + event.Event,
		SessionID: event.SessionID,
		Data:      event,
		Timestamp: event.At,
	}

	if err := p.service.Send(ctx, payload); err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	return nil
}
