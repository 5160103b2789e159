package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/saturnino-fabrica-de-software/proctor/internal/database"
)

const (
	SignatureHeader = "X-Proctor-Signature"
	EventHeader     = "X-Proctor-Event"
)

// Service signs and posts events to the configured target. With a database,
// failed deliveries are queued for the Worker to retry; without one they are
// returned to the caller.
type Service struct {
	target Target
	db     database.PgxPool
	client *http.Client
	now    func() time.Time
}

func NewService(target Target, db database.PgxPool) *Service {
	return &Service{
		target: target,
		db:     db,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
}

func (s *Service) Target() Target {
	return s.target
}

func (s *Service) Send(ctx context.Context, event EventPayload) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := s.deliver(ctx, event.Type, payload); err != nil {
		if s.db == nil {
			return err
		}
		return s.enqueue(ctx, event.Type, payload, err.Error())
	}

	return nil
}

func (s *Service) deliver(ctx context.Context, eventType string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.target.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(s.target.Secret, s.now(), payload))
	req.Header.Set(EventHeader, eventType)
	req.Header.Set("User-Agent", "Proctor-Webhook/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return nil
}

func (s *Service) enqueue(ctx context.Context, eventType string, payload []byte, errorMsg string) error {
	query := `
		INSERT INTO webhook_queue (url, event_type, payload, next_retry_at, last_error)
		VALUES ($1, $2, $3, NOW() + INTERVAL '1 second', $4)
	`

	_, err := s.db.Exec(ctx, query, s.target.URL, eventType, payload, errorMsg)
	if err != nil {
		return fmt.Errorf("enqueue webhook: %w", err)
	}

	return nil
}
