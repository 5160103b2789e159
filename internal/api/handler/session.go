package handler

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/proctor/internal/detector"
	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/monitor"
)

const (
	maxImageSize = 10 * 1024 * 1024 // 10MB
)

var validImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// SessionService interface for the service
type SessionService interface {
	Create(ctx context.Context, id uuid.UUID, at time.Time) (domain.SessionRecord, error)
	Tick(ctx context.Context, id uuid.UUID, tick monitor.Tick) (monitor.Report, error)
	Get(id uuid.UUID) (domain.SessionRecord, error)
	Frame(id uuid.UUID) ([]byte, error)
	Close(ctx context.Context, id uuid.UUID, at time.Time) (domain.SessionRecord, error)
}

// SoundSource is a microphone sampled on the server side
type SoundSource interface {
	Latest() detector.Signal[bool]
}

// SessionHandler handles monitoring session requests
type SessionHandler struct {
	service SessionService
	sound   SoundSource
	logger  *slog.Logger
	now     func() time.Time
}

type SessionHandlerOption func(*SessionHandler)

// WithSoundSource answers ticks that carry no sound field
func WithSoundSource(src SoundSource) SessionHandlerOption {
	return func(h *SessionHandler) { h.sound = src }
}

func NewSessionHandler(service SessionService, logger *slog.Logger, opts ...SessionHandlerOption) *SessionHandler {
	h := &SessionHandler{
		service: service,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CreateSessionRequest body of POST /v1/sessions; all fields optional
type CreateSessionRequest struct {
	SessionID string `json:"session_id"`
}

// SessionResponse is the audit view of a session
type SessionResponse struct {
	ID            string  `json:"id"`
	StartedAt     string  `json:"started_at"`
	EndedAt       *string `json:"ended_at,omitempty"`
	BaselineSetAt *string `json:"baseline_set_at,omitempty"`
	Ticks         int64   `json:"ticks"`
	Findings      int64   `json:"findings"`
}

func toSessionResponse(rec domain.SessionRecord) SessionResponse {
	return SessionResponse{
		ID:            rec.ID.String(),
		StartedAt:     rec.StartedAt.Format(time.RFC3339Nano),
		EndedAt:       formatOptional(rec.EndedAt),
		BaselineSetAt: formatOptional(rec.BaselineSetAt),
		Ticks:         rec.Ticks,
		Findings:      rec.Findings,
	}
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339Nano)
	return &s
}

// Create POST /v1/sessions
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return domain.ErrBadRequest.WithError(err)
		}
	}

	id := uuid.Nil
	if s := strings.TrimSpace(req.SessionID); s != "" {
		parsed, err := uuid.Parse(s)
		if err != nil {
			return domain.ErrBadRequest.ForField("session_id").WithError(err)
		}
		id = parsed
	}

	rec, err := h.service.Create(c.Context(), id, h.now().UTC())
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(toSessionResponse(rec))
}

// Get GET /v1/sessions/:id
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	rec, err := h.service.Get(id)
	if err != nil {
		return err
	}

	return c.JSON(toSessionResponse(rec))
}

// Tick POST /v1/sessions/:id/ticks - evaluate one frame
func (h *SessionHandler) Tick(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	frame, err := extractAndValidateImage(c)
	if err != nil {
		return fmt.Errorf("tick: %w", err)
	}

	sound, err := parseSound(c.FormValue("sound"))
	if err != nil {
		return err
	}
	if sound.Status == detector.StatusAbsent && h.sound != nil {
		sound = h.sound.Latest()
	}

	at, err := h.parseTimestamp(c.FormValue("timestamp"))
	if err != nil {
		return err
	}

	report, err := h.service.Tick(c.Context(), id, monitor.Tick{At: at, Frame: frame, Sound: sound})
	if err != nil {
		return err
	}

	return c.JSON(report)
}

// Frame GET /v1/sessions/:id/frame - last annotated frame
func (h *SessionHandler) Frame(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	frame, err := h.service.Frame(id)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(frame)
}

// Close DELETE /v1/sessions/:id
func (h *SessionHandler) Close(c *fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	rec, err := h.service.Close(c.Context(), id, h.now().UTC())
	if err != nil {
		return err
	}

	return c.JSON(toSessionResponse(rec))
}

func sessionID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, domain.ErrBadRequest.WithError(fmt.Errorf("session id: %w", err))
	}
	return id, nil
}

// parseSound: an omitted field means the client did not sample a microphone
func parseSound(v string) (detector.Signal[bool], error) {
	if v == "" {
		return detector.Absent[bool](), nil
	}
	detected, err := strconv.ParseBool(v)
	if err != nil {
		return detector.Signal[bool]{}, domain.ErrValidationFailed.ForField("sound").WithError(err)
	}
	return detector.Present(detected), nil
}

func (h *SessionHandler) parseTimestamp(v string) (time.Time, error) {
	if v == "" {
		return h.now().UTC(), nil
	}
	at, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, domain.ErrValidationFailed.ForField("timestamp").WithError(err)
	}
	return at, nil
}

// extractAndValidateImage reads the "image" part and checks it decodes as
// JPEG or PNG
func extractAndValidateImage(c *fiber.Ctx) ([]byte, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, domain.ErrValidationFailed.ForField("image").WithError(err)
	}

	if file.Size == 0 || file.Size > maxImageSize {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("image size %d", file.Size))
	}

	f, err := file.Open()
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	defer func() {
		_ = f.Close()
	}()

	imageBytes, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}

	// capture clients often send application/octet-stream; trust the bytes
	contentType := file.Header.Get("Content-Type")
	if !validImageTypes[contentType] {
		contentType = http.DetectContentType(imageBytes)
	}
	if !validImageTypes[contentType] {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("content type %q", contentType))
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(imageBytes)); err != nil {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("decode image: %w", err))
	}

	return imageBytes, nil
}
