package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/proctor/internal/detector"
	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/monitor"
)

// SoundSource returns the most recent sound probe outcome
type SoundSource interface {
	Latest() detector.Signal[bool]
}

// Runner is the acquisition loop of one session: read a frame, tick, repeat
// until the source is exhausted or ctx ends.
type Runner struct {
	service   *SessionService
	source    FrameSource
	sound     SoundSource
	sessionID uuid.UUID
	logger    *slog.Logger
}

// NewRunner; sound may be nil when no microphone is monitored
func NewRunner(svc *SessionService, source FrameSource, sound SoundSource, sessionID uuid.UUID, logger *slog.Logger) *Runner {
	if sessionID == uuid.Nil {
		sessionID = uuid.New()
	}
	return &Runner{
		service:   svc,
		source:    source,
		sound:     sound,
		sessionID: sessionID,
		logger:    logger.With("component", "runner", "session_id", sessionID),
	}
}

func (r *Runner) SessionID() uuid.UUID {
	return r.sessionID
}

// Run returns nil when the source is exhausted or ctx is cancelled. The
// session is closed either way.
func (r *Runner) Run(ctx context.Context) error {
	var last time.Time
	defer func() {
		if last.IsZero() {
			last = time.Now()
		}
		// ctx may already be cancelled here
		if _, err := r.service.Close(context.WithoutCancel(ctx), r.sessionID, last); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			r.logger.Error("failed to close session", "error", err)
		}
	}()

	r.logger.Info("monitoring loop started")

	for {
		frame, err := r.source.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			r.logger.Info("frame source exhausted")
			return nil
		case ctx.Err() != nil:
			r.logger.Info("monitoring loop stopped")
			return nil
		case err != nil:
			return fmt.Errorf("read frame: %w", err)
		}

		tick := monitor.Tick{At: frame.At, Frame: frame.Data, Sound: detector.Absent[bool]()}
		if r.sound != nil {
			tick.Sound = r.sound.Latest()
		}

		report, err := r.service.Tick(ctx, r.sessionID, tick)
		if err != nil {
			if errors.Is(err, domain.ErrTickOutOfOrder) {
				r.logger.Warn("frame skipped", "frame", frame.Name, "error", err)
				continue
			}
			return fmt.Errorf("tick: %w", err)
		}
		last = frame.At

		r.logger.Debug("tick evaluated",
			"seq", report.Seq,
			"frame", frame.Name,
			"faces", report.FaceCount,
			"status", report.Status.Text,
			"findings", len(report.Findings),
		)
	}
}
