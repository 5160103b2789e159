package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/proctor/internal/database"
	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// SessionRepository keeps the audit copy of monitoring sessions
type SessionRepository struct {
	pool database.PgxPool
}

func NewSessionRepository(pool database.PgxPool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Save inserts the record or overwrites the mutable columns of an existing one
func (r *SessionRepository) Save(ctx context.Context, rec domain.SessionRecord) error {
	query := `
		INSERT INTO sessions (id, started_at, ended_at, baseline_set_at, baseline, ticks, findings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			ended_at = EXCLUDED.ended_at,
			baseline_set_at = EXCLUDED.baseline_set_at,
			baseline = EXCLUDED.baseline,
			ticks = EXCLUDED.ticks,
			findings = EXCLUDED.findings,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.StartedAt,
		rec.EndedAt,
		rec.BaselineSetAt,
		toVector(rec.Baseline),
		rec.Ticks,
		rec.Findings,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SessionRecord, error) {
	query := `
		SELECT id, started_at, ended_at, baseline_set_at, baseline, ticks, findings
		FROM sessions
		WHERE id = $1
	`

	var rec domain.SessionRecord
	var baseline *pgvector.Vector

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.StartedAt,
		&rec.EndedAt,
		&rec.BaselineSetAt,
		&baseline,
		&rec.Ticks,
		&rec.Findings,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	rec.Baseline = fromVector(baseline)

	return &rec, nil
}

func toVector(v []float64) *pgvector.Vector {
	if len(v) == 0 {
		return nil
	}
	floats := make([]float32, len(v))
	for i, f := range v {
		floats[i] = float32(f)
	}
	vec := pgvector.NewVector(floats)
	return &vec
}

func fromVector(v *pgvector.Vector) []float64 {
	if v == nil || v.Slice() == nil {
		return nil
	}
	out := make([]float64, len(v.Slice()))
	for i, f := range v.Slice() {
		out[i] = float64(f)
	}
	return out
}
