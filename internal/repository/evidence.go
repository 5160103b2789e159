package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/proctor/internal/database"
	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/evidence"
)

// EvidenceRepository mirrors evidence log rows into evidence_log
type EvidenceRepository struct {
	pool database.PgxPool
}

func NewEvidenceRepository(pool database.PgxPool) *EvidenceRepository {
	return &EvidenceRepository{pool: pool}
}

var _ evidence.Sink = (*EvidenceRepository)(nil)

func (r *EvidenceRepository) Append(ctx context.Context, entry domain.EvidenceEntry) error {
	query := `
		INSERT INTO evidence_log (id, session_id, event, event_ts, filename, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.SessionID,
		entry.Event,
		entry.Timestamp,
		entry.Filename,
		entry.Details,
		entry.CreatedAt,
	)
	if isUniqueViolation(err) {
		// same entry mirrored twice
		return nil
	}
	if err != nil {
		return fmt.Errorf("append evidence: %w", err)
	}

	return nil
}

// ListBySession returns the rows of one session in append order
func (r *EvidenceRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.EvidenceEntry, error) {
	query := `
		SELECT id, session_id, event, event_ts, filename, details, created_at
		FROM evidence_log
		WHERE session_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.EvidenceEntry, 0)
	for rows.Next() {
		var e domain.EvidenceEntry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Event, &e.Timestamp, &e.Filename, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence: %w", err)
	}

	return entries, nil
}
