package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

func TestSessionRepository_Save(t *testing.T) {
	id := uuid.New()
	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	bound := started.Add(time.Second)

	tests := []struct {
		name      string
		rec       domain.SessionRecord
		mockSetup func(mock pgxmock.PgxPoolIface)
		wantErr   string
	}{
		{
			name: "new session without baseline",
			rec:  domain.SessionRecord{ID: id, StartedAt: started},
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO sessions .* ON CONFLICT \(id\) DO UPDATE SET`).
					WithArgs(id, started, (*time.Time)(nil), (*time.Time)(nil), (*pgvector.Vector)(nil), int64(0), int64(0)).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "bound baseline is stored as a vector",
			rec: domain.SessionRecord{
				ID:            id,
				StartedAt:     started,
				BaselineSetAt: &bound,
				Baseline:      []float64{0.6, 0.8},
				Ticks:         12,
				Findings:      3,
			},
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO sessions`).
					WithArgs(id, started, (*time.Time)(nil), &bound, pgxmock.AnyArg(), int64(12), int64(3)).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "database error",
			rec:  domain.SessionRecord{ID: id, StartedAt: started},
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO sessions`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: "save session: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.mockSetup(mock)

			repo := NewSessionRepository(mock)
			err = repo.Save(context.Background(), tt.rec)

			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSessionRepository_GetByID(t *testing.T) {
	id := uuid.New()
	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ended := started.Add(time.Hour)
	columns := []string{"id", "started_at", "ended_at", "baseline_set_at", "baseline", "ticks", "findings"}

	t.Run("found with baseline", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		vec := pgvector.NewVector([]float32{0.5, 0.25})
		mock.ExpectQuery(`SELECT id, started_at, ended_at, baseline_set_at, baseline, ticks, findings FROM sessions WHERE id = \$1`).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows(columns).AddRow(id, started, &ended, &started, &vec, int64(40), int64(2)))

		rec, err := NewSessionRepository(mock).GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, rec.ID)
		assert.Equal(t, []float64{0.5, 0.25}, rec.Baseline)
		assert.Equal(t, int64(40), rec.Ticks)
		require.NotNil(t, rec.EndedAt)
		assert.Equal(t, ended, *rec.EndedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM sessions WHERE id = \$1`).
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)

		_, err = NewSessionRepository(mock).GetByID(context.Background(), id)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})
}

func TestVectorConversion(t *testing.T) {
	assert.Nil(t, toVector(nil))
	assert.Nil(t, fromVector(nil))

	vec := toVector([]float64{1, 0.5})
	require.NotNil(t, vec)
	assert.Equal(t, []float32{1, 0.5}, vec.Slice())
	assert.Equal(t, []float64{1, 0.5}, fromVector(vec))
}
