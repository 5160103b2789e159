package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	return entry
}

func TestSlogLogger_Log(t *testing.T) {
	sessionID := uuid.New()

	tests := []struct {
		name      string
		event     Event
		wantLevel string
		wantKeys  map[string]interface{}
		absent    []string
	}{
		{
			name: "finding raised",
			event: Event{
				SessionID: sessionID,
				EventType: EventFindingRaised,
				Finding:   "no_face",
				Evidence:  "snapshots/no_face_2025-03-01_10-00-12.jpg",
				Success:   true,
			},
			wantLevel: "INFO",
			wantKeys: map[string]interface{}{
				"event_type": "FINDING_RAISED",
				"session_id": sessionID.String(),
				"finding":    "no_face",
				"evidence":   "snapshots/no_face_2025-03-01_10-00-12.jpg",
				"success":    true,
				"component":  "audit",
			},
			absent: []string{"error", "provider", "metadata"},
		},
		{
			name: "failed detector call",
			event: Event{
				EventType: EventFacesLocated,
				Provider:  "rekognition",
				Error:     "throttled",
				Metadata:  map[string]string{"operation": "DetectFaces"},
			},
			wantLevel: "WARN",
			wantKeys: map[string]interface{}{
				"event_type": "FACES_LOCATED",
				"provider":   "rekognition",
				"error":      "throttled",
				"success":    false,
				"metadata":   map[string]interface{}{"operation": "DetectFaces"},
			},
			absent: []string{"session_id", "finding"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewSlogLogger(jsonLogger(&buf)).Log(context.Background(), tt.event))

			entry := decode(t, &buf)
			assert.Equal(t, "audit_event", entry["msg"])
			assert.Equal(t, tt.wantLevel, entry["level"])
			for k, v := range tt.wantKeys {
				assert.Equal(t, v, entry[k], k)
			}
			for _, k := range tt.absent {
				assert.NotContains(t, entry, k)
			}
		})
	}
}

func TestSlogLogger_Log_GeneratesIDAndTimestamp(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewSlogLogger(jsonLogger(&buf)).Log(context.Background(), Event{EventType: EventSessionStarted, Success: true}))

	entry := decode(t, &buf)
	id, err := uuid.Parse(entry["event_id"].(string))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	at, err := time.Parse(time.RFC3339Nano, entry["at"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), at, 5*time.Second)
}

func TestSlogLogger_Log_UsesProvidedID(t *testing.T) {
	var buf bytes.Buffer
	id := uuid.New()
	require.NoError(t, NewSlogLogger(jsonLogger(&buf)).Log(context.Background(), Event{ID: id, EventType: EventSessionClosed, Success: true}))

	assert.Equal(t, id.String(), decode(t, &buf)["event_id"])
}

func TestNoOpLogger_Log(t *testing.T) {
	assert.NoError(t, (&NoOpLogger{}).Log(context.Background(), Event{EventType: EventFindingRaised}))
}

func TestMemoryLogger(t *testing.T) {
	mem := &MemoryLogger{}
	ctx := context.Background()

	require.NoError(t, mem.Log(ctx, Event{EventType: EventBaselineBound, Success: true}))
	require.NoError(t, mem.Log(ctx, Event{EventType: EventFindingRaised, Finding: "face_swap", Success: true}))
	require.NoError(t, mem.Log(ctx, Event{EventType: EventFindingRaised, Finding: "no_face", Success: true}))

	assert.Len(t, mem.Events(), 3)

	findings := mem.Events(EventFindingRaised)
	require.Len(t, findings, 2)
	assert.Equal(t, "face_swap", findings[0].Finding)
	assert.NotEqual(t, uuid.Nil, findings[0].ID)
	assert.False(t, findings[0].Timestamp.IsZero())
}

type failingLogger struct{ err error }

func (f failingLogger) Log(context.Context, Event) error { return f.err }

func TestTee(t *testing.T) {
	a, b := &MemoryLogger{}, &MemoryLogger{}
	boom := errors.New("boom")

	err := Tee(a, failingLogger{boom}, b).Log(context.Background(), Event{EventType: EventSessionStarted})
	assert.ErrorIs(t, err, boom)

	// both sinks saw the same stamped event
	require.Len(t, a.Events(), 1)
	require.Len(t, b.Events(), 1)
	assert.Equal(t, a.Events()[0].ID, b.Events()[0].ID)
}

func TestEvent_JSONOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(Event{EventType: EventFindingRaised, Success: true})
	require.NoError(t, err)

	s := string(data)
	assert.True(t, strings.Contains(s, `"event_type":"FINDING_RAISED"`))
	assert.NotContains(t, s, "finding\"")
	assert.NotContains(t, s, "metadata")
}

func TestSessionIDContext(t *testing.T) {
	id := uuid.New()

	assert.Equal(t, uuid.Nil, SessionIDFromContext(context.Background()))
	assert.Equal(t, id, SessionIDFromContext(WithSessionID(context.Background(), id)))
}
