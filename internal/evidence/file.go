package evidence

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/overlay"
)

// FileRecorder keeps snapshots in a directory and rows in an append-only CSV
type FileRecorder struct {
	dir     string
	logPath string
	logger  *slog.Logger

	mu     sync.Mutex
	file   *os.File
	csv    *csv.Writer
	closed bool
}

// NewFileRecorder opens lazily; the directory and log are created on first use
func NewFileRecorder(dir, logPath string, logger *slog.Logger) *FileRecorder {
	return &FileRecorder{
		dir:     dir,
		logPath: logPath,
		logger:  logger.With("component", "evidence"),
	}
}

func (r *FileRecorder) Capture(ctx context.Context, sessionID uuid.UUID, frame []byte, event, detail string, at time.Time) (domain.EvidenceEntry, error) {
	if len(frame) == 0 {
		return domain.EvidenceEntry{}, ErrEmptyFrame
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.open(); err != nil {
		return domain.EvidenceEntry{}, err
	}

	stamped, err := overlay.Stamp(frame, at)
	if err != nil {
		r.logger.WarnContext(ctx, "snapshot not stamped, keeping raw frame", "event", event, "error", err)
		stamped = frame
	}

	filename, err := r.writeSnapshot(event, at, stamped)
	if err != nil {
		return domain.EvidenceEntry{}, err
	}

	entry := newEntry(sessionID, event, filename, detail, at)
	if err := r.appendRow(entry); err != nil {
		return domain.EvidenceEntry{}, err
	}
	return entry, nil
}

func (r *FileRecorder) Note(_ context.Context, sessionID uuid.UUID, event, detail string, at time.Time) (domain.EvidenceEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.open(); err != nil {
		return domain.EvidenceEntry{}, err
	}

	entry := newEntry(sessionID, event, "", detail, at)
	if err := r.appendRow(entry); err != nil {
		return domain.EvidenceEntry{}, err
	}
	return entry, nil
}

// Close flushes and closes the log
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if r.file == nil {
		return nil
	}
	r.csv.Flush()
	return r.file.Close()
}

// open must be called with mu held
func (r *FileRecorder) open() error {
	if r.closed {
		return ErrRecorderClosed
	}
	if r.file != nil {
		return nil
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create evidence dir: %w", err)
	}
	if dir := filepath.Dir(r.logPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create evidence log dir: %w", err)
		}
	}

	f, err := os.OpenFile(r.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open evidence log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat evidence log: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			_ = f.Close()
			return fmt.Errorf("write evidence header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			_ = f.Close()
			return fmt.Errorf("write evidence header: %w", err)
		}
	}

	r.file = f
	r.csv = w
	r.logger.Info("evidence log opened", "path", r.logPath, "dir", r.dir)
	return nil
}

func (r *FileRecorder) appendRow(e domain.EvidenceEntry) error {
	if err := r.csv.Write([]string{e.Event, e.Timestamp, e.Filename, e.Details}); err != nil {
		return fmt.Errorf("append evidence row: %w", err)
	}
	r.csv.Flush()
	if err := r.csv.Error(); err != nil {
		return fmt.Errorf("append evidence row: %w", err)
	}
	return nil
}

// writeSnapshot creates {event}_{timestamp}.jpg, adding a counter suffix when
// several captures share the same second
func (r *FileRecorder) writeSnapshot(event string, at time.Time, data []byte) (string, error) {
	base := fmt.Sprintf("%s_%s", event, at.Format(TimestampLayout))

	for n := 0; n < 1000; n++ {
		name := base + ".jpg"
		if n > 0 {
			name = fmt.Sprintf("%s_%d.jpg", base, n)
		}
		path := filepath.Join(r.dir, name)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create snapshot: %w", err)
		}

		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			_ = os.Remove(path)
			return "", fmt.Errorf("write snapshot: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close snapshot: %w", err)
		}
		return path, nil
	}

	return "", fmt.Errorf("create snapshot: no free name for %s", base)
}

var _ Recorder = (*FileRecorder)(nil)
