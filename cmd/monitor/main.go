// Command monitor runs the monitoring loop over image files: a directory of
// frames, or a list of paths on stdin, one per line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/proctor/internal/app"
	"github.com/saturnino-fabrica-de-software/proctor/internal/audit"
	"github.com/saturnino-fabrica-de-software/proctor/internal/config"
	"github.com/saturnino-fabrica-de-software/proctor/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	dir := flag.String("dir", "", "Directory of JPEG/PNG frames, read in name order")
	stdin := flag.Bool("stdin", false, "Read frame paths from stdin instead of -dir")
	session := flag.String("session", "", "Session ID (default: generated)")
	interval := flag.Duration("interval", 100*time.Millisecond, "Time between frames")
	pace := flag.Bool("pace", false, "Replay frames in real time")
	start := flag.String("start", "", "Timestamp of the first frame, RFC3339 (default: now)")
	flag.Parse()

	if (*dir == "") == !*stdin {
		return errors.New("exactly one of -dir or -stdin is required")
	}

	sessionID := uuid.Nil
	if *session != "" {
		id, err := uuid.Parse(*session)
		if err != nil {
			return fmt.Errorf("invalid -session: %w", err)
		}
		sessionID = id
	}

	startAt := time.Now().UTC()
	if *start != "" {
		t, err := time.Parse(time.RFC3339Nano, *start)
		if err != nil {
			return fmt.Errorf("invalid -start: %w", err)
		}
		startAt = t
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// frames are dated interval apart, so that is the tick spacing too
	cfg.TickInterval = *interval

	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	var source *service.FileSource
	if *stdin {
		source, err = service.NewListSource(os.Stdin, startAt, *interval, *pace)
	} else {
		source, err = service.NewDirSource(*dir, startAt, *interval, *pace)
	}
	if err != nil {
		return err
	}
	logger.Info("frames found", "count", source.Len())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trail := &audit.MemoryLogger{}
	stack, err := app.New(ctx, cfg, logger, app.WithAuditLogger(trail))
	if err != nil {
		return fmt.Errorf("failed to build monitoring stack: %w", err)
	}
	defer stack.Close(context.Background())

	if err := stack.Start(ctx); err != nil {
		return err
	}

	var sound service.SoundSource
	if stack.Sound != nil {
		sound = stack.Sound
	}

	runner := service.NewRunner(stack.Sessions, source, sound, sessionID, logger)
	logger.Info("monitoring",
		"session_id", runner.SessionID(),
		"detector_backend", cfg.DetectorBackend,
		"sound", cfg.SoundEnabled,
	)

	if err := runner.Run(ctx); err != nil {
		return err
	}

	summarize(logger, runner.SessionID(), trail)
	return nil
}

// summarize logs how many findings of each kind the run raised
func summarize(logger *slog.Logger, sessionID uuid.UUID, trail *audit.MemoryLogger) {
	counts := make(map[string]int)
	for _, e := range trail.Events(audit.EventFindingRaised) {
		if e.SessionID == sessionID {
			counts[e.Finding]++
		}
	}

	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	args := []any{"session_id", sessionID}
	for _, k := range kinds {
		args = append(args, k, counts[k])
	}
	logger.Info("session summary", args...)
}
