// Package app assembles the monitoring stack from configuration. The API
// server and the monitor CLI share it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saturnino-fabrica-de-software/proctor/internal/alert"
	"github.com/saturnino-fabrica-de-software/proctor/internal/audit"
	"github.com/saturnino-fabrica-de-software/proctor/internal/config"
	"github.com/saturnino-fabrica-de-software/proctor/internal/database"
	"github.com/saturnino-fabrica-de-software/proctor/internal/detector"
	"github.com/saturnino-fabrica-de-software/proctor/internal/detector/mock"
	"github.com/saturnino-fabrica-de-software/proctor/internal/detector/rekognition"
	"github.com/saturnino-fabrica-de-software/proctor/internal/detector/remote"
	"github.com/saturnino-fabrica-de-software/proctor/internal/emitter"
	"github.com/saturnino-fabrica-de-software/proctor/internal/evidence"
	"github.com/saturnino-fabrica-de-software/proctor/internal/metrics"
	"github.com/saturnino-fabrica-de-software/proctor/internal/monitor"
	"github.com/saturnino-fabrica-de-software/proctor/internal/repository"
	"github.com/saturnino-fabrica-de-software/proctor/internal/service"
	"github.com/saturnino-fabrica-de-software/proctor/internal/sound"
	"github.com/saturnino-fabrica-de-software/proctor/internal/webhook"
	"github.com/saturnino-fabrica-de-software/proctor/internal/ws"
)

// App holds the wired components. Optional ones are nil when disabled.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Sessions *service.SessionService
	Hub      *ws.Hub
	Sound    *sound.Poller
	DB       *pgxpool.Pool

	files         *evidence.FileRecorder
	alarms        *alert.Worker
	notifier      *alert.Notifier
	mqtt          *emitter.MQTTEmitter
	webhookWorker *webhook.Worker
	probe         *sound.CommandProbe
	cancel        context.CancelFunc
}

type Option func(*options)

type options struct {
	audit []audit.Logger
}

// WithAuditLogger adds a sink next to the structured log
func WithAuditLogger(l audit.Logger) Option {
	return func(o *options) {
		o.audit = append(o.audit, l)
	}
}

// New builds the stack. Nothing runs until Start.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
		Hub:     ws.NewHub(),
	}

	var auditLogger audit.Logger = audit.NewSlogLogger(logger)
	if len(o.audit) > 0 {
		auditLogger = audit.Tee(append([]audit.Logger{auditLogger}, o.audit...)...)
	}

	if cfg.DatabaseURL != "" {
		if cfg.MigrateOnStart {
			if err := database.Migrate(cfg.DatabaseURL, logger); err != nil {
				return nil, err
			}
		}
		pool, err := database.NewPgxPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
		if err != nil {
			return nil, err
		}
		a.DB = pool
		logger.Info("database connected")
	}

	detectors, err := Detectors(ctx, cfg, auditLogger)
	if err != nil {
		a.closeDB()
		return nil, err
	}
	logger.Info("detectors ready", "backend", cfg.DetectorBackend)

	a.files = evidence.NewFileRecorder(cfg.EvidenceDir, cfg.EvidenceLog, logger)
	var recorder evidence.Recorder = a.files
	if a.DB != nil {
		recorder = evidence.Mirror(a.files, repository.NewEvidenceRepository(a.DB))
	}

	a.alarms = alert.NewWorker(a.player(), logger, a.Metrics, alert.WorkerConfig{
		QueueSize: cfg.AlarmQueueSize,
		Workers:   cfg.AlarmWorkers,
	})

	a.notifier = alert.NewNotifier(logger, a.Metrics, a.publishers(ctx)...)

	dispatcher := alert.NewDispatcher(recorder, a.alarms, logger,
		alert.WithEvents(a.notifier),
		alert.WithAuditLogger(auditLogger),
		alert.WithMetrics(a.Metrics),
	)

	mon := monitor.New(detectors, Policy(cfg), logger)

	serviceOpts := []service.Option{
		service.WithReportPublisher(a.Hub),
		service.WithMetrics(a.Metrics),
		service.WithAuditLogger(auditLogger),
	}
	if a.DB != nil {
		serviceOpts = append(serviceOpts, service.WithSessionRepository(repository.NewSessionRepository(a.DB)))
	}
	a.Sessions = service.NewSessionService(monitor.NewStore(), mon, dispatcher, logger, serviceOpts...)

	return a, nil
}

// Detectors builds the detector set for the configured backend
func Detectors(ctx context.Context, cfg *config.Config, auditLogger audit.Logger) (detector.Set, error) {
	switch cfg.DetectorBackend {
	case "remote":
		rc := remote.DefaultConfig()
		rc.BaseURL = cfg.VisionURL
		rc.Timeout = cfg.VisionTimeout
		rc.RetryCount = cfg.VisionRetries
		return remote.New(rc).Set(cfg.IdentityMatchThreshold, cfg.GazeAngleLimit), nil

	case "rekognition":
		rc := rekognition.DefaultConfig()
		rc.Region = cfg.AWSRegion
		d, err := rekognition.New(ctx, rc,
			rekognition.WithAuditLogger(auditLogger),
			rekognition.WithMatchThreshold(cfg.IdentityMatchThreshold),
		)
		if err != nil {
			return detector.Set{}, err
		}
		return d.Set(cfg.GazeAngleLimit), nil

	case "mock":
		return mock.New().Set(), nil

	default:
		return detector.Set{}, fmt.Errorf("unknown detector backend %q", cfg.DetectorBackend)
	}
}

// Policy maps the configured thresholds onto the monitor policy
func Policy(cfg *config.Config) monitor.Policy {
	return monitor.Policy{
		AbsenceThreshold:  cfg.AbsenceThreshold,
		LookAwayThreshold: cfg.LookAwayThreshold,
		PeriodicInterval:  cfg.PeriodicInterval,
		ProhibitedLabel:   cfg.ProhibitedObjectLabel,
		TickInterval:      cfg.TickInterval,
	}
}

func (a *App) player() alert.Player {
	p, err := alert.NewCommandPlayer(a.Config.AlarmCommand, a.Config.AlarmSound)
	if err != nil {
		a.Logger.Warn("alarm playback disabled", "error", err)
		return alert.NopPlayer{}
	}
	return p
}

func (a *App) publishers(ctx context.Context) []alert.Publisher {
	var pubs []alert.Publisher

	if a.Config.MQTTBroker != "" {
		a.mqtt = emitter.NewMQTTEmitter(emitter.Config{
			Broker:   a.Config.MQTTBroker,
			ClientID: a.Config.MQTTClientID,
			Topic:    a.Config.MQTTTopic,
		}, a.Logger)
		// the client keeps retrying in the background
		if err := a.mqtt.Connect(ctx); err != nil {
			a.Logger.Warn("mqtt broker not reachable yet", "broker", a.Config.MQTTBroker, "error", err)
		}
		pubs = append(pubs, a.mqtt)
	}

	if a.Config.WebhookURL != "" {
		var queue database.PgxPool
		if a.DB != nil {
			queue = a.DB
		}
		svc := webhook.NewService(webhook.Target{URL: a.Config.WebhookURL, Secret: a.Config.WebhookSecret}, queue)
		pubs = append(pubs, alert.NewWebhookPublisher(svc))
		if a.DB != nil {
			a.webhookWorker = webhook.NewWorker(a.DB, svc, a.Logger, webhook.DefaultWorkerConfig())
		}
	}

	return pubs
}

// Start launches the background workers. They stop on Close or when ctx ends.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	go a.Hub.Run(ctx)
	a.alarms.Start()
	a.notifier.Start()

	if a.webhookWorker != nil {
		a.webhookWorker.Start(ctx)
	}

	if a.Config.SoundEnabled {
		probe, err := sound.StartCommandProbe(ctx, a.Config.SoundCommand, sound.Config{
			Threshold:  a.Config.SoundThreshold,
			SampleRate: a.Config.SoundSampleRate,
			Window:     a.Config.SoundWindow,
		}, a.Logger)
		if err != nil {
			return fmt.Errorf("start sound probe: %w", err)
		}
		a.probe = probe
		a.Sound = sound.NewPoller(probe, a.Logger)
		a.Sound.Start(ctx)
	}

	return nil
}

// Close ends the live sessions and then stops everything in dependency
// order, so their last findings still reach evidence and publishers.
func (a *App) Close(ctx context.Context) {
	a.Sessions.Shutdown(ctx, time.Now().UTC())

	if a.Sound != nil {
		a.Sound.Stop()
	}
	if a.probe != nil {
		_ = a.probe.Close()
	}

	a.alarms.Stop()
	a.notifier.Stop()

	if a.webhookWorker != nil {
		a.webhookWorker.Stop()
	}
	if a.mqtt != nil {
		a.mqtt.Disconnect()
	}
	if a.cancel != nil {
		a.cancel()
	}

	if err := a.files.Close(); err != nil {
		a.Logger.Error("failed to close evidence log", "error", err)
	}
	a.closeDB()
}

func (a *App) closeDB() {
	if a.DB != nil {
		a.DB.Close()
	}
}
