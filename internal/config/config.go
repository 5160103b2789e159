package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Database (optional, empty disables persistence)
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	MigrateOnStart bool   `envconfig:"MIGRATE_ON_START" default:"false"`

	// Security
	APIKey          string        `envconfig:"API_KEY"`
	RateLimit       int           `envconfig:"RATE_LIMIT" default:"1200"`
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// Detectors
	DetectorBackend string        `envconfig:"DETECTOR_BACKEND" default:"mock"`
	VisionURL       string        `envconfig:"VISION_URL" default:"http://localhost:5005"`
	VisionTimeout   time.Duration `envconfig:"VISION_TIMEOUT" default:"10s"`
	VisionRetries   int           `envconfig:"VISION_RETRIES" default:"1"`
	AWSRegion       string        `envconfig:"AWS_REGION" default:"us-east-1"`

	// Monitoring policy
	AbsenceThreshold       time.Duration `envconfig:"ABSENCE_THRESHOLD" default:"10s"`
	LookAwayThreshold      time.Duration `envconfig:"LOOK_AWAY_THRESHOLD" default:"5s"`
	PeriodicInterval       time.Duration `envconfig:"PERIODIC_INTERVAL" default:"60s"`
	TickInterval           time.Duration `envconfig:"TICK_INTERVAL" default:"1s"`
	ProhibitedObjectLabel  string        `envconfig:"PROHIBITED_OBJECT_LABEL" default:"cell phone"`
	GazeAngleLimit         float64       `envconfig:"GAZE_ANGLE_LIMIT" default:"15"`
	IdentityMatchThreshold float64       `envconfig:"IDENTITY_MATCH_THRESHOLD" default:"0.8"`
	PolicyFile             string        `envconfig:"POLICY_FILE"`

	// Sound
	SoundEnabled    bool          `envconfig:"SOUND_ENABLED" default:"false"`
	SoundThreshold  float64       `envconfig:"SOUND_THRESHOLD" default:"0.02"`
	SoundWindow     time.Duration `envconfig:"SOUND_WINDOW" default:"1s"`
	SoundSampleRate int           `envconfig:"SOUND_SAMPLE_RATE" default:"44100"`
	SoundCommand    string        `envconfig:"SOUND_COMMAND" default:"arecord -q -t raw -f S16_LE -c 1"`

	// Evidence
	EvidenceDir string `envconfig:"EVIDENCE_DIR" default:"snapshots"`
	EvidenceLog string `envconfig:"EVIDENCE_LOG" default:"snapshot_log.csv"`

	// Alarm
	AlarmCommand   string `envconfig:"ALARM_COMMAND" default:"aplay -q"`
	AlarmSound     string `envconfig:"ALARM_SOUND" default:"alert.wav"`
	AlarmQueueSize int    `envconfig:"ALARM_QUEUE_SIZE" default:"32"`
	AlarmWorkers   int    `envconfig:"ALARM_WORKERS" default:"4"`

	// Publishers
	MQTTBroker    string `envconfig:"MQTT_BROKER"`
	MQTTTopic     string `envconfig:"MQTT_TOPIC" default:"proctor/findings"`
	MQTTClientID  string `envconfig:"MQTT_CLIENT_ID" default:"proctor"`
	WebhookURL    string `envconfig:"WEBHOOK_URL"`
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`
}

// Load reads an optional .env file, then the process environment, then the
// policy file when POLICY_FILE is set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.PolicyFile != "" {
		policy, err := LoadPolicy(cfg.PolicyFile)
		if err != nil {
			return nil, err
		}
		policy.Apply(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DetectorBackend {
	case "mock", "remote", "rekognition":
	default:
		return fmt.Errorf("invalid DETECTOR_BACKEND %q (use: mock, remote, rekognition)", c.DetectorBackend)
	}
	if c.AbsenceThreshold <= 0 || c.LookAwayThreshold <= 0 || c.PeriodicInterval <= 0 || c.TickInterval <= 0 {
		return errors.New("thresholds and intervals must be positive")
	}
	if c.SoundThreshold <= 0 {
		return errors.New("SOUND_THRESHOLD must be positive")
	}
	if c.AlarmWorkers < 1 {
		return errors.New("ALARM_WORKERS must be at least 1")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
