package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy is the YAML override file for the monitoring thresholds.
// Zero values leave the environment setting in place.
//
//	absence_threshold: 15s
//	look_away_threshold: 5s
//	periodic_interval: 2m
//	prohibited_object_label: cell phone
//	gaze_angle_limit: 20
type Policy struct {
	AbsenceThreshold       Duration `yaml:"absence_threshold"`
	LookAwayThreshold      Duration `yaml:"look_away_threshold"`
	PeriodicInterval       Duration `yaml:"periodic_interval"`
	TickInterval           Duration `yaml:"tick_interval"`
	ProhibitedObjectLabel  string   `yaml:"prohibited_object_label"`
	GazeAngleLimit         float64  `yaml:"gaze_angle_limit"`
	IdentityMatchThreshold float64  `yaml:"identity_match_threshold"`
	SoundThreshold         float64  `yaml:"sound_threshold"`
}

// Duration accepts Go duration strings ("10s") in YAML
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	return &p, nil
}

func (p *Policy) Apply(cfg *Config) {
	if p.AbsenceThreshold > 0 {
		cfg.AbsenceThreshold = time.Duration(p.AbsenceThreshold)
	}
	if p.LookAwayThreshold > 0 {
		cfg.LookAwayThreshold = time.Duration(p.LookAwayThreshold)
	}
	if p.PeriodicInterval > 0 {
		cfg.PeriodicInterval = time.Duration(p.PeriodicInterval)
	}
	if p.TickInterval > 0 {
		cfg.TickInterval = time.Duration(p.TickInterval)
	}
	if p.ProhibitedObjectLabel != "" {
		cfg.ProhibitedObjectLabel = p.ProhibitedObjectLabel
	}
	if p.GazeAngleLimit > 0 {
		cfg.GazeAngleLimit = p.GazeAngleLimit
	}
	if p.IdentityMatchThreshold > 0 {
		cfg.IdentityMatchThreshold = p.IdentityMatchThreshold
	}
	if p.SoundThreshold > 0 {
		cfg.SoundThreshold = p.SoundThreshold
	}
}
