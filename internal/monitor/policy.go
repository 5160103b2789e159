package monitor

import (
	"strings"
	"time"
)

const (
	DefaultAbsenceThreshold  = 10 * time.Second
	DefaultLookAwayThreshold = 5 * time.Second
	DefaultPeriodicInterval  = 60 * time.Second
	DefaultTickInterval      = time.Second
	DefaultProhibitedLabel   = "cell phone"
)

// Policy holds the debounce thresholds and the prohibited object label
type Policy struct {
	AbsenceThreshold  time.Duration
	LookAwayThreshold time.Duration
	PeriodicInterval  time.Duration
	ProhibitedLabel   string
	// TickInterval is the nominal spacing of ticks. A debounce timer credits
	// at most this much of the time before the tick that armed it.
	TickInterval time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		AbsenceThreshold:  DefaultAbsenceThreshold,
		LookAwayThreshold: DefaultLookAwayThreshold,
		PeriodicInterval:  DefaultPeriodicInterval,
		ProhibitedLabel:   DefaultProhibitedLabel,
		TickInterval:      DefaultTickInterval,
	}
}

// withDefaults fills zero fields
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.AbsenceThreshold <= 0 {
		p.AbsenceThreshold = d.AbsenceThreshold
	}
	if p.LookAwayThreshold <= 0 {
		p.LookAwayThreshold = d.LookAwayThreshold
	}
	if p.PeriodicInterval <= 0 {
		p.PeriodicInterval = d.PeriodicInterval
	}
	if p.TickInterval <= 0 {
		p.TickInterval = d.TickInterval
	}
	p.ProhibitedLabel = strings.ToLower(strings.TrimSpace(p.ProhibitedLabel))
	if p.ProhibitedLabel == "" {
		p.ProhibitedLabel = d.ProhibitedLabel
	}
	return p
}
