package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/proctor/internal/audit"
	"github.com/saturnino-fabrica-de-software/proctor/internal/detector"
	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// Detector names used in Report.Failures and metrics
const (
	DetectorFaces      = "faces"
	DetectorEncoder    = "encoder"
	DetectorComparator = "comparator"
	DetectorGaze       = "gaze"
	DetectorObjects    = "objects"
	DetectorSound      = "sound"
)

// Tick is one frame plus the latest sound outcome
type Tick struct {
	At    time.Time
	Frame []byte
	Sound detector.Signal[bool]
}

// DetectorFailure is a detector that gave no signal this tick
type DetectorFailure struct {
	Detector string `json:"detector"`
	Error    string `json:"error"`
}

// Report is the outcome of evaluating one tick
type Report struct {
	SessionID     uuid.UUID         `json:"session_id"`
	Seq           int64             `json:"seq"`
	At            time.Time         `json:"at"`
	FaceCount     int               `json:"face_count"`
	Faces         []detector.Face   `json:"faces"`
	Objects       []detector.Object `json:"objects"`
	Findings      []domain.Finding  `json:"findings"`
	Status        Status            `json:"status"`
	BaselineBound bool              `json:"baseline_bound,omitempty"`
	Failures      []DetectorFailure `json:"failures,omitempty"`

	// Degraded is set by the dispatcher when evidence could not be written
	Degraded bool `json:"degraded,omitempty"`
}

// Monitor fuses per-tick detector signals into findings
type Monitor struct {
	detectors detector.Set
	policy    Policy
	logger    *slog.Logger
}

func New(detectors detector.Set, policy Policy, logger *slog.Logger) *Monitor {
	return &Monitor{
		detectors: detectors,
		policy:    policy.withDefaults(),
		logger:    logger.With("component", "monitor"),
	}
}

func (m *Monitor) Policy() Policy {
	return m.policy
}

// Evaluate runs the checks for one tick in a fixed order: identity, absence,
// multiplicity, gaze, objects, sound, periodic capture. A failed detector
// only silences the checks that depend on it.
//
// The caller must hold the session exclusively; Store.Tick does that.
func (m *Monitor) Evaluate(ctx context.Context, s *Session, tick Tick) (Report, error) {
	if s.Closed() {
		return Report{}, domain.ErrSessionClosed
	}
	if tick.At.Before(s.lastTickAt) {
		return Report{}, domain.ErrTickOutOfOrder.WithError(
			fmt.Errorf("tick at %s precedes %s", tick.At.Format(time.RFC3339Nano), s.lastTickAt.Format(time.RFC3339Nano)))
	}

	ctx = audit.WithSessionID(ctx, s.ID)
	now := tick.At
	r := Report{SessionID: s.ID, Seq: s.ticks + 1, At: now}

	faces := detector.From(m.detectors.Faces.LocateFaces(ctx, tick.Frame))
	if faces.Failed() {
		r.fail(DetectorFaces, faces.Err)
	} else {
		r.Faces = faces.Value
		r.FaceCount = len(faces.Value)
		m.checkIdentity(ctx, s, tick, &r)
		m.checkAbsence(s, now, &r)
		m.checkMultiplicity(now, &r)
		m.checkGaze(ctx, s, tick, &r)
	}

	m.checkObjects(ctx, tick, &r)
	m.checkSound(tick, &r)
	m.checkPeriodic(s, now, &r)

	s.lastTickAt = now
	s.ticks++
	s.findings += int64(len(r.Findings))
	r.Status = ProjectStatus(r.Findings, r.FaceCount)

	for _, f := range r.Failures {
		m.logger.Debug("detector gave no signal", "session_id", s.ID, "detector", f.Detector, "error", f.Error)
	}

	return r, nil
}

func (r *Report) fail(name string, err error) {
	r.Failures = append(r.Failures, DetectorFailure{Detector: name, Error: err.Error()})
}

func (r *Report) emit(f domain.Finding) {
	r.Findings = append(r.Findings, f)
}

// arm starts t at the current tick unless it is already running. The
// condition began somewhere after the previous tick, so the gap to it is
// credited, capped at one tick interval. A session's first tick gets the
// full interval.
func (m *Monitor) arm(t *debounce, s *Session, now time.Time) bool {
	if t.armed() {
		return false
	}
	lead := m.policy.TickInterval
	if s.ticks > 0 {
		if gap := now.Sub(s.lastTickAt); gap < lead {
			lead = gap
		}
	}
	*t = debounce{since: now, lead: lead}
	return true
}

func (m *Monitor) checkIdentity(ctx context.Context, s *Session, tick Tick, r *Report) {
	if r.FaceCount != 1 {
		return
	}

	current := detector.From(m.detectors.Encoder.EncodeIdentity(ctx, tick.Frame, r.Faces[0]))
	if current.Failed() {
		r.fail(DetectorEncoder, current.Err)
		return
	}

	if _, bound := s.Baseline(); !bound {
		if current.Value.Empty() {
			return
		}
		s.baseline = current.Value
		s.baselineSetAt = tick.At
		r.BaselineBound = true
		m.logger.Info("identity baseline bound", "session_id", s.ID)
		return
	}

	match := detector.From(m.detectors.Comparator.IdentitiesMatch(ctx, s.baseline, current.Value))
	if match.Failed() {
		r.fail(DetectorComparator, match.Err)
		return
	}
	if !match.Value {
		r.emit(domain.NewIdentityMismatch(tick.At))
	}
}

func (m *Monitor) checkAbsence(s *Session, now time.Time, r *Report) {
	if r.FaceCount > 0 {
		s.absence = debounce{}
		return
	}
	if m.arm(&s.absence, s, now) {
		return
	}
	if s.absence.held(now) >= m.policy.AbsenceThreshold {
		r.emit(domain.NewAbsence(now, m.policy.AbsenceThreshold))
	}
}

func (m *Monitor) checkMultiplicity(now time.Time, r *Report) {
	if r.FaceCount > 1 {
		r.emit(domain.NewMultipleFaces(now))
	}
}

func (m *Monitor) checkGaze(ctx context.Context, s *Session, tick Tick, r *Report) {
	if r.FaceCount != 1 {
		s.lookAway = debounce{}
		return
	}

	gaze := detector.From(m.detectors.Gaze.EstimateGaze(ctx, tick.Frame, r.Faces[0]))
	if gaze.Failed() {
		r.fail(DetectorGaze, gaze.Err)
		return
	}

	if gaze.Value == domain.GazeForward {
		s.lookAway = debounce{}
		return
	}
	if m.arm(&s.lookAway, s, tick.At) {
		return
	}
	if s.lookAway.held(tick.At) >= m.policy.LookAwayThreshold {
		r.emit(domain.NewLookingAway(tick.At, gaze.Value))
	}
}

func (m *Monitor) checkObjects(ctx context.Context, tick Tick, r *Report) {
	objects := detector.From(m.detectors.Objects.ClassifyObjects(ctx, tick.Frame))
	if objects.Failed() {
		r.fail(DetectorObjects, objects.Err)
		return
	}

	r.Objects = objects.Value
	for _, o := range objects.Value {
		if strings.ToLower(o.Label) == m.policy.ProhibitedLabel {
			r.emit(domain.NewObjectDetected(tick.At, o.Label, o.Confidence))
		}
	}
}

func (m *Monitor) checkSound(tick Tick, r *Report) {
	switch {
	case tick.Sound.Failed():
		r.fail(DetectorSound, tick.Sound.Err)
	case tick.Sound.Ok() && tick.Sound.Value:
		r.emit(domain.NewSoundDetected(tick.At))
	}
}

func (m *Monitor) checkPeriodic(s *Session, now time.Time, r *Report) {
	if now.Sub(s.lastPeriodic) >= m.policy.PeriodicInterval {
		r.emit(domain.NewPeriodicCapture(now, m.policy.PeriodicInterval))
		s.lastPeriodic = now
	}
}
