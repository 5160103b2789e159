package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/proctor/internal/detector"
	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return t0.Add(time.Duration(sec) * time.Second)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDetectors answers every detector call from its current fields.
// Tests change the fields between ticks.
type fakeDetectors struct {
	faceCount int
	facesErr  error

	identity  detector.Identity
	encodeErr error
	matchErr  error

	gaze    domain.Gaze
	gazeErr error

	objects    []detector.Object
	objectsErr error

	encodeCalls int
}

func newFake() *fakeDetectors {
	return &fakeDetectors{
		faceCount: 1,
		identity:  detector.Identity{Vector: []float64{1, 0}},
		gaze:      domain.GazeForward,
	}
}

func (f *fakeDetectors) LocateFaces(_ context.Context, _ []byte) ([]detector.Face, error) {
	if f.facesErr != nil {
		return nil, f.facesErr
	}
	faces := make([]detector.Face, f.faceCount)
	for i := range faces {
		faces[i] = detector.Face{Box: detector.BoundingBox{X: float64(i) * 0.3, Width: 0.2, Height: 0.2}, Confidence: 0.9}
	}
	return faces, nil
}

func (f *fakeDetectors) EncodeIdentity(_ context.Context, _ []byte, _ detector.Face) (detector.Identity, error) {
	f.encodeCalls++
	if f.encodeErr != nil {
		return detector.Identity{}, f.encodeErr
	}
	return f.identity, nil
}

func (f *fakeDetectors) IdentitiesMatch(ctx context.Context, baseline, candidate detector.Identity) (bool, error) {
	if f.matchErr != nil {
		return false, f.matchErr
	}
	return detector.NewCosineComparator(0.8).IdentitiesMatch(ctx, baseline, candidate)
}

func (f *fakeDetectors) EstimateGaze(_ context.Context, _ []byte, _ detector.Face) (domain.Gaze, error) {
	if f.gazeErr != nil {
		return "", f.gazeErr
	}
	return f.gaze, nil
}

func (f *fakeDetectors) ClassifyObjects(_ context.Context, _ []byte) ([]detector.Object, error) {
	if f.objectsErr != nil {
		return nil, f.objectsErr
	}
	return f.objects, nil
}

func (f *fakeDetectors) set() detector.Set {
	return detector.Set{Faces: f, Encoder: f, Comparator: f, Gaze: f, Objects: f}
}

type harness struct {
	t       *testing.T
	fake    *fakeDetectors
	monitor *Monitor
	session *Session
	sound   detector.Signal[bool]
}

func newHarness(t *testing.T) *harness {
	fake := newFake()
	return &harness{
		t:       t,
		fake:    fake,
		monitor: New(fake.set(), DefaultPolicy(), testLogger()),
		session: NewSession(uuid.New(), t0),
		sound:   detector.Present(false),
	}
}

func (h *harness) tick(sec int) Report {
	h.t.Helper()
	r, err := h.monitor.Evaluate(context.Background(), h.session, Tick{At: at(sec), Frame: []byte("frame"), Sound: h.sound})
	require.NoError(h.t, err)
	return r
}

func kinds(r Report) []domain.FindingKind {
	out := make([]domain.FindingKind, 0, len(r.Findings))
	for _, f := range r.Findings {
		out = append(out, f.Kind)
	}
	return out
}

func count(r Report, kind domain.FindingKind) int {
	n := 0
	for _, f := range r.Findings {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

func TestAbsence_TwelveTicksWithoutFace(t *testing.T) {
	h := newHarness(t)
	h.fake.faceCount = 0

	for sec := 1; sec <= 12; sec++ {
		r := h.tick(sec)
		if sec < 10 {
			assert.Zero(t, count(r, domain.FindingAbsence), "tick %d", sec)
		} else {
			assert.Equal(t, 1, count(r, domain.FindingAbsence), "tick %d", sec)
		}
	}

	since, armed := h.session.AbsenceTimer()
	assert.True(t, armed)
	assert.Equal(t, at(1), since)
}

func TestAbsence_SparseTicksNeedTheFullThreshold(t *testing.T) {
	h := newHarness(t)
	h.tick(1)

	// a minute without ticks is not a minute of absence
	h.fake.faceCount = 0
	assert.Zero(t, count(h.tick(60), domain.FindingAbsence))
	assert.Zero(t, count(h.tick(61), domain.FindingAbsence))

	for sec := 62; sec <= 68; sec++ {
		assert.Zero(t, count(h.tick(sec), domain.FindingAbsence), "tick %d", sec)
	}
	assert.Equal(t, 1, count(h.tick(69), domain.FindingAbsence))
}

func TestAbsence_LateFirstTickAfterCreate(t *testing.T) {
	h := newHarness(t)
	h.fake.faceCount = 0

	assert.Zero(t, count(h.tick(45), domain.FindingAbsence))
	assert.Zero(t, count(h.tick(46), domain.FindingAbsence))

	since, armed := h.session.AbsenceTimer()
	assert.True(t, armed)
	assert.Equal(t, at(45), since)
	assert.Equal(t, 1, count(h.tick(54), domain.FindingAbsence))
}

func TestGaze_SparseTicksNeedTheFullThreshold(t *testing.T) {
	h := newHarness(t)
	h.tick(1)

	h.fake.gaze = domain.GazeUp
	assert.Zero(t, count(h.tick(30), domain.FindingLookingAway))
	assert.Zero(t, count(h.tick(31), domain.FindingLookingAway))
	assert.Equal(t, 1, count(h.tick(34), domain.FindingLookingAway))
}

func TestDebounce_ShortTickInterval(t *testing.T) {
	policy := DefaultPolicy()
	policy.TickInterval = 100 * time.Millisecond
	fake := newFake()
	fake.faceCount = 0
	m := New(fake.set(), policy, testLogger())
	s := NewSession(uuid.New(), t0)

	fired := -1
	for i := 1; i <= 101; i++ {
		r, err := m.Evaluate(context.Background(), s, Tick{At: t0.Add(time.Duration(i) * 100 * time.Millisecond), Sound: detector.Absent[bool]()})
		require.NoError(t, err)
		if count(r, domain.FindingAbsence) > 0 && fired < 0 {
			fired = i
		}
	}
	// armed at tick 1 with 100ms credited, ten seconds are reached at tick 100
	assert.Equal(t, 100, fired)
}

func TestAbsence_ShortGapNeverFires(t *testing.T) {
	h := newHarness(t)
	h.fake.faceCount = 0

	for sec := 1; sec <= 9; sec++ {
		assert.Zero(t, count(h.tick(sec), domain.FindingAbsence))
	}

	h.fake.faceCount = 1
	r := h.tick(10)
	assert.Zero(t, count(r, domain.FindingAbsence))

	_, armed := h.session.AbsenceTimer()
	assert.False(t, armed)
}

func TestAbsence_FiresEveryTickUntilFaceReturns(t *testing.T) {
	h := newHarness(t)
	h.tick(1)
	h.fake.faceCount = 0

	fired := 0
	for sec := 2; sec <= 30; sec++ {
		r := h.tick(sec)
		if sec >= 11 {
			require.Equal(t, 1, count(r, domain.FindingAbsence), "gap at tick %d", sec)
			assert.Equal(t, "No face detected for 10 seconds", r.Findings[0].Detail)
			fired++
		} else {
			assert.Zero(t, count(r, domain.FindingAbsence))
		}
	}
	assert.Equal(t, 20, fired)

	h.fake.faceCount = 1
	assert.Zero(t, count(h.tick(31), domain.FindingAbsence))

	// a fresh gap needs the full threshold again
	h.fake.faceCount = 0
	for sec := 32; sec <= 40; sec++ {
		assert.Zero(t, count(h.tick(sec), domain.FindingAbsence))
	}
	assert.Equal(t, 1, count(h.tick(41), domain.FindingAbsence))
}

func TestGaze_SixTicksLookingLeft(t *testing.T) {
	h := newHarness(t)
	h.fake.gaze = domain.GazeLeft

	for sec := 1; sec <= 6; sec++ {
		r := h.tick(sec)
		if sec <= 4 {
			assert.Zero(t, count(r, domain.FindingLookingAway), "tick %d", sec)
			continue
		}
		require.Equal(t, 1, count(r, domain.FindingLookingAway), "tick %d", sec)
		assert.Equal(t, domain.GazeLeft, r.Findings[0].Direction)
		assert.Equal(t, "User looking left", r.Findings[0].Detail)
		assert.Equal(t, "Looking Left", r.Status.Text)
	}
}

func TestGaze_ForwardClearsTimer(t *testing.T) {
	h := newHarness(t)
	h.fake.gaze = domain.GazeDown
	h.tick(1)
	h.tick(2)

	h.fake.gaze = domain.GazeForward
	h.tick(3)
	_, armed := h.session.LookAwayTimer()
	assert.False(t, armed)

	h.fake.gaze = domain.GazeDown
	for sec := 4; sec <= 7; sec++ {
		assert.Zero(t, count(h.tick(sec), domain.FindingLookingAway))
	}
	assert.Equal(t, 1, count(h.tick(8), domain.FindingLookingAway))
}

func TestGaze_ClearedWhenFaceCountIsNotOne(t *testing.T) {
	h := newHarness(t)
	h.fake.gaze = domain.GazeRight
	h.tick(1)
	h.tick(2)

	h.fake.faceCount = 2
	h.tick(3)
	_, armed := h.session.LookAwayTimer()
	assert.False(t, armed)

	h.fake.faceCount = 0
	h.tick(4)
	_, armed = h.session.LookAwayTimer()
	assert.False(t, armed)
}

func TestGaze_FailureLeavesTimerUntouched(t *testing.T) {
	h := newHarness(t)
	h.fake.gaze = domain.GazeLeft
	h.tick(1)
	h.tick(2)
	h.tick(3)

	h.fake.gazeErr = detector.ErrNoPose
	r := h.tick(4)
	require.Len(t, r.Failures, 1)
	assert.Equal(t, DetectorGaze, r.Failures[0].Detector)
	since, armed := h.session.LookAwayTimer()
	assert.True(t, armed)
	assert.Equal(t, at(1), since)

	h.fake.gazeErr = nil
	assert.Equal(t, 1, count(h.tick(5), domain.FindingLookingAway))
}

func TestIdentity_BaselineSetOnce(t *testing.T) {
	h := newHarness(t)
	e1 := detector.Identity{Vector: []float64{1, 0}}
	e2 := detector.Identity{Vector: []float64{0, 1}}

	h.fake.identity = e1
	r := h.tick(1)
	assert.True(t, r.BaselineBound)
	assert.Empty(t, r.Findings)

	h.fake.identity = e2
	r = h.tick(2)
	assert.False(t, r.BaselineBound)
	assert.Equal(t, []domain.FindingKind{domain.FindingIdentityMismatch}, kinds(r))
	assert.Equal(t, "Different Face Detected", r.Status.Text)
	assert.True(t, r.Status.Alert)

	baseline, bound := h.session.Baseline()
	assert.True(t, bound)
	assert.Equal(t, e1, baseline)

	h.fake.identity = e1
	assert.Empty(t, h.tick(3).Findings)
}

func TestIdentity_NotBoundWithoutExactlyOneFace(t *testing.T) {
	h := newHarness(t)
	h.fake.faceCount = 2
	h.tick(1)
	h.fake.faceCount = 0
	h.tick(2)

	_, bound := h.session.Baseline()
	assert.False(t, bound)
	assert.Zero(t, h.fake.encodeCalls)
}

func TestIdentity_DetectorFailures(t *testing.T) {
	h := newHarness(t)

	h.fake.encodeErr = detector.ErrNoEmbedding
	r := h.tick(1)
	assert.Empty(t, r.Findings)
	_, bound := h.session.Baseline()
	assert.False(t, bound)

	h.fake.encodeErr = nil
	h.tick(2)
	baseline, bound := h.session.Baseline()
	require.True(t, bound)

	h.fake.identity = detector.Identity{Vector: []float64{0, 1}}
	h.fake.matchErr = errors.New("comparison unavailable")
	r = h.tick(3)
	assert.Empty(t, r.Findings)
	require.Len(t, r.Failures, 1)
	assert.Equal(t, DetectorComparator, r.Failures[0].Detector)

	after, _ := h.session.Baseline()
	assert.Equal(t, baseline, after)
}

func TestNoDebounce_MultipleFacesObjectsSound(t *testing.T) {
	h := newHarness(t)
	h.fake.faceCount = 2
	h.fake.objects = []detector.Object{
		{Label: "cell phone", Confidence: 0.91},
		{Label: "book", Confidence: 0.7},
	}
	h.sound = detector.Present(true)

	for sec := 1; sec <= 5; sec++ {
		r := h.tick(sec)
		assert.Equal(t, []domain.FindingKind{
			domain.FindingMultipleFaces,
			domain.FindingObjectDetected,
			domain.FindingSoundDetected,
		}, kinds(r), "tick %d", sec)
		assert.Equal(t, "Detected: cell phone (0.91)", r.Findings[1].Detail)
		assert.Equal(t, "Multiple Faces Detected | Mobile Detected | Sound Detected", r.Status.Text)
	}
}

func TestObjects_LabelMatchIsCaseInsensitive(t *testing.T) {
	fake := newFake()
	fake.objects = []detector.Object{{Label: "Laptop", Confidence: 0.8}, {Label: "cell phone", Confidence: 0.9}}
	m := New(fake.set(), Policy{ProhibitedLabel: " LAPTOP "}, testLogger())
	s := NewSession(uuid.New(), t0)

	r, err := m.Evaluate(context.Background(), s, Tick{At: at(1), Sound: detector.Absent[bool]()})
	require.NoError(t, err)
	require.Equal(t, []domain.FindingKind{domain.FindingObjectDetected}, kinds(r))
	assert.Equal(t, "Laptop", r.Findings[0].Label)
	assert.Equal(t, "Object Detected: Laptop", r.Status.Text)
}

func TestPeriodic_IntervalFromPreviousCapture(t *testing.T) {
	h := newHarness(t)

	var captured []int
	for _, sec := range []int{10, 59, 65, 100, 124, 125, 130, 184, 185} {
		if sec == 100 {
			h.fake.faceCount = 0
			h.sound = detector.Present(true)
		}
		r := h.tick(sec)
		if count(r, domain.FindingPeriodicCapture) == 1 {
			captured = append(captured, sec)
			f := r.Findings[len(r.Findings)-1]
			assert.Equal(t, domain.FindingPeriodicCapture, f.Kind, "periodic is evaluated last")
			note, ok := f.FollowUpNote()
			assert.True(t, ok)
			assert.Equal(t, "Routine snapshot every 60 seconds", note.Detail)
		}
	}

	assert.Equal(t, []int{65, 125, 185}, captured)
	assert.Equal(t, at(185), h.session.LastPeriodicCapture())
}

func TestPeriodic_AloneKeepsNeutralStatus(t *testing.T) {
	h := newHarness(t)
	r := h.tick(60)

	assert.Equal(t, []domain.FindingKind{domain.FindingPeriodicCapture}, kinds(r))
	assert.False(t, r.Status.Alert)
	assert.Equal(t, StatusPresent, r.Status.Text)
}

func TestFindingOrder(t *testing.T) {
	h := newHarness(t)
	h.fake.identity = detector.Identity{Vector: []float64{1, 0}}
	h.tick(1)

	h.fake.identity = detector.Identity{Vector: []float64{0, 1}}
	h.fake.gaze = domain.GazeUp
	h.fake.objects = []detector.Object{{Label: "cell phone", Confidence: 0.5}}
	h.sound = detector.Present(true)
	for sec := 2; sec < 60; sec++ {
		h.tick(sec)
	}

	r := h.tick(60)
	assert.Equal(t, []domain.FindingKind{
		domain.FindingIdentityMismatch,
		domain.FindingLookingAway,
		domain.FindingObjectDetected,
		domain.FindingSoundDetected,
		domain.FindingPeriodicCapture,
	}, kinds(r))
}

func TestDetectorFailure_DoesNotSuppressOtherChecks(t *testing.T) {
	h := newHarness(t)
	h.fake.faceCount = 0
	for sec := 1; sec <= 9; sec++ {
		h.tick(sec)
	}

	h.fake.objectsErr = errors.New("classifier down")
	h.sound = detector.Failed[bool](errors.New("mic unplugged"))
	r := h.tick(10)

	assert.Equal(t, []domain.FindingKind{domain.FindingAbsence}, kinds(r))
	require.Len(t, r.Failures, 2)
	assert.Equal(t, DetectorObjects, r.Failures[0].Detector)
	assert.Equal(t, DetectorSound, r.Failures[1].Detector)
}

func TestFaceLocatorFailure_SkipsFaceChecksOnly(t *testing.T) {
	h := newHarness(t)
	h.fake.faceCount = 0
	for sec := 1; sec <= 5; sec++ {
		h.tick(sec)
	}

	h.fake.facesErr = errors.New("locator timeout")
	h.fake.objects = []detector.Object{{Label: "cell phone", Confidence: 0.8}}
	r := h.tick(6)

	assert.Equal(t, []domain.FindingKind{domain.FindingObjectDetected}, kinds(r))
	assert.Equal(t, DetectorFaces, r.Failures[0].Detector)
	since, armed := h.session.AbsenceTimer()
	assert.True(t, armed, "absence timer untouched by a failed locator")
	assert.Equal(t, at(1), since)

	h.fake.facesErr = nil
	h.fake.objects = nil
	for sec := 7; sec <= 9; sec++ {
		assert.Zero(t, count(h.tick(sec), domain.FindingAbsence))
	}
	assert.Equal(t, 1, count(h.tick(10), domain.FindingAbsence))
}

func TestEvaluate_Errors(t *testing.T) {
	h := newHarness(t)
	h.tick(5)

	_, err := h.monitor.Evaluate(context.Background(), h.session, Tick{At: at(4)})
	assert.ErrorIs(t, err, domain.ErrTickOutOfOrder)
	assert.Equal(t, int64(1), h.session.Ticks())

	h.session.closedAt = at(6)
	_, err = h.monitor.Evaluate(context.Background(), h.session, Tick{At: at(7)})
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
}

func TestReport_SequenceAndRecord(t *testing.T) {
	h := newHarness(t)
	h.fake.faceCount = 2

	r1 := h.tick(1)
	r2 := h.tick(2)
	assert.Equal(t, int64(1), r1.Seq)
	assert.Equal(t, int64(2), r2.Seq)
	assert.Equal(t, 2, r2.FaceCount)
	assert.Equal(t, "Faces: 2", r2.Status.FacesLine())

	rec := h.session.Record()
	assert.Equal(t, h.session.ID, rec.ID)
	assert.Equal(t, int64(2), rec.Ticks)
	assert.Equal(t, int64(2), rec.Findings)
	assert.Nil(t, rec.BaselineSetAt)
	assert.Nil(t, rec.EndedAt)
}
