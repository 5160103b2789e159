package detector

// Status is the outcome of one detector call
type Status int

const (
	StatusAbsent Status = iota
	StatusPresent
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPresent:
		return "present"
	case StatusFailed:
		return "failed"
	default:
		return "absent"
	}
}

// Signal is a detector outcome: a value, no value, or a failure.
// A failed signal means "no signal this tick" for the check that uses it.
type Signal[T any] struct {
	Status Status
	Value  T
	Err    error
}

func Present[T any](v T) Signal[T] {
	return Signal[T]{Status: StatusPresent, Value: v}
}

func Absent[T any]() Signal[T] {
	return Signal[T]{Status: StatusAbsent}
}

func Failed[T any](err error) Signal[T] {
	return Signal[T]{Status: StatusFailed, Err: err}
}

// From converts a (value, error) pair returned by a detector
func From[T any](v T, err error) Signal[T] {
	if err != nil {
		return Failed[T](err)
	}
	return Present(v)
}

func (s Signal[T]) Ok() bool {
	return s.Status == StatusPresent
}

func (s Signal[T]) Failed() bool {
	return s.Status == StatusFailed
}
