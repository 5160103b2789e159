package remote

import "errors"

var (
	ErrServiceUnavailable = errors.New("vision service unavailable")
	ErrInvalidResponse    = errors.New("invalid response from vision service")
	ErrNoFaceInResponse   = errors.New("no face data in vision response")
)
