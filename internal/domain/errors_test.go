package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{"sentinel", ErrSessionNotFound, "Monitoring session not found"},
		{"with cause", ErrInvalidImage.WithError(errors.New("unexpected EOF")), "Invalid image format or corrupted file: unexpected EOF"},
		{"with field", ErrValidationFailed.ForField("sound"), "Request validation failed (sound)"},
		{
			"with field and cause",
			ErrValidationFailed.ForField("timestamp").WithError(errors.New("bad month")),
			"Request validation failed (timestamp): bad month",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_CopiesLeaveSentinelsAlone(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := ErrInternal.WithError(cause).ForField("evidence")

	assert.Nil(t, ErrInternal.Err)
	assert.Empty(t, ErrInternal.Field)

	assert.Equal(t, ErrInternal.Code, wrapped.Code)
	assert.Equal(t, ErrInternal.StatusCode, wrapped.StatusCode)
	assert.Equal(t, "evidence", wrapped.Field)
	assert.ErrorIs(t, wrapped, cause)
	assert.ErrorIs(t, wrapped, ErrInternal)
	assert.Same(t, cause, wrapped.Unwrap())
	assert.Nil(t, ErrSessionClosed.Unwrap())
}

func TestAppError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("tick: %w", ErrTickOutOfOrder.WithError(errors.New("12:00:01 < 12:00:02")))

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TICK_OUT_OF_ORDER", appErr.Code)

	assert.ErrorIs(t, err, ErrTickOutOfOrder)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
	assert.NotErrorIs(t, errors.New("TICK_OUT_OF_ORDER"), ErrTickOutOfOrder)
}

func TestAppError_JSONHidesCause(t *testing.T) {
	data, err := json.Marshal(ErrValidationFailed.ForField("image").WithError(errors.New("multipart: no file")))
	require.NoError(t, err)

	assert.JSONEq(t, `{"code":"VALIDATION_FAILED","message":"Request validation failed","field":"image"}`, string(data))
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err        *AppError
		code       string
		statusCode int
	}{
		{ErrInternal, "INTERNAL_ERROR", 500},
		{ErrBadRequest, "BAD_REQUEST", 400},
		{ErrUnauthorized, "UNAUTHORIZED", 401},
		{ErrRateLimitExceeded, "RATE_LIMIT_EXCEEDED", 429},
		{ErrNotFound, "NOT_FOUND", 404},
		{ErrSessionNotFound, "SESSION_NOT_FOUND", 404},
		{ErrSessionExists, "SESSION_ALREADY_EXISTS", 409},
		{ErrSessionClosed, "SESSION_CLOSED", 410},
		{ErrTickOutOfOrder, "TICK_OUT_OF_ORDER", 422},
		{ErrNoFrameAvailable, "NO_FRAME_AVAILABLE", 404},
		{ErrInvalidImage, "INVALID_IMAGE", 422},
		{ErrValidationFailed, "VALIDATION_FAILED", 422},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.statusCode, tt.err.StatusCode)
		})
	}
}
