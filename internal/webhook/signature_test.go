package webhook

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSign(t *testing.T) {
	at := time.Unix(1740823212, 0)
	payload := []byte(`{"type":"finding.no_face"}`)

	sig := Sign("s3cret", at, payload)
	assert.True(t, strings.HasPrefix(sig, "t=1740823212,v1="))
	assert.Len(t, strings.TrimPrefix(sig, "t=1740823212,v1="), 64)

	assert.Equal(t, sig, Sign("s3cret", at, payload))
	assert.NotEqual(t, sig, Sign("other", at, payload))
	assert.NotEqual(t, sig, Sign("s3cret", at.Add(time.Second), payload))
}

func TestVerify(t *testing.T) {
	at := time.Unix(1740823212, 0)
	payload := []byte(`{"session_id":"x"}`)
	valid := Sign("s3cret", at, payload)

	tests := []struct {
		name    string
		secret  string
		payload []byte
		header  string
		now     time.Time
		wantErr error
	}{
		{"valid", "s3cret", payload, valid, at.Add(time.Minute), nil},
		{"wrong secret", "nope", payload, valid, at, ErrSignatureMismatch},
		{"modified payload", "s3cret", []byte(`{"session_id":"y"}`), valid, at, ErrSignatureMismatch},
		{"too old", "s3cret", payload, valid, at.Add(DefaultTolerance + time.Second), ErrSignatureExpired},
		{"from the future", "s3cret", payload, valid, at.Add(-DefaultTolerance - time.Second), ErrSignatureExpired},
		{"no timestamp", "s3cret", payload, "v1=abcd", at, ErrMalformedSignature},
		{"garbage", "s3cret", payload, "sha256=abcd", at, ErrMalformedSignature},
		{"bad timestamp", "s3cret", payload, "t=soon,v1=abcd", at, ErrMalformedSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(tt.secret, tt.payload, tt.header, tt.now, DefaultTolerance)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
