package besteffort

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttemptSuccess(t *testing.T) {
	o := Attempt(func() (int, error) { return 42, nil })

	assert.True(t, o.Ok())
	assert.Equal(t, 42, o.Or(0))
}

func TestAttemptFailureFallsBack(t *testing.T) {
	o := Attempt(func() (string, error) { return "", errors.New("boom") })

	assert.False(t, o.Ok())
	assert.Equal(t, "fallback", o.Or("fallback"))
}

func TestLogReturnsOutcomeUnchanged(t *testing.T) {
	err := errors.New("boom")
	o := Attempt(func() (int, error) { return 0, err }).
		Log(context.Background(), "attempt failed")

	assert.ErrorIs(t, o.Err, err)
}
