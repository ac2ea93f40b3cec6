// Package besteffort makes swallowed errors explicit. Operations whose
// failure must not abort the caller (secret-store mirroring, auth-header
// resolution during dispatch) run through Attempt; the Outcome is logged and
// the caller continues with a fallback value. The swallow is visible in the
// code and testable, instead of hiding in a bare recover or ignored return.
package besteffort

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Outcome records the result of a best-effort operation.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Attempt runs fn and captures its result.
func Attempt[T any](fn func() (T, error)) Outcome[T] {
	v, err := fn()
	return Outcome[T]{Value: v, Err: err}
}

// Ok reports whether the attempt succeeded.
func (o Outcome[T]) Ok() bool { return o.Err == nil }

// Log writes a warning when the attempt failed and returns the outcome for
// chaining.
func (o Outcome[T]) Log(_ context.Context, msg string) Outcome[T] {
	if o.Err != nil {
		log.Warn().Err(o.Err).Msg(msg)
	}
	return o
}

// Or returns the value on success and fallback otherwise.
func (o Outcome[T]) Or(fallback T) T {
	if o.Err != nil {
		return fallback
	}
	return o.Value
}
