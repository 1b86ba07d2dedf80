// Package audiosource yields a Spec and a lazy, finite, non-restartable
// sequence of i16 samples for the pacing loop to broadcast.
package audiosource

import (
	"errors"

	"github.com/drgolem/pcmcast/internal/protocol"
)

// Sentinel errors for source construction and iteration.
var (
	ErrOpen   = errors.New("audiosource: open failed")
	ErrDecode = errors.New("audiosource: decode failed")
)

// Source yields exactly one Spec and an iterator over the samples
// consistent with it.
type Source interface {
	Spec() protocol.Spec
	// Next returns the next sample and true, or (0, false) once the
	// source is exhausted. A decode failure mid-iteration is reported
	// by Err after Next has returned false.
	Next() (int16, bool)
	// Err returns the first error encountered during iteration, if any.
	// It must only be consulted after Next has returned false.
	Err() error
	Close() error
}
