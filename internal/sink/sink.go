// Package sink implements the client-side consumers of decoded audio
// messages: a WAV file writer and a real-time speaker writer.
package sink

import "errors"

// Sentinel errors, wrapped with %w so callers can classify with errors.Is.
var (
	ErrWriterOpen        = errors.New("sink: open output file")
	ErrWriterAppend      = errors.New("sink: append samples")
	ErrWriterFinalize    = errors.New("sink: finalize output file")
	ErrNoDevice          = errors.New("sink: no matching output device")
	ErrUnsupportedFormat = errors.New("sink: unsupported output format")
	ErrStreamBuild       = errors.New("sink: build output stream")
	ErrStreamPlay        = errors.New("sink: start output stream")
)
