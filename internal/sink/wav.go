package sink

import (
	"fmt"
	"os"

	"github.com/youpy/go-wav"

	"github.com/drgolem/pcmcast/internal/protocol"
)

// WavSink buffers received samples in memory and writes a complete RIFF
// WAV file on Finalize. This is required rather than incidental: go-wav's
// Writer takes the total sample count at construction time, so the file
// can't be streamed incrementally without knowing the end in advance.
type WavSink struct {
	path      string
	spec      protocol.Spec
	haveSpec  bool
	samples   []int16
	finalized bool
}

// NewWavSink returns a sink that will write to path once Finalize is called.
func NewWavSink(path string) *WavSink {
	return &WavSink{path: path}
}

// PutSpec records the stream's format. A later Spec overwrites an earlier
// one, so a mid-stream format change simply wins with whatever arrived last.
func (s *WavSink) PutSpec(spec protocol.Spec) {
	s.spec = spec
	s.haveSpec = true
}

// PutSamples appends decoded samples to the in-memory buffer.
func (s *WavSink) PutSamples(samples []int16) error {
	if s.finalized {
		return fmt.Errorf("%w: sink already finalized", ErrWriterAppend)
	}
	s.samples = append(s.samples, samples...)
	return nil
}

// Finalize writes the RIFF/WAVE container with the accumulated samples
// and the most recently observed spec, and consumes the sink: PutSamples
// fails afterward, and a further Finalize returns nil without writing.
func (s *WavSink) Finalize() error {
	if s.finalized {
		return nil
	}
	s.finalized = true

	if !s.haveSpec {
		return fmt.Errorf("%w: no spec received before finalize", ErrWriterOpen)
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriterOpen, err)
	}
	defer f.Close()

	audio := make([]byte, len(s.samples)*2)
	for i, v := range s.samples {
		audio[2*i] = byte(uint16(v) & 0xFF)
		audio[2*i+1] = byte(uint16(v) >> 8)
	}

	w := wav.NewWriter(f, uint32(len(s.samples)), s.spec.Channels, s.spec.SampleRate, s.spec.BitsPerSample)
	if _, err := w.Write(audio); err != nil {
		return fmt.Errorf("%w: %v", ErrWriterFinalize, err)
	}
	return nil
}
