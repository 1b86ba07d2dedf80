package sink

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/drgolem/go-portaudio/portaudio"

	"github.com/drgolem/pcmcast/internal/logx"
	"github.com/drgolem/pcmcast/internal/protocol"
	"github.com/drgolem/pcmcast/internal/ringbuffer"
)

const framesPerBuffer = 512

// SpeakerSink bridges the blocking decode path to a real-time PortAudio
// output callback through a lock-free SPSC ring buffer. The producer side
// (Push, called from the decode goroutine) busy-polls for vacancy; the
// callback (consumer side) never allocates, locks, or blocks.
type SpeakerSink struct {
	ring     *ringbuffer.RingBuffer
	stream   *portaudio.PaStream
	channels int

	// scratch is reused by the callback on every invocation so it never
	// allocates on the real-time thread.
	scratch []int16

	closed        atomic.Bool
	samplesPlayed atomic.Uint64
}

// NewSpeakerSink opens a stereo output stream on device for spec,
// negotiating the first of {int16, float32} the binding accepts, and
// allocates a ring buffer sized to at least one second of audio.
func NewSpeakerSink(device Device, spec protocol.Spec) (*SpeakerSink, error) {
	capacity := uint64(spec.SampleRate)
	if capacity == 0 {
		capacity = 44100
	}

	const outChannels = 2
	s := &SpeakerSink{
		ring:     ringbuffer.New(capacity),
		channels: outChannels,
		scratch:  make([]int16, framesPerBuffer),
	}

	var lastErr error
	for _, format := range []portaudio.PaSampleFormat{portaudio.SampleFmtInt16, portaudio.SampleFmtFloat32} {
		stream := &portaudio.PaStream{
			OutputParameters: &portaudio.PaStreamParameters{
				DeviceIndex:  device.Index,
				ChannelCount: outChannels,
				SampleFormat: format,
			},
			SampleRate: float64(spec.SampleRate),
		}
		if err := stream.OpenCallback(framesPerBuffer, s.fillOutput); err != nil {
			lastErr = err
			continue
		}
		s.stream = stream
		return s, nil
	}
	return nil, fmt.Errorf("%w: device %q accepts neither int16 nor float32: %v", ErrUnsupportedFormat, device.Name, lastErr)
}

// Start begins playback.
func (s *SpeakerSink) Start() error {
	if err := s.stream.StartStream(); err != nil {
		return fmt.Errorf("%w: %v", ErrStreamPlay, err)
	}
	return nil
}

// Push enqueues samples for playback, busy-polling on vacancy. Simple to
// reason about, at the cost of spinning under sustained backpressure.
func (s *SpeakerSink) Push(samples []int16) {
	for !s.closed.Load() {
		if err := s.ring.Write(samples); err == nil {
			return
		}
		// Not enough vacancy yet; spin until the callback drains more.
	}
}

// fillOutput is the real-time callback: it must not allocate, lock, or
// perform I/O. It pulls samples from the ring buffer and writes them in
// the negotiated wire format, duplicating the mono source into every
// output channel, filling any shortfall with silence.
func (s *SpeakerSink) fillOutput(input, output []byte, frameCount uint, _ *portaudio.StreamCallbackTimeInfo, _ portaudio.StreamCallbackFlags) portaudio.StreamCallbackResult {
	frames := int(frameCount)
	bytesPerSample := len(output) / (frames * s.channels)

	n, _ := s.ring.Read(s.scratch[:frames])

	for i := 0; i < frames; i++ {
		var sample int16
		if i < n {
			sample = s.scratch[i]
		}
		for ch := 0; ch < s.channels; ch++ {
			off := (i*s.channels + ch) * bytesPerSample
			writeSample(output[off:off+bytesPerSample], sample)
		}
	}
	s.samplesPlayed.Add(uint64(n))
	return portaudio.Continue
}

func writeSample(dst []byte, s int16) {
	switch len(dst) {
	case 4:
		bits := math.Float32bits(float32(s) / 32768.0)
		dst[0] = byte(bits)
		dst[1] = byte(bits >> 8)
		dst[2] = byte(bits >> 16)
		dst[3] = byte(bits >> 24)
	case 2:
		dst[0] = byte(uint16(s))
		dst[1] = byte(uint16(s) >> 8)
	}
}

// Stop halts playback and releases the stream.
func (s *SpeakerSink) Stop() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.stream == nil {
		return nil
	}
	if err := s.stream.StopStream(); err != nil {
		logx.L().Warn("failed to stop speaker stream", "error", err)
	}
	if err := s.stream.CloseCallback(); err != nil {
		return fmt.Errorf("%w: %v", ErrStreamBuild, err)
	}
	return nil
}

// SamplesPlayed returns the number of samples written to the device so far.
func (s *SpeakerSink) SamplesPlayed() uint64 {
	return s.samplesPlayed.Load()
}
