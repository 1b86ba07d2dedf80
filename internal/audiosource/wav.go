package audiosource

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/youpy/go-wav"
	soxr "github.com/zaf/resample"

	"github.com/drgolem/pcmcast/internal/logx"
	"github.com/drgolem/pcmcast/internal/protocol"
)

const readChunkSamples = 4096

// WavSource decodes a WAV file, normalizing it to the mono/16-bit path
// the wire protocol carries: multi-channel input is downmixed, and the
// result is resampled to targetRate when it differs from the file's own
// rate. The whole file is decoded and normalized up front, since the
// server's source is always a bounded file, not a live stream.
type WavSource struct {
	spec    protocol.Spec
	samples []int16
	pos     int
}

// OpenWav opens path, decodes it fully, and normalizes it to mono 16-bit
// PCM at targetRate (0 keeps the file's own rate).
func OpenWav(path string, targetRate int) (*WavSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	defer f.Close()

	reader := wav.NewReader(f)
	format, err := reader.Format()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrOpen, err)
	}
	if format.AudioFormat != wav.AudioFormatPCM {
		return nil, fmt.Errorf("%w: unsupported WAV audio format %d (only PCM)", ErrOpen, format.AudioFormat)
	}

	channels := int(format.NumChannels)
	bitsPerSample := int(format.BitsPerSample)
	sampleRate := int(format.SampleRate)

	raw, err := decodeAllSamples(reader, channels, bitsPerSample)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	mono := raw
	if channels > 1 {
		mono = downmix(raw, channels)
		logx.L().Info("downmixed audio source to mono", "input_channels", channels, "samples", len(mono))
	}

	outRate := sampleRate
	if targetRate > 0 && targetRate != sampleRate {
		resampled, err := resampleMono(mono, sampleRate, targetRate)
		if err != nil {
			return nil, fmt.Errorf("%w: resample: %v", ErrDecode, err)
		}
		mono = resampled
		outRate = targetRate
		logx.L().Info("resampled audio source", "from_rate", sampleRate, "to_rate", targetRate, "samples", len(mono))
	}

	return &WavSource{
		spec: protocol.Spec{
			Channels:      1,
			SampleRate:    uint32(outRate),
			BitsPerSample: 16,
			SampleFormat:  protocol.SampleFormatInt,
		},
		samples: mono,
	}, nil
}

// Spec returns the normalized spec this source streams.
func (s *WavSource) Spec() protocol.Spec { return s.spec }

// Next returns the next sample in order, or (0, false) once exhausted.
func (s *WavSource) Next() (int16, bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	v := s.samples[s.pos]
	s.pos++
	return v, true
}

// Err always returns nil: a fully pre-decoded source cannot fail
// mid-iteration, only at construction.
func (s *WavSource) Err() error { return nil }

// Close is a no-op; the underlying file is already closed by OpenWav.
func (s *WavSource) Close() error { return nil }

// decodeAllSamples reads every frame from reader and converts it to
// int16 samples, interleaved by channel.
func decodeAllSamples(reader *wav.Reader, channels, bitsPerSample int) ([]int16, error) {
	out := make([]int16, 0, readChunkSamples*channels*4)
	for {
		frames, err := reader.ReadSamples(readChunkSamples)
		if len(frames) > 0 {
			for _, frame := range frames {
				for ch := 0; ch < channels; ch++ {
					if ch >= len(frame.Values) {
						break
					}
					out = append(out, toInt16(frame.Values[ch], bitsPerSample))
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return out, err
		}
		if len(frames) == 0 {
			break
		}
	}
	return out, nil
}

// toInt16 converts a go-wav sample value (already sign-extended by the
// reader) at the given bit depth to a 16-bit signed sample.
func toInt16(value int, bitsPerSample int) int16 {
	switch bitsPerSample {
	case 8:
		// go-wav's 8-bit samples are unsigned (0..255); recenter to signed.
		return int16((value - 128) << 8)
	case 16:
		return int16(value)
	case 24:
		return int16(value >> 8)
	case 32:
		return int16(value >> 16)
	default:
		return int16(value)
	}
}

// downmix averages interleaved multi-channel samples down to mono.
func downmix(interleaved []int16, channels int) []int16 {
	frames := len(interleaved) / channels
	mono := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int32
		for ch := 0; ch < channels; ch++ {
			sum += int32(interleaved[i*channels+ch])
		}
		mono[i] = int16(sum / int32(channels))
	}
	return mono
}

// resampleMono resamples a mono int16 stream from fromRate to toRate
// using the high-quality SoXR resampler.
func resampleMono(samples []int16, fromRate, toRate int) ([]int16, error) {
	raw := int16sToBytes(samples)

	var out bytes.Buffer
	resampler, err := soxr.New(&out, float64(fromRate), float64(toRate), 1, soxr.I16, soxr.HighQ)
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}
	if _, err := resampler.Write(raw); err != nil {
		resampler.Close()
		return nil, fmt.Errorf("resample write: %w", err)
	}
	if err := resampler.Close(); err != nil {
		return nil, fmt.Errorf("resample close: %w", err)
	}

	return bytesToInt16s(out.Bytes()), nil
}

func int16sToBytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		b[2*i] = byte(uint16(s) & 0xFF)
		b[2*i+1] = byte(uint16(s) >> 8)
	}
	return b
}

func bytesToInt16s(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
	}
	return out
}
