// Package protocol implements the application-level audio message codec:
// a small tagged union of Spec and Samples messages, serialized to a
// fixed little-endian wire format.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// SampleFormat tags whether PCM samples are floating-point or integer.
type SampleFormat uint8

const (
	SampleFormatFloat SampleFormat = 1
	SampleFormatInt   SampleFormat = 2
)

const (
	tagSpec    byte = 0x01
	tagSamples byte = 0x02
)

var (
	ErrUnknownType         = errors.New("protocol: unknown message tag")
	ErrUnknownSampleFormat = errors.New("protocol: unknown sample format")
	ErrTruncatedMessage    = errors.New("protocol: truncated message")
	ErrTrailingBytes       = errors.New("protocol: trailing bytes after message")
)

// Spec describes the parameters of a PCM stream.
type Spec struct {
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
	SampleFormat  SampleFormat
}

// Message is the tagged union carried over the wire: exactly one of Spec
// or Samples is meaningful, selected by IsSpec.
type Message struct {
	IsSpec  bool
	Spec    Spec
	Samples []int16
}

// SpecMessage wraps a Spec as a Message.
func SpecMessage(s Spec) Message {
	return Message{IsSpec: true, Spec: s}
}

// SamplesMessage wraps a sample slice as a Message.
func SamplesMessage(samples []int16) Message {
	return Message{Samples: samples}
}

// Serialize encodes m to its wire representation.
func Serialize(m Message) []byte {
	if m.IsSpec {
		buf := make([]byte, 1+2+4+2+1)
		buf[0] = tagSpec
		binary.LittleEndian.PutUint16(buf[1:3], m.Spec.Channels)
		binary.LittleEndian.PutUint32(buf[3:7], m.Spec.SampleRate)
		binary.LittleEndian.PutUint16(buf[7:9], m.Spec.BitsPerSample)
		buf[9] = byte(m.Spec.SampleFormat)
		return buf
	}

	buf := make([]byte, 1+4+len(m.Samples)*2)
	buf[0] = tagSamples
	binary.LittleEndian.PutUint32(buf[1:5], uint32(len(m.Samples)))
	for i, s := range m.Samples {
		off := 5 + i*2
		binary.LittleEndian.PutUint16(buf[off:off+2], uint16(s))
	}
	return buf
}

// Deserialize decodes a wire message. It is strict: any byte left over
// after a complete parse is reported as ErrTrailingBytes.
func Deserialize(data []byte) (Message, error) {
	if len(data) < 1 {
		return Message{}, fmt.Errorf("%w: empty message", ErrTruncatedMessage)
	}

	switch data[0] {
	case tagSpec:
		const specLen = 1 + 2 + 4 + 2 + 1
		if len(data) < specLen {
			return Message{}, fmt.Errorf("%w: spec message", ErrTruncatedMessage)
		}
		format := SampleFormat(data[9])
		if format != SampleFormatFloat && format != SampleFormatInt {
			return Message{}, fmt.Errorf("%w: %d", ErrUnknownSampleFormat, data[9])
		}
		if len(data) > specLen {
			return Message{}, ErrTrailingBytes
		}
		return Message{
			IsSpec: true,
			Spec: Spec{
				Channels:      binary.LittleEndian.Uint16(data[1:3]),
				SampleRate:    binary.LittleEndian.Uint32(data[3:7]),
				BitsPerSample: binary.LittleEndian.Uint16(data[7:9]),
				SampleFormat:  format,
			},
		}, nil

	case tagSamples:
		if len(data) < 5 {
			return Message{}, fmt.Errorf("%w: samples header", ErrTruncatedMessage)
		}
		count := binary.LittleEndian.Uint32(data[1:5])
		need := 5 + int(count)*2
		if need < 5 || len(data) < need {
			return Message{}, fmt.Errorf("%w: samples body", ErrTruncatedMessage)
		}
		if len(data) > need {
			return Message{}, ErrTrailingBytes
		}
		samples := make([]int16, count)
		for i := range samples {
			off := 5 + i*2
			samples[i] = int16(binary.LittleEndian.Uint16(data[off : off+2]))
		}
		return Message{Samples: samples}, nil

	default:
		return Message{}, fmt.Errorf("%w: 0x%02x", ErrUnknownType, data[0])
	}
}
