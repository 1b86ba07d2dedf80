package protocol

import (
	"errors"
	"math"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	cases := []Message{
		SpecMessage(Spec{Channels: 1, SampleRate: 44100, BitsPerSample: 16, SampleFormat: SampleFormatInt}),
		SpecMessage(Spec{Channels: 2, SampleRate: 48000, BitsPerSample: 24, SampleFormat: SampleFormatFloat}),
		SamplesMessage(nil),
		SamplesMessage([]int16{0}),
		SamplesMessage([]int16{math.MinInt16, -1, 0, 1, math.MaxInt16}),
		SamplesMessage(repeat(17, 1000)),
	}

	for i, m := range cases {
		data := Serialize(m)
		got, err := Deserialize(data)
		if err != nil {
			t.Fatalf("case %d: Deserialize: %v", i, err)
		}
		if got.IsSpec != m.IsSpec {
			t.Fatalf("case %d: IsSpec mismatch", i)
		}
		if m.IsSpec {
			if got.Spec != m.Spec {
				t.Errorf("case %d: spec mismatch: got %+v, want %+v", i, got.Spec, m.Spec)
			}
			continue
		}
		if len(got.Samples) != len(m.Samples) {
			t.Fatalf("case %d: sample count mismatch: got %d, want %d", i, len(got.Samples), len(m.Samples))
		}
		for j := range m.Samples {
			if got.Samples[j] != m.Samples[j] {
				t.Errorf("case %d: sample %d mismatch: got %d, want %d", i, j, got.Samples[j], m.Samples[j])
			}
		}
	}
}

func repeat(v int16, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestDeserializeUnknownType(t *testing.T) {
	_, err := Deserialize([]byte{0x03})
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("got %v, want ErrUnknownType", err)
	}
}

func TestDeserializeUnknownSampleFormat(t *testing.T) {
	data := Serialize(SpecMessage(Spec{Channels: 1, SampleRate: 44100, BitsPerSample: 16, SampleFormat: SampleFormatInt}))
	data[9] = 0x09
	_, err := Deserialize(data)
	if !errors.Is(err, ErrUnknownSampleFormat) {
		t.Fatalf("got %v, want ErrUnknownSampleFormat", err)
	}
}

func TestDeserializeTruncatedMessage(t *testing.T) {
	data := Serialize(SamplesMessage([]int16{1, 2, 3}))
	_, err := Deserialize(data[:len(data)-1])
	if !errors.Is(err, ErrTruncatedMessage) {
		t.Fatalf("got %v, want ErrTruncatedMessage", err)
	}
}

func TestDeserializeTrailingBytes(t *testing.T) {
	data := Serialize(SamplesMessage([]int16{1, 2, 3}))
	data = append(data, 0xFF)
	_, err := Deserialize(data)
	if !errors.Is(err, ErrTrailingBytes) {
		t.Fatalf("got %v, want ErrTrailingBytes", err)
	}
}

func TestDeserializeEmpty(t *testing.T) {
	_, err := Deserialize(nil)
	if !errors.Is(err, ErrTruncatedMessage) {
		t.Fatalf("got %v, want ErrTruncatedMessage", err)
	}
}
