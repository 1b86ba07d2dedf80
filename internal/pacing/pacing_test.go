package pacing

import (
	"testing"
	"time"

	"github.com/drgolem/pcmcast/internal/protocol"
)

// sliceSource is a minimal audiosource.Source backed by an in-memory slice,
// used to drive the pacing loop without decoding a real WAV file.
type sliceSource struct {
	spec    protocol.Spec
	samples []int16
	pos     int
}

func (s *sliceSource) Spec() protocol.Spec { return s.spec }

func (s *sliceSource) Next() (int16, bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	v := s.samples[s.pos]
	s.pos++
	return v, true
}

func (s *sliceSource) Err() error   { return nil }
func (s *sliceSource) Close() error { return nil }

// recordingBroadcaster captures every broadcast message and the last
// preamble set, with no actual network I/O.
type recordingBroadcaster struct {
	preamble  []byte
	messages  [][]byte
	failAfter int
}

func (r *recordingBroadcaster) Broadcast(message []byte) error {
	r.messages = append(r.messages, append([]byte(nil), message...))
	return nil
}

func (r *recordingBroadcaster) UpdatePreamble(b []byte) {
	r.preamble = append([]byte(nil), b...)
}

func TestRunBroadcastsSpecThenSampleGroups(t *testing.T) {
	// A high sample rate keeps the whole stream inside the prebuffer
	// window so the test doesn't sleep in real time.
	spec := protocol.Spec{Channels: 1, SampleRate: 1_000_000, BitsPerSample: 16, SampleFormat: protocol.SampleFormatInt}
	samples := make([]int16, SamplesPerGroup*2+100)
	for i := range samples {
		samples[i] = int16(i)
	}
	src := &sliceSource{spec: spec, samples: samples}
	b := &recordingBroadcaster{}

	start := time.Now()
	Run(src, b)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Run took too long for an in-prebuffer stream: %v", elapsed)
	}

	if len(b.messages) != 4 { // spec + 2 full groups + 1 short group
		t.Fatalf("got %d broadcast messages, want 4", len(b.messages))
	}

	specMsg, err := protocol.Deserialize(b.messages[0])
	if err != nil || !specMsg.IsSpec {
		t.Fatalf("first message should decode as a spec message: %+v %v", specMsg, err)
	}
	if specMsg.Spec != spec {
		t.Fatalf("broadcast spec %+v, want %+v", specMsg.Spec, spec)
	}
	if string(b.preamble) != string(b.messages[0]) {
		t.Fatal("preamble should be set to the serialized spec message")
	}

	total := 0
	for _, raw := range b.messages[1:] {
		m, err := protocol.Deserialize(raw)
		if err != nil || m.IsSpec {
			t.Fatalf("expected a samples message, got %+v %v", m, err)
		}
		total += len(m.Samples)
	}
	if total != len(samples) {
		t.Fatalf("total samples broadcast = %d, want %d", total, len(samples))
	}
}

func TestRunEmptySourceStillBroadcastsSpec(t *testing.T) {
	spec := protocol.Spec{Channels: 1, SampleRate: 44100, BitsPerSample: 16, SampleFormat: protocol.SampleFormatInt}
	src := &sliceSource{spec: spec}
	b := &recordingBroadcaster{}

	Run(src, b)

	if len(b.messages) != 1 {
		t.Fatalf("got %d messages, want exactly the spec message", len(b.messages))
	}
}
