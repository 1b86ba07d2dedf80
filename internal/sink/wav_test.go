package sink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/youpy/go-wav"

	"github.com/drgolem/pcmcast/internal/protocol"
)

func TestWavSinkWritesReadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	s := NewWavSink(path)

	spec := protocol.Spec{Channels: 1, SampleRate: 44100, BitsPerSample: 16, SampleFormat: protocol.SampleFormatInt}
	s.PutSpec(spec)

	if err := s.PutSamples([]int16{1, 2, 3}); err != nil {
		t.Fatalf("PutSamples: %v", err)
	}
	if err := s.PutSamples([]int16{4, 5}); err != nil {
		t.Fatalf("PutSamples: %v", err)
	}

	if err := s.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open written file: %v", err)
	}
	defer f.Close()

	reader := wav.NewReader(f)
	format, err := reader.Format()
	if err != nil {
		t.Fatalf("reading format: %v", err)
	}
	if format.NumChannels != 1 || format.SampleRate != 44100 || format.BitsPerSample != 16 {
		t.Fatalf("unexpected format: %+v", format)
	}

	var got []int
	for {
		frames, err := reader.ReadSamples(16)
		for _, fr := range frames {
			got = append(got, fr.Values[0])
		}
		if err != nil {
			break
		}
		if len(frames) == 0 {
			break
		}
	}

	want := []int{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("sample count: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestWavSinkFinalizeWithoutSpecFails(t *testing.T) {
	s := NewWavSink(filepath.Join(t.TempDir(), "out.wav"))
	if err := s.Finalize(); err == nil {
		t.Fatal("expected an error finalizing without a spec")
	}
}

func TestWavSinkRejectsAppendAfterFinalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	s := NewWavSink(path)
	s.PutSpec(protocol.Spec{Channels: 1, SampleRate: 8000, BitsPerSample: 16, SampleFormat: protocol.SampleFormatInt})
	if err := s.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := s.PutSamples([]int16{1}); err == nil {
		t.Fatal("expected append after finalize to fail")
	}
}
