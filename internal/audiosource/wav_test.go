package audiosource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/youpy/go-wav"
)

func writeTestWav(t *testing.T, channels, sampleRate, bitsPerSample int, interleaved []int16) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "in.wav")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create temp wav: %v", err)
	}
	defer f.Close()

	audio := make([]byte, len(interleaved)*2)
	for i, s := range interleaved {
		audio[2*i] = byte(uint16(s) & 0xFF)
		audio[2*i+1] = byte(uint16(s) >> 8)
	}

	numFrames := len(interleaved) / channels
	w := wav.NewWriter(f, uint32(numFrames), uint16(channels), uint32(sampleRate), uint16(bitsPerSample))
	if _, err := w.Write(audio); err != nil {
		t.Fatalf("write wav data: %v", err)
	}
	return path
}

func drainAll(t *testing.T, src *WavSource) []int16 {
	t.Helper()
	var out []int16
	for {
		s, ok := src.Next()
		if !ok {
			break
		}
		out = append(out, s)
	}
	if err := src.Err(); err != nil {
		t.Fatalf("source error: %v", err)
	}
	return out
}

func TestOpenWavMonoPassthrough(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 1234}
	path := writeTestWav(t, 1, 44100, 16, samples)

	src, err := OpenWav(path, 0)
	if err != nil {
		t.Fatalf("OpenWav: %v", err)
	}
	defer src.Close()

	spec := src.Spec()
	if spec.Channels != 1 || spec.SampleRate != 44100 || spec.BitsPerSample != 16 {
		t.Fatalf("unexpected spec: %+v", spec)
	}

	got := drainAll(t, src)
	if len(got) != len(samples) {
		t.Fatalf("sample count: got %d, want %d", len(got), len(samples))
	}
	for i, s := range samples {
		if got[i] != s {
			t.Errorf("sample %d: got %d, want %d", i, got[i], s)
		}
	}
}

func TestOpenWavDownmixesStereo(t *testing.T) {
	// Two stereo frames: (10, 20) and (-10, -30).
	interleaved := []int16{10, 20, -10, -30}
	path := writeTestWav(t, 2, 48000, 16, interleaved)

	src, err := OpenWav(path, 0)
	if err != nil {
		t.Fatalf("OpenWav: %v", err)
	}
	defer src.Close()

	if src.Spec().Channels != 1 {
		t.Fatalf("expected downmix to mono, got %d channels", src.Spec().Channels)
	}

	got := drainAll(t, src)
	want := []int16{15, -20}
	if len(got) != len(want) {
		t.Fatalf("sample count: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestOpenWavMissingFile(t *testing.T) {
	if _, err := OpenWav(filepath.Join(t.TempDir(), "missing.wav"), 0); err == nil {
		t.Fatal("expected error opening a nonexistent file")
	}
}
