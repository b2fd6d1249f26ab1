package synth

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWAVRoundtrip(t *testing.T) {
	seg := &Segment{
		SampleRate: 22050,
		Channels:   1,
		PCM:        []int{0, 1000, -1000, 32767, -32768, 7},
	}

	path := filepath.Join(t.TempDir(), "seg.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := EncodeWAV(f, seg); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.Close()

	got, err := ReadWAVFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.SampleRate != seg.SampleRate || got.Channels != seg.Channels {
		t.Fatalf("format = %d/%d, want %d/%d", got.SampleRate, got.Channels, seg.SampleRate, seg.Channels)
	}
	if len(got.PCM) != len(seg.PCM) {
		t.Fatalf("sample count = %d, want %d", len(got.PCM), len(seg.PCM))
	}
	for i := range seg.PCM {
		if got.PCM[i] != seg.PCM[i] {
			t.Fatalf("sample %d = %d, want %d", i, got.PCM[i], seg.PCM[i])
		}
	}
}

func TestWAVRoundtripStereo(t *testing.T) {
	seg := &Segment{
		SampleRate: 48000,
		Channels:   2,
		PCM:        []int{100, -100, 200, -200, 300, -300},
	}

	path := filepath.Join(t.TempDir(), "stereo.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := EncodeWAV(f, seg); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.Close()

	got, err := ReadWAVFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Channels != 2 {
		t.Fatalf("channels = %d", got.Channels)
	}
	for i := range seg.PCM {
		if got.PCM[i] != seg.PCM[i] {
			t.Fatalf("sample %d = %d, want %d", i, got.PCM[i], seg.PCM[i])
		}
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.wav")
	if err := os.WriteFile(path, []byte("not a wav file at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadWAVFile(path); err == nil {
		t.Fatal("expected error for non-wav data")
	}
}
