package synth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/inkvoice/inkvoice/internal/config"
)

func TestNewSelectsEngine(t *testing.T) {
	cfg := config.EngineConfig{Name: "mock", Language: "en", SampleRate: 22050}
	b, err := New(cfg, discardLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer b.Close()
	if b.Name() != "mock" {
		t.Fatalf("name = %q", b.Name())
	}
}

func TestNewUnknownEngine(t *testing.T) {
	if _, err := New(config.EngineConfig{Name: "festival"}, discardLogger()); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}

func TestMockDeterministic(t *testing.T) {
	m := NewMock(22050, 1)
	first, err := m.Synthesize(context.Background(), "same text", VoiceConfig{})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	second, err := m.Synthesize(context.Background(), "same text", VoiceConfig{})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(first.PCM) != len(second.PCM) {
		t.Fatalf("lengths differ: %d vs %d", len(first.PCM), len(second.PCM))
	}
	for i := range first.PCM {
		if first.PCM[i] != second.PCM[i] {
			t.Fatalf("sample %d differs", i)
		}
	}

	other, err := m.Synthesize(context.Background(), "different text", VoiceConfig{})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(other.PCM) == len(first.PCM) {
		t.Fatal("distinct texts should yield distinct segment lengths")
	}
}

func TestMockRejectsUnknownVoice(t *testing.T) {
	m := NewMock(22050, 1)
	err := m.Validate(VoiceConfig{Voice: "ghost"})
	if !errors.Is(err, ErrUnsupportedVoice) {
		t.Fatalf("got %v, want ErrUnsupportedVoice", err)
	}
}

func TestSileroValidate(t *testing.T) {
	s, err := NewSilero(config.EngineConfig{Command: "true", SampleRate: 48000})
	if err != nil {
		t.Fatalf("new silero: %v", err)
	}
	if err := s.Validate(VoiceConfig{Language: "ru", Voice: "xenia"}); err != nil {
		t.Fatalf("valid voice rejected: %v", err)
	}
	if err := s.Validate(VoiceConfig{Language: "ru"}); err != nil {
		t.Fatalf("default voice rejected: %v", err)
	}
	if err := s.Validate(VoiceConfig{Language: "en", Voice: "xenia"}); !errors.Is(err, ErrUnsupportedVoice) {
		t.Fatalf("got %v, want ErrUnsupportedVoice for language", err)
	}
	if err := s.Validate(VoiceConfig{Language: "ru", Voice: "ghost"}); !errors.Is(err, ErrUnsupportedVoice) {
		t.Fatalf("got %v, want ErrUnsupportedVoice for voice", err)
	}
}

func TestSileroRejectsOddSampleRate(t *testing.T) {
	if _, err := NewSilero(config.EngineConfig{Command: "true", SampleRate: 44100}); err == nil {
		t.Fatal("expected error for unsupported sample rate")
	}
}

func TestSynthesisErrorUnwrap(t *testing.T) {
	inner := errors.New("model exploded")
	err := &SynthesisError{Engine: "silero", Err: inner}
	if !errors.Is(err, inner) {
		t.Fatal("unwrap should reach the inner error")
	}
}

func TestPCMBytesRoundtrip(t *testing.T) {
	pcm := []int{0, 1, -1, 32767, -32768, 12345}
	got := bytesToPCM(pcmToBytes(pcm))
	if len(got) != len(pcm) {
		t.Fatalf("length %d, want %d", len(got), len(pcm))
	}
	for i := range pcm {
		if got[i] != pcm[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], pcm[i])
		}
	}
}

func TestBytesToPCMDropsOddTrailingByte(t *testing.T) {
	got := bytesToPCM([]byte{0x00, 0x01, 0xff})
	if len(got) != 1 {
		t.Fatalf("got %d samples, want 1", len(got))
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
