package synth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/inkvoice/inkvoice/internal/config"
)

func TestPiperValidate(t *testing.T) {
	p := NewPiper(config.EngineConfig{Language: "en", SampleRate: 22050})
	if err := p.Validate(VoiceConfig{Language: "en"}); err != nil {
		t.Fatalf("default voice rejected: %v", err)
	}
	if err := p.Validate(VoiceConfig{Language: "ru", Voice: "ru_RU-irina-medium"}); err != nil {
		t.Fatalf("valid voice rejected: %v", err)
	}
	if err := p.Validate(VoiceConfig{Language: "fr"}); !errors.Is(err, ErrUnsupportedVoice) {
		t.Fatalf("got %v, want ErrUnsupportedVoice for language", err)
	}
	if err := p.Validate(VoiceConfig{Language: "en", Voice: "ghost"}); !errors.Is(err, ErrUnsupportedVoice) {
		t.Fatalf("got %v, want ErrUnsupportedVoice for voice", err)
	}
}

func TestPiperSynthesize(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake piper script is a shell script")
	}
	// Fake piper: ignore arguments, drain stdin, emit two raw PCM samples.
	bin := filepath.Join(t.TempDir(), "piper")
	script := "#!/bin/sh\ncat > /dev/null\nprintf '\\000\\000\\377\\177'\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	p := NewPiper(config.EngineConfig{Language: "en", SampleRate: 22050, PiperBin: bin, ModelDir: t.TempDir()})
	seg, err := p.Synthesize(context.Background(), "hello", VoiceConfig{Language: "en"})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if seg.SampleRate != 22050 || seg.Channels != 1 {
		t.Fatalf("format = %d/%d", seg.SampleRate, seg.Channels)
	}
	if len(seg.PCM) != 2 || seg.PCM[0] != 0 || seg.PCM[1] != 32767 {
		t.Fatalf("pcm = %v", seg.PCM)
	}
}

func TestPiperBinaryFailure(t *testing.T) {
	p := NewPiper(config.EngineConfig{Language: "en", SampleRate: 22050, PiperBin: "definitely-not-piper"})
	_, err := p.Synthesize(context.Background(), "hello", VoiceConfig{Language: "en"})
	var synthErr *SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("got %v, want SynthesisError", err)
	}
}

func TestXTTSValidate(t *testing.T) {
	x, err := NewXTTS(config.EngineConfig{Command: "true", Language: "en"})
	if err != nil {
		t.Fatalf("new xtts: %v", err)
	}
	if err := x.Validate(VoiceConfig{Language: "de", Voice: "speaker.wav"}); err != nil {
		t.Fatalf("supported language rejected: %v", err)
	}
	if err := x.Validate(VoiceConfig{Language: "sw"}); !errors.Is(err, ErrUnsupportedVoice) {
		t.Fatalf("got %v, want ErrUnsupportedVoice", err)
	}
}

func TestChatterboxValidate(t *testing.T) {
	c, err := NewChatterbox(config.EngineConfig{Command: "true", Language: "en"})
	if err != nil {
		t.Fatalf("new chatterbox: %v", err)
	}
	if err := c.Validate(VoiceConfig{Language: "uk"}); err != nil {
		t.Fatalf("supported language rejected: %v", err)
	}
	if err := c.Validate(VoiceConfig{Language: "sw"}); !errors.Is(err, ErrUnsupportedVoice) {
		t.Fatalf("got %v, want ErrUnsupportedVoice", err)
	}
}
