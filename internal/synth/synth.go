// Package synth defines the synthesis backend contract and its engine
// implementations. A backend turns one text unit into one audio segment;
// the same backend instance serves every unit of a conversion so engines
// can amortize model loading across calls.
package synth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/inkvoice/inkvoice/internal/config"
)

// Segment is the synthesized audio for one text unit: 16-bit PCM samples,
// interleaved when stereo, at the engine's native rate.
type Segment struct {
	SampleRate int
	Channels   int
	PCM        []int
}

// VoiceConfig selects the engine voice for a conversion. It is validated
// against the backend's supported set before any synthesis begins.
type VoiceConfig struct {
	Language string
	Voice    string
}

// Backend is the contract every synthesis engine implements.
type Backend interface {
	Name() string
	// Voices returns the supported voice names with descriptions for the
	// backend's configured language.
	Voices() map[string]string
	// Validate rejects unsupported language/voice pairs before synthesis.
	Validate(voice VoiceConfig) error
	// Synthesize produces one audio segment for the given text.
	Synthesize(ctx context.Context, text string, voice VoiceConfig) (*Segment, error)
	Close() error
}

// New constructs the backend named in cfg. The engine set is closed.
func New(cfg config.EngineConfig, log *slog.Logger) (Backend, error) {
	switch cfg.Name {
	case "silero":
		return NewSilero(cfg)
	case "piper":
		return NewPiper(cfg), nil
	case "edge":
		return NewEdge(cfg, log), nil
	case "kokoro":
		return NewKokoro(cfg), nil
	case "xtts":
		return NewXTTS(cfg)
	case "chatterbox":
		return NewChatterbox(cfg)
	case "mock":
		return NewMock(cfg.SampleRate, 1), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Name)
	}
}
