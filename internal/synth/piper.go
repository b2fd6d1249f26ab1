package synth

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/inkvoice/inkvoice/internal/config"
)

// Piper voice models, keyed by language. Models live as ONNX files under the
// configured model directory, one per voice name.
var piperVoices = map[string]map[string]string{
	"en": {
		"en_US-lessac-medium": "US English, male, medium quality (default)",
		"en_US-lessac-high":   "US English, male, high quality",
		"en_US-libritts-high": "US English, neutral, high quality",
		"en_US-amy-medium":    "US English, female, medium quality",
		"en_US-ryan-medium":   "US English, male, medium quality",
		"en_GB-alan-medium":   "UK English, male, medium quality",
	},
	"ru": {
		"ru_RU-ruslan-medium": "Russian, male, medium quality",
		"ru_RU-irina-medium":  "Russian, female, medium quality",
	},
}

var piperDefaultVoices = map[string]string{
	"en": "en_US-lessac-medium",
	"ru": "ru_RU-ruslan-medium",
}

// Piper runs the piper binary once per unit with --output-raw. Model load is
// per invocation, which is how piper itself works; there is no resident
// helper to keep warm.
type Piper struct {
	bin        string
	modelDir   string
	language   string
	sampleRate int
}

func NewPiper(cfg config.EngineConfig) *Piper {
	bin := cfg.PiperBin
	if bin == "" {
		bin = "piper"
	}
	return &Piper{
		bin:        bin,
		modelDir:   cfg.ModelDir,
		language:   cfg.Language,
		sampleRate: cfg.SampleRate,
	}
}

func (p *Piper) Name() string { return "piper" }

func (p *Piper) Voices() map[string]string {
	return piperVoices[p.language]
}

func (p *Piper) Validate(voice VoiceConfig) error {
	table, ok := piperVoices[voice.Language]
	if !ok {
		return unsupportedLanguage(voice.Language, []string{"en", "ru"})
	}
	if _, ok := table[p.voiceOrDefault(voice)]; !ok {
		return unsupportedVoice(voice.Voice, voice.Language, voiceNames(table))
	}
	return nil
}

func (p *Piper) Synthesize(ctx context.Context, text string, voice VoiceConfig) (*Segment, error) {
	if err := p.Validate(voice); err != nil {
		return nil, err
	}

	model := filepath.Join(p.modelDir, p.voiceOrDefault(voice)+".onnx")
	cmd := exec.CommandContext(ctx, p.bin, "--model", model, "--output-raw")
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &SynthesisError{Engine: p.Name(), Err: fmt.Errorf("piper: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))}
	}

	return &Segment{
		SampleRate: p.sampleRate,
		Channels:   1,
		PCM:        bytesToPCM(stdout.Bytes()),
	}, nil
}

func (p *Piper) Close() error { return nil }

func (p *Piper) voiceOrDefault(voice VoiceConfig) string {
	if voice.Voice == "" {
		return piperDefaultVoices[voice.Language]
	}
	return voice.Voice
}
