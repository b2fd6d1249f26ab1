package synth

import (
	"context"

	"github.com/inkvoice/inkvoice/internal/config"
)

var chatterboxLanguages = []string{
	"en", "ru", "es", "fr", "de", "it", "pt", "pl", "tr", "nl",
	"cs", "ar", "zh", "ja", "ko", "hu", "sv", "da", "fi", "no",
	"el", "ro", "uk",
}

const chatterboxSampleRate = 24000

// Chatterbox drives a helper process hosting either the turbo model
// (English) or the multilingual model (everything else). The helper picks
// the model from the language field of the first request, so one process
// serves the whole run.
type Chatterbox struct {
	helper   *helperProc
	language string
}

func NewChatterbox(cfg config.EngineConfig) (*Chatterbox, error) {
	helper, err := newHelperProc(cfg.Command, chatterboxSampleRate)
	if err != nil {
		return nil, err
	}
	return &Chatterbox{helper: helper, language: cfg.Language}, nil
}

func (c *Chatterbox) Name() string { return "chatterbox" }

func (c *Chatterbox) Voices() map[string]string {
	return map[string]string{"": "cloned from reference speaker WAV"}
}

func (c *Chatterbox) Validate(voice VoiceConfig) error {
	for _, lang := range chatterboxLanguages {
		if voice.Language == lang {
			return nil
		}
	}
	return unsupportedLanguage(voice.Language, chatterboxLanguages)
}

func (c *Chatterbox) Synthesize(ctx context.Context, text string, voice VoiceConfig) (*Segment, error) {
	if err := c.Validate(voice); err != nil {
		return nil, err
	}
	return c.helper.synthesize(ctx, c.Name(), helperRequest{
		Text:       text,
		Voice:      voice.Voice,
		Language:   voice.Language,
		SampleRate: chatterboxSampleRate,
	})
}

func (c *Chatterbox) Close() error { return c.helper.close() }
