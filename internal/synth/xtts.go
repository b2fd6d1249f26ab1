package synth

import (
	"context"

	"github.com/inkvoice/inkvoice/internal/config"
)

var xttsLanguages = []string{
	"en", "ru", "es", "fr", "de", "it", "pt", "pl", "tr", "nl",
	"cs", "ar", "zh", "ja", "ko", "hu",
}

const xttsSampleRate = 24000

// XTTS drives a Coqui XTTS v2 helper process. The voice field names a
// reference speaker WAV for cloning and is passed through unchecked; only
// the language is validated against the model's supported set.
type XTTS struct {
	helper   *helperProc
	language string
}

func NewXTTS(cfg config.EngineConfig) (*XTTS, error) {
	helper, err := newHelperProc(cfg.Command, xttsSampleRate)
	if err != nil {
		return nil, err
	}
	return &XTTS{helper: helper, language: cfg.Language}, nil
}

func (x *XTTS) Name() string { return "xtts" }

func (x *XTTS) Voices() map[string]string {
	return map[string]string{"": "cloned from reference speaker WAV"}
}

func (x *XTTS) Validate(voice VoiceConfig) error {
	for _, lang := range xttsLanguages {
		if voice.Language == lang {
			return nil
		}
	}
	return unsupportedLanguage(voice.Language, xttsLanguages)
}

func (x *XTTS) Synthesize(ctx context.Context, text string, voice VoiceConfig) (*Segment, error) {
	if err := x.Validate(voice); err != nil {
		return nil, err
	}
	return x.helper.synthesize(ctx, x.Name(), helperRequest{
		Text:       text,
		Voice:      voice.Voice,
		Language:   voice.Language,
		SampleRate: xttsSampleRate,
	})
}

func (x *XTTS) Close() error { return x.helper.close() }
