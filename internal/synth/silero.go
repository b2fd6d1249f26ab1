package synth

import (
	"context"
	"fmt"
	"sort"

	"github.com/inkvoice/inkvoice/internal/config"
)

// Silero v4 Russian voices.
var sileroVoices = map[string]string{
	"xenia":   "Female, clear and neutral",
	"aidar":   "Male, deep and calm",
	"baya":    "Female, warm and expressive",
	"kseniya": "Female, young and energetic",
	"eugene":  "Male, standard and professional",
}

const sileroDefaultVoice = "aidar"

// Silero drives the Silero model through a helper subprocess. The model is
// loaded by the helper on startup and reused for every unit of the run.
type Silero struct {
	helper     *helperProc
	sampleRate int
}

func NewSilero(cfg config.EngineConfig) (*Silero, error) {
	rate := cfg.SampleRate
	if rate != 24000 && rate != 48000 {
		return nil, fmt.Errorf("silero supports sample rates 24000 and 48000, got %d", rate)
	}
	helper, err := newHelperProc(cfg.Command, rate)
	if err != nil {
		return nil, err
	}
	return &Silero{helper: helper, sampleRate: rate}, nil
}

func (s *Silero) Name() string { return "silero" }

func (s *Silero) Voices() map[string]string { return sileroVoices }

func (s *Silero) Validate(voice VoiceConfig) error {
	if voice.Language != "ru" {
		return unsupportedLanguage(voice.Language, []string{"ru"})
	}
	if _, ok := sileroVoices[s.voiceOrDefault(voice)]; !ok {
		return unsupportedVoice(voice.Voice, voice.Language, voiceNames(sileroVoices))
	}
	return nil
}

func (s *Silero) Synthesize(ctx context.Context, text string, voice VoiceConfig) (*Segment, error) {
	if err := s.Validate(voice); err != nil {
		return nil, err
	}
	return s.helper.synthesize(ctx, s.Name(), helperRequest{
		Text:       text,
		Voice:      s.voiceOrDefault(voice),
		Language:   voice.Language,
		SampleRate: s.sampleRate,
	})
}

func (s *Silero) Close() error { return s.helper.close() }

func (s *Silero) voiceOrDefault(voice VoiceConfig) string {
	if voice.Voice == "" {
		return sileroDefaultVoice
	}
	return voice.Voice
}

func voiceNames(voices map[string]string) []string {
	names := make([]string, 0, len(voices))
	for name := range voices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
