package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/inkvoice/inkvoice/internal/config"
)

// Kokoro language codes: the model addresses languages by a single letter.
var kokoroLangCodes = map[string]string{
	"en":    "a",
	"en_gb": "b",
	"es":    "e",
	"fr":    "f",
	"ja":    "j",
	"zh":    "z",
	"hi":    "h",
	"it":    "i",
	"pt":    "p",
}

var kokoroDefaultVoices = map[string]string{
	"en":    "af_heart",
	"en_gb": "bf_alice",
	"es":    "ef_dora",
	"fr":    "ff_siwis",
}

// Kokoro talks to a kokoro model server exposing the OpenAI-compatible
// speech endpoint and returning WAV audio. Voice names carry the language
// prefix (af_*, bm_*, ...), so validation checks the prefix against the
// language code.
type Kokoro struct {
	endpoint string
	client   *http.Client
}

type kokoroRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

func NewKokoro(cfg config.EngineConfig) *Kokoro {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Kokoro{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/") + "/v1/audio/speech",
		client:   &http.Client{Timeout: timeout},
	}
}

func (k *Kokoro) Name() string { return "kokoro" }

func (k *Kokoro) Voices() map[string]string {
	voices := make(map[string]string, len(kokoroDefaultVoices))
	for lang, voice := range kokoroDefaultVoices {
		voices[voice] = "default voice for " + lang
	}
	return voices
}

func (k *Kokoro) Validate(voice VoiceConfig) error {
	code, ok := kokoroLangCodes[voice.Language]
	if !ok {
		return unsupportedLanguage(voice.Language, voiceNames(kokoroLangCodes))
	}
	name := k.voiceOrDefault(voice)
	if name == "" {
		return unsupportedVoice(voice.Voice, voice.Language, nil)
	}
	if !strings.HasPrefix(name, code) {
		return fmt.Errorf("%w: voice %q does not match language %q (expected prefix %q)", ErrUnsupportedVoice, name, voice.Language, code)
	}
	return nil
}

func (k *Kokoro) Synthesize(ctx context.Context, text string, voice VoiceConfig) (*Segment, error) {
	if err := k.Validate(voice); err != nil {
		return nil, err
	}

	body, err := json.Marshal(kokoroRequest{Model: "kokoro", Input: text, Voice: k.voiceOrDefault(voice)})
	if err != nil {
		return nil, &SynthesisError{Engine: k.Name(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &SynthesisError{Engine: k.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := k.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &SynthesisError{Engine: k.Name(), Err: ctx.Err()}
		}
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: server returned %s", ErrTransient, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &SynthesisError{Engine: k.Name(), Err: fmt.Errorf("server returned %s", resp.Status)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	seg, err := DecodeWAV(bytes.NewReader(data))
	if err != nil {
		return nil, &SynthesisError{Engine: k.Name(), Err: err}
	}
	return seg, nil
}

func (k *Kokoro) Close() error { return nil }

func (k *Kokoro) voiceOrDefault(voice VoiceConfig) string {
	if voice.Voice == "" {
		return kokoroDefaultVoices[voice.Language]
	}
	return voice.Voice
}
