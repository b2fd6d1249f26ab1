package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hajimehoshi/go-mp3"

	"github.com/inkvoice/inkvoice/internal/config"
)

// Microsoft neural voices reachable through an edge-tts gateway.
var edgeVoices = map[string]map[string]string{
	"ru": {
		"ru-RU-DmitryNeural":   "Russian male, deep (default)",
		"ru-RU-SvetlanaNeural": "Russian female, clear",
	},
	"en": {
		"en-US-GuyNeural":         "American male, standard (default)",
		"en-US-AriaNeural":        "American female, expressive",
		"en-US-JennyNeural":       "American female, warm",
		"en-US-ChristopherNeural": "American male, calm",
		"en-US-EricNeural":        "American male, deep",
		"en-US-MichelleNeural":    "American female, clear",
		"en-US-RogerNeural":       "American male, mature",
		"en-US-SteffanNeural":     "American male, professional",
	},
	"en_gb": {
		"en-GB-RyanNeural":   "British male, standard (default)",
		"en-GB-SoniaNeural":  "British female, warm",
		"en-GB-ThomasNeural": "British male, calm",
		"en-GB-LibbyNeural":  "British female, clear",
	},
}

var edgeDefaultVoices = map[string]string{
	"ru":    "ru-RU-DmitryNeural",
	"en":    "en-US-GuyNeural",
	"en_gb": "en-GB-RyanNeural",
}

// Edge synthesizes through a network gateway that returns MP3 audio. The
// response is decoded to PCM before storage so segments stay uniform on
// disk. Reachability and rate-limit failures map to ErrTransient and are
// retried by the orchestrator, not here.
type Edge struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

type edgeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

func NewEdge(cfg config.EngineConfig, log *slog.Logger) *Edge {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Edge{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   log.With(slog.String("component", "edge-backend")),
	}
}

func (e *Edge) Name() string { return "edge" }

func (e *Edge) Voices() map[string]string {
	merged := map[string]string{}
	for _, table := range edgeVoices {
		for name, desc := range table {
			merged[name] = desc
		}
	}
	return merged
}

func (e *Edge) Validate(voice VoiceConfig) error {
	table, ok := edgeVoices[voice.Language]
	if !ok {
		return unsupportedLanguage(voice.Language, []string{"ru", "en", "en_gb"})
	}
	if _, ok := table[e.voiceOrDefault(voice)]; !ok {
		return unsupportedVoice(voice.Voice, voice.Language, voiceNames(table))
	}
	return nil
}

func (e *Edge) Synthesize(ctx context.Context, text string, voice VoiceConfig) (*Segment, error) {
	if err := e.Validate(voice); err != nil {
		return nil, err
	}

	body, err := json.Marshal(edgeRequest{Text: text, Voice: e.voiceOrDefault(voice)})
	if err != nil {
		return nil, &SynthesisError{Engine: e.Name(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &SynthesisError{Engine: e.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &SynthesisError{Engine: e.Name(), Err: ctx.Err()}
		}
		// transport-level failure: unreachable host, reset, timeout
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: gateway returned %s", ErrTransient, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, &SynthesisError{Engine: e.Name(), Err: fmt.Errorf("gateway returned %s", resp.Status)}
	}

	seg, err := decodeMP3(resp.Body)
	if err != nil {
		return nil, &SynthesisError{Engine: e.Name(), Err: err}
	}
	return seg, nil
}

func (e *Edge) Close() error { return nil }

func (e *Edge) voiceOrDefault(voice VoiceConfig) string {
	if voice.Voice == "" {
		return edgeDefaultVoices[voice.Language]
	}
	return voice.Voice
}

// decodeMP3 converts an MP3 stream to a 16-bit PCM segment. go-mp3 always
// outputs two channels at the source sample rate.
func decodeMP3(r io.Reader) (*Segment, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("open mp3: %w", err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	return &Segment{
		SampleRate: dec.SampleRate(),
		Channels:   2,
		PCM:        bytesToPCM(raw),
	}, nil
}
