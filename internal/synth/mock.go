package synth

import (
	"context"
)

// Mock is a deterministic in-process backend for tests and dry runs. The
// produced samples are a function of the input text, so two runs over the
// same plan yield byte-identical segments.
type Mock struct {
	sampleRate int
	channels   int
}

func NewMock(sampleRate, channels int) *Mock {
	if sampleRate <= 0 {
		sampleRate = 22050
	}
	if channels <= 0 {
		channels = 1
	}
	return &Mock{sampleRate: sampleRate, channels: channels}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Voices() map[string]string {
	return map[string]string{"default": "deterministic test voice"}
}

func (m *Mock) Validate(voice VoiceConfig) error {
	if voice.Voice != "" && voice.Voice != "default" {
		return unsupportedVoice(voice.Voice, voice.Language, []string{"default"})
	}
	return nil
}

func (m *Mock) Synthesize(ctx context.Context, text string, voice VoiceConfig) (*Segment, error) {
	if err := m.Validate(voice); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// One sample per input byte keeps segment length proportional to text.
	pcm := make([]int, len(text)*m.channels)
	for i, b := range []byte(text) {
		for ch := 0; ch < m.channels; ch++ {
			pcm[i*m.channels+ch] = (int(b) - 128) * 128
		}
	}
	return &Segment{SampleRate: m.sampleRate, Channels: m.channels, PCM: pcm}, nil
}

func (m *Mock) Close() error { return nil }
