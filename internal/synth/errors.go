package synth

import (
	"errors"
	"fmt"
)

// ErrUnsupportedVoice reports a voice or language the chosen backend does
// not recognize. Fatal: the run aborts before any synthesis.
var ErrUnsupportedVoice = errors.New("unsupported voice")

// ErrTransient marks reachability or rate-limit failures that are worth
// retrying with backoff. Only network-backed engines produce it.
var ErrTransient = errors.New("backend temporarily unavailable")

// SynthesisError is an engine-internal failure for a specific unit. It is
// fatal for the run but leaves the working set intact for resume.
type SynthesisError struct {
	Engine string
	Err    error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("%s synthesis failed: %v", e.Engine, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

func unsupportedVoice(voice, language string, available []string) error {
	return fmt.Errorf("%w: %q for language %q, available: %v", ErrUnsupportedVoice, voice, language, available)
}

func unsupportedLanguage(language string, available []string) error {
	return fmt.Errorf("%w: language %q not supported, available: %v", ErrUnsupportedVoice, language, available)
}
