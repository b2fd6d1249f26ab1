package synth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// writeHelperScript creates an executable shell script answering every
// request line with the given JSON response.
func writeHelperScript(t *testing.T, response string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell helper scripts are not portable to windows")
	}
	path := filepath.Join(t.TempDir(), "helper.sh")
	script := "#!/bin/sh\nwhile read line; do\n  echo '" + response + "'\ndone\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHelperProcSynthesize(t *testing.T) {
	// AAD/fw== decodes to little-endian samples [0, 32767].
	script := writeHelperScript(t, `{"pcm_base64":"AAD/fw==","sample_rate":16000,"channels":1}`)
	h, err := newHelperProc(script, 48000)
	if err != nil {
		t.Fatalf("new helper: %v", err)
	}
	defer h.close()

	seg, err := h.synthesize(context.Background(), "test", helperRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if seg.SampleRate != 16000 || seg.Channels != 1 {
		t.Fatalf("format = %d/%d", seg.SampleRate, seg.Channels)
	}
	if len(seg.PCM) != 2 || seg.PCM[0] != 0 || seg.PCM[1] != 32767 {
		t.Fatalf("pcm = %v", seg.PCM)
	}

	// The subprocess stays up across calls.
	if _, err := h.synthesize(context.Background(), "test", helperRequest{Text: "again"}); err != nil {
		t.Fatalf("second synthesize: %v", err)
	}
}

func TestHelperProcDefaultsSampleRate(t *testing.T) {
	script := writeHelperScript(t, `{"pcm_base64":"AAA="}`)
	h, err := newHelperProc(script, 24000)
	if err != nil {
		t.Fatalf("new helper: %v", err)
	}
	defer h.close()

	seg, err := h.synthesize(context.Background(), "test", helperRequest{Text: "x"})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if seg.SampleRate != 24000 {
		t.Fatalf("sample rate = %d, want configured fallback 24000", seg.SampleRate)
	}
	if seg.Channels != 1 {
		t.Fatalf("channels = %d, want mono fallback", seg.Channels)
	}
}

func TestHelperProcErrorResponse(t *testing.T) {
	script := writeHelperScript(t, `{"error":"model not found"}`)
	h, err := newHelperProc(script, 48000)
	if err != nil {
		t.Fatalf("new helper: %v", err)
	}
	defer h.close()

	_, err = h.synthesize(context.Background(), "silero", helperRequest{Text: "x"})
	if err == nil {
		t.Fatal("expected error from helper response")
	}
	var synthErr *SynthesisError
	if !errors.As(err, &synthErr) || synthErr.Engine != "silero" {
		t.Fatalf("got %v, want SynthesisError for silero", err)
	}
}

func TestHelperProcContextCancel(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell helper scripts are not portable to windows")
	}
	// A helper that never answers.
	path := filepath.Join(t.TempDir(), "helper.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nsleep 60\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	h, err := newHelperProc(path, 48000)
	if err != nil {
		t.Fatalf("new helper: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := h.synthesize(ctx, "test", helperRequest{Text: "x"}); err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("cancel did not interrupt the call")
	}
}

func TestNewHelperProcRejectsEmptyCommand(t *testing.T) {
	if _, err := newHelperProc("", 48000); err == nil {
		t.Fatal("expected error for empty command")
	}
}
