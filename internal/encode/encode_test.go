package encode

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEncodeExpandsPlaceholders(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test relies on cp")
	}
	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	out := filepath.Join(dir, "out.mp3")
	if err := os.WriteFile(in, []byte("assembled audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	enc := New("cp {in} {out}", discardLogger())
	if err := enc.Encode(context.Background(), in, out); err != nil {
		t.Fatalf("encode: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if string(data) != "assembled audio" {
		t.Fatalf("output = %q", data)
	}
}

func TestEnabled(t *testing.T) {
	if New("", discardLogger()).Enabled() {
		t.Fatal("empty command should disable the encoder")
	}
	if !New("ffmpeg -y -i {in} {out}", discardLogger()).Enabled() {
		t.Fatal("configured command should enable the encoder")
	}
}

func TestEncodeEmptyCommandIsNoop(t *testing.T) {
	enc := New("", discardLogger())
	if err := enc.Encode(context.Background(), "in.wav", "out.mp3"); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func TestEncodeReportsStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test relies on sh")
	}
	enc := New(`sh -c "echo boom >&2; exit 3"`, discardLogger())
	err := enc.Encode(context.Background(), "in.wav", "out.mp3")
	if err == nil {
		t.Fatal("expected encoder failure")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("stderr not surfaced: %v", err)
	}
}

func TestEncodeMissingBinary(t *testing.T) {
	enc := New("definitely-not-a-real-encoder {in}", discardLogger())
	if err := enc.Encode(context.Background(), "in.wav", "out.mp3"); err == nil {
		t.Fatal("expected error for missing binary")
	}
}
