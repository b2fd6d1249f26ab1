// Package encode hands the assembled WAV stream to an external encoder.
// The encoder command is a template with {in} and {out} placeholders,
// typically an ffmpeg or lame invocation. Bit-rate and container format
// are the encoder's concern, not ours.
package encode

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

type Encoder struct {
	command string
	logger  *slog.Logger
}

func New(command string, log *slog.Logger) *Encoder {
	return &Encoder{
		command: command,
		logger:  log.With(slog.String("component", "encoder")),
	}
}

// Enabled reports whether an external encoder command is configured. With
// no command the assembled WAV itself is the distributable output and the
// caller moves it into place.
func (e *Encoder) Enabled() bool { return e.command != "" }

// Encode runs the external encoder once on the assembled file. A no-op
// when no command is configured.
func (e *Encoder) Encode(ctx context.Context, inPath, outPath string) error {
	if e.command == "" {
		return nil
	}

	expanded := strings.ReplaceAll(e.command, "{in}", inPath)
	expanded = strings.ReplaceAll(expanded, "{out}", outPath)

	parser := shellwords.NewParser()
	args, err := parser.Parse(expanded)
	if err != nil {
		return fmt.Errorf("parse encoder command: %w", err)
	}
	if len(args) == 0 {
		return fmt.Errorf("encoder command empty after expansion")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.logger.Info("running external encoder", slog.String("command", args[0]), slog.String("output", outPath))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("encoder failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
