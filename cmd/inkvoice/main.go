package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/inkvoice/inkvoice/internal/assemble"
	"github.com/inkvoice/inkvoice/internal/config"
	"github.com/inkvoice/inkvoice/internal/encode"
	"github.com/inkvoice/inkvoice/internal/extract"
	"github.com/inkvoice/inkvoice/internal/ledger"
	"github.com/inkvoice/inkvoice/internal/pipeline"
	"github.com/inkvoice/inkvoice/internal/plan"
	"github.com/inkvoice/inkvoice/internal/store"
	"github.com/inkvoice/inkvoice/internal/synth"
	"github.com/inkvoice/inkvoice/internal/telemetry"
	"github.com/inkvoice/inkvoice/internal/textproc"
)

var version = "0.1.0-dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath    string
		inputPath     string
		outPath       string
		engineName    string
		voiceName     string
		language      string
		maxChunkChars int
		cleanStart    bool
		listVoices    bool
		quiet         bool
		showVersion   bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&inputPath, "input", "", "Path to input PDF, EPUB, FB2 or TXT file")
	flag.StringVar(&outPath, "out", "", "Path for the output audio file (default: input name with .mp3)")
	flag.StringVar(&engineName, "engine", "", "Synthesis engine to use")
	flag.StringVar(&voiceName, "voice", "", "Voice name (engine specific)")
	flag.StringVar(&language, "language", "", "Language code")
	flag.IntVar(&maxChunkChars, "max-chunk-chars", 0, "Maximum characters per chunk")
	flag.BoolVar(&cleanStart, "clean-start", false, "Discard prior partial work for this input")
	flag.BoolVar(&listVoices, "list-voices", false, "List available voices for the engine and exit")
	flag.BoolVar(&quiet, "quiet", false, "Suppress progress output")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return 0
	}

	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if engineName != "" {
		cfg.Engine.Name = engineName
	}
	if voiceName != "" {
		cfg.Engine.Voice = voiceName
	}
	if language != "" {
		cfg.Engine.Language = language
	}
	if maxChunkChars > 0 {
		cfg.Planner.MaxUnitChars = maxChunkChars
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Telemetry.LogLevel)}))

	backend, err := synth.New(cfg.Engine, logger)
	if err != nil {
		logger.Error("failed to construct backend", slog.String("error", err.Error()))
		return 1
	}
	defer backend.Close()

	if listVoices {
		printVoices(backend)
		return 0
	}

	if inputPath == "" {
		fmt.Fprintln(os.Stderr, "error: -input is required")
		flag.Usage()
		return 1
	}
	if outPath == "" {
		base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
		outPath = base + ".mp3"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(cfg, logger)
	if err != nil {
		logger.Error("failed to setup telemetry", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}()

	if err := convert(ctx, cfg, backend, inputPath, outPath, cleanStart, quiet, logger); err != nil {
		logger.Error("conversion failed", slog.String("error", err.Error()))
		return 1
	}
	return 0
}

func convert(ctx context.Context, cfg config.Config, backend synth.Backend, inputPath, outPath string, cleanStart, quiet bool, logger *slog.Logger) error {
	if !quiet {
		fmt.Fprintf(os.Stderr, "Extracting text from: %s\n", filepath.Base(inputPath))
	}
	raw, err := extract.Extract(inputPath)
	if err != nil {
		return err
	}

	text := textproc.Clean(raw, cfg.Input.FilterMeta)
	units, err := plan.Plan(text, cfg.Planner.MaxUnitChars)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		return errors.New("no text units to synthesize")
	}
	if !quiet {
		fmt.Fprintf(os.Stderr, "Planned %d chunks\n", len(units))
	}

	fingerprint, err := store.Fingerprint(inputPath)
	if err != nil {
		return err
	}
	ws, err := store.New(cfg.Store.Dir, logger).WorkingSet(fingerprint)
	if err != nil {
		return err
	}
	if cleanStart {
		if err := ws.Clear(); err != nil {
			return err
		}
	}
	if err := ws.CheckManifest(store.Manifest{
		MaxUnitChars: cfg.Planner.MaxUnitChars,
		UnitCount:    len(units),
		TextSHA256:   store.TextDigest(text),
		Engine:       cfg.Engine.Name,
	}); err != nil {
		if errors.Is(err, store.ErrManifestMismatch) {
			return fmt.Errorf("%w; rerun with -clean-start to discard prior work", err)
		}
		return err
	}

	led, err := ledger.Open(ctx, cfg.Ledger, logger)
	if err != nil {
		return err
	}
	defer led.Close()

	if prior, err := led.LastRun(ctx, fingerprint); err == nil && prior != nil && !quiet {
		fmt.Fprintf(os.Stderr, "Previous run for this input: %d/%d chunks, status %s\n",
			prior.UnitsDone, prior.UnitsTotal, prior.Status)
	}

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return err
	}

	voice := synth.VoiceConfig{Language: cfg.Engine.Language, Voice: cfg.Engine.Voice}
	asm := assemble.New(logger)
	enc := encode.New(cfg.Output.EncoderCommand, logger)
	orch := pipeline.New(backend, asm, enc, led, metrics, cfg.Pipeline, logger)
	if !quiet {
		orch.OnProgress(printProgress)
	}

	res, err := orch.Run(ctx, units, ws, voice, filepath.Base(inputPath))
	if err != nil {
		if events, evErr := led.ListRunEvents(context.WithoutCancel(ctx), res.RunID, 500); evErr == nil {
			retries := 0
			for _, evt := range events {
				if evt.Type == "chunk_retry" {
					retries++
				}
			}
			if retries > 0 {
				logger.Info("run saw transient backend failures", slog.Int("retries", retries))
			}
		}
		fmt.Fprintf(os.Stderr, "Stopped after %d/%d chunks; rerun to resume\n", res.LastIndex+1, res.Total)
		return err
	}

	if !quiet && res.Skipped > 0 {
		fmt.Fprintf(os.Stderr, "Skipped %d existing chunks, synthesized %d new\n", res.Skipped, res.Completed)
	}

	if err := orch.Finalize(ctx, ws, res.Total, outPath); err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(os.Stderr, "Wrote %s\n", outPath)
	}
	return nil
}

// printProgress redraws a fixed-width bar in place on stderr.
func printProgress(done, total int) {
	const barWidth = 40
	filled := barWidth * done / total
	bar := strings.Repeat("=", filled) + strings.Repeat("-", barWidth-filled)
	fmt.Fprintf(os.Stderr, "\r[%s] %d/%d chunks", bar, done, total)
	if done == total {
		fmt.Fprintln(os.Stderr)
	}
}

func printVoices(backend synth.Backend) {
	voices := backend.Voices()
	names := make([]string, 0, len(voices))
	for name := range voices {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Printf("Available voices for %s:\n", backend.Name())
	for _, name := range names {
		fmt.Printf("  %-24s %s\n", name, voices[name])
	}
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
