// Package pipeline drives planned text units through the chunk store and a
// synthesis backend, one unit at a time in ascending index order. Backends
// hold large exclusive model state, so there is no parallel dispatch; the
// strict ordering also means an interrupted run leaves the longest useful
// audio prefix behind.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/inkvoice/inkvoice/internal/assemble"
	"github.com/inkvoice/inkvoice/internal/config"
	"github.com/inkvoice/inkvoice/internal/encode"
	"github.com/inkvoice/inkvoice/internal/ledger"
	"github.com/inkvoice/inkvoice/internal/plan"
	"github.com/inkvoice/inkvoice/internal/store"
	"github.com/inkvoice/inkvoice/internal/synth"
	"github.com/inkvoice/inkvoice/internal/telemetry"
)

// State is the orchestrator's lifecycle stage.
type State string

const (
	StateNotStarted   State = "not_started"
	StateResuming     State = "resuming"
	StateSynthesizing State = "synthesizing"
	StateComplete     State = "complete"
	StateAborted      State = "aborted"
)

// Result summarizes one run over a working set.
type Result struct {
	RunID     string
	Total     int
	Completed int
	Skipped   int
	// LastIndex is the highest index of the contiguous completed prefix,
	// -1 when nothing is done. Useful for progress reporting and resume.
	LastIndex int
	State     State
}

// ProgressFunc receives completed and total unit counts after every unit.
type ProgressFunc func(done, total int)

// Orchestrator owns one conversion's control flow. The backend handle is
// acquired once per job and threaded to every synthesize call, so engines
// amortize model loading across all units.
type Orchestrator struct {
	backend   synth.Backend
	assembler *assemble.Assembler
	encoder   *encode.Encoder
	ledger    *ledger.Ledger
	metrics   *telemetry.Metrics
	logger    *slog.Logger

	maxRetries int
	retryBase  time.Duration
	progress   ProgressFunc

	// sleep is swapped out in tests to avoid real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(backend synth.Backend, asm *assemble.Assembler, enc *encode.Encoder, led *ledger.Ledger, metrics *telemetry.Metrics, cfg config.PipelineConfig, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		backend:    backend,
		assembler:  asm,
		encoder:    enc,
		ledger:     led,
		metrics:    metrics,
		logger:     log.With(slog.String("component", "orchestrator")),
		maxRetries: cfg.MaxRetries,
		retryBase:  time.Duration(cfg.RetryBaseDelayMS) * time.Millisecond,
		progress:   func(int, int) {},
		sleep:      sleepCtx,
	}
}

// OnProgress registers a callback invoked after every unit.
func (o *Orchestrator) OnProgress(fn ProgressFunc) {
	if fn != nil {
		o.progress = fn
	}
}

// Run synthesizes every unit not already present in the working set. Any
// fatal condition aborts with the partial working set intact; only a fully
// successful pass reports StateComplete.
func (o *Orchestrator) Run(ctx context.Context, units []plan.TextUnit, ws *store.WorkingSet, voice synth.VoiceConfig, inputName string) (Result, error) {
	res := Result{RunID: uuid.NewString(), Total: len(units), LastIndex: -1, State: StateNotStarted}

	if err := o.backend.Validate(voice); err != nil {
		res.State = StateAborted
		return res, err
	}

	res.State = StateResuming
	existing, err := ws.ExistingIndices()
	if err != nil {
		res.State = StateAborted
		return res, err
	}

	if err := o.ledger.StartRun(ctx, ledger.Run{
		ID:          res.RunID,
		Fingerprint: ws.Fingerprint(),
		Input:       inputName,
		Engine:      o.backend.Name(),
		Voice:       voice.Voice,
		UnitsTotal:  len(units),
		UnitsDone:   len(existing),
	}); err != nil {
		o.logger.Warn("ledger start failed", slogError(err))
	}

	if o.metrics != nil {
		o.metrics.UnitsPlanned.Add(ctx, int64(len(units)))
	}
	if len(existing) > 0 {
		o.logger.Info("resuming prior work",
			slog.Int("existing", len(existing)),
			slog.Int("total", len(units)))
	}

	res.State = StateSynthesizing
	done := make(map[int]bool, len(units))
	for index := range existing {
		if index < len(units) {
			done[index] = true
		}
	}

	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return o.abort(ctx, res, done, fmt.Errorf("run cancelled: %w", err))
		}

		if done[unit.Index] {
			res.Skipped++
			if o.metrics != nil {
				o.metrics.UnitsSkipped.Add(ctx, 1)
			}
			o.progress(len(done), len(units))
			continue
		}

		seg, err := o.synthesizeWithRetry(ctx, unit, voice, res.RunID)
		if err != nil {
			return o.abort(ctx, res, done, err)
		}

		// Recording must succeed before the index counts as done. A crash
		// between synthesis and record re-synthesizes this unit on resume.
		if err := ws.RecordSegment(unit.Index, seg); err != nil {
			return o.abort(ctx, res, done, err)
		}

		done[unit.Index] = true
		res.Completed++
		if o.metrics != nil {
			o.metrics.UnitsSynthesized.Add(ctx, 1)
		}
		if err := o.ledger.RecordEvent(ctx, ledger.Event{
			RunID:      res.RunID,
			Type:       "chunk_completed",
			ChunkIndex: unit.Index,
		}); err != nil {
			o.logger.Warn("ledger event failed", slogError(err))
		}
		o.progress(len(done), len(units))
	}

	res.LastIndex = contiguousPrefix(done) - 1
	res.State = StateComplete
	if err := o.ledger.FinishRun(ctx, res.RunID, "complete", len(done)); err != nil {
		o.logger.Warn("ledger finish failed", slogError(err))
	}
	o.logger.Info("synthesis complete",
		slog.Int("synthesized", res.Completed),
		slog.Int("skipped", res.Skipped),
		slog.Int("total", res.Total))
	return res, nil
}

// Finalize assembles the completed working set, hands the stream to the
// external encoder and disposes the working directory. Disposal happens
// only after the output exists at outPath. Without an encoder the
// assembled WAV itself is renamed into place.
func (o *Orchestrator) Finalize(ctx context.Context, ws *store.WorkingSet, total int, outPath string) error {
	wavPath := outPath + ".assembled.wav"
	if err := o.assembler.Assemble(ws, total, wavPath); err != nil {
		return err
	}
	if o.encoder.Enabled() {
		if err := o.encoder.Encode(ctx, wavPath, outPath); err != nil {
			return err
		}
		if err := os.Remove(wavPath); err != nil {
			o.logger.Warn("failed to remove assembled intermediate", slogError(err))
		}
	} else if err := os.Rename(wavPath, outPath); err != nil {
		return fmt.Errorf("commit output: %w", err)
	}
	if err := ws.Dispose(); err != nil {
		return err
	}
	return nil
}

func (o *Orchestrator) synthesizeWithRetry(ctx context.Context, unit plan.TextUnit, voice synth.VoiceConfig, runID string) (*synth.Segment, error) {
	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		start := time.Now()
		seg, err := o.backend.Synthesize(ctx, unit.Content, voice)
		if o.metrics != nil {
			o.metrics.SynthDuration.Record(ctx, time.Since(start).Seconds())
		}
		if err == nil {
			if len(seg.PCM) == 0 {
				return nil, &synth.SynthesisError{Engine: o.backend.Name(), Err: fmt.Errorf("empty segment for unit %d", unit.Index)}
			}
			return seg, nil
		}
		if !errors.Is(err, synth.ErrTransient) {
			return nil, err
		}

		lastErr = err
		if attempt == o.maxRetries {
			break
		}
		delay := o.retryBase << attempt
		o.logger.Warn("transient backend failure, retrying",
			slog.Int("chunk", unit.Index),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slogError(err))
		if o.metrics != nil {
			o.metrics.SynthRetries.Add(ctx, 1)
		}
		if recErr := o.ledger.RecordEvent(ctx, ledger.Event{
			RunID:      runID,
			Type:       "chunk_retry",
			ChunkIndex: unit.Index,
			Detail:     err.Error(),
		}); recErr != nil {
			o.logger.Warn("ledger event failed", slogError(recErr))
		}
		if err := o.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("retries exhausted for unit %d: %w", unit.Index, lastErr)
}

func (o *Orchestrator) abort(ctx context.Context, res Result, done map[int]bool, cause error) (Result, error) {
	res.LastIndex = contiguousPrefix(done) - 1
	res.State = StateAborted
	// The run context may already be cancelled; the terminal ledger write
	// still has to land.
	if err := o.ledger.FinishRun(context.WithoutCancel(ctx), res.RunID, "aborted", len(done)); err != nil {
		o.logger.Warn("ledger finish failed", slogError(err))
	}
	o.logger.Error("run aborted",
		slog.Int("completed", len(done)),
		slog.Int("total", res.Total),
		slogError(cause))
	return res, cause
}

// contiguousPrefix returns the length of the done prefix starting at 0.
func contiguousPrefix(done map[int]bool) int {
	n := 0
	for done[n] {
		n++
	}
	return n
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
