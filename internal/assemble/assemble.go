// Package assemble orders completed audio segments by chunk index and
// concatenates them into one stream. Assembly is idempotent: segment order
// and content are fixed once the working set is complete, so repeated runs
// produce byte-identical output.
package assemble

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/inkvoice/inkvoice/internal/store"
	"github.com/inkvoice/inkvoice/internal/synth"
)

// ErrIncompleteSet reports a missing segment index at assembly time. The
// orchestrator only triggers assembly after reporting completion, so this
// is an invariant violation, not a user-recoverable condition.
var ErrIncompleteSet = errors.New("segment set incomplete")

type Assembler struct {
	logger *slog.Logger
}

func New(log *slog.Logger) *Assembler {
	return &Assembler{logger: log.With(slog.String("component", "assembler"))}
}

// Assemble concatenates segments 0..expectedCount-1 from the working set
// into a single WAV file at outPath. All segments are normalized to the
// sample rate and channel count of the first segment; a single backend
// serves a whole run, so in practice this is the identity transform.
func (a *Assembler) Assemble(ws *store.WorkingSet, expectedCount int, outPath string) error {
	if expectedCount <= 0 {
		return fmt.Errorf("expected count must be positive, got %d", expectedCount)
	}

	combined := &synth.Segment{}
	for index := 0; index < expectedCount; index++ {
		seg, err := ws.LoadSegment(index)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: index %d of %d", ErrIncompleteSet, index, expectedCount)
			}
			return fmt.Errorf("load segment %d: %w", index, err)
		}
		if len(seg.PCM) == 0 {
			return fmt.Errorf("%w: index %d is empty", ErrIncompleteSet, index)
		}

		if index == 0 {
			combined.SampleRate = seg.SampleRate
			combined.Channels = seg.Channels
		} else {
			seg = Normalize(seg, combined.SampleRate, combined.Channels)
		}
		combined.PCM = append(combined.PCM, seg.PCM...)
	}

	tmp := outPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := synth.EncodeWAV(f, combined); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode output: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp, outPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit output: %w", err)
	}

	a.logger.Info("assembled audio stream",
		slog.Int("segments", expectedCount),
		slog.Int("samples", len(combined.PCM)),
		slog.Int("sample_rate", combined.SampleRate),
		slog.String("output", outPath))
	return nil
}

// Normalize converts a segment to the target sample rate and channel count.
// Resampling is linear interpolation; channel conversion averages down to
// mono or duplicates up to stereo.
func Normalize(seg *synth.Segment, sampleRate, channels int) *synth.Segment {
	out := seg
	if out.Channels != channels {
		out = convertChannels(out, channels)
	}
	if out.SampleRate != sampleRate {
		out = resample(out, sampleRate)
	}
	return out
}

func convertChannels(seg *synth.Segment, channels int) *synth.Segment {
	frames := len(seg.PCM) / seg.Channels
	pcm := make([]int, frames*channels)
	for frame := 0; frame < frames; frame++ {
		// Average the source channels, then spread across the targets.
		sum := 0
		for ch := 0; ch < seg.Channels; ch++ {
			sum += seg.PCM[frame*seg.Channels+ch]
		}
		sample := sum / seg.Channels
		for ch := 0; ch < channels; ch++ {
			pcm[frame*channels+ch] = sample
		}
	}
	return &synth.Segment{SampleRate: seg.SampleRate, Channels: channels, PCM: pcm}
}

func resample(seg *synth.Segment, sampleRate int) *synth.Segment {
	srcFrames := len(seg.PCM) / seg.Channels
	if srcFrames == 0 {
		return &synth.Segment{SampleRate: sampleRate, Channels: seg.Channels}
	}
	dstFrames := int(int64(srcFrames) * int64(sampleRate) / int64(seg.SampleRate))
	pcm := make([]int, dstFrames*seg.Channels)

	for frame := 0; frame < dstFrames; frame++ {
		srcPos := float64(frame) * float64(seg.SampleRate) / float64(sampleRate)
		lo := int(srcPos)
		hi := lo + 1
		if hi >= srcFrames {
			hi = srcFrames - 1
		}
		frac := srcPos - float64(lo)
		for ch := 0; ch < seg.Channels; ch++ {
			a := float64(seg.PCM[lo*seg.Channels+ch])
			b := float64(seg.PCM[hi*seg.Channels+ch])
			pcm[frame*seg.Channels+ch] = int(a + (b-a)*frac)
		}
	}
	return &synth.Segment{SampleRate: sampleRate, Channels: seg.Channels, PCM: pcm}
}
