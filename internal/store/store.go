// Package store keeps the resumable on-disk record of synthesized segments.
// Each input document gets an isolated working directory keyed by its
// fingerprint; segment files inside it are the completed-index set. Writes
// are atomic (temp file + rename) so a crash can never leave a partial file
// under a final segment name.
package store

import (
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-audio/wav"

	"github.com/inkvoice/inkvoice/internal/synth"
)

const segmentPattern = "chunk_%04d.wav"

// Fingerprint derives the stable working-directory key for an input file
// from its base name and content.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	h.Write([]byte(filepath.Base(path)))
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:16], nil
}

// Store manages working sets under a common root directory.
type Store struct {
	root   string
	logger *slog.Logger
}

func New(root string, log *slog.Logger) *Store {
	return &Store{
		root:   root,
		logger: log.With(slog.String("component", "chunk-store")),
	}
}

// WorkingSet opens (creating if needed) the working directory for a
// fingerprint.
func (s *Store) WorkingSet(fingerprint string) (*WorkingSet, error) {
	dir := filepath.Join(s.root, fingerprint)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create working dir: %w", err)
	}
	return &WorkingSet{
		dir:         dir,
		fingerprint: fingerprint,
		logger:      s.logger.With(slog.String("fingerprint", fingerprint)),
	}, nil
}

// WorkingSet is the resumable state of one conversion job.
type WorkingSet struct {
	dir         string
	fingerprint string
	logger      *slog.Logger
}

func (w *WorkingSet) Dir() string         { return w.dir }
func (w *WorkingSet) Fingerprint() string { return w.fingerprint }

// SegmentPath returns the final on-disk name for a chunk index.
func (w *WorkingSet) SegmentPath(index int) string {
	return filepath.Join(w.dir, fmt.Sprintf(segmentPattern, index))
}

// ExistingIndices scans the working directory and returns indices whose
// segment artifacts are valid. Zero-byte or unreadable files count as
// absent, never as errors: they will simply be re-synthesized.
func (w *WorkingSet) ExistingIndices() (map[int]bool, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("scan working dir: %w", err)
	}

	indices := make(map[int]bool)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		index, ok := parseSegmentName(entry.Name())
		if !ok {
			continue
		}
		if w.validSegment(w.SegmentPath(index)) {
			indices[index] = true
		}
	}
	return indices, nil
}

func parseSegmentName(name string) (int, bool) {
	rest, found := strings.CutPrefix(name, "chunk_")
	if !found {
		return 0, false
	}
	digits, found := strings.CutSuffix(rest, ".wav")
	if !found {
		return 0, false
	}
	index, err := strconv.Atoi(digits)
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}

// validSegment reports whether a file holds a readable, non-empty WAV.
func (w *WorkingSet) validSegment(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		w.logger.Warn("discarding corrupt segment", slog.String("file", filepath.Base(path)))
		return false
	}
	return true
}

// RecordSegment durably writes the audio for one chunk index. The segment
// becomes visible under its final name only after the data is fully on disk.
func (w *WorkingSet) RecordSegment(index int, seg *synth.Segment) error {
	final := w.SegmentPath(index)
	tmp := final + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create segment temp: %w", err)
	}
	if err := synth.EncodeWAV(f, seg); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode segment %d: %w", index, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync segment %d: %w", index, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close segment %d: %w", index, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit segment %d: %w", index, err)
	}
	return nil
}

// LoadSegment reads a previously recorded segment back from disk.
func (w *WorkingSet) LoadSegment(index int) (*synth.Segment, error) {
	return synth.ReadWAVFile(w.SegmentPath(index))
}

// Clear removes every segment artifact and the manifest, resetting the
// completed set to empty. Used only for an explicit clean start.
func (w *WorkingSet) Clear() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("scan working dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(w.dir, entry.Name())); err != nil {
			return fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
	}
	w.logger.Info("working set cleared")
	return nil
}

// Dispose removes the working directory entirely. Called only after the
// assembled output has been produced and handed off.
func (w *WorkingSet) Dispose() error {
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("dispose working dir: %w", err)
	}
	w.logger.Info("working set disposed")
	return nil
}

// SortedIndices is a convenience for ascending iteration over a completed
// set.
func SortedIndices(set map[int]bool) []int {
	indices := make([]int, 0, len(set))
	for index := range set {
		indices = append(indices, index)
	}
	sort.Ints(indices)
	return indices
}
