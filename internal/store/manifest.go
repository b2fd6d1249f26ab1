package store

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const manifestName = "manifest.json"

// ErrManifestMismatch reports that the working set was produced under
// different planning parameters or from different text than the current
// run, so its segment indices no longer line up.
var ErrManifestMismatch = errors.New("working set does not match current plan")

// Manifest pins the plan a working set was produced under. Since units are
// recomputed every run, a change to the text, the unit limit or the engine
// would silently shift indices; the manifest turns that into a refusal.
type Manifest struct {
	MaxUnitChars int    `json:"max_unit_chars"`
	UnitCount    int    `json:"unit_count"`
	TextSHA256   string `json:"text_sha256"`
	Engine       string `json:"engine"`
}

// TextDigest hashes normalized text for manifest comparison.
func TextDigest(text string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(text)))
}

func (w *WorkingSet) manifestPath() string {
	return filepath.Join(w.dir, manifestName)
}

// LoadManifest returns the stored manifest, or nil when the working set is
// fresh.
func (w *WorkingSet) LoadManifest() (*Manifest, error) {
	data, err := os.ReadFile(w.manifestPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// WriteManifest records the current plan parameters, atomically.
func (w *WorkingSet) WriteManifest(m Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	tmp := w.manifestPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, w.manifestPath()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit manifest: %w", err)
	}
	return nil
}

// CheckManifest verifies the stored manifest against the current plan. A
// fresh working set passes and gets the manifest written; a mismatch
// returns ErrManifestMismatch so the caller can demand a clean start.
func (w *WorkingSet) CheckManifest(current Manifest) error {
	stored, err := w.LoadManifest()
	if err != nil {
		return err
	}
	if stored == nil {
		return w.WriteManifest(current)
	}
	if *stored != current {
		return fmt.Errorf("%w: stored %+v, current %+v", ErrManifestMismatch, *stored, current)
	}
	return nil
}
