package store

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/inkvoice/inkvoice/internal/synth"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testSegment(fill int) *synth.Segment {
	pcm := make([]int, 100)
	for i := range pcm {
		pcm[i] = fill
	}
	return &synth.Segment{SampleRate: 22050, Channels: 1, PCM: pcm}
}

func TestFingerprintStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.txt")
	if err := os.WriteFile(path, []byte("same content"), 0o644); err != nil {
		t.Fatal(err)
	}
	first, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	second, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if first != second {
		t.Fatalf("fingerprint not stable: %q vs %q", first, second)
	}
	if len(first) != 16 {
		t.Fatalf("fingerprint length = %d", len(first))
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	c := filepath.Join(dir, "a_changed.txt")
	os.WriteFile(a, []byte("content"), 0o644)
	os.WriteFile(b, []byte("content"), 0o644)
	os.WriteFile(c, []byte("other"), 0o644)

	fpA, _ := Fingerprint(a)
	fpB, _ := Fingerprint(b)
	fpC, _ := Fingerprint(c)
	if fpA == fpB {
		t.Fatal("different names with same content should differ")
	}
	if fpA == fpC {
		t.Fatal("different content should differ")
	}
}

func TestRecordAndScan(t *testing.T) {
	ws, err := testStore(t).WorkingSet("abc123")
	if err != nil {
		t.Fatalf("working set: %v", err)
	}

	for _, index := range []int{0, 2, 5} {
		if err := ws.RecordSegment(index, testSegment(index)); err != nil {
			t.Fatalf("record %d: %v", index, err)
		}
	}

	indices, err := ws.ExistingIndices()
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(indices) != 3 || !indices[0] || !indices[2] || !indices[5] {
		t.Fatalf("indices = %v", indices)
	}
	if got := SortedIndices(indices); got[0] != 0 || got[1] != 2 || got[2] != 5 {
		t.Fatalf("sorted = %v", got)
	}
}

func TestRecordLeavesNoTempFiles(t *testing.T) {
	ws, err := testStore(t).WorkingSet("abc123")
	if err != nil {
		t.Fatalf("working set: %v", err)
	}
	if err := ws.RecordSegment(0, testSegment(1)); err != nil {
		t.Fatalf("record: %v", err)
	}
	entries, err := os.ReadDir(ws.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "chunk_0000.wav" {
		t.Fatalf("unexpected dir contents: %v", entries)
	}
}

func TestScanIgnoresJunk(t *testing.T) {
	ws, err := testStore(t).WorkingSet("abc123")
	if err != nil {
		t.Fatalf("working set: %v", err)
	}
	if err := ws.RecordSegment(1, testSegment(1)); err != nil {
		t.Fatalf("record: %v", err)
	}

	// Zero-byte segment, corrupt segment, stray temp file, unrelated file.
	os.WriteFile(filepath.Join(ws.Dir(), "chunk_0002.wav"), nil, 0o644)
	os.WriteFile(filepath.Join(ws.Dir(), "chunk_0003.wav"), []byte("not audio"), 0o644)
	os.WriteFile(filepath.Join(ws.Dir(), "chunk_0004.wav.tmp"), []byte("partial"), 0o644)
	os.WriteFile(filepath.Join(ws.Dir(), "notes.txt"), []byte("hi"), 0o644)

	indices, err := ws.ExistingIndices()
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(indices) != 1 || !indices[1] {
		t.Fatalf("indices = %v, want only {1}", indices)
	}
}

func TestLoadSegmentRoundtrip(t *testing.T) {
	ws, err := testStore(t).WorkingSet("abc123")
	if err != nil {
		t.Fatalf("working set: %v", err)
	}
	want := testSegment(77)
	if err := ws.RecordSegment(3, want); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err := ws.LoadSegment(3)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.SampleRate != want.SampleRate || len(got.PCM) != len(want.PCM) {
		t.Fatalf("got %d samples at %d Hz", len(got.PCM), got.SampleRate)
	}
	for i := range want.PCM {
		if got.PCM[i] != want.PCM[i] {
			t.Fatalf("sample %d = %d, want %d", i, got.PCM[i], want.PCM[i])
		}
	}
}

func TestRecordOverwriteIsIdempotent(t *testing.T) {
	ws, err := testStore(t).WorkingSet("abc123")
	if err != nil {
		t.Fatalf("working set: %v", err)
	}
	if err := ws.RecordSegment(0, testSegment(1)); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := ws.RecordSegment(0, testSegment(2)); err != nil {
		t.Fatalf("second record: %v", err)
	}
	got, err := ws.LoadSegment(0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.PCM[0] != 2 {
		t.Fatalf("sample = %d, want latest write to win", got.PCM[0])
	}
}

func TestClear(t *testing.T) {
	ws, err := testStore(t).WorkingSet("abc123")
	if err != nil {
		t.Fatalf("working set: %v", err)
	}
	ws.RecordSegment(0, testSegment(1))
	ws.WriteManifest(Manifest{MaxUnitChars: 100, UnitCount: 1, TextSHA256: "x", Engine: "mock"})

	if err := ws.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	indices, err := ws.ExistingIndices()
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(indices) != 0 {
		t.Fatalf("indices after clear = %v", indices)
	}
	m, err := ws.LoadManifest()
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if m != nil {
		t.Fatal("manifest should be gone after clear")
	}
}

func TestDispose(t *testing.T) {
	ws, err := testStore(t).WorkingSet("abc123")
	if err != nil {
		t.Fatalf("working set: %v", err)
	}
	ws.RecordSegment(0, testSegment(1))
	if err := ws.Dispose(); err != nil {
		t.Fatalf("dispose: %v", err)
	}
	if _, err := os.Stat(ws.Dir()); !os.IsNotExist(err) {
		t.Fatal("working directory should be removed")
	}
}

func TestManifestFreshThenMatch(t *testing.T) {
	ws, err := testStore(t).WorkingSet("abc123")
	if err != nil {
		t.Fatalf("working set: %v", err)
	}
	m := Manifest{MaxUnitChars: 500, UnitCount: 12, TextSHA256: TextDigest("text"), Engine: "silero"}

	// Fresh set: check writes the manifest.
	if err := ws.CheckManifest(m); err != nil {
		t.Fatalf("fresh check: %v", err)
	}
	// Same plan: passes.
	if err := ws.CheckManifest(m); err != nil {
		t.Fatalf("repeat check: %v", err)
	}
}

func TestManifestMismatch(t *testing.T) {
	ws, err := testStore(t).WorkingSet("abc123")
	if err != nil {
		t.Fatalf("working set: %v", err)
	}
	base := Manifest{MaxUnitChars: 500, UnitCount: 12, TextSHA256: TextDigest("text"), Engine: "silero"}
	if err := ws.CheckManifest(base); err != nil {
		t.Fatalf("fresh check: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Manifest)
	}{
		{"unit limit changed", func(m *Manifest) { m.MaxUnitChars = 400 }},
		{"unit count changed", func(m *Manifest) { m.UnitCount = 13 }},
		{"text changed", func(m *Manifest) { m.TextSHA256 = TextDigest("other") }},
		{"engine changed", func(m *Manifest) { m.Engine = "piper" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			changed := base
			tc.mutate(&changed)
			if err := ws.CheckManifest(changed); !errors.Is(err, ErrManifestMismatch) {
				t.Fatalf("got %v, want ErrManifestMismatch", err)
			}
		})
	}
}

func TestManifestNotASegment(t *testing.T) {
	ws, err := testStore(t).WorkingSet("abc123")
	if err != nil {
		t.Fatalf("working set: %v", err)
	}
	if err := ws.WriteManifest(Manifest{UnitCount: 1}); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	indices, err := ws.ExistingIndices()
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(indices) != 0 {
		t.Fatalf("manifest counted as segment: %v", indices)
	}
}
