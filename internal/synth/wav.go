package synth

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV writes a segment as a 16-bit PCM WAV stream.
func EncodeWAV(w io.WriteSeeker, seg *Segment) error {
	enc := wav.NewEncoder(w, seg.SampleRate, 16, seg.Channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: seg.Channels, SampleRate: seg.SampleRate},
		Data:           seg.PCM,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// DecodeWAV reads a 16-bit PCM WAV stream into a segment.
func DecodeWAV(r io.ReadSeeker) (*Segment, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav stream")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	return &Segment{
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		PCM:        buf.Data,
	}, nil
}

// ReadWAVFile loads a segment from disk.
func ReadWAVFile(path string) (*Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeWAV(f)
}
