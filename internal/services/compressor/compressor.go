// Package compressor implements the dictionary-class streaming compressor
// (C12) over klauspost/compress's zstd codec.
package compressor

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/antigravity-dev/ragforge/internal/interfaces"
)

// Compressor implements interfaces.Compressor with zstd, mapping the three
// spec-level levels onto zstd's speed presets.
type Compressor struct{}

var _ interfaces.Compressor = (*Compressor)(nil)

// New creates a Compressor.
func New() *Compressor {
	return &Compressor{}
}

func zstdLevel(level interfaces.CompressionLevel) zstd.EncoderLevel {
	switch level {
	case interfaces.CompressionFast:
		return zstd.SpeedFastest
	case interfaces.CompressionMax:
		return zstd.SpeedBestCompression
	case interfaces.CompressionBalanced:
		fallthrough
	default:
		return zstd.SpeedDefault
	}
}

func (c *Compressor) Compress(w io.Writer, r io.Reader, level interfaces.CompressionLevel) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstdLevel(level)))
	if err != nil {
		return fmt.Errorf("compressor: create encoder: %w", err)
	}
	defer enc.Close()

	if _, err := io.Copy(enc, r); err != nil {
		return fmt.Errorf("compressor: encode: %w", err)
	}
	return enc.Close()
}

func (c *Compressor) Decompress(w io.Writer, r io.Reader) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("compressor: create decoder: %w", err)
	}
	defer dec.Close()

	if _, err := io.Copy(w, dec); err != nil {
		return fmt.Errorf("compressor: decode: %w", err)
	}
	return nil
}
