package interfaces

import "io"

// CompressionLevel trades speed for ratio.
type CompressionLevel string

const (
	CompressionFast     CompressionLevel = "fast"
	CompressionBalanced CompressionLevel = "balanced"
	CompressionMax      CompressionLevel = "max"
)

// Compressor is a dictionary-class streaming compressor. Never on the
// critical path; optional per job options.
type Compressor interface {
	Compress(w io.Writer, r io.Reader, level CompressionLevel) error
	Decompress(w io.Writer, r io.Reader) error
}
