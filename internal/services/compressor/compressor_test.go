package compressor

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antigravity-dev/ragforge/internal/interfaces"
)

func TestCompressDecompress_RoundTrip(t *testing.T) {
	c := New()

	levels := []interfaces.CompressionLevel{
		interfaces.CompressionFast,
		interfaces.CompressionBalanced,
		interfaces.CompressionMax,
	}

	original := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 200)

	for _, level := range levels {
		t.Run(string(level), func(t *testing.T) {
			var compressed bytes.Buffer
			err := c.Compress(&compressed, strings.NewReader(original), level)
			require.NoError(t, err)
			assert.Less(t, compressed.Len(), len(original))

			var decompressed bytes.Buffer
			err = c.Decompress(&decompressed, bytes.NewReader(compressed.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, original, decompressed.String())
		})
	}
}

func TestDecompress_InvalidStreamErrors(t *testing.T) {
	c := New()

	var out bytes.Buffer
	err := c.Decompress(&out, strings.NewReader("not a zstd stream"))
	assert.Error(t, err)
}

func TestCompress_EmptyInput(t *testing.T) {
	c := New()

	var compressed bytes.Buffer
	err := c.Compress(&compressed, strings.NewReader(""), interfaces.CompressionBalanced)
	require.NoError(t, err)

	var decompressed bytes.Buffer
	err = c.Decompress(&decompressed, bytes.NewReader(compressed.Bytes()))
	require.NoError(t, err)
	assert.Empty(t, decompressed.String())
}
