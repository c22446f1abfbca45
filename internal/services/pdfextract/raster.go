package pdfextract

import (
	"bytes"
	"image"
	"image/png"
)

// encodePNG re-encodes a rasterized page as PNG bytes for vision dispatch
// and optional blob persistence.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
