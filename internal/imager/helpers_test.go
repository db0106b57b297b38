package imager

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// patternRaster fills a raster with a deterministic, non-uniform pattern.
func patternRaster(w, h, channels int) *RasterImage {
	r := NewRaster(w, h, channels)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := r.Pix[(y*w+x)*channels:]
			for c := 0; c < channels; c++ {
				p[c] = uint8((x*7 + y*13 + c*61) % 256)
			}
			if channels == 4 {
				p[3] = uint8(128 + (x+y)%128)
			}
		}
	}
	return r
}

func solidRaster(w, h, channels int, v ...uint8) *RasterImage {
	r := NewRaster(w, h, channels)
	for i := 0; i < len(r.Pix); i += channels {
		copy(r.Pix[i:i+channels], v)
	}
	return r
}

func testImageBytes(t *testing.T, img image.Image, format imaging.Format) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format))
	return buf.Bytes()
}

func solidImageBytes(t *testing.T, w, h int, c color.Color, format imaging.Format) []byte {
	t.Helper()
	return testImageBytes(t, imaging.New(w, h, c), format)
}

func pixelAt(r *RasterImage, x, y int) []byte {
	i := (y*r.Width + x) * r.Channels
	return r.Pix[i : i+r.Channels]
}

func requireDecodeError(t *testing.T, err error) {
	t.Helper()

	var de *DecodeError
	require.ErrorAs(t, err, &de)
}
