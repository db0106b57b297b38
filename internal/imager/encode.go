package imager

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/disintegration/imaging"
)

// DefaultJPEGQuality is used when EncodeOptions.Quality is zero.
const DefaultJPEGQuality = 85

// EncodedBuffer is an encoded image; Data is owned by the caller.
type EncodedBuffer struct {
	Data   []byte
	Format FormatTag
}

// EncodeOptions tunes EncodeWithOptions.
type EncodeOptions struct {
	// Quality is the JPEG quality, 1–100. Ignored for PNG.
	Quality int
}

// Encode serialises img in the target format with default options.
func Encode(img *RasterImage, target FormatTag) (*EncodedBuffer, error) {
	return EncodeWithOptions(img, target, EncodeOptions{})
}

// EncodeWithOptions serialises img. JPEG output carries no metadata segments; PNG output
// keeps the raster's channel count so decoding it yields the same layout.
func EncodeWithOptions(img *RasterImage, target FormatTag, opts EncodeOptions) (*EncodedBuffer, error) {
	format, ok := target.imagingFormat()
	if !ok {
		return nil, &EncodeError{Format: target, Err: ErrUnsupportedFormat}
	}
	if err := img.Validate(); err != nil {
		return nil, &EncodeError{Format: target, Err: err}
	}

	var (
		buf bytes.Buffer
		out []byte
	)
	switch target {
	case JPEG:
		if img.HasAlpha() {
			return nil, &EncodeError{Format: target, Err: fmt.Errorf("%w: %d", ErrUnsupportedChannels, img.Channels)}
		}
		quality := opts.Quality
		if quality == 0 {
			quality = DefaultJPEGQuality
		}
		if quality < 1 || quality > 100 {
			return nil, &EncodeError{Format: target, Err: fmt.Errorf("quality %d out of range 1-100", quality)}
		}
		if err := imaging.Encode(&buf, img.toImage(), format, imaging.JPEGQuality(quality)); err != nil {
			return nil, &EncodeError{Format: target, Err: err}
		}
		stripped, err := stripJPEGMetadata(buf.Bytes())
		if err != nil {
			return nil, &EncodeError{Format: target, Err: err}
		}
		out = stripped
	case PNG:
		if err := imaging.Encode(&buf, img.toImage(), format, imaging.PNGCompressionLevel(png.DefaultCompression)); err != nil {
			return nil, &EncodeError{Format: target, Err: err}
		}
		out = buf.Bytes()
		if img.HasAlpha() && opaque(img) {
			keyed, err := keepAlphaChannel(out, img)
			if err != nil {
				return nil, &EncodeError{Format: target, Err: err}
			}
			out = keyed
		}
	}

	return &EncodedBuffer{Data: out, Format: target}, nil
}

func opaque(img *RasterImage) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0xff {
			return false
		}
	}
	return true
}
