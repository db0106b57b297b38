package imager

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // codecs registered for image.Decode
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
)

// DecodeOptions tunes DecodeWithOptions.
type DecodeOptions struct {
	// MaxPixels rejects images whose header declares more pixels than this. Zero disables the check.
	MaxPixels int
	// AutoOrient applies the EXIF orientation tag after decoding.
	AutoOrient bool
}

// sequentialReader hides every interface of the underlying reader except io.Reader,
// so codecs can only consume the buffer front to back.
type sequentialReader struct {
	r io.Reader
}

func (s sequentialReader) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

func newSequentialReader(buf []byte) io.Reader {
	return sequentialReader{r: bytes.NewReader(buf)}
}

// Decode parses buf, which must hold an image of the expected format, into a raster.
func Decode(buf []byte, expected FormatTag) (*RasterImage, error) {
	return DecodeWithOptions(buf, expected, DecodeOptions{})
}

// DecodeWithOptions is Decode with a pixel budget and optional EXIF orientation.
func DecodeWithOptions(buf []byte, expected FormatTag, opts DecodeOptions) (*RasterImage, error) {
	if len(buf) == 0 {
		return nil, &DecodeError{Format: expected, Err: ErrEmptyBuffer}
	}
	if _, ok := expected.imagingFormat(); !ok {
		return nil, &DecodeError{Format: expected, Err: ErrUnknownFormat}
	}
	if got := DetectFormat(buf); got != expected {
		return nil, &DecodeError{Format: expected, Err: fmt.Errorf("%w: detected %s", ErrFormatMismatch, got)}
	}

	cfg, _, err := image.DecodeConfig(newSequentialReader(buf))
	if err != nil {
		return nil, &DecodeError{Format: expected, Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &DecodeError{Format: expected, Err: fmt.Errorf("empty image %dx%d", cfg.Width, cfg.Height)}
	}
	if overLimit(cfg.Width, cfg.Height, opts.MaxPixels) {
		return nil, &DecodeError{
			Format: expected,
			Err:    fmt.Errorf("%w: %dx%d > %d", ErrPixelLimitExceeded, cfg.Width, cfg.Height, opts.MaxPixels),
		}
	}

	img, err := imaging.Decode(newSequentialReader(buf), imaging.AutoOrientation(opts.AutoOrient))
	if err != nil {
		return nil, &DecodeError{Format: expected, Err: err}
	}

	var channels int
	switch expected {
	case JPEG:
		// orientation fixes replace the codec output, the header model is authoritative
		channels = channelsOfModel(cfg.ColorModel)
	default:
		// the png header model ignores tRNS; the decoded type does not
		channels = channelsOf(img)
	}
	return rasterFromImage(img, channels), nil
}

func channelsOfModel(m color.Model) int {
	switch m {
	case color.GrayModel, color.Gray16Model:
		return 1
	case color.NRGBAModel, color.NRGBA64Model:
		return 4
	}
	return 3
}
