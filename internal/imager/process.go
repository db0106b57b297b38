package imager

import (
	"fmt"
	"strings"
)

// ResizeMode selects how the source is fitted into the target box.
type ResizeMode int

const (
	// ModeCrop fills the box exactly and crops the overflow.
	ModeCrop ResizeMode = iota
	// ModeFit scales the whole source inside the box, optionally padding it with a background.
	ModeFit
)

func (m ResizeMode) String() string {
	switch m {
	case ModeCrop:
		return "crop"
	case ModeFit:
		return "fit"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseResizeMode accepts "crop" and "fit".
func ParseResizeMode(s string) (ResizeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "crop":
		return ModeCrop, nil
	case "fit":
		return ModeFit, nil
	}
	return ModeCrop, fmt.Errorf("unknown resize mode %q", s)
}

// Options drives Process.
type Options struct {
	Width    int
	Height   int
	Mode     ResizeMode
	Interest Interest
	// Background pads fitted images to the full box; nil returns the fitted image as is.
	Background *Color
	// Format of the output, Unknown keeps the source format.
	Format    FormatTag
	Quality   int
	MaxPixels int
}

// Process runs the whole pipeline over an encoded buffer and returns the encoded thumbnail.
func Process(buf []byte, opts Options) (*EncodedBuffer, error) {
	source := DetectFormat(buf)
	target := opts.Format
	if target == Unknown {
		target = source
	}

	var (
		out *RasterImage
		err error
	)
	switch opts.Mode {
	case ModeCrop:
		out, err = Thumbnail(buf, ThumbnailSpec{
			Width:     opts.Width,
			Height:    opts.Height,
			Interest:  opts.Interest,
			MaxPixels: opts.MaxPixels,
		})
	case ModeFit:
		out, err = fit(buf, opts)
	default:
		return nil, &ResizeError{Width: opts.Width, Height: opts.Height, Err: fmt.Errorf("unknown resize mode %d", opts.Mode)}
	}
	if err != nil {
		return nil, err
	}

	if target == JPEG && out.HasAlpha() {
		bg := White
		if opts.Background != nil {
			bg = *opts.Background
		}
		if out, err = Flatten(out, bg); err != nil {
			return nil, err
		}
	}
	return EncodeWithOptions(out, target, EncodeOptions{Quality: opts.Quality})
}

// fit scales the source to the largest box with its own aspect ratio that fits inside
// Width x Height and, with a background, centres it on the full canvas.
func fit(buf []byte, opts Options) (*RasterImage, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, &ResizeError{Width: opts.Width, Height: opts.Height, Err: ErrInvalidDimensions}
	}
	// the canvas is the largest raster fit allocates
	canvas := ThumbnailSpec{Width: opts.Width, Height: opts.Height, Interest: InterestCenter, MaxPixels: opts.MaxPixels}
	if err := canvas.validate(); err != nil {
		return nil, err
	}
	src, err := DecodeWithOptions(buf, DetectFormat(buf), DecodeOptions{
		MaxPixels:  opts.MaxPixels,
		AutoOrient: true,
	})
	if err != nil {
		return nil, err
	}

	w, h := opts.Width, opts.Height
	if src.Width*h > w*src.Height {
		h = max(1, divRound(w*src.Height, src.Width))
	} else {
		w = max(1, divRound(h*src.Width, src.Height))
	}
	inner, err := ThumbnailImage(src, ThumbnailSpec{Width: w, Height: h, Interest: InterestCenter, MaxPixels: opts.MaxPixels})
	if err != nil {
		return nil, err
	}
	if opts.Background == nil {
		return inner, nil
	}
	return EmbedCentered(inner, opts.Width, opts.Height, *opts.Background)
}

// Flatten composites an RGBA raster over an opaque background and returns an RGB raster.
// Rasters without alpha are copied unchanged.
func Flatten(src *RasterImage, bg Color) (*RasterImage, error) {
	if err := src.Validate(); err != nil {
		return nil, &EmbedError{Spec: EmbedSpec{Background: bg}, Err: err}
	}
	if !bg.valid() {
		return nil, &EmbedError{Spec: EmbedSpec{Width: src.Width, Height: src.Height, Background: bg}, Err: ErrInvalidColor}
	}
	if !src.HasAlpha() {
		out := NewRaster(src.Width, src.Height, src.Channels)
		copy(out.Pix, src.Pix)
		return out, nil
	}

	out := NewRaster(src.Width, src.Height, 3)
	back := bg.pixel(3)
	for i, j := 0, 0; i < len(src.Pix); i, j = i+4, j+3 {
		a := uint32(src.Pix[i+3])
		for c := 0; c < 3; c++ {
			out.Pix[j+c] = uint8((uint32(src.Pix[i+c])*a + uint32(back[c])*(0xff-a) + 0x7f) / 0xff)
		}
	}
	return out, nil
}
