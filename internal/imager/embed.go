package imager

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// Color is an RGB background colour, each channel on the 0–255 scale.
type Color [3]float64

// White and Black are the common canvas backgrounds.
var (
	White = Color{255, 255, 255}
	Black = Color{0, 0, 0}
)

// ParseHexColor parses "rrggbb", with or without a leading '#'.
func ParseHexColor(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return Color{float64(raw[0]), float64(raw[1]), float64(raw[2])}, nil
}

func (c Color) valid() bool {
	for _, v := range c {
		if math.IsNaN(v) || v < 0 || v > 255 {
			return false
		}
	}
	return true
}

// pixel renders the colour for a raster with the given channel count.
func (c Color) pixel(channels int) []byte {
	r := uint8(math.Round(c[0]))
	g := uint8(math.Round(c[1]))
	b := uint8(math.Round(c[2]))
	switch channels {
	case 1:
		return []byte{luma(r, g, b)}
	case 4:
		return []byte{r, g, b, 0xff}
	}
	return []byte{r, g, b}
}

// EmbedSpec places a source raster at (X, Y) on a Width x Height canvas.
type EmbedSpec struct {
	X, Y          int
	Width, Height int
	Background    Color
}

// Embed returns a new canvas holding an exact copy of src at (X, Y); every other
// pixel is exactly the background colour.
func Embed(src *RasterImage, spec EmbedSpec) (*RasterImage, error) {
	if err := src.Validate(); err != nil {
		return nil, &EmbedError{Spec: spec, Err: err}
	}
	if spec.X < 0 || spec.Y < 0 || spec.Width <= 0 || spec.Height <= 0 ||
		spec.X > spec.Width-src.Width || spec.Y > spec.Height-src.Height {
		return nil, &EmbedError{Spec: spec, Err: ErrOutOfBounds}
	}
	if !spec.Background.valid() {
		return nil, &EmbedError{Spec: spec, Err: ErrInvalidColor}
	}

	out := NewRaster(spec.Width, spec.Height, src.Channels)
	bg := spec.Background.pixel(src.Channels)
	for i := 0; i < len(out.Pix); i += len(bg) {
		copy(out.Pix[i:], bg)
	}

	rowLen := src.Stride()
	for row := 0; row < src.Height; row++ {
		to := (spec.Y+row)*out.Stride() + spec.X*src.Channels
		copy(out.Pix[to:to+rowLen], src.Pix[row*rowLen:(row+1)*rowLen])
	}
	return out, nil
}

// EmbedCentered places src in the middle of a width x height canvas.
func EmbedCentered(src *RasterImage, width, height int, bg Color) (*RasterImage, error) {
	if src == nil {
		return nil, &EmbedError{Spec: EmbedSpec{Width: width, Height: height, Background: bg}, Err: ErrInvalidRaster}
	}
	return Embed(src, EmbedSpec{
		X:          (width - src.Width) / 2,
		Y:          (height - src.Height) / 2,
		Width:      width,
		Height:     height,
		Background: bg,
	})
}
