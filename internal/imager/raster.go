package imager

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// RasterImage is a decoded image: a contiguous, row-major, interleaved pixel buffer.
// Channels is 1 (gray), 3 (RGB) or 4 (RGBA, non-premultiplied). Depth is bytes per channel.
type RasterImage struct {
	Pix      []byte
	Width    int
	Height   int
	Channels int
	Depth    int
}

// NewRaster allocates a zeroed 8-bit raster.
func NewRaster(width, height, channels int) *RasterImage {
	return &RasterImage{
		Pix:      make([]byte, width*height*channels),
		Width:    width,
		Height:   height,
		Channels: channels,
		Depth:    1,
	}
}

// Validate checks the buffer length invariant and the supported channel layouts.
func (r *RasterImage) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil raster", ErrInvalidRaster)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidRaster, r.Width, r.Height)
	}
	switch r.Channels {
	case 1, 3, 4:
	default:
		return fmt.Errorf("%w: %d channels", ErrInvalidRaster, r.Channels)
	}
	if r.Depth != 1 {
		return fmt.Errorf("%w: depth %d", ErrInvalidRaster, r.Depth)
	}
	if want := r.Width * r.Height * r.Channels * r.Depth; len(r.Pix) != want {
		return fmt.Errorf("%w: buffer holds %d bytes, want %d", ErrInvalidRaster, len(r.Pix), want)
	}
	return nil
}

// Stride is the number of bytes per row.
func (r *RasterImage) Stride() int {
	return r.Width * r.Channels * r.Depth
}

// HasAlpha reports whether the raster carries an alpha channel.
func (r *RasterImage) HasAlpha() bool {
	return r.Channels == 4
}

// channelsOf derives the channel count from the concrete type the codec produced,
// which mirrors the colour type written in the encoded header.
func channelsOf(img image.Image) int {
	switch m := img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	case *image.YCbCr, *image.CMYK, *image.RGBA, *image.RGBA64:
		return 3
	case *image.NRGBA, *image.NRGBA64:
		return 4
	case *image.Paletted:
		for _, c := range m.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return 4
			}
		}
		return 3
	}
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return 3
	}
	return 4
}

// rasterFromImage converts any image into an 8-bit raster with the given channel count.
func rasterFromImage(img image.Image, channels int) *RasterImage {
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) || nrgba.Stride != 4*nrgba.Rect.Dx() {
		nrgba = imaging.Clone(img)
	}
	w, h := nrgba.Rect.Dx(), nrgba.Rect.Dy()
	out := NewRaster(w, h, channels)

	switch channels {
	case 4:
		copy(out.Pix, nrgba.Pix)
	case 3:
		for i, j := 0, 0; i < len(nrgba.Pix); i, j = i+4, j+3 {
			out.Pix[j] = nrgba.Pix[i]
			out.Pix[j+1] = nrgba.Pix[i+1]
			out.Pix[j+2] = nrgba.Pix[i+2]
		}
	case 1:
		for i, j := 0, 0; i < len(nrgba.Pix); i, j = i+4, j+1 {
			out.Pix[j] = luma(nrgba.Pix[i], nrgba.Pix[i+1], nrgba.Pix[i+2])
		}
	}
	return out
}

// toImage returns a read-only image.Image view of the raster. Gray and RGBA rasters share
// the pixel buffer; RGB rasters are expanded into a fresh opaque NRGBA.
func (r *RasterImage) toImage() image.Image {
	rect := image.Rect(0, 0, r.Width, r.Height)
	switch r.Channels {
	case 1:
		return &image.Gray{Pix: r.Pix, Stride: r.Width, Rect: rect}
	case 4:
		return &image.NRGBA{Pix: r.Pix, Stride: 4 * r.Width, Rect: rect}
	}
	out := image.NewNRGBA(rect)
	for i, j := 0, 0; j < len(r.Pix); i, j = i+4, j+3 {
		out.Pix[i] = r.Pix[j]
		out.Pix[i+1] = r.Pix[j+1]
		out.Pix[i+2] = r.Pix[j+2]
		out.Pix[i+3] = 0xff
	}
	return out
}

// luma is the Rec.601 luminance with the same fixed-point weights as color.GrayModel.
func luma(r, g, b uint8) uint8 {
	y := (19595*uint32(r)*0x101 + 38470*uint32(g)*0x101 + 7471*uint32(b)*0x101 + 1<<15) >> 24
	return uint8(y)
}
