package imager

import (
	"fmt"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

// Interest selects which window survives when the source and target aspect ratios differ.
type Interest int

const (
	// InterestCenter keeps the central window.
	InterestCenter Interest = iota
	// InterestAttention keeps the window with the most edge and saturation energy.
	InterestAttention
	// InterestEntropy keeps the window whose luminance histogram has the highest entropy.
	InterestEntropy
)

var interestNames = map[Interest]string{
	InterestCenter:    "centre",
	InterestAttention: "attention",
	InterestEntropy:   "entropy",
}

func (i Interest) String() string {
	if name, ok := interestNames[i]; ok {
		return name
	}
	return fmt.Sprintf("interest(%d)", int(i))
}

func (i Interest) valid() bool {
	_, ok := interestNames[i]
	return ok
}

// ParseInterest accepts the long names and the one-letter gravity shortcuts.
func ParseInterest(s string) (Interest, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "c", "center", "centre":
		return InterestCenter, nil
	case "s", "smart", "attention":
		return InterestAttention, nil
	case "e", "entropy":
		return InterestEntropy, nil
	}
	return InterestCenter, fmt.Errorf("%w: %q", ErrInvalidInterest, s)
}

// ThumbnailSpec describes the target box. Height 0 keeps the source aspect ratio.
type ThumbnailSpec struct {
	Width    int
	Height   int
	Interest Interest
	// MaxPixels bounds the decoded source and every raster the resize allocates,
	// zero means unbounded.
	MaxPixels int
}

// maxSide bounds either side of a target so that pixel arithmetic stays within int64.
const maxSide = math.MaxInt32

func (s ThumbnailSpec) validate() error {
	if s.Width <= 0 || s.Height < 0 || s.Width > maxSide || s.Height > maxSide {
		return &ResizeError{Width: s.Width, Height: s.Height, Err: ErrInvalidDimensions}
	}
	if !s.Interest.valid() {
		return &ResizeError{Width: s.Width, Height: s.Height, Err: ErrInvalidInterest}
	}
	if s.Height > 0 {
		return s.checkBox(s.Width, s.Height)
	}
	return nil
}

// checkBox rejects a raster of w x h pixels that is over the budget or has an out of range side.
func (s ThumbnailSpec) checkBox(w, h int) error {
	if w > maxSide || h > maxSide {
		return &ResizeError{Width: s.Width, Height: s.Height, Err: fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, w, h)}
	}
	if overLimit(w, h, s.MaxPixels) {
		return &ResizeError{
			Width:  s.Width,
			Height: s.Height,
			Err:    fmt.Errorf("%w: %dx%d > %d", ErrPixelLimitExceeded, w, h, s.MaxPixels),
		}
	}
	return nil
}

// overLimit reports w*h > limit without computing the product. h must be positive.
func overLimit(w, h, limit int) bool {
	return limit > 0 && w > limit/h
}

// resampleFilter is used for every scale step.
var resampleFilter = imaging.Lanczos

// Thumbnail decodes buf (format detected from its magic bytes, EXIF orientation applied)
// and returns a raster of exactly spec.Width x spec.Height pixels.
func Thumbnail(buf []byte, spec ThumbnailSpec) (*RasterImage, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	src, err := DecodeWithOptions(buf, DetectFormat(buf), DecodeOptions{
		MaxPixels:  spec.MaxPixels,
		AutoOrient: true,
	})
	if err != nil {
		return nil, err
	}
	return ThumbnailImage(src, spec)
}

// ThumbnailImage is Thumbnail over an already decoded raster. src is not modified.
func ThumbnailImage(src *RasterImage, spec ThumbnailSpec) (*RasterImage, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	if err := src.Validate(); err != nil {
		return nil, &ResizeError{Width: spec.Width, Height: spec.Height, Err: err}
	}

	tw, th := spec.Width, spec.Height
	if th == 0 {
		th = max(1, divRound(src.Height*tw, src.Width))
		if err := spec.checkBox(tw, th); err != nil {
			return nil, err
		}
		return resample(src, tw, th), nil
	}

	// cover the box: the side that is relatively shorter meets the target exactly
	sw, sh := tw, th
	if src.Width*th > tw*src.Height {
		sw = divRound(src.Width*th, src.Height)
	} else {
		sh = divRound(src.Height*tw, src.Width)
	}
	if err := spec.checkBox(sw, sh); err != nil {
		return nil, err
	}
	scaled := resample(src, sw, sh)
	if sw == tw && sh == th {
		return scaled, nil
	}

	if sw > tw {
		x := chooseOffset(scaled, true, tw, spec.Interest)
		return crop(scaled, x, 0, tw, th), nil
	}
	y := chooseOffset(scaled, false, th, spec.Interest)
	return crop(scaled, 0, y, tw, th), nil
}

// resample scales src to w x h keeping its channel layout. Scaling operates on the
// gamma-encoded sRGB values, which favours perceptual over colorimetric reproduction.
func resample(src *RasterImage, w, h int) *RasterImage {
	if w == src.Width && h == src.Height {
		out := NewRaster(w, h, src.Channels)
		copy(out.Pix, src.Pix)
		return out
	}
	return rasterFromImage(imaging.Resize(src.toImage(), w, h, resampleFilter), src.Channels)
}

func crop(src *RasterImage, x, y, w, h int) *RasterImage {
	out := NewRaster(w, h, src.Channels)
	rowLen := w * src.Channels
	for row := 0; row < h; row++ {
		from := (y+row)*src.Stride() + x*src.Channels
		copy(out.Pix[row*rowLen:(row+1)*rowLen], src.Pix[from:from+rowLen])
	}
	return out
}

// divRound returns a/b rounded half up, a and b positive.
func divRound(a, b int) int {
	q, r := a/b, a%b
	if r >= b-r {
		q++
	}
	return q
}
