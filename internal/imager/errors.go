package imager

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyBuffer         = errors.New("empty buffer")
	ErrUnknownFormat       = errors.New("unknown image format")
	ErrFormatMismatch      = errors.New("buffer format does not match expected format")
	ErrPixelLimitExceeded  = errors.New("image exceeds max pixels limit")
	ErrInvalidDimensions   = errors.New("invalid target dimensions")
	ErrInvalidInterest     = errors.New("invalid interest mode")
	ErrOutOfBounds         = errors.New("placement does not fit the canvas")
	ErrInvalidColor        = errors.New("background channel out of range")
	ErrUnsupportedFormat   = errors.New("unsupported target format")
	ErrUnsupportedChannels = errors.New("channel count not supported by target format")
	ErrInvalidRaster       = errors.New("invalid raster image")
)

// DecodeError reports malformed, truncated or format-mismatched input.
type DecodeError struct {
	Format FormatTag
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ResizeError reports invalid thumbnail parameters.
type ResizeError struct {
	Width, Height int
	Err           error
}

func (e *ResizeError) Error() string {
	return fmt.Sprintf("thumbnail %dx%d: %v", e.Width, e.Height, e.Err)
}

func (e *ResizeError) Unwrap() error { return e.Err }

// EmbedError reports a placement that does not fit the destination canvas.
type EmbedError struct {
	Spec EmbedSpec
	Err  error
}

func (e *EmbedError) Error() string {
	return fmt.Sprintf("embed at (%d,%d) into %dx%d: %v", e.Spec.X, e.Spec.Y, e.Spec.Width, e.Spec.Height, e.Err)
}

func (e *EmbedError) Unwrap() error { return e.Err }

// EncodeError reports an unsupported target format or a codec failure.
type EncodeError struct {
	Format FormatTag
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Format, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// IsPipelineError reports whether err belongs to the pipeline's error taxonomy.
// Such errors are deterministic for a given input and must not be retried.
func IsPipelineError(err error) bool {
	var (
		de *DecodeError
		re *ResizeError
		ee *EmbedError
		ce *EncodeError
	)
	return errors.As(err, &de) || errors.As(err, &re) || errors.As(err, &ee) || errors.As(err, &ce)
}
