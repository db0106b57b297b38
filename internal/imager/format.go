// Package imager provides the thumbnailing pipeline: format detection, decoding into a raster,
// thumbnail resize with interest-based cropping, background embedding and re-encoding.
//
// Every operation is a pure function over its arguments: inputs are only read, results are
// freshly allocated and owned by the caller, so calls are safe to run concurrently.
package imager

import (
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
)

// FormatTag identifies one of the supported raster formats.
type FormatTag int

const (
	Unknown FormatTag = iota
	JPEG
	PNG
)

// minSniffLen is the shortest buffer DetectFormat is willing to classify.
const minSniffLen = 12

var formatNames = map[FormatTag]string{
	Unknown: "unknown",
	JPEG:    "jpeg",
	PNG:     "png",
}

var contentTypes = map[FormatTag]string{
	JPEG: "image/jpeg",
	PNG:  "image/png",
}

var fileExts = map[FormatTag]string{
	JPEG: ".jpg",
	PNG:  ".png",
}

func (f FormatTag) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// ContentType returns the MIME type of the format, empty for Unknown.
func (f FormatTag) ContentType() string {
	return contentTypes[f]
}

// Ext returns the file extension with the leading dot, empty for Unknown.
func (f FormatTag) Ext() string {
	return fileExts[f]
}

func (f FormatTag) imagingFormat() (imaging.Format, bool) {
	switch f {
	case JPEG:
		return imaging.JPEG, true
	case PNG:
		return imaging.PNG, true
	}
	return -1, false
}

// DetectFormat classifies buf by its magic bytes. It never fails: anything it does not
// recognise, including buffers that are too short, is reported as Unknown.
func DetectFormat(buf []byte) FormatTag {
	if len(buf) < minSniffLen {
		return Unknown
	}
	if buf[0] == 0xFF && buf[1] == 0xD8 && buf[2] == 0xFF {
		return JPEG
	}
	if buf[0] == 0x89 && buf[1] == 0x50 && buf[2] == 0x4E && buf[3] == 0x47 {
		return PNG
	}
	return Unknown
}

// ParseFormat maps a format name, extension or MIME type to a FormatTag.
// An empty string and "source" map to Unknown, meaning "keep the source format".
func ParseFormat(s string) (FormatTag, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "source":
		return Unknown, nil
	case "jpeg", "jpg", ".jpg", ".jpeg", "image/jpeg":
		return JPEG, nil
	case "png", ".png", "image/png":
		return PNG, nil
	}
	return Unknown, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}
