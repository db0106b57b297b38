package imager

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerAPP1 = 0xE1
	markerAPPF = 0xEF
	markerCOM  = 0xFE
)

var errMalformedJPEG = errors.New("malformed jpeg segment structure")

// stripJPEGMetadata drops APP1–APP15 (EXIF, XMP, ICC, Adobe…) and COM segments.
// JFIF APP0 and everything from the first SOS onwards is copied verbatim.
// The stdlib encoder writes no APPn or COM segments today, so on Encode output this only
// guards the no-metadata guarantee against a codec that starts emitting them.
func stripJPEGMetadata(data []byte) ([]byte, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, errMalformedJPEG
	}
	out := make([]byte, 0, len(data))
	out = append(out, data[:2]...)

	pos := 2
	for pos < len(data) {
		if data[pos] != 0xFF {
			return nil, errMalformedJPEG
		}
		// fill bytes
		for pos+1 < len(data) && data[pos+1] == 0xFF {
			pos++
		}
		if pos+1 >= len(data) {
			return nil, errMalformedJPEG
		}
		marker := data[pos+1]
		switch {
		case marker == markerEOI:
			return append(out, 0xFF, markerEOI), nil
		case marker >= 0xD0 && marker <= 0xD7, marker == 0x01:
			out = append(out, 0xFF, marker)
			pos += 2
			continue
		}

		if pos+4 > len(data) {
			return nil, errMalformedJPEG
		}
		end := pos + 2 + int(binary.BigEndian.Uint16(data[pos+2:]))
		if end > len(data) {
			return nil, errMalformedJPEG
		}
		if marker == markerSOS {
			return append(out, data[pos:]...), nil
		}
		if !(marker >= markerAPP1 && marker <= markerAPPF) && marker != markerCOM {
			out = append(out, data[pos:end]...)
		}
		pos = end
	}
	return nil, errMalformedJPEG
}

// pngIHDREnd is the offset right after the 8-byte signature and the IHDR chunk.
const pngIHDREnd = 8 + 4 + 4 + 13 + 4

var errNoFreeColorKey = errors.New("no unused colour left for a transparency key")

// keepAlphaChannel inserts a tRNS chunk into a truecolour PNG. The PNG writer stores a fully
// opaque RGBA raster as plain truecolour; a transparency key on a colour the image never uses
// keeps every pixel opaque while making decoders report an alpha channel again.
func keepAlphaChannel(data []byte, img *RasterImage) ([]byte, error) {
	if len(data) < pngIHDREnd || string(data[12:16]) != "IHDR" {
		return nil, errors.New("unexpected png layout")
	}
	key, ok := unusedColor(img)
	if !ok {
		return nil, errNoFreeColorKey
	}

	chunk := make([]byte, 4+4+6+4)
	binary.BigEndian.PutUint32(chunk[0:], 6)
	copy(chunk[4:], "tRNS")
	binary.BigEndian.PutUint16(chunk[8:], uint16(key>>16&0xff))
	binary.BigEndian.PutUint16(chunk[10:], uint16(key>>8&0xff))
	binary.BigEndian.PutUint16(chunk[12:], uint16(key&0xff))
	binary.BigEndian.PutUint32(chunk[14:], crc32.ChecksumIEEE(chunk[4:14]))

	out := make([]byte, 0, len(data)+len(chunk))
	out = append(out, data[:pngIHDREnd]...)
	out = append(out, chunk...)
	return append(out, data[pngIHDREnd:]...), nil
}

// unusedColor returns the lowest 24-bit RGB value that no pixel of an RGBA raster uses.
func unusedColor(img *RasterImage) (uint32, bool) {
	seen := make([]uint64, 1<<24/64)
	for i := 0; i+3 < len(img.Pix); i += 4 {
		c := uint32(img.Pix[i])<<16 | uint32(img.Pix[i+1])<<8 | uint32(img.Pix[i+2])
		seen[c/64] |= 1 << (c % 64)
	}
	for word, bits := range seen {
		if bits == ^uint64(0) {
			continue
		}
		for bit := uint32(0); bit < 64; bit++ {
			if bits&(1<<bit) == 0 {
				return uint32(word)*64 + bit, true
			}
		}
	}
	return 0, false
}
