package imager

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncode_PNGRoundTripExact(t *testing.T) {
	opaqueRGBA := patternRaster(16, 8, 4)
	for i := 3; i < len(opaqueRGBA.Pix); i += 4 {
		opaqueRGBA.Pix[i] = 0xff
	}

	tests := []struct {
		name string
		img  *RasterImage
	}{
		{"gray", patternRaster(16, 8, 1)},
		{"rgb", patternRaster(16, 8, 3)},
		{"rgba translucent", patternRaster(16, 8, 4)},
		{"rgba opaque", opaqueRGBA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := Encode(tt.img, PNG)
			require.NoError(t, err)
			require.Equal(t, PNG, enc.Format)
			require.Equal(t, PNG, DetectFormat(enc.Data))

			back, err := Decode(enc.Data, PNG)
			require.NoError(t, err)
			require.Equal(t, tt.img.Channels, back.Channels)
			require.Equal(t, tt.img.Pix, back.Pix)
		})
	}
}

func TestEncode_JPEG(t *testing.T) {
	for _, channels := range []int{1, 3} {
		src := patternRaster(24, 16, channels)

		enc, err := EncodeWithOptions(src, JPEG, EncodeOptions{Quality: 70})
		require.NoError(t, err)
		require.Equal(t, JPEG, DetectFormat(enc.Data))
		require.Empty(t, metadataMarkers(t, enc.Data))

		back, err := Decode(enc.Data, JPEG)
		require.NoError(t, err)
		require.Equal(t, 24, back.Width)
		require.Equal(t, 16, back.Height)
		require.Equal(t, channels, back.Channels)
	}
}

func TestEncode_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		img    *RasterImage
		target FormatTag
		opts   EncodeOptions
		err    error
	}{
		{"unknown target", patternRaster(4, 4, 3), Unknown, EncodeOptions{}, ErrUnsupportedFormat},
		{"jpeg with alpha", patternRaster(4, 4, 4), JPEG, EncodeOptions{}, ErrUnsupportedChannels},
		{"broken raster", &RasterImage{Pix: make([]byte, 5), Width: 2, Height: 2, Channels: 3, Depth: 1}, PNG, EncodeOptions{}, ErrInvalidRaster},
		{"two channels", &RasterImage{Pix: make([]byte, 8), Width: 2, Height: 2, Channels: 2, Depth: 1}, PNG, EncodeOptions{}, ErrInvalidRaster},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := EncodeWithOptions(tt.img, tt.target, tt.opts)
			require.Nil(t, out)

			var ee *EncodeError
			require.ErrorAs(t, err, &ee)
			require.ErrorIs(t, err, tt.err)
		})
	}

	_, err := EncodeWithOptions(patternRaster(4, 4, 3), JPEG, EncodeOptions{Quality: 101})
	var ee *EncodeError
	require.ErrorAs(t, err, &ee)
}

func TestStripJPEGMetadata(t *testing.T) {
	enc, err := Encode(patternRaster(8, 8, 3), JPEG)
	require.NoError(t, err)
	clean := enc.Data

	app0 := []byte{0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0, 1, 1, 0, 0, 1, 0, 1, 0, 0}
	app1 := []byte{0xFF, 0xE1, 0x00, 0x08, 'E', 'x', 'i', 'f', 0, 0}
	com := []byte{0xFF, 0xFE, 0x00, 0x05, 'h', 'i', '!'}

	var tagged []byte
	tagged = append(tagged, clean[:2]...)
	tagged = append(tagged, app0...)
	tagged = append(tagged, app1...)
	tagged = append(tagged, com...)
	tagged = append(tagged, clean[2:]...)
	require.Equal(t, []byte{markerAPP1, markerCOM}, metadataMarkers(t, tagged))

	stripped, err := stripJPEGMetadata(tagged)
	require.NoError(t, err)
	require.Empty(t, metadataMarkers(t, stripped))

	var want []byte
	want = append(want, clean[:2]...)
	want = append(want, app0...)
	want = append(want, clean[2:]...)
	require.Equal(t, want, stripped)

	_, err = Decode(stripped, JPEG)
	require.NoError(t, err)
}

func TestStripJPEGMetadata_Malformed(t *testing.T) {
	for _, buf := range [][]byte{
		nil,
		{0xFF, 0xD8},
		{0x89, 'P', 'N', 'G'},
		{0xFF, 0xD8, 0xFF, 0xE1, 0x40, 0x00, 0x01},
		{0xFF, 0xD8, 0x00, 0x00},
	} {
		_, err := stripJPEGMetadata(buf)
		require.ErrorIs(t, err, errMalformedJPEG)
	}
}

// metadataMarkers lists the APP1-APP15 and COM markers found before the first SOS.
func metadataMarkers(t *testing.T, data []byte) []byte {
	t.Helper()
	require.True(t, bytes.HasPrefix(data, []byte{0xFF, markerSOI}))

	var found []byte
	pos := 2
	for pos+4 <= len(data) {
		require.Equal(t, byte(0xFF), data[pos])
		marker := data[pos+1]
		if marker == markerSOS || marker == markerEOI {
			break
		}
		if (marker >= markerAPP1 && marker <= markerAPPF) || marker == markerCOM {
			found = append(found, marker)
		}
		pos += 2 + int(data[pos+2])<<8 + int(data[pos+3])
	}
	return found
}
