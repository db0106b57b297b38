package imager

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbed_Identity(t *testing.T) {
	src := patternRaster(17, 9, 4)

	out, err := Embed(src, EmbedSpec{Width: 17, Height: 9, Background: Black})
	require.NoError(t, err)
	require.Equal(t, src.Pix, out.Pix)

	out.Pix[0]++
	require.NotEqual(t, src.Pix[0], out.Pix[0], "embed must not alias the source")
}

func TestEmbed_CanvasAroundSource(t *testing.T) {
	src := patternRaster(50, 50, 3)

	out, err := Embed(src, EmbedSpec{X: 75, Y: 75, Width: 200, Height: 200, Background: White})
	require.NoError(t, err)
	require.Equal(t, 200, out.Width)
	require.Equal(t, 200, out.Height)
	require.Equal(t, 3, out.Channels)

	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			got := pixelAt(out, x, y)
			if x >= 75 && x < 125 && y >= 75 && y < 125 {
				require.Equal(t, pixelAt(src, x-75, y-75), got)
				continue
			}
			require.Equal(t, []byte{255, 255, 255}, got)
		}
	}
}

func TestEmbed_BackgroundPerLayout(t *testing.T) {
	bg := Color{200, 100, 50}

	gray, err := Embed(solidRaster(1, 1, 1, 0), EmbedSpec{X: 1, Width: 2, Height: 1, Background: bg})
	require.NoError(t, err)
	require.Equal(t, []byte{0, luma(200, 100, 50)}, gray.Pix)

	rgba, err := Embed(solidRaster(1, 1, 4, 1, 2, 3, 4), EmbedSpec{Width: 2, Height: 1, Background: bg})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 200, 100, 50, 255}, rgba.Pix)
}

func TestEmbed_Rejects(t *testing.T) {
	src := solidRaster(10, 10, 3, 1, 2, 3)

	tests := []struct {
		name   string
		src    *RasterImage
		spec   EmbedSpec
		target error
	}{
		{"overflows right", src, EmbedSpec{X: 1, Width: 10, Height: 10}, ErrOutOfBounds},
		{"overflows bottom", src, EmbedSpec{Y: 5, Width: 20, Height: 12}, ErrOutOfBounds},
		{"negative offset", src, EmbedSpec{X: -1, Width: 20, Height: 20}, ErrOutOfBounds},
		{"offset wraps around", src, EmbedSpec{X: math.MaxInt - 5, Width: 20, Height: 20}, ErrOutOfBounds},
		{"vertical offset wraps around", src, EmbedSpec{Y: math.MaxInt - 5, Width: 20, Height: 20}, ErrOutOfBounds},
		{"canvas smaller", src, EmbedSpec{Width: 5, Height: 5}, ErrOutOfBounds},
		{"colour above range", src, EmbedSpec{Width: 10, Height: 10, Background: Color{256, 0, 0}}, ErrInvalidColor},
		{"colour nan", src, EmbedSpec{Width: 10, Height: 10, Background: Color{math.NaN(), 0, 0}}, ErrInvalidColor},
		{"broken raster", &RasterImage{Width: 2, Height: 2, Channels: 3, Depth: 1}, EmbedSpec{Width: 4, Height: 4}, ErrInvalidRaster},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Embed(tt.src, tt.spec)
			require.Nil(t, out)

			var ee *EmbedError
			require.ErrorAs(t, err, &ee)
			require.ErrorIs(t, err, tt.target)
		})
	}
}

func TestEmbedCentered(t *testing.T) {
	out, err := EmbedCentered(solidRaster(2, 2, 1, 9), 5, 4, Black)
	require.NoError(t, err)
	require.Equal(t, []byte{
		0, 0, 0, 0, 0,
		0, 9, 9, 0, 0,
		0, 9, 9, 0, 0,
		0, 0, 0, 0, 0,
	}, out.Pix)
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#FF8000")
	require.NoError(t, err)
	require.Equal(t, Color{255, 128, 0}, c)

	for _, bad := range []string{"", "fff", "#12345g", "1234567"} {
		_, err := ParseHexColor(bad)
		require.ErrorIs(t, err, ErrInvalidColor, bad)
	}
}

func TestFlatten(t *testing.T) {
	src := &RasterImage{Pix: []byte{255, 0, 0, 255, 255, 0, 0, 0, 0, 0, 0, 128}, Width: 3, Height: 1, Channels: 4, Depth: 1}

	out, err := Flatten(src, White)
	require.NoError(t, err)
	require.Equal(t, 3, out.Channels)
	require.Equal(t, []byte{255, 0, 0, 255, 255, 255, 127, 127, 127}, out.Pix)

	rgb := solidRaster(2, 2, 3, 1, 2, 3)
	copied, err := Flatten(rgb, White)
	require.NoError(t, err)
	require.Equal(t, rgb.Pix, copied.Pix)
}
