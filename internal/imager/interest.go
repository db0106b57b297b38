package imager

import "math"

// scoreTolerance treats two window scores as equal.
const scoreTolerance = 1e-9

// chooseOffset returns the start of a window of the given length along x (horizontal)
// or y. Every possible offset is scored; ties go to the offset nearest to the centre.
func chooseOffset(img *RasterImage, horizontal bool, window int, mode Interest) int {
	length := img.Height
	if horizontal {
		length = img.Width
	}
	overflow := length - window
	if overflow <= 0 {
		return 0
	}

	switch mode {
	case InterestAttention:
		lines := attentionLines(img, horizontal)
		prefix := make([]int64, len(lines)+1)
		for i, v := range lines {
			prefix[i+1] = prefix[i] + v
		}
		return bestOffset(overflow, func(o int) float64 {
			return float64(prefix[o+window] - prefix[o])
		})
	case InterestEntropy:
		lines := histogramLines(img, horizontal)
		var hist [256]int64
		for i := 0; i < window; i++ {
			addHist(&hist, &lines[i], 1)
		}
		scores := make([]float64, overflow+1)
		scores[0] = entropy(&hist)
		for o := 1; o <= overflow; o++ {
			addHist(&hist, &lines[o-1], -1)
			addHist(&hist, &lines[o+window-1], 1)
			scores[o] = entropy(&hist)
		}
		return bestOffset(overflow, func(o int) float64 { return scores[o] })
	}
	return overflow / 2
}

func bestOffset(overflow int, score func(o int) float64) int {
	center := overflow / 2
	best, bestScore := center, score(center)
	for o := 0; o <= overflow; o++ {
		s := score(o)
		switch {
		case s > bestScore+scoreTolerance:
			best, bestScore = o, s
		case math.Abs(s-bestScore) <= scoreTolerance && distance(o, center) < distance(best, center):
			best = o
		}
	}
	return best
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

// lumaPlane returns the luminance of every pixel, alpha-weighted for RGBA rasters.
func lumaPlane(img *RasterImage) []uint8 {
	out := make([]uint8, img.Width*img.Height)
	c := img.Channels
	for i := range out {
		p := img.Pix[i*c : i*c+c]
		switch c {
		case 1:
			out[i] = p[0]
		case 3:
			out[i] = luma(p[0], p[1], p[2])
		case 4:
			out[i] = uint8(uint32(luma(p[0], p[1], p[2])) * uint32(p[3]) / 0xff)
		}
	}
	return out
}

// attentionLines sums per-pixel saliency over every column (horizontal) or row.
// Saliency is the luminance gradient magnitude plus half the chroma spread.
func attentionLines(img *RasterImage, horizontal bool) []int64 {
	w, h, c := img.Width, img.Height, img.Channels
	lum := lumaPlane(img)
	at := func(x, y int) int64 {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		return int64(lum[y*w+x])
	}

	n := h
	if horizontal {
		n = w
	}
	lines := make([]int64, n)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			e := abs64(at(x+1, y)-at(x-1, y)) + abs64(at(x, y+1)-at(x, y-1))
			if c >= 3 {
				p := img.Pix[(y*w+x)*c:]
				hi := max(p[0], p[1], p[2])
				lo := min(p[0], p[1], p[2])
				sat := int64(hi-lo) / 2
				if c == 4 {
					sat = sat * int64(p[3]) / 0xff
				}
				e += sat
			}
			if horizontal {
				lines[x] += e
			} else {
				lines[y] += e
			}
		}
	}
	return lines
}

// histogramLines builds a luminance histogram for every column (horizontal) or row.
func histogramLines(img *RasterImage, horizontal bool) [][256]int64 {
	w, h := img.Width, img.Height
	lum := lumaPlane(img)
	n := h
	if horizontal {
		n = w
	}
	lines := make([][256]int64, n)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := lum[y*w+x]
			if horizontal {
				lines[x][v]++
			} else {
				lines[y][v]++
			}
		}
	}
	return lines
}

func addHist(dst, src *[256]int64, sign int64) {
	for i := range dst {
		dst[i] += sign * src[i]
	}
}

// entropy is the Shannon entropy, in bits, of a histogram.
func entropy(hist *[256]int64) float64 {
	var total int64
	for _, v := range hist {
		total += v
	}
	if total == 0 {
		return 0
	}
	var e float64
	for _, v := range hist {
		if v == 0 {
			continue
		}
		p := float64(v) / float64(total)
		e -= p * math.Log2(p)
	}
	return e
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
