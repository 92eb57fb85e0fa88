// Package render turns iteration counts into images and writes them out.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// ErrInvalidSize is returned when counts do not match the dimensions
var ErrInvalidSize = errors.New("render: invalid image dimensions")

// Color maps an iteration count to a colour with the classic polynomial
// palette: t = n/(cap+1), red peaks near the set, blue far from it.
func Color(n, iterationCap uint8) color.RGBA {
	t := float64(n) / (float64(iterationCap) + 1)
	u := 1 - t
	return color.RGBA{
		R: uint8(9 * u * t * t * t * 255),
		G: uint8(15 * u * u * t * t * 255),
		B: uint8(8.5 * u * u * u * t * 255),
		A: 0xFF,
	}
}

// Image builds an RGBA image from row-major counts
func Image(width, height int, counts []uint8, iterationCap uint8) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: width=%d height=%d", ErrInvalidSize, width, height)
	}
	if len(counts) != width*height {
		return nil, fmt.Errorf("%w: expected %d counts for %dx%d, got %d",
			ErrInvalidSize, width*height, width, height, len(counts))
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, n := range counts {
		c := Color(n, iterationCap)
		p := img.Pix[i*4 : i*4+4 : i*4+4]
		p[0], p[1], p[2], p[3] = c.R, c.G, c.B, c.A
	}
	return img, nil
}
