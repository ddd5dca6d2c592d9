/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package similarity

import (
	"context"
	"image"
	"image/color"
	"image/draw"
)

// ProbeResult holds the diagnostic scores for a synthetic drawing that
// matches the reference and for a blank canvas.
type ProbeResult struct {
	Same  int `json:"same"`
	Blank int `json:"blank"`
}

// Probe scores two synthetic drawings against a synthetic reference.
func Probe(ctx context.Context, s *Scorer) (ProbeResult, error) {
	reference, err := EncodeDataURL(syntheticShape(128))
	if err != nil {
		return ProbeResult{}, err
	}

	blank, err := EncodeDataURL(blankCanvas(128))
	if err != nil {
		return ProbeResult{}, err
	}

	same, err := s.Score(ctx, reference, reference)
	if err != nil {
		return ProbeResult{}, err
	}

	empty, err := s.Score(ctx, reference, blank)
	if err != nil {
		return ProbeResult{}, err
	}

	return ProbeResult{Same: same, Blank: empty}, nil
}

func blankCanvas(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img
}

// syntheticShape draws a square outline with a diagonal through it.
func syntheticShape(size int) *image.RGBA {
	img := blankCanvas(size)
	ink := color.RGBA{A: 255}

	lo, hi := size/4, size*3/4
	for i := lo; i <= hi; i++ {
		for w := 0; w < 3; w++ {
			img.Set(i, lo+w, ink)
			img.Set(i, hi-w, ink)
			img.Set(lo+w, i, ink)
			img.Set(hi-w, i, ink)
			img.Set(i, i+w, ink)
		}
	}

	return img
}
