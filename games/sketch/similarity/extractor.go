/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package similarity

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/Seednode/sketchduel/games/sketch"
)

// FeatureExtractor is the embedding model. Embed receives an image already
// resized to InputSize x InputSize and flattened onto white.
type FeatureExtractor interface {
	InputSize() int
	Embed(ctx context.Context, img image.Image) ([]float64, error)
}

const (
	defaultEdgeInput = 64
	defaultEdgeGrid  = 16

	// Gradients below this are resampling noise, not strokes.
	edgeFloor = 0.05
)

// EdgeExtractor embeds an image as its Sobel edge strength, average-pooled
// over a Grid x Grid raster. Photos and line drawings of the same subject
// produce comparable vectors, and a blank canvas embeds to all zeros.
type EdgeExtractor struct {
	Size int
	Grid int
}

// NewEdgeExtractor returns a 64px input, 16x16 grid extractor.
func NewEdgeExtractor() EdgeExtractor {
	return EdgeExtractor{Size: defaultEdgeInput, Grid: defaultEdgeGrid}
}

func (e EdgeExtractor) InputSize() int {
	return e.Size
}

func (e EdgeExtractor) Embed(ctx context.Context, img image.Image) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	if b.Dx() != e.Size || b.Dy() != e.Size {
		return nil, fmt.Errorf("%w: expected %dx%d input, got %dx%d",
			sketch.ErrExtractionFailure, e.Size, e.Size, b.Dx(), b.Dy())
	}
	if e.Grid <= 0 || e.Size%e.Grid != 0 {
		return nil, fmt.Errorf("%w: grid %d does not divide input %d",
			sketch.ErrExtractionFailure, e.Grid, e.Size)
	}

	lum := make([]float64, e.Size*e.Size)
	for y := 0; y < e.Size; y++ {
		for x := 0; x < e.Size; x++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			lum[y*e.Size+x] = float64(g.Y) / 255
		}
	}

	at := func(x, y int) float64 {
		x = min(max(x, 0), e.Size-1)
		y = min(max(y, 0), e.Size-1)
		return lum[y*e.Size+x]
	}

	cell := e.Size / e.Grid
	features := make([]float64, e.Grid*e.Grid)
	for y := 0; y < e.Size; y++ {
		for x := 0; x < e.Size; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)

			if m := math.Hypot(gx, gy); m >= edgeFloor {
				features[(y/cell)*e.Grid+x/cell] += m
			}
		}
	}

	area := float64(cell * cell)
	for i := range features {
		features[i] /= area
	}

	return Normalize(features), nil
}

// prepare flattens img onto white and scales it to a size x size square.
func prepare(img image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)

	return dst
}

// Normalize scales v to unit length. A zero vector is returned unchanged.
func Normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}

	out := make([]float64, len(v))
	if sum == 0 {
		return out
	}

	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = x / norm
	}

	return out
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector.
func Cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// ToScore maps a similarity to an integer in [0, 100].
func ToScore(similarity float64) int {
	if math.IsNaN(similarity) {
		return 0
	}
	return min(max(int(math.Round(similarity*100)), 0), 100)
}
