package similarity

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func dataURL(t *testing.T, img image.Image) string {
	t.Helper()

	src, err := EncodeDataURL(img)
	require.NoError(t, err)
	return src
}

// horizontalBar draws a thick black bar across the middle of a white canvas.
func horizontalBar(size int) *image.RGBA {
	img := blankCanvas(size)
	for y := size/2 - 2; y <= size/2+2; y++ {
		for x := size / 8; x < size*7/8; x++ {
			img.Set(x, y, color.Black)
		}
	}
	return img
}

// transparentShape is syntheticShape drawn on a transparent canvas, the way
// a browser canvas exports strokes.
func transparentShape(size int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	shape := syntheticShape(size)
	b := shape.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if r, _, _, _ := shape.At(x, y).RGBA(); r == 0 {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}
