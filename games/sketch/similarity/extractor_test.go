package similarity

import (
	"context"
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/sketchduel/games/sketch"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	got := Normalize([]float64{3, 4})
	assert.InDelta(t, 0.6, got[0], 1e-9)
	assert.InDelta(t, 0.8, got[1], 1e-9)

	assert.Equal(t, []float64{0, 0}, Normalize([]float64{0, 0}))
}

func TestCosine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{name: "identical", a: []float64{1, 2, 3}, b: []float64{1, 2, 3}, want: 1},
		{name: "scaled", a: []float64{1, 2, 3}, b: []float64{2, 4, 6}, want: 1},
		{name: "orthogonal", a: []float64{1, 0}, b: []float64{0, 1}, want: 0},
		{name: "opposite", a: []float64{1, 0}, b: []float64{-1, 0}, want: -1},
		{name: "zero vector", a: []float64{0, 0}, b: []float64{1, 1}, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.InDelta(t, tc.want, Cosine(tc.a, tc.b), 1e-9)
		})
	}
}

func TestToScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want int
	}{
		{in: 1, want: 100},
		{in: 0.999999, want: 100},
		{in: 0.874, want: 87},
		{in: 0.875, want: 88},
		{in: 0, want: 0},
		{in: -0.4, want: 0},
		{in: 1.3, want: 100},
		{in: math.NaN(), want: 0},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, ToScore(tc.in), "ToScore(%v)", tc.in)
	}
}

func TestEdgeExtractorRejectsWrongSize(t *testing.T) {
	t.Parallel()

	e := NewEdgeExtractor()

	_, err := e.Embed(context.Background(), image.NewRGBA(image.Rect(0, 0, 32, 32)))
	assert.ErrorIs(t, err, sketch.ErrExtractionFailure)

	bad := EdgeExtractor{Size: 64, Grid: 10}
	_, err = bad.Embed(context.Background(), blankCanvas(64))
	assert.ErrorIs(t, err, sketch.ErrExtractionFailure)
}

func TestEdgeExtractorHonoursContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEdgeExtractor().Embed(ctx, blankCanvas(64))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEdgeExtractorEmbeddings(t *testing.T) {
	t.Parallel()

	e := NewEdgeExtractor()
	ctx := context.Background()

	blank, err := e.Embed(ctx, prepare(blankCanvas(200), e.InputSize()))
	require.NoError(t, err)
	require.Len(t, blank, defaultEdgeGrid*defaultEdgeGrid)
	for _, v := range blank {
		require.Zero(t, v)
	}

	shape, err := e.Embed(ctx, prepare(syntheticShape(200), e.InputSize()))
	require.NoError(t, err)

	var norm float64
	for _, v := range shape {
		require.GreaterOrEqual(t, v, 0.0)
		norm += v * v
	}
	assert.InDelta(t, 1, norm, 1e-9)
}

func TestPrepareFlattensOntoWhite(t *testing.T) {
	t.Parallel()

	img := prepare(image.NewNRGBA(image.Rect(0, 0, 10, 20)), 16)

	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())
	r, g, b, a := img.At(8, 8).RGBA()
	assert.Equal(t, []uint32{0xffff, 0xffff, 0xffff, 0xffff}, []uint32{r, g, b, a})
}
