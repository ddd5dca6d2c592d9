/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package similarity

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Seednode/sketchduel/games/sketch"
)

const maxCachedReferences = 64

var tracer = otel.Tracer("github.com/Seednode/sketchduel/games/sketch/similarity")

// Scorer compares drawings to reference images by cosine similarity of
// their feature vectors.
type Scorer struct {
	loader    *Loader
	extractor FeatureExtractor

	mu   sync.Mutex
	refs map[string][]float64
}

// NewScorer returns a Scorer. Reference features are cached, since they
// come from a small fixed pool.
func NewScorer(loader *Loader, extractor FeatureExtractor) *Scorer {
	return &Scorer{
		loader:    loader,
		extractor: extractor,
		refs:      make(map[string][]float64),
	}
}

// Score returns clamp(round(cos(ref, drawing) * 100), 0, 100).
func (s *Scorer) Score(ctx context.Context, reference, drawing string) (int, error) {
	ctx, span := tracer.Start(ctx, "similarity.Score")
	defer span.End()

	ref, err := s.referenceFeatures(ctx, reference)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reference")
		return 0, err
	}

	got, err := s.DrawingFeatures(ctx, drawing)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "drawing")
		return 0, err
	}

	if len(ref) != len(got) {
		err := fmt.Errorf("%w: feature length %d != %d", sketch.ErrExtractionFailure, len(ref), len(got))
		span.RecordError(err)
		return 0, err
	}

	score := ToScore(Cosine(ref, got))
	span.SetAttributes(attribute.Int("score", score))

	return score, nil
}

// DrawingFeatures decodes an inline drawing and returns its normalized
// feature vector.
func (s *Scorer) DrawingFeatures(ctx context.Context, drawing string) ([]float64, error) {
	img, err := s.loader.LoadDrawing(ctx, drawing)
	if err != nil {
		return nil, err
	}
	return s.embed(ctx, img)
}

func (s *Scorer) embed(ctx context.Context, img image.Image) ([]float64, error) {
	vec, err := s.extractor.Embed(ctx, prepare(img, s.extractor.InputSize()))
	switch {
	case err == nil:
	case errors.Is(err, sketch.ErrExtractionFailure), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: %w", sketch.ErrExtractionFailure, err)
	}

	return Normalize(vec), nil
}

func (s *Scorer) referenceFeatures(ctx context.Context, reference string) ([]float64, error) {
	s.mu.Lock()
	vec, ok := s.refs[reference]
	s.mu.Unlock()
	if ok {
		return vec, nil
	}

	img, err := s.loader.LoadReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	vec, err = s.embed(ctx, img)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if len(s.refs) >= maxCachedReferences {
		clear(s.refs)
	}
	s.refs[reference] = vec
	s.mu.Unlock()

	return vec, nil
}
