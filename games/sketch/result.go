/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sketch

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// FallbackScore is awarded to every submitted drawing when the round could
// not be scored. Results carrying it have Fallback set.
const FallbackScore = 50

// Scorer compares a drawing to a reference image, returning 0-100.
type Scorer interface {
	Score(ctx context.Context, reference, drawing string) (int, error)
}

// RoundResult is the outcome of one finalized round.
type RoundResult struct {
	Round          int               `json:"round"`
	Scores         map[string]int    `json:"scores"`
	Winner         string            `json:"winner"`
	ReferenceImage string            `json:"reference_image"`
	Drawings       map[string]string `json:"drawings"`
	Error          string            `json:"error,omitempty"`
	Fallback       bool              `json:"fallback,omitempty"`
}

// roundSnapshot is the state captured when a round is finalized. It is
// owned by the scoring goroutine.
type roundSnapshot struct {
	sessionID string
	round     int
	players   []Player
	reference string
	drawings  map[string]string
}

var tracer = otel.Tracer("github.com/Seednode/sketchduel/games/sketch")

// scoreRound never fails: scorer errors degrade to FallbackScore.
func scoreRound(ctx context.Context, scorer Scorer, snap roundSnapshot) RoundResult {
	ctx, span := tracer.Start(ctx, "sketch.scoreRound")
	defer span.End()

	span.SetAttributes(
		attribute.String("session.id", snap.sessionID),
		attribute.Int("round", snap.round),
		attribute.Int("drawings", len(snap.drawings)),
	)

	result := RoundResult{
		Round:          snap.round,
		Scores:         make(map[string]int, len(snap.players)),
		ReferenceImage: snap.reference,
		Drawings:       maps.Clone(snap.drawings),
	}
	if result.Drawings == nil {
		result.Drawings = map[string]string{}
	}

	var failure error
	for _, p := range snap.players {
		drawing, ok := snap.drawings[p.ID]
		if !ok {
			result.Scores[p.ID] = 0
			continue
		}

		if failure != nil {
			continue
		}

		score, err := scorer.Score(ctx, snap.reference, drawing)
		if err != nil {
			failure = classify(err)
			continue
		}
		result.Scores[p.ID] = min(max(score, 0), 100)
	}

	if failure != nil {
		for _, p := range snap.players {
			if _, ok := snap.drawings[p.ID]; ok {
				result.Scores[p.ID] = FallbackScore
			}
		}
		result.Fallback = true
		result.Error = failure.Error()

		span.RecordError(failure)
		span.SetStatus(codes.Error, "scoring fell back to placeholder scores")
	}

	result.Winner = winner(snap.players, result.Scores)

	return result
}

func classify(err error) error {
	if errors.Is(err, ErrExtractionFailure) || errors.Is(err, ErrScoringFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrScoringFailure, err)
}

// winner returns the strictly highest scorer; ties go to players[0].
func winner(players []Player, scores map[string]int) string {
	if len(players) == 0 {
		return ""
	}

	best := players[0]
	for _, p := range players[1:] {
		if scores[p.ID] > scores[best.ID] {
			best = p
		}
	}

	return best.ID
}
