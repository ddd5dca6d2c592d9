/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sketch

import "errors"

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionFull         = errors.New("session is full")
	ErrSessionClosed       = errors.New("session closed")
	ErrPlayerNotInSession  = errors.New("player not in session")
	ErrUnauthorized        = errors.New("only the session creator may start the round")
	ErrInsufficientPlayers = errors.New("two players are required to start")
	ErrInvalidState        = errors.New("action not allowed in the current state")

	// Scoring failures never reach a caller; they annotate a RoundResult.
	ErrScoringFailure    = errors.New("scoring failed")
	ErrExtractionFailure = errors.New("feature extraction failed")
)
