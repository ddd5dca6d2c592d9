/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/Seednode/sketchduel/games/sketch"
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

// ErrorMessage is the body of a failed HTTP request.
type ErrorMessage struct {
	Message string `json:"error"`
}

// SocketErrorMessage is sent to a single websocket client, never broadcast.
type SocketErrorMessage struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorCode maps game errors onto stable, client-facing codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, sketch.ErrSessionNotFound), errors.Is(err, sketch.ErrSessionClosed):
		return "session_not_found"
	case errors.Is(err, sketch.ErrSessionFull):
		return "session_full"
	case errors.Is(err, sketch.ErrPlayerNotInSession):
		return "player_not_in_session"
	case errors.Is(err, sketch.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, sketch.ErrInsufficientPlayers):
		return "insufficient_players"
	case errors.Is(err, sketch.ErrInvalidState):
		return "invalid_state"
	default:
		return "internal"
	}
}

func statusFor(err error) int {
	switch errorCode(err) {
	case "session_not_found":
		return http.StatusNotFound
	case "session_full", "invalid_state":
		return http.StatusConflict
	case "player_not_in_session", "unauthorized":
		return http.StatusForbidden
	case "insufficient_players":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any) (int, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	return w.Write(append(body, '\n'))
}

func writeError(cfg *Config, w http.ResponseWriter, status int, message string) {
	_, _ = writeJSON(cfg, w, status, ErrorMessage{Message: message})
}
