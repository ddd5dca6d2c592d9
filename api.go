/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/sketchduel/games/sketch"
	"github.com/Seednode/sketchduel/games/sketch/similarity"
)

const qrSize = 320 // mobile-friendly size

type createGameResponse struct {
	GameID string `json:"game_id"`
}

func serveCreateGame(cfg *Config, ctrl *sketch.Controller, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		snap, err := ctrl.Create(r.Context())
		if err != nil {
			writeError(cfg, w, statusFor(err), err.Error())
			return
		}

		written, err := writeJSON(cfg, w, http.StatusOK, createGameResponse{GameID: snap.ID})
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "GAMES: Created game %s for %s (%s) in %s",
			snap.ID,
			realIP(r),
			humanReadableSize(int64(written)),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveGameInfo(cfg *Config, ctrl *sketch.Controller, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		snap, err := ctrl.Snapshot(r.Context(), ps.ByName("gameid"))
		if err != nil {
			writeError(cfg, w, statusFor(err), err.Error())
			return
		}

		if _, err := writeJSON(cfg, w, http.StatusOK, snap); err != nil {
			errs <- err
		}
	}
}

func serveGameResults(cfg *Config, ctrl *sketch.Controller, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		result, ok, err := ctrl.Result(r.Context(), ps.ByName("gameid"))
		if err != nil {
			writeError(cfg, w, statusFor(err), err.Error())
			return
		}
		if !ok {
			writeError(cfg, w, http.StatusNotFound, "no results for the current round yet")
			return
		}

		if _, err := writeJSON(cfg, w, http.StatusOK, result); err != nil {
			errs <- err
		}
	}
}

// serveTestScoring runs the scorer against synthetic images.
func serveTestScoring(cfg *Config, scorer *similarity.Scorer, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		result, err := similarity.Probe(r.Context(), scorer)
		if err != nil {
			writeError(cfg, w, http.StatusInternalServerError, err.Error())
			return
		}

		if _, err := writeJSON(cfg, w, http.StatusOK, result); err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Scoring probe (same=%d, blank=%d) to %s in %s",
			result.Same,
			result.Blank,
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// shareURL is the address a second player should open to join gameID.
func shareURL(cfg *Config, r *http.Request, gameID string) string {
	base := strings.TrimSuffix(cfg.shareURL, "/")
	if base == "" {
		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host + cfg.prefix
	}

	return base + "/game/" + gameID
}

// serveQR generates a PNG QR code pointing at the game's share URL.
func serveQR(cfg *Config, ctrl *sketch.Controller, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")

		if _, err := ctrl.Snapshot(r.Context(), gameID); err != nil {
			writeError(cfg, w, statusFor(err), err.Error())
			return
		}

		png, err := qrcode.Encode(shareURL(cfg, r, gameID), qrcode.Medium, qrSize)
		if err != nil {
			writeError(cfg, w, http.StatusInternalServerError, "qr generation failed")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)

		if _, err := w.Write(png); err != nil {
			errs <- err
		}
	}
}

// registerSketchGame sets up routes so that:
//   - POST $prefix/api/create-game        → new game, returns its ID
//   - GET  $prefix/api/game/:gameid       → session snapshot
//   - GET  $prefix/api/game/:gameid/results → latest round result
//   - GET  $prefix/api/game/:gameid/qr    → PNG QR code for the share URL
//   - GET  $prefix/api/test-scoring       → scorer smoke test
//   - GET  $prefix/ws                     → realtime events
func registerSketchGame(cfg *Config, mux *httprouter.Router, ctrl *sketch.Controller, scorer *similarity.Scorer, errs chan<- error) {
	mux.POST(cfg.prefix+"/api/create-game", serveCreateGame(cfg, ctrl, errs))

	mux.GET(cfg.prefix+"/api/game/:gameid", serveGameInfo(cfg, ctrl, errs))

	mux.GET(cfg.prefix+"/api/game/:gameid/results", serveGameResults(cfg, ctrl, errs))

	mux.GET(cfg.prefix+"/api/game/:gameid/qr", serveQR(cfg, ctrl, errs))

	mux.GET(cfg.prefix+"/api/test-scoring", serveTestScoring(cfg, scorer, errs))

	mux.GET(cfg.prefix+"/ws", serveWS(cfg, ctrl))
}
