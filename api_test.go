package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/sketchduel/games/sketch"
	"github.com/Seednode/sketchduel/games/sketch/similarity"
)

type testServer struct {
	*httptest.Server
	cfg   *Config
	ctrl  *sketch.Controller
	rooms *Rooms
	ref   string
}

// crossImage is a black plus sign on white, small enough for a data URL.
func crossImage(t *testing.T) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 48, 48))
	for y := range 48 {
		for x := range 48 {
			c := color.RGBA{R: 255, G: 255, B: 255, A: 255}
			if (x >= 22 && x <= 26) || (y >= 22 && y <= 26) {
				c = color.RGBA{A: 255}
			}
			img.Set(x, y, c)
		}
	}

	src, err := similarity.EncodeDataURL(img)
	require.NoError(t, err)
	return src
}

func newTestServer(t *testing.T, modify func(cfg *Config)) *testServer {
	t.Helper()

	cfg := validConfig()
	cfg.roundDuration = time.Minute
	cfg.submitGrace = 0
	cfg.images = []string{crossImage(t)}
	if modify != nil {
		modify(cfg)
	}

	images, err := sketch.NewImagePool(cfg.images, nil)
	require.NoError(t, err)

	rooms := newRooms()
	store := sketch.NewStore(rooms.Close)
	t.Cleanup(store.Close)

	scorer := similarity.NewScorer(similarity.NewLoader(nil, cfg.maxImageBytes), similarity.NewEdgeExtractor())
	ctrl := sketch.NewController(store, scorer, rooms, images, cfg.settings())

	errs := make(chan error, 16)
	srv := httptest.NewServer(newRouter(cfg, ctrl, scorer, errs))
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, cfg: cfg, ctrl: ctrl, rooms: rooms, ref: cfg.images[0]}
}

func (ts *testServer) do(t *testing.T, method, path string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, ts.URL+ts.cfg.prefix+path, nil)
	require.NoError(t, err)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, body
}

func (ts *testServer) createGame(t *testing.T) string {
	t.Helper()

	resp, body := ts.do(t, http.MethodPost, "/api/create-game")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var created createGameResponse
	require.NoError(t, json.Unmarshal(body, &created))
	require.Len(t, created.GameID, 8)

	return created.GameID
}

func TestCreateAndFetchGame(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	id := ts.createGame(t)

	resp, body := ts.do(t, http.MethodGet, "/api/game/"+id)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))

	var snap sketch.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, id, snap.ID)
	assert.Equal(t, sketch.StatusWaiting, snap.Status)
	assert.Empty(t, snap.Players)
	assert.Empty(t, snap.ReferenceImage)
	assert.Contains(t, string(body), `"players":[]`)
}

func TestGameInfoRevealsReferenceWhileActive(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	id := ts.createGame(t)
	ctx := context.Background()

	alice, err := ts.ctrl.Join(ctx, id, "Alice", nil)
	require.NoError(t, err)
	_, err = ts.ctrl.Join(ctx, id, "Bob", nil)
	require.NoError(t, err)
	require.NoError(t, ts.ctrl.Start(ctx, id, alice))

	_, body := ts.do(t, http.MethodGet, "/api/game/"+id)

	var snap sketch.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, sketch.StatusActive, snap.Status)
	assert.Equal(t, ts.ref, snap.ReferenceImage)
	assert.Len(t, snap.Players, 2)
}

func TestGameResults(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	id := ts.createGame(t)
	ctx := context.Background()

	resp, _ := ts.do(t, http.MethodGet, "/api/game/"+id+"/results")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	alice, err := ts.ctrl.Join(ctx, id, "Alice", nil)
	require.NoError(t, err)
	bob, err := ts.ctrl.Join(ctx, id, "Bob", nil)
	require.NoError(t, err)
	require.NoError(t, ts.ctrl.Start(ctx, id, alice))
	require.NoError(t, ts.ctrl.Submit(ctx, id, alice, ts.ref))
	require.NoError(t, ts.ctrl.Submit(ctx, id, bob, crossImage(t)))

	var result sketch.RoundResult
	require.Eventually(t, func() bool {
		resp, body := ts.do(t, http.MethodGet, "/api/game/"+id+"/results")
		if resp.StatusCode != http.StatusOK {
			return false
		}
		return json.Unmarshal(body, &result) == nil
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, result.Round)
	assert.Equal(t, map[string]int{alice: 100, bob: 100}, result.Scores)
	assert.Equal(t, alice, result.Winner)
	assert.False(t, result.Fallback)
}

func TestAPIErrors(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{name: "unknown game", method: http.MethodGet, path: "/api/game/nope", status: http.StatusNotFound},
		{name: "unknown game results", method: http.MethodGet, path: "/api/game/nope/results", status: http.StatusNotFound},
		{name: "unknown game qr", method: http.MethodGet, path: "/api/game/nope/qr", status: http.StatusNotFound},
		{name: "unknown route", method: http.MethodGet, path: "/nowhere", status: http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			resp, body := ts.do(t, tc.method, tc.path)
			assert.Equal(t, tc.status, resp.StatusCode)

			var msg ErrorMessage
			require.NoError(t, json.Unmarshal(body, &msg))
			assert.NotEmpty(t, msg.Message)
		})
	}

	resp, _ := ts.do(t, http.MethodGet, "/api/create-game")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServeQR(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	id := ts.createGame(t)

	resp, body := ts.do(t, http.MethodGet, "/api/game/"+id+"/qr")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, qrSize, img.Bounds().Dx())
}

func TestShareURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		shareURL  string
		prefix    string
		forwarded string
		want      string
	}{
		{name: "derived", want: "http://duel.example/game/abc"},
		{name: "derived with prefix", prefix: "/sketch", want: "http://duel.example/sketch/game/abc"},
		{name: "forwarded proto", forwarded: "https", want: "https://duel.example/game/abc"},
		{name: "configured", shareURL: "https://play.example/", want: "https://play.example/game/abc"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			cfg.shareURL = tc.shareURL
			cfg.prefix = tc.prefix

			r := httptest.NewRequest(http.MethodGet, "http://duel.example/api/game/abc/qr", nil)
			if tc.forwarded != "" {
				r.Header.Set("X-Forwarded-Proto", tc.forwarded)
			}

			assert.Equal(t, tc.want, shareURL(cfg, r, "abc"))
		})
	}
}

func TestTestScoringEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodGet, "/api/test-scoring")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var probe similarity.ProbeResult
	require.NoError(t, json.Unmarshal(body, &probe))
	assert.Equal(t, similarity.ProbeResult{Same: 100, Blank: 0}, probe)
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, body = ts.do(t, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ok\n", string(body))

	_, body = ts.do(t, http.MethodGet, "/version")
	assert.Equal(t, "sketchduel v"+releaseVersion+"\n", string(body))

	_, body = ts.do(t, http.MethodGet, "/robots.txt")
	assert.Contains(t, string(body), "Disallow: /api/")
}

func TestRoutesHonourPrefix(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, func(cfg *Config) { cfg.prefix = "/sketch" })
	id := ts.createGame(t)

	resp, _ := ts.do(t, http.MethodGet, "/api/game/"+id)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := ts.Client().Get(ts.URL + "/api/game/" + id)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORSHeaders(t *testing.T) {
	t.Parallel()

	open := newTestServer(t, func(cfg *Config) { cfg.allowOrigin = "*" })
	resp, _ := open.do(t, http.MethodGet, "/health")
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err := http.NewRequest(http.MethodOptions, open.URL+"/api/create-game", nil)
	require.NoError(t, err)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	preflight, err := open.Client().Do(req)
	require.NoError(t, err)
	preflight.Body.Close()
	assert.Equal(t, http.StatusNoContent, preflight.StatusCode)
	assert.Equal(t, "*", preflight.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, preflight.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)

	closed := newTestServer(t, nil)
	resp, _ = closed.do(t, http.MethodGet, "/health")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "same-site", resp.Header.Get("Cross-Origin-Resource-Policy"))
}

func TestErrorCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    error
		code   string
		status int
	}{
		{err: fmt.Errorf("%w: abc", sketch.ErrSessionNotFound), code: "session_not_found", status: http.StatusNotFound},
		{err: sketch.ErrSessionClosed, code: "session_not_found", status: http.StatusNotFound},
		{err: fmt.Errorf("join abc: %w", sketch.ErrSessionFull), code: "session_full", status: http.StatusConflict},
		{err: sketch.ErrPlayerNotInSession, code: "player_not_in_session", status: http.StatusForbidden},
		{err: sketch.ErrUnauthorized, code: "unauthorized", status: http.StatusForbidden},
		{err: sketch.ErrInsufficientPlayers, code: "insufficient_players", status: http.StatusBadRequest},
		{err: sketch.ErrInvalidState, code: "invalid_state", status: http.StatusConflict},
		{err: context.DeadlineExceeded, code: "internal", status: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.code, errorCode(tc.err), "%v", tc.err)
		assert.Equal(t, tc.status, statusFor(tc.err), "%v", tc.err)
	}
}

func TestHumanReadableSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "999 B", humanReadableSize(999))
	assert.Equal(t, "1.5 kB", humanReadableSize(1500))
	assert.Equal(t, "2.0 MB", humanReadableSize(2_000_000))
}

// hugeDrawing is a data URL whose PNG header declares a 50000x50000 image.
func hugeDrawing() string {
	chunk := func(typ string, data []byte) []byte {
		out := binary.BigEndian.AppendUint32(nil, uint32(len(data)))
		body := append([]byte(typ), data...)
		out = append(out, body...)
		return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(body))
	}

	ihdr := binary.BigEndian.AppendUint32(nil, 50000)
	ihdr = binary.BigEndian.AppendUint32(ihdr, 50000)
	ihdr = append(ihdr, 8, 6, 0, 0, 0)

	data := []byte("\x89PNG\r\n\x1a\n")
	data = append(data, chunk("IHDR", ihdr)...)
	data = append(data, chunk("IDAT", []byte{0})...)
	data = append(data, chunk("IEND", nil)...)

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

func playRound(t *testing.T, ts *testServer, aliceDrawing, bobDrawing string) (sketch.RoundResult, string, string) {
	t.Helper()

	id := ts.createGame(t)
	ctx := context.Background()

	alice, err := ts.ctrl.Join(ctx, id, "Alice", nil)
	require.NoError(t, err)
	bob, err := ts.ctrl.Join(ctx, id, "Bob", nil)
	require.NoError(t, err)
	require.NoError(t, ts.ctrl.Start(ctx, id, alice))
	require.NoError(t, ts.ctrl.Submit(ctx, id, alice, aliceDrawing))
	require.NoError(t, ts.ctrl.Submit(ctx, id, bob, bobDrawing))

	var result sketch.RoundResult
	require.Eventually(t, func() bool {
		r, ok, err := ts.ctrl.Result(ctx, id)
		result = r
		return err == nil && ok
	}, 5*time.Second, 10*time.Millisecond)

	return result, alice, bob
}

func TestOversizedDrawingFallsBack(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	result, alice, bob := playRound(t, ts, hugeDrawing(), ts.ref)

	assert.True(t, result.Fallback)
	assert.Contains(t, result.Error, "exceeds 4096x4096")
	assert.Equal(t, map[string]int{alice: sketch.FallbackScore, bob: sketch.FallbackScore}, result.Scores)

	resp, _ := ts.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDrawingURLIsNotFetched(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(target.Close)

	ts := newTestServer(t, nil)
	result, alice, bob := playRound(t, ts, target.URL+"/latest/meta-data", ts.ref)

	assert.True(t, result.Fallback)
	assert.Equal(t, map[string]int{alice: sketch.FallbackScore, bob: sketch.FallbackScore}, result.Scores)
	assert.Zero(t, hits.Load())
}
