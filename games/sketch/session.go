/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sketch

import (
	"context"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultRoundDuration = 30 * time.Second
	DefaultSubmitGrace   = 2 * time.Second
	DefaultScoreTimeout  = 20 * time.Second

	maxPlayers = 2
)

// Settings tune session timing and hooks. Zero durations fall back to the
// defaults, except SubmitGrace where zero disables the grace window.
type Settings struct {
	RoundDuration time.Duration
	SubmitGrace   time.Duration
	ScoreTimeout  time.Duration

	// Logf receives verbose diagnostics. Nil discards them.
	Logf func(format string, args ...any)

	// OnTransition, if set, is called from the session goroutine after
	// every status change.
	OnTransition func(sessionID string, from, to Status)
}

func (s Settings) withDefaults() Settings {
	if s.RoundDuration <= 0 {
		s.RoundDuration = DefaultRoundDuration
	}
	if s.SubmitGrace < 0 {
		s.SubmitGrace = 0
	}
	if s.ScoreTimeout <= 0 {
		s.ScoreTimeout = DefaultScoreTimeout
	}
	if s.Logf == nil {
		s.Logf = func(string, ...any) {}
	}
	return s
}

// Snapshot is the public view of a session.
type Snapshot struct {
	ID             string   `json:"id"`
	Status         Status   `json:"status"`
	Players        []Player `json:"players"`
	ReferenceImage string   `json:"reference_image"`
	Round          int      `json:"round"`
}

type sessionView struct {
	snapshot Snapshot
	result   *RoundResult
}

type joinReply struct {
	player Player
	err    error
}

type joinRequest struct {
	name  string
	sub   Subscriber
	reply chan joinReply
}

type playerRequest struct {
	playerID string
	reply    chan error
}

type submitRequest struct {
	playerID string
	drawing  string
	reply    chan error
}

// Session is one game instance. All of its mutable state is owned by the
// goroutine started in newSession; everything else talks to it over
// channels.
type Session struct {
	id       string
	settings Settings
	scorer   Scorer
	channel  Channel
	images   *ImagePool

	joins    chan joinRequest
	starts   chan playerRequest
	submits  chan submitRequest
	replays  chan playerRequest
	views    chan chan sessionView
	expired  chan int
	graceEnd chan int
	scored   chan RoundResult

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	lastActive atomic.Int64

	// Owned by run.
	players        []Player
	status         Status
	referenceImage string
	drawings       map[string]string
	readyForNext   map[string]bool
	round          int
	accepting      bool // submissions are recorded for the current round
	finalized      bool // the current round has been claimed for scoring
	committed      bool // results for the current round have been broadcast
	timer          *time.Timer
	result         *RoundResult
}

func newSession(id string, settings Settings, scorer Scorer, channel Channel, images *ImagePool) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()

	s := &Session{
		id:             id,
		settings:       settings.withDefaults(),
		scorer:         scorer,
		channel:        channel,
		images:         images,
		joins:          make(chan joinRequest),
		starts:         make(chan playerRequest),
		submits:        make(chan submitRequest),
		replays:        make(chan playerRequest),
		views:          make(chan chan sessionView),
		expired:        make(chan int),
		graceEnd:       make(chan int),
		scored:         make(chan RoundResult),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
		status:         StatusWaiting,
		referenceImage: images.Random(),
		drawings:       make(map[string]string),
		readyForNext:   make(map[string]bool),
	}
	s.lastActive.Store(now.UnixNano())

	go s.run()

	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Close stops the session goroutine. Pending timers and scoring passes
// become no-ops. Close is idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		close(s.done)
	})
}

func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

func (s *Session) run() {
	defer s.stopTimer()

	for {
		select {
		case req := <-s.joins:
			p, err := s.handleJoin(req.name, req.sub)
			req.reply <- joinReply{player: p, err: err}

		case req := <-s.starts:
			req.reply <- s.handleStart(req.playerID)

		case req := <-s.submits:
			req.reply <- s.handleSubmit(req.playerID, req.drawing)

		case req := <-s.replays:
			req.reply <- s.handlePlayAgain(req.playerID)

		case reply := <-s.views:
			reply <- s.view()

		case round := <-s.expired:
			s.handleExpiry(round)

		case round := <-s.graceEnd:
			s.beginScoring(round)

		case result := <-s.scored:
			s.commitResult(result)

		case <-s.done:
			return
		}
	}
}

// post hands v to the session goroutine, or drops it once the session is
// closed. It is used by timers and scoring goroutines.
func post[T any](s *Session, ch chan<- T, v T) {
	select {
	case ch <- v:
	case <-s.done:
	}
}

// call enqueues req and waits for the reply, honouring ctx.
func call[Req, Resp any](ctx context.Context, s *Session, queue chan<- Req, req Req, reply <-chan Resp) (Resp, error) {
	var zero Resp

	if s.closed() {
		return zero, ErrSessionClosed
	}

	select {
	case queue <- req:
	case <-s.done:
		return zero, ErrSessionClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	s.touch()

	select {
	case resp := <-reply:
		return resp, nil
	case <-s.done:
		select {
		case resp := <-reply:
			return resp, nil
		default:
			return zero, ErrSessionClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (s *Session) join(ctx context.Context, name string, sub Subscriber) (Player, error) {
	reply := make(chan joinReply, 1)
	resp, err := call(ctx, s, s.joins, joinRequest{name: name, sub: sub, reply: reply}, reply)
	if err != nil {
		return Player{}, err
	}
	return resp.player, resp.err
}

func (s *Session) start(ctx context.Context, playerID string) error {
	return s.playerCall(ctx, s.starts, playerID)
}

func (s *Session) playAgain(ctx context.Context, playerID string) error {
	return s.playerCall(ctx, s.replays, playerID)
}

func (s *Session) playerCall(ctx context.Context, queue chan<- playerRequest, playerID string) error {
	reply := make(chan error, 1)
	resp, err := call(ctx, s, queue, playerRequest{playerID: playerID, reply: reply}, reply)
	if err != nil {
		return err
	}
	return resp
}

func (s *Session) submit(ctx context.Context, playerID, drawing string) error {
	reply := make(chan error, 1)
	resp, err := call(ctx, s, s.submits, submitRequest{playerID: playerID, drawing: drawing, reply: reply}, reply)
	if err != nil {
		return err
	}
	return resp
}

func (s *Session) snapshot(ctx context.Context) (sessionView, error) {
	reply := make(chan sessionView, 1)

	if s.closed() {
		return sessionView{}, ErrSessionClosed
	}

	select {
	case s.views <- reply:
	case <-s.done:
		return sessionView{}, ErrSessionClosed
	case <-ctx.Done():
		return sessionView{}, ctx.Err()
	}

	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return sessionView{}, ctx.Err()
	}
}

func (s *Session) handleJoin(name string, sub Subscriber) (Player, error) {
	if len(s.players) >= maxPlayers {
		return Player{}, ErrSessionFull
	}

	p := newPlayer(name, len(s.players))
	s.players = append(s.players, p)

	if sub != nil {
		s.channel.Subscribe(s.id, sub)
	}

	s.settings.Logf("GAMES: Player %q (%s) joined %s", p.Name, p.ID, s.id)

	s.channel.Broadcast(s.id, PlayerJoinedMessage{
		Type: EventPlayerJoined,
		ID:   p.ID,
		Name: p.Name,
	})

	if len(s.players) == maxPlayers {
		s.setStatus(StatusReady)
	}

	return p, nil
}

func (s *Session) handleStart(playerID string) error {
	idx := s.playerIndex(playerID)
	switch {
	case idx < 0:
		return ErrPlayerNotInSession
	case idx != 0:
		return ErrUnauthorized
	case len(s.players) < maxPlayers:
		return ErrInsufficientPlayers
	case s.status != StatusReady:
		return ErrInvalidState
	}

	s.startRound()

	return nil
}

func (s *Session) handleSubmit(playerID, drawing string) error {
	if s.playerIndex(playerID) < 0 {
		return ErrPlayerNotInSession
	}
	if !s.accepting {
		return ErrInvalidState
	}

	s.drawings[playerID] = drawing

	if s.status == StatusActive && len(s.drawings) == len(s.players) {
		s.settings.Logf("GAMES: Both drawings in for %s round %d", s.id, s.round)

		s.finalized = true
		s.stopTimer()
		s.setStatus(StatusFinished)
		s.beginScoring(s.round)
	}

	return nil
}

func (s *Session) handlePlayAgain(playerID string) error {
	idx := s.playerIndex(playerID)
	if idx < 0 {
		return ErrPlayerNotInSession
	}
	if s.status != StatusFinished {
		return ErrInvalidState
	}

	s.readyForNext[playerID] = true

	s.channel.Broadcast(s.id, PlayerReadyMessage{
		Type:       EventPlayerReady,
		PlayerID:   playerID,
		PlayerName: s.players[idx].Name,
	})

	s.maybeRestart()

	return nil
}

// handleExpiry is the Round Timer firing. It is a no-op unless round is
// the current, still-unclaimed round.
func (s *Session) handleExpiry(round int) {
	if round != s.round || s.finalized {
		s.settings.Logf("GAMES: Ignoring stale timer for %s round %d", s.id, round)
		return
	}

	s.finalized = true
	s.timer = nil
	s.setStatus(StatusFinished)

	s.settings.Logf("GAMES: Time up for %s round %d (%d/%d drawings)", s.id, round, len(s.drawings), len(s.players))

	s.channel.Broadcast(s.id, TimeUpMessage{
		Type:  EventTimeUp,
		Round: round,
	})

	if s.settings.SubmitGrace > 0 {
		time.AfterFunc(s.settings.SubmitGrace, func() {
			post(s, s.graceEnd, round)
		})
		return
	}

	s.beginScoring(round)
}

// beginScoring snapshots the round and scores it off the session
// goroutine. Only the first call per round has any effect.
func (s *Session) beginScoring(round int) {
	if round != s.round || !s.accepting {
		return
	}
	s.accepting = false

	snap := roundSnapshot{
		sessionID: s.id,
		round:     s.round,
		players:   slices.Clone(s.players),
		reference: s.referenceImage,
		drawings:  maps.Clone(s.drawings),
	}

	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.settings.ScoreTimeout)
		defer cancel()

		post(s, s.scored, scoreRound(ctx, s.scorer, snap))
	}()
}

func (s *Session) commitResult(result RoundResult) {
	if result.Round != s.round || s.committed {
		s.settings.Logf("GAMES: Discarding stale result for %s round %d", s.id, result.Round)
		return
	}

	s.committed = true
	s.result = &result

	if result.Fallback {
		s.settings.Logf("GAMES: Scoring fell back for %s round %d: %s", s.id, result.Round, result.Error)
	}
	s.settings.Logf("GAMES: Round %d of %s won by %s", result.Round, s.id, result.Winner)

	s.channel.Broadcast(s.id, GameResultsMessage{
		Type:        EventGameResults,
		RoundResult: result,
	})

	s.maybeRestart()
}

// maybeRestart starts the next round once both players asked for one and
// the current round's results are out.
func (s *Session) maybeRestart() {
	if s.status != StatusFinished || !s.committed || len(s.readyForNext) < maxPlayers {
		return
	}

	s.referenceImage = s.images.Next(s.referenceImage)

	if !s.setStatus(StatusReady) {
		return
	}

	s.startRound()
}

// startRound clears per-round state, arms the Round Timer and announces
// the reference image.
func (s *Session) startRound() {
	if !s.setStatus(StatusActive) {
		return
	}

	s.round++
	s.drawings = make(map[string]string)
	s.readyForNext = make(map[string]bool)
	s.accepting = true
	s.finalized = false
	s.committed = false
	s.result = nil

	round := s.round
	s.stopTimer()
	s.timer = time.AfterFunc(s.settings.RoundDuration, func() {
		post(s, s.expired, round)
	})

	s.settings.Logf("GAMES: Round %d of %s started with %s", round, s.id, s.referenceImage)

	s.channel.Broadcast(s.id, GameStartMessage{
		Type:            EventGameStart,
		ReferenceImage:  s.referenceImage,
		Round:           round,
		DurationSeconds: durationSeconds(s.settings.RoundDuration),
	})
}

// durationSeconds rounds d up, so short rounds never advertise zero.
func durationSeconds(d time.Duration) int {
	return max(1, int((d+time.Second-1)/time.Second))
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// setStatus refuses any change outside the transition graph.
func (s *Session) setStatus(next Status) bool {
	prev := s.status
	if !prev.CanTransition(next) {
		s.settings.Logf("GAMES: Refusing transition %s -> %s for %s", prev, next, s.id)
		return false
	}

	s.status = next

	if s.settings.OnTransition != nil {
		s.settings.OnTransition(s.id, prev, next)
	}

	return true
}

func (s *Session) playerIndex(playerID string) int {
	return slices.IndexFunc(s.players, func(p Player) bool {
		return p.ID == playerID
	})
}

func (s *Session) view() sessionView {
	v := sessionView{
		snapshot: Snapshot{
			ID:             s.id,
			Status:         s.status,
			Players:        slices.Clone(s.players),
			ReferenceImage: s.referenceImage,
			Round:          s.round,
		},
	}
	if v.snapshot.Players == nil {
		v.snapshot.Players = []Player{}
	}
	if s.result != nil {
		r := *s.result
		v.result = &r
	}
	return v
}
