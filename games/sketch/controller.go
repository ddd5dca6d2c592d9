/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sketch

import (
	"context"
	"fmt"
)

// Controller validates client events and routes them to their session.
type Controller struct {
	store    *Store
	scorer   Scorer
	channel  Channel
	images   *ImagePool
	settings Settings
}

// NewController wires a controller. The store is shared with whatever
// evicts sessions.
func NewController(store *Store, scorer Scorer, channel Channel, images *ImagePool, settings Settings) *Controller {
	return &Controller{
		store:    store,
		scorer:   scorer,
		channel:  channel,
		images:   images,
		settings: settings.withDefaults(),
	}
}

// Create starts a new waiting session with a random reference image.
func (c *Controller) Create(ctx context.Context) (Snapshot, error) {
	s := c.store.add(func(id string) *Session {
		return newSession(id, c.settings, c.scorer, c.channel, c.images)
	})

	c.settings.Logf("GAMES: Created session %s", s.ID())

	return c.Snapshot(ctx, s.ID())
}

// Snapshot returns the public view of a session. The reference image is
// only disclosed while a round is active.
func (c *Controller) Snapshot(ctx context.Context, sessionID string) (Snapshot, error) {
	v, err := c.view(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}

	snap := v.snapshot
	if snap.Status != StatusActive {
		snap.ReferenceImage = ""
	}

	return snap, nil
}

// Result returns the most recent round result, if the current round has
// one.
func (c *Controller) Result(ctx context.Context, sessionID string) (RoundResult, bool, error) {
	v, err := c.view(ctx, sessionID)
	if err != nil {
		return RoundResult{}, false, err
	}
	if v.result == nil {
		return RoundResult{}, false, nil
	}

	return *v.result, true, nil
}

// Join adds a player and subscribes sub to the session's broadcasts. It
// returns the new player's ID.
func (c *Controller) Join(ctx context.Context, sessionID, playerName string, sub Subscriber) (string, error) {
	s, err := c.session(sessionID)
	if err != nil {
		return "", err
	}

	p, err := s.join(ctx, playerName, sub)
	if err != nil {
		return "", fmt.Errorf("join %s: %w", sessionID, err)
	}

	return p.ID, nil
}

// Leave unsubscribes a disconnected client. The player stays in the
// session.
func (c *Controller) Leave(sessionID string, sub Subscriber) {
	if sub == nil {
		return
	}
	c.channel.Unsubscribe(sessionID, sub)
}

// Start begins the first round. Only the creator may start it.
func (c *Controller) Start(ctx context.Context, sessionID, playerID string) error {
	s, err := c.session(sessionID)
	if err != nil {
		return err
	}

	if err := s.start(ctx, playerID); err != nil {
		return fmt.Errorf("start %s: %w", sessionID, err)
	}

	return nil
}

// Submit records a player's drawing, finalizing the round once both are in.
func (c *Controller) Submit(ctx context.Context, sessionID, playerID, drawing string) error {
	s, err := c.session(sessionID)
	if err != nil {
		return err
	}

	if err := s.submit(ctx, playerID, drawing); err != nil {
		return fmt.Errorf("submit %s: %w", sessionID, err)
	}

	return nil
}

// PlayAgain marks a player as ready for another round. The second request
// restarts the session.
func (c *Controller) PlayAgain(ctx context.Context, sessionID, playerID string) error {
	s, err := c.session(sessionID)
	if err != nil {
		return err
	}

	if err := s.playAgain(ctx, playerID); err != nil {
		return fmt.Errorf("play again %s: %w", sessionID, err)
	}

	return nil
}

func (c *Controller) session(sessionID string) (*Session, error) {
	s, ok := c.store.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return s, nil
}

func (c *Controller) view(ctx context.Context, sessionID string) (sessionView, error) {
	s, err := c.session(sessionID)
	if err != nil {
		return sessionView{}, err
	}

	v, err := s.snapshot(ctx)
	if err != nil {
		return sessionView{}, fmt.Errorf("snapshot %s: %w", sessionID, err)
	}

	return v, nil
}
