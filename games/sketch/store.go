/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sketch

import (
	"context"
	"crypto/rand"
	"sync"
	"time"
)

const (
	sessionIDLength  = 8
	sessionIDLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Store holds every live session keyed by ID.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	// onEvict is called after a session is removed by Remove or the reaper.
	onEvict func(id string)
}

// NewStore returns an empty store. onEvict may be nil.
func NewStore(onEvict func(id string)) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		onEvict:  onEvict,
	}
}

// Get looks up a session by ID.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[id]
	return s, ok
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()

	return len(st.sessions)
}

// add registers a new session under a fresh, collision-free ID built by
// build.
func (st *Store) add(build func(id string) *Session) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	for {
		id := newSessionID()
		if _, exists := st.sessions[id]; exists {
			continue
		}

		s := build(id)
		st.sessions[id] = s

		return s
	}
}

// Remove closes and forgets a session. Removing an unknown ID is a no-op.
func (st *Store) Remove(id string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if !ok {
		return
	}

	s.Close()

	if st.onEvict != nil {
		st.onEvict(id)
	}
}

// Reap removes every session idle since before cutoff and returns their
// IDs.
func (st *Store) Reap(cutoff time.Time) []string {
	st.mu.RLock()
	var stale []string
	for id, s := range st.sessions {
		if s.idleSince().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	st.mu.RUnlock()

	for _, id := range stale {
		st.Remove(id)
	}

	return stale
}

// ReapLoop evicts sessions idle longer than idleTimeout until ctx ends.
func (st *Store) ReapLoop(ctx context.Context, idleTimeout time.Duration, logf func(format string, args ...any)) {
	if idleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, id := range st.Reap(now.Add(-idleTimeout)) {
				if logf != nil {
					logf("GAMES: Reaped idle session %s", id)
				}
			}
		}
	}
}

// Close removes every session.
func (st *Store) Close() {
	st.mu.RLock()
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	st.mu.RUnlock()

	for _, id := range ids {
		st.Remove(id)
	}
}

// newSessionID generates a crypto-random session ID.
func newSessionID() string {
	buf := make([]byte, sessionIDLength)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}

	out := make([]byte, sessionIDLength)
	for i := range out {
		out[i] = sessionIDLetters[int(buf[i])%len(sessionIDLetters)]
	}

	return string(out)
}
