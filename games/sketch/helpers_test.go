package sketch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recorder is an in-memory Channel that keeps every broadcast.
type recorder struct {
	mu     sync.Mutex
	msgs   map[string][]any
	subs   map[string]map[Subscriber]bool
	closed map[string]bool
}

func newRecorder() *recorder {
	return &recorder{
		msgs:   make(map[string][]any),
		subs:   make(map[string]map[Subscriber]bool),
		closed: make(map[string]bool),
	}
}

func (r *recorder) Subscribe(id string, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs[id] == nil {
		r.subs[id] = make(map[Subscriber]bool)
	}
	r.subs[id][sub] = true
}

func (r *recorder) Unsubscribe(id string, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs[id], sub)
}

func (r *recorder) Broadcast(id string, msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs[id] = append(r.msgs[id], msg)
}

func (r *recorder) Close(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed[id] = true
	delete(r.subs, id)
}

func (r *recorder) isClosed(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed[id]
}

func (r *recorder) subscribers(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[id])
}

func messagesOf[T any](r *recorder, id string) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []T
	for _, m := range r.msgs[id] {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// fakeScorer scores a drawing by looking it up; unknown drawings score 10.
type fakeScorer struct {
	mu     sync.Mutex
	calls  []string
	scores map[string]int
	err    error
	gate   chan struct{}
}

func (f *fakeScorer) Score(ctx context.Context, reference, drawing string) (int, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, drawing)
	if f.err != nil {
		return 0, f.err
	}
	if s, ok := f.scores[drawing]; ok {
		return s, nil
	}
	return 10, nil
}

func (f *fakeScorer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fixture struct {
	ctrl   *Controller
	store  *Store
	ch     *recorder
	scorer *fakeScorer

	mu          sync.Mutex
	transitions [][2]Status
}

func newFixture(t *testing.T, settings Settings, images ...string) *fixture {
	t.Helper()

	if len(images) == 0 {
		images = []string{"ref-a", "ref-b", "ref-c"}
	}
	pool, err := NewImagePool(images, nil)
	require.NoError(t, err)

	f := &fixture{
		ch:     newRecorder(),
		scorer: &fakeScorer{scores: map[string]int{}},
	}
	f.store = NewStore(f.ch.Close)
	t.Cleanup(f.store.Close)

	settings.OnTransition = func(_ string, from, to Status) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.transitions = append(f.transitions, [2]Status{from, to})
	}
	f.ctrl = NewController(f.store, f.scorer, f.ch, pool, settings)

	return f
}

// twoPlayers creates a session and joins Alice then Bob.
func (f *fixture) twoPlayers(t *testing.T) (id, alice, bob string) {
	t.Helper()
	ctx := context.Background()

	snap, err := f.ctrl.Create(ctx)
	require.NoError(t, err)

	alice, err = f.ctrl.Join(ctx, snap.ID, "Alice", nil)
	require.NoError(t, err)
	bob, err = f.ctrl.Join(ctx, snap.ID, "Bob", nil)
	require.NoError(t, err)

	return snap.ID, alice, bob
}

func (f *fixture) status(t *testing.T, id string) Status {
	t.Helper()

	snap, err := f.ctrl.Snapshot(context.Background(), id)
	require.NoError(t, err)
	return snap.Status
}

func (f *fixture) waitResults(t *testing.T, id string, n int) []GameResultsMessage {
	t.Helper()

	require.Eventually(t, func() bool {
		return len(messagesOf[GameResultsMessage](f.ch, id)) >= n
	}, 2*time.Second, 5*time.Millisecond)

	return messagesOf[GameResultsMessage](f.ch, id)
}

var errBoom = errors.New("boom")
