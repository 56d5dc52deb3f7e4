package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ashureev/logoforge/internal/domain"
	"github.com/ashureev/logoforge/internal/shared"
)

// opFunc runs inside the actor goroutine with exclusive access to the session.
type opFunc func(ctx context.Context, a *actor) (*domain.AgentState, error)

type result struct {
	state *domain.AgentState
	err   error
}

type request struct {
	ctx   context.Context
	op    opFunc
	reply chan result
}

// actor owns one session's cached state. Every request for the session is
// received on inbox and handled to completion before the next one.
type actor struct {
	id       string
	store    *Store
	inbox    chan request
	quit     chan struct{}
	done     chan struct{}
	lastUsed atomic.Int64
	// UpdatedAt of the cached state in unix nanos; 0 when nothing is cached.
	cachedAt atomic.Int64

	// Owned by the run goroutine.
	state  *domain.AgentState
	loaded bool
}

func newActor(id string, s *Store) *actor {
	a := &actor{
		id:    id,
		store: s,
		inbox: make(chan request),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	a.touch(s.now())
	return a
}

func (a *actor) touch(t time.Time) {
	a.lastUsed.Store(t.UnixNano())
}

func (a *actor) idleSince() time.Time {
	return time.Unix(0, a.lastUsed.Load())
}

func (a *actor) cache(state *domain.AgentState) {
	a.state = state
	a.loaded = true
	if state == nil {
		a.cachedAt.Store(0)
		return
	}
	a.cachedAt.Store(state.UpdatedAt.UnixNano())
}

// cachedBefore reports whether the actor holds state last written before t.
func (a *actor) cachedBefore(t time.Time) bool {
	at := a.cachedAt.Load()
	return at != 0 && at < t.UnixNano()
}

// run processes requests until quit is closed. predecessor, when set, is the
// done channel of an evicted actor for the same session; the new actor waits
// for it so two actors never serve one session at the same time.
func (a *actor) run(predecessor <-chan struct{}) {
	defer a.store.actorExited(a)
	defer close(a.done)

	if predecessor != nil {
		<-predecessor
	}

	for {
		select {
		case req := <-a.inbox:
			a.touch(a.store.now())
			req.reply <- a.handle(req)
		case <-a.quit:
			return
		}
	}
}

func (a *actor) handle(req request) (res result) {
	if err := req.ctx.Err(); err != nil {
		return result{err: err}
	}
	defer func() {
		if r := recover(); r != nil {
			a.store.logger.Error("session operation panicked", "session_id", a.id, "panic", r)
			res = result{err: errPanicked}
		}
	}()
	state, err := req.op(req.ctx, a)
	return result{state: state, err: err}
}

// current returns the cached state, loading it on first use. A nil state
// means the session does not exist.
func (a *actor) current(ctx context.Context) (*domain.AgentState, error) {
	if a.loaded {
		return a.state, nil
	}
	state, err := a.store.repo.GetAgentState(ctx, a.id)
	if err != nil {
		return nil, err
	}
	a.cache(state)
	return a.state, nil
}

// existing is current but fails with ErrSessionNotFound for absent sessions.
func (a *actor) existing(ctx context.Context) (*domain.AgentState, error) {
	state, err := a.current(ctx)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, ErrSessionNotFound
	}
	return state, nil
}

// commit persists next and, only on success, makes it the cached state.
func (a *actor) commit(ctx context.Context, next *domain.AgentState) (*domain.AgentState, error) {
	s := a.store
	err := shared.RetryOnConflict(ctx, s.opts.MaxRetries, s.opts.RetryBaseDelay, func() error {
		return s.repo.UpsertAgentState(ctx, next)
	})
	if err != nil {
		s.logger.Error("failed to persist session state", "session_id", a.id, "error", err)
		return nil, err
	}

	prev := a.state
	a.cache(next)
	s.notify(prev, next)
	return next.Clone(), nil
}

// remove deletes the persisted state and drops the cache.
func (a *actor) remove(ctx context.Context) error {
	s := a.store
	err := shared.RetryOnConflict(ctx, s.opts.MaxRetries, s.opts.RetryBaseDelay, func() error {
		return s.repo.DeleteAgentState(ctx, a.id)
	})
	if err != nil {
		return err
	}
	prev := a.state
	a.cache(nil)
	s.notify(prev, nil)
	return nil
}
