// Package session is the single-writer store for workflow state. Each
// session is owned by one actor goroutine that loads, mutates and persists
// its AgentState; operations on different sessions run in parallel while
// operations on the same session are applied one at a time in arrival order.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/logoforge/internal/domain"
	"github.com/ashureev/logoforge/internal/store"
	"github.com/ashureev/logoforge/internal/workflow"
)

var (
	// ErrSessionNotFound is returned for operations on a session that was
	// never initialized or has been cleared.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionIDRequired is returned when a call omits the session id.
	ErrSessionIDRequired = errors.New("session id is required")

	// ErrOwnerMismatch is returned when a session is initialized by a user
	// other than its owner.
	ErrOwnerMismatch = errors.New("session belongs to another user")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session store closed")

	errPanicked = errors.New("session operation panicked")
)

// CommitFunc observes every committed change. prev is nil when a session is
// created; next is nil when it is cleared. Observers run on the owning actor
// and must not block.
type CommitFunc func(prev, next *domain.AgentState)

// Options tunes a Store. Zero values pick sensible defaults.
type Options struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
	Clock          func() time.Time
	Logger         *slog.Logger
}

// Store routes operations to per-session actors.
type Store struct {
	repo   store.Repository
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	actors   map[string]*actor
	retiring map[string]*actor
	closed   bool

	obsMu     sync.RWMutex
	observers []CommitFunc
}

// New creates a Store backed by repo.
func New(repo store.Repository, opts Options) *Store {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 50 * time.Millisecond
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		repo:     repo,
		opts:     opts,
		logger:   logger,
		actors:   make(map[string]*actor),
		retiring: make(map[string]*actor),
	}
}

// OnCommit registers an observer for committed changes.
func (s *Store) OnCommit(fn CommitFunc) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *Store) notify(prev, next *domain.AgentState) {
	s.obsMu.RLock()
	observers := s.observers
	s.obsMu.RUnlock()
	for _, fn := range observers {
		fn(prev.Clone(), next.Clone())
	}
}

func (s *Store) now() time.Time {
	return s.opts.Clock().UTC()
}

// actorFor returns the live actor for id, starting one if needed.
func (s *Store) actorFor(id string) (*actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if a, ok := s.actors[id]; ok {
		return a, nil
	}

	a := newActor(id, s)
	s.actors[id] = a

	var predecessor <-chan struct{}
	if old, ok := s.retiring[id]; ok {
		predecessor = old.done
	}
	go a.run(predecessor)
	return a, nil
}

func (s *Store) actorExited(a *actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retiring[a.id] == a {
		delete(s.retiring, a.id)
	}
	if s.actors[a.id] == a {
		delete(s.actors, a.id)
	}
}

// do submits op to the session's actor and waits for its result. Once the
// actor accepts a request it runs to completion; ctx only bounds the wait to
// be accepted.
func (s *Store) do(ctx context.Context, id string, op opFunc) (*domain.AgentState, error) {
	if id == "" {
		return nil, ErrSessionIDRequired
	}
	for {
		a, err := s.actorFor(id)
		if err != nil {
			return nil, err
		}
		req := request{ctx: ctx, op: op, reply: make(chan result, 1)}
		select {
		case a.inbox <- req:
			res := <-req.reply
			return res.state, res.err
		case <-a.done:
			// Evicted between lookup and send; retry on a fresh actor.
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Init returns the session's state, creating it in the discovery phase if
// it does not exist yet.
func (s *Store) Init(ctx context.Context, sessionID, userID string) (*domain.AgentState, error) {
	return s.do(ctx, sessionID, func(ctx context.Context, a *actor) (*domain.AgentState, error) {
		state, err := a.current(ctx)
		if err != nil {
			return nil, err
		}
		if state != nil {
			if userID != "" && state.UserID != "" && state.UserID != userID {
				return nil, ErrOwnerMismatch
			}
			return state.Clone(), nil
		}
		next := domain.NewAgentState(sessionID, userID, s.now())
		s.logger.Info("session created", "session_id", sessionID, "user_id", userID)
		return a.commit(ctx, next)
	})
}

// Get returns a copy of the session's state.
func (s *Store) Get(ctx context.Context, sessionID string) (*domain.AgentState, error) {
	return s.do(ctx, sessionID, func(ctx context.Context, a *actor) (*domain.AgentState, error) {
		state, err := a.existing(ctx)
		if err != nil {
			return nil, err
		}
		return state.Clone(), nil
	})
}

// Set replaces the whole state. The replacement must keep the session's
// identity, owner, phase, action history and iteration counts intact.
func (s *Store) Set(ctx context.Context, sessionID string, replacement *domain.AgentState) (*domain.AgentState, error) {
	if replacement == nil {
		return nil, fmt.Errorf("%w: state is required", ErrInvalidState)
	}
	return s.do(ctx, sessionID, func(ctx context.Context, a *actor) (*domain.AgentState, error) {
		state, err := a.existing(ctx)
		if err != nil {
			return nil, err
		}
		next := replacement.Clone()
		next.SessionID = state.SessionID
		next.CreatedAt = state.CreatedAt
		if next.UserID == "" {
			next.UserID = state.UserID
		}
		next.UpdatedAt = s.now()
		if err := validateRawReplacement(state, next); err != nil {
			return nil, err
		}
		return a.commit(ctx, next)
	})
}

// immutableFields cannot be changed through Update.
var immutableFields = map[string]bool{
	"session_id": true,
	"user_id":    true,
	"created_at": true,
}

// Update shallow-merges patch into the state: each top-level key replaces
// the corresponding field wholesale.
func (s *Store) Update(ctx context.Context, sessionID string, patch map[string]json.RawMessage) (*domain.AgentState, error) {
	return s.do(ctx, sessionID, func(ctx context.Context, a *actor) (*domain.AgentState, error) {
		state, err := a.existing(ctx)
		if err != nil {
			return nil, err
		}
		next, err := mergeState(state, patch)
		if err != nil {
			return nil, err
		}
		next.UpdatedAt = s.now()
		if err := validateRawReplacement(state, next); err != nil {
			return nil, err
		}
		return a.commit(ctx, next)
	})
}

func mergeState(state *domain.AgentState, patch map[string]json.RawMessage) (*domain.AgentState, error) {
	data, err := state.Marshal()
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode state fields: %w", err)
	}
	for key, value := range patch {
		if immutableFields[key] {
			return nil, &InvariantError{Field: key, Reason: "cannot be changed"}
		}
		if _, ok := fields[key]; !ok {
			return nil, &InvariantError{Field: key, Reason: "unknown field"}
		}
		fields[key] = value
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode merged state: %w", err)
	}
	next, err := domain.UnmarshalAgentState(merged)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return next, nil
}

// TransitionPhase moves the session to phase to, enforcing adjacency, the
// approval gate and the destination's iteration ceiling. The current
// approval request is cleared and a phase_transition action is recorded.
func (s *Store) TransitionPhase(ctx context.Context, sessionID string, to domain.Phase) (*domain.AgentState, error) {
	return s.do(ctx, sessionID, func(ctx context.Context, a *actor) (*domain.AgentState, error) {
		state, err := a.existing(ctx)
		if err != nil {
			return nil, err
		}
		if err := workflow.ValidateTransition(state, to); err != nil {
			return nil, err
		}
		next := workflow.ApplyTransition(state, to, s.now())
		s.logger.Info("phase transition",
			"session_id", sessionID, "from", state.CurrentPhase, "to", to)
		return a.commit(ctx, next)
	})
}

// IncrementIteration consumes one iteration of the current phase.
func (s *Store) IncrementIteration(ctx context.Context, sessionID string) (*domain.AgentState, error) {
	return s.do(ctx, sessionID, func(ctx context.Context, a *actor) (*domain.AgentState, error) {
		state, err := a.existing(ctx)
		if err != nil {
			return nil, err
		}
		now := s.now()
		next, err := workflow.IncrementIteration(state, now)
		if err != nil {
			return nil, err
		}
		appendIterationAction(next, now)
		return a.commit(ctx, next)
	})
}

func appendIterationAction(state *domain.AgentState, now time.Time) {
	payload, _ := json.Marshal(map[string]any{
		"phase": state.CurrentPhase,
		"count": state.IterationCounts[state.CurrentPhase],
	})
	state.Actions = append(state.Actions, domain.AgentAction{
		ID:        workflow.NewActionID(now),
		Type:      domain.ActionAgentAction,
		Name:      domain.ActionNameIteration,
		Phase:     state.CurrentPhase,
		Payload:   payload,
		Timestamp: now,
	})
}

// AppendAction records an action. Missing ids, timestamps and phases are
// filled in.
func (s *Store) AppendAction(ctx context.Context, sessionID string, action domain.AgentAction) (*domain.AgentState, error) {
	if !action.Type.IsValid() {
		return nil, &InvariantError{Field: "type", Reason: fmt.Sprintf("unknown action type %q", action.Type)}
	}
	return s.do(ctx, sessionID, func(ctx context.Context, a *actor) (*domain.AgentState, error) {
		state, err := a.existing(ctx)
		if err != nil {
			return nil, err
		}
		now := s.now()
		next := state.Clone()
		next.Actions = append(next.Actions, stampAction(action, state.CurrentPhase, now))
		next.UpdatedAt = now
		return a.commit(ctx, next)
	})
}

func stampAction(action domain.AgentAction, phase domain.Phase, now time.Time) domain.AgentAction {
	if action.Timestamp.IsZero() {
		action.Timestamp = now
	}
	if action.ID == "" {
		action.ID = workflow.NewActionID(action.Timestamp)
	}
	if action.Phase == "" {
		action.Phase = phase
	}
	return action
}

// MutateFunc computes the next state from a private copy of the current one.
// Returning a nil state leaves the session unchanged.
type MutateFunc func(state *domain.AgentState) (*domain.AgentState, error)

// Mutate runs fn on the session's actor and commits its result. It is the
// read-modify-write primitive for compound workflow operations.
func (s *Store) Mutate(ctx context.Context, sessionID string, fn MutateFunc) (*domain.AgentState, error) {
	return s.do(ctx, sessionID, func(ctx context.Context, a *actor) (*domain.AgentState, error) {
		state, err := a.existing(ctx)
		if err != nil {
			return nil, err
		}
		next, err := fn(state.Clone())
		if err != nil {
			return nil, err
		}
		if next == nil {
			return state.Clone(), nil
		}
		next.SessionID = state.SessionID
		next.CreatedAt = state.CreatedAt
		next.UpdatedAt = s.now()
		if err := validateReplacement(state, next); err != nil {
			return nil, err
		}
		return a.commit(ctx, next)
	})
}

// Clear deletes the session's state.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	_, err := s.do(ctx, sessionID, func(ctx context.Context, a *actor) (*domain.AgentState, error) {
		if _, err := a.existing(ctx); err != nil {
			return nil, err
		}
		if err := a.remove(ctx); err != nil {
			return nil, err
		}
		s.logger.Info("session cleared", "session_id", sessionID)
		return nil, nil
	})
	return err
}

// Evict stops actors that have been idle longer than idle. Their state stays
// persisted and is reloaded on next use.
func (s *Store) Evict(idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	return s.evictWhere(func(a *actor) bool {
		return !a.idleSince().After(cutoff)
	})
}

// evictStale stops actors whose cached state was last written before cutoff.
// The sweeper calls it around a retention purge so a cached copy cannot
// write a purged session back.
func (s *Store) evictStale(cutoff time.Time) int {
	return s.evictWhere(func(a *actor) bool {
		return a.cachedBefore(cutoff)
	})
}

func (s *Store) evictWhere(match func(*actor) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, a := range s.actors {
		if !match(a) {
			continue
		}
		delete(s.actors, id)
		s.retiring[id] = a
		close(a.quit)
		evicted++
	}
	return evicted
}

// ActiveSessions returns the number of live actors.
func (s *Store) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actors)
}

// Ping checks the backing repository.
func (s *Store) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Close stops every actor and waits for them to exit. In-flight operations
// finish first. The repository is left open.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	var waiting []*actor
	for id, a := range s.actors {
		delete(s.actors, id)
		close(a.quit)
		waiting = append(waiting, a)
	}
	for _, a := range s.retiring {
		waiting = append(waiting, a)
	}
	s.mu.Unlock()

	for _, a := range waiting {
		<-a.done
	}
}
