// Package auditlog mirrors committed session actions to per-session NDJSON
// files. Writes happen on a background goroutine fed by a bounded queue so
// the session actors never wait on disk.
package auditlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/ashureev/logoforge/internal/domain"
)

// Event kinds written to the log.
const (
	EventSessionCreated = "session_created"
	EventAction         = "action"
	EventSessionCleared = "session_cleared"
)

// Entry is one NDJSON line.
type Entry struct {
	Timestamp time.Time           `json:"ts"`
	Event     string              `json:"event"`
	UserID    string              `json:"user_id"`
	SessionID string              `json:"session_id"`
	Phase     domain.Phase        `json:"phase,omitempty"`
	Action    *domain.AgentAction `json:"action,omitempty"`
}

// Config controls the writer.
type Config struct {
	Dir       string
	QueueSize int
}

// Writer appends entries to <dir>/<user>/<session>.ndjson.
type Writer struct {
	fs      afero.Fs
	dir     string
	queue   chan Entry
	logger  *slog.Logger
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// New starts a Writer on fs.
func New(fs afero.Fs, cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := fs.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log dir: %w", err)
	}
	w := &Writer{
		fs:     fs,
		dir:    cfg.Dir,
		queue:  make(chan Entry, cfg.QueueSize),
		logger: logger,
		done:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Log queues e. When the queue is full, or the writer is closed, the entry
// is dropped.
func (w *Writer) Log(e Entry) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.dropped.Add(1)
		return
	}
	select {
	case w.queue <- e:
	default:
		n := w.dropped.Add(1)
		w.logger.Warn("audit log queue full, dropping entry",
			"session_id", e.SessionID,
			"event", e.Event,
			"dropped_total", n)
	}
}

// Dropped returns how many entries were discarded on a full queue.
func (w *Writer) Dropped() int64 {
	return w.dropped.Load()
}

// Observe turns a committed state change into entries. Its signature matches
// session.CommitFunc.
func (w *Writer) Observe(prev, next *domain.AgentState) {
	switch {
	case prev == nil && next != nil:
		w.Log(Entry{
			Timestamp: next.CreatedAt,
			Event:     EventSessionCreated,
			UserID:    next.UserID,
			SessionID: next.SessionID,
			Phase:     next.CurrentPhase,
		})
		w.logActions(next, 0)
	case prev != nil && next == nil:
		w.Log(Entry{
			Timestamp: time.Now().UTC(),
			Event:     EventSessionCleared,
			UserID:    prev.UserID,
			SessionID: prev.SessionID,
			Phase:     prev.CurrentPhase,
		})
	case prev != nil && next != nil:
		w.logActions(next, len(prev.Actions))
	}
}

func (w *Writer) logActions(state *domain.AgentState, from int) {
	for i := from; i < len(state.Actions); i++ {
		action := state.Actions[i]
		w.Log(Entry{
			Timestamp: action.Timestamp,
			Event:     EventAction,
			UserID:    state.UserID,
			SessionID: state.SessionID,
			Phase:     action.Phase,
			Action:    &action,
		})
	}
}

func (w *Writer) run() {
	defer close(w.done)
	for e := range w.queue {
		if err := w.write(e); err != nil {
			w.logger.Error("failed to write audit log entry",
				"session_id", e.SessionID,
				"event", e.Event,
				"error", err)
		}
	}
}

func (w *Writer) write(e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	target := w.pathFor(e.UserID, e.SessionID)
	if err := w.fs.MkdirAll(path.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create user dir: %w", err)
	}
	f, err := w.fs.OpenFile(target, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", target, err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("append %s: %w", target, err)
	}
	return f.Close()
}

// Path returns the file a session's entries go to.
func (w *Writer) Path(userID, sessionID string) string {
	return w.pathFor(userID, sessionID)
}

func (w *Writer) pathFor(userID, sessionID string) string {
	if userID == "" {
		userID = "anonymous"
	}
	return path.Join(w.dir, safeSegment(userID), safeSegment(sessionID)+".ndjson")
}

// safeSegment keeps ids from escaping the log directory.
func safeSegment(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

// Close drains the queue and stops the writer.
func (w *Writer) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
	return nil
}
