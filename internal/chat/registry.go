package chat

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/handoff-chat/internal/domain"
	"github.com/ashureev/handoff-chat/internal/session"
)

// ErrTurnInProgress is returned when a second turn is submitted for a
// conversation whose provider call is still outstanding.
var ErrTurnInProgress = errors.New("a turn is already in progress for this conversation")

// Entry is one tab session's conversation.
type Entry struct {
	mu       sync.Mutex
	conv     domain.Conversation
	model    string
	busy     bool
	lastUsed time.Time
}

// Snapshot returns the current conversation and selected model.
func (e *Entry) Snapshot() (domain.Conversation, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv, e.model
}

// Begin marks the entry busy and returns the conversation to run a turn
// against. It fails with ErrTurnInProgress if a turn is outstanding.
func (e *Entry) Begin() (domain.Conversation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return domain.Conversation{}, ErrTurnInProgress
	}
	e.busy = true
	e.lastUsed = time.Now()
	return e.conv, nil
}

// Finish clears the busy flag and stores conv. A zero-length conv keeps the
// previous log, which is how failed turns leave the conversation untouched.
func (e *Entry) Finish(conv domain.Conversation, model string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if conv.Len() > 0 {
		e.conv = conv
	}
	if model != "" {
		e.model = model
	}
	e.busy = false
	e.lastUsed = time.Now()
}

// Reset replaces the log with a fresh seed. It fails while a turn is
// outstanding so a late reply cannot land on the new conversation.
func (e *Entry) Reset() (domain.Conversation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return domain.Conversation{}, ErrTurnInProgress
	}
	e.conv = session.Reset()
	e.lastUsed = time.Now()
	return e.conv, nil
}

func (e *Entry) idleSince() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastUsed, e.busy
}

// Registry holds the live conversations, keyed by user and tab session.
// Nothing in it survives a restart.
type Registry struct {
	mu           sync.Mutex
	entries      map[string]map[string]*Entry
	defaultModel string
	now          func() time.Time
}

// NewRegistry creates an empty registry. New conversations start on
// defaultModel.
func NewRegistry(defaultModel string) *Registry {
	return &Registry{
		entries:      make(map[string]map[string]*Entry),
		defaultModel: defaultModel,
		now:          time.Now,
	}
}

// Acquire returns the entry for userID/sessionID, seeding it on first use.
func (r *Registry) Acquire(userID, sessionID string) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, ok := r.entries[userID]
	if !ok {
		sessions = make(map[string]*Entry)
		r.entries[userID] = sessions
	}
	e, ok := sessions[sessionID]
	if !ok {
		e = &Entry{
			conv:     session.Initialize(),
			model:    r.defaultModel,
			lastUsed: r.now(),
		}
		sessions[sessionID] = e
		slog.Debug("Conversation created", "user_id", userID, "session_id", sessionID)
	}
	return e
}

// Sweep drops entries idle for longer than ttl and returns how many were
// removed. Busy entries are never dropped.
func (r *Registry) Sweep(ttl time.Duration) int {
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for userID, sessions := range r.entries {
		for sessionID, e := range sessions {
			lastUsed, busy := e.idleSince()
			if busy || lastUsed.After(cutoff) {
				continue
			}
			delete(sessions, sessionID)
			removed++
		}
		if len(sessions) == 0 {
			delete(r.entries, userID)
		}
	}
	return removed
}

// Close drops every tab session belonging to userID.
func (r *Registry) Close(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sessions, ok := r.entries[userID]; ok {
		slog.Info("Conversations closed", "user_id", userID, "count", len(sessions))
		delete(r.entries, userID)
	}
}

// Len returns the number of live conversations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, sessions := range r.entries {
		n += len(sessions)
	}
	return n
}
