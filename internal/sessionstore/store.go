// Package sessionstore implements the session store contract (C2): the
// append-only conversation log the agent runtime reads context from and
// appends turns to. Grounded on the teacher's repository-interface
// pattern (small store interfaces with an in-memory reference
// implementation used by tests), generalized from the teacher's
// multi-channel Message/Session rows to the agent core's own
// models.ChatMessage.
package sessionstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// Store is the contract the agent runtime uses to load and persist a
// session's conversation history. Implementations must be safe for
// concurrent use by a single session's runtime plus readers.
type Store interface {
	// Append adds messages to the end of the session's history.
	Append(ctx context.Context, sessionID string, messages ...models.ChatMessage) error
	// History returns the full conversation for a session, in order.
	History(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	// Replace overwrites a session's entire history, used after pruning
	// or summarization collapses it.
	Replace(ctx context.Context, sessionID string, messages []models.ChatMessage) error
}

// ErrSessionNotFound indicates the requested session has no history yet.
// History returns an empty slice rather than this error; it is reserved
// for operations that require an existing session.
type ErrSessionNotFound struct {
	SessionID string
}

func (e *ErrSessionNotFound) Error() string {
	return fmt.Sprintf("sessionstore: session %q not found", e.SessionID)
}

// InMemory is a Store backed by an in-process map, used by the demo CLI
// and by tests. It is not durable across process restarts.
type InMemory struct {
	mu       sync.RWMutex
	sessions map[string][]models.ChatMessage
}

// NewInMemory creates an empty in-memory Store.
func NewInMemory() *InMemory {
	return &InMemory{sessions: make(map[string][]models.ChatMessage)}
}

func (s *InMemory) Append(ctx context.Context, sessionID string, messages ...models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], messages...)
	return nil
}

func (s *InMemory) History(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing := s.sessions[sessionID]
	out := make([]models.ChatMessage, len(existing))
	copy(out, existing)
	return out, nil
}

func (s *InMemory) Replace(ctx context.Context, sessionID string, messages []models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]models.ChatMessage, len(messages))
	copy(cp, messages)
	s.sessions[sessionID] = cp
	return nil
}
