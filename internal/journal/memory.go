package journal

import (
	"context"
	"sync"

	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

type event struct {
	toolName string
	success  bool
	rec      models.FailureRecord
}

// InMemory is a Journal backed by an in-process append-only log, used by
// the demo CLI and tests.
type InMemory struct {
	mu     sync.RWMutex
	nextID int64
	bySess map[string][]event
}

// NewInMemory creates an empty in-memory Journal.
func NewInMemory() *InMemory {
	return &InMemory{bySess: make(map[string][]event)}
}

func (j *InMemory) RecordFailure(ctx context.Context, rec models.FailureRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.nextID++
	rec.ID = j.nextID
	j.bySess[rec.SessionID] = append(j.bySess[rec.SessionID], event{toolName: rec.ToolName, success: false, rec: rec})
	return nil
}

func (j *InMemory) RecordSuccess(ctx context.Context, rec models.SuccessRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.nextID++
	j.bySess[rec.SessionID] = append(j.bySess[rec.SessionID], event{toolName: rec.ToolName, success: true})
	return nil
}

func (j *InMemory) RecentFailures(ctx context.Context, sessionID, toolName string, limit int) ([]models.FailureRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []models.FailureRecord
	events := j.bySess[sessionID]
	for i := len(events) - 1; i >= 0 && len(out) < limit; i-- {
		e := events[i]
		if e.toolName != toolName || e.success {
			continue
		}
		out = append(out, e.rec)
	}
	return out, nil
}

func (j *InMemory) FailureStreak(ctx context.Context, sessionID, toolName string) (int, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	streak := 0
	events := j.bySess[sessionID]
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		if e.toolName != toolName {
			continue
		}
		if e.success {
			break
		}
		streak++
	}
	return streak, nil
}
