// Package approval implements the approval broker (component C4): the
// request/response correlation point between a security gate that needs a
// human decision and whatever surface collects it. Grounded on the
// teacher's ApprovalChecker/ApprovalStore split in internal/agent/approval.go,
// generalized from a polled store to a direct one-shot channel wait since
// the agent core's gate blocks synchronously on the decision.
package approval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// waiter pairs a pending request's payload with the channel its Await call
// is blocked on, so FindByPrefix and PendingRequests can inspect the
// request without a separate bookkeeping map.
type waiter struct {
	req models.ApprovalRequest
	ch  chan models.ApprovalResponse
}

// Broker correlates ApprovalRequests with their eventual ApprovalResponse.
// At most one Resolve call wins per RequestID; later calls for the same ID
// are no-ops.
type Broker struct {
	mu      sync.Mutex
	waiters map[string]*waiter
}

// New creates an empty Broker.
func New() *Broker {
	return &Broker{waiters: make(map[string]*waiter)}
}

// NewRequestID generates a fresh approval request ID.
func NewRequestID() string {
	return uuid.NewString()
}

// Await registers a wait for req.RequestID and blocks until Resolve is
// called with a matching response, ctx is cancelled, or timeout elapses.
// The mutex is held only long enough to insert or remove the waiter entry,
// never across the channel receive.
func (b *Broker) Await(ctx context.Context, req models.ApprovalRequest, timeout time.Duration) (models.ApprovalResponse, error) {
	ch := make(chan models.ApprovalResponse, 1)

	b.mu.Lock()
	b.waiters[req.RequestID] = &waiter{req: req, ch: ch}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.waiters, req.RequestID)
		b.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		return resp, nil
	case <-timer.C:
		return models.ApprovalResponse{}, fmt.Errorf("approval: request %s timed out after %s", req.RequestID, timeout)
	case <-ctx.Done():
		return models.ApprovalResponse{}, ctx.Err()
	}
}

// Resolve delivers a decision for a pending request. It returns false if no
// waiter is registered for resp.RequestID (already resolved, timed out, or
// unknown). The first resolution for a given RequestID wins; the channel is
// buffered so a racing second Resolve call simply finds no waiter left.
func (b *Broker) Resolve(resp models.ApprovalResponse) bool {
	b.mu.Lock()
	w, ok := b.waiters[resp.RequestID]
	if ok {
		delete(b.waiters, resp.RequestID)
	}
	b.mu.Unlock()

	if !ok {
		return false
	}
	w.ch <- resp
	return true
}

// Pending reports how many approval requests are currently awaiting a
// decision, for diagnostics and tests.
func (b *Broker) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.waiters)
}

// FindByPrefix returns the single pending request ID that starts with
// prefix. It reports false if zero or more than one request matches, so a
// CLI operator's abbreviated "!approve <prefix>" command never resolves the
// wrong request on an ambiguous prefix.
func (b *Broker) FindByPrefix(prefix string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	match := ""
	count := 0
	for id := range b.waiters {
		if strings.HasPrefix(id, prefix) {
			match = id
			count++
		}
	}
	if count != 1 {
		return "", false
	}
	return match, true
}

// PendingRequests returns a snapshot of every ApprovalRequest currently
// awaiting a decision.
func (b *Broker) PendingRequests() []models.ApprovalRequest {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.ApprovalRequest, 0, len(b.waiters))
	for _, w := range b.waiters {
		out = append(out, w.req)
	}
	return out
}
