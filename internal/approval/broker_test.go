package approval

import (
	"context"
	"testing"
	"time"

	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

func TestAwaitResolve(t *testing.T) {
	b := New()
	req := models.ApprovalRequest{RequestID: NewRequestID(), ToolName: "bash"}

	go func() {
		time.Sleep(10 * time.Millisecond)
		if !b.Resolve(models.ApprovalResponse{RequestID: req.RequestID, Decision: models.ApprovalApproved}) {
			t.Error("Resolve returned false for a pending request")
		}
	}()

	resp, err := b.Await(context.Background(), req, time.Second)
	if err != nil {
		t.Fatalf("Await returned error: %v", err)
	}
	if resp.Decision != models.ApprovalApproved {
		t.Fatalf("decision = %v, want approved", resp.Decision)
	}
}

func TestAwaitTimeout(t *testing.T) {
	b := New()
	req := models.ApprovalRequest{RequestID: NewRequestID(), ToolName: "bash"}

	_, err := b.Await(context.Background(), req, 10*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if b.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0 after timeout cleanup", b.Pending())
	}
}

func TestResolveUnknownRequestIsNoOp(t *testing.T) {
	b := New()
	if b.Resolve(models.ApprovalResponse{RequestID: "does-not-exist"}) {
		t.Fatal("Resolve returned true for an unknown request")
	}
}

func TestAwaitContextCancelled(t *testing.T) {
	b := New()
	req := models.ApprovalRequest{RequestID: NewRequestID()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Await(ctx, req, time.Second)
	if err == nil {
		t.Fatal("expected context cancellation error")
	}
}

func TestOnlyOneResolveWins(t *testing.T) {
	b := New()
	req := models.ApprovalRequest{RequestID: NewRequestID()}

	resultCh := make(chan bool, 2)
	go func() {
		resultCh <- b.Resolve(models.ApprovalResponse{RequestID: req.RequestID, Decision: models.ApprovalApproved})
	}()

	resp, err := b.Await(context.Background(), req, time.Second)
	if err != nil {
		t.Fatalf("Await error: %v", err)
	}
	if resp.Decision != models.ApprovalApproved {
		t.Fatalf("decision = %v", resp.Decision)
	}

	// A second resolve after the waiter is gone must be a no-op.
	if b.Resolve(models.ApprovalResponse{RequestID: req.RequestID, Decision: models.ApprovalDenied}) {
		t.Fatal("second Resolve should have found no waiter")
	}
}

func TestFindByPrefixUniqueMatch(t *testing.T) {
	b := New()
	req := models.ApprovalRequest{RequestID: "abcdef12-3456", ToolName: "shell"}
	go b.Await(context.Background(), req, time.Second)
	waitForPending(t, b, 1)

	id, ok := b.FindByPrefix("abcdef")
	if !ok || id != req.RequestID {
		t.Fatalf("FindByPrefix(%q) = (%q, %v), want (%q, true)", "abcdef", id, ok, req.RequestID)
	}
}

func TestFindByPrefixAmbiguousOrUnknown(t *testing.T) {
	b := New()
	req1 := models.ApprovalRequest{RequestID: "abc-111"}
	req2 := models.ApprovalRequest{RequestID: "abc-222"}
	go b.Await(context.Background(), req1, time.Second)
	go b.Await(context.Background(), req2, time.Second)
	waitForPending(t, b, 2)

	if _, ok := b.FindByPrefix("abc-"); ok {
		t.Fatal("FindByPrefix should refuse an ambiguous prefix")
	}
	if _, ok := b.FindByPrefix("zzz"); ok {
		t.Fatal("FindByPrefix should refuse an unknown prefix")
	}
}

func TestPendingRequestsSnapshot(t *testing.T) {
	b := New()
	req := models.ApprovalRequest{RequestID: NewRequestID(), ToolName: "shell", ToolInput: "ls -la"}
	go b.Await(context.Background(), req, time.Second)
	waitForPending(t, b, 1)

	pending := b.PendingRequests()
	if len(pending) != 1 || pending[0].RequestID != req.RequestID || pending[0].ToolInput != "ls -la" {
		t.Fatalf("PendingRequests() = %+v, want a single snapshot of %+v", pending, req)
	}
}

func waitForPending(t *testing.T, b *Broker, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if b.Pending() == n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Pending() never reached %d", n)
}
