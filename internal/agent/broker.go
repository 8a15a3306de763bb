package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/events"
	"github.com/haasonsaas/nexus/pkg/models"
)

// ErrApprovalTimedOut is returned by Request when no Respond call arrives
// before the request's timer fires.
var ErrApprovalTimedOut = errors.New("approval request timed out")

// ApprovalBroker is the rendezvous point between a tool call suspended by
// the Security Gate and a human decision delivered out-of-band, over any
// channel. The pending map is guarded by a mutex held only across map
// mutation, never across a channel receive.
type ApprovalBroker struct {
	bus *events.Bus

	mu      sync.Mutex
	pending map[string]*pendingApproval
}

type pendingApproval struct {
	request  models.ApprovalRequest
	resultCh chan models.ApprovalDecision
	timer    *time.Timer
}

// NewApprovalBroker creates a broker that publishes ApprovalRequested and
// ApprovalResolved events on bus.
func NewApprovalBroker(bus *events.Bus) *ApprovalBroker {
	return &ApprovalBroker{
		bus:     bus,
		pending: make(map[string]*pendingApproval),
	}
}

// Request registers a pending approval, publishes ApprovalRequested, and
// blocks until Respond is called, the timeout elapses, or ctx is
// cancelled. The timeout is taken from timeoutSecs; a non-positive value
// falls back to 300s.
func (b *ApprovalBroker) Request(ctx context.Context, req models.ApprovalRequest, timeoutSecs int) (models.ApprovalDecision, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}
	if timeoutSecs <= 0 {
		timeoutSecs = 300
	}

	resultCh := make(chan models.ApprovalDecision, 1)
	timer := time.NewTimer(time.Duration(timeoutSecs) * time.Second)

	b.mu.Lock()
	b.pending[req.ID] = &pendingApproval{request: req, resultCh: resultCh, timer: timer}
	b.mu.Unlock()

	if b.bus != nil {
		b.bus.Publish(models.AgentEvent{
			Type:     models.AgentEventApprovalRequested,
			Time:     time.Now(),
			Approval: &models.ApprovalEventPayload{Request: &req},
		})
	}

	select {
	case decision := <-resultCh:
		timer.Stop()
		return decision, nil
	case <-timer.C:
		b.mu.Lock()
		delete(b.pending, req.ID)
		b.mu.Unlock()
		reason := fmt.Sprintf("approval timed out after %d seconds", timeoutSecs)
		return models.ApprovalDecision{Kind: models.ApprovalTimedOut, Reason: reason}, ErrApprovalTimedOut
	case <-ctx.Done():
		timer.Stop()
		b.mu.Lock()
		delete(b.pending, req.ID)
		b.mu.Unlock()
		return models.ApprovalDecision{Kind: models.ApprovalTimedOut}, ctx.Err()
	}
}

// Respond resolves a pending approval. Returns true if a matching request
// was found and resolved; false (a no-op) if the id is unknown or was
// already resolved. A vanished receiver (the requester already timed out)
// is not an error: the send into resultCh is simply discarded.
//
// The remove-then-emit sequence runs entirely under the mutex, guaranteeing
// at-most-once resolution: the first Respond call for a given id wins.
func (b *ApprovalBroker) Respond(requestID string, decision models.ApprovalDecision) bool {
	b.mu.Lock()
	pending, ok := b.pending[requestID]
	if !ok {
		b.mu.Unlock()
		return false
	}
	delete(b.pending, requestID)
	b.mu.Unlock()

	pending.timer.Stop()

	select {
	case pending.resultCh <- decision:
	default:
	}

	if b.bus != nil {
		b.bus.Publish(models.AgentEvent{
			Type: models.AgentEventApprovalResolved,
			Time: time.Now(),
			Approval: &models.ApprovalEventPayload{
				RequestID: requestID,
				Approved:  decision.Approved(),
			},
		})
	}
	return true
}

// PendingRequests returns a snapshot of all currently outstanding requests.
func (b *ApprovalBroker) PendingRequests() []models.ApprovalRequest {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.ApprovalRequest, 0, len(b.pending))
	for _, p := range b.pending {
		out = append(out, p.request)
	}
	return out
}

// FindByPrefix returns the id of a pending request whose id starts with
// prefix, for CLI/channel operators who type short ids. If more than one
// matches, an arbitrary match is returned.
func (b *ApprovalBroker) FindByPrefix(prefix string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id := range b.pending {
		if strings.HasPrefix(id, prefix) {
			return id, true
		}
	}
	return "", false
}
