package engine

import (
	"sync"
	"time"

	"github.com/ihuzaapp/shopperd/internal/models"
	"github.com/ihuzaapp/shopperd/pkg/metrics"
)

// ClaimTTL is how long a local claim debounces repeat notifications for the
// same order. The ledger entry is purged once this elapses regardless of
// outcome; the authoritative assignment lives server-side.
const ClaimTTL = 60 * time.Second

// AssignmentTracker is the in-memory ledger of local order claims. It is
// never persisted across restarts. The poll loop owns all claim creation;
// pushed orders bypass the ledger entirely. A mutex serializes the poll
// goroutine against accept handlers releasing claims.
type AssignmentTracker struct {
	mu     sync.Mutex
	claims []models.BatchAssignment
	ttl    time.Duration
}

// TrackerOption adjusts ledger construction.
type TrackerOption func(*AssignmentTracker)

// WithClaimTTL overrides the claim lifetime. Non-positive values keep the
// default.
func WithClaimTTL(ttl time.Duration) TrackerOption {
	return func(t *AssignmentTracker) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

// NewAssignmentTracker constructs an empty ledger with the standard TTL.
func NewAssignmentTracker(opts ...TrackerOption) *AssignmentTracker {
	t := &AssignmentTracker{ttl: ClaimTTL}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Sweep drops entries whose age has reached the TTL at the supplied instant.
func (t *AssignmentTracker) Sweep(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.claims[:0]
	for _, claim := range t.claims {
		if !claim.ExpiredAt(now, t.ttl) {
			kept = append(kept, claim)
		}
	}
	t.claims = kept
	metrics.ActiveClaims.Set(float64(len(t.claims)))
}

// Claim records a new local claim. It refuses a second claim while the
// shopper already holds an unexpired one, and refuses re-claiming an order
// already in the ledger.
func (t *AssignmentTracker) Claim(shopperID, orderID string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, claim := range t.claims {
		if claim.ExpiredAt(now, t.ttl) {
			continue
		}
		if claim.ShopperID == shopperID || claim.OrderID == orderID {
			return false
		}
	}

	t.claims = append(t.claims, models.BatchAssignment{
		ShopperID:  shopperID,
		OrderID:    orderID,
		AssignedAt: now,
	})
	metrics.ActiveClaims.Set(float64(len(t.claims)))
	return true
}

// Holds reports whether the shopper has an unexpired claim.
func (t *AssignmentTracker) Holds(shopperID string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, claim := range t.claims {
		if claim.ShopperID == shopperID && !claim.ExpiredAt(now, t.ttl) {
			return true
		}
	}
	return false
}

// Claimed reports whether the order appears in the ledger, expired or not.
// Callers Sweep first, so in practice this answers "unexpired".
func (t *AssignmentTracker) Claimed(orderID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, claim := range t.claims {
		if claim.OrderID == orderID {
			return true
		}
	}
	return false
}

// Release removes the claim for an order, used when the server accepts the
// assignment before the TTL runs out.
func (t *AssignmentTracker) Release(orderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.claims[:0]
	for _, claim := range t.claims {
		if claim.OrderID != orderID {
			kept = append(kept, claim)
		}
	}
	t.claims = kept
	metrics.ActiveClaims.Set(float64(len(t.claims)))
}

// ReleaseFor drops every claim the shopper holds, used when their session
// restarts. Other shoppers' claims are untouched.
func (t *AssignmentTracker) ReleaseFor(shopperID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.claims[:0]
	for _, claim := range t.claims {
		if claim.ShopperID != shopperID {
			kept = append(kept, claim)
		}
	}
	t.claims = kept
	metrics.ActiveClaims.Set(float64(len(t.claims)))
}

// Reset empties the whole ledger.
func (t *AssignmentTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.claims = nil
	metrics.ActiveClaims.Set(0)
}

// Len reports the current ledger size, expired entries included.
func (t *AssignmentTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.claims)
}
