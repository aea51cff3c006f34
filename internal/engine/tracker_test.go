package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTrackerClaimExpiryBoundary(t *testing.T) {
	tracker := NewAssignmentTracker()
	start := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)

	require.True(t, tracker.Claim("shopper-1", "order-a", start))

	tracker.Sweep(start.Add(59 * time.Second))
	require.True(t, tracker.Claimed("order-a"), "claim must survive at 59s")

	tracker.Sweep(start.Add(61 * time.Second))
	require.False(t, tracker.Claimed("order-a"), "claim must be gone at 61s")
}

func TestTrackerOneClaimPerShopper(t *testing.T) {
	tracker := NewAssignmentTracker()
	now := time.Now()

	require.True(t, tracker.Claim("shopper-1", "order-a", now))
	require.False(t, tracker.Claim("shopper-1", "order-b", now),
		"second claim while holding one must be refused")
	require.True(t, tracker.Holds("shopper-1", now))

	// Once the first claim ages out the shopper may claim again.
	later := now.Add(ClaimTTL)
	require.False(t, tracker.Holds("shopper-1", later))
	require.True(t, tracker.Claim("shopper-1", "order-b", later))
}

func TestTrackerRefusesDuplicateOrderClaim(t *testing.T) {
	tracker := NewAssignmentTracker()
	now := time.Now()

	require.True(t, tracker.Claim("shopper-1", "order-a", now))
	require.False(t, tracker.Claim("shopper-2", "order-a", now))
}

func TestTrackerReleaseAndReset(t *testing.T) {
	tracker := NewAssignmentTracker()
	now := time.Now()

	require.True(t, tracker.Claim("shopper-1", "order-a", now))
	tracker.Release("order-a")
	require.False(t, tracker.Claimed("order-a"))
	require.False(t, tracker.Holds("shopper-1", now))

	require.True(t, tracker.Claim("shopper-1", "order-b", now))
	tracker.Reset()
	require.Zero(t, tracker.Len())
}

func TestTrackerReleaseForScopesToOneShopper(t *testing.T) {
	tracker := NewAssignmentTracker()
	now := time.Now()

	require.True(t, tracker.Claim("shopper-1", "order-a", now))
	require.True(t, tracker.Claim("shopper-2", "order-b", now))

	tracker.ReleaseFor("shopper-1")
	require.False(t, tracker.Claimed("order-a"))
	require.True(t, tracker.Claimed("order-b"), "other shoppers keep their claims")
}
