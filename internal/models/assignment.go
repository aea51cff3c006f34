package models

import "time"

// BatchAssignment is a client-local, time-boxed claim on an order for
// notification purposes. It is not the authoritative server assignment; it
// only debounces redundant local alerts. An assignment expires sixty seconds
// after AssignedAt regardless of outcome.
type BatchAssignment struct {
	ShopperID  string    `json:"shopperId"`
	OrderID    string    `json:"orderId"`
	AssignedAt time.Time `json:"assignedAt"`
}

// ExpiredAt reports whether the claim has aged out at the supplied instant.
func (a BatchAssignment) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(a.AssignedAt) >= ttl
}
