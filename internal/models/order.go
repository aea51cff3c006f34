package models

import (
	"time"
)

// OrderType distinguishes the delivery job flavours the marketplace emits.
type OrderType string

// Known order types.
const (
	OrderTypeRegular    OrderType = "regular"
	OrderTypeReel       OrderType = "reel"
	OrderTypeRestaurant OrderType = "restaurant"
)

// Order is a candidate delivery job as returned by the marketplace backend.
// An Order is immutable once fetched; a fresh fetch or an expiry event
// supersedes it.
type Order struct {
	ID                string    `json:"id"`
	ShopName          string    `json:"shopName"`
	ShopAddress       string    `json:"shopAddress"`
	CustomerAddress   string    `json:"customerAddress"`
	DistanceKM        float64   `json:"distance"`
	ItemCount         int       `json:"itemsCount"`
	EstimatedEarnings float64   `json:"estimatedEarnings"`
	CreatedAt         time.Time `json:"createdAt"`

	// PriorityLevel is server-assigned, 1 (lowest) to 5 (highest).
	PriorityLevel int `json:"priorityLevel"`

	// TravelTimeMinutes is an optional server-side travel estimate.
	TravelTimeMinutes *int `json:"travelTimeMinutes,omitempty"`

	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	OrderType OrderType `json:"orderType"`

	// IsCombined marks a batch bundling multiple shop orders into one job.
	IsCombined bool `json:"isCombinedOrder,omitempty"`
}

// MinutesAgo derives the candidate age relative to the supplied wall clock.
func (o Order) MinutesAgo(now time.Time) int {
	age := now.Sub(o.CreatedAt)
	if age < 0 {
		return 0
	}
	return int(age.Minutes())
}

// Location is a device position used for nearby-order queries.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ShopperSchedule is one per-day-of-week working-hours row. Times are
// HH:MM:SS 24-hour strings; DayOfWeek follows ISO numbering (Monday=1,
// Sunday=7). The engine never caches schedules, so edits take effect on the
// next poll cycle.
type ShopperSchedule struct {
	DayOfWeek   int    `json:"day_of_week"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	IsAvailable bool   `json:"is_available"`
}
