package orders

import (
	"sort"
	"strings"

	"github.com/ihuzaapp/shopperd/internal/models"
)

// SortKey selects the dashboard ordering of the working order set.
type SortKey string

// Supported sort keys. "newest" keeps its historical label even though it
// orders by creation time ascending, oldest first.
const (
	SortNewest   SortKey = "newest"
	SortEarnings SortKey = "earnings"
	SortDistance SortKey = "distance"
	SortPriority SortKey = "priority"
)

// ParseSortKey normalizes a user-supplied sort key, defaulting to newest.
func ParseSortKey(raw string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(raw))) {
	case SortEarnings:
		return SortEarnings
	case SortDistance:
		return SortDistance
	case SortPriority:
		return SortPriority
	default:
		return SortNewest
	}
}

// Sort returns a sorted copy of the supplied orders. Sorting is a pure
// function of the set and the key; callers re-sort on every set mutation.
func Sort(items []models.Order, key SortKey) []models.Order {
	out := make([]models.Order, len(items))
	copy(out, items)

	switch key {
	case SortEarnings:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].EstimatedEarnings > out[j].EstimatedEarnings
		})
	case SortDistance:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].DistanceKM < out[j].DistanceKM
		})
	case SortPriority:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].PriorityLevel != out[j].PriorityLevel {
				return out[i].PriorityLevel > out[j].PriorityLevel
			}
			// Ties break toward the fresher order (ascending age).
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	default: // SortNewest
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		})
	}

	return out
}

// OldestFirst sorts candidates by creation time ascending, the order the
// poller claims them in.
func OldestFirst(items []models.Order) []models.Order {
	return Sort(items, SortNewest)
}
