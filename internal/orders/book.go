package orders

import (
	"sync"

	"github.com/ihuzaapp/shopperd/internal/models"
)

// Book is the deduplicating sink both delivery paths feed. Polled and pushed
// orders converge here keyed by order id, last write wins on conflicting
// fields, so the dashboard shows at most one entry per order no matter which
// channel surfaced it first. Each entry remembers which path wrote it last:
// a fresh fetch owns the polled entries and may retire them, while pushed
// entries only leave through an explicit expiry or accept.
type Book struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	order  models.Order
	pushed bool
}

// NewBook constructs an empty order book.
func NewBook() *Book {
	return &Book{entries: make(map[string]entry)}
}

// Upsert inserts or replaces a single pushed order. Returns true when the
// order was not previously present.
func (b *Book) Upsert(order models.Order) bool {
	if order.ID == "" {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	_, existed := b.entries[order.ID]
	b.entries[order.ID] = entry{order: order, pushed: true}
	return !existed
}

// Replace swaps the full polled set in. Polled entries the fetch no longer
// returns are gone (another shopper took them); pushed orders the poll does
// not know about survive. Orders present in both collapse to the fresher
// copy, which hands their ownership to the poll.
func (b *Book) Replace(polled []models.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fetched := make(map[string]struct{}, len(polled))
	for _, order := range polled {
		if order.ID == "" {
			continue
		}
		fetched[order.ID] = struct{}{}
		b.entries[order.ID] = entry{order: order}
	}

	for id, e := range b.entries {
		if e.pushed {
			continue
		}
		if _, ok := fetched[id]; !ok {
			delete(b.entries, id)
		}
	}
}

// Remove drops an order from the working set, typically on expiry or accept.
// Returns true when the order was present.
func (b *Book) Remove(orderID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.entries[orderID]
	delete(b.entries, orderID)
	return ok
}

// Get returns a single order by id.
func (b *Book) Get(orderID string) (models.Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.entries[orderID]
	return e.order, ok
}

// Snapshot returns the current set sorted by the supplied key.
func (b *Book) Snapshot(key SortKey) []models.Order {
	b.mu.RLock()
	items := make([]models.Order, 0, len(b.entries))
	for _, e := range b.entries {
		items = append(items, e.order)
	}
	b.mu.RUnlock()

	return Sort(items, key)
}

// Len reports the number of distinct orders in the set.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Clear empties the working set, used when the engine session stops.
func (b *Book) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[string]entry)
}
