package history

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ihuzaapp/shopperd/internal/models"
	apperrors "github.com/ihuzaapp/shopperd/pkg/errors"
)

// Cap is the maximum number of history entries retained per shopper. Inserts
// beyond the cap drop the oldest entries.
const Cap = 50

// Store is the persisted notification history: append-only, capped, newest
// first. `read` is the only field that mutates after insert.
type Store interface {
	Append(ctx context.Context, item models.NotificationItem) (models.NotificationItem, error)
	List(ctx context.Context, shopperID string, limit int) ([]models.NotificationItem, error)
	MarkRead(ctx context.Context, shopperID, itemID string) (models.NotificationItem, error)
	MarkAllRead(ctx context.Context, shopperID string) error
}

// MemoryStore is the in-process Store used by tests and by engines running
// without a database.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string][]models.NotificationItem // shopperID -> newest first
	now   func() time.Time
	seq   int
}

// NewMemoryStore constructs an empty in-memory history.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string][]models.NotificationItem),
		now:   time.Now,
	}
}

// Append inserts an item at the head, dropping the oldest beyond the cap.
func (s *MemoryStore) Append(ctx context.Context, item models.NotificationItem) (models.NotificationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.seq++
	if item.ID == "" {
		item.ID = "hist-" + strconv.Itoa(s.seq)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = now
	}

	entries := append([]models.NotificationItem{item}, s.items[item.ShopperID]...)
	if len(entries) > Cap {
		entries = entries[:Cap]
	}
	s.items[item.ShopperID] = entries
	return item, nil
}

// List returns up to limit entries, newest first.
func (s *MemoryStore) List(ctx context.Context, shopperID string, limit int) ([]models.NotificationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.items[shopperID]
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}

	out := make([]models.NotificationItem, limit)
	copy(out, entries[:limit])
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// MarkRead flips the read flag of one entry.
func (s *MemoryStore) MarkRead(ctx context.Context, shopperID, itemID string) (models.NotificationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.items[shopperID]
	for i := range entries {
		if entries[i].ID == itemID {
			now := s.now()
			entries[i].Read = true
			entries[i].ReadAt = &now
			return entries[i], nil
		}
	}
	return models.NotificationItem{}, apperrors.ErrNotFound
}

// MarkAllRead flips every unread entry for the shopper.
func (s *MemoryStore) MarkAllRead(ctx context.Context, shopperID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entries := s.items[shopperID]
	for i := range entries {
		if !entries[i].Read {
			entries[i].Read = true
			entries[i].ReadAt = &now
		}
	}
	return nil
}
