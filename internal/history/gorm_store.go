package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ihuzaapp/shopperd/internal/models"
	apperrors "github.com/ihuzaapp/shopperd/pkg/errors"
)

// GormStore persists notification history in the primary database. It is the
// production Store; the cap is enforced inside the insert transaction so the
// invariant holds after every append.
type GormStore struct {
	db  *gorm.DB
	cap int
	now func() time.Time
}

// GormOption customises the GormStore.
type GormOption func(*GormStore)

// WithCap overrides the retained-entry cap, primarily for tests.
func WithCap(cap int) GormOption {
	return func(s *GormStore) {
		if cap > 0 {
			s.cap = cap
		}
	}
}

// WithNow overrides the clock.
func WithNow(now func() time.Time) GormOption {
	return func(s *GormStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewGormStore constructs a database-backed history store.
func NewGormStore(db *gorm.DB, opts ...GormOption) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("history: db is required")
	}

	store := &GormStore{db: db, cap: Cap, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Append inserts a history entry and prunes the shopper's history down to the
// cap, oldest entries first.
func (s *GormStore) Append(ctx context.Context, item models.NotificationItem) (models.NotificationItem, error) {
	if item.ShopperID == "" {
		return models.NotificationItem{}, errors.New("history: shopper id is required")
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = s.now()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&item).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.NotificationItem{}).
			Where("shopper_id = ?", item.ShopperID).
			Count(&count).Error; err != nil {
			return err
		}

		if count <= int64(s.cap) {
			return nil
		}

		overflow := count - int64(s.cap)
		var stale []models.NotificationItem
		if err := tx.Where("shopper_id = ?", item.ShopperID).
			Order("created_at ASC, id ASC").
			Limit(int(overflow)).
			Find(&stale).Error; err != nil {
			return err
		}

		ids := make([]string, 0, len(stale))
		for _, row := range stale {
			ids = append(ids, row.ID)
		}
		return tx.Where("id IN ?", ids).Delete(&models.NotificationItem{}).Error
	})
	if err != nil {
		return models.NotificationItem{}, fmt.Errorf("history: append: %w", err)
	}

	return item, nil
}

// List returns up to limit entries for the shopper, newest first.
func (s *GormStore) List(ctx context.Context, shopperID string, limit int) ([]models.NotificationItem, error) {
	if limit <= 0 || limit > s.cap {
		limit = s.cap
	}

	var rows []models.NotificationItem
	if err := s.db.WithContext(ctx).
		Where("shopper_id = ?", shopperID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	return rows, nil
}

// MarkRead flips the read flag of a single entry owned by the shopper.
func (s *GormStore) MarkRead(ctx context.Context, shopperID, itemID string) (models.NotificationItem, error) {
	var item models.NotificationItem
	err := s.db.WithContext(ctx).
		Where("id = ? AND shopper_id = ?", itemID, shopperID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NotificationItem{}, apperrors.ErrNotFound
	}
	if err != nil {
		return models.NotificationItem{}, fmt.Errorf("history: load item: %w", err)
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).Model(&item).
		Updates(map[string]any{"read": true, "read_at": now}).Error; err != nil {
		return models.NotificationItem{}, fmt.Errorf("history: mark read: %w", err)
	}

	item.Read = true
	item.ReadAt = &now
	return item, nil
}

// MarkAllRead flips every unread entry for the shopper.
func (s *GormStore) MarkAllRead(ctx context.Context, shopperID string) error {
	now := s.now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.NotificationItem{}).
		Where("shopper_id = ? AND read = ?", shopperID, false).
		Updates(map[string]any{"read": true, "read_at": now}).Error; err != nil {
		return fmt.Errorf("history: mark all read: %w", err)
	}
	return nil
}
