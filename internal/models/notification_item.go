package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationItem is one entry of the persisted notification history. The
// history is append-only and capped; `Read` is the only field that mutates
// after insert.
type NotificationItem struct {
	BaseModel

	ShopperID string `gorm:"type:uuid;index" json:"shopper_id"`
	Type      string `gorm:"type:varchar(64);not null" json:"type"`
	Title     string `gorm:"type:varchar(255);not null" json:"title"`
	Body      string `gorm:"type:text" json:"body"`

	// Timestamp is the delivery time reported by the originating channel,
	// which may differ from the row CreatedAt when push payloads carry their
	// own timestamps.
	Timestamp time.Time `gorm:"index" json:"timestamp"`

	OrderID         string  `gorm:"type:uuid;index" json:"order_id,omitempty"`
	IsCombinedOrder bool    `json:"is_combined_order,omitempty"`
	TotalEarnings   float64 `json:"total_earnings,omitempty"`

	Metadata datatypes.JSON `json:"metadata,omitempty"`

	Read   bool       `gorm:"default:false;index" json:"read"`
	ReadAt *time.Time `json:"read_at,omitempty"`
}
