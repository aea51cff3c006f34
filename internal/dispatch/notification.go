package dispatch

import (
	"fmt"
	"time"

	"github.com/ihuzaapp/shopperd/internal/models"
)

// Notification is the channel-agnostic payload every delivery medium
// receives. Channels render it their own way; none of them may mutate it.
type Notification struct {
	Type       string
	Title      string
	Body       string
	OrderID    string
	IsCombined bool
	Earnings   float64
	At         time.Time
	Metadata   map[string]any
}

// Notification types recorded in history and surfaced on the alert stream.
const (
	TypeNewOrder     = "new_order"
	TypeBatchOrders  = "batch_orders"
	TypeOrderExpired = "order_expired"
	TypeChatMessage  = "chat_message"
	TypeTest         = "test"
)

// FromOrder renders the standard single-order notification.
func FromOrder(order models.Order, at time.Time) Notification {
	return Notification{
		Type:       TypeNewOrder,
		Title:      "New order available",
		Body:       fmt.Sprintf("%s · %d items · $%.2f", order.ShopName, order.ItemCount, order.EstimatedEarnings),
		OrderID:    order.ID,
		IsCombined: order.IsCombined,
		Earnings:   order.EstimatedEarnings,
		At:         at,
		Metadata: map[string]any{
			"shop_address":     order.ShopAddress,
			"customer_address": order.CustomerAddress,
			"distance_km":      order.DistanceKM,
			"order_type":       order.OrderType,
		},
	}
}
