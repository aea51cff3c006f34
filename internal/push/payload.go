package push

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/ihuzaapp/shopperd/internal/models"
	apperrors "github.com/ihuzaapp/shopperd/pkg/errors"
)

// Message is the raw push envelope: a type discriminator plus an opaque data
// document whose shape depends on the type.
type Message struct {
	Type string          `json:"type" validate:"required"`
	Data json.RawMessage `json:"data"`
}

// Push message types accepted by the bridge.
const (
	TypeNewOrder     = "new_order"
	TypeBatchOrders  = "batch_orders"
	TypeOrderExpired = "order_expired"
	TypeChatMessage  = "chat_message"
	TypeTest         = "test"
)

// OrderPayload carries a pushed order plus the delivery metadata the
// provider attaches alongside the order fields.
type OrderPayload struct {
	Order     models.Order
	ExpiresIn int    // seconds until the offer lapses, zero when absent
	Timestamp string // provider send time, forwarded verbatim
}

// eventMeta renders the delivery metadata for the orders-stream event, nil
// when the provider sent none.
func (p OrderPayload) eventMeta() map[string]any {
	meta := make(map[string]any, 2)
	if p.ExpiresIn > 0 {
		meta["expires_in"] = p.ExpiresIn
	}
	if p.Timestamp != "" {
		meta["timestamp"] = p.Timestamp
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

// ExpiredPayload announces an order leaving the marketplace.
type ExpiredPayload struct {
	OrderID string `json:"orderId" validate:"required"`
	Reason  string `json:"reason"`
}

// ChatPayload relays one customer chat message.
type ChatPayload struct {
	OrderID string `json:"orderId" validate:"required"`
	Sender  string `json:"sender"`
	Text    string `json:"text" validate:"required"`
}

var validate = validator.New()

func decodeOrder(data json.RawMessage) (OrderPayload, error) {
	var doc struct {
		models.Order
		ExpiresIn int    `json:"expiresIn"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return OrderPayload{}, apperrors.NewBadRequest("malformed order payload").WithInternal(err)
	}
	if doc.Order.ID == "" {
		return OrderPayload{}, apperrors.NewBadRequest("order payload missing id")
	}
	return OrderPayload{Order: doc.Order, ExpiresIn: doc.ExpiresIn, Timestamp: doc.Timestamp}, nil
}

// decodeOrderBatch accepts the batch document either as a bare array or as a
// JSON-encoded string holding one, the provider sends both.
func decodeOrderBatch(data json.RawMessage) ([]models.Order, error) {
	raw := data
	var quoted string
	if err := json.Unmarshal(data, &quoted); err == nil {
		raw = json.RawMessage(quoted)
	}

	var batch []models.Order
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, apperrors.NewBadRequest("malformed order batch").WithInternal(err)
	}
	for _, order := range batch {
		if order.ID == "" {
			return nil, apperrors.NewBadRequest("order batch entry missing id")
		}
	}
	return batch, nil
}

func decodeExpired(data json.RawMessage) (ExpiredPayload, error) {
	var payload ExpiredPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return ExpiredPayload{}, apperrors.NewBadRequest("malformed expiry payload").WithInternal(err)
	}
	if err := validate.Struct(payload); err != nil {
		return ExpiredPayload{}, apperrors.NewBadRequest("expiry payload missing orderId").WithInternal(err)
	}
	return payload, nil
}

func decodeChat(data json.RawMessage) (ChatPayload, error) {
	var payload ChatPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return ChatPayload{}, apperrors.NewBadRequest("malformed chat payload").WithInternal(err)
	}
	if err := validate.Struct(payload); err != nil {
		return ChatPayload{}, apperrors.NewBadRequest("chat payload incomplete").WithInternal(err)
	}
	return payload, nil
}
