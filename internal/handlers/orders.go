package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ihuzaapp/shopperd/internal/engine"
	"github.com/ihuzaapp/shopperd/internal/middleware"
	"github.com/ihuzaapp/shopperd/internal/orders"
	"github.com/ihuzaapp/shopperd/internal/realtime"
	apperrors "github.com/ihuzaapp/shopperd/pkg/errors"
	"github.com/ihuzaapp/shopperd/pkg/logger"
	"github.com/ihuzaapp/shopperd/pkg/response"
)

type orderBackend interface {
	AssignOrder(ctx context.Context, orderID string) error
	CreateWallet(ctx context.Context, shopperID string) error
}

// OrdersHandler exposes the order book and the accept flow.
type OrdersHandler struct {
	book    *orders.Book
	backend orderBackend
	tracker *engine.AssignmentTracker
	hub     *realtime.Hub
	log     *zap.Logger
}

// NewOrdersHandler constructs the handler.
func NewOrdersHandler(book *orders.Book, backend orderBackend, tracker *engine.AssignmentTracker, hub *realtime.Hub) *OrdersHandler {
	return &OrdersHandler{
		book:    book,
		backend: backend,
		tracker: tracker,
		hub:     hub,
		log:     logger.WithModule("handlers"),
	}
}

// List returns the current order book sorted by the requested key.
func (h *OrdersHandler) List(c *gin.Context) {
	key := orders.ParseSortKey(c.Query("sort"))
	items := h.book.Snapshot(key)

	response.SuccessWithMeta(c, http.StatusOK, items, &response.Meta{Total: len(items)})
}

// Get returns one order from the book.
func (h *OrdersHandler) Get(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("id"))
	order, ok := h.book.Get(orderID)
	if !ok {
		response.Error(c, apperrors.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, order)
}

// Accept tries to take the order for the current shopper. A missing wallet
// triggers wallet creation and exactly one retry; if the backend still
// refuses for the same reason the failure is terminal and reported as such.
func (h *OrdersHandler) Accept(c *gin.Context) {
	shopperID := c.GetString(middleware.CtxShopperIDKey)
	orderID := strings.TrimSpace(c.Param("id"))
	if orderID == "" {
		response.Error(c, apperrors.NewBadRequest("order id is required"))
		return
	}

	if err := h.assign(c.Request.Context(), shopperID, orderID); err != nil {
		response.Error(c, err)
		return
	}

	h.tracker.Release(orderID)
	h.book.Remove(orderID)
	// Every dashboard loses the order, not just the winner's.
	h.hub.Broadcast(realtime.Event{
		Stream: realtime.StreamOrders,
		Type:   "order_removed",
		Data:   gin.H{"orderId": orderID, "reason": "accepted"},
	})

	h.log.Info("order accepted",
		zap.String("shopper_id", shopperID),
		zap.String("order_id", orderID))
	response.Success(c, http.StatusOK, gin.H{"accepted": true, "orderId": orderID})
}

func (h *OrdersHandler) assign(ctx context.Context, shopperID, orderID string) error {
	err := h.backend.AssignOrder(ctx, orderID)
	if !errors.Is(err, apperrors.ErrNoWallet) {
		return err
	}

	h.log.Info("shopper has no wallet, creating one before retrying",
		zap.String("shopper_id", shopperID))
	if werr := h.backend.CreateWallet(ctx, shopperID); werr != nil {
		return apperrors.ErrWalletRetryExhausted.WithInternal(werr)
	}

	err = h.backend.AssignOrder(ctx, orderID)
	if errors.Is(err, apperrors.ErrNoWallet) {
		return apperrors.ErrWalletRetryExhausted.WithInternal(err)
	}
	return err
}
