package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/ihuzaapp/shopperd/internal/engine"
	"github.com/ihuzaapp/shopperd/internal/middleware"
	"github.com/ihuzaapp/shopperd/internal/models"
	"github.com/ihuzaapp/shopperd/internal/orders"
	"github.com/ihuzaapp/shopperd/internal/realtime"
	apperrors "github.com/ihuzaapp/shopperd/pkg/errors"
)

type scriptedBackend struct {
	assignErrs  []error
	assignCalls int
	walletCalls int
	walletErr   error
}

func (s *scriptedBackend) AssignOrder(_ context.Context, _ string) error {
	var err error
	if s.assignCalls < len(s.assignErrs) {
		err = s.assignErrs[s.assignCalls]
	}
	s.assignCalls++
	return err
}

func (s *scriptedBackend) CreateWallet(_ context.Context, _ string) error {
	s.walletCalls++
	return s.walletErr
}

func newOrdersRouter(backend *scriptedBackend, book *orders.Book, tracker *engine.AssignmentTracker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewOrdersHandler(book, backend, tracker, realtime.NewHub())

	r := gin.New()
	api := r.Group("/api", middleware.RequireShopper())
	api.GET("/orders", handler.List)
	api.GET("/orders/:id", handler.Get)
	api.POST("/orders/:id/accept", handler.Accept)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set(middleware.ShopperHeader, "shopper-1")
	r.ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestOrdersListSortedByQueryKey(t *testing.T) {
	book := orders.NewBook()
	now := time.Now()
	book.Upsert(models.Order{ID: "cheap", EstimatedEarnings: 5, CreatedAt: now})
	book.Upsert(models.Order{ID: "rich", EstimatedEarnings: 50, CreatedAt: now.Add(-time.Hour)})

	r := newOrdersRouter(&scriptedBackend{}, book, engine.NewAssignmentTracker())
	w, body := doJSON(t, r, http.MethodGet, "/api/orders?sort=earnings")

	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].([]any)
	require.Len(t, data, 2)
	first := data[0].(map[string]any)
	require.Equal(t, "rich", first["id"])
}

func TestOrdersGetUnknownIs404(t *testing.T) {
	r := newOrdersRouter(&scriptedBackend{}, orders.NewBook(), engine.NewAssignmentTracker())
	w, _ := doJSON(t, r, http.MethodGet, "/api/orders/ghost")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAcceptReleasesClaimAndRemovesOrder(t *testing.T) {
	book := orders.NewBook()
	book.Upsert(models.Order{ID: "order-1"})
	tracker := engine.NewAssignmentTracker()
	require.True(t, tracker.Claim("shopper-1", "order-1", time.Now()))

	r := newOrdersRouter(&scriptedBackend{}, book, tracker)
	w, body := doJSON(t, r, http.MethodPost, "/api/orders/order-1/accept")

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, body["success"])
	require.False(t, tracker.Claimed("order-1"))
	_, ok := book.Get("order-1")
	require.False(t, ok)
}

func TestAcceptCreatesWalletAndRetriesOnce(t *testing.T) {
	backend := &scriptedBackend{assignErrs: []error{apperrors.ErrNoWallet, nil}}

	r := newOrdersRouter(backend, orders.NewBook(), engine.NewAssignmentTracker())
	w, _ := doJSON(t, r, http.MethodPost, "/api/orders/order-1/accept")

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, backend.walletCalls)
	require.Equal(t, 2, backend.assignCalls)
}

func TestAcceptWalletRetryExhaustedIsPersistent(t *testing.T) {
	backend := &scriptedBackend{assignErrs: []error{apperrors.ErrNoWallet, apperrors.ErrNoWallet}}

	r := newOrdersRouter(backend, orders.NewBook(), engine.NewAssignmentTracker())
	w, body := doJSON(t, r, http.MethodPost, "/api/orders/order-1/accept")

	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, 2, backend.assignCalls, "exactly one retry, never more")

	errInfo := body["error"].(map[string]any)
	require.Equal(t, apperrors.ErrWalletRetryExhausted.Code, errInfo["code"])
	require.Equal(t, true, errInfo["persistent"])
}

func TestAcceptOrderTakenPassesThrough(t *testing.T) {
	backend := &scriptedBackend{assignErrs: []error{apperrors.ErrOrderTaken}}

	r := newOrdersRouter(backend, orders.NewBook(), engine.NewAssignmentTracker())
	w, body := doJSON(t, r, http.MethodPost, "/api/orders/order-1/accept")

	require.Equal(t, http.StatusConflict, w.Code)
	errInfo := body["error"].(map[string]any)
	require.Equal(t, apperrors.ErrOrderTaken.Code, errInfo["code"])
	require.Zero(t, backend.walletCalls)
}
