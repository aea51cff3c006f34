package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/ihuzaapp/shopperd/internal/cache"
	"github.com/ihuzaapp/shopperd/internal/dispatch"
	"github.com/ihuzaapp/shopperd/internal/history"
	"github.com/ihuzaapp/shopperd/internal/middleware"
	"github.com/ihuzaapp/shopperd/internal/orders"
	"github.com/ihuzaapp/shopperd/internal/push"
	"github.com/ihuzaapp/shopperd/internal/realtime"
)

type mapCache struct {
	data map[string][]byte
}

func (m *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := m.data[key]
	return value, ok, nil
}

func (m *mapCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

var _ cache.Store = (*mapCache)(nil)

func newPushFixture(t *testing.T) (*gin.Engine, *push.Bridge, *orders.Book) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := realtime.NewHub()
	book := orders.NewBook()
	transport := push.NewWebhookTransport()
	dispatcher := dispatch.NewDispatcher(history.NewMemoryStore(), hub, nil)
	bridge := push.NewBridge(transport, dispatcher, book, hub, nil)

	tokens := push.NewTokenRegistry(&mapCache{data: make(map[string][]byte)})
	handler := NewPushHandler(transport, tokens)

	r := gin.New()
	api := r.Group("/api", middleware.RequireShopper())
	api.POST("/push", handler.Ingest)
	api.POST("/push/token", handler.RegisterToken)
	api.DELETE("/push/token", handler.UnregisterToken)
	return r, bridge, book
}

func postJSON(t *testing.T, r *gin.Engine, path, payload string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.ShopperHeader, "shopper-1")
	r.ServeHTTP(w, req)
	return w
}

func TestPushIngestRefusedWhileBridgeInactive(t *testing.T) {
	r, _, _ := newPushFixture(t)

	w := postJSON(t, r, "/api/push", `{"type":"test"}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPushIngestDeliversThroughBridge(t *testing.T) {
	r, bridge, book := newPushFixture(t)
	require.NoError(t, bridge.Start(context.Background()))

	payload := `{"type":"new_order","data":{"id":"order-p","shopName":"Corner Shop","estimatedEarnings":9.5}}`
	w := postJSON(t, r, "/api/push", payload)

	require.Equal(t, http.StatusAccepted, w.Code)
	order, ok := book.Get("order-p")
	require.True(t, ok)
	require.Equal(t, "Corner Shop", order.ShopName)
}

func TestPushIngestRejectsUnknownType(t *testing.T) {
	r, bridge, _ := newPushFixture(t)
	require.NoError(t, bridge.Start(context.Background()))

	w := postJSON(t, r, "/api/push", `{"type":"mystery"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPushTokenLifecycle(t *testing.T) {
	r, _, _ := newPushFixture(t)

	w := postJSON(t, r, "/api/push/token", `{"token":"tok-1","platform":"web"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data := body["data"].(map[string]any)
	require.Equal(t, true, data["changed"])

	w = postJSON(t, r, "/api/push/token", `{"token":"tok-1","platform":"web"}`)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data = body["data"].(map[string]any)
	require.Equal(t, false, data["changed"])

	req := httptest.NewRequest(http.MethodDelete, "/api/push/token", nil)
	req.Header.Set(middleware.ShopperHeader, "shopper-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestPushTokenRequiresToken(t *testing.T) {
	r, _, _ := newPushFixture(t)
	w := postJSON(t, r, "/api/push/token", `{"platform":"web"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
