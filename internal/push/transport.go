package push

import (
	"context"
	"sync"

	apperrors "github.com/ihuzaapp/shopperd/pkg/errors"
)

// Sink consumes push messages addressed to one shopper.
type Sink func(ctx context.Context, shopperID string, msg Message) error

// Transport is the provider-facing side of the bridge. A transport owns the
// inbound message source and forwards everything to the sink it was started
// with.
type Transport interface {
	// Start binds the sink. Calling Start on a started transport replaces
	// nothing and returns nil, the first subscription wins.
	Start(ctx context.Context, sink Sink) error
	// Stop unbinds the sink; subsequent inbound messages are refused.
	Stop()
}

// WebhookTransport receives push messages over an HTTP ingest endpoint. The
// HTTP handler calls Dispatch; the transport relays into the bridge sink.
type WebhookTransport struct {
	mu   sync.RWMutex
	sink Sink
}

// NewWebhookTransport constructs an inactive transport.
func NewWebhookTransport() *WebhookTransport {
	return &WebhookTransport{}
}

// Start binds the sink. Idempotent.
func (t *WebhookTransport) Start(_ context.Context, sink Sink) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sink == nil {
		t.sink = sink
	}
	return nil
}

// Stop unbinds the sink.
func (t *WebhookTransport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sink = nil
}

// Active reports whether a sink is bound.
func (t *WebhookTransport) Active() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sink != nil
}

// Dispatch hands one inbound message to the bound sink.
func (t *WebhookTransport) Dispatch(ctx context.Context, shopperID string, msg Message) error {
	t.mu.RLock()
	sink := t.sink
	t.mu.RUnlock()

	if sink == nil {
		return apperrors.ErrBridgeInactive
	}
	return sink(ctx, shopperID, msg)
}
