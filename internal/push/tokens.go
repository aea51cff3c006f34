package push

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ihuzaapp/shopperd/internal/cache"
	apperrors "github.com/ihuzaapp/shopperd/pkg/errors"
)

// tokenTTL keeps stale device registrations from lingering forever; every
// save refreshes it.
const tokenTTL = 30 * 24 * time.Hour

// DeviceRegistration is one shopper's push endpoint.
type DeviceRegistration struct {
	Token    string    `json:"token"`
	Platform string    `json:"platform"`
	SavedAt  time.Time `json:"saved_at"`
}

// TokenRegistry stores device tokens in the shared cache. One registration
// per shopper; re-registering the same token only refreshes its TTL.
type TokenRegistry struct {
	store cache.Store
	now   func() time.Time
}

// NewTokenRegistry constructs a registry over the supplied cache.
func NewTokenRegistry(store cache.Store) *TokenRegistry {
	return &TokenRegistry{store: store, now: time.Now}
}

func tokenKey(shopperID string) string {
	return "push:token:" + shopperID
}

// Save records a device token. Returns true when the token is new or changed
// for this shopper, false when the call was a refresh.
func (r *TokenRegistry) Save(ctx context.Context, shopperID, token, platform string) (bool, error) {
	if shopperID == "" || token == "" {
		return false, apperrors.NewBadRequest("shopper id and token are required")
	}

	existing, found, err := r.Get(ctx, shopperID)
	if err != nil {
		return false, err
	}

	reg := DeviceRegistration{Token: token, Platform: platform, SavedAt: r.now()}
	payload, err := json.Marshal(reg)
	if err != nil {
		return false, apperrors.Wrap(err, "encoding device registration")
	}
	if err := r.store.Set(ctx, tokenKey(shopperID), payload, tokenTTL); err != nil {
		return false, apperrors.Wrap(err, "saving device registration")
	}

	changed := !found || existing.Token != token
	return changed, nil
}

// Get returns the shopper's current registration.
func (r *TokenRegistry) Get(ctx context.Context, shopperID string) (DeviceRegistration, bool, error) {
	raw, found, err := r.store.Get(ctx, tokenKey(shopperID))
	if err != nil {
		return DeviceRegistration{}, false, apperrors.Wrap(err, "loading device registration")
	}
	if !found {
		return DeviceRegistration{}, false, nil
	}

	var reg DeviceRegistration
	if err := json.Unmarshal(raw, &reg); err != nil {
		return DeviceRegistration{}, false, apperrors.Wrap(err, "decoding device registration")
	}
	return reg, true, nil
}

// Forget drops the registration, used when the dashboard revokes push.
func (r *TokenRegistry) Forget(ctx context.Context, shopperID string) error {
	return r.store.Delete(ctx, tokenKey(shopperID))
}
