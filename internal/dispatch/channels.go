package dispatch

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ihuzaapp/shopperd/internal/realtime"
	apperrors "github.com/ihuzaapp/shopperd/pkg/errors"
	"github.com/ihuzaapp/shopperd/pkg/logger"
)

// Channel delivers one notification over one medium. Delivery is best
// effort; a failing channel never blocks the others.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, shopperID string, note Notification) error
}

type publisher interface {
	Publish(shopperID string, event realtime.Event)
}

// PanelDuration is how long the dashboard keeps an alert panel visible.
const PanelDuration = 60 * time.Second

// PanelChannel renders notifications as dismissable alert panels on the
// shopper's alert stream.
type PanelChannel struct {
	hub publisher
}

// NewPanelChannel constructs the panel channel.
func NewPanelChannel(hub publisher) *PanelChannel {
	return &PanelChannel{hub: hub}
}

func (c *PanelChannel) Name() string { return "panel" }

func (c *PanelChannel) Deliver(_ context.Context, shopperID string, note Notification) error {
	c.hub.Publish(shopperID, realtime.Event{
		Stream: realtime.StreamAlerts,
		Type:   "panel",
		Data: map[string]any{
			"notification_type": note.Type,
			"title":             note.Title,
			"body":              note.Body,
			"order_id":          note.OrderID,
			"duration_ms":       PanelDuration.Milliseconds(),
		},
	})
	return nil
}

const (
	soundAttempts = 3
	soundBackoff  = 100 * time.Millisecond
)

// SoundChannel plays an audio cue on the dashboard. Playback stays locked
// until the dashboard confirms user interaction; until then delivery retries
// briefly and then reports failure so the other channels still carry the
// notification.
type SoundChannel struct {
	hub      publisher
	unlocked atomic.Bool
	backoff  time.Duration
	log      *zap.Logger
}

// NewSoundChannel constructs a locked sound channel.
func NewSoundChannel(hub publisher) *SoundChannel {
	return &SoundChannel{
		hub:     hub,
		backoff: soundBackoff,
		log:     logger.WithModule("dispatch"),
	}
}

func (c *SoundChannel) Name() string { return "sound" }

// Unlock marks audio as playable. Dashboards call this once the user has
// interacted with the page.
func (c *SoundChannel) Unlock() {
	c.unlocked.Store(true)
}

func (c *SoundChannel) Deliver(ctx context.Context, shopperID string, note Notification) error {
	for attempt := 1; attempt <= soundAttempts; attempt++ {
		if c.unlocked.Load() {
			c.hub.Publish(shopperID, realtime.Event{
				Stream: realtime.StreamAlerts,
				Type:   "sound",
				Data:   map[string]any{"cue": note.Type},
			})
			return nil
		}
		if attempt == soundAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff):
		}
	}

	c.log.Debug("sound cue suppressed, audio still locked",
		zap.String("shopper_id", shopperID))
	return apperrors.New("sound_locked", "audio not unlocked by dashboard", http.StatusConflict)
}

// Permission states for the system notification channel, mirroring the
// grant model desktop environments use.
const (
	PermissionDefault = "default"
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
)

// SystemChannel raises OS-level notifications through the dashboard. It only
// fires with explicit permission; the event asks the OS to keep the
// notification up until interaction and to stay silent, the sound channel
// owns audio.
type SystemChannel struct {
	hub        publisher
	permission atomic.Value
}

// NewSystemChannel constructs the channel in the undecided permission state.
func NewSystemChannel(hub publisher) *SystemChannel {
	c := &SystemChannel{hub: hub}
	c.permission.Store(PermissionDefault)
	return c
}

func (c *SystemChannel) Name() string { return "system" }

// SetPermission records the dashboard-reported permission state.
func (c *SystemChannel) SetPermission(state string) {
	switch state {
	case PermissionGranted, PermissionDenied, PermissionDefault:
		c.permission.Store(state)
	}
}

// Permission returns the current grant state.
func (c *SystemChannel) Permission() string {
	return c.permission.Load().(string)
}

func (c *SystemChannel) Deliver(_ context.Context, shopperID string, note Notification) error {
	if c.Permission() != PermissionGranted {
		return apperrors.New("permission_missing", "system notifications not granted", http.StatusForbidden)
	}

	c.hub.Publish(shopperID, realtime.Event{
		Stream: realtime.StreamAlerts,
		Type:   "system",
		Data: map[string]any{
			"title":               note.Title,
			"body":                note.Body,
			"tag":                 note.OrderID,
			"require_interaction": true,
			"silent":              true,
		},
	})
	return nil
}
