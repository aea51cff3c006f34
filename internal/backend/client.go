package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ihuzaapp/shopperd/internal/models"
	apperrors "github.com/ihuzaapp/shopperd/pkg/errors"
)

// Client is a typed HTTP client for the marketplace backend. The backend is a
// black box; every method maps one JSON endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// Config holds client construction options.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

const defaultTimeout = 10 * time.Second

// NewClient constructs a marketplace API client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("backend: base URL is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type scheduleResponse struct {
	Schedule []models.ShopperSchedule `json:"schedule"`
}

// FetchSchedule returns the shopper's weekly working-hours rows. Schedules
// are fetched fresh on every gating check; the engine never caches them.
func (c *Client) FetchSchedule(ctx context.Context, shopperID string) ([]models.ShopperSchedule, error) {
	var out scheduleResponse
	query := url.Values{"shopperId": {shopperID}}
	if err := c.get(ctx, "/api/shopper/schedule", query, &out); err != nil {
		return nil, fmt.Errorf("backend: fetch schedule: %w", err)
	}
	return out.Schedule, nil
}

type activeOrdersResponse struct {
	Orders []models.Order `json:"orders"`
}

// FetchActiveOrders returns the orders the shopper is currently fulfilling.
func (c *Client) FetchActiveOrders(ctx context.Context, shopperID string) ([]models.Order, error) {
	var out activeOrdersResponse
	query := url.Values{"shopperId": {shopperID}}
	if err := c.get(ctx, "/api/shopper/activeOrders", query, &out); err != nil {
		return nil, fmt.Errorf("backend: fetch active orders: %w", err)
	}
	return out.Orders, nil
}

// FetchAvailableOrders returns nearby unassigned orders for the supplied
// location, bounded by the configured maximum travel time in minutes.
func (c *Client) FetchAvailableOrders(ctx context.Context, loc models.Location, maxTravelTime int) ([]models.Order, error) {
	query := url.Values{
		"latitude":      {strconv.FormatFloat(loc.Latitude, 'f', -1, 64)},
		"longitude":     {strconv.FormatFloat(loc.Longitude, 'f', -1, 64)},
		"maxTravelTime": {strconv.Itoa(maxTravelTime)},
	}

	var out []models.Order
	if err := c.get(ctx, "/api/shopper/availableOrders", query, &out); err != nil {
		return nil, fmt.Errorf("backend: fetch available orders: %w", err)
	}
	return out, nil
}

type assignRequest struct {
	OrderID string `json:"orderId"`
}

type assignResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// AssignOrder requests the authoritative server-side assignment of an order
// to this shopper. The known "no_wallet" rejection is surfaced as
// apperrors.ErrNoWallet so callers can run the wallet-creation retry.
func (c *Client) AssignOrder(ctx context.Context, orderID string) error {
	var out assignResponse
	if err := c.post(ctx, "/api/shopper/assignOrder", assignRequest{OrderID: orderID}, &out); err != nil {
		return fmt.Errorf("backend: assign order: %w", err)
	}

	if out.Success {
		return nil
	}

	switch out.Error {
	case "no_wallet":
		return apperrors.ErrNoWallet
	case "already_assigned", "order_taken":
		return apperrors.ErrOrderTaken
	default:
		return fmt.Errorf("backend: assign order rejected: %s", out.Error)
	}
}

// CreateWallet provisions the shopper wallet required before a first
// assignment can succeed.
func (c *Client) CreateWallet(ctx context.Context, shopperID string) error {
	var out assignResponse
	payload := map[string]string{"shopperId": shopperID}
	if err := c.post(ctx, "/api/queries/createWallet", payload, &out); err != nil {
		return fmt.Errorf("backend: create wallet: %w", err)
	}
	if !out.Success {
		return fmt.Errorf("backend: create wallet rejected: %s", out.Error)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	return c.execute(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.execute(req, out)
}

func (c *Client) execute(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 256))
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
