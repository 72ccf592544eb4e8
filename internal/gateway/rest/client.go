// Package rest implements the gateway boundary over the dev gateway's HTTP
// API, with change subscriptions carried on a multiplexed websocket.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/trailtalk/trailtalk/internal/gateway"
	"github.com/trailtalk/trailtalk/internal/gateway/wire"
)

const requestTimeout = 15 * time.Second

// Client is a gateway.Gateway backed by a remote gateway server.
type Client struct {
	http *resty.Client
	rt   *realtime
}

// NewClient builds a client for the gateway at baseURL.
func NewClient(baseURL string) *Client {
	hc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("User-Agent", "TrailTalk/0.1.0")
	return &Client{
		http: hc,
		rt:   newRealtime(baseURL),
	}
}

// SetToken attaches the session bearer token to every request and to the
// realtime socket. Pass empty to go anonymous.
func (c *Client) SetToken(token string) {
	if token == "" {
		c.http.Header.Del("Authorization")
	} else {
		c.http.SetHeader("Authorization", "Bearer "+token)
	}
	c.rt.setToken(token)
}

// MintToken asks the dev gateway for a session token. Development only.
func (c *Client) MintToken(ctx context.Context, userID string) (string, error) {
	var out wire.TokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(wire.TokenRequest{UserID: userID}).
		SetResult(&out).
		Post("/auth/token")
	if err := checkResponse(resp, err); err != nil {
		return "", err
	}
	return out.Token, nil
}

// Select returns matching rows.
func (c *Client) Select(ctx context.Context, q gateway.Query) ([]gateway.Row, error) {
	var out wire.RowsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(q).
		SetResult(&out).
		Post("/api/v1/query")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return out.Rows, nil
}

// Count returns the number of matching rows.
func (c *Client) Count(ctx context.Context, table string, filters []gateway.Filter) (int64, error) {
	var out wire.CountResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(wire.CountRequest{Table: table, Filters: filters}).
		SetResult(&out).
		Post("/api/v1/count")
	if err := checkResponse(resp, err); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// Insert creates rows and returns them with generated columns filled in.
func (c *Client) Insert(ctx context.Context, table string, rows []gateway.Row) ([]gateway.Row, error) {
	var out wire.RowsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(wire.InsertRequest{Table: table, Rows: rows}).
		SetResult(&out).
		Post("/api/v1/insert")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return out.Rows, nil
}

// Update patches matching rows.
func (c *Client) Update(ctx context.Context, table string, patch gateway.Row, filters []gateway.Filter) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(wire.UpdateRequest{Table: table, Patch: patch, Filters: filters}).
		Post("/api/v1/update")
	return checkResponse(resp, err)
}

// Delete removes matching rows.
func (c *Client) Delete(ctx context.Context, table string, filters []gateway.Filter) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(wire.DeleteRequest{Table: table, Filters: filters}).
		Post("/api/v1/delete")
	return checkResponse(resp, err)
}

// SubscribeChanges opens a change subscription on the shared realtime socket.
func (c *Client) SubscribeChanges(ctx context.Context, table string, filters []gateway.Filter, mask gateway.EventMask) (gateway.Subscription, error) {
	return c.rt.subscribe(ctx, table, filters, mask)
}

// Close tears down the realtime socket and all of its subscriptions.
func (c *Client) Close() {
	c.rt.close()
}

// checkResponse maps wire error codes back onto the gateway sentinels so
// callers can errors.Is them regardless of which gateway they run against.
func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	if resp.IsSuccess() {
		return nil
	}

	var body wire.ErrorResponse
	if jsonErr := json.Unmarshal(resp.Body(), &body); jsonErr == nil {
		switch body.Code {
		case wire.CodeAuthRequired:
			return gateway.ErrAuthRequired
		case wire.CodePermissionDenied:
			return gateway.ErrPermissionDenied
		case wire.CodeNotFound:
			return gateway.ErrNotFound
		}
		if body.Error != "" {
			return fmt.Errorf("gateway: %s (status %d)", body.Error, resp.StatusCode())
		}
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return gateway.ErrAuthRequired
	}
	return fmt.Errorf("gateway: unexpected status %d", resp.StatusCode())
}
