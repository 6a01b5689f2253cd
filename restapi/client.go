// Package restapi is a thin client for the fleet monitoring server's REST
// API: entity lookups, paged machine listings and transaction cleanup.
package restapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"pkt.systems/pslog"

	"pkt.systems/fleetwatch/schema"
)

// Client talks to the server REST API.
type Client struct {
	base string
	http *http.Client
	log  pslog.Logger
}

// New constructs a client for the given base URL.
func New(baseURL string, httpClient *http.Client, logger pslog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: httpClient,
		log:  logger,
	}
}

// GetMachine fetches one machine. Its signature satisfies
// core.EntityProvider[schema.Machine].
func (c *Client) GetMachine(ctx context.Context, id schema.EntityID) (schema.Machine, error) {
	var machine schema.Machine
	err := c.getJSON(ctx, fmt.Sprintf("/machines/%d", id), &machine)
	return machine, err
}

// GetApp fetches one app.
func (c *Client) GetApp(ctx context.Context, id schema.EntityID) (schema.App, error) {
	var app schema.App
	err := c.getJSON(ctx, fmt.Sprintf("/apps/%d", id), &app)
	return app, err
}

// GetUser fetches one user.
func (c *Client) GetUser(ctx context.Context, id schema.EntityID) (schema.User, error) {
	var user schema.User
	err := c.getJSON(ctx, fmt.Sprintf("/users/%d", id), &user)
	return user, err
}

type machinesPage struct {
	Items []schema.Machine `json:"items"`
	Total int64            `json:"total"`
}

// ListMachines fetches one page of machines, optionally filtered by free
// text. It returns the page and the server-side total.
func (c *Client) ListMachines(ctx context.Context, start, limit int64, text string) ([]schema.Machine, int64, error) {
	path := fmt.Sprintf("/machines?start=%d&limit=%d", start, limit)
	if text != "" {
		path += "&text=" + url.QueryEscape(text)
	}
	var page machinesPage
	if err := c.getJSON(ctx, path, &page); err != nil {
		return nil, 0, err
	}
	return page.Items, page.Total, nil
}

// DeleteCreateTransaction abandons a pending create transaction for the
// given resource collection (e.g. "machines").
func (c *Client) DeleteCreateTransaction(ctx context.Context, resource string, txn schema.TransactionID) error {
	return c.delete(ctx, fmt.Sprintf("/%s/new/transaction/%d", resource, txn))
}

// DeleteUpdateTransaction abandons a pending update transaction for one
// entity of the given resource collection.
func (c *Client) DeleteUpdateTransaction(ctx context.Context, resource string, id schema.EntityID, txn schema.TransactionID) error {
	return c.delete(ctx, fmt.Sprintf("/%s/%d/transaction/%d", resource, id, txn))
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return fmt.Errorf("get %s: %w", path, schema.ErrEntityNotFound)
	default:
		return fmt.Errorf("get %s: unexpected status %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) delete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		// Already gone server-side; abandoning twice is harmless.
		return nil
	default:
		return fmt.Errorf("delete %s: unexpected status %s", path, resp.Status)
	}
}
