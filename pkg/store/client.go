package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/trekjournal/media-proxy/pkg/config"
	"github.com/trekjournal/media-proxy/pkg/logger"
)

const restPath = "/rest/v1/"

// Client talks to the relational store's REST surface with a service-role
// credential. Row-level security is bypassed; callers are expected to run
// their own authorization checks before reading on a user's behalf.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	logg       *logger.Logger
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

func NewClient(cfg config.StoreConfig, logg *logger.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, errors.New("store url is required")
	}
	key := strings.TrimSpace(cfg.ServiceKey)
	if key == "" {
		return nil, errors.New("store service key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    base,
		serviceKey: key,
		httpClient: &http.Client{Timeout: timeout},
		logg:       logg,
	}, nil
}

// Select runs a filtered read against a table and decodes the JSON array into dest.
func (c *Client) Select(ctx context.Context, table string, query url.Values, dest any) error {
	resp, err := c.do(ctx, http.MethodGet, table, query, nil, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return statusError(table, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s rows: %w", table, err)
	}
	return nil
}

// Insert writes one row. When dest is non-nil the created representation is
// requested back and decoded into it.
func (c *Client) Insert(ctx context.Context, table string, payload any, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s row: %w", table, err)
	}

	headers := http.Header{}
	if dest != nil {
		headers.Set("Prefer", "return=representation")
	}

	resp, err := c.do(ctx, http.MethodPost, table, nil, bytes.NewReader(body), headers)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return statusError(table, resp)
	}
	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("decode created %s row: %w", table, err)
		}
	}
	return nil
}

// Delete removes the rows matched by the query filters.
func (c *Client) Delete(ctx context.Context, table string, query url.Values) error {
	resp, err := c.do(ctx, http.MethodDelete, table, query, nil, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError(table, resp)
	}
	return nil
}

// Ping verifies the REST surface answers with the service credential.
func (c *Client) Ping(ctx context.Context) error {
	query := url.Values{}
	query.Set("select", "id")
	query.Set("limit", "1")
	var rows []struct {
		ID string `json:"id"`
	}
	return c.Select(ctx, "journeys", query, &rows)
}

func (c *Client) do(ctx context.Context, method, table string, query url.Values, body io.Reader, extra http.Header) (*http.Response, error) {
	endpoint := c.baseURL + restPath + url.PathEscape(table)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", table, err)
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range extra {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, table, err)
	}
	return resp, nil
}

func statusError(table string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if len(snippet) > 0 {
		return fmt.Errorf("store %s returned %s: %s", table, resp.Status, strings.TrimSpace(string(snippet)))
	}
	return fmt.Errorf("store %s returned %s", table, resp.Status)
}
