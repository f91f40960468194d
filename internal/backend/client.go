// Package backend fetches chart payloads from the simulation's HTTP API.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jask/simdash/internal/wire"
)

// ErrUnknownID is returned by FetchOne when the backend has no such chart.
var ErrUnknownID = errors.New("backend: unknown id")

const maxBody = 32 << 20

// Client talks to the batch and detail endpoints.
type Client struct {
	base       *url.URL
	batchPath  string
	detailPath string
	http       *http.Client
}

// NewClient validates baseURL and returns a client with the given request timeout.
func NewClient(baseURL, batchPath, detailPath string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: scheme must be http or https", baseURL)
	}
	return &Client{
		base:       u,
		batchPath:  batchPath,
		detailPath: detailPath,
		http:       &http.Client{Timeout: timeout},
	}, nil
}

// FetchAll returns every chart the backend currently knows, in its order.
func (c *Client) FetchAll(ctx context.Context) ([]wire.ChartPayload, error) {
	body, status, err := c.get(ctx, c.batchPath)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetch charts: unexpected status %d", status)
	}
	payloads, err := wire.DecodePayloads(body)
	if err != nil {
		return nil, fmt.Errorf("fetch charts: %w", err)
	}
	return payloads, nil
}

// FetchOne returns the detail payload for id. The endpoint answers with a
// list and only its first element is used.
func (c *Client) FetchOne(ctx context.Context, id string) (wire.ChartPayload, error) {
	p := strings.TrimSuffix(c.detailPath, "/") + "/" + url.PathEscape(id)
	body, status, err := c.get(ctx, p)
	if err != nil {
		return wire.ChartPayload{}, err
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return wire.ChartPayload{}, fmt.Errorf("fetch %s: %w", id, ErrUnknownID)
	default:
		return wire.ChartPayload{}, fmt.Errorf("fetch %s: unexpected status %d", id, status)
	}
	payloads, err := wire.DecodePayloads(body)
	if err != nil {
		return wire.ChartPayload{}, fmt.Errorf("fetch %s: %w", id, err)
	}
	if len(payloads) == 0 {
		return wire.ChartPayload{}, fmt.Errorf("fetch %s: %w", id, ErrUnknownID)
	}
	return payloads[0], nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, int, error) {
	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("GET %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", u.Redacted(), err)
	}
	return body, resp.StatusCode, nil
}
