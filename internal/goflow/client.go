// Package goflow is the HTTP client for the GoFlow warehouse API: purchase
// orders, sales orders, and inventory counts.
package goflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"warehouse-ops/internal/core"
)

// Options configures a Client.
type Options struct {
	BaseURL      string
	APIKey       string
	ContactEmail string // sent as X-Beta-Contact on every request
	WarehouseID  string // warehouse whose on-hand counts matter
	StoreIDs     []string
	Timeout      time.Duration // per-request, default 20s
}

// Client talks to the GoFlow API. Safe for concurrent use.
type Client struct {
	opts Options
	http *http.Client
	log  *logrus.Logger
}

// New builds a Client from opts.
func New(opts Options, log *logrus.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		opts: opts,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("X-Beta-Contact", c.opts.ContactEmail)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// getJSON issues a GET and decodes the response into out. Transport failures
// and 5xx responses are retried twice with a short backoff; 4xx responses are
// returned immediately.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		req, err := c.newRequest(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = &core.UpstreamError{System: "goflow", Err: err}
			c.log.WithError(err).WithField("url", url).Warn("goflow request failed, retrying")
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = &core.UpstreamError{System: "goflow", Err: err}
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = &core.UpstreamError{
				System: "goflow", Status: resp.StatusCode,
				Err: fmt.Errorf("%s", truncate(body)),
			}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &core.UpstreamError{
				System: "goflow", Status: resp.StatusCode,
				Err: fmt.Errorf("%s", truncate(body)),
			}
		}
		if err := json.Unmarshal(body, out); err != nil {
			return &core.ParseError{Source: "goflow", Err: err}
		}
		return nil
	}
	return lastErr
}

// postJSON issues a POST without retries.
func (c *Client) postJSON(ctx context.Context, url string, payload, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &core.UpstreamError{System: "goflow", Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &core.UpstreamError{System: "goflow", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &core.UpstreamError{
			System: "goflow", Status: resp.StatusCode,
			Err: fmt.Errorf("%s", truncate(body)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &core.ParseError{Source: "goflow", Err: err}
	}
	return nil
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
