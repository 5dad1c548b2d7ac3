// Package webhookclient provides the pooled HTTP client used to deliver
// alert payloads to operator-configured webhook URLs.
package webhookclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aetherlink/commandcenter/internal/ccerrors"
)

const defaultTimeout = 10 * time.Second

// Client posts JSON alert payloads to webhook endpoints over a shared,
// connection-pooling http.Client.
type Client struct {
	http *http.Client
}

// New builds a Client with a 10s per-request timeout, reusing Go's
// default transport (and therefore its connection pool) for every
// dispatcher worker.
func New() *Client {
	return &Client{http: &http.Client{Timeout: defaultTimeout}}
}

// Deliver POSTs payload as JSON to url. A non-2xx response or transport
// error is reported as a ccerrors.TransientDeliveryError — the dispatcher
// treats every Deliver failure as retryable input to its backoff
// schedule.
func (c *Client) Deliver(ctx context.Context, url string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhookclient: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ccerrors.NewTransientDelivery(0, fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ccerrors.NewTransientDelivery(0, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return ccerrors.NewTransientDelivery(resp.StatusCode, string(snippet))
	}
	return nil
}
