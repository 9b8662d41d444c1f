// Package upstream talks to the order-detail API and the shipment
// tracking API. Only the fields needed for display are decoded.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"order-tracker-api/internal/metrics"

	"github.com/charmbracelet/log"
)

const maxBodyBytes = 4 << 20

// Error is a failed upstream call. Message is safe to show to users.
type Error struct {
	API     string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s api: %s: %v", e.API, e.Message, e.Err)
	}
	return fmt.Sprintf("%s api: %s", e.API, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// client holds what both API clients share.
type client struct {
	api     string
	http    *http.Client
	metrics *metrics.Metrics
	logger  *log.Logger
}

func newClient(api string, timeout time.Duration, m *metrics.Metrics, logger *log.Logger) client {
	return client{
		api:     api,
		http:    &http.Client{Timeout: timeout},
		metrics: m,
		logger:  logger.With("api", api),
	}
}

// do sends req and returns the status and body. Transport failures come
// back as *Error.
func (c client) do(req *http.Request) (int, []byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordUpstream(c.api, err, time.Since(start))
		return 0, nil, &Error{API: c.api, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.metrics.RecordUpstream(c.api, err, time.Since(start))
	if err != nil {
		return 0, nil, &Error{API: c.api, Message: "reading response failed", Err: err}
	}
	c.logger.Debug("upstream response", "status", resp.StatusCode, "body", truncate(string(body), 200))
	return resp.StatusCode, body, nil
}

func (c client) statusError(status int, body []byte, n int) error {
	return &Error{API: c.api, Message: fmt.Sprintf("status %d: %s", status, truncate(string(body), n))}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return req, nil
}
