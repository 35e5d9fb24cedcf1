package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnreachable marks transport failures that mean the target is gone
// (connection refused, DNS failure, no route). Anything else, including
// timeouts and bad status codes, only costs the current sample.
var ErrUnreachable = errors.New("thread dump endpoint unreachable")

// maxPayloadSize bounds a single thread dump response.
const maxPayloadSize = 64 << 20

// New creates a Client for the given thread dump URL. A zero timeout disables
// the per-request deadline.
func New(url string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		url: url,
		http: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// URL returns the endpoint the client samples.
func (c *Client) URL() string {
	return c.url
}

// Fetch performs one GET request and returns the raw thread dump payload.
// There are no retries.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain;q=0.9")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if IsUnreachable(err) {
			return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		return nil, fmt.Errorf("fetching thread dump: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status code: %d, response: %s", resp.StatusCode, string(body))
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading thread dump: %w", err)
	}
	if len(payload) > maxPayloadSize {
		return nil, fmt.Errorf("thread dump exceeds %d bytes", maxPayloadSize)
	}

	c.logger.Debug().
		Int("bytes", len(payload)).
		Dur("elapsed", time.Since(start)).
		Str("content_type", resp.Header.Get("Content-Type")).
		Msg("Fetched thread dump")

	return payload, nil
}

// IsUnreachable reports whether a transport error means the target cannot be
// reached at all.
func IsUnreachable(err error) bool {
	if err == nil {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return !dnsErr.IsTimeout
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH)
}
