package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"

	"tss-cli/internal/logger"
)

const (
	// DefaultAttempts is the total number of tries per request.
	DefaultAttempts = 3
	// DefaultRetryDelay is the pause between two tries.
	DefaultRetryDelay = 250 * time.Millisecond
)

var (
	// ErrUnreachable means the relay could not be reached after all attempts.
	ErrUnreachable = errors.New("relay unreachable")
	// ErrRelay means the relay answered with an error where none is expected.
	ErrRelay = errors.New("relay error")
)

// Client posts JSON requests to the rendezvous manager.
type Client struct {
	address    string
	httpClient *http.Client
	attempts   uint64
	retryDelay time.Duration
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// WithRetry overrides the attempt count and the delay between attempts.
func WithRetry(attempts uint64, delay time.Duration) ClientOption {
	return func(c *Client) {
		c.attempts = attempts
		c.retryDelay = delay
	}
}

// NewClient creates a client for the manager at address.
func NewClient(address string, opts ...ClientOption) *Client {
	c := &Client{
		address:    strings.TrimRight(address, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		attempts:   DefaultAttempts,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.attempts == 0 {
		c.attempts = 1
	}
	if c.retryDelay <= 0 {
		c.retryDelay = DefaultRetryDelay
	}
	return c
}

// Address is the manager base address.
func (c *Client) Address() string { return c.address }

// Post sends body to {address}/{path} and decodes the response into out.
// Only connection failures are retried; relay level errors come back as a
// regular response body for the caller to interpret.
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrapf(err, "encode %s request", path)
	}
	url := fmt.Sprintf("%s/%s", c.address, path)

	backoff := retry.WithMaxRetries(c.attempts-1, retry.NewConstant(c.retryDelay))

	var respBody []byte
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			logger.Log.Debugf("POST %s attempt %d/%d failed: %v", url, attempt, c.attempts, err)
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(ErrUnreachable, "POST %s after %d attempts: %v", url, attempt, err)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrapf(err, "decode %s response %q", path, truncate(respBody, 128))
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
