package transfer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/moyoez/cloudsend/tool"
)

// maxErrorBody bounds how much of an error response is read for its detail.
const maxErrorBody = 64 * 1024

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	// MaxRetries is the number of extra attempts for a retryable failure.
	// Zero sends every request exactly once.
	MaxRetries      int
	InitialInterval time.Duration
	// OnUnauthorized is called whenever the store answers 401.
	OnUnauthorized func()
}

// Client executes authenticated requests against the remote store.
// It is safe for concurrent use.
type Client struct {
	baseURL         string
	http            *http.Client
	maxRetries      int
	initialInterval time.Duration
	onUnauthorized  func()

	mu    sync.RWMutex
	token string
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = tool.NewHTTPClient(0, false, 0)
	}
	interval := opts.InitialInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Client{
		baseURL:         opts.BaseURL,
		http:            httpClient,
		maxRetries:      max(0, opts.MaxRetries),
		initialInterval: interval,
		onUnauthorized:  opts.OnUnauthorized,
		token:           opts.Token,
	}
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// requestFunc builds a fresh request for one attempt.
type requestFunc func(ctx context.Context) (*http.Request, error)

// do sends the request built by build, retrying retryable failures up to
// maxRetries times. On a 2xx response it returns the body; every other
// outcome is a *RequestError.
func (c *Client) do(ctx context.Context, op string, build requestFunc) ([]byte, int, error) {
	var (
		body   []byte
		status int
	)
	attempt := 0
	operation := func() error {
		attempt++
		var err error
		body, status, err = c.doOnce(ctx, op, build)
		if err == nil {
			return nil
		}
		var reqErr *RequestError
		if errors.As(err, &reqErr) && reqErr.Retryable() && attempt <= c.maxRetries {
			tool.DefaultLogger.Debugf("[Transfer] %s attempt %d failed, retrying: %v", op, attempt, err)
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx))
	if err != nil {
		var reqErr *RequestError
		if !errors.As(err, &reqErr) {
			err = &RequestError{Op: op, Err: err}
		}
		return nil, status, err
	}
	return body, status, nil
}

func (c *Client) doOnce(ctx context.Context, op string, build requestFunc) ([]byte, int, error) {
	req, err := build(ctx)
	if err != nil {
		return nil, 0, &RequestError{Op: op, Err: err}
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, &RequestError{Op: op, Err: ctx.Err()}
		}
		return nil, 0, &RequestError{Op: op, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			tool.DefaultLogger.Errorf("Failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil {
			tool.DefaultLogger.Warnf("Failed to read error response body: %v", readErr)
		}
		if resp.StatusCode == StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return nil, resp.StatusCode, newStatusError(op, resp, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &RequestError{Op: op, StatusCode: resp.StatusCode, Status: resp.Status, Err: err}
	}
	return body, resp.StatusCode, nil
}
