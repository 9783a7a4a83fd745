// Package tradelinesupply is the HTTP client for the upstream tradeline supplier
// (a WooCommerce REST API signed with OAuth 1.0a).
package tradelinesupply

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"golang.org/x/time/rate"

	"github.com/angelmondragon/tradelines-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
)

const (
	defaultTimeout             = 10 * time.Second
	responseBodyReadLimit int64 = 1024
)

var errCredentialsRequired = errors.New("supplier consumer key and secret are required")

// Client talks to the supplier pricing and order endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	noncer     oauth1.Noncer
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client requests are signed on top of.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured supplier base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithLimiter replaces the outbound request limiter.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// NewClient builds a supplier client from config.
func NewClient(cfg config.SupplierConfig, opts ...Option) (*Client, error) {
	key := strings.TrimSpace(cfg.ConsumerKey)
	secret := strings.TrimSpace(cfg.ConsumerSecret)
	if key == "" || secret == "" {
		return nil, errCredentialsRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		limiter:    rate.NewLimiter(limit, burst),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.baseURL == "" {
		return nil, errors.New("supplier base url is required")
	}
	client.httpClient = signingClient(client.httpClient, key, secret, client.noncer)
	return client, nil
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(c.baseURL, "/"), strings.TrimLeft(path, "/"))
}

// do executes a signed request, decoding a 2xx JSON body into dest.
func (c *Client) do(ctx context.Context, method, path string, body any, dest any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "supplier client not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "supplier rate limiter")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal supplier request")
		}
		reader = bytes.NewReader(payload)
	}

	target := c.buildURL(path)
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build supplier request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute supplier request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "supplier authentication failed")
		case http.StatusTooManyRequests:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "supplier rate limit exceeded")
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "supplier request failed")
		}
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode supplier response")
	}
	return nil
}
