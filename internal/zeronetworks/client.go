// Package zeronetworks implements a client for the Zero Networks
// portal REST API: authenticated requests, typed error mapping, and
// cursor-based pagination over activity endpoints.
package zeronetworks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"rmmhunt/internal/logging"
)

const (
	// DefaultBaseURL is the production portal host, used when no
	// override is given and the API key carries no audience claim.
	DefaultBaseURL = "portal.zeronetworks.com"

	// DefaultAPIPath is the fixed prefix for all API endpoints.
	DefaultAPIPath = "/api/v1"

	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
)

// Client is a Zero Networks API client. It is safe for concurrent use:
// headers are fixed at construction and the underlying http.Client
// pools connections across goroutines.
type Client struct {
	apiKey     string
	baseURL    string
	apiPath    string
	maxRetries int
	httpClient *http.Client
	log        *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the base URL derived from the API key. Used for
// non-production tenants and tests; a bare host is assumed to be https.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSpace(baseURL) }
}

// WithAPIPath overrides the API path prefix.
func WithAPIPath(path string) Option {
	return func(c *Client) {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		c.apiPath = path
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithMaxRetries sets the maximum number of attempts for a request that
// fails at the transport level.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// BaseURLFromAPIKey extracts the portal base URL from the aud claim of
// a JWT API key. The token is decoded without signature verification;
// only its payload is of interest.
func BaseURLFromAPIKey(apiKey string) (string, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return "", fmt.Errorf("api key cannot be empty")
	}

	token, _, err := jwt.NewParser().ParseUnverified(apiKey, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("decoding api key: %w", err)
	}

	aud, err := token.Claims.GetAudience()
	if err != nil {
		return "", fmt.Errorf("reading aud claim: %w", err)
	}
	for _, a := range aud {
		if a = strings.TrimSpace(a); a != "" {
			return a, nil
		}
	}
	return "", fmt.Errorf("aud claim not found in api key payload")
}

// New creates a Zero Networks API client. The base URL resolution chain
// is: WithBaseURL option, then the JWT aud claim, then DefaultBaseURL.
// A malformed key never fails construction; it degrades to the default
// host and surfaces as an authentication error on the first request.
func New(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("api key cannot be empty")
	}

	c := &Client{
		apiKey:     apiKey,
		apiPath:    DefaultAPIPath,
		maxRetries: DefaultMaxRetries,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.baseURL == "" {
		derived, err := BaseURLFromAPIKey(apiKey)
		if err != nil {
			c.log.Warn("failed to extract base URL from api key, using default",
				zap.String("base_url", DefaultBaseURL), zap.Error(err))
			c.baseURL = DefaultBaseURL
		} else {
			c.baseURL = derived
		}
	}

	c.log.Debug("initialized zero networks api client", zap.String("base_url", c.baseURL))
	return c, nil
}

// BaseURL returns the resolved base URL.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) endpointURL(endpoint string, params url.Values) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	base := c.baseURL
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	u := strings.TrimRight(base, "/") + c.apiPath + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// request performs one API call with retry on transport failures only.
// Non-2xx responses are mapped to an APIError immediately and never
// retried. Retries are immediate, up to maxRetries attempts total.
func (c *Client) request(ctx context.Context, method, endpoint string, params url.Values, body any) ([]byte, error) {
	var reqBody []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = b
	}

	fullURL := c.endpointURL(endpoint, params)
	c.log.Debug("api request", zap.String("method", method), zap.String("url", fullURL))

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var reader io.Reader
		if reqBody != nil {
			reader = bytes.NewReader(reqBody)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt < c.maxRetries {
				c.log.Warn("request failed, retrying",
					logging.Endpoint(endpoint), logging.Attempt(attempt), zap.Error(err))
				continue
			}
			c.log.Error("request failed after all attempts",
				logging.Endpoint(endpoint), logging.Attempt(attempt), zap.Error(err))
			return nil, fmt.Errorf("%s %s after %d attempts: %w", method, endpoint, c.maxRetries, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("reading response body: %w", readErr)
		}

		c.log.Debug("api response", zap.String("method", method),
			logging.Endpoint(endpoint), logging.Status(resp.StatusCode))

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, newStatusError(resp.StatusCode, respBody)
		}
		return respBody, nil
	}
	return nil, lastErr
}

// Get performs a GET request against an API endpoint.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	return c.request(ctx, http.MethodGet, endpoint, params, nil)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, params url.Values, body any) ([]byte, error) {
	return c.request(ctx, http.MethodPost, endpoint, params, body)
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, endpoint string, params url.Values, body any) ([]byte, error) {
	return c.request(ctx, http.MethodPut, endpoint, params, body)
}

// Delete performs a DELETE request against an API endpoint.
func (c *Client) Delete(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	return c.request(ctx, http.MethodDelete, endpoint, params, nil)
}

// AssetName resolves an asset ID to its display name via the assets
// endpoint. A 404 propagates as an APIError with KindNotFound, which
// callers treat as a recoverable unknown-asset condition.
func (c *Client) AssetName(ctx context.Context, assetID string) (string, error) {
	body, err := c.Get(ctx, "/assets/"+url.PathEscape(assetID), nil)
	if err != nil {
		return "", err
	}
	name := gjson.GetBytes(body, "entity.name").String()
	if name == "" {
		name = "N/A"
	}
	return name, nil
}
