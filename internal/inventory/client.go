// Package inventory is the HTTP client for a remote inventory service that
// serves the catalog in bulk and answers legacy full-text searches.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"
)

const (
	UserAgent        = "trackmatch-srv/1.0"
	defaultTimeout   = 30 * time.Second
	defaultRateLimit = 1.5
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrStatus wraps non-2xx responses.
var ErrStatus = errors.New("inventory api error")

type tokenKey struct{}

// WithToken attaches a caller's bearer token to ctx. It takes precedence over
// the client's configured token.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL           string
	Token             string
	RequestsPerSecond float64
	Timeout           time.Duration
	HTTPClient        *http.Client
}

type Client struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	BaseURL    string
	Token      string
}

func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("inventory base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("inventory base url: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRateLimit
	}

	return &Client{
		HTTPClient: httpClient,
		Limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		BaseURL:    base,
		Token:      opts.Token,
	}, nil
}

// Do waits for the limiter and sends req with auth and accept headers.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	token := tokenFrom(ctx)
	if token == "" {
		token = c.Token
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.HTTPClient.Do(req)
}

// DoRequest issues a GET against path and decodes the JSON body into result.
func (c *Client) DoRequest(ctx context.Context, path string, query url.Values, result any) error {
	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("inventory request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned status %d: %s", ErrStatus, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
