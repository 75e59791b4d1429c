// Package discogs is a minimal Discogs API client for CrateScout.
// It covers the collection and marketplace endpoints used by the search
// pipeline, with proxy support and optional client-side request pacing.
package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public Discogs API endpoint
	DefaultBaseURL = "https://api.discogs.com"

	// DefaultTimeout bounds a single HTTP round trip
	DefaultTimeout = 15 * time.Second

	// DefaultUserAgent is sent when none is configured; Discogs rejects requests without one
	DefaultUserAgent = "CrateScout/1.0"

	// maxErrorBody caps how much of an error response is kept in APIError
	maxErrorBody = 512
)

// Config configures a Client.
type Config struct {
	BaseURL   string
	Token     string
	UserAgent string
	// ProxyURL accepts socks5://, socks5h://, http:// and https:// URLs
	ProxyURL string
	Timeout  time.Duration
	// RequestsPerSecond paces outgoing requests; zero disables pacing
	RequestsPerSecond float64
	Burst             int
}

// Client talks to the Discogs REST API. It is safe for concurrent use.
type Client struct {
	baseURL   string
	token     string
	userAgent string
	http      *http.Client
	pacer     *rate.Limiter
}

// APIError is returned for any non-200 Discogs response.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("discogs api error: status=%d message=%s", e.StatusCode, e.Message)
}

// CollectionItemsResponse is the body of /users/{username}/collection/releases/{release_id}.
type CollectionItemsResponse struct {
	Pagination struct {
		Page    int `json:"page"`
		Pages   int `json:"pages"`
		PerPage int `json:"per_page"`
		Items   int `json:"items"`
	} `json:"pagination"`
	Releases []CollectionItem `json:"releases"`
}

// CollectionItem is one instance of a release in a user's collection.
type CollectionItem struct {
	ID         *int64 `json:"id"`
	InstanceID int64  `json:"instance_id"`
	FolderID   int64  `json:"folder_id"`
	Rating     int    `json:"rating"`
	DateAdded  string `json:"date_added"`
}

// MarketplaceStatsResponse is the body of /marketplace/stats/{release_id}.
type MarketplaceStatsResponse struct {
	LowestPrice *struct {
		Currency string  `json:"currency"`
		Value    float64 `json:"value"`
	} `json:"lowest_price"`
	NumForSale      *int `json:"num_for_sale"`
	BlockedFromSale bool `json:"blocked_from_sale"`
}

// errorBody is the JSON error shape Discogs uses
type errorBody struct {
	Message string `json:"message"`
}

// NewClient creates a Discogs client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient, err := createHTTPClient(cfg.ProxyURL, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	c := &Client{
		baseURL:   baseURL,
		token:     cfg.Token,
		userAgent: userAgent,
		http:      httpClient,
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.pacer = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return c, nil
}

// CollectionItemsByRelease lists the instances of releaseID in username's collection.
// A release that is not in the collection yields an empty Releases list.
func (c *Client) CollectionItemsByRelease(ctx context.Context, username string, releaseID int64) (*CollectionItemsResponse, error) {
	if username == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}

	endpoint := fmt.Sprintf("%s/users/%s/collection/releases/%d",
		c.baseURL, url.PathEscape(username), releaseID)

	var resp CollectionItemsResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// MarketplaceStats returns the marketplace summary for releaseID priced in currency.
func (c *Client) MarketplaceStats(ctx context.Context, releaseID int64, currency string) (*MarketplaceStatsResponse, error) {
	endpoint := c.baseURL + "/marketplace/stats/" + strconv.FormatInt(releaseID, 10)
	if currency != "" {
		endpoint += "?curr_abbr=" + url.QueryEscape(currency)
	}

	var resp MarketplaceStatsResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// getJSON performs one GET and decodes a 200 body into out. There is no retry
// here: callers wrap these calls in a circuit breaker that must see every failure.
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	if c.pacer != nil {
		if err := c.pacer.Wait(ctx); err != nil {
			return fmt.Errorf("request pacing interrupted: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.discogs.v2.discogs+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Discogs token="+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return newAPIError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func newAPIError(status int, body []byte) *APIError {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Message != "" {
		return &APIError{StatusCode: status, Message: eb.Message}
	}

	msg := string(body)
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	return &APIError{StatusCode: status, Message: msg}
}

// createHTTPClient builds an HTTP client with optional proxy support
func createHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}

		switch parsed.Scheme {
		case "socks5", "socks5h":
			dialer, err := createSOCKS5Dialer(parsed)
			if err != nil {
				return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
			}
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				transport.DialContext = cd.DialContext
			} else {
				transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
					return dialer.Dial(network, addr)
				}
			}

		case "http", "https":
			transport.Proxy = http.ProxyURL(parsed)

		default:
			return nil, fmt.Errorf("unsupported proxy scheme: %s (supported: socks5, http, https)", parsed.Scheme)
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}

// createSOCKS5Dialer creates a SOCKS5 dialer, defaulting to port 1080
func createSOCKS5Dialer(parsed *url.URL) (proxy.Dialer, error) {
	var auth *proxy.Auth
	if parsed.User != nil {
		password, _ := parsed.User.Password()
		auth = &proxy.Auth{
			User:     parsed.User.Username(),
			Password: password,
		}
	}

	host := parsed.Host
	if !strings.Contains(host, ":") {
		host += ":1080"
	}

	return proxy.SOCKS5("tcp", host, auth, proxy.Direct)
}
