// Package httpfetch is the network collaborator used by ingestion and logo
// resolution: a GET with a per-call timeout that returns status, headers
// and a size-capped body.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultMaxBody caps how much of a response body is read.
const DefaultMaxBody = 16 << 20

// Response is a fully read HTTP response. URL is the final URL after redirects.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ContentType returns the media type without parameters, lower-cased.
func (r *Response) ContentType() string {
	ct, _, _ := strings.Cut(r.Header.Get("Content-Type"), ";")
	return strings.ToLower(strings.TrimSpace(ct))
}

// Fetcher performs a GET bounded by timeout. Non-2xx statuses are returned
// as responses, not errors; errors are network failures only.
type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) (*Response, error)
}

// StatusError reports a non-2xx response where one was required.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.URL, e.StatusCode)
}

// Client implements Fetcher over a shared http.Client.
type Client struct {
	http      *http.Client
	userAgent string
	maxBody   int64
}

var _ Fetcher = (*Client)(nil)

// New returns a Client sending userAgent on every request.
func New(userAgent string) *Client {
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: userAgent,
		maxBody:   DefaultMaxBody,
	}
}

// Fetch GETs url. A zero timeout means no per-call bound beyond ctx.
func (c *Client) Fetch(ctx context.Context, url string, timeout time.Duration) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("NewRequest: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Do: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, fmt.Errorf("ReadAll: %w", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		URL:        resp.Request.URL.String(),
	}, nil
}

// GetOK fetches url and requires a 2xx status.
func GetOK(ctx context.Context, f Fetcher, url string, timeout time.Duration) (*Response, error) {
	resp, err := f.Fetch(ctx, url, timeout)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp, nil
}
