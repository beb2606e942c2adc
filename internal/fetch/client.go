// Package fetch retrieves pages from the remote site. One request is made per
// call; failed requests are not retried.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Fetcher returns the body of a remote page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// StatusError is returned for any non-200 response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Status)
}

// Options configures a Client.
type Options struct {
	UserAgent      string
	Referer        string
	Timeout        time.Duration
	RequestsPerSec float64 // 0 disables the ceiling
}

// Client is a resty-backed Fetcher with browser-like headers and a request
// rate ceiling on top of the crawler's own fixed delays.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
}

func NewClient(opts Options) *Client {
	rc := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetLogger(disableLogger{}).
		SetHeader("Accept-Charset", "utf-8")
	if opts.UserAgent != "" {
		rc.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.Referer != "" {
		rc.SetHeader("Referer", opts.Referer)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1)
	}
	return &Client{resty: rc, limiter: limiter}
}

// Resty exposes the underlying client for callers that need raw responses.
func (c *Client) Resty() *resty.Client {
	return c.resty
}

func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.resty.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &StatusError{URL: url, Status: resp.StatusCode()}
	}
	return resp.Body(), nil
}

type disableLogger struct{}

func (disableLogger) Errorf(string, ...interface{}) {}
func (disableLogger) Warnf(string, ...interface{})  {}
func (disableLogger) Debugf(string, ...interface{}) {}
