package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "shortlink-bot/1.0"

	maxBodyBytes = 64 << 10
)

// Options configure the network adapters
type Options struct {
	Timeout   time.Duration
	UserAgent string

	// HashDomain is the scheme+host used by the hash provider
	HashDomain string

	// Endpoints overrides base URLs per provider name (tests, self-hosted mirrors)
	Endpoints map[string]string
}

func (o Options) endpoint(name, def string) string {
	if v, ok := o.Endpoints[name]; ok && v != "" {
		return strings.TrimRight(v, "/")
	}
	return def
}

// httpClient is the request session shared by one adapter.
// Headers are fixed at construction and never mutated afterwards.
type httpClient struct {
	client  *http.Client
	headers http.Header
}

func newHTTPClient(opts Options) *httpClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	headers := make(http.Header)
	headers.Set("User-Agent", ua)
	headers.Set("Accept", "*/*")

	return &httpClient{
		client:  &http.Client{Timeout: timeout},
		headers: headers,
	}
}

// do sends the request and returns the body of a 2xx response
func (c *httpClient) do(ctx context.Context, req *http.Request) ([]byte, error) {
	req = req.WithContext(ctx)
	for k, v := range c.headers {
		req.Header[k] = v
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	return body, nil
}

// plainText extracts a short URL from a text/plain body
func plainText(body []byte) (string, error) {
	short := strings.TrimSpace(string(body))
	if short == "" || strings.ContainsAny(short, " \n") {
		return "", ErrMalformedBody
	}
	return short, nil
}
