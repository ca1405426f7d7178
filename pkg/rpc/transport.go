package rpc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Transport carries one encoded request or batch to the node and returns the
// raw reply. Implementations must be safe for concurrent use.
type Transport interface {
	Post(ctx context.Context, body []byte) ([]byte, error)
}

// HTTPTransportConfig contains configuration options for the HTTP transport
type HTTPTransportConfig struct {
	// URL is the node endpoint, e.g. http://127.0.0.1:1337
	URL string

	// Timeout bounds a single POST including reading the reply
	Timeout time.Duration

	// MaxResponseSize caps the reply body; larger replies are a transport error
	MaxResponseSize int64

	// Header is added to every request
	Header http.Header

	// Client overrides the HTTP client. Timeout is ignored when it is set.
	Client *http.Client
}

// DefaultHTTPTransportConfig provides defaults for everything except URL
var DefaultHTTPTransportConfig = HTTPTransportConfig{
	Timeout:         10 * time.Second,
	MaxResponseSize: 32 << 20,
}

// HTTPTransport posts JSON bodies to a node over HTTP.
type HTTPTransport struct {
	url     string
	header  http.Header
	client  *http.Client
	maxSize int64
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport checks the URL and returns a transport. Zero fields of cfg
// fall back to DefaultHTTPTransportConfig.
func NewHTTPTransport(cfg HTTPTransportConfig) (*HTTPTransport, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: bad node url %q", ErrInvalidRequest, cfg.URL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHTTPTransportConfig.Timeout
	}
	if cfg.MaxResponseSize <= 0 {
		cfg.MaxResponseSize = DefaultHTTPTransportConfig.MaxResponseSize
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &HTTPTransport{
		url:     u.String(),
		header:  cfg.Header.Clone(),
		client:  client,
		maxSize: cfg.MaxResponseSize,
	}, nil
}

// Post sends body and returns the reply. Any failure wraps ErrTransport.
func (t *HTTPTransport) Post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, transportError(err)
	}
	for k, vs := range t.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := t.client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer res.Body.Close()

	reply, err := io.ReadAll(io.LimitReader(res.Body, t.maxSize+1))
	if err != nil {
		return nil, transportError(fmt.Errorf("read reply: %w", err))
	}
	if int64(len(reply)) > t.maxSize {
		return nil, transportError(fmt.Errorf("reply exceeds %d bytes", t.maxSize))
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, transportError(fmt.Errorf("http status %d: %s", res.StatusCode, snippet(reply)))
	}
	if len(bytes.TrimSpace(reply)) == 0 {
		return nil, transportError(ErrEmptyResponse)
	}
	return reply, nil
}

func snippet(b []byte) string {
	const limit = 128
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
