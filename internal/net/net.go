package net

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
)

const backoffMultiplier = 10

const (
	MaxRetries     = 5
	DefaultBackoff = time.Second
)

type Metadata struct {
	SDKType         string
	SDKVersion      string
	LanguageVersion string
	SessionID       string
}

func (m Metadata) userAgent() string {
	ua := m.SDKType + "/" + m.SDKVersion
	if m.LanguageVersion != "" {
		ua += " go/" + m.LanguageVersion
	}
	return ua
}

// StatusError is returned for a response outside the 2xx range.
type StatusError struct {
	StatusCode int
	Endpoint   string
	Retries    int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http response error code %d from %s after %d retries", e.StatusCode, e.Endpoint, e.Retries)
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Net struct {
	api      string
	metadata Metadata
	client   *http.Client
	retries  int
	backoff  time.Duration
}

type Option func(*Net)

// WithRetries retries requests that fail with a retryable status or a
// transport error, sleeping backoff, then backoff*10, and so on.
func WithRetries(retries int, backoff time.Duration) Option {
	return func(n *Net) {
		if retries > MaxRetries {
			retries = MaxRetries
		}
		n.retries = retries
		n.backoff = backoff
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(n *Net) {
		if client != nil {
			n.client = client
		}
	}
}

func New(api string, metadata Metadata, opts ...Option) *Net {
	n := &Net{
		api:      strings.TrimSuffix(api, "/"),
		metadata: metadata,
		client:   &http.Client{Timeout: 30 * time.Second},
		backoff:  DefaultBackoff,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Net) API() string {
	return n.api
}

// PostJSON posts in as JSON and decodes a 2xx response body into out.
func (n *Net) PostJSON(ctx context.Context, endpoint string, in interface{}, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	res, err := n.do(ctx, http.MethodPost, endpoint, nil, body)
	if err != nil {
		return err
	}
	if out == nil || len(res.Body) == 0 {
		return nil
	}
	return json.Unmarshal(res.Body, out)
}

func (n *Net) Get(ctx context.Context, endpoint string, query url.Values) (*Response, error) {
	return n.do(ctx, http.MethodGet, endpoint, query, nil)
}

func (n *Net) do(ctx context.Context, method string, endpoint string, query url.Values, body []byte) (*Response, error) {
	target := n.api + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var out *Response
	attempts := 0
	err := retry(ctx, n.retries, n.backoff, func() (bool, error) {
		defer func() { attempts++ }()
		res, err := n.doRequest(ctx, method, target, body)
		if err != nil {
			return ctx.Err() == nil, err
		}
		defer res.Body.Close()

		if res.StatusCode < 200 || res.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, res.Body)
			return shouldRetry(res.StatusCode), &StatusError{StatusCode: res.StatusCode, Endpoint: endpoint, Retries: attempts}
		}
		data, err := io.ReadAll(res.Body)
		if err != nil {
			return true, err
		}
		out = &Response{StatusCode: res.StatusCode, Header: res.Header, Body: data}
		return false, nil
	})
	return out, err
}

func (n *Net) doRequest(ctx context.Context, method string, target string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", n.metadata.userAgent())
	if n.metadata.SessionID != "" {
		req.Header.Set("X-Flagkit-Session-ID", n.metadata.SessionID)
	}
	return n.client.Do(req)
}

func retry(ctx context.Context, retries int, backoff time.Duration, fn func() (bool, error)) error {
	for {
		retryable, err := fn()
		if !retryable || retries <= 0 {
			return err
		}
		retries--
		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff):
		}
		backoff = backoff * backoffMultiplier
	}
}

func shouldRetry(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504, 522, 524, 599:
		return true
	default:
		return false
	}
}
