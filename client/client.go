// Package client is a Go client for the memstored HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apihttp "github.com/IvanBrykalov/memstore/internal/api/http"
	"github.com/IvanBrykalov/memstore/internal/store"
)

// Value is the stored value type, re-exported for callers.
type Value = store.Value

// Stats is the server's counter snapshot.
type Stats = apihttp.StatsResponse

var (
	// ErrStatus is wrapped by every *StatusError.
	ErrStatus = errors.New("client: unexpected HTTP status")
	// ErrEmptyKey is returned for operations on the empty key, which has no
	// URL on the server.
	ErrEmptyKey = errors.New("client: empty key")
)

// StatusError describes a non-success response.
type StatusError struct {
	StatusCode int
	Code       string // server error code, e.g. ENTRY_TOO_LARGE
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("client: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("client: HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// Client talks to one memstored server. Safe for concurrent use.
type Client struct {
	base string
	hc   *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc = &http.Client{Timeout: d} }
}

// New returns a client for baseURL, e.g. "http://127.0.0.1:9001".
// A bare host:port gets an http:// prefix.
func New(baseURL string, opts ...Option) *Client {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		hc:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Put stores v under key.
func (c *Client) Put(ctx context.Context, key string, v Value) error {
	if key == "" {
		return ErrEmptyKey
	}
	body, err := json.Marshal(apihttp.PutRequest{Value: &v})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, c.keyURL(key), body, nil)
}

// Get returns the value for key. A missing key is (zero, false, nil); any
// other 404, such as a wrong base path, is a *StatusError.
func (c *Client) Get(ctx context.Context, key string) (Value, bool, error) {
	if key == "" {
		return Value{}, false, ErrEmptyKey
	}
	var out apihttp.GetResponse
	err := c.do(ctx, http.MethodGet, c.keyURL(key), nil, &out)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound && se.Code == apihttp.CodeKeyNotFound {
		return Value{}, false, nil
	}
	if err != nil {
		return Value{}, false, err
	}
	return out.Value, true, nil
}

// Remove deletes key and reports whether it was present.
func (c *Client) Remove(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	var out apihttp.DeleteResponse
	if err := c.do(ctx, http.MethodDelete, c.keyURL(key), nil, &out); err != nil {
		return false, err
	}
	return out.Removed, nil
}

// Stats fetches the server counters.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var out Stats
	err := c.do(ctx, http.MethodGet, c.base+"/v1/stats", nil, &out)
	return out, err
}

func (c *Client) keyURL(key string) string {
	return c.base + "/v1/kv/" + url.PathEscape(key)
}

type envelope struct {
	Data  json.RawMessage   `json:"data"`
	Error *apihttp.AppError `json:"error"`
}

// do sends one request and decodes the data envelope into out (if non-nil).
func (c *Client) do(ctx context.Context, method, u string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	var env envelope
	decErr := json.NewDecoder(res.Body).Decode(&env)

	if res.StatusCode != http.StatusOK {
		se := &StatusError{StatusCode: res.StatusCode}
		if decErr == nil && env.Error != nil {
			se.Code, se.Message = env.Error.Code, env.Error.Message
		}
		return se
	}
	if decErr != nil {
		return fmt.Errorf("client: decode response: %w", decErr)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("client: decode data: %w", err)
		}
	}
	return nil
}
