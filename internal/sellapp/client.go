// Package sellapp talks to the Sell.app charges API. The client performs
// authenticated calls and returns raw responses; the verifier is the only place
// charge state read from the API is trusted.
package sellapp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"runtime"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Version is reported to the processor in the user agent and charge metadata.
const Version = "1.0.0"

// DefaultBaseURL is the processor's API root.
const DefaultBaseURL = "https://sell.app/api"

// DefaultTimeout bounds every call to the processor.
const DefaultTimeout = 30 * time.Second

// ChargesRoute is the versioned charges collection.
const ChargesRoute = "/v2/charges"

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	// Store is sent as the X-STORE header when more than one store shares a key.
	Store   string
	Timeout time.Duration
	// Debug logs request and response bodies.
	Debug bool
}

// Response is the unprocessed result of a call.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client issues authenticated HTTP calls to the processor.
type Client struct {
	http  *resty.Client
	opts  Options
	log   *zap.Logger
	agent string
}

// NewClient builds a Client. Zero-valued BaseURL and Timeout take the defaults.
func NewClient(opts Options, log *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	rc := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout)
	return &Client{
		http:  rc,
		opts:  opts,
		log:   log.Named("sellapp"),
		agent: fmt.Sprintf("SellApp Orderflow/%s (Go %s)", Version, runtime.Version()),
	}
}

func (c *Client) headers(extra map[string]string) map[string]string {
	h := map[string]string{
		"Content-Type":  "application/json",
		"Accept":        "application/json",
		"User-Agent":    c.agent,
		"Authorization": "Bearer " + c.opts.APIKey,
	}
	if c.opts.Store != "" {
		h["X-STORE"] = c.opts.Store
	}
	for k, v := range extra {
		h[k] = v
	}
	return h
}

// encodeBody returns the JSON encoding of body, or nil when there is nothing
// worth sending.
func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	switch string(raw) {
	case "null", "{}", "[]", `""`:
		return nil, nil
	}
	return raw, nil
}

// Do performs method on route. Transport failures come back as *TransportError;
// any HTTP response, whatever its status, is returned as-is.
func (c *Client) Do(ctx context.Context, method, route string, body any, extraHeaders map[string]string) (*Response, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	if c.opts.Debug {
		c.log.Debug("processor request",
			zap.String("method", method),
			zap.String("url", c.opts.BaseURL+route),
			zap.ByteString("body", payload))
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeaders(c.headers(extraHeaders))
	if payload != nil {
		req.SetBody(payload)
	}

	resp, err := req.Execute(method, route)
	if err != nil {
		c.log.Debug("processor transport error", zap.Error(err))
		return nil, &TransportError{Method: method, Route: route, Err: err}
	}

	if c.opts.Debug {
		c.log.Debug("processor response",
			zap.Int("status", resp.StatusCode()),
			zap.ByteString("body", resp.Body()))
	}

	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}

// CreateCharge posts a new charge.
func (c *Client) CreateCharge(ctx context.Context, req CreateChargeRequest) (*Response, error) {
	return c.Do(ctx, http.MethodPost, ChargesRoute, req, nil)
}

// FetchCharge reads a charge by id.
func (c *Client) FetchCharge(ctx context.Context, chargeID string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, ChargesRoute+"/"+url.PathEscape(chargeID), nil, nil)
}
