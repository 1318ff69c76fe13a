package sellapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	method string
	path   string
	header http.Header
	body   []byte
}

func newCaptureServer(t *testing.T, status int, respBody string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.header = r.Header.Clone()
		got.body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestClientCreateCharge_SendsAuthenticatedJSON(t *testing.T) {
	srv, got := newCaptureServer(t, http.StatusCreated, `{"data":{"id":"c1","url":"https://pay.example/c1"}}`)
	c := NewClient(Options{BaseURL: srv.URL, APIKey: "secret", Store: "john"}, nil)

	resp, err := c.CreateCharge(context.Background(), CreateChargeRequest{
		Reference: "Charge #77",
		Currency:  "USD",
		Total:     2550,
		Webhook:   "https://shop.example/webhooks/sellapp?wc_id=77",
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"data":{"id":"c1","url":"https://pay.example/c1"}}`, string(resp.Body))
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/v2/charges", got.path)
	assert.Equal(t, "Bearer secret", got.header.Get("Authorization"))
	assert.Equal(t, "application/json", got.header.Get("Accept"))
	assert.Contains(t, got.header.Get("Content-Type"), "application/json")
	assert.Equal(t, "john", got.header.Get("X-STORE"))
	assert.Contains(t, got.header.Get("User-Agent"), "SellApp Orderflow")

	var sent map[string]any
	require.NoError(t, json.Unmarshal(got.body, &sent))
	assert.Equal(t, "Charge #77", sent["reference"])
	assert.EqualValues(t, 2550, sent["total"])
	assert.NotContains(t, sent, "customer_data")
}

func TestClientFetchCharge_NoBodyNoStoreHeader(t *testing.T) {
	srv, got := newCaptureServer(t, http.StatusOK, `{"data":{"id":"c1","status":"COMPLETED"}}`)
	c := NewClient(Options{BaseURL: srv.URL, APIKey: "k"}, nil)

	resp, err := c.FetchCharge(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, http.MethodGet, got.method)
	assert.Equal(t, "/v2/charges/c1", got.path)
	assert.Empty(t, got.body)
	assert.Empty(t, got.header.Get("X-STORE"))
}

func TestClientDo_ExtraHeadersAndEmptyBody(t *testing.T) {
	srv, got := newCaptureServer(t, http.StatusOK, `{}`)
	c := NewClient(Options{BaseURL: srv.URL, APIKey: "k"}, nil)

	_, err := c.Do(context.Background(), http.MethodPost, "/v2/ping", map[string]any{}, map[string]string{"X-Trace": "t1"})
	require.NoError(t, err)

	assert.Empty(t, got.body, "empty map must not be serialised")
	assert.Equal(t, "t1", got.header.Get("X-Trace"))
}

func TestClientDo_ReturnsNon2xxUninterpreted(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusUnprocessableEntity, `{"error":"invalid_key","status":422}`)
	c := NewClient(Options{BaseURL: srv.URL, APIKey: "k"}, nil)

	resp, err := c.FetchCharge(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestClientDo_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(Options{BaseURL: base, APIKey: "k"}, nil)
	_, err := c.FetchCharge(context.Background(), "c1")

	var te *TransportError
	require.True(t, errors.As(err, &te), "expected TransportError, got %v", err)
	assert.Equal(t, http.MethodGet, te.Method)
}

func TestClientDo_TimeoutIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, APIKey: "k", Timeout: 20 * time.Millisecond}, nil)
	_, err := c.FetchCharge(context.Background(), "c1")

	var te *TransportError
	assert.True(t, errors.As(err, &te))
}

func TestEnvelopeErrorText(t *testing.T) {
	cases := map[string]string{
		`{"error":"invalid_key","status":401}`: "invalid_key",
		`{"error":{"code":"x"}}`:               `{"code":"x"}`,
		`{"error":""}`:                         "",
		`{"data":{"id":"c1"}}`:                 "",
	}
	for body, want := range cases {
		var env Envelope
		require.NoError(t, json.Unmarshal([]byte(body), &env))
		assert.Equal(t, want, env.ErrorText(), body)
	}
}

func TestTextAcceptsNumbers(t *testing.T) {
	var c Charge
	require.NoError(t, json.Unmarshal([]byte(`{"id":12345,"status":"PENDING"}`), &c))
	assert.Equal(t, Text("12345"), c.ID)
}

func TestNewClient_UsesFixedTimeout(t *testing.T) {
	c := NewClient(Options{APIKey: "k"}, nil)
	assert.Equal(t, DefaultTimeout, c.http.GetClient().Timeout)
	assert.Equal(t, 30*time.Second, DefaultTimeout)
}
