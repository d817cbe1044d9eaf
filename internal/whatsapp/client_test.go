package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *httptest.Server, threshold int) *Client {
	t.Helper()
	c, err := NewClient(Config{
		PhoneNumberID: "10001",
		AccessToken:   "secret-token",
		BaseURL:       srv.URL,
		APIVersion:    "v21.0",
		Timeout:       2 * time.Second,
		FailThreshold: threshold,
		OpenFor:       time.Minute,
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{PhoneNumberID: "1"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewClient(Config{AccessToken: "x"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClient_SendTemplate_Payload(t *testing.T) {
	type captured struct {
		path, auth string
		body       map[string]any
	}
	got := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cp := captured{path: r.URL.Path, auth: r.Header.Get("Authorization")}
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &cp.body)
		got <- cp
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 3)
	res, err := c.SendTemplate(context.Background(), "6591234567", "order_update", "en", &Components{
		Header:  []Parameter{ImageParam("https://img.example.test/a.png")},
		Body:    []Parameter{TextParam("Your order shipped"), TextParam("https://example.test/o/1")},
		Buttons: []Button{{SubType: "url", Index: 0, Parameters: []Parameter{TextParam("o/1")}}},
	})

	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.JSONEq(t, `{"messages":[{"id":"wamid.1"}]}`, string(res.Body))
	cp := <-got
	gotBody := cp.body
	assert.Equal(t, "/v21.0/10001/messages", cp.path)
	assert.Equal(t, "Bearer secret-token", cp.auth)

	assert.Equal(t, "whatsapp", gotBody["messaging_product"])
	assert.Equal(t, "6591234567", gotBody["to"])
	assert.Equal(t, "template", gotBody["type"])

	tpl := gotBody["template"].(map[string]any)
	assert.Equal(t, "order_update", tpl["name"])
	assert.Equal(t, map[string]any{"code": "en"}, tpl["language"])

	comps := tpl["components"].([]any)
	require.Len(t, comps, 3)
	assert.Equal(t, "header", comps[0].(map[string]any)["type"])
	body := comps[1].(map[string]any)
	assert.Equal(t, "body", body["type"])
	assert.Len(t, body["parameters"], 2)
	btn := comps[2].(map[string]any)
	assert.Equal(t, "button", btn["type"])
	assert.Equal(t, "url", btn["sub_type"])
	assert.Equal(t, "0", btn["index"])
}

func TestClient_SendTemplate_NonOKIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"forbidden"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 1)
	res, err := c.SendTemplate(context.Background(), "1", "t", "en", &Components{})

	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.False(t, res.OK())
	// client errors leave the circuit closed
	assert.Equal(t, closed, c.br.current())
}

func TestClient_SendTemplate_OpensCircuitOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 2)
	for i := 0; i < 2; i++ {
		res, err := c.SendTemplate(context.Background(), "1", "t", "en", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	}

	_, err := c.SendTemplate(context.Background(), "1", "t", "en", nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_SendTemplate_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newTestClient(t, srv, 5)
	_, err := c.SendTemplate(context.Background(), "1", "t", "en", nil)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCircuitOpen)
}

func TestBuildSendRequest_NoComponents(t *testing.T) {
	req := buildSendRequest("1", "hello_world", "en_US", nil)

	assert.Empty(t, req.Template.Components)
	b, err := json.Marshal(req)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "components")
}

func TestComponents_IsEmpty(t *testing.T) {
	var nilComps *Components
	assert.True(t, nilComps.IsEmpty())
	assert.True(t, (&Components{}).IsEmpty())
	assert.False(t, (&Components{Body: []Parameter{TextParam("x")}}).IsEmpty())
}
