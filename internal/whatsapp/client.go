// Package whatsapp sends template messages through the WhatsApp Business
// Cloud API. Only the template send endpoint is covered.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const maxResponseBody = 1 << 20

var (
	ErrCircuitOpen   = errors.New("whatsapp: circuit open")
	ErrNotConfigured = errors.New("whatsapp: phone number id and access token are required")
)

type Config struct {
	PhoneNumberID     string
	AccessToken       string
	BusinessAccountID string
	BaseURL           string
	APIVersion        string
	Timeout           time.Duration

	// FailThreshold consecutive transport or 5xx failures open the circuit for OpenFor.
	FailThreshold int
	OpenFor       time.Duration

	HTTPClient *http.Client
}

type Client struct {
	cfg  Config
	http *http.Client
	br   *breaker
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.PhoneNumberID == "" || cfg.AccessToken == "" {
		return nil, ErrNotConfigured
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v21.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		cfg:  cfg,
		http: hc,
		br:   newBreaker(cfg.FailThreshold, cfg.OpenFor),
	}, nil
}

func (c *Client) BusinessAccountID() string { return c.cfg.BusinessAccountID }

// SendTemplate posts a template message to `to`. A non-200 reply is not an
// error here; callers inspect Response. Errors are transport failures,
// ErrCircuitOpen, or a request that could not be built.
func (c *Client) SendTemplate(ctx context.Context, to, name, lang string, components *Components) (*Response, error) {
	if !c.br.tryAcquire() {
		return nil, ErrCircuitOpen
	}

	res, err := c.post(ctx, buildSendRequest(to, name, lang, components))
	if err != nil {
		c.br.onFailure()
		return nil, err
	}

	// 4xx is a bad request or bad credentials; the API itself is up
	if res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests {
		c.br.onFailure()
	} else {
		c.br.onSuccess()
	}

	return res, nil
}

func (c *Client) messagesURL() string {
	return fmt.Sprintf("%s/%s/%s/messages", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.APIVersion, c.cfg.PhoneNumberID)
}

func (c *Client) post(ctx context.Context, payload sendRequest) (*Response, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal template message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL(), bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("build whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read whatsapp response: %w", err)
	}

	return &Response{StatusCode: res.StatusCode, Body: body}, nil
}

func buildSendRequest(to, name, lang string, c *Components) sendRequest {
	req := sendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "template",
		Template: templateBody{
			Name:     name,
			Language: language{Code: lang},
		},
	}
	if c == nil {
		return req
	}

	if len(c.Header) > 0 {
		req.Template.Components = append(req.Template.Components, componentBody{Type: "header", Parameters: c.Header})
	}
	if len(c.Body) > 0 {
		req.Template.Components = append(req.Template.Components, componentBody{Type: "body", Parameters: c.Body})
	}
	for _, btn := range c.Buttons {
		idx := strconv.Itoa(btn.Index)
		req.Template.Components = append(req.Template.Components, componentBody{
			Type:       "button",
			SubType:    btn.SubType,
			Index:      &idx,
			Parameters: btn.Parameters,
		})
	}

	return req
}
