package backend

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/network/standard"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/model/chat"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/model/speech"
)

// ErrStatus marks a response whose HTTP status was outside 2xx.
var ErrStatus = errors.New("unexpected HTTP status")

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Client talks to the remote assistant service over JSON HTTP.
type Client struct {
	client  *client.Client
	baseURL string
	timeout time.Duration
}

// NewClient creates a client for baseURL. A zero timeout leaves requests
// unbounded.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL: %w", err)
	}

	c, err := client.NewClient(
		client.WithDialTimeout(10*time.Second),
		client.WithMaxIdleConnDuration(60*time.Second),
		client.WithDialer(standard.NewDialer()),
		client.WithTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &Client{
		client:  c,
		baseURL: normalized,
		timeout: timeout,
	}, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// normalizeBaseURL adds a missing scheme and drops the trailing slash. The
// path is kept: API gateways mount the service under a stage prefix.
func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}

	return fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, strings.TrimRight(u.Path, "/")), nil
}

// Chat sends one user message.
func (c *Client) Chat(ctx context.Context, req chat.ChatRequest) (*chat.ChatResponse, error) {
	var resp chat.ChatResponse
	if err := c.postJSON(ctx, endpointChat, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Synthesize requests speech audio for a text.
func (c *Client) Synthesize(ctx context.Context, req speech.SpeechRequest) (*speech.SpeechResponse, error) {
	var resp speech.SpeechResponse
	if err := c.postJSON(ctx, endpointSpeech, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Transcribe sends captured audio for speech-to-text.
func (c *Client) Transcribe(ctx context.Context, req speech.TranscribeRequest) (*speech.TranscribeResponse, error) {
	var resp speech.TranscribeResponse
	if err := c.postJSON(ctx, endpointTranscribe, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SaveConversation archives a transcript. The response body is ignored.
func (c *Client) SaveConversation(ctx context.Context, req chat.SaveConversationRequest) error {
	return c.postJSON(ctx, endpointSaveConversation, req, nil)
}

// Health queries the service health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer func() {
		protocol.ReleaseRequest(req)
		protocol.ReleaseResponse(resp)
	}()

	req.SetMethod(consts.MethodGet)
	req.SetRequestURI(c.baseURL + endpointHealth)
	req.Header.Set("Accept", "application/json")

	if err := c.do(ctx, req, resp); err != nil {
		return nil, err
	}

	var status HealthStatus
	if err := sonic.Unmarshal(resp.Body(), &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &status, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	bodyBytes, err := sonic.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer func() {
		protocol.ReleaseRequest(req)
		protocol.ReleaseResponse(resp)
	}()

	req.SetMethod(consts.MethodPost)
	req.SetRequestURI(c.baseURL + endpoint)
	req.Header.SetContentTypeBytes([]byte("application/json"))
	req.Header.Set("Accept", "application/json")
	req.SetBody(bodyBytes)

	if err := c.do(ctx, req, resp); err != nil {
		return err
	}

	body := resp.Body()
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, req *protocol.Request, resp *protocol.Response) error {
	var err error
	if c.timeout > 0 {
		err = c.client.DoTimeout(ctx, req, resp, c.timeout)
	} else {
		err = c.client.Do(ctx, req, resp)
	}
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("%w: %d, body: %s", ErrStatus, statusCode, string(resp.Body()))
	}
	return nil
}
