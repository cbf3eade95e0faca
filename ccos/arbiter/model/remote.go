package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// RemoteClient is a generic HTTP Client: it POSTs a Request as JSON to
// Endpoint and decodes a Response, without any vendor-specific wire format.
// It is deliberately provider-agnostic — operators wanting Anthropic,
// OpenAI, or Bedrock semantics register their own Client.
type RemoteClient struct {
	// Endpoint is the completion URL, e.g. "https://llm.internal/complete".
	Endpoint string
	// AuthEnvVar, if set, names an environment variable whose value is sent
	// as a Bearer token in the Authorization header.
	AuthEnvVar string
	// HTTPClient is used to issue requests; defaults to a 60s timeout client
	// when nil.
	HTTPClient *http.Client
}

var _ Client = (*RemoteClient)(nil)

// NewRemoteClient constructs a RemoteClient with a default timeout.
func NewRemoteClient(endpoint, authEnvVar string) *RemoteClient {
	return &RemoteClient{
		Endpoint:   endpoint,
		AuthEnvVar: authEnvVar,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type remoteRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type remoteResponse struct {
	Text       string     `json:"text"`
	Usage      TokenUsage `json:"usage"`
	StopReason string     `json:"stop_reason"`
}

func (c *RemoteClient) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

func (c *RemoteClient) do(ctx context.Context, req remoteRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.AuthEnvVar != "" {
		if token := os.Getenv(c.AuthEnvVar); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return c.client().Do(httpReq)
}

func (c *RemoteClient) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.do(ctx, remoteRequest{Model: req.Model, Messages: req.Messages, Temperature: req.Temperature, MaxTokens: req.MaxTokens})
	if err != nil {
		return Response{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return Response{}, fmt.Errorf("model remote: status %d: %s", resp.StatusCode, string(data))
	}
	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, err
	}
	return Response{Text: out.Text, Usage: out.Usage, StopReason: out.StopReason}, nil
}

// Stream is unsupported; the Arbiter only ever issues unary completions.
func (c *RemoteClient) Stream(ctx context.Context, req Request) (Streamer, error) {
	return nil, ErrStreamingUnsupported
}
