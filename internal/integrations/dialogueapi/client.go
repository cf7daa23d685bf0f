// Package dialogueapi is the HTTP client for the remote dialogue endpoint.
// Transport and server failures are converted at this boundary into
// *dialogue.RemoteError before anything reaches the conversation store.
package dialogueapi

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

	"notechat/internal/dialogue"
	"notechat/internal/domain"
)

// dialogueRequest is the request body for the dialogue endpoint.
type dialogueRequest struct {
	Message             string               `json:"message"`
	ConversationHistory []domain.ChatMessage `json:"conversationHistory,omitempty"`
	KnowledgePointTitle string               `json:"knowledgePointTitle,omitempty"`
	KnowledgePointDesc  string               `json:"knowledgePointDesc,omitempty"`
}

// envelope is the service's unified response shape.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type dialogueData struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Client calls the knowledge-point dialogue API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client for the given API base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("dialogueapi: base URL must not be empty")
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetReply requests an assistant reply for the topic. The history carries
// the turns before the message being sent. All failure modes surface as
// *dialogue.RemoteError.
func (c *Client) GetReply(ctx context.Context, topicID, message string, history []domain.ChatMessage, title, description string) (domain.Reply, error) {
	body, err := json.Marshal(dialogueRequest{
		Message:             message,
		ConversationHistory: history,
		KnowledgePointTitle: title,
		KnowledgePointDesc:  description,
	})
	if err != nil {
		return domain.Reply{}, &dialogue.RemoteError{Reason: "marshal request", Err: err}
	}

	endpoint := fmt.Sprintf("%s/knowledge-points/%s/dialogue", c.baseURL, url.PathEscape(topicID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Reply{}, &dialogue.RemoteError{Reason: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Reply{}, &dialogue.RemoteError{Reason: "dialogue request failed", Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return domain.Reply{}, &dialogue.RemoteError{Reason: "read response body", Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return domain.Reply{}, &dialogue.RemoteError{
			Reason: fmt.Sprintf("unexpected status %d from %s", res.StatusCode, endpoint),
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.Reply{}, &dialogue.RemoteError{Reason: "decode response", Err: err}
	}
	if env.Code != 0 {
		reason := env.Message
		if reason == "" {
			reason = fmt.Sprintf("service error code %d", env.Code)
		}
		return domain.Reply{}, &dialogue.RemoteError{Reason: reason}
	}

	var data dialogueData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return domain.Reply{}, &dialogue.RemoteError{Reason: "decode reply payload", Err: err}
	}

	reply := domain.Reply{Message: data.Message}
	if data.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, data.Timestamp); err == nil {
			reply.Timestamp = ts
		}
	}
	return reply, nil
}

var _ dialogue.Client = (*Client)(nil)
