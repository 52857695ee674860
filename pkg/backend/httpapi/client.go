package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/1-kabir/cfm/pkg/backend"
)

// Client implements backend.API over the build-assistant REST surface.
type Client struct {
	config     *backend.Config
	httpClient *http.Client
}

var _ backend.API = (*Client)(nil)

// New creates a REST client for the given configuration.
func New(config *backend.Config) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// messageRequest is the body of POST /api/conversations/{id}/messages.
type messageRequest struct {
	Message string `json:"message"`
}

// messageResponse is the reply envelope of POST /api/conversations/{id}/messages.
type messageResponse struct {
	Response *string `json:"response"`
}

// modeRequest is the body of POST /api/conversations/{id}/mode.
type modeRequest struct {
	Mode backend.Mode `json:"mode"`
}

// Health probes GET /api/health with the given credential.
func (c *Client) Health(ctx context.Context, token backend.Token) error {
	_, err := c.do(ctx, token, http.MethodGet, "/api/health", nil)
	return err
}

// ListConversations returns the owner's conversations in server order.
func (c *Client) ListConversations(ctx context.Context, token backend.Token, ownerID string) ([]backend.Conversation, error) {
	path := "/api/conversations?user_uuid=" + url.QueryEscape(ownerID)
	body, err := c.do(ctx, token, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var list []backend.Conversation
	if err := decode(body, &list); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	return list, nil
}

// GetConversation fetches a single conversation.
func (c *Client) GetConversation(ctx context.Context, token backend.Token, id int64) (*backend.Conversation, error) {
	body, err := c.do(ctx, token, http.MethodGet, "/api/conversations/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return nil, err
	}
	var conv backend.Conversation
	if err := decode(body, &conv); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	return &conv, nil
}

// CreateConversation creates a conversation and returns it with the
// server-assigned id. Fields the server omits are filled from the request.
func (c *Client) CreateConversation(ctx context.Context, token backend.Token, req backend.CreateConversationRequest) (*backend.Conversation, error) {
	body, err := c.do(ctx, token, http.MethodPost, "/api/conversations", req)
	if err != nil {
		return nil, err
	}
	var conv backend.Conversation
	if err := decode(body, &conv); err != nil {
		return nil, fmt.Errorf("decode created conversation: %w", err)
	}
	if conv.ID == 0 {
		return nil, fmt.Errorf("created conversation has no id: %w", backend.ErrMalformedResponse)
	}
	if conv.Title == "" {
		conv.Title = req.Title
	}
	if conv.UserUUID == "" {
		conv.UserUUID = req.UserUUID
	}
	if conv.UserUsername == "" {
		conv.UserUsername = req.UserUsername
	}
	if conv.Status == "" {
		conv.Status = req.Status
	}
	return &conv, nil
}

// SendMessage posts a message and returns the raw assistant reply.
func (c *Client) SendMessage(ctx context.Context, token backend.Token, conversationID int64, text string) (string, error) {
	path := "/api/conversations/" + strconv.FormatInt(conversationID, 10) + "/messages"
	body, err := c.do(ctx, token, http.MethodPost, path, messageRequest{Message: text})
	if err != nil {
		return "", err
	}
	var resp messageResponse
	if err := decode(body, &resp); err == nil && resp.Response != nil {
		return *resp.Response, nil
	}
	if reply, ok := looseResponse(body); ok {
		return reply, nil
	}
	return "", fmt.Errorf("decode reply: %w", backend.ErrMalformedResponse)
}

// SetMode persists the mode of a conversation.
func (c *Client) SetMode(ctx context.Context, token backend.Token, conversationID int64, mode backend.Mode) error {
	path := "/api/conversations/" + strconv.FormatInt(conversationID, 10) + "/mode"
	_, err := c.do(ctx, token, http.MethodPost, path, modeRequest{Mode: mode})
	return err
}

// ListBuilds returns the builds recorded for a conversation.
func (c *Client) ListBuilds(ctx context.Context, token backend.Token, conversationID int64) ([]backend.Build, error) {
	path := "/api/builds?conversation_id=" + strconv.FormatInt(conversationID, 10)
	body, err := c.do(ctx, token, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var builds []backend.Build
	if err := decode(body, &builds); err != nil {
		return nil, fmt.Errorf("decode builds: %w", err)
	}
	return builds, nil
}

// GetBuild fetches a single build.
func (c *Client) GetBuild(ctx context.Context, token backend.Token, id int64) (*backend.Build, error) {
	body, err := c.do(ctx, token, http.MethodGet, "/api/builds/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return nil, err
	}
	var build backend.Build
	if err := decode(body, &build); err != nil {
		return nil, fmt.Errorf("decode build: %w", err)
	}
	return &build, nil
}

// do issues a request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, token backend.Token, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.config.BaseURL, "/")+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", string(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &backend.StatusError{
			Method: method,
			Path:   req.URL.Path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}
	return body, nil
}
