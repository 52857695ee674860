package backend

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Token is an opaque credential carried as the Authorization header value.
type Token string

// BasicToken encodes a username and password as an HTTP Basic credential.
func BasicToken(username, password string) Token {
	raw := username + ":" + password
	return Token("Basic " + base64.StdEncoding.EncodeToString([]byte(raw)))
}

// Username returns the user encoded in a Basic token, or "" for any other
// token shape.
func (t Token) Username() string {
	encoded, ok := strings.CutPrefix(string(t), "Basic ")
	if !ok {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ""
	}
	user, _, _ := strings.Cut(string(raw), ":")
	return user
}

// API defines the build-assistant backend as seen by the client.
// Implementations handle transport details such as request encoding,
// authentication headers and response decoding.
type API interface {
	// Health probes the backend with the given credential. A nil error means
	// the credential was accepted.
	Health(ctx context.Context, token Token) error

	ListConversations(ctx context.Context, token Token, ownerID string) ([]Conversation, error)
	GetConversation(ctx context.Context, token Token, id int64) (*Conversation, error)
	CreateConversation(ctx context.Context, token Token, req CreateConversationRequest) (*Conversation, error)

	// SendMessage posts a user message and returns the assistant's raw reply text.
	SendMessage(ctx context.Context, token Token, conversationID int64, text string) (string, error)

	// SetMode persists the conversation mode. The response body is ignored.
	SetMode(ctx context.Context, token Token, conversationID int64, mode Mode) error

	ListBuilds(ctx context.Context, token Token, conversationID int64) ([]Build, error)
	GetBuild(ctx context.Context, token Token, id int64) (*Build, error)
}

// Config holds connection settings for API implementations.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// ErrMalformedResponse is returned when a 2xx body cannot be decoded.
var ErrMalformedResponse = errors.New("malformed response body")

// StatusError reports a non-2xx answer from the backend.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// IsStatus reports whether err carries a backend status error.
func IsStatus(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}
