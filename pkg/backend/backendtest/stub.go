// Package backendtest provides a programmable backend.API for tests.
package backendtest

import (
	"context"
	"errors"
	"sync"

	"github.com/1-kabir/cfm/pkg/backend"
)

// ErrNotStubbed is returned by Stub methods whose Func field is nil.
var ErrNotStubbed = errors.New("backendtest: call not stubbed")

// Call records one invocation of a Stub method.
type Call struct {
	Method         string
	ConversationID int64
	Text           string
	Mode           backend.Mode
}

// Stub implements backend.API by delegating to its Func fields and
// records every call it receives.
type Stub struct {
	HealthFunc             func(ctx context.Context, token backend.Token) error
	ListConversationsFunc  func(ctx context.Context, ownerID string) ([]backend.Conversation, error)
	GetConversationFunc    func(ctx context.Context, id int64) (*backend.Conversation, error)
	CreateConversationFunc func(ctx context.Context, req backend.CreateConversationRequest) (*backend.Conversation, error)
	SendMessageFunc        func(ctx context.Context, conversationID int64, text string) (string, error)
	SetModeFunc            func(ctx context.Context, conversationID int64, mode backend.Mode) error
	ListBuildsFunc         func(ctx context.Context, conversationID int64) ([]backend.Build, error)
	GetBuildFunc           func(ctx context.Context, id int64) (*backend.Build, error)

	mu    sync.Mutex
	calls []Call
}

var _ backend.API = (*Stub)(nil)

func (s *Stub) record(c Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

// Calls returns a copy of the recorded calls.
func (s *Stub) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsTo returns the recorded calls of one method.
func (s *Stub) CallsTo(method string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (s *Stub) Health(ctx context.Context, token backend.Token) error {
	s.record(Call{Method: "Health"})
	if s.HealthFunc == nil {
		return nil
	}
	return s.HealthFunc(ctx, token)
}

func (s *Stub) ListConversations(ctx context.Context, _ backend.Token, ownerID string) ([]backend.Conversation, error) {
	s.record(Call{Method: "ListConversations", Text: ownerID})
	if s.ListConversationsFunc == nil {
		return nil, nil
	}
	return s.ListConversationsFunc(ctx, ownerID)
}

func (s *Stub) GetConversation(ctx context.Context, _ backend.Token, id int64) (*backend.Conversation, error) {
	s.record(Call{Method: "GetConversation", ConversationID: id})
	if s.GetConversationFunc == nil {
		return nil, ErrNotStubbed
	}
	return s.GetConversationFunc(ctx, id)
}

func (s *Stub) CreateConversation(ctx context.Context, _ backend.Token, req backend.CreateConversationRequest) (*backend.Conversation, error) {
	s.record(Call{Method: "CreateConversation", Text: req.Title})
	if s.CreateConversationFunc == nil {
		return nil, ErrNotStubbed
	}
	return s.CreateConversationFunc(ctx, req)
}

func (s *Stub) SendMessage(ctx context.Context, _ backend.Token, conversationID int64, text string) (string, error) {
	s.record(Call{Method: "SendMessage", ConversationID: conversationID, Text: text})
	if s.SendMessageFunc == nil {
		return "", ErrNotStubbed
	}
	return s.SendMessageFunc(ctx, conversationID, text)
}

func (s *Stub) SetMode(ctx context.Context, _ backend.Token, conversationID int64, mode backend.Mode) error {
	s.record(Call{Method: "SetMode", ConversationID: conversationID, Mode: mode})
	if s.SetModeFunc == nil {
		return nil
	}
	return s.SetModeFunc(ctx, conversationID, mode)
}

func (s *Stub) ListBuilds(ctx context.Context, _ backend.Token, conversationID int64) ([]backend.Build, error) {
	s.record(Call{Method: "ListBuilds", ConversationID: conversationID})
	if s.ListBuildsFunc == nil {
		return nil, nil
	}
	return s.ListBuildsFunc(ctx, conversationID)
}

func (s *Stub) GetBuild(ctx context.Context, _ backend.Token, id int64) (*backend.Build, error) {
	s.record(Call{Method: "GetBuild", ConversationID: id})
	if s.GetBuildFunc == nil {
		return nil, ErrNotStubbed
	}
	return s.GetBuildFunc(ctx, id)
}

// Counter hands out increasing conversation ids, starting at 1.
type Counter struct {
	mu   sync.Mutex
	next int64
}

// Create returns a conversation for req with the next id.
func (c *Counter) Create(_ context.Context, req backend.CreateConversationRequest) (*backend.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	return &backend.Conversation{
		ID:           c.next,
		Title:        req.Title,
		UserUUID:     req.UserUUID,
		UserUsername: req.UserUsername,
		Status:       req.Status,
	}, nil
}
