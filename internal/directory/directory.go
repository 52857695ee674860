// Package directory lists and creates the operator's conversations.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/1-kabir/cfm/internal/classify"
	"github.com/1-kabir/cfm/internal/session"
	"github.com/1-kabir/cfm/pkg/backend"
)

// MaxTitleLength is the longest conversation title, in runes.
const MaxTitleLength = 30

// Owner identifies the operator the conversations belong to.
type Owner struct {
	UUID     string
	Username string
}

// Item is a conversation annotated for display.
type Item struct {
	backend.Conversation
	Active bool
}

// Directory keeps the last-known conversation list. Failed fetches leave
// the list untouched.
type Directory struct {
	api     backend.API
	session *session.Session

	mu    sync.RWMutex
	items []backend.Conversation
}

// New creates an empty Directory.
func New(api backend.API, sess *session.Session) *Directory {
	return &Directory{api: api, session: sess}
}

// Title truncates text to MaxTitleLength runes.
func Title(text string) string {
	return classify.Truncate(text, MaxTitleLength)
}

// SortNewestFirst orders conversations by id, highest first.
func SortNewestFirst(list []backend.Conversation) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID > list[j].ID
	})
}

// List fetches ownerID's conversations, newest first, and remembers them.
func (d *Directory) List(ctx context.Context, ownerID string) ([]backend.Conversation, error) {
	token, err := d.session.RequireToken()
	if err != nil {
		return nil, err
	}

	list, err := d.api.ListConversations(ctx, token, ownerID)
	if err != nil {
		slog.Warn("conversation list failed", "owner", ownerID, "error", err)
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	SortNewestFirst(list)

	d.mu.Lock()
	d.items = list
	d.mu.Unlock()

	out := make([]backend.Conversation, len(list))
	copy(out, list)
	return out, nil
}

// Get fetches one conversation.
func (d *Directory) Get(ctx context.Context, id int64) (*backend.Conversation, error) {
	token, err := d.session.RequireToken()
	if err != nil {
		return nil, err
	}
	conv, err := d.api.GetConversation(ctx, token, id)
	if err != nil {
		return nil, fmt.Errorf("get conversation %d: %w", id, err)
	}
	return conv, nil
}

// Create asks the backend for a new conversation. The title is truncated to
// MaxTitleLength runes. The caller decides whether to make it active.
func (d *Directory) Create(ctx context.Context, title string, owner Owner) (*backend.Conversation, error) {
	token, err := d.session.RequireToken()
	if err != nil {
		return nil, err
	}

	req := backend.CreateConversationRequest{
		UserUUID:     owner.UUID,
		UserUsername: owner.Username,
		Title:        Title(title),
		Status:       backend.StatusActive,
	}
	conv, err := d.api.CreateConversation(ctx, token, req)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	if conv.Title == "" || len([]rune(conv.Title)) > MaxTitleLength {
		conv.Title = req.Title
	}
	slog.Info("conversation created", "id", conv.ID, "title", conv.Title)

	d.mu.Lock()
	d.items = append([]backend.Conversation{*conv}, d.items...)
	SortNewestFirst(d.items)
	d.mu.Unlock()
	return conv, nil
}

// Items returns the last-known list with the active conversation flagged.
func (d *Directory) Items() []Item {
	activeID, _ := d.session.ActiveConversation()

	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Item, len(d.items))
	for i, c := range d.items {
		out[i] = Item{Conversation: c, Active: c.ID == activeID}
	}
	return out
}
