package directory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1-kabir/cfm/internal/session"
	"github.com/1-kabir/cfm/internal/state"
	"github.com/1-kabir/cfm/pkg/backend"
	"github.com/1-kabir/cfm/pkg/backend/backendtest"
)

var owner = Owner{UUID: "admin-uuid", Username: "admin"}

func newTestDirectory(t *testing.T, api *backendtest.Stub) (*Directory, *session.Session) {
	t.Helper()
	sess := session.New(api, state.NewCredentialStore(t.TempDir()))
	_, err := sess.Authenticate(context.Background(), session.Credential{Username: "admin", Password: "changeme"})
	require.NoError(t, err)
	return New(api, sess), sess
}

func ids(list []backend.Conversation) []int64 {
	out := make([]int64, len(list))
	for i, c := range list {
		out[i] = c.ID
	}
	return out
}

func TestListSortedNewestFirst(t *testing.T) {
	api := &backendtest.Stub{
		ListConversationsFunc: func(_ context.Context, ownerID string) ([]backend.Conversation, error) {
			assert.Equal(t, "admin-uuid", ownerID)
			return []backend.Conversation{{ID: 3}, {ID: 1}, {ID: 2}}, nil
		},
	}
	d, _ := newTestDirectory(t, api)

	list, err := d.List(context.Background(), owner.UUID)
	require.NoError(t, err)
	if diff := cmp.Diff([]int64{3, 2, 1}, ids(list)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestListFailureKeepsLastKnown(t *testing.T) {
	fail := false
	api := &backendtest.Stub{
		ListConversationsFunc: func(context.Context, string) ([]backend.Conversation, error) {
			if fail {
				return nil, errors.New("connection refused")
			}
			return []backend.Conversation{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}}, nil
		},
	}
	d, _ := newTestDirectory(t, api)
	ctx := context.Background()

	_, err := d.List(ctx, owner.UUID)
	require.NoError(t, err)

	fail = true
	_, err = d.List(ctx, owner.UUID)
	require.Error(t, err)
	assert.Len(t, api.CallsTo("ListConversations"), 2, "no automatic retry")

	items := d.Items()
	require.Len(t, items, 2)
	assert.Equal(t, int64(2), items[0].ID)
}

func TestCreateTruncatesTitle(t *testing.T) {
	var got backend.CreateConversationRequest
	api := &backendtest.Stub{
		CreateConversationFunc: func(_ context.Context, req backend.CreateConversationRequest) (*backend.Conversation, error) {
			got = req
			return &backend.Conversation{ID: 11}, nil
		},
	}
	d, _ := newTestDirectory(t, api)

	long := strings.Repeat("tower ", 10)
	conv, err := d.Create(context.Background(), long, owner)
	require.NoError(t, err)

	assert.Len(t, []rune(got.Title), MaxTitleLength)
	assert.Equal(t, long[:MaxTitleLength], got.Title)
	assert.Equal(t, got.Title, conv.Title)
	assert.Equal(t, "admin-uuid", got.UserUUID)
	assert.Equal(t, "admin", got.UserUsername)
	assert.Equal(t, backend.StatusActive, got.Status)
}

func TestCreateRuneSafeTitle(t *testing.T) {
	assert.Equal(t, strings.Repeat("é", MaxTitleLength), Title(strings.Repeat("é", 40)))
	assert.Equal(t, "short", Title("short"))
}

func TestCreateFailure(t *testing.T) {
	api := &backendtest.Stub{
		CreateConversationFunc: func(context.Context, backend.CreateConversationRequest) (*backend.Conversation, error) {
			return nil, &backend.StatusError{Code: 500}
		},
	}
	d, _ := newTestDirectory(t, api)

	_, err := d.Create(context.Background(), "castle", owner)
	require.Error(t, err)
	assert.True(t, backend.IsStatus(err))
	assert.Empty(t, d.Items())
}

func TestItemsFlagActive(t *testing.T) {
	api := &backendtest.Stub{
		ListConversationsFunc: func(context.Context, string) ([]backend.Conversation, error) {
			return []backend.Conversation{{ID: 1}, {ID: 2}}, nil
		},
	}
	d, sess := newTestDirectory(t, api)
	_, err := d.List(context.Background(), owner.UUID)
	require.NoError(t, err)

	sess.Activate(backend.Conversation{ID: 1})
	items := d.Items()
	require.Len(t, items, 2)
	assert.False(t, items[0].Active)
	assert.True(t, items[1].Active)
}

func TestRequiresAuthentication(t *testing.T) {
	api := &backendtest.Stub{}
	d := New(api, session.New(api, state.NewCredentialStore(t.TempDir())))

	_, err := d.List(context.Background(), owner.UUID)
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	assert.Empty(t, api.Calls())
}
