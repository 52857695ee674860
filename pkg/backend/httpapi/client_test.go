package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1-kabir/cfm/pkg/backend"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(&backend.Config{BaseURL: server.URL})
}

func TestBasicToken(t *testing.T) {
	assert.Equal(t, backend.Token("Basic YWRtaW46Y2hhbmdlbWU="), backend.BasicToken("admin", "changeme"))
}

func TestHealthSendsAuthorization(t *testing.T) {
	token := backend.BasicToken("admin", "changeme")
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		assert.Equal(t, string(token), r.Header.Get("Authorization"))
		w.Write([]byte(`{"status":"ok"}`))
	})

	require.NoError(t, client.Health(context.Background(), token))
}

func TestHealthRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Invalid username or password", http.StatusUnauthorized)
	})

	err := client.Health(context.Background(), "Basic bad")
	require.Error(t, err)

	var se *backend.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.True(t, backend.IsStatus(err))
}

func TestHealthConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := New(&backend.Config{BaseURL: url})
	err := client.Health(context.Background(), "Basic x")
	require.Error(t, err)
	assert.False(t, backend.IsStatus(err))
}

func TestListConversations(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/conversations", r.URL.Path)
		assert.Equal(t, "admin-uuid", r.URL.Query().Get("user_uuid"))
		w.Write([]byte(`[{"id":1,"title":"tower","currentMode":"BUILDING"},{"id":2,"title":"bridge"}]`))
	})

	list, err := client.ListConversations(context.Background(), "Basic x", "admin-uuid")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, backend.ModeBuilding, list[0].EffectiveMode())
	assert.Equal(t, backend.ModePlanning, list[1].EffectiveMode())
}

func TestCreateConversationRequestFormat(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "admin-uuid", req["userUuid"])
		assert.Equal(t, "admin", req["userUsername"])
		assert.Equal(t, "castle", req["title"])
		assert.Equal(t, "ACTIVE", req["status"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 7}`))
	})

	conv, err := client.CreateConversation(context.Background(), "Basic x", backend.CreateConversationRequest{
		UserUUID:     "admin-uuid",
		UserUsername: "admin",
		Title:        "castle",
		Status:       backend.StatusActive,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), conv.ID)
	assert.Equal(t, "castle", conv.Title)
}

func TestCreateConversationStringWrappedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`"{\"id\": 12}"`))
	})

	conv, err := client.CreateConversation(context.Background(), "Basic x", backend.CreateConversationRequest{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, int64(12), conv.ID)
}

func TestCreateConversationMissingID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	_, err := client.CreateConversation(context.Background(), "Basic x", backend.CreateConversationRequest{Title: "t"})
	assert.ErrorIs(t, err, backend.ErrMalformedResponse)
}

func TestSendMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/conversations/3/messages", r.URL.Path)
		var req messageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "build a tower", req.Message)
		json.NewEncoder(w).Encode(map[string]string{"response": "Sure, how tall?"})
	})

	reply, err := client.SendMessage(context.Background(), "Basic x", 3, "build a tower")
	require.NoError(t, err)
	assert.Equal(t, "Sure, how tall?", reply)
}

func TestSendMessageUnescapedEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{\"response\": \"line one\nsays \"hi\"\"}"))
	})

	reply, err := client.SendMessage(context.Background(), "Basic x", 3, "hello")
	require.NoError(t, err)
	assert.Equal(t, "line one\nsays \"hi\"", reply)
}

func TestSendMessageMalformed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>proxy error</html>`))
	})

	_, err := client.SendMessage(context.Background(), "Basic x", 3, "hello")
	assert.ErrorIs(t, err, backend.ErrMalformedResponse)
}

func TestSendMessageServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.SendMessage(context.Background(), "Basic x", 3, "hello")
	var se *backend.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "boom", se.Body)
}

func TestSetMode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/conversations/9/mode", r.URL.Path)
		var req modeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, backend.ModeBuilding, req.Mode)
		w.Write([]byte(`"{\"status\": \"ok\"}"`))
	})

	require.NoError(t, client.SetMode(context.Background(), "Basic x", 9, backend.ModeBuilding))
}

func TestListBuilds(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/builds", r.URL.Path)
		assert.Equal(t, "4", r.URL.Query().Get("conversation_id"))
		w.Write([]byte(`[{"id":21,"conversationId":4,"iterationNumber":1,"status":"COMPLETED","createdAt":1718000000000}]`))
	})

	builds, err := client.ListBuilds(context.Background(), "Basic x", 4)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, int64(21), builds[0].ID)
	assert.Equal(t, backend.BuildCompleted, builds[0].Status)
}

func TestContextCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.SendMessage(ctx, "Basic x", 1, "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLooseResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
		ok   bool
	}{
		{"plain", `{"response": "hi"}`, "hi", true},
		{"raw quotes", `{"response": "a "b" c"}`, `a "b" c`, true},
		{"no key", `{"reply": "hi"}`, "", false},
		{"not object", `hello`, "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := looseResponse([]byte(tc.body))
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
