//go:build integration

package test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/1-kabir/cfm/internal/chat"
	"github.com/1-kabir/cfm/internal/directory"
	"github.com/1-kabir/cfm/internal/dispatch"
	"github.com/1-kabir/cfm/internal/fakebackend"
	"github.com/1-kabir/cfm/internal/session"
	"github.com/1-kabir/cfm/internal/state"
	"github.com/1-kabir/cfm/internal/types"
	"github.com/1-kabir/cfm/pkg/backend"
	"github.com/1-kabir/cfm/pkg/backend/httpapi"
)

var owner = directory.Owner{UUID: "admin-uuid", Username: "admin"}

func setup(t *testing.T, opts fakebackend.Options) (*fakebackend.Server, *chat.Controller, string) {
	t.Helper()
	fake := fakebackend.New(opts)
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	api := httpapi.New(&backend.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	sess := session.New(api, state.NewCredentialStore(dir))
	if _, err := sess.Authenticate(context.Background(), session.Credential{Username: "admin", Password: "changeme"}); err != nil {
		t.Fatal(err)
	}

	ctrl := chat.New(api, sess, chat.Options{
		Owner:           owner,
		ResolveBuildIDs: true,
		Artifacts:       state.NewArtifactStore(dir),
	})
	ctrl.Start(context.Background())
	t.Cleanup(func() { ctrl.Close(time.Second) })
	return fake, ctrl, dir
}

func TestEndToEnd(t *testing.T) {
	for _, legacy := range []bool{false, true} {
		name := "json"
		if legacy {
			name = "legacy"
		}
		t.Run(name, func(t *testing.T) {
			fake, ctrl, dir := setup(t, fakebackend.Options{Legacy: legacy})
			ctx := context.Background()

			res, err := ctrl.Send(ctx, "a stone watchtower by the river")
			if err != nil {
				t.Fatal(err)
			}
			if !res.Created {
				t.Fatal("expected the first send to create a conversation")
			}
			conv, ok := fake.Conversation(res.ConversationID)
			if !ok {
				t.Fatalf("conversation %d not stored", res.ConversationID)
			}
			if conv.Title != directory.Title("a stone watchtower by the river") {
				t.Errorf("unexpected title %q", conv.Title)
			}
			if !strings.Contains(res.Reply.Text, "Let's plan") {
				t.Errorf("expected a planning reply, got %q", res.Reply.Text)
			}

			tr, err := ctrl.SwitchMode(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if tr.To != backend.ModeBuilding {
				t.Fatalf("expected BUILDING, got %s", tr.To)
			}
			if !ctrl.Mode.Wait(2 * time.Second) {
				t.Fatal("mode sync did not finish")
			}
			if got, _ := fake.Conversation(res.ConversationID); got.EffectiveMode() != backend.ModeBuilding {
				t.Fatalf("backend mode = %s", got.EffectiveMode())
			}

			res, err = ctrl.Send(ctx, "generate it")
			if err != nil {
				t.Fatal(err)
			}
			if res.Reply.Kind != types.KindArtifact {
				t.Fatalf("expected an artifact reply, got %+v", res.Reply)
			}
			builds := fake.Builds(res.ConversationID)
			if len(builds) != 1 || res.Reply.Artifact.BuildID != builds[0].ID {
				t.Errorf("artifact build id %d, backend builds %+v", res.Reply.Artifact.BuildID, builds)
			}
			if !json.Valid([]byte(res.Reply.Artifact.Payload)) {
				t.Errorf("payload is not JSON: %s", res.Reply.Artifact.Payload)
			}

			id, convID, err := ctrl.Export(ctx)
			if err != nil {
				t.Fatal(err)
			}
			meta, err := state.NewArtifactStore(dir).GetMeta(ctx, id)
			if err != nil {
				t.Fatal(err)
			}
			if convID != res.ConversationID || meta.MimeType != "application/json" {
				t.Errorf("unexpected export meta %+v", meta)
			}

			items, err := ctrl.Refresh(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(items) != 1 || !items[0].Active {
				t.Errorf("expected one active conversation, got %+v", items)
			}
			if n := len(ctrl.Transcript.Entries()); n != 4 {
				t.Errorf("expected 4 transcript entries, got %d", n)
			}
		})
	}
}

func TestSendFailureShowsFallback(t *testing.T) {
	fake, ctrl, _ := setup(t, fakebackend.Options{})
	ctx := context.Background()

	if _, err := ctrl.Send(ctx, "hello"); err != nil {
		t.Fatal(err)
	}
	fake.Fail(fakebackend.RouteMessages, 1)

	_, err := ctrl.Send(ctx, "again")
	var de *dispatch.Error
	if !errors.As(err, &de) || de.Kind != dispatch.ServerError {
		t.Fatalf("expected a server error, got %v", err)
	}
	entries := ctrl.Transcript.Entries()
	last := entries[len(entries)-1]
	if last.Text != dispatch.FallbackReply {
		t.Errorf("expected fallback reply, got %q", last.Text)
	}
	if ctrl.Session.Awaiting() {
		t.Error("session still awaiting after failure")
	}
}

func TestModeSyncFailureKeepsLocalMode(t *testing.T) {
	fake, ctrl, _ := setup(t, fakebackend.Options{})
	ctx := context.Background()

	conv := fake.Seed(backend.Conversation{Title: "bridge", UserUUID: owner.UUID})
	if _, err := ctrl.Open(ctx, conv.ID); err != nil {
		t.Fatal(err)
	}
	fake.Fail(fakebackend.RouteMode, 1)

	if _, err := ctrl.SwitchMode(ctx); err != nil {
		t.Fatal(err)
	}
	ctrl.Mode.Wait(2 * time.Second)

	if ctrl.Session.Mode() != backend.ModeBuilding {
		t.Errorf("local mode rolled back to %s", ctrl.Session.Mode())
	}
	if got, _ := fake.Conversation(conv.ID); got.EffectiveMode() != backend.ModePlanning {
		t.Errorf("backend mode changed to %s", got.EffectiveMode())
	}
	var notices int
	for _, e := range ctrl.Transcript.Entries() {
		if e.Role == types.RoleSystem {
			notices++
		}
	}
	if notices != 1 {
		t.Errorf("expected one system notice, got %d", notices)
	}
}

func TestSwitchWhileAwaitingDiscardsReply(t *testing.T) {
	fake, ctrl, _ := setup(t, fakebackend.Options{})
	ctx := context.Background()

	first := fake.Seed(backend.Conversation{Title: "first", UserUUID: owner.UUID})
	second := fake.Seed(backend.Conversation{Title: "second", UserUUID: owner.UUID})
	if _, err := ctrl.Open(ctx, first.ID); err != nil {
		t.Fatal(err)
	}

	fake.SetDelay(200 * time.Millisecond)
	done := make(chan error, 1)
	go func() {
		_, err := ctrl.Send(ctx, "slow")
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	fake.SetDelay(0)
	if _, err := ctrl.Open(ctx, second.ID); err != nil {
		t.Fatal(err)
	}

	if err := <-done; !errors.Is(err, dispatch.ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	entries := ctrl.Transcript.Entries()
	if len(entries) != 1 || entries[0].Role != types.RoleAssistant {
		t.Errorf("expected only the open banner, got %+v", entries)
	}
}

func TestWrongPasswordRejected(t *testing.T) {
	fake := fakebackend.New(fakebackend.Options{})
	srv := httptest.NewServer(fake)
	defer srv.Close()

	api := httpapi.New(&backend.Config{BaseURL: srv.URL})
	sess := session.New(api, state.NewCredentialStore(t.TempDir()))
	_, err := sess.Authenticate(context.Background(), session.Credential{Username: "admin", Password: "wrong"})
	if !errors.Is(err, session.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}
