// Package chat wires the session, directory, mode machine and dispatcher
// into the operations a front end drives: open, new chat, send, switch
// mode and export.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/1-kabir/cfm/internal/classify"
	"github.com/1-kabir/cfm/internal/directory"
	"github.com/1-kabir/cfm/internal/dispatch"
	"github.com/1-kabir/cfm/internal/mode"
	"github.com/1-kabir/cfm/internal/session"
	"github.com/1-kabir/cfm/internal/transcript"
	"github.com/1-kabir/cfm/internal/types"
	"github.com/1-kabir/cfm/pkg/backend"
)

// ErrNoArtifact is returned by Export when the transcript holds no build.
var ErrNoArtifact = errors.New("no build artifact in transcript")

// OpenBanner is the assistant line shown after switching conversations.
const OpenBanner = "Constructing context from session **#%d**. Matrix ready."

// Options configures a Controller.
type Options struct {
	Owner              directory.Owner
	PreviewLength      int
	ResolveBuildIDs    bool
	MaxConcurrentSyncs int64
	ModeSyncAttempts   int
	Artifacts          types.ArtifactStore
}

// Controller owns one chat session and its transcript.
type Controller struct {
	Session    *session.Session
	Directory  *directory.Directory
	Mode       *mode.Machine
	Dispatcher *dispatch.Dispatcher
	Transcript *transcript.Transcript

	api       backend.API
	artifacts types.ArtifactStore
	owner     directory.Owner
}

// New creates a Controller around an existing session.
func New(api backend.API, sess *session.Session, opts Options) *Controller {
	log := transcript.New()
	dir := directory.New(api, sess)

	retry := mode.DefaultRetryPolicy()
	if opts.ModeSyncAttempts > 0 {
		retry.MaxAttempts = opts.ModeSyncAttempts
	}

	return &Controller{
		Session:   sess,
		Directory: dir,
		Mode: mode.New(api, sess, log, mode.Options{
			MaxConcurrent: opts.MaxConcurrentSyncs,
			Retry:         retry,
		}),
		Dispatcher: dispatch.New(api, sess, dir, log, dispatch.Options{
			Owner:           opts.Owner,
			Classifier:      classify.New(opts.PreviewLength),
			ResolveBuildIDs: opts.ResolveBuildIDs,
		}),
		Transcript: log,
		api:        api,
		artifacts:  opts.Artifacts,
		owner:      opts.Owner,
	}
}

// Start begins background mode syncing.
func (c *Controller) Start(ctx context.Context) {
	c.Mode.Start(ctx)
}

// Close waits briefly for pending mode syncs, then stops them.
func (c *Controller) Close(timeout time.Duration) {
	if !c.Mode.Wait(timeout) {
		slog.Warn("abandoning pending mode syncs")
	}
	c.Mode.Stop()
}

// Refresh reloads the conversation list.
func (c *Controller) Refresh(ctx context.Context) ([]directory.Item, error) {
	if _, err := c.Directory.List(ctx, c.owner.UUID); err != nil {
		return c.Directory.Items(), err
	}
	return c.Directory.Items(), nil
}

// Open makes conversation id active with a fresh transcript. Opening the
// conversation that is already active changes nothing and returns false.
func (c *Controller) Open(ctx context.Context, id int64) (bool, error) {
	if current, ok := c.Session.ActiveConversation(); ok && current == id {
		return false, nil
	}

	conv, err := c.lookup(ctx, id)
	if err != nil {
		return false, err
	}
	if !c.Session.Activate(*conv) {
		return false, nil
	}
	gen := c.Session.Generation()

	c.Transcript.Reset()
	c.Transcript.AppendIf(func() bool { return c.Session.IsCurrent(gen) }, &types.Entry{
		ConversationID: conv.ID,
		Role:           types.RoleAssistant,
		Text:           fmt.Sprintf(OpenBanner, conv.ID),
	})
	slog.Info("conversation opened", "id", conv.ID, "mode", conv.EffectiveMode())
	return true, nil
}

// lookup prefers the last-known directory entry over a network fetch.
func (c *Controller) lookup(ctx context.Context, id int64) (*backend.Conversation, error) {
	for _, item := range c.Directory.Items() {
		if item.ID == id {
			conv := item.Conversation
			return &conv, nil
		}
	}
	return c.Directory.Get(ctx, id)
}

// NewChat clears the active conversation. The next send creates one.
func (c *Controller) NewChat() {
	c.Session.Reset()
	c.Transcript.Reset()
}

// Send delivers one operator message.
func (c *Controller) Send(ctx context.Context, text string) (*dispatch.Result, error) {
	return c.Dispatcher.Send(ctx, text)
}

// SwitchMode flips the active conversation's mode.
func (c *Controller) SwitchMode(ctx context.Context) (mode.Transition, error) {
	return c.Mode.Switch(ctx)
}

// SetMode moves the active conversation to target.
func (c *Controller) SetMode(ctx context.Context, target backend.Mode) (mode.Transition, error) {
	return c.Mode.Set(ctx, target)
}

// Logout forgets the credential and clears the screen. The session goes
// first so replies still in flight see a new generation and are dropped.
func (c *Controller) Logout(ctx context.Context) error {
	err := c.Session.Logout(ctx)
	c.Transcript.Reset()
	return err
}

// LatestArtifact returns the most recent build entry in the transcript.
func (c *Controller) LatestArtifact() (types.Entry, bool) {
	entries := c.Transcript.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Kind == types.KindArtifact && entries[i].Artifact != nil {
			return entries[i], true
		}
	}
	return types.Entry{}, false
}

// Export writes the most recent build artifact to the artifact store.
func (c *Controller) Export(ctx context.Context) (types.ArtifactID, int64, error) {
	if c.artifacts == nil {
		return "", 0, errors.New("artifact export not configured")
	}
	entry, ok := c.LatestArtifact()
	if !ok {
		return "", 0, ErrNoArtifact
	}
	conversationID := entry.ConversationID
	if conversationID == 0 {
		conversationID, _ = c.Session.ActiveConversation()
	}
	id, err := c.artifacts.Put(ctx, conversationID, entry.ID, entry.Artifact)
	if err != nil {
		return "", 0, fmt.Errorf("export artifact: %w", err)
	}
	slog.Info("artifact exported", "id", id, "conversation_id", conversationID, "build_id", entry.Artifact.BuildID)
	return id, conversationID, nil
}

// Artifact reads back an exported artifact and its metadata.
func (c *Controller) Artifact(ctx context.Context, id types.ArtifactID) (*types.ArtifactMeta, *types.BuildArtifact, error) {
	if c.artifacts == nil {
		return nil, nil, errors.New("artifact export not configured")
	}
	meta, err := c.artifacts.GetMeta(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("read artifact meta: %w", err)
	}
	artifact, err := c.artifacts.Get(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("read artifact: %w", err)
	}
	return meta, artifact, nil
}
