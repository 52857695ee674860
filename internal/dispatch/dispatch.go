// Package dispatch sends operator messages to the backend and records the
// exchange in the transcript.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/1-kabir/cfm/internal/classify"
	"github.com/1-kabir/cfm/internal/directory"
	"github.com/1-kabir/cfm/internal/session"
	"github.com/1-kabir/cfm/internal/types"
	"github.com/1-kabir/cfm/pkg/backend"
)

// FallbackReply is appended as the assistant's answer when a send fails.
const FallbackReply = "Neural link severed. Verify server status and configuration."

const resolveTimeout = 5 * time.Second

// Result describes a completed exchange.
type Result struct {
	ConversationID int64
	// Created is true when the send opened a new conversation.
	Created bool
	User    types.Entry
	Reply   types.Entry
	// Extraction is set when the reply looked like a build but its payload
	// could not be cut out. The reply was shown as truncated text.
	Extraction error
}

// Options configures a Dispatcher.
type Options struct {
	Owner      directory.Owner
	Classifier *classify.Classifier
	// ResolveBuildIDs annotates artifact replies with the newest build id
	// recorded for the conversation.
	ResolveBuildIDs bool
}

// Dispatcher implements the send protocol. At most one send is outstanding
// per session.
type Dispatcher struct {
	api        backend.API
	session    *session.Session
	directory  *directory.Directory
	transcript types.Transcript
	opts       Options
}

// New creates a Dispatcher.
func New(api backend.API, sess *session.Session, dir *directory.Directory, transcript types.Transcript, opts Options) *Dispatcher {
	if opts.Classifier == nil {
		opts.Classifier = classify.New(classify.DefaultPreviewLength)
	}
	return &Dispatcher{
		api:        api,
		session:    sess,
		directory:  dir,
		transcript: transcript,
		opts:       opts,
	}
}

// Send delivers text to the active conversation, creating one first when
// none is active. The user entry is appended before any network call and
// exactly one assistant entry follows once the exchange completes, unless
// the conversation was switched meanwhile, in which case ErrStale is
// returned and nothing more is appended.
func (d *Dispatcher) Send(ctx context.Context, text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	token, err := d.session.RequireToken()
	if err != nil {
		return nil, err
	}
	if !d.session.TryBeginSend() {
		return nil, ErrBusy
	}
	defer d.session.EndSend()

	gen := d.session.Generation()
	ctx, cancel := d.session.Bind(ctx)
	defer cancel()

	conversationID, active := d.session.ActiveConversation()
	user := &types.Entry{ConversationID: conversationID, Role: types.RoleUser, Kind: types.KindText, Text: text}
	d.transcript.Append(user)

	res := &Result{ConversationID: conversationID, User: *user}

	if !active {
		conv, err := d.directory.Create(ctx, text, d.opts.Owner)
		if err != nil {
			return nil, d.fail(gen, conversationID, "create conversation", err)
		}
		if !d.session.Adopt(gen, *conv) {
			return nil, ErrStale
		}
		conversationID = conv.ID
		res.ConversationID = conv.ID
		res.Created = true
	}

	raw, err := d.api.SendMessage(ctx, token, conversationID, text)
	if !d.session.IsCurrent(gen) {
		slog.Debug("discarding stale reply", "conversation_id", conversationID)
		return nil, ErrStale
	}
	if err != nil {
		return nil, d.fail(gen, conversationID, "send message", err)
	}

	reply, xerr := d.opts.Classifier.Classify(raw)
	if xerr != nil {
		slog.Warn("build extraction failed", "conversation_id", conversationID, "error", xerr)
		res.Extraction = xerr
	}

	entry := &types.Entry{
		ConversationID: conversationID,
		Role:           types.RoleAssistant,
		Kind:           types.KindText,
		Text:           reply.Text,
	}
	if reply.Kind == classify.KindArtifact {
		entry.Kind = types.KindArtifact
		entry.Artifact = reply.Artifact
		if d.opts.ResolveBuildIDs {
			d.resolveBuild(ctx, token, conversationID, reply.Artifact)
		}
	}

	if !d.transcript.AppendIf(d.current(gen), entry) {
		return nil, ErrStale
	}
	res.Reply = *entry
	return res, nil
}

// fail appends the fallback reply and wraps err.
func (d *Dispatcher) fail(gen uint64, conversationID int64, op string, err error) error {
	fallback := &types.Entry{
		ConversationID: conversationID,
		Role:           types.RoleAssistant,
		Kind:           types.KindText,
		Text:           FallbackReply,
	}
	if !d.transcript.AppendIf(d.current(gen), fallback) {
		return ErrStale
	}
	slog.Error("dispatch failed", "op", op, "conversation_id", conversationID, "error", err)
	return &Error{Kind: kindOf(err), Op: op, Err: err}
}

// current reports whether gen is still the session's generation.
func (d *Dispatcher) current(gen uint64) func() bool {
	return func() bool { return d.session.IsCurrent(gen) }
}

// resolveBuild looks up the newest build the backend recorded for the
// conversation. Failure leaves the artifact unresolved.
func (d *Dispatcher) resolveBuild(ctx context.Context, token backend.Token, conversationID int64, artifact *types.BuildArtifact) {
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	builds, err := d.api.ListBuilds(ctx, token, conversationID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Debug("build id lookup failed", "conversation_id", conversationID, "error", err)
		}
		return
	}
	for _, b := range builds {
		if b.ID > artifact.BuildID {
			artifact.BuildID = b.ID
		}
	}
}
