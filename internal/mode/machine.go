// Package mode implements the PLANNING/BUILDING transition protocol. A
// transition is applied to the session immediately and persisted on the
// backend in the background; a failed sync is reported in the transcript
// and the local mode is kept.
package mode

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/1-kabir/cfm/internal/session"
	"github.com/1-kabir/cfm/internal/types"
	"github.com/1-kabir/cfm/pkg/backend"
)

// ErrNoConversation is returned by Switch and Set when no conversation is active.
var ErrNoConversation = session.ErrNoConversation

// Transition describes one applied mode change.
type Transition struct {
	ConversationID int64
	From           backend.Mode
	To             backend.Mode
}

// Changed reports whether the transition moved to a different mode.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Options configures a Machine.
type Options struct {
	// MaxConcurrent bounds how many conversations sync at once.
	MaxConcurrent int64
	Retry         *RetryPolicy
}

// Machine owns mode transitions for the active conversation.
type Machine struct {
	api        backend.API
	session    *session.Session
	transcript types.Transcript
	queue      *Queue
	retry      *RetryPolicy

	mu        sync.Mutex
	listeners []func(Transition)
}

// New creates a Machine. Call Start before switching modes.
func New(api backend.API, sess *session.Session, transcript types.Transcript, opts Options) *Machine {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 2
	}
	if opts.Retry == nil {
		opts.Retry = DefaultRetryPolicy()
	}
	m := &Machine{
		api:        api,
		session:    sess,
		transcript: transcript,
		queue:      NewQueue(opts.MaxConcurrent),
		retry:      opts.Retry,
	}
	m.queue.SetProcessor(m.sync)
	return m
}

// Start begins processing syncs.
func (m *Machine) Start(ctx context.Context) {
	m.queue.Start(ctx)
}

// Stop abandons queued syncs and waits for running ones to return.
func (m *Machine) Stop() {
	m.queue.Stop()
}

// OnTransition registers a callback invoked after every applied change.
func (m *Machine) OnTransition(fn func(Transition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Current returns the active mode.
func (m *Machine) Current() backend.Mode {
	return m.session.Mode()
}

// Switch flips the active conversation to the other mode.
func (m *Machine) Switch(ctx context.Context) (Transition, error) {
	return m.apply(ctx, backend.Mode.Other)
}

// Set moves the active conversation to target. Nothing is synced when the
// conversation is already in target.
func (m *Machine) Set(ctx context.Context, target backend.Mode) (Transition, error) {
	return m.apply(ctx, func(backend.Mode) backend.Mode { return target })
}

// Wait blocks until every queued sync has finished or timeout passes.
func (m *Machine) Wait(timeout time.Duration) bool {
	return m.queue.WaitIdle(timeout)
}

func (m *Machine) apply(_ context.Context, next func(backend.Mode) backend.Mode) (Transition, error) {
	gen := m.session.Generation()
	id, from, to, err := m.session.UpdateMode(next)
	if err != nil {
		return Transition{From: from, To: to}, err
	}
	tr := Transition{ConversationID: id, From: from, To: to}
	if !tr.Changed() {
		return tr, nil
	}
	slog.Info("mode switched", "conversation_id", id, "from", from, "to", to)

	m.mu.Lock()
	listeners := m.listeners
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(tr)
	}

	token, _ := m.session.CurrentToken()
	if err := m.queue.Enqueue(newSync(id, to, token, gen)); err != nil {
		m.notice(gen, id, to, err)
	}
	return tr, nil
}

// sync persists one queued mode change.
func (m *Machine) sync(s *Sync) error {
	err := m.retry.Execute(s.Ctx, func() error {
		return m.api.SetMode(s.Ctx, s.Token, s.ConversationID, s.Mode)
	})
	if err != nil {
		m.notice(s.Generation, s.ConversationID, s.Mode, err)
		return fmt.Errorf("sync mode: %w", err)
	}
	slog.Debug("mode synced", "conversation_id", s.ConversationID, "mode", s.Mode)
	return nil
}

// notice reports a failed sync, unless the conversation it belongs to is
// no longer on screen.
func (m *Machine) notice(gen uint64, conversationID int64, mode backend.Mode, err error) {
	m.transcript.AppendIf(func() bool { return m.session.IsCurrent(gen) }, &types.Entry{
		ConversationID: conversationID,
		Role:           types.RoleSystem,
		Kind:           types.KindText,
		Text:           fmt.Sprintf("Mode sync to %s failed: %v. The local mode was kept.", mode, err),
	})
}
