// Package session owns the process-wide client state: the credential token,
// the active conversation and its mode, and the single-flight guard that
// decides whether a send is legal right now.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/1-kabir/cfm/internal/state"
	"github.com/1-kabir/cfm/internal/types"
	"github.com/1-kabir/cfm/pkg/backend"
)

var (
	// ErrNoConversation is returned by operations that need an active conversation.
	ErrNoConversation = errors.New("no active conversation")
	// ErrNotAuthenticated is returned by operations that need a credential.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	Authenticated  bool
	ConversationID int64 // zero when no conversation is active
	Title          string
	Mode           backend.Mode
	Awaiting       bool
	Generation     uint64
}

// HasConversation reports whether a conversation is active.
func (s Snapshot) HasConversation() bool {
	return s.ConversationID != 0
}

// Session is the Session Context shared by the directory, the mode state
// machine and the dispatcher.
//
// Every change of active conversation (switch, reset, logout) starts a new
// generation. Contexts derived with Bind are cancelled when their generation
// ends, and results that arrive for an old generation are discarded by callers.
type Session struct {
	api   backend.API
	store types.CredentialStore

	mu        sync.Mutex
	token     backend.Token
	active    *backend.Conversation
	mode      backend.Mode
	gen       uint64
	genCtx    context.Context
	genCancel context.CancelFunc
	listeners []func()

	inflight *semaphore.Weighted
	awaiting atomic.Bool
}

// New creates an unauthenticated session with no active conversation.
func New(api backend.API, store types.CredentialStore) *Session {
	s := &Session{
		api:      api,
		store:    store,
		mode:     backend.ModePlanning,
		inflight: semaphore.NewWeighted(1),
	}
	s.genCtx, s.genCancel = context.WithCancel(context.Background())
	return s
}

// OnChange registers a callback invoked after any state change.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) notify() {
	s.mu.Lock()
	listeners := s.listeners
	s.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Authenticate probes the backend with the credential. On success the token
// becomes current and is persisted for reuse across restarts. Failures leave
// the session unauthenticated and come back as *AuthError.
func (s *Session) Authenticate(ctx context.Context, cred Credential) (backend.Token, error) {
	if cred.Username == "" || cred.Password == "" {
		return "", ErrMissingCredential
	}

	token := backend.BasicToken(cred.Username, cred.Password)
	if err := s.api.Health(ctx, token); err != nil {
		kind := ConnectionFailure
		if backend.IsStatus(err) {
			kind = InvalidCredentials
		}
		return "", &AuthError{Kind: kind, Err: err}
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if err := s.store.Save(ctx, token); err != nil {
		slog.Warn("failed to persist credential", "error", err)
	}
	slog.Info("authenticated", "username", cred.Username)
	s.notify()
	return token, nil
}

// Restore loads a persisted credential without probing the backend.
// It reports whether a credential was found.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	token, err := s.store.Load(ctx)
	if errors.Is(err, state.ErrNoCredential) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("restore credential: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	s.notify()
	return true, nil
}

// CurrentToken returns the credential token, if any.
func (s *Session) CurrentToken() (backend.Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

// RequireToken returns the credential token or ErrNotAuthenticated.
func (s *Session) RequireToken() (backend.Token, error) {
	token, ok := s.CurrentToken()
	if !ok {
		return "", ErrNotAuthenticated
	}
	return token, nil
}

// Logout clears the token and its persisted copy and drops the active
// conversation.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.clearLocked()
	s.mu.Unlock()
	s.notify()

	if err := s.store.Delete(ctx); err != nil {
		return fmt.Errorf("purge credential: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Authenticated: s.token != "",
		Mode:          s.mode,
		Awaiting:      s.awaiting.Load(),
		Generation:    s.gen,
	}
	if s.active != nil {
		snap.ConversationID = s.active.ID
		snap.Title = s.active.Title
	}
	return snap
}

// ActiveConversation returns the active conversation id.
func (s *Session) ActiveConversation() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return 0, false
	}
	return s.active.ID, true
}

// Mode returns the active mode. It is PLANNING whenever no conversation is active.
func (s *Session) Mode() backend.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Activate makes conv the active conversation, taking its mode from the
// server record. It starts a new generation and returns false when conv is
// already active.
func (s *Session) Activate(conv backend.Conversation) bool {
	s.mu.Lock()
	if s.active != nil && s.active.ID == conv.ID {
		s.mu.Unlock()
		return false
	}
	c := conv
	s.active = &c
	s.mode = conv.EffectiveMode()
	s.nextGenerationLocked()
	s.mu.Unlock()

	s.notify()
	return true
}

// Adopt makes a freshly created conversation active in PLANNING mode
// without starting a new generation, so the send that created it can
// finish. It fails when gen is stale or a conversation is already active.
func (s *Session) Adopt(gen uint64, conv backend.Conversation) bool {
	s.mu.Lock()
	if s.gen != gen || s.active != nil {
		s.mu.Unlock()
		return false
	}
	c := conv
	s.active = &c
	s.mode = backend.ModePlanning
	s.mu.Unlock()

	s.notify()
	return true
}

// Reset drops the active conversation and returns to PLANNING.
func (s *Session) Reset() {
	s.mu.Lock()
	s.clearLocked()
	s.mu.Unlock()
	s.notify()
}

func (s *Session) clearLocked() {
	s.active = nil
	s.mode = backend.ModePlanning
	s.nextGenerationLocked()
}

func (s *Session) nextGenerationLocked() {
	s.gen++
	s.genCancel()
	s.genCtx, s.genCancel = context.WithCancel(context.Background())
}

// UpdateMode atomically replaces the active conversation's mode with
// next(current). It returns the conversation id and both modes.
func (s *Session) UpdateMode(next func(current backend.Mode) backend.Mode) (id int64, from, to backend.Mode, err error) {
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return 0, backend.ModePlanning, backend.ModePlanning, ErrNoConversation
	}
	from = s.mode
	to = next(from)
	s.mode = to
	id = s.active.ID
	s.mu.Unlock()

	if from != to {
		s.notify()
	}
	return id, from, to, nil
}

// Generation returns the current generation number.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// IsCurrent reports whether gen is still the current generation.
func (s *Session) IsCurrent(gen uint64) bool {
	return s.Generation() == gen
}

// Bind derives a context that is also cancelled when the current
// generation ends.
func (s *Session) Bind(ctx context.Context) (context.Context, context.CancelFunc) {
	s.mu.Lock()
	genCtx := s.genCtx
	s.mu.Unlock()

	bound, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(genCtx, cancel)
	return bound, func() {
		stop()
		cancel()
	}
}

// TryBeginSend claims the single-flight slot. It returns false, without
// blocking, when a send is already outstanding.
func (s *Session) TryBeginSend() bool {
	if !s.inflight.TryAcquire(1) {
		return false
	}
	s.awaiting.Store(true)
	s.notify()
	return true
}

// EndSend releases the single-flight slot. It must be called exactly once
// for every successful TryBeginSend.
func (s *Session) EndSend() {
	s.awaiting.Store(false)
	s.inflight.Release(1)
	s.notify()
}

// Awaiting reports whether a send is outstanding.
func (s *Session) Awaiting() bool {
	return s.awaiting.Load()
}
