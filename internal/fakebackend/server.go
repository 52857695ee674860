// Package fakebackend is an in-memory implementation of the build-assistant
// REST surface. It backs `cfm dev-backend` and the integration tests.
package fakebackend

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/1-kabir/cfm/pkg/backend"
)

// Route names an endpoint failures can be injected into.
type Route string

const (
	RouteHealth   Route = "health"
	RouteList     Route = "list"
	RouteCreate   Route = "create"
	RouteMessages Route = "messages"
	RouteMode     Route = "mode"
	RouteBuilds   Route = "builds"
)

// Responder produces the assistant reply for a message.
type Responder func(conv backend.Conversation, message string) string

// Options configures a Server.
type Options struct {
	Username  string
	Password  string
	Responder Responder
	// Legacy reproduces the wire quirks of older servers: created ids and
	// mode acks are JSON strings holding JSON, and reply envelopes are
	// concatenated without escaping.
	Legacy bool
}

// ModeCall records one POST /api/conversations/{id}/mode.
type ModeCall struct {
	ConversationID int64
	Mode           backend.Mode
}

// Message is one stored user message with the reply it received.
type Message struct {
	Text  string
	Reply string
	At    time.Time
}

// Server is an http.Handler serving the backend API from memory.
type Server struct {
	opts   Options
	router chi.Router

	mu            sync.Mutex
	conversations map[int64]*backend.Conversation
	messages      map[int64][]Message
	builds        map[int64]*backend.Build
	nextConv      int64
	nextBuild     int64
	modeCalls     []ModeCall
	failures      map[Route]int
	delay         time.Duration
}

// New creates a Server. Empty credentials default to admin/changeme.
func New(opts Options) *Server {
	if opts.Username == "" {
		opts.Username = "admin"
	}
	if opts.Password == "" {
		opts.Password = "changeme"
	}
	s := &Server{
		opts:          opts,
		conversations: make(map[int64]*backend.Conversation),
		messages:      make(map[int64][]Message),
		builds:        make(map[int64]*backend.Build),
		failures:      make(map[Route]int),
	}
	if s.opts.Responder == nil {
		s.opts.Responder = s.defaultResponder
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.BasicAuth("cfm", map[string]string{opts.Username: opts.Password}))
		r.Use(s.delayed)

		r.With(s.failing(RouteHealth)).Get("/health", s.handleHealth)

		r.Route("/conversations", func(r chi.Router) {
			r.With(s.failing(RouteList)).Get("/", s.handleListConversations)
			r.With(s.failing(RouteCreate)).Post("/", s.handleCreateConversation)
			r.Get("/{id}", s.handleGetConversation)
			r.With(s.failing(RouteMessages)).Post("/{id}/messages", s.handleMessage)
			r.With(s.failing(RouteMode)).Post("/{id}/mode", s.handleMode)
		})

		r.Route("/builds", func(r chi.Router) {
			r.With(s.failing(RouteBuilds)).Get("/", s.handleListBuilds)
			r.Get("/{id}", s.handleGetBuild)
		})
	})
	s.router = r
	return s
}

// ServeHTTP delegates to the router, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Fail makes the next n requests to route answer 500.
func (s *Server) Fail(route Route, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = n
}

// SetDelay holds every API request for d before handling it.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Seed stores a conversation as if it had been created earlier.
func (s *Server) Seed(conv backend.Conversation) backend.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv.ID == 0 {
		s.nextConv++
		conv.ID = s.nextConv
	} else if conv.ID > s.nextConv {
		s.nextConv = conv.ID
	}
	conv.CurrentMode = conv.EffectiveMode()
	conv.Mode = ""
	if conv.Status == "" {
		conv.Status = backend.StatusActive
	}
	c := conv
	s.conversations[c.ID] = &c
	return c
}

// Conversation returns a stored conversation.
func (s *Server) Conversation(id int64) (backend.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return backend.Conversation{}, false
	}
	return *c, true
}

// Messages returns the messages stored for a conversation.
func (s *Server) Messages(id int64) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages[id]))
	copy(out, s.messages[id])
	return out
}

// ModeCalls returns every mode update received, in order.
func (s *Server) ModeCalls() []ModeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ModeCall, len(s.modeCalls))
	copy(out, s.modeCalls)
	return out
}

// Builds returns the builds recorded for a conversation, oldest first.
func (s *Server) Builds(conversationID int64) []backend.Build {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildsLocked(conversationID)
}

func (s *Server) buildsLocked(conversationID int64) []backend.Build {
	out := []backend.Build{}
	for _, b := range s.builds {
		if b.ConversationID == conversationID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// takeFailure consumes one injected failure for route.
func (s *Server) takeFailure(route Route) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures[route] <= 0 {
		return false
	}
	s.failures[route]--
	return true
}

func (s *Server) failing(route Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.takeFailure(route) {
				http.Error(w, "injected failure", http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) delayed(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		d := s.delay
		s.mu.Unlock()
		if d > 0 {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeLegacy encodes v, then encodes the result again as a JSON string.
func writeLegacy(w http.ResponseWriter, status int, v any) {
	inner, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, status, string(inner))
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}
