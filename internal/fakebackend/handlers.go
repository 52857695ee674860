package fakebackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/1-kabir/cfm/pkg/backend"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("user_uuid")
	if owner == "" {
		http.Error(w, "Missing user_uuid", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	list := []backend.Conversation{}
	for _, c := range s.conversations {
		if c.UserUUID == owner {
			list = append(list, *c)
		}
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return
	}
	conv, found := s.Conversation(id)
	if !found {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req backend.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	conv := s.Seed(backend.Conversation{
		Title:        req.Title,
		UserUUID:     req.UserUUID,
		UserUsername: req.UserUsername,
		Status:       req.Status,
	})

	created := map[string]int64{"id": conv.ID}
	if s.opts.Legacy {
		writeLegacy(w, http.StatusCreated, created)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type messageRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return
	}
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	conv, found := s.Conversation(id)
	if !found {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}

	reply := s.opts.Responder(conv, req.Message)

	s.mu.Lock()
	s.messages[id] = append(s.messages[id], Message{Text: req.Message, Reply: reply, At: time.Now()})
	s.mu.Unlock()

	if s.opts.Legacy {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response": "` + reply + `"}`))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": reply})
}

type modeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return
	}
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	m, err := backend.ParseMode(req.Mode)
	if err != nil || strings.TrimSpace(req.Mode) == "" {
		http.Error(w, "invalid mode", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	conv, found := s.conversations[id]
	if found {
		conv.CurrentMode = m
		s.modeCalls = append(s.modeCalls, ModeCall{ConversationID: id, Mode: m})
	}
	s.mu.Unlock()
	if !found {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}

	ack := map[string]string{"status": "ok"}
	if s.opts.Legacy {
		writeLegacy(w, http.StatusOK, ack)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func (s *Server) handleListBuilds(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("conversation_id")
	if raw == "" {
		http.Error(w, "Missing conversation_id", http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		http.Error(w, "invalid conversation_id", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.Builds(id))
}

func (s *Server) handleGetBuild(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid build id", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	b, found := s.builds[id]
	var out backend.Build
	if found {
		out = *b
	}
	s.mu.Unlock()
	if !found {
		http.Error(w, "build not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// defaultResponder asks clarifying questions while planning and answers
// with a fenced json build while building, recording the build.
func (s *Server) defaultResponder(conv backend.Conversation, message string) string {
	if conv.EffectiveMode() == backend.ModePlanning {
		return fmt.Sprintf("Let's plan **%s**. What footprint, height and materials should it use?", conv.Title)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	iteration := len(s.buildsLocked(conv.ID)) + 1
	schema, _ := json.MarshalIndent(map[string]any{
		"name":       conv.Title,
		"iteration":  iteration,
		"prompt":     message,
		"dimensions": map[string]int{"x": 16, "y": 24, "z": 16},
		"blocks": []map[string]any{
			{"x": 0, "y": 0, "z": 0, "type": "minecraft:stone_bricks"},
			{"x": 0, "y": 1, "z": 0, "type": "minecraft:oak_planks"},
		},
	}, "", "  ")

	s.nextBuild++
	s.builds[s.nextBuild] = &backend.Build{
		ID:              s.nextBuild,
		ConversationID:  conv.ID,
		IterationNumber: iteration,
		BuildName:       conv.Title,
		Prompt:          message,
		SchemaData:      string(schema),
		Status:          backend.BuildCompleted,
		BlockCount:      2,
		Dimensions:      "16x24x16",
		CreatedAt:       json.RawMessage(strconv.FormatInt(time.Now().UnixMilli(), 10)),
	}
	return "```json\n" + string(schema) + "\n```"
}
