package backend

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Mode is the conversational mode of a conversation.
type Mode string

const (
	ModePlanning Mode = "PLANNING"
	ModeBuilding Mode = "BUILDING"
)

// ParseMode accepts a mode name in any case. An empty string yields ModePlanning.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(ModePlanning):
		return ModePlanning, nil
	case string(ModeBuilding):
		return ModeBuilding, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// Other returns the mode a switch moves to.
func (m Mode) Other() Mode {
	if m == ModeBuilding {
		return ModePlanning
	}
	return ModeBuilding
}

// Label is the badge text shown for the mode.
func (m Mode) Label() string {
	if m == ModeBuilding {
		return "BUILDING"
	}
	return "PLANNING"
}

// Hint is the input placeholder shown while the mode is active.
func (m Mode) Hint() string {
	if m == ModeBuilding {
		return "Describe the structure to generate..."
	}
	return "Discuss the plan for your build..."
}

// Conversation statuses as stored by the backend.
const (
	StatusActive    = "ACTIVE"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// Conversation is a server-tracked chat session.
type Conversation struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Mode         Mode   `json:"mode,omitempty"`
	CurrentMode  Mode   `json:"currentMode,omitempty"`
	UserUUID     string `json:"userUuid,omitempty"`
	UserUsername string `json:"userUsername,omitempty"`
	Status       string `json:"status,omitempty"`
}

// EffectiveMode returns the conversation's mode, falling back to PLANNING
// when the server reported none.
func (c *Conversation) EffectiveMode() Mode {
	switch {
	case c.Mode != "":
		m, err := ParseMode(string(c.Mode))
		if err == nil {
			return m
		}
	case c.CurrentMode != "":
		m, err := ParseMode(string(c.CurrentMode))
		if err == nil {
			return m
		}
	}
	return ModePlanning
}

// CreateConversationRequest is the body of POST /api/conversations.
type CreateConversationRequest struct {
	UserUUID     string `json:"userUuid"`
	UserUsername string `json:"userUsername"`
	Title        string `json:"title"`
	Status       string `json:"status"`
}

// Build statuses as stored by the backend.
const (
	BuildPending    = "PENDING"
	BuildProcessing = "PROCESSING"
	BuildCompleted  = "COMPLETED"
	BuildFailed     = "FAILED"
)

// Build is a generated build recorded by the backend.
type Build struct {
	ID              int64           `json:"id"`
	ConversationID  int64           `json:"conversationId"`
	IterationNumber int             `json:"iterationNumber"`
	BuildName       string          `json:"buildName,omitempty"`
	Prompt          string          `json:"prompt,omitempty"`
	SchemaData      string          `json:"schemaData,omitempty"`
	Status          string          `json:"status,omitempty"`
	BlockCount      int             `json:"blockCount"`
	Dimensions      string          `json:"dimensions,omitempty"`
	CreatedAt       json.RawMessage `json:"createdAt,omitempty"`
}
