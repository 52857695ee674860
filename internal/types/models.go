// internal/types/models.go
package types

import (
	"time"
)

// Role identifies who authored a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// EntryKind distinguishes plain text entries from build artifact cards.
type EntryKind string

const (
	KindText     EntryKind = "text"
	KindArtifact EntryKind = "artifact"
)

// Entry is one line of the in-memory conversation transcript.
type Entry struct {
	ID             EntryID        `json:"id"`
	Seq            int64          `json:"seq"`
	ConversationID int64          `json:"conversation_id,omitempty"`
	Role           Role           `json:"role"`
	Kind           EntryKind      `json:"kind"`
	Text           string         `json:"text"`
	Artifact       *BuildArtifact `json:"artifact,omitempty"`
	At             time.Time      `json:"at"`
}

// BuildArtifact is the payload guessed to be structured build data inside
// an assistant reply. BuildID is zero unless the backend record was resolved.
type BuildArtifact struct {
	Payload  string `json:"payload"`
	Fenced   bool   `json:"fenced"`
	Language string `json:"language,omitempty"`
	Preview  string `json:"preview"`
	BuildID  int64  `json:"build_id,omitempty"`
}

type ArtifactMeta struct {
	ID             ArtifactID `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	EntryID        EntryID    `json:"entry_id,omitempty"`
	BuildID        int64      `json:"build_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	MimeType       string     `json:"mime_type,omitempty"`
}
