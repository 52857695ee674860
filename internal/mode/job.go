package mode

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/1-kabir/cfm/pkg/backend"
)

// Sync is one pending attempt to persist a conversation's mode on the backend.
type Sync struct {
	ID             string
	ConversationID int64
	Mode           backend.Mode
	Token          backend.Token
	Generation     uint64
	EnqueuedAt     time.Time

	Ctx context.Context
}

func newSync(conversationID int64, mode backend.Mode, token backend.Token, gen uint64) *Sync {
	return &Sync{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Mode:           mode,
		Token:          token,
		Generation:     gen,
		EnqueuedAt:     time.Now(),
	}
}
