// internal/types/interfaces.go
package types

import (
	"context"

	"github.com/1-kabir/cfm/pkg/backend"
)

type CredentialStore interface {
	Load(ctx context.Context) (backend.Token, error)
	Save(ctx context.Context, token backend.Token) error
	Delete(ctx context.Context) error
}

type ArtifactStore interface {
	Put(ctx context.Context, conversationID int64, entryID EntryID, artifact *BuildArtifact) (ArtifactID, error)
	Get(ctx context.Context, id ArtifactID) (*BuildArtifact, error)
	GetMeta(ctx context.Context, id ArtifactID) (*ArtifactMeta, error)
}

type Transcript interface {
	Append(entry *Entry)
	AppendIf(ok func() bool, entry *Entry) bool
	Entries() []Entry
	Len() int
}
