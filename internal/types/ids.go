// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type EntryID string
type ArtifactID string

func NewEntryID() EntryID {
	return EntryID(uuid.New().String())
}

func NewArtifactID() ArtifactID {
	return ArtifactID(uuid.New().String())
}
