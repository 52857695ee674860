// internal/types/ids_test.go
package types

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewEntryID(t *testing.T) {
	id := NewEntryID()
	if _, err := uuid.Parse(string(id)); err != nil {
		t.Errorf("expected UUID format, got %s", id)
	}
	if NewEntryID() == id {
		t.Error("expected distinct entry IDs")
	}
}

func TestNewArtifactID(t *testing.T) {
	id := NewArtifactID()
	if len(string(id)) != 36 {
		t.Errorf("expected UUID format, got %s", id)
	}
}
