// internal/state/artifact.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/1-kabir/cfm/internal/types"
)

// artifactWrapper is the on-disk format for exported artifacts.
// Each artifact is stored as {"meta": ..., "data": ...}.
type artifactWrapper struct {
	Meta *types.ArtifactMeta  `json:"meta"`
	Data *types.BuildArtifact `json:"data"`
}

// ArtifactStore exports build artifacts as individual JSON files.
// Files are located at conversations/<conversationID>/artifacts/<artifactID>.json.
type ArtifactStore struct {
	root string
}

// NewArtifactStore creates a new file-backed ArtifactStore rooted at the given directory.
func NewArtifactStore(root string) *ArtifactStore {
	return &ArtifactStore{root: root}
}

func (a *ArtifactStore) artifactsDir(conversationID int64) string {
	return filepath.Join(a.root, "conversations", strconv.FormatInt(conversationID, 10), "artifacts")
}

// Path returns where the artifact with the given id lives for a conversation.
func (a *ArtifactStore) Path(conversationID int64, id types.ArtifactID) string {
	return filepath.Join(a.artifactsDir(conversationID), string(id)+".json")
}

// findArtifact locates an artifact file by ID using filepath.Glob across all conversations.
func (a *ArtifactStore) findArtifact(id types.ArtifactID) (string, error) {
	pattern := filepath.Join(a.root, "conversations", "*", "artifacts", string(id)+".json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("glob artifact: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("artifact not found: %s", id)
	}
	return matches[0], nil
}

func (a *ArtifactStore) readWrapper(path string) (*artifactWrapper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact file: %w", err)
	}

	var wrapper artifactWrapper
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("unmarshal artifact: %w", err)
	}
	return &wrapper, nil
}

// Put exports an artifact and returns its ID.
func (a *ArtifactStore) Put(_ context.Context, conversationID int64, entryID types.EntryID, artifact *types.BuildArtifact) (types.ArtifactID, error) {
	if artifact == nil {
		return "", fmt.Errorf("nil artifact")
	}
	id := types.NewArtifactID()

	mime := "text/plain"
	if json.Valid([]byte(artifact.Payload)) {
		mime = "application/json"
	}
	wrapper := &artifactWrapper{
		Meta: &types.ArtifactMeta{
			ID:             id,
			ConversationID: conversationID,
			EntryID:        entryID,
			BuildID:        artifact.BuildID,
			CreatedAt:      time.Now(),
			MimeType:       mime,
		},
		Data: artifact,
	}

	content, err := json.MarshalIndent(wrapper, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal artifact wrapper: %w", err)
	}

	dir := a.artifactsDir(conversationID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifacts dir: %w", err)
	}

	// Atomic write via temp file + rename
	target := a.Path(conversationID, id)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return "", fmt.Errorf("write temp artifact: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename temp artifact: %w", err)
	}

	return id, nil
}

// Get returns the exported artifact.
func (a *ArtifactStore) Get(_ context.Context, id types.ArtifactID) (*types.BuildArtifact, error) {
	path, err := a.findArtifact(id)
	if err != nil {
		return nil, err
	}
	wrapper, err := a.readWrapper(path)
	if err != nil {
		return nil, err
	}
	return wrapper.Data, nil
}

// GetMeta returns the metadata for the given artifact.
func (a *ArtifactStore) GetMeta(_ context.Context, id types.ArtifactID) (*types.ArtifactMeta, error) {
	path, err := a.findArtifact(id)
	if err != nil {
		return nil, err
	}
	wrapper, err := a.readWrapper(path)
	if err != nil {
		return nil, err
	}
	return wrapper.Meta, nil
}
