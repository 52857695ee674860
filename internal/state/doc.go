// Package state provides filesystem-backed storage implementations.
package state

import "github.com/1-kabir/cfm/internal/types"

// Compile-time interface compliance checks.
var _ types.CredentialStore = (*CredentialStore)(nil)
var _ types.ArtifactStore = (*ArtifactStore)(nil)
