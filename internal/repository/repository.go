// Package repository persists the conversation state across restarts. The
// whole state is serialized as one JSON unit under a single fixed key;
// partial writes are not a supported outcome.
package repository

import (
	"context"

	"story-client/internal/models"
)

// StateKey is the fixed storage key for the persisted conversation state.
const StateKey = "djx-story-state"

// StateRepository stores and restores the durable session state.
type StateRepository interface {
	// Save writes the entire state atomically.
	Save(ctx context.Context, state *models.ConversationState) error
	// Load returns the persisted state. Absent or corrupt data degrades to
	// the default-empty state with a nil error; only infrastructure faults
	// are reported.
	Load(ctx context.Context) (*models.ConversationState, error)
	// Clear removes the persisted unit entirely.
	Clear(ctx context.Context) error
}
