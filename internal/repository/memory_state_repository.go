package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"story-client/internal/models"
)

// Compile-time check to ensure memoryStateRepository implements StateRepository.
var _ StateRepository = (*memoryStateRepository)(nil)

// memoryStateRepository keeps the serialized state in memory. Used in tests
// and when no Redis address is configured; state then lives only as long as
// the process.
type memoryStateRepository struct {
	mu      sync.Mutex
	payload []byte
}

// NewMemoryStateRepository creates an in-memory StateRepository.
func NewMemoryStateRepository() StateRepository {
	return &memoryStateRepository{}
}

// Save serializes the whole state and replaces the stored unit. Going
// through JSON keeps the save/load semantics identical to the durable
// implementation.
func (r *memoryStateRepository) Save(ctx context.Context, state *models.ConversationState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation state: %w", err)
	}
	r.mu.Lock()
	r.payload = payload
	r.mu.Unlock()
	return nil
}

func (r *memoryStateRepository) Load(ctx context.Context) (*models.ConversationState, error) {
	r.mu.Lock()
	payload := r.payload
	r.mu.Unlock()

	if payload == nil {
		return models.NewConversationState(), nil
	}
	var state models.ConversationState
	if err := json.Unmarshal(payload, &state); err != nil {
		return models.NewConversationState(), nil
	}
	return &state, nil
}

func (r *memoryStateRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	r.payload = nil
	r.mu.Unlock()
	return nil
}
