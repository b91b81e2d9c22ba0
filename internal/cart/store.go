package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

// StorageKeyPrefix namespaces snapshots in key/value stores.
const StorageKeyPrefix = "cart-storage:"

// Store persists one cart snapshot per profile. Load returns (nil, nil) when
// the profile has no snapshot yet.
type Store interface {
	Load(ctx context.Context, profileID string) (*domain.CartState, error)
	Save(ctx context.Context, profileID string, state domain.CartState) error
}

// AbandonedCart is a snapshot whose owner has been idle past the threshold.
type AbandonedCart struct {
	ProfileID string
	State     domain.CartState
}

// IdleLister is implemented by stores that can find idle carts for the sweeper.
type IdleLister interface {
	ListAbandoned(ctx context.Context, cutoff time.Time, limit int) ([]AbandonedCart, error)
	MarkReminded(ctx context.Context, profileID string, lastActivity time.Time) error
}

func StorageKey(profileID string) string {
	return StorageKeyPrefix + profileID
}

func encodeState(state domain.CartState) ([]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal cart state: %w", err)
	}
	return data, nil
}

func decodeState(data []byte) (*domain.CartState, error) {
	var state domain.CartState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal cart state: %w", err)
	}
	if state.Items == nil {
		state.Items = []domain.LineItem{}
	}
	if state.SavedItems == nil {
		state.SavedItems = []domain.SavedItem{}
	}
	return &state, nil
}

// MemoryStore keeps encoded snapshots in process memory. Snapshots go through
// the same JSON encoding as the durable stores.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, profileID string) (*domain.CartState, error) {
	s.mu.Lock()
	data, ok := s.data[StorageKey(profileID)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}
	return decodeState(data)
}

func (s *MemoryStore) Save(_ context.Context, profileID string, state domain.CartState) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data[StorageKey(profileID)] = data
	s.mu.Unlock()
	return nil
}
