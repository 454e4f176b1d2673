package ports_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// MockStore is a serializing in-memory SnapshotStore for testing purposes.
type MockStore struct {
	data map[string][]byte
}

func NewMockStore() *MockStore {
	return &MockStore{data: make(map[string][]byte)}
}

func (m *MockStore) Save(ctx context.Context, snap *domain.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	m.data[snap.ConversationID] = raw
	return nil
}

func (m *MockStore) Load(ctx context.Context, conversationID string) (*domain.Snapshot, error) {
	raw, ok := m.data[conversationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (m *MockStore) Delete(ctx context.Context, conversationID string) error {
	delete(m.data, conversationID)
	return nil
}

func (m *MockStore) List(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestMockStore_Contract(t *testing.T) {
	ports.RunSnapshotStoreContract(t, NewMockStore())
}
