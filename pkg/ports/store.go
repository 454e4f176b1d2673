package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// SnapshotStore persists conversation snapshots for inspection.
// The loop only writes; readers are the HTTP and MCP adapters.
type SnapshotStore interface {
	// Save stores the snapshot under its conversation ID.
	Save(ctx context.Context, snap *domain.Snapshot) error

	// Load retrieves the latest snapshot.
	// Returns domain.ErrNotFound if the conversation has none.
	Load(ctx context.Context, conversationID string) (*domain.Snapshot, error)

	// Delete removes the snapshot.
	Delete(ctx context.Context, conversationID string) error

	// List returns the IDs of stored conversations.
	List(ctx context.Context) ([]string, error)
}
