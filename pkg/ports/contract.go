package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore
// implementation adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	conversationID := "contract-test-" + time.Now().Format("20060102150405")

	snapshot := func(id string) *domain.Snapshot {
		return &domain.Snapshot{
			ConversationID: id,
			Policy:         domain.PolicyTransaction,
			DialogueAct:    "sys_recommend_one",
			Expecting:      domain.CategoryYesNo,
			History: []domain.SnapshotItem{{
				Statement: "@com.example.weather.current()",
				Confirm:   domain.ConfirmConfirmed,
				Executed:  true,
				Count:     1,
				Results:   []map[string]any{{"description": "sunny"}},
			}},
			UpdatedAt: time.Now().UTC().Truncate(time.Second),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		snap := snapshot(conversationID)
		require.NoError(t, store.Save(ctx, snap), "Save should not return error")

		loaded, err := store.Load(ctx, conversationID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, snap.DialogueAct, loaded.DialogueAct)
		assert.Equal(t, snap.Expecting, loaded.Expecting)
		require.Len(t, loaded.History, 1)
		assert.Equal(t, "sunny", loaded.History[0].Results[0]["description"])
		assert.True(t, snap.UpdatedAt.Equal(loaded.UpdatedAt))
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		snap := snapshot(conversationID)
		snap.DialogueAct = "sys_end"
		require.NoError(t, store.Save(ctx, snap))

		loaded, err := store.Load(ctx, conversationID)
		require.NoError(t, err)
		assert.Equal(t, "sys_end", loaded.DialogueAct)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+conversationID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, snapshot(conversationID)))
		require.NoError(t, store.Delete(ctx, conversationID), "Delete should not return error")

		_, err := store.Load(ctx, conversationID)
		assert.ErrorIs(t, err, domain.ErrNotFound, "Load after Delete should return ErrNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := conversationID + "-1"
		id2 := conversationID + "-2"
		require.NoError(t, store.Save(ctx, snapshot(id1)))
		require.NoError(t, store.Save(ctx, snapshot(id2)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
