package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/parley/pkg/adapters/file"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	ports.RunSnapshotStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_Layout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "conversations")
	store := file.New(dir)
	ctx := context.Background()

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids, "a missing directory lists nothing")

	require.NoError(t, store.Save(ctx, &domain.Snapshot{ConversationID: "c1", Policy: domain.PolicyTransaction}))
	data, err := os.ReadFile(filepath.Join(dir, "c1.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"policy": "`+domain.PolicyTransaction+`"`)

	// Leftovers of an interrupted save are not conversations.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tmp-c2-123.json"), []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)

	assert.NoError(t, store.Delete(ctx, "never-saved"))
}

func TestFileStore_RejectsPaths(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"", "..", "../escape", `a\b`} {
		err := store.Save(ctx, &domain.Snapshot{ConversationID: id})
		assert.ErrorIs(t, err, file.ErrInvalidID, id)

		_, err = store.Load(ctx, id)
		assert.ErrorIs(t, err, file.ErrInvalidID, id)
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644))

	_, err := file.New(dir).Load(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}
