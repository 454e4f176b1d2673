package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{"password", "ssn"})
	require.NoError(t, err)
	secure := mw(underlying)
	ctx := context.Background()

	row := map[string]any{
		"username":      "jdoe",
		"user_password": "secret123",
		"details": map[string]any{
			"address":    "123 St",
			"ssn_number": "999-99-9999",
		},
	}
	snap := &domain.Snapshot{
		ConversationID: "pii",
		History:        []domain.SnapshotItem{{Statement: "@com.example.crm:lookup()", Executed: true, Count: 1, Results: []map[string]any{row}}},
	}

	require.NoError(t, secure.Save(ctx, snap))
	assert.Equal(t, "secret123", row["user_password"], "the caller's snapshot is untouched")

	stored, err := underlying.Load(ctx, "pii")
	require.NoError(t, err)
	got := stored.History[0].Results[0]
	assert.Equal(t, "jdoe", got["username"])
	assert.Equal(t, middleware.Mask, got["user_password"])
	assert.Equal(t, middleware.Mask, got["details"].(map[string]any)["ssn_number"])
	assert.Equal(t, "123 St", got["details"].(map[string]any)["address"])
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	underlying := memory.NewStore()
	pii, err := middleware.NewPIIMiddleware([]string{"secret"})
	require.NoError(t, err)
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	store := middleware.Chain(underlying, pii, enc)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &domain.Snapshot{
		ConversationID: "c1",
		History:        []domain.SnapshotItem{{Statement: "@a()", Results: []map[string]any{{"secret": "x"}}}},
	}))

	raw, err := underlying.Load(ctx, "c1")
	require.NoError(t, err)
	assert.NotEmpty(t, raw.Sealed)

	loaded, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.History[0].Results[0]["secret"])
}
