package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/adapters/skill"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newManager(t *testing.T, store *memory.Store) (*session.Manager, *int) {
	t.Helper()
	catalog, err := skill.New(&skill.Skill{
		ID:       "restaurants",
		Function: "com.example.food:restaurants",
		Keywords: []string{"restaurants"},
		Results:  []map[string]any{{"id": "trattoria"}},
	})
	require.NoError(t, err)

	var mu sync.Mutex
	created := 0
	m := session.NewManager(func(id string) (*parley.Assistant, error) {
		mu.Lock()
		created++
		mu.Unlock()
		return parley.New(catalog, memory.NewSink(),
			parley.WithConversationID(id),
			parley.WithParser(skill.NewParser(catalog)),
			parley.WithStore(store),
		)
	}, session.WithStore(store))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, m.Shutdown(ctx))
	})
	return m, &created
}

func TestManager_GetOrStart(t *testing.T) {
	m, created := newManager(t, memory.NewStore())

	var wg sync.WaitGroup
	results := make([]*parley.Assistant, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := m.GetOrStart("c1")
			assert.NoError(t, err)
			results[i] = a
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, *created, "one assistant per conversation")
	for _, a := range results {
		assert.Same(t, results[0], a)
	}

	got, ok := m.Get("c1")
	assert.True(t, ok)
	assert.Same(t, results[0], got)
	assert.Equal(t, []string{"c1"}, m.Active())

	_, err := m.GetOrStart("")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManager_StopAndSnapshot(t *testing.T) {
	store := memory.NewStore()
	m, _ := newManager(t, store)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	a, err := m.GetOrStart("c1")
	require.NoError(t, err)
	fut, err := a.HandleText(ctx, "restaurants")
	require.NoError(t, err)
	_, err = fut.Wait(ctx)
	require.NoError(t, err)

	live, err := m.Snapshot(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, live.History, 1)

	require.NoError(t, m.Stop(ctx, "c1"))
	_, ok := m.Get("c1")
	assert.False(t, ok)
	assert.Empty(t, m.Active())
	require.NoError(t, m.Stop(ctx, "c1"), "stopping twice is fine")

	stored, err := m.Snapshot(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, live.History, stored.History)

	ids, err := m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)

	_, err = m.Snapshot(ctx, "unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManager_List(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &domain.Snapshot{ConversationID: "stored"}))

	m, _ := newManager(t, store)
	_, err := m.GetOrStart("running")
	require.NoError(t, err)

	ids, err := m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"running", "stored"}, ids)
}

func TestManager_FactoryError(t *testing.T) {
	m := session.NewManager(func(id string) (*parley.Assistant, error) {
		return nil, errors.New("boom")
	})
	_, err := m.GetOrStart("c1")
	assert.ErrorContains(t, err, "boom")
	assert.Empty(t, m.Active())
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_Shutdown(t *testing.T) {
	m, _ := newManager(t, memory.NewStore())
	_, err := m.GetOrStart("a")
	require.NoError(t, err)
	_, err = m.GetOrStart("b")
	require.NoError(t, err)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Empty(t, m.Active())

	_, err = m.GetOrStart("c")
	assert.ErrorIs(t, err, session.ErrShutdown)
}
