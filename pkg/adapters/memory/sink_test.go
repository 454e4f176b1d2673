package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_Records(t *testing.T) {
	sink := memory.NewSink()
	ctx := context.Background()

	require.NoError(t, sink.Send(ctx, domain.TextMessage("hi", "")))
	require.NoError(t, sink.SetExpected(ctx, domain.CategoryYesNo))
	require.NoError(t, sink.Send(ctx, domain.Message{Type: domain.MessageChoice, Title: "first"}))

	assert.Equal(t, []string{"hi", "first"}, sink.Texts())
	assert.Equal(t, domain.CategoryYesNo, sink.Expecting())
	assert.Len(t, sink.Drain(1), 1)
	assert.Nil(t, sink.Drain(5))
}

func TestSink_Wait(t *testing.T) {
	sink := memory.NewSink()

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = sink.Send(context.Background(), domain.TextMessage("late", ""))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sink.Wait(ctx, 1))

	short, cancelShort := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancelShort()
	assert.ErrorIs(t, sink.Wait(short, 5), context.DeadlineExceeded)
}

func TestSink_WaitExpecting(t *testing.T) {
	sink := memory.NewSink()

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = sink.SetExpected(context.Background(), domain.CategoryNumber)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sink.WaitExpecting(ctx, domain.CategoryNumber))
	require.NoError(t, sink.WaitExpecting(ctx, domain.CategoryNumber), "already satisfied")
}
