package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
)

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestHandleExecutionError(t *testing.T) {
	assert.NoError(t, handleExecutionError(nil))
	assert.NoError(t, handleExecutionError(context.Canceled))
	assert.NoError(t, handleExecutionError(io.EOF))
	assert.NoError(t, handleExecutionError(domain.ErrClosed))

	boom := errors.New("boom")
	assert.ErrorIs(t, handleExecutionError(boom), boom)
}

func TestCreateDebugHooks(t *testing.T) {
	var buf bytes.Buffer
	hooks := createDebugHooks(logging.NewWriter(&buf, slog.LevelDebug, logging.FormatText))
	ctx := context.Background()

	hooks.OnTurnEnd(ctx, &domain.TurnEvent{Kind: "user_input", Outcome: domain.OutcomeDone})
	hooks.OnExecute(ctx, &domain.ExecutionEvent{Statement: "@a()", ErrorCode: "nope"})

	assert.Contains(t, buf.String(), "Turn End")
	assert.Contains(t, buf.String(), "outcome=done")
	assert.Contains(t, buf.String(), "Execute (Error)")
	assert.Contains(t, buf.String(), "code=nope")
}

func TestPrintSystemMessage(t *testing.T) {
	var buf bytes.Buffer
	printSystemMessage(&buf, "Conversation '%s' active.", "c1")
	assert.Equal(t, ">>> Conversation 'c1' active.\n", buf.String())
}
