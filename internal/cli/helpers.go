package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
)

// SignalContext is a context cancelled on SIGTERM, or on SIGINT when the
// interrupt handler does not consume it. It allows retrieving the signal.
type SignalContext struct {
	context.Context
	Cancel func()
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that listens for SIGINT and SIGTERM.
// onInterrupt runs on every SIGINT; returning true keeps the context alive,
// e.g. because the interrupt cancelled a pending question instead.
func NewSignalContext(parent context.Context, onInterrupt func() bool) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer sc.stop.Do(func() { signal.Stop(sc.sigCh) })
		for {
			select {
			case sig := <-sc.sigCh:
				if sig == os.Interrupt && onInterrupt != nil && onInterrupt() {
					continue
				}
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
				return
			case <-sc.Context.Done():
				return
			}
		}
	}()

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// createLogger configures the application logger.
// Debug forces the debug level; logs always go to Stderr.
func createLogger(cfg config.Config, debug bool) *slog.Logger {
	level := logging.ParseLevel(cfg.LogLevel)
	if debug {
		level = slog.LevelDebug
	}
	return logging.New(level, logging.Format(cfg.LogFormat))
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

func createDebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurnStart: func(ctx context.Context, e *domain.TurnEvent) {
			logger.Debug("Turn Start", "kind", e.Kind)
		},
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			logger.Debug("Turn End", "kind", e.Kind, "outcome", e.Outcome, "policy", e.Policy, "act", e.Act, "duration", e.Duration)
		},
		OnCancel: func(ctx context.Context, e *domain.TurnEvent) {
			logger.Debug("Turn Cancelled", "kind", e.Kind)
		},
		OnExecute: func(ctx context.Context, e *domain.ExecutionEvent) {
			if e.Err != nil || e.ErrorCode != "" {
				logger.Debug("Execute (Error)", "statement", e.Statement, "code", e.ErrorCode, "err", e.Err)
			} else {
				logger.Debug("Execute (Success)", "statement", e.Statement, "count", e.Count)
			}
		},
	}
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) || errors.Is(err, domain.ErrClosed)
}

func handleExecutionError(err error) error {
	if err == nil || isInterrupted(err) {
		return nil // Exit 0 for interruptions
	}
	return err
}
