package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/internal/presentation/tui"
	"github.com/aretw0/parley/pkg/adapters/console"
	"github.com/aretw0/parley/pkg/adapters/skill"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RunOptions configures an interactive session.
type RunOptions struct {
	Config config.Config
	Debug  bool
	Quiet  bool
	In     io.Reader
	Out    io.Writer

	// Interrupts, when set, replaces SIGINT handling: every value received
	// cancels the pending question.
	Interrupts <-chan struct{}
}

// Run talks to the user on In/Out until the input ends, the user says
// "exit", or ctx is cancelled.
func Run(ctx context.Context, opts RunOptions) error {
	cfg := opts.Config
	logger := createLogger(cfg, opts.Debug)

	catalog, err := skill.LoadFile(cfg.Catalog)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("Failed to close store", "err", err)
		}
	}()

	id := cfg.ConversationID
	if id == "" {
		id = uuid.NewString()
	}

	var hooks domain.LifecycleHooks
	if opts.Debug {
		hooks = createDebugHooks(logger)
	}

	sink := console.NewSink(opts.Out)
	assistant, err := parley.New(catalog, sink,
		append(assistantOptions(catalog, store, logger, hooks), parley.WithConversationID(id))...)
	if err != nil {
		return fmt.Errorf("error initializing assistant: %w", err)
	}

	var runCtx context.Context
	var cancel func()
	if opts.Interrupts != nil {
		runCtx, cancel = context.WithCancel(ctx)
	} else {
		sc := NewSignalContext(ctx, assistant.Cancel)
		runCtx, cancel = sc, sc.Cancel
	}
	defer cancel()

	if !opts.Quiet {
		tui.PrintBanner(opts.Out)
		printSystemMessage(opts.Out, "Conversation '%s' active. Say \"help\" to list skills, \"exit\" to quit.", id)
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return assistant.Run(gctx)
	})
	if opts.Interrupts != nil {
		g.Go(func() error {
			for {
				select {
				case <-opts.Interrupts:
					assistant.Cancel()
				case <-gctx.Done():
					return nil
				}
			}
		})
	}
	if cfg.Notify.Interval > 0 {
		g.Go(func() error {
			return runNotifier(gctx, assistant, catalog, cfg.Notify)
		})
	}
	g.Go(func() error {
		defer cancel()
		defer assistant.Close()
		return repl(gctx, assistant, sink, console.NewReader(opts.In), opts.Out)
	})

	err = g.Wait()
	if !opts.Quiet {
		printSystemMessage(opts.Out, "Conversation '%s' closed.", id)
	}
	return handleExecutionError(err)
}

func repl(ctx context.Context, a *parley.Assistant, sink *console.Sink, in *console.Reader, out io.Writer) error {
	for {
		fmt.Fprint(out, sink.Prompt())
		line, err := in.ReadLine(ctx)
		switch {
		case errors.Is(err, io.EOF):
			fmt.Fprintln(out)
			return nil
		case errors.Is(err, console.ErrInputTooLarge), errors.Is(err, console.ErrInvalidUTF8):
			printSystemMessage(out, "Input rejected: %v", err)
			continue
		case err != nil:
			return err
		}

		if a.Expecting() == domain.CategoryNone && isExit(line) {
			return nil
		}

		fut, err := a.HandleText(ctx, line)
		if err != nil {
			return err
		}
		if _, err := a.AwaitReply(ctx, fut); err != nil {
			return err
		}
	}
}

func isExit(line string) bool {
	switch strings.ToLower(line) {
	case "exit", "quit", "bye":
		return true
	}
	return false
}

// runNotifier runs the configured skill as system work on every tick.
func runNotifier(ctx context.Context, a *parley.Assistant, catalog *skill.Catalog, cfg config.NotifyConfig) error {
	if cfg.Skill == "" {
		return nil
	}
	if _, err := catalog.Lookup(cfg.Skill); err != nil {
		return err
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			program, err := catalog.Invoke(cfg.Skill, nil)
			if err != nil {
				return err
			}
			if _, err := a.RunProgram(ctx, program, "notifier"); err != nil {
				if ctx.Err() != nil || errors.Is(err, domain.ErrClosed) {
					return nil
				}
				return err
			}
		}
	}
}
