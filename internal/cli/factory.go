package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/pkg/adapters/file"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/adapters/redis"
	"github.com/aretw0/parley/pkg/adapters/skill"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/persistence/middleware"
	"github.com/aretw0/parley/pkg/ports"
)

const pingTimeout = 3 * time.Second

// openStore creates the snapshot store selected by cfg, wrapped with the
// configured redaction and encryption. The returned close function releases
// its connections.
func openStore(ctx context.Context, cfg config.StoreConfig) (ports.SnapshotStore, func() error, error) {
	mws, err := storeMiddleware(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, closeFn, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return middleware.Chain(store, mws...), closeFn, nil
}

func storeMiddleware(cfg config.StoreConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.Redact)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	if len(cfg.Keys) > 0 {
		keys, err := middleware.ParseKeys(cfg.Keys[0], cfg.Keys[1:]...)
		if err != nil {
			return nil, fmt.Errorf("store encryption: %w", err)
		}
		enc, err := middleware.NewEncryptionMiddleware(keys)
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return mws, nil
}

func openBackend(ctx context.Context, cfg config.StoreConfig) (ports.SnapshotStore, func() error, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", config.BackendMemory:
		return memory.NewStore(), func() error { return nil }, nil

	case config.BackendFile:
		return file.New(cfg.File.Dir), func() error { return nil }, nil

	case config.BackendRedis:
		var opts []redis.Option
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Redis.Prefix))
		}
		if cfg.Redis.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.Redis.TTL))
		}
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)

		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// assistantOptions returns the options shared by every entrypoint.
func assistantOptions(catalog *skill.Catalog, store ports.SnapshotStore, logger *slog.Logger, hooks domain.LifecycleHooks) []parley.Option {
	return []parley.Option{
		parley.WithParser(skill.NewParser(catalog)),
		parley.WithSchemas(catalog),
		parley.WithStore(store),
		parley.WithLogger(logger),
		parley.WithLifecycleHooks(hooks),
		parley.WithLegacyHandler("help", helpHandler(catalog)),
	}
}

func helpHandler(catalog *skill.Catalog) func(ctx context.Context, dlg ports.Dialogue, intent domain.LegacyIntent) (any, error) {
	return func(ctx context.Context, dlg ports.Dialogue, intent domain.LegacyIntent) (any, error) {
		return nil, dlg.Reply(ctx, catalog.HelpText())
	}
}
