package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bissquit/storefront-auth/internal/config"
	"github.com/bissquit/storefront-auth/internal/identity"
	"github.com/bissquit/storefront-auth/internal/identity/memory"
	identitymongo "github.com/bissquit/storefront-auth/internal/identity/mongo"
	identitypostgres "github.com/bissquit/storefront-auth/internal/identity/postgres"
	"github.com/bissquit/storefront-auth/internal/pkg/metrics"
	"github.com/bissquit/storefront-auth/internal/pkg/mongodb"
	"github.com/bissquit/storefront-auth/internal/pkg/postgres"
)

const dbMetricsInterval = 15 * time.Second

// credentialStore is the selected Repository plus its lifecycle hooks.
type credentialStore struct {
	driver string
	repo   identity.Repository
	ping   func(ctx context.Context) error
	close  func(ctx context.Context)
}

// openStore connects the configured driver. Background collectors started
// here stop when bgCtx is cancelled.
func openStore(ctx, bgCtx context.Context, cfg *config.Config) (*credentialStore, error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		return openPostgres(ctx, bgCtx, cfg.Database)
	case config.StoreMongo:
		return openMongo(ctx, cfg.Mongo)
	case config.StoreMemory, "":
		slog.Warn("using in-memory credential store: accounts are lost on restart")
		return &credentialStore{
			driver: config.StoreMemory,
			repo:   memory.NewRepository(),
			ping:   func(context.Context) error { return nil },
			close:  func(context.Context) {},
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func openPostgres(ctx, bgCtx context.Context, cfg config.DatabaseConfig) (*credentialStore, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.URL,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnectAttempts: cfg.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := postgres.Migrate(cfg.URL); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	go metrics.CollectDBPoolMetrics(bgCtx, pool, dbMetricsInterval)

	return &credentialStore{
		driver: config.StorePostgres,
		repo:   identitypostgres.NewRepository(pool),
		ping:   pool.Ping,
		close:  func(context.Context) { pool.Close() },
	}, nil
}

func openMongo(ctx context.Context, cfg config.MongoConfig) (*credentialStore, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.URI, Database: cfg.Database})
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	repo := identitymongo.NewRepository(client.Database(cfg.Database))
	if err := repo.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure mongo indexes: %w", err)
	}

	return &credentialStore{
		driver: config.StoreMongo,
		repo:   repo,
		ping:   func(ctx context.Context) error { return client.Ping(ctx, nil) },
		close: func(ctx context.Context) {
			if err := client.Disconnect(ctx); err != nil {
				slog.Warn("disconnect mongodb", "error", err)
			}
		},
	}, nil
}
