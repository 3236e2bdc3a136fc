// Package backend selects and wires the record store named in the config.
package backend

import (
	"context"
	"fmt"

	"github.com/boddenberg/finledger-go/internal/config"
	"github.com/boddenberg/finledger-go/internal/infra/memstore"
	"github.com/boddenberg/finledger-go/internal/infra/mongostore"
	"github.com/boddenberg/finledger-go/internal/infra/observability"
	"github.com/boddenberg/finledger-go/internal/infra/resilience"
	"github.com/boddenberg/finledger-go/internal/infra/sqlite"

	"go.uber.org/zap"
)

// Open builds the configured store and wraps it with Instrumented.
// The caller owns the returned store and must Close it.
func Open(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) (*Instrumented, error) {
	var (
		store Store
		err   error
	)

	switch cfg.StoreBackend {
	case config.BackendMemory:
		store = memstore.New()
	case config.BackendSQLite:
		store, err = sqlite.Open(ctx, cfg.SQLitePath)
	case config.BackendMongo:
		store, err = mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}

	logger.Info("record store ready", zap.String("backend", cfg.StoreBackend))

	return NewInstrumented(store, cfg.StoreBackend, resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
	}, metrics, logger), nil
}
