package store

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/nobreverify/internal/config"
)

// Open builds the ledger backend selected by cfg.LedgerBackend.
func Open(ctx context.Context, cfg *config.Config) (Ledger, error) {
	switch cfg.LedgerBackend {
	case config.BackendFile:
		return NewFileLedger(cfg.LedgerPath)
	case config.BackendPostgres:
		return NewPostgresLedger(ctx, cfg.DBSource)
	case config.BackendRedis:
		return NewRedisLedger(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKey)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}
