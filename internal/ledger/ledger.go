// Package ledger provides duplicate-detection ledger implementations.
package ledger

import (
	"fmt"

	"github.com/openclaims/gavel/internal/domain"
)

// New creates a ledger based on configuration.
// Single-node deployments use the in-memory ledger; multi-node deployments
// use Redis so that every node shares one fingerprint set.
func New(cfg domain.LedgerConfig) (domain.Ledger, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryLedger(), nil

	case "redis":
		return NewRedisLedger(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	default:
		return nil, fmt.Errorf("unsupported ledger type: %s", cfg.Type)
	}
}
