package domain

import (
	"context"
)

// Ledger is the duplicate-detection store: a set of composite claim
// fingerprints (patient ID + service calendar date + amount). It is
// check-and-record by design — the first occurrence of a key is never
// flagged, every later occurrence is. The ledger has no eviction.
//
// Concurrent deployments must use an implementation whose CheckAndRecord is
// atomic; two submissions racing past "not yet seen" for the same key would
// otherwise both pass the duplicate check.
type Ledger interface {
	// Seen reports whether a fingerprint has been recorded, without
	// recording it. This is the non-mutating peek for callers that need
	// duplicate information outside an evaluation pass.
	Seen(ctx context.Context, key string) (bool, error)

	// Record adds a fingerprint to the ledger.
	Record(ctx context.Context, key string) error

	// CheckAndRecord atomically records the fingerprint and reports whether
	// it was already present. Calling it twice with the same key always
	// returns true the second time.
	CheckAndRecord(ctx context.Context, key string) (bool, error)

	// Reset clears the ledger. Intended for tests and batch re-runs.
	Reset(ctx context.Context) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// LedgerConfig holds configuration for ledger initialization.
type LedgerConfig struct {
	// Type is the ledger type: "memory" or "redis"
	Type string

	// Redis settings (production deployments with multiple nodes)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}
