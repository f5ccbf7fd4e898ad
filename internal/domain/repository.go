package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// The decision engine itself never touches storage; the API layer and the
// async worker persist claims, decisions, and the audit trail through this
// interface.
type Repository interface {
	// Claim operations. SaveClaim upserts, so status transitions are
	// persisted by saving the mutated claim.
	SaveClaim(ctx context.Context, claim *Claim) error
	GetClaim(ctx context.Context, claimID string) (*Claim, error)
	ListClaimsByPatient(ctx context.Context, patientID string, since time.Time) ([]*Claim, error)

	// Decision results
	SaveDecision(ctx context.Context, decision *Decision) error
	GetDecision(ctx context.Context, decisionID string) (*Decision, error)
	GetLatestDecision(ctx context.Context, claimID string) (*Decision, error)

	// Audit trail
	AppendHistory(ctx context.Context, entry *HistoryEntry) error
	ListHistory(ctx context.Context, claimID string) ([]*HistoryEntry, error)

	// Policy rule configuration
	SavePolicyRule(ctx context.Context, rule *PolicyRule) error
	GetPolicyRule(ctx context.Context, ruleID string) (*PolicyRule, error)
	ListPolicyRules(ctx context.Context) ([]*PolicyRule, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
