// Package rules implements the business rules for claim adjudication.
// Rules are boolean or scored checks over a single claim; the decision
// engine composes them into an ordered pipeline.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openclaims/gavel/internal/domain"
)

// Rules evaluates individual business rules against claims. Thresholds and
// the duplicate ledger are injected so that the engine, the rules, and any
// deployment configuration share a single source of truth.
type Rules struct {
	thresholds domain.Thresholds
	ledger     domain.Ledger
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a rule set with the given thresholds and duplicate ledger.
func New(thresholds domain.Thresholds, ledger domain.Ledger, logger *slog.Logger) *Rules {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rules{
		thresholds: thresholds,
		ledger:     ledger,
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock overrides the time source. Tests use this to pin "now".
func (r *Rules) SetClock(now func() time.Time) {
	r.now = now
}

// Thresholds returns the configured thresholds.
func (r *Rules) Thresholds() domain.Thresholds {
	return r.thresholds
}

// ValidateBasicInfo reports whether the required claim fields are present:
// patient name, patient ID, service date, provider name, and amount, with a
// trimmed patient name of at least 2 characters.
func (r *Rules) ValidateBasicInfo(claim *domain.Claim) bool {
	if claim.PatientName == "" || claim.PatientID == "" || claim.ServiceDate.IsZero() ||
		claim.ProviderName == "" || claim.TotalAmount == 0 {
		r.logger.Warn("claim missing required fields", "claimId", claim.ID)
		return false
	}

	if len(strings.TrimSpace(claim.PatientName)) < 2 {
		r.logger.Warn("invalid patient name", "claimId", claim.ID)
		return false
	}

	return true
}

// CheckAmountLimit reports whether the claim amount is positive and within
// the policy limit.
func (r *Rules) CheckAmountLimit(claim *domain.Claim) bool {
	if claim.TotalAmount > r.thresholds.MaxClaimAmount {
		r.logger.Warn("claim exceeds maximum amount",
			"claimId", claim.ID, "amount", claim.TotalAmount)
		return false
	}

	if claim.TotalAmount <= 0 {
		r.logger.Warn("claim has invalid amount",
			"claimId", claim.ID, "amount", claim.TotalAmount)
		return false
	}

	return true
}

// CheckServiceDate reports whether the service date is not in the future and
// not older than the configured maximum age.
func (r *Rules) CheckServiceDate(claim *domain.Claim) bool {
	now := r.now().UTC()
	maxAge := now.AddDate(0, 0, -r.thresholds.MaxServiceAgeDays)

	if claim.ServiceDate.After(now) {
		r.logger.Warn("claim has future service date", "claimId", claim.ID)
		return false
	}

	if claim.ServiceDate.Before(maxAge) {
		r.logger.Warn("claim service date too old", "claimId", claim.ID)
		return false
	}

	return true
}

// DuplicateKey builds the composite fingerprint for duplicate detection:
// patient ID, service calendar date, and amount.
func DuplicateKey(claim *domain.Claim) string {
	return fmt.Sprintf("%s_%s_%.2f", claim.PatientID, claim.ServiceDate.Format("2006-01-02"), claim.TotalAmount)
}

// CheckDuplicate reports whether the claim fingerprint was already recorded,
// recording it as a side effect. The first occurrence of a fingerprint is
// never flagged; any later occurrence is, including a second call for the
// same claim. Callers must invoke this exactly once per claim per
// evaluation pass.
func (r *Rules) CheckDuplicate(ctx context.Context, claim *domain.Claim) bool {
	key := DuplicateKey(claim)

	seen, err := r.ledger.CheckAndRecord(ctx, key)
	if err != nil {
		// Ledger unavailable: treat as not-a-duplicate rather than blocking
		// the pipeline. The claim still goes through every other rule.
		r.logger.Error("duplicate ledger unavailable", "claimId", claim.ID, "error", err)
		return false
	}

	if seen {
		r.logger.Warn("potential duplicate claim detected", "claimId", claim.ID, "key", key)
	}

	return seen
}

// IsDuplicateOf reports whether the claim fingerprint was already recorded
// WITHOUT recording it. This is the safe peek for informational callers;
// only the evaluation pass itself should use CheckDuplicate.
func (r *Rules) IsDuplicateOf(ctx context.Context, claim *domain.Claim) bool {
	seen, err := r.ledger.Seen(ctx, DuplicateKey(claim))
	if err != nil {
		r.logger.Error("duplicate ledger unavailable", "claimId", claim.ID, "error", err)
		return false
	}
	return seen
}

// CheckDocumentation scores documentation completeness on a 5-point scale,
// normalized to [0,1]:
//
//	description present and >10 chars  +1.0
//	at least one diagnosis code        +1.5
//	at least one procedure code        +1.5
//	provider ID present                +0.5
//	amount term                        +0.5
//
// The amount term is unconditional for claims of $5000 or less; high-value
// claims only earn it when both code types are present.
func (r *Rules) CheckDocumentation(claim *domain.Claim) float64 {
	score := 0.0
	const maxScore = 5.0

	if len(claim.Description) > 10 {
		score += 1.0
	}

	if len(claim.DiagnosisCodes) > 0 {
		score += 1.5
	}

	if len(claim.ProcedureCodes) > 0 {
		score += 1.5
	}

	if claim.ProviderID != "" {
		score += 0.5
	}

	if claim.TotalAmount > 5000 {
		if len(claim.DiagnosisCodes) > 0 && len(claim.ProcedureCodes) > 0 {
			score += 0.5
		}
	} else {
		score += 0.5
	}

	normalized := score / maxScore
	r.logger.Debug("documentation score", "claimId", claim.ID, "score", normalized)

	return normalized
}

// RequiresManualReview reports whether the claim needs a human: amount above
// the auto-approve threshold, documentation below the minimum score, or a
// duplicate fingerprint. The duplicate check records the fingerprint as a
// side effect; do not call this after CheckDuplicate in the same pass.
func (r *Rules) RequiresManualReview(ctx context.Context, claim *domain.Claim) bool {
	if claim.TotalAmount > r.thresholds.AutoApproveAmount {
		return true
	}

	if r.CheckDocumentation(claim) < r.thresholds.MinDocumentationScore {
		return true
	}

	if r.CheckDuplicate(ctx, claim) {
		return true
	}

	return false
}
