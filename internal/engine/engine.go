// Package engine implements the claim adjudication pipeline.
// The engine composes the business rules into a fixed ordered decision:
// basic-info and limit rejections take priority over duplicate and
// documentation concerns, confidence starts at 1.0 and is only ever
// reduced before a decision is reached.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openclaims/gavel/internal/domain"
	"github.com/openclaims/gavel/internal/policy"
	"github.com/openclaims/gavel/internal/rules"
)

// Engine makes adjudication decisions for claims.
type Engine struct {
	rules    *rules.Rules
	policies *policy.Engine // optional payer policy overlay
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a decision engine. The policy engine may be nil when the
// deployment has no payer policy rules.
func New(r *rules.Rules, policies *policy.Engine, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		rules:    r,
		policies: policies,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the time source. Tests use this to pin "now".
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Evaluate adjudicates one claim through the ordered pipeline:
//
//  1. missing basic info          -> pending_info, confidence 0
//  2. amount over policy limit    -> rejected
//  3. service date out of range   -> rejected
//  4. duplicate fingerprint       -> reduce confidence, keep going
//  5. documentation score < floor -> pending_info
//  6. payer policy match          -> forces manual review
//  7. small amount, high confidence -> approved, else under_review
//
// The duplicate check records the claim fingerprint as a side effect, so a
// second Evaluate call for the same claim reports a duplicate.
func (e *Engine) Evaluate(ctx context.Context, claim *domain.Claim) *domain.Decision {
	e.logger.Info("evaluating claim", "claimId", claim.ID)

	t := e.rules.Thresholds()
	reasons := []string{}
	confidence := 1.0

	if !e.rules.ValidateBasicInfo(claim) {
		reasons = append(reasons, "Missing or invalid basic information")
		return e.decision(claim, domain.StatusPendingInfo, reasons, 0.0)
	}

	if !e.rules.CheckAmountLimit(claim) {
		reasons = append(reasons, fmt.Sprintf("Claim amount $%.2f exceeds policy limit", claim.TotalAmount))
		return e.decision(claim, domain.StatusRejected, reasons, 1.0)
	}

	if !e.rules.CheckServiceDate(claim) {
		reasons = append(reasons, "Service date is outside acceptable range")
		return e.decision(claim, domain.StatusRejected, reasons, 1.0)
	}

	if e.rules.CheckDuplicate(ctx, claim) {
		reasons = append(reasons, "Potential duplicate claim detected")
		confidence *= 0.7
	}

	docScore := e.rules.CheckDocumentation(claim)
	if docScore < t.MinDocumentationScore {
		reasons = append(reasons, "Insufficient documentation provided")
		return e.decision(claim, domain.StatusPendingInfo, reasons, docScore)
	}
	confidence *= docScore

	// Payer policy overlay: matches only ever downgrade a would-be
	// approval to manual review.
	matches := e.policyMatches(claim)
	for _, m := range matches {
		reasons = append(reasons, m.Reason)
	}

	if len(matches) == 0 && claim.TotalAmount < t.AutoApproveAmount && confidence > t.AutoApproveConfidence {
		reasons = append(reasons, "Auto-approved: All criteria met")
		return e.decision(claim, domain.StatusApproved, reasons, confidence)
	}

	reasons = append(reasons, "Requires manual review")
	return e.decision(claim, domain.StatusUnderReview, reasons, confidence)
}

func (e *Engine) policyMatches(claim *domain.Claim) []domain.PolicyMatch {
	if e.policies == nil {
		return nil
	}
	ageDays := int(e.now().UTC().Sub(claim.ServiceDate).Hours() / 24)
	return e.policies.Evaluate(claim, ageDays)
}

func (e *Engine) decision(claim *domain.Claim, status domain.ClaimStatus, reasons []string, confidence float64) *domain.Decision {
	d := &domain.Decision{
		ID:         uuid.New().String(),
		ClaimID:    claim.ID,
		Status:     status,
		Reasons:    reasons,
		Confidence: confidence,
		Timestamp:  e.now().UTC(),
	}

	e.logger.Info("claim decision",
		"claimId", claim.ID,
		"status", status,
		"confidence", confidence)

	return d
}

// ProcessBatch adjudicates claims in input order and accumulates per-status
// counts. Details preserve the input order; claims are evaluated
// sequentially because the duplicate ledger makes results order-dependent.
func (e *Engine) ProcessBatch(ctx context.Context, claims []*domain.Claim) *domain.BatchSummary {
	e.logger.Info("processing batch", "count", len(claims))

	summary := &domain.BatchSummary{
		Total:   len(claims),
		Details: make([]domain.BatchDetail, 0, len(claims)),
	}

	for _, claim := range claims {
		d := e.Evaluate(ctx, claim)

		switch d.Status {
		case domain.StatusApproved:
			summary.Approved++
		case domain.StatusRejected:
			summary.Rejected++
		case domain.StatusUnderReview:
			summary.UnderReview++
		case domain.StatusPendingInfo:
			summary.PendingInfo++
		}

		summary.Details = append(summary.Details, domain.BatchDetail{
			ClaimID:    claim.ID,
			Status:     d.Status,
			Reasons:    d.Reasons,
			Confidence: d.Confidence,
		})
	}

	e.logger.Info("batch processing complete",
		"approved", summary.Approved,
		"rejected", summary.Rejected,
		"underReview", summary.UnderReview)

	return summary
}

// Explain runs a full evaluation and renders the decision as text.
//
// Known re-entrancy hazard: Explain records the claim fingerprint in the
// duplicate ledger like any evaluation pass, so calling it after Evaluate
// for the same claim reports a spurious duplicate. Callers needing both
// should render the explanation from the stored Decision instead.
func (e *Engine) Explain(ctx context.Context, claim *domain.Claim) string {
	d := e.Evaluate(ctx, claim)
	return RenderExplanation(d)
}

// RenderExplanation formats a decision as a human-readable report: the
// status uppercased, the confidence as a percentage, and a numbered list
// of reasons.
func RenderExplanation(d *domain.Decision) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Claim Decision: %s\n", strings.ToUpper(string(d.Status)))
	fmt.Fprintf(&b, "Confidence Score: %.2f%%\n\n", d.Confidence*100)
	b.WriteString("Reasons:\n")

	for i, reason := range d.Reasons {
		fmt.Fprintf(&b, "%d. %s\n", i+1, reason)
	}

	return b.String()
}
