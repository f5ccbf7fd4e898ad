package domain

import (
	"time"
)

// Decision is the outcome of evaluating one claim: the resulting status, the
// ordered human-readable reasons, and a confidence score in [0,1]. The engine
// produces it; callers own persistence.
type Decision struct {
	ID         string      `json:"id"`
	ClaimID    string      `json:"claimId"`
	Status     ClaimStatus `json:"status"`
	Reasons    []string    `json:"reasons"`
	Confidence float64     `json:"confidence"`
	Timestamp  time.Time   `json:"timestamp"`
}

// BatchDetail is the per-claim entry of a batch summary, in input order.
type BatchDetail struct {
	ClaimID    string      `json:"claimId"`
	Status     ClaimStatus `json:"status"`
	Reasons    []string    `json:"reasons"`
	Confidence float64     `json:"confidence"`
}

// BatchSummary aggregates the decisions for a batch of claims.
type BatchSummary struct {
	Total       int           `json:"total"`
	Approved    int           `json:"approved"`
	Rejected    int           `json:"rejected"`
	UnderReview int           `json:"underReview"`
	PendingInfo int           `json:"pendingInfo"`
	Details     []BatchDetail `json:"details"`
}

// HistoryEntry is one step of a claim's audit trail: a status transition,
// the reason for it, and the actor who caused it.
type HistoryEntry struct {
	ID         string      `json:"id"`
	ClaimID    string      `json:"claimId"`
	FromStatus ClaimStatus `json:"fromStatus"`
	ToStatus   ClaimStatus `json:"toStatus"`
	Reason     string      `json:"reason"`
	Actor      string      `json:"actor"`
	CreatedAt  time.Time   `json:"createdAt"`
}
