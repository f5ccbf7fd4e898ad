package domain

import "time"

// PolicyRule is a payer-configurable supplemental review trigger: a CEL
// expression over claim fields. A matching policy downgrades a would-be
// approval to under_review and contributes its reason; it never overrides a
// rejection or a pending_info outcome.
type PolicyRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Expression is a CEL expression returning bool.
	Expression string `json:"expression"`

	// Reason is appended to the decision when the rule matches.
	Reason string `json:"reason"`

	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// PolicyMatch records one policy rule that matched a claim.
type PolicyMatch struct {
	RuleID string `json:"ruleId"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}
