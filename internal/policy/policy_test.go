package policy

import (
	"testing"
	"time"

	"github.com/openclaims/gavel/internal/domain"
)

func testClaim() *domain.Claim {
	return &domain.Claim{
		ID:             "CLM-POLICY000001",
		Type:           domain.TypeMedical,
		PatientID:      "PAT-123456",
		ProviderID:     "1234567893",
		TotalAmount:    2500.00,
		Currency:       "USD",
		ServiceDate:    time.Now().UTC().AddDate(0, 0, -10),
		DiagnosisCodes: []string{"A00.1"},
		ProcedureCodes: []string{"99213"},
	}
}

func TestEngineLoadAndEvaluate(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer e.Close()

	rules := []*domain.PolicyRule{
		{
			ID:         "pol-high-amount",
			Name:       "High amount review",
			Expression: `amount > 2000.0`,
			Reason:     "Amount exceeds payer review threshold",
			Enabled:    true,
		},
		{
			ID:         "pol-dental",
			Name:       "Dental audit",
			Expression: `claim_type == "dental"`,
			Reason:     "Dental claims under audit",
			Enabled:    true,
		},
		{
			ID:         "pol-disabled",
			Name:       "Disabled rule",
			Expression: `true`,
			Reason:     "Should never fire",
			Enabled:    false,
		},
	}

	if err := e.LoadAll(rules); err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if e.Count() != 2 {
		t.Errorf("expected 2 loaded rules, got %d", e.Count())
	}

	matches := e.Evaluate(testClaim(), 10)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d: %v", len(matches), matches)
	}
	if matches[0].RuleID != "pol-high-amount" {
		t.Errorf("expected pol-high-amount, got %s", matches[0].RuleID)
	}
	if matches[0].Reason != "Amount exceeds payer review threshold" {
		t.Errorf("unexpected reason: %s", matches[0].Reason)
	}
}

func TestEngineCompileErrors(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer e.Close()

	t.Run("SyntaxError", func(t *testing.T) {
		rule := &domain.PolicyRule{
			ID:         "pol-bad",
			Expression: `amount >>> 100`,
			Enabled:    true,
		}
		if err := e.Load(rule); err == nil {
			t.Error("expected compile error for bad syntax")
		}
	})

	t.Run("NonBoolOutput", func(t *testing.T) {
		rule := &domain.PolicyRule{
			ID:         "pol-nonbool",
			Expression: `amount * 2.0`,
			Enabled:    true,
		}
		if err := e.Load(rule); err == nil {
			t.Error("expected error for non-bool expression")
		}
	})

	t.Run("ValidateDoesNotLoad", func(t *testing.T) {
		rule := &domain.PolicyRule{
			ID:         "pol-validated",
			Expression: `amount > 0.0`,
			Enabled:    true,
		}
		if err := e.Validate(rule); err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if e.Count() != 0 {
			t.Errorf("Validate should not load rules, count = %d", e.Count())
		}
	})
}

func TestEngineReload(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer e.Close()

	old := &domain.PolicyRule{
		ID:         "pol-old",
		Expression: `true`,
		Reason:     "old",
		Enabled:    true,
	}
	if err := e.Load(old); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	fresh := []*domain.PolicyRule{
		{
			ID:         "pol-new",
			Expression: `service_age_days > 180`,
			Reason:     "Stale service date",
			Enabled:    true,
		},
	}
	if err := e.Reload(fresh); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if e.Count() != 1 {
		t.Fatalf("expected 1 rule after reload, got %d", e.Count())
	}

	matches := e.Evaluate(testClaim(), 200)
	if len(matches) != 1 || matches[0].RuleID != "pol-new" {
		t.Errorf("expected pol-new match, got %v", matches)
	}
}

func TestEngineListVariables(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer e.Close()

	rule := &domain.PolicyRule{
		ID:         "pol-codes",
		Name:       "Missing procedure codes",
		Expression: `size(procedure_codes) == 0 && amount > 1000.0`,
		Reason:     "High-value claim without procedure codes",
		Enabled:    true,
	}
	if err := e.Load(rule); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	c := testClaim()
	c.ProcedureCodes = nil

	matches := e.Evaluate(c, 10)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}

	// With codes present the rule must not fire
	if matches := e.Evaluate(testClaim(), 10); len(matches) != 0 {
		t.Errorf("expected no match with codes present, got %v", matches)
	}
}

func TestEngineScalarVariables(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer e.Close()

	rules := []*domain.PolicyRule{
		{
			ID:         "pol-no-provider",
			Name:       "High amount without provider",
			Expression: `!has_provider_id && amount > 1000.0`,
			Reason:     "High-value claim without a provider identifier",
			Enabled:    true,
		},
		{
			ID:         "pol-thin-record",
			Name:       "Thin clinical record",
			Expression: `diagnosis_count + procedure_count < 2 && description_length < 20`,
			Reason:     "Claim record too thin for automated approval",
			Enabled:    true,
		},
	}
	if err := e.LoadAll(rules); err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}

	// Fully documented claim with a provider: neither rule fires
	if matches := e.Evaluate(testClaim(), 10); len(matches) != 0 {
		t.Errorf("expected no matches, got %v", matches)
	}

	c := testClaim()
	c.ProviderID = ""
	c.ProcedureCodes = nil
	c.Description = "Visit"

	matches := e.Evaluate(c, 10)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d: %v", len(matches), matches)
	}
}
