// Package policy provides the CEL-Go based payer policy engine.
// Policy rules are supplemental review triggers configured per deployment;
// they run after the built-in adjudication rules and can only downgrade a
// would-be approval to manual review, never override a rejection.
package policy

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/openclaims/gavel/internal/domain"
)

// Engine compiles and evaluates payer policy rules.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*compiledRule
}

type compiledRule struct {
	rule    *domain.PolicyRule
	program cel.Program
}

// NewEngine creates a policy engine with claim variables bound into the CEL
// environment.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("claim", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("claim_type", cel.StringType),
		cel.Variable("patient_id", cel.StringType),
		cel.Variable("provider_id", cel.StringType),
		cel.Variable("diagnosis_codes", cel.ListType(cel.StringType)),
		cel.Variable("procedure_codes", cel.ListType(cel.StringType)),
		cel.Variable("diagnosis_count", cel.IntType),
		cel.Variable("procedure_count", cel.IntType),
		cel.Variable("description_length", cel.IntType),
		cel.Variable("has_provider_id", cel.BoolType),
		cel.Variable("service_age_days", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:      env,
		compiled: make(map[string]*compiledRule),
	}, nil
}

// Validate compiles a rule without loading it.
func (e *Engine) Validate(rule *domain.PolicyRule) error {
	if rule == nil {
		return fmt.Errorf("policy rule is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compile(rule)
	return err
}

// Load compiles and loads a single rule into the engine.
func (e *Engine) Load(rule *domain.PolicyRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compile(rule)
	if err != nil {
		return err
	}

	e.compiled[rule.ID] = compiled
	return nil
}

// LoadAll compiles and loads the enabled rules from a set.
func (e *Engine) LoadAll(rules []*domain.PolicyRule) error {
	for _, rule := range rules {
		if rule.Enabled {
			if err := e.Load(rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// Reload replaces all loaded rules with the enabled rules from the given
// set. This enables hot-reloading from the database without a restart.
func (e *Engine) Reload(rules []*domain.PolicyRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	fresh := make(map[string]*compiledRule)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}

		compiled, err := e.compile(rule)
		if err != nil {
			return err
		}
		fresh[rule.ID] = compiled
	}

	e.compiled = fresh
	return nil
}

// Evaluate runs every loaded rule against a claim and returns the matches.
// A rule that fails to evaluate is skipped; a broken policy expression must
// not block adjudication.
func (e *Engine) Evaluate(claim *domain.Claim, serviceAgeDays int) []domain.PolicyMatch {
	e.mu.RLock()
	rules := make([]*compiledRule, 0, len(e.compiled))
	for _, r := range e.compiled {
		rules = append(rules, r)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	activation := map[string]any{
		"claim": map[string]any{
			"id":          claim.ID,
			"type":        string(claim.Type),
			"patient_id":  claim.PatientID,
			"provider_id": claim.ProviderID,
			"amount":      claim.TotalAmount,
			"currency":    claim.Currency,
			"description": claim.Description,
		},
		"amount":             claim.TotalAmount,
		"claim_type":         string(claim.Type),
		"patient_id":         claim.PatientID,
		"provider_id":        claim.ProviderID,
		"diagnosis_codes":    claim.DiagnosisCodes,
		"procedure_codes":    claim.ProcedureCodes,
		"diagnosis_count":    len(claim.DiagnosisCodes),
		"procedure_count":    len(claim.ProcedureCodes),
		"description_length": len(claim.Description),
		"has_provider_id":    claim.ProviderID != "",
		"service_age_days":   serviceAgeDays,
	}

	var matches []domain.PolicyMatch
	for _, r := range rules {
		out, _, err := r.program.Eval(activation)
		if err != nil {
			continue
		}

		if b, ok := out.(types.Bool); ok && bool(b) {
			matches = append(matches, domain.PolicyMatch{
				RuleID: r.rule.ID,
				Name:   r.rule.Name,
				Reason: r.rule.Reason,
			})
		}
	}

	return matches
}

// Count returns the number of loaded rules.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// Loaded returns the currently loaded rule definitions.
func (e *Engine) Loaded() []*domain.PolicyRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.PolicyRule, 0, len(e.compiled))
	for _, r := range e.compiled {
		rules = append(rules, r.rule)
	}
	return rules
}

// Close clears the loaded rules.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string]*compiledRule)
	return nil
}

func (e *Engine) compile(rule *domain.PolicyRule) (*compiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile policy %s: %w", rule.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("policy %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for policy %s: %w", rule.ID, err)
	}

	return &compiledRule{
		rule:    rule,
		program: program,
	}, nil
}
