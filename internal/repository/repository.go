// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openclaims/gavel/internal/domain"
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// claimDetails bundles the variant payloads into one JSON column.
type claimDetails struct {
	Medical      *domain.MedicalDetails      `json:"medical,omitempty"`
	Dental       *domain.DentalDetails       `json:"dental,omitempty"`
	Prescription *domain.PrescriptionDetails `json:"prescription,omitempty"`
}

// SaveClaim upserts a claim. Status transitions are persisted by saving the
// mutated claim.
func (r *SQLRepository) SaveClaim(ctx context.Context, claim *domain.Claim) error {
	if claim.ID == "" {
		return fmt.Errorf("%w: claim ID is required", domain.ErrInvalidInput)
	}

	diagnosisCodes, _ := json.Marshal(claim.DiagnosisCodes)
	procedureCodes, _ := json.Marshal(claim.ProcedureCodes)
	details, _ := json.Marshal(claimDetails{
		Medical:      claim.Medical,
		Dental:       claim.Dental,
		Prescription: claim.Prescription,
	})

	var dob, submittedAt any
	if !claim.DateOfBirth.IsZero() {
		dob = claim.DateOfBirth
	}
	if claim.SubmittedAt != nil {
		submittedAt = *claim.SubmittedAt
	}

	query := `
		INSERT INTO claims (
			id, type, status, patient_name, patient_id, date_of_birth,
			provider_name, provider_id, service_date, total_amount, currency,
			description, diagnosis_codes, procedure_codes, details,
			created_at, updated_at, submitted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			patient_name = excluded.patient_name,
			provider_name = excluded.provider_name,
			provider_id = excluded.provider_id,
			total_amount = excluded.total_amount,
			description = excluded.description,
			diagnosis_codes = excluded.diagnosis_codes,
			procedure_codes = excluded.procedure_codes,
			details = excluded.details,
			updated_at = excluded.updated_at,
			submitted_at = excluded.submitted_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		claim.ID, claim.Type, claim.Status,
		claim.PatientName, claim.PatientID, dob,
		claim.ProviderName, claim.ProviderID,
		claim.ServiceDate, claim.TotalAmount, claim.Currency,
		claim.Description, string(diagnosisCodes), string(procedureCodes), string(details),
		claim.CreatedAt, claim.UpdatedAt, submittedAt,
	)
	return err
}

// GetClaim retrieves a claim by ID.
func (r *SQLRepository) GetClaim(ctx context.Context, claimID string) (*domain.Claim, error) {
	query := `
		SELECT id, type, status, patient_name, patient_id, date_of_birth,
			   provider_name, provider_id, service_date, total_amount, currency,
			   description, diagnosis_codes, procedure_codes, details,
			   created_at, updated_at, submitted_at
		FROM claims
		WHERE id = ?
	`

	claim, err := scanClaim(r.db.QueryRowContext(ctx, r.rebind(query), claimID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return claim, err
}

// ListClaimsByPatient retrieves a patient's claims with a service date at or
// after the given time, newest first.
func (r *SQLRepository) ListClaimsByPatient(ctx context.Context, patientID string, since time.Time) ([]*domain.Claim, error) {
	if patientID == "" {
		return nil, fmt.Errorf("%w: patientID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, type, status, patient_name, patient_id, date_of_birth,
			   provider_name, provider_id, service_date, total_amount, currency,
			   description, diagnosis_codes, procedure_codes, details,
			   created_at, updated_at, submitted_at
		FROM claims
		WHERE patient_id = ? AND service_date >= ?
		ORDER BY service_date DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), patientID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []*domain.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}

	return claims, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanClaim(s scanner) (*domain.Claim, error) {
	var claim domain.Claim
	var dob, submittedAt sql.NullTime
	var providerID, description, diagnosisCodes, procedureCodes, details sql.NullString

	err := s.Scan(
		&claim.ID, &claim.Type, &claim.Status,
		&claim.PatientName, &claim.PatientID, &dob,
		&claim.ProviderName, &providerID,
		&claim.ServiceDate, &claim.TotalAmount, &claim.Currency,
		&description, &diagnosisCodes, &procedureCodes, &details,
		&claim.CreatedAt, &claim.UpdatedAt, &submittedAt,
	)
	if err != nil {
		return nil, err
	}

	if dob.Valid {
		claim.DateOfBirth = dob.Time
	}
	if submittedAt.Valid {
		t := submittedAt.Time
		claim.SubmittedAt = &t
	}
	claim.ProviderID = providerID.String
	claim.Description = description.String

	if diagnosisCodes.String != "" {
		json.Unmarshal([]byte(diagnosisCodes.String), &claim.DiagnosisCodes)
	}
	if procedureCodes.String != "" {
		json.Unmarshal([]byte(procedureCodes.String), &claim.ProcedureCodes)
	}
	if details.String != "" {
		var d claimDetails
		if err := json.Unmarshal([]byte(details.String), &d); err == nil {
			claim.Medical = d.Medical
			claim.Dental = d.Dental
			claim.Prescription = d.Prescription
		}
	}

	return &claim, nil
}

// SaveDecision stores a decision result.
func (r *SQLRepository) SaveDecision(ctx context.Context, decision *domain.Decision) error {
	if decision.ID == "" {
		return fmt.Errorf("%w: decision ID is required", domain.ErrInvalidInput)
	}

	reasons, _ := json.Marshal(decision.Reasons)

	query := `
		INSERT INTO decisions (id, claim_id, status, reasons, confidence, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		decision.ID, decision.ClaimID, decision.Status,
		string(reasons), decision.Confidence, decision.Timestamp,
	)
	return err
}

// GetDecision retrieves a decision by ID.
func (r *SQLRepository) GetDecision(ctx context.Context, decisionID string) (*domain.Decision, error) {
	query := `
		SELECT id, claim_id, status, reasons, confidence, timestamp
		FROM decisions
		WHERE id = ?
	`

	var d domain.Decision
	var reasons string

	err := r.db.QueryRowContext(ctx, r.rebind(query), decisionID).Scan(
		&d.ID, &d.ClaimID, &d.Status, &reasons, &d.Confidence, &d.Timestamp,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(reasons), &d.Reasons)

	return &d, nil
}

// GetLatestDecision retrieves the most recent decision for a claim.
func (r *SQLRepository) GetLatestDecision(ctx context.Context, claimID string) (*domain.Decision, error) {
	query := `
		SELECT id, claim_id, status, reasons, confidence, timestamp
		FROM decisions
		WHERE claim_id = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`

	var d domain.Decision
	var reasons string

	err := r.db.QueryRowContext(ctx, r.rebind(query), claimID).Scan(
		&d.ID, &d.ClaimID, &d.Status, &reasons, &d.Confidence, &d.Timestamp,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(reasons), &d.Reasons)

	return &d, nil
}

// AppendHistory records one audit-trail entry.
func (r *SQLRepository) AppendHistory(ctx context.Context, entry *domain.HistoryEntry) error {
	if entry.ClaimID == "" {
		return fmt.Errorf("%w: claim ID is required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO claim_history (id, claim_id, from_status, to_status, reason, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		entry.ID, entry.ClaimID, entry.FromStatus, entry.ToStatus,
		entry.Reason, entry.Actor, entry.CreatedAt,
	)
	return err
}

// ListHistory retrieves the audit trail for a claim, oldest first.
func (r *SQLRepository) ListHistory(ctx context.Context, claimID string) ([]*domain.HistoryEntry, error) {
	query := `
		SELECT id, claim_id, from_status, to_status, reason, actor, created_at
		FROM claim_history
		WHERE claim_id = ?
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var reason sql.NullString

		if err := rows.Scan(
			&e.ID, &e.ClaimID, &e.FromStatus, &e.ToStatus,
			&reason, &e.Actor, &e.CreatedAt,
		); err != nil {
			return nil, err
		}

		e.Reason = reason.String
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// SavePolicyRule upserts a payer policy rule.
func (r *SQLRepository) SavePolicyRule(ctx context.Context, rule *domain.PolicyRule) error {
	if rule.ID == "" {
		return fmt.Errorf("%w: rule ID is required", domain.ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO policy_rules (
			id, name, description, expression, reason, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			reason = excluded.reason,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description,
		rule.Expression, rule.Reason, enabled,
		now, now,
	)
	return err
}

// GetPolicyRule retrieves a policy rule by ID.
func (r *SQLRepository) GetPolicyRule(ctx context.Context, ruleID string) (*domain.PolicyRule, error) {
	query := `
		SELECT id, name, description, expression, reason, enabled, created_at, updated_at
		FROM policy_rules
		WHERE id = ?
	`

	var rule domain.PolicyRule
	var description sql.NullString
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), ruleID).Scan(
		&rule.ID, &rule.Name, &description,
		&rule.Expression, &rule.Reason, &enabled,
		&rule.CreatedAt, &rule.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.Enabled = enabled == 1

	return &rule, nil
}

// ListPolicyRules retrieves all policy rules, enabled and disabled.
func (r *SQLRepository) ListPolicyRules(ctx context.Context) ([]*domain.PolicyRule, error) {
	query := `
		SELECT id, name, description, expression, reason, enabled, created_at, updated_at
		FROM policy_rules
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.PolicyRule
	for rows.Next() {
		var rule domain.PolicyRule
		var description sql.NullString
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.Name, &description,
			&rule.Expression, &rule.Reason, &enabled,
			&rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}

		rule.Description = description.String
		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
