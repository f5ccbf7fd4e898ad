// Package domain defines the core types and interfaces for Gavel.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"
)

// ClaimType classifies a claim. Immutable after creation; changing the type
// means creating a new claim record.
type ClaimType string

const (
	TypeMedical      ClaimType = "medical"
	TypeDental       ClaimType = "dental"
	TypeVision       ClaimType = "vision"
	TypePrescription ClaimType = "prescription"
	TypeHospital     ClaimType = "hospital"
	TypeOther        ClaimType = "other"
)

// ValidClaimType reports whether t is a known claim type.
func ValidClaimType(t ClaimType) bool {
	switch t {
	case TypeMedical, TypeDental, TypeVision, TypePrescription, TypeHospital, TypeOther:
		return true
	}
	return false
}

// ClaimStatus is the workflow state of a claim.
type ClaimStatus string

const (
	StatusDraft       ClaimStatus = "draft"
	StatusSubmitted   ClaimStatus = "submitted"
	StatusUnderReview ClaimStatus = "under_review"
	StatusApproved    ClaimStatus = "approved"
	StatusRejected    ClaimStatus = "rejected"
	StatusPendingInfo ClaimStatus = "pending_info"
)

// statusTransitions encodes the claim workflow state machine.
// approved and rejected are terminal; under_review and pending_info are
// resolved externally into approved or rejected.
var statusTransitions = map[ClaimStatus][]ClaimStatus{
	StatusDraft:       {StatusSubmitted},
	StatusSubmitted:   {StatusUnderReview, StatusApproved, StatusRejected, StatusPendingInfo},
	StatusUnderReview: {StatusApproved, StatusRejected},
	StatusPendingInfo: {StatusApproved, StatusRejected, StatusSubmitted},
}

// CanTransition reports whether the workflow allows moving from one status
// to another.
func CanTransition(from, to ClaimStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Claim is the unit of adjudication.
type Claim struct {
	ID     string      `json:"id"`
	Type   ClaimType   `json:"type"`
	Status ClaimStatus `json:"status"`

	// Patient
	PatientName string    `json:"patientName"`
	PatientID   string    `json:"patientId"`
	DateOfBirth time.Time `json:"dateOfBirth"`

	// Provider
	ProviderName string `json:"providerName"`
	ProviderID   string `json:"providerId,omitempty"` // optional NPI

	// Service
	ServiceDate time.Time `json:"serviceDate"`

	// Financial
	TotalAmount float64 `json:"totalAmount"`
	Currency    string  `json:"currency"`

	// Documentation
	Description    string   `json:"description,omitempty"`
	DiagnosisCodes []string `json:"diagnosisCodes,omitempty"`
	ProcedureCodes []string `json:"procedureCodes,omitempty"`

	// Variant payload, populated according to Type.
	Medical      *MedicalDetails      `json:"medical,omitempty"`
	Dental       *DentalDetails       `json:"dental,omitempty"`
	Prescription *PrescriptionDetails `json:"prescription,omitempty"`

	// Timestamps
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
}

// MedicalDetails carries fields specific to medical and hospital claims.
type MedicalDetails struct {
	AdmissionDate      *time.Time `json:"admissionDate,omitempty"`
	DischargeDate      *time.Time `json:"dischargeDate,omitempty"`
	RoomType           string     `json:"roomType,omitempty"`
	AttendingPhysician string     `json:"attendingPhysician,omitempty"`
	TreatmentType      string     `json:"treatmentType,omitempty"`
	Medications        []string   `json:"medications,omitempty"`
	LabTests           []string   `json:"labTests,omitempty"`
}

// DentalDetails carries fields specific to dental claims.
type DentalDetails struct {
	ToothNumber   string `json:"toothNumber,omitempty"`
	ProcedureType string `json:"procedureType,omitempty"`
	IsEmergency   bool   `json:"isEmergency"`
	XRaysTaken    bool   `json:"xRaysTaken"`
}

// PrescriptionDetails carries fields specific to prescription claims.
type PrescriptionDetails struct {
	MedicationName string `json:"medicationName"`
	Dosage         string `json:"dosage"`
	Quantity       int    `json:"quantity"`
	DaysSupply     int    `json:"daysSupply"`
	PharmacyName   string `json:"pharmacyName"`
	PharmacyNPI    string `json:"pharmacyNpi,omitempty"`
	IsGeneric      bool   `json:"isGeneric"`
	RefillNumber   int    `json:"refillNumber"`
}

// MaxClaimInput is the absolute input-validation ceiling for claim amounts.
// Distinct from the adjudication policy limit in Thresholds.
const MaxClaimInput = 1_000_000.0

// Normalize fills generated fields: claim ID (when the caller did not supply
// one), currency default, rounded amount, and timestamps.
func (c *Claim) Normalize(now time.Time) {
	if c.ID == "" {
		c.ID = GenerateClaimID(c.PatientID, c.ServiceDate, now)
	}
	if c.Status == "" {
		c.Status = StatusDraft
	}
	if c.Currency == "" {
		c.Currency = "USD"
	}
	c.TotalAmount = math.Round(c.TotalAmount*100) / 100
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}

// Validate enforces record-construction preconditions. These fail fast at
// the creation boundary, before a claim ever reaches the decision engine.
func (c *Claim) Validate(now time.Time) error {
	if !ValidClaimType(c.Type) {
		return fmt.Errorf("%w: unknown claim type %q", ErrInvalidClaim, c.Type)
	}
	if c.TotalAmount <= 0 {
		return fmt.Errorf("%w: claim amount must be positive", ErrInvalidClaim)
	}
	if c.TotalAmount > MaxClaimInput {
		return fmt.Errorf("%w: claim amount exceeds maximum limit", ErrInvalidClaim)
	}
	if c.ServiceDate.After(now) {
		return fmt.Errorf("%w: service date cannot be in the future", ErrInvalidClaim)
	}
	if c.Medical != nil && c.Medical.AdmissionDate != nil && c.Medical.DischargeDate != nil &&
		c.Medical.DischargeDate.Before(*c.Medical.AdmissionDate) {
		return fmt.Errorf("%w: discharge date must be after admission date", ErrInvalidClaim)
	}
	return nil
}

// Transition moves the claim to a new status, refreshing UpdatedAt and
// stamping SubmittedAt on submission. Returns an error for moves the state
// machine does not allow.
func (c *Claim) Transition(to ClaimStatus, now time.Time) error {
	if !CanTransition(c.Status, to) {
		return fmt.Errorf("%w: cannot transition claim from %s to %s", ErrInvalidClaim, c.Status, to)
	}
	if to == StatusSubmitted && c.SubmittedAt == nil {
		t := now
		c.SubmittedAt = &t
	}
	c.Status = to
	c.UpdatedAt = now
	return nil
}

// GenerateClaimID derives a claim identifier from the patient ID, the service
// date, and the submission instant: a truncated uppercase hex digest prefixed
// with "CLM-". Collision handling is the caller's responsibility.
func GenerateClaimID(patientID string, serviceDate, submittedAt time.Time) string {
	raw := fmt.Sprintf("%s_%s_%d", patientID, serviceDate.Format("20060102"), submittedAt.UTC().UnixNano())
	sum := sha256.Sum256([]byte(raw))
	return "CLM-" + strings.ToUpper(hex.EncodeToString(sum[:6]))
}
