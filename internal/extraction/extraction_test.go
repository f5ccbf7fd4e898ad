package extraction

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openclaims/gavel/internal/domain"
)

func TestMapFields(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("Complete", func(t *testing.T) {
		result := &domain.ExtractionResult{
			Confidence: 0.92,
			Fields: map[string]any{
				"claimType":      "medical",
				"patientName":    "Jane Doe",
				"patientId":      "PAT-123456",
				"providerName":   "City Medical Center",
				"providerId":     "1234567893",
				"serviceDate":    "2025-05-20",
				"totalAmount":    450.75,
				"description":    "Routine office visit with lab work",
				"diagnosisCodes": []any{"A00.1"},
				"procedureCodes": []any{"99213"},
			},
		}

		claim, errs, err := MapFields(result, now)
		if err != nil {
			t.Fatalf("MapFields failed: %v", err)
		}
		if len(errs) != 0 {
			t.Errorf("expected no field errors, got %v", errs)
		}

		if claim.Type != domain.TypeMedical {
			t.Errorf("expected medical, got %s", claim.Type)
		}
		if claim.PatientID != "PAT-123456" {
			t.Errorf("unexpected patient ID: %s", claim.PatientID)
		}
		if !claim.ServiceDate.Equal(time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected service date: %v", claim.ServiceDate)
		}
		if claim.TotalAmount != 450.75 {
			t.Errorf("unexpected amount: %v", claim.TotalAmount)
		}
		if !strings.HasPrefix(claim.ID, "CLM-") {
			t.Errorf("claim ID not generated: %s", claim.ID)
		}
		if claim.Currency != "USD" {
			t.Errorf("currency default missing: %s", claim.Currency)
		}
	})

	t.Run("SnakeCaseKeys", func(t *testing.T) {
		result := &domain.ExtractionResult{
			Confidence: 0.8,
			Fields: map[string]any{
				"patient_name":    "John Roe",
				"patient_id":      "PAT-654321",
				"provider_name":   "Clinic",
				"total_amount":    120.0,
				"service_date":    "06/01/2025",
				"diagnosis_codes": "A00, Z99.89",
			},
		}

		claim, _, err := MapFields(result, now)
		if err != nil {
			t.Fatalf("MapFields failed: %v", err)
		}
		if claim.PatientName != "John Roe" {
			t.Errorf("snake_case keys not mapped: %+v", claim)
		}
		if len(claim.DiagnosisCodes) != 2 {
			t.Errorf("comma-separated codes not split: %v", claim.DiagnosisCodes)
		}
	})

	t.Run("LowConfidenceRejected", func(t *testing.T) {
		result := &domain.ExtractionResult{
			Confidence: 0.3,
			Fields:     map[string]any{"patientName": "Jane Doe"},
		}

		_, _, err := MapFields(result, now)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for low confidence, got %v", err)
		}
	})

	t.Run("EmptyFieldsRejected", func(t *testing.T) {
		_, _, err := MapFields(&domain.ExtractionResult{Confidence: 0.9}, now)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for empty fields, got %v", err)
		}
	})

	t.Run("InvalidFieldsReported", func(t *testing.T) {
		result := &domain.ExtractionResult{
			Confidence: 0.9,
			Fields: map[string]any{
				"patientName":    "Jane Doe",
				"patientId":      "AB", // too short
				"providerId":     "1234567890",
				"totalAmount":    200.0,
				"procedureCodes": []any{"BAD"},
			},
			MissingFields: []string{"serviceDate"},
		}

		claim, errs, err := MapFields(result, now)
		if err != nil {
			t.Fatalf("MapFields failed: %v", err)
		}
		if claim == nil {
			t.Fatal("claim should still be built for correction")
		}
		if len(errs) != 4 {
			t.Errorf("expected 4 field errors, got %d: %v", len(errs), errs)
		}
		if errs[len(errs)-1] != "Missing field: serviceDate" {
			t.Errorf("missing-field note absent: %v", errs)
		}
	})

	t.Run("UnknownTypeFallsBack", func(t *testing.T) {
		result := &domain.ExtractionResult{
			Confidence: 0.9,
			Fields: map[string]any{
				"claimType":   "chiropractic",
				"patientName": "Jane Doe",
			},
		}

		claim, _, err := MapFields(result, now)
		if err != nil {
			t.Fatalf("MapFields failed: %v", err)
		}
		if claim.Type != domain.TypeOther {
			t.Errorf("expected other, got %s", claim.Type)
		}
	})
}

func TestParseDate(t *testing.T) {
	want := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	inputs := []string{
		"2025-03-14",
		"03/14/2025",
		"3/14/2025",
		"March 14, 2025",
		"Mar 14, 2025",
		"  2025-03-14  ",
	}

	for _, input := range inputs {
		got, err := ParseDate(input)
		if err != nil {
			t.Errorf("ParseDate(%q) failed: %v", input, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %v, want %v", input, got, want)
		}
	}

	if _, err := ParseDate("not a date"); err == nil {
		t.Error("expected error for unparseable date")
	}
}

func TestExtractCodes(t *testing.T) {
	text := "Diagnosis: A00.1 and Z99.89. Procedures performed: 99213, 99213. Ref 12345678."

	diagnosis, procedure := ExtractCodes(text)

	if len(diagnosis) != 2 {
		t.Errorf("expected 2 diagnosis codes, got %v", diagnosis)
	}
	if len(procedure) != 1 || procedure[0] != "99213" {
		t.Errorf("expected deduplicated [99213], got %v", procedure)
	}
}
