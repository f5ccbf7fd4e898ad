package validate

import (
	"strings"
	"testing"
	"time"
)

func TestPatientID(t *testing.T) {
	tests := []struct {
		name      string
		patientID string
		valid     bool
	}{
		{"Valid", "PAT-123456", true},
		{"ValidLowercase", "pat-123456", true},
		{"ValidDigitsOnly", "123456789", true},
		{"Empty", "", false},
		{"Whitespace", "   ", false},
		{"TooShort", "AB123", false},
		{"TooLong", strings.Repeat("A", 21), false},
		{"InvalidChars", "PAT_12345!", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, msg := PatientID(tt.patientID)
			if valid != tt.valid {
				t.Errorf("PatientID(%q) = %v (%s), want %v", tt.patientID, valid, msg, tt.valid)
			}
			if !valid && msg == "" {
				t.Error("invalid result should carry a message")
			}
		})
	}
}

func TestProviderNPI(t *testing.T) {
	tests := []struct {
		name  string
		npi   string
		valid bool
	}{
		{"ValidChecksum", "1234567893", true},
		{"InvalidChecksum", "1234567890", false},
		{"UnprefixedLuhnOnly", "1234567897", false},
		{"EmptyIsOptional", "", true},
		{"WithHyphens", "123-456-7893", true},
		{"WithSpaces", "123 456 7893", true},
		{"TooShort", "123456789", false},
		{"TooLong", "12345678931", false},
		{"NonDigits", "12345678AB", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, msg := ProviderNPI(tt.npi)
			if valid != tt.valid {
				t.Errorf("ProviderNPI(%q) = %v (%s), want %v", tt.npi, valid, msg, tt.valid)
			}
		})
	}
}

func TestDiagnosisCode(t *testing.T) {
	valid := []string{"A00", "A00.1", "Z99.89", "a00.1", "B12.3456"}
	invalid := []string{"", "123", "ABC", "AA00", "A0", "A00.12345"}

	for _, code := range valid {
		if ok, msg := DiagnosisCode(code); !ok {
			t.Errorf("DiagnosisCode(%q) rejected: %s", code, msg)
		}
	}
	for _, code := range invalid {
		if ok, _ := DiagnosisCode(code); ok {
			t.Errorf("DiagnosisCode(%q) accepted, want rejection", code)
		}
	}
}

func TestProcedureCode(t *testing.T) {
	valid := []string{"99213", "00100", "12345"}
	invalid := []string{"", "1234", "123456", "ABC12", "9921A"}

	for _, code := range valid {
		if ok, msg := ProcedureCode(code); !ok {
			t.Errorf("ProcedureCode(%q) rejected: %s", code, msg)
		}
	}
	for _, code := range invalid {
		if ok, _ := ProcedureCode(code); ok {
			t.Errorf("ProcedureCode(%q) accepted, want rejection", code)
		}
	}
}

func TestAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		valid  bool
	}{
		{"Valid", 150.75, true},
		{"MinBoundary", 0.01, true},
		{"MaxBoundary", 1_000_000, true},
		{"Zero", 0, false},
		{"Negative", -10, false},
		{"TooLarge", 1_000_000.01, false},
		{"TooManyDecimals", 10.123, false},
		{"TwoDecimals", 10.12, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, msg := Amount(tt.amount)
			if valid != tt.valid {
				t.Errorf("Amount(%v) = %v (%s), want %v", tt.amount, valid, msg, tt.valid)
			}
		})
	}
}

func TestDateRange(t *testing.T) {
	now := time.Now().UTC()

	t.Run("Valid", func(t *testing.T) {
		if ok, msg := DateRange(now.AddDate(0, -1, 0), now.AddDate(0, 0, -1)); !ok {
			t.Errorf("valid range rejected: %s", msg)
		}
	})

	t.Run("StartAfterEnd", func(t *testing.T) {
		if ok, _ := DateRange(now.AddDate(0, 0, -1), now.AddDate(0, 0, -2)); ok {
			t.Error("reversed range accepted")
		}
	})

	t.Run("EndInFuture", func(t *testing.T) {
		if ok, _ := DateRange(now.AddDate(0, 0, -1), now.AddDate(0, 0, 2)); ok {
			t.Error("future end date accepted")
		}
	})

	t.Run("StartTooOld", func(t *testing.T) {
		if ok, _ := DateRange(now.AddDate(-11, 0, 0), now.AddDate(0, 0, -1)); ok {
			t.Error("11-year-old start date accepted")
		}
	})
}

func TestAll(t *testing.T) {
	t.Run("CleanData", func(t *testing.T) {
		data := map[string]any{
			"patientId":      "PAT-123456",
			"providerId":     "1234567893",
			"totalAmount":    250.00,
			"diagnosisCodes": []string{"A00.1", "Z99.89"},
			"procedureCodes": []string{"99213"},
		}

		if errs := All(data); len(errs) != 0 {
			t.Errorf("expected no errors, got %v", errs)
		}
	})

	t.Run("MultipleErrors", func(t *testing.T) {
		data := map[string]any{
			"patientId":      "AB",
			"providerId":     "1234567890",
			"totalAmount":    -5.0,
			"diagnosisCodes": []string{"BAD"},
			"procedureCodes": []string{"1234"},
		}

		errs := All(data)
		if len(errs) != 5 {
			t.Fatalf("expected 5 errors, got %d: %v", len(errs), errs)
		}

		prefixes := []string{"Patient ID:", "Provider NPI:", "Amount:", "Diagnosis code 'BAD':", "Procedure code '1234':"}
		for i, prefix := range prefixes {
			if !strings.HasPrefix(errs[i], prefix) {
				t.Errorf("errs[%d] = %q, want prefix %q", i, errs[i], prefix)
			}
		}
	})

	t.Run("AbsentFieldsSkipped", func(t *testing.T) {
		if errs := All(map[string]any{}); len(errs) != 0 {
			t.Errorf("absent fields should be skipped, got %v", errs)
		}
	})

	t.Run("JSONDecodedArrays", func(t *testing.T) {
		data := map[string]any{
			"diagnosisCodes": []any{"A00", "BAD"},
		}

		errs := All(data)
		if len(errs) != 1 {
			t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
		}
	})
}
