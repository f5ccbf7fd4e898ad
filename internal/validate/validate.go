// Package validate provides stateless field-format validators for claim data.
// Each validator returns (ok, message); a false result never aborts anything,
// callers decide whether to block submission.
package validate

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

var (
	patientIDPattern = regexp.MustCompile(`^[A-Z0-9\-]+$`)
	npiDigitsPattern = regexp.MustCompile(`^\d{10}$`)
	npiStripPattern  = regexp.MustCompile(`[\s\-]`)
	diagnosisPattern = regexp.MustCompile(`^[A-Z]\d{2}(\.\d{1,4})?$`)
	procedurePattern = regexp.MustCompile(`^\d{5}$`)
)

// Amount bounds for input validation. These are looser than the adjudication
// thresholds; a claim can pass input validation and still be rejected.
const (
	MinAmount = 0.01
	MaxAmount = 1_000_000.0
)

// MaxDateAgeYears bounds how far in the past a date range may start.
const MaxDateAgeYears = 10

// PatientID checks the patient identifier format: 6-20 characters,
// letters, digits, and hyphens only (case-insensitive).
func PatientID(patientID string) (bool, string) {
	if strings.TrimSpace(patientID) == "" {
		return false, "Patient ID cannot be empty"
	}

	if len(patientID) < 6 || len(patientID) > 20 {
		return false, "Patient ID must be between 6 and 20 characters"
	}

	if !patientIDPattern.MatchString(strings.ToUpper(patientID)) {
		return false, "Patient ID must contain only letters, numbers, and hyphens"
	}

	return true, ""
}

// npiIssuerPrefix is the card-issuer prefix assigned to NPIs. The check
// digit is computed over the prefixed 15-digit number.
const npiIssuerPrefix = "80840"

// ProviderNPI checks a National Provider Identifier: exactly 10 digits after
// stripping spaces and hyphens, and a valid Luhn mod-10 checksum over the
// "80840"-prefixed number. An empty NPI is valid; the field is optional.
func ProviderNPI(npi string) (bool, string) {
	if npi == "" {
		return true, ""
	}

	cleaned := npiStripPattern.ReplaceAllString(npi, "")

	if !npiDigitsPattern.MatchString(cleaned) {
		return false, "NPI must be exactly 10 digits"
	}

	if !luhnCheck(npiIssuerPrefix + cleaned) {
		return false, "Invalid NPI checksum"
	}

	return true, ""
}

// luhnCheck validates a digit string with the Luhn mod-10 algorithm:
// from the rightmost digit, every second digit moving left is doubled,
// doubles above 9 contribute their digit sum.
func luhnCheck(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// DiagnosisCode checks an ICD-10 style diagnosis code: one letter, two
// digits, optional decimal suffix of 1-4 digits. Case-insensitive.
func DiagnosisCode(code string) (bool, string) {
	if code == "" {
		return false, "Diagnosis code cannot be empty"
	}

	if !diagnosisPattern.MatchString(strings.ToUpper(code)) {
		return false, "Invalid ICD-10 code format (e.g., A00, A00.1, A00.12)"
	}

	return true, ""
}

// ProcedureCode checks a CPT style procedure code: exactly 5 digits.
func ProcedureCode(code string) (bool, string) {
	if code == "" {
		return false, "Procedure code cannot be empty"
	}

	if !procedurePattern.MatchString(code) {
		return false, "CPT code must be exactly 5 digits"
	}

	return true, ""
}

// Amount checks a monetary amount: within [MinAmount, MaxAmount] and at
// most 2 decimal places.
func Amount(amount float64) (bool, string) {
	if amount < MinAmount {
		return false, fmt.Sprintf("Amount must be at least $%.2f", MinAmount)
	}

	if amount > MaxAmount {
		return false, fmt.Sprintf("Amount cannot exceed $%.0f", MaxAmount)
	}

	if math.Round(amount*100)/100 != amount {
		return false, "Amount can have at most 2 decimal places"
	}

	return true, ""
}

// DateRange checks that start <= end, end is not in the future, and start
// is not more than MaxDateAgeYears in the past.
func DateRange(start, end time.Time) (bool, string) {
	if start.After(end) {
		return false, "Start date must be before end date"
	}

	now := time.Now().UTC()
	if start.Before(now.AddDate(-MaxDateAgeYears, 0, 0)) {
		return false, "Date is too far in the past"
	}

	if end.After(now) {
		return false, "Date cannot be in the future"
	}

	return true, ""
}

// All runs every applicable validator over a loosely-typed field map and
// returns the accumulated error strings, each prefixed with the field it
// belongs to. Fields absent from the map are skipped, not reported.
//
// This is the validation entry point for extracted document fields, which
// arrive as map[string]any rather than a typed claim.
func All(data map[string]any) []string {
	var errs []string

	if v, ok := data["patientId"]; ok {
		if s, ok := v.(string); ok {
			if valid, msg := PatientID(s); !valid {
				errs = append(errs, "Patient ID: "+msg)
			}
		}
	}

	if v, ok := data["providerId"]; ok {
		if s, ok := v.(string); ok && s != "" {
			if valid, msg := ProviderNPI(s); !valid {
				errs = append(errs, "Provider NPI: "+msg)
			}
		}
	}

	if v, ok := data["totalAmount"]; ok {
		if f, ok := toFloat(v); ok {
			if valid, msg := Amount(f); !valid {
				errs = append(errs, "Amount: "+msg)
			}
		}
	}

	if v, ok := data["diagnosisCodes"]; ok {
		for _, code := range toStrings(v) {
			if valid, msg := DiagnosisCode(code); !valid {
				errs = append(errs, fmt.Sprintf("Diagnosis code '%s': %s", code, msg))
			}
		}
	}

	if v, ok := data["procedureCodes"]; ok {
		for _, code := range toStrings(v) {
			if valid, msg := ProcedureCode(code); !valid {
				errs = append(errs, fmt.Sprintf("Procedure code '%s': %s", code, msg))
			}
		}
	}

	return errs
}

// toFloat coerces JSON-decoded numeric values.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// toStrings coerces a decoded JSON array into a string slice.
func toStrings(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
