// Package extraction maps the output of the external document-extraction
// service into claim records. The extractor itself (OCR, text inference) is
// an external collaborator; this package only consumes its loosely-typed
// field map, and every candidate value goes through the same validators as
// manually entered data.
package extraction

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/openclaims/gavel/internal/domain"
	"github.com/openclaims/gavel/internal/validate"
)

var (
	diagnosisCodePattern = regexp.MustCompile(`\b[A-Z]\d{2}(\.\d{1,4})?\b`)
	procedureCodePattern = regexp.MustCompile(`\b\d{5}\b`)
)

// dateFormats are tried in order when parsing extracted date strings.
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02 15:04:05",
}

// MapFields converts an extraction result into a claim. Field-level
// validation failures are returned as messages, not errors; the claim is
// still built so the caller can present it for correction. A hard error is
// returned only when the result is unusable: confidence below the intake
// floor, or no recognizable fields.
func MapFields(result *domain.ExtractionResult, now time.Time) (*domain.Claim, []string, error) {
	if result == nil || len(result.Fields) == 0 {
		return nil, nil, fmt.Errorf("%w: extraction result has no fields", domain.ErrInvalidInput)
	}

	if result.Confidence < domain.MinExtractionConfidence {
		return nil, nil, fmt.Errorf("%w: extraction confidence %.2f below intake floor %.2f",
			domain.ErrInvalidInput, result.Confidence, domain.MinExtractionConfidence)
	}

	claim := &domain.Claim{
		Type:   claimType(stringField(result.Fields, "claimType", "claim_type", "type")),
		Status: domain.StatusDraft,

		PatientName:  stringField(result.Fields, "patientName", "patient_name"),
		PatientID:    stringField(result.Fields, "patientId", "patient_id"),
		ProviderName: stringField(result.Fields, "providerName", "provider_name"),
		ProviderID:   stringField(result.Fields, "providerId", "provider_id", "npi"),
		Description:  stringField(result.Fields, "description", "notes"),

		TotalAmount:    floatField(result.Fields, "totalAmount", "total_amount", "amount"),
		DiagnosisCodes: stringsField(result.Fields, "diagnosisCodes", "diagnosis_codes"),
		ProcedureCodes: stringsField(result.Fields, "procedureCodes", "procedure_codes"),
	}

	if raw := stringField(result.Fields, "serviceDate", "service_date"); raw != "" {
		if t, err := ParseDate(raw); err == nil {
			claim.ServiceDate = t
		}
	}
	if raw := stringField(result.Fields, "dateOfBirth", "date_of_birth", "dob"); raw != "" {
		if t, err := ParseDate(raw); err == nil {
			claim.DateOfBirth = t
		}
	}

	claim.Normalize(now)

	// Same validation path as manual entry
	errs := validate.All(map[string]any{
		"patientId":      claim.PatientID,
		"providerId":     claim.ProviderID,
		"totalAmount":    claim.TotalAmount,
		"diagnosisCodes": claim.DiagnosisCodes,
		"procedureCodes": claim.ProcedureCodes,
	})

	for _, missing := range result.MissingFields {
		errs = append(errs, fmt.Sprintf("Missing field: %s", missing))
	}

	return claim, errs, nil
}

// ParseDate parses an extracted date string, trying the common formats
// documents use.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, format := range dateFormats {
		if t, err := time.Parse(format, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized date format %q", domain.ErrInvalidInput, raw)
}

// ExtractCodes pulls diagnosis and procedure code candidates out of free
// text. Candidates still go through the validators; the patterns here only
// narrow the search.
func ExtractCodes(text string) (diagnosis []string, procedure []string) {
	upper := strings.ToUpper(text)

	seen := make(map[string]struct{})
	for _, m := range diagnosisCodePattern.FindAllString(upper, -1) {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		if ok, _ := validate.DiagnosisCode(m); ok {
			diagnosis = append(diagnosis, m)
		}
	}

	seen = make(map[string]struct{})
	for _, m := range procedureCodePattern.FindAllString(text, -1) {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		if ok, _ := validate.ProcedureCode(m); ok {
			procedure = append(procedure, m)
		}
	}

	return diagnosis, procedure
}

func claimType(raw string) domain.ClaimType {
	t := domain.ClaimType(strings.ToLower(strings.TrimSpace(raw)))
	if domain.ValidClaimType(t) {
		return t
	}
	return domain.TypeOther
}

func stringField(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := fields[key]; ok {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func floatField(fields map[string]any, keys ...string) float64 {
	for _, key := range keys {
		if v, ok := fields[key]; ok {
			switch n := v.(type) {
			case float64:
				return n
			case float32:
				return float64(n)
			case int:
				return float64(n)
			case int64:
				return float64(n)
			}
		}
	}
	return 0
}

func stringsField(fields map[string]any, keys ...string) []string {
	for _, key := range keys {
		v, ok := fields[key]
		if !ok {
			continue
		}
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
		case string:
			// Some extractors emit comma-separated lists
			parts := strings.Split(s, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			return out
		}
	}
	return nil
}
