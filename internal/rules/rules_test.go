package rules

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/openclaims/gavel/internal/domain"
	"github.com/openclaims/gavel/internal/ledger"
)

func testClaim() *domain.Claim {
	return &domain.Claim{
		ID:           "CLM-TEST00000001",
		Type:         domain.TypeMedical,
		Status:       domain.StatusSubmitted,
		PatientName:  "Jane Doe",
		PatientID:    "PAT-123456",
		ProviderName: "City Medical Center",
		ProviderID:   "1234567893",
		ServiceDate:  time.Now().UTC().AddDate(0, 0, -30),
		TotalAmount:  500.00,
		Description:  "Routine office visit with lab work",
		DiagnosisCodes: []string{
			"A00.1",
		},
		ProcedureCodes: []string{
			"99213",
		},
	}
}

func newTestRules() *Rules {
	return New(domain.DefaultThresholds(), ledger.NewMemoryLedger(), nil)
}

func TestValidateBasicInfo(t *testing.T) {
	r := newTestRules()

	t.Run("Complete", func(t *testing.T) {
		if !r.ValidateBasicInfo(testClaim()) {
			t.Error("complete claim failed basic validation")
		}
	})

	t.Run("MissingPatientName", func(t *testing.T) {
		c := testClaim()
		c.PatientName = ""
		if r.ValidateBasicInfo(c) {
			t.Error("claim without patient name passed")
		}
	})

	t.Run("MissingPatientID", func(t *testing.T) {
		c := testClaim()
		c.PatientID = ""
		if r.ValidateBasicInfo(c) {
			t.Error("claim without patient ID passed")
		}
	})

	t.Run("MissingServiceDate", func(t *testing.T) {
		c := testClaim()
		c.ServiceDate = time.Time{}
		if r.ValidateBasicInfo(c) {
			t.Error("claim without service date passed")
		}
	})

	t.Run("MissingProviderName", func(t *testing.T) {
		c := testClaim()
		c.ProviderName = ""
		if r.ValidateBasicInfo(c) {
			t.Error("claim without provider name passed")
		}
	})

	t.Run("ZeroAmount", func(t *testing.T) {
		c := testClaim()
		c.TotalAmount = 0
		if r.ValidateBasicInfo(c) {
			t.Error("claim with zero amount passed")
		}
	})

	t.Run("ShortPatientName", func(t *testing.T) {
		c := testClaim()
		c.PatientName = " J "
		if r.ValidateBasicInfo(c) {
			t.Error("one-character patient name passed")
		}
	})
}

func TestCheckAmountLimit(t *testing.T) {
	r := newTestRules()

	tests := []struct {
		name   string
		amount float64
		ok     bool
	}{
		{"Typical", 500, true},
		{"AtLimit", 100_000, true},
		{"OverLimit", 100_000.01, false},
		{"Zero", 0, false},
		{"Negative", -50, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClaim()
			c.TotalAmount = tt.amount
			if got := r.CheckAmountLimit(c); got != tt.ok {
				t.Errorf("CheckAmountLimit(%v) = %v, want %v", tt.amount, got, tt.ok)
			}
		})
	}
}

func TestCheckServiceDate(t *testing.T) {
	r := newTestRules()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	r.SetClock(func() time.Time { return now })

	tests := []struct {
		name string
		date time.Time
		ok   bool
	}{
		{"Recent", now.AddDate(0, 0, -30), true},
		{"Today", now, true},
		{"Future", now.AddDate(0, 0, 1), false},
		{"JustInsideWindow", now.AddDate(0, 0, -364), true},
		{"TooOld", now.AddDate(0, 0, -366), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClaim()
			c.ServiceDate = tt.date
			if got := r.CheckServiceDate(c); got != tt.ok {
				t.Errorf("CheckServiceDate(%v) = %v, want %v", tt.date, got, tt.ok)
			}
		})
	}
}

func TestCheckDuplicate(t *testing.T) {
	ctx := context.Background()
	r := newTestRules()

	t.Run("FirstThenSecond", func(t *testing.T) {
		c := testClaim()
		if r.CheckDuplicate(ctx, c) {
			t.Error("first occurrence flagged as duplicate")
		}
		// Ledger non-idempotence: same claim checked again is a duplicate.
		if !r.CheckDuplicate(ctx, c) {
			t.Error("second occurrence not flagged as duplicate")
		}
	})

	t.Run("DifferentPatient", func(t *testing.T) {
		a := testClaim()
		b := testClaim()
		b.PatientID = "PAT-999999"
		_ = r.CheckDuplicate(ctx, a)
		if r.CheckDuplicate(ctx, b) {
			t.Error("different patient flagged as duplicate")
		}
	})

	t.Run("DifferentAmount", func(t *testing.T) {
		a := testClaim()
		a.PatientID = "PAT-AMT001"
		b := testClaim()
		b.PatientID = "PAT-AMT001"
		b.TotalAmount = 750.00
		_ = r.CheckDuplicate(ctx, a)
		if r.CheckDuplicate(ctx, b) {
			t.Error("different amount flagged as duplicate")
		}
	})

	t.Run("SameCalendarDateDifferentTime", func(t *testing.T) {
		day := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
		a := testClaim()
		a.PatientID = "PAT-DAY001"
		a.ServiceDate = day.Add(9 * time.Hour)
		b := testClaim()
		b.PatientID = "PAT-DAY001"
		b.ServiceDate = day.Add(17 * time.Hour)
		_ = r.CheckDuplicate(ctx, a)
		// Fingerprint uses the calendar date only
		if !r.CheckDuplicate(ctx, b) {
			t.Error("same-day claim with different timestamp not flagged")
		}
	})
}

func TestIsDuplicateOf(t *testing.T) {
	ctx := context.Background()
	r := newTestRules()
	c := testClaim()

	// Peek must not record
	if r.IsDuplicateOf(ctx, c) {
		t.Error("unseen claim reported as duplicate")
	}
	if r.IsDuplicateOf(ctx, c) {
		t.Error("peek recorded the fingerprint")
	}

	_ = r.CheckDuplicate(ctx, c)
	if !r.IsDuplicateOf(ctx, c) {
		t.Error("recorded claim not reported as duplicate")
	}
}

func TestCheckDocumentation(t *testing.T) {
	r := newTestRules()

	tests := []struct {
		name  string
		setup func(*domain.Claim)
		want  float64
	}{
		{
			"Complete",
			func(c *domain.Claim) {},
			1.0, // 1.0 + 1.5 + 1.5 + 0.5 + 0.5 = 5.0 / 5.0
		},
		{
			"BareLowValue",
			func(c *domain.Claim) {
				c.Description = ""
				c.DiagnosisCodes = nil
				c.ProcedureCodes = nil
				c.ProviderID = ""
			},
			0.1, // only the unconditional low-value half point
		},
		{
			"ShortDescription",
			func(c *domain.Claim) {
				c.Description = "short"
			},
			0.8, // loses the 1.0 description point
		},
		{
			"HighValueWithBothCodes",
			func(c *domain.Claim) {
				c.TotalAmount = 8000
			},
			1.0, // high-value claims with both code types keep the half point
		},
		{
			"HighValueMissingProcedureCodes",
			func(c *domain.Claim) {
				c.TotalAmount = 8000
				c.ProcedureCodes = nil
			},
			0.6, // loses 1.5 for codes and 0.5 for the conditional amount term
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClaim()
			tt.setup(c)
			got := r.CheckDocumentation(c)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CheckDocumentation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequiresManualReview(t *testing.T) {
	ctx := context.Background()

	t.Run("HighAmount", func(t *testing.T) {
		r := newTestRules()
		c := testClaim()
		c.TotalAmount = 1500
		if !r.RequiresManualReview(ctx, c) {
			t.Error("above-threshold amount should require review")
		}
	})

	t.Run("LowDocumentation", func(t *testing.T) {
		r := newTestRules()
		c := testClaim()
		c.Description = ""
		c.DiagnosisCodes = nil
		c.ProcedureCodes = nil
		c.ProviderID = ""
		if !r.RequiresManualReview(ctx, c) {
			t.Error("poorly documented claim should require review")
		}
	})

	t.Run("Duplicate", func(t *testing.T) {
		r := newTestRules()
		c := testClaim()
		_ = r.CheckDuplicate(ctx, c)
		if !r.RequiresManualReview(ctx, c) {
			t.Error("duplicate claim should require review")
		}
	})

	t.Run("CleanClaim", func(t *testing.T) {
		r := newTestRules()
		c := testClaim()
		if r.RequiresManualReview(ctx, c) {
			t.Error("clean low-value claim should not require review")
		}
	})
}
