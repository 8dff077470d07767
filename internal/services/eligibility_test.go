package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateEligibility(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	daysAgo := func(d int) *time.Time {
		ts := now.AddDate(0, 0, -d)
		return &ts
	}

	tests := []struct {
		name         string
		in           EligibilityInput
		wantEligible bool
		wantReason   string
	}{
		{
			name: "within window and returnable",
			in: EligibilityInput{
				DeliveredAt:       daysAgo(6),
				ReturnWindowDays:  7,
				ProductReturnable: true,
				Now:               now,
			},
			wantEligible: true,
			wantReason:   "Return request is eligible",
		},
		{
			name: "window expired",
			in: EligibilityInput{
				DeliveredAt:       daysAgo(8),
				ReturnWindowDays:  7,
				ProductReturnable: true,
				Now:               now,
			},
			wantEligible: false,
			wantReason:   "Return window has expired",
		},
		{
			name: "delivery on the deadline day still eligible",
			in: EligibilityInput{
				DeliveredAt:       daysAgo(7),
				ReturnWindowDays:  7,
				ProductReturnable: true,
				Now:               now,
			},
			wantEligible: true,
			wantReason:   "Return request is eligible",
		},
		{
			name: "not returnable",
			in: EligibilityInput{
				DeliveredAt:       daysAgo(2),
				ReturnWindowDays:  7,
				ProductReturnable: false,
				Now:               now,
			},
			wantEligible: false,
			wantReason:   "Product is not returnable",
		},
		{
			name: "window expiry takes precedence over returnability",
			in: EligibilityInput{
				DeliveredAt:       daysAgo(30),
				ReturnWindowDays:  7,
				ProductReturnable: false,
				Now:               now,
			},
			wantEligible: false,
			wantReason:   "Return window has expired",
		},
		{
			name: "catalog lookup failure is fail-closed",
			in: EligibilityInput{
				DeliveredAt:         daysAgo(2),
				ReturnWindowDays:    7,
				ProductReturnable:   true,
				ProductLookupFailed: true,
				Now:                 now,
			},
			wantEligible: false,
			wantReason:   "Product is not returnable",
		},
		{
			name: "no delivery date",
			in: EligibilityInput{
				ReturnWindowDays:  7,
				ProductReturnable: true,
				Now:               now,
			},
			wantEligible: false,
			wantReason:   "Delivery date not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateEligibility(tt.in)
			assert.Equal(t, tt.wantEligible, got.IsEligible)
			assert.Equal(t, tt.wantReason, got.Reason)
		})
	}
}

func TestEvaluateEligibilityDefaultsWindow(t *testing.T) {
	now := time.Now()
	delivered := now.AddDate(0, 0, -6)

	got := EvaluateEligibility(EligibilityInput{
		DeliveredAt:       &delivered,
		ReturnWindowDays:  0,
		ProductReturnable: true,
		Now:               now,
	})

	assert.Equal(t, 7, got.ReturnWindowDays)
	assert.True(t, got.IsEligible)
}
