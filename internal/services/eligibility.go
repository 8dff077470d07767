package services

import (
	"time"
)

// EligibilityResult is the outcome of evaluating a return request
// against policy. All flags are recorded on the return record as a
// snapshot.
type EligibilityResult struct {
	IsEligible           bool
	Reason               string
	IsWithinReturnWindow bool
	IsProductReturnable  bool
	ReturnWindowDays     int
	Deadline             *time.Time
}

// EligibilityInput carries everything the evaluator needs. Callers
// fetch the catalog flag beforehand; a failed lookup is reported via
// ProductLookupFailed and treated as not returnable.
type EligibilityInput struct {
	DeliveredAt         *time.Time
	ReturnWindowDays    int
	ProductReturnable   bool
	ProductLookupFailed bool
	Now                 time.Time
}

// EvaluateEligibility decides whether a return may proceed. It is pure:
// no I/O, no clock reads. The window runs from delivery for
// ReturnWindowDays; expiry takes precedence over returnability in the
// reason text.
func EvaluateEligibility(in EligibilityInput) EligibilityResult {
	windowDays := in.ReturnWindowDays
	if windowDays <= 0 {
		windowDays = 7
	}

	result := EligibilityResult{
		ReturnWindowDays:    windowDays,
		IsProductReturnable: in.ProductReturnable && !in.ProductLookupFailed,
	}

	if in.DeliveredAt == nil {
		result.Reason = "Delivery date not found"
		return result
	}

	deadline := in.DeliveredAt.AddDate(0, 0, windowDays)
	result.Deadline = &deadline
	result.IsWithinReturnWindow = !in.Now.After(deadline)

	switch {
	case !result.IsWithinReturnWindow:
		result.Reason = "Return window has expired"
	case !result.IsProductReturnable:
		result.Reason = "Product is not returnable"
	default:
		result.IsEligible = true
		result.Reason = "Return request is eligible"
	}
	return result
}
