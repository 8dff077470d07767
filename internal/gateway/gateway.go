// Package gateway integrates payment providers used to push refunds
// back to the customer's original payment method.
package gateway

import "context"

// RefundRequest describes a refund against a captured payment.
type RefundRequest struct {
	// PaymentID is the gateway payment the refund is issued against.
	PaymentID string
	// Amount is the refund amount in rupees.
	Amount float64
	// Receipt is an idempotency reference recorded with the gateway.
	Receipt string
	// Notes are free-form key/values attached to the gateway refund.
	Notes map[string]string
}

// RefundResult is the gateway's answer to a refund attempt.
type RefundResult struct {
	Success       bool
	TransactionID string
	Message       string
}

// RefundGateway processes refunds to the original payment method.
type RefundGateway interface {
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}
