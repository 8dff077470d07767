package gateway

import (
	"context"
	"fmt"
	"math"

	razorpay "github.com/razorpay/razorpay-go"
	"go.uber.org/zap"
)

// paymentRefunder is the slice of the Razorpay SDK the gateway calls.
// *resources.Payment satisfies it.
type paymentRefunder interface {
	Refund(paymentID string, amount int, data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayGateway refunds captured Razorpay payments.
type RazorpayGateway struct {
	payments paymentRefunder
	logger   *zap.Logger
}

// NewRazorpayGateway creates a Razorpay-backed refund gateway.
func NewRazorpayGateway(key, secret string, logger *zap.Logger) *RazorpayGateway {
	return &RazorpayGateway{
		payments: razorpay.NewClient(key, secret).Payment,
		logger:   logger,
	}
}

// Refund issues a full or partial refund against the payment. Razorpay
// expects amounts in paise. Transport and API errors are returned to the
// caller so the refund can be retried; RefundResult is only produced for
// a completed gateway exchange.
func (g *RazorpayGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	amountPaise := int(math.Round(req.Amount * 100))

	data := map[string]interface{}{
		"speed":   "normal",
		"receipt": req.Receipt,
	}
	if len(req.Notes) > 0 {
		notes := make(map[string]interface{}, len(req.Notes))
		for k, v := range req.Notes {
			notes[k] = v
		}
		data["notes"] = notes
	}

	refund, err := g.payments.Refund(req.PaymentID, amountPaise, data, nil)
	if err != nil {
		g.logger.Error("Razorpay refund failed",
			zap.String("payment_id", req.PaymentID),
			zap.Int("amount_paise", amountPaise),
			zap.Error(err))
		return nil, fmt.Errorf("razorpay refund for payment %s: %w", req.PaymentID, err)
	}

	refundID := fmt.Sprintf("%v", refund["id"])
	g.logger.Info("Razorpay refund processed",
		zap.String("payment_id", req.PaymentID),
		zap.String("refund_id", refundID),
		zap.Int("amount_paise", amountPaise))

	return &RefundResult{
		Success:       true,
		TransactionID: refundID,
		Message:       "refund processed",
	}, nil
}
