package booking

import (
	"strings"
	"time"
)

// Payment is the escrow record of a booking. Amounts are in minor currency units.
type Payment struct {
	Amount             int64      `json:"amount"`
	PlatformFee        int64      `json:"platform_fee"`
	CleanerPayout      int64      `json:"cleaner_payout"`
	Currency           string     `json:"currency"`
	ProviderPaymentID  string     `json:"provider_payment_id,omitempty"`
	ProviderTransferID string     `json:"provider_transfer_id,omitempty"`
	IsPaid             bool       `json:"is_paid"`
	PaidAt             *time.Time `json:"paid_at,omitempty"`
	IsPayoutSent       bool       `json:"is_payout_sent"`
	PayoutSentAt       *time.Time `json:"payout_sent_at,omitempty"`
	RefundID           string     `json:"refund_id,omitempty"`
}

// PayoutGate is the evaluation of the five payout release conditions at one instant.
type PayoutGate struct {
	StatusCompleted     bool `json:"status_completed"`
	ReviewPeriodElapsed bool `json:"review_period_elapsed"`
	PaymentCaptured     bool `json:"payment_captured"`
	NotDisputed         bool `json:"not_disputed"`
	PayoutNotSent       bool `json:"payout_not_sent"`
}

// Eligible is true only when all five conditions hold.
func (g PayoutGate) Eligible() bool {
	return g.StatusCompleted && g.ReviewPeriodElapsed && g.PaymentCaptured && g.NotDisputed && g.PayoutNotSent
}

// FailedConditions names every condition that does not hold.
func (g PayoutGate) FailedConditions() []string {
	var failed []string
	if !g.StatusCompleted {
		failed = append(failed, "status is not completed")
	}
	if !g.ReviewPeriodElapsed {
		failed = append(failed, "host review period has not elapsed")
	}
	if !g.PaymentCaptured {
		failed = append(failed, "payment has not been captured")
	}
	if !g.NotDisputed {
		failed = append(failed, "booking is disputed")
	}
	if !g.PayoutNotSent {
		failed = append(failed, "payout already sent")
	}
	return failed
}

// Reason joins the failed conditions into one message.
func (g PayoutGate) Reason() string {
	return strings.Join(g.FailedConditions(), "; ")
}
