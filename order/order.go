package order

import (
	"time"

	"github.com/promptdeck/billing/plan"
)

// Order describes a single purchase attempt for a membership plan
type Order struct {
	ID               string            `json:"id" gorm:"primaryKey"`
	UserID           string            `json:"userId" gorm:"index"`
	PlanID           string            `json:"planId"`
	PlanTier         plan.Tier         `json:"planTier"`
	BillingCycle     plan.BillingCycle `json:"billingCycle"`
	Amount           int64             `json:"amount"` // minor currency unit
	Currency         string            `json:"currency"`
	Status           Status            `json:"status"`
	PaymentStatus    PaymentStatus     `json:"paymentStatus"`
	PaymentMethod    string            `json:"paymentMethod,omitempty"`
	Gateway          string            `json:"gateway,omitempty"`          // which provider handles the payment
	GatewayOrderID   string            `json:"gatewayOrderId,omitempty"`   // provider-assigned order reference
	GatewayPaymentID string            `json:"gatewayPaymentId,omitempty"` // provider-assigned payment reference
	FailureReason    string            `json:"failureReason,omitempty"`
	PaidAt           *time.Time        `json:"paidAt,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// Terminal reports whether the order reached a state that forbids further transitions
func (o *Order) Terminal() bool {
	switch {
	case o.Status == StatusConfirmed && o.PaymentStatus == PaymentSucceeded:
		return true
	case o.Status == StatusCancelled && o.PaymentStatus == PaymentFailed:
		return true
	case o.Status == StatusRefunded || o.PaymentStatus == PaymentRefunded:
		return true
	default:
		return false
	}
}
