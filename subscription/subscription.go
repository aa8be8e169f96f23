package subscription

import (
	"time"

	"github.com/promptdeck/billing/plan"
)

// Subscription tracks the recurring-billing state of a user. A user has at
// most one ACTIVE subscription; historical records are kept when the billing
// relationship is recreated.
type Subscription struct {
	ID                    string            `json:"id" gorm:"primaryKey"`
	UserID                string            `json:"userId" gorm:"index"`
	PlanID                string            `json:"planId"`
	PlanTier              plan.Tier         `json:"planTier"`
	Status                Status            `json:"status"`
	BillingCycle          plan.BillingCycle `json:"billingCycle"`
	Amount                int64             `json:"amount"` // minor currency unit
	Currency              string            `json:"currency"`
	PeriodStart           time.Time         `json:"periodStart"`
	PeriodEnd             time.Time         `json:"periodEnd"`
	CancelAtPeriodEnd     bool              `json:"cancelAtPeriodEnd"`
	CanceledAt            *time.Time        `json:"canceledAt,omitempty"`
	Gateway               string            `json:"gateway,omitempty"`               // provider collecting the recurring payment
	GatewaySubscriptionID string            `json:"gatewaySubscriptionId,omitempty"` // provider-assigned subscription reference
	CreatedAt             time.Time         `json:"createdAt"`
	UpdatedAt             time.Time         `json:"updatedAt"`
}
