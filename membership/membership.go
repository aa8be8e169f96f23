package membership

import (
	"time"

	"github.com/promptdeck/billing/plan"
)

// Membership tracks a user's entitlements: feature flags, usage limits and
// consumption counters. Exactly one membership exists per user; the record is
// never hard-deleted.
type Membership struct {
	ID                string            `json:"id" gorm:"primaryKey"`
	UserID            string            `json:"userId" gorm:"uniqueIndex"`
	PlanID            string            `json:"planId"`
	PlanTier          plan.Tier         `json:"planTier"`
	Status            Status            `json:"status"`
	PeriodStart       time.Time         `json:"periodStart"`
	PeriodEnd         time.Time         `json:"periodEnd"`
	CancelAtPeriodEnd bool              `json:"cancelAtPeriodEnd"`
	BillingCycle      plan.BillingCycle `json:"billingCycle,omitempty"`
	Features          plan.FeatureMap   `json:"features"`
	UsageLimits       plan.QuotaMap     `json:"usageLimits"`
	CurrentUsage      plan.QuotaMap     `json:"currentUsage"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// Active reports whether the membership currently grants entitlements
func (m *Membership) Active() bool {
	return m.Status == StatusActive || m.Status == StatusTrial
}

// FeatureAccessible evaluates whether the feature may be used right now.
// The feature flag must be explicitly enabled. Without a configured limit
// access is unconditional; with one, consumption must be below it.
// plan.Unlimited is honored as no cap.
func (m *Membership) FeatureAccessible(feature string) bool {
	if m == nil || !m.Active() {
		return false
	}
	if !m.Features[feature] {
		return false
	}
	limit, ok := m.UsageLimits[feature]
	if !ok {
		return true
	}
	if limit == plan.Unlimited {
		return true
	}
	return m.CurrentUsage[feature] < limit
}

// Stats is the read-only projection of a membership's entitlement state
type Stats struct {
	PlanTier     plan.Tier       `json:"planTier"`
	Status       Status          `json:"status"`
	Features     plan.FeatureMap `json:"features"`
	UsageLimits  plan.QuotaMap   `json:"usageLimits"`
	CurrentUsage plan.QuotaMap   `json:"currentUsage"`
	PeriodStart  time.Time       `json:"periodStart"`
	PeriodEnd    time.Time       `json:"periodEnd"`
}

// UsageStats projects the membership into its read-only view
func (m *Membership) UsageStats() *Stats {
	return &Stats{
		PlanTier:     m.PlanTier,
		Status:       m.Status,
		Features:     m.Features.Clone(),
		UsageLimits:  m.UsageLimits.Clone(),
		CurrentUsage: m.CurrentUsage.Clone(),
		PeriodStart:  m.PeriodStart,
		PeriodEnd:    m.PeriodEnd,
	}
}
