package plan

import (
	"fmt"
	"time"
)

// Tier is the ordered membership level of a Plan
type Tier string

// Defining valid Tiers, lowest to highest
const (
	TierFree       Tier = "FREE"
	TierBasic      Tier = "BASIC"
	TierPremium    Tier = "PREMIUM"
	TierEnterprise Tier = "ENTERPRISE"
)

var tierRanks = map[Tier]int{
	TierFree:       0,
	TierBasic:      1,
	TierPremium:    2,
	TierEnterprise: 3,
}

// Rank returns the position of the Tier in the strict total order
// FREE < BASIC < PREMIUM < ENTERPRISE. Unknown tiers rank below FREE.
func (t Tier) Rank() int {
	rank, ok := tierRanks[t]
	if !ok {
		return -1
	}
	return rank
}

// ParseTier validates a tier string coming from the API boundary
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if _, ok := tierRanks[t]; !ok {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}

// BillingCycle is the recurrence period for a subscription
type BillingCycle string

// Defining valid BillingCycles
const (
	CycleMonthly   BillingCycle = "MONTHLY"
	CycleQuarterly BillingCycle = "QUARTERLY"
	CycleYearly    BillingCycle = "YEARLY"
)

// ParseBillingCycle validates a billing cycle string coming from the API boundary
func ParseBillingCycle(s string) (BillingCycle, error) {
	switch c := BillingCycle(s); c {
	case CycleMonthly, CycleQuarterly, CycleYearly:
		return c, nil
	default:
		return "", fmt.Errorf("unknown billing cycle %q", s)
	}
}

// PeriodEnd computes the end of a billing period starting at the given time
func (c BillingCycle) PeriodEnd(start time.Time) time.Time {
	switch c {
	case CycleQuarterly:
		return start.AddDate(0, 3, 0)
	case CycleYearly:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}
