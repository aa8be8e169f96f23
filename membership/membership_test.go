package membership

import (
	"errors"
	"testing"

	"github.com/promptdeck/billing/plan"

	"github.com/stretchr/testify/assert"
)

func premiumMembership() *Membership {
	return &Membership{
		ID:       "m-1",
		UserID:   "user-1",
		PlanTier: plan.TierPremium,
		Status:   StatusActive,
		Features: plan.FeatureMap{
			plan.FeaturePromptStorage: true,
			plan.FeatureAPIAccess:     true,
			plan.FeatureSSO:           false,
		},
		UsageLimits: plan.QuotaMap{
			plan.FeaturePromptStorage: 5000,
			plan.FeatureAPIAccess:     plan.Unlimited,
		},
		CurrentUsage: plan.QuotaMap{
			plan.FeaturePromptStorage: 4999,
		},
	}
}

func TestFeatureAccessible(t *testing.T) {
	m := premiumMembership()

	assert.True(t, m.FeatureAccessible(plan.FeaturePromptStorage), "under the limit")

	m.CurrentUsage[plan.FeaturePromptStorage] = 5000
	assert.False(t, m.FeatureAccessible(plan.FeaturePromptStorage), "at the limit")

	assert.False(t, m.FeatureAccessible(plan.FeatureSSO), "flag explicitly false")
	assert.False(t, m.FeatureAccessible("nonexistent"), "flag absent")
}

func TestFeatureAccessibleUnlimited(t *testing.T) {
	m := premiumMembership()
	m.CurrentUsage[plan.FeatureAPIAccess] = 1 << 40

	assert.True(t, m.FeatureAccessible(plan.FeatureAPIAccess), "-1 limit means no cap regardless of usage")
}

func TestFeatureAccessibleNoLimitConfigured(t *testing.T) {
	m := premiumMembership()
	m.Features["team_sharing"] = true

	assert.True(t, m.FeatureAccessible("team_sharing"), "enabled flag without a limit is unconditional")
}

func TestFeatureAccessibleInactive(t *testing.T) {
	m := premiumMembership()

	m.Status = StatusCanceled
	assert.False(t, m.FeatureAccessible(plan.FeaturePromptStorage))

	m.Status = StatusExpired
	assert.False(t, m.FeatureAccessible(plan.FeaturePromptStorage))

	m.Status = StatusTrial
	assert.True(t, m.FeatureAccessible(plan.FeaturePromptStorage), "trial grants entitlements")

	var none *Membership
	assert.False(t, none.FeatureAccessible(plan.FeaturePromptStorage))
}

func TestValidateUpgrade(t *testing.T) {
	m := &Membership{PlanTier: plan.TierBasic, Status: StatusActive}

	assert.NoError(t, validateUpgrade(m, plan.TierPremium))
	assert.NoError(t, validateUpgrade(m, plan.TierEnterprise))

	err := validateUpgrade(m, plan.TierBasic)
	assert.True(t, errors.Is(err, ErrSameTier))

	err = validateUpgrade(m, plan.TierFree)
	assert.True(t, errors.Is(err, ErrDowngradeNotAllowed))
}

func TestUsageStatsIsACopy(t *testing.T) {
	m := premiumMembership()

	stats := m.UsageStats()
	assert.Equal(t, plan.Tier(plan.TierPremium), stats.PlanTier)
	assert.Equal(t, int64(4999), stats.CurrentUsage[plan.FeaturePromptStorage])

	stats.CurrentUsage[plan.FeaturePromptStorage] = 0
	stats.Features[plan.FeatureSSO] = true

	assert.Equal(t, int64(4999), m.CurrentUsage[plan.FeaturePromptStorage])
	assert.False(t, m.Features[plan.FeatureSSO])
}
