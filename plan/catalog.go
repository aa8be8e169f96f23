package plan

import (
	"encoding/json"
	"io/ioutil"

	extErrors "github.com/pkg/errors"
)

// Feature names used across the catalog. Handlers treat features as opaque
// strings; these constants only exist so the defaults below stay consistent.
const (
	FeaturePromptStorage      = "prompt_storage"
	FeatureFolderOrganization = "folder_organization"
	FeatureBasicSearch        = "basic_search"
	FeaturePromptExport       = "prompt_export"
	FeatureVersionHistory     = "version_history"
	FeatureTeamSharing        = "team_sharing"
	FeatureAPIAccess          = "api_access"
	FeatureAdvancedSearch     = "advanced_search"
	FeaturePrioritySupport    = "priority_support"
	FeatureSSO                = "sso"
)

// Plan describes a purchasable membership plan
type Plan struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`        // Shown to the customer
	Description string     `json:"description"` // Shown to the customer
	Tier        Tier       `json:"tier"`
	Currency    string     `json:"currency"`    // ISO currency code (e.g. usd)
	Features    FeatureMap `json:"features"`    // Feature name -> enabled
	UsageLimits QuotaMap   `json:"usageLimits"` // Feature name -> cap, Unlimited for no cap
	Retired     bool       `json:"retired"`     // Flag if the Plan is no longer purchasable
}

// Catalog holds the defined plans, indexed by ID and by tier
type Catalog struct {
	planArray      []Plan
	planIDIndexMap map[string]int
	tierIndexMap   map[Tier]int
}

// NewCatalog builds a Catalog from the given plans. With no plans given the
// built-in defaults are used.
func NewCatalog(plans []Plan) *Catalog {
	if len(plans) == 0 {
		plans = defaultPlans()
	}
	idMap := make(map[string]int)
	tierMap := make(map[Tier]int)
	for index, p := range plans {
		idMap[p.ID] = index + 1
		if _, seen := tierMap[p.Tier]; !seen && !p.Retired {
			tierMap[p.Tier] = index + 1
		}
	}
	return &Catalog{
		planArray:      plans,
		planIDIndexMap: idMap,
		tierIndexMap:   tierMap,
	}
}

// LoadCatalogFromFile reads plan definitions from a JSON file so pricing can
// be changed without a rebuild
func LoadCatalogFromFile(filename string) (*Catalog, error) {
	jsonBytes, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot open plans JSON file")
	}
	plans := make([]Plan, 0, 4)
	if err := json.Unmarshal(jsonBytes, &plans); err != nil {
		return nil, extErrors.Wrap(err, "Invalid plans JSON file")
	}
	return NewCatalog(plans), nil
}

// ListDefinedPlans returns every plan in the catalog
func (c *Catalog) ListDefinedPlans() []Plan {
	return c.planArray
}

// GetPlanByID returns a copy of the plan with the given ID
func (c *Catalog) GetPlanByID(planID string) (Plan, bool) {
	index := c.planIDIndexMap[planID]
	if index == 0 {
		return Plan{}, false
	}
	plan := c.planArray[index-1]
	plan.Features = plan.Features.Clone()
	plan.UsageLimits = plan.UsageLimits.Clone()
	return plan, true
}

// GetPlanByTier returns a copy of the first non-retired plan for the tier
func (c *Catalog) GetPlanByTier(tier Tier) (Plan, bool) {
	index := c.tierIndexMap[tier]
	if index == 0 {
		return Plan{}, false
	}
	plan := c.planArray[index-1]
	plan.Features = plan.Features.Clone()
	plan.UsageLimits = plan.UsageLimits.Clone()
	return plan, true
}

// FeaturesForTier returns the feature flags of the tier. The returned map is
// a copy and safe to mutate.
func (c *Catalog) FeaturesForTier(tier Tier) FeatureMap {
	plan, ok := c.GetPlanByTier(tier)
	if !ok {
		return make(FeatureMap)
	}
	return plan.Features
}

// UsageLimitsForTier returns the usage limits of the tier. The returned map
// is a copy and safe to mutate.
func (c *Catalog) UsageLimitsForTier(tier Tier) QuotaMap {
	plan, ok := c.GetPlanByTier(tier)
	if !ok {
		return make(QuotaMap)
	}
	return plan.UsageLimits
}

// defaultPlans defines the built-in catalog. Each tier strictly adds
// capabilities or raises limits relative to the one below.
func defaultPlans() []Plan {
	return []Plan{
		{
			ID:          "free",
			Name:        "Free",
			Description: "Personal prompt library to get started",
			Tier:        TierFree,
			Currency:    "usd",
			Features: FeatureMap{
				FeaturePromptStorage:      true,
				FeatureFolderOrganization: true,
				FeatureBasicSearch:        true,
				FeaturePromptExport:       false,
				FeatureVersionHistory:     false,
				FeatureTeamSharing:        false,
				FeatureAPIAccess:          false,
				FeatureAdvancedSearch:     false,
				FeaturePrioritySupport:    false,
				FeatureSSO:                false,
			},
			UsageLimits: QuotaMap{
				"prompts_per_month": 50,
				"folders":           10,
				"categories":        5,
			},
		},
		{
			ID:          "basic",
			Name:        "Basic",
			Description: "For individuals building a serious prompt collection",
			Tier:        TierBasic,
			Currency:    "usd",
			Features: FeatureMap{
				FeaturePromptStorage:      true,
				FeatureFolderOrganization: true,
				FeatureBasicSearch:        true,
				FeaturePromptExport:       true,
				FeatureVersionHistory:     true,
				FeatureTeamSharing:        false,
				FeatureAPIAccess:          false,
				FeatureAdvancedSearch:     false,
				FeaturePrioritySupport:    false,
				FeatureSSO:                false,
			},
			UsageLimits: QuotaMap{
				"prompts_per_month": 500,
				"folders":           100,
				"categories":        50,
			},
		},
		{
			ID:          "premium",
			Name:        "Premium",
			Description: "Team sharing and API access for power users",
			Tier:        TierPremium,
			Currency:    "usd",
			Features: FeatureMap{
				FeaturePromptStorage:      true,
				FeatureFolderOrganization: true,
				FeatureBasicSearch:        true,
				FeaturePromptExport:       true,
				FeatureVersionHistory:     true,
				FeatureTeamSharing:        true,
				FeatureAPIAccess:          true,
				FeatureAdvancedSearch:     true,
				FeaturePrioritySupport:    false,
				FeatureSSO:                false,
			},
			UsageLimits: QuotaMap{
				"prompts_per_month": 5000,
				"folders":           Unlimited,
				"categories":        Unlimited,
				"api_calls_per_day": 10000,
			},
		},
		{
			ID:          "enterprise",
			Name:        "Enterprise",
			Description: "Unlimited usage with SSO and priority support",
			Tier:        TierEnterprise,
			Currency:    "usd",
			Features: FeatureMap{
				FeaturePromptStorage:      true,
				FeatureFolderOrganization: true,
				FeatureBasicSearch:        true,
				FeaturePromptExport:       true,
				FeatureVersionHistory:     true,
				FeatureTeamSharing:        true,
				FeatureAPIAccess:          true,
				FeatureAdvancedSearch:     true,
				FeaturePrioritySupport:    true,
				FeatureSSO:                true,
			},
			UsageLimits: QuotaMap{
				"prompts_per_month": Unlimited,
				"folders":           Unlimited,
				"categories":        Unlimited,
				"api_calls_per_day": Unlimited,
			},
		},
	}
}
