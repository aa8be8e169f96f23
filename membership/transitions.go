package membership

import (
	"github.com/pkg/errors"

	"github.com/promptdeck/billing/plan"
)

// Defining sentinel errors surfaced to callers
var (
	// ErrNotFound is returned when the user has no membership record
	ErrNotFound = errors.New("membership not found")
	// ErrAlreadyExists is returned when a membership record for the user already exists
	ErrAlreadyExists = errors.New("membership already exists")
	// ErrSameTier is returned when the upgrade target equals the current tier
	ErrSameTier = errors.New("membership is already on the requested tier")
	// ErrDowngradeNotAllowed is returned when the upgrade target ranks below the current tier
	ErrDowngradeNotAllowed = errors.New("membership tier cannot be downgraded")
	// ErrNotActive is returned when the operation requires an ACTIVE membership
	ErrNotActive = errors.New("membership is not active")
)

// validateUpgrade enforces that the tier only moves up the strict order
// FREE < BASIC < PREMIUM < ENTERPRISE
func validateUpgrade(current *Membership, target plan.Tier) error {
	if target.Rank() == current.PlanTier.Rank() {
		return ErrSameTier
	}
	if target.Rank() < current.PlanTier.Rank() {
		return ErrDowngradeNotAllowed
	}
	return nil
}
