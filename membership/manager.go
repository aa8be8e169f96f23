package membership

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/promptdeck/billing/plan"

	"github.com/go-redis/redis/v7"
	"github.com/google/uuid"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	cacheKeyPrefix = "billing:membership:"
	cacheTTL       = time.Minute * 5
)

// ManagerOptions contains the configuration for the membership Manager
type ManagerOptions struct {
	DB      *gorm.DB
	Redis   redis.UniversalClient
	Logger  *zap.Logger
	Catalog *plan.Catalog
}

// Manager handles the database operations relating to Memberships. Lookups
// on the hot path (feature access checks) are served from a Redis
// read-through cache that every mutation invalidates.
type Manager struct {
	ManagerOptions
}

// NewManager returns a new Manager for memberships
func NewManager(option ManagerOptions) (*Manager, error) {
	if option.DB == nil {
		return nil, extErrors.New("nil DB is invalid")
	}
	if option.Redis == nil {
		return nil, extErrors.New("nil Redis is invalid")
	}
	if option.Logger == nil {
		return nil, extErrors.New("nil Logger is invalid")
	}
	if option.Catalog == nil {
		return nil, extErrors.New("nil Catalog is invalid")
	}
	if err := option.DB.AutoMigrate(&Membership{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize membership.Manager")
	}
	return &Manager{
		ManagerOptions: option,
	}, nil
}

// CreateFree bootstraps the one-per-user membership on the FREE tier. At most
// one membership record may exist per user; a second call fails.
func (m *Manager) CreateFree(ctx context.Context, userID string) (*Membership, error) {
	existing, err := m.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyExists
	}

	freePlan, ok := m.Catalog.GetPlanByTier(plan.TierFree)
	if !ok {
		return nil, extErrors.New("no FREE plan defined in catalog")
	}

	now := time.Now()
	membership := &Membership{
		ID:          uuid.New().String(),
		UserID:      userID,
		PlanID:      freePlan.ID,
		PlanTier:    plan.TierFree,
		Status:      StatusActive,
		PeriodStart: now,
		// the free tier does not expire on its own
		PeriodEnd:    now.AddDate(100, 0, 0),
		Features:     freePlan.Features,
		UsageLimits:  freePlan.UsageLimits,
		CurrentUsage: make(plan.QuotaMap),
	}

	result := m.DB.WithContext(ctx).Create(membership)
	if result.Error != nil {
		m.Logger.Error("Unable to create new membership in database",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot create membership")
	}
	m.invalidate(userID)

	return membership, nil
}

// GetByUserID will try to return the user's membership, via the cache
func (m *Manager) GetByUserID(ctx context.Context, userID string) (*Membership, error) {
	if cached := m.fromCache(userID); cached != nil {
		return cached, nil
	}

	var membership Membership
	result := m.DB.WithContext(ctx).First(&membership, "user_id = ?", userID)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get membership by user id")
	}

	m.toCache(&membership)

	return &membership, nil
}

// GetActive returns the user's membership when it currently grants
// entitlements (ACTIVE or TRIAL), nil otherwise
func (m *Manager) GetActive(ctx context.Context, userID string) (*Membership, error) {
	membership, err := m.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if membership == nil || !membership.Active() {
		return nil, nil
	}
	return membership, nil
}

// LambdaUpdateFunc mutates desired based on current inside a transaction.
// A returned error aborts the update and is propagated to the caller.
type LambdaUpdateFunc func(current *Membership, desired *Membership) error

// LambdaUpdate will perform a transactional update of the user's membership.
// The row is locked with FOR UPDATE so concurrent upgrade/cancel/usage calls
// for the same user serialize.
func (m *Manager) LambdaUpdate(ctx context.Context, userID string, lambda LambdaUpdateFunc) (*Membership, error) {
	var desired Membership
	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current Membership
		lookupRes := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&current, "user_id = ?", userID)
		if errors.Is(lookupRes.Error, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if lookupRes.Error != nil {
			return lookupRes.Error
		}
		desired = current
		if err := lambda(&current, &desired); err != nil {
			return err
		}
		if saveRes := tx.Save(&desired); saveRes.Error != nil {
			return saveRes.Error
		}
		return nil
	}, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, err
	}
	m.invalidate(userID)
	return &desired, nil
}

// UpgradeOptions carries the fields of a membership upgrade
type UpgradeOptions struct {
	UserID       string
	PlanID       string
	PlanTier     plan.Tier
	BillingCycle plan.BillingCycle
	Amount       int64
}

// Upgrade moves the membership to a higher tier. The feature and limit maps
// are replaced wholesale from the catalog, the billing period restarts now,
// and consumption counters reset.
func (m *Manager) Upgrade(ctx context.Context, opt UpgradeOptions) (*Membership, error) {
	target, ok := m.Catalog.GetPlanByTier(opt.PlanTier)
	if !ok {
		return nil, extErrors.Errorf("no plan defined in catalog for tier %s", opt.PlanTier)
	}
	return m.LambdaUpdate(ctx, opt.UserID, func(current *Membership, desired *Membership) error {
		if err := validateUpgrade(current, opt.PlanTier); err != nil {
			return err
		}
		now := time.Now()
		desired.PlanID = opt.PlanID
		desired.PlanTier = opt.PlanTier
		desired.Status = StatusActive
		desired.BillingCycle = opt.BillingCycle
		desired.PeriodStart = now
		desired.PeriodEnd = opt.BillingCycle.PeriodEnd(now)
		desired.CancelAtPeriodEnd = false
		desired.Features = target.Features
		desired.UsageLimits = target.UsageLimits
		if ResetUsageOnUpgrade {
			desired.CurrentUsage = make(plan.QuotaMap)
		}
		return nil
	})
}

// RenewPeriod restarts the entitlement period after a same-tier renewal
// payment. Tier, maps and counters stay as they are.
func (m *Manager) RenewPeriod(ctx context.Context, userID string, cycle plan.BillingCycle) (*Membership, error) {
	return m.LambdaUpdate(ctx, userID, func(current *Membership, desired *Membership) error {
		now := time.Now()
		desired.Status = StatusActive
		desired.BillingCycle = cycle
		desired.PeriodStart = now
		desired.PeriodEnd = cycle.PeriodEnd(now)
		desired.CancelAtPeriodEnd = false
		return nil
	})
}

// Cancel marks an ACTIVE membership to end at the current period's close.
// Tier and entitlement maps are left untouched; the account only degrades
// once external expiry processing flips the status.
func (m *Manager) Cancel(ctx context.Context, userID string) (*Membership, error) {
	return m.LambdaUpdate(ctx, userID, func(current *Membership, desired *Membership) error {
		if current.Status != StatusActive {
			return ErrNotActive
		}
		desired.Status = StatusCanceled
		desired.CancelAtPeriodEnd = true
		return nil
	})
}

// UpdateUsage overwrites the consumption counter for the feature with an
// absolute value
func (m *Manager) UpdateUsage(ctx context.Context, userID, feature string, usage int64) (*Membership, error) {
	return m.LambdaUpdate(ctx, userID, func(current *Membership, desired *Membership) error {
		desired.CurrentUsage = current.CurrentUsage.Clone()
		desired.CurrentUsage[feature] = usage
		return nil
	})
}

// CheckFeatureAccess reports whether the user may use the feature right now.
// Users without an active membership have no access.
func (m *Manager) CheckFeatureAccess(ctx context.Context, userID, feature string) (bool, error) {
	membership, err := m.GetActive(ctx, userID)
	if err != nil {
		return false, err
	}
	return membership.FeatureAccessible(feature), nil
}

// UsageStats returns the read-only projection of the user's membership
func (m *Manager) UsageStats(ctx context.Context, userID string) (*Stats, error) {
	membership, err := m.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, ErrNotFound
	}
	return membership.UsageStats(), nil
}

func (m *Manager) fromCache(userID string) *Membership {
	cached, err := m.Redis.Get(cacheKeyPrefix + userID).Result()
	if err != nil {
		// cache miss or Redis unavailable, fall back to the database
		return nil
	}
	var membership Membership
	if err := json.Unmarshal([]byte(cached), &membership); err != nil {
		return nil
	}
	return &membership
}

func (m *Manager) toCache(membership *Membership) {
	jsonBytes, err := json.Marshal(membership)
	if err != nil {
		return
	}
	if err := m.Redis.Set(cacheKeyPrefix+membership.UserID, string(jsonBytes), cacheTTL).Err(); err != nil {
		m.Logger.Warn("Unable to cache membership",
			zap.String("UserID", membership.UserID),
			zap.Error(err),
		)
	}
}

func (m *Manager) invalidate(userID string) {
	if err := m.Redis.Del(cacheKeyPrefix + userID).Err(); err != nil {
		m.Logger.Warn("Unable to invalidate membership cache",
			zap.String("UserID", userID),
			zap.Error(err),
		)
	}
}
