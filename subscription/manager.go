package subscription

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/promptdeck/billing/plan"

	"github.com/lithammer/shortuuid/v3"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Defining sentinel errors surfaced to callers
var (
	// ErrNotFound is returned when no subscription with the given id exists
	ErrNotFound = errors.New("subscription not found")
	// ErrInvalidSubscriptionState is returned when the subscription is not in a state valid for the operation
	ErrInvalidSubscriptionState = errors.New("subscription is not in a valid state for this operation")
)

// Manager handles the database operations relating to Subscriptions
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for subscriptions
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&Subscription{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize subscription.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// CreateOptions carries the fields of a new subscription
type CreateOptions struct {
	UserID                string
	PlanID                string
	PlanTier              plan.Tier
	BillingCycle          plan.BillingCycle
	Amount                int64
	Currency              string
	Gateway               string
	GatewaySubscriptionID string
}

// Create persists a new ACTIVE subscription with its period computed from the
// billing cycle
func (m *Manager) Create(ctx context.Context, opt CreateOptions) (*Subscription, error) {
	now := time.Now()
	sub := &Subscription{
		ID:                    shortuuid.New(),
		UserID:                opt.UserID,
		PlanID:                opt.PlanID,
		PlanTier:              opt.PlanTier,
		Status:                StatusActive,
		BillingCycle:          opt.BillingCycle,
		Amount:                opt.Amount,
		Currency:              opt.Currency,
		PeriodStart:           now,
		PeriodEnd:             opt.BillingCycle.PeriodEnd(now),
		Gateway:               opt.Gateway,
		GatewaySubscriptionID: opt.GatewaySubscriptionID,
	}
	result := m.db.WithContext(ctx).Create(sub)
	if result.Error != nil {
		m.logger.Error("Unable to create new subscription in database",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot create subscription")
	}
	return sub, nil
}

// GetByID will try to return the subscription in the database by id
func (m *Manager) GetByID(ctx context.Context, id string) (*Subscription, error) {
	var sub Subscription

	result := m.db.WithContext(ctx).First(&sub, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get subscription by id")
	}

	return &sub, nil
}

// GetActiveByUserID returns the user's ACTIVE subscription, or nil when none exists
func (m *Manager) GetActiveByUserID(ctx context.Context, userID string) (*Subscription, error) {
	var sub Subscription

	result := m.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("status = ?", string(StatusActive)).
		Order("created_at desc").
		First(&sub)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get active subscription")
	}

	return &sub, nil
}

// List returns all of a user's subscriptions, newest first
func (m *Manager) List(ctx context.Context, userID string) ([]Subscription, error) {
	results := make([]Subscription, 0, 1)
	result := m.db.WithContext(ctx).
		Order("created_at desc").
		Find(&results, "user_id = ?", userID)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return results, nil
}

// LambdaUpdateFunc mutates desired based on current inside a transaction.
// A returned error aborts the update and is propagated to the caller.
type LambdaUpdateFunc func(current *Subscription, desired *Subscription) error

// LambdaUpdate will perform a transactional update based on the lambda
// function. The selected Subscription will be locked with FOR UPDATE.
func (m *Manager) LambdaUpdate(ctx context.Context, id string, lambda LambdaUpdateFunc) (*Subscription, error) {
	var desired Subscription
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current Subscription
		lookupRes := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&current, "id = ?", id)
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
	return &desired, nil
}

// Cancel marks an ACTIVE subscription to end at the current period's close.
// Entitlements are not retracted here; expiry enforcement is time-based and
// handled outside this service.
func (m *Manager) Cancel(ctx context.Context, id string) (*Subscription, error) {
	return m.LambdaUpdate(ctx, id, func(current *Subscription, desired *Subscription) error {
		if current.Status != StatusActive {
			return ErrInvalidSubscriptionState
		}
		now := time.Now()
		desired.Status = StatusCanceled
		desired.CancelAtPeriodEnd = true
		desired.CanceledAt = &now
		return nil
	})
}

// Renew recomputes the billing period from now. Amount and tier are unchanged.
func (m *Manager) Renew(ctx context.Context, id string) (*Subscription, error) {
	return m.LambdaUpdate(ctx, id, func(current *Subscription, desired *Subscription) error {
		if current.Status != StatusActive {
			return ErrInvalidSubscriptionState
		}
		now := time.Now()
		desired.PeriodStart = now
		desired.PeriodEnd = current.BillingCycle.PeriodEnd(now)
		return nil
	})
}

// UpsertForOrder applies a completed order to the user's billing state: an
// existing ACTIVE subscription is overwritten in place (same identity),
// otherwise a new one is created. The returned bool reports whether a new
// subscription was created.
func (m *Manager) UpsertForOrder(ctx context.Context, opt CreateOptions) (*Subscription, bool, error) {
	existing, err := m.GetActiveByUserID(ctx, opt.UserID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		sub, err := m.Create(ctx, opt)
		return sub, true, err
	}
	updated, err := m.LambdaUpdate(ctx, existing.ID, func(current *Subscription, desired *Subscription) error {
		now := time.Now()
		desired.PlanID = opt.PlanID
		desired.PlanTier = opt.PlanTier
		desired.BillingCycle = opt.BillingCycle
		desired.Amount = opt.Amount
		desired.Currency = opt.Currency
		desired.PeriodStart = now
		desired.PeriodEnd = opt.BillingCycle.PeriodEnd(now)
		desired.CancelAtPeriodEnd = false
		desired.CanceledAt = nil
		if len(opt.Gateway) > 0 {
			desired.Gateway = opt.Gateway
		}
		if len(opt.GatewaySubscriptionID) > 0 {
			desired.GatewaySubscriptionID = opt.GatewaySubscriptionID
		}
		return nil
	})
	return updated, false, err
}
