package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Manager handles the database operations relating to Orders
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for orders
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&Order{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize order.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// Create will persist a new order in PENDING/PENDING
func (m *Manager) Create(ctx context.Context, ord *Order) error {
	ord.Status = StatusPending
	ord.PaymentStatus = PaymentPending
	result := m.db.WithContext(ctx).Create(ord)
	if result.Error != nil {
		m.logger.Error("Unable to create new order in database",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot create order")
	}
	return nil
}

// GetByID will try to return the order in the database by id
func (m *Manager) GetByID(ctx context.Context, id string) (*Order, error) {
	var ord Order

	result := m.db.WithContext(ctx).First(&ord, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get order by id")
	}

	return &ord, nil
}

// ListOption filters the orders returned by List
type ListOption struct {
	UserID string
	Before time.Time
	Limit  int
}

// List returns a user's orders, newest first
func (m *Manager) List(ctx context.Context, opt ListOption) ([]Order, error) {
	if len(opt.UserID) == 0 {
		return nil, extErrors.New("ListOption.UserID is required")
	}
	baseQuery := m.db.WithContext(ctx).Order("created_at desc").Where("user_id = ?", opt.UserID)
	if opt.Limit > 0 {
		baseQuery = baseQuery.Limit(opt.Limit)
	}
	if !opt.Before.IsZero() {
		baseQuery = baseQuery.Where("created_at < ?", opt.Before)
	}

	results := make([]Order, 0, 1)
	result := baseQuery.Find(&results)

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
type LambdaUpdateFunc func(current *Order, desired *Order) error

// LambdaUpdate will perform a transactional update based on the lambda
// function. The selected Order will be locked with FOR UPDATE so concurrent
// transitions on the same order serialize.
func (m *Manager) LambdaUpdate(ctx context.Context, id string, lambda LambdaUpdateFunc) (*Order, error) {
	var desired Order
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current Order
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

// ProcessPayment transitions the order's payment status to PROCESSING and
// records the provider identifiers. The order must be in PENDING.
func (m *Manager) ProcessPayment(ctx context.Context, id, gateway, gatewayOrderID, gatewayPaymentID string) (*Order, error) {
	return m.LambdaUpdate(ctx, id, func(current *Order, desired *Order) error {
		return applyProcess(current, desired, gateway, gatewayOrderID, gatewayPaymentID)
	})
}

// CompletePayment confirms the order and marks its payment SUCCEEDED. The
// order must be in PROCESSING.
func (m *Manager) CompletePayment(ctx context.Context, id string) (*Order, error) {
	return m.LambdaUpdate(ctx, id, func(current *Order, desired *Order) error {
		return applyComplete(current, desired, time.Now())
	})
}

// FailPayment cancels the order from any non-terminal state
func (m *Manager) FailPayment(ctx context.Context, id, reason string) (*Order, error) {
	return m.LambdaUpdate(ctx, id, func(current *Order, desired *Order) error {
		return applyFail(current, desired, reason)
	})
}
