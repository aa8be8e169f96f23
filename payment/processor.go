package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/promptdeck/billing/broker"
	"github.com/promptdeck/billing/gateway"
	"github.com/promptdeck/billing/membership"
	"github.com/promptdeck/billing/order"
	"github.com/promptdeck/billing/plan"
	"github.com/promptdeck/billing/subscription"

	"go.uber.org/zap"
)

// Defining sentinel errors surfaced to callers
var (
	// ErrAmountMismatch is returned when a callback reports an amount different from the order's
	ErrAmountMismatch = errors.New("callback amount does not match order amount")
	// ErrNotOrderOwner is returned when the caller does not own the referenced order
	ErrNotOrderOwner = errors.New("order does not belong to the caller")
)

// OrderStore is the slice of order.Manager the Processor depends on
type OrderStore interface {
	GetByID(ctx context.Context, id string) (*order.Order, error)
	ProcessPayment(ctx context.Context, id, gateway, gatewayOrderID, gatewayPaymentID string) (*order.Order, error)
	CompletePayment(ctx context.Context, id string) (*order.Order, error)
	FailPayment(ctx context.Context, id, reason string) (*order.Order, error)
}

// SubscriptionStore is the slice of subscription.Manager the Processor depends on
type SubscriptionStore interface {
	UpsertForOrder(ctx context.Context, opt subscription.CreateOptions) (*subscription.Subscription, bool, error)
}

// MembershipStore is the slice of membership.Manager the Processor depends on
type MembershipStore interface {
	GetByUserID(ctx context.Context, userID string) (*membership.Membership, error)
	CreateFree(ctx context.Context, userID string) (*membership.Membership, error)
	Upgrade(ctx context.Context, opt membership.UpgradeOptions) (*membership.Membership, error)
	RenewPeriod(ctx context.Context, userID string, cycle plan.BillingCycle) (*membership.Membership, error)
}

// Gateway is the slice of gateway.Manager the Processor depends on
type Gateway interface {
	IsAvailable(p gateway.Provider) bool
	AvailableProviders() []gateway.Provider
	CreatePayment(ctx context.Context, p gateway.Provider, opt gateway.CreatePaymentOptions) (*gateway.CreatePaymentResult, error)
	VerifyPayment(ctx context.Context, p gateway.Provider, payload gateway.Payload) (*gateway.VerifyResult, error)
	HandleCallback(ctx context.Context, p gateway.Provider, payload gateway.Payload) (*gateway.CallbackResult, error)
}

// ProcessorOptions contains the configuration for the payment Processor
type ProcessorOptions struct {
	OrderStore        OrderStore
	SubscriptionStore SubscriptionStore
	MembershipStore   MembershipStore
	Gateway           Gateway
	Producer          broker.Producer
	Logger            *zap.Logger
}

// Processor sequences the writes a payment settles into: order confirmation,
// subscription upsert, then membership entitlement. The three writes are not
// atomic; when a downstream write fails after the order has been confirmed,
// the failure is surfaced to the caller and a reconcile event is published so
// an out-of-band worker can repair the state.
type Processor struct {
	ProcessorOptions
}

// NewProcessor returns a new payment Processor
func NewProcessor(option ProcessorOptions) (*Processor, error) {
	if option.OrderStore == nil {
		return nil, fmt.Errorf("nil OrderStore is invalid")
	}
	if option.SubscriptionStore == nil {
		return nil, fmt.Errorf("nil SubscriptionStore is invalid")
	}
	if option.MembershipStore == nil {
		return nil, fmt.Errorf("nil MembershipStore is invalid")
	}
	if option.Gateway == nil {
		return nil, fmt.Errorf("nil Gateway is invalid")
	}
	if option.Producer == nil {
		return nil, fmt.Errorf("nil Producer is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Processor{
		ProcessorOptions: option,
	}, nil
}

// CreatePayment starts a payment for the caller's order with the chosen
// provider
func (p *Processor) CreatePayment(ctx context.Context, userID, orderID string, provider gateway.Provider, returnURL string) (*gateway.CreatePaymentResult, error) {
	ord, err := p.OrderStore.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ord == nil {
		return nil, order.ErrNotFound
	}
	if ord.UserID != userID {
		return nil, ErrNotOrderOwner
	}
	if ord.PaymentStatus != order.PaymentPending {
		return nil, order.ErrInvalidPaymentState
	}

	return p.Gateway.CreatePayment(ctx, provider, gateway.CreatePaymentOptions{
		OrderID:     ord.ID,
		Amount:      ord.Amount,
		Currency:    ord.Currency,
		Description: fmt.Sprintf("%s plan (%s)", ord.PlanTier, ord.BillingCycle),
		ReturnURL:   returnURL,
	})
}

// VerifyPayment checks an inbound payload against the caller's order
func (p *Processor) VerifyPayment(ctx context.Context, userID string, provider gateway.Provider, payload gateway.Payload) (*gateway.VerifyResult, error) {
	result, err := p.Gateway.VerifyPayment(ctx, provider, payload)
	if err != nil {
		return nil, err
	}
	if !result.Verified {
		return result, nil
	}

	ord, err := p.OrderStore.GetByID(ctx, result.OrderID)
	if err != nil {
		return nil, err
	}
	if ord == nil {
		return nil, order.ErrNotFound
	}
	if ord.UserID != userID {
		return nil, ErrNotOrderOwner
	}
	if result.Amount != ord.Amount {
		return nil, ErrAmountMismatch
	}

	return result, nil
}

// CompleteOrder runs the post-payment sequence for the order. Implements
// order.Orchestrator: a non-nil Order returned together with an error means
// the order was confirmed but entitlement did not follow, and reconciliation
// has been requested.
func (p *Processor) CompleteOrder(ctx context.Context, orderID string) (*order.Order, error) {
	confirmed, err := p.OrderStore.CompletePayment(ctx, orderID)
	if err != nil {
		return nil, err
	}

	logger := p.Logger.With(
		zap.String("OrderID", confirmed.ID),
		zap.String("UserID", confirmed.UserID),
	)

	sub, created, err := p.SubscriptionStore.UpsertForOrder(ctx, subscription.CreateOptions{
		UserID:       confirmed.UserID,
		PlanID:       confirmed.PlanID,
		PlanTier:     confirmed.PlanTier,
		BillingCycle: confirmed.BillingCycle,
		Amount:       confirmed.Amount,
		Currency:     confirmed.Currency,
		Gateway:      confirmed.Gateway,
	})
	if err != nil {
		logger.Error("Order confirmed but subscription upsert failed",
			zap.Error(err),
		)
		p.requestReconcile(confirmed)
		return confirmed, err
	}

	subscriptionEvent := broker.EventType(broker.EventSubscriptionUpdated)
	if created {
		subscriptionEvent = broker.EventSubscriptionCreated
	}
	p.publish(&broker.Event{
		Type:           subscriptionEvent,
		UserID:         confirmed.UserID,
		OrderID:        confirmed.ID,
		SubscriptionID: sub.ID,
		Provider:       confirmed.Gateway,
	})

	if err := p.applyEntitlement(ctx, confirmed); err != nil {
		logger.Error("Order confirmed but membership update failed",
			zap.Error(err),
		)
		p.requestReconcile(confirmed)
		return confirmed, err
	}

	p.publish(&broker.Event{
		Type:           broker.EventOrderCompleted,
		UserID:         confirmed.UserID,
		OrderID:        confirmed.ID,
		SubscriptionID: sub.ID,
		Provider:       confirmed.Gateway,
	})

	return confirmed, nil
}

// applyEntitlement moves the user's membership to the order's plan: a fresh
// user gets bootstrapped on FREE first, a same-tier order renews the period,
// a higher-tier order upgrades.
func (p *Processor) applyEntitlement(ctx context.Context, ord *order.Order) error {
	current, err := p.MembershipStore.GetByUserID(ctx, ord.UserID)
	if err != nil {
		return err
	}
	if current == nil {
		current, err = p.MembershipStore.CreateFree(ctx, ord.UserID)
		if err != nil {
			return err
		}
	}

	if ord.PlanTier.Rank() == current.PlanTier.Rank() {
		renewed, err := p.MembershipStore.RenewPeriod(ctx, ord.UserID, ord.BillingCycle)
		if err != nil {
			return err
		}
		p.publish(&broker.Event{
			Type:         broker.EventSubscriptionRenewed,
			UserID:       ord.UserID,
			OrderID:      ord.ID,
			MembershipID: renewed.ID,
		})
		return nil
	}

	upgraded, err := p.MembershipStore.Upgrade(ctx, membership.UpgradeOptions{
		UserID:       ord.UserID,
		PlanID:       ord.PlanID,
		PlanTier:     ord.PlanTier,
		BillingCycle: ord.BillingCycle,
		Amount:       ord.Amount,
	})
	if err != nil {
		return err
	}
	p.publish(&broker.Event{
		Type:         broker.EventMembershipUpgraded,
		UserID:       ord.UserID,
		OrderID:      ord.ID,
		MembershipID: upgraded.ID,
		Detail: map[string]string{
			"tier": string(upgraded.PlanTier),
		},
	})
	return nil
}

// HandleCallback settles an asynchronous provider notification. The amount is
// checked against the order before any transition; a mismatch leaves the
// order untouched.
func (p *Processor) HandleCallback(ctx context.Context, provider gateway.Provider, payload gateway.Payload) (*order.Order, error) {
	result, err := p.Gateway.HandleCallback(ctx, provider, payload)
	if err != nil {
		return nil, err
	}

	ord, err := p.OrderStore.GetByID(ctx, result.OrderID)
	if err != nil {
		return nil, err
	}
	if ord == nil {
		return nil, order.ErrNotFound
	}

	logger := p.Logger.With(
		zap.String("OrderID", ord.ID),
		zap.String("Provider", string(provider)),
	)

	// provider networks retry notifications; a settled order is acknowledged as-is
	if result.Status == gateway.StatusSucceeded &&
		ord.Status == order.StatusConfirmed && ord.PaymentStatus == order.PaymentSucceeded {
		logger.Info("Duplicate success callback for settled order")
		return ord, nil
	}

	if result.Status == gateway.StatusFailed {
		failed, err := p.OrderStore.FailPayment(ctx, ord.ID, "provider reported failure")
		if err != nil {
			return nil, err
		}
		p.publish(&broker.Event{
			Type:     broker.EventOrderFailed,
			UserID:   failed.UserID,
			OrderID:  failed.ID,
			Provider: string(provider),
		})
		return failed, nil
	}

	if result.Amount != ord.Amount {
		logger.Error("Callback amount mismatch",
			zap.Int64("OrderAmount", ord.Amount),
			zap.Int64("CallbackAmount", result.Amount),
		)
		return nil, ErrAmountMismatch
	}

	// redirect-style providers notify without a prior process call
	if ord.PaymentStatus == order.PaymentPending {
		if _, err := p.OrderStore.ProcessPayment(ctx, ord.ID, string(provider), result.ProviderOrderID, result.ProviderPaymentID); err != nil {
			return nil, err
		}
	}

	return p.CompleteOrder(ctx, ord.ID)
}

func (p *Processor) requestReconcile(ord *order.Order) {
	p.publish(&broker.Event{
		Type:    broker.EventReconcileRequired,
		UserID:  ord.UserID,
		OrderID: ord.ID,
		Detail: map[string]string{
			"reason": "order confirmed without entitlement",
		},
	})
}

// publish sends the event best-effort; delivery failures are logged and never
// fail the request
func (p *Processor) publish(e *broker.Event) {
	e.OccurredAt = time.Now()
	if err := p.Producer.PublishEvent(e); err != nil {
		p.Logger.Warn("Unable to publish billing event",
			zap.String("EventType", string(e.Type)),
			zap.Error(err),
		)
	}
}
