package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/promptdeck/billing/auth"
	"github.com/promptdeck/billing/gateway"
	"github.com/promptdeck/billing/plan"
	resp "github.com/promptdeck/billing/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"github.com/lithammer/shortuuid/v3"
	"go.uber.org/zap"
)

// Orchestrator sequences the subscription and membership writes after an
// order is paid. When it returns both a non-nil Order and an error, the order
// itself was confirmed but a downstream write failed and reconciliation has
// been requested.
type Orchestrator interface {
	CompleteOrder(ctx context.Context, orderID string) (*Order, error)
}

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	OrderManager *Manager
	Orchestrator Orchestrator
	Logger       *zap.Logger
}

// Service is the order API router
type Service struct {
	ServiceOptions
	validate *validator.Validate
}

// NewService will create an instance of the order API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.OrderManager == nil {
		return nil, fmt.Errorf("nil OrderManager is invalid")
	}
	if option.Orchestrator == nil {
		return nil, fmt.Errorf("nil Orchestrator is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
		validate:       validator.New(),
	}, nil
}

// NewOrderRequest contains the request from client to start a purchase
type NewOrderRequest struct {
	PlanID        string `json:"planId" validate:"required"`
	PlanTier      string `json:"planTier" validate:"required"`
	BillingCycle  string `json:"billingCycle" validate:"required"`
	Amount        int64  `json:"amount" validate:"gte=0"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"paymentMethod"`
}

func (s *Service) newOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	logger := s.Logger.With(zap.String("UserID", claims.ID))

	var req NewOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(err.Error()))
		return
	}

	tier, err := plan.ParseTier(req.PlanTier)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(err.Error()))
		return
	}
	cycle, err := plan.ParseBillingCycle(req.BillingCycle)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(err.Error()))
		return
	}

	currency := req.Currency
	if len(currency) == 0 {
		currency = "usd"
	}

	ord := Order{
		ID:            shortuuid.New(),
		UserID:        claims.ID,
		PlanID:        req.PlanID,
		PlanTier:      tier,
		BillingCycle:  cycle,
		Amount:        req.Amount,
		Currency:      currency,
		PaymentMethod: req.PaymentMethod,
	}

	if err := s.OrderManager.Create(ctx, &ord); err != nil {
		logger.Error("Unable to create order",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to create Order"))
		return
	}

	resp.WriteResponse(w, r, ord)
}

// findOwnOrder returns the caller's order, writing the error response on failure
func (s *Service) findOwnOrder(w http.ResponseWriter, r *http.Request) *Order {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)
	orderID := chi.URLParam(r, "id")

	ord, err := s.OrderManager.GetByID(ctx, orderID)
	if err != nil {
		s.Logger.Error("Unable to query order",
			zap.String("OrderID", orderID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get details about the order"))
		return nil
	}
	if ord == nil || ord.UserID != claims.ID {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find order with specific ID"))
		return nil
	}
	return ord
}

func (s *Service) getOrder(w http.ResponseWriter, r *http.Request) {
	ord := s.findOwnOrder(w, r)
	if ord == nil {
		return
	}
	resp.WriteResponse(w, r, ord)
}

func (s *Service) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)
	before := r.URL.Query().Get("before")

	var parsedTime time.Time
	if before != "" {
		var err error
		parsedTime, err = time.Parse(time.RFC3339Nano, before)
		if err != nil {
			resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid before param"))
			return
		}
	}

	results, err := s.OrderManager.List(ctx, ListOption{
		UserID: claims.ID,
		Before: parsedTime,
		Limit:  10,
	})
	if err != nil {
		s.Logger.Error("Unable to list orders by user id",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get the list of orders"))
		return
	}

	resp.WriteResponse(w, r, results)
}

// ProcessPaymentRequest records which provider took over the payment
type ProcessPaymentRequest struct {
	Provider          string `json:"provider" validate:"required"`
	ProviderOrderID   string `json:"providerOrderId"`
	ProviderPaymentID string `json:"providerPaymentId"`
}

func (s *Service) processPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ord := s.findOwnOrder(w, r)
	if ord == nil {
		return
	}

	var req ProcessPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(err.Error()))
		return
	}

	provider, err := gateway.ParseProvider(req.Provider)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Unknown payment provider"))
		return
	}

	updated, err := s.OrderManager.ProcessPayment(ctx, ord.ID, string(provider), req.ProviderOrderID, req.ProviderPaymentID)
	if err != nil {
		s.writeTransitionError(w, r, ord.ID, err)
		return
	}

	resp.WriteResponse(w, r, updated)
}

func (s *Service) completePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ord := s.findOwnOrder(w, r)
	if ord == nil {
		return
	}

	updated, err := s.Orchestrator.CompleteOrder(ctx, ord.ID)
	if err != nil && updated != nil {
		// the order was confirmed but a downstream write failed;
		// reconciliation was requested by the orchestrator
		s.Logger.Error("Order confirmed without entitlement",
			zap.String("OrderID", ord.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().
			AddMessages("Order was confirmed but entitlement update failed", "Reconciliation has been requested").
			WithResult(updated))
		return
	}
	if err != nil {
		s.writeTransitionError(w, r, ord.ID, err)
		return
	}

	resp.WriteResponse(w, r, updated)
}

// FailPaymentRequest carries the optional reason for abandoning an order
type FailPaymentRequest struct {
	Reason string `json:"reason"`
}

func (s *Service) failPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ord := s.findOwnOrder(w, r)
	if ord == nil {
		return
	}

	var req FailPaymentRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			resp.WriteError(w, r, resp.ErrInvalidJson())
			return
		}
	}

	updated, err := s.OrderManager.FailPayment(ctx, ord.ID, req.Reason)
	if err != nil {
		s.writeTransitionError(w, r, ord.ID, err)
		return
	}

	resp.WriteResponse(w, r, updated)
}

func (s *Service) writeTransitionError(w http.ResponseWriter, r *http.Request, orderID string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find order with specific ID"))
	case errors.Is(err, ErrInvalidPaymentState):
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Order payment is not in a valid state for this operation"))
	default:
		s.Logger.Error("Unable to update order status",
			zap.String("OrderID", orderID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to update Order status"))
	}
}

// Router will return the routes under order API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.listOrders)
	r.Post("/", s.newOrder)
	r.Get("/{id}", s.getOrder)
	r.Post("/{id}/process", s.processPayment)
	r.Post("/{id}/complete", s.completePayment)
	r.Post("/{id}/fail", s.failPayment)

	return r
}
