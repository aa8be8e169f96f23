package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/promptdeck/billing/auth"
	"github.com/promptdeck/billing/gateway"
	"github.com/promptdeck/billing/order"
	resp "github.com/promptdeck/billing/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	Processor *Processor
	Logger    *zap.Logger
}

// Service is the payment API router
type Service struct {
	ServiceOptions
	validate *validator.Validate
}

// NewService will create an instance of the payment API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.Processor == nil {
		return nil, fmt.Errorf("nil Processor is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
		validate:       validator.New(),
	}, nil
}

// CreatePaymentRequest contains the request from client to start a payment
type CreatePaymentRequest struct {
	OrderID   string `json:"orderId" validate:"required"`
	Provider  string `json:"provider" validate:"required"`
	ReturnURL string `json:"returnUrl"`
}

func (s *Service) createPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	var req CreatePaymentRequest
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

	result, err := s.Processor.CreatePayment(ctx, claims.ID, req.OrderID, provider, req.ReturnURL)
	if err != nil {
		s.writePaymentError(w, r, req.OrderID, err)
		return
	}

	resp.WriteResponse(w, r, result)
}

// VerifyPaymentRequest carries the provider payload to verify
type VerifyPaymentRequest struct {
	Provider string          `json:"provider" validate:"required"`
	Payload  gateway.Payload `json:"payload" validate:"required"`
}

func (s *Service) verifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	var req VerifyPaymentRequest
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

	result, err := s.Processor.VerifyPayment(ctx, claims.ID, provider, req.Payload)
	if err != nil {
		s.writePaymentError(w, r, "", err)
		return
	}

	resp.WriteResponse(w, r, result)
}

// handleCallback is the unauthenticated endpoint provider networks notify.
// Identity comes from the payload, not the caller.
func (s *Service) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	provider, err := gateway.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Unknown payment provider"))
		return
	}

	var payload gateway.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}

	updated, err := s.Processor.HandleCallback(ctx, provider, payload)
	if err != nil && updated != nil {
		// confirmed without entitlement; reconciliation was requested
		s.Logger.Error("Callback confirmed order without entitlement",
			zap.String("OrderID", updated.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().
			AddMessages("Order was confirmed but entitlement update failed", "Reconciliation has been requested").
			WithResult(updated))
		return
	}
	if err != nil {
		s.writePaymentError(w, r, "", err)
		return
	}

	resp.WriteResponse(w, r, updated)
}

func (s *Service) listProviders(w http.ResponseWriter, r *http.Request) {
	resp.WriteResponse(w, r, s.Processor.Gateway.AvailableProviders())
}

func (s *Service) writePaymentError(w http.ResponseWriter, r *http.Request, orderID string, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound), errors.Is(err, ErrNotOrderOwner):
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find order with specific ID"))
	case errors.Is(err, order.ErrInvalidPaymentState):
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Order payment is not in a valid state for this operation"))
	case errors.Is(err, ErrAmountMismatch):
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Payment amount does not match the order"))
	case errors.Is(err, gateway.ErrGatewayNotEnabled):
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Payment provider is not enabled"))
	case errors.Is(err, gateway.ErrUnknownProvider):
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Unknown payment provider"))
	default:
		s.Logger.Error("Unable to process payment operation",
			zap.String("OrderID", orderID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to process payment operation"))
	}
}

// Router will return the routes under payment API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/providers", s.listProviders)
	r.Post("/create", s.createPayment)
	r.Post("/verify", s.verifyPayment)

	return r
}

// CallbackRouter returns the unauthenticated callback routes. These must be
// mounted outside the identity middleware.
func (s *Service) CallbackRouter() http.Handler {
	r := chi.NewRouter()

	r.Post("/{provider}", s.handleCallback)

	return r
}
