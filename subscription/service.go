package subscription

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/promptdeck/billing/auth"
	"github.com/promptdeck/billing/broker"
	resp "github.com/promptdeck/billing/response"

	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// Store is the slice of Manager the Service depends on
type Store interface {
	GetByID(ctx context.Context, id string) (*Subscription, error)
	List(ctx context.Context, userID string) ([]Subscription, error)
	Cancel(ctx context.Context, id string) (*Subscription, error)
	Renew(ctx context.Context, id string) (*Subscription, error)
}

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	SubscriptionManager Store
	Producer            broker.Producer
	Logger              *zap.Logger
}

// Service is the subscription API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the subscription API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.SubscriptionManager == nil {
		return nil, fmt.Errorf("nil SubscriptionManager is invalid")
	}
	if option.Producer == nil {
		return nil, fmt.Errorf("nil Producer is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

// findOwnSubscription returns the caller's subscription, writing the error response on failure
func (s *Service) findOwnSubscription(w http.ResponseWriter, r *http.Request) *Subscription {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)
	subscriptionID := chi.URLParam(r, "id")

	sub, err := s.SubscriptionManager.GetByID(ctx, subscriptionID)
	if err != nil {
		s.Logger.Error("Unable to query subscription",
			zap.String("SubscriptionID", subscriptionID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get details about the subscription"))
		return nil
	}
	if sub == nil || sub.UserID != claims.ID {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find subscription with specific ID"))
		return nil
	}
	return sub
}

func (s *Service) getSubscription(w http.ResponseWriter, r *http.Request) {
	sub := s.findOwnSubscription(w, r)
	if sub == nil {
		return
	}
	resp.WriteResponse(w, r, sub)
}

func (s *Service) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	results, err := s.SubscriptionManager.List(ctx, claims.ID)
	if err != nil {
		s.Logger.Error("Unable to list subscriptions by user id",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get the list of subscriptions"))
		return
	}

	resp.WriteResponse(w, r, results)
}

func (s *Service) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sub := s.findOwnSubscription(w, r)
	if sub == nil {
		return
	}

	updated, err := s.SubscriptionManager.Cancel(ctx, sub.ID)
	if err != nil {
		s.writeTransitionError(w, r, sub.ID, err)
		return
	}

	s.publish(&broker.Event{
		Type:           broker.EventSubscriptionCanceled,
		UserID:         updated.UserID,
		SubscriptionID: updated.ID,
	})

	resp.WriteResponse(w, r, updated)
}

func (s *Service) renewSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sub := s.findOwnSubscription(w, r)
	if sub == nil {
		return
	}

	updated, err := s.SubscriptionManager.Renew(ctx, sub.ID)
	if err != nil {
		s.writeTransitionError(w, r, sub.ID, err)
		return
	}

	s.publish(&broker.Event{
		Type:           broker.EventSubscriptionRenewed,
		UserID:         updated.UserID,
		SubscriptionID: updated.ID,
	})

	resp.WriteResponse(w, r, updated)
}

func (s *Service) writeTransitionError(w http.ResponseWriter, r *http.Request, subscriptionID string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find subscription with specific ID"))
	case errors.Is(err, ErrInvalidSubscriptionState):
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Subscription is not in 'ACTIVE' state"))
	default:
		s.Logger.Error("Unable to update subscription status",
			zap.String("SubscriptionID", subscriptionID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to update Subscription status"))
	}
}

// publish sends the event best-effort; delivery failures are logged and never
// fail the request
func (s *Service) publish(e *broker.Event) {
	e.OccurredAt = time.Now()
	if err := s.Producer.PublishEvent(e); err != nil {
		s.Logger.Warn("Unable to publish billing event",
			zap.String("EventType", string(e.Type)),
			zap.Error(err),
		)
	}
}

// Router will return the routes under subscription API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.listSubscriptions)
	r.Get("/{id}", s.getSubscription)
	r.Post("/{id}/cancel", s.cancelSubscription)
	r.Post("/{id}/renew", s.renewSubscription)

	return r
}
