package membership

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/promptdeck/billing/auth"
	"github.com/promptdeck/billing/broker"
	"github.com/promptdeck/billing/plan"
	resp "github.com/promptdeck/billing/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Store is the slice of Manager the Service depends on
type Store interface {
	CreateFree(ctx context.Context, userID string) (*Membership, error)
	GetByUserID(ctx context.Context, userID string) (*Membership, error)
	Upgrade(ctx context.Context, opt UpgradeOptions) (*Membership, error)
	Cancel(ctx context.Context, userID string) (*Membership, error)
	UpdateUsage(ctx context.Context, userID, feature string, usage int64) (*Membership, error)
	CheckFeatureAccess(ctx context.Context, userID, feature string) (bool, error)
	UsageStats(ctx context.Context, userID string) (*Stats, error)
}

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	MembershipManager Store
	Producer          broker.Producer
	Logger            *zap.Logger
}

// Service is the membership API router
type Service struct {
	ServiceOptions
	validate *validator.Validate
}

// NewService will create an instance of the membership API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.MembershipManager == nil {
		return nil, fmt.Errorf("nil MembershipManager is invalid")
	}
	if option.Producer == nil {
		return nil, fmt.Errorf("nil Producer is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
		validate:       validator.New(),
	}, nil
}

func (s *Service) createFree(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	membership, err := s.MembershipManager.CreateFree(ctx, claims.ID)
	if errors.Is(err, ErrAlreadyExists) {
		resp.WriteError(w, r, resp.ErrConflict().AddMessages("Membership already exists for this user"))
		return
	}
	if err != nil {
		s.Logger.Error("Unable to create free membership",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to create Membership"))
		return
	}

	resp.WriteResponse(w, r, membership)
}

func (s *Service) getMembership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	membership, err := s.MembershipManager.GetByUserID(ctx, claims.ID)
	if err != nil {
		s.Logger.Error("Unable to query membership",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get details about the membership"))
		return
	}
	if membership == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("No membership found for this user"))
		return
	}

	resp.WriteResponse(w, r, membership)
}

func (s *Service) getStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	stats, err := s.MembershipManager.UsageStats(ctx, claims.ID)
	if errors.Is(err, ErrNotFound) {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("No membership found for this user"))
		return
	}
	if err != nil {
		s.Logger.Error("Unable to query membership stats",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get membership stats"))
		return
	}

	resp.WriteResponse(w, r, stats)
}

// UpgradeRequest contains the request from client to upgrade their tier
type UpgradeRequest struct {
	PlanID       string `json:"planId" validate:"required"`
	PlanTier     string `json:"planTier" validate:"required"`
	BillingCycle string `json:"billingCycle" validate:"required"`
	Amount       int64  `json:"amount" validate:"gte=0"`
}

func (s *Service) upgradeMembership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	var req UpgradeRequest
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

	updated, err := s.MembershipManager.Upgrade(ctx, UpgradeOptions{
		UserID:       claims.ID,
		PlanID:       req.PlanID,
		PlanTier:     tier,
		BillingCycle: cycle,
		Amount:       req.Amount,
	})
	if err != nil {
		s.writeTransitionError(w, r, claims.ID, err)
		return
	}

	s.publish(&broker.Event{
		Type:         broker.EventMembershipUpgraded,
		UserID:       updated.UserID,
		MembershipID: updated.ID,
		Detail: map[string]string{
			"tier": string(updated.PlanTier),
		},
	})

	resp.WriteResponse(w, r, updated)
}

func (s *Service) cancelMembership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	updated, err := s.MembershipManager.Cancel(ctx, claims.ID)
	if err != nil {
		s.writeTransitionError(w, r, claims.ID, err)
		return
	}

	s.publish(&broker.Event{
		Type:         broker.EventMembershipCanceled,
		UserID:       updated.UserID,
		MembershipID: updated.ID,
	})

	resp.WriteResponse(w, r, updated)
}

// UsageRequest carries the absolute consumption value for one feature
type UsageRequest struct {
	Feature string `json:"feature" validate:"required"`
	Usage   int64  `json:"usage" validate:"gte=0"`
}

func (s *Service) updateUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	var req UsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages(err.Error()))
		return
	}

	updated, err := s.MembershipManager.UpdateUsage(ctx, claims.ID, req.Feature, req.Usage)
	if err != nil {
		s.writeTransitionError(w, r, claims.ID, err)
		return
	}

	resp.WriteResponse(w, r, updated)
}

// FeatureAccessResponse reports whether a single feature is usable
type FeatureAccessResponse struct {
	Feature string `json:"feature"`
	Allowed bool   `json:"allowed"`
}

func (s *Service) checkAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)
	feature := chi.URLParam(r, "feature")

	allowed, err := s.MembershipManager.CheckFeatureAccess(ctx, claims.ID, feature)
	if err != nil {
		s.Logger.Error("Unable to check feature access",
			zap.String("UserID", claims.ID),
			zap.String("Feature", feature),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot check feature access"))
		return
	}

	resp.WriteResponse(w, r, FeatureAccessResponse{
		Feature: feature,
		Allowed: allowed,
	})
}

func (s *Service) writeTransitionError(w http.ResponseWriter, r *http.Request, userID string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("No membership found for this user"))
	case errors.Is(err, ErrNotActive):
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Membership is not in 'ACTIVE' state"))
	case errors.Is(err, ErrSameTier):
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Membership is already on this tier"))
	case errors.Is(err, ErrDowngradeNotAllowed):
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Downgrading to a lower tier is not allowed"))
	default:
		s.Logger.Error("Unable to update membership",
			zap.String("UserID", userID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to update Membership"))
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

// Router will return the routes under membership API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.createFree)
	r.Get("/me", s.getMembership)
	r.Get("/stats", s.getStats)
	r.Post("/upgrade", s.upgradeMembership)
	r.Post("/cancel", s.cancelMembership)
	r.Put("/usage", s.updateUsage)
	r.Get("/access/{feature}", s.checkAccess)

	return r
}
