package membership

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/promptdeck/billing/auth"
	"github.com/promptdeck/billing/broker"
	"github.com/promptdeck/billing/plan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	catalog     *plan.Catalog
	memberships map[string]*Membership
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		catalog:     plan.NewCatalog(nil),
		memberships: make(map[string]*Membership),
	}
}

func (f *fakeStore) CreateFree(ctx context.Context, userID string) (*Membership, error) {
	if _, ok := f.memberships[userID]; ok {
		return nil, ErrAlreadyExists
	}
	free, _ := f.catalog.GetPlanByTier(plan.TierFree)
	m := &Membership{
		ID:           "mem-" + userID,
		UserID:       userID,
		PlanID:       free.ID,
		PlanTier:     plan.TierFree,
		Status:       StatusActive,
		Features:     free.Features,
		UsageLimits:  free.UsageLimits,
		CurrentUsage: make(plan.QuotaMap),
	}
	f.memberships[userID] = m
	return m, nil
}

func (f *fakeStore) GetByUserID(ctx context.Context, userID string) (*Membership, error) {
	return f.memberships[userID], nil
}

func (f *fakeStore) Upgrade(ctx context.Context, opt UpgradeOptions) (*Membership, error) {
	m, ok := f.memberships[opt.UserID]
	if !ok {
		return nil, ErrNotFound
	}
	if err := validateUpgrade(m, opt.PlanTier); err != nil {
		return nil, err
	}
	target, _ := f.catalog.GetPlanByTier(opt.PlanTier)
	now := time.Now()
	m.PlanID = opt.PlanID
	m.PlanTier = opt.PlanTier
	m.Status = StatusActive
	m.BillingCycle = opt.BillingCycle
	m.PeriodStart = now
	m.PeriodEnd = opt.BillingCycle.PeriodEnd(now)
	m.Features = target.Features
	m.UsageLimits = target.UsageLimits
	m.CurrentUsage = make(plan.QuotaMap)
	return m, nil
}

func (f *fakeStore) Cancel(ctx context.Context, userID string) (*Membership, error) {
	m, ok := f.memberships[userID]
	if !ok {
		return nil, ErrNotFound
	}
	if m.Status != StatusActive {
		return nil, ErrNotActive
	}
	m.Status = StatusCanceled
	m.CancelAtPeriodEnd = true
	return m, nil
}

func (f *fakeStore) UpdateUsage(ctx context.Context, userID, feature string, usage int64) (*Membership, error) {
	m, ok := f.memberships[userID]
	if !ok {
		return nil, ErrNotFound
	}
	m.CurrentUsage[feature] = usage
	return m, nil
}

func (f *fakeStore) CheckFeatureAccess(ctx context.Context, userID, feature string) (bool, error) {
	return f.memberships[userID].FeatureAccessible(feature), nil
}

func (f *fakeStore) UsageStats(ctx context.Context, userID string) (*Stats, error) {
	m, ok := f.memberships[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return m.UsageStats(), nil
}

type fakeProducer struct {
	events []*broker.Event
}

func (f *fakeProducer) Close() {}

func (f *fakeProducer) PublishEvent(e *broker.Event) error {
	f.events = append(f.events, e)
	return nil
}

func serviceFixture(t *testing.T) (*Service, *fakeStore, *fakeProducer) {
	store := newFakeStore()
	producer := &fakeProducer{}
	s, err := NewService(ServiceOptions{
		MembershipManager: store,
		Producer:          producer,
		Logger:            zap.NewNop(),
	})
	require.NoError(t, err)
	return s, store, producer
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if len(body) > 0 {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	ctx := context.WithValue(req.Context(), auth.Context, &auth.Claims{ID: "user-1"})
	return req.WithContext(ctx)
}

func TestUpgradePublishesEvent(t *testing.T) {
	s, store, producer := serviceFixture(t)
	_, err := store.CreateFree(context.Background(), "user-1")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, authedRequest("POST", "/upgrade",
		`{"planId":"basic","planTier":"BASIC","billingCycle":"MONTHLY","amount":1990}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, plan.Tier(plan.TierBasic), store.memberships["user-1"].PlanTier)
	require.Len(t, producer.events, 1)
	assert.Equal(t, broker.EventType(broker.EventMembershipUpgraded), producer.events[0].Type)
	assert.Equal(t, "mem-user-1", producer.events[0].MembershipID)
	assert.Equal(t, "BASIC", producer.events[0].Detail["tier"])
}

func TestCancelMembershipPublishesEvent(t *testing.T) {
	s, store, producer := serviceFixture(t)
	_, err := store.CreateFree(context.Background(), "user-1")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, authedRequest("POST", "/cancel", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Status(StatusCanceled), store.memberships["user-1"].Status)
	require.Len(t, producer.events, 1)
	assert.Equal(t, broker.EventType(broker.EventMembershipCanceled), producer.events[0].Type)
	assert.Equal(t, "user-1", producer.events[0].UserID)
}

func TestUpgradeDowngradeRejectedPublishesNothing(t *testing.T) {
	s, store, producer := serviceFixture(t)
	_, err := store.CreateFree(context.Background(), "user-1")
	require.NoError(t, err)
	_, err = store.Upgrade(context.Background(), UpgradeOptions{
		UserID:       "user-1",
		PlanID:       "premium",
		PlanTier:     plan.TierPremium,
		BillingCycle: plan.CycleMonthly,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, authedRequest("POST", "/upgrade",
		`{"planId":"basic","planTier":"BASIC","billingCycle":"MONTHLY","amount":1990}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, plan.Tier(plan.TierPremium), store.memberships["user-1"].PlanTier)
	assert.Empty(t, producer.events)
}

func TestCreateFreeConflict(t *testing.T) {
	s, store, producer := serviceFixture(t)
	_, err := store.CreateFree(context.Background(), "user-1")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, authedRequest("POST", "/", ""))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, producer.events)
}
