package subscription

import (
	"context"
	"net/http"
	"net/http/httptest"
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
	subs map[string]*Subscription
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (*Subscription, error) {
	sub, ok := f.subs[id]
	if !ok {
		return nil, nil
	}
	copied := *sub
	return &copied, nil
}

func (f *fakeStore) List(ctx context.Context, userID string) ([]Subscription, error) {
	results := make([]Subscription, 0, 1)
	for _, sub := range f.subs {
		if sub.UserID == userID {
			results = append(results, *sub)
		}
	}
	return results, nil
}

func (f *fakeStore) Cancel(ctx context.Context, id string) (*Subscription, error) {
	sub, ok := f.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if sub.Status != StatusActive {
		return nil, ErrInvalidSubscriptionState
	}
	now := time.Now()
	sub.Status = StatusCanceled
	sub.CancelAtPeriodEnd = true
	sub.CanceledAt = &now
	copied := *sub
	return &copied, nil
}

func (f *fakeStore) Renew(ctx context.Context, id string) (*Subscription, error) {
	sub, ok := f.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if sub.Status != StatusActive {
		return nil, ErrInvalidSubscriptionState
	}
	now := time.Now()
	sub.PeriodStart = now
	sub.PeriodEnd = sub.BillingCycle.PeriodEnd(now)
	copied := *sub
	return &copied, nil
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
	store := &fakeStore{
		subs: map[string]*Subscription{
			"sub-1": {
				ID:           "sub-1",
				UserID:       "user-1",
				PlanTier:     plan.TierBasic,
				Status:       StatusActive,
				BillingCycle: plan.CycleMonthly,
			},
		},
	}
	producer := &fakeProducer{}
	s, err := NewService(ServiceOptions{
		SubscriptionManager: store,
		Producer:            producer,
		Logger:              zap.NewNop(),
	})
	require.NoError(t, err)
	return s, store, producer
}

func authedRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	ctx := context.WithValue(req.Context(), auth.Context, &auth.Claims{ID: "user-1"})
	return req.WithContext(ctx)
}

func TestCancelPublishesEvent(t *testing.T) {
	s, store, producer := serviceFixture(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, authedRequest("POST", "/sub-1/cancel"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Status(StatusCanceled), store.subs["sub-1"].Status)
	require.Len(t, producer.events, 1)
	assert.Equal(t, broker.EventType(broker.EventSubscriptionCanceled), producer.events[0].Type)
	assert.Equal(t, "sub-1", producer.events[0].SubscriptionID)
	assert.Equal(t, "user-1", producer.events[0].UserID)
}

func TestRenewPublishesEvent(t *testing.T) {
	s, _, producer := serviceFixture(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, authedRequest("POST", "/sub-1/renew"))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, producer.events, 1)
	assert.Equal(t, broker.EventType(broker.EventSubscriptionRenewed), producer.events[0].Type)
}

func TestCancelNonActivePublishesNothing(t *testing.T) {
	s, store, producer := serviceFixture(t)
	store.subs["sub-1"].Status = StatusCanceled

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, authedRequest("POST", "/sub-1/cancel"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, producer.events)
}

func TestCancelForeignSubscription(t *testing.T) {
	s, store, producer := serviceFixture(t)
	store.subs["sub-1"].UserID = "someone-else"

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, authedRequest("POST", "/sub-1/cancel"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, Status(StatusActive), store.subs["sub-1"].Status)
	assert.Empty(t, producer.events)
}
