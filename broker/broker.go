package broker

import "time"

// EventType tags a billing lifecycle event
type EventType string

// Defining billing event types. Downstream consumers (marketing, analytics,
// reconciliation workers) bind queues on these routing keys.
const (
	EventOrderCompleted       EventType = "order.completed"
	EventOrderFailed                    = "order.failed"
	EventSubscriptionCreated            = "subscription.created"
	EventSubscriptionUpdated            = "subscription.updated"
	EventSubscriptionCanceled           = "subscription.canceled"
	EventSubscriptionRenewed            = "subscription.renewed"
	EventMembershipUpgraded             = "membership.upgraded"
	EventMembershipCanceled             = "membership.canceled"
	EventReconcileRequired              = "billing.reconcile"
)

// Event describes a billing lifecycle change for downstream consumers
type Event struct {
	Type           EventType         `json:"type"`
	UserID         string            `json:"userId,omitempty"`
	OrderID        string            `json:"orderId,omitempty"`
	SubscriptionID string            `json:"subscriptionId,omitempty"`
	MembershipID   string            `json:"membershipId,omitempty"`
	Provider       string            `json:"provider,omitempty"`
	OccurredAt     time.Time         `json:"occurredAt"`
	Detail         map[string]string `json:"detail,omitempty"`
}

// Producer defines the interface for publishing billing events via message broker
type Producer interface {
	Close()
	PublishEvent(e *Event) error
}
