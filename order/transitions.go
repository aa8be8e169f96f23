package order

import (
	"time"

	"github.com/pkg/errors"
)

// Defining sentinel errors surfaced to callers
var (
	// ErrNotFound is returned when no order with the given id exists
	ErrNotFound = errors.New("order not found")
	// ErrInvalidPaymentState is returned when a transition is attempted out of sequence
	ErrInvalidPaymentState = errors.New("order payment is not in a valid state for this operation")
)

// applyProcess moves payment status PENDING -> PROCESSING and records the
// provider identifiers. current and desired follow LambdaUpdate semantics.
func applyProcess(current *Order, desired *Order, gateway, gatewayOrderID, gatewayPaymentID string) error {
	if current.PaymentStatus != PaymentPending {
		return ErrInvalidPaymentState
	}
	desired.PaymentStatus = PaymentProcessing
	desired.Gateway = gateway
	desired.GatewayOrderID = gatewayOrderID
	desired.GatewayPaymentID = gatewayPaymentID
	return nil
}

// applyComplete moves payment status PROCESSING -> SUCCEEDED and confirms the
// order. An order can only be confirmed through the full sequence
// PENDING -> PROCESSING -> SUCCEEDED.
func applyComplete(current *Order, desired *Order, now time.Time) error {
	if current.PaymentStatus != PaymentProcessing {
		return ErrInvalidPaymentState
	}
	desired.Status = StatusConfirmed
	desired.PaymentStatus = PaymentSucceeded
	desired.PaidAt = &now
	return nil
}

// applyFail cancels the order from any non-terminal state
func applyFail(current *Order, desired *Order, reason string) error {
	if current.Terminal() {
		return ErrInvalidPaymentState
	}
	desired.Status = StatusCancelled
	desired.PaymentStatus = PaymentFailed
	desired.FailureReason = reason
	return nil
}
