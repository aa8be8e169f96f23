package order

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingOrder() (*Order, *Order) {
	current := &Order{
		ID:            "order-1",
		UserID:        "user-1",
		Amount:        1990,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
	}
	desired := *current
	return current, &desired
}

func TestApplyProcess(t *testing.T) {
	current, desired := pendingOrder()

	err := applyProcess(current, desired, "stripe", "pi_123", "ch_456")
	require.NoError(t, err)
	assert.Equal(t, PaymentStatus(PaymentProcessing), desired.PaymentStatus)
	assert.Equal(t, Status(StatusPending), desired.Status)
	assert.Equal(t, "stripe", desired.Gateway)
	assert.Equal(t, "pi_123", desired.GatewayOrderID)
	assert.Equal(t, "ch_456", desired.GatewayPaymentID)
}

func TestApplyProcessTwice(t *testing.T) {
	current, desired := pendingOrder()
	require.NoError(t, applyProcess(current, desired, "stripe", "pi_123", ""))

	// second concurrent process sees the PROCESSING row after the lock releases
	next := *desired
	err := applyProcess(desired, &next, "paypal", "pp-1", "")
	assert.True(t, errors.Is(err, ErrInvalidPaymentState))
}

func TestApplyCompleteRequiresProcessing(t *testing.T) {
	current, desired := pendingOrder()

	err := applyComplete(current, desired, time.Now())
	assert.True(t, errors.Is(err, ErrInvalidPaymentState), "cannot skip PROCESSING")
}

func TestApplyCompleteFromProcessing(t *testing.T) {
	current, desired := pendingOrder()
	require.NoError(t, applyProcess(current, desired, "alipay", "ali-1", ""))

	now := time.Now()
	next := *desired
	require.NoError(t, applyComplete(desired, &next, now))
	assert.Equal(t, Status(StatusConfirmed), next.Status)
	assert.Equal(t, PaymentStatus(PaymentSucceeded), next.PaymentStatus)
	require.NotNil(t, next.PaidAt)
	assert.Equal(t, now, *next.PaidAt)
	assert.True(t, next.Terminal())
}

func TestApplyFail(t *testing.T) {
	current, desired := pendingOrder()

	require.NoError(t, applyFail(current, desired, "customer abandoned checkout"))
	assert.Equal(t, Status(StatusCancelled), desired.Status)
	assert.Equal(t, PaymentStatus(PaymentFailed), desired.PaymentStatus)
	assert.Equal(t, "customer abandoned checkout", desired.FailureReason)
	assert.True(t, desired.Terminal())
}

func TestApplyFailFromProcessing(t *testing.T) {
	current, desired := pendingOrder()
	require.NoError(t, applyProcess(current, desired, "wechat", "wx-1", ""))

	next := *desired
	require.NoError(t, applyFail(desired, &next, "provider reported failure"))
	assert.Equal(t, PaymentStatus(PaymentFailed), next.PaymentStatus)
}

func TestApplyFailOnTerminalOrder(t *testing.T) {
	now := time.Now()
	confirmed := &Order{
		ID:            "order-1",
		Status:        StatusConfirmed,
		PaymentStatus: PaymentSucceeded,
		PaidAt:        &now,
	}
	desired := *confirmed
	err := applyFail(confirmed, &desired, "too late")
	assert.True(t, errors.Is(err, ErrInvalidPaymentState))

	refunded := &Order{
		ID:            "order-2",
		Status:        StatusRefunded,
		PaymentStatus: PaymentRefunded,
	}
	desired = *refunded
	err = applyFail(refunded, &desired, "too late")
	assert.True(t, errors.Is(err, ErrInvalidPaymentState))
}
