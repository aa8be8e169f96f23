package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72/client"
	"go.uber.org/zap"
)

func testManager(t *testing.T, enabled ...Provider) *Manager {
	m, err := NewManager(ManagerOptions{
		StripeClient: &client.API{},
		Logger:       zap.NewNop(),
		Enabled:      enabled,
	})
	require.NoError(t, err)
	return m
}

func TestParseProvider(t *testing.T) {
	for _, valid := range []string{"alipay", "wechat", "applepay", "stripe", "paypal"} {
		p, err := ParseProvider(valid)
		require.NoError(t, err)
		assert.Equal(t, Provider(valid), p)
	}

	_, err := ParseProvider("venmo")
	assert.True(t, errors.Is(err, ErrUnknownProvider))
}

func TestManagerEnabledSet(t *testing.T) {
	m := testManager(t, ProviderAlipay, ProviderStripe)

	assert.True(t, m.IsAvailable(ProviderAlipay))
	assert.True(t, m.IsAvailable(ProviderStripe))
	assert.False(t, m.IsAvailable(ProviderWechat))
	assert.False(t, m.IsAvailable(Provider("venmo")))

	assert.Equal(t, []Provider{ProviderAlipay, ProviderStripe}, m.AvailableProviders())
}

func TestManagerRejectsUnsupportedProvider(t *testing.T) {
	_, err := NewManager(ManagerOptions{
		StripeClient: &client.API{},
		Logger:       zap.NewNop(),
		Enabled:      []Provider{Provider("venmo")},
	})
	assert.Error(t, err)
}

func TestManagerDisabledProvider(t *testing.T) {
	m := testManager(t, ProviderAlipay)
	ctx := context.Background()

	_, err := m.CreatePayment(ctx, ProviderWechat, CreatePaymentOptions{OrderID: "o1", Amount: 1990})
	assert.True(t, errors.Is(err, ErrGatewayNotEnabled))

	_, err = m.VerifyPayment(ctx, ProviderWechat, Payload{})
	assert.True(t, errors.Is(err, ErrGatewayNotEnabled))

	_, err = m.CreatePayment(ctx, Provider("venmo"), CreatePaymentOptions{OrderID: "o1"})
	assert.True(t, errors.Is(err, ErrUnknownProvider))
}

// callbacks must settle even after a provider is administratively disabled
func TestManagerCallbackOnDisabledProvider(t *testing.T) {
	m := testManager(t, ProviderAlipay)

	result, err := m.HandleCallback(context.Background(), ProviderWechat, Payload{
		"return_code":    "SUCCESS",
		"result_code":    "SUCCESS",
		"out_trade_no":   "order-1",
		"total_fee":      "1990",
		"transaction_id": "wx-txn-1",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, result.Status)
	assert.Equal(t, "order-1", result.OrderID)
}

func TestAmountConversions(t *testing.T) {
	assert.Equal(t, "19.90", formatDecimal(1990))
	assert.Equal(t, "0.05", formatDecimal(5))
	assert.Equal(t, int64(1990), parseDecimal("19.90"))
	assert.Equal(t, int64(0), parseDecimal("not-a-number"))
	assert.Equal(t, int64(0), parseDecimal(""))

	assert.Equal(t, "1990", formatMinor(1990))
	assert.Equal(t, int64(1990), parseMinor("1990"))
	assert.Equal(t, int64(0), parseMinor(""))
}
