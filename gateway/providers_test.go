package gateway

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlipayPayloadShape(t *testing.T) {
	c := &alipayClient{}
	ctx := context.Background()

	created, err := c.CreatePayment(ctx, CreatePaymentOptions{
		OrderID:     "order-1",
		Amount:      1990,
		Currency:    "usd",
		Description: "BASIC plan (MONTHLY)",
		ReturnURL:   "https://app.example.com/done",
	})
	require.NoError(t, err)
	assert.True(t, created.Success)
	assert.Equal(t, "order-1", created.Payload["out_trade_no"])
	assert.Equal(t, "19.90", created.Payload["total_amount"])
	assert.NotEmpty(t, created.Payload["qr_code"])
	assert.NotEmpty(t, created.RedirectURL)

	verified, err := c.VerifyPayment(ctx, Payload{
		"trade_status": "TRADE_SUCCESS",
		"out_trade_no": "order-1",
		"total_amount": "19.90",
		"trade_no":     "ali-123",
	})
	require.NoError(t, err)
	assert.True(t, verified.Verified)
	assert.Equal(t, "order-1", verified.OrderID)
	assert.Equal(t, int64(1990), verified.Amount)
	assert.Equal(t, "ali-123", verified.ProviderOrderID)

	// TRADE_FINISHED is not our success sentinel
	callback, err := c.HandleCallback(ctx, Payload{
		"trade_status": "TRADE_FINISHED",
		"out_trade_no": "order-1",
		"total_amount": "19.90",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, callback.Status)
}

func TestAlipayReturnURLSurvivesQueryString(t *testing.T) {
	c := &alipayClient{}
	returnURL := "https://app.example.com/done?order=1&tab=billing#receipt"

	created, err := c.CreatePayment(context.Background(), CreatePaymentOptions{
		OrderID:   "order-1",
		Amount:    1990,
		ReturnURL: returnURL,
	})
	require.NoError(t, err)

	parsed, err := url.Parse(created.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "order-1", parsed.Query().Get("out_trade_no"))
	assert.Equal(t, returnURL, parsed.Query().Get("return_url"))
}

func TestWechatPayloadShape(t *testing.T) {
	c := &wechatClient{}
	ctx := context.Background()

	created, err := c.CreatePayment(ctx, CreatePaymentOptions{
		OrderID: "order-2",
		Amount:  1990,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.Payload["prepay_id"])
	assert.Equal(t, "1990", created.Payload["total_fee"])
	assert.Empty(t, created.RedirectURL, "wallet token providers do not redirect")

	// both result codes must be SUCCESS
	verified, err := c.VerifyPayment(ctx, Payload{
		"return_code":  "SUCCESS",
		"result_code":  "FAIL",
		"out_trade_no": "order-2",
		"total_fee":    "1990",
	})
	require.NoError(t, err)
	assert.False(t, verified.Verified)

	callback, err := c.HandleCallback(ctx, Payload{
		"return_code":    "SUCCESS",
		"result_code":    "SUCCESS",
		"out_trade_no":   "order-2",
		"total_fee":      "1990",
		"transaction_id": "wx-456",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, callback.Status)
	assert.Equal(t, int64(1990), callback.Amount)
	assert.Equal(t, "wx-456", callback.ProviderPaymentID)
}

func TestApplePayPayloadShape(t *testing.T) {
	c := &applePayClient{}
	ctx := context.Background()

	created, err := c.CreatePayment(ctx, CreatePaymentOptions{
		OrderID:  "order-3",
		Amount:   4990,
		Currency: "usd",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.Payload["merchant_session"])
	assert.Equal(t, "order-3", created.Payload["order_id"])
	assert.Equal(t, "4990", created.Payload["amount"])

	callback, err := c.HandleCallback(ctx, Payload{
		"status_code":            "0",
		"order_id":               "order-3",
		"amount":                 "4990",
		"transaction_identifier": "apl-789",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, callback.Status)
	assert.Equal(t, "apl-789", callback.ProviderOrderID)

	declined, err := c.HandleCallback(ctx, Payload{
		"status_code": "1",
		"order_id":    "order-3",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, declined.Status)
}

func TestStripePayloadShape(t *testing.T) {
	c := &stripeClient{}
	ctx := context.Background()

	verified, err := c.VerifyPayment(ctx, Payload{
		"status":         "succeeded",
		"order_id":       "order-4",
		"amount":         "1990",
		"currency":       "usd",
		"payment_intent": "pi_123",
	})
	require.NoError(t, err)
	assert.True(t, verified.Verified)
	assert.Equal(t, "pi_123", verified.ProviderOrderID)

	callback, err := c.HandleCallback(ctx, Payload{
		"status":         "requires_payment_method",
		"order_id":       "order-4",
		"amount":         "1990",
		"payment_intent": "pi_123",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, callback.Status)
}

func TestPayPalPayloadShape(t *testing.T) {
	c := &payPalClient{}
	ctx := context.Background()

	created, err := c.CreatePayment(ctx, CreatePaymentOptions{
		OrderID:  "order-5",
		Amount:   9900,
		Currency: "usd",
	})
	require.NoError(t, err)
	assert.Equal(t, "order-5", created.Payload["reference_id"])
	assert.Equal(t, "99.00", created.Payload["value"])
	assert.Contains(t, created.RedirectURL, "paypal.com/checkoutnow")

	callback, err := c.HandleCallback(ctx, Payload{
		"status":          "COMPLETED",
		"reference_id":    "order-5",
		"value":           "99.00",
		"paypal_order_id": "pp-1",
		"capture_id":      "cap-1",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, callback.Status)
	assert.Equal(t, int64(9900), callback.Amount)
	assert.Equal(t, "cap-1", callback.ProviderPaymentID)

	// missing amount degrades to zero instead of erroring
	partial, err := c.VerifyPayment(ctx, Payload{
		"status":       "COMPLETED",
		"reference_id": "order-5",
	})
	require.NoError(t, err)
	assert.True(t, partial.Verified)
	assert.Equal(t, int64(0), partial.Amount)
}
