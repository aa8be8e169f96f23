package gateway

import (
	"context"

	"github.com/lithammer/shortuuid/v3"
)

// applePayClient is the second wallet-token provider variant. The client
// receives a merchant session reference and completes the payment inside the
// wallet sheet; status is reported back as a numeric code.
type applePayClient struct{}

var _ Client = &applePayClient{}

func (c *applePayClient) Provider() Provider {
	return ProviderApplePay
}

func (c *applePayClient) CreatePayment(ctx context.Context, opt CreatePaymentOptions) (*CreatePaymentResult, error) {
	return &CreatePaymentResult{
		Success:  true,
		Provider: ProviderApplePay,
		OrderID:  opt.OrderID,
		Payload: Payload{
			"merchant_session":    shortuuid.New(),
			"merchant_identifier": "merchant.com.promptdeck",
			"order_id":            opt.OrderID,
			"amount":              formatMinor(opt.Amount),
			"currency_code":       opt.Currency,
			"label":               opt.Description,
		},
	}, nil
}

func (c *applePayClient) VerifyPayment(ctx context.Context, payload Payload) (*VerifyResult, error) {
	return &VerifyResult{
		Verified:        payload["status_code"] == "0",
		OrderID:         payload["order_id"],
		Amount:          parseMinor(payload["amount"]),
		Currency:        payload["currency_code"],
		ProviderOrderID: payload["transaction_identifier"],
	}, nil
}

func (c *applePayClient) HandleCallback(ctx context.Context, payload Payload) (*CallbackResult, error) {
	status := StatusFailed
	// Apple reports a numeric status code, 0 meaning success
	if payload["status_code"] == "0" {
		status = StatusSucceeded
	}
	return &CallbackResult{
		OrderID:           payload["order_id"],
		ProviderOrderID:   payload["transaction_identifier"],
		ProviderPaymentID: payload["transaction_identifier"],
		Amount:            parseMinor(payload["amount"]),
		Status:            status,
	}, nil
}
