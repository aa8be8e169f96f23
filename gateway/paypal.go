package gateway

import (
	"context"

	"github.com/lithammer/shortuuid/v3"
)

// payPalClient is a redirect provider variant. The customer approves the
// payment on the hosted checkout page reached via the approval URL.
type payPalClient struct{}

var _ Client = &payPalClient{}

func (c *payPalClient) Provider() Provider {
	return ProviderPayPal
}

func (c *payPalClient) CreatePayment(ctx context.Context, opt CreatePaymentOptions) (*CreatePaymentResult, error) {
	token := shortuuid.New()
	approvalURL := "https://www.paypal.com/checkoutnow?token=" + token
	return &CreatePaymentResult{
		Success:  true,
		Provider: ProviderPayPal,
		OrderID:  opt.OrderID,
		Payload: Payload{
			"paypal_order_id": token,
			"reference_id":    opt.OrderID,
			"value":           formatDecimal(opt.Amount),
			"currency_code":   opt.Currency,
			"approval_url":    approvalURL,
		},
		RedirectURL: approvalURL,
	}, nil
}

func (c *payPalClient) VerifyPayment(ctx context.Context, payload Payload) (*VerifyResult, error) {
	return &VerifyResult{
		Verified:        payload["status"] == "COMPLETED",
		OrderID:         payload["reference_id"],
		Amount:          parseDecimal(payload["value"]),
		Currency:        payload["currency_code"],
		ProviderOrderID: payload["paypal_order_id"],
	}, nil
}

func (c *payPalClient) HandleCallback(ctx context.Context, payload Payload) (*CallbackResult, error) {
	status := StatusFailed
	if payload["status"] == "COMPLETED" {
		status = StatusSucceeded
	}
	return &CallbackResult{
		OrderID:           payload["reference_id"],
		ProviderOrderID:   payload["paypal_order_id"],
		ProviderPaymentID: payload["capture_id"],
		Amount:            parseDecimal(payload["value"]),
		Status:            status,
	}, nil
}
