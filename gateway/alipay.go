package gateway

import (
	"context"
	"net/url"

	"github.com/lithammer/shortuuid/v3"
)

// alipayClient is the redirect/QR provider variant. The customer either scans
// the returned QR code or is redirected to the hosted cashier page.
type alipayClient struct{}

var _ Client = &alipayClient{}

func (c *alipayClient) Provider() Provider {
	return ProviderAlipay
}

func (c *alipayClient) CreatePayment(ctx context.Context, opt CreatePaymentOptions) (*CreatePaymentResult, error) {
	qrToken := shortuuid.New()
	payURL := "https://openapi.alipay.com/gateway.do?out_trade_no=" + opt.OrderID
	if len(opt.ReturnURL) > 0 {
		payURL += "&return_url=" + url.QueryEscape(opt.ReturnURL)
	}
	return &CreatePaymentResult{
		Success:  true,
		Provider: ProviderAlipay,
		OrderID:  opt.OrderID,
		Payload: Payload{
			"out_trade_no": opt.OrderID,
			"total_amount": formatDecimal(opt.Amount),
			"subject":      opt.Description,
			"qr_code":      "https://qr.alipay.com/" + qrToken,
			"pay_url":      payURL,
		},
		RedirectURL: payURL,
	}, nil
}

func (c *alipayClient) VerifyPayment(ctx context.Context, payload Payload) (*VerifyResult, error) {
	return &VerifyResult{
		Verified:        payload["trade_status"] == "TRADE_SUCCESS",
		OrderID:         payload["out_trade_no"],
		Amount:          parseDecimal(payload["total_amount"]),
		Currency:        payload["currency"],
		ProviderOrderID: payload["trade_no"],
	}, nil
}

func (c *alipayClient) HandleCallback(ctx context.Context, payload Payload) (*CallbackResult, error) {
	status := StatusFailed
	// exact-match success sentinel; TRADE_FINISHED and friends are not ours
	if payload["trade_status"] == "TRADE_SUCCESS" {
		status = StatusSucceeded
	}
	return &CallbackResult{
		OrderID:           payload["out_trade_no"],
		ProviderOrderID:   payload["trade_no"],
		ProviderPaymentID: payload["trade_no"],
		Amount:            parseDecimal(payload["total_amount"]),
		Status:            status,
	}, nil
}
