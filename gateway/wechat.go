package gateway

import (
	"context"

	"github.com/lithammer/shortuuid/v3"
)

// wechatClient is a wallet-token provider variant. CreatePayment yields a
// prepay token that the mobile client hands to the wallet SDK; there is no
// redirect URL.
type wechatClient struct{}

var _ Client = &wechatClient{}

func (c *wechatClient) Provider() Provider {
	return ProviderWechat
}

func (c *wechatClient) CreatePayment(ctx context.Context, opt CreatePaymentOptions) (*CreatePaymentResult, error) {
	nonce := shortuuid.New()
	return &CreatePaymentResult{
		Success:  true,
		Provider: ProviderWechat,
		OrderID:  opt.OrderID,
		Payload: Payload{
			"prepay_id": "wx" + shortuuid.New(),
			"nonce_str": nonce,
			"package":   "Sign=WXPay",
			"body":      opt.Description,
			"total_fee": formatMinor(opt.Amount),
			"code_url":  "weixin://wxpay/bizpayurl?pr=" + nonce,
		},
	}, nil
}

func (c *wechatClient) VerifyPayment(ctx context.Context, payload Payload) (*VerifyResult, error) {
	return &VerifyResult{
		Verified:        payload["return_code"] == "SUCCESS" && payload["result_code"] == "SUCCESS",
		OrderID:         payload["out_trade_no"],
		Amount:          parseMinor(payload["total_fee"]),
		Currency:        payload["fee_type"],
		ProviderOrderID: payload["transaction_id"],
	}, nil
}

func (c *wechatClient) HandleCallback(ctx context.Context, payload Payload) (*CallbackResult, error) {
	status := StatusFailed
	if payload["return_code"] == "SUCCESS" && payload["result_code"] == "SUCCESS" {
		status = StatusSucceeded
	}
	return &CallbackResult{
		OrderID:           payload["out_trade_no"],
		ProviderOrderID:   payload["transaction_id"],
		ProviderPaymentID: payload["transaction_id"],
		Amount:            parseMinor(payload["total_fee"]),
		Status:            status,
	}, nil
}
