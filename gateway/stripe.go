package gateway

import (
	"context"

	extErrors "github.com/pkg/errors"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

// stripeClient is the card/token provider variant. A PaymentIntent is created
// on Stripe and the client secret handed back for the web client to confirm.
type stripeClient struct {
	api *client.API
}

var _ Client = &stripeClient{}

func (c *stripeClient) Provider() Provider {
	return ProviderStripe
}

func (c *stripeClient) CreatePayment(ctx context.Context, opt CreatePaymentOptions) (*CreatePaymentResult, error) {
	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Amount:      stripe.Int64(opt.Amount),
		Currency:    stripe.String(opt.Currency),
		Description: stripe.String(opt.Description),
	}
	params.AddMetadata("order_id", opt.OrderID)
	for k, v := range opt.Metadata {
		params.AddMetadata(k, v)
	}

	intent, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot create PaymentIntent on Stripe")
	}

	return &CreatePaymentResult{
		Success:  true,
		Provider: ProviderStripe,
		OrderID:  opt.OrderID,
		Payload: Payload{
			"payment_intent_id": intent.ID,
			"client_secret":     intent.ClientSecret,
		},
	}, nil
}

func (c *stripeClient) VerifyPayment(ctx context.Context, payload Payload) (*VerifyResult, error) {
	return &VerifyResult{
		Verified:        payload["status"] == string(stripe.PaymentIntentStatusSucceeded),
		OrderID:         payload["order_id"],
		Amount:          parseMinor(payload["amount"]),
		Currency:        payload["currency"],
		ProviderOrderID: payload["payment_intent"],
	}, nil
}

func (c *stripeClient) HandleCallback(ctx context.Context, payload Payload) (*CallbackResult, error) {
	status := StatusFailed
	if payload["status"] == string(stripe.PaymentIntentStatusSucceeded) {
		status = StatusSucceeded
	}
	return &CallbackResult{
		OrderID:           payload["order_id"],
		ProviderOrderID:   payload["payment_intent"],
		ProviderPaymentID: payload["charge_id"],
		Amount:            parseMinor(payload["amount"]),
		Status:            status,
	}, nil
}
