package gateway

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Provider identifies one of the supported external payment networks
type Provider string

// Defining supported Providers
const (
	ProviderAlipay   Provider = "alipay"   // redirect/QR based
	ProviderWechat            = "wechat"   // wallet token based
	ProviderApplePay          = "applepay" // wallet token based
	ProviderStripe            = "stripe"   // card/token based
	ProviderPayPal            = "paypal"   // redirect based
)

// ParseProvider validates a provider string coming from the API boundary
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(s); p {
	case ProviderAlipay, ProviderWechat, ProviderApplePay, ProviderStripe, ProviderPayPal:
		return p, nil
	default:
		return "", errors.Wrap(ErrUnknownProvider, fmt.Sprintf("%q", s))
	}
}

// Defining sentinel errors surfaced to callers
var (
	// ErrGatewayNotEnabled is returned when the target provider is administratively disabled
	ErrGatewayNotEnabled = errors.New("payment gateway is not enabled")
	// ErrUnknownProvider is returned when the provider tag is not recognized
	ErrUnknownProvider = errors.New("unknown payment provider")
)

// Status is the normalized outcome of a provider callback
type Status string

// Defining normalized callback statuses
const (
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Payload is the opaque provider-specific key/value bag exchanged with a
// payment network. Keys intentionally differ between providers; callers must
// not assume a common key set.
type Payload map[string]string

// CreatePaymentOptions carries everything a provider needs to start a payment
type CreatePaymentOptions struct {
	OrderID     string
	Amount      int64 // minor currency unit
	Currency    string
	Description string
	ReturnURL   string
	Metadata    map[string]string
}

// CreatePaymentResult is the normalized result of starting a payment
type CreatePaymentResult struct {
	Success     bool     `json:"success"`
	Provider    Provider `json:"provider"`
	OrderID     string   `json:"orderId"`
	Payload     Payload  `json:"payload"`
	RedirectURL string   `json:"redirectUrl,omitempty"`
}

// VerifyResult is the normalized result of verifying an inbound payload.
// A Verified result with a zero Amount should be treated as suspicious by
// the caller: providers degrade missing fields to zero values.
type VerifyResult struct {
	Verified        bool   `json:"verified"`
	OrderID         string `json:"orderId"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	ProviderOrderID string `json:"providerOrderId"`
}

// CallbackResult is the normalized result of a provider callback
type CallbackResult struct {
	OrderID           string `json:"orderId"`
	ProviderOrderID   string `json:"providerOrderId"`
	ProviderPaymentID string `json:"providerPaymentId"`
	Amount            int64  `json:"amount"`
	Status            Status `json:"status"`
}

// Client is implemented once per provider variant
type Client interface {
	Provider() Provider
	CreatePayment(ctx context.Context, opt CreatePaymentOptions) (*CreatePaymentResult, error)
	VerifyPayment(ctx context.Context, payload Payload) (*VerifyResult, error)
	HandleCallback(ctx context.Context, payload Payload) (*CallbackResult, error)
}
