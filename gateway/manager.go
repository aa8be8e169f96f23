package gateway

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v72/client"
	"go.uber.org/zap"
)

// ManagerOptions contains the configuration for the gateway Manager
type ManagerOptions struct {
	StripeClient *client.API
	Logger       *zap.Logger
	Enabled      []Provider // administratively enabled providers
}

// Manager normalizes create/verify/callback operations across the provider
// variants behind one front
type Manager struct {
	ManagerOptions
	clients map[Provider]Client
	enabled map[Provider]bool
}

// NewManager returns a Manager with every supported provider registered
func NewManager(option ManagerOptions) (*Manager, error) {
	if option.StripeClient == nil {
		return nil, fmt.Errorf("nil StripeClient is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}

	clients := make(map[Provider]Client)
	for _, c := range []Client{
		&alipayClient{},
		&wechatClient{},
		&applePayClient{},
		&stripeClient{api: option.StripeClient},
		&payPalClient{},
	} {
		clients[c.Provider()] = c
	}

	enabled := make(map[Provider]bool)
	for _, p := range option.Enabled {
		if _, ok := clients[p]; !ok {
			return nil, fmt.Errorf("cannot enable unsupported provider %q", p)
		}
		enabled[p] = true
	}

	return &Manager{
		ManagerOptions: option,
		clients:        clients,
		enabled:        enabled,
	}, nil
}

// IsAvailable reports whether the provider is known and enabled
func (m *Manager) IsAvailable(p Provider) bool {
	if _, ok := m.clients[p]; !ok {
		return false
	}
	return m.enabled[p]
}

// AvailableProviders returns the enabled providers for capability discovery
func (m *Manager) AvailableProviders() []Provider {
	available := make([]Provider, 0, len(m.enabled))
	for _, p := range []Provider{ProviderAlipay, ProviderWechat, ProviderApplePay, ProviderStripe, ProviderPayPal} {
		if m.enabled[p] {
			available = append(available, p)
		}
	}
	return available
}

func (m *Manager) client(p Provider) (Client, error) {
	c, ok := m.clients[p]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return c, nil
}

// CreatePayment starts a payment with the target provider
func (m *Manager) CreatePayment(ctx context.Context, p Provider, opt CreatePaymentOptions) (*CreatePaymentResult, error) {
	c, err := m.client(p)
	if err != nil {
		return nil, err
	}
	if !m.enabled[p] {
		return nil, ErrGatewayNotEnabled
	}
	result, err := c.CreatePayment(ctx, opt)
	if err != nil {
		m.Logger.Error("Provider returned error on CreatePayment",
			zap.String("Provider", string(p)),
			zap.String("OrderID", opt.OrderID),
			zap.Error(err),
		)
		return nil, err
	}
	return result, nil
}

// VerifyPayment extracts and verifies the payment fields of an inbound payload
func (m *Manager) VerifyPayment(ctx context.Context, p Provider, payload Payload) (*VerifyResult, error) {
	c, err := m.client(p)
	if err != nil {
		return nil, err
	}
	if !m.enabled[p] {
		return nil, ErrGatewayNotEnabled
	}
	return c.VerifyPayment(ctx, payload)
}

// HandleCallback normalizes an asynchronous provider notification. Callbacks
// are accepted even for disabled providers so in-flight payments can settle.
func (m *Manager) HandleCallback(ctx context.Context, p Provider, payload Payload) (*CallbackResult, error) {
	c, err := m.client(p)
	if err != nil {
		return nil, err
	}
	return c.HandleCallback(ctx, payload)
}
