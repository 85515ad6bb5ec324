// Package payment talks to the card payment provider.
package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrPaymentsDisabled is returned by the no-op gateway
	ErrPaymentsDisabled = errors.New("payments are disabled")
	// ErrInvalidSignature is returned when a webhook payload fails verification
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrProvider wraps failures reported by the payment provider
	ErrProvider = errors.New("payment provider error")
)

// Gateway creates and refunds payment intents and verifies provider webhooks
type Gateway interface {
	// CreateIntent opens a payment intent for a pending registration.
	// Repeating the call for the same registration returns the same intent.
	CreateIntent(ctx context.Context, req *IntentRequest) (*Intent, error)

	// Refund returns the full amount captured by an intent
	Refund(ctx context.Context, intentID, idempotencyKey string) error

	// ParseWebhook verifies the signature header and decodes the event
	ParseWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error)

	// Name returns the gateway name
	Name() string
}

// IntentRequest describes the amount owed for one registration
type IntentRequest struct {
	RegistrationID string
	BuyerID        string
	Amount         decimal.Decimal
	Currency       string
	Description    string
}

// Intent is a provider payment intent
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountMinor  int64
	Currency     string
}

// WebhookEventType is the normalized kind of a provider event
type WebhookEventType string

const (
	WebhookPaymentSucceeded WebhookEventType = "payment_succeeded"
	WebhookPaymentFailed    WebhookEventType = "payment_failed"
	WebhookIgnored          WebhookEventType = "ignored"
)

// WebhookEvent is a verified provider event reduced to what the service needs
type WebhookEvent struct {
	ID             string
	Type           WebhookEventType
	ProviderType   string
	IntentID       string
	RegistrationID string
	FailureMessage string
}

// Currencies whose smallest unit is the major unit
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true,
	"kmf": true, "krw": true, "mga": true, "pyg": true, "rwf": true,
	"ugx": true, "vnd": true, "vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// ToMinorUnits converts a decimal amount into the provider's integer amount
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts a provider integer amount back to a decimal
func FromMinorUnits(amount int64, currency string) decimal.Decimal {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return decimal.NewFromInt(amount)
	}
	return decimal.New(amount, -2)
}

// NoopGateway is used when no payment provider is configured
type NoopGateway struct{}

func (NoopGateway) CreateIntent(context.Context, *IntentRequest) (*Intent, error) {
	return nil, ErrPaymentsDisabled
}

// Refund succeeds trivially; without a provider no intent was ever captured
func (NoopGateway) Refund(context.Context, string, string) error { return nil }

func (NoopGateway) ParseWebhook([]byte, string) (*WebhookEvent, error) {
	return nil, ErrPaymentsDisabled
}

func (NoopGateway) Name() string { return "noop" }
