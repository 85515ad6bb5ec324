package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/webhook"
)

// MetadataRegistrationID is the intent metadata key linking back to the registration
const MetadataRegistrationID = "registration_id"

// StripeConfig holds Stripe credentials
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// Backend overrides the API backend; tests point it at a local server
	Backend stripe.Backend
}

// StripeGateway implements Gateway with Stripe PaymentIntents
type StripeGateway struct {
	intents       paymentintent.Client
	refunds       refund.Client
	webhookSecret string
}

// NewStripeGateway creates a Stripe gateway
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	backend := cfg.Backend
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &StripeGateway{
		intents:       paymentintent.Client{B: backend, Key: cfg.SecretKey},
		refunds:       refund.Client{B: backend, Key: cfg.SecretKey},
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

func (g *StripeGateway) Name() string { return "stripe" }

// CreateIntent creates a PaymentIntent keyed by the registration id
func (g *StripeGateway) CreateIntent(ctx context.Context, req *IntentRequest) (*Intent, error) {
	currency := strings.ToLower(req.Currency)
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(ToMinorUnits(req.Amount, currency)),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx
	params.SetIdempotencyKey("intent-" + req.RegistrationID)
	params.AddMetadata(MetadataRegistrationID, req.RegistrationID)
	params.AddMetadata("buyer_id", req.BuyerID)

	pi, err := g.intents.New(params)
	if err != nil {
		return nil, wrapStripeError("create payment intent", err)
	}
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

// Refund refunds the full amount of a PaymentIntent
func (g *StripeGateway) Refund(ctx context.Context, intentID, idempotencyKey string) error {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(intentID)}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey("refund-" + idempotencyKey)
	}
	if _, err := g.refunds.New(params); err != nil {
		return wrapStripeError("refund payment intent", err)
	}
	return nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes intent events
func (g *StripeGateway) ParseWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &WebhookEvent{
		ID:           event.ID,
		Type:         WebhookIgnored,
		ProviderType: string(event.Type),
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		out.Type = WebhookPaymentSucceeded
	case stripe.EventTypePaymentIntentPaymentFailed:
		out.Type = WebhookPaymentFailed
	default:
		return out, nil
	}

	if event.Data == nil {
		return nil, fmt.Errorf("decode %s: missing data", event.Type)
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode %s: %w", event.Type, err)
	}
	out.IntentID = pi.ID
	out.RegistrationID = pi.Metadata[MetadataRegistrationID]
	if pi.LastPaymentError != nil {
		out.FailureMessage = pi.LastPaymentError.Msg
	}
	return out, nil
}

func wrapStripeError(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return fmt.Errorf("%w: %s: %s (%s)", ErrProvider, op, se.Msg, se.Code)
	}
	return fmt.Errorf("%w: %s: %v", ErrProvider, op, err)
}
