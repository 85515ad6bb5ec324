package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/fashionistas/ticketing/internal/payment"
	"go.uber.org/zap"
)

// paymentService implements the PaymentService interface
type paymentService struct {
	*lifecycle
	gateway payment.Gateway
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(gateway payment.Gateway, deps Deps) PaymentService {
	if gateway == nil {
		gateway = payment.NoopGateway{}
	}
	return &paymentService{
		lifecycle: newLifecycle(deps),
		gateway:   gateway,
	}
}

// CreateIntent opens a payment intent for a pending registration and stores
// its id as the payment reference
func (s *paymentService) CreateIntent(ctx context.Context, registrationID string, caller Caller) (*domain.Registration, *payment.Intent, error) {
	reg, err := s.regs.GetByID(ctx, registrationID)
	if err != nil {
		return nil, nil, err
	}
	if reg == nil || (!caller.IsAdmin && reg.BuyerID != caller.UserID) {
		return nil, nil, ErrRegistrationNotFound
	}
	if reg.PaymentStatus != domain.PaymentStatusPending {
		return nil, nil, ErrRegistrationNotPending
	}
	if !reg.TotalAmount.IsPositive() {
		return nil, nil, ErrNothingToPay
	}

	intent, err := s.gateway.CreateIntent(ctx, &payment.IntentRequest{
		RegistrationID: reg.ID,
		BuyerID:        reg.BuyerID,
		Amount:         reg.TotalAmount,
		Currency:       reg.Currency,
		Description:    fmt.Sprintf("Registration %s (%d tickets)", reg.ID, reg.Quantity),
	})
	if err != nil {
		return nil, nil, err
	}

	if err := s.regs.SetPaymentReference(ctx, reg.ID, intent.ID); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			return nil, nil, ErrRegistrationNotPending
		}
		return nil, nil, err
	}
	reg.PaymentReference = intent.ID

	s.log.InfoContext(ctx, "payment intent created",
		zap.String("registration_id", reg.ID),
		zap.String("payment_intent_id", intent.ID),
		zap.String("gateway", s.gateway.Name()),
	)
	return reg, intent, nil
}

// HandleWebhook verifies a provider event and applies it. Redelivered and
// unknown events are acknowledged without changes.
func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	evt, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}

	log := s.log.WithContext(ctx).WithFields(
		zap.String("webhook_event_id", evt.ID),
		zap.String("webhook_type", evt.ProviderType),
	)
	if evt.Type == payment.WebhookIgnored {
		log.Debug("webhook event ignored")
		return nil
	}

	reg, err := s.findRegistration(ctx, evt)
	if err != nil {
		return err
	}
	if reg == nil {
		log.Warn("webhook for unknown registration",
			zap.String("registration_id", evt.RegistrationID),
			zap.String("payment_intent_id", evt.IntentID),
		)
		return nil
	}
	if reg.PaymentReference != "" && reg.PaymentReference != evt.IntentID {
		log.Warn("webhook intent does not match registration",
			zap.String("registration_id", reg.ID),
			zap.String("payment_intent_id", evt.IntentID),
		)
		return nil
	}
	if reg.PaymentStatus == domain.PaymentStatusFailed && evt.Type == payment.WebhookPaymentSucceeded {
		return s.refundLatePayment(ctx, reg, evt)
	}
	if reg.PaymentStatus != domain.PaymentStatusPending {
		log.Info("webhook for settled registration", zap.String("registration_id", reg.ID))
		return nil
	}

	to, reason := domain.PaymentStatusCompleted, "payment succeeded"
	if evt.Type == payment.WebhookPaymentFailed {
		to, reason = domain.PaymentStatusFailed, "payment failed"
		if evt.FailureMessage != "" {
			reason = "payment failed: " + evt.FailureMessage
		}
	}

	if _, err := s.transition(ctx, reg, to, reason, ActorPayment); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			log.Info("registration settled concurrently", zap.String("registration_id", reg.ID))
			return nil
		}
		return err
	}
	return nil
}

// refundLatePayment returns money captured after the registration failed,
// typically once the expiry worker has released its tickets. An error makes
// the provider redeliver the webhook; the idempotency key keeps the retries
// to a single refund.
func (s *paymentService) refundLatePayment(ctx context.Context, reg *domain.Registration, evt *payment.WebhookEvent) error {
	intentID := evt.IntentID
	if intentID == "" {
		intentID = reg.PaymentReference
	}
	if intentID == "" {
		return nil
	}

	s.log.WarnContext(ctx, "payment captured for failed registration, refunding",
		zap.String("registration_id", reg.ID),
		zap.String("payment_intent_id", intentID),
	)
	if err := s.gateway.Refund(ctx, intentID, "late-payment-"+reg.ID); err != nil {
		s.log.ErrorContext(ctx, "refund of late payment failed",
			zap.String("registration_id", reg.ID),
			zap.String("payment_intent_id", intentID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrRefundFailed, err)
	}
	return nil
}

func (s *paymentService) findRegistration(ctx context.Context, evt *payment.WebhookEvent) (*domain.Registration, error) {
	if evt.RegistrationID != "" {
		reg, err := s.regs.GetByID(ctx, evt.RegistrationID)
		if err != nil || reg != nil {
			return reg, err
		}
	}
	if evt.IntentID == "" {
		return nil, nil
	}
	return s.regs.GetByPaymentReference(ctx, evt.IntentID)
}
