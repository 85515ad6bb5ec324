package service

import (
	"context"
	"errors"
	"time"

	"github.com/fashionistas/ticketing/internal/domain"
	"go.uber.org/zap"
)

// ExpiryConfig bounds the pending payment window
type ExpiryConfig struct {
	PendingTTL time.Duration
	BatchSize  int
}

type expiryService struct {
	*lifecycle
	config ExpiryConfig
}

// NewExpiryService creates a new ExpiryService
func NewExpiryService(deps Deps, config ExpiryConfig) ExpiryService {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.PendingTTL <= 0 {
		config.PendingTTL = 30 * time.Minute
	}
	return &expiryService{lifecycle: newLifecycle(deps), config: config}
}

// ExpirePending fails one batch of pending registrations older than the TTL.
// Their tickets return to stock through the failed transition.
func (s *expiryService) ExpirePending(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.config.PendingTTL)
	pending, err := s.regs.ListPendingBefore(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		return 0, err
	}

	var (
		expired int
		errs    []error
	)
	for _, reg := range pending {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		_, err := s.transition(ctx, reg, domain.PaymentStatusFailed, "payment window expired", ActorExpiry)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, domain.ErrStatusConflict):
			// settled by a webhook in the meantime
		default:
			s.log.ErrorContext(ctx, "failed to expire registration",
				zap.String("registration_id", reg.ID),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return expired, errors.Join(errs...)
}
