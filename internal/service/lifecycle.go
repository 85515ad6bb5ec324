package service

import (
	"context"
	"time"

	"github.com/fashionistas/ticketing/internal/cache"
	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/fashionistas/ticketing/internal/events"
	"github.com/fashionistas/ticketing/internal/repository"
	"github.com/fashionistas/ticketing/pkg/logger"
	"github.com/fashionistas/ticketing/pkg/telemetry"
	"go.uber.org/zap"
)

// Actors recorded in the status history
const (
	ActorSystem  = "system"
	ActorPayment = "payment"
	ActorExpiry  = "expiry"
)

// lifecycle applies registration status transitions and their side effects.
// It is shared by every service that moves a registration.
type lifecycle struct {
	regs      repository.RegistrationRepository
	cache     cache.AvailabilityCache
	publisher events.Publisher
	metrics   *telemetry.PurchaseMetrics
	log       *logger.Logger
	now       func() time.Time
}

// Deps bundles the collaborators the registration services share
type Deps struct {
	Registrations repository.RegistrationRepository
	Cache         cache.AvailabilityCache
	Publisher     events.Publisher
	Metrics       *telemetry.PurchaseMetrics
	Log           *logger.Logger
}

func newLifecycle(d Deps) *lifecycle {
	l := &lifecycle{
		regs:      d.Registrations,
		cache:     d.Cache,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		log:       d.Log,
		now:       time.Now,
	}
	if l.cache == nil {
		l.cache = cache.NoopAvailabilityCache{}
	}
	if l.log == nil {
		l.log = logger.NewNop()
	}
	if l.publisher == nil {
		l.publisher = events.NewLogPublisher(l.log)
	}
	return l
}

// transition moves reg to status `to`. The store rejects the move with
// domain.ErrStatusConflict when someone else changed the status first.
func (l *lifecycle) transition(ctx context.Context, reg *domain.Registration, to domain.PaymentStatus, reason, actor string) (*domain.Registration, error) {
	t, err := domain.NewStatusTransition(reg, to, reason, actor, l.now())
	if err != nil {
		return nil, err
	}

	updated, err := l.regs.ApplyTransition(ctx, t)
	if err != nil {
		return nil, err
	}

	if to.ReleasesInventory() {
		l.invalidate(ctx, updated.TicketTypeID)
	}
	l.metrics.RecordTransition(ctx, string(t.FromStatus), string(t.ToStatus))
	l.publish(ctx, events.TopicForStatus(to), updated, reason)

	l.log.InfoContext(ctx, "registration status changed",
		zap.String("registration_id", updated.ID),
		zap.String("from", string(t.FromStatus)),
		zap.String("to", string(t.ToStatus)),
		zap.String("actor", actor),
	)
	return updated, nil
}

// publish never fails the caller; lost events are logged
func (l *lifecycle) publish(ctx context.Context, topic string, reg *domain.Registration, reason string) {
	evt := events.NewRegistrationEvent(topic, reg, reason, l.now())
	if err := l.publisher.Publish(ctx, evt); err != nil {
		l.log.ErrorContext(ctx, "failed to publish registration event",
			zap.String("topic", topic),
			zap.String("registration_id", reg.ID),
			zap.Error(err),
		)
	}
}

func (l *lifecycle) invalidate(ctx context.Context, ticketTypeID string) {
	if err := l.cache.Invalidate(ctx, ticketTypeID); err != nil {
		l.log.WarnContext(ctx, "availability cache invalidation failed",
			zap.String("ticket_type_id", ticketTypeID),
			zap.Error(err),
		)
	}
}
