package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys
const (
	AttrTicketTypeID  = "ticket_type.id"
	AttrEventID       = "event.id"
	AttrOutcome       = "purchase.outcome"
	AttrPricingTier   = "pricing.tier"
	AttrFromStatus    = "registration.from_status"
	AttrToStatus      = "registration.to_status"
	AttrPaymentStatus = "registration.payment_status"
)

// Purchase outcomes
const (
	OutcomeCommitted          = "committed"
	OutcomeInsufficientStock  = "insufficient_stock"
	OutcomeRegistrationClosed = "registration_closed"
	OutcomeInvalid            = "invalid"
	OutcomeError              = "error"
)

func TicketTypeAttr(id string) attribute.KeyValue { return attribute.String(AttrTicketTypeID, id) }
func EventAttr(id string) attribute.KeyValue      { return attribute.String(AttrEventID, id) }
func OutcomeAttr(o string) attribute.KeyValue     { return attribute.String(AttrOutcome, o) }
func TierAttr(tier string) attribute.KeyValue     { return attribute.String(AttrPricingTier, tier) }

// PurchaseMetrics records purchase flow instruments
type PurchaseMetrics struct {
	purchases   metric.Int64Counter
	conflicts   metric.Int64Counter
	ticketsSold metric.Int64Counter
	transitions metric.Int64Counter
	amount      metric.Float64Histogram
}

// NewPurchaseMetrics creates the purchase instruments on meter.
// A nil meter uses the global one.
func NewPurchaseMetrics(meter metric.Meter) (*PurchaseMetrics, error) {
	if meter == nil {
		meter = GetMeter()
	}

	purchases, err := meter.Int64Counter("ticketing.purchases",
		metric.WithDescription("Purchase attempts by outcome"),
		metric.WithUnit("{purchase}"))
	if err != nil {
		return nil, err
	}
	conflicts, err := meter.Int64Counter("ticketing.inventory.conflicts",
		metric.WithDescription("Commits rejected by the conditional inventory decrement"),
		metric.WithUnit("{conflict}"))
	if err != nil {
		return nil, err
	}
	ticketsSold, err := meter.Int64Counter("ticketing.tickets.sold",
		metric.WithDescription("Tickets committed to registrations"),
		metric.WithUnit("{ticket}"))
	if err != nil {
		return nil, err
	}
	transitions, err := meter.Int64Counter("ticketing.registration.transitions",
		metric.WithDescription("Registration payment status transitions"),
		metric.WithUnit("{transition}"))
	if err != nil {
		return nil, err
	}
	amount, err := meter.Float64Histogram("ticketing.purchase.amount",
		metric.WithDescription("Total amount of committed purchases"),
		metric.WithExplicitBucketBoundaries(0, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000))
	if err != nil {
		return nil, err
	}

	return &PurchaseMetrics{
		purchases:   purchases,
		conflicts:   conflicts,
		ticketsSold: ticketsSold,
		transitions: transitions,
		amount:      amount,
	}, nil
}

// RecordPurchase counts one purchase attempt
func (m *PurchaseMetrics) RecordPurchase(ctx context.Context, ticketTypeID, outcome string) {
	if m == nil {
		return
	}
	m.purchases.Add(ctx, 1, metric.WithAttributes(TicketTypeAttr(ticketTypeID), OutcomeAttr(outcome)))
}

// RecordCommit records a committed purchase
func (m *PurchaseMetrics) RecordCommit(ctx context.Context, ticketTypeID, tier string, quantity int, total float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(TicketTypeAttr(ticketTypeID), TierAttr(tier))
	m.ticketsSold.Add(ctx, int64(quantity), attrs)
	m.amount.Record(ctx, total, attrs)
}

// RecordConflict counts a lost inventory race
func (m *PurchaseMetrics) RecordConflict(ctx context.Context, ticketTypeID string) {
	if m == nil {
		return
	}
	m.conflicts.Add(ctx, 1, metric.WithAttributes(TicketTypeAttr(ticketTypeID)))
}

// RecordTransition counts a registration status change
func (m *PurchaseMetrics) RecordTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrFromStatus, from),
		attribute.String(AttrToStatus, to),
	))
}
