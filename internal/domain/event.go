package domain

import (
	"fmt"
	"time"
)

// Event represents a single fashion show
type Event struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Venue                string     `json:"venue"`
	Capacity             int        `json:"capacity"`
	StartAt              time.Time  `json:"start_at"`
	EndAt                time.Time  `json:"end_at"`
	RegistrationDeadline time.Time  `json:"registration_deadline"`
	Status               string     `json:"status"` // draft, published, cancelled
	PublishedAt          *time.Time `json:"published_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// EventStatus constants
const (
	EventStatusDraft     = "draft"
	EventStatusPublished = "published"
	EventStatusCancelled = "cancelled"
)

// Validate checks the event invariants
func (e *Event) Validate() error {
	if e.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidEvent)
	}
	if e.Venue == "" {
		return fmt.Errorf("%w: venue is required", ErrInvalidEvent)
	}
	if e.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive", ErrInvalidEvent)
	}
	if !e.EndAt.After(e.StartAt) {
		return fmt.Errorf("%w: end_at must be after start_at", ErrInvalidEvent)
	}
	if e.RegistrationDeadline.IsZero() {
		return fmt.Errorf("%w: registration_deadline is required", ErrInvalidEvent)
	}
	if e.RegistrationDeadline.After(e.StartAt) {
		return fmt.Errorf("%w: registration_deadline must be at or before start_at", ErrInvalidEvent)
	}
	return nil
}

// IsOpenForRegistration reports whether buyers may purchase tickets at the given instant
func (e *Event) IsOpenForRegistration(now time.Time) bool {
	return e.Status == EventStatusPublished && !now.After(e.RegistrationDeadline)
}

// ScheduleChanged reports whether other differs from e in any field that is
// frozen once tickets have been sold.
func (e *Event) ScheduleChanged(other *Event) bool {
	return e.Capacity != other.Capacity ||
		!e.StartAt.Equal(other.StartAt) ||
		!e.EndAt.Equal(other.EndAt) ||
		!e.RegistrationDeadline.Equal(other.RegistrationDeadline)
}
