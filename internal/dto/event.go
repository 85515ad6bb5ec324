package dto

import (
	"time"

	"github.com/fashionistas/ticketing/internal/domain"
)

// timeLayout is used for every timestamp in responses
const timeLayout = time.RFC3339

// CreateEventRequest represents the request to create a new event
type CreateEventRequest struct {
	Title                string    `json:"title" binding:"required,max=200"`
	Description          string    `json:"description" binding:"max=5000"`
	Venue                string    `json:"venue" binding:"required,max=200"`
	Capacity             int       `json:"capacity" binding:"required,gt=0"`
	StartAt              time.Time `json:"start_at" binding:"required"`
	EndAt                time.Time `json:"end_at" binding:"required"`
	RegistrationDeadline time.Time `json:"registration_deadline" binding:"required"`
}

// Validate validates the CreateEventRequest
func (r *CreateEventRequest) Validate() (bool, string) {
	if r.Title == "" {
		return false, "Title is required"
	}
	if r.Venue == "" {
		return false, "Venue is required"
	}
	if r.Capacity <= 0 {
		return false, "Capacity must be positive"
	}
	if r.StartAt.IsZero() || r.EndAt.IsZero() {
		return false, "Start and end time are required"
	}
	if !r.EndAt.After(r.StartAt) {
		return false, "End time must be after start time"
	}
	if r.RegistrationDeadline.IsZero() {
		return false, "Registration deadline is required"
	}
	if r.RegistrationDeadline.After(r.StartAt) {
		return false, "Registration deadline must be at or before start time"
	}
	return true, ""
}

// ToEvent builds a draft event from the request
func (r *CreateEventRequest) ToEvent() *domain.Event {
	return &domain.Event{
		Title:                r.Title,
		Description:          r.Description,
		Venue:                r.Venue,
		Capacity:             r.Capacity,
		StartAt:              r.StartAt,
		EndAt:                r.EndAt,
		RegistrationDeadline: r.RegistrationDeadline,
		Status:               domain.EventStatusDraft,
	}
}

// UpdateEventRequest carries only the fields being changed
type UpdateEventRequest struct {
	Title                *string    `json:"title"`
	Description          *string    `json:"description"`
	Venue                *string    `json:"venue"`
	Capacity             *int       `json:"capacity"`
	StartAt              *time.Time `json:"start_at"`
	EndAt                *time.Time `json:"end_at"`
	RegistrationDeadline *time.Time `json:"registration_deadline"`
}

// Validate validates the UpdateEventRequest
func (r *UpdateEventRequest) Validate() (bool, string) {
	if r.Title == nil && r.Description == nil && r.Venue == nil && r.Capacity == nil &&
		r.StartAt == nil && r.EndAt == nil && r.RegistrationDeadline == nil {
		return false, "At least one field must be provided for update"
	}
	if r.Title != nil && *r.Title == "" {
		return false, "Title must not be empty"
	}
	if r.Venue != nil && *r.Venue == "" {
		return false, "Venue must not be empty"
	}
	return true, ""
}

// Apply copies the provided fields onto a copy of e
func (r *UpdateEventRequest) Apply(e *domain.Event) *domain.Event {
	updated := *e
	if r.Title != nil {
		updated.Title = *r.Title
	}
	if r.Description != nil {
		updated.Description = *r.Description
	}
	if r.Venue != nil {
		updated.Venue = *r.Venue
	}
	if r.Capacity != nil {
		updated.Capacity = *r.Capacity
	}
	if r.StartAt != nil {
		updated.StartAt = *r.StartAt
	}
	if r.EndAt != nil {
		updated.EndAt = *r.EndAt
	}
	if r.RegistrationDeadline != nil {
		updated.RegistrationDeadline = *r.RegistrationDeadline
	}
	return &updated
}

// EventResponse represents the response for an event
type EventResponse struct {
	ID                   string `json:"id"`
	Title                string `json:"title"`
	Description          string `json:"description"`
	Venue                string `json:"venue"`
	Capacity             int    `json:"capacity"`
	StartAt              string `json:"start_at"`
	EndAt                string `json:"end_at"`
	RegistrationDeadline string `json:"registration_deadline"`
	Status               string `json:"status"`
	PublishedAt          string `json:"published_at,omitempty"`
	CreatedAt            string `json:"created_at"`
	UpdatedAt            string `json:"updated_at"`
}

// FromEvent converts a domain Event to EventResponse
func FromEvent(e *domain.Event) *EventResponse {
	resp := &EventResponse{
		ID:                   e.ID,
		Title:                e.Title,
		Description:          e.Description,
		Venue:                e.Venue,
		Capacity:             e.Capacity,
		StartAt:              e.StartAt.Format(timeLayout),
		EndAt:                e.EndAt.Format(timeLayout),
		RegistrationDeadline: e.RegistrationDeadline.Format(timeLayout),
		Status:               e.Status,
		CreatedAt:            e.CreatedAt.Format(timeLayout),
		UpdatedAt:            e.UpdatedAt.Format(timeLayout),
	}
	if e.PublishedAt != nil {
		resp.PublishedAt = e.PublishedAt.Format(timeLayout)
	}
	return resp
}

// FromEvents converts a slice of events
func FromEvents(events []*domain.Event) []*EventResponse {
	out := make([]*EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, FromEvent(e))
	}
	return out
}

// EventListFilter represents filters for listing events
type EventListFilter struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// SetDefaults sets default values for pagination
func (f *EventListFilter) SetDefaults() {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// PageQuery is the pagination query of list endpoints
type PageQuery struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// SetDefaults sets default values for pagination
func (p *PageQuery) SetDefaults() {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 20
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}
