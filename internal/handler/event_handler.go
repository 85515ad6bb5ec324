package handler

import (
	"net/http"

	"github.com/fashionistas/ticketing/internal/domain"
	"github.com/fashionistas/ticketing/internal/dto"
	"github.com/fashionistas/ticketing/internal/service"
	"github.com/fashionistas/ticketing/pkg/middleware"
	"github.com/fashionistas/ticketing/pkg/response"
	"github.com/gin-gonic/gin"
)

// EventHandler handles event-related HTTP requests
type EventHandler struct {
	eventService service.EventService
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(eventService service.EventService) *EventHandler {
	return &EventHandler{
		eventService: eventService,
	}
}

// List handles GET /events - lists published events
func (h *EventHandler) List(c *gin.Context) {
	var filter dto.EventListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid query parameters"))
		return
	}
	filter.Status = domain.EventStatusPublished
	h.list(c, &filter)
}

// ListAll handles GET /admin/events - lists events in any status (Admin only)
func (h *EventHandler) ListAll(c *gin.Context) {
	var filter dto.EventListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid query parameters"))
		return
	}
	switch filter.Status {
	case "", domain.EventStatusDraft, domain.EventStatusPublished, domain.EventStatusCancelled:
	default:
		c.JSON(http.StatusBadRequest, response.BadRequest("Unknown event status"))
		return
	}
	h.list(c, &filter)
}

func (h *EventHandler) list(c *gin.Context, filter *dto.EventListFilter) {
	events, total, err := h.eventService.ListEvents(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "Failed to list events")
		return
	}
	c.JSON(http.StatusOK, response.Paginated(dto.FromEvents(events), filter.Limit, filter.Offset, total))
}

// GetByID handles GET /events/:id - drafts are hidden from the public
func (h *EventHandler) GetByID(c *gin.Context) {
	event, err := h.eventService.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to get event")
		return
	}
	if event.Status == domain.EventStatusDraft {
		c.JSON(http.StatusNotFound, response.NotFound("Event not found"))
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.FromEvent(event)))
}

// Create handles POST /events - creates a draft event (Admin only)
func (h *EventHandler) Create(c *gin.Context) {
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	if valid, msg := req.Validate(); !valid {
		c.JSON(http.StatusBadRequest, response.BadRequest(msg))
		return
	}

	event, err := h.eventService.CreateEvent(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to create event")
		return
	}

	middleware.SetAuditResource(c, "event", event.ID)
	middleware.SetAuditNewValues(c, map[string]any{
		"title":                 event.Title,
		"venue":                 event.Venue,
		"capacity":              event.Capacity,
		"start_at":              event.StartAt,
		"registration_deadline": event.RegistrationDeadline,
	})
	c.JSON(http.StatusCreated, response.Success(dto.FromEvent(event)))
}

// Update handles PUT /events/:id - updates an event (Admin only)
func (h *EventHandler) Update(c *gin.Context) {
	var req dto.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	if valid, msg := req.Validate(); !valid {
		c.JSON(http.StatusBadRequest, response.BadRequest(msg))
		return
	}

	event, err := h.eventService.UpdateEvent(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err, "Failed to update event")
		return
	}

	middleware.SetAuditNewValues(c, changedFields(&req))
	c.JSON(http.StatusOK, response.Success(dto.FromEvent(event)))
}

// Publish handles POST /events/:id/publish - opens an event for registration (Admin only)
func (h *EventHandler) Publish(c *gin.Context) {
	event, err := h.eventService.PublishEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to publish event")
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithMessage("Event published", dto.FromEvent(event)))
}

func changedFields(req *dto.UpdateEventRequest) map[string]any {
	fields := map[string]any{}
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Venue != nil {
		fields["venue"] = *req.Venue
	}
	if req.Capacity != nil {
		fields["capacity"] = *req.Capacity
	}
	if req.StartAt != nil {
		fields["start_at"] = *req.StartAt
	}
	if req.EndAt != nil {
		fields["end_at"] = *req.EndAt
	}
	if req.RegistrationDeadline != nil {
		fields["registration_deadline"] = *req.RegistrationDeadline
	}
	return fields
}
