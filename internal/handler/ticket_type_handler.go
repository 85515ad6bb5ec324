package handler

import (
	"net/http"
	"strconv"

	"github.com/fashionistas/ticketing/internal/dto"
	"github.com/fashionistas/ticketing/internal/service"
	"github.com/fashionistas/ticketing/pkg/middleware"
	"github.com/fashionistas/ticketing/pkg/response"
	"github.com/gin-gonic/gin"
)

// TicketTypeHandler handles ticket type HTTP requests
type TicketTypeHandler struct {
	ticketTypeService service.TicketTypeService
	currency          string
}

// NewTicketTypeHandler creates a new TicketTypeHandler
func NewTicketTypeHandler(ticketTypeService service.TicketTypeService, currency string) *TicketTypeHandler {
	return &TicketTypeHandler{
		ticketTypeService: ticketTypeService,
		currency:          currency,
	}
}

// Create handles POST /events/:id/ticket-types (Admin only)
func (h *TicketTypeHandler) Create(c *gin.Context) {
	var req dto.CreateTicketTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	if valid, msg := req.Validate(); !valid {
		c.JSON(http.StatusBadRequest, response.BadRequest(msg))
		return
	}

	tt, err := h.ticketTypeService.CreateTicketType(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err, "Failed to create ticket type")
		return
	}

	middleware.SetAuditResource(c, "ticket_type", tt.ID)
	middleware.SetAuditNewValues(c, map[string]any{
		"event_id":           tt.EventID,
		"name":               tt.Name,
		"base_price":         dto.Money(tt.BasePrice),
		"quantity_available": tt.QuantityAvailable,
	})
	c.JSON(http.StatusCreated, response.Success(dto.FromTicketType(tt)))
}

// ListByEvent handles GET /events/:id/ticket-types
func (h *TicketTypeHandler) ListByEvent(c *gin.Context) {
	types, err := h.ticketTypeService.ListByEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to list ticket types")
		return
	}
	c.JSON(http.StatusOK, response.Success(dto.FromTicketTypes(types)))
}

// GetByID handles GET /ticket-types/:id
func (h *TicketTypeHandler) GetByID(c *gin.Context) {
	tt, err := h.ticketTypeService.GetTicketType(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to get ticket type")
		return
	}
	c.JSON(http.StatusOK, response.Success(dto.FromTicketType(tt)))
}

// Availability handles GET /ticket-types/:id/availability?quantity=N
func (h *TicketTypeHandler) Availability(c *gin.Context) {
	quantity := 0
	if q := c.Query("quantity"); q != "" {
		parsed, err := strconv.Atoi(q)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, response.BadRequest("Quantity must be a non-negative integer"))
			return
		}
		quantity = parsed
	}

	resp, err := h.ticketTypeService.GetAvailability(c.Request.Context(), c.Param("id"), quantity)
	if err != nil {
		respondError(c, err, "Failed to check availability")
		return
	}
	c.JSON(http.StatusOK, response.Success(resp))
}

// Quote handles POST /ticket-types/:id/quote - prices a quantity at server time
func (h *TicketTypeHandler) Quote(c *gin.Context) {
	var req dto.QuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	id := c.Param("id")
	quote, err := h.ticketTypeService.Quote(c.Request.Context(), id, req.Quantity)
	if err != nil {
		respondError(c, err, "Failed to calculate price")
		return
	}
	c.JSON(http.StatusOK, response.Success(dto.FromQuote(id, h.currency, quote)))
}
