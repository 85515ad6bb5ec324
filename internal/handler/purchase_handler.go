package handler

import (
	"net/http"

	"github.com/fashionistas/ticketing/internal/dto"
	"github.com/fashionistas/ticketing/internal/service"
	"github.com/fashionistas/ticketing/pkg/middleware"
	"github.com/fashionistas/ticketing/pkg/response"
	"github.com/gin-gonic/gin"
)

// PurchaseHandler handles purchase validation and commits
type PurchaseHandler struct {
	purchaseService service.PurchaseService
	currency        string
}

// NewPurchaseHandler creates a new PurchaseHandler
func NewPurchaseHandler(purchaseService service.PurchaseService, currency string) *PurchaseHandler {
	return &PurchaseHandler{
		purchaseService: purchaseService,
		currency:        currency,
	}
}

// Validate handles POST /ticket-types/:id/validate.
// A rejected purchase is a 200 with is_valid=false.
func (h *PurchaseHandler) Validate(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized("User ID not found in token"))
		return
	}

	var req dto.QuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	id := c.Param("id")
	result, err := h.purchaseService.Validate(c.Request.Context(), id, userID, req.Quantity)
	if err != nil {
		respondError(c, err, "Failed to validate purchase")
		return
	}
	c.JSON(http.StatusOK, response.Success(dto.FromValidation(id, h.currency, result)))
}

// Purchase handles POST /ticket-types/:id/purchase
func (h *PurchaseHandler) Purchase(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized("User ID not found in token"))
		return
	}

	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	if valid, details := req.Validate(); !valid {
		c.JSON(http.StatusBadRequest, response.ValidationFailed("", details))
		return
	}

	id := c.Param("id")
	result, err := h.purchaseService.Purchase(c.Request.Context(), &service.PurchaseInput{
		TicketTypeID: id,
		BuyerID:      userID,
		Quantity:     req.Quantity,
		Attendees:    req.ToAttendees(),
	})
	if err != nil {
		respondError(c, err, "Failed to complete purchase")
		return
	}

	c.JSON(http.StatusCreated, response.Success(&dto.PurchaseResponse{
		Registration: dto.FromRegistration(result.Registration),
		Quote:        dto.FromQuote(id, result.Registration.Currency, result.Quote),
	}))
}
