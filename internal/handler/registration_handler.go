package handler

import (
	"errors"
	"net/http"

	"github.com/fashionistas/ticketing/internal/dto"
	"github.com/fashionistas/ticketing/internal/service"
	"github.com/fashionistas/ticketing/pkg/middleware"
	"github.com/fashionistas/ticketing/pkg/response"
	"github.com/gin-gonic/gin"
)

// RegistrationHandler handles registration HTTP requests
type RegistrationHandler struct {
	registrationService service.RegistrationService
	paymentService      service.PaymentService
}

// NewRegistrationHandler creates a new RegistrationHandler
func NewRegistrationHandler(registrationService service.RegistrationService, paymentService service.PaymentService) *RegistrationHandler {
	return &RegistrationHandler{
		registrationService: registrationService,
		paymentService:      paymentService,
	}
}

func callerFrom(c *gin.Context) (service.Caller, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok || userID == "" {
		return service.Caller{}, false
	}
	return service.Caller{UserID: userID, IsAdmin: middleware.IsAdmin(c)}, true
}

// ListMine handles GET /registrations/me
func (h *RegistrationHandler) ListMine(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Unauthorized("User ID not found in token"))
		return
	}

	var page dto.PageQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid query parameters"))
		return
	}
	page.SetDefaults()

	regs, total, err := h.registrationService.ListMine(c.Request.Context(), caller.UserID, page.Limit, page.Offset)
	if err != nil {
		respondError(c, err, "Failed to list registrations")
		return
	}
	c.JSON(http.StatusOK, response.Paginated(dto.FromRegistrations(regs), page.Limit, page.Offset, total))
}

// ListByEvent handles GET /events/:id/registrations (Admin only)
func (h *RegistrationHandler) ListByEvent(c *gin.Context) {
	var page dto.PageQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid query parameters"))
		return
	}
	page.SetDefaults()

	regs, total, err := h.registrationService.ListByEvent(c.Request.Context(), c.Param("id"), page.Limit, page.Offset)
	if err != nil {
		respondError(c, err, "Failed to list registrations")
		return
	}
	c.JSON(http.StatusOK, response.Paginated(dto.FromRegistrations(regs), page.Limit, page.Offset, total))
}

// GetByID handles GET /registrations/:id - owner or admin
func (h *RegistrationHandler) GetByID(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Unauthorized("User ID not found in token"))
		return
	}

	reg, history, err := h.registrationService.GetRegistration(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		respondError(c, err, "Failed to get registration")
		return
	}
	c.JSON(http.StatusOK, response.Success(dto.FromRegistrationDetail(reg, history)))
}

// Cancel handles POST /registrations/:id/cancel (Admin only).
// A failed refund still reports the cancellation with a warning message.
func (h *RegistrationHandler) Cancel(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Unauthorized("User ID not found in token"))
		return
	}

	var req dto.CancelRegistrationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
			return
		}
	}

	reg, err := h.registrationService.Cancel(c.Request.Context(), c.Param("id"), req.Reason, caller)
	if err != nil && !(errors.Is(err, service.ErrRefundFailed) && reg != nil) {
		respondError(c, err, "Failed to cancel registration")
		return
	}

	middleware.SetAuditNewValues(c, map[string]any{
		"payment_status": string(reg.PaymentStatus),
		"reason":         req.Reason,
	})
	if err != nil {
		_ = c.Error(err)
		middleware.SetAuditMetadata(c, map[string]any{"refund": "failed"})
		c.JSON(http.StatusOK, response.SuccessWithMessage("Registration cancelled; refund must be issued manually", dto.FromRegistration(reg)))
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithMessage("Registration cancelled", dto.FromRegistration(reg)))
}

// CreatePaymentIntent handles POST /registrations/:id/payment-intent
func (h *RegistrationHandler) CreatePaymentIntent(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Unauthorized("User ID not found in token"))
		return
	}

	reg, intent, err := h.paymentService.CreateIntent(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		respondError(c, err, "Failed to create payment intent")
		return
	}

	c.JSON(http.StatusOK, response.Success(&dto.PaymentIntentResponse{
		RegistrationID: reg.ID,
		IntentID:       intent.ID,
		ClientSecret:   intent.ClientSecret,
		Amount:         dto.Money(reg.TotalAmount),
		Currency:       reg.Currency,
	}))
}
