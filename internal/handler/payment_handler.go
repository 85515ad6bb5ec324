package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/fashionistas/ticketing/internal/service"
	"github.com/fashionistas/ticketing/pkg/response"
	"github.com/gin-gonic/gin"
)

// maxWebhookBytes bounds the webhook body read into memory
const maxWebhookBytes = 64 << 10

// HeaderStripeSignature carries the provider's webhook signature
const HeaderStripeSignature = "Stripe-Signature"

// PaymentHandler receives payment provider webhooks
type PaymentHandler struct {
	paymentService service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// Webhook handles POST /payments/webhook. Any 2xx tells the provider to stop
// redelivering, so only verification and storage failures return errors.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, response.Error(response.ErrCodePayloadTooLarge, "Webhook payload too large"))
			return
		}
		c.JSON(http.StatusBadRequest, response.BadRequest("Failed to read request body"))
		return
	}

	if err := h.paymentService.HandleWebhook(c.Request.Context(), payload, c.GetHeader(HeaderStripeSignature)); err != nil {
		respondError(c, err, "Failed to process webhook")
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"received": true}))
}
