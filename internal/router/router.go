// Package router mounts the HTTP API on a gin engine.
package router

import (
	"net/http"

	"github.com/fashionistas/ticketing/internal/di"
	"github.com/fashionistas/ticketing/pkg/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Config holds router settings
type Config struct {
	ServiceName    string
	Release        bool
	AllowedOrigins []string
	JWT            *middleware.JWTConfig
	RateLimit      middleware.RateLimitConfig
}

var probePaths = []string{"/health", "/ready"}

// New builds the engine with middleware and all routes
func New(c *di.Container, cfg *Config) *gin.Engine {
	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		otelgin.Middleware(cfg.ServiceName, otelgin.WithFilter(func(req *http.Request) bool {
			return !isProbe(req.URL.Path)
		})),
		middleware.Recovery(c.Log),
		middleware.RequestID(),
		middleware.AccessLog(c.Log.Named("http"), probePaths...),
		middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins...)),
	)

	r.GET("/health", c.HealthHandler.Health)
	r.GET("/ready", c.HealthHandler.Ready)

	api := r.Group("/api/v1")

	// Public
	{
		api.GET("/events", c.EventHandler.List)
		api.GET("/events/:id", c.EventHandler.GetByID)
		api.GET("/events/:id/ticket-types", c.TicketTypeHandler.ListByEvent)
		api.GET("/ticket-types/:id", c.TicketTypeHandler.GetByID)
		api.GET("/ticket-types/:id/availability", c.TicketTypeHandler.Availability)
		api.POST("/ticket-types/:id/quote", c.TicketTypeHandler.Quote)
		api.POST("/payments/webhook", c.PaymentHandler.Webhook)
	}

	auth := middleware.JWTMiddleware(cfg.JWT)

	// Buyer
	buyer := api.Group("", auth)
	{
		purchase := []gin.HandlerFunc{c.PurchaseHandler.Purchase}
		if c.RateLimiter != nil {
			purchase = append([]gin.HandlerFunc{middleware.RateLimit(c.RateLimiter, cfg.RateLimit, c.Log)}, purchase...)
		}

		buyer.POST("/ticket-types/:id/validate", c.PurchaseHandler.Validate)
		buyer.POST("/ticket-types/:id/purchase", purchase...)
		buyer.GET("/registrations/me", c.RegistrationHandler.ListMine)
		buyer.GET("/registrations/:id", c.RegistrationHandler.GetByID)
		buyer.POST("/registrations/:id/payment-intent", c.RegistrationHandler.CreatePaymentIntent)
	}

	// Admin
	admin := api.Group("", auth, middleware.RequireRole(middleware.RoleAdmin), middleware.AuditMiddleware(c.AuditLogger))
	{
		admin.GET("/admin/events", c.EventHandler.ListAll)
		admin.POST("/events", c.EventHandler.Create)
		admin.PUT("/events/:id", c.EventHandler.Update)
		admin.POST("/events/:id/publish", c.EventHandler.Publish)
		admin.POST("/events/:id/ticket-types", c.TicketTypeHandler.Create)
		admin.GET("/events/:id/registrations", c.RegistrationHandler.ListByEvent)
		admin.POST("/registrations/:id/cancel", c.RegistrationHandler.Cancel)
	}

	return r
}

func isProbe(path string) bool {
	for _, p := range probePaths {
		if path == p {
			return true
		}
	}
	return false
}
