package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/niaga-platform/service-returns/internal/handlers"
	"github.com/niaga-platform/service-returns/internal/middleware"
)

// RouteConfig holds configuration for routes
type RouteConfig struct {
	ReturnHandler *handlers.ReturnHandler
	JWTSecret     string
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, cfg *RouteConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "service-returns"})
	})

	v1 := router.Group("/api/v1")
	returns := v1.Group("/returns")
	returns.Use(middleware.Auth(cfg.JWTSecret))

	staff := middleware.RequireRole(middleware.RoleFulfillmentStaff, middleware.RoleFulfillmentAdmin)
	admin := middleware.RequireRole(middleware.RoleFulfillmentAdmin)

	// Customer surface
	returns.POST("", cfg.ReturnHandler.CreateReturnRequest)
	returns.GET("/user/:userId", cfg.ReturnHandler.ListUserReturnRequests)
	returns.GET("/:returnId", cfg.ReturnHandler.GetReturnRequest)

	// Back-office queries
	returns.GET("", staff, cfg.ReturnHandler.ListReturnRequests)
	returns.POST("/fulfillment", staff, cfg.ReturnHandler.ListDealerReturnRequests)
	returns.GET("/stats", staff, cfg.ReturnHandler.GetReturnStats)
	returns.GET("/status-counts", staff, cfg.ReturnHandler.GetReturnStatusCounts)
	returns.POST("/:returnId/notes", staff, cfg.ReturnHandler.AddNote)

	// Pickup path
	returns.PUT("/:returnId/validate", staff, cfg.ReturnHandler.ValidateReturnRequest)
	returns.PUT("/:returnId/schedule-pickup", staff, cfg.ReturnHandler.SchedulePickup)
	returns.PUT("/:returnId/complete-pickup", staff, cfg.ReturnHandler.CompletePickup)
	returns.PUT("/:returnId/start-inspection", staff, cfg.ReturnHandler.StartInspection)
	returns.PUT("/:returnId/complete-inspection", staff, cfg.ReturnHandler.CompleteInspection)

	// Shipment path
	returns.POST("/:returnId/shipment", staff, cfg.ReturnHandler.InitiateCourierShipment)
	returns.PUT("/:returnId/shipment/start-inspection", staff, cfg.ReturnHandler.StartShipmentInspection)
	returns.PUT("/:returnId/shipment/complete-inspection", staff, cfg.ReturnHandler.CompleteShipmentInspection)
	returns.POST("/:returnId/manual-pickup", staff, cfg.ReturnHandler.InitiateManualPickup)
	returns.PUT("/:returnId/manual-pickup/delivered", staff, cfg.ReturnHandler.MarkManualPickupDelivered)

	// Decisions
	returns.PUT("/:returnId/reject", staff, cfg.ReturnHandler.RejectReturnRequest)
	returns.PUT("/:returnId/process-refund", admin, cfg.ReturnHandler.ProcessRefund)
	returns.PUT("/:returnId/complete", admin, cfg.ReturnHandler.CompleteReturn)
}
