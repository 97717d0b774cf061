package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"draft-relay/internal/handler"
	"draft-relay/internal/middleware"
)

// SetupRoutes registers every endpoint. webhookGuards run in front of the
// inbound channel webhook.
func SetupRoutes(
	e *echo.Echo,
	authHandler *handler.AuthHandler,
	draftHandler *handler.DraftHandler,
	dashboardHandler *handler.DashboardHandler,
	webhookHandler *handler.WebhookHandler,
	webhookGuards ...echo.MiddlewareFunc,
) {
	// Public routes
	e.GET("/auth/:provider", authHandler.BeginAuthHandler)
	e.GET("/auth/:provider/callback", authHandler.CallbackHandler)
	e.GET("/auth/logout", authHandler.LogoutHandler)

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	e.POST("/webhooks/twilio", webhookHandler.Twilio, webhookGuards...)

	// Protected API routes
	protected := e.Group("/api")
	protected.Use(middleware.AuthMiddleware(authHandler))

	protected.POST("/scan", dashboardHandler.Scan)

	protected.GET("/drafts", draftHandler.ListDrafts)
	protected.GET("/drafts/pending", draftHandler.ListPending)
	protected.GET("/drafts/:id", draftHandler.GetDraft)
	protected.POST("/drafts/:id/approve", draftHandler.Approve)
	protected.POST("/drafts/:id/reject", draftHandler.Reject)
	protected.POST("/drafts/:id/edit", draftHandler.Edit)

	protected.GET("/stats", dashboardHandler.Stats)
	protected.GET("/logs", dashboardHandler.Logs)
	protected.GET("/account", dashboardHandler.GetAccount)
	protected.PUT("/account/settings", dashboardHandler.UpdateSettings)

	// Real-time dashboard updates via Server-Sent Events (SSE)
	protected.GET("/events", dashboardHandler.Events)
}
