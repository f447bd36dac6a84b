package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/config"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/handlers"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/middleware"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/services"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/jwt"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/metrics"
	"github.com/gin-gonic/gin"
)

// HealthChecker reports whether a backing dependency is reachable
type HealthChecker func(ctx context.Context) error

// HandlerDependencies holds the services the HTTP layer is built from
type HandlerDependencies struct {
	Campaigns   services.CampaignManager
	Dispatcher  services.CampaignDispatcher
	Subscribers services.SubscriberManager
	Settings    services.SettingsManager
	// Health is optional; nil reports ok unconditionally.
	Health HealthChecker
	// Lifetime bounds sends started over HTTP; cancel it on shutdown.
	Lifetime context.Context
}

// SetupRouter sets up the router
func SetupRouter(cfg *config.Config, deps HandlerDependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.CORSMiddleware(cfg))

	campaignHandler := handlers.NewCampaignHandler(deps.Campaigns, deps.Dispatcher, deps.Lifetime)
	subscriberHandler := handlers.NewSubscriberHandler(deps.Subscribers)
	settingsHandler := handlers.NewSettingsHandler(deps.Settings)

	// Public routes
	public := router.Group("/api/v1")
	{
		public.GET("/health", healthHandler(deps.Health))
		public.GET("/metrics", gin.WrapH(metrics.Handler()))

		newsletter := public.Group("/newsletter")
		{
			newsletter.POST("/subscribe", subscriberHandler.Subscribe)
			newsletter.GET("/unsubscribe/:token", subscriberHandler.Unsubscribe)
			newsletter.POST("/unsubscribe/:token", subscriberHandler.Unsubscribe)
		}
	}

	// Admin routes
	admin := router.Group("/api/v1/newsletter")
	admin.Use(middleware.JWTAuthMiddleware(cfg), middleware.RequireRole(jwt.RoleAdmin, jwt.RoleSuperAdmin))
	{
		campaigns := admin.Group("/campaigns")
		{
			campaigns.GET("", campaignHandler.ListCampaigns)
			campaigns.POST("", campaignHandler.CreateCampaign)
			campaigns.GET("/:id", campaignHandler.GetCampaign)
			campaigns.PUT("/:id", campaignHandler.UpdateCampaign)
			campaigns.DELETE("/:id", campaignHandler.DeleteCampaign)
			campaigns.POST("/:id/send", campaignHandler.SendCampaign)
			campaigns.POST("/:id/send-to", campaignHandler.SendCampaignTo)
			campaigns.POST("/:id/schedule", campaignHandler.ScheduleCampaign)
			campaigns.POST("/:id/cancel", campaignHandler.CancelCampaign)
			campaigns.GET("/:id/stats", campaignHandler.GetCampaignStats)
			campaigns.POST("/:id/stats/:metric", campaignHandler.RecordEngagement)
		}

		subscribers := admin.Group("/subscribers")
		{
			subscribers.GET("", subscriberHandler.ListSubscribers)
			subscribers.GET("/export", subscriberHandler.ExportSubscribers)
			subscribers.POST("/import", subscriberHandler.ImportSubscribers)
			subscribers.DELETE("/:id", subscriberHandler.DeleteSubscriber)
		}

		admin.GET("/stats", campaignHandler.GetOverview)
		admin.GET("/settings", settingsHandler.GetSettings)
		admin.PUT("/settings", settingsHandler.UpdateSettings)
	}

	return router
}

func healthHandler(check HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
