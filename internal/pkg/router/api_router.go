package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/digiup/backend/app/controllers"
	"github.com/digiup/backend/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", newRateLimiter(300, 1*time.Minute))

	v1 := api.Group("/v1")
	v1.Get("/health", controllers.HandleHealth)

	// Account auth
	auth := v1.Group("/auth")
	auth.Post("/register", controllers.HandleRegister)
	auth.Post("/login", controllers.HandleLogin)

	// CreatorUp integration
	creatorup := v1.Group("/creatorup")

	// Webhooks are signature-authenticated, not token-authenticated.
	creatorup.Post("/webhook/usage-update", controllers.HandleCreatorUpWebhook)
	creatorup.Post("/webhook/subscription-update", controllers.HandleCreatorUpWebhook)

	protected := creatorup.Group("", middleware.AuthRequired())
	protected.Post("/verify", controllers.HandleVerifyAccess)
	protected.Get("/profile", controllers.HandleGetProfile)
	protected.Get("/access", controllers.HandleFeatureAccess)

	protected.Post("/sync/user", controllers.HandleSyncUser)
	protected.Post("/sync/usage", controllers.HandleSyncUsage)
	protected.Get("/sync/status", controllers.HandleSyncStatus)

	protected.Post("/auth/credentials", controllers.HandleSaveCreatorUpCredentials)
	protected.Get("/auth/credentials", controllers.HandleGetCreatorUpCredentials)
	protected.Get("/auth/status", controllers.HandleCreatorUpStatus)

	// Membership feature gate passthrough
	membership := v1.Group("/membership", middleware.AuthRequired())
	membership.Get("/feature/:feature/access", controllers.HandleFeatureAccess)

	// App marketplace
	apps := v1.Group("/apps", middleware.AuthRequired())
	apps.Get("/", controllers.HandleListApps)
	apps.Get("/subscriptions/my", controllers.HandleMySubscriptions)
	apps.Get("/:id", controllers.HandleGetApp)
	apps.Post("/:id/subscribe", controllers.HandleSubscribeApp)

	// Admin surface
	admin := app.Group("/api/admin/v1", newRateLimiter(120, 1*time.Minute), middleware.AuthRequired(), middleware.AdminRequired())
	admin.Get("/analytics/sync", controllers.HandleAdminSyncAnalytics)
	admin.Get("/analytics/sync/statistics", controllers.HandleAdminSyncStatistics)
	admin.Get("/analytics/health", controllers.HandleAdminSystemHealth)
	admin.Get("/analytics/sync/user/:userId", controllers.HandleAdminUserSyncAnalytics)
	admin.Post("/analytics/retry-failed-sync", controllers.HandleAdminRetrySync)
	admin.Post("/analytics/cleanup-old-data", controllers.HandleAdminCleanup)
	admin.Get("/users", controllers.HandleAdminUsers)
	admin.Get("/queue/jobs", controllers.HandleAdminQueueJobs)
	admin.Delete("/queue/jobs/:jobId", controllers.HandleAdminQueueJobDelete)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
