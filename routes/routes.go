package routes

import (
	"restaurant-pos/handlers"
	"restaurant-pos/middleware"
	"restaurant-pos/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine) {
	// ── Public routes ──────────────────────────────────────────────
	public := r.Group("/api")
	{
		public.POST("/auth/login", handlers.Login)
		public.GET("/state-machine", handlers.GetStateMachineInfo)
	}

	// ── Authenticated terminal routes ──────────────────────────────
	auth := r.Group("/api")
	auth.Use(middleware.AuthRequired())
	{
		auth.GET("/profile", handlers.GetProfile)

		// The offline-first core: batch reconciliation plus the
		// reference-data snapshot terminals cache for offline use.
		auth.POST("/sync/orders", handlers.SyncOrders)
		auth.GET("/bootstrap", handlers.Bootstrap)
	}

	// ── Store staff routes ─────────────────────────────────────────
	staff := r.Group("/api")
	staff.Use(middleware.AuthRequired(), middleware.RoleRequired(
		models.RoleCashier, models.RoleKitchen, models.RoleAdmin))
	{
		staff.GET("/orders", handlers.GetStoreOrders)
		staff.GET("/orders/:id", handlers.GetOrderDetail)
		staff.PUT("/orders/:id/status", handlers.UpdateOrderStatus)
	}

	// ── Admin routes ───────────────────────────────────────────────
	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthRequired(), middleware.RoleRequired(models.RoleAdmin))
	{
		admin.GET("/orders", handlers.AdminGetAllOrders)
		admin.POST("/actors", handlers.AdminCreateActor)
		admin.GET("/actors", handlers.AdminGetActors)
		admin.POST("/stores", handlers.AdminCreateStore)
		admin.GET("/stores", handlers.AdminGetStores)
	}
}
