package routes

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/quartermasterhq/quartermaster/internal/api/handlers"
	"github.com/quartermasterhq/quartermaster/internal/api/middleware"
	"github.com/quartermasterhq/quartermaster/internal/cache"
	"github.com/quartermasterhq/quartermaster/internal/config"
	"github.com/quartermasterhq/quartermaster/internal/metrics"
	"github.com/quartermasterhq/quartermaster/internal/models"
	"github.com/quartermasterhq/quartermaster/internal/services"
)

// Deps exposes the long-lived services wired by Register so cmd/api can hand
// them to the cron scheduler.
type Deps struct {
	Invalidation *cache.Signal
	Reconciler   *services.ReconcileService
}

// Register wires up API routes and performs automatic migrations.
func Register(router *gin.Engine, db *gorm.DB, cfg config.Config) (*Deps, error) {
	if err := db.AutoMigrate(
		&models.Software{},
		&models.SeatAssignment{},
		&models.AuditEntry{},
		&models.AuditChange{},
		&models.User{},
		&models.NotificationProvider{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	invalidation := cache.NewSignal()
	auditService := services.NewAuditService(db)
	directoryService := services.NewDirectoryService(db)
	broadcastService := services.NewBroadcastService(db)
	seatService := services.NewSeatService(db, auditService, directoryService, broadcastService, invalidation, cfg.AssignMaxRetries)
	feedService := services.NewAuditFeedService(db, auditService, invalidation)
	reconcileService := services.NewReconcileService(db, auditService, invalidation)
	authService := services.NewAuthService(db, cfg.JWTSecret)

	router.GET("/api/v1/health", handlers.HealthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")

	authHandler := handlers.NewAuthHandler(authService)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(authService))
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.Me)

		// Seat ledger
		seatHandler := handlers.NewSeatHandler(seatService)
		protected.POST("/software/:id/assignments", seatHandler.Assign)
		protected.POST("/software/:id/release", seatHandler.Release)

		// Audit feed
		auditHandler := handlers.NewAuditHandler(feedService)
		protected.GET("/audit/events", auditHandler.Events)
	}

	return &Deps{Invalidation: invalidation, Reconciler: reconcileService}, nil
}
