package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ahc-eng/payflow-api/internal/auth"
	"github.com/ahc-eng/payflow-api/internal/config"
	"github.com/ahc-eng/payflow-api/internal/database"
	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/http/handler"
	"github.com/ahc-eng/payflow-api/internal/http/middleware"
	"github.com/ahc-eng/payflow-api/internal/ledger"
)

// allWorkflowRoles lists every role that participates in the payment
// workflow. Route-level gates use this where any participant may enter;
// per-stage role rules live in the services, and listing visibility is
// scoped there as well. Chairman appears so reads pass; the auth middleware
// rejects chairman mutations regardless.
var allWorkflowRoles = []domain.RoleName{
	domain.RoleEngineeringManager,
	domain.RolePlanning,
	domain.RoleProjectManager,
	domain.RoleProjectEngineer,
	domain.RoleEngineer,
	domain.RoleFinance,
	domain.RoleChairman,
	domain.RoleDC,
	domain.RolePaymentNotifier,
	domain.RoleProcurement,
}

type Router struct {
	cfg                   *config.Config
	logger                *zap.Logger
	db                    *gorm.DB
	ledgerClient          *ledger.Client
	authMiddleware        *auth.Middleware
	rateLimiter           *middleware.RateLimiter
	authHandler           *handler.AuthHandler
	userHandler           *handler.UserHandler
	projectHandler        *handler.ProjectHandler
	supplierHandler       *handler.SupplierHandler
	paymentHandler        *handler.PaymentHandler
	attachmentHandler     *handler.AttachmentHandler
	purchaseOrderHandler  *handler.PurchaseOrderHandler
	notificationHandler   *handler.NotificationHandler
	savedViewHandler      *handler.SavedViewHandler
	dashboardHandler      *handler.DashboardHandler
	reconciliationHandler *handler.ReconciliationHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	ledgerClient *ledger.Client,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	projectHandler *handler.ProjectHandler,
	supplierHandler *handler.SupplierHandler,
	paymentHandler *handler.PaymentHandler,
	attachmentHandler *handler.AttachmentHandler,
	purchaseOrderHandler *handler.PurchaseOrderHandler,
	notificationHandler *handler.NotificationHandler,
	savedViewHandler *handler.SavedViewHandler,
	dashboardHandler *handler.DashboardHandler,
	reconciliationHandler *handler.ReconciliationHandler,
) *Router {
	return &Router{
		cfg:                   cfg,
		logger:                logger,
		db:                    db,
		ledgerClient:          ledgerClient,
		authMiddleware:        authMiddleware,
		rateLimiter:           rateLimiter,
		authHandler:           authHandler,
		userHandler:           userHandler,
		projectHandler:        projectHandler,
		supplierHandler:       supplierHandler,
		paymentHandler:        paymentHandler,
		attachmentHandler:     attachmentHandler,
		purchaseOrderHandler:  purchaseOrderHandler,
		notificationHandler:   notificationHandler,
		savedViewHandler:      savedViewHandler,
		dashboardHandler:      dashboardHandler,
		reconciliationHandler: reconciliationHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP) // Apply IP-based rate limiting globally

	// Health check (basic liveness probe)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Database health check (readiness probe with detailed stats)
	r.Get("/health/db", func(w http.ResponseWriter, r *http.Request) {
		stats, err := database.HealthCheckWithStats(rt.db)
		if err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status":  "unhealthy",
				"error":   err.Error(),
				"service": "database",
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"service": "database",
			"stats": map[string]interface{}{
				"max_open_connections": stats.MaxOpenConnections,
				"open_connections":     stats.OpenConnections,
				"in_use":               stats.InUse,
				"idle":                 stats.Idle,
				"wait_count":           stats.WaitCount,
				"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
				"max_idle_closed":      stats.MaxIdleClosed,
				"max_lifetime_closed":  stats.MaxLifetimeClosed,
			},
		})
	})

	// Combined readiness check (checks all dependencies)
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]interface{})
		allHealthy := true

		// Check database
		if err := database.HealthCheck(rt.db); err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			checks["database"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
			allHealthy = false
		} else {
			checks["database"] = map[string]interface{}{
				"status": "healthy",
			}
		}

		// The ledger is optional; a disabled or unhealthy ledger degrades
		// reconciliation but never fails readiness.
		checks["ledger"] = rt.ledgerClient.HealthCheck(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if allHealthy {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "healthy",
				"checks": checks,
			})
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "unhealthy",
				"checks": checks,
			})
		}
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes (no auth required)
		r.Post("/auth/login", rt.authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.Authenticate)

			// Auth
			r.Get("/auth/me", rt.authHandler.Me)

			// Payment requests
			r.Route("/payments", func(r chi.Router) {
				r.Use(rt.authMiddleware.RequireRoles(allWorkflowRoles...))

				r.Get("/", rt.paymentHandler.List)
				r.Get("/export", rt.paymentHandler.Export)
				r.Get("/inbox", rt.paymentHandler.Inbox)
				r.Post("/", rt.paymentHandler.Create)
				r.Get("/{id}", rt.paymentHandler.GetByID)
				r.Put("/{id}", rt.paymentHandler.Update)
				r.Delete("/{id}", rt.paymentHandler.Delete)

				// Lifecycle
				r.Post("/{id}/transition", rt.paymentHandler.Transition)
				r.Get("/{id}/approvals", rt.paymentHandler.ApprovalTrail)

				// Finance adjustments
				r.Post("/{id}/adjustments", rt.paymentHandler.AddAdjustment)
				r.Post("/{id}/adjustments/{adjustmentId}/void", rt.paymentHandler.VoidAdjustment)

				// Payment-executed notes on settled rows
				r.Post("/{id}/notify", rt.paymentHandler.AddNotificationNote)

				// Attachments
				r.Get("/{id}/attachments", rt.attachmentHandler.List)
				r.Post("/{id}/attachments", rt.attachmentHandler.Upload)
				r.Get("/{id}/attachments/{attachmentId}", rt.attachmentHandler.Download)
			})

			// Purchase orders
			r.Route("/purchase-orders", func(r chi.Router) {
				r.Use(rt.authMiddleware.RequireRoles(allWorkflowRoles...))

				r.Get("/", rt.purchaseOrderHandler.List)
				r.Post("/", rt.purchaseOrderHandler.Create)
				r.Get("/{id}", rt.purchaseOrderHandler.GetByID)
				r.Put("/{id}", rt.purchaseOrderHandler.Update)
				r.Delete("/{id}", rt.purchaseOrderHandler.Delete)
				r.Post("/{id}/transition", rt.purchaseOrderHandler.Transition)
			})

			// Users (admin only)
			r.Route("/users", func(r chi.Router) {
				r.Use(rt.authMiddleware.RequireRoles(domain.RoleAdmin))

				r.Get("/", rt.userHandler.List)
				r.Get("/roles", rt.userHandler.ListRoles)
				r.Post("/", rt.userHandler.Create)
				r.Get("/{id}", rt.userHandler.GetByID)
				r.Put("/{id}", rt.userHandler.Update)
				r.Delete("/{id}", rt.userHandler.Deactivate)
			})

			// Projects: everyone reads, only admin manages
			r.Route("/projects", func(r chi.Router) {
				r.With(rt.authMiddleware.RequireRoles(allWorkflowRoles...)).Get("/", rt.projectHandler.List)
				r.With(rt.authMiddleware.RequireRoles(allWorkflowRoles...)).Get("/all", rt.projectHandler.ListAll)
				r.With(rt.authMiddleware.RequireRoles(allWorkflowRoles...)).Get("/{id}", rt.projectHandler.GetByID)
				r.With(rt.authMiddleware.RequireRoles(domain.RoleAdmin)).Post("/", rt.projectHandler.Create)
				r.With(rt.authMiddleware.RequireRoles(domain.RoleAdmin)).Put("/{id}", rt.projectHandler.Update)
			})

			// Suppliers: everyone reads, procurement and finance manage
			r.Route("/suppliers", func(r chi.Router) {
				r.With(rt.authMiddleware.RequireRoles(allWorkflowRoles...)).Get("/", rt.supplierHandler.List)
				r.With(rt.authMiddleware.RequireRoles(allWorkflowRoles...)).Get("/{id}", rt.supplierHandler.GetByID)
				r.With(rt.authMiddleware.RequireRoles(domain.RoleProcurement, domain.RoleFinance)).Post("/", rt.supplierHandler.Create)
			})

			// Notifications (own rows only, enforced in the service)
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", rt.notificationHandler.List)
				r.Get("/count", rt.notificationHandler.GetUnreadCount)
				r.Put("/read-all", rt.notificationHandler.MarkAllAsRead)
				r.Put("/{id}/read", rt.notificationHandler.MarkAsRead)
			})

			// Saved filter views
			r.Route("/saved-views", func(r chi.Router) {
				r.Get("/", rt.savedViewHandler.List)
				r.Post("/", rt.savedViewHandler.Create)
				r.Delete("/{id}", rt.savedViewHandler.Delete)
			})

			// Dashboard
			r.Get("/dashboard/chips", rt.dashboardHandler.Chips)
			r.Get("/dashboard/metrics", rt.dashboardHandler.Metrics)
			r.Get("/dashboard/stage-durations", rt.dashboardHandler.StageDurations)

			// Finance reconciliation against the accounting ledger
			r.With(rt.authMiddleware.RequireRoles(domain.RoleFinance)).
				Get("/reconciliation", rt.reconciliationHandler.Report)
		})
	})

	return r
}
