package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/auth"
	"github.com/ahc-eng/payflow-api/internal/config"
	"github.com/ahc-eng/payflow-api/internal/database"
	"github.com/ahc-eng/payflow-api/internal/http/handler"
	"github.com/ahc-eng/payflow-api/internal/http/middleware"
	"github.com/ahc-eng/payflow-api/internal/http/router"
	"github.com/ahc-eng/payflow-api/internal/jobs"
	"github.com/ahc-eng/payflow-api/internal/ledger"
	"github.com/ahc-eng/payflow-api/internal/logger"
	"github.com/ahc-eng/payflow-api/internal/repository"
	"github.com/ahc-eng/payflow-api/internal/scope"
	"github.com/ahc-eng/payflow-api/internal/service"
	"github.com/ahc-eng/payflow-api/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	// Load full configuration with secrets
	// In development: uses environment variables
	// In staging/production: fetches from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	// Connect to database
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize attachment storage
	fileStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	// Initialize accounting ledger connection (optional - for reconciliation)
	// This connection is read-only and the app continues without it if not configured
	var ledgerClient *ledger.Client
	if cfg.Ledger.Enabled {
		ledgerClient, err = ledger.NewClient(&cfg.Ledger, log)
		if err != nil {
			// Log error but don't fail - the ledger is optional
			log.Warn("Ledger connection failed, continuing without it",
				zap.Error(err),
			)
		} else if ledgerClient != nil {
			log.Info("Ledger connected successfully",
				zap.Int("max_open_conns", cfg.Ledger.MaxOpenConns),
				zap.Int("query_timeout_seconds", cfg.Ledger.QueryTimeout),
			)
		}
	} else {
		log.Info("Ledger not configured, skipping",
			zap.Bool("enabled", cfg.Ledger.Enabled),
		)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	poRepo := repository.NewPurchaseOrderRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	savedViewRepo := repository.NewSavedViewRepository(db)

	// Project visibility scoping, shared by every listing and aggregate
	caps := scope.DetectCapabilities(db)
	scopeResolver := scope.NewResolver(db, caps, log)
	visibility := service.NewVisibilityResolver(scopeResolver)

	// Initialize services
	tokens := auth.NewTokenManager(&cfg.Auth)
	authService := service.NewAuthService(userRepo, tokens, log)
	userService := service.NewUserService(userRepo, assignmentRepo, projectRepo, log)
	projectService := service.NewProjectService(projectRepo, log)
	supplierService := service.NewSupplierService(supplierRepo, log)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, log)
	slaService := service.NewSLAService(&cfg.SLA)
	paymentService := service.NewPaymentService(db, paymentRepo, poRepo, projectRepo, supplierService, visibility, slaService, notificationService, log)
	purchaseOrderService := service.NewPurchaseOrderService(db, poRepo, projectRepo, supplierService, visibility, userRepo, notificationService, log)
	attachmentService := service.NewAttachmentService(paymentRepo, paymentService, fileStorage, log)
	savedViewService := service.NewSavedViewService(savedViewRepo, log)
	dashboardService := service.NewDashboardService(paymentRepo, notificationRepo, paymentService, visibility, slaService, cfg.SLA.ChipCacheTTL(), log)
	reconciliationService := service.NewReconciliationService(paymentRepo, ledgerClient, log)

	// Initialize middleware
	authMiddleware := auth.NewMiddleware(tokens, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService, userService, log)
	userHandler := handler.NewUserHandler(userService, log)
	projectHandler := handler.NewProjectHandler(projectService, log)
	supplierHandler := handler.NewSupplierHandler(supplierService, log)
	paymentHandler := handler.NewPaymentHandler(paymentService, log)
	attachmentHandler := handler.NewAttachmentHandler(attachmentService, log)
	purchaseOrderHandler := handler.NewPurchaseOrderHandler(purchaseOrderService, log)
	notificationHandler := handler.NewNotificationHandler(notificationService, log)
	savedViewHandler := handler.NewSavedViewHandler(savedViewService, log)
	dashboardHandler := handler.NewDashboardHandler(dashboardService, log)
	reconciliationHandler := handler.NewReconciliationHandler(reconciliationService, log)

	// Setup router
	rt := router.NewRouter(
		cfg,
		log,
		db,
		ledgerClient,
		authMiddleware,
		rateLimiter,
		authHandler,
		userHandler,
		projectHandler,
		supplierHandler,
		paymentHandler,
		attachmentHandler,
		purchaseOrderHandler,
		notificationHandler,
		savedViewHandler,
		dashboardHandler,
		reconciliationHandler,
	)

	// Initialize and start scheduler for background jobs
	var scheduler *jobs.Scheduler
	if cfg.Jobs.OverdueSweepEnabled {
		scheduler = jobs.NewScheduler(log)

		if err := jobs.RegisterOverdueSweepJob(
			scheduler,
			paymentRepo,
			slaService,
			notificationService,
			log,
			cfg.Jobs.OverdueSweepCron,
			cfg.Jobs.OverdueSweepTimeoutDuration(),
			cfg.Jobs.OverdueSweepOnStartup,
		); err != nil {
			log.Error("Failed to register overdue sweep job", zap.Error(err))
		} else {
			scheduler.Start()
			log.Info("Scheduler started with overdue sweep job",
				zap.String("cron_expr", cfg.Jobs.OverdueSweepCron),
				zap.Duration("timeout", cfg.Jobs.OverdueSweepTimeoutDuration()),
			)
		}
	} else {
		log.Info("Overdue sweep disabled",
			zap.Bool("enabled", cfg.Jobs.OverdueSweepEnabled),
		)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Stop scheduler if running
		if scheduler != nil {
			ctx := scheduler.Stop()
			<-ctx.Done()
			log.Info("Scheduler stopped")
		}

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		// Close ledger connection if initialized
		if ledgerClient != nil {
			if err := ledgerClient.Close(); err != nil {
				log.Warn("Error closing ledger connection", zap.Error(err))
			}
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
