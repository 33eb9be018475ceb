package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/OsGift/safawinet-api/api"
	"github.com/OsGift/safawinet-api/internal/cache"
	"github.com/OsGift/safawinet-api/internal/config"
	"github.com/OsGift/safawinet-api/internal/database"
	"github.com/OsGift/safawinet-api/internal/handlers"
	"github.com/OsGift/safawinet-api/internal/jobs"
	"github.com/OsGift/safawinet-api/internal/logger"
	"github.com/OsGift/safawinet-api/internal/metrics"
	"github.com/OsGift/safawinet-api/internal/middleware"
	"github.com/OsGift/safawinet-api/internal/services"
	"github.com/OsGift/safawinet-api/internal/utils"
)

const authCacheSize = 10000

func main() {
	// 1. Load configuration
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// 2. Logger and metrics
	zapLogger, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, "safawinet-api")
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer zapLogger.Sync()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(registry)

	// 3. Auth context cache: Redis when configured, otherwise in-process
	var store cache.Store
	if cfg.RedisAddr != "" {
		redisStore, err := cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			zapLogger.Fatal("Error connecting to Redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		store = redisStore
	} else {
		store = cache.NewMemoryStore(authCacheSize, cfg.AuthCacheTTL)
	}
	defer store.Close()
	authCache := cache.NewAuthCache(store, cfg.AuthCacheTTL, appMetrics, zapLogger)
	zapLogger.Info("Auth cache ready", zap.String("backend", store.Name()), zap.Duration("ttl", cfg.AuthCacheTTL))

	// 4. Mailer
	mailer := utils.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom, zapLogger)
	if !mailer.Enabled() {
		zapLogger.Warn("SMTP_HOST not set, notification mails are disabled")
	}

	// 5. Connect to MongoDB
	client, err := database.ConnectMongoDB(cfg.MongoURI, zapLogger)
	if err != nil {
		zapLogger.Fatal("Error connecting to MongoDB", zap.Error(err))
	}
	defer func() {
		if err = client.Disconnect(context.Background()); err != nil {
			zapLogger.Error("Error disconnecting from MongoDB", zap.Error(err))
		}
	}()
	db := client.Database(cfg.DBName)

	// 6. Indexes and seed data
	if err := database.EnsureIndexes(db); err != nil {
		zapLogger.Fatal("Error creating indexes", zap.Error(err))
	}
	if err := database.SeedDefaultRoleTemplates(db, zapLogger); err != nil {
		zapLogger.Fatal("Error seeding default role templates", zap.Error(err))
	}
	if err := database.SeedAdmin(db, cfg.AdminEmail, cfg.AdminPassword, zapLogger); err != nil {
		zapLogger.Fatal("Error seeding administrator", zap.Error(err))
	}

	// 7. Initialize services
	templateService := services.NewRoleTemplateService(db, zapLogger)
	userService := services.NewUserService(db, templateService, authCache, zapLogger)
	auditService := services.NewAuditService(db, cfg.AuditRetentionDays, zapLogger)
	authService := services.NewAuthService(services.AuthServiceConfig{
		Users:       userService,
		TwoFactor:   services.NewTwoFactorService(cfg.TOTPIssuer),
		Audit:       auditService,
		AuthCache:   authCache,
		Mailer:      mailer,
		JWTSecret:   []byte(cfg.JWTSecret),
		TokenTTL:    cfg.JWTTTL,
		FrontendURL: cfg.FrontendURL,
		Logger:      zapLogger,
	})
	dashboardService := services.NewDashboardService(db, auditService)
	exportService := services.NewExportService()
	uploadService, err := services.NewUploadService(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		zapLogger.Fatal("Error initializing Cloudinary", zap.Error(err))
	}
	if !uploadService.Enabled() {
		zapLogger.Warn("Cloudinary credentials not set, avatar uploads are disabled")
	}

	// 8. Initialize handlers
	deps := handlers.Deps{Audit: auditService, Metrics: appMetrics, Logger: zapLogger}
	routes := api.Handlers{
		Auth:         handlers.NewAuthHandler(authService, userService, deps),
		Users:        handlers.NewUserHandler(userService, authService, exportService, deps),
		RoleTemplate: handlers.NewRoleTemplateHandler(templateService, deps),
		Audit:        handlers.NewAuditHandler(auditService, exportService, deps),
		Permission:   handlers.NewPermissionHandler(deps),
		Dashboard:    handlers.NewDashboardHandler(dashboardService, deps),
		Upload:       handlers.NewUploadHandler(uploadService, userService, deps),
		Health: handlers.NewHealthHandler(func(ctx context.Context) error {
			return database.Ping(ctx, client)
		}),
	}

	// 9. Initialize middleware and router
	authMiddleware := middleware.NewAuthMiddleware(authService, appMetrics, zapLogger)

	router := mux.NewRouter()
	router.Use(middleware.RequestID, middleware.Observe(zapLogger, appMetrics))
	api.SetupRoutes(router, authMiddleware, routes, appMetrics.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
	})
	handlerWithCORS := c.Handler(router)

	// 10. Scheduled jobs
	scheduler := jobs.NewScheduler(zapLogger)
	if err := scheduler.ScheduleRetention(cfg.AuditRetentionSchedule, jobs.NewRetentionJob(auditService, appMetrics, zapLogger)); err != nil {
		zapLogger.Fatal("Error scheduling audit retention", zap.Error(err))
	}
	scheduler.Start()

	// 11. Start HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handlerWithCORS,
		IdleTimeout:  time.Minute,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		zapLogger.Info("Server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Could not listen", zap.String("port", cfg.Port), zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	zapLogger.Info("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server shutdown failed", zap.Error(err))
	}
	scheduler.Stop(ctx)
	zapLogger.Info("Server stopped")
}
