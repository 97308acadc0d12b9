package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/admissions-api/api/swagger"
	"github.com/noah-isme/admissions-api/internal/handler"
	"github.com/noah-isme/admissions-api/internal/middleware"
	"github.com/noah-isme/admissions-api/internal/models"
	"github.com/noah-isme/admissions-api/internal/repository"
	"github.com/noah-isme/admissions-api/internal/service"
	"github.com/noah-isme/admissions-api/pkg/cache"
	"github.com/noah-isme/admissions-api/pkg/config"
	"github.com/noah-isme/admissions-api/pkg/database"
	"github.com/noah-isme/admissions-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/admissions-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/admissions-api/pkg/middleware/requestid"
)

// @title Admissions API
// @version 1.0.0
// @description Student applications to institutions and courses.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logr.Info("database migrations applied")
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, "admissions", logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.CatalogCache.TTL, logr, cfg.CatalogCache.Enabled && redisClient != nil)

	auditSvc := service.NewAuditService(repository.NewAuditRepository(db), service.AuditServiceConfig{
		Workers: cfg.Audit.Workers,
		Retries: cfg.Audit.Retries,
	}, logr)
	// The queue outlives the signal context so entries recorded while the
	// server drains are still written; Stop runs after Shutdown returns.
	auditSvc.Start(context.WithoutCancel(ctx))
	defer auditSvc.Stop()

	applications := repository.NewApplicationRepository(db)

	catalogSvc := service.NewCatalogService(service.CatalogServiceParams{
		Institutions: repository.NewInstitutionRepository(db),
		Courses:      repository.NewCourseRepository(db),
		Cache:        cacheSvc,
		Audit:        auditSvc,
		Validator:    validate,
		Logger:       logr,
		CacheTTL:     cfg.CatalogCache.TTL,
		StoreTimeout: cfg.Admissions.StoreTimeout,
	})

	admissionSvc := service.NewAdmissionService(service.AdmissionServiceParams{
		Applications: applications,
		Students:     repository.NewStudentRepository(db),
		Catalog:      catalogSvc,
		Audit:        auditSvc,
		Metrics:      metrics,
		Validator:    validate,
		Logger:       logr,
		Config: service.AdmissionServiceConfig{
			MaxActivePerInstitution: cfg.Admissions.MaxActivePerInstitution,
			StoreTimeout:            cfg.Admissions.StoreTimeout,
			EnforceWindow:           cfg.Admissions.EnforceWindow,
		},
	})

	dashboardSvc := service.NewDashboardService(applications, cfg.Admissions.StoreTimeout, logr)

	tokens := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiration,
	})

	router := newRouter(cfg, logr, routerDeps{
		tokens:       tokens,
		metrics:      metrics,
		applications: handler.NewApplicationHandler(admissionSvc),
		catalog:      handler.NewCatalogHandler(catalogSvc),
		dashboard:    handler.NewDashboardHandler(dashboardSvc),
		probes:       handler.NewMetricsHandler(metrics, readinessChecks(db, redisClient)),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type routerDeps struct {
	tokens       *service.TokenService
	metrics      *service.MetricsService
	applications *handler.ApplicationHandler
	catalog      *handler.CatalogHandler
	dashboard    *handler.DashboardHandler
	probes       *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", deps.probes.Health)
	r.GET("/ready", deps.probes.Ready)
	r.GET("/metrics", deps.probes.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(deps.tokens))

	apps := api.Group("/applications")
	apps.POST("", middleware.RequireRoles(models.RoleStudent, models.RoleAdmin), deps.applications.Submit)
	apps.GET("", deps.applications.List)
	apps.GET("/:id", deps.applications.Get)
	apps.PATCH("/:id/status", deps.applications.Transition)

	api.GET("/dashboard/admissions", middleware.RequireRoles(models.RoleAdmin, models.RoleInstitute), deps.dashboard.Admissions)

	institutions := api.Group("/institutions")
	institutions.GET("", deps.catalog.ListInstitutions)
	institutions.GET("/:id", deps.catalog.GetInstitution)
	institutions.POST("/:id/publish", middleware.RequireRoles(models.RoleAdmin), deps.catalog.PublishAdmissions)

	courses := api.Group("/courses")
	courses.GET("", deps.catalog.ListCourses)
	courses.GET("/:id", deps.catalog.GetCourse)
	courses.POST("", middleware.RequireRoles(models.RoleInstitute, models.RoleAdmin), deps.catalog.CreateCourse)
	courses.PUT("/:id", middleware.RequireRoles(models.RoleInstitute, models.RoleAdmin), deps.catalog.UpdateCourse)

	return r
}

func readinessChecks(db *sqlx.DB, client *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	return checks
}
