package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shenikar/incident_dispatch_system/internal/config"
	"github.com/shenikar/incident_dispatch_system/internal/correlator"
	"github.com/shenikar/incident_dispatch_system/internal/dispatch"
	"github.com/shenikar/incident_dispatch_system/internal/gateway"
	v1 "github.com/shenikar/incident_dispatch_system/internal/handler/http/v1"
	"github.com/shenikar/incident_dispatch_system/internal/identity"
	"github.com/shenikar/incident_dispatch_system/internal/metrics"
	"github.com/shenikar/incident_dispatch_system/internal/models"
	"github.com/shenikar/incident_dispatch_system/internal/notify"
	"github.com/shenikar/incident_dispatch_system/internal/repository"
	"github.com/shenikar/incident_dispatch_system/internal/scorer"
	"github.com/shenikar/incident_dispatch_system/internal/service"
	"github.com/shenikar/incident_dispatch_system/internal/sla"
	"github.com/shenikar/incident_dispatch_system/internal/store"
	"github.com/shenikar/incident_dispatch_system/pkg/logger"
	"github.com/shenikar/incident_dispatch_system/pkg/postgres"
	redisclient "github.com/shenikar/incident_dispatch_system/pkg/redis"
	"github.com/sirupsen/logrus"

	_ "github.com/shenikar/incident_dispatch_system/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Incident Dispatch System API
// @version 1.0
// @description Incident ingestion and dispatch coordination engine API server.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func runMigrations(cfg *config.Config, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	migrationURL := cfg.DatabaseURL
	if !strings.HasPrefix(migrationURL, "pgx5://") {
		migrationURL = strings.Replace(migrationURL, "postgres://", "pgx5://", 1)
	}

	m, err := migrate.New(
		"file://migrations",
		migrationURL,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database migrations applied successfully")
	return nil
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel)

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запуск миграций
	if err := runMigrations(cfg, log); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Подключение к PostgreSQL
	dbpool, err := postgres.NewPostgresDB(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer dbpool.Close()
	log.Info("Successfully connected to PostgreSQL")

	// Инициализация Redis клиента
	redisClient, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Info("Successfully connected to Redis")

	// Реестр метрик
	promRegistry := prometheus.NewRegistry()
	m := metrics.NewMetrics(promRegistry)

	// Инициализация репозитория-архива
	incidentRepo := repository.NewIncidentRepository(dbpool)

	// Издатель и воркер уведомлений
	notifyPublisher := notify.NewRedisPublisher(redisClient)
	notifyWorker := notify.NewWorker(redisClient, log, cfg, m)
	notifyWorker.Start(ctx)

	// Авторитетное состояние и реестр юнитов
	incidentStore := store.New(log, incidentRepo, notifyPublisher)
	registry := dispatch.NewRegistry()
	incidentStore.SetUnitReleaser(registry)

	// Планировщик, коррелятор, SLA-монитор
	planner := dispatch.NewPlanner(incidentStore, registry, incidentRepo, log, cfg, m)
	corr := correlator.New(incidentStore, cfg, log, incidentRepo, m)
	slaMonitor := sla.NewMonitor(incidentStore, planner, notifyPublisher, log, cfg, m)

	// Внешние консультативные сервисы
	var sc scorer.Scorer = scorer.NewStaticScorer()
	if cfg.ScorerURL != "" {
		sc = scorer.NewHTTPScorer(cfg.ScorerURL, cfg.ScorerTimeout)
	}
	var verifier identity.Verifier
	if cfg.IdentityServiceURL != "" {
		verifier = identity.NewHTTPVerifier(cfg.IdentityServiceURL, cfg.IdentityTimeout)
	}

	// Тёплый старт из архива
	if err := warmStart(ctx, incidentRepo, incidentStore, corr, registry, log); err != nil {
		log.Fatalf("Failed to warm start from archive: %v", err)
	}

	// Незанятые активные инциденты после рестарта снова уходят в планировщик
	for _, inc := range incidentStore.ListNonTerminal() {
		if inc.Status == models.StatusActive && inc.AssignedUnitID == nil {
			go planner.PlanWithRetry(ctx, inc.ID)
		}
	}

	// Инициализация сервисов
	incidentService := service.NewIncidentService(ctx, incidentStore, corr, planner, registry, sc, verifier, incidentRepo, log, cfg, m)

	// Воркер телеметрии носимых устройств
	telemetryWorker := gateway.NewTelemetryWorker(redisClient, incidentService, log)
	telemetryWorker.Start(ctx)

	// Запуск SLA-монитора
	slaMonitor.Start(ctx)

	// Инициализация хэндлеров
	handler := v1.NewHandler(incidentService, log, cfg)

	// Настройка Gin роутера
	router := gin.Default()
	api := router.Group("/api/v1", v1.APIKeyAuthMiddleware(cfg, log))
	handler.RegisterRoutes(api)

	// Маршрут метрик Prometheus
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	// Добавление маршрута для Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Запуск HTTP-сервера
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	// Запуск сервера в горутине
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error starting HTTP server: %v", err)
		}
	}()
	log.Infof("HTTP server started on port %s", cfg.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server gracefully stopped")
}

// warmStart восстанавливает открытые инциденты и юниты из архива после
// перезапуска
func warmStart(ctx context.Context, repo *repository.IncidentRepository, s *store.Store, corr *correlator.Correlator, registry *dispatch.Registry, log *logrus.Logger) error {
	incidents, err := repo.LoadOpenIncidents(ctx)
	if err != nil {
		return fmt.Errorf("could not load open incidents: %w", err)
	}
	for _, inc := range incidents {
		s.Load(inc)
		corr.Load(inc)
	}

	units, err := repo.LoadUnits(ctx)
	if err != nil {
		return fmt.Errorf("could not load response units: %w", err)
	}
	for _, unit := range units {
		registry.Add(unit)
	}

	log.Infof("Warm start complete: %d open incidents, %d response units", len(incidents), len(units))
	return nil
}
