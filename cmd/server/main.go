package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	// Application
	"github.com/dreschagin/water-quality-dashboard/internal/application/port"
	"github.com/dreschagin/water-quality-dashboard/internal/application/usecase"

	// Domain
	"github.com/dreschagin/water-quality-dashboard/internal/domain/repository"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/service"

	// Infrastructure
	redisCache "github.com/dreschagin/water-quality-dashboard/internal/infrastructure/cache/redis"
	"github.com/dreschagin/water-quality-dashboard/internal/infrastructure/collector"
	"github.com/dreschagin/water-quality-dashboard/internal/infrastructure/messaging"
	kafkaMessaging "github.com/dreschagin/water-quality-dashboard/internal/infrastructure/messaging/kafka"
	natsMessaging "github.com/dreschagin/water-quality-dashboard/internal/infrastructure/messaging/nats"
	wsInfra "github.com/dreschagin/water-quality-dashboard/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/water-quality-dashboard/internal/infrastructure/observability/cloudwatch"
	"github.com/dreschagin/water-quality-dashboard/internal/infrastructure/observability/metrics"
	dynamodbRepo "github.com/dreschagin/water-quality-dashboard/internal/infrastructure/persistence/dynamodb"
	"github.com/dreschagin/water-quality-dashboard/internal/infrastructure/persistence/memory"
	"github.com/dreschagin/water-quality-dashboard/internal/infrastructure/persistence/postgres"
	"github.com/dreschagin/water-quality-dashboard/internal/infrastructure/scheduler"
	s3storage "github.com/dreschagin/water-quality-dashboard/internal/infrastructure/storage/s3"

	// Interfaces
	httpInterface "github.com/dreschagin/water-quality-dashboard/internal/interfaces/http"
	"github.com/dreschagin/water-quality-dashboard/internal/interfaces/http/handler"

	// Shared
	"github.com/dreschagin/water-quality-dashboard/pkg/config"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"

	_ "github.com/lib/pq"
)

const (
	historyCacheTTL = 30 * time.Second
	hostDiskPath    = "/"
)

func main() {
	// 1. Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Инициализируем logger
	log := logger.New(cfg.LogLevel)
	log.Info("Starting Water Quality Dashboard")

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// 3. Хранилище показаний

	var (
		db          *sql.DB
		readingRepo repository.ReadingRepository
	)
	switch cfg.Database.Driver {
	case "memory":
		readingRepo = memory.NewReadingRepository()
		log.Warn("Readings are kept in memory and will be lost on restart")
	default:
		db, err = sql.Open("postgres", cfg.Database.DSN())
		if err != nil {
			log.Error("Failed to connect to database", err)
			os.Exit(1)
		}
		defer db.Close()

		// Настраиваем connection pool
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
		db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

		if err := db.PingContext(startupCtx); err != nil {
			log.Error("Failed to ping database", err)
			os.Exit(1)
		}
		if err := postgres.Migrate(startupCtx, db); err != nil {
			log.Error("Failed to apply database schema", err)
			os.Exit(1)
		}
		log.Info("Database connected successfully")

		readingRepo = postgres.NewPostgresReadingRepository(db)
	}

	// 4. Dependency Injection - Infrastructure Layer

	// Cache
	var (
		cache     port.Cache
		redisConn *redisCache.RedisCache
	)
	if cfg.Redis.Enabled {
		redisConn, err = redisCache.NewRedisCache(startupCtx, redisCache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			log.Error("Failed to connect to Redis", err)
			os.Exit(1)
		}
		cache = redisConn
		log.Info("Redis cache enabled", "addr", cfg.Redis.Addr)
	}

	// События
	events, err := newEventPublisher(cfg, log)
	if err != nil {
		log.Error("Failed to initialize event publisher", err)
		os.Exit(1)
	}

	// Выгрузки
	var exportStorage port.ExportStorage
	if cfg.S3.Enabled {
		storage, err := s3storage.NewExportStorage(startupCtx, s3storage.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
			URLMode:         s3storage.URLMode(cfg.S3.URLMode),
			PresignedTTL:    cfg.S3.PresignedTTL,
		})
		if err != nil {
			log.Error("Failed to initialize export storage", err)
			os.Exit(1)
		}
		exportStorage = storage
	} else {
		log.Warn("S3 storage is disabled, readings exports are unavailable")
	}

	var exportMetadata port.ExportMetadataRepository
	if cfg.Dynamo.Enabled {
		metadataRepo, err := dynamodbRepo.NewExportMetadataRepository(startupCtx, dynamodbRepo.Config{
			TableName: cfg.Dynamo.Table,
			Region:    cfg.Dynamo.Region,
			Endpoint:  cfg.Dynamo.Endpoint,
		})
		if err != nil {
			log.Error("Failed to initialize export metadata index", err)
			os.Exit(1)
		}
		exportMetadata = metadataRepo
	}

	// Наблюдаемость
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(registry)

	var (
		cloudMetrics *cloudwatch.MetricsPublisher
		cloudLogs    *cloudwatch.LogsPublisher
	)
	if cfg.CloudWatch.Enabled {
		cloudMetrics, err = cloudwatch.NewMetricsPublisher(startupCtx, cloudwatch.MetricsPublisherConfig{
			Namespace:         cfg.CloudWatch.Namespace,
			Region:            cfg.CloudWatch.Region,
			DefaultDimensions: map[string]string{"Service": "water-quality-api"},
			FlushInterval:     cfg.CloudWatch.FlushInterval,
			StorageResolution: 60,
		}, log)
		if err != nil {
			log.Error("Failed to initialize CloudWatch metrics", err)
			os.Exit(1)
		}

		cloudLogs, err = cloudwatch.NewLogsPublisher(startupCtx, cloudwatch.LogsPublisherConfig{
			LogGroupName:  cfg.CloudWatch.LogGroup,
			LogStreamName: cfg.CloudWatch.LogStream,
			Region:        cfg.CloudWatch.Region,
			FlushInterval: cfg.CloudWatch.FlushInterval,
			AutoCreate:    true,
			StaticFields:  map[string]string{"service": "water-quality-api"},
		})
		if err != nil {
			log.Error("Failed to initialize CloudWatch logs", err)
			os.Exit(1)
		}
		log.SetLogPublisher(cloudLogs, port.ParseLogLevel(cfg.CloudWatch.LogLevel))
		log.Info("CloudWatch publishing enabled", "namespace", cfg.CloudWatch.Namespace)
	}

	// WebSocket Hub
	hub := wsInfra.NewHub(log)
	hub.OnClientCount(func(n int) { appMetrics.WebSocketClients.Set(float64(n)) })

	// 5. Dependency Injection - Domain Layer

	aggregator := service.NewReadingAggregator()
	validator := service.NewReadingValidator(cfg.Ingestion.MaxClockSkew)

	// 6. Dependency Injection - Application Layer (Use Cases)

	ingestUC := usecase.NewIngestReadingsUseCase(
		readingRepo,
		validator,
		usecase.IngestReadingsConfig{
			MaxBatchSize: cfg.Ingestion.MaxBatchSize,
			StaleAfter:   cfg.Ingestion.StaleAfter,
		},
		log,
	).WithNotifier(hub).WithRecorder(appMetrics)
	if events != nil {
		ingestUC.WithEventPublisher(events)
	}
	if cache != nil {
		ingestUC.WithCache(cache)
	}
	if cloudMetrics != nil {
		ingestUC.WithMetricsPublisher(cloudMetrics)
	}

	getLatestUC := usecase.NewGetLatestReadingsUseCase(readingRepo, cfg.Ingestion.StaleAfter, log)
	getHistoryUC := usecase.NewGetReadingHistoryUseCase(readingRepo, aggregator, cache, historyCacheTTL, log)
	listReadingsUC := usecase.NewListReadingsUseCase(readingRepo, log)

	exportUC := usecase.NewExportReadingsUseCase(
		readingRepo,
		aggregator,
		exportStorage,
		exportMetadata,
		events,
		usecase.ExportReadingsConfig{
			KeyPrefix: cfg.S3.KeyPrefix,
			TTL:       cfg.Dynamo.ExportTTL,
		},
		log,
	)
	listExportsUC := usecase.NewListExportsUseCase(
		exportStorage,
		exportMetadata,
		usecase.ListExportsConfig{
			KeyPrefix:           cfg.S3.KeyPrefix,
			FallbackToS3OnError: cfg.Dynamo.FallbackToS3OnError,
		},
		log,
	)

	purgeUC := usecase.NewPurgeReadingsUseCase(readingRepo, cfg.Retention.RetentionWindow(), events, cache, log)

	// 7. Dependency Injection - Interfaces Layer (HTTP Handlers)

	authConfig := httpInterface.NewAuthConfig(cfg.Security, appMetrics)
	handlers := httpInterface.Handlers{
		Dashboard: handler.NewDashboardHandler(getLatestUC, log),
		WebSocket: handler.NewWebSocketHandler(hub, getLatestUC, cfg.Security.AllowedOrigins, authConfig, log),
		Readings: handler.NewReadingAPIHandler(
			ingestUC,
			listReadingsUC,
			getLatestUC,
			getHistoryUC,
			cfg.Ingestion.MaxBodyBytes,
			log,
		),
		Units:   handler.NewUnitAPIHandler(usecase.NewDescribeUnitsUseCase(), usecase.NewConvertMeasurementUseCase(), log),
		Exports: handler.NewExportAPIHandler(exportUC, listExportsUC, log),
		Auth:    handler.NewAuthAPIHandler(authConfig, log),
	}

	// Router
	router := httpInterface.NewRouter(handlers, cfg.Security, cfg.Ingestion, appMetrics, registry, log)
	if db != nil {
		router.AddReadinessCheck("postgres", db.PingContext)
	}
	if redisConn != nil {
		router.AddReadinessCheck("redis", redisConn.Ping)
	}

	// 8. Запускаем фоновые процессы

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запускаем WebSocket hub
	go hub.Run(ctx)
	log.Info("WebSocket hub started")

	hostCollector := collector.NewHostCollector(hostDiskPath)
	jobs := scheduler.New(log)
	jobs.Add(scheduler.Job{
		Name:     "purge-readings",
		Interval: cfg.Retention.PurgeInterval,
		Timeout:  5 * time.Minute,
		Run: func(ctx context.Context) error {
			deleted, err := purgeUC.Execute(ctx)
			if err != nil {
				return err
			}
			appMetrics.RecordPurge(deleted)
			return nil
		},
	})
	jobs.Add(scheduler.Job{
		Name:     "host-sample",
		Interval: cfg.Host.SampleInterval,
		Timeout:  10 * time.Second,
		Run: func(ctx context.Context) error {
			_, err := hostCollector.Sample(ctx, appMetrics)
			return err
		},
	})
	if err := jobs.Start(); err != nil {
		log.Error("Failed to start scheduler", err)
		os.Exit(1)
	}

	// 9. Настраиваем HTTP сервер

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Канал для получения сигналов ОС
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Запускаем сервер в отдельной goroutine
	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port)
		log.Info("Dashboard available at http://localhost:" + cfg.Server.Port)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", err)
			os.Exit(1)
		}
	}()

	// 10. Ожидаем сигнал для graceful shutdown

	<-sigChan
	log.Info("Shutdown signal received, starting graceful shutdown...")

	// Останавливаем фоновые задачи и hub
	jobs.Stop()
	cancel()

	// Даем время на завершение текущих операций
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", err)
	}

	if events != nil {
		if err := events.Close(); err != nil {
			log.Error("Event publisher close error", err)
		}
	}
	if cache != nil {
		if err := cache.Close(); err != nil {
			log.Error("Redis close error", err)
		}
	}
	if cloudMetrics != nil {
		if err := cloudMetrics.Close(shutdownCtx); err != nil {
			log.Error("CloudWatch metrics flush error", err)
		}
	}

	log.Info("Server stopped gracefully")

	// Логи закрываются последними: logger пересылает в них записи до самого конца
	if cloudLogs != nil {
		_ = cloudLogs.Close(shutdownCtx)
	}
}

// newEventPublisher подключает брокер из EVENTS_BACKEND; nil, если события отключены
func newEventPublisher(cfg *config.Config, log *logger.Logger) (port.EventPublisher, error) {
	var next port.EventPublisher

	switch cfg.Events.Backend {
	case "nats":
		publisher, err := natsMessaging.NewNATSPublisher(natsMessaging.Options{
			URL:           cfg.NATS.URL,
			StreamName:    cfg.NATS.StreamName,
			MaxReconnects: cfg.NATS.MaxReconnects,
		}, log)
		if err != nil {
			return nil, err
		}
		next = publisher
	case "kafka":
		publisher, err := kafkaMessaging.NewKafkaPublisher(kafkaMessaging.Options{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, log)
		if err != nil {
			return nil, err
		}
		next = publisher
	default:
		log.Info("Event publishing is disabled")
		return nil, nil
	}

	return messaging.NewBreakerPublisher(next, messaging.BreakerSettings{
		Name: cfg.Events.Backend + "-events",
	}, log), nil
}
