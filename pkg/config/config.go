package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Events     EventsConfig
	NATS       NATSConfig
	Kafka      KafkaConfig
	S3         S3Config
	Dynamo     DynamoConfig
	CloudWatch CloudWatchConfig
	Security   SecurityConfig
	Ingestion  IngestionConfig
	Retention  RetentionConfig
	Host       HostConfig
	LogLevel   string
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	// "postgres" или "memory" (показания в памяти процесса, для разработки)
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// EventsConfig выбирает брокер событий: nats, kafka или none
type EventsConfig struct {
	Backend string
}

type NATSConfig struct {
	URL           string
	StreamName    string
	MaxReconnects int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type S3Config struct {
	Enabled         bool
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	KeyPrefix       string
	URLMode         string
	PresignedTTL    time.Duration
}

type DynamoConfig struct {
	Enabled             bool
	Table               string
	Region              string
	Endpoint            string
	FallbackToS3OnError bool
	ExportTTL           time.Duration
}

type CloudWatchConfig struct {
	Enabled       bool
	Region        string
	Namespace     string
	LogGroup      string
	LogStream     string
	FlushInterval time.Duration
	LogLevel      string
}

type SecurityConfig struct {
	AllowedOrigins []string
	AuthEnabled    bool
	AuthToken      string
}

type IngestionConfig struct {
	MaxBatchSize       int
	MaxBodyBytes       int64
	RateLimitPerMinute int
	MaxClockSkew       time.Duration
	StaleAfter         time.Duration
}

type RetentionConfig struct {
	Days          int
	PurgeInterval time.Duration
}

type HostConfig struct {
	SampleInterval time.Duration
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	var err error
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "water_quality"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 10 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Events: EventsConfig{
			Backend: strings.ToLower(getEnv("EVENTS_BACKEND", "none")),
		},
		NATS: NATSConfig{
			URL:        getEnv("NATS_URL", "nats://localhost:4222"),
			StreamName: getEnv("NATS_STREAM", "WATER"),
		},
		Kafka: KafkaConfig{
			Brokers: splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getEnv("KAFKA_TOPIC", "water.readings"),
		},
		S3: S3Config{
			Enabled:         getEnvBool("S3_ENABLED", false),
			Bucket:          getEnv("S3_BUCKET", ""),
			Region:          getEnv("S3_REGION", "ru-central1"),
			Endpoint:        getEnv("S3_ENDPOINT", "https://storage.yandexcloud.net"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getEnvBool("S3_USE_PATH_STYLE", true),
			KeyPrefix:       getEnv("S3_KEY_PREFIX", "exports"),
			URLMode:         getEnv("S3_URL_MODE", "presigned"),
		},
		Dynamo: DynamoConfig{
			Enabled:             getEnvBool("DYNAMODB_ENABLED", false),
			Table:               getEnv("DYNAMODB_EXPORTS_TABLE", "water-quality-exports"),
			Region:              getEnv("DYNAMODB_REGION", "us-east-1"),
			Endpoint:            getEnv("DYNAMODB_ENDPOINT", ""),
			FallbackToS3OnError: getEnvBool("DYNAMODB_FALLBACK_TO_S3", true),
		},
		CloudWatch: CloudWatchConfig{
			Enabled:   getEnvBool("CLOUDWATCH_ENABLED", false),
			Region:    getEnv("CLOUDWATCH_REGION", "us-east-1"),
			Namespace: getEnv("CLOUDWATCH_NAMESPACE", "WaterQuality/Ingestion"),
			LogGroup:  getEnv("CLOUDWATCH_LOG_GROUP", "/water-quality/api"),
			LogStream: getEnv("CLOUDWATCH_LOG_STREAM", hostnameOr("api")),
			LogLevel:  strings.ToLower(getEnv("CLOUDWATCH_LOG_LEVEL", "warn")),
		},
		Security: SecurityConfig{
			AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:8080,http://127.0.0.1:8080")),
			AuthEnabled:    getEnvBool("AUTH_ENABLED", false),
			AuthToken:      getEnv("AUTH_BEARER_TOKEN", ""),
		},
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	if cfg.Database.MaxOpenConns, err = getEnvInt("DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.Database.MaxIdleConns, err = getEnvInt("DB_MAX_IDLE_CONNS", 5); err != nil {
		return nil, err
	}
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.Redis.TTL, err = getEnvDuration("REDIS_TTL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.NATS.MaxReconnects, err = getEnvInt("NATS_MAX_RECONNECTS", 10); err != nil {
		return nil, err
	}
	if cfg.S3.PresignedTTL, err = getEnvDuration("S3_PRESIGNED_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Dynamo.ExportTTL, err = getEnvDuration("DYNAMODB_EXPORT_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CloudWatch.FlushInterval, err = getEnvDuration("CLOUDWATCH_FLUSH_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Ingestion.MaxBatchSize, err = getEnvInt("INGEST_MAX_BATCH_SIZE", 500); err != nil {
		return nil, err
	}
	maxBodyKB, err := getEnvInt("INGEST_MAX_BODY_KB", 1024)
	if err != nil {
		return nil, err
	}
	cfg.Ingestion.MaxBodyBytes = int64(maxBodyKB) * 1024
	if cfg.Ingestion.RateLimitPerMinute, err = getEnvInt("INGEST_RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return nil, err
	}
	if cfg.Ingestion.MaxClockSkew, err = getEnvDuration("INGEST_MAX_CLOCK_SKEW", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Ingestion.StaleAfter, err = getEnvDuration("SENSOR_STALE_AFTER", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Retention.Days, err = getEnvInt("READINGS_RETENTION_DAYS", 90); err != nil {
		return nil, err
	}
	if cfg.Retention.PurgeInterval, err = getEnvDuration("READINGS_PURGE_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.Host.SampleInterval, err = getEnvDuration("HOST_SAMPLE_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Security.AuthEnabled && c.Security.AuthToken == "" {
		return fmt.Errorf("AUTH_BEARER_TOKEN is required when AUTH_ENABLED=true")
	}

	if c.Database.Driver != "postgres" && c.Database.Driver != "memory" {
		return fmt.Errorf("invalid DB_DRIVER: %q (expected postgres or memory)", c.Database.Driver)
	}

	switch c.Events.Backend {
	case "none", "nats", "kafka":
	default:
		return fmt.Errorf("invalid EVENTS_BACKEND: %q (expected nats, kafka or none)", c.Events.Backend)
	}

	if c.Events.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when EVENTS_BACKEND=kafka")
	}

	if c.S3.Enabled && c.S3.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required when S3_ENABLED=true")
	}

	if c.S3.URLMode != "presigned" && c.S3.URLMode != "public" {
		return fmt.Errorf("invalid S3_URL_MODE: %q (expected presigned or public)", c.S3.URLMode)
	}

	if c.Ingestion.MaxBatchSize <= 0 {
		return fmt.Errorf("invalid INGEST_MAX_BATCH_SIZE: must be positive")
	}

	if c.Retention.Days < 0 {
		return fmt.Errorf("invalid READINGS_RETENTION_DAYS: must not be negative")
	}

	return nil
}

// RetentionWindow возвращает срок хранения показаний; 0 означает бессрочно
func (c *RetentionConfig) RetentionWindow() time.Duration {
	return time.Duration(c.Days) * 24 * time.Hour
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return parsed, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return parsed, nil
}

func hostnameOr(fallback string) string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return fallback
	}
	return name
}

func splitCSV(raw string) []string {
	items := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
