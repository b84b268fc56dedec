//go:build integration
// +build integration

package http

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/lib/pq"

	"github.com/dreschagin/water-quality-dashboard/internal/application/dto"
	"github.com/dreschagin/water-quality-dashboard/internal/application/usecase"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/service"
	wsInfra "github.com/dreschagin/water-quality-dashboard/internal/infrastructure/notification/websocket"
	dynamodbRepo "github.com/dreschagin/water-quality-dashboard/internal/infrastructure/persistence/dynamodb"
	"github.com/dreschagin/water-quality-dashboard/internal/infrastructure/persistence/postgres"
	s3storage "github.com/dreschagin/water-quality-dashboard/internal/infrastructure/storage/s3"
	"github.com/dreschagin/water-quality-dashboard/internal/interfaces/http/handler"
	"github.com/dreschagin/water-quality-dashboard/pkg/config"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
)

const (
	integrationToken = "integration-token"
)

type integrationEnv struct {
	postgresDSN     string
	s3Endpoint      string
	s3Region        string
	s3AccessKey     string
	s3SecretKey     string
	s3Bucket        string
	s3UsePathStyle  bool
	dynamoEndpoint  string
	dynamoRegion    string
	dynamoAccessKey string
	dynamoSecretKey string
	dynamoTable     string
}

func loadIntegrationEnv() integrationEnv {
	return integrationEnv{
		postgresDSN:     getenv("INTEGRATION_POSTGRES_DSN", "host=localhost port=5432 user=postgres password=postgres dbname=water_quality sslmode=disable"),
		s3Endpoint:      getenv("INTEGRATION_S3_ENDPOINT", "http://localhost:9000"),
		s3Region:        getenv("INTEGRATION_S3_REGION", "us-east-1"),
		s3AccessKey:     getenv("INTEGRATION_S3_ACCESS_KEY", "minioadmin"),
		s3SecretKey:     getenv("INTEGRATION_S3_SECRET_KEY", "minioadmin"),
		s3Bucket:        getenv("INTEGRATION_S3_BUCKET", "water-quality-exports-e2e"),
		s3UsePathStyle:  true,
		dynamoEndpoint:  getenv("INTEGRATION_DYNAMO_ENDPOINT", "http://localhost:8000"),
		dynamoRegion:    getenv("INTEGRATION_DYNAMO_REGION", "us-east-1"),
		dynamoAccessKey: getenv("INTEGRATION_DYNAMO_ACCESS_KEY", "dynamo"),
		dynamoSecretKey: getenv("INTEGRATION_DYNAMO_SECRET_KEY", "dynamo"),
		dynamoTable:     getenv("INTEGRATION_DYNAMO_TABLE", "water_quality_exports_e2e"),
	}
}

func TestE2EIntegrationIngestAndExport(t *testing.T) {
	env := loadIntegrationEnv()
	ctx := context.Background()

	db := connectPostgres(t, env.postgresDSN)
	t.Cleanup(func() { _ = db.Close() })
	if err := postgres.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.Exec("DELETE FROM readings"); err != nil {
		t.Fatalf("cleanup readings: %v", err)
	}

	ensureS3Bucket(t, ctx, env)
	ensureDynamoTable(t, ctx, env)

	server := integrationServer(t, db, env)
	client := server.Client()
	auth := map[string]string{"Authorization": "Bearer " + integrationToken}

	ingest := doRequest(t, client, http.MethodPost, server.URL+"/api/v1/readings", bytes.NewBufferString(`{"readings":[
		{"sensor_id":"pier-1","temperature":12.5,"temperature_unit":"c","conductivity":450,"conductivity_unit":"us/cm","ph":7.8},
		{"sensor_id":"pier-1","temperature":290,"conductivity":0.05,"ph":7.6,"measured_at":"`+time.Now().UTC().Add(-10*time.Minute).Format(time.RFC3339)+`"}
	]}`), auth)
	if ingest.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(ingest.Body)
		t.Fatalf("expected 200 for ingest, got %d: %s", ingest.StatusCode, body)
	}
	ingest.Body.Close()

	history := doRequest(t, client, http.MethodGet, server.URL+"/api/v1/readings/history?sensor_id=pier-1&duration=1h", nil, auth)
	defer history.Body.Close()
	var historyPayload dto.ReadingHistoryDTO
	if err := json.NewDecoder(history.Body).Decode(&historyPayload); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(historyPayload.Readings) != 2 {
		t.Fatalf("expected 2 readings from postgres, got %d", len(historyPayload.Readings))
	}

	request, _ := json.Marshal(map[string]string{
		"sensor_id": "pier-1",
		"from":      time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
		"to":        time.Now().UTC().Add(time.Minute).Format(time.RFC3339),
	})
	export := doRequest(t, client, http.MethodPost, server.URL+"/api/v1/exports", bytes.NewBuffer(request), auth)
	if export.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for export, got %d", export.StatusCode)
	}
	export.Body.Close()

	list := doRequest(t, client, http.MethodGet, server.URL+"/api/v1/exports?sensor_id=pier-1&limit=10", nil, auth)
	defer list.Body.Close()
	var page dto.ExportListDTO
	if err := json.NewDecoder(list.Body).Decode(&page); err != nil {
		t.Fatalf("decode export list: %v", err)
	}
	if len(page.Items) == 0 || page.Items[0].RowCount != 2 {
		t.Fatalf("expected indexed export with 2 rows, got %+v", page.Items)
	}

	readyResp := doRequest(t, client, http.MethodGet, server.URL+"/readyz", nil, nil)
	if readyResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for readyz, got %d", readyResp.StatusCode)
	}
	readyResp.Body.Close()
}

func integrationServer(t *testing.T, db *sql.DB, env integrationEnv) *httptest.Server {
	t.Helper()
	log := logger.New("error")
	repo := postgres.NewPostgresReadingRepository(db)
	aggregator := service.NewReadingAggregator()

	hub := wsInfra.NewHub(log)
	getLatestUC := usecase.NewGetLatestReadingsUseCase(repo, time.Hour, log)
	ingestUC := usecase.NewIngestReadingsUseCase(repo, service.NewReadingValidator(time.Minute),
		usecase.IngestReadingsConfig{MaxBatchSize: 100, StaleAfter: time.Hour}, log)

	s3Store := buildS3Storage(t, env)
	metadataRepo := buildDynamoRepo(t, env)

	security := config.SecurityConfig{
		AllowedOrigins: []string{"http://localhost:8080"},
		AuthEnabled:    true,
		AuthToken:      integrationToken,
	}
	authConfig := NewAuthConfig(security, nil)
	handlers := Handlers{
		Dashboard: handler.NewDashboardHandler(getLatestUC, log),
		WebSocket: handler.NewWebSocketHandler(hub, getLatestUC, security.AllowedOrigins, authConfig, log),
		Readings: handler.NewReadingAPIHandler(
			ingestUC,
			usecase.NewListReadingsUseCase(repo, log),
			getLatestUC,
			usecase.NewGetReadingHistoryUseCase(repo, aggregator, nil, 0, log),
			1<<20,
			log,
		),
		Units: handler.NewUnitAPIHandler(usecase.NewDescribeUnitsUseCase(), usecase.NewConvertMeasurementUseCase(), log),
		Exports: handler.NewExportAPIHandler(
			usecase.NewExportReadingsUseCase(repo, aggregator, s3Store, metadataRepo, nil,
				usecase.ExportReadingsConfig{KeyPrefix: "exports", TTL: time.Hour}, log),
			usecase.NewListExportsUseCase(s3Store, metadataRepo, usecase.ListExportsConfig{KeyPrefix: "exports"}, log),
			log,
		),
		Auth: handler.NewAuthAPIHandler(authConfig, log),
	}
	router := NewRouter(handlers, security, config.IngestionConfig{}, nil, nil, log)
	router.AddReadinessCheck("postgres", db.PingContext)

	server := httptest.NewServer(router.Setup())
	t.Cleanup(server.Close)
	return server
}

func connectPostgres(t *testing.T, dsn string) *sql.DB {
	t.Helper()
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("ping postgres: %v", err)
	}
	return db
}

func buildS3Storage(t *testing.T, env integrationEnv) *s3storage.ExportStorage {
	t.Helper()
	store, err := s3storage.NewExportStorage(context.Background(), s3storage.Config{
		Bucket:          env.s3Bucket,
		Region:          env.s3Region,
		Endpoint:        env.s3Endpoint,
		AccessKeyID:     env.s3AccessKey,
		SecretAccessKey: env.s3SecretKey,
		UsePathStyle:    env.s3UsePathStyle,
		URLMode:         s3storage.URLModePresigned,
		PresignedTTL:    2 * time.Minute,
	})
	if err != nil {
		t.Fatalf("init s3 storage: %v", err)
	}
	return store
}

func buildDynamoRepo(t *testing.T, env integrationEnv) *dynamodbRepo.ExportMetadataRepository {
	t.Helper()
	repo, err := dynamodbRepo.NewExportMetadataRepository(context.Background(), dynamodbRepo.Config{
		TableName:       env.dynamoTable,
		Region:          env.dynamoRegion,
		Endpoint:        env.dynamoEndpoint,
		AccessKeyID:     env.dynamoAccessKey,
		SecretAccessKey: env.dynamoSecretKey,
		StrongReads:     true,
	})
	if err != nil {
		t.Fatalf("init dynamodb repo: %v", err)
	}
	return repo
}

func ensureS3Bucket(t *testing.T, ctx context.Context, env integrationEnv) {
	t.Helper()
	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(env.s3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			env.s3AccessKey,
			env.s3SecretKey,
			"",
		)),
	)
	if err != nil {
		t.Fatalf("load aws config: %v", err)
	}
	client := s3.NewFromConfig(awsCfg, func(options *s3.Options) {
		options.BaseEndpoint = &env.s3Endpoint
		options.UsePathStyle = env.s3UsePathStyle
	})

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: &env.s3Bucket,
	})
	if err != nil && !isBucketExistsError(err) {
		t.Fatalf("create bucket: %v", err)
	}
}

func isBucketExistsError(err error) bool {
	var alreadyOwned *s3.BucketAlreadyOwnedByYou
	var alreadyExists *s3.BucketAlreadyExists
	if errors.As(err, &alreadyOwned) || errors.As(err, &alreadyExists) {
		return true
	}
	return strings.Contains(err.Error(), "BucketAlreadyOwnedByYou") || strings.Contains(err.Error(), "BucketAlreadyExists")
}

func ensureDynamoTable(t *testing.T, ctx context.Context, env integrationEnv) {
	t.Helper()
	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(env.dynamoRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			env.dynamoAccessKey,
			env.dynamoSecretKey,
			"",
		)),
	)
	if err != nil {
		t.Fatalf("load dynamo config: %v", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(options *dynamodb.Options) {
		options.BaseEndpoint = &env.dynamoEndpoint
	})

	_, err = client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: &env.dynamoTable,
	})
	if err == nil {
		return
	}

	_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: &env.dynamoTable,
		AttributeDefinitions: []ddbtypes.AttributeDefinition{
			{AttributeName: stringPtr("PK"), AttributeType: ddbtypes.ScalarAttributeTypeS},
			{AttributeName: stringPtr("SK"), AttributeType: ddbtypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbtypes.KeySchemaElement{
			{AttributeName: stringPtr("PK"), KeyType: ddbtypes.KeyTypeHash},
			{AttributeName: stringPtr("SK"), KeyType: ddbtypes.KeyTypeRange},
		},
		BillingMode: ddbtypes.BillingModePayPerRequest,
	})
	if err != nil {
		t.Fatalf("create dynamodb table: %v", err)
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: &env.dynamoTable}, 30*time.Second); err != nil {
		t.Fatalf("wait for table: %v", err)
	}
}

func getenv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func stringPtr(value string) *string {
	return &value
}
