package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dreschagin/water-quality-dashboard/internal/application/dto"
	"github.com/dreschagin/water-quality-dashboard/internal/application/port"
	"github.com/dreschagin/water-quality-dashboard/internal/application/usecase"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/service"
	wsInfra "github.com/dreschagin/water-quality-dashboard/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/water-quality-dashboard/internal/infrastructure/observability/metrics"
	"github.com/dreschagin/water-quality-dashboard/internal/infrastructure/persistence/memory"
	"github.com/dreschagin/water-quality-dashboard/internal/interfaces/http/handler"
	"github.com/dreschagin/water-quality-dashboard/pkg/config"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
)

const (
	testToken  = "test-token"
	testOrigin = "http://localhost:8080"
)

type memoryExportStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	created map[string]time.Time
}

func newMemoryExportStorage() *memoryExportStorage {
	return &memoryExportStorage{
		objects: make(map[string][]byte),
		created: make(map[string]time.Time),
	}
}

func (s *memoryExportStorage) PutObject(_ context.Context, key, _ string, body []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), body...)
	s.created[key] = time.Now().UTC()
	return "memory://" + key, nil
}

func (s *memoryExportStorage) ListObjects(_ context.Context, prefix string, limit int) ([]port.ExportObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]port.ExportObject, 0)
	for key, body := range s.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		result = append(result, port.ExportObject{
			Key:          key,
			URL:          "memory://" + key,
			SizeBytes:    int64(len(body)),
			LastModified: s.created[key],
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key > result[j].Key })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *memoryExportStorage) GetObjectURL(_ context.Context, key string) (string, error) {
	return "memory://" + key, nil
}

func (s *memoryExportStorage) body(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[key]
}

type testServer struct {
	*httptest.Server
	storage *memoryExportStorage
	router  *Router
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, security config.SecurityConfig, ingestion config.IngestionConfig) *testServer {
	t.Helper()

	log := logger.NewWithWriter("error", io.Discard)
	repo := memory.NewReadingRepository()
	aggregator := service.NewReadingAggregator()
	storage := newMemoryExportStorage()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	hub := wsInfra.NewHub(log)
	hub.OnClientCount(func(n int) { m.WebSocketClients.Set(float64(n)) })
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	getLatestUC := usecase.NewGetLatestReadingsUseCase(repo, time.Hour, log)
	ingestUC := usecase.NewIngestReadingsUseCase(repo, service.NewReadingValidator(time.Minute),
		usecase.IngestReadingsConfig{MaxBatchSize: 10, StaleAfter: time.Hour}, log).
		WithNotifier(hub).
		WithRecorder(m)

	authConfig := NewAuthConfig(security, m)
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
			usecase.NewExportReadingsUseCase(repo, aggregator, storage, nil, nil, usecase.ExportReadingsConfig{KeyPrefix: "exports"}, log),
			usecase.NewListExportsUseCase(storage, nil, usecase.ListExportsConfig{KeyPrefix: "exports"}, log),
			log,
		),
		Auth: handler.NewAuthAPIHandler(authConfig, log),
	}

	router := NewRouter(handlers, security, ingestion, m, registry, log)
	server := httptest.NewServer(router.Setup())
	t.Cleanup(server.Close)
	return &testServer{Server: server, storage: storage, router: router, metrics: m}
}

func securedConfig() config.SecurityConfig {
	return config.SecurityConfig{
		AllowedOrigins: []string{testOrigin},
		AuthEnabled:    true,
		AuthToken:      testToken,
	}
}

func bearer() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testToken}
}

func TestE2EHealthEndpoints(t *testing.T) {
	server := newTestServer(t, securedConfig(), config.IngestionConfig{})

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, resp.StatusCode)
		}
	}
}

func TestE2EReadinessFailure(t *testing.T) {
	server := newTestServer(t, securedConfig(), config.IngestionConfig{})
	server.router.AddReadinessCheck("database", func(context.Context) error {
		return errors.New("connection refused")
	})

	resp, err := http.Get(server.URL + "/readyz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}

	var payload struct {
		Failed map[string]string `json:"failed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode readiness response: %v", err)
	}
	if payload.Failed["database"] != "connection refused" {
		t.Fatalf("unexpected failed checks: %v", payload.Failed)
	}
}

func TestE2EIngestAndQuery(t *testing.T) {
	server := newTestServer(t, securedConfig(), config.IngestionConfig{})
	client := server.Client()

	body := bytes.NewBufferString(`{"readings":[
		{"sensor_id":"Pier 7","temperature":"77","temperature_unit":"F","conductivity":1280,"conductivity_unit":"ppm","ph":7.4},
		{"sensor_id":"pier-8","temperature":25,"temperature_unit":"kelvin","conductivity":1,"ph":7}
	]}`)

	unauthorized := doRequest(t, client, http.MethodPost, server.URL+"/api/v1/readings", body, nil)
	unauthorized.Body.Close()
	if unauthorized.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", unauthorized.StatusCode)
	}

	resp := doRequest(t, client, http.MethodPost, server.URL+"/api/v1/readings", body, bearer())
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for partially accepted batch, got %d", resp.StatusCode)
	}

	var result dto.IngestResultDTO
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode ingest response: %v", err)
	}
	if result.Accepted != 1 || result.Rejected != 1 {
		t.Fatalf("expected 1 accepted and 1 rejected, got %d/%d", result.Accepted, result.Rejected)
	}
	if _, ok := result.Errors["1.temperature"]; !ok {
		t.Fatalf("expected error for 1.temperature, got %v", result.Errors)
	}

	reading := result.Readings[0]
	if reading.SensorID != "pier-7" {
		t.Fatalf("expected slugged sensor id, got %q", reading.SensorID)
	}
	if reading.Temperature.Canonical != 298.15 {
		t.Fatalf("expected 298.15 K, got %v", reading.Temperature.Canonical)
	}
	if reading.Conductivity.Canonical != 0.2 {
		t.Fatalf("expected 0.2 S/m, got %v", reading.Conductivity.Canonical)
	}

	latest := doRequest(t, client, http.MethodGet, server.URL+"/api/v1/readings/latest", nil, bearer())
	defer latest.Body.Close()
	var snapshot dto.SnapshotDTO
	if err := json.NewDecoder(latest.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snapshot.Sensors) != 1 || snapshot.Summary.Temperature.Avg != 298.15 {
		t.Fatalf("unexpected snapshot: %+v", snapshot.Summary)
	}

	page := doRequest(t, client, http.MethodGet, server.URL+"/metrics", nil, nil)
	defer page.Body.Close()
	raw, _ := io.ReadAll(page.Body)
	if !strings.Contains(string(raw), `water_quality_unit_usage_total{field="conductivity",unit="ppm"} 1`) {
		t.Fatalf("expected unit usage metric, got:\n%s", raw)
	}
	if !strings.Contains(string(raw), "water_quality_auth_failures_total 1") {
		t.Fatalf("expected auth failure metric, got:\n%s", raw)
	}
}

func TestE2EConvertAndUnits(t *testing.T) {
	server := newTestServer(t, config.SecurityConfig{AllowedOrigins: []string{testOrigin}}, config.IngestionConfig{})
	client := server.Client()

	resp := doRequest(t, client, http.MethodGet, server.URL+"/api/v1/convert?field=conductivity&value=1280&from=ppm&to=ms/cm", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for conversion, got %d", resp.StatusCode)
	}
	var conversion dto.ConversionDTO
	if err := json.NewDecoder(resp.Body).Decode(&conversion); err != nil {
		t.Fatalf("decode conversion: %v", err)
	}
	if conversion.Result != 2 {
		t.Fatalf("expected 2 mS/cm, got %v", conversion.Result)
	}

	bad := doRequest(t, client, http.MethodGet, server.URL+"/api/v1/convert?field=temperature&value=-300&from=c", nil, nil)
	defer bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for out of range value, got %d", bad.StatusCode)
	}
	var errResp dto.ErrorResponseDTO
	if err := json.NewDecoder(bad.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != "too_small" {
		t.Fatalf("expected too_small, got %q", errResp.Code)
	}
}

func TestE2EExports(t *testing.T) {
	server := newTestServer(t, securedConfig(), config.IngestionConfig{})
	client := server.Client()

	ingest := doRequest(t, client, http.MethodPost, server.URL+"/api/v1/readings",
		bytes.NewBufferString(`{"readings":[{"sensor_id":"pier-1","temperature":10,"temperature_unit":"c","conductivity":0.5,"ph":7}]}`),
		bearer())
	ingest.Body.Close()
	if ingest.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for ingest, got %d", ingest.StatusCode)
	}

	now := time.Now().UTC()
	request, _ := json.Marshal(map[string]string{
		"sensor_id": "pier-1",
		"from":      now.Add(-time.Hour).Format(time.RFC3339),
		"to":        now.Add(time.Minute).Format(time.RFC3339),
	})
	resp := doRequest(t, client, http.MethodPost, server.URL+"/api/v1/exports", bytes.NewBuffer(request), bearer())
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for export, got %d", resp.StatusCode)
	}
	var export dto.ExportDTO
	if err := json.NewDecoder(resp.Body).Decode(&export); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if export.RowCount != 1 {
		t.Fatalf("expected 1 row, got %d", export.RowCount)
	}
	if !strings.HasPrefix(export.Key, "exports/pier-1/") {
		t.Fatalf("unexpected export key %q", export.Key)
	}
	if csv := string(server.storage.body(export.Key)); !strings.Contains(csv, "283.15") {
		t.Fatalf("expected canonical temperature in csv, got:\n%s", csv)
	}

	list := doRequest(t, client, http.MethodGet, server.URL+"/api/v1/exports?sensor_id=pier-1", nil, bearer())
	defer list.Body.Close()
	var page dto.ExportListDTO
	if err := json.NewDecoder(list.Body).Decode(&page); err != nil {
		t.Fatalf("decode export list: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ExportID != export.ExportID {
		t.Fatalf("expected created export in list, got %+v", page.Items)
	}
}

func TestE2ERateLimit(t *testing.T) {
	server := newTestServer(t, config.SecurityConfig{}, config.IngestionConfig{RateLimitPerMinute: 1})
	client := server.Client()

	first := doRequest(t, client, http.MethodGet, server.URL+"/api/v1/readings", nil, nil)
	first.Body.Close()
	if first.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for first request, got %d", first.StatusCode)
	}

	second := doRequest(t, client, http.MethodGet, server.URL+"/api/v1/readings", nil, nil)
	second.Body.Close()
	if second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for second request, got %d", second.StatusCode)
	}
}

func TestE2EDashboardAndWebSocket(t *testing.T) {
	server := newTestServer(t, securedConfig(), config.IngestionConfig{})
	client := server.Client()

	page := doRequest(t, client, http.MethodGet, server.URL+"/", nil, bearer())
	defer page.Body.Close()
	if page.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for dashboard, got %d", page.StatusCode)
	}
	html, _ := io.ReadAll(page.Body)
	if !strings.Contains(string(html), "Water Quality Dashboard") {
		t.Fatalf("unexpected dashboard body")
	}

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {testOrigin}}); err == nil {
		t.Fatalf("expected websocket without token to fail")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for websocket without token, got %v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+testToken, http.Header{"Origin": {testOrigin}})
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	var message struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&message); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if message.Type != wsInfra.MessageSnapshot {
		t.Fatalf("expected initial snapshot, got %q", message.Type)
	}

	// Регистрация в hub асинхронна; ждем, пока клиент появится
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if testutil.ToFloat64(server.metrics.WebSocketClients) == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	ingest := doRequest(t, client, http.MethodPost, server.URL+"/api/v1/readings",
		bytes.NewBufferString(`{"readings":[{"sensor_id":"pier-1","temperature":10,"temperature_unit":"c","conductivity":0.5,"ph":7}]}`),
		bearer())
	ingest.Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&message); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if message.Type != wsInfra.MessageSnapshot {
		t.Fatalf("expected snapshot broadcast, got %q", message.Type)
	}
	if !strings.Contains(string(message.Data), `"sensor_id":"pier-1"`) {
		t.Fatalf("expected pier-1 in broadcast, got %s", message.Data)
	}
}

func doRequest(t *testing.T, client *http.Client, method, url string, body *bytes.Buffer, headers map[string]string) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body.Bytes())
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}
