package http

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dreschagin/water-quality-dashboard/internal/infrastructure/observability/metrics"
	"github.com/dreschagin/water-quality-dashboard/internal/interfaces/http/handler"
	"github.com/dreschagin/water-quality-dashboard/internal/interfaces/http/middleware"
	"github.com/dreschagin/water-quality-dashboard/pkg/config"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck проверяет зависимость (БД, кеш); ошибка делает /readyz недоступным
type ReadinessCheck func(ctx context.Context) error

// Handlers набор HTTP handlers приложения
type Handlers struct {
	Dashboard *handler.DashboardHandler
	WebSocket *handler.WebSocketHandler
	Readings  *handler.ReadingAPIHandler
	Units     *handler.UnitAPIHandler
	Exports   *handler.ExportAPIHandler
	Auth      *handler.AuthAPIHandler
}

// Router настраивает маршруты приложения
type Router struct {
	mux       *http.ServeMux
	handlers  Handlers
	security  config.SecurityConfig
	ingestion config.IngestionConfig
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	checks    map[string]ReadinessCheck
	logger    *logger.Logger
}

// NewRouter создает новый router. metrics и gatherer могут быть nil: тогда /metrics не публикуется.
func NewRouter(
	handlers Handlers,
	security config.SecurityConfig,
	ingestion config.IngestionConfig,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	logger *logger.Logger,
) *Router {
	return &Router{
		mux:       http.NewServeMux(),
		handlers:  handlers,
		security:  security,
		ingestion: ingestion,
		metrics:   m,
		gatherer:  gatherer,
		checks:    make(map[string]ReadinessCheck),
		logger:    logger,
	}
}

// AddReadinessCheck регистрирует проверку для /readyz
func (rt *Router) AddReadinessCheck(name string, check ReadinessCheck) {
	if check != nil {
		rt.checks[name] = check
	}
}

// NewAuthConfig собирает настройки авторизации, общие для middleware и WebSocket.
// Отказы учитываются в m, если он задан.
func NewAuthConfig(security config.SecurityConfig, m *metrics.Metrics) middleware.AuthConfig {
	cfg := middleware.AuthConfig{
		Enabled:     security.AuthEnabled,
		BearerToken: security.AuthToken,
	}
	if m != nil {
		cfg.OnFailure = m.AuthFailures.Inc
	}
	return cfg
}

// Setup настраивает все маршруты
func (rt *Router) Setup() http.Handler {
	// Static assets are embedded into the binary.
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic("failed to initialize embedded static assets: " + err.Error())
	}
	rt.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	// Health endpoints are unauthenticated for probes.
	rt.mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	rt.mux.HandleFunc("/readyz", rt.ready)

	if rt.gatherer != nil {
		rt.mux.Handle("/metrics", promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{}))
	}

	authMiddleware := middleware.Auth(NewAuthConfig(rt.security, rt.metrics), rt.logger)
	protect := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(h)
	}

	var onDrop func()
	if rt.metrics != nil {
		onDrop = rt.metrics.RateLimitDropped.Inc
	}
	var ingest http.Handler = protect(rt.handlers.Readings.Readings)
	if rt.ingestion.RateLimitPerMinute > 0 {
		limiter := middleware.NewIPRateLimiter(rt.ingestion.RateLimitPerMinute)
		ingest = middleware.RateLimit(limiter, onDrop)(ingest)
	}

	// Dashboard
	rt.mux.Handle("/", protect(rt.handlers.Dashboard.ShowDashboard))

	// WebSocket проверяет авторизацию сам: браузер не может передать заголовок
	rt.mux.HandleFunc("/ws", rt.handlers.WebSocket.HandleConnection)

	// API endpoints
	rt.mux.HandleFunc("/api/v1/auth/login", rt.handlers.Auth.Login)
	rt.mux.HandleFunc("/api/v1/auth/logout", rt.handlers.Auth.Logout)
	rt.mux.HandleFunc("/api/v1/auth/status", rt.handlers.Auth.Status)

	rt.mux.Handle("/api/v1/readings", ingest)
	rt.mux.Handle("/api/v1/readings/latest", protect(rt.handlers.Readings.Latest))
	rt.mux.Handle("/api/v1/readings/history", protect(rt.handlers.Readings.History))
	rt.mux.Handle("/api/v1/units", protect(rt.handlers.Units.Units))
	rt.mux.Handle("/api/v1/convert", protect(rt.handlers.Units.Convert))
	rt.mux.Handle("/api/v1/exports", protect(rt.handlers.Exports.Exports))

	// Применяем middleware
	var handler http.Handler = rt.mux
	handler = middleware.Compression(handler)
	handler = middleware.Recovery(rt.logger)(handler)
	handler = middleware.Logger(rt.logger)(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}

	return handler
}

func (rt *Router) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range rt.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		rt.logger.Warn("Readiness check failed", "failed", failed)
		middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"failed": failed,
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
