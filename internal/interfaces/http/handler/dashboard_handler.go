package handler

import (
	"net/http"

	"github.com/dreschagin/water-quality-dashboard/internal/application/usecase"
	"github.com/dreschagin/water-quality-dashboard/internal/interfaces/view"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
)

// DashboardHandler обрабатывает запросы к dashboard
type DashboardHandler struct {
	getLatestUC *usecase.GetLatestReadingsUseCase
	logger      *logger.Logger
}

// NewDashboardHandler создает новый handler
func NewDashboardHandler(
	getLatestUC *usecase.GetLatestReadingsUseCase,
	logger *logger.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		getLatestUC: getLatestUC,
		logger:      logger,
	}
}

// ShowDashboard отображает главную страницу dashboard
func (h *DashboardHandler) ShowDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	snapshot, err := h.getLatestUC.Execute(r.Context())
	if err != nil {
		h.logger.Error("Failed to get latest readings", err)
		http.Error(w, "Failed to load readings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := view.Dashboard(snapshot).Render(r.Context(), w); err != nil {
		h.logger.Error("Failed to render dashboard", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
}
