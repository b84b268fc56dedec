package handler

import (
	"net/http"
	"strings"

	"github.com/dreschagin/water-quality-dashboard/internal/application/dto"
	"github.com/dreschagin/water-quality-dashboard/internal/application/usecase"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/water-quality-dashboard/internal/interfaces/http/middleware"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
)

const maxExportRequestBytes = 4 << 10

// ExportAPIHandler создает CSV выгрузки и перечисляет их
type ExportAPIHandler struct {
	exportUC *usecase.ExportReadingsUseCase
	listUC   *usecase.ListExportsUseCase
	logger   *logger.Logger
}

func NewExportAPIHandler(
	exportUC *usecase.ExportReadingsUseCase,
	listUC *usecase.ListExportsUseCase,
	logger *logger.Logger,
) *ExportAPIHandler {
	return &ExportAPIHandler{
		exportUC: exportUC,
		listUC:   listUC,
		logger:   logger,
	}
}

// Exports обслуживает /api/v1/exports: POST создает выгрузку, GET возвращает список
func (h *ExportAPIHandler) Exports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.Create(w, r)
	case http.MethodGet:
		h.List(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		middleware.WriteJSON(w, http.StatusMethodNotAllowed, dto.ErrorResponseDTO{Error: "Method not allowed", Code: "method_not_allowed"})
	}
}

func (h *ExportAPIHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateExportRequest
	if err := decodeJSON(w, r, maxExportRequestBytes, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	export, err := h.exportUC.Execute(r.Context(), usecase.ExportReadingsCommand{
		SensorID: req.SensorID,
		From:     req.From,
		To:       req.To,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, export)
}

// List GET /api/v1/exports?sensor_id=...&limit=&cursor=&from=&to=
func (h *ExportAPIHandler) List(w http.ResponseWriter, r *http.Request) {
	var errs valueobject.ValidationErrors

	limit, err := queryInt(r, "limit")
	errs = errs.Append(err)
	from, err := queryTime(r, "from")
	errs = errs.Append(err)
	to, err := queryTime(r, "to")
	errs = errs.Append(err)

	if len(errs) > 0 {
		writeError(w, h.logger, errs)
		return
	}

	query := r.URL.Query()
	page, err := h.listUC.Execute(r.Context(), usecase.ListExportsCommand{
		SensorID: strings.TrimSpace(query.Get("sensor_id")),
		Limit:    limit,
		Cursor:   strings.TrimSpace(query.Get("cursor")),
		From:     from,
		To:       to,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, page)
}
