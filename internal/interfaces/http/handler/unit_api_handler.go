package handler

import (
	"net/http"

	"github.com/dreschagin/water-quality-dashboard/internal/application/usecase"
	"github.com/dreschagin/water-quality-dashboard/internal/interfaces/http/middleware"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
)

// UnitAPIHandler отдает реестры единиц и конвертирует значения
type UnitAPIHandler struct {
	describeUC *usecase.DescribeUnitsUseCase
	convertUC  *usecase.ConvertMeasurementUseCase
	logger     *logger.Logger
}

func NewUnitAPIHandler(
	describeUC *usecase.DescribeUnitsUseCase,
	convertUC *usecase.ConvertMeasurementUseCase,
	logger *logger.Logger,
) *UnitAPIHandler {
	return &UnitAPIHandler{
		describeUC: describeUC,
		convertUC:  convertUC,
		logger:     logger,
	}
}

// Units GET /api/v1/units?field=temperature
func (h *UnitAPIHandler) Units(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	units, err := h.describeUC.Execute(r.Context(), r.URL.Query().Get("field"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	middleware.WriteJSON(w, http.StatusOK, units)
}

// Convert GET /api/v1/convert?field=temperature&value=25&from=c&to=f
func (h *UnitAPIHandler) Convert(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	query := r.URL.Query()
	result, err := h.convertUC.Execute(r.Context(), usecase.ConvertMeasurementCommand{
		Field: query.Get("field"),
		Value: query.Get("value"),
		From:  query.Get("from"),
		To:    query.Get("to"),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}
