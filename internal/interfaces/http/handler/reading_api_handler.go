package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/application/dto"
	"github.com/dreschagin/water-quality-dashboard/internal/application/usecase"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/service"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/water-quality-dashboard/internal/interfaces/http/middleware"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
)

const defaultHistoryDuration = time.Hour

// ReadingAPIHandler обрабатывает REST API показаний
type ReadingAPIHandler struct {
	ingestUC  *usecase.IngestReadingsUseCase
	listUC    *usecase.ListReadingsUseCase
	latestUC  *usecase.GetLatestReadingsUseCase
	historyUC *usecase.GetReadingHistoryUseCase
	maxBody   int64
	logger    *logger.Logger
}

// NewReadingAPIHandler создает новый handler; maxBody ограничивает тело запроса на прием
func NewReadingAPIHandler(
	ingestUC *usecase.IngestReadingsUseCase,
	listUC *usecase.ListReadingsUseCase,
	latestUC *usecase.GetLatestReadingsUseCase,
	historyUC *usecase.GetReadingHistoryUseCase,
	maxBody int64,
	logger *logger.Logger,
) *ReadingAPIHandler {
	return &ReadingAPIHandler{
		ingestUC:  ingestUC,
		listUC:    listUC,
		latestUC:  latestUC,
		historyUC: historyUC,
		maxBody:   maxBody,
		logger:    logger,
	}
}

// Readings обслуживает /api/v1/readings: POST принимает пакет, GET возвращает страницу
func (h *ReadingAPIHandler) Readings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.Ingest(w, r)
	case http.MethodGet:
		h.List(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		middleware.WriteJSON(w, http.StatusMethodNotAllowed, dto.ErrorResponseDTO{Error: "Method not allowed", Code: "method_not_allowed"})
	}
}

// Ingest принимает пакет показаний.
// Частично принятый пакет отвечает 200 с ошибками по отклоненным элементам;
// если не принято ни одного показания, ответ 400.
func (h *ReadingAPIHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req dto.IngestReadingsRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	raws := make([]service.RawReading, len(req.Readings))
	for i, input := range req.Readings {
		raws[i] = input.ToRaw()
	}

	result, err := h.ingestUC.Execute(r.Context(), raws)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if result.Accepted == 0 {
		middleware.WriteJSON(w, http.StatusBadRequest, dto.ErrorResponseDTO{
			Error:  "All readings were rejected",
			Code:   codeValidationError,
			Fields: result.Errors,
		})
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// List возвращает страницу показаний (sensor_id, from, to, limit, offset)
func (h *ReadingAPIHandler) List(w http.ResponseWriter, r *http.Request) {
	var errs valueobject.ValidationErrors

	from, err := queryTime(r, "from")
	errs = errs.Append(err)
	to, err := queryTime(r, "to")
	errs = errs.Append(err)
	limit, err := queryInt(r, "limit")
	errs = errs.Append(err)
	offset, err := queryInt(r, "offset")
	errs = errs.Append(err)

	if len(errs) > 0 {
		writeError(w, h.logger, errs)
		return
	}

	page, err := h.listUC.Execute(r.Context(), usecase.ListReadingsQuery{
		SensorID: strings.TrimSpace(r.URL.Query().Get("sensor_id")),
		From:     from,
		To:       to,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, page)
}

// Latest возвращает последние показания всех датчиков
func (h *ReadingAPIHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	snapshot, err := h.latestUC.Execute(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, snapshot)
}

// History возвращает показания датчика за duration (по умолчанию час) или за интервал from..to
func (h *ReadingAPIHandler) History(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	query := r.URL.Query()
	sensorID := strings.TrimSpace(query.Get("sensor_id"))

	if query.Get("from") != "" || query.Get("to") != "" {
		var errs valueobject.ValidationErrors
		from, err := queryTime(r, "from")
		errs = errs.Append(err)
		to, err := queryTime(r, "to")
		errs = errs.Append(err)
		if to.IsZero() && len(errs) == 0 {
			to = valueobject.Now().UTC()
		}
		if len(errs) > 0 {
			writeError(w, h.logger, errs)
			return
		}

		history, err := h.historyUC.ExecuteRange(r.Context(), sensorID, from, to)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, history)
		return
	}

	duration := defaultHistoryDuration
	if raw := strings.TrimSpace(query.Get("duration")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			writeError(w, h.logger, valueobject.NewValidationError(valueobject.CodeParseError, "duration",
				"Invalid duration, expected e.g. 30m or 24h"))
			return
		}
		duration = parsed
	}

	history, err := h.historyUC.Execute(r.Context(), sensorID, duration)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, history)
}
