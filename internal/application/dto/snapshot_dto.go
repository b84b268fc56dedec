package dto

import (
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/domain/entity"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/service"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
)

// SnapshotDTO последние показания всех датчиков.
// Используется дашбордом и для передачи через WebSocket.
type SnapshotDTO struct {
	Timestamp time.Time           `json:"timestamp"`
	Sensors   []*SensorStatusDTO  `json:"sensors"`
	Summary   *SnapshotSummaryDTO `json:"summary"`
}

// SensorStatusDTO последнее показание датчика и признак устаревания
type SensorStatusDTO struct {
	Reading *ReadingDTO `json:"reading"`
	Stale   bool        `json:"stale"`
}

// SnapshotSummaryDTO сводка по всем датчикам (канонические единицы)
type SnapshotSummaryDTO struct {
	SensorCount   int             `json:"sensor_count"`
	StaleCount    int             `json:"stale_count"`
	Temperature   service.Summary `json:"temperature_k"`
	Conductivity  service.Summary `json:"conductivity_spm"`
	PH            service.Summary `json:"ph"`
	OverallStatus string          `json:"overall_status"` // "healthy", "stale", "empty"
}

// NewSnapshotDTO создает snapshot из последних показаний датчиков
func NewSnapshotDTO(readings []*entity.Reading, staleAfter time.Duration) *SnapshotDTO {
	aggregator := service.NewReadingAggregator()
	summaries := aggregator.SummarizeAll(readings)

	snapshot := &SnapshotDTO{
		Timestamp: valueobject.Now().UTC(),
		Sensors:   make([]*SensorStatusDTO, 0, len(readings)),
		Summary: &SnapshotSummaryDTO{
			SensorCount:  len(readings),
			Temperature:  summaries[valueobject.FieldTemperature],
			Conductivity: summaries[valueobject.FieldConductivity],
			PH:           summaries[valueobject.FieldPH],
		},
	}

	for _, reading := range readings {
		stale := staleAfter > 0 && reading.IsStale(staleAfter)
		if stale {
			snapshot.Summary.StaleCount++
		}
		snapshot.Sensors = append(snapshot.Sensors, &SensorStatusDTO{
			Reading: FromEntity(reading),
			Stale:   stale,
		})
	}

	switch {
	case len(readings) == 0:
		snapshot.Summary.OverallStatus = "empty"
	case snapshot.Summary.StaleCount > 0:
		snapshot.Summary.OverallStatus = "stale"
	default:
		snapshot.Summary.OverallStatus = "healthy"
	}

	return snapshot
}

// RejectionReportDTO отчет об отклоненных показаниях пакета
type RejectionReportDTO struct {
	Timestamp time.Time           `json:"timestamp"`
	Rejected  int                 `json:"rejected"`
	Errors    map[string][]string `json:"errors"`
}

// ReadingHistoryDTO показания датчика за период со сводками по полям
type ReadingHistoryDTO struct {
	SensorID  string                     `json:"sensor_id"`
	From      time.Time                  `json:"from"`
	To        time.Time                  `json:"to"`
	Readings  []*ReadingDTO              `json:"readings"`
	Summaries map[string]service.Summary `json:"summaries"`
}
