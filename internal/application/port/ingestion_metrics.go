package port

import (
	"context"
	"time"
)

// IngestionStats сводка одного пакета показаний
type IngestionStats struct {
	Accepted     int
	Rejected     int
	Duration     time.Duration
	ErrorsByCode map[string]int
	// Количество принятых показаний по единице ввода, например "temperature:c"
	UnitsUsed map[string]int
	Timestamp time.Time
}

// IngestionRecorder фиксирует статистику приема в локальных метриках процесса (Prometheus)
type IngestionRecorder interface {
	RecordIngestion(stats IngestionStats)
}

// IngestionMetricsPublisher отправляет статистику приема во внешнюю систему (CloudWatch)
type IngestionMetricsPublisher interface {
	// PublishIngestion буферизует статистику пакета
	PublishIngestion(ctx context.Context, stats IngestionStats) error

	// Flush немедленно отправляет буфер (вызывается при остановке)
	Flush(ctx context.Context) error
}
