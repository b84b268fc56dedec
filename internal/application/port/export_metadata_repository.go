package port

import (
	"context"
	"time"
)

// ExportMetadata описывает одну выгрузку показаний
type ExportMetadata struct {
	ExportID  string
	SensorID  string
	S3Key     string
	URL       string
	Format    string
	RowCount  int
	SizeBytes int64
	From      time.Time
	To        time.Time
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ExportListQuery параметры выборки выгрузок датчика
type ExportListQuery struct {
	SensorID string
	Limit    int
	Cursor   string
	From     time.Time
	To       time.Time
}

// ExportListPage страница выгрузок и курсор следующей страницы
type ExportListPage struct {
	Items      []ExportMetadata
	NextCursor string
}

// ExportMetadataRepository хранит индекс выгрузок (DynamoDB)
type ExportMetadataRepository interface {
	Put(ctx context.Context, record ExportMetadata) error
	ListBySensor(ctx context.Context, query ExportListQuery) (ExportListPage, error)
}
