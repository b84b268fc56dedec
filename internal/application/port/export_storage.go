package port

import (
	"context"
	"time"
)

// ExportObject объект выгрузки в хранилище
type ExportObject struct {
	Key          string
	URL          string
	SizeBytes    int64
	LastModified time.Time
}

// ExportStorage определяет интерфейс хранилища CSV-выгрузок (S3)
type ExportStorage interface {
	// PutObject загружает объект и возвращает URL для чтения
	PutObject(ctx context.Context, key, contentType string, body []byte) (string, error)

	// ListObjects возвращает объекты с префиксом, не более limit
	ListObjects(ctx context.Context, prefix string, limit int) ([]ExportObject, error)

	// GetObjectURL возвращает актуальный URL для чтения (presigned или публичный)
	GetObjectURL(ctx context.Context, key string) (string, error)
}
