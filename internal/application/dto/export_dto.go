package dto

import "time"

// ExportDTO описание выгрузки показаний
type ExportDTO struct {
	ExportID  string    `json:"export_id"`
	SensorID  string    `json:"sensor_id"`
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	RowCount  int       `json:"row_count"`
	SizeBytes int64     `json:"size_bytes"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	CreatedAt time.Time `json:"created_at"`
}

// ExportListDTO страница выгрузок
type ExportListDTO struct {
	Items      []ExportDTO `json:"items"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// CreateExportRequest запрос на выгрузку
type CreateExportRequest struct {
	SensorID string    `json:"sensor_id" validate:"required,max=128"`
	From     time.Time `json:"from" validate:"required"`
	To       time.Time `json:"to" validate:"required,gtfield=From"`
}
