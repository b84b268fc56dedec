package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/application/dto"
	"github.com/dreschagin/water-quality-dashboard/internal/application/port"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/entity"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/repository"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/service"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
	"github.com/google/uuid"
)

const (
	exportContentType     = "text/csv"
	exportTimestampLayout = "20060102T150405Z"
	maxExportWindow       = 92 * 24 * time.Hour
)

var exportHeader = []string{
	"id",
	"sensor_id",
	"measured_at",
	"temperature",
	"temperature_unit",
	"temperature_k",
	"conductivity",
	"conductivity_unit",
	"conductivity_spm",
	"ph",
	"latitude",
	"longitude",
}

type ExportReadingsCommand struct {
	SensorID string
	From     time.Time
	To       time.Time
}

type ExportReadingsConfig struct {
	KeyPrefix string
	TTL       time.Duration
}

// ExportReadingsUseCase выгружает показания датчика за период в CSV
type ExportReadingsUseCase struct {
	repository repository.ReadingRepository
	aggregator *service.ReadingAggregator
	storage    port.ExportStorage
	metadata   port.ExportMetadataRepository
	events     port.EventPublisher
	config     ExportReadingsConfig
	logger     *logger.Logger
}

func NewExportReadingsUseCase(
	repository repository.ReadingRepository,
	aggregator *service.ReadingAggregator,
	storage port.ExportStorage,
	metadata port.ExportMetadataRepository,
	events port.EventPublisher,
	config ExportReadingsConfig,
	log *logger.Logger,
) *ExportReadingsUseCase {
	return &ExportReadingsUseCase{
		repository: repository,
		aggregator: aggregator,
		storage:    storage,
		metadata:   metadata,
		events:     events,
		config:     config,
		logger:     log,
	}
}

func (uc *ExportReadingsUseCase) Execute(ctx context.Context, cmd ExportReadingsCommand) (*dto.ExportDTO, error) {
	if uc.storage == nil {
		return nil, ErrStorageNotConfigured
	}

	sensorID, err := valueobject.NewSensorID(cmd.SensorID)
	if err != nil {
		return nil, err
	}

	timeRange, err := valueobject.NewTimeRange(cmd.From.UTC(), cmd.To.UTC())
	if err != nil {
		return nil, err
	}
	if err := timeRange.Within(maxExportWindow, "Export range"); err != nil {
		return nil, err
	}

	readings, err := uc.repository.FindByTimeRange(ctx, sensorID, timeRange)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch readings for export: %w", err)
	}
	readings = uc.aggregator.SortByTime(readings, false)

	body, err := renderReadingsCSV(readings)
	if err != nil {
		return nil, fmt.Errorf("failed to render export: %w", err)
	}

	exportID := uuid.New().String()
	createdAt := valueobject.Now().UTC()
	key := uc.buildS3Key(sensorID.String(), createdAt, exportID)

	url, err := uc.storage.PutObject(ctx, key, exportContentType, body)
	if err != nil {
		uc.logger.Error("Failed to upload readings export", err,
			"sensor_id", sensorID.String(),
			"key", key,
		)
		return nil, fmt.Errorf("failed to upload export: %w", err)
	}

	record := port.ExportMetadata{
		ExportID:  exportID,
		SensorID:  sensorID.String(),
		S3Key:     key,
		URL:       url,
		Format:    "csv",
		RowCount:  len(readings),
		SizeBytes: int64(len(body)),
		From:      timeRange.Start(),
		To:        timeRange.End(),
		CreatedAt: createdAt,
	}
	if uc.config.TTL > 0 {
		record.ExpiresAt = createdAt.Add(uc.config.TTL)
	}

	// Индекс метаданных вторичен: выгрузка уже доступна в S3
	if uc.metadata != nil {
		if err := uc.metadata.Put(ctx, record); err != nil {
			uc.logger.Warn("Failed to index readings export",
				"export_id", exportID,
				"error", err.Error(),
			)
		}
	}

	if uc.events != nil {
		if err := uc.events.PublishEvent(ctx, port.SubjectExportCreated, record); err != nil {
			uc.logger.Warn("Failed to publish export event", "export_id", exportID, "error", err.Error())
		}
	}

	uc.logger.Info("Readings exported",
		"export_id", exportID,
		"sensor_id", sensorID.String(),
		"rows", len(readings),
	)

	return &dto.ExportDTO{
		ExportID:  exportID,
		SensorID:  record.SensorID,
		Key:       key,
		URL:       url,
		RowCount:  record.RowCount,
		SizeBytes: record.SizeBytes,
		From:      record.From,
		To:        record.To,
		CreatedAt: createdAt,
	}, nil
}

func (uc *ExportReadingsUseCase) buildS3Key(sensorID string, createdAt time.Time, exportID string) string {
	return fmt.Sprintf("%s%s/%s_%s.csv",
		exportPrefix(uc.config.KeyPrefix, sensorID),
		createdAt.Format("2006/01/02"),
		createdAt.Format(exportTimestampLayout),
		exportID,
	)
}

func exportPrefix(keyPrefix, sensorID string) string {
	prefix := strings.Trim(keyPrefix, "/")
	if prefix == "" {
		prefix = "exports"
	}
	return fmt.Sprintf("%s/%s/", prefix, sensorID)
}

func renderReadingsCSV(readings []*entity.Reading) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}

	for _, r := range readings {
		lat, lon := "", ""
		if loc, ok := r.Location(); ok {
			lat = formatFloat(loc.Latitude())
			lon = formatFloat(loc.Longitude())
		}

		record := []string{
			r.ID(),
			r.SensorID().String(),
			r.MeasuredAt().UTC().Format(time.RFC3339),
			formatFloat(r.Temperature().Value()),
			r.Temperature().Unit().Symbol(),
			formatFloat(r.Temperature().AsKelvin()),
			formatFloat(r.Conductivity().Value()),
			r.Conductivity().Unit().Symbol(),
			formatFloat(r.Conductivity().AsSiemensPerMeter()),
			formatFloat(r.PH().Value()),
			lat,
			lon,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
