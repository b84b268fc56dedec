package usecase

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/application/dto"
	"github.com/dreschagin/water-quality-dashboard/internal/application/port"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
)

type ListExportsCommand struct {
	SensorID string
	Limit    int
	Cursor   string
	From     time.Time
	To       time.Time
}

type ListExportsConfig struct {
	KeyPrefix           string
	DefaultLimit        int
	MaxLimit            int
	FallbackToS3OnError bool
}

// ListExportsUseCase возвращает выгрузки датчика: из индекса DynamoDB или, при его отказе, из S3
type ListExportsUseCase struct {
	storage            port.ExportStorage
	metadataRepository port.ExportMetadataRepository
	config             ListExportsConfig
	logger             *logger.Logger
}

func NewListExportsUseCase(
	storage port.ExportStorage,
	metadataRepository port.ExportMetadataRepository,
	config ListExportsConfig,
	log *logger.Logger,
) *ListExportsUseCase {
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 24
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = 100
	}
	return &ListExportsUseCase{
		storage:            storage,
		metadataRepository: metadataRepository,
		config:             config,
		logger:             log,
	}
}

func (uc *ListExportsUseCase) Execute(ctx context.Context, cmd ListExportsCommand) (*dto.ExportListDTO, error) {
	sensorID, err := valueobject.NewSensorID(cmd.SensorID)
	if err != nil {
		return nil, err
	}

	limit := cmd.Limit
	if limit <= 0 {
		limit = uc.config.DefaultLimit
	}
	if limit > uc.config.MaxLimit {
		limit = uc.config.MaxLimit
	}

	if !cmd.From.IsZero() && !cmd.To.IsZero() && cmd.From.After(cmd.To) {
		return nil, valueobject.NewValidationError(valueobject.CodeInvalidDate, "from", "from must be less than or equal to to")
	}

	query := port.ExportListQuery{
		SensorID: sensorID.String(),
		Limit:    limit,
		Cursor:   strings.TrimSpace(cmd.Cursor),
		From:     cmd.From.UTC(),
		To:       cmd.To.UTC(),
	}

	if uc.metadataRepository != nil {
		page, err := uc.metadataRepository.ListBySensor(ctx, query)
		if err == nil {
			return uc.mapMetadataPage(ctx, page), nil
		}

		if !uc.config.FallbackToS3OnError {
			return nil, fmt.Errorf("failed to list exports via metadata index: %w", err)
		}

		if uc.logger != nil {
			uc.logger.Warn("Export metadata index is unavailable, using S3 fallback",
				"sensor_id", query.SensorID,
				"error", err.Error(),
			)
		}
	}

	return uc.listFromS3(ctx, query)
}

func (uc *ListExportsUseCase) mapMetadataPage(ctx context.Context, page port.ExportListPage) *dto.ExportListDTO {
	items := make([]dto.ExportDTO, 0, len(page.Items))
	for _, record := range page.Items {
		url := record.URL
		if uc.storage != nil {
			if generatedURL, err := uc.storage.GetObjectURL(ctx, record.S3Key); err == nil {
				url = generatedURL
			}
		}

		items = append(items, dto.ExportDTO{
			ExportID:  record.ExportID,
			SensorID:  record.SensorID,
			Key:       record.S3Key,
			URL:       url,
			RowCount:  record.RowCount,
			SizeBytes: record.SizeBytes,
			From:      record.From.UTC(),
			To:        record.To.UTC(),
			CreatedAt: record.CreatedAt.UTC(),
		})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	return &dto.ExportListDTO{
		Items:      items,
		NextCursor: page.NextCursor,
	}
}

func (uc *ListExportsUseCase) listFromS3(ctx context.Context, query port.ExportListQuery) (*dto.ExportListDTO, error) {
	if uc.storage == nil {
		return nil, ErrStorageNotConfigured
	}
	if query.Cursor != "" {
		return nil, ErrCursorRequiresIndex
	}

	prefix := exportPrefix(uc.config.KeyPrefix, query.SensorID)
	objects, err := uc.storage.ListObjects(ctx, prefix, query.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}

	filtered := make([]dto.ExportDTO, 0, len(objects))
	for _, object := range objects {
		createdAt := inferCreatedAt(object.Key)
		item := dto.ExportDTO{
			ExportID:  inferExportID(object.Key),
			SensorID:  query.SensorID,
			Key:       object.Key,
			URL:       object.URL,
			SizeBytes: object.SizeBytes,
			CreatedAt: createdAt,
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = object.LastModified.UTC()
		}

		if !query.From.IsZero() && item.CreatedAt.Before(query.From) {
			continue
		}
		if !query.To.IsZero() && item.CreatedAt.After(query.To) {
			continue
		}

		filtered = append(filtered, item)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	if len(filtered) > query.Limit {
		filtered = filtered[:query.Limit]
	}

	return &dto.ExportListDTO{Items: filtered}, nil
}

// Ключ выгрузки: <prefix>/<sensor>/<yyyy>/<mm>/<dd>/<timestamp>_<export_id>.csv
func splitExportFilename(key string) (string, string, bool) {
	filename := path.Base(strings.TrimSpace(key))
	if filename == "" || filename == "." || !strings.HasSuffix(filename, ".csv") {
		return "", "", false
	}

	withoutExt := strings.TrimSuffix(filename, ".csv")
	underscore := strings.IndexRune(withoutExt, '_')
	if underscore <= 0 || underscore == len(withoutExt)-1 {
		return "", "", false
	}
	return withoutExt[:underscore], withoutExt[underscore+1:], true
}

func inferExportID(key string) string {
	_, id, ok := splitExportFilename(key)
	if !ok {
		return "unknown"
	}
	return id
}

func inferCreatedAt(key string) time.Time {
	ts, _, ok := splitExportFilename(key)
	if !ok {
		return time.Time{}
	}
	createdAt, err := time.Parse(exportTimestampLayout, ts)
	if err != nil {
		return time.Time{}
	}
	return createdAt.UTC()
}
