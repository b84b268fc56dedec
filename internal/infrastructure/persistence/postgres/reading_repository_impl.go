package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/domain/entity"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/repository"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
	_ "github.com/lib/pq"
)

const readingColumns = `id, sensor_id, temperature_value, temperature_unit, conductivity_value, conductivity_unit,
		ph, latitude, longitude, metadata, measured_at, ingested_at`

const insertReadingQuery = `
		INSERT INTO readings (` + readingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

// PostgresReadingRepository реализует repository.ReadingRepository для PostgreSQL
type PostgresReadingRepository struct {
	db *sql.DB
}

// NewPostgresReadingRepository создает новый PostgreSQL repository
func NewPostgresReadingRepository(db *sql.DB) *PostgresReadingRepository {
	return &PostgresReadingRepository{
		db: db,
	}
}

// Save сохраняет одно показание
func (r *PostgresReadingRepository) Save(ctx context.Context, reading *entity.Reading) error {
	model, err := ToDBModel(reading)
	if err != nil {
		return fmt.Errorf("failed to convert to DB model: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, insertReadingQuery, modelArgs(model)...); err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}

	return nil
}

// SaveBatch сохраняет несколько показаний одной транзакцией
func (r *PostgresReadingRepository) SaveBatch(ctx context.Context, readings []*entity.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, insertReadingQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, reading := range readings {
		model, err := ToDBModel(reading)
		if err != nil {
			return fmt.Errorf("failed to convert reading to DB model: %w", err)
		}

		if _, err := stmt.ExecContext(ctx, modelArgs(model)...); err != nil {
			return fmt.Errorf("failed to insert reading: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindByID находит показание по идентификатору
func (r *PostgresReadingRepository) FindByID(ctx context.Context, id string) (*entity.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)
	model, err := ScanReadingRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", repository.ErrReadingNotFound, id)
		}
		return nil, fmt.Errorf("failed to scan reading: %w", err)
	}

	return ToEntity(model)
}

// List возвращает показания по фильтру, новые первыми
func (r *PostgresReadingRepository) List(ctx context.Context, filter repository.ReadingFilter) ([]*entity.Reading, error) {
	where, args := buildFilter(filter)

	query := `SELECT ` + readingColumns + ` FROM readings` + where + ` ORDER BY measured_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	return r.scanReadings(rows)
}

// Count возвращает количество показаний по фильтру
func (r *PostgresReadingRepository) Count(ctx context.Context, filter repository.ReadingFilter) (int64, error) {
	where, args := buildFilter(filter)

	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM readings`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count readings: %w", err)
	}

	return count, nil
}

// FindByTimeRange находит показания датчика во временном диапазоне
func (r *PostgresReadingRepository) FindByTimeRange(
	ctx context.Context,
	sensorID valueobject.SensorID,
	timeRange valueobject.TimeRange,
) ([]*entity.Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM readings
		WHERE sensor_id = $1 AND measured_at BETWEEN $2 AND $3
		ORDER BY measured_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query,
		sensorID.String(),
		timeRange.Start(),
		timeRange.End(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	return r.scanReadings(rows)
}

// FindLatest находит последнее показание каждого датчика
func (r *PostgresReadingRepository) FindLatest(ctx context.Context, limit int) ([]*entity.Reading, error) {
	query := `
		SELECT DISTINCT ON (sensor_id) ` + readingColumns + `
		FROM readings
		ORDER BY sensor_id, measured_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest readings: %w", err)
	}
	defer rows.Close()

	return r.scanReadings(rows)
}

// DeleteOlderThan удаляет показания, измеренные раньше cutoff
func (r *PostgresReadingRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM readings WHERE measured_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old readings: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return rowsAffected, nil
}

// scanReadings сканирует несколько строк в слайс показаний
func (r *PostgresReadingRepository) scanReadings(rows *sql.Rows) ([]*entity.Reading, error) {
	readings := make([]*entity.Reading, 0)

	for rows.Next() {
		model, err := ScanReadingRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading row: %w", err)
		}

		reading, err := ToEntity(model)
		if err != nil {
			return nil, fmt.Errorf("failed to convert to entity: %w", err)
		}

		readings = append(readings, reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return readings, nil
}

func buildFilter(filter repository.ReadingFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.SensorID != "" {
		args = append(args, filter.SensorID)
		conditions = append(conditions, "sensor_id = $"+strconv.Itoa(len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conditions = append(conditions, "measured_at >= $"+strconv.Itoa(len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conditions = append(conditions, "measured_at <= $"+strconv.Itoa(len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func modelArgs(model *ReadingDBModel) []interface{} {
	var metadata interface{}
	if len(model.Metadata) > 0 {
		metadata = string(model.Metadata)
	}

	return []interface{}{
		model.ID,
		model.SensorID,
		model.TemperatureValue,
		model.TemperatureUnit,
		model.ConductivityValue,
		model.ConductivityUnit,
		model.PH,
		model.Latitude,
		model.Longitude,
		metadata,
		model.MeasuredAt,
		model.IngestedAt,
	}
}
