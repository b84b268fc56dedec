package dynamodb

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dreschagin/water-quality-dashboard/internal/application/port"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/valueobject"
)

const (
	defaultListLimit = 24
	maxListLimit     = 100

	attrPK        = "PK"
	attrSK        = "SK"
	attrExportID  = "export_id"
	attrSensorID  = "sensor_id"
	attrS3Key     = "s3_key"
	attrURL       = "url"
	attrFormat    = "format"
	attrRowCount  = "row_count"
	attrSizeBytes = "size_bytes"
	attrFromMS    = "from_ms"
	attrToMS      = "to_ms"
	attrCreatedAt = "created_at"
	attrExpiresAt = "expires_at"
)

type Config struct {
	TableName       string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	StrongReads     bool
}

type itemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ExportMetadataRepository индекс CSV-выгрузок в DynamoDB.
// PK = SENSOR#<id>, SK = TS#<created_ms>#KEY#<hash>; expires_at используется как TTL-атрибут таблицы.
type ExportMetadataRepository struct {
	client      itemAPI
	tableName   string
	strongReads bool
}

type cursorPayload struct {
	SensorID string                 `json:"sensor_id"`
	FromMS   int64                  `json:"from_ms,omitempty"`
	ToMS     int64                  `json:"to_ms,omitempty"`
	Key      map[string]cursorValue `json:"key"`
}

type cursorValue struct {
	S string `json:"s,omitempty"`
	N string `json:"n,omitempty"`
}

func NewExportMetadataRepository(ctx context.Context, cfg Config) (*ExportMetadataRepository, error) {
	if strings.TrimSpace(cfg.TableName) == "" {
		return nil, fmt.Errorf("dynamodb table name is required")
	}

	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	accessKeyID := strings.TrimSpace(cfg.AccessKeyID)
	secretAccessKey := strings.TrimSpace(cfg.SecretAccessKey)
	if accessKeyID != "" || secretAccessKey != "" {
		if accessKeyID == "" || secretAccessKey == "" {
			return nil, fmt.Errorf("both dynamodb access key id and secret access key are required for static credentials")
		}
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID,
			secretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config for dynamodb: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(options *dynamodb.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			options.BaseEndpoint = aws.String(endpoint)
		}
	})

	return newExportMetadataRepository(client, cfg), nil
}

func newExportMetadataRepository(client itemAPI, cfg Config) *ExportMetadataRepository {
	return &ExportMetadataRepository{
		client:      client,
		tableName:   strings.TrimSpace(cfg.TableName),
		strongReads: cfg.StrongReads,
	}
}

func (r *ExportMetadataRepository) Put(ctx context.Context, record port.ExportMetadata) error {
	item, err := toItem(record)
	if err != nil {
		return err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamodb put item failed: %w", err)
	}
	return nil
}

// ListBySensor возвращает выгрузки датчика от новых к старым
func (r *ExportMetadataRepository) ListBySensor(ctx context.Context, query port.ExportListQuery) (port.ExportListPage, error) {
	sensorID, err := valueobject.NewSensorID(query.SensorID)
	if err != nil {
		return port.ExportListPage{}, err
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	fromMS, toMS, hasRange, err := normalizeTimeRange(query.From, query.To)
	if err != nil {
		return port.ExportListPage{}, err
	}

	keyCondition := "#pk = :pk"
	input := &dynamodb.QueryInput{
		TableName:                aws.String(r.tableName),
		Limit:                    aws.Int32(int32(limit)),
		ScanIndexForward:         aws.Bool(false),
		ConsistentRead:           aws.Bool(r.strongReads),
		ExpressionAttributeNames: map[string]string{"#pk": attrPK},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: buildPK(sensorID.String())},
		},
	}
	if hasRange {
		input.ExpressionAttributeNames["#sk"] = attrSK
		input.ExpressionAttributeValues[":from"] = &types.AttributeValueMemberS{Value: buildSortLowerBound(fromMS)}
		input.ExpressionAttributeValues[":to"] = &types.AttributeValueMemberS{Value: buildSortUpperBound(toMS)}
		keyCondition += " AND #sk BETWEEN :from AND :to"
	}
	input.KeyConditionExpression = aws.String(keyCondition)

	if strings.TrimSpace(query.Cursor) != "" {
		exclusiveStartKey, err := decodeCursor(query.Cursor, sensorID.String(), fromMS, toMS)
		if err != nil {
			return port.ExportListPage{}, err
		}
		input.ExclusiveStartKey = exclusiveStartKey
	}

	output, err := r.client.Query(ctx, input)
	if err != nil {
		return port.ExportListPage{}, fmt.Errorf("dynamodb query failed: %w", err)
	}

	items := make([]port.ExportMetadata, 0, len(output.Items))
	for _, raw := range output.Items {
		item, err := fromItem(raw)
		if err != nil {
			return port.ExportListPage{}, err
		}
		items = append(items, item)
	}

	nextCursor := ""
	if len(output.LastEvaluatedKey) > 0 {
		nextCursor, err = encodeCursor(output.LastEvaluatedKey, sensorID.String(), fromMS, toMS)
		if err != nil {
			return port.ExportListPage{}, err
		}
	}

	return port.ExportListPage{
		Items:      items,
		NextCursor: nextCursor,
	}, nil
}

func toItem(record port.ExportMetadata) (map[string]types.AttributeValue, error) {
	sensorID, err := valueobject.NewSensorID(record.SensorID)
	if err != nil {
		return nil, err
	}
	exportID := strings.TrimSpace(record.ExportID)
	s3Key := strings.TrimSpace(record.S3Key)
	if exportID == "" {
		return nil, fmt.Errorf("export_id is required")
	}
	if s3Key == "" {
		return nil, fmt.Errorf("s3_key is required")
	}

	createdAt := record.CreatedAt.UTC()
	if record.CreatedAt.IsZero() {
		createdAt = valueobject.Now().UTC()
	}
	createdAtMS := createdAt.UnixMilli()

	item := map[string]types.AttributeValue{
		attrPK:        &types.AttributeValueMemberS{Value: buildPK(sensorID.String())},
		attrSK:        &types.AttributeValueMemberS{Value: buildSK(createdAtMS, s3Key)},
		attrExportID:  &types.AttributeValueMemberS{Value: exportID},
		attrSensorID:  &types.AttributeValueMemberS{Value: sensorID.String()},
		attrS3Key:     &types.AttributeValueMemberS{Value: s3Key},
		attrRowCount:  &types.AttributeValueMemberN{Value: strconv.Itoa(record.RowCount)},
		attrCreatedAt: &types.AttributeValueMemberN{Value: strconv.FormatInt(createdAtMS, 10)},
	}

	if url := strings.TrimSpace(record.URL); url != "" {
		item[attrURL] = &types.AttributeValueMemberS{Value: url}
	}
	if format := strings.TrimSpace(record.Format); format != "" {
		item[attrFormat] = &types.AttributeValueMemberS{Value: format}
	}
	if record.SizeBytes > 0 {
		item[attrSizeBytes] = &types.AttributeValueMemberN{Value: strconv.FormatInt(record.SizeBytes, 10)}
	}
	if !record.From.IsZero() {
		item[attrFromMS] = &types.AttributeValueMemberN{Value: strconv.FormatInt(record.From.UTC().UnixMilli(), 10)}
	}
	if !record.To.IsZero() {
		item[attrToMS] = &types.AttributeValueMemberN{Value: strconv.FormatInt(record.To.UTC().UnixMilli(), 10)}
	}
	if !record.ExpiresAt.IsZero() {
		// TTL DynamoDB ожидает секунды
		item[attrExpiresAt] = &types.AttributeValueMemberN{Value: strconv.FormatInt(record.ExpiresAt.UTC().Unix(), 10)}
	}

	return item, nil
}

func fromItem(item map[string]types.AttributeValue) (port.ExportMetadata, error) {
	exportID, err := attrString(item, attrExportID)
	if err != nil {
		return port.ExportMetadata{}, err
	}
	sensorID, err := attrString(item, attrSensorID)
	if err != nil {
		return port.ExportMetadata{}, err
	}
	s3Key, err := attrString(item, attrS3Key)
	if err != nil {
		return port.ExportMetadata{}, err
	}
	createdAtMS, err := attrInt64(item, attrCreatedAt)
	if err != nil {
		return port.ExportMetadata{}, err
	}

	record := port.ExportMetadata{
		ExportID:  exportID,
		SensorID:  sensorID,
		S3Key:     s3Key,
		URL:       optionalString(item, attrURL),
		Format:    optionalString(item, attrFormat),
		RowCount:  int(optionalInt64(item, attrRowCount)),
		SizeBytes: optionalInt64(item, attrSizeBytes),
		CreatedAt: time.UnixMilli(createdAtMS).UTC(),
	}

	if fromMS := optionalInt64(item, attrFromMS); fromMS > 0 {
		record.From = time.UnixMilli(fromMS).UTC()
	}
	if toMS := optionalInt64(item, attrToMS); toMS > 0 {
		record.To = time.UnixMilli(toMS).UTC()
	}
	if expiresAtSeconds := optionalInt64(item, attrExpiresAt); expiresAtSeconds > 0 {
		record.ExpiresAt = time.Unix(expiresAtSeconds, 0).UTC()
	}

	return record, nil
}

func normalizeTimeRange(from, to time.Time) (int64, int64, bool, error) {
	if from.IsZero() && to.IsZero() {
		return 0, math.MaxInt64, false, nil
	}

	fromMS := int64(0)
	toMS := int64(math.MaxInt64)
	if !from.IsZero() {
		fromMS = from.UTC().UnixMilli()
	}
	if !to.IsZero() {
		toMS = to.UTC().UnixMilli()
	}

	if fromMS > toMS {
		return 0, 0, false, fmt.Errorf("from must be less than or equal to to")
	}

	return fromMS, toMS, true, nil
}

func buildPK(sensorID string) string {
	return "SENSOR#" + sensorID
}

func buildSK(createdAtMS int64, s3Key string) string {
	return fmt.Sprintf("TS#%013d#KEY#%s", createdAtMS, objectHash(s3Key))
}

func buildSortLowerBound(tsMS int64) string {
	return fmt.Sprintf("TS#%013d#", tsMS)
}

func buildSortUpperBound(tsMS int64) string {
	if tsMS == math.MaxInt64 {
		return "TS#~"
	}
	return fmt.Sprintf("TS#%013d#~", tsMS)
}

func objectHash(key string) string {
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:8])
}

func encodeCursor(key map[string]types.AttributeValue, sensorID string, fromMS, toMS int64) (string, error) {
	values := make(map[string]cursorValue, len(key))
	for attributeName, raw := range key {
		switch value := raw.(type) {
		case *types.AttributeValueMemberS:
			values[attributeName] = cursorValue{S: value.Value}
		case *types.AttributeValueMemberN:
			values[attributeName] = cursorValue{N: value.Value}
		default:
			return "", fmt.Errorf("unsupported cursor attribute type for %s", attributeName)
		}
	}

	serialized, err := json.Marshal(cursorPayload{
		SensorID: sensorID,
		FromMS:   fromMS,
		ToMS:     toMS,
		Key:      values,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(serialized), nil
}

func decodeCursor(cursor, sensorID string, fromMS, toMS int64) (map[string]types.AttributeValue, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor")
	}

	var payload cursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("invalid cursor")
	}

	if payload.SensorID != sensorID || payload.FromMS != fromMS || payload.ToMS != toMS {
		return nil, fmt.Errorf("cursor does not match query filters")
	}

	key := make(map[string]types.AttributeValue, len(payload.Key))
	for attributeName, value := range payload.Key {
		switch {
		case value.S != "":
			key[attributeName] = &types.AttributeValueMemberS{Value: value.S}
		case value.N != "":
			key[attributeName] = &types.AttributeValueMemberN{Value: value.N}
		default:
			return nil, fmt.Errorf("invalid cursor")
		}
	}

	return key, nil
}

func attrString(item map[string]types.AttributeValue, name string) (string, error) {
	raw, ok := item[name]
	if !ok {
		return "", fmt.Errorf("missing attribute %s", name)
	}
	value, ok := raw.(*types.AttributeValueMemberS)
	if !ok || strings.TrimSpace(value.Value) == "" {
		return "", fmt.Errorf("invalid attribute %s", name)
	}
	return value.Value, nil
}

func optionalString(item map[string]types.AttributeValue, name string) string {
	value, ok := item[name].(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	return value.Value
}

func attrInt64(item map[string]types.AttributeValue, name string) (int64, error) {
	raw, ok := item[name]
	if !ok {
		return 0, fmt.Errorf("missing attribute %s", name)
	}
	value, ok := raw.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("invalid attribute %s", name)
	}
	parsed, err := strconv.ParseInt(value.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid attribute %s: %w", name, err)
	}
	return parsed, nil
}

func optionalInt64(item map[string]types.AttributeValue, name string) int64 {
	value, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	parsed, err := strconv.ParseInt(value.Value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
