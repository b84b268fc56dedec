package cloudwatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/dreschagin/water-quality-dashboard/internal/application/port"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
)

const (
	// CloudWatch limits
	maxMetricsPerRequest = 1000
	maxRetries           = 3
	initialBackoff       = 100 * time.Millisecond
)

// Metric names published for every ingested batch.
const (
	MetricReadingsAccepted = "ReadingsAccepted"
	MetricReadingsRejected = "ReadingsRejected"
	MetricIngestionLatency = "IngestionLatency"
	MetricValidationErrors = "ValidationErrors"
	MetricUnitUsage        = "UnitUsage"
)

type metricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsPublisherConfig holds configuration for CloudWatch metrics publishing.
type MetricsPublisherConfig struct {
	Namespace         string            // CloudWatch namespace (e.g., "WaterQuality/Ingestion")
	Region            string            // AWS region (e.g., "us-east-1")
	Endpoint          string            // Optional endpoint override (for LocalStack)
	AccessKeyID       string            // AWS access key
	SecretAccessKey   string            // AWS secret key
	DefaultDimensions map[string]string // Default dimensions added to all metrics
	BufferSize        int               // Buffer size (datums) before auto-flush
	FlushInterval     time.Duration     // Automatic flush interval
	StorageResolution int32             // Storage resolution in seconds (1 or 60)
}

// MetricsPublisher publishes ingestion statistics to AWS CloudWatch.
type MetricsPublisher struct {
	client            metricDataAPI
	namespace         string
	defaultDimensions []types.Dimension
	storageResolution int32
	log               *logger.Logger

	buffer     []types.MetricDatum
	bufferSize int
	mu         sync.Mutex

	flushTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// NewMetricsPublisher creates a new CloudWatch metrics publisher.
func NewMetricsPublisher(ctx context.Context, cfg MetricsPublisherConfig, log *logger.Logger) (*MetricsPublisher, error) {
	if cfg.Namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("region is required")
	}

	awsCfg, err := buildAWSConfig(ctx, cfg.Region, cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	p := newMetricsPublisher(cloudwatch.NewFromConfig(awsCfg), cfg, log)
	p.start(cfg.FlushInterval)
	return p, nil
}

func newMetricsPublisher(client metricDataAPI, cfg MetricsPublisherConfig, log *logger.Logger) *MetricsPublisher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100
	}
	if cfg.StorageResolution != 1 && cfg.StorageResolution != 60 {
		cfg.StorageResolution = 60 // Default to standard resolution
	}

	return &MetricsPublisher{
		client:            client,
		namespace:         cfg.Namespace,
		defaultDimensions: sortedDimensions(cfg.DefaultDimensions),
		storageResolution: cfg.StorageResolution,
		log:               log,
		buffer:            make([]types.MetricDatum, 0, cfg.BufferSize),
		bufferSize:        cfg.BufferSize,
		stopCh:            make(chan struct{}),
	}
}

func (p *MetricsPublisher) start(interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	p.flushTicker = time.NewTicker(interval)

	p.wg.Add(1)
	go p.flushLoop()
}

// PublishIngestion buffers the datums of one ingested batch.
func (p *MetricsPublisher) PublishIngestion(ctx context.Context, stats port.IngestionStats) error {
	data := p.statsToData(stats)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.buffer = append(p.buffer, data...)
	if len(p.buffer) >= p.bufferSize {
		if err := p.flushBufferUnsafe(ctx); err != nil {
			return fmt.Errorf("failed to flush buffer: %w", err)
		}
	}

	return nil
}

// Flush forces immediate publication of all buffered metrics.
func (p *MetricsPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.flushBufferUnsafe(ctx)
}

// Close stops the background flush goroutine and flushes remaining metrics.
func (p *MetricsPublisher) Close(ctx context.Context) error {
	if p.flushTicker != nil {
		close(p.stopCh)
		p.flushTicker.Stop()
		p.wg.Wait()
	}

	return p.Flush(ctx)
}

func (p *MetricsPublisher) flushLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := p.Flush(ctx); err != nil {
				p.log.Warn("CloudWatch metrics flush failed, retrying on next tick", "error", err.Error())
			}
			cancel()
		case <-p.stopCh:
			return
		}
	}
}

// flushBufferUnsafe flushes the buffer without locking (caller must hold lock).
func (p *MetricsPublisher) flushBufferUnsafe(ctx context.Context) error {
	if len(p.buffer) == 0 {
		return nil
	}

	for i := 0; i < len(p.buffer); i += maxMetricsPerRequest {
		end := i + maxMetricsPerRequest
		if end > len(p.buffer) {
			end = len(p.buffer)
		}

		if err := p.publishBatchWithRetry(ctx, p.buffer[i:end]); err != nil {
			return fmt.Errorf("failed to publish chunk: %w", err)
		}
	}

	p.buffer = p.buffer[:0]
	return nil
}

// publishBatchWithRetry publishes a batch of metrics with exponential backoff retry.
func (p *MetricsPublisher) publishBatchWithRetry(ctx context.Context, data []types.MetricDatum) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(p.namespace),
			MetricData: data,
		})
		if err == nil {
			return nil
		}

		lastErr = err

		if attempt < maxRetries-1 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// statsToData converts one batch summary into CloudWatch datums.
func (p *MetricsPublisher) statsToData(stats port.IngestionStats) []types.MetricDatum {
	timestamp := stats.Timestamp.UTC()
	if stats.Timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	data := []types.MetricDatum{
		p.datum(MetricReadingsAccepted, float64(stats.Accepted), types.StandardUnitCount, timestamp),
		p.datum(MetricReadingsRejected, float64(stats.Rejected), types.StandardUnitCount, timestamp),
		p.datum(MetricIngestionLatency, float64(stats.Duration.Microseconds())/1000, types.StandardUnitMilliseconds, timestamp),
	}

	for _, code := range sortedKeys(stats.ErrorsByCode) {
		data = append(data, p.datum(
			MetricValidationErrors, float64(stats.ErrorsByCode[code]), types.StandardUnitCount, timestamp,
			types.Dimension{Name: aws.String("ErrorCode"), Value: aws.String(code)},
		))
	}

	for _, key := range sortedKeys(stats.UnitsUsed) {
		field, unit, found := strings.Cut(key, ":")
		if !found {
			continue
		}
		data = append(data, p.datum(
			MetricUnitUsage, float64(stats.UnitsUsed[key]), types.StandardUnitCount, timestamp,
			types.Dimension{Name: aws.String("Field"), Value: aws.String(field)},
			types.Dimension{Name: aws.String("Unit"), Value: aws.String(unit)},
		))
	}

	return data
}

func (p *MetricsPublisher) datum(name string, value float64, unit types.StandardUnit, timestamp time.Time, extra ...types.Dimension) types.MetricDatum {
	dimensions := make([]types.Dimension, 0, len(p.defaultDimensions)+len(extra))
	dimensions = append(dimensions, p.defaultDimensions...)
	dimensions = append(dimensions, extra...)

	datum := types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(timestamp),
		Dimensions: dimensions,
	}
	if p.storageResolution > 0 {
		datum.StorageResolution = aws.Int32(p.storageResolution)
	}

	return datum
}

func sortedDimensions(values map[string]string) []types.Dimension {
	dimensions := make([]types.Dimension, 0, len(values))
	for _, key := range sortedKeys(values) {
		dimensions = append(dimensions, types.Dimension{
			Name:  aws.String(key),
			Value: aws.String(values[key]),
		})
	}
	return dimensions
}

func sortedKeys[V any](values map[string]V) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// buildAWSConfig creates an AWS config with credentials.
func buildAWSConfig(ctx context.Context, region, endpoint, accessKeyID, secretAccessKey string) (aws.Config, error) {
	optFns := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if accessKeyID != "" && secretAccessKey != "" {
		optFns = append(optFns, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return aws.Config{}, err
	}

	// Override endpoint if specified (for LocalStack testing)
	if endpoint != "" {
		cfg.BaseEndpoint = aws.String(endpoint)
	}

	return cfg, nil
}
