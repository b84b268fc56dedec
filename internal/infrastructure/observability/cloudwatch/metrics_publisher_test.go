package cloudwatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/dreschagin/water-quality-dashboard/internal/application/port"
)

type fakeMetricDataAPI struct {
	inputs   []*cloudwatch.PutMetricDataInput
	failures int
}

func (f *fakeMetricDataAPI) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("throttling")
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func sampleStats() port.IngestionStats {
	return port.IngestionStats{
		Accepted:     8,
		Rejected:     2,
		Duration:     1500 * time.Microsecond,
		ErrorsByCode: map[string]int{"too_big": 1, "invalid_enum_value": 1},
		UnitsUsed:    map[string]int{"temperature:c": 5, "conductivity:ppm": 3},
		Timestamp:    time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC),
	}
}

func dimensionValue(datum types.MetricDatum, name string) string {
	for _, dimension := range datum.Dimensions {
		if *dimension.Name == name {
			return *dimension.Value
		}
	}
	return ""
}

func TestStatsToData(t *testing.T) {
	p := newMetricsPublisher(&fakeMetricDataAPI{}, MetricsPublisherConfig{
		Namespace:         "WaterQuality/Ingestion",
		DefaultDimensions: map[string]string{"Environment": "test"},
	}, nil)

	data := p.statsToData(sampleStats())

	// 3 базовые метрики + 2 кода ошибок + 2 единицы
	if len(data) != 7 {
		t.Fatalf("expected 7 datums, got %d", len(data))
	}

	if *data[0].MetricName != MetricReadingsAccepted || *data[0].Value != 8 {
		t.Errorf("unexpected accepted datum: %s=%v", *data[0].MetricName, *data[0].Value)
	}
	if *data[2].MetricName != MetricIngestionLatency || *data[2].Value != 1.5 || data[2].Unit != types.StandardUnitMilliseconds {
		t.Errorf("unexpected latency datum: %v %v", *data[2].Value, data[2].Unit)
	}
	if dimensionValue(data[0], "Environment") != "test" {
		t.Error("expected default dimension on every datum")
	}

	if got := dimensionValue(data[3], "ErrorCode"); got != "invalid_enum_value" {
		t.Errorf("expected error codes sorted, got %q first", got)
	}
	if got := dimensionValue(data[5], "Unit"); got != "ppm" || dimensionValue(data[5], "Field") != "conductivity" {
		t.Errorf("unexpected unit datum dimensions: %+v", data[5].Dimensions)
	}
	if data[6].StorageResolution == nil || *data[6].StorageResolution != 60 {
		t.Errorf("expected default storage resolution 60, got %v", data[6].StorageResolution)
	}
}

func TestPublishIngestion_AutoFlushOnFullBuffer(t *testing.T) {
	api := &fakeMetricDataAPI{}
	p := newMetricsPublisher(api, MetricsPublisherConfig{Namespace: "WaterQuality/Ingestion", BufferSize: 10}, nil)

	if err := p.PublishIngestion(context.Background(), sampleStats()); err != nil {
		t.Fatalf("PublishIngestion() error = %v", err)
	}
	if len(api.inputs) != 0 {
		t.Fatalf("expected buffered datums, got %d requests", len(api.inputs))
	}

	if err := p.PublishIngestion(context.Background(), sampleStats()); err != nil {
		t.Fatalf("PublishIngestion() error = %v", err)
	}
	if len(api.inputs) != 1 || len(api.inputs[0].MetricData) != 14 {
		t.Fatalf("expected one flush with 14 datums, got %d requests", len(api.inputs))
	}
	if *api.inputs[0].Namespace != "WaterQuality/Ingestion" {
		t.Errorf("unexpected namespace %q", *api.inputs[0].Namespace)
	}

	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(api.inputs) != 1 {
		t.Errorf("empty buffer must not be flushed, got %d requests", len(api.inputs))
	}
}

func TestFlush_RetriesTransientErrors(t *testing.T) {
	api := &fakeMetricDataAPI{failures: 1}
	p := newMetricsPublisher(api, MetricsPublisherConfig{Namespace: "WaterQuality/Ingestion"}, nil)

	if err := p.PublishIngestion(context.Background(), port.IngestionStats{Accepted: 1}); err != nil {
		t.Fatalf("PublishIngestion() error = %v", err)
	}
	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if len(api.inputs) != 2 {
		t.Errorf("expected retry after throttling, got %d requests", len(api.inputs))
	}
}

func TestFlush_GivesUpAfterRetries(t *testing.T) {
	api := &fakeMetricDataAPI{failures: maxRetries}
	p := newMetricsPublisher(api, MetricsPublisherConfig{Namespace: "WaterQuality/Ingestion"}, nil)

	_ = p.PublishIngestion(context.Background(), port.IngestionStats{Accepted: 1})
	if err := p.Flush(context.Background()); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if len(p.buffer) == 0 {
		t.Error("buffer must be kept for the next flush")
	}
}

func TestNewMetricsPublisher_Validation(t *testing.T) {
	if _, err := NewMetricsPublisher(context.Background(), MetricsPublisherConfig{Region: "us-east-1"}, nil); err == nil {
		t.Error("expected error for missing namespace")
	}
	if _, err := NewMetricsPublisher(context.Background(), MetricsPublisherConfig{Namespace: "WaterQuality"}, nil); err == nil {
		t.Error("expected error for missing region")
	}
}
