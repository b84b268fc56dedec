package view

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/water-quality-dashboard/internal/application/dto"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/service"
)

func TestDashboard_RendersSensors(t *testing.T) {
	measured := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)
	snapshot := &dto.SnapshotDTO{
		Timestamp: measured,
		Sensors: []*dto.SensorStatusDTO{{
			Stale: true,
			Reading: &dto.ReadingDTO{
				SensorID:     "pier-<1>",
				Temperature:  dto.MeasurementDTO{Value: 25, Unit: "c", Canonical: 298.15, CanonicalUnit: "k"},
				Conductivity: dto.MeasurementDTO{Value: 0.5, Unit: "spm", Canonical: 0.5, CanonicalUnit: "spm"},
				PH:           7.2,
				MeasuredAt:   measured,
			},
		}},
		Summary: &dto.SnapshotSummaryDTO{
			SensorCount:   1,
			StaleCount:    1,
			Temperature:   service.Summary{Min: 298.15, Max: 298.15, Avg: 298.15},
			Conductivity:  service.Summary{Min: 0.5, Max: 0.5, Avg: 0.5},
			PH:            service.Summary{Min: math.NaN(), Max: math.NaN(), Avg: math.NaN()},
			OverallStatus: "stale",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Dashboard(snapshot).Render(context.Background(), &buf))
	html := buf.String()

	assert.Contains(t, html, "pier-&lt;1&gt;")
	assert.NotContains(t, html, "pier-<1>")
	assert.Contains(t, html, "25 c <small>(298.15 k)</small>")
	assert.Contains(t, html, "<td>0.5 spm</td>")
	assert.Contains(t, html, `badge-stale`)
	assert.Contains(t, html, `<p id="avg-ph">n/a</p>`)
	assert.Contains(t, html, `<p id="avg-temperature">298.15 K</p>`)
	assert.Contains(t, html, "/static/js/websocket.js")
}

func TestDashboard_Empty(t *testing.T) {
	nan := math.NaN()
	empty := service.Summary{Min: nan, Max: nan, Avg: nan}
	snapshot := &dto.SnapshotDTO{
		Timestamp: time.Now(),
		Summary: &dto.SnapshotSummaryDTO{
			Temperature:   empty,
			Conductivity:  empty,
			PH:            empty,
			OverallStatus: "empty",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Dashboard(snapshot).Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), "No readings yet")
}
