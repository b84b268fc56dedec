// Package view рендерит HTML страницы дашборда.
package view

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/dreschagin/water-quality-dashboard/internal/application/dto"
	"github.com/dreschagin/water-quality-dashboard/internal/domain/service"
)

// Dashboard главная страница: последние показания всех датчиков
func Dashboard(snapshot *dto.SnapshotDTO) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}

		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		p.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.raw(`<title>Water Quality Dashboard</title>`)
		p.raw(`<link rel="stylesheet" href="/static/css/style.css">`)
		p.raw(`</head><body><header><h1>Water Quality Dashboard</h1>`)
		p.raw(`<span id="connection-status" class="status status-offline">offline</span></header><main>`)

		if err := summary(snapshot.Summary).Render(ctx, w); err != nil {
			return err
		}
		if err := sensorTable(snapshot).Render(ctx, w); err != nil {
			return err
		}
		if err := converterForm().Render(ctx, w); err != nil {
			return err
		}

		p.raw(`<section id="rejections" class="rejections" hidden><h2>Rejected readings</h2><ul></ul></section>`)
		p.raw(`</main><footer>Updated <time id="snapshot-time" datetime="`)
		p.text(snapshot.Timestamp.UTC().Format(time.RFC3339))
		p.raw(`">`)
		p.text(snapshot.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"))
		p.raw(`</time></footer>`)
		p.raw(`<script src="/static/js/websocket.js" defer></script></body></html>`)

		return p.err
	})
}

func summary(s *dto.SnapshotSummaryDTO) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &printer{w: w}

		p.raw(`<section class="summary"><div class="card"><h3>Sensors</h3><p id="sensor-count">`)
		p.text(strconv.Itoa(s.SensorCount))
		p.raw(`</p></div><div class="card"><h3>Stale</h3><p id="stale-count">`)
		p.text(strconv.Itoa(s.StaleCount))
		p.raw(`</p></div><div class="card"><h3>Status</h3><p id="overall-status" class="status status-`)
		p.text(s.OverallStatus)
		p.raw(`">`)
		p.text(s.OverallStatus)
		p.raw(`</p></div>`)

		card := func(title, id string, value service.Summary, unit string) {
			p.raw(`<div class="card"><h3>`)
			p.text(title)
			p.raw(`</h3><p id="`)
			p.text(id)
			p.raw(`">`)
			if value.IsEmpty() {
				p.text("n/a")
			} else {
				p.text(strings.TrimSpace(formatValue(value.Avg) + " " + unit))
			}
			p.raw(`</p></div>`)
		}
		card("Avg temperature", "avg-temperature", s.Temperature, "K")
		card("Avg conductivity", "avg-conductivity", s.Conductivity, "S/m")
		card("Avg pH", "avg-ph", s.PH, "")

		p.raw(`</section>`)
		return p.err
	})
}

func sensorTable(snapshot *dto.SnapshotDTO) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &printer{w: w}

		p.raw(`<section><h2>Sensors</h2><table id="sensors"><thead><tr>`)
		p.raw(`<th>Sensor</th><th>Temperature</th><th>Conductivity</th><th>pH</th><th>Measured at</th><th></th>`)
		p.raw(`</tr></thead><tbody>`)

		if len(snapshot.Sensors) == 0 {
			p.raw(`<tr class="empty"><td colspan="6">No readings yet</td></tr>`)
		}

		for _, sensor := range snapshot.Sensors {
			reading := sensor.Reading
			p.raw(`<tr data-sensor="`)
			p.text(reading.SensorID)
			p.raw(`"><td>`)
			p.text(reading.SensorID)
			p.raw(`</td><td>`)
			p.measurement(reading.Temperature)
			p.raw(`</td><td>`)
			p.measurement(reading.Conductivity)
			p.raw(`</td><td>`)
			p.text(formatValue(reading.PH))
			p.raw(`</td><td><time datetime="`)
			p.text(reading.MeasuredAt.UTC().Format(time.RFC3339))
			p.raw(`">`)
			p.text(reading.MeasuredAt.UTC().Format("2006-01-02 15:04:05"))
			p.raw(`</time></td><td>`)
			if sensor.Stale {
				p.raw(`<span class="badge badge-stale">stale</span>`)
			}
			p.raw(`</td></tr>`)
		}

		p.raw(`</tbody></table></section>`)
		return p.err
	})
}

// converterForm форма конвертации; списки единиц заполняет скрипт из /api/v1/units
func converterForm() templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<section><h2>Unit converter</h2><form id="converter" class="converter">`)
		p.raw(`<select name="field"><option value="temperature">Temperature</option><option value="conductivity">Conductivity</option></select>`)
		p.raw(`<input name="value" type="text" inputmode="decimal" required>`)
		p.raw(`<select name="from"></select><span>&rarr;</span><select name="to"></select>`)
		p.raw(`<button type="submit">Convert</button><output name="result"></output>`)
		p.raw(`<p class="error" hidden></p></form></section>`)
		return p.err
	})
}

// printer накапливает первую ошибку записи, чтобы не проверять каждый вызов
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *printer) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *printer) measurement(m dto.MeasurementDTO) {
	p.text(fmt.Sprintf("%s %s", formatValue(m.Value), m.Unit))
	if m.Unit != m.CanonicalUnit {
		p.raw(` <small>(`)
		p.text(fmt.Sprintf("%s %s", formatValue(m.Canonical), m.CanonicalUnit))
		p.raw(`)</small>`)
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
