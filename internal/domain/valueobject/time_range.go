package valueobject

import (
	"fmt"
	"time"
)

// TimeRange интервал [start, end] для выборок и выгрузок показаний (Value Object)
type TimeRange struct {
	start time.Time
	end   time.Time
}

// NewTimeRange проверяет границы; ошибки адресуются полям запроса "from" и "to"
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if start.IsZero() {
		return TimeRange{}, NewValidationError(CodeInvalidDate, "from", "Required")
	}
	if end.IsZero() {
		return TimeRange{}, NewValidationError(CodeInvalidDate, "to", "Required")
	}
	if start.After(end) {
		return TimeRange{}, NewValidationError(CodeInvalidDate, "from", "from must be less than or equal to to")
	}

	return TimeRange{start: start, end: end}, nil
}

// NewTimeRangeFromDuration интервал длиной duration, заканчивающийся сейчас (по часам домена)
func NewTimeRangeFromDuration(duration time.Duration) (TimeRange, error) {
	if duration <= 0 {
		return TimeRange{}, NewValidationError(CodeTooSmall, "duration", "Duration must be positive")
	}

	now := Now()
	return TimeRange{start: now.Add(-duration), end: now}, nil
}

// Within возвращает too_big на поле "to", если интервал длиннее limit.
// label начинает текст ошибки: "Export range must be at most 2208h0m0s".
func (tr TimeRange) Within(limit time.Duration, label string) error {
	if tr.Duration() <= limit {
		return nil
	}

	return NewValidationError(CodeTooBig, "to", fmt.Sprintf("%s must be at most %s", label, limit))
}

func (tr TimeRange) Start() time.Time {
	return tr.start
}

func (tr TimeRange) End() time.Time {
	return tr.end
}

func (tr TimeRange) Duration() time.Duration {
	return tr.end.Sub(tr.start)
}

// Contains включает обе границы
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.start) && !t.After(tr.end)
}
