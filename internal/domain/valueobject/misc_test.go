package valueobject

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSensorID(t *testing.T) {
	id, err := NewSensorID("  North Pier 2 ")
	require.NoError(t, err)
	assert.Equal(t, "north-pier-2", id.String())
	assert.False(t, id.IsZero())

	_, err = NewSensorID("   ")
	verr, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidString, verr.Code)
	assert.Equal(t, []string{"sensor_id"}, verr.Path)
}

func TestNewLocation(t *testing.T) {
	loc, err := NewLocation(52.52, 13.405)
	require.NoError(t, err)
	assert.Equal(t, 52.52, loc.Latitude())
	assert.Equal(t, 13.405, loc.Longitude())

	_, err = NewLocation(-91, 181)
	var errs ValidationErrors
	require.True(t, errors.As(err, &errs))
	require.Len(t, errs, 2)
	assert.Equal(t, CodeTooSmall, errs[0].Code)
	assert.Equal(t, []string{"latitude"}, errs[0].Path)
	assert.Equal(t, CodeTooBig, errs[1].Code)
	assert.Equal(t, []string{"longitude"}, errs[1].Path)
}

func TestField(t *testing.T) {
	for _, f := range AllFields() {
		assert.NoError(t, f.Validate())
	}

	_, err := ParseField("salinity")
	assert.True(t, errors.Is(err, ErrUnitNotRecognized))

	f, err := ParseField("conductivity")
	require.NoError(t, err)
	assert.Equal(t, "spm", f.CanonicalUnit())

	_, ok := FieldPH.Registry()
	assert.False(t, ok)
}

func TestNewTimeRangeFromDuration_UsesDomainClock(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(now))
	defer SetClock(nil)

	tr, err := NewTimeRangeFromDuration(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, now, tr.End())
	assert.Equal(t, now.Add(-time.Hour), tr.Start())
	assert.True(t, tr.Contains(now.Add(-30*time.Minute)))
	assert.False(t, tr.Contains(now.Add(time.Minute)))

	_, err = NewTimeRangeFromDuration(0)
	assert.Error(t, err)
}

func TestNewTimeRange_Errors(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := NewTimeRange(time.Time{}, now)
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = NewTimeRange(now, now.Add(-time.Minute))
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "from", ve.PathString())

	tr, err := NewTimeRange(now.Add(-48*time.Hour), now)
	require.NoError(t, err)
	assert.NoError(t, tr.Within(48*time.Hour, "Range"))

	err = tr.Within(24*time.Hour, "Export range")
	assert.ErrorIs(t, err, ErrTooBig)
	assert.Contains(t, err.Error(), "to: Export range must be at most 24h0m0s")
}
