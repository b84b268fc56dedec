package valueobject

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPH(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		wantErr error
		want    float64
	}{
		{name: "lower bound", value: 5, want: 5},
		{name: "upper bound", value: 9, want: 9},
		{name: "neutral", value: 7, want: 7},
		{name: "rounded on read", value: 7.456, want: 7.46},
		{name: "too acidic", value: 4.99, wantErr: ErrTooSmall},
		{name: "too alkaline", value: 9.1, wantErr: ErrTooBig},
		{name: "nan", value: math.NaN(), wantErr: ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ph, err := NewPH(tt.value)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ph.Value())
		})
	}
}

func TestPH_RawKeepsStoredValue(t *testing.T) {
	ph, err := NewPH(6.12345)
	require.NoError(t, err)
	assert.Equal(t, 6.12345, ph.Raw())
	assert.Equal(t, 6.12, ph.Value())
	assert.Equal(t, "6.12", ph.String())
}

func TestParsePHText(t *testing.T) {
	ph, err := ParsePHText("8.2")
	require.NoError(t, err)
	assert.Equal(t, 8.2, ph.Value())

	_, err = ParsePHText("neutral")
	require.Error(t, err)
	verr, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, CodeParseError, verr.Code)
	assert.Equal(t, []string{"ph"}, verr.Path)
}
