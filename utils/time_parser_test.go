package utils

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDurationEveryUnit(t *testing.T) {
	for unit, size := range DurationUnits() {
		for _, n := range []int{1, 7, 60, 9999} {
			for _, sep := range []string{"", " "} {
				text := fmt.Sprintf("%d%s%s", n, sep, unit)
				got, err := ParseDuration(text)
				require.NoError(t, err, text)
				assert.Equal(t, time.Duration(n)*size, got, text)
			}
		}
	}
}

func TestParseDurationInSentence(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"silencia a <@123456789012345678> 10m", 10 * time.Minute},
		{"mutea 1h por spam", time.Hour},
		{"castígalo 2 días", 2 * Day},
		{"timeout 3 Semanas", 3 * Week},
		{"dale 30 segundos", 30 * time.Second},
		{"primero 5m luego 2h", 5 * time.Minute},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseDurationFailures(t *testing.T) {
	for _, in := range []string{
		"",
		"silencia a pedro",
		"10",
		"0m",
		"10 años",
		"10minutazos",
		"<@123456789012345678>",
		"12345m",
	} {
		_, err := ParseDuration(in)
		assert.ErrorIs(t, err, ErrNoDuration, in)
	}
}

func TestFormatDurationShort(t *testing.T) {
	assert.Equal(t, "remover", FormatDurationShort(0))
	assert.Equal(t, "45s", FormatDurationShort(45*time.Second))
	assert.Equal(t, "10m", FormatDurationShort(10*time.Minute))
	assert.Equal(t, "2h", FormatDurationShort(2*time.Hour))
	assert.Equal(t, "28d", FormatDurationShort(28*Day))
	assert.Equal(t, "90m", FormatDurationShort(90*time.Minute))
}
