// ABOUTME: Unit tests for the fake weather generator.
// ABOUTME: Pins the random source and clock to keep assertions deterministic.

package weather

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedGenerator() *Generator {
	return NewGenerator(
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithClock(func() time.Time {
			return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		}),
	)
}

func TestGenerateCelsius(t *testing.T) {
	gen := fixedGenerator()

	result, err := gen.Generate("Paris", UnitCelsius)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "Weather data retrieved for Paris", result.Message)

	data := result.Data
	require.NotNil(t, data)
	assert.Equal(t, "Paris", data.City)
	assert.Equal(t, "°C", data.Unit)
	assert.GreaterOrEqual(t, data.Temperature, 0)
	assert.LessOrEqual(t, data.Temperature, 35)
	assert.Equal(t, "2025-06-01T12:00:00Z", data.Timestamp)
}

func TestGenerateFahrenheit(t *testing.T) {
	gen := fixedGenerator()

	result, err := gen.Generate("Boston", UnitFahrenheit)
	require.NoError(t, err)

	data := result.Data
	assert.Equal(t, "°F", data.Unit)
	assert.GreaterOrEqual(t, data.Temperature, 32)
	assert.LessOrEqual(t, data.Temperature, 95)
}

func TestGenerateDefaultsToCelsius(t *testing.T) {
	gen := fixedGenerator()

	result, err := gen.Generate("Lyon", "")
	require.NoError(t, err)
	assert.Equal(t, "°C", result.Data.Unit)
}

func TestGenerateRejectsUnknownUnit(t *testing.T) {
	gen := fixedGenerator()

	_, err := gen.Generate("Paris", "kelvin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kelvin")
}

func TestGenerateRanges(t *testing.T) {
	gen := NewGenerator()

	for range 50 {
		result, err := gen.Generate("Paris", UnitCelsius)
		require.NoError(t, err)

		data := result.Data
		assert.GreaterOrEqual(t, data.Humidity, 30)
		assert.LessOrEqual(t, data.Humidity, 90)
		assert.GreaterOrEqual(t, data.WindSpeed, 5)
		assert.LessOrEqual(t, data.WindSpeed, 30)
		assert.Equal(t, "km/h", data.WindUnit)
		assert.GreaterOrEqual(t, data.Pressure, 980)
		assert.LessOrEqual(t, data.Pressure, 1030)
		assert.GreaterOrEqual(t, data.Visibility, 5)
		assert.LessOrEqual(t, data.Visibility, 15)
		assert.GreaterOrEqual(t, data.UVIndex, 1)
		assert.LessOrEqual(t, data.UVIndex, 10)
		assert.Contains(t, conditions, data.Condition)

		require.Len(t, data.Forecast, 2)
		assert.Equal(t, "Tomorrow", data.Forecast[0].Day)
		assert.Equal(t, "Day after tomorrow", data.Forecast[1].Day)
		for _, f := range data.Forecast {
			assert.Contains(t, conditions, f.Condition)
		}
	}
}
