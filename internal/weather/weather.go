// ABOUTME: Fake weather data generator backing the get_weather tool.
// ABOUTME: Produces random but plausible conditions; no external data source.

package weather

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Units accepted by the generator.
const (
	UnitCelsius    = "celsius"
	UnitFahrenheit = "fahrenheit"
)

// conditions is the fixed set of sky conditions the generator picks from.
var conditions = []string{
	"sunny",
	"cloudy",
	"rainy",
	"stormy",
	"partly cloudy",
	"foggy",
	"snowy",
}

// Forecast is one day of the two-day outlook included with every report.
type Forecast struct {
	Day       string `json:"day"`
	High      int    `json:"high"`
	Low       int    `json:"low"`
	Condition string `json:"condition"`
}

// Report holds the generated conditions for a single city.
type Report struct {
	City        string     `json:"city"`
	Temperature int        `json:"temperature"`
	Unit        string     `json:"unit"`
	Condition   string     `json:"condition"`
	Humidity    int        `json:"humidity"`
	WindSpeed   int        `json:"wind_speed"`
	WindUnit    string     `json:"wind_unit"`
	Pressure    int        `json:"pressure"`
	Visibility  int        `json:"visibility"`
	UVIndex     int        `json:"uv_index"`
	Timestamp   string     `json:"timestamp"`
	Forecast    []Forecast `json:"forecast"`
}

// Result is the envelope returned to tool callers.
type Result struct {
	Success bool    `json:"success"`
	Data    *Report `json:"data,omitempty"`
	Message string  `json:"message"`
}

// Generator produces fake weather reports. The random source and clock are
// injectable so tests can pin the output.
type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithRand replaces the default random source.
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) { g.rng = rng }
}

// WithClock replaces the default clock.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator creates a Generator with a seeded random source.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// intn returns a random int in [lo, hi].
func (g *Generator) intn(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo+1)
}

func (g *Generator) condition() string {
	return conditions[g.rng.IntN(len(conditions))]
}

// Generate returns a fake report for the given city. The unit must be
// "celsius" or "fahrenheit"; an empty unit defaults to celsius.
func (g *Generator) Generate(city, unit string) (*Result, error) {
	if unit == "" {
		unit = UnitCelsius
	}

	var temp int
	var tempUnit string
	switch unit {
	case UnitCelsius:
		temp = g.intn(0, 35)
		tempUnit = "°C"
	case UnitFahrenheit:
		temp = g.intn(32, 95)
		tempUnit = "°F"
	default:
		return nil, fmt.Errorf("unsupported unit %q", unit)
	}

	report := &Report{
		City:        city,
		Temperature: temp,
		Unit:        tempUnit,
		Condition:   g.condition(),
		Humidity:    g.intn(30, 90),
		WindSpeed:   g.intn(5, 30),
		WindUnit:    "km/h",
		Pressure:    g.intn(980, 1030),
		Visibility:  g.intn(5, 15),
		UVIndex:     g.intn(1, 10),
		Timestamp:   g.now().Format(time.RFC3339),
		Forecast: []Forecast{
			{
				Day:       "Tomorrow",
				High:      temp + g.intn(-5, 5),
				Low:       temp - g.intn(5, 15),
				Condition: g.condition(),
			},
			{
				Day:       "Day after tomorrow",
				High:      temp + g.intn(-8, 8),
				Low:       temp - g.intn(3, 12),
				Condition: g.condition(),
			},
		},
	}

	return &Result{
		Success: true,
		Data:    report,
		Message: fmt.Sprintf("Weather data retrieved for %s", city),
	}, nil
}
