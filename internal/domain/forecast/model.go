// Package forecast predicts daily revenue from past successful payments with
// exponential smoothing.
package forecast

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Model names reported in results.
const (
	ModelHoltWinters = "Holt-Winters Exponential Smoothing"
	ModelHoltLinear  = "Holt Linear Trend"
)

// SeasonLength is the weekly cycle used by the seasonal model.
const SeasonLength = 7

// DailyRevenue is the total of successful payments on one calendar day (UTC).
type DailyRevenue struct {
	Day   time.Time       `db:"day"`
	Total decimal.Decimal `db:"total"`
}

// SalesSource provides revenue history.
type SalesSource interface {
	// DailyRevenue returns per-day totals of SUCCESS payments created in
	// [from, to). Days without sales may be omitted.
	DailyRevenue(ctx context.Context, from, to time.Time) ([]DailyRevenue, error)
}

// Cache stores computed forecasts.
type Cache interface {
	Get(ctx context.Context, key string) (*Forecast, bool, error)
	Set(ctx context.Context, key string, value *Forecast, ttl time.Duration) error
}

// NoopCache never hits.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*Forecast, bool, error) { return nil, false, nil }

func (NoopCache) Set(context.Context, string, *Forecast, time.Duration) error { return nil }

// Point is a dated value.
type Point struct {
	Date    string  `json:"date"`
	Value   float64 `json:"value"`
	DayName string  `json:"dayName"`
}

// Interval is a 95% prediction band for one forecast day.
type Interval struct {
	Date  string  `json:"date"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Statistics describes the in-sample fit.
type Statistics struct {
	MSE   float64 `json:"mse"`
	MAE   float64 `json:"mae"`
	RMSE  float64 `json:"rmse"`
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma,omitempty"`
}

// Summary aggregates history and forecast.
type Summary struct {
	HistoricalAvg   float64 `json:"historicalAvg"`
	HistoricalTotal float64 `json:"historicalTotal"`
	ForecastAvg     float64 `json:"forecastAvg"`
	ForecastTotal   float64 `json:"forecastTotal"`
	ForecastMin     float64 `json:"forecastMin"`
	ForecastMax     float64 `json:"forecastMax"`
}

// Forecast is the full result.
type Forecast struct {
	ModelType           string     `json:"modelType"`
	SeasonalPeriods     int        `json:"seasonalPeriods,omitempty"`
	Historical          []Point    `json:"historical"`
	Forecast            []Point    `json:"forecast"`
	ConfidenceIntervals []Interval `json:"confidenceIntervals"`
	Statistics          Statistics `json:"statistics"`
	Summary             Summary    `json:"summary"`
	GeneratedAt         time.Time  `json:"generatedAt"`
}
