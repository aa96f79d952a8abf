package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"cafepos/internal/core/apperror"
	"cafepos/pkg/logger"
)

// Defaults and limits.
const (
	DefaultDaysBack  = 30
	DefaultDaysAhead = 7
	MaxDaysBack      = 365
	MaxDaysAhead     = 60
	DefaultCacheTTL  = 15 * time.Minute
)

const dateLayout = "2006-01-02"

// Service produces revenue forecasts.
type Service struct {
	sales SalesSource
	cache Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewService creates a forecast service. A nil cache disables caching.
func NewService(sales SalesSource, cache Cache, ttl time.Duration) *Service {
	if cache == nil {
		cache = NoopCache{}
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{sales: sales, cache: cache, ttl: ttl, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Forecast predicts daysAhead days of revenue from the last daysBack days.
//
// With at least two full weeks of history an additive Holt-Winters model with
// weekly seasonality is used; with less, Holt's linear trend. Fewer than two
// points, or no sales at all, is INSUFFICIENT_DATA.
func (s *Service) Forecast(ctx context.Context, daysBack, daysAhead int) (*Forecast, error) {
	if daysBack <= 0 {
		daysBack = DefaultDaysBack
	}
	if daysAhead <= 0 {
		daysAhead = DefaultDaysAhead
	}
	if daysBack > MaxDaysBack || daysAhead > MaxDaysAhead {
		return nil, apperror.NewValidation(fmt.Sprintf("forecast window too large (max %d days back, %d ahead)", MaxDaysBack, MaxDaysAhead))
	}

	end := truncateDay(s.now().UTC())
	start := end.AddDate(0, 0, -daysBack)
	key := fmt.Sprintf("forecast:%s:%d:%d", end.Format(dateLayout), daysBack, daysAhead)

	if cached, ok, err := s.cache.Get(ctx, key); err != nil {
		logger.Warn(ctx, "forecast cache read failed", "key", key, "error", err)
	} else if ok {
		return cached, nil
	}

	rows, err := s.sales.DailyRevenue(ctx, start, end.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("load daily revenue: %w", err)
	}
	byDay := make(map[string]float64, len(rows))
	for _, r := range rows {
		v, _ := r.Total.Float64()
		byDay[r.Day.UTC().Format(dateLayout)] += v
	}

	days := make([]time.Time, 0, daysBack+1)
	series := make([]float64, 0, daysBack+1)
	total := 0.0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		v := byDay[d.Format(dateLayout)]
		days = append(days, d)
		series = append(series, v)
		total += v
	}
	if total == 0 {
		return nil, apperror.NewBusinessRule(apperror.CodeInsufficientData, "No historical sales data available")
	}

	result, err := Compute(days, series, daysAhead)
	if err != nil {
		return nil, err
	}
	result.GeneratedAt = s.now().UTC()

	if err := s.cache.Set(ctx, key, result, s.ttl); err != nil {
		logger.Warn(ctx, "forecast cache write failed", "key", key, "error", err)
	}
	logger.Info(ctx, "forecast computed", "model", result.ModelType, "days_back", daysBack, "days_ahead", daysAhead)
	return result, nil
}

// Compute fits a model to series (one value per consecutive day starting at
// days[0]) and predicts horizon days.
func Compute(days []time.Time, series []float64, horizon int) (*Forecast, error) {
	if len(series) < 2 || len(days) != len(series) {
		return nil, apperror.NewBusinessRule(apperror.CodeInsufficientData, "Insufficient historical data for forecasting")
	}

	out := &Forecast{}
	var f fit
	if len(series) >= 2*SeasonLength {
		f = bestHoltWinters(series, SeasonLength)
		out.ModelType = ModelHoltWinters
		out.SeasonalPeriods = SeasonLength
	} else {
		f = bestHoltLinear(series)
		out.ModelType = ModelHoltLinear
	}

	res := f.residuals(series)
	stdErr := stddev(res)
	if stdErr <= 0 {
		if m := mean(series); m > 0 {
			stdErr = m * 0.1
		} else {
			stdErr = 1
		}
	}

	for i, d := range days {
		out.Historical = append(out.Historical, point(d, series[i]))
	}

	last := days[len(days)-1]
	values := make([]float64, 0, horizon)
	for i := 0; i < horizon; i++ {
		d := last.AddDate(0, 0, i+1)
		v := math.Max(0, f.predictor(i+1))
		width := 1.96 * stdErr * (1 + 0.1*float64(i))
		out.Forecast = append(out.Forecast, point(d, v))
		out.ConfidenceIntervals = append(out.ConfidenceIntervals, Interval{
			Date:  d.Format(dateLayout),
			Lower: math.Max(0, v-width),
			Upper: v + width,
		})
		values = append(values, v)
	}

	var mse, mae float64
	for _, r := range res {
		mse += r * r
		mae += math.Abs(r)
	}
	if n := float64(len(res)); n > 0 {
		mse /= n
		mae /= n
	}
	out.Statistics = Statistics{
		MSE: mse, MAE: mae, RMSE: math.Sqrt(mse),
		Alpha: f.alpha, Beta: f.beta, Gamma: f.gamma,
	}
	out.Summary = summarize(series, values)
	return out, nil
}

func summarize(history, forecast []float64) Summary {
	s := Summary{
		HistoricalAvg: mean(history),
		ForecastAvg:   mean(forecast),
	}
	for _, v := range history {
		s.HistoricalTotal += v
	}
	for i, v := range forecast {
		s.ForecastTotal += v
		if i == 0 || v < s.ForecastMin {
			s.ForecastMin = v
		}
		if i == 0 || v > s.ForecastMax {
			s.ForecastMax = v
		}
	}
	return s
}

func point(d time.Time, v float64) Point {
	return Point{Date: d.Format(dateLayout), Value: v, DayName: d.Weekday().String()}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
