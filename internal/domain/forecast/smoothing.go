package forecast

import "math"

// fit is a fitted smoothing model.
type fit struct {
	fitted    []float64 // one-step-ahead predictions aligned with the series
	start     int       // first index with a meaningful prediction
	sse       float64
	alpha     float64
	beta      float64
	gamma     float64
	predictor func(h int) float64
}

var grid = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}

// holtLinear fits level and trend. Requires len(y) >= 2.
func holtLinear(y []float64, alpha, beta float64) fit {
	level, trend := y[0], y[1]-y[0]
	fitted := make([]float64, len(y))
	fitted[0] = y[0]
	sse := 0.0
	for t := 1; t < len(y); t++ {
		fitted[t] = level + trend
		e := y[t] - fitted[t]
		sse += e * e
		prev := level
		level = alpha*y[t] + (1-alpha)*(level+trend)
		trend = beta*(level-prev) + (1-beta)*trend
	}
	l, b := level, trend
	return fit{
		fitted: fitted, start: 1, sse: sse, alpha: alpha, beta: beta,
		predictor: func(h int) float64 { return l + float64(h)*b },
	}
}

// holtWinters fits additive level, trend and season of length m.
// Requires len(y) >= 2*m.
func holtWinters(y []float64, m int, alpha, beta, gamma float64) fit {
	first, second := mean(y[:m]), mean(y[m:2*m])
	level := first
	trend := (second - first) / float64(m)
	season := make([]float64, m)
	for i := 0; i < m; i++ {
		season[i] = y[i] - first
	}

	fitted := make([]float64, len(y))
	sse := 0.0
	for t := range y {
		s := season[t%m]
		fitted[t] = level + trend + s
		e := y[t] - fitted[t]
		sse += e * e
		prev := level
		level = alpha*(y[t]-s) + (1-alpha)*(level+trend)
		trend = beta*(level-prev) + (1-beta)*trend
		season[t%m] = gamma*(y[t]-level) + (1-gamma)*s
	}

	l, b, n := level, trend, len(y)
	seasonCopy := append([]float64(nil), season...)
	return fit{
		fitted: fitted, start: 0, sse: sse, alpha: alpha, beta: beta, gamma: gamma,
		predictor: func(h int) float64 { return l + float64(h)*b + seasonCopy[(n+h-1)%m] },
	}
}

// bestHoltLinear grid-searches alpha and beta by in-sample SSE.
func bestHoltLinear(y []float64) fit {
	best := fit{sse: math.Inf(1)}
	for _, a := range grid {
		for _, b := range grid {
			if f := holtLinear(y, a, b); f.sse < best.sse {
				best = f
			}
		}
	}
	return best
}

// bestHoltWinters grid-searches alpha, beta and gamma by in-sample SSE.
func bestHoltWinters(y []float64, m int) fit {
	best := fit{sse: math.Inf(1)}
	for _, a := range grid {
		for _, b := range grid {
			for _, g := range grid {
				if f := holtWinters(y, m, a, b, g); f.sse < best.sse {
					best = f
				}
			}
		}
	}
	return best
}

// residuals returns y - fitted from the fit's first meaningful index.
func (f fit) residuals(y []float64) []float64 {
	out := make([]float64, 0, len(y)-f.start)
	for t := f.start; t < len(y); t++ {
		out = append(out, y[t]-f.fitted[t])
	}
	return out
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

// stddev is the population standard deviation.
func stddev(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	m := mean(v)
	s := 0.0
	for _, x := range v {
		s += (x - m) * (x - m)
	}
	return math.Sqrt(s / float64(len(v)))
}
