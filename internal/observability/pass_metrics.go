package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PassCollector exposes pass-prediction Prometheus metrics.
type PassCollector struct {
	gatherer prometheus.Gatherer

	PredictionDuration prometheus.Histogram
	PassesPredicted    prometheus.Counter
}

// NewPassCollector registers pass-prediction metrics against the
// provided registerer.
func NewPassCollector(reg prometheus.Registerer) (*PassCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "satlink_pass_prediction_duration_seconds",
		Help:    "Duration of satellite pass predictions over the configured horizon.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})
	duration, err := registerHistogram(reg, duration, "satlink_pass_prediction_duration_seconds")
	if err != nil {
		return nil, err
	}

	predicted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "satlink_passes_predicted_total",
		Help: "Cumulative number of satellite passes produced by the predictor.",
	})
	predicted, err = registerCounter(reg, predicted, "satlink_passes_predicted_total")
	if err != nil {
		return nil, err
	}

	return &PassCollector{
		gatherer:           gatherer,
		PredictionDuration: duration,
		PassesPredicted:    predicted,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *PassCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObservePrediction records one prediction run: its duration and the
// number of passes it produced.
func (c *PassCollector) ObservePrediction(d time.Duration, passes int) {
	if c == nil {
		return
	}
	if c.PredictionDuration != nil {
		c.PredictionDuration.Observe(d.Seconds())
	}
	if c.PassesPredicted != nil {
		c.PassesPredicted.Add(float64(passes))
	}
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
