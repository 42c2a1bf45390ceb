package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LinkCollector bundles Prometheus metrics for the satellite link
// layer. It satisfies the comms MetricsRecorder interface so the
// service can drive gauge and counter values directly from its
// mutators.
type LinkCollector struct {
	gatherer prometheus.Gatherer

	TerminalsConnected prometheus.Gauge
	ActiveSOSAlerts    prometheus.Gauge
	Messages           *prometheus.CounterVec
	TransmissionTime   *prometheus.HistogramVec
	Handoffs           prometheus.Counter
}

// NewLinkCollector registers link-layer Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry
// when nil.
func NewLinkCollector(reg prometheus.Registerer) (*LinkCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	connected, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satlink_terminals_connected",
		Help: "Current number of terminals holding an active satellite connection.",
	}), "satlink_terminals_connected")
	if err != nil {
		return nil, err
	}

	alerts, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satlink_sos_alerts_active",
		Help: "Current number of SOS alerts not yet resolved or cancelled.",
	}), "satlink_sos_alerts_active")
	if err != nil {
		return nil, err
	}

	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satlink_messages_total",
		Help: "Message status transitions, labeled by the status entered.",
	}, []string{"status"})
	messages, err = registerCounterVec(reg, messages, "satlink_messages_total")
	if err != nil {
		return nil, err
	}

	txTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "satlink_transmission_duration_seconds",
		Help:    "Wall-clock duration of message transmission attempts.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"result"})
	txTime, err = registerHistogramVec(reg, txTime, "satlink_transmission_duration_seconds")
	if err != nil {
		return nil, err
	}

	handoffs, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "satlink_handoffs_total",
		Help: "Cumulative number of satellite-to-satellite connection handoffs.",
	}), "satlink_handoffs_total")
	if err != nil {
		return nil, err
	}

	return &LinkCollector{
		gatherer:           gatherer,
		TerminalsConnected: connected,
		ActiveSOSAlerts:    alerts,
		Messages:           messages,
		TransmissionTime:   txTime,
		Handoffs:           handoffs,
	}, nil
}

// SetConnectedTerminals updates the connected-terminals gauge.
func (c *LinkCollector) SetConnectedTerminals(n int) {
	if c == nil || c.TerminalsConnected == nil {
		return
	}
	c.TerminalsConnected.Set(float64(n))
}

// SetActiveAlerts updates the open-alerts gauge.
func (c *LinkCollector) SetActiveAlerts(n int) {
	if c == nil || c.ActiveSOSAlerts == nil {
		return
	}
	c.ActiveSOSAlerts.Set(float64(n))
}

// MessageStatus counts a message entering the given status.
func (c *LinkCollector) MessageStatus(status string) {
	if c == nil || c.Messages == nil {
		return
	}
	c.Messages.WithLabelValues(status).Inc()
}

// ObserveTransmission records one transmission attempt's duration.
func (c *LinkCollector) ObserveTransmission(seconds float64, success bool) {
	if c == nil || c.TransmissionTime == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	c.TransmissionTime.WithLabelValues(result).Observe(seconds)
}

// HandoffPerformed increments the handoff counter.
func (c *LinkCollector) HandoffPerformed() {
	if c == nil || c.Handoffs == nil {
		return
	}
	c.Handoffs.Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *LinkCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
