// Package comms implements the satellite communications fallback
// layer: terminal lifecycle, connection management with handoff, the
// message transmission pipeline and the SOS escalation workflow, all
// over the core registries.
package comms

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/satlink/core"
	"github.com/signalsfoundry/satlink/internal/logging"
	"github.com/signalsfoundry/satlink/internal/rng"
	"github.com/signalsfoundry/satlink/model"
	"github.com/signalsfoundry/satlink/timectrl"
)

// RescueCoordinationEndpoint is where SOS messages are addressed.
const RescueCoordinationEndpoint = "rescue-coordination"

// messageTTL is how long a message may sit queued or transmitting
// before it expires.
const messageTTL = 24 * time.Hour

// MetricsRecorder receives link-layer measurements. The observability
// package provides the Prometheus-backed implementation.
type MetricsRecorder interface {
	SetConnectedTerminals(n int)
	SetActiveAlerts(n int)
	MessageStatus(status string)
	ObserveTransmission(seconds float64, success bool)
	HandoffPerformed()
}

type nopRecorder struct{}

func (nopRecorder) SetConnectedTerminals(int)         {}
func (nopRecorder) SetActiveAlerts(int)               {}
func (nopRecorder) MessageStatus(string)              {}
func (nopRecorder) ObserveTransmission(float64, bool) {}
func (nopRecorder) HandoffPerformed()                 {}

// terminalState wraps a terminal with its concurrency scaffolding.
//
// Lock discipline: op serializes the long operations on one terminal
// (connect, handoff, send); mu guards the terminal fields themselves
// and is never held across a clock wait. Disconnect cancels connCtx
// before taking op, so an in-flight transmission aborts promptly
// instead of completing silently.
type terminalState struct {
	op sync.Mutex
	mu sync.Mutex

	term *model.Terminal

	connCtx    context.Context
	cancelConn context.CancelFunc
}

// Service is the explicitly-constructed fallback layer: registries and
// collaborators are passed in at construction, giving deterministic
// lifecycle and testability without hidden globals.
type Service struct {
	sats     *core.SatelliteRegistry
	stations *core.GroundStationRegistry
	passes   *core.PassPredictor

	clock   timectrl.Clock
	ids     IDGenerator
	rand    rng.Source
	log     logging.Logger
	metrics MetricsRecorder
	bus     *EventBus
	tracer  trace.Tracer

	successProb    float64
	establishDelay time.Duration
	deliveryDelay  time.Duration
	maxAttempts    int

	mu        sync.RWMutex
	terminals map[string]*terminalState

	msgMu    sync.RWMutex
	messages map[string]*model.Message
	// msgOrder preserves submission order per terminal for listings.
	msgOrder map[string][]string

	alertMu sync.RWMutex
	alerts  map[string]*model.SOSAlert

	rootCtx  context.Context
	shutdown context.CancelFunc
}

// Option customises Service construction.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides the clock; tests use timectrl.SimulatedClock.
func WithClock(c timectrl.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithIDGenerator overrides id allocation.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Service) {
		if g != nil {
			s.ids = g
		}
	}
}

// WithRandomSource overrides the randomness used for transmission
// outcomes and signal jitter.
func WithRandomSource(src rng.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.rand = src
		}
	}
}

// WithSuccessProbability sets the simulated per-attempt transmission
// success probability (default 0.95).
func WithSuccessProbability(p float64) Option {
	return func(s *Service) {
		if p >= 0 && p <= 1 {
			s.successProb = p
		}
	}
}

// WithEstablishDelay sets the simulated link establishment delay.
func WithEstablishDelay(d time.Duration) Option {
	return func(s *Service) { s.establishDelay = d }
}

// WithDeliveryDelay sets the delay before a transmitted message is
// confirmed delivered.
func WithDeliveryDelay(d time.Duration) Option {
	return func(s *Service) { s.deliveryDelay = d }
}

// NewService constructs the fallback layer over the given registries.
func NewService(sats *core.SatelliteRegistry, stations *core.GroundStationRegistry, opts ...Option) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		sats:     sats,
		stations: stations,

		clock:   timectrl.RealClock{},
		ids:     NewUUIDGenerator(),
		rand:    rng.System(),
		log:     logging.Noop(),
		metrics: nopRecorder{},
		tracer:  otel.Tracer("satlink/comms"),

		successProb:    0.95,
		establishDelay: 2 * time.Second,
		deliveryDelay:  500 * time.Millisecond,
		maxAttempts:    3,

		terminals: make(map[string]*terminalState),
		messages:  make(map[string]*model.Message),
		msgOrder:  make(map[string][]string),
		alerts:    make(map[string]*model.SOSAlert),

		rootCtx:  ctx,
		shutdown: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = NewEventBus(s.log)
	}
	s.passes = core.NewPassPredictor(sats, s.rand)
	return s
}

// PredictPasses returns the approximate satellite passes over the
// terminal's last known position within the horizon, soonest first.
func (s *Service) PredictPasses(terminalID string, horizon time.Duration) ([]core.SatellitePass, error) {
	ts, err := s.terminalState(terminalID)
	if err != nil {
		return nil, err
	}
	ts.mu.Lock()
	loc := ts.term.LastLocation
	ts.mu.Unlock()
	return s.passes.Predict(s.clock.Now(), loc, horizon), nil
}

// Close aborts pending asynchronous work (delivery confirmations).
// In-flight transmissions on individual terminals are cancelled by
// their own disconnects.
func (s *Service) Close() {
	s.shutdown()
}

// Subscribe registers an event handler, optionally filtered by type.
func (s *Service) Subscribe(h Handler, types ...EventType) int {
	return s.bus.Subscribe(h, types...)
}

// Unsubscribe removes an event subscription.
func (s *Service) Unsubscribe(id int) {
	s.bus.Unsubscribe(id)
}

// Events exposes the bus for collaborators that emit their own
// notifications.
func (s *Service) Events() *EventBus { return s.bus }

// NetworkStatistics is a point-in-time census of the fallback layer.
type NetworkStatistics struct {
	Satellites      int
	GroundStations  int
	Terminals       int
	Messages        int
	MessagesByState map[model.MessageStatus]int
	ActiveSOSAlerts int
}

// Statistics returns counts of satellites, ground stations, terminals,
// messages and active SOS alerts, optionally restricted to one
// network. Message expiry is applied lazily during the census.
func (s *Service) Statistics(network model.Network) NetworkStatistics {
	stats := NetworkStatistics{
		Satellites:      s.sats.Count(network),
		GroundStations:  s.stations.Count(network),
		MessagesByState: make(map[model.MessageStatus]int),
	}

	s.mu.RLock()
	terminalIDs := make(map[string]struct{}, len(s.terminals))
	for id, ts := range s.terminals {
		if network != "" {
			ts.mu.Lock()
			match := ts.term.Network == network
			ts.mu.Unlock()
			if !match {
				continue
			}
		}
		terminalIDs[id] = struct{}{}
	}
	s.mu.RUnlock()
	stats.Terminals = len(terminalIDs)

	now := s.clock.Now()
	s.msgMu.Lock()
	for _, msg := range s.messages {
		if network != "" {
			if _, ok := terminalIDs[msg.TerminalID]; !ok {
				continue
			}
		}
		s.expireLocked(msg, now)
		stats.Messages++
		stats.MessagesByState[msg.Status]++
	}
	s.msgMu.Unlock()

	s.alertMu.RLock()
	for _, alert := range s.alerts {
		if network != "" {
			if _, ok := terminalIDs[alert.TerminalID]; !ok {
				continue
			}
		}
		if !alert.TerminalState() {
			stats.ActiveSOSAlerts++
		}
	}
	s.alertMu.RUnlock()

	return stats
}

// connectedCount is used to keep the connected-terminals gauge honest.
func (s *Service) connectedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, ts := range s.terminals {
		ts.mu.Lock()
		if ts.term.Connection != nil {
			n++
		}
		ts.mu.Unlock()
	}
	return n
}

// activeAlertCount counts non-terminal SOS alerts.
func (s *Service) activeAlertCount() int {
	s.alertMu.RLock()
	defer s.alertMu.RUnlock()

	n := 0
	for _, alert := range s.alerts {
		if !alert.TerminalState() {
			n++
		}
	}
	return n
}
