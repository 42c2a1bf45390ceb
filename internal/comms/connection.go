package comms

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/satlink/core"
	"github.com/signalsfoundry/satlink/internal/logging"
	"github.com/signalsfoundry/satlink/model"
)

// Connect establishes a satellite connection for the terminal:
// coverage search, ground-station selection, simulated link
// establishment and signal modelling. Connecting an already-connected
// terminal returns the existing connection.
func (s *Service) Connect(ctx context.Context, terminalID string) (*model.Connection, error) {
	ctx, span := s.tracer.Start(ctx, "comms.Connect",
		trace.WithAttributes(attribute.String("terminal_id", terminalID)))
	defer span.End()
	ctx, log := logging.WithRequestLogger(ctx, s.log)

	ts, err := s.terminalState(terminalID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	ts.op.Lock()
	defer ts.op.Unlock()

	conn, err := s.connectHeld(ctx, log, ts)
	if err != nil {
		span.RecordError(err)
	}
	return conn, err
}

// connectHeld runs the connection state machine. Caller holds ts.op.
func (s *Service) connectHeld(ctx context.Context, log logging.Logger, ts *terminalState) (*model.Connection, error) {
	ts.mu.Lock()
	if existing := ts.term.Connection; existing != nil {
		ts.mu.Unlock()
		return existing, nil
	}
	ts.term.Status = model.TerminalSearching
	terminalID := ts.term.ID
	loc := ts.term.LastLocation
	network := ts.term.Network
	ts.mu.Unlock()

	fail := func(err error) (*model.Connection, error) {
		ts.mu.Lock()
		ts.term.Status = model.TerminalDisconnected
		ts.mu.Unlock()
		return nil, err
	}

	candidates := s.sats.FindAvailable(loc, network)
	if len(candidates) == 0 {
		return fail(fmt.Errorf("%w: terminal %q at (%.3f, %.3f)",
			ErrNoCoverage, terminalID, loc.Latitude, loc.Longitude))
	}
	sat := candidates[0]

	station := s.stations.FindBestFor(sat)
	if station == nil {
		return fail(fmt.Errorf("%w: satellite %q on %s", ErrNoGroundStation, sat.ID, sat.Network))
	}

	ts.mu.Lock()
	ts.term.Status = model.TerminalConnecting
	ts.mu.Unlock()

	// Simulated link establishment; cancellable, never clamped.
	select {
	case <-s.clock.After(s.establishDelay):
	case <-ctx.Done():
		return fail(ctx.Err())
	}

	if err := s.stations.Reserve(station.ID); err != nil {
		// Capacity raced away while we were establishing.
		return fail(fmt.Errorf("%w: station %q", ErrNoGroundStation, station.ID))
	}
	beamID, err := s.sats.ClaimBeam(sat.ID)
	if err != nil {
		_ = s.stations.Release(station.ID)
		return fail(err)
	}

	distKm := core.DistanceToFootprintCenter(loc, sat)
	strength := core.SignalStrengthDBm(distKm, sat.Footprint.RadiusKm, s.rand.Float64()*3)
	now := s.clock.Now()

	conn := &model.Connection{
		SatelliteID:       sat.ID,
		GroundStationID:   station.ID,
		BeamID:            beamID,
		SignalStrengthDBm: strength,
		SNRdB:             core.SNRFromStrength(strength),
		UplinkMHz:         1626.5,
		DownlinkMHz:       1616.0,
		BandwidthKbps:     sat.Capability.BandwidthKbps,
		LatencyMs:         sat.Capability.BaseLatencyMs + core.PropagationDelayMs(sat.AltitudeKm),
		EstablishedAt:     now,
		LastActivity:      now,
	}

	connCtx, cancel := context.WithCancel(context.Background())
	ts.mu.Lock()
	ts.term.Connection = conn
	ts.term.Status = model.TerminalConnected
	ts.connCtx = connCtx
	ts.cancelConn = cancel
	ts.mu.Unlock()

	s.metrics.SetConnectedTerminals(s.connectedCount())
	log.Info(ctx, "terminal connected",
		logging.String("terminal_id", terminalID),
		logging.String("satellite_id", sat.ID),
		logging.String("station_id", station.ID),
		logging.Any("signal_dbm", strength),
	)
	s.bus.Emit(Event{Type: EventConnectionChanged, TerminalID: terminalID, At: now, Payload: conn})

	return conn, nil
}

// Disconnect tears down the terminal's connection, aborting any
// in-flight transmission. Disconnecting an already-disconnected
// terminal is a no-op.
func (s *Service) Disconnect(ctx context.Context, terminalID string) error {
	ctx, span := s.tracer.Start(ctx, "comms.Disconnect",
		trace.WithAttributes(attribute.String("terminal_id", terminalID)))
	defer span.End()
	ctx, log := logging.WithRequestLogger(ctx, s.log)

	ts, err := s.terminalState(terminalID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	// Cancel before taking op so an in-flight transmission aborts and
	// releases the operation lock.
	ts.mu.Lock()
	cancel := ts.cancelConn
	ts.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	ts.op.Lock()
	defer ts.op.Unlock()

	ts.mu.Lock()
	conn := ts.term.Connection
	if conn == nil {
		ts.mu.Unlock()
		return nil
	}
	ts.term.Connection = nil
	ts.term.Status = model.TerminalDisconnected
	ts.connCtx = nil
	ts.cancelConn = nil
	ts.mu.Unlock()

	if err := s.stations.Release(conn.GroundStationID); err != nil {
		log.Warn(ctx, "station release failed",
			logging.String("station_id", conn.GroundStationID),
			logging.String("error", err.Error()),
		)
	}
	s.sats.ReleaseBeam(conn.SatelliteID, conn.BeamID)

	s.metrics.SetConnectedTerminals(s.connectedCount())
	log.Info(ctx, "terminal disconnected", logging.String("terminal_id", terminalID))
	s.bus.Emit(Event{Type: EventConnectionChanged, TerminalID: terminalID, At: s.clock.Now()})
	return nil
}

// evaluateHandoff recomputes the current connection's signal after a
// location change. When the signal drops below the handoff threshold
// it tries to move the connection to another covering satellite,
// keeping the ground station and beam. If nothing else covers the
// terminal the degraded connection is kept: degraded service beats
// dropped service in an emergency context.
func (s *Service) evaluateHandoff(ctx context.Context, ts *terminalState) {
	ctx, log := logging.WithRequestLogger(ctx, s.log)

	ts.op.Lock()
	defer ts.op.Unlock()

	ts.mu.Lock()
	conn := ts.term.Connection
	if conn == nil {
		ts.mu.Unlock()
		return
	}
	terminalID := ts.term.ID
	network := ts.term.Network
	loc := ts.term.LastLocation
	currentSatID := conn.SatelliteID
	ts.mu.Unlock()

	sat := s.sats.Get(currentSatID)
	if sat == nil {
		return
	}

	now := s.clock.Now()
	strength := core.SignalStrengthDBm(
		core.DistanceToFootprintCenter(loc, sat),
		sat.Footprint.RadiusKm,
		s.rand.Float64()*3,
	)

	if strength >= core.HandoffThresholdDBm {
		ts.mu.Lock()
		if ts.term.Connection == conn {
			conn.SignalStrengthDBm = strength
			conn.SNRdB = core.SNRFromStrength(strength)
			conn.LastActivity = now
		}
		ts.mu.Unlock()
		return
	}

	ts.mu.Lock()
	ts.term.Status = model.TerminalHandoff
	ts.mu.Unlock()

	var alternative *model.Satellite
	for _, candidate := range s.sats.FindAvailable(loc, network) {
		if candidate.ID != currentSatID {
			alternative = candidate
			break
		}
	}

	if alternative == nil {
		// Nothing better in view; ride the degraded link.
		ts.mu.Lock()
		conn.SignalStrengthDBm = strength
		conn.SNRdB = core.SNRFromStrength(strength)
		conn.LastActivity = now
		ts.term.Status = model.TerminalConnected
		ts.mu.Unlock()
		log.Warn(ctx, "no handoff candidate, staying on degraded link",
			logging.String("terminal_id", terminalID),
			logging.String("satellite_id", currentSatID),
			logging.Any("signal_dbm", strength),
		)
		return
	}

	newStrength := core.SignalStrengthDBm(
		core.DistanceToFootprintCenter(loc, alternative),
		alternative.Footprint.RadiusKm,
		s.rand.Float64()*3,
	)

	ts.mu.Lock()
	conn.SatelliteID = alternative.ID
	conn.SignalStrengthDBm = newStrength
	conn.SNRdB = core.SNRFromStrength(newStrength)
	conn.BandwidthKbps = alternative.Capability.BandwidthKbps
	conn.LatencyMs = alternative.Capability.BaseLatencyMs + core.PropagationDelayMs(alternative.AltitudeKm)
	conn.LastActivity = now
	ts.term.Status = model.TerminalConnected
	ts.mu.Unlock()

	s.metrics.HandoffPerformed()
	log.Info(ctx, "satellite handoff",
		logging.String("terminal_id", terminalID),
		logging.String("from_satellite", currentSatID),
		logging.String("to_satellite", alternative.ID),
	)
	s.bus.Emit(Event{Type: EventSatelliteHandoff, TerminalID: terminalID, At: now, Payload: conn})
}
