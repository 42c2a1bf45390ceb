package comms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/signalsfoundry/satlink/core"
	"github.com/signalsfoundry/satlink/model"
)

func TestConnectEstablishesLink(t *testing.T) {
	f := newFixture(t)
	term := f.registerTerminal(t)

	conn := f.connect(t, term.ID)

	if conn.SatelliteID != "sat-near" {
		t.Fatalf("connected to %q, want the nearest satellite sat-near", conn.SatelliteID)
	}
	if conn.GroundStationID != "gs-1" {
		t.Fatalf("ground station = %q, want gs-1", conn.GroundStationID)
	}
	if conn.BeamID != "near-beam-1" {
		t.Fatalf("beam = %q, want near-beam-1", conn.BeamID)
	}
	if conn.SignalStrengthDBm >= core.BaseSignalDBm+1 || conn.SignalStrengthDBm < core.HandoffThresholdDBm {
		t.Fatalf("signal = %f dBm, outside plausible range", conn.SignalStrengthDBm)
	}
	if conn.LatencyMs <= 40 {
		t.Fatalf("latency = %f ms, want base latency plus propagation", conn.LatencyMs)
	}
	// Establishment consumed the simulated 2s delay.
	if !conn.EstablishedAt.Equal(testEpoch.Add(2 * time.Second)) {
		t.Fatalf("established at %v, want %v", conn.EstablishedAt, testEpoch.Add(2*time.Second))
	}

	got, _ := f.svc.GetTerminal(term.ID)
	if got.Status != model.TerminalConnected {
		t.Fatalf("terminal status = %q, want connected", got.Status)
	}
	if f.stations.Get("gs-1").CurrentConnections != 1 {
		t.Fatal("ground station slot not reserved")
	}
	if f.sats.Get("sat-near").Footprint.Beams[0].Active != 1 {
		t.Fatal("beam slot not claimed")
	}
}

func TestConnectIdempotent(t *testing.T) {
	f := newFixture(t)
	term := f.registerTerminal(t)

	first := f.connect(t, term.ID)
	second := f.connect(t, term.ID)
	if first != second {
		t.Fatal("second Connect built a new connection instead of returning the existing one")
	}
	if f.stations.Get("gs-1").CurrentConnections != 1 {
		t.Fatal("double connect double-reserved the station")
	}
}

func TestConnectNoCoverage(t *testing.T) {
	f := newFixture(t)
	term := f.registerTerminal(t)

	// Southern hemisphere, far outside both footprints.
	if err := f.svc.UpdateTerminalLocation(context.Background(), term.ID, model.Location{Latitude: -40, Longitude: 60}); err != nil {
		t.Fatalf("UpdateTerminalLocation failed: %v", err)
	}

	_, err := f.svc.Connect(context.Background(), term.ID)
	if !errors.Is(err, ErrNoCoverage) {
		t.Fatalf("Connect = %v, want ErrNoCoverage", err)
	}
	got, _ := f.svc.GetTerminal(term.ID)
	if got.Status != model.TerminalDisconnected {
		t.Fatalf("status after failed connect = %q, want disconnected", got.Status)
	}
}

func TestConnectNoGroundStation(t *testing.T) {
	f := newFixture(t)
	term := f.registerTerminal(t)

	if err := f.stations.SetStatus("gs-1", model.StationOffline); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	_, err := f.svc.Connect(context.Background(), term.ID)
	if !errors.Is(err, ErrNoGroundStation) {
		t.Fatalf("Connect = %v, want ErrNoGroundStation", err)
	}
}

func TestDisconnectReleasesResources(t *testing.T) {
	f := newFixture(t)
	term := f.registerTerminal(t)
	f.connect(t, term.ID)

	if err := f.svc.Disconnect(context.Background(), term.ID); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	got, _ := f.svc.GetTerminal(term.ID)
	if got.Status != model.TerminalDisconnected || got.Connection != nil {
		t.Fatalf("terminal not torn down: status=%q conn=%v", got.Status, got.Connection)
	}
	if f.stations.Get("gs-1").CurrentConnections != 0 {
		t.Fatal("station slot not released")
	}
	if f.sats.Get("sat-near").Footprint.Beams[0].Active != 0 {
		t.Fatal("beam slot not released")
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	f := newFixture(t)
	term := f.registerTerminal(t)

	// Never connected: a no-op, not an error.
	if err := f.svc.Disconnect(context.Background(), term.ID); err != nil {
		t.Fatalf("Disconnect on fresh terminal = %v, want nil", err)
	}

	f.connect(t, term.ID)
	if err := f.svc.Disconnect(context.Background(), term.ID); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if err := f.svc.Disconnect(context.Background(), term.ID); err != nil {
		t.Fatalf("second Disconnect = %v, want nil", err)
	}
	if f.stations.Get("gs-1").CurrentConnections != 0 {
		t.Fatal("double disconnect corrupted station accounting")
	}
}

// Moving out of the serving footprint with another satellite in view
// swaps the connection's satellite in place; ground station and beam
// are retained.
func TestHandoffToCoveringSatellite(t *testing.T) {
	f := newFixture(t)
	term := f.registerTerminal(t)
	conn := f.connect(t, term.ID)

	var handoffs []Event
	f.svc.Subscribe(func(ev Event) { handoffs = append(handoffs, ev) }, EventSatelliteHandoff)

	// Jitter draw for the degraded current link: 0.5*3 = 1.5 dB pushes
	// the edge-clamped signal below the handoff threshold.
	f.rand.push(0.5)

	// ~1220 km from sat-near's centre (radius 1000), still well inside
	// sat-wide's 3000 km footprint.
	if err := f.svc.UpdateTerminalLocation(context.Background(), term.ID, model.Location{Latitude: 48, Longitude: -118}); err != nil {
		t.Fatalf("UpdateTerminalLocation failed: %v", err)
	}

	got, _ := f.svc.GetTerminal(term.ID)
	if got.Status != model.TerminalConnected {
		t.Fatalf("status after handoff = %q, want connected", got.Status)
	}
	if got.Connection != conn {
		t.Fatal("handoff replaced the Connection object instead of updating it in place")
	}
	if conn.SatelliteID != "sat-wide" {
		t.Fatalf("serving satellite = %q, want sat-wide", conn.SatelliteID)
	}
	if conn.GroundStationID != "gs-1" || conn.BeamID != "near-beam-1" {
		t.Fatalf("handoff changed station/beam: %q/%q", conn.GroundStationID, conn.BeamID)
	}
	if conn.BandwidthKbps != 64 {
		t.Fatalf("bandwidth = %f, want the new satellite's 64", conn.BandwidthKbps)
	}
	if conn.SignalStrengthDBm < core.HandoffThresholdDBm {
		t.Fatalf("post-handoff signal = %f, still below threshold", conn.SignalStrengthDBm)
	}
	if len(handoffs) != 1 {
		t.Fatalf("got %d handoff events, want 1", len(handoffs))
	}
}

// With no alternative in view the terminal rides the degraded link
// rather than dropping it.
func TestHandoffKeepsDegradedLinkWhenAlone(t *testing.T) {
	f := newFixture(t)
	term := f.registerTerminal(t)
	conn := f.connect(t, term.ID)

	if err := f.sats.SetStatus("sat-wide", model.SatelliteOffline); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	f.rand.push(0.5)

	if err := f.svc.UpdateTerminalLocation(context.Background(), term.ID, model.Location{Latitude: 48, Longitude: -118}); err != nil {
		t.Fatalf("UpdateTerminalLocation failed: %v", err)
	}

	got, _ := f.svc.GetTerminal(term.ID)
	if got.Status != model.TerminalConnected {
		t.Fatalf("status = %q, want connected on the degraded link", got.Status)
	}
	if conn.SatelliteID != "sat-near" {
		t.Fatalf("satellite = %q, want unchanged sat-near", conn.SatelliteID)
	}
	if conn.SignalStrengthDBm >= core.HandoffThresholdDBm {
		t.Fatalf("signal = %f, want below threshold on the degraded link", conn.SignalStrengthDBm)
	}
}

// A small move within the footprint just refreshes the link quality.
func TestLocationUpdateRefreshesSignal(t *testing.T) {
	f := newFixture(t)
	term := f.registerTerminal(t)
	conn := f.connect(t, term.ID)
	before := conn.SignalStrengthDBm

	if err := f.svc.UpdateTerminalLocation(context.Background(), term.ID, model.Location{Latitude: 39, Longitude: -118}); err != nil {
		t.Fatalf("UpdateTerminalLocation failed: %v", err)
	}

	if conn.SatelliteID != "sat-near" {
		t.Fatalf("satellite changed on an in-footprint move: %q", conn.SatelliteID)
	}
	if conn.SignalStrengthDBm >= before {
		t.Fatalf("signal %f did not degrade moving away from the beam centre (was %f)",
			conn.SignalStrengthDBm, before)
	}
}
