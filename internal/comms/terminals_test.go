package comms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/signalsfoundry/satlink/model"
)

func TestRegisterTerminalDefaults(t *testing.T) {
	f := newFixture(t)

	term, err := f.svc.RegisterTerminal(context.Background(), TerminalSpec{
		Network:            model.NetworkIridium,
		DataAllowanceBytes: 500,
	})
	if err != nil {
		t.Fatalf("RegisterTerminal failed: %v", err)
	}

	if term.ID != "term-1" {
		t.Fatalf("id = %q, want term-1", term.ID)
	}
	if term.Type != model.TerminalPortable {
		t.Fatalf("type = %q, want portable default", term.Type)
	}
	if term.Status != model.TerminalDisconnected {
		t.Fatalf("status = %q, want disconnected", term.Status)
	}
	if term.Connection != nil {
		t.Fatal("fresh terminal has a connection")
	}
	if term.Subscription.DataUsedBytes != 0 || term.Metrics.MessagesSent != 0 {
		t.Fatalf("counters not zeroed: %+v %+v", term.Subscription, term.Metrics)
	}
	wantValid := testEpoch.Add(365 * 24 * time.Hour)
	if !term.Subscription.ValidUntil.Equal(wantValid) {
		t.Fatalf("plan valid until %v, want %v", term.Subscription.ValidUntil, wantValid)
	}
}

func TestRegisterTerminalRequiresNetwork(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.RegisterTerminal(context.Background(), TerminalSpec{}); !errors.Is(err, ErrTerminalBadInput) {
		t.Fatalf("RegisterTerminal without network = %v, want ErrTerminalBadInput", err)
	}
}

func TestGetTerminalUnknown(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.GetTerminal("ghost"); !errors.Is(err, ErrTerminalNotFound) {
		t.Fatalf("GetTerminal(unknown) = %v, want ErrTerminalNotFound", err)
	}
}

func TestUpdateTerminalLocationStoresFix(t *testing.T) {
	f := newFixture(t)
	term := f.registerTerminal(t)

	loc := model.Location{Latitude: 36.9, Longitude: -118.0, AccuracyM: 5}
	if err := f.svc.UpdateTerminalLocation(context.Background(), term.ID, loc); err != nil {
		t.Fatalf("UpdateTerminalLocation failed: %v", err)
	}

	got, err := f.svc.GetTerminal(term.ID)
	if err != nil {
		t.Fatalf("GetTerminal failed: %v", err)
	}
	if got.LastLocation.Latitude != 36.9 || got.LastLocation.Longitude != -118.0 {
		t.Fatalf("location = %+v, want the new fix", got.LastLocation)
	}
	// A zero timestamp is stamped with the current clock.
	if !got.LastLocation.Timestamp.Equal(testEpoch) {
		t.Fatalf("timestamp = %v, want %v", got.LastLocation.Timestamp, testEpoch)
	}
}

// A disconnected terminal just records the fix; no handoff machinery
// runs and the status stays disconnected.
func TestUpdateTerminalLocationWhileDisconnected(t *testing.T) {
	f := newFixture(t)
	term := f.registerTerminal(t)

	if err := f.svc.UpdateTerminalLocation(context.Background(), term.ID, model.Location{Latitude: 60, Longitude: 10}); err != nil {
		t.Fatalf("UpdateTerminalLocation failed: %v", err)
	}
	got, _ := f.svc.GetTerminal(term.ID)
	if got.Status != model.TerminalDisconnected {
		t.Fatalf("status = %q, want disconnected", got.Status)
	}
}
