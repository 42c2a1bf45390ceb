package core

import (
	"errors"
	"testing"

	"github.com/signalsfoundry/satlink/model"
)

func station(id string, networks []model.Network, capacity int) *model.GroundStation {
	return &model.GroundStation{
		ID:             id,
		Name:           id,
		Networks:       networks,
		MaxConnections: capacity,
		Status:         model.StationOnline,
	}
}

func TestStationRegisterValidation(t *testing.T) {
	reg := NewGroundStationRegistry()

	if err := reg.Register(nil); !errors.Is(err, ErrStationBadInput) {
		t.Fatalf("Register(nil) = %v, want ErrStationBadInput", err)
	}
	if err := reg.Register(station("gs-1", nil, 0)); !errors.Is(err, ErrStationBadInput) {
		t.Fatalf("Register(zero capacity) = %v, want ErrStationBadInput", err)
	}

	gs := station("gs-1", []model.Network{model.NetworkIridium}, 10)
	if err := reg.Register(gs); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := reg.Register(gs); !errors.Is(err, ErrStationExists) {
		t.Fatalf("duplicate Register = %v, want ErrStationExists", err)
	}
}

// FindBestFor is the gateway selection at connect time: online, right
// network, spare capacity, preferring the emptiest station.
func TestFindBestForPrefersSpareCapacity(t *testing.T) {
	reg := NewGroundStationRegistry()

	busy := station("gs-busy", []model.Network{model.NetworkIridium}, 10)
	busy.CurrentConnections = 9
	empty := station("gs-empty", []model.Network{model.NetworkIridium}, 10)
	offline := station("gs-offline", []model.Network{model.NetworkIridium}, 100)
	offline.Status = model.StationOffline
	wrongNet := station("gs-inmarsat", []model.Network{model.NetworkInmarsat}, 100)

	for _, gs := range []*model.GroundStation{busy, empty, offline, wrongNet} {
		if err := reg.Register(gs); err != nil {
			t.Fatalf("Register(%s) failed: %v", gs.ID, err)
		}
	}

	sat := &model.Satellite{ID: "sat-1", Network: model.NetworkIridium}
	best := reg.FindBestFor(sat)
	if best == nil || best.ID != "gs-empty" {
		t.Fatalf("FindBestFor = %v, want gs-empty", best)
	}
}

func TestFindBestForNilWhenNothingQualifies(t *testing.T) {
	reg := NewGroundStationRegistry()
	full := station("gs-full", []model.Network{model.NetworkIridium}, 1)
	full.CurrentConnections = 1
	if err := reg.Register(full); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	sat := &model.Satellite{ID: "sat-1", Network: model.NetworkIridium}
	if best := reg.FindBestFor(sat); best != nil {
		t.Fatalf("FindBestFor = %v, want nil when all stations are full", best)
	}
	if best := reg.FindBestFor(nil); best != nil {
		t.Fatalf("FindBestFor(nil) = %v, want nil", best)
	}
}

func TestReserveAndRelease(t *testing.T) {
	reg := NewGroundStationRegistry()
	if err := reg.Register(station("gs-1", []model.Network{model.NetworkIridium}, 2)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := reg.Reserve("gs-1"); err != nil {
		t.Fatalf("first Reserve failed: %v", err)
	}
	if err := reg.Reserve("gs-1"); err != nil {
		t.Fatalf("second Reserve failed: %v", err)
	}
	if err := reg.Reserve("gs-1"); !errors.Is(err, ErrStationFull) {
		t.Fatalf("Reserve at capacity = %v, want ErrStationFull", err)
	}
	if err := reg.Reserve("ghost"); !errors.Is(err, ErrStationNotFound) {
		t.Fatalf("Reserve(unknown) = %v, want ErrStationNotFound", err)
	}

	if err := reg.Release("gs-1"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := reg.Reserve("gs-1"); err != nil {
		t.Fatalf("Reserve after Release failed: %v", err)
	}
}

func TestReleaseClampsAtZero(t *testing.T) {
	reg := NewGroundStationRegistry()
	if err := reg.Register(station("gs-1", []model.Network{model.NetworkIridium}, 5)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// Double release never goes negative.
	if err := reg.Release("gs-1"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if got := reg.Get("gs-1").CurrentConnections; got != 0 {
		t.Fatalf("connections = %d after over-release, want 0", got)
	}
}

func TestStationListAndCount(t *testing.T) {
	reg := NewGroundStationRegistry()
	for _, gs := range []*model.GroundStation{
		station("gs-b", []model.Network{model.NetworkIridium}, 5),
		station("gs-a", []model.Network{model.NetworkIridium, model.NetworkGlobalstar}, 5),
	} {
		if err := reg.Register(gs); err != nil {
			t.Fatalf("Register(%s) failed: %v", gs.ID, err)
		}
	}

	list := reg.List()
	if len(list) != 2 || list[0].ID != "gs-a" {
		t.Fatalf("List = %v, want sorted [gs-a gs-b]", list)
	}
	if n := reg.Count(model.NetworkGlobalstar); n != 1 {
		t.Fatalf("Count(globalstar) = %d, want 1", n)
	}
}
