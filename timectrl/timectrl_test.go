package timectrl

import (
	"testing"
	"time"
)

func TestSimulatedClockAfterAdvancesVirtualTime(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewSimulatedClock(start)

	ch := clock.After(2 * time.Second)
	select {
	case fired := <-ch:
		if !fired.Equal(start.Add(2 * time.Second)) {
			t.Fatalf("fired at %v, want %v", fired, start.Add(2*time.Second))
		}
	default:
		t.Fatal("After channel did not fire immediately on virtual time")
	}

	if now := clock.Now(); !now.Equal(start.Add(2 * time.Second)) {
		t.Fatalf("Now = %v, want %v", now, start.Add(2*time.Second))
	}
}

func TestSimulatedClockAdvance(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := NewSimulatedClock(start)

	clock.Advance(25 * time.Hour)
	if now := clock.Now(); !now.Equal(start.Add(25 * time.Hour)) {
		t.Fatalf("Now = %v after Advance, want %v", now, start.Add(25*time.Hour))
	}
}

func TestSimulatedClockNonPositiveDelay(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := NewSimulatedClock(start)

	<-clock.After(0)
	if now := clock.Now(); !now.Equal(start) {
		t.Fatalf("zero delay moved time to %v", now)
	}
}

func TestTimeControllerTicksListeners(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 10*time.Millisecond, Accelerated)

	var ticks []time.Time
	tc.AddListener(func(simTime time.Time) {
		ticks = append(ticks, simTime)
	})

	<-tc.Start(50 * time.Millisecond)

	if len(ticks) != 5 {
		t.Fatalf("listener fired %d times, want 5", len(ticks))
	}
	for i, tick := range ticks {
		want := start.Add(time.Duration(i+1) * 10 * time.Millisecond)
		if !tick.Equal(want) {
			t.Fatalf("tick %d at %v, want %v", i, tick, want)
		}
	}
}

func TestTimeControllerNowTracksSimTime(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 10*time.Millisecond, Accelerated)

	<-tc.Start(30 * time.Millisecond)

	if now := tc.Now(); !now.Equal(start.Add(30 * time.Millisecond)) {
		t.Fatalf("Now = %v after run, want %v", now, start.Add(30*time.Millisecond))
	}
}
