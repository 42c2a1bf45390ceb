package comms

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/satlink/model"
)

// waitFor polls cond until it holds or the deadline passes. Used only
// for the asynchronous delivery confirmation, which runs on its own
// goroutine.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestSendMessageLifecycle(t *testing.T) {
	f := newFixture(t)
	term := f.registerTerminal(t)
	conn := f.connect(t, term.ID)

	msg, err := f.svc.SendMessage(context.Background(), term.ID, SendRequest{
		Type:        model.MessageSMS,
		Destination: "basecamp",
		Content:     "made camp before dark",
	})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if msg.ID != "msg-1" {
		t.Fatalf("id = %q, want msg-1", msg.ID)
	}
	if msg.Status != model.MessageTransmitted && msg.Status != model.MessageDelivered {
		t.Fatalf("status = %q, want transmitted (or already delivered)", msg.Status)
	}
	if msg.Transmission.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", msg.Transmission.Attempts)
	}
	if msg.Routing.ViaSatellite != conn.SatelliteID || msg.Routing.ViaGroundStation != conn.GroundStationID {
		t.Fatalf("routing = %+v, want the serving satellite and station", msg.Routing)
	}
	if msg.Payload.SizeBytes != int64(len("made camp before dark")) {
		t.Fatalf("size = %d bytes, want content length", msg.Payload.SizeBytes)
	}
	if msg.Payload.Checksum == "" {
		t.Fatal("checksum not computed")
	}
	if !msg.ExpiresAt.Equal(msg.CreatedAt.Add(24 * time.Hour)) {
		t.Fatalf("expiry = %v, want created+24h", msg.ExpiresAt)
	}

	got, _ := f.svc.GetTerminal(term.ID)
	if got.Metrics.MessagesSent != 1 || got.Metrics.BytesSent != msg.Payload.SizeBytes {
		t.Fatalf("terminal metrics = %+v, want one sent message", got.Metrics)
	}
	if got.Subscription.DataUsedBytes != msg.Payload.SizeBytes {
		t.Fatalf("quota used = %d, want %d", got.Subscription.DataUsedBytes, msg.Payload.SizeBytes)
	}
	if got.Metrics.AvgLatencyMs != conn.LatencyMs {
		t.Fatalf("avg latency = %f, want first sample %f", got.Metrics.AvgLatencyMs, conn.LatencyMs)
	}

	// Delivery confirmation arrives asynchronously after the delay.
	waitFor(t, func() bool {
		current, err := f.svc.GetMessage(msg.ID)
		return err == nil && current.Status == model.MessageDelivered
	})
}

func TestSendMessageRequiresConnection(t *testing.T) {
	f := newFixture(t)
	term := f.registerTerminal(t)

	_, err := f.svc.SendMessage(context.Background(), term.ID, SendRequest{Content: "hello"})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("SendMessage while disconnected = %v, want ErrNotConnected", err)
	}
}

// Over-quota sends fail up front: the message exists in the failed
// state, the error names the quota, and no allowance is consumed.
func TestSendMessageQuotaExceeded(t *testing.T) {
	f := newFixture(t)
	term := f.registerTerminal(t) // 10,000 byte allowance
	f.connect(t, term.ID)

	msg, err := f.svc.SendMessage(context.Background(), term.ID, SendRequest{
		Destination: "basecamp",
		Content:     strings.Repeat("x", 10_001),
	})
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("SendMessage = %v, want ErrQuotaExceeded", err)
	}
	if msg == nil || msg.Status != model.MessageFailed {
		t.Fatalf("message = %+v, want a stored failed message", msg)
	}
	if msg.Transmission.Attempts != 0 {
		t.Fatalf("attempts = %d, want 0 for a quota rejection", msg.Transmission.Attempts)
	}

	got, _ := f.svc.GetTerminal(term.ID)
	if got.Subscription.DataUsedBytes != 0 {
		t.Fatalf("quota consumed %d bytes by a rejected message", got.Subscription.DataUsedBytes)
	}

	// The failed message is still visible in the terminal's history.
	stored, err := f.svc.GetMessage(msg.ID)
	if err != nil || stored.Status != model.MessageFailed {
		t.Fatalf("stored message = %v, %v", stored, err)
	}
}

func TestSendMessageRetriesThenSucceeds(t *testing.T) {
	f := newFixture(t)
	term := f.registerTerminal(t)
	f.connect(t, term.ID)

	// First attempt fails (0.99 >= 0.95), second draws the default 0.
	f.rand.push(0.99)

	msg, err := f.svc.SendMessage(context.Background(), term.ID, SendRequest{
		Destination: "basecamp",
		Content:     "retry me",
	})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if msg.Status != model.MessageTransmitted && msg.Status != model.MessageDelivered {
		t.Fatalf("status = %q, want transmitted after retry", msg.Status)
	}
	if msg.Transmission.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", msg.Transmission.Attempts)
	}
}

func TestSendMessageExhaustsRetries(t *testing.T) {
	f := newFixture(t)
	term := f.registerTerminal(t)
	f.connect(t, term.ID)

	var failures []Event
	f.svc.Subscribe(func(ev Event) { failures = append(failures, ev) }, EventMessageFailed)

	f.rand.push(0.99, 0.99, 0.99)

	msg, err := f.svc.SendMessage(context.Background(), term.ID, SendRequest{
		Destination: "basecamp",
		Content:     "doomed",
	})
	if err != nil {
		t.Fatalf("SendMessage returned %v; transmission failures surface on the message", err)
	}
	if msg.Status != model.MessageFailed {
		t.Fatalf("status = %q, want failed", msg.Status)
	}
	if msg.Transmission.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", msg.Transmission.Attempts)
	}
	if msg.Transmission.LastError != ErrMaxRetriesExceeded.Error() {
		t.Fatalf("last error = %q, want max retries", msg.Transmission.LastError)
	}
	if len(failures) != 1 {
		t.Fatalf("got %d failure events, want 1", len(failures))
	}

	got, _ := f.svc.GetTerminal(term.ID)
	if got.Metrics.Drops != 1 {
		t.Fatalf("drops = %d, want 1", got.Metrics.Drops)
	}
	if got.Subscription.DataUsedBytes != 0 {
		t.Fatal("failed transmission consumed quota")
	}
}

func TestMessagesForTerminalPreservesOrder(t *testing.T) {
	f := newFixture(t)
	term := f.registerTerminal(t)
	f.connect(t, term.ID)

	for _, content := range []string{"first", "second", "third"} {
		if _, err := f.svc.SendMessage(context.Background(), term.ID, SendRequest{
			Destination: "basecamp",
			Content:     content,
		}); err != nil {
			t.Fatalf("SendMessage(%q) failed: %v", content, err)
		}
	}

	msgs := f.svc.MessagesForTerminal(term.ID)
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for i, want := range []string{"first", "second", "third"} {
		if msgs[i].Payload.Content != want {
			t.Fatalf("message %d = %q, want %q", i, msgs[i].Payload.Content, want)
		}
	}
}

func TestGetMessageUnknown(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.GetMessage("ghost"); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("GetMessage(unknown) = %v, want ErrMessageNotFound", err)
	}
}

// A pending message past its deadline flips to expired the next time
// anyone reads it; no background timer is involved.
func TestLazyExpiryOnRead(t *testing.T) {
	f := newFixture(t)
	term := f.registerTerminal(t)

	now := f.clock.Now()
	msg := &model.Message{
		ID:         "msg-stale",
		TerminalID: term.ID,
		Status:     model.MessageQueued,
		CreatedAt:  now,
		ExpiresAt:  now.Add(messageTTL),
	}
	f.svc.storeMessage(msg)

	f.clock.Advance(25 * time.Hour)

	got, err := f.svc.GetMessage("msg-stale")
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if got.Status != model.MessageExpired {
		t.Fatalf("status = %q, want expired", got.Status)
	}
}

// Exactly at the deadline a message is still pending; expiry requires
// the deadline to have passed.
func TestExpiryBoundary(t *testing.T) {
	f := newFixture(t)
	term := f.registerTerminal(t)

	now := f.clock.Now()
	msg := &model.Message{
		ID:         "msg-edge",
		TerminalID: term.ID,
		Status:     model.MessageQueued,
		CreatedAt:  now,
		ExpiresAt:  now.Add(messageTTL),
	}
	f.svc.storeMessage(msg)

	f.clock.Advance(messageTTL)
	got, _ := f.svc.GetMessage("msg-edge")
	if got.Status != model.MessageQueued {
		t.Fatalf("status at exact deadline = %q, want still queued", got.Status)
	}
}

func TestExpireStaleSweep(t *testing.T) {
	f := newFixture(t)
	term := f.registerTerminal(t)
	f.connect(t, term.ID)

	// One delivered message (never expires) and one stuck queued.
	if _, err := f.svc.SendMessage(context.Background(), term.ID, SendRequest{
		Destination: "basecamp",
		Content:     "ok",
	}); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	f.svc.storeMessage(&model.Message{
		ID:         "msg-stuck",
		TerminalID: term.ID,
		Status:     model.MessageQueued,
		CreatedAt:  f.clock.Now(),
		ExpiresAt:  f.clock.Now().Add(messageTTL),
	})

	f.clock.Advance(25 * time.Hour)

	if n := f.svc.ExpireStale(f.clock.Now()); n != 1 {
		t.Fatalf("ExpireStale expired %d messages, want 1", n)
	}
	got, _ := f.svc.GetMessage("msg-stuck")
	if got.Status != model.MessageExpired {
		t.Fatalf("status = %q, want expired", got.Status)
	}
}

// stallClock keeps transmission waits pending forever so a disconnect
// can interrupt them. Zero-duration waits fire immediately, which
// lets connection establishment (configured to zero delay) proceed.
type stallClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stallClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stallClock) After(d time.Duration) <-chan time.Time {
	if d <= 0 {
		ch := make(chan time.Time, 1)
		ch <- c.Now()
		return ch
	}
	return make(chan time.Time)
}

func TestDisconnectAbortsInFlightTransmission(t *testing.T) {
	clock := &stallClock{now: testEpoch}
	f := newFixture(t,
		WithClock(clock),
		WithEstablishDelay(0),
	)
	term := f.registerTerminal(t)
	f.connect(t, term.ID)

	done := make(chan *model.Message, 1)
	go func() {
		msg, _ := f.svc.SendMessage(context.Background(), term.ID, SendRequest{
			Destination: "basecamp",
			Content:     "stuck on air",
		})
		done <- msg
	}()

	// Wait until the message is actually on the air.
	waitFor(t, func() bool {
		msgs := f.svc.MessagesForTerminal(term.ID)
		return len(msgs) == 1 && msgs[0].Status == model.MessageTransmitting
	})

	if err := f.svc.Disconnect(context.Background(), term.ID); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	msg := <-done
	if msg.Status != model.MessageFailed {
		t.Fatalf("status = %q, want failed after disconnect", msg.Status)
	}
	if msg.Transmission.LastError != ErrTerminalDisconnected.Error() {
		t.Fatalf("last error = %q, want terminal disconnected", msg.Transmission.LastError)
	}

	got, _ := f.svc.GetTerminal(term.ID)
	if got.Status != model.TerminalDisconnected {
		t.Fatalf("terminal status = %q, want disconnected", got.Status)
	}
	if got.Metrics.Drops != 1 {
		t.Fatalf("drops = %d, want 1", got.Metrics.Drops)
	}
}
