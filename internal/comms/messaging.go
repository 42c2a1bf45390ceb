package comms

import (
	"context"
	"fmt"
	"hash/crc32"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/satlink/internal/logging"
	"github.com/signalsfoundry/satlink/model"
)

// SendRequest describes an outbound message.
type SendRequest struct {
	Type        model.MessageType
	Destination string
	Content     string
	// Priority defaults to normal when empty.
	Priority model.MessagePriority
	Compress bool
	Encrypt  bool
}

// SendMessage queues a message for the terminal and immediately
// attempts transmission. The terminal must be connected. When the
// payload would exceed the data allowance, the message is created
// already failed with a quota error and no transmission is attempted;
// the terminal's used quota is untouched.
//
// Messages from the same terminal are attempted in submission order;
// no ordering is guaranteed across terminals.
func (s *Service) SendMessage(ctx context.Context, terminalID string, req SendRequest) (*model.Message, error) {
	ctx, span := s.tracer.Start(ctx, "comms.SendMessage",
		trace.WithAttributes(
			attribute.String("terminal_id", terminalID),
			attribute.String("message_type", string(req.Type)),
		))
	defer span.End()
	ctx, log := logging.WithRequestLogger(ctx, s.log)

	ts, err := s.terminalState(terminalID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	ts.op.Lock()
	defer ts.op.Unlock()

	ts.mu.Lock()
	conn := ts.term.Connection
	if conn == nil {
		ts.mu.Unlock()
		err := fmt.Errorf("%w: terminal %q", ErrNotConnected, terminalID)
		span.RecordError(err)
		return nil, err
	}
	connCtx := ts.connCtx
	loc := ts.term.LastLocation
	sub := ts.term.Subscription
	ts.mu.Unlock()

	if req.Type == "" {
		req.Type = model.MessageData
	}
	if req.Priority == "" {
		req.Priority = model.PriorityNormal
	}

	size := payloadSize(req)
	now := s.clock.Now()
	msg := &model.Message{
		ID:         s.ids.NewID("msg"),
		TerminalID: terminalID,
		Type:       req.Type,
		Priority:   req.Priority,
		Payload: model.Payload{
			Content:    req.Content,
			SizeBytes:  size,
			Compressed: req.Compress,
			Encrypted:  req.Encrypt,
			Checksum:   fmt.Sprintf("%08x", crc32.ChecksumIEEE([]byte(req.Content))),
		},
		Routing: model.Routing{
			Source:      loc,
			Destination: req.Destination,
		},
		Status:    model.MessageQueued,
		CreatedAt: now,
		ExpiresAt: now.Add(messageTTL),
	}

	if sub.DataUsedBytes+size > sub.DataAllowanceBytes {
		msg.Status = model.MessageFailed
		msg.Transmission.LastError = ErrQuotaExceeded.Error()
		s.storeMessage(msg)
		s.metrics.MessageStatus(string(model.MessageFailed))
		log.Warn(ctx, "message rejected by quota",
			logging.String("terminal_id", terminalID),
			logging.String("message_id", msg.ID),
			logging.Any("size_bytes", size),
		)
		return msg, fmt.Errorf("%w: terminal %q", ErrQuotaExceeded, terminalID)
	}

	s.storeMessage(msg)
	s.metrics.MessageStatus(string(model.MessageQueued))
	s.transmit(ctx, log, ts, msg, conn, connCtx)
	return msg, nil
}

// GetMessage returns a message by ID, applying lazy expiry: a message
// still queued or transmitting past its deadline is flipped to
// expired on read rather than by a background timer.
func (s *Service) GetMessage(id string) (*model.Message, error) {
	now := s.clock.Now()

	s.msgMu.Lock()
	defer s.msgMu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMessageNotFound, id)
	}
	s.expireLocked(msg, now)
	return msg, nil
}

// MessagesForTerminal returns the terminal's messages in submission
// order, applying lazy expiry.
func (s *Service) MessagesForTerminal(terminalID string) []*model.Message {
	now := s.clock.Now()

	s.msgMu.Lock()
	defer s.msgMu.Unlock()

	ids := s.msgOrder[terminalID]
	out := make([]*model.Message, 0, len(ids))
	for _, id := range ids {
		if msg, ok := s.messages[id]; ok {
			s.expireLocked(msg, now)
			out = append(out, msg)
		}
	}
	return out
}

// ExpireStale applies the 24h expiry to every pending message. The
// daemon runs this from the tick loop; reads apply the same rule
// lazily, so the sweep is an optimisation, not a correctness
// requirement.
func (s *Service) ExpireStale(now time.Time) int {
	s.msgMu.Lock()
	defer s.msgMu.Unlock()

	n := 0
	for _, msg := range s.messages {
		if s.expireLocked(msg, now) {
			n++
		}
	}
	return n
}

// expireLocked flips an overdue pending message to expired. Caller
// holds msgMu.
func (s *Service) expireLocked(msg *model.Message, now time.Time) bool {
	switch msg.Status {
	case model.MessageQueued, model.MessageTransmitting:
	default:
		return false
	}
	if !now.After(msg.ExpiresAt) {
		return false
	}
	msg.Status = model.MessageExpired
	msg.Transmission.LastError = "message expired"
	s.metrics.MessageStatus(string(model.MessageExpired))
	return true
}

// transmit drives the retry loop for one message. Caller holds ts.op,
// which is what gives per-terminal FIFO ordering; ts.mu is never held
// across a clock wait so disconnects can interject.
func (s *Service) transmit(ctx context.Context, log logging.Logger, ts *terminalState, msg *model.Message, conn *model.Connection, connCtx context.Context) {
	terminalID := msg.TerminalID

	for {
		now := s.clock.Now()
		if now.After(msg.ExpiresAt) {
			s.msgMu.Lock()
			s.expireLocked(msg, now)
			s.msgMu.Unlock()
			return
		}

		s.msgMu.Lock()
		msg.Status = model.MessageTransmitting
		msg.Transmission.Attempts++
		if msg.Transmission.FirstAttempt.IsZero() {
			msg.Transmission.FirstAttempt = now
		}
		msg.Transmission.LastAttempt = now
		attempts := msg.Transmission.Attempts
		s.msgMu.Unlock()
		s.metrics.MessageStatus(string(model.MessageTransmitting))

		wallStart := time.Now()
		select {
		case <-s.clock.After(transmissionTime(msg.Payload.SizeBytes, conn.BandwidthKbps, conn.LatencyMs)):
		case <-connCtx.Done():
			s.msgMu.Lock()
			if msg.Status != model.MessageTransmitting {
				s.msgMu.Unlock()
				return
			}
			msg.Status = model.MessageFailed
			msg.Transmission.LastError = ErrTerminalDisconnected.Error()
			s.msgMu.Unlock()
			ts.mu.Lock()
			ts.term.Metrics.Drops++
			ts.mu.Unlock()
			s.metrics.MessageStatus(string(model.MessageFailed))
			s.metrics.ObserveTransmission(time.Since(wallStart).Seconds(), false)
			log.Warn(ctx, "transmission aborted by disconnect",
				logging.String("terminal_id", terminalID),
				logging.String("message_id", msg.ID),
			)
			s.bus.Emit(Event{Type: EventMessageFailed, TerminalID: terminalID, At: s.clock.Now(), Payload: msg})
			return
		}

		if s.rand.Float64() < s.successProb {
			transmittedAt := s.clock.Now()
			s.msgMu.Lock()
			if msg.Status != model.MessageTransmitting {
				// An expiry sweep beat us to a terminal status.
				s.msgMu.Unlock()
				return
			}
			msg.Status = model.MessageTransmitted
			msg.Transmission.TransmittedAt = transmittedAt
			msg.Transmission.LastError = ""
			msg.Routing.ViaSatellite = conn.SatelliteID
			msg.Routing.ViaGroundStation = conn.GroundStationID
			s.msgMu.Unlock()

			ts.mu.Lock()
			ts.term.Metrics.MessagesSent++
			ts.term.Metrics.BytesSent += msg.Payload.SizeBytes
			ts.term.Subscription.DataUsedBytes += msg.Payload.SizeBytes
			updateAvgLatency(&ts.term.Metrics, conn.LatencyMs)
			if ts.term.Connection == conn {
				conn.LastActivity = transmittedAt
			}
			ts.mu.Unlock()

			s.metrics.MessageStatus(string(model.MessageTransmitted))
			s.metrics.ObserveTransmission(time.Since(wallStart).Seconds(), true)
			log.Info(ctx, "message transmitted",
				logging.String("terminal_id", terminalID),
				logging.String("message_id", msg.ID),
				logging.Int("attempts", attempts),
			)
			s.bus.Emit(Event{Type: EventMessageTransmitted, TerminalID: terminalID, At: transmittedAt, Payload: msg})

			go s.confirmDelivery(msg)
			return
		}

		if attempts >= s.maxAttempts {
			s.msgMu.Lock()
			if msg.Status != model.MessageTransmitting {
				s.msgMu.Unlock()
				return
			}
			msg.Status = model.MessageFailed
			msg.Transmission.LastError = ErrMaxRetriesExceeded.Error()
			s.msgMu.Unlock()
			ts.mu.Lock()
			ts.term.Metrics.Drops++
			ts.mu.Unlock()
			s.metrics.MessageStatus(string(model.MessageFailed))
			s.metrics.ObserveTransmission(time.Since(wallStart).Seconds(), false)
			log.Warn(ctx, "message failed after retries",
				logging.String("terminal_id", terminalID),
				logging.String("message_id", msg.ID),
				logging.Int("attempts", attempts),
			)
			s.bus.Emit(Event{Type: EventMessageFailed, TerminalID: terminalID, At: s.clock.Now(), Payload: msg})
			return
		}
		// Retry immediately on the next loop iteration.
	}
}

// confirmDelivery flips a transmitted message to delivered after the
// configured confirmation delay.
func (s *Service) confirmDelivery(msg *model.Message) {
	select {
	case <-s.clock.After(s.deliveryDelay):
	case <-s.rootCtx.Done():
		return
	}

	s.msgMu.Lock()
	delivered := false
	if msg.Status == model.MessageTransmitted {
		msg.Status = model.MessageDelivered
		delivered = true
	}
	s.msgMu.Unlock()

	if delivered {
		s.metrics.MessageStatus(string(model.MessageDelivered))
	}
}

// storeMessage records the message and its place in the terminal's
// submission order.
func (s *Service) storeMessage(msg *model.Message) {
	s.msgMu.Lock()
	defer s.msgMu.Unlock()
	s.messages[msg.ID] = msg
	s.msgOrder[msg.TerminalID] = append(s.msgOrder[msg.TerminalID], msg.ID)
}

// payloadSize estimates the on-air size of the request. Compression
// is modelled as a flat reduction; this mirrors how the payload will
// be framed, not an actual codec.
func payloadSize(req SendRequest) int64 {
	size := int64(len(req.Content))
	if req.Compress {
		size = size * 6 / 10
	}
	if req.Encrypt {
		size += 16 // auth tag overhead
	}
	if size < 1 {
		size = 1
	}
	return size
}

// transmissionTime models time-on-air: payload over bandwidth plus
// one link latency.
func transmissionTime(sizeBytes int64, bandwidthKbps, latencyMs float64) time.Duration {
	if bandwidthKbps <= 0 {
		bandwidthKbps = 2.4 // worst-case narrowband fallback
	}
	seconds := float64(sizeBytes*8)/(bandwidthKbps*1000) + latencyMs/1000
	return time.Duration(seconds * float64(time.Second))
}

// updateAvgLatency keeps an exponentially-weighted latency estimate.
func updateAvgLatency(m *model.TerminalMetrics, sampleMs float64) {
	if m.AvgLatencyMs == 0 {
		m.AvgLatencyMs = sampleMs
		return
	}
	m.AvgLatencyMs = 0.8*m.AvgLatencyMs + 0.2*sampleMs
}
