package comms

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/satlink/internal/logging"
	"github.com/signalsfoundry/satlink/model"
)

// SOSRequest describes a distress alert to raise.
type SOSRequest struct {
	// Type defaults to distress when empty.
	Type     model.SOSType
	Message  string
	Contacts []model.EmergencyContact
	// Location overrides the terminal's last fix when non-nil.
	Location *model.Location
}

// SendSOS raises a distress alert for the terminal. The terminal must
// have the SOS capability; an offline terminal is connected first, and
// a connect failure aborts the alert. Once the alert exists it is
// resilient: a failure to transmit the linked sos message is recorded
// on the timeline but does not fail the alert, and the rescue
// coordination centre is always assigned as the initial responder.
func (s *Service) SendSOS(ctx context.Context, terminalID string, req SOSRequest) (*model.SOSAlert, error) {
	ctx, span := s.tracer.Start(ctx, "comms.SendSOS",
		trace.WithAttributes(attribute.String("terminal_id", terminalID)))
	defer span.End()
	ctx, log := logging.WithRequestLogger(ctx, s.log)

	ts, err := s.terminalState(terminalID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	ts.mu.Lock()
	supportsSOS := ts.term.Capabilities.SOS
	connected := ts.term.Connection != nil
	loc := ts.term.LastLocation
	ts.mu.Unlock()

	if !supportsSOS {
		err := fmt.Errorf("%w: terminal %q", ErrSOSNotSupported, terminalID)
		span.RecordError(err)
		return nil, err
	}

	if !connected {
		ts.op.Lock()
		_, err := s.connectHeld(ctx, log, ts)
		ts.op.Unlock()
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("sos connect: %w", err)
		}
	}

	if req.Type == "" {
		req.Type = model.SOSDistress
	}
	if req.Location != nil {
		loc = *req.Location
	}

	now := s.clock.Now()
	alert := &model.SOSAlert{
		ID:         s.ids.NewID("sos"),
		TerminalID: terminalID,
		Type:       req.Type,
		Status:     model.SOSActive,
		Location:   loc,
		Message:    req.Message,
		Contacts:   req.Contacts,
		CreatedAt:  now,
		Timeline: []model.TimelineEntry{{
			At:       now,
			Event:    "alert_created",
			Detail:   string(req.Type),
			Location: &loc,
		}},
	}

	msg, sendErr := s.SendMessage(ctx, terminalID, SendRequest{
		Type:        model.MessageSOS,
		Destination: RescueCoordinationEndpoint,
		Content:     sosPayload(alert),
		Priority:    model.PrioritySOS,
	})
	if msg != nil {
		alert.MessageID = msg.ID
	}
	failDetail := ""
	if sendErr != nil {
		failDetail = sendErr.Error()
	} else if msg != nil {
		// A send that exhausts its retries returns the failed message
		// without an error, so the message status is authoritative.
		s.msgMu.RLock()
		if msg.Status == model.MessageFailed {
			failDetail = msg.Transmission.LastError
		}
		s.msgMu.RUnlock()
	}
	if failDetail != "" {
		// The alert stands even when the uplink fails; responders are
		// assigned regardless and retransmission is an operator action.
		alert.Timeline = append(alert.Timeline, model.TimelineEntry{
			At:     s.clock.Now(),
			Event:  "transmission_failed",
			Detail: failDetail,
		})
		log.Error(ctx, "sos message transmission failed",
			logging.String("terminal_id", terminalID),
			logging.String("alert_id", alert.ID),
			logging.String("error", failDetail),
		)
	}

	alert.Responders = append(alert.Responders, model.Responder{
		ID:         s.ids.NewID("resp"),
		Name:       "Rescue Coordination Center",
		Role:       "coordination",
		Status:     model.ResponderNotified,
		AssignedAt: s.clock.Now(),
	})

	s.alertMu.Lock()
	s.alerts[alert.ID] = alert
	s.alertMu.Unlock()

	s.metrics.SetActiveAlerts(s.activeAlertCount())
	log.Info(ctx, "sos alert raised",
		logging.String("terminal_id", terminalID),
		logging.String("alert_id", alert.ID),
		logging.String("type", string(alert.Type)),
	)
	s.bus.Emit(Event{Type: EventSOSAlert, TerminalID: terminalID, At: alert.CreatedAt, Payload: alert})

	return alert, nil
}

// GetSOSAlert returns an alert by ID.
func (s *Service) GetSOSAlert(id string) (*model.SOSAlert, error) {
	s.alertMu.RLock()
	defer s.alertMu.RUnlock()

	alert, ok := s.alerts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAlertNotFound, id)
	}
	return alert, nil
}

// AlertsForTerminal returns the terminal's alerts, newest last.
func (s *Service) AlertsForTerminal(terminalID string) []*model.SOSAlert {
	s.alertMu.RLock()
	defer s.alertMu.RUnlock()

	var out []*model.SOSAlert
	for _, alert := range s.alerts {
		if alert.TerminalID == terminalID {
			out = append(out, alert)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// AcknowledgeSOS marks an active alert as seen by the coordination
// centre.
func (s *Service) AcknowledgeSOS(ctx context.Context, id string) error {
	return s.transitionSOS(ctx, id, model.SOSAcknowledged, "alert_acknowledged",
		model.SOSActive)
}

// MarkSOSResponding records that responders are en route.
func (s *Service) MarkSOSResponding(ctx context.Context, id string) error {
	err := s.transitionSOS(ctx, id, model.SOSResponding, "responders_dispatched",
		model.SOSActive, model.SOSAcknowledged)
	if err != nil {
		return err
	}

	s.alertMu.Lock()
	if alert, ok := s.alerts[id]; ok {
		for i := range alert.Responders {
			if alert.Responders[i].Status == model.ResponderNotified {
				alert.Responders[i].Status = model.ResponderEnRoute
			}
		}
	}
	s.alertMu.Unlock()
	return nil
}

// ResolveSOS closes an alert after the emergency is handled.
func (s *Service) ResolveSOS(ctx context.Context, id string) error {
	err := s.transitionSOS(ctx, id, model.SOSResolved, "alert_resolved",
		model.SOSActive, model.SOSAcknowledged, model.SOSResponding)
	if err != nil {
		return err
	}
	s.closeResponders(id)
	s.metrics.SetActiveAlerts(s.activeAlertCount())
	return nil
}

// CancelSOS withdraws an alert, typically a false alarm. Terminal
// alerts cannot be cancelled. The reason goes on the timeline; the
// distress message already sent is not retracted.
func (s *Service) CancelSOS(ctx context.Context, id, reason string) error {
	err := s.transitionSOS(ctx, id, model.SOSCancelled, "alert_cancelled",
		model.SOSActive, model.SOSAcknowledged, model.SOSResponding)
	if err != nil {
		return err
	}

	if reason != "" {
		s.alertMu.Lock()
		if alert, ok := s.alerts[id]; ok && len(alert.Timeline) > 0 {
			alert.Timeline[len(alert.Timeline)-1].Detail = reason
		}
		s.alertMu.Unlock()
	}
	s.closeResponders(id)
	s.metrics.SetActiveAlerts(s.activeAlertCount())

	s.alertMu.RLock()
	alert := s.alerts[id]
	s.alertMu.RUnlock()
	s.bus.Emit(Event{Type: EventSOSCancelled, TerminalID: alert.TerminalID, At: s.clock.Now(), Payload: alert})
	return nil
}

// UpdateSOSPosition appends a fresh position fix to an open alert's
// timeline so responders track a moving casualty.
func (s *Service) UpdateSOSPosition(ctx context.Context, id string, loc model.Location) error {
	s.alertMu.Lock()
	defer s.alertMu.Unlock()

	alert, ok := s.alerts[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrAlertNotFound, id)
	}
	if alert.TerminalState() {
		return fmt.Errorf("%w: alert %q is %s", ErrInvalidTransition, id, alert.Status)
	}

	if loc.Timestamp.IsZero() {
		loc.Timestamp = s.clock.Now()
	}
	alert.Location = loc
	alert.Timeline = append(alert.Timeline, model.TimelineEntry{
		At:       s.clock.Now(),
		Event:    "position_update",
		Location: &loc,
	})
	return nil
}

// transitionSOS performs one guarded state-machine move and appends
// the timeline entry for it.
func (s *Service) transitionSOS(ctx context.Context, id string, to model.SOSStatus, event string, from ...model.SOSStatus) error {
	ctx, log := logging.WithRequestLogger(ctx, s.log)

	s.alertMu.Lock()
	alert, ok := s.alerts[id]
	if !ok {
		s.alertMu.Unlock()
		return fmt.Errorf("%w: %q", ErrAlertNotFound, id)
	}

	allowed := false
	for _, f := range from {
		if alert.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		status := alert.Status
		s.alertMu.Unlock()
		return fmt.Errorf("%w: sos %s -> %s", ErrInvalidTransition, status, to)
	}

	now := s.clock.Now()
	alert.Status = to
	if to == model.SOSResolved || to == model.SOSCancelled {
		alert.ResolvedAt = now
	}
	alert.Timeline = append(alert.Timeline, model.TimelineEntry{At: now, Event: event})
	terminalID := alert.TerminalID
	s.alertMu.Unlock()

	log.Info(ctx, "sos alert transition",
		logging.String("alert_id", id),
		logging.String("terminal_id", terminalID),
		logging.String("status", string(to)),
	)
	return nil
}

// closeResponders marks every responder completed when the alert
// reaches a terminal state.
func (s *Service) closeResponders(id string) {
	s.alertMu.Lock()
	defer s.alertMu.Unlock()

	alert, ok := s.alerts[id]
	if !ok {
		return
	}
	for i := range alert.Responders {
		alert.Responders[i].Status = model.ResponderCompleted
	}
}

// sosPayload renders the distress body carried over the link.
func sosPayload(alert *model.SOSAlert) string {
	return fmt.Sprintf("SOS %s lat=%.5f lon=%.5f acc=%.0fm: %s",
		alert.Type,
		alert.Location.Latitude,
		alert.Location.Longitude,
		alert.Location.AccuracyM,
		alert.Message,
	)
}
