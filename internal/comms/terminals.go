package comms

import (
	"context"
	"fmt"
	"time"

	"github.com/signalsfoundry/satlink/internal/logging"
	"github.com/signalsfoundry/satlink/model"
)

// TerminalSpec is the registration request for a new terminal.
type TerminalSpec struct {
	Name         string
	Type         model.TerminalType
	Network      model.Network
	Location     model.Location
	Capabilities model.TerminalCapabilities

	Plan               string
	DataAllowanceBytes int64
	PlanValidFor       time.Duration
}

// RegisterTerminal creates a terminal in the disconnected state with
// zeroed metrics and quota counters.
func (s *Service) RegisterTerminal(ctx context.Context, spec TerminalSpec) (*model.Terminal, error) {
	ctx, log := logging.WithRequestLogger(ctx, s.log)

	if spec.Network == "" {
		return nil, fmt.Errorf("%w: network is required", ErrTerminalBadInput)
	}
	if spec.Type == "" {
		spec.Type = model.TerminalPortable
	}
	validFor := spec.PlanValidFor
	if validFor <= 0 {
		validFor = 365 * 24 * time.Hour
	}

	now := s.clock.Now()
	loc := spec.Location
	if loc.Timestamp.IsZero() {
		loc.Timestamp = now
	}

	term := &model.Terminal{
		ID:           s.ids.NewID("term"),
		Name:         spec.Name,
		Type:         spec.Type,
		Network:      spec.Network,
		LastLocation: loc,
		Capabilities: spec.Capabilities,
		Subscription: model.Subscription{
			Plan:               spec.Plan,
			DataAllowanceBytes: spec.DataAllowanceBytes,
			ValidUntil:         now.Add(validFor),
		},
		Status:       model.TerminalDisconnected,
		RegisteredAt: now,
	}

	s.mu.Lock()
	s.terminals[term.ID] = &terminalState{term: term}
	s.mu.Unlock()

	log.Info(ctx, "terminal registered",
		logging.String("terminal_id", term.ID),
		logging.String("network", string(term.Network)),
		logging.String("type", string(term.Type)),
	)
	return term, nil
}

// GetTerminal returns a terminal by ID.
func (s *Service) GetTerminal(id string) (*model.Terminal, error) {
	ts, err := s.terminalState(id)
	if err != nil {
		return nil, err
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.term, nil
}

// UpdateTerminalLocation stores a fresh position fix. If the terminal
// currently holds a connection, the new position triggers a handoff
// evaluation.
func (s *Service) UpdateTerminalLocation(ctx context.Context, id string, loc model.Location) error {
	ts, err := s.terminalState(id)
	if err != nil {
		return err
	}

	if loc.Timestamp.IsZero() {
		loc.Timestamp = s.clock.Now()
	}

	ts.mu.Lock()
	ts.term.LastLocation = loc
	connected := ts.term.Connection != nil
	ts.mu.Unlock()

	if connected {
		s.evaluateHandoff(ctx, ts)
	}
	return nil
}

// terminalState resolves the internal record for a terminal ID.
func (s *Service) terminalState(id string) (*terminalState, error) {
	s.mu.RLock()
	ts, ok := s.terminals[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTerminalNotFound, id)
	}
	return ts, nil
}
