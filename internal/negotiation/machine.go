// Package negotiation decides which priority a submitted ticket carries:
// the classification service's suggestion or the user's override.
package negotiation

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/interfix/helpdesk/internal/domain"
)

// State is a node of the negotiation.
type State string

const (
	StatePending   State = "PENDING"
	StateSuggested State = "SUGGESTED"
	StateAccepted  State = "ACCEPTED"
	StateContested State = "CONTESTED"
	StateFinalized State = "FINALIZED"
)

// Event names the trigger of a transition.
type Event string

const (
	EventSuggest Event = "suggest"
	EventAccept  Event = "accept"
	EventContest Event = "contest"
)

var (
	// ErrIncompleteContestation rejects an override without priority or justification.
	ErrIncompleteContestation = errors.New("contestation requires a priority and a justification")
	// ErrNotFinalized is returned when an outcome is requested too early.
	ErrNotFinalized = errors.New("negotiation not finalized")
)

// TransitionError reports an event fired from a state that does not accept it.
type TransitionError struct {
	From  State
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s from %s", e.Event, e.From)
}

// Outcome is the locked priority/justification pair used at commit time.
type Outcome struct {
	Priority      domain.TicketPriority
	Justification string
	Contested     bool
	Degraded      bool
}

// Machine tracks one session's negotiation. It is not safe for concurrent use.
type Machine struct {
	state      State
	suggestion *domain.AIResponse
	override   *domain.Contestation
	outcome    *Outcome
	history    []State
}

// New starts a machine in Pending.
func New() *Machine {
	return &Machine{state: StatePending, history: []State{StatePending}}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// History lists every state visited, oldest first.
func (m *Machine) History() []State {
	return append([]State(nil), m.history...)
}

// Suggestion returns the AI suggestion, if any.
func (m *Machine) Suggestion() *domain.AIResponse { return m.suggestion }

// Override returns the user's contestation, if any.
func (m *Machine) Override() *domain.Contestation { return m.override }

// Resolution reports how a finalized negotiation was settled: Accepted or Contested.
func (m *Machine) Resolution() State {
	if m.outcome == nil {
		return ""
	}
	if m.outcome.Contested {
		return StateContested
	}
	return StateAccepted
}

// Suggest records a suggestion, degraded or not. A newer suggestion replaces an older one
// while the user has not decided yet.
func (m *Machine) Suggest(ai domain.AIResponse) error {
	if m.state != StatePending && m.state != StateSuggested {
		return &TransitionError{From: m.state, Event: EventSuggest}
	}
	if !ai.Priority.Valid() {
		return fmt.Errorf("suggestion has invalid priority %q", ai.Priority)
	}
	ai.Accepted = false
	ai.Contested = false
	m.suggestion = &ai
	m.override = nil
	m.enter(StateSuggested)
	return nil
}

// Accept confirms the suggestion and locks it.
func (m *Machine) Accept() (Outcome, error) {
	if m.state != StateSuggested {
		return Outcome{}, &TransitionError{From: m.state, Event: EventAccept}
	}
	m.suggestion.Accepted = true
	m.enter(StateAccepted)
	m.finalize(Outcome{
		Priority:      m.suggestion.Priority,
		Justification: m.suggestion.Justification,
		Degraded:      m.suggestion.Degraded,
	})
	return *m.outcome, nil
}

// Contest overrides the suggestion with the user's priority and locks it.
func (m *Machine) Contest(priority domain.TicketPriority, justification string) (Outcome, error) {
	if m.state != StateSuggested {
		return Outcome{}, &TransitionError{From: m.state, Event: EventContest}
	}
	justification = strings.TrimSpace(justification)
	if !priority.Valid() || justification == "" {
		return Outcome{}, ErrIncompleteContestation
	}
	m.suggestion.Contested = true
	m.override = &domain.Contestation{UserPriority: priority, Justification: justification}
	m.enter(StateContested)
	m.finalize(Outcome{
		Priority:      priority,
		Justification: justification,
		Contested:     true,
		Degraded:      m.suggestion.Degraded,
	})
	return *m.outcome, nil
}

// Outcome returns the locked pair once the machine is Finalized.
func (m *Machine) Outcome() (Outcome, error) {
	if m.state != StateFinalized || m.outcome == nil {
		return Outcome{}, ErrNotFinalized
	}
	return *m.outcome, nil
}

func (m *Machine) enter(s State) {
	m.state = s
	m.history = append(m.history, s)
}

func (m *Machine) finalize(o Outcome) {
	m.outcome = &o
	m.enter(StateFinalized)
}

// Restore rebuilds the machine from a saved draft. Only a contestation that the
// current suggestion is flagged with counts; any other contestation payload is stale.
func Restore(d domain.Draft, logger *zap.Logger) *Machine {
	m := New()
	if d.AIResponse == nil {
		if d.Contestation != nil {
			logger.Warn("contestation saved without a suggestion; ignoring")
		}
		return m
	}
	ai := *d.AIResponse
	accepted, contested := ai.Accepted, ai.Contested
	if err := m.Suggest(ai); err != nil {
		logger.Warn("saved suggestion is unusable; awaiting a new analysis", zap.Error(err))
		return New()
	}

	if !contested {
		if d.Contestation != nil {
			logger.Warn("stale contestation found for an uncontested suggestion; ignoring",
				zap.Time("contestation_saved_at", d.Contestation.SavedAt),
				zap.Time("suggestion_received_at", ai.ReceivedAt))
		}
		if accepted {
			_, _ = m.Accept()
		}
		return m
	}
	if d.Contestation == nil {
		logger.Warn("suggestion flagged contested but no contestation saved; awaiting a new decision")
		return m
	}
	if !ai.ReceivedAt.IsZero() && d.Contestation.SavedAt.Before(ai.ReceivedAt) {
		logger.Warn("contestation predates the current suggestion; ignoring",
			zap.Time("contestation_saved_at", d.Contestation.SavedAt),
			zap.Time("suggestion_received_at", ai.ReceivedAt))
		return m
	}
	if _, err := m.Contest(d.Contestation.UserPriority, d.Contestation.Justification); err != nil {
		logger.Warn("saved contestation is incomplete; awaiting a new decision", zap.Error(err))
	}
	return m
}
