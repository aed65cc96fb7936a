// Package wizard implements a generic multi-step guided input collector.
// A session walks an ordered step list, validating each input before
// advancing, then waits in a review state for explicit confirmation before
// the caller may act on the collected fields.
package wizard

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Step is one prompt in a wizard definition. A step with Options is a
// multiple-choice step whose input is a 1-based index into the option list;
// otherwise Kind names the validator applied to the raw input.
type Step struct {
	Field    string
	Prompt   string
	Kind     Kind
	Options  []string
	Default  string
	Required bool
}

// IsChoice reports whether the step is multiple-choice.
func (s Step) IsChoice() bool {
	return len(s.Options) > 0
}

// Definition is an ordered list of steps under a wizard name.
type Definition struct {
	Name  string
	Steps []Step
}

// State is the session lifecycle position.
type State string

const (
	StateCreated   State = "created"
	StateRunning   State = "running"
	StateReviewing State = "reviewing"
	StateConfirmed State = "confirmed"
	StateCancelled State = "cancelled"
)

// ErrInvalidState is returned when an operation is called outside the state
// it is legal in.
var ErrInvalidState = errors.New("invalid wizard state")

// Field is one collected name/value pair in step order.
type Field struct {
	Name  string
	Value string
}

// Session collects inputs for one pass through a definition. It is mutated by
// each accepted input and consumed read-only after confirmation. No task
// execution may happen before the session reaches StateConfirmed.
type Session struct {
	ID     string
	def    Definition
	index  int
	order  []string
	values map[string]string
	state  State
}

// NewSession creates a session in StateCreated.
func NewSession(def Definition) *Session {
	return &Session{
		ID:     uuid.NewString(),
		def:    def,
		values: make(map[string]string),
		state:  StateCreated,
	}
}

// Start moves the session to the first step with an empty field set.
func (s *Session) Start() error {
	if s.state != StateCreated {
		return fmt.Errorf("start in %s: %w", s.state, ErrInvalidState)
	}
	s.index = 0
	s.order = nil
	s.values = make(map[string]string)
	s.state = StateRunning
	s.advancePastEnd()
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Name returns the definition name.
func (s *Session) Name() string {
	return s.def.Name
}

// StepIndex returns the current step position.
func (s *Session) StepIndex() int {
	return s.index
}

// Current returns the step awaiting input. ok is false once every step has
// been answered and the session is reviewing.
func (s *Session) Current() (Step, bool) {
	if s.state != StateRunning || s.index >= len(s.def.Steps) {
		return Step{}, false
	}
	return s.def.Steps[s.index], true
}

// Submit feeds raw input to the current step. A *ValidationError leaves the
// session at the same step for re-prompting; any other error means Submit was
// called outside StateRunning.
func (s *Session) Submit(raw string) error {
	if s.state != StateRunning {
		return fmt.Errorf("submit in %s: %w", s.state, ErrInvalidState)
	}
	step := s.def.Steps[s.index]

	if raw == "" {
		if step.Default != "" {
			raw = step.Default
		} else if step.Required {
			return &ValidationError{
				Field:  step.Field,
				Reason: ReasonRequired,
				Detail: "a value is required",
			}
		} else {
			// Optional step with no default: nothing to record.
			s.index++
			s.advancePastEnd()
			return nil
		}
	}

	value, err := s.resolve(step, raw)
	if err != nil {
		return err
	}
	if _, seen := s.values[step.Field]; !seen {
		s.order = append(s.order, step.Field)
	}
	s.values[step.Field] = value
	s.index++
	s.advancePastEnd()
	return nil
}

// Confirm resolves the review: accept finalizes the collected fields for the
// caller; decline discards them and cancels the session.
func (s *Session) Confirm(accept bool) error {
	if s.state != StateReviewing {
		return fmt.Errorf("confirm in %s: %w", s.state, ErrInvalidState)
	}
	if accept {
		s.state = StateConfirmed
		return nil
	}
	s.discard()
	return nil
}

// Cancel discards the session. Legal at any point before confirmation; it has
// no effect outside the session itself.
func (s *Session) Cancel() {
	if s.state == StateConfirmed {
		return
	}
	s.discard()
}

// Fields returns the collected values in step order.
func (s *Session) Fields() []Field {
	out := make([]Field, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, Field{Name: name, Value: s.values[name]})
	}
	return out
}

// FieldMap returns the collected values keyed by field name.
func (s *Session) FieldMap() map[string]string {
	out := make(map[string]string, len(s.values))
	for name, value := range s.values {
		out[name] = value
	}
	return out
}

func (s *Session) resolve(step Step, raw string) (string, error) {
	if step.IsChoice() {
		index, err := strconv.Atoi(raw)
		if err != nil {
			return "", &ValidationError{
				Field:  step.Field,
				Reason: ReasonFormat,
				Detail: "expected an option number",
			}
		}
		if index < 1 || index > len(step.Options) {
			return "", &ValidationError{
				Field:  step.Field,
				Reason: ReasonOutOfRange,
				Detail: fmt.Sprintf("choose between 1 and %d", len(step.Options)),
			}
		}
		return step.Options[index-1], nil
	}
	if err := Check(step.Kind, raw); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.Field = step.Field
		}
		return "", err
	}
	return raw, nil
}

func (s *Session) advancePastEnd() {
	if s.index >= len(s.def.Steps) {
		s.state = StateReviewing
	}
}

func (s *Session) discard() {
	s.values = make(map[string]string)
	s.order = nil
	s.state = StateCancelled
}
