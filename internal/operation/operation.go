// Package operation tracks a user action through its named steps and reports
// every transition as an Event.
package operation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/apex/log"
)

var (
	// ErrInvalidTransition is returned when a step transition does not match
	// the current state. It always indicates a bug in the caller.
	ErrInvalidTransition = errors.New("invalid operation transition")
)

// State represents the current state of an Operation.
type State int

const (
	// StateNotStarted indicates Start has not been called yet.
	StateNotStarted State = iota
	// StateInStep indicates a step is running.
	StateInStep
	// StateFailed indicates a step failed. It is terminal.
	StateFailed
	// StateCompleted indicates the last step finished. It is terminal.
	StateCompleted
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateInStep:
		return "InStep"
	case StateFailed:
		return "Failed"
	case StateCompleted:
		return "Completed"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// Kind is the type of an Event.
type Kind string

const (
	KindStarted   Kind = "started"
	KindAdvanced  Kind = "advanced"
	KindFailed    Kind = "failed"
	KindCompleted Kind = "completed"
)

// Event is one step transition of an operation.
type Event struct {
	Operation string `json:"operationName"`
	Step      string `json:"step"`
	From      string `json:"from,omitempty"`
	Kind      Kind   `json:"kind"`
	Message   string `json:"message,omitempty"`
}

// StepError is returned when a step fails.
type StepError struct {
	Operation string
	Step      string
	Err       error
}

func (e *StepError) Error() string {
	return e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Operation is a linear sequence of steps named by the caller as it goes.
type Operation struct {
	mu sync.Mutex
	// sendMu is taken before mu is released so sends keep transition order
	// without holding mu while the receiver is slow.
	sendMu sync.Mutex
	name   string
	state  State
	step   string
	events chan<- Event
}

// New creates an operation that sends its events to events. A nil channel
// discards them. Sends happen on the calling goroutine, so the receiver sees
// events in transition order.
func New(name string, events chan<- Event) *Operation {
	return &Operation{
		name:   name,
		events: events,
	}
}

func (o *Operation) Name() string {
	return o.name
}

// State returns the current state and step.
func (o *Operation) State() (State, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state, o.step
}

func (o *Operation) invalid(kind, step string) error {
	return fmt.Errorf("%w: %s %s at %q while %s at %q", ErrInvalidTransition, o.name, kind, step, o.state, o.step)
}

// transition moves to next when the operation is in state want (and at
// step, for StateInStep) and emits ev.
func (o *Operation) transition(want State, step string, next State, ev Event) error {
	o.mu.Lock()
	if o.state != want || want == StateInStep && o.step != step {
		err := o.invalid(string(ev.Kind), step)
		o.mu.Unlock()
		return err
	}
	o.state = next
	o.step = ev.Step
	o.sendMu.Lock()
	o.mu.Unlock()
	defer o.sendMu.Unlock()

	ev.Operation = o.name
	log.WithFields(log.Fields{
		"operation": o.name,
		"step":      ev.Step,
		"kind":      ev.Kind,
	}).Debug("operation event")
	if o.events != nil {
		o.events <- ev
	}
	return nil
}

// Start begins the first step.
func (o *Operation) Start(step string) error {
	return o.transition(StateNotStarted, step, StateInStep, Event{Step: step, Kind: KindStarted})
}

// Advance moves from the current step to the next one.
func (o *Operation) Advance(from, to string) error {
	return o.transition(StateInStep, from, StateInStep, Event{Step: to, From: from, Kind: KindAdvanced})
}

// Complete finishes the operation at step.
func (o *Operation) Complete(step string) error {
	return o.transition(StateInStep, step, StateCompleted, Event{Step: step, Kind: KindCompleted})
}

// Fail fails step with msg and returns the resulting *StepError.
func (o *Operation) Fail(step, msg string) error {
	return o.fail(step, errors.New(msg))
}

func (o *Operation) fail(step string, cause error) error {
	ev := Event{Step: step, Kind: KindFailed, Message: cause.Error()}
	if err := o.transition(StateInStep, step, StateFailed, ev); err != nil {
		return err
	}
	return &StepError{Operation: o.name, Step: step, Err: cause}
}

// Check fails step when err is not nil.
func (o *Operation) Check(step string, err error) error {
	if err == nil {
		return nil
	}
	return o.fail(step, err)
}

// FailIfErr passes v through when err is nil and fails step otherwise.
func FailIfErr[T any](o *Operation, step string, v T, err error) (T, error) {
	if err := o.Check(step, err); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
