// Package tracker maintains the lifecycle state of a run and publishes
// transition events to interested listeners.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidTransition is returned when a lifecycle move is not
// allowed from the current state.
var ErrInvalidTransition = errors.New("invalid state transition")

// State is the lifecycle state of a run.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

var allowedTransitions = map[State][]State{
	StateIdle:    {StateRunning},
	StateRunning: {StatePaused, StateCompleted, StateFailed},
	StatePaused:  {StateRunning, StateFailed},
}

// Transition is one recorded lifecycle move.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	Note string    `json:"note,omitempty"`
	At   time.Time `json:"at"`
}

// Event is what gets published on every transition and step boundary.
type Event struct {
	RunID  string    `json:"run_id"`
	Type   string    `json:"type"`
	State  State     `json:"state"`
	StepID string    `json:"step_id,omitempty"`
	Note   string    `json:"note,omitempty"`
	At     time.Time `json:"at"`
}

// Publisher delivers run events to an external channel. Delivery is
// best effort; the tracker logs and drops failures.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Tracker tracks a single run.
type Tracker struct {
	runID     string
	publisher Publisher
	logger    *zap.Logger

	mu      sync.Mutex
	state   State
	history []Transition
}

// New creates a tracker in the idle state. The publisher may be nil to
// keep tracking local.
func New(runID string, publisher Publisher, logger *zap.Logger) (*Tracker, error) {
	if runID == "" {
		return nil, fmt.Errorf("run ID is required for tracker")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for tracker")
	}
	return &Tracker{
		runID:     runID,
		publisher: publisher,
		logger:    logger.Named("tracker").With(zap.String("run_id", runID)),
		state:     StateIdle,
	}, nil
}

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// History returns a copy of the recorded transitions in order.
func (t *Tracker) History() []Transition {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Transition, len(t.history))
	copy(out, t.history)
	return out
}

// Start moves the run from idle to running.
func (t *Tracker) Start(ctx context.Context) error {
	return t.transition(ctx, StateRunning, "run started")
}

// Pause suspends a running run.
func (t *Tracker) Pause(ctx context.Context) error {
	return t.transition(ctx, StatePaused, "run paused")
}

// Resume continues a paused run.
func (t *Tracker) Resume(ctx context.Context) error {
	return t.transition(ctx, StateRunning, "run resumed")
}

// Complete marks the run successful. Terminal.
func (t *Tracker) Complete(ctx context.Context) error {
	return t.transition(ctx, StateCompleted, "run completed")
}

// Fail marks the run failed. Terminal.
func (t *Tracker) Fail(ctx context.Context, note string) error {
	return t.transition(ctx, StateFailed, note)
}

func (t *Tracker) transition(ctx context.Context, to State, note string) error {
	t.mu.Lock()
	from := t.state
	if !transitionAllowed(from, to) {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	now := time.Now().UTC()
	t.state = to
	t.history = append(t.history, Transition{From: from, To: to, Note: note, At: now})
	t.mu.Unlock()

	t.logger.Info("run state changed",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	t.publish(ctx, Event{RunID: t.runID, Type: "transition", State: to, Note: note, At: now})
	return nil
}

// StepBegin announces that a step started executing.
func (t *Tracker) StepBegin(ctx context.Context, stepID, title string) {
	t.publish(ctx, Event{
		RunID:  t.runID,
		Type:   "step_begin",
		State:  t.State(),
		StepID: stepID,
		Note:   title,
		At:     time.Now().UTC(),
	})
}

// StepEnd announces a step outcome.
func (t *Tracker) StepEnd(ctx context.Context, stepID, status string) {
	t.publish(ctx, Event{
		RunID:  t.runID,
		Type:   "step_end",
		State:  t.State(),
		StepID: stepID,
		Note:   status,
		At:     time.Now().UTC(),
	})
}

func (t *Tracker) publish(ctx context.Context, ev Event) {
	if t.publisher == nil {
		return
	}
	if err := t.publisher.Publish(ctx, ev); err != nil {
		t.logger.Warn("failed to publish run event",
			zap.String("type", ev.Type), zap.Error(err))
	}
}

func transitionAllowed(from, to State) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
