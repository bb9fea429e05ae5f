// Package task defines the immutable Task/Plan/Step value model.
//
// Tasks describe one unit of user-requested work. Plans are ordered lists
// of Steps derived from a Task. Values are validated at construction and
// never mutated afterwards; Details is an opaque payload consumed by
// executors.
package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrValidation indicates malformed Task or Plan construction.
// It is always local to the caller and never retried.
var ErrValidation = errors.New("validation failed")

// Task is the canonical descriptor of one unit of work.
type Task struct {
	ID        string            `json:"id"`
	Category  string            `json:"category"`
	Goal      string            `json:"goal"`
	Details   map[string]any    `json:"details,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Source    string            `json:"source,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Option customizes task construction.
type Option func(*Task)

// WithID overrides the generated task ID.
func WithID(id string) Option {
	return func(t *Task) { t.ID = id }
}

// WithDetails attaches the opaque detail payload.
func WithDetails(details map[string]any) Option {
	return func(t *Task) { t.Details = details }
}

// WithMetadata attaches task metadata.
func WithMetadata(md map[string]string) Option {
	return func(t *Task) { t.Metadata = md }
}

// WithSource records where the task originated (cli, http, test).
func WithSource(source string) Option {
	return func(t *Task) { t.Source = source }
}

// New constructs a validated Task. Category and Goal are required;
// the ID defaults to a fresh UUID.
func New(category, goal string, opts ...Option) (*Task, error) {
	t := &Task{
		ID:        uuid.NewString(),
		Category:  category,
		Goal:      goal,
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.Category == "" {
		return nil, fmt.Errorf("%w: task category is required", ErrValidation)
	}
	if t.Goal == "" {
		return nil, fmt.Errorf("%w: task goal is required", ErrValidation)
	}
	if t.ID == "" {
		return nil, fmt.Errorf("%w: task id cannot be empty", ErrValidation)
	}
	return t, nil
}
