// Package audit persists append-only audit trails for runs, executor
// invocations and arbitration decisions.
//
// Audit writes are strictly best-effort: a failed write is logged and
// swallowed, and must never change the outcome of the operation being
// audited.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orchd/internal/store"
)

// Kind names an audit trail.
type Kind string

const (
	KindRun        Kind = "run"
	KindInvocation Kind = "invocation"
	KindDecision   Kind = "decision"
)

// Record is one audit entry.
type Record struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"kind"`
	Subject   string         `json:"subject"`
	Status    string         `json:"status"`
	Summary   string         `json:"summary,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Trail writes and reads audit records.
type Trail struct {
	store  store.Store
	logger *zap.Logger
}

// NewTrail creates an audit trail over the given store.
func NewTrail(st store.Store, logger *zap.Logger) (*Trail, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required for audit trail")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for audit trail")
	}
	return &Trail{store: st, logger: logger.Named("audit")}, nil
}

// Record persists rec, assigning an ID and timestamp when absent.
// Failures are logged and swallowed.
func (t *Trail) Record(ctx context.Context, rec Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.logger.Warn("failed to encode audit record",
			zap.String("kind", string(rec.Kind)),
			zap.Error(err))
		return
	}
	if err := t.store.Append(ctx, trailKey(rec.Kind), data); err != nil {
		t.logger.Warn("failed to persist audit record",
			zap.String("kind", string(rec.Kind)),
			zap.String("subject", rec.Subject),
			zap.Error(err))
	}
}

// List returns all records of a kind in append order. Entries that no
// longer decode are skipped.
func (t *Trail) List(ctx context.Context, kind Kind) ([]Record, error) {
	entries, err := t.store.Entries(ctx, trailKey(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s audit records: %w", kind, err)
	}
	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		var rec Record
		if err := json.Unmarshal(e, &rec); err != nil {
			t.logger.Warn("skipping undecodable audit record", zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func trailKey(kind Kind) string {
	return "audit/" + string(kind)
}

// Truncate shortens s for inclusion in audit detail payloads.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
