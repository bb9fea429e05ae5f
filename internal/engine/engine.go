// Package engine instantiates executors and invokes them, recording an
// audit entry for every invocation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orchd/internal/audit"
	"github.com/fyrsmithlabs/orchd/internal/oracle"
	"github.com/fyrsmithlabs/orchd/internal/registry"
)

const instrumentationName = "github.com/fyrsmithlabs/orchd/internal/engine"

const outputAuditLimit = 500

// ErrExecutorFault marks a fault thrown during executor invocation.
// The run controller treats these as retryable within the step budget.
var ErrExecutorFault = errors.New("executor fault")

// Engine resolves, caches and invokes executors.
type Engine struct {
	registry *registry.Registry
	trail    *audit.Trail
	oracle   oracle.Oracle
	logger   *zap.Logger

	// Instances live for the process; there is no invalidation.
	// Executors must tolerate concurrent invocation.
	mu    sync.Mutex
	cache map[string]registry.Executor
}

// New creates an engine. The oracle is used for advisory auto-heal
// analysis only; executors get their own channel via the registry.
func New(reg *registry.Registry, trail *audit.Trail, o oracle.Oracle, logger *zap.Logger) (*Engine, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required for engine")
	}
	if trail == nil {
		return nil, fmt.Errorf("audit trail is required for engine")
	}
	if o == nil {
		return nil, fmt.Errorf("oracle is required for engine")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for engine")
	}
	return &Engine{
		registry: reg,
		trail:    trail,
		oracle:   o,
		logger:   logger.Named("engine"),
		cache:    make(map[string]registry.Executor),
	}, nil
}

// Invoke runs the named executor against in. Unregistered names trigger
// synthesis; synthesis failures surface as executor faults.
func (e *Engine) Invoke(ctx context.Context, executorName string, in registry.Input) (registry.Output, error) {
	tracer := otel.Tracer(instrumentationName)
	ctx, span := tracer.Start(ctx, "engine.invoke")
	span.SetAttributes(attribute.String("executor", executorName))
	defer span.End()

	exec, err := e.executor(ctx, executorName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return registry.Output{}, err
	}

	started := time.Now()
	out, runErr := exec.Run(ctx, in)
	elapsed := time.Since(started)

	e.recordInvocation(ctx, executorName, in, out, runErr, elapsed)

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		e.adviseHeal(ctx, executorName, runErr)
		return registry.Output{}, errors.Join(ErrExecutorFault, runErr)
	}
	return out, nil
}

// executor returns a cached instance or resolves, synthesizing when the
// name is unknown.
func (e *Engine) executor(ctx context.Context, name string) (registry.Executor, error) {
	locator, err := e.registry.Resolve(ctx, name)
	if errors.Is(err, registry.ErrNotRegistered) {
		locator, err = e.registry.Synthesize(ctx, name)
	}
	if err != nil {
		return nil, errors.Join(ErrExecutorFault, err)
	}

	cacheKey := name + "\x00" + locator
	e.mu.Lock()
	defer e.mu.Unlock()
	if exec, ok := e.cache[cacheKey]; ok {
		return exec, nil
	}
	exec, err := e.registry.Load(ctx, name, locator)
	if err != nil {
		return nil, errors.Join(ErrExecutorFault, err)
	}
	e.cache[cacheKey] = exec
	return exec, nil
}

func (e *Engine) recordInvocation(ctx context.Context, name string, in registry.Input, out registry.Output, runErr error, elapsed time.Duration) {
	status := "ok"
	summary := audit.Truncate(out.Content, outputAuditLimit)
	if runErr != nil {
		status = "fault"
		summary = runErr.Error()
	} else if out.Failed() {
		status = "domain_error"
		summary = out.Error
	}

	e.trail.Record(ctx, audit.Record{
		Kind:    audit.KindInvocation,
		Subject: name,
		Status:  status,
		Summary: summary,
		Detail: map[string]any{
			"input_fields": inputFields(in),
			"duration_ms":  elapsed.Milliseconds(),
		},
	})
}

const healSystemPrompt = `An executor invocation failed. Explain the most likely root cause
and suggest a patch. Reply with {"root_cause": "...", "suggestion": "..."}.`

// adviseHeal asks the oracle for a root-cause analysis of a fault. The
// advice is logged, never applied; the fault still propagates.
func (e *Engine) adviseHeal(ctx context.Context, name string, fault error) {
	reply, err := e.oracle.Generate(ctx, healSystemPrompt,
		fmt.Sprintf("Executor: %s\nFault: %v", name, fault))
	if err != nil {
		e.logger.Debug("auto-heal advice unavailable",
			zap.String("executor", name), zap.Error(err))
		return
	}

	var advice struct {
		RootCause  string `json:"root_cause"`
		Suggestion string `json:"suggestion"`
	}
	if !oracle.Decode(reply, &advice) {
		return
	}
	e.logger.Info("auto-heal advice (not applied)",
		zap.String("executor", name),
		zap.String("root_cause", advice.RootCause),
		zap.String("suggestion", advice.Suggestion))
}

func inputFields(in registry.Input) []string {
	fields := make([]string, 0, len(in))
	for k := range in {
		fields = append(fields, k)
	}
	return fields
}
