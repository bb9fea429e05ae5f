package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orchd/internal/oracle"
	"github.com/fyrsmithlabs/orchd/internal/store"
)

var (
	// ErrNotRegistered indicates the executor name has no locator yet.
	ErrNotRegistered = errors.New("executor not registered")

	// ErrSynthesis indicates synthesis produced nothing usable even
	// after the stub fallback. Fatal for the invocation.
	ErrSynthesis = errors.New("executor synthesis failed")
)

// Locator schemes. Builtin locators point into the fixed catalog; rule
// locators name a persisted Rule record.
const (
	locatorBuiltinPrefix = "builtin:"
	locatorRulePrefix    = "rule:"

	registrationKeyPrefix = "agents/locator/"
	ruleKeyPrefix         = "agents/rule/"

	// Synthesized system prompts shorter than this are implausible and
	// replaced by the echo stub.
	minPlausiblePromptLen = 24
)

// Registry maps executor names to locators and loads implementations.
type Registry struct {
	store  store.Store
	oracle oracle.Oracle
	logger *zap.Logger
}

// New creates a registry over the given store.
func New(st store.Store, o oracle.Oracle, logger *zap.Logger) (*Registry, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required for registry")
	}
	if o == nil {
		return nil, fmt.Errorf("oracle is required for registry")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for registry")
	}
	return &Registry{store: st, oracle: o, logger: logger.Named("registry")}, nil
}

// Resolve returns the locator for name. Builtins resolve without a
// store lookup; everything else must have been registered.
func (r *Registry) Resolve(ctx context.Context, name string) (string, error) {
	if IsBuiltin(name) {
		return locatorBuiltinPrefix + name, nil
	}
	value, err := r.store.Read(ctx, registrationKeyPrefix+name)
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve executor %s: %w", name, err)
	}
	return string(value), nil
}

// Register persists a locator for name. First registration wins;
// re-registering an existing name is a no-op.
func (r *Registry) Register(ctx context.Context, name, locator string) error {
	wrote, err := r.store.WriteIfAbsent(ctx, registrationKeyPrefix+name, []byte(locator))
	if err != nil {
		return fmt.Errorf("failed to register executor %s: %w", name, err)
	}
	if !wrote {
		r.logger.Debug("executor already registered", zap.String("executor", name))
	}
	return nil
}

// Names returns every known executor name, builtins first.
func (r *Registry) Names(ctx context.Context) ([]string, error) {
	keys, err := r.store.Keys(ctx, registrationKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list executors: %w", err)
	}
	names := Vocabulary()
	for _, k := range keys {
		names = append(names, strings.TrimPrefix(k, registrationKeyPrefix))
	}
	return names, nil
}

const synthesisSystemPrompt = `You define new task executors as declarative prompt rules.
Reply with a single JSON object: {"system_prompt": "...", "output_guidance": "..."}.
The system prompt must fully describe the executor's behavior; it will be used verbatim.`

// Synthesize asks the oracle for a rule defining the named executor,
// falling back to a minimal echo stub when the reply is unusable, then
// persists the rule and registers its locator.
func (r *Registry) Synthesize(ctx context.Context, name string) (string, error) {
	rule := r.synthesizeRule(ctx, name)

	data, err := json.Marshal(rule)
	if err != nil {
		return "", fmt.Errorf("%w: encoding rule for %s: %v", ErrSynthesis, name, err)
	}

	ruleKey := ruleKeyPrefix + name
	if _, err := r.store.WriteIfAbsent(ctx, ruleKey, data); err != nil {
		return "", fmt.Errorf("%w: persisting rule for %s: %v", ErrSynthesis, name, err)
	}

	locator := locatorRulePrefix + ruleKey
	if err := r.Register(ctx, name, locator); err != nil {
		return "", fmt.Errorf("%w: registering %s: %v", ErrSynthesis, name, err)
	}

	r.logger.Info("synthesized executor",
		zap.String("executor", name),
		zap.String("locator", locator))
	return locator, nil
}

func (r *Registry) synthesizeRule(ctx context.Context, name string) Rule {
	prompt := fmt.Sprintf("Define an executor named %q. It receives a step with a goal, "+
		"details and earlier step results, and must produce the step's output.", name)

	reply, err := r.oracle.Generate(ctx, synthesisSystemPrompt, prompt)
	if err == nil {
		var rule Rule
		if oracle.Decode(reply, &rule) && len(rule.SystemPrompt) >= minPlausiblePromptLen {
			rule.Name = name
			return rule
		}
		r.logger.Warn("implausible synthesis reply, using stub",
			zap.String("executor", name),
			zap.Int("reply_len", len(reply)))
	} else {
		r.logger.Warn("synthesis oracle unavailable, using stub",
			zap.String("executor", name), zap.Error(err))
	}

	return Rule{
		Name: name,
		SystemPrompt: fmt.Sprintf("You are the %q executor. Answer the step's request "+
			"directly and completely using the provided goal and context.", name),
	}
}

// Load instantiates the executor behind a locator.
func (r *Registry) Load(ctx context.Context, name, locator string) (Executor, error) {
	switch {
	case strings.HasPrefix(locator, locatorBuiltinPrefix):
		rule, ok := builtinRules[strings.TrimPrefix(locator, locatorBuiltinPrefix)]
		if !ok {
			return nil, fmt.Errorf("unknown builtin executor in locator %q", locator)
		}
		return NewPromptExecutor(rule, r.oracle)

	case strings.HasPrefix(locator, locatorRulePrefix):
		key := strings.TrimPrefix(locator, locatorRulePrefix)
		data, err := r.store.Read(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to load rule %s: %w", key, err)
		}
		var rule Rule
		if err := json.Unmarshal(data, &rule); err != nil {
			return nil, fmt.Errorf("corrupt rule %s: %w", key, err)
		}
		if rule.Name == "" {
			rule.Name = name
		}
		return NewPromptExecutor(rule, r.oracle)

	default:
		return nil, fmt.Errorf("unsupported locator %q for executor %s", locator, name)
	}
}
