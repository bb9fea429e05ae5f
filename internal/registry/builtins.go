package registry

// The builtin executor vocabulary. Blueprint synthesis and arbitration
// both draw from this set; synthesized executors extend it at runtime.
const (
	ExecutorResearch = "research"
	ExecutorGenerate = "generate"
	ExecutorCodegen  = "codegen"
	ExecutorReview   = "review"
)

// Vocabulary returns the builtin executor names in stable order.
func Vocabulary() []string {
	return []string{ExecutorResearch, ExecutorGenerate, ExecutorCodegen, ExecutorReview}
}

var builtinRules = map[string]Rule{
	ExecutorResearch: {
		Name: ExecutorResearch,
		SystemPrompt: "You are a research executor. Gather the facts, constraints and prior " +
			"art relevant to the step and report them concisely.",
		OutputGuidance: "Structure the answer as short findings with the evidence for each.",
	},
	ExecutorGenerate: {
		Name: ExecutorGenerate,
		SystemPrompt: "You are a generation executor. Produce the artifact the step asks " +
			"for, using the goal, details and earlier step results.",
	},
	ExecutorCodegen: {
		Name: ExecutorCodegen,
		SystemPrompt: "You are a code generation executor. Write or modify code to satisfy " +
			"the step. Output complete, compilable units, never fragments.",
		OutputGuidance: "Wrap code in fenced blocks and state the target file for each block.",
	},
	ExecutorReview: {
		Name: ExecutorReview,
		SystemPrompt: "You are a review executor. Judge the work of earlier steps against " +
			"the task goal and report defects precisely.",
		OutputGuidance: "List each defect with its location and severity; say so explicitly when there are none.",
	},
}

// IsBuiltin reports whether name is part of the builtin vocabulary.
func IsBuiltin(name string) bool {
	_, ok := builtinRules[name]
	return ok
}
