package types

// ExplanationType classifies what a line explanation is about.
type ExplanationType string

const (
	ExplanationInstruction ExplanationType = "instruction"
	ExplanationAccount     ExplanationType = "account"
	ExplanationMacro       ExplanationType = "macro"
	ExplanationLogic       ExplanationType = "logic"
	ExplanationSecurity    ExplanationType = "security"
)

// ExplanationTypes lists every accepted explanation type.
var ExplanationTypes = []ExplanationType{
	ExplanationInstruction,
	ExplanationAccount,
	ExplanationMacro,
	ExplanationLogic,
	ExplanationSecurity,
}

// LineExplanation annotates one source line. Line is 1-based.
type LineExplanation struct {
	Line     int             `json:"line" yaml:"line"`
	Type     ExplanationType `json:"type" yaml:"type"`
	Summary  string          `json:"summary" yaml:"summary"`
	Why      string          `json:"why,omitempty" yaml:"why,omitempty"`
	Risk     string          `json:"risk,omitempty" yaml:"risk,omitempty"`
	Concepts []string        `json:"concepts,omitempty" yaml:"concepts,omitempty"`
}

// FunctionSpec is a function-level specification from function-specs.json.
type FunctionSpec struct {
	Name           string      `json:"name" yaml:"name"`
	Description    string      `json:"description,omitempty" yaml:"description,omitempty"`
	Signature      string      `json:"signature,omitempty" yaml:"signature,omitempty"`
	Params         []ParamSpec `json:"params,omitempty" yaml:"params,omitempty"`
	Returns        string      `json:"returns,omitempty" yaml:"returns,omitempty"`
	Preconditions  []string    `json:"preconditions,omitempty" yaml:"preconditions,omitempty"`
	Postconditions []string    `json:"postconditions,omitempty" yaml:"postconditions,omitempty"`
	Errors         []string    `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// ParamSpec describes one function parameter.
type ParamSpec struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}
