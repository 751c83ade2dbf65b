package types

// ProgramMap is the structural description of a program, from
// program-map.json.
type ProgramMap struct {
	Instructions []Instruction `json:"instructions" yaml:"instructions"`
	Accounts     []AccountDef  `json:"accounts" yaml:"accounts"`
}

// Instruction is a named program entry point.
type Instruction struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Args        []Field        `json:"args,omitempty" yaml:"args,omitempty"`
	Accounts    []AccountUsage `json:"accounts,omitempty" yaml:"accounts,omitempty"`
}

// AccountUsage names an account an instruction touches.
type AccountUsage struct {
	Name     string `json:"name" yaml:"name"`
	IsMut    bool   `json:"isMut,omitempty" yaml:"isMut,omitempty"`
	IsSigner bool   `json:"isSigner,omitempty" yaml:"isSigner,omitempty"`
}

// AccountDef is a named account type declared by the program.
type AccountDef struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []Field `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Field is a typed name used by instruction args and account fields.
type Field struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// InstructionNames returns the instruction names in declaration order.
func (m ProgramMap) InstructionNames() []string {
	names := make([]string, 0, len(m.Instructions))
	for _, instruction := range m.Instructions {
		names = append(names, instruction.Name)
	}
	return names
}

// AccountNames returns the account names in declaration order.
func (m ProgramMap) AccountNames() []string {
	names := make([]string, 0, len(m.Accounts))
	for _, account := range m.Accounts {
		names = append(names, account.Name)
	}
	return names
}

// PrecomputedState is the content of precomputed-state.json.
type PrecomputedState struct {
	Scenarios []ExecutionScenario `json:"scenarios" yaml:"scenarios"`
}

// ExecutionScenario is one pre-run invocation of an instruction with the
// account snapshots captured around it.
type ExecutionScenario struct {
	Name           string            `json:"name" yaml:"name"`
	Description    string            `json:"description" yaml:"description"`
	Instruction    string            `json:"instruction" yaml:"instruction"`
	Args           map[string]any    `json:"args,omitempty" yaml:"args,omitempty"`
	AccountsBefore []AccountSnapshot `json:"accountsBefore" yaml:"accountsBefore"`
	AccountsAfter  []AccountAfter    `json:"accountsAfter" yaml:"accountsAfter"`
	Logs           []string          `json:"logs" yaml:"logs"`
	ComputeUnits   uint64            `json:"computeUnits" yaml:"computeUnits"`
}

// AccountSnapshot is the state of an account at one point of a scenario.
type AccountSnapshot struct {
	Address  string         `json:"address" yaml:"address"`
	Label    string         `json:"label" yaml:"label"`
	Owner    string         `json:"owner" yaml:"owner"`
	Lamports uint64         `json:"lamports" yaml:"lamports"`
	DataSize uint64         `json:"dataSize" yaml:"dataSize"`
	Data     map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

// AccountAfter is a post-execution snapshot with the list of what changed.
type AccountAfter struct {
	AccountSnapshot `yaml:",inline"`
	Changes         []string `json:"changes" yaml:"changes"`
}

// Scenario returns the scenario with the given name.
func (s PrecomputedState) Scenario(name string) (ExecutionScenario, bool) {
	for _, scenario := range s.Scenarios {
		if scenario.Name == name {
			return scenario, true
		}
	}
	return ExecutionScenario{}, false
}
