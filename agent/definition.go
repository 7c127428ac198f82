package agent

import (
	"os"

	"gopkg.in/yaml.v3"
)

// WorkflowDefinition is the static, file-sourced configuration for one
// workflow (§6). GraphDefinition is optional — when absent, Compile builds
// the fixed legacy topology described in §4.4.
type WorkflowDefinition struct {
	ID              string             `yaml:"id"`
	Name            string             `yaml:"name"`
	Description     string             `yaml:"description,omitempty"`
	Model           string             `yaml:"model,omitempty"`
	SystemPrompt    string             `yaml:"systemPrompt,omitempty"`
	Temperature     float64            `yaml:"temperature,omitempty"`
	AllowedTools    []string           `yaml:"allowedTools,omitempty"`
	GraphDefinition *GraphDefinition   `yaml:"graphDefinition,omitempty"`
	Scheduler       *SchedulerSettings `yaml:"scheduler,omitempty"`
	Evals           *EvalsBlock        `yaml:"evals,omitempty"`
}

// GraphDefinition is the declarative node/edge description (§6): an
// entrypoint node id and a map of node name to NodeDef.
type GraphDefinition struct {
	Entrypoint string             `yaml:"entrypoint"`
	Nodes      map[string]NodeDef `yaml:"nodes"`
}

// NodeDef describes one declarative graph node. Next is either a single
// static target (NextSpec.Static) or a list of conditional targets
// (NextSpec.Cases);
// exactly one is populated depending on how the YAML/JSON encoded it.
type NodeDef struct {
	Type       string            `yaml:"type"` // llm | tool | interrupt
	Prompt     string            `yaml:"prompt,omitempty"`
	Tool       string            `yaml:"tool,omitempty"`
	Args       map[string]string `yaml:"args,omitempty"`
	Next       NextSpec          `yaml:"next"`
	OnComplete string            `yaml:"onComplete,omitempty"`
	OnResponse string            `yaml:"onResponse,omitempty"`
	Timeout    string            `yaml:"timeout,omitempty"`
	OnTimeout  string            `yaml:"onTimeout,omitempty"`
	Reason     string            `yaml:"reason,omitempty"`
}

// NextCase is one entry in a conditional next-list.
type NextCase struct {
	Condition string `yaml:"condition"`
	Target    string `yaml:"target"`
}

// NextSpec holds either a static next-node string or a list of conditional
// cases, matching §6's `next: string | [{condition, target}]` union.
type NextSpec struct {
	Static string
	Cases  []NextCase
}

// UnmarshalYAML implements the string-or-list union for NextSpec.
func (n *NextSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&n.Static)
	}
	return value.Decode(&n.Cases)
}

// SchedulerSettings is the per-workflow scheduler block (§6).
type SchedulerSettings struct {
	Cron      string         `yaml:"cron,omitempty"`
	BatchSize int            `yaml:"batchSize,omitempty"`
	Filters   map[string]any `yaml:"filters,omitempty"`
	Rules     SchedulerRules `yaml:"rules,omitempty"`
}

// SchedulerRules is the precheck tuning surface (§3 "Scheduler rules").
type SchedulerRules struct {
	MinDaysBetweenActions    float64  `yaml:"minDaysBetweenActions"`
	MaxActionAttempts        int      `yaml:"maxActionAttempts"`
	RecordTooRecentDays      float64  `yaml:"recordTooRecentDays"`
	RecentUpdateCooldownDays float64  `yaml:"recentUpdateCooldownDays"`
	HighPriorityMinDays      float64  `yaml:"highPriorityMinDays"`
	LowPriorityMultiplier    float64  `yaml:"lowPriorityMultiplier"`
	EnabledStatuses          []string `yaml:"enabledStatuses"`
	EscalationThreshold      int      `yaml:"escalationThreshold"`
	BatchSize                int      `yaml:"batchSize"`
}

// EvalsBlock carries the scenario list referenced by §4.9; concrete
// scenario parsing lives in the eval package to keep this package free of
// the eval harness's mock-wiring types.
type EvalsBlock struct {
	Context   map[string]any `yaml:"context,omitempty"`
	Scenarios []yaml.Node    `yaml:"scenarios,omitempty"`
}

// LoadWorkflowDefinitionYAML reads and parses a workflow definition file.
func LoadWorkflowDefinitionYAML(path string) (WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WorkflowDefinition{}, err
	}
	var def WorkflowDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return WorkflowDefinition{}, err
	}
	return def, nil
}
