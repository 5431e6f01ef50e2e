package ast

import (
	"time"

	"github.com/corint-sh/corint/signal"
)

// StepType enumerates the Pipeline step kinds (spec §3).
type StepType string

const (
	StepRouter   StepType = "router"
	StepFunction StepType = "function"
	StepRule     StepType = "rule"
	StepRuleset  StepType = "ruleset"
	StepPipeline StepType = "pipeline"
	StepService  StepType = "service"
	StepAPI      StepType = "api"
	StepTrigger  StepType = "trigger"
	StepExtract  StepType = "extract"
)

// EndStep is the sentinel "next" id that terminates step chaining.
const EndStep = "end"

// Route is one branch of a router step.
type Route struct {
	Next string
	When WhenBlock
}

// FeatureCall describes a `CallFeature` site: the feature type, the field to
// project, an optional filter expression and an aggregation window.
type FeatureCall struct {
	Type   string
	Field  string
	Filter Expression
	Window time.Duration
}

// ServiceCall describes a `CallService` site.
type ServiceCall struct {
	Service string
	Op      string
	Params  map[string]Expression
}

// ExternalCall describes a `CallExternal` site.
type ExternalCall struct {
	API      string
	Endpoint string
	Params   map[string]Expression
	Timeout  time.Duration
	Fallback Expression
}

// PipelineStep is one node in the step DAG (spec §3).
type PipelineStep struct {
	ID       string
	Type     StepType
	Next     string // non-router chaining target, or EndStep
	Routes   []Route
	Default  string // router fallback id
	RuleIDs  []string
	RulesetID string
	SubPipelineID string
	Feature  *FeatureCall
	Service  *ServiceCall
	External *ExternalCall
	Extract  map[string]Expression // extract-step field bindings
	StoreAs  string                 // variable name the step's output is stored under
}

// PipelineDecisionRule is one row of a pipeline-level decision block,
// compiled into Program.decision_instructions so it can re-run after
// rulesets finish (spec §4.4).
type PipelineDecisionRule struct {
	Condition Expression
	Default   bool
	Signal    signal.Signal
	Actions   []string
	Reason    string
}

// Pipeline is a step DAG producing namespace fills and selecting rulesets
// (spec §3).
type Pipeline struct {
	ID          string
	Name        string
	Description string
	Entry       string
	When        *WhenBlock
	Steps       []PipelineStep
	Decision    []PipelineDecisionRule
	Metadata    map[string]string
	Version     string
}
