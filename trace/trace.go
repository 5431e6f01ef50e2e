// SPDX-License-Identifier: Apache-2.0

// Copyright 2025 Binaek Sarkar
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package trace

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/corint-sh/corint/ast"
	"github.com/corint-sh/corint/collab"
	"github.com/corint-sh/corint/runtime"
	"github.com/corint-sh/corint/value"
)

// ConditionTrace reconstructs one evaluated condition (spec §4.8): a
// leaf binary comparison shows its resolved operands, a nested group
// shows its children with a result recomputed from them.
type ConditionTrace struct {
	Expression string
	LeftValue  *value.Value
	Operator   string
	RightValue *value.Value
	Result     bool

	GroupType string // "all" | "any" | "not", empty for a leaf
	Children  []*ConditionTrace
}

// RuleExecutionRecord is what the orchestrator (package engine) records
// for each rule it ran as part of a ruleset fan-out (spec §4.7 step 4):
// triggered flag, per-rule score delta, latency, and the rule's own
// When block for trace reconstruction.
type RuleExecutionRecord struct {
	RuleID     string
	Triggered  bool
	ScoreDelta int32
	Latency    time.Duration
	When       ast.WhenBlock
}

// RuleTrace is one ruleset member's contribution to a RulesetTrace.
type RuleTrace struct {
	RuleID     string
	Triggered  bool
	ScoreDelta int32
	Conditions *ConditionTrace
}

// ConclusionTrace is one row of a ruleset's conclusion table, marked
// Matched if it is the row that produced the ruleset's signal (spec
// §4.8: "the first whose signal equals the matched signal; default
// rows match only if no prior match").
type ConclusionTrace struct {
	Condition string
	Default   bool
	Signal    string
	Actions   []string
	Reason    string
	Matched   bool
}

// RulesetTrace groups one ruleset's rule and conclusion traces.
type RulesetTrace struct {
	RulesetID  string
	Rules      []RuleTrace
	Conclusion []ConclusionTrace
}

// StepTrace is one pipeline step's declared shape plus whether (and,
// for routers, how) it executed.
type StepTrace struct {
	StepID     string
	Type       string
	Next       string
	Executed   bool
	RouteIndex int
	IsDefault  bool
	Condition  *ConditionTrace // matched route's when, Result always true
}

// PipelineTrace is the full per-request trace the orchestrator attaches
// to a DecisionResponse when tracing is enabled (spec §4.8).
type PipelineTrace struct {
	WhenConditions   string
	Steps            []StepTrace
	ExecutedBranch   *int
	BranchConditions *bool
	Rulesets         []RulesetTrace
}

// BuildCondition reconstructs a ConditionTrace for cond against ec's
// final state (spec §4.8). list may be nil.
func BuildCondition(ctx context.Context, ec *runtime.ExecutionContext, list collab.ListService, cond ast.Condition) (*ConditionTrace, error) {
	if cond.Group != nil {
		return buildGroup(ctx, ec, list, cond.Group)
	}
	return buildLeaf(ctx, ec, list, cond.Expr)
}

// BuildConditionGroup is BuildCondition's entry point for a WhenBlock's
// top-level ConditionGroup (e.g. a pipeline's own `when`, spec §4.8
// "when_conditions").
func BuildConditionGroup(ctx context.Context, ec *runtime.ExecutionContext, list collab.ListService, cg *ast.ConditionGroup) (*ConditionTrace, error) {
	if cg == nil {
		return &ConditionTrace{Expression: "true", Result: true}, nil
	}
	return buildGroup(ctx, ec, list, cg)
}

func buildGroup(ctx context.Context, ec *runtime.ExecutionContext, list collab.ListService, cg *ast.ConditionGroup) (*ConditionTrace, error) {
	children := make([]*ConditionTrace, 0, len(cg.Conditions))
	for _, c := range cg.Conditions {
		child, err := BuildCondition(ctx, ec, list, c)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	result := false
	switch cg.Kind {
	case ast.GroupKindAll:
		result = true
		for _, c := range children {
			if !c.Result {
				result = false
				break
			}
		}
	case ast.GroupKindAny:
		for _, c := range children {
			if c.Result {
				result = true
				break
			}
		}
	case ast.GroupKindNot:
		result = len(children) > 0 && !allTrue(children)
	default:
		return nil, errors.Errorf("trace: unknown group kind %q", cg.Kind)
	}

	return &ConditionTrace{
		Expression: ast.RenderConditionGroup(cg),
		Result:     result,
		GroupType:  string(cg.Kind),
		Children:   children,
	}, nil
}

func allTrue(children []*ConditionTrace) bool {
	for _, c := range children {
		if !c.Result {
			return false
		}
	}
	return true
}

// buildLeaf reconstructs a single condition expression. A direct binary
// comparison shows its resolved left/operator/right (spec §4.8); any
// other expression shape (function call, ternary, nested logical
// group, ...) shows only its rendered form and boolean result.
func buildLeaf(ctx context.Context, ec *runtime.ExecutionContext, list collab.ListService, expr ast.Expression) (*ConditionTrace, error) {
	v, err := runtime.EvalExpr(ctx, ec, list, expr)
	if err != nil {
		return nil, err
	}

	trace := &ConditionTrace{
		Expression: ast.Render(expr),
		Result:     v.Truthy(),
	}

	bin, ok := expr.(*ast.Binary)
	if !ok {
		return trace, nil
	}
	trace.Operator = string(bin.Op)
	trace.LeftValue = sideValue(ctx, ec, list, bin.Left, false)
	trace.RightValue = sideValue(ctx, ec, list, bin.Right, true)
	return trace, nil
}

// sideValue resolves one operand of a binary comparison for display,
// applying spec §4.8's omission rule: "Literal right-hand sides and
// boolean literals are omitted from display; field accesses are
// always shown, even when resolving to Null." Errors resolving the
// side (e.g. an unresolvable list reference) degrade to omission
// rather than failing the whole trace.
func sideValue(ctx context.Context, ec *runtime.ExecutionContext, list collab.ListService, expr ast.Expression, isRight bool) *value.Value {
	if lit, ok := expr.(*ast.Literal); ok {
		if lit.Value.Kind() == value.KindBool {
			return nil
		}
		if isRight {
			return nil
		}
	}
	v, err := runtime.EvalExpr(ctx, ec, list, expr)
	if err != nil {
		return nil
	}
	return &v
}

// BuildRulesetTrace assembles one ruleset's RuleTrace list and its
// conclusion table trace (spec §4.7 step 4, §4.8).
func BuildRulesetTrace(ctx context.Context, ec *runtime.ExecutionContext, list collab.ListService, rulesetID string, records []RuleExecutionRecord, conclusion []ast.DecisionRule, matchedSignal string) (*RulesetTrace, error) {
	rules := make([]RuleTrace, 0, len(records))
	for _, rec := range records {
		var cond *ConditionTrace
		if rec.When.ConditionGroup != nil {
			c, err := BuildConditionGroup(ctx, ec, list, rec.When.ConditionGroup)
			if err != nil {
				return nil, errors.Wrapf(err, "rule %q", rec.RuleID)
			}
			cond = c
		}
		rules = append(rules, RuleTrace{
			RuleID:     rec.RuleID,
			Triggered:  rec.Triggered,
			ScoreDelta: rec.ScoreDelta,
			Conditions: cond,
		})
	}

	concl := buildDecisionLogicTraces(conclusion, matchedSignal)

	return &RulesetTrace{RulesetID: rulesetID, Rules: rules, Conclusion: concl}, nil
}

// buildDecisionLogicTraces renders a ruleset (or pipeline decision)
// conclusion table, marking exactly one row matched: the first whose
// signal equals matchedSignal. Because a default row is always last
// (spec §3 invariant), this single left-to-right pass already
// implements "default rows match only if no prior match" — an earlier
// row sharing the default's signal claims the match first.
func buildDecisionLogicTraces(rows []ast.DecisionRule, matchedSignal string) []ConclusionTrace {
	out := make([]ConclusionTrace, 0, len(rows))
	matched := false
	for _, row := range rows {
		cond := ""
		if !row.Default {
			cond = ast.Render(row.Condition)
		}
		isMatch := !matched && string(row.Signal) == matchedSignal
		if isMatch {
			matched = true
		}
		out = append(out, ConclusionTrace{
			Condition: cond,
			Default:   row.Default,
			Signal:    string(row.Signal),
			Actions:   row.Actions,
			Reason:    row.Reason,
			Matched:   isMatch,
		})
	}
	return out
}

// stepMeta mirrors codegen's pipelineStepJSON (codegen/pipeline.go),
// decoded back from ProgramMetadata.Custom[steps_json].
type stepMeta struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Next    string   `json:"next,omitempty"`
	Default string   `json:"default,omitempty"`
	RuleIDs []string `json:"rule_ids,omitempty"`
	Ruleset string   `json:"ruleset_id,omitempty"`
}

// executedStepRecord mirrors the JSON record the VM's MarkStepExecuted
// handler appends to __executed_steps__ (runtime/vm.go).
type executedStepRecord struct {
	StepID         string `json:"step_id"`
	NextStepID     string `json:"next_step_id"`
	RouteIndex     int    `json:"route_index"`
	IsDefaultRoute bool   `json:"is_default_route"`
}

// BuildSteps reconstructs the pipeline step trace from the compiler's
// steps_json metadata and the runtime __executed_steps__ array (spec
// §4.8). pipeline supplies the router route definitions needed to
// attach the matched route's condition trace.
func BuildSteps(ctx context.Context, ec *runtime.ExecutionContext, list collab.ListService, stepsJSON string, executedSteps value.Value, pipeline *ast.Pipeline) ([]StepTrace, error) {
	var metas []stepMeta
	if stepsJSON != "" {
		if err := json.Unmarshal([]byte(stepsJSON), &metas); err != nil {
			return nil, errors.Wrap(err, "trace: decoding steps_json")
		}
	}

	executedByID := make(map[string]executedStepRecord, len(metas))
	for _, raw := range executedSteps.AsArray() {
		if raw.Kind() != value.KindString {
			continue
		}
		var rec executedStepRecord
		if err := json.Unmarshal([]byte(raw.AsString()), &rec); err != nil {
			continue
		}
		executedByID[rec.StepID] = rec
	}

	stepsByID := make(map[string]*ast.PipelineStep, len(pipeline.Steps))
	for i := range pipeline.Steps {
		stepsByID[pipeline.Steps[i].ID] = &pipeline.Steps[i]
	}

	out := make([]StepTrace, 0, len(metas))
	for _, m := range metas {
		rec, executed := executedByID[m.ID]
		st := StepTrace{StepID: m.ID, Type: m.Type, Next: m.Next, Executed: executed}
		if executed {
			st.RouteIndex = rec.RouteIndex
			st.IsDefault = rec.IsDefaultRoute
			if m.Type == string(ast.StepRouter) {
				cond, err := matchedRouteCondition(ctx, ec, list, stepsByID[m.ID], rec)
				if err != nil {
					return nil, errors.Wrapf(err, "step %q", m.ID)
				}
				st.Condition = cond
			}
		}
		out = append(out, st)
	}
	return out, nil
}

func matchedRouteCondition(ctx context.Context, ec *runtime.ExecutionContext, list collab.ListService, step *ast.PipelineStep, rec executedStepRecord) (*ConditionTrace, error) {
	if step == nil {
		return nil, nil
	}
	if rec.IsDefaultRoute {
		return &ConditionTrace{Expression: "default", Result: true}, nil
	}
	if rec.RouteIndex < 0 || rec.RouteIndex >= len(step.Routes) {
		return nil, nil
	}
	route := step.Routes[rec.RouteIndex]
	if route.When.ConditionGroup == nil {
		return &ConditionTrace{Expression: "true", Result: true}, nil
	}
	return BuildConditionGroup(ctx, ec, list, route.When.ConditionGroup)
}

// ExecutedBranch reads the __executed_branch_index__/
// __executed_branch_condition__ variables the VM preserves (spec §4.6,
// §4.8), before the orchestrator's later VM passes can overwrite them.
func ExecutedBranch(variables map[string]value.Value) (*int, *bool) {
	idxV, ok := variables[runtime.VarExecutedBranchIndex]
	if !ok || idxV.Kind() != value.KindNumber {
		return nil, nil
	}
	idx := int(idxV.AsNumber())
	var cond *bool
	if cv, ok := variables[runtime.VarExecutedBranchCond]; ok && cv.Kind() == value.KindBool {
		b := cv.AsBool()
		cond = &b
	}
	return &idx, cond
}
