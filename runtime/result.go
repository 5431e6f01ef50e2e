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

package runtime

import (
	"github.com/corint-sh/corint/signal"
	"github.com/corint-sh/corint/value"
)

// Reserved internal variable names (spec §6): these must never collide
// with user-authored rule or event content, and only the VM/orchestrator
// ever read or write them.
const (
	VarRulesetsToExecute    = "__rulesets_to_execute__"
	VarRulesToExecute       = "__rules_to_execute__"
	VarSubPipelinesToExecute = "__subpipelines_to_execute__"
	VarNextRuleset          = "__next_ruleset__"
	VarLastRulesetResult    = "__last_ruleset_result__"
	VarExecutedSteps        = "__executed_steps__"
	VarExecutedBranchIndex  = "__executed_branch_index__"
	VarExecutedBranchCond   = "__executed_branch_condition__"
)

// rulesetResultKey builds the `__ruleset_result__.<id>` variable name a
// materialised ruleset conclusion is stored under (spec §4.7).
func rulesetResultKey(rulesetID string) string {
	return "__ruleset_result__." + rulesetID
}

// ExecutionResult accumulates across every VM invocation driven by one
// decision request (spec §3): pipeline run, each ruleset/rule fan-out,
// and the final pipeline decision re-run all thread the same instance.
type ExecutionResult struct {
	Score          int32
	TriggeredRules []string
	Signal         *signal.Signal
	Actions        []string

	// ExplicitExplanation is the most recently set SetReason value.
	ExplicitExplanation string

	// Variables is a flat, dotted-path-keyed bag holding the writable
	// features/api/service/llm/vars namespaces plus the reserved `__`
	// bookkeeping keys (spec §3, §6). Namespace and reserved-key values
	// coexist in the same map because both are addressed the same way:
	// a dotted string key.
	Variables map[string]value.Value

	triggered map[string]struct{}
}

// NewExecutionResult returns a freshly zeroed result ready to accumulate.
func NewExecutionResult() *ExecutionResult {
	return &ExecutionResult{
		Variables: make(map[string]value.Value),
		triggered: make(map[string]struct{}),
	}
}

// MarkTriggered appends ruleID to TriggeredRules, preserving first-trigger
// order and de-duplicating (spec §3 invariant).
func (r *ExecutionResult) MarkTriggered(ruleID string) {
	if _, ok := r.triggered[ruleID]; ok {
		return
	}
	r.triggered[ruleID] = struct{}{}
	r.TriggeredRules = append(r.TriggeredRules, ruleID)
}

// GetVar reads a flat dotted-path variable, defaulting to Null.
func (r *ExecutionResult) GetVar(key string) value.Value {
	if v, ok := r.Variables[key]; ok {
		return v
	}
	return value.Null
}

// SetVar writes a flat dotted-path variable.
func (r *ExecutionResult) SetVar(key string, v value.Value) {
	r.Variables[key] = v
}

// AppendUnique appends item to the string-array variable at key,
// de-duplicating and preserving insertion order (used for
// __rulesets_to_execute__, __rules_to_execute__,
// __subpipelines_to_execute__ — spec §4.6 "de-duplicated, order
// preserved").
func (r *ExecutionResult) AppendUnique(key, item string) {
	existing := r.GetVar(key)
	items := existing.AsArray()
	for _, v := range items {
		if v.Kind() == value.KindString && v.AsString() == item {
			return
		}
	}
	r.SetVar(key, value.Array(append(append([]value.Value{}, items...), value.String(item))))
}

// StringList reads a string-array variable back into a []string.
func (r *ExecutionResult) StringList(key string) []string {
	items := r.GetVar(key).AsArray()
	out := make([]string, 0, len(items))
	for _, v := range items {
		if v.Kind() == value.KindString {
			out = append(out, v.AsString())
		}
	}
	return out
}

// MaterializeRulesetResult stores the `__ruleset_result__.<id>` object
// (spec §4.7) and mirrors it into __last_ruleset_result__.
func (r *ExecutionResult) MaterializeRulesetResult(rulesetID string, fields map[string]value.Value) {
	obj := value.Object(fields)
	r.SetVar(rulesetResultKey(rulesetID), obj)
	r.SetVar(VarLastRulesetResult, obj)
}

// RulesetResult reads back a materialised `__ruleset_result__.<id>`
// object, or — when rulesetID is empty — the last one recorded.
func (r *ExecutionResult) RulesetResult(rulesetID string) value.Value {
	if rulesetID == "" {
		return r.GetVar(VarLastRulesetResult)
	}
	return r.GetVar(rulesetResultKey(rulesetID))
}
