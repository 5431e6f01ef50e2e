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

package ir

// SourceType names the artifact kind a Program was compiled from
// (spec §3: ProgramMetadata.source_type).
type SourceType string

const (
	SourceRule     SourceType = "rule"
	SourceRuleset  SourceType = "ruleset"
	SourcePipeline SourceType = "pipeline"
)

// Well-known ProgramMetadata.Custom keys, the "metadata side-channel"
// described in spec §3/§9. Structured data lives here as pre-rendered
// JSON strings, parsed once by the trace builder — never re-derived
// from the instruction stream at trace time.
const (
	CustomRules               = "rules"                // comma-joined member rule ids (Ruleset)
	CustomConclusionJSON      = "conclusion_json"       // Ruleset conclusion table
	CustomStepsJSON           = "steps_json"            // Pipeline step table
	CustomWhenConditions      = "when_conditions"       // Pipeline-level when, rendered
	CustomConditionsJSON      = "conditions_json"       // Rule when-conditions, rendered
	CustomConditionGroupJSON  = "condition_group_json"  // Rule when ConditionGroup, rendered
)

// ProgramMetadata carries compile-time-only bookkeeping alongside a
// Program's instructions (spec §3).
type ProgramMetadata struct {
	SourceType SourceType
	SourceID   string
	Name       string
	Custom     map[string]string
}

// Program is the compiled IR for one Rule, Ruleset or Pipeline
// (spec §3). DecisionInstructions is populated only for pipelines that
// declare a `decision:` block (spec §4.4/§4.6): a second, restricted
// instruction stream re-run after the main pass returns.
type Program struct {
	Instructions         Instructions
	Metadata             ProgramMetadata
	DecisionInstructions Instructions
}

// decisionSubset is the restricted opcode set legal inside
// DecisionInstructions (spec §4.6: "any other instruction is a fatal
// error").
var decisionSubset = map[Op]struct{}{
	OpLoadField:  {},
	OpLoadConst:  {},
	OpLoadResult: {},
	OpCompare:    {},
	OpJumpIfFalse: {},
	OpJump:       {},
	OpSetSignal:  {},
	OpSetReason:  {},
	OpSetActions: {},
	OpReturn:     {},
}

// ValidateDecisionSubset reports the index of the first instruction in
// ins that is not permitted inside a decision_instructions stream, or
// -1 if ins is entirely legal.
func ValidateDecisionSubset(ins Instructions) int {
	for i, instr := range ins {
		if _, ok := decisionSubset[instr.Op]; !ok {
			return i
		}
	}
	return -1
}
