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

// Package ir defines Corint's linear bytecode: the compact stack-based
// instruction set emitted by package codegen and consumed by the VM in
// package runtime (spec §3, §4.4, §4.6).
package ir

import (
	"time"

	"github.com/corint-sh/corint/ast"
	"github.com/corint-sh/corint/value"
)

// Op names an instruction opcode.
type Op int

const (
	// Data
	OpLoadField Op = iota
	OpLoadConst
	OpLoadResult
	OpLoad
	OpStore

	// Stack
	OpDup
	OpPop
	OpSwap

	// Arith/Logic
	OpBinaryOp
	OpCompare
	OpUnaryOp

	// Control
	OpJump
	OpJumpIfTrue
	OpJumpIfFalse
	OpReturn

	// Policy
	OpSetScore
	OpAddScore
	OpSetSignal
	OpSetReason
	OpSetActions
	OpMarkRuleTriggered
	OpMarkStepExecuted
	OpMarkBranchExecuted
	OpCheckEventType

	// I/O
	OpCallFeature
	OpCallService
	OpCallExternal
	OpCallRuleset

	// OpCallRule appends a bare rule id (a pipeline "rule" step, not a
	// ruleset member) to __rules_to_execute__, the sibling of
	// __rulesets_to_execute__ spec §4.6/§4.7 define for ruleset ids.
	// The orchestrator resolves and runs it the same way it runs a
	// ruleset's member rules — accumulating into the same
	// ExecutionResult — but without a conclusion table. Not spec-named;
	// added because spec §3 lists "rule" among Pipeline step types
	// without giving it its own instruction.
	OpCallRule

	// OpCallSubPipeline mirrors OpCallRuleset/OpCallRule for a nested
	// pipeline ("pipeline" step type, spec §3): appends
	// TargetRulesetID (the sub-pipeline id) to __subpipelines_to_execute__
	// for the orchestrator to run and merge afterward, rather than
	// giving the VM a real call stack.
	OpCallSubPipeline

	OpListLookup

	// OpCallBuiltin invokes a registered expression-language function
	// (e.g. count(x, y)) with Argc values already on the stack,
	// pushing one result. Not part of spec's named "minimum required"
	// set; added because the expression grammar's FunctionCall node
	// (spec §3) needs a dispatch point and none of the listed
	// instructions fits.
	OpCallBuiltin
)

// PlaceholderOffset is the sentinel jump offset emitted during codegen
// before the final program length is known (spec §4.4/§9: "back-patching").
// No Jump/JumpIfTrue/JumpIfFalse instruction may carry this value once a
// program has left codegen.
const PlaceholderOffset = 999

// Instruction is one bytecode operation. Only the fields relevant to Op
// are populated; the rest are zero.
type Instruction struct {
	Op Op

	// LoadField / Store: dotted field path, first segment selects a
	// namespace (spec §4.5).
	Path []string

	// LoadConst
	Const value.Value

	// LoadResult
	RulesetID string // empty = current/last ruleset result
	Field     string

	// Load / Store (non-dotted local variable name)
	Name string

	// BinaryOp / Compare / UnaryOp
	BinOp ast.Op

	// Jump / JumpIfTrue / JumpIfFalse: offset relative to this
	// instruction's own index (spec §4.4, §4.6).
	Offset int

	// SetScore / AddScore
	Amount int32

	// SetSignal / conclusion emission context
	Signal string

	// SetReason
	Reason string

	// SetActions
	Actions []string

	// MarkRuleTriggered
	RuleID string

	// MarkStepExecuted
	StepID      string
	NextStepID  string
	RouteIndex  int
	IsDefault   bool

	// CheckEventType
	ExpectedEventType string

	// CallFeature
	FeatureType   string
	FeatureField  string
	FeatureFilter Instructions // compiled filter expression, empty if none
	FeatureWindow time.Duration
	StoreAs       string // variable name the result is stored under, dotted (spec §4.5)

	// CallService / CallExternal: each named param compiled to a small
	// sub-program.
	ServiceName string
	ServiceOp   string
	Params      map[string]Instructions

	// CallExternal
	ExternalAPI      string
	ExternalEndpoint string
	ExternalTimeout  time.Duration
	Fallback         Instructions // compiled fallback expression, empty if none

	// CallRuleset / CallSubPipeline
	TargetRulesetID string

	// ListLookup
	ListID string
	Negate bool

	// CallBuiltin
	BuiltinName string
	Argc        int
}

// Instructions is a linear instruction sequence.
type Instructions []Instruction
