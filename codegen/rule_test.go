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

package codegen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corint-sh/corint/ast"
	"github.com/corint-sh/corint/ir"
	"github.com/corint-sh/corint/value"
)

func TestCompileRuleEmitsScoreAndTrigger(t *testing.T) {
	rule := &ast.Rule{
		ID:    "high_velocity",
		Name:  "High velocity",
		Score: 25,
		When: ast.WhenBlock{
			EventType: "transaction",
			ConditionGroup: &ast.ConditionGroup{
				Kind: ast.GroupKindAll,
				Conditions: []ast.Condition{
					{Expr: &ast.Binary{
						Left:  &ast.FieldAccess{Path: []string{"event", "velocity_ratio"}},
						Op:    ast.OpGt,
						Right: &ast.Literal{Value: value.Number(2)},
					}},
				},
			},
		},
	}

	prog, err := CompileRule(rule)
	require.NoError(t, err)
	require.Equal(t, ir.SourceRule, prog.Metadata.SourceType)
	require.Equal(t, "high_velocity", prog.Metadata.SourceID)
	require.NotEmpty(t, prog.Metadata.Custom[ir.CustomConditionGroupJSON])

	var sawCheckType, sawAddScore, sawTrigger, sawReturn bool
	for _, instr := range prog.Instructions {
		switch instr.Op {
		case ir.OpCheckEventType:
			sawCheckType = true
			require.Equal(t, "transaction", instr.ExpectedEventType)
		case ir.OpAddScore:
			sawAddScore = true
			require.EqualValues(t, 25, instr.Amount)
			require.Equal(t, "high_velocity", instr.RuleID)
		case ir.OpMarkRuleTriggered:
			sawTrigger = true
		case ir.OpReturn:
			sawReturn = true
		}
	}
	require.True(t, sawCheckType)
	require.True(t, sawAddScore)
	require.True(t, sawTrigger)
	require.True(t, sawReturn)
}

func TestCompileRuleWithConstantConditionStillCompiles(t *testing.T) {
	rule := &ast.Rule{
		ID:    "never",
		Score: 10,
		When: ast.WhenBlock{
			ConditionGroup: &ast.ConditionGroup{
				Kind: ast.GroupKindAll,
				Conditions: []ast.Condition{
					{Expr: &ast.Literal{Value: value.Bool(false)}},
				},
			},
		},
	}
	prog, err := CompileRule(rule)
	require.NoError(t, err)

	// The scoring block stays reachable through the runtime JumpIfFalse
	// even though the condition is a compile-time constant — codegen
	// does not fold across the jump, only the operands feeding it.
	var sawAddScore bool
	for _, instr := range prog.Instructions {
		if instr.Op == ir.OpAddScore {
			sawAddScore = true
		}
	}
	require.True(t, sawAddScore)
}
