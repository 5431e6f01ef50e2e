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
	"github.com/corint-sh/corint/signal"
	"github.com/corint-sh/corint/value"
)

func TestCompileRulesetFirstMatchWins(t *testing.T) {
	rs := &ast.Ruleset{
		ID:    "rs1",
		Name:  "fraud bundle",
		Rules: []string{"r1", "r2", "r1"},
		Conclusion: []ast.DecisionRule{
			{
				Condition: &ast.Binary{
					Left:  &ast.ResultAccess{Field: "total_score"},
					Op:    ast.OpGte,
					Right: &ast.Literal{Value: value.Number(50)},
				},
				Signal: signal.Decline,
			},
			{Default: true, Signal: signal.Approve},
		},
	}

	prog, err := CompileRuleset(rs)
	require.NoError(t, err)
	require.Equal(t, "r1,r2", prog.Metadata.Custom[ir.CustomRules])
	require.NotEmpty(t, prog.Metadata.Custom[ir.CustomConclusionJSON])

	var sawSetSignal, sawReturn bool
	for i, instr := range prog.Instructions {
		if instr.Op == ir.OpSetSignal {
			sawSetSignal = true
		}
		if instr.Op == ir.OpReturn {
			sawReturn = true
		}
		if instr.Op == ir.OpJump || instr.Op == ir.OpJumpIfFalse {
			require.NotEqual(t, ir.PlaceholderOffset, instr.Offset, "instruction %d", i)
		}
	}
	require.True(t, sawSetSignal)
	require.True(t, sawReturn)
}

func TestCompileRulesetRejectsMisplacedDefault(t *testing.T) {
	rs := &ast.Ruleset{
		ID: "rs2",
		Conclusion: []ast.DecisionRule{
			{Default: true, Signal: signal.Approve},
			{Condition: &ast.Literal{Value: value.Bool(true)}, Signal: signal.Decline},
		},
	}
	_, err := CompileRuleset(rs)
	require.ErrorIs(t, err, ErrMisplacedDefault)
}

func TestCompileRulesetRejectsMultipleDefaults(t *testing.T) {
	rs := &ast.Ruleset{
		ID: "rs3",
		Conclusion: []ast.DecisionRule{
			{Default: true, Signal: signal.Approve},
			{Default: true, Signal: signal.Decline},
		},
	}
	_, err := CompileRuleset(rs)
	require.ErrorIs(t, err, ErrMisplacedDefault)
}
