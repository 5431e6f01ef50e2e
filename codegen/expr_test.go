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

func TestCompileExpressionConstantFoldsArithmetic(t *testing.T) {
	expr := &ast.Binary{
		Left:  &ast.Literal{Value: value.Number(2)},
		Op:    ast.OpAdd,
		Right: &ast.Literal{Value: value.Number(3)},
	}
	ins, err := CompileExpression(expr)
	require.NoError(t, err)
	require.Len(t, ins, 1)
	require.Equal(t, ir.OpLoadConst, ins[0].Op)
	require.Equal(t, value.Number(5), ins[0].Const)
}

func TestCompileExpressionFieldAccessEmitsLoadField(t *testing.T) {
	expr := &ast.FieldAccess{Path: []string{"event", "amount"}}
	ins, err := CompileExpression(expr)
	require.NoError(t, err)
	require.Len(t, ins, 1)
	require.Equal(t, ir.OpLoadField, ins[0].Op)
	require.Equal(t, []string{"event", "amount"}, ins[0].Path)
}

func TestCompileExpressionInListReferenceEmitsListLookup(t *testing.T) {
	expr := &ast.Binary{
		Left:  &ast.FieldAccess{Path: []string{"event", "country"}},
		Op:    ast.OpIn,
		Right: &ast.ListReference{ListID: "blocked_countries"},
	}
	ins, err := CompileExpression(expr)
	require.NoError(t, err)
	require.Len(t, ins, 2)
	require.Equal(t, ir.OpListLookup, ins[1].Op)
	require.Equal(t, "blocked_countries", ins[1].ListID)
	require.False(t, ins[1].Negate)
}

func TestCompileExpressionTernaryBranches(t *testing.T) {
	expr := &ast.Ternary{
		Cond: &ast.FieldAccess{Path: []string{"event", "verified"}},
		Then: &ast.Literal{Value: value.Number(0)},
		Else: &ast.Literal{Value: value.Number(10)},
	}
	ins, err := CompileExpression(expr)
	require.NoError(t, err)

	for i, instr := range ins {
		if instr.Op == ir.OpJump || instr.Op == ir.OpJumpIfFalse {
			require.NotEqual(t, ir.PlaceholderOffset, instr.Offset, "instruction %d", i)
		}
	}
}

func TestCompileExpressionLogicalGroupAnyShortCircuits(t *testing.T) {
	expr := &ast.LogicalGroup{
		Op: ast.GroupAny,
		Conditions: []ast.Expression{
			&ast.FieldAccess{Path: []string{"event", "a"}},
			&ast.FieldAccess{Path: []string{"event", "b"}},
		},
	}
	ins, err := CompileExpression(expr)
	require.NoError(t, err)
	require.NotEmpty(t, ins)
}

func TestCompileExpressionRejectsNonLiteralArray(t *testing.T) {
	expr := &ast.ArrayLiteral{Items: []ast.Expression{
		&ast.FieldAccess{Path: []string{"event", "a"}},
	}}
	_, err := CompileExpression(expr)
	require.Error(t, err)
}
