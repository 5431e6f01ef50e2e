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
	"github.com/pkg/errors"

	"github.com/corint-sh/corint/ast"
	"github.com/corint-sh/corint/ir"
	"github.com/corint-sh/corint/value"
)

// CompileExpression compiles a standalone expression (e.g. a pipeline
// step param or feature filter) to IR. The result always leaves
// exactly one Value on the stack.
func CompileExpression(expr ast.Expression) (ir.Instructions, error) {
	e := newEmitter()
	if err := emitExpr(e, expr); err != nil {
		return nil, err
	}
	return e.result(), nil
}

func trueConst() value.Value  { return value.Bool(true) }
func falseConst() value.Value { return value.Bool(false) }

// emitExpr performs a post-order emission of expr: operands first,
// then the operator (spec §4.4: "post-order emit of loads / ops").
func emitExpr(e *emitter, expr ast.Expression) error {
	switch n := expr.(type) {
	case *ast.Literal:
		e.emit(ir.Instruction{Op: ir.OpLoadConst, Const: n.Value})
		return nil

	case *ast.FieldAccess:
		e.emit(ir.Instruction{Op: ir.OpLoadField, Path: n.Path})
		return nil

	case *ast.ResultAccess:
		e.emit(ir.Instruction{Op: ir.OpLoadResult, RulesetID: n.RulesetID, Field: n.Field})
		return nil

	case *ast.ArrayLiteral:
		items := make([]value.Value, len(n.Items))
		for i, item := range n.Items {
			lit, ok := item.(*ast.Literal)
			if !ok {
				return errors.Errorf("codegen: array literal element %d is not a literal; only literal arrays are supported (e.g. as the right-hand side of in/not in)", i)
			}
			items[i] = lit.Value
		}
		e.emit(ir.Instruction{Op: ir.OpLoadConst, Const: value.Array(items)})
		return nil

	case *ast.ListReference:
		return errors.New("codegen: list reference used outside in/not in")

	case *ast.LogicalGroup:
		return emitLogicalGroup(e, n)

	case *ast.Unary:
		if err := emitExpr(e, n.Operand); err != nil {
			return err
		}
		e.emit(ir.Instruction{Op: ir.OpUnaryOp, BinOp: n.Op})
		return nil

	case *ast.Ternary:
		return emitTernary(e, n)

	case *ast.FunctionCall:
		for _, arg := range n.Args {
			if err := emitExpr(e, arg); err != nil {
				return err
			}
		}
		e.emit(ir.Instruction{Op: ir.OpCallBuiltin, BuiltinName: n.Name, Argc: len(n.Args)})
		return nil

	case *ast.Binary:
		return emitBinary(e, n)
	}
	return errors.Errorf("codegen: unhandled expression node %T", expr)
}

func emitBinary(e *emitter, n *ast.Binary) error {
	if n.Op == ast.OpIn || n.Op == ast.OpNotIn {
		if listRef, ok := n.Right.(*ast.ListReference); ok {
			if err := emitExpr(e, n.Left); err != nil {
				return err
			}
			e.emit(ir.Instruction{Op: ir.OpListLookup, ListID: listRef.ListID, Negate: n.Op == ast.OpNotIn})
			return nil
		}
	}

	if folded, ok := foldBinary(n); ok {
		e.emit(ir.Instruction{Op: ir.OpLoadConst, Const: folded})
		return nil
	}

	if err := emitExpr(e, n.Left); err != nil {
		return err
	}
	if err := emitExpr(e, n.Right); err != nil {
		return err
	}

	switch n.Op {
	case ast.OpEq, ast.OpNeq, ast.OpLt, ast.OpLte, ast.OpGt, ast.OpGte:
		e.emit(ir.Instruction{Op: ir.OpCompare, BinOp: n.Op})
	default:
		e.emit(ir.Instruction{Op: ir.OpBinaryOp, BinOp: n.Op})
	}
	return nil
}

// foldBinary constant-folds a Binary node whose operands are both
// literals (spec §4.4: "constant folding on pure binary/unary nodes
// whose operands are literals"). It reports ok=false for anything it
// can't evaluate at compile time (list/in lookups, unsupported
// operator/operand combinations), leaving normal emission to handle
// those.
func foldBinary(n *ast.Binary) (value.Value, bool) {
	left, ok := n.Left.(*ast.Literal)
	if !ok {
		return value.Null, false
	}
	right, ok := n.Right.(*ast.Literal)
	if !ok {
		return value.Null, false
	}

	switch n.Op {
	case ast.OpAdd:
		v, err := value.Add(left.Value, right.Value)
		return v, err == nil
	case ast.OpSub:
		v, err := value.Sub(left.Value, right.Value)
		return v, err == nil
	case ast.OpMul:
		v, err := value.Mul(left.Value, right.Value)
		return v, err == nil
	case ast.OpDiv:
		v, err := value.Div(left.Value, right.Value)
		return v, err == nil
	case ast.OpMod:
		v, err := value.Mod(left.Value, right.Value)
		return v, err == nil
	case ast.OpEq:
		return value.Bool(value.Equal(left.Value, right.Value)), true
	case ast.OpNeq:
		return value.Bool(!value.Equal(left.Value, right.Value)), true
	case ast.OpLt, ast.OpLte, ast.OpGt, ast.OpGte:
		cmp, ok := value.Compare(left.Value, right.Value)
		if !ok {
			return value.Null, false
		}
		return value.Bool(evalCompare(n.Op, cmp)), true
	case ast.OpAnd:
		return value.Bool(left.Value.Truthy() && right.Value.Truthy()), true
	case ast.OpOr:
		return value.Bool(left.Value.Truthy() || right.Value.Truthy()), true
	case ast.OpContains:
		v, err := value.Contains(left.Value, right.Value)
		return v, err == nil
	case ast.OpStartsWith:
		v, err := value.StartsWith(left.Value, right.Value)
		return v, err == nil
	case ast.OpEndsWith:
		v, err := value.EndsWith(left.Value, right.Value)
		return v, err == nil
	case ast.OpRegex:
		v, err := value.Matches(left.Value, right.Value)
		return v, err == nil
	case ast.OpIn:
		v, err := value.In(left.Value, right.Value)
		return v, err == nil
	case ast.OpNotIn:
		v, err := value.In(left.Value, right.Value)
		if err != nil {
			return value.Null, false
		}
		return value.Bool(!v.AsBool()), true
	}
	return value.Null, false
}

func evalCompare(op ast.Op, cmp int) bool {
	switch op {
	case ast.OpLt:
		return cmp < 0
	case ast.OpLte:
		return cmp <= 0
	case ast.OpGt:
		return cmp > 0
	case ast.OpGte:
		return cmp >= 0
	}
	return false
}

// emitLogicalGroup compiles an inline any(...)/all(...) combinator by
// short-circuiting: any() jumps to a true-landing on the first truthy
// child, all() jumps to a false-landing on the first falsy child.
func emitLogicalGroup(e *emitter, n *ast.LogicalGroup) error {
	switch n.Op {
	case ast.GroupAll:
		var shortCircuit []int
		for _, c := range n.Conditions {
			if err := emitExpr(e, c); err != nil {
				return err
			}
			shortCircuit = append(shortCircuit, e.placeholderJump(ir.OpJumpIfFalse))
		}
		e.emit(ir.Instruction{Op: ir.OpLoadConst, Const: trueConst()})
		end := e.placeholderJump(ir.OpJump)
		falseLanding := e.len()
		e.emit(ir.Instruction{Op: ir.OpLoadConst, Const: falseConst()})
		for _, idx := range shortCircuit {
			e.patchTo(idx, falseLanding)
		}
		e.patchToEnd(end)
		return nil

	case ast.GroupAny:
		var shortCircuit []int
		for _, c := range n.Conditions {
			if err := emitExpr(e, c); err != nil {
				return err
			}
			shortCircuit = append(shortCircuit, e.placeholderJump(ir.OpJumpIfTrue))
		}
		e.emit(ir.Instruction{Op: ir.OpLoadConst, Const: falseConst()})
		end := e.placeholderJump(ir.OpJump)
		trueLanding := e.len()
		e.emit(ir.Instruction{Op: ir.OpLoadConst, Const: trueConst()})
		for _, idx := range shortCircuit {
			e.patchTo(idx, trueLanding)
		}
		e.patchToEnd(end)
		return nil

	case ast.GroupNot:
		if len(n.Conditions) != 1 {
			return errors.New("codegen: not() group requires exactly one condition")
		}
		if err := emitExpr(e, n.Conditions[0]); err != nil {
			return err
		}
		e.emit(ir.Instruction{Op: ir.OpUnaryOp, BinOp: ast.OpNot})
		return nil
	}
	return errors.Errorf("codegen: unknown group op %q", n.Op)
}

func emitTernary(e *emitter, n *ast.Ternary) error {
	if err := emitExpr(e, n.Cond); err != nil {
		return err
	}
	elseJump := e.placeholderJump(ir.OpJumpIfFalse)
	if err := emitExpr(e, n.Then); err != nil {
		return err
	}
	end := e.placeholderJump(ir.OpJump)
	e.patchToEnd(elseJump)
	if err := emitExpr(e, n.Else); err != nil {
		return err
	}
	e.patchToEnd(end)
	return nil
}
