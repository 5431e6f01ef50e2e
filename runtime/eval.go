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
	"context"

	"github.com/pkg/errors"

	"github.com/corint-sh/corint/ast"
	"github.com/corint-sh/corint/collab"
	"github.com/corint-sh/corint/value"
)

// EvalExpr directly evaluates expr against ec, without compiling to
// bytecode first. It implements the same semantics as the codegen
// package's post-order emission (codegen/expr.go), and exists for the
// two callers that need an expression result without a compiled
// Program to run: registry routing (spec §4.7 step 2, "same evaluator
// as WhenBlock") and the trace builder's condition reconstruction
// (spec §4.8). list may be nil; an `in`/`not in list.ID` expression
// then evaluates the list as empty.
func EvalExpr(ctx context.Context, ec *ExecutionContext, list collab.ListService, expr ast.Expression) (value.Value, error) {
	switch n := expr.(type) {
	case *ast.Literal:
		return n.Value, nil

	case *ast.FieldAccess:
		return ec.LoadField(n.Path)

	case *ast.ResultAccess:
		return loadResult(ec, n.RulesetID, n.Field), nil

	case *ast.ArrayLiteral:
		items := make([]value.Value, len(n.Items))
		for i, item := range n.Items {
			v, err := EvalExpr(ctx, ec, list, item)
			if err != nil {
				return value.Null, err
			}
			items[i] = v
		}
		return value.Array(items), nil

	case *ast.ListReference:
		return value.Null, errors.New("runtime: list reference used outside in/not in")

	case *ast.LogicalGroup:
		return evalLogicalGroup(ctx, ec, list, n)

	case *ast.Unary:
		v, err := EvalExpr(ctx, ec, list, n.Operand)
		if err != nil {
			return value.Null, err
		}
		return evalUnary(n.Op, v)

	case *ast.Ternary:
		cond, err := EvalExpr(ctx, ec, list, n.Cond)
		if err != nil {
			return value.Null, err
		}
		if cond.Truthy() {
			return EvalExpr(ctx, ec, list, n.Then)
		}
		return EvalExpr(ctx, ec, list, n.Else)

	case *ast.FunctionCall:
		args := make([]value.Value, len(n.Args))
		for i, a := range n.Args {
			v, err := EvalExpr(ctx, ec, list, a)
			if err != nil {
				return value.Null, err
			}
			args[i] = v
		}
		fn, ok := LookupBuiltin(n.Name)
		if !ok {
			return value.Null, errors.Errorf("runtime: unknown function %q", n.Name)
		}
		return fn(args)

	case *ast.Binary:
		return evalBinary(ctx, ec, list, n)
	}
	return value.Null, errors.Errorf("runtime: unhandled expression node %T", expr)
}

func evalBinary(ctx context.Context, ec *ExecutionContext, list collab.ListService, n *ast.Binary) (value.Value, error) {
	if n.Op == ast.OpIn || n.Op == ast.OpNotIn {
		if listRef, ok := n.Right.(*ast.ListReference); ok {
			left, err := EvalExpr(ctx, ec, list, n.Left)
			if err != nil {
				return value.Null, err
			}
			contains, err := listContains(ctx, list, listRef.ListID, left)
			if err != nil {
				return value.Null, err
			}
			return value.Bool(contains != (n.Op == ast.OpNotIn)), nil
		}
	}

	left, err := EvalExpr(ctx, ec, list, n.Left)
	if err != nil {
		return value.Null, err
	}
	right, err := EvalExpr(ctx, ec, list, n.Right)
	if err != nil {
		return value.Null, err
	}
	return applyBinOp(n.Op, left, right)
}

func listContains(ctx context.Context, list collab.ListService, listID string, v value.Value) (bool, error) {
	if list == nil {
		return false, nil
	}
	return list.Contains(ctx, listID, v)
}

func evalUnary(op ast.Op, v value.Value) (value.Value, error) {
	switch op {
	case ast.OpNot:
		return value.Bool(!v.Truthy()), nil
	case ast.OpNegate:
		if v.Kind() != value.KindNumber {
			return value.Null, errors.Wrapf(ErrRuntimeType, "cannot negate %s", v.Kind())
		}
		return value.Number(-v.AsNumber()), nil
	}
	return value.Null, errors.Errorf("runtime: unknown unary operator %q", op)
}

// applyBinOp dispatches to the value package's per-variant arithmetic
// and string operators, then reclassifies whatever error kind comes
// back (value.ErrType / value.ErrDivisionByZero) into this package's
// own runtime-error taxonomy (spec §7) so TaxonOf resolves it to
// TypeError/DivisionByZero instead of falling through to Internal.
func applyBinOp(op ast.Op, left, right value.Value) (value.Value, error) {
	v, err := rawBinOp(op, left, right)
	return v, reclassify(op, left, right, err)
}

func rawBinOp(op ast.Op, left, right value.Value) (value.Value, error) {
	switch op {
	case ast.OpAdd:
		return value.Add(left, right)
	case ast.OpSub:
		return value.Sub(left, right)
	case ast.OpMul:
		return value.Mul(left, right)
	case ast.OpDiv:
		return value.Div(left, right)
	case ast.OpMod:
		return value.Mod(left, right)
	case ast.OpEq:
		return value.Bool(value.Equal(left, right)), nil
	case ast.OpNeq:
		return value.Bool(!value.Equal(left, right)), nil
	case ast.OpLt, ast.OpLte, ast.OpGt, ast.OpGte:
		cmp, ok := value.Compare(left, right)
		if !ok {
			return value.Null, errors.Wrapf(ErrRuntimeType, "cannot compare %s and %s", left.Kind(), right.Kind())
		}
		return value.Bool(compareOK(op, cmp)), nil
	case ast.OpAnd:
		return value.Bool(left.Truthy() && right.Truthy()), nil
	case ast.OpOr:
		return value.Bool(left.Truthy() || right.Truthy()), nil
	case ast.OpContains:
		return value.Contains(left, right)
	case ast.OpStartsWith:
		return value.StartsWith(left, right)
	case ast.OpEndsWith:
		return value.EndsWith(left, right)
	case ast.OpRegex:
		return value.Matches(left, right)
	case ast.OpIn:
		return value.In(left, right)
	case ast.OpNotIn:
		v, err := value.In(left, right)
		if err != nil {
			return value.Null, err
		}
		return value.Bool(!v.AsBool()), nil
	}
	return value.Null, errors.Errorf("runtime: unknown binary operator %q", op)
}

// reclassify maps a value-package sentinel onto this package's own
// error kind. Errors already tagged with a runtime sentinel (the
// comparison branch above) pass through unchanged.
func reclassify(op ast.Op, left, right value.Value, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, value.ErrDivisionByZero):
		return errors.Wrapf(ErrDivisionByZero, "%s %s %s", left.Kind(), op, right.Kind())
	case errors.Is(err, value.ErrType):
		return errors.Wrapf(ErrRuntimeType, "%s", err)
	default:
		return err
	}
}

func compareOK(op ast.Op, cmp int) bool {
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

func evalLogicalGroup(ctx context.Context, ec *ExecutionContext, list collab.ListService, n *ast.LogicalGroup) (value.Value, error) {
	switch n.Op {
	case ast.GroupAll:
		for _, c := range n.Conditions {
			v, err := EvalExpr(ctx, ec, list, c)
			if err != nil {
				return value.Null, err
			}
			if !v.Truthy() {
				return value.Bool(false), nil
			}
		}
		return value.Bool(true), nil
	case ast.GroupAny:
		for _, c := range n.Conditions {
			v, err := EvalExpr(ctx, ec, list, c)
			if err != nil {
				return value.Null, err
			}
			if v.Truthy() {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	case ast.GroupNot:
		if len(n.Conditions) != 1 {
			return value.Null, errors.New("runtime: not() group requires exactly one condition")
		}
		v, err := EvalExpr(ctx, ec, list, n.Conditions[0])
		if err != nil {
			return value.Null, err
		}
		return value.Bool(!v.Truthy()), nil
	}
	return value.Null, errors.Errorf("runtime: unknown group op %q", n.Op)
}

// loadResult implements ast.ResultAccess: read a field off the current
// ExecutionResult (empty RulesetID) or a specific materialised
// `__ruleset_result__.<id>` object (spec §3).
func loadResult(ec *ExecutionContext, rulesetID, field string) value.Value {
	if rulesetID == "" {
		switch field {
		case "score", "total_score":
			return value.Number(float64(ec.Result.Score))
		case "triggered_rules":
			arr := make([]value.Value, len(ec.Result.TriggeredRules))
			for i, id := range ec.Result.TriggeredRules {
				arr[i] = value.String(id)
			}
			return value.Array(arr)
		case "signal":
			if ec.Result.Signal != nil {
				return value.String(string(*ec.Result.Signal))
			}
			return value.Null
		case "actions":
			arr := make([]value.Value, len(ec.Result.Actions))
			for i, a := range ec.Result.Actions {
				arr[i] = value.String(a)
			}
			return value.Array(arr)
		case "explanation", "explicit_explanation":
			if ec.Result.ExplicitExplanation == "" {
				return value.Null
			}
			return value.String(ec.Result.ExplicitExplanation)
		}
		return value.Null
	}
	return ec.Result.RulesetResult(rulesetID).Get(field)
}

// resolveEventType implements the CheckEventType fallback chain (spec
// §4.6): `event.type`, then `event_type`, then `type`. Since event.type
// and the bare `type` candidate address the same top-level key in
// ec.event (there is no separate outer "event" wrapper in this model),
// the chain collapses to two distinct lookups.
func resolveEventType(ec *ExecutionContext) (string, bool) {
	if v := navigate(ec.event, []string{"type"}); v.Kind() == value.KindString {
		return v.AsString(), true
	}
	if v := navigate(ec.event, []string{"event_type"}); v.Kind() == value.KindString {
		return v.AsString(), true
	}
	return "", false
}

// EvalWhen evaluates w against ec using the same semantics the VM
// applies to a compiled WhenBlock (spec §4.6, §4.7 step 2): an absent
// required event type is fatal; a mismatch is a clean non-match.
func EvalWhen(ctx context.Context, ec *ExecutionContext, list collab.ListService, w ast.WhenBlock) (bool, error) {
	if w.EventType != "" {
		actual, ok := resolveEventType(ec)
		if !ok {
			return false, errors.Wrap(ErrMissingField, "event_type")
		}
		if actual != w.EventType {
			return false, nil
		}
	}
	if w.ConditionGroup == nil {
		return true, nil
	}
	v, err := evalConditionGroupNode(ctx, ec, list, w.ConditionGroup)
	if err != nil {
		return false, err
	}
	return v, nil
}

func evalConditionGroupNode(ctx context.Context, ec *ExecutionContext, list collab.ListService, cg *ast.ConditionGroup) (bool, error) {
	evalOne := func(c ast.Condition) (bool, error) {
		if c.Group != nil {
			return evalConditionGroupNode(ctx, ec, list, c.Group)
		}
		v, err := EvalExpr(ctx, ec, list, c.Expr)
		if err != nil {
			return false, err
		}
		return v.Truthy(), nil
	}

	switch cg.Kind {
	case ast.GroupKindAll:
		for _, c := range cg.Conditions {
			ok, err := evalOne(c)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case ast.GroupKindAny:
		for _, c := range cg.Conditions {
			ok, err := evalOne(c)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case ast.GroupKindNot:
		if len(cg.Conditions) != 1 {
			return false, errors.New("runtime: not condition group requires exactly one condition")
		}
		ok, err := evalOne(cg.Conditions[0])
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
	return false, errors.Errorf("runtime: unknown group kind %q", cg.Kind)
}
