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

package semantic

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/corint-sh/corint/ast"
	"github.com/corint-sh/corint/value"
)

// TypeError reports a semantic/type failure at a specific expression
// node (spec §7: "TypeError | C4 | Fail the compile").
type TypeError struct {
	Detail string
	Cause  error
}

func (e *TypeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("type error: %s: %v", e.Detail, e.Cause)
	}
	return "type error: " + e.Detail
}

func (e *TypeError) Unwrap() error { return e.Cause }

func typeErr(format string, args ...any) error {
	return &TypeError{Detail: fmt.Sprintf(format, args...)}
}

// Scope resolves identifiers whose type cannot be derived purely from
// syntax: field paths, function calls, list references.
type Scope struct {
	// FieldType returns the declared type of a dotted field path, or
	// Unknown if the field isn't statically known (the common case:
	// spec §4.5 fields are resolved dynamically against request data).
	FieldType func(path []string) Type

	// FunctionReturn returns the declared return type of a named
	// builtin/registered function, or Any if unknown.
	FunctionReturn func(name string, argc int) Type
}

// DefaultScope treats every field and function as statically unknown,
// the conservative default used when no declared event/feature schema
// is available.
func DefaultScope() *Scope {
	return &Scope{
		FieldType:      func([]string) Type { return Unknown },
		FunctionReturn: func(string, int) Type { return Any },
	}
}

// Check walks expr and returns its lattice type, or the first
// TypeError encountered (spec §4.3).
func Check(expr ast.Expression, scope *Scope) (Type, error) {
	if scope == nil {
		scope = DefaultScope()
	}
	switch n := expr.(type) {
	case *ast.Literal:
		return typeOfValue(n.Value), nil

	case *ast.FieldAccess:
		return scope.FieldType(n.Path), nil

	case *ast.ListReference:
		return ArrayOf(Unknown), nil

	case *ast.ResultAccess:
		return Unknown, nil

	case *ast.ArrayLiteral:
		elem := Unknown
		for i, item := range n.Items {
			t, err := Check(item, scope)
			if err != nil {
				return Type{}, err
			}
			if i == 0 {
				elem = t
			} else {
				elem = Join(elem, t)
			}
		}
		return ArrayOf(elem), nil

	case *ast.FunctionCall:
		for _, arg := range n.Args {
			if _, err := Check(arg, scope); err != nil {
				return Type{}, err
			}
		}
		return scope.FunctionReturn(n.Name, len(n.Args)), nil

	case *ast.Unary:
		operand, err := Check(n.Operand, scope)
		if err != nil {
			return Type{}, err
		}
		switch n.Op {
		case ast.OpNot:
			if !wildcard(operand) && operand.Kind != KindBoolean {
				return Type{}, typeErr("unary ! requires Boolean, got %s", operand)
			}
			return Boolean, nil
		case ast.OpNegate:
			if !wildcard(operand) && operand.Kind != KindNumber {
				return Type{}, typeErr("unary - requires Number, got %s", operand)
			}
			return Number, nil
		}
		return Type{}, typeErr("unknown unary operator %q", n.Op)

	case *ast.Ternary:
		cond, err := Check(n.Cond, scope)
		if err != nil {
			return Type{}, err
		}
		if !wildcard(cond) && cond.Kind != KindBoolean {
			return Type{}, typeErr("ternary condition must be Boolean, got %s", cond)
		}
		then, err := Check(n.Then, scope)
		if err != nil {
			return Type{}, err
		}
		els, err := Check(n.Else, scope)
		if err != nil {
			return Type{}, err
		}
		return Join(then, els), nil

	case *ast.LogicalGroup:
		for _, c := range n.Conditions {
			t, err := Check(c, scope)
			if err != nil {
				return Type{}, err
			}
			if !wildcard(t) && t.Kind != KindBoolean {
				return Type{}, typeErr("logical group child must be Boolean, got %s", t)
			}
		}
		return Boolean, nil

	case *ast.Binary:
		return checkBinary(n, scope)
	}
	return Type{}, errors.Errorf("semantic: unhandled expression node %T", expr)
}

func checkBinary(n *ast.Binary, scope *Scope) (Type, error) {
	left, err := Check(n.Left, scope)
	if err != nil {
		return Type{}, err
	}
	right, err := Check(n.Right, scope)
	if err != nil {
		return Type{}, err
	}

	switch n.Op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod:
		if !numericOrWild(left) || !numericOrWild(right) {
			return Type{}, typeErr("arithmetic %q requires Number operands, got %s and %s", n.Op, left, right)
		}
		return Number, nil

	case ast.OpEq, ast.OpNeq, ast.OpLt, ast.OpLte, ast.OpGt, ast.OpGte:
		if !comparableKind(left) || !comparableKind(right) || !Compatible(left, right) {
			return Type{}, typeErr("comparison %q requires compatible comparable operands, got %s and %s", n.Op, left, right)
		}
		return Boolean, nil

	case ast.OpAnd, ast.OpOr:
		if !boolOrWild(left) || !boolOrWild(right) {
			return Type{}, typeErr("logical %q requires Boolean operands, got %s and %s", n.Op, left, right)
		}
		return Boolean, nil

	case ast.OpIn, ast.OpNotIn:
		if !wildcard(right) && right.Kind != KindArray {
			return Type{}, typeErr("%q requires an Array right-hand side, got %s", n.Op, right)
		}
		return Boolean, nil

	case ast.OpContains, ast.OpStartsWith, ast.OpEndsWith, ast.OpRegex:
		if !stringOrWild(left) || !stringOrWild(right) {
			return Type{}, typeErr("string operator %q requires String operands, got %s and %s", n.Op, left, right)
		}
		return Boolean, nil
	}
	return Type{}, typeErr("unknown binary operator %q", n.Op)
}

func numericOrWild(t Type) bool { return wildcard(t) || t.Kind == KindNumber }
func boolOrWild(t Type) bool    { return wildcard(t) || t.Kind == KindBoolean }
func stringOrWild(t Type) bool  { return wildcard(t) || t.Kind == KindString }

func comparableKind(t Type) bool {
	switch t.Kind {
	case KindNumber, KindString, KindBoolean, KindAny, KindUnknown:
		return true
	default:
		return false
	}
}

func typeOfValue(v value.Value) Type {
	switch v.Kind() {
	case value.KindNull:
		return Any
	case value.KindBool:
		return Boolean
	case value.KindNumber:
		return Number
	case value.KindString:
		return String
	case value.KindArray:
		return ArrayOf(Unknown)
	case value.KindObject:
		return Object
	default:
		return Unknown
	}
}
