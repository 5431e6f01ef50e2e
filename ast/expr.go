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

// Package ast holds the recursive AST produced by the expression parser
// (spec §3, §4.1) and the artifact-level shapes produced by the YAML
// loaders (spec §4.2): Rule, Ruleset, Pipeline and Registry.
package ast

import "github.com/corint-sh/corint/value"

// Expression is the sealed interface implemented by every expression AST
// node variant (spec §3).
type Expression interface {
	exprNode()
}

// Op is an expression operator spelling, shared by Binary/Unary nodes.
type Op string

const (
	OpEq         Op = "=="
	OpNeq        Op = "!="
	OpLt         Op = "<"
	OpLte        Op = "<="
	OpGt         Op = ">"
	OpGte        Op = ">="
	OpAdd        Op = "+"
	OpSub        Op = "-"
	OpMul        Op = "*"
	OpDiv        Op = "/"
	OpMod        Op = "%"
	OpAnd        Op = "&&"
	OpOr         Op = "||"
	OpContains   Op = "contains"
	OpStartsWith Op = "starts_with"
	OpEndsWith   Op = "ends_with"
	OpRegex      Op = "=~"
	OpIn         Op = "in"
	OpNotIn      Op = "not in"

	OpNot    Op = "!"
	OpNegate Op = "-" // unary minus
)

// Literal is a constant Value baked in at parse time.
type Literal struct{ Value value.Value }

// FieldAccess addresses a dotted path such as event.user.country.
type FieldAccess struct{ Path []string }

// Binary is a two-operand expression: `left OP right`.
type Binary struct {
	Left  Expression
	Op    Op
	Right Expression
}

// Unary is a single-operand prefix expression: `OP operand`.
type Unary struct {
	Op      Op
	Operand Expression
}

// FunctionCall invokes a named built-in or user-registered function.
type FunctionCall struct {
	Name string
	Args []Expression
}

// Ternary is `cond ? then : else`.
type Ternary struct {
	Cond Expression
	Then Expression
	Else Expression
}

// GroupOp names the combinator for a LogicalGroup / ConditionGroup.
type GroupOp string

const (
	GroupAny GroupOp = "any"
	GroupAll GroupOp = "all"
	GroupNot GroupOp = "not"
)

// LogicalGroup is an inline `any(...)`/`all(...)` combinator over a list of
// sub-expressions, distinct from the top-level WhenBlock ConditionGroup.
type LogicalGroup struct {
	Op         GroupOp
	Conditions []Expression
}

// ListReference names a configured list (configs/lists/*.yaml) for use with
// `in list.ID` / `not in list.ID`.
type ListReference struct{ ListID string }

// ResultAccess reads a field off the accumulating ExecutionResult, or off a
// specific ruleset's materialised result when RulesetID is non-empty.
type ResultAccess struct {
	RulesetID string // empty means "current"/last ruleset result
	Field     string
}

// ArrayLiteral is a literal `[a, b, c]` expression.
type ArrayLiteral struct{ Items []Expression }

func (*Literal) exprNode()      {}
func (*FieldAccess) exprNode()  {}
func (*Binary) exprNode()       {}
func (*Unary) exprNode()        {}
func (*FunctionCall) exprNode() {}
func (*Ternary) exprNode()      {}
func (*LogicalGroup) exprNode() {}
func (*ListReference) exprNode() {}
func (*ResultAccess) exprNode() {}
func (*ArrayLiteral) exprNode() {}
