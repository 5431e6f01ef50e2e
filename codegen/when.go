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

// emitEventTypeCheck emits the head-of-program CheckEventType
// pre-check when w.EventType is set (spec §4.4/§4.6). It has no stack
// effect; on mismatch the VM halts the program by jumping to its end.
func emitEventTypeCheck(e *emitter, w ast.WhenBlock) {
	if w.EventType == "" {
		return
	}
	e.emit(ir.Instruction{Op: ir.OpCheckEventType, ExpectedEventType: w.EventType})
}

// emitConditionGroup compiles w's ConditionGroup to a single boolean
// pushed onto the stack. A nil group is vacuously true.
func emitConditionGroup(e *emitter, cg *ast.ConditionGroup) error {
	if cg == nil {
		e.emit(ir.Instruction{Op: ir.OpLoadConst, Const: trueConst()})
		return nil
	}
	switch cg.Kind {
	case ast.GroupKindAll:
		return emitConditionCombinator(e, cg.Conditions, ir.OpJumpIfFalse, falseConst, trueConst)
	case ast.GroupKindAny:
		return emitConditionCombinator(e, cg.Conditions, ir.OpJumpIfTrue, trueConst, falseConst)
	case ast.GroupKindNot:
		if len(cg.Conditions) != 1 {
			return errors.New("codegen: not condition group requires exactly one condition")
		}
		if err := emitCondition(e, cg.Conditions[0]); err != nil {
			return err
		}
		e.emit(ir.Instruction{Op: ir.OpUnaryOp, BinOp: ast.OpNot})
		return nil
	}
	return errors.Errorf("codegen: unknown group kind %q", cg.Kind)
}

// emitConditionCombinator implements the shared short-circuit shape used
// by both All (short-circuits to false on the first false child) and
// Any (short-circuits to true on the first true child): evaluate each
// condition, emit a conditional jump to the short-circuit landing, and
// fall through to survivedConst if none short-circuited.
func emitConditionCombinator(e *emitter, conds []ast.Condition, shortCircuitOp ir.Op, shortCircuitConst, survivedConst func() value.Value) error {
	var shortCircuit []int
	for _, c := range conds {
		if err := emitCondition(e, c); err != nil {
			return err
		}
		shortCircuit = append(shortCircuit, e.placeholderJump(shortCircuitOp))
	}
	e.emit(ir.Instruction{Op: ir.OpLoadConst, Const: survivedConst()})
	end := e.placeholderJump(ir.OpJump)
	landing := e.len()
	e.emit(ir.Instruction{Op: ir.OpLoadConst, Const: shortCircuitConst()})
	for _, idx := range shortCircuit {
		e.patchTo(idx, landing)
	}
	e.patchToEnd(end)
	return nil
}

func emitCondition(e *emitter, c ast.Condition) error {
	if c.Group != nil {
		return emitConditionGroup(e, c.Group)
	}
	return emitExpr(e, c.Expr)
}
