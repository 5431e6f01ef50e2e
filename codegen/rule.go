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
	"github.com/corint-sh/corint/ast"
	"github.com/corint-sh/corint/ir"
)

// CompileRule compiles a Rule to a Program (spec §4.4): evaluate
// when.condition_group; on true, AddScore then MarkRuleTriggered; on
// false, skip straight to Return.
func CompileRule(rule *ast.Rule) (*ir.Program, error) {
	e := newEmitter()

	emitEventTypeCheck(e, rule.When)

	if err := emitConditionGroup(e, rule.When.ConditionGroup); err != nil {
		return nil, err
	}
	skip := e.placeholderJump(ir.OpJumpIfFalse)

	e.emit(ir.Instruction{Op: ir.OpAddScore, RuleID: rule.ID, Amount: rule.Score})
	e.emit(ir.Instruction{Op: ir.OpMarkRuleTriggered, RuleID: rule.ID})

	e.patchToEnd(skip)
	e.emit(ir.Instruction{Op: ir.OpReturn})

	prog := &ir.Program{
		Instructions: e.result(),
		Metadata: ir.ProgramMetadata{
			SourceType: ir.SourceRule,
			SourceID:   rule.ID,
			Name:       rule.Name,
			Custom: map[string]string{
				ir.CustomConditionGroupJSON: ast.RenderConditionGroup(rule.When.ConditionGroup),
			},
		},
	}
	return optimize(prog), nil
}
