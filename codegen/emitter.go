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

// Package codegen compiles Corint AST artifacts into IR programs
// (spec §4.4): expressions, rules, rulesets and pipelines.
package codegen

import "github.com/corint-sh/corint/ir"

// emitter accumulates an instruction stream and supports the
// placeholder/back-patch discipline spec §4.4/§9 require: jumps whose
// target isn't known yet are emitted with ir.PlaceholderOffset and
// rewritten once the final length is known.
type emitter struct {
	ins ir.Instructions
}

func newEmitter() *emitter { return &emitter{} }

func (e *emitter) emit(instr ir.Instruction) int {
	e.ins = append(e.ins, instr)
	return len(e.ins) - 1
}

// placeholderJump emits a Jump/JumpIfTrue/JumpIfFalse with offset
// ir.PlaceholderOffset and returns its index for a later patch call.
func (e *emitter) placeholderJump(op ir.Op) int {
	return e.emit(ir.Instruction{Op: op, Offset: ir.PlaceholderOffset})
}

// patchToEnd rewrites the jump at idx so it lands exactly at the
// current end of the instruction stream.
func (e *emitter) patchToEnd(idx int) {
	e.ins[idx].Offset = len(e.ins) - idx
}

// patchTo rewrites the jump at idx so it lands at instruction index
// target.
func (e *emitter) patchTo(idx, target int) {
	e.ins[idx].Offset = target - idx
}

func (e *emitter) len() int { return len(e.ins) }

func (e *emitter) result() ir.Instructions { return e.ins }
