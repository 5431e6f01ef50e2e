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

import "github.com/corint-sh/corint/ir"

// optimize runs the optional passes named in spec §4.4 over prog: dead
// code elimination of instructions unreachable from the entry point.
// Constant folding runs earlier, at expression-emission time (see
// foldBinary in expr.go), since it is far simpler to apply to AST
// literal operands than to reconstruct constant-ness from emitted
// instructions.
func optimize(prog *ir.Program) *ir.Program {
	prog.Instructions = eliminateDeadCode(prog.Instructions)
	if len(prog.DecisionInstructions) > 0 {
		prog.DecisionInstructions = eliminateDeadCode(prog.DecisionInstructions)
	}
	return prog
}

// eliminateDeadCode removes instructions unreachable from index 0 and
// remaps every surviving jump offset to the new indices. Property #3
// (spec §8: "0 ≤ pc + offset ≤ len(instructions)") must hold whether
// or not this pass ran.
func eliminateDeadCode(ins ir.Instructions) ir.Instructions {
	n := len(ins)
	if n == 0 {
		return ins
	}
	reachable := make([]bool, n)
	var walk func(i int)
	walk = func(i int) {
		if i < 0 || i >= n || reachable[i] {
			return
		}
		reachable[i] = true
		instr := ins[i]
		switch instr.Op {
		case ir.OpReturn:
			// terminal: no fallthrough
		case ir.OpJump:
			walk(i + instr.Offset)
		case ir.OpJumpIfTrue, ir.OpJumpIfFalse:
			walk(i + instr.Offset)
			walk(i + 1)
		default:
			walk(i + 1)
		}
	}
	walk(0)

	newIndex := make([]int, n)
	out := make(ir.Instructions, 0, n)
	for i, r := range reachable {
		if r {
			newIndex[i] = len(out)
			out = append(out, ins[i])
		} else {
			newIndex[i] = -1
		}
	}

	for i := range out {
		switch out[i].Op {
		case ir.OpJump, ir.OpJumpIfTrue, ir.OpJumpIfFalse:
			oldTarget := origIndexOf(reachable, i) + out[i].Offset
			if oldTarget >= n {
				// target is the halting sentinel just past the
				// original end; land on the new end instead.
				out[i].Offset = len(out) - i
				continue
			}
			newTarget := newIndex[oldTarget]
			out[i].Offset = newTarget - i
		}
	}
	return out
}

// origIndexOf maps a post-elimination index back to its pre-elimination
// index by counting reachable slots.
func origIndexOf(reachable []bool, newIdx int) int {
	count := -1
	for i, r := range reachable {
		if r {
			count++
			if count == newIdx {
				return i
			}
		}
	}
	return -1
}
