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
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/corint-sh/corint/ast"
	"github.com/corint-sh/corint/ir"
)

// ErrMisplacedDefault is raised when a Ruleset's conclusion carries a
// default row that isn't last, or carries more than one (spec §3:
// "at most one default:true ... permitted and must be last").
var ErrMisplacedDefault = errors.New("ruleset conclusion default row must be unique and last")

// CompileRuleset compiles a Ruleset's conclusion table to a Program
// (spec §4.4): top-down, first-match; the matching row's action block
// (SetSignal, optional SetReason, SetActions) runs, then a jump to the
// shared end; a default row runs its action block unconditionally.
func CompileRuleset(rs *ast.Ruleset) (*ir.Program, error) {
	if err := validateConclusion(rs.Conclusion); err != nil {
		return nil, err
	}

	e := newEmitter()
	var jumpsToEnd []int

	for _, row := range rs.Conclusion {
		var skip int
		hasSkip := false
		if !row.Default {
			if err := emitExpr(e, row.Condition); err != nil {
				return nil, err
			}
			skip = e.placeholderJump(ir.OpJumpIfFalse)
			hasSkip = true
		}

		e.emit(ir.Instruction{Op: ir.OpSetSignal, Signal: string(row.Signal)})
		if row.Reason != "" {
			e.emit(ir.Instruction{Op: ir.OpSetReason, Reason: row.Reason})
		}
		e.emit(ir.Instruction{Op: ir.OpSetActions, Actions: row.Actions})
		jumpsToEnd = append(jumpsToEnd, e.placeholderJump(ir.OpJump))

		if hasSkip {
			e.patchToEnd(skip)
		}
	}

	end := e.len()
	for _, idx := range jumpsToEnd {
		e.patchTo(idx, end)
	}
	e.emit(ir.Instruction{Op: ir.OpReturn})

	conclusionJSON, err := renderConclusionJSON(rs.Conclusion)
	if err != nil {
		return nil, err
	}

	prog := &ir.Program{
		Instructions: e.result(),
		Metadata: ir.ProgramMetadata{
			SourceType: ir.SourceRuleset,
			SourceID:   rs.ID,
			Name:       rs.Name,
			Custom: map[string]string{
				ir.CustomRules:          strings.Join(dedupe(rs.Rules), ","),
				ir.CustomConclusionJSON: conclusionJSON,
			},
		},
	}
	return optimize(prog), nil
}

func validateConclusion(rows []ast.DecisionRule) error {
	defaults := 0
	for i, row := range rows {
		if row.Default {
			defaults++
			if i != len(rows)-1 {
				return ErrMisplacedDefault
			}
		}
	}
	if defaults > 1 {
		return ErrMisplacedDefault
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type conclusionRowJSON struct {
	Condition string   `json:"condition,omitempty"`
	Default   bool     `json:"default,omitempty"`
	Signal    string   `json:"signal"`
	Actions   []string `json:"actions,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

func renderConclusionJSON(rows []ast.DecisionRule) (string, error) {
	out := make([]conclusionRowJSON, 0, len(rows))
	for _, row := range rows {
		cond := ""
		if !row.Default {
			cond = ast.Render(row.Condition)
		}
		out = append(out, conclusionRowJSON{
			Condition: cond,
			Default:   row.Default,
			Signal:    string(row.Signal),
			Actions:   row.Actions,
			Reason:    row.Reason,
		})
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", errors.Wrap(err, "codegen: rendering conclusion_json")
	}
	return string(b), nil
}
