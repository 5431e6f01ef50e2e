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
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/corint-sh/corint/ast"
	"github.com/corint-sh/corint/dag"
	"github.com/corint-sh/corint/ir"
)

type stepID string

func (s stepID) String() string { return string(s) }

// jumpTarget is a pending unconditional/conditional jump whose target
// step hasn't been linearised yet; resolved once every step's start
// index is known.
type jumpTarget struct {
	idx    int
	target string // step id, or ast.EndStep
}

// CompilePipeline compiles a Pipeline's step DAG to a Program (spec
// §3, §4.4, §4.7). Steps are linearised starting from Entry; each step
// emits its body followed by a jump (or, for router steps, one
// conditional jump per route plus a default) to its successor. The
// pipeline-level `decision:` block, if present, compiles separately
// into Program.DecisionInstructions (spec §4.4/§4.6).
func CompilePipeline(p *ast.Pipeline) (*ir.Program, error) {
	if err := validateStepGraph(p); err != nil {
		return nil, err
	}
	order := linearize(p)

	byID := make(map[string]*ast.PipelineStep, len(p.Steps))
	for i := range p.Steps {
		byID[p.Steps[i].ID] = &p.Steps[i]
	}

	e := newEmitter()
	var pipelineEnd []int

	if p.When != nil {
		emitEventTypeCheck(e, *p.When)
		if err := emitConditionGroup(e, p.When.ConditionGroup); err != nil {
			return nil, err
		}
		pipelineEnd = append(pipelineEnd, e.placeholderJump(ir.OpJumpIfFalse))
	}

	starts := make(map[string]int, len(order))
	var pending []jumpTarget

	for _, id := range order {
		step := byID[id]
		starts[step.ID] = e.len()
		stepPending, err := emitStep(e, step)
		if err != nil {
			return nil, errors.Wrapf(err, "codegen: compiling pipeline step %q", step.ID)
		}
		pending = append(pending, stepPending...)
	}

	end := e.len()
	e.emit(ir.Instruction{Op: ir.OpReturn})

	for _, j := range pending {
		if j.target == ast.EndStep {
			e.patchTo(j.idx, end)
			continue
		}
		target, ok := starts[j.target]
		if !ok {
			return nil, errors.Errorf("codegen: pipeline %q references unknown step %q", p.ID, j.target)
		}
		e.patchTo(j.idx, target)
	}
	for _, idx := range pipelineEnd {
		e.patchTo(idx, end)
	}

	decisionIns, err := compileDecision(p.Decision)
	if err != nil {
		return nil, err
	}

	stepsJSON, err := renderStepsJSON(p.Steps)
	if err != nil {
		return nil, err
	}

	custom := map[string]string{
		ir.CustomStepsJSON: stepsJSON,
	}
	if p.When != nil && p.When.ConditionGroup != nil {
		custom[ir.CustomWhenConditions] = ast.RenderConditionGroup(p.When.ConditionGroup)
	}

	prog := &ir.Program{
		Instructions:         e.result(),
		Metadata:             ir.ProgramMetadata{SourceType: ir.SourcePipeline, SourceID: p.ID, Name: p.Name, Custom: custom},
		DecisionInstructions: decisionIns,
	}
	return optimize(prog), nil
}

// validateStepGraph checks the step graph is acyclic (spec §4.4: a
// pipeline's routing steps must not cycle) using package dag.
func validateStepGraph(p *ast.Pipeline) error {
	g := dag.New[stepID]()
	for _, s := range p.Steps {
		g.AddNode(stepID(s.ID))
	}
	addEdge := func(from, to string) error {
		if to == "" || to == ast.EndStep {
			return nil
		}
		return g.AddEdge(stepID(from), stepID(to))
	}
	for _, s := range p.Steps {
		if s.Type == ast.StepRouter {
			for _, r := range s.Routes {
				if err := addEdge(s.ID, r.Next); err != nil {
					return errors.Wrapf(err, "codegen: pipeline %q step %q route", p.ID, s.ID)
				}
			}
			if err := addEdge(s.ID, s.Default); err != nil {
				return errors.Wrapf(err, "codegen: pipeline %q step %q default route", p.ID, s.ID)
			}
			continue
		}
		if err := addEdge(s.ID, s.Next); err != nil {
			return errors.Wrapf(err, "codegen: pipeline %q step %q", p.ID, s.ID)
		}
	}
	if cycle := g.DetectFirstCycle(); len(cycle) > 0 {
		path := make([]string, len(cycle))
		for i, n := range cycle {
			path[i] = n.String()
		}
		return errors.Errorf("codegen: pipeline %q step graph has a cycle: %s", p.ID, strings.Join(path, " -> "))
	}
	return nil
}

// linearize orders steps for emission: Entry first, then a
// breadth-first walk of its successors, then any steps the walk never
// reached (in declaration order), so every step still gets compiled
// even if it's unreachable from Entry.
func linearize(p *ast.Pipeline) []string {
	successors := make(map[string][]string, len(p.Steps))
	for _, s := range p.Steps {
		if s.Type == ast.StepRouter {
			for _, r := range s.Routes {
				if r.Next != "" && r.Next != ast.EndStep {
					successors[s.ID] = append(successors[s.ID], r.Next)
				}
			}
			if s.Default != "" && s.Default != ast.EndStep {
				successors[s.ID] = append(successors[s.ID], s.Default)
			}
			continue
		}
		if s.Next != "" && s.Next != ast.EndStep {
			successors[s.ID] = append(successors[s.ID], s.Next)
		}
	}

	var order []string
	seen := make(map[string]bool, len(p.Steps))
	var queue []string
	if p.Entry != "" {
		queue = append(queue, p.Entry)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		order = append(order, id)
		queue = append(queue, successors[id]...)
	}
	for _, s := range p.Steps {
		if !seen[s.ID] {
			seen[s.ID] = true
			order = append(order, s.ID)
		}
	}
	return order
}

// emitStep compiles one step's body and returns the jumps still
// pending resolution against the final start-index table.
func emitStep(e *emitter, step *ast.PipelineStep) ([]jumpTarget, error) {
	switch step.Type {
	case ast.StepRouter:
		return emitRouterStep(e, step)
	case ast.StepFunction:
		if err := emitFeatureCall(e, step); err != nil {
			return nil, err
		}
	case ast.StepRule:
		for _, ruleID := range step.RuleIDs {
			e.emit(ir.Instruction{Op: ir.OpCallRule, RuleID: ruleID})
		}
	case ast.StepRuleset:
		if step.RulesetID == "" {
			return nil, errors.Errorf("codegen: ruleset step %q missing ruleset_id", step.ID)
		}
		e.emit(ir.Instruction{Op: ir.OpCallRuleset, TargetRulesetID: step.RulesetID})
	case ast.StepPipeline:
		if step.SubPipelineID == "" {
			return nil, errors.Errorf("codegen: pipeline step %q missing sub-pipeline id", step.ID)
		}
		e.emit(ir.Instruction{Op: ir.OpCallSubPipeline, TargetRulesetID: step.SubPipelineID})
	case ast.StepService:
		if err := emitServiceCall(e, step); err != nil {
			return nil, err
		}
	case ast.StepAPI:
		if err := emitExternalCall(e, step); err != nil {
			return nil, err
		}
	case ast.StepTrigger:
		// A trigger step fires a side effect declared the same way a
		// service or API step would; with neither it is a bare marker.
		switch {
		case step.Service != nil:
			if err := emitServiceCall(e, step); err != nil {
				return nil, err
			}
		case step.External != nil:
			if err := emitExternalCall(e, step); err != nil {
				return nil, err
			}
		}
	case ast.StepExtract:
		if err := emitExtractStep(e, step); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Errorf("codegen: unknown pipeline step type %q", step.Type)
	}

	e.emit(ir.Instruction{Op: ir.OpMarkStepExecuted, StepID: step.ID, NextStepID: step.Next})
	idx := e.placeholderJump(ir.OpJump)
	target := step.Next
	if target == "" {
		target = ast.EndStep
	}
	return []jumpTarget{{idx: idx, target: target}}, nil
}

// emitRouterStep compiles each route's condition group to a
// conditional jump, falling through to the next route on a false
// evaluation; the step-level Default, if set, always fires when no
// route matched, otherwise a mismatch jumps straight to the pipeline
// end (it must not fall into whatever step happens to follow in the
// linearised order).
func emitRouterStep(e *emitter, step *ast.PipelineStep) ([]jumpTarget, error) {
	var pending []jumpTarget
	for i, route := range step.Routes {
		if err := emitConditionGroup(e, route.When.ConditionGroup); err != nil {
			return nil, err
		}
		skip := e.placeholderJump(ir.OpJumpIfFalse)
		e.emit(ir.Instruction{Op: ir.OpMarkStepExecuted, StepID: step.ID, NextStepID: route.Next, RouteIndex: i})
		idx := e.placeholderJump(ir.OpJump)
		target := route.Next
		if target == "" {
			target = ast.EndStep
		}
		pending = append(pending, jumpTarget{idx: idx, target: target})
		e.patchToEnd(skip)
	}

	target := step.Default
	isDefault := target != ""
	if target == "" {
		target = ast.EndStep
	}
	e.emit(ir.Instruction{Op: ir.OpMarkStepExecuted, StepID: step.ID, NextStepID: target, IsDefault: isDefault})
	idx := e.placeholderJump(ir.OpJump)
	pending = append(pending, jumpTarget{idx: idx, target: target})
	return pending, nil
}

func emitFeatureCall(e *emitter, step *ast.PipelineStep) error {
	fc := step.Feature
	if fc == nil {
		return errors.Errorf("codegen: function step %q missing feature call", step.ID)
	}
	var filter ir.Instructions
	if fc.Filter != nil {
		ins, err := CompileExpression(fc.Filter)
		if err != nil {
			return err
		}
		filter = ins
	}
	e.emit(ir.Instruction{
		Op:            ir.OpCallFeature,
		FeatureType:   fc.Type,
		FeatureField:  fc.Field,
		FeatureFilter: filter,
		FeatureWindow: fc.Window,
		StoreAs:       step.StoreAs,
	})
	return nil
}

func emitServiceCall(e *emitter, step *ast.PipelineStep) error {
	sc := step.Service
	if sc == nil {
		return errors.Errorf("codegen: service step %q missing service call", step.ID)
	}
	params, err := compileParams(sc.Params)
	if err != nil {
		return err
	}
	e.emit(ir.Instruction{
		Op:          ir.OpCallService,
		ServiceName: sc.Service,
		ServiceOp:   sc.Op,
		Params:      params,
		StoreAs:     step.StoreAs,
	})
	return nil
}

func emitExternalCall(e *emitter, step *ast.PipelineStep) error {
	ec := step.External
	if ec == nil {
		return errors.Errorf("codegen: api step %q missing external call", step.ID)
	}
	params, err := compileParams(ec.Params)
	if err != nil {
		return err
	}
	var fallback ir.Instructions
	if ec.Fallback != nil {
		ins, err := CompileExpression(ec.Fallback)
		if err != nil {
			return err
		}
		fallback = ins
	}
	e.emit(ir.Instruction{
		Op:               ir.OpCallExternal,
		ExternalAPI:      ec.API,
		ExternalEndpoint: ec.Endpoint,
		ExternalTimeout:  ec.Timeout,
		Params:           params,
		Fallback:         fallback,
		StoreAs:          step.StoreAs,
	})
	return nil
}

func emitExtractStep(e *emitter, step *ast.PipelineStep) error {
	keys := make([]string, 0, len(step.Extract))
	for k := range step.Extract {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := emitExpr(e, step.Extract[key]); err != nil {
			return err
		}
		e.emit(ir.Instruction{Op: ir.OpStore, Path: append([]string{"vars"}, strings.Split(key, ".")...)})
	}
	return nil
}

func compileParams(params map[string]ast.Expression) (map[string]ir.Instructions, error) {
	if len(params) == 0 {
		return nil, nil
	}
	out := make(map[string]ir.Instructions, len(params))
	for name, expr := range params {
		ins, err := CompileExpression(expr)
		if err != nil {
			return nil, errors.Wrapf(err, "codegen: compiling param %q", name)
		}
		out[name] = ins
	}
	return out, nil
}

// compileDecision compiles a pipeline's `decision:` block, validating
// the result stays within the restricted decision_instructions opcode
// subset (spec §4.4/§4.6).
func compileDecision(rows []ast.PipelineDecisionRule) (ir.Instructions, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	e := newEmitter()
	var jumpsToEnd []int
	for _, row := range rows {
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

	ins := e.result()
	if bad := ir.ValidateDecisionSubset(ins); bad >= 0 {
		return nil, errors.Errorf("codegen: decision block instruction %d uses an opcode outside the restricted decision subset", bad)
	}
	return ins, nil
}

type pipelineStepJSON struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Next    string   `json:"next,omitempty"`
	Default string   `json:"default,omitempty"`
	RuleIDs []string `json:"rule_ids,omitempty"`
	Ruleset string   `json:"ruleset_id,omitempty"`
}

func renderStepsJSON(steps []ast.PipelineStep) (string, error) {
	out := make([]pipelineStepJSON, 0, len(steps))
	for _, s := range steps {
		out = append(out, pipelineStepJSON{
			ID:      s.ID,
			Type:    string(s.Type),
			Next:    s.Next,
			Default: s.Default,
			RuleIDs: s.RuleIDs,
			Ruleset: s.RulesetID,
		})
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", errors.Wrap(err, "codegen: rendering steps_json")
	}
	return string(b), nil
}
