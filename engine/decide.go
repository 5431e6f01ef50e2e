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

package engine

import (
	"context"
	"strings"
	"time"

	"github.com/binaek/gocoll/collection"
	"github.com/pkg/errors"

	"github.com/corint-sh/corint/ast"
	"github.com/corint-sh/corint/ir"
	"github.com/corint-sh/corint/runtime"
	"github.com/corint-sh/corint/signal"
	"github.com/corint-sh/corint/trace"
	"github.com/corint-sh/corint/value"
)

const maxFanOutPasses = 64

// rulesetExecution accumulates what Decide needs to later render a
// RulesetTrace for one ruleset invocation (spec §4.8).
type rulesetExecution struct {
	id            string
	records       []trace.RuleExecutionRecord
	matchedSignal string
}

// Decide resolves req against the currently loaded program set and
// runs the matched pipeline to completion (spec §4.7, "C8").
func (e *Engine) Decide(ctx context.Context, req DecisionRequest) (DecisionResponse, error) {
	start := time.Now()
	ps := e.programs.Load()
	if ps == nil {
		return DecisionResponse{}, ErrNotLoaded
	}

	requestID := req.Metadata["request_id"]
	if requestID == "" {
		requestID = runtime.NewRequestID(start)
	}

	event := toValueObject(req.Event)
	if err := runtime.ValidateEventKeys(event); err != nil {
		return DecisionResponse{}, err
	}

	pipelineID, ok := matchPipeline(ctx, ps, event)
	if !ok {
		return DecisionResponse{
			RequestID:     requestID,
			Status:        200,
			ProcessTimeMS: uint64(time.Since(start).Milliseconds()),
			Decision: Decision{
				Result: string(signal.Pass),
				Scores: Scores{Canonical: trace.Normalize(0), Raw: 0},
				Evidence: Evidence{TriggeredRules: []string{}},
			},
		}, nil
	}

	prog, ok := ps.pipelinePrograms[pipelineID]
	if !ok {
		return DecisionResponse{}, errors.Errorf("engine: registry points at unknown pipeline %q", pipelineID)
	}
	pipelineAST := ps.pipelineASTs[pipelineID]

	ec := runtime.NewExecutionContext(requestID, start,
		event,
		toValueObject(req.Features),
		toValueObject(req.API),
		toValueObject(req.Service),
		toValueObject(req.LLM),
		toValueObject(req.Vars),
	)

	vm := runtime.NewVM(e.collab, e.log)

	if err := vm.RunMain(ctx, ec, prog); err != nil {
		return DecisionResponse{}, err
	}
	ec.MergeVariables()
	branchIdx, branchCond := trace.ExecutedBranch(ec.Result.Variables)

	executions, err := e.runFanOut(ctx, vm, ec, ps)
	if err != nil {
		return DecisionResponse{}, err
	}

	if len(prog.DecisionInstructions) > 0 {
		if err := vm.RunDecision(ctx, ec, prog); err != nil {
			return DecisionResponse{}, err
		}
	}

	resp := DecisionResponse{
		RequestID:     requestID,
		Status:        200,
		ProcessTimeMS: uint64(time.Since(start).Milliseconds()),
		PipelineID:    pipelineID,
		Decision:      buildDecision(ec),
	}

	if req.Options.ReturnFeatures {
		resp.Features = value.ToGo(value.Object(ec.Features())).(map[string]any)
	}

	if req.Options.EnableTrace {
		pt, err := buildPipelineTrace(ctx, ps, ec, pipelineAST, prog, branchIdx, branchCond, executions)
		if err != nil {
			return DecisionResponse{}, errors.Wrap(err, "building trace")
		}
		resp.Trace = pt
	}

	return resp, nil
}

func buildDecision(ec *runtime.ExecutionContext) Decision {
	sig := signal.Pass
	if ec.Result.Signal != nil {
		sig = *ec.Result.Signal
	}
	triggered := ec.Result.TriggeredRules
	if triggered == nil {
		triggered = []string{}
	}
	return Decision{
		Result:  string(sig),
		Actions: ec.Result.Actions,
		Scores: Scores{
			Canonical: trace.Normalize(ec.Result.Score),
			Raw:       ec.Result.Score,
		},
		Evidence: Evidence{TriggeredRules: triggered},
		Cognition: Cognition{
			Summary:     ec.Result.ExplicitExplanation,
			ReasonCodes: triggered,
		},
	}
}

// matchPipeline implements spec §4.7 step 2: walk the registry
// top-down with the same WhenBlock evaluator rules use, first match
// wins; with no registry (or no match in it) fall back to pipelines in
// their deterministic load order, each checked against a synthetic
// WhenBlock built from its declared event_type.
func matchPipeline(ctx context.Context, ps *programSet, event map[string]value.Value) (string, bool) {
	ec := runtime.NewExecutionContext("", time.Now(), event, nil, nil, nil, nil, nil)

	if ps.registry != nil {
		for _, entry := range ps.registry.Entries {
			matched, err := runtime.EvalWhen(ctx, ec, nil, entry.When)
			if err == nil && matched {
				return entry.PipelineID, true
			}
		}
	}

	for _, id := range ps.pipelineOrder {
		w := ast.WhenBlock{EventType: ps.pipelineEventType[id]}
		matched, err := runtime.EvalWhen(ctx, ec, nil, w)
		if err == nil && matched {
			return id, true
		}
	}
	return "", false
}

// runFanOut drives the fixed-point ruleset/rule/sub-pipeline expansion
// of spec §4.7 step 4: __rulesets_to_execute__, __rules_to_execute__
// and __subpipelines_to_execute__ may grow across passes (a ruleset's
// conclusion program, or a sub-pipeline's main pass, can itself append
// further entries), so this keeps looping until an iteration adds
// nothing new.
func (e *Engine) runFanOut(ctx context.Context, vm *runtime.VM, ec *runtime.ExecutionContext, ps *programSet) ([]rulesetExecution, error) {
	seenRulesets := map[string]bool{}
	seenRules := map[string]bool{}
	seenSubPipelines := map[string]bool{}
	var executions []rulesetExecution

	for pass := 0; pass < maxFanOutPasses; pass++ {
		progressed := false

		for _, rsID := range ec.Result.StringList(runtime.VarRulesetsToExecute) {
			if seenRulesets[rsID] {
				continue
			}
			seenRulesets[rsID] = true
			progressed = true

			exec, err := e.runRuleset(ctx, vm, ec, ps, rsID)
			if err != nil {
				return nil, err
			}
			executions = append(executions, exec)
		}

		for _, ruleID := range ec.Result.StringList(runtime.VarRulesToExecute) {
			if seenRules[ruleID] {
				continue
			}
			seenRules[ruleID] = true
			progressed = true

			if err := e.runRule(ctx, vm, ec, ps, ruleID); err != nil {
				return nil, err
			}
		}

		for _, subID := range ec.Result.StringList(runtime.VarSubPipelinesToExecute) {
			if seenSubPipelines[subID] {
				continue
			}
			seenSubPipelines[subID] = true
			progressed = true

			subProg, ok := ps.pipelinePrograms[subID]
			if !ok {
				return nil, errors.Errorf("engine: unknown sub-pipeline %q", subID)
			}
			if err := vm.RunMain(ctx, ec, subProg); err != nil {
				return nil, err
			}
			ec.MergeVariables()
		}

		if !progressed {
			break
		}
	}
	return executions, nil
}

// runRule executes one rule's compiled program and records its
// contribution to the accumulator for later trace reconstruction.
func (e *Engine) runRule(ctx context.Context, vm *runtime.VM, ec *runtime.ExecutionContext, ps *programSet, ruleID string) error {
	prog, ok := ps.rulePrograms[ruleID]
	if !ok {
		return errors.Errorf("engine: unknown rule %q", ruleID)
	}
	return vm.Run(ctx, ec, prog)
}

// runRuleset runs every member rule of rsID (sharing ec) followed by
// the ruleset's own conclusion program, then materializes
// __ruleset_result__.<id> (spec §4.7 step 4).
func (e *Engine) runRuleset(ctx context.Context, vm *runtime.VM, ec *runtime.ExecutionContext, ps *programSet, rsID string) (rulesetExecution, error) {
	prog, ok := ps.rulesetPrograms[rsID]
	if !ok {
		return rulesetExecution{}, errors.Errorf("engine: unknown ruleset %q", rsID)
	}
	scoreBeforeRuleset := ec.Result.Score
	var records []trace.RuleExecutionRecord

	memberIDs := splitMemberIDs(prog.Metadata.Custom[ir.CustomRules])
	for _, ruleID := range memberIDs {
		ruleProg, ok := ps.rulePrograms[ruleID]
		if !ok {
			return rulesetExecution{}, errors.Errorf("engine: ruleset %q references unknown rule %q", rsID, ruleID)
		}
		ruleAST := ps.ruleASTs[ruleID]

		scoreBefore := ec.Result.Score
		wasTriggered := containsString(ec.Result.TriggeredRules, ruleID)

		runStart := time.Now()
		if err := vm.Run(ctx, ec, ruleProg); err != nil {
			return rulesetExecution{}, err
		}
		latency := time.Since(runStart)

		nowTriggered := containsString(ec.Result.TriggeredRules, ruleID)
		rec := trace.RuleExecutionRecord{
			RuleID:     ruleID,
			Triggered:  !wasTriggered && nowTriggered,
			ScoreDelta: ec.Result.Score - scoreBefore,
			Latency:    latency,
		}
		if ruleAST != nil {
			rec.When = ruleAST.When
		}
		records = append(records, rec)
	}

	if err := vm.Run(ctx, ec, prog); err != nil {
		return rulesetExecution{}, err
	}

	rulesetScore := ec.Result.Score - scoreBeforeRuleset
	matchedSignal := ""
	if ec.Result.Signal != nil {
		matchedSignal = string(*ec.Result.Signal)
	}

	ec.Result.MaterializeRulesetResult(rsID, map[string]value.Value{
		"signal":          value.String(matchedSignal),
		"score":           value.Number(float64(rulesetScore)),
		"total_score":     value.Number(float64(ec.Result.Score)),
		"explanation":     value.String(ec.Result.ExplicitExplanation),
		"reason":          value.String(ec.Result.ExplicitExplanation),
		"conclusion_json": value.String(prog.Metadata.Custom[ir.CustomConclusionJSON]),
	})

	return rulesetExecution{id: rsID, records: records, matchedSignal: matchedSignal}, nil
}

// splitMemberIDs turns a ruleset's comma-joined metadata.custom["rules"]
// (spec §4.4) into an order-preserving, de-duplicated, blank-trimmed
// id list ("first occurrence wins" per spec §5's ordering guarantee).
// The trim stage is expressed with the teacher's generic collection
// helper rather than a hand-rolled loop; filtering blanks and the
// order-preserving de-dup stay plain loops, since those aren't shapes
// collection.Map itself produces.
func splitMemberIDs(csv string) []string {
	trimmed := collection.Map(collection.From(strings.Split(csv, ",")...), strings.TrimSpace).Elements()

	seen := make(map[string]bool, len(trimmed))
	out := make([]string, 0, len(trimmed))
	for _, id := range trimmed {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func toValueObject(m map[string]any) map[string]value.Value {
	if m == nil {
		return nil
	}
	v := value.FromGo(m)
	return v.AsObject()
}

// buildPipelineTrace assembles the optional PipelineTrace (spec §4.8).
func buildPipelineTrace(ctx context.Context, ps *programSet, ec *runtime.ExecutionContext, pipelineAST *ast.Pipeline, prog *ir.Program, branchIdx *int, branchCond *bool, executions []rulesetExecution) (*trace.PipelineTrace, error) {
	pt := &trace.PipelineTrace{
		ExecutedBranch:   branchIdx,
		BranchConditions: branchCond,
	}
	if pipelineAST != nil && pipelineAST.When != nil && pipelineAST.When.ConditionGroup != nil {
		cond, err := trace.BuildConditionGroup(ctx, ec, nil, pipelineAST.When.ConditionGroup)
		if err != nil {
			return nil, err
		}
		if cond != nil {
			pt.WhenConditions = cond.Expression
		}
	}

	steps, err := trace.BuildSteps(ctx, ec, nil, prog.Metadata.Custom[ir.CustomStepsJSON], ec.Result.GetVar(runtime.VarExecutedSteps), pipelineAST)
	if err != nil {
		return nil, err
	}
	pt.Steps = steps

	for _, exec := range executions {
		rsAST := ps.rulesetASTs[exec.id]
		var conclusion []ast.DecisionRule
		if rsAST != nil {
			conclusion = rsAST.Conclusion
		}
		rt, err := trace.BuildRulesetTrace(ctx, ec, nil, exec.id, exec.records, conclusion, exec.matchedSignal)
		if err != nil {
			return nil, err
		}
		pt.Rulesets = append(pt.Rulesets, *rt)
	}

	return pt, nil
}
