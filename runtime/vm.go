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
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/corint-sh/corint/collab"
	"github.com/corint-sh/corint/ir"
	"github.com/corint-sh/corint/signal"
	"github.com/corint-sh/corint/value"
)

// VM is the IR bytecode interpreter (spec §4.6, "C7"): one operand
// stack shared by a single ExecutionContext, dispatching Program
// instructions and suspending at CallFeature/CallService/CallExternal
// to the injected Collaborators. A VM instance holds no per-request
// state itself and is safe to reuse (or share) across concurrent
// decisions; all mutable state lives in the ExecutionContext passed to
// Run.
type VM struct {
	collab *collab.Collaborators
	list   collab.ListService
	log    *slog.Logger
}

// NewVM builds a VM against the given collaborators. list may be the
// same value as collab.List; it is threaded separately because
// EvalExpr/EvalWhen (runtime/eval.go) take a bare ListService and the
// VM shares that signature for ListLookup.
func NewVM(c *collab.Collaborators, log *slog.Logger) *VM {
	if log == nil {
		log = slog.Default()
	}
	var list collab.ListService
	if c != nil {
		list = c.List
	}
	return &VM{collab: c, list: list, log: log}
}

// Run executes prog's main instruction stream and, for a rule or
// ruleset program (which never carries a decision_instructions block),
// that is the whole of it. Pipeline programs carry a
// decision_instructions block that must NOT run here: spec §4.7 step 5
// requires it to run only after the pipeline's ruleset/rule/sub-pipeline
// fan-out has completed, so package engine drives pipelines through
// RunMain and RunDecision instead of this method.
func (vm *VM) Run(ctx context.Context, ec *ExecutionContext, prog *ir.Program) error {
	if err := vm.run(ctx, ec, prog.Instructions); err != nil {
		return errors.Wrapf(err, "%s %q", prog.Metadata.SourceType, prog.Metadata.SourceID)
	}
	return nil
}

// RunMain executes a pipeline program's main instruction stream only,
// leaving any decision_instructions block unrun (spec §4.7 step 2). The
// orchestrator resolves __rulesets_to_execute__/__rules_to_execute__/
// __subpipelines_to_execute__ against this same ec afterward, then calls
// RunDecision once fan-out settles.
func (vm *VM) RunMain(ctx context.Context, ec *ExecutionContext, prog *ir.Program) error {
	if err := vm.run(ctx, ec, prog.Instructions); err != nil {
		return errors.Wrapf(err, "%s %q", prog.Metadata.SourceType, prog.Metadata.SourceID)
	}
	return nil
}

// RunDecision resets the operand stack and runs prog's
// decision_instructions block as a second pass over ec (spec §4.6:
// "a second pass executes them using the same context;
// scoring/trigger state is retained; operand stack is reset"). A nil
// or empty block is a no-op.
func (vm *VM) RunDecision(ctx context.Context, ec *ExecutionContext, prog *ir.Program) error {
	if len(prog.DecisionInstructions) == 0 {
		return nil
	}
	if bad := ir.ValidateDecisionSubset(prog.DecisionInstructions); bad >= 0 {
		return errors.Wrapf(ErrIllegalDecisionOp, "%s %q: instruction %d", prog.Metadata.SourceType, prog.Metadata.SourceID, bad)
	}
	ec.ResetStack()
	if err := vm.run(ctx, ec, prog.DecisionInstructions); err != nil {
		return errors.Wrapf(err, "%s %q decision", prog.Metadata.SourceType, prog.Metadata.SourceID)
	}
	return nil
}

// runSub executes a self-contained sub-program (a CallFeature filter,
// a CallService/CallExternal param, or a CallExternal fallback —
// ir/instruction.go's embedded Instructions fields, compiled by
// codegen.CompileExpression) and returns the single value it leaves on
// the stack. These never contain Return; dispatch simply runs to the
// end of the slice (spec §4.4: "the result always leaves exactly one
// Value on the stack").
func (vm *VM) runSub(ctx context.Context, ec *ExecutionContext, ins ir.Instructions) (value.Value, error) {
	if len(ins) == 0 {
		return value.Null, nil
	}
	depth := ec.StackLen()
	if err := vm.run(ctx, ec, ins); err != nil {
		return value.Null, err
	}
	if ec.StackLen() <= depth {
		return value.Null, nil
	}
	return ec.Pop()
}

// run drives the fetch-dispatch loop over one instruction slice (spec
// §4.6): `pc` advances by one for pure instructions, jumps set
// `pc = currentIdx + offset` (offsets are relative to the jump
// instruction's own index — spec §4.4), and a jump target equal to
// len(ins) is a legal halt.
func (vm *VM) run(ctx context.Context, ec *ExecutionContext, ins ir.Instructions) error {
	pc := 0
	for pc < len(ins) {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(ErrCancelled, err.Error())
		}

		instr := ins[pc]
		next := pc + 1

		switch instr.Op {
		case ir.OpLoadField:
			v, err := ec.LoadField(instr.Path)
			if err != nil {
				return err
			}
			ec.Push(v)

		case ir.OpLoadConst:
			ec.Push(instr.Const)

		case ir.OpLoadResult:
			ec.Push(loadResult(ec, instr.RulesetID, instr.Field))

		case ir.OpLoad:
			ec.Push(ec.LoadLocal(instr.Name))

		case ir.OpStore:
			v, err := ec.Pop()
			if err != nil {
				return err
			}
			if instr.Name != "" {
				ec.StoreLocal(instr.Name, v)
				break
			}
			if err := ec.Store(instr.Path, v); err != nil {
				return err
			}

		case ir.OpDup:
			if err := ec.Dup(); err != nil {
				return err
			}

		case ir.OpPop:
			if _, err := ec.Pop(); err != nil {
				return err
			}

		case ir.OpSwap:
			if err := ec.Swap(); err != nil {
				return err
			}

		case ir.OpBinaryOp, ir.OpCompare:
			right, err := ec.Pop()
			if err != nil {
				return err
			}
			left, err := ec.Pop()
			if err != nil {
				return err
			}
			v, err := applyBinOp(instr.BinOp, left, right)
			if err != nil {
				return err
			}
			ec.Push(v)

		case ir.OpUnaryOp:
			v, err := ec.Pop()
			if err != nil {
				return err
			}
			out, err := evalUnary(instr.BinOp, v)
			if err != nil {
				return err
			}
			ec.Push(out)

		case ir.OpJump:
			next = pc + instr.Offset

		case ir.OpJumpIfTrue:
			v, err := ec.Pop()
			if err != nil {
				return err
			}
			if v.Truthy() {
				next = pc + instr.Offset
			}

		case ir.OpJumpIfFalse:
			v, err := ec.Pop()
			if err != nil {
				return err
			}
			if !v.Truthy() {
				next = pc + instr.Offset
			}

		case ir.OpReturn:
			return nil

		case ir.OpSetScore:
			ec.Result.Score = instr.Amount

		case ir.OpAddScore:
			ec.Result.Score += instr.Amount

		case ir.OpSetSignal:
			s := signal.Signal(instr.Signal)
			ec.Result.Signal = &s

		case ir.OpSetReason:
			ec.Result.ExplicitExplanation = instr.Reason

		case ir.OpSetActions:
			ec.Result.Actions = append([]string{}, instr.Actions...)

		case ir.OpMarkRuleTriggered:
			ec.Result.MarkTriggered(instr.RuleID)

		case ir.OpMarkStepExecuted:
			vm.markStepExecuted(ec, instr)

		case ir.OpMarkBranchExecuted:
			ec.Result.SetVar(VarExecutedBranchIndex, value.Number(float64(instr.RouteIndex)))
			ec.Result.SetVar(VarExecutedBranchCond, value.Bool(!instr.IsDefault))

		case ir.OpCheckEventType:
			actual, ok := resolveEventType(ec)
			if !ok {
				return errors.Wrap(ErrMissingField, "event_type")
			}
			if actual != instr.ExpectedEventType {
				next = len(ins)
			}

		case ir.OpCallFeature:
			v, err := vm.callFeature(ctx, ec, instr)
			if err != nil {
				return err
			}
			if instr.StoreAs != "" {
				if err := ec.Store(strings.Split(instr.StoreAs, "."), v); err != nil {
					return err
				}
			} else {
				ec.Push(v)
			}

		case ir.OpCallService:
			v, err := vm.callService(ctx, ec, instr)
			if err != nil {
				return err
			}
			if instr.StoreAs != "" {
				if err := ec.Store(strings.Split(instr.StoreAs, "."), v); err != nil {
					return err
				}
			} else {
				ec.Push(v)
			}

		case ir.OpCallExternal:
			v, err := vm.callExternal(ctx, ec, instr)
			if err != nil {
				return err
			}
			if instr.StoreAs != "" {
				if err := ec.Store(strings.Split(instr.StoreAs, "."), v); err != nil {
					return err
				}
			} else {
				ec.Push(v)
			}

		case ir.OpCallRuleset:
			ec.Result.AppendUnique(VarRulesetsToExecute, instr.TargetRulesetID)
			ec.Result.SetVar(VarNextRuleset, value.String(instr.TargetRulesetID))

		case ir.OpCallRule:
			ec.Result.AppendUnique(VarRulesToExecute, instr.RuleID)

		case ir.OpCallSubPipeline:
			ec.Result.AppendUnique(VarSubPipelinesToExecute, instr.TargetRulesetID)

		case ir.OpListLookup:
			candidate, err := ec.Pop()
			if err != nil {
				return err
			}
			contains, err := listContains(ctx, vm.list, instr.ListID, candidate)
			if err != nil {
				return err
			}
			ec.Push(value.Bool(contains != instr.Negate))

		case ir.OpCallBuiltin:
			args := make([]value.Value, instr.Argc)
			for i := instr.Argc - 1; i >= 0; i-- {
				v, err := ec.Pop()
				if err != nil {
					return err
				}
				args[i] = v
			}
			fn, ok := LookupBuiltin(instr.BuiltinName)
			if !ok {
				return errors.Errorf("runtime: unknown builtin %q", instr.BuiltinName)
			}
			v, err := fn(args)
			if err != nil {
				return err
			}
			ec.Push(v)

		default:
			return errors.Errorf("runtime: unhandled opcode %v", instr.Op)
		}

		pc = next
	}
	return nil
}

// markStepExecuted appends a compact JSON record to the
// __executed_steps__ array (spec §4.6): unlike the reserved
// bookkeeping arrays ExecutionResult.AppendUnique manages, this one is
// not de-duplicated — a step revisited via a loop-free but
// diamond-shaped step graph legitimately executes once per pass but a
// router's per-route marker and its own step marker are distinct
// records.
func (vm *VM) markStepExecuted(ec *ExecutionContext, instr ir.Instruction) {
	record := map[string]any{
		"step_id":         instr.StepID,
		"next_step_id":    instr.NextStepID,
		"route_index":     instr.RouteIndex,
		"is_default_route": instr.IsDefault,
	}
	raw, err := json.Marshal(record)
	if err != nil {
		vm.log.Debug("failed to marshal executed-step record", "step_id", instr.StepID, "err", err)
		return
	}
	existing := ec.Result.GetVar(VarExecutedSteps).AsArray()
	ec.Result.SetVar(VarExecutedSteps, value.Array(append(append([]value.Value{}, existing...), value.String(string(raw)))))

	// A router's per-route and default markers are the only ones
	// carrying routing metadata; a plain step's marker always has
	// RouteIndex==0 and IsDefault==false, indistinguishable from a
	// router's first route. Preferring over-tracking to under-tracking,
	// any marker that looks like a route (IsDefault, or a non-zero
	// index) updates the branch-trace variables too.
	if instr.IsDefault || instr.RouteIndex > 0 {
		ec.Result.SetVar(VarExecutedBranchIndex, value.Number(float64(instr.RouteIndex)))
		ec.Result.SetVar(VarExecutedBranchCond, value.Bool(!instr.IsDefault))
	}
}

// entityKeyOf resolves the entity a CallFeature lookup is scoped to.
// Neither spec.md nor the Expression AST names an explicit
// "entity key" expression slot on FeatureCall (ast/pipeline.go), so
// this follows the convention most fraud-pipeline events use: an
// `entity_id` field at the event root, falling back to `user_id`.
func entityKeyOf(ec *ExecutionContext) string {
	if v, _ := ec.LoadField([]string{"event", "entity_id"}); v.Kind() == value.KindString {
		return v.AsString()
	}
	if v, _ := ec.LoadField([]string{"event", "user_id"}); v.Kind() == value.KindString {
		return v.AsString()
	}
	return ""
}

func (vm *VM) callFeature(ctx context.Context, ec *ExecutionContext, instr ir.Instruction) (value.Value, error) {
	if len(instr.FeatureFilter) > 0 {
		pass, err := vm.runSub(ctx, ec, instr.FeatureFilter)
		if err != nil {
			return value.Null, err
		}
		if !pass.Truthy() {
			return value.Null, nil
		}
	}

	if vm.collab == nil || vm.collab.DataSource == nil {
		return value.Null, nil
	}

	start := time.Now()
	v, err := vm.collab.DataSource.GetFeature(ctx, instr.FeatureType, entityKeyOf(ec))
	recordLatency(vm.log, "feature", instr.FeatureType, time.Since(start), err)
	if err != nil {
		vm.log.Debug("feature fetch failed, substituting null", "feature", instr.FeatureType, "err", err)
		return value.Null, nil
	}
	if instr.FeatureField != "" && v.Kind() == value.KindObject {
		v = v.Get(instr.FeatureField)
	}
	return v, nil
}

// llmServiceName is the Service value that routes a CallService
// instruction to the `llm` namespace's collaborator (spec §4.9
// expansion) instead of the generic ServiceClient. No new instruction
// was added for this — a pipeline step declares Service.Service: "llm"
// like any other service and the VM dispatches it here.
const llmServiceName = "llm"

func (vm *VM) callService(ctx context.Context, ec *ExecutionContext, instr ir.Instruction) (value.Value, error) {
	params, err := vm.evalParams(ctx, ec, instr.Params)
	if err != nil {
		return value.Null, err
	}

	if instr.ServiceName == llmServiceName {
		return vm.callLLM(ctx, params)
	}

	if vm.collab == nil || vm.collab.Service == nil {
		return value.Null, nil
	}

	start := time.Now()
	resp, err := vm.collab.Service.Call(ctx, collab.ServiceRequest{Service: instr.ServiceName, Op: instr.ServiceOp, Params: params})
	recordLatency(vm.log, "service", instr.ServiceName, time.Since(start), err)
	if err != nil {
		vm.log.Debug("service call failed, substituting null", "service", instr.ServiceName, "op", instr.ServiceOp, "err", err)
		return value.Null, nil
	}
	return resp.Value, nil
}

// callLLM builds an LLMRequest from a CallService step's evaluated
// params (prompt, model, enable_thinking) and surfaces the response as
// an object with text/thinking/tokens fields, the same "fall back to
// Null on error, never abort the request" contract callService itself
// honors for ordinary services.
func (vm *VM) callLLM(ctx context.Context, params map[string]value.Value) (value.Value, error) {
	if vm.collab == nil || vm.collab.LLM == nil {
		return value.Null, nil
	}

	req := collab.LLMRequest{
		Prompt:         params["prompt"].AsString(),
		Model:          params["model"].AsString(),
		EnableThinking: params["enable_thinking"].Truthy(),
	}

	start := time.Now()
	resp, err := vm.collab.LLM.Call(ctx, req)
	recordLatency(vm.log, "service", llmServiceName, time.Since(start), err)
	if err != nil {
		vm.log.Debug("llm call failed, substituting null", "err", err)
		return value.Null, nil
	}

	return value.Object(map[string]value.Value{
		"text":     value.String(resp.Text),
		"thinking": value.String(resp.Thinking),
		"tokens":   value.Number(float64(resp.Tokens)),
	}), nil
}

func (vm *VM) callExternal(ctx context.Context, ec *ExecutionContext, instr ir.Instruction) (value.Value, error) {
	params, err := vm.evalParams(ctx, ec, instr.Params)
	if err != nil {
		return value.Null, err
	}

	fallback := func() (value.Value, error) {
		if len(instr.Fallback) == 0 {
			return value.Null, nil
		}
		return vm.runSub(ctx, ec, instr.Fallback)
	}

	if vm.collab == nil || vm.collab.ExternalAPI == nil {
		return fallback()
	}

	callCtx := ctx
	if instr.ExternalTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, instr.ExternalTimeout)
		defer cancel()
	}

	start := time.Now()
	v, err := vm.collab.ExternalAPI.Call(callCtx, instr.ExternalAPI, instr.ExternalEndpoint, params, instr.ExternalTimeout)
	recordLatency(vm.log, "external_api", instr.ExternalAPI, time.Since(start), err)
	if err != nil {
		vm.log.Debug("external call failed, using fallback", "api", instr.ExternalAPI, "endpoint", instr.ExternalEndpoint, "err", err)
		return fallback()
	}
	return v, nil
}

func (vm *VM) evalParams(ctx context.Context, ec *ExecutionContext, params map[string]ir.Instructions) (map[string]value.Value, error) {
	if len(params) == 0 {
		return nil, nil
	}
	out := make(map[string]value.Value, len(params))
	for name, sub := range params {
		v, err := vm.runSub(ctx, ec, sub)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluating param %q", name)
		}
		out[name] = v
	}
	return out, nil
}

// recordLatency is the metrics hook spec §4.6 calls for ("Record
// latency to the metrics collector"). It only logs at debug level; no
// metrics collector is attached to collaborator calls.
func recordLatency(log *slog.Logger, kind, name string, d time.Duration, err error) {
	log.Debug("collaborator call", "kind", kind, "name", name, "duration_ms", d.Milliseconds(), "err", err)
}
