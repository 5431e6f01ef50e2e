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

// Package runtime implements Corint's per-request execution context
// (spec §4.5, "C6") and IR virtual machine (spec §4.6, "C7"): the
// operand stack, the eight namespaces, field lookup, and instruction
// dispatch that package engine drives to evaluate one decision.
package runtime

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/corint-sh/corint/value"
)

// reservedTopLevelKeys must never appear at any depth of an incoming
// event (spec §3, §6).
var reservedTopLevelKeys = map[string]struct{}{
	"total_score":     {},
	"triggered_rules": {},
	"action":          {},
}

// reservedPrefixes likewise may not prefix any event key, at any depth.
var reservedPrefixes = []string{"sys_", "features_", "api_", "service_", "llm_"}

// ValidateEventKeys rejects an event whose keys collide with a
// reserved field or prefix, recursing into nested objects (spec §3
// invariant, §7 "ReservedField... fail the request at context
// construction").
func ValidateEventKeys(event map[string]value.Value) error {
	return validateKeys(event)
}

func validateKeys(obj map[string]value.Value) error {
	for k, v := range obj {
		if _, ok := reservedTopLevelKeys[k]; ok {
			return errors.Wrapf(ErrReservedField, "event key %q", k)
		}
		for _, p := range reservedPrefixes {
			if strings.HasPrefix(k, p) {
				return errors.Wrapf(ErrReservedField, "event key %q has reserved prefix %q", k, p)
			}
		}
		if v.Kind() == value.KindObject {
			if err := validateKeys(v.AsObject()); err != nil {
				return err
			}
		}
	}
	return nil
}

// ExecutionContext is the per-request state threaded through every VM
// invocation driven by one decision (spec §3): an operand stack, the
// eight namespace maps, and the accumulating ExecutionResult.
type ExecutionContext struct {
	event    map[string]value.Value
	features map[string]value.Value
	api      map[string]value.Value
	service  map[string]value.Value
	llm      map[string]value.Value
	vars     map[string]value.Value
	sys      map[string]value.Value
	env      map[string]value.Value

	locals map[string]value.Value

	stack []value.Value

	Result *ExecutionResult
}

// NewExecutionContext builds a fresh context for one decision request
// (spec §3, §4.5). event must already have passed ValidateEventKeys.
func NewExecutionContext(requestID string, now time.Time, event, features, api, service, llm, vars map[string]value.Value) *ExecutionContext {
	return &ExecutionContext{
		event:    orEmpty(event),
		features: orEmpty(features),
		api:      orEmpty(api),
		service:  orEmpty(service),
		llm:      orEmpty(llm),
		vars:     orEmpty(vars),
		sys:      buildSys(requestID, now),
		env:      buildEnv(),
		locals:   map[string]value.Value{},
		Result:   NewExecutionResult(),
	}
}

func orEmpty(m map[string]value.Value) map[string]value.Value {
	if m == nil {
		return map[string]value.Value{}
	}
	return m
}

func (ec *ExecutionContext) namespace(n Namespace) map[string]value.Value {
	switch n {
	case NSEvent:
		return ec.event
	case NSFeatures:
		return ec.features
	case NSAPI:
		return ec.api
	case NSService:
		return ec.service
	case NSLLM:
		return ec.llm
	case NSVars:
		return ec.vars
	case NSSys:
		return ec.sys
	case NSEnv:
		return ec.env
	default:
		return nil
	}
}

// Env exposes the seeded env namespace (e.g. for reading max_score /
// default_action defaults in the orchestrator).
func (ec *ExecutionContext) Env() map[string]value.Value { return ec.env }

// Vars exposes the writable vars namespace.
func (ec *ExecutionContext) Vars() map[string]value.Value { return ec.vars }

// Features exposes the features namespace, populated by OpCallFeature
// and any feature values seeded on the request (Options.ReturnFeatures
// echoes this back to the caller).
func (ec *ExecutionContext) Features() map[string]value.Value { return ec.features }

// MergeVariables folds the vars/features/api/service/llm namespaces
// back into the accumulating ExecutionResult.Variables (spec §4.7
// step 3: "Merge the returned context back into the running
// ExecutionResult.variables").
func (ec *ExecutionContext) MergeVariables() {
	for _, pair := range []struct {
		prefix string
		ns     map[string]value.Value
	}{
		{"vars", ec.vars},
		{"features", ec.features},
		{"api", ec.api},
		{"service", ec.service},
		{"llm", ec.llm},
	} {
		mergeFlat(ec.Result.Variables, pair.prefix, pair.ns)
	}
}

func mergeFlat(dst map[string]value.Value, prefix string, ns map[string]value.Value) {
	for k, v := range ns {
		dst[prefix+"."+k] = v
	}
}

// LoadField resolves a dotted field path per the spec §4.5 algorithm:
// namespace routing first, then an event/result.variables fallback
// chain, then the three single-segment virtual fields, and finally
// Null — field lookup never raises.
func (ec *ExecutionContext) LoadField(path []string) (value.Value, error) {
	if len(path) == 0 {
		return value.Null, errors.Wrap(ErrRuntimeType, "empty field path")
	}

	head := path[0]
	if isNamespace(head) {
		ns := ec.namespace(Namespace(head))
		return navigate(ns, path[1:]), nil
	}

	if v := navigate(ec.event, path); !v.IsNull() {
		return v, nil
	}
	if v := ec.Result.GetVar(strings.Join(path, ".")); !v.IsNull() {
		return v, nil
	}

	if len(path) == 1 {
		switch head {
		case "total_score":
			return value.Number(float64(ec.Result.Score)), nil
		case "triggered_rules":
			arr := make([]value.Value, len(ec.Result.TriggeredRules))
			for i, id := range ec.Result.TriggeredRules {
				arr[i] = value.String(id)
			}
			return value.Array(arr), nil
		case "triggered_count":
			return value.Number(float64(len(ec.Result.TriggeredRules))), nil
		}
	}
	return value.Null, nil
}

// Store writes v at a dotted namespace path (spec §4.5). Writing
// through a read-only namespace (event/sys/env) is a fatal error.
func (ec *ExecutionContext) Store(path []string, v value.Value) error {
	if len(path) == 0 {
		return errors.Wrap(ErrRuntimeType, "empty store path")
	}
	head := Namespace(path[0])
	if !isNamespace(path[0]) {
		// Bare, non-namespaced path: treat as a vars write so
		// authors extracting plain identifiers still land somewhere
		// addressable, matching the "vars" default the extract step
		// uses (codegen/pipeline.go emitExtractStep).
		setDotted(ec.vars, path, v)
		return nil
	}
	if head.readOnly() {
		return errors.Wrapf(ErrRuntimeType, "cannot store into read-only namespace %q", head)
	}
	setDotted(ec.namespace(head), path[1:], v)
	return nil
}

// LoadLocal / StoreLocal back the non-dotted Load{name}/Store{name}
// instruction forms (spec §3): a scratch scope distinct from every
// namespace, for intermediate values a program never exposes outside
// itself.
func (ec *ExecutionContext) LoadLocal(name string) value.Value {
	if v, ok := ec.locals[name]; ok {
		return v
	}
	return value.Null
}

func (ec *ExecutionContext) StoreLocal(name string, v value.Value) {
	ec.locals[name] = v
}

// Push/Pop/Dup/Swap implement the operand stack discipline of spec
// §4.5: Pop/Dup require >=1 item, Swap requires >=2; violation is
// fatal.
func (ec *ExecutionContext) Push(v value.Value) {
	ec.stack = append(ec.stack, v)
}

func (ec *ExecutionContext) Pop() (value.Value, error) {
	if len(ec.stack) == 0 {
		return value.Null, ErrStackUnderflow
	}
	v := ec.stack[len(ec.stack)-1]
	ec.stack = ec.stack[:len(ec.stack)-1]
	return v, nil
}

func (ec *ExecutionContext) Dup() error {
	if len(ec.stack) == 0 {
		return ErrStackUnderflow
	}
	ec.stack = append(ec.stack, ec.stack[len(ec.stack)-1])
	return nil
}

func (ec *ExecutionContext) Swap() error {
	n := len(ec.stack)
	if n < 2 {
		return ErrStackUnderflow
	}
	ec.stack[n-1], ec.stack[n-2] = ec.stack[n-2], ec.stack[n-1]
	return nil
}

// ResetStack discards the operand stack between a program's main pass
// and its decision_instructions pass (spec §4.6: "operand stack is
// reset").
func (ec *ExecutionContext) ResetStack() {
	ec.stack = ec.stack[:0]
}

// StackLen reports the current operand stack depth, for diagnostics.
func (ec *ExecutionContext) StackLen() int { return len(ec.stack) }
