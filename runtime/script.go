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
	"strconv"
	"time"

	"github.com/dop251/goja"
	"github.com/pkg/errors"

	"github.com/corint-sh/corint/value"
)

// scriptTimeout bounds a single script(...) call so a pathological
// expression (an infinite loop authored into a rule) cannot wedge the
// single-threaded-per-request VM loop (spec §4.6: the VM is otherwise
// synchronous between I/O instructions).
const scriptTimeout = 50 * time.Millisecond

// builtinScript evaluates a small inline JavaScript expression, the
// escape hatch the expression grammar's function-call syntax (spec
// §4.1) leaves room for but does not itself define a standard library
// for computations too awkward to express with the built-in operator
// set (e.g. bit manipulation, custom string shaping). Grounded on the
// teacher's embedded-JS alias runtime (runtime/js), which exists for
// the identical reason: let operators extend policy logic without a
// Go recompile. Unlike the teacher's pooled, long-lived JSInstance,
// each call here gets a throwaway goja.Runtime — script() calls are
// rare relative to rule evaluations and a pool would outlive its
// value versus the bookkeeping it costs.
//
// args[0] is the JS source; args[1:], if present, are bound to
// variables named arg0, arg1, ... in the script's global scope. The
// script's completion value (the last expression evaluated) is
// converted back through value.FromGo.
func builtinScript(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Null, arityErr("script", 1, 0)
	}
	if args[0].Kind() != value.KindString {
		return value.Null, errors.New("script: first argument must be a string")
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	for i, a := range args[1:] {
		if err := vm.Set("arg"+strconv.Itoa(i), value.ToGo(a)); err != nil {
			return value.Null, errors.Wrapf(err, "script: binding arg%d", i)
		}
	}

	done := make(chan struct{})
	var result goja.Value
	var runErr error
	go func() {
		defer close(done)
		result, runErr = vm.RunString(args[0].AsString())
	}()

	select {
	case <-done:
	case <-time.After(scriptTimeout):
		vm.Interrupt("script: timed out")
		<-done
	}

	if runErr != nil {
		return value.Null, errors.Wrap(runErr, "script")
	}
	if result == nil {
		return value.Null, nil
	}
	return value.FromGo(result.Export()), nil
}
