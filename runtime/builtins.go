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
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/corint-sh/corint/value"
)

// Builtin is a registered expression-language function (spec §3:
// Expression AST's FunctionCall node, e.g. `count(x, y)`). The
// instruction set has no named slot for function dispatch beyond
// OpCallBuiltin (ir/instruction.go), so the table lives here, next to
// the dispatcher that consumes it.
type Builtin func(args []value.Value) (value.Value, error)

// builtins is the default function table available to every compiled
// program. It is small and general-purpose on purpose: the expression
// grammar (spec §4.1) only commits to function-call *syntax*, not a
// fixed standard library, and rule authors are expected to lean on
// field access and operators for anything domain-specific.
var builtins = map[string]Builtin{
	"len":      builtinLen,
	"count":    builtinCount,
	"abs":      builtinAbs,
	"min":      builtinMin,
	"max":      builtinMax,
	"round":    builtinRound,
	"floor":    builtinFloor,
	"ceil":     builtinCeil,
	"upper":    builtinUpper,
	"lower":    builtinLower,
	"sum":      builtinSum,
	"avg":      builtinAvg,
	"coalesce": builtinCoalesce,
	"script":   builtinScript,
	"tscript":  builtinTSScript,
}

// LookupBuiltin resolves a registered builtin by name.
func LookupBuiltin(name string) (Builtin, bool) {
	b, ok := builtins[name]
	return b, ok
}

func arityErr(name string, want int, got int) error {
	return errors.Errorf("%s: expected %d argument(s), got %d", name, want, got)
}

func builtinLen(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Null, arityErr("len", 1, len(args))
	}
	switch args[0].Kind() {
	case value.KindArray:
		return value.Number(float64(len(args[0].AsArray()))), nil
	case value.KindString:
		return value.Number(float64(len(args[0].AsString()))), nil
	case value.KindObject:
		return value.Number(float64(len(args[0].AsObject()))), nil
	case value.KindNull:
		return value.Number(0), nil
	default:
		return value.Null, errors.Errorf("len: unsupported operand kind %s", args[0].Kind())
	}
}

// builtinCount counts items in a either a bare array (1-arg form) or
// occurrences of a value within an array (2-arg form: count(arr, v)).
func builtinCount(args []value.Value) (value.Value, error) {
	switch len(args) {
	case 1:
		return builtinLen(args)
	case 2:
		if args[0].Kind() != value.KindArray {
			return value.Null, errors.New("count: first argument must be an array")
		}
		n := 0
		for _, item := range args[0].AsArray() {
			if value.Equal(item, args[1]) {
				n++
			}
		}
		return value.Number(float64(n)), nil
	default:
		return value.Null, arityErr("count", 2, len(args))
	}
}

func builtinAbs(args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind() != value.KindNumber {
		return value.Null, errors.New("abs: expected one Number argument")
	}
	return value.Number(math.Abs(args[0].AsNumber())), nil
}

func builtinMin(args []value.Value) (value.Value, error) {
	return numericFold(args, "min", func(a, b float64) float64 { return math.Min(a, b) })
}

func builtinMax(args []value.Value) (value.Value, error) {
	return numericFold(args, "max", func(a, b float64) float64 { return math.Max(a, b) })
}

func numericFold(args []value.Value, name string, fold func(a, b float64) float64) (value.Value, error) {
	nums, err := numericArgs(args, name)
	if err != nil {
		return value.Null, err
	}
	if len(nums) == 0 {
		return value.Null, errors.Errorf("%s: requires at least one Number argument", name)
	}
	acc := nums[0]
	for _, n := range nums[1:] {
		acc = fold(acc, n)
	}
	return value.Number(acc), nil
}

func numericArgs(args []value.Value, name string) ([]float64, error) {
	var nums []float64
	if len(args) == 1 && args[0].Kind() == value.KindArray {
		for _, v := range args[0].AsArray() {
			if v.Kind() != value.KindNumber {
				return nil, errors.Errorf("%s: array elements must be Number", name)
			}
			nums = append(nums, v.AsNumber())
		}
		return nums, nil
	}
	for _, v := range args {
		if v.Kind() != value.KindNumber {
			return nil, errors.Errorf("%s: arguments must be Number", name)
		}
		nums = append(nums, v.AsNumber())
	}
	return nums, nil
}

func builtinRound(args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind() != value.KindNumber {
		return value.Null, errors.New("round: expected one Number argument")
	}
	return value.Number(math.Round(args[0].AsNumber())), nil
}

func builtinFloor(args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind() != value.KindNumber {
		return value.Null, errors.New("floor: expected one Number argument")
	}
	return value.Number(math.Floor(args[0].AsNumber())), nil
}

func builtinCeil(args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind() != value.KindNumber {
		return value.Null, errors.New("ceil: expected one Number argument")
	}
	return value.Number(math.Ceil(args[0].AsNumber())), nil
}

func builtinUpper(args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind() != value.KindString {
		return value.Null, errors.New("upper: expected one String argument")
	}
	return value.String(strings.ToUpper(args[0].AsString())), nil
}

func builtinLower(args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind() != value.KindString {
		return value.Null, errors.New("lower: expected one String argument")
	}
	return value.String(strings.ToLower(args[0].AsString())), nil
}

func builtinSum(args []value.Value) (value.Value, error) {
	nums, err := numericArgs(args, "sum")
	if err != nil {
		return value.Null, err
	}
	var total float64
	for _, n := range nums {
		total += n
	}
	return value.Number(total), nil
}

func builtinAvg(args []value.Value) (value.Value, error) {
	nums, err := numericArgs(args, "avg")
	if err != nil {
		return value.Null, err
	}
	if len(nums) == 0 {
		return value.Number(0), nil
	}
	var total float64
	for _, n := range nums {
		total += n
	}
	return value.Number(total / float64(len(nums))), nil
}

// builtinCoalesce returns the first non-Null argument, or Null.
func builtinCoalesce(args []value.Value) (value.Value, error) {
	for _, v := range args {
		if !v.IsNull() {
			return v, nil
		}
	}
	return value.Null, nil
}
