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

package ast

import (
	"fmt"
	"strings"
)

// Render renders expr back to source-like text, used for the
// metadata.custom side-channel (conditions_json / condition_group_json
// / conclusion_json, spec §3/§9) and by the trace builder's
// ConditionTrace.expression field (spec §4.8).
func Render(expr Expression) string {
	switch n := expr.(type) {
	case *Literal:
		return n.Value.String()
	case *FieldAccess:
		return strings.Join(n.Path, ".")
	case *Binary:
		return fmt.Sprintf("%s %s %s", Render(n.Left), n.Op, Render(n.Right))
	case *Unary:
		return fmt.Sprintf("%s%s", n.Op, Render(n.Operand))
	case *FunctionCall:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = Render(a)
		}
		return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ", "))
	case *Ternary:
		return fmt.Sprintf("%s ? %s : %s", Render(n.Cond), Render(n.Then), Render(n.Else))
	case *LogicalGroup:
		items := make([]string, len(n.Conditions))
		for i, c := range n.Conditions {
			items[i] = Render(c)
		}
		return fmt.Sprintf("%s(%s)", n.Op, strings.Join(items, ", "))
	case *ListReference:
		return "list." + n.ListID
	case *ResultAccess:
		if n.RulesetID == "" {
			return "result." + n.Field
		}
		return fmt.Sprintf("result.%s.%s", n.RulesetID, n.Field)
	case *ArrayLiteral:
		items := make([]string, len(n.Items))
		for i, item := range n.Items {
			items[i] = Render(item)
		}
		return "[" + strings.Join(items, ", ") + "]"
	default:
		return fmt.Sprintf("<%T>", expr)
	}
}

// RenderConditionGroup renders a ConditionGroup back to source-like
// text for the same side-channel purposes as Render.
func RenderConditionGroup(cg *ConditionGroup) string {
	if cg == nil {
		return "true"
	}
	items := make([]string, len(cg.Conditions))
	for i, c := range cg.Conditions {
		items[i] = RenderCondition(c)
	}
	return fmt.Sprintf("%s(%s)", cg.Kind, strings.Join(items, ", "))
}

func RenderCondition(c Condition) string {
	if c.Group != nil {
		return RenderConditionGroup(c.Group)
	}
	return Render(c.Expr)
}
