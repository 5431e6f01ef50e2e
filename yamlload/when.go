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

package yamlload

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/corint-sh/corint/ast"
	"github.com/corint-sh/corint/parser"
)

// ErrLegacyConditions is raised when a document still carries the
// retired `conditions:` array key (spec §4.2: "rejected with a
// specific diagnostic").
var ErrLegacyConditions = errors.New(`the "conditions:" key was retired; use when: {all|any|not: [...]}`)

// whenDoc decodes a WhenBlock in either of its two YAML shapes: a bare
// string (sugar for all:[<expr>]) or a mapping with event_type plus
// mutually exclusive all/any/not keys.
type whenDoc struct {
	ast.WhenBlock
}

func (w *whenDoc) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		expr, err := parser.ParseCondition(s)
		if err != nil {
			return err
		}
		w.ConditionGroup = &ast.ConditionGroup{
			Kind:       ast.GroupKindAll,
			Conditions: []ast.Condition{{Expr: expr}},
		}
		return nil

	case yaml.MappingNode:
		var m map[string]yaml.Node
		if err := node.Decode(&m); err != nil {
			return err
		}
		if _, ok := m["conditions"]; ok {
			return ErrLegacyConditions
		}
		if et, ok := m["event_type"]; ok {
			if err := et.Decode(&w.EventType); err != nil {
				return errors.Wrap(err, "when.event_type")
			}
		}
		cg, err := decodeConditionGroupFields(m)
		if err != nil {
			return err
		}
		w.ConditionGroup = cg
		return nil

	case 0:
		// Absent `when:` key — vacuously true, no event-type gate.
		return nil

	default:
		return errors.Errorf("when: unsupported YAML node kind %v", node.Kind)
	}
}

// decodeConditionGroupFields reads the mutually exclusive all/any/not
// keys out of a decoded mapping. It returns a nil group (not an
// error) when none of the three keys is present.
func decodeConditionGroupFields(m map[string]yaml.Node) (*ast.ConditionGroup, error) {
	type candidate struct {
		key  string
		kind ast.GroupKind
	}
	candidates := []candidate{
		{"all", ast.GroupKindAll},
		{"any", ast.GroupKindAny},
		{"not", ast.GroupKindNot},
	}

	var matched *candidate
	var listNode yaml.Node
	for i, c := range candidates {
		n, ok := m[c.key]
		if !ok {
			continue
		}
		if matched != nil {
			return nil, errors.New("when: all/any/not are mutually exclusive")
		}
		matched = &candidates[i]
		listNode = n
	}
	if matched == nil {
		return nil, nil
	}

	conds, err := decodeConditionList(&listNode)
	if err != nil {
		return nil, err
	}
	return &ast.ConditionGroup{Kind: matched.kind, Conditions: conds}, nil
}

// decodeConditionList decodes a YAML sequence of conditions, where
// each item is either a bare expression string or a nested group
// mapping.
func decodeConditionList(node *yaml.Node) ([]ast.Condition, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, errors.New("when: expected a list of conditions")
	}
	conds := make([]ast.Condition, 0, len(node.Content))
	for _, item := range node.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			var s string
			if err := item.Decode(&s); err != nil {
				return nil, err
			}
			expr, err := parser.ParseCondition(s)
			if err != nil {
				return nil, err
			}
			conds = append(conds, ast.Condition{Expr: expr})

		case yaml.MappingNode:
			var m map[string]yaml.Node
			if err := item.Decode(&m); err != nil {
				return nil, err
			}
			if _, ok := m["conditions"]; ok {
				return nil, ErrLegacyConditions
			}
			cg, err := decodeConditionGroupFields(m)
			if err != nil {
				return nil, err
			}
			if cg == nil {
				return nil, errors.New("when: nested condition entry must set all/any/not")
			}
			conds = append(conds, ast.Condition{Group: cg})

		default:
			return nil, errors.Errorf("when: unsupported condition node kind %v", item.Kind)
		}
	}
	return conds, nil
}
