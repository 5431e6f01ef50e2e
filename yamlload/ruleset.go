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
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/corint-sh/corint/ast"
	"github.com/corint-sh/corint/parser"
	"github.com/corint-sh/corint/signal"
)

type decisionRuleDoc struct {
	Condition string   `yaml:"condition"`
	Default   bool     `yaml:"default"`
	Signal    string   `yaml:"signal"`
	Actions   []string `yaml:"actions"`
	Reason    string   `yaml:"reason"`
}

func (d decisionRuleDoc) toAST() (ast.DecisionRule, error) {
	sig := signal.Signal(strings.ToUpper(d.Signal))
	if !signal.Valid(sig) {
		return ast.DecisionRule{}, errors.Errorf("conclusion: unknown signal %q", d.Signal)
	}
	row := ast.DecisionRule{
		Default: d.Default,
		Signal:  sig,
		Actions: d.Actions,
		Reason:  d.Reason,
	}
	if !d.Default {
		if strings.TrimSpace(d.Condition) == "" {
			return ast.DecisionRule{}, errors.New("conclusion: non-default row missing condition")
		}
		expr, err := parser.ParseCondition(d.Condition)
		if err != nil {
			return ast.DecisionRule{}, err
		}
		row.Condition = expr
	}
	return row, nil
}

type rulesetDoc struct {
	ID         string             `yaml:"id"`
	Name       string             `yaml:"name"`
	Extends    string             `yaml:"extends"`
	Rules      []string           `yaml:"rules"`
	Conclusion []decisionRuleDoc  `yaml:"conclusion"`
	Metadata   map[string]string  `yaml:"metadata"`
	Version    string             `yaml:"version"`
	Conditions yaml.Node          `yaml:"conditions"`
}

// LoadRuleset decodes a single Ruleset artifact (spec §3, §4.2).
func LoadRuleset(source string, data []byte) (*ast.Ruleset, error) {
	_, body, err := decodeDocuments(source, data)
	if err != nil {
		return nil, err
	}
	body = unwrapDocument(body)

	var doc rulesetDoc
	if err := body.Decode(&doc); err != nil {
		return nil, wrapErr(source, body.Line, err)
	}
	if doc.Conditions.Kind != 0 {
		return nil, wrapErr(source, doc.Conditions.Line, ErrLegacyConditions)
	}
	if doc.ID == "" {
		return nil, wrapErr(source, body.Line, errors.New("ruleset: missing id"))
	}

	rows := make([]ast.DecisionRule, 0, len(doc.Conclusion))
	for i, rd := range doc.Conclusion {
		row, err := rd.toAST()
		if err != nil {
			return nil, wrapErr(source, body.Line, errors.Wrapf(err, "conclusion[%d]", i))
		}
		rows = append(rows, row)
	}

	if doc.Version == "" {
		doc.Version = "0.1"
	}
	if err := validateVersion(source, doc.Version); err != nil {
		return nil, err
	}

	return &ast.Ruleset{
		ID:         doc.ID,
		Name:       doc.Name,
		Extends:    doc.Extends,
		Rules:      doc.Rules,
		Conclusion: rows,
		Metadata:   doc.Metadata,
		Version:    doc.Version,
	}, nil
}
