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

type ruleDoc struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Params      map[string]string `yaml:"params"`
	When        whenDoc           `yaml:"when"`
	Score       int32             `yaml:"score"`
	Metadata    map[string]string `yaml:"metadata"`
	Version     string            `yaml:"version"`
	Conditions  yaml.Node         `yaml:"conditions"`
}

// LoadRule decodes a single Rule artifact (spec §3, §4.2).
func LoadRule(source string, data []byte) (*ast.Rule, error) {
	_, body, err := decodeDocuments(source, data)
	if err != nil {
		return nil, err
	}
	body = unwrapDocument(body)

	var doc ruleDoc
	if err := body.Decode(&doc); err != nil {
		return nil, wrapErr(source, body.Line, err)
	}
	if doc.Conditions.Kind != 0 {
		return nil, wrapErr(source, doc.Conditions.Line, ErrLegacyConditions)
	}
	if doc.ID == "" {
		return nil, wrapErr(source, body.Line, errors.New("rule: missing id"))
	}

	params, err := compileParamExprs(doc.Params)
	if err != nil {
		return nil, wrapErr(source, body.Line, errors.Wrap(err, "rule.params"))
	}

	if doc.Version == "" {
		doc.Version = "0.1"
	}
	if err := validateVersion(source, doc.Version); err != nil {
		return nil, err
	}

	return &ast.Rule{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Params:      params,
		When:        doc.When.WhenBlock,
		Score:       doc.Score,
		Metadata:    doc.Metadata,
		Version:     doc.Version,
	}, nil
}

func compileParamExprs(params map[string]string) (map[string]ast.Expression, error) {
	if len(params) == 0 {
		return nil, nil
	}
	out := make(map[string]ast.Expression, len(params))
	for name, src := range params {
		expr, err := parser.Parse(src)
		if err != nil {
			return nil, errors.Wrapf(err, "param %q", name)
		}
		out[name] = expr
	}
	return out, nil
}
