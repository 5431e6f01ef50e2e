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

	"github.com/corint-sh/corint/ast"
)

type registryEntryDoc struct {
	When     whenDoc `yaml:"when"`
	Pipeline string  `yaml:"pipeline"`
}

// LoadRegistry decodes registry.yaml: an ordered top-level list of
// {when, pipeline} entries (spec §6). Order matters — the first
// matching entry wins, so entries are kept in document order.
func LoadRegistry(source string, data []byte) (*ast.Registry, error) {
	_, body, err := decodeDocuments(source, data)
	if err != nil {
		return nil, err
	}
	body = unwrapDocument(body)

	var docs []registryEntryDoc
	if err := body.Decode(&docs); err != nil {
		return nil, wrapErr(source, body.Line, err)
	}

	entries := make([]ast.RegistryEntry, 0, len(docs))
	for i, d := range docs {
		if d.Pipeline == "" {
			return nil, wrapErr(source, body.Line, errors.Errorf("registry[%d]: missing pipeline", i))
		}
		entries = append(entries, ast.RegistryEntry{
			When:       d.When.WhenBlock,
			PipelineID: d.Pipeline,
		})
	}

	return &ast.Registry{Entries: entries}, nil
}
