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

// Package yamlload loads Corint's YAML repository artifacts (spec
// §4.2, §6) into ast shapes: Rule, Ruleset, Pipeline, Registry, and
// the configs/{apis,lists,features,datasources} surface. Every loader
// accepts either a single YAML document or the two-document
// `imports:` header + `---` + body shape, built on gopkg.in/yaml.v3's
// Node decoding so bad documents report a source name and line.
package yamlload

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadError wraps a YAML decoding or shape error with the source name
// (usually a file path) and, when available, the offending line.
type LoadError struct {
	Source string
	Line   int
	Err    error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func wrapErr(source string, line int, err error) error {
	if err == nil {
		return nil
	}
	return &LoadError{Source: source, Line: line, Err: err}
}

// importsHeader is the optional first document in a two-document
// artifact file (spec §4.2: "multi-document imports header + --- +
// definition").
type importsHeader struct {
	Version string   `yaml:"version"`
	Imports []string `yaml:"imports"`
}

// decodeDocuments splits data into an optional header node and the
// body node that carries the actual artifact.
func decodeDocuments(source string, data []byte) (header *yaml.Node, body *yaml.Node, err error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var docs []*yaml.Node
	for {
		var n yaml.Node
		if derr := dec.Decode(&n); derr != nil {
			if errors.Is(derr, io.EOF) {
				break
			}
			return nil, nil, wrapErr(source, 0, derr)
		}
		docs = append(docs, &n)
	}
	switch len(docs) {
	case 0:
		return nil, nil, wrapErr(source, 0, errors.New("empty YAML document"))
	case 1:
		return nil, docs[0], nil
	case 2:
		return docs[0], docs[1], nil
	default:
		return nil, nil, wrapErr(source, 0, errors.Errorf("expected 1 or 2 YAML documents, got %d", len(docs)))
	}
}

// unwrapDocument returns node itself, or node.Content[0] when node is
// the synthetic top-level DocumentNode yaml.Decoder hands back.
func unwrapDocument(node *yaml.Node) *yaml.Node {
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		return node.Content[0]
	}
	return node
}

// validateVersion checks an artifact's `version:` key (spec §4.2)
// parses as semver, so a typo'd version string is caught at load time
// rather than silently accepted and compared lexically later.
func validateVersion(source, v string) error {
	if _, err := semver.NewVersion(v); err != nil {
		return wrapErr(source, 0, errors.Wrapf(err, "invalid version %q", v))
	}
	return nil
}
