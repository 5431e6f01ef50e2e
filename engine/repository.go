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

// Package engine implements the decision orchestrator (spec §4.7,
// "C8") and the repository loader that feeds it (spec §6, "C11"): a
// read-only file-system walk over a policy repository, compiled into
// an atomically-swappable set of programs that Decide drives per
// request.
package engine

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/corint-sh/corint/ast"
	"github.com/corint-sh/corint/yamlload"
)

// Repository is the parsed (but not yet compiled) contents of a policy
// repository laid out per spec §6: `library/rules/**/*.yaml`,
// `library/rulesets/**/*.yaml`, `pipelines/**/*.yaml`, `registry.yaml`,
// `configs/{apis,lists,features,datasources}/*.yaml`.
type Repository struct {
	Rules    map[string]*ast.Rule
	Rulesets map[string]*ast.Ruleset
	Pipelines map[string]*ast.Pipeline

	// PipelineOrder lists pipeline ids in the lexicographic order of the
	// file path each was loaded from — the deterministic tie-break the
	// legacy registry fallback uses (spec.md §9 Open Question, resolved
	// in SPEC_FULL.md §4.7).
	PipelineOrder []string

	Registry *ast.Registry

	APIs        []*yamlload.APIConfig
	Lists       []*yamlload.ListConfig
	Features    []*yamlload.FeatureConfig
	DataSources []*yamlload.DataSourceConfig
}

type pipelinePathID struct {
	path string
	id   string
}

// LoadRepository walks root (grounded on the teacher's
// `loader/file.go` fs.WalkDir-over-os.DirFS pattern, generalized from
// a single policy-file extension to the four YAML artifact kinds and
// the config surface spec §6 names) and parses every recognised YAML
// file into the Repository it builds.
func LoadRepository(root string) (*Repository, error) {
	repo := &Repository{
		Rules:     map[string]*ast.Rule{},
		Rulesets:  map[string]*ast.Ruleset{},
		Pipelines: map[string]*ast.Pipeline{},
	}
	var pipelinePaths []pipelinePathID

	fsys := os.DirFS(root)
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return errors.Wrapf(err, "reading %q", path)
		}
		slash := filepath.ToSlash(path)

		switch {
		case slash == "registry.yaml":
			reg, err := yamlload.LoadRegistry(path, data)
			if err != nil {
				return err
			}
			repo.Registry = reg

		case strings.HasPrefix(slash, "library/rules/"):
			r, err := yamlload.LoadRule(path, data)
			if err != nil {
				return err
			}
			repo.Rules[r.ID] = r

		case strings.HasPrefix(slash, "library/rulesets/"):
			rs, err := yamlload.LoadRuleset(path, data)
			if err != nil {
				return err
			}
			repo.Rulesets[rs.ID] = rs

		case strings.HasPrefix(slash, "pipelines/"):
			p, err := yamlload.LoadPipeline(path, data)
			if err != nil {
				return err
			}
			repo.Pipelines[p.ID] = p
			pipelinePaths = append(pipelinePaths, pipelinePathID{path: slash, id: p.ID})

		case strings.HasPrefix(slash, "configs/apis/"):
			c, err := yamlload.LoadAPIConfig(path, data)
			if err != nil {
				return err
			}
			repo.APIs = append(repo.APIs, c)

		case strings.HasPrefix(slash, "configs/lists/"):
			c, err := yamlload.LoadListConfig(path, data)
			if err != nil {
				return err
			}
			repo.Lists = append(repo.Lists, c)

		case strings.HasPrefix(slash, "configs/features/"):
			c, err := yamlload.LoadFeatureConfig(path, data)
			if err != nil {
				return err
			}
			repo.Features = append(repo.Features, c)

		case strings.HasPrefix(slash, "configs/datasources/"):
			c, err := yamlload.LoadDataSourceConfig(path, data)
			if err != nil {
				return err
			}
			repo.DataSources = append(repo.DataSources, c)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "loading repository at %q", root)
	}

	sort.Slice(pipelinePaths, func(i, j int) bool { return pipelinePaths[i].path < pipelinePaths[j].path })
	repo.PipelineOrder = make([]string, len(pipelinePaths))
	for i, p := range pipelinePaths {
		repo.PipelineOrder[i] = p.id
	}

	return repo, nil
}
