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

package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/corint-sh/corint/ast"
	"github.com/corint-sh/corint/codegen"
	"github.com/corint-sh/corint/ir"
	"github.com/corint-sh/corint/yamlload"
)

// programSet is the atomically-swapped bundle of compiled programs, the
// ASTs the trace builder and registry matcher still need, and the
// config surface (spec §5: "Reload is an atomic swap... No torn
// reads"). Engine holds one behind an atomic.Pointer; a Decide call
// loads it once and runs entirely against that snapshot.
type programSet struct {
	rulePrograms     map[string]*ir.Program
	rulesetPrograms  map[string]*ir.Program
	pipelinePrograms map[string]*ir.Program

	ruleASTs     map[string]*ast.Rule
	rulesetASTs  map[string]*ast.Ruleset
	pipelineASTs map[string]*ast.Pipeline

	registry          *ast.Registry
	pipelineOrder     []string
	pipelineEventType map[string]string

	apis        []*yamlload.APIConfig
	lists       []*yamlload.ListConfig
	features    []*yamlload.FeatureConfig
	dataSources []*yamlload.DataSourceConfig
}

// compileProgramSet recompiles every artifact in repo off the request
// path (spec §5). Rule, ruleset and pipeline compilation are mutually
// independent — a ruleset's Program only needs its member rule *ids*
// (codegen/ruleset.go), never their compiled Programs — so all three
// run concurrently via errgroup (SPEC_FULL.md §5 expansion), grounded
// on the pack's inclusion of golang.org/x/sync.
func compileProgramSet(ctx context.Context, repo *Repository) (*programSet, error) {
	ps := &programSet{
		rulePrograms:      make(map[string]*ir.Program, len(repo.Rules)),
		rulesetPrograms:   make(map[string]*ir.Program, len(repo.Rulesets)),
		pipelinePrograms:  make(map[string]*ir.Program, len(repo.Pipelines)),
		ruleASTs:          make(map[string]*ast.Rule, len(repo.Rules)),
		rulesetASTs:       make(map[string]*ast.Ruleset, len(repo.Rulesets)),
		pipelineASTs:      make(map[string]*ast.Pipeline, len(repo.Pipelines)),
		pipelineEventType: make(map[string]string, len(repo.Pipelines)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for id, rule := range repo.Rules {
		id, rule := id, rule
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			prog, err := codegen.CompileRule(rule)
			if err != nil {
				return err
			}
			mu.Lock()
			ps.rulePrograms[id] = prog
			ps.ruleASTs[id] = rule
			mu.Unlock()
			return nil
		})
	}
	for id, rs := range repo.Rulesets {
		id, rs := id, rs
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			prog, err := codegen.CompileRuleset(rs)
			if err != nil {
				return err
			}
			mu.Lock()
			ps.rulesetPrograms[id] = prog
			ps.rulesetASTs[id] = rs
			mu.Unlock()
			return nil
		})
	}
	for id, p := range repo.Pipelines {
		id, p := id, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			prog, err := codegen.CompilePipeline(p)
			if err != nil {
				return err
			}
			mu.Lock()
			ps.pipelinePrograms[id] = prog
			ps.pipelineASTs[id] = p
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	ps.registry = repo.Registry
	ps.pipelineOrder = append([]string{}, repo.PipelineOrder...)
	for _, pid := range ps.pipelineOrder {
		if p, ok := ps.pipelineASTs[pid]; ok {
			ps.pipelineEventType[pid] = p.Metadata["event_type"]
		}
	}
	ps.apis = repo.APIs
	ps.lists = repo.Lists
	ps.features = repo.Features
	ps.dataSources = repo.DataSources

	return ps, nil
}
