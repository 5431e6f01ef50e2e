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
	"log/slog"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/corint-sh/corint/collab"
	"github.com/corint-sh/corint/ir"
)

// ErrNotLoaded is returned by Decide when no repository has ever been
// loaded into the Engine.
var ErrNotLoaded = errors.New("engine: no program set loaded")

// Engine holds the currently active compiled program set behind an
// atomic.Pointer so Reload can swap repositories in without ever
// blocking or tearing a Decide call in flight (spec §5).
type Engine struct {
	programs atomic.Pointer[programSet]
	collab   *collab.Collaborators
	log      *slog.Logger
}

// NewEngine builds an Engine around the given collaborator set. Call
// Reload at least once before Decide; an unloaded Engine returns
// ErrNotLoaded.
func NewEngine(c *collab.Collaborators, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{collab: c, log: log}
}

// Reload compiles repo and, on success, atomically replaces the
// program set Decide reads from. A compile failure leaves the
// previously loaded (and still serving) program set untouched.
func (e *Engine) Reload(ctx context.Context, repo *Repository) error {
	ps, err := compileProgramSet(ctx, repo)
	if err != nil {
		return errors.Wrap(err, "compiling program set")
	}
	e.programs.Store(ps)
	return nil
}

// ProgramInfo is the shape an operator-facing inspection endpoint
// reports for a single compiled program.
type ProgramInfo struct {
	ID         string
	SourceType ir.SourceType
	Name       string
}

// ProgramInfo looks up a compiled rule, ruleset or pipeline by id.
func (e *Engine) ProgramInfo(id string) (ProgramInfo, bool) {
	ps := e.programs.Load()
	if ps == nil {
		return ProgramInfo{}, false
	}
	if p, ok := ps.rulePrograms[id]; ok {
		return ProgramInfo{ID: id, SourceType: p.Metadata.SourceType, Name: p.Metadata.Name}, true
	}
	if p, ok := ps.rulesetPrograms[id]; ok {
		return ProgramInfo{ID: id, SourceType: p.Metadata.SourceType, Name: p.Metadata.Name}, true
	}
	if p, ok := ps.pipelinePrograms[id]; ok {
		return ProgramInfo{ID: id, SourceType: p.Metadata.SourceType, Name: p.Metadata.Name}, true
	}
	return ProgramInfo{}, false
}

// ProgramIDs lists every compiled program id, grouped by kind, for a
// repository-listing endpoint.
func (e *Engine) ProgramIDs() (rules, rulesets, pipelines []string) {
	ps := e.programs.Load()
	if ps == nil {
		return nil, nil, nil
	}
	for id := range ps.rulePrograms {
		rules = append(rules, id)
	}
	for id := range ps.rulesetPrograms {
		rulesets = append(rulesets, id)
	}
	pipelines = append(pipelines, ps.pipelineOrder...)
	return rules, rulesets, pipelines
}
