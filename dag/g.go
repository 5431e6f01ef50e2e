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

// Package dag provides a small generic directed-acyclic-graph structure,
// used by package codegen to validate a Pipeline's step graph before
// it is linearised into IR (spec §4.4: routing steps must not cycle).
package dag

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// G is a directed graph over nodes identified by their String() value.
type G[T fmt.Stringer] interface {
	AddNode(T)
	AddEdge(T, T) error
	TopoSort() ([]T, error)
	DetectFirstCycle() []T
}

type gImpl[T fmt.Stringer] struct {
	lock  *sync.RWMutex
	nodes map[string]T
	edges map[string]map[string]struct{}
}

func New[T fmt.Stringer]() G[T] {
	return &gImpl[T]{
		lock:  &sync.RWMutex{},
		nodes: make(map[string]T),
		edges: make(map[string]map[string]struct{}),
	}
}

func (g *gImpl[T]) AddNode(node T) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.nodes[node.String()] = node
	if _, ok := g.edges[node.String()]; !ok {
		g.edges[node.String()] = make(map[string]struct{})
	}
}

var (
	ErrNodeMissing = errors.New("node not found")
	ErrSelfLoop    = errors.New("self-loop not allowed")
	ErrNotADAG     = errors.New("graph contains a cycle (not a DAG)")
)

// ErrCycle names the step-id path that closes a cycle.
type ErrCycle struct {
	Path []string
}

func (e ErrCycle) Error() string {
	return fmt.Sprintf("cycle detected: %v", strings.Join(e.Path, " -> "))
}

// AddEdge adds a directed edge from source to destination. It does not
// check for cycles; it errors only on a missing node or a self-loop.
func (d *gImpl[T]) AddEdge(sourceID, destID T) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if sourceID.String() == destID.String() {
		return ErrSelfLoop
	}
	if _, ok := d.nodes[sourceID.String()]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeMissing, sourceID)
	}
	if _, ok := d.nodes[destID.String()]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeMissing, destID)
	}

	if _, ok := d.edges[sourceID.String()]; !ok {
		d.edges[sourceID.String()] = make(map[string]struct{})
	}
	d.edges[sourceID.String()][destID.String()] = struct{}{}
	return nil
}

// TopoSort returns nodes in dependency order, or ErrCycle if the graph
// is not a DAG. Strategy: DFS with a post-order stack.
func (d *gImpl[T]) TopoSort() ([]T, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	visited := make(map[string]struct{})
	stack := make([]string, 0, len(d.nodes))
	visiting := make([]string, 0, len(d.nodes))

	var dfs func(node string) error
	dfs = func(node string) error {
		if slices.Contains(visiting, node) {
			idx := slices.Index(visiting, node)
			path := append(append([]string{}, visiting[idx:]...), node)
			return ErrCycle{Path: path}
		}
		if _, ok := visited[node]; ok {
			return nil
		}
		visiting = append(visiting, node)
		defer func() {
			visiting = visiting[:len(visiting)-1]
		}()

		visited[node] = struct{}{}
		for neighbor := range d.edges[node] {
			if err := dfs(neighbor); err != nil {
				return err
			}
		}
		stack = append(stack, node)
		return nil
	}

	for node := range d.nodes {
		if err := dfs(node); err != nil {
			return nil, err
		}
	}

	slices.Reverse(stack)

	nodes := make([]T, 0, len(stack))
	for _, node := range stack {
		nodes = append(nodes, d.nodes[node])
	}
	return nodes, nil
}

// DetectFirstCycle returns the first cycle found, or an empty slice if
// the graph is acyclic.
func (d *gImpl[T]) DetectFirstCycle() []T {
	d.lock.RLock()
	defer d.lock.RUnlock()

	visited := make(map[string]struct{})
	visiting := make([]string, 0, len(d.nodes))

	var dfs func(node string) []string
	dfs = func(node string) []string {
		if slices.Contains(visiting, node) {
			idx := slices.Index(visiting, node)
			return append(append([]string{}, visiting[idx:]...), node)
		}
		if _, ok := visited[node]; ok {
			return nil
		}
		visiting = append(visiting, node)
		defer func() {
			visiting = visiting[:len(visiting)-1]
		}()

		visited[node] = struct{}{}
		for neighbor := range d.edges[node] {
			if cycle := dfs(neighbor); len(cycle) > 0 {
				return cycle
			}
		}
		return nil
	}

	for node := range d.nodes {
		if cycle := dfs(node); len(cycle) > 0 {
			result := make([]T, len(cycle))
			for i, nodeStr := range cycle {
				result[i] = d.nodes[nodeStr]
			}
			return result
		}
	}

	return []T{}
}
