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

// Package collab holds the I/O-collaborator interfaces the IR VM
// suspends on (spec §4.9, "C10"): data sources, external APIs,
// services, list lookups and the LLM namespace. The VM (package
// runtime) depends only on these narrow interfaces; concrete
// transports (SQL, HTTP, in-memory) live alongside them in this
// package, but the engine is free to substitute test doubles.
package collab

import (
	"context"
	"time"

	"github.com/corint-sh/corint/value"
)

// Filter is one predicate of a Query (spec §4.9).
type Filter struct {
	Field string
	Op    string
	Value value.Value
}

// Aggregation names a computed column of a Query result.
type Aggregation struct {
	Type       string // count, sum, avg, min, max, distinct_count, ...
	Field      string
	OutputName string
}

// Query is the semantic shape a DataSourceClient consumes; concrete
// implementations translate it to their own dialect (spec §4.9).
type Query struct {
	Entity       string
	Filters      []Filter
	Aggregations []Aggregation
	TimeWindow   time.Duration
	GroupBy      []string
	Limit        int
}

// QueryResult is a flat row set keyed by column name.
type QueryResult struct {
	Rows []map[string]value.Value
}

// DataSourceClient exposes the feature-backing query surface (spec
// §4.9). Implementations own their own connection pooling.
type DataSourceClient interface {
	Query(ctx context.Context, q Query) (QueryResult, error)
	GetFeature(ctx context.Context, name, entityKey string) (value.Value, error)
}

// ExternalAPIClient calls a named external HTTP API (spec §4.9). It
// must not raise outside the declared fallback semantics the VM
// already implements — a returned error simply tells the VM's
// CallExternal instruction to fall back.
type ExternalAPIClient interface {
	Call(ctx context.Context, api, endpoint string, params map[string]value.Value, timeout time.Duration) (value.Value, error)
}

// ServiceRequest/ServiceResponse shape a CallService invocation.
type ServiceRequest struct {
	Service string
	Op      string
	Params  map[string]value.Value
}

type ServiceResponse struct {
	Value value.Value
}

// ServiceClient calls a named internal service (spec §4.9). Errors
// surface as Null values with a counter increment at the call site,
// not as a propagated Go error that aborts the request.
type ServiceClient interface {
	Call(ctx context.Context, req ServiceRequest) (ServiceResponse, error)
}

// ListService answers `in list.ID` / `not in list.ID` membership
// checks (spec §4.9). A missing list is treated as empty, not an
// error (spec §7).
type ListService interface {
	Contains(ctx context.Context, listID string, v value.Value) (bool, error)
}

// LLMRequest/LLMResponse back the `llm` namespace (spec §4.9 expansion,
// supplemented from original_source's llm/provider.rs — see
// DESIGN.md).
type LLMRequest struct {
	Prompt         string
	Model          string
	EnableThinking bool
}

type LLMResponse struct {
	Text     string
	Thinking string
	Tokens   int
}

// LLMClient calls a configured LLM provider.
type LLMClient interface {
	Call(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// Collaborators bundles every I/O dependency the VM needs for one
// engine instance (spec §4.9, §5: "thread-safe and cheap to clone by
// handle").
type Collaborators struct {
	DataSource  DataSourceClient
	ExternalAPI ExternalAPIClient
	Service     ServiceClient
	List        ListService
	LLM         LLMClient
}
