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

import "github.com/corint-sh/corint/trace"

// DecisionRequest is the wire shape of a decision call (spec §6): the
// event under evaluation plus pre-fetched namespace seeds and
// per-request options.
type DecisionRequest struct {
	Event    map[string]any `json:"event"`
	Features map[string]any `json:"features,omitempty"`
	API      map[string]any `json:"api,omitempty"`
	Service  map[string]any `json:"service,omitempty"`
	LLM      map[string]any `json:"llm,omitempty"`
	Vars     map[string]any `json:"vars,omitempty"`

	Options  Options           `json:"options,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Options toggles per-request extras that cost extra work to produce.
type Options struct {
	ReturnFeatures bool `json:"return_features,omitempty"`
	EnableTrace    bool `json:"enable_trace,omitempty"`
	Async          bool `json:"async,omitempty"`
}

// DecisionResponse is the wire shape Decide returns (spec §6, §7).
type DecisionResponse struct {
	RequestID     string `json:"request_id"`
	Status        uint16 `json:"status"`
	ProcessTimeMS uint64 `json:"process_time_ms"`
	PipelineID    string `json:"pipeline_id,omitempty"`

	Decision Decision `json:"decision"`

	Features map[string]any       `json:"features,omitempty"`
	Trace    *trace.PipelineTrace `json:"trace,omitempty"`
}

// Decision is the outcome of one pipeline run: the signal, any actions,
// the score, supporting evidence and a short human-readable summary.
type Decision struct {
	Result    string    `json:"result"`
	Actions   []string  `json:"actions,omitempty"`
	Scores    Scores    `json:"scores"`
	Evidence  Evidence  `json:"evidence"`
	Cognition Cognition `json:"cognition"`
}

// Scores carries both the raw accumulator value and its canonical
// 0-1000 normalization (spec §4.8 "Score normalization").
type Scores struct {
	Canonical  uint16   `json:"canonical"`
	Raw        int32    `json:"raw"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Evidence lists the rule ids that fired, in first-trigger order.
type Evidence struct {
	TriggeredRules []string `json:"triggered_rules"`
}

// Cognition is the explanation surface: a free-text summary plus the
// reason codes a caller can match on programmatically.
type Cognition struct {
	Summary     string   `json:"summary,omitempty"`
	ReasonCodes []string `json:"reason_codes,omitempty"`
}
