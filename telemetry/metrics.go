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

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DecisionMetrics bundles the instruments package api records around
// every Decide call (SPEC_FULL.md §9 expansion of spec §4.7's "one
// span per decision" requirement).
type DecisionMetrics struct {
	ActiveEvaluations metric.Int64UpDownCounter
	DecisionDuration  metric.Float64Histogram
	DecisionCount     metric.Int64Counter
	Tracer            trace.Tracer
}

// NewDecisionMetrics builds the instrument set from the global
// MeterProvider/TracerProvider (set by InitProvider, or the no-op
// defaults when telemetry is disabled).
func NewDecisionMetrics() (*DecisionMetrics, error) {
	meter := otel.Meter("corint/engine")

	active, err := meter.Int64UpDownCounter("corint.active_evaluations",
		metric.WithDescription("decisions currently in flight"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: active_evaluations: %w", err)
	}
	duration, err := meter.Float64Histogram("corint.decision.duration",
		metric.WithDescription("decision latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: decision.duration: %w", err)
	}
	count, err := meter.Int64Counter("corint.decision.count",
		metric.WithDescription("decisions rendered, by signal and pipeline"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: decision.count: %w", err)
	}

	return &DecisionMetrics{
		ActiveEvaluations: active,
		DecisionDuration:  duration,
		DecisionCount:     count,
		Tracer:            otel.Tracer("corint/engine"),
	}, nil
}
