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

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/corint-sh/corint/engine"
	"github.com/corint-sh/corint/runtime"
)

// handleDecide handles POST /v1/decide: decode, run, map errors to
// Problem Details (spec §7), encode the response.
func (api *HTTPAPI) handleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if api.metrics != nil {
		var span trace.Span
		ctx, span = api.metrics.Tracer.Start(ctx, "corint.decide")
		defer span.End()
	}

	start := time.Now()

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req engine.DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.writeErrorResponse(w, r, http.StatusBadRequest, "Invalid JSON", "the request body could not be parsed as valid JSON")
		return
	}

	if api.metrics != nil {
		api.metrics.ActiveEvaluations.Add(ctx, 1)
	}

	resp, err := api.engine.Decide(ctx, req)

	if api.metrics != nil {
		api.metrics.DecisionDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000.0)
		api.metrics.ActiveEvaluations.Add(ctx, -1)
	}

	if err != nil {
		status := statusFor(err)
		if api.metrics != nil {
			api.metrics.DecisionCount.Add(ctx, 1, metric.WithAttributes(attribute.String("corint.outcome", "error")))
		}
		api.writeErrorResponse(w, r, status, "Decision Failed", err.Error())
		return
	}

	if api.metrics != nil {
		api.metrics.DecisionCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("corint.outcome", resp.Decision.Result),
			attribute.String("corint.pipeline_id", resp.PipelineID),
		))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		api.log.ErrorContext(ctx, "error encoding decision response", "error", err)
	}
}

// statusFor maps an engine error to an HTTP status per spec §7's
// transport policy: request-side taxons get 400, a cancelled request
// gets 503, anything else 500.
func statusFor(err error) int {
	switch runtime.TaxonOf(err) {
	case runtime.TaxonMissingField, runtime.TaxonStackUnderflow, runtime.TaxonDivisionByZero,
		runtime.TaxonReservedField, runtime.TaxonRuntimeType:
		return http.StatusBadRequest
	case runtime.TaxonCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
