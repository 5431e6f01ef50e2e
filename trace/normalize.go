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

// Package trace reconstructs per-condition / per-step execution traces
// and normalises raw scores to the canonical 0-1000 range (spec §4.8,
// "C9").
package trace

import "math"

// sigmoidCenter/sigmoidSpread pin the logistic curve spec §4.8 fixes:
// "a logistic curve centred at 500 (industry-standard sigmoid)",
// `canonical = 1000/(1+exp(-(raw-500)/120))`.
const (
	sigmoidCenter = 500.0
	sigmoidSpread = 120.0
)

// Normalize maps a raw i32 score aggregate to the canonical u16 range
// 0..=1000 via a logistic curve centred at 500 (spec §4.8): raw=500
// maps to exactly 500, very negative raw asymptotically floors at 0,
// very positive raw asymptotically saturates near 1000, and the
// mapping is strictly monotonically non-decreasing.
func Normalize(raw int32) uint16 {
	x := (float64(raw) - sigmoidCenter) / sigmoidSpread
	canonical := 1000.0 / (1.0 + math.Exp(-x))
	switch {
	case canonical < 0:
		canonical = 0
	case canonical > 1000:
		canonical = 1000
	}
	return uint16(math.Round(canonical))
}
