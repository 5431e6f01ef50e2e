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

package runtime

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/structs"
	"github.com/google/uuid"

	"github.com/corint-sh/corint/value"
)

// Version is the engine build/protocol version surfaced at sys.version.
// Overridable by cmd/corint at link time via -ldflags.
var Version = "0.1.0"

// sysFields mirrors the sys namespace shape (spec §3). It exists as a
// plain struct, rather than building the map literally field by field,
// so the field set and its `env.*`-style tag names live in one place;
// structs.Map turns it into the map LoadField/Store expect.
type sysFields struct {
	RequestID       string `structs:"request_id"`
	Timestamp       int64  `structs:"timestamp"`
	ISO8601         string `structs:"iso8601"`
	Year            int    `structs:"year"`
	Month           int    `structs:"month"`
	Day             int    `structs:"day"`
	Hour            int    `structs:"hour"`
	Minute          int    `structs:"minute"`
	Quarter         int    `structs:"quarter"`
	DayOfWeek       int    `structs:"day_of_week"`
	IsWeekend       bool   `structs:"is_weekend"`
	IsBusinessHours bool   `structs:"is_business_hours"`
	Version         string `structs:"version"`
}

// buildSys populates the read-only `sys` namespace with wall-clock
// derivatives and a fresh request id (spec §3).
func buildSys(requestID string, now time.Time) map[string]value.Value {
	weekday := now.Weekday()
	isWeekend := weekday == time.Saturday || weekday == time.Sunday
	hour := now.Hour()
	isBusinessHours := !isWeekend && hour >= 9 && hour < 17

	fields := sysFields{
		RequestID:       requestID,
		Timestamp:       now.Unix(),
		ISO8601:         now.UTC().Format(time.RFC3339),
		Year:            now.Year(),
		Month:           int(now.Month()),
		Day:             now.Day(),
		Hour:            now.Hour(),
		Minute:          now.Minute(),
		Quarter:         (int(now.Month())-1)/3 + 1,
		DayOfWeek:       int(weekday),
		IsWeekend:       isWeekend,
		IsBusinessHours: isBusinessHours,
		Version:         Version,
	}

	out := make(map[string]value.Value, 13)
	for k, v := range structs.Map(&fields) {
		out[k] = value.FromGo(v)
	}
	return out
}

// NewRequestID mints a `req_<YYYYMMDDHHmmss>_<6-hex-random>` id (spec
// §4.7 step 1).
func NewRequestID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	return "req_" + now.UTC().Format("20060102150405") + "_" + suffix
}

// buildEnv seeds the read-only `env` namespace from process environment
// variables prefixed CORINT_ (type-coerced) and FEATURE_* flags grouped
// under env.feature_flags, then default-fills max_score/default_action
// (spec §3, §6).
func buildEnv() map[string]value.Value {
	env := map[string]value.Value{}
	flags := map[string]value.Value{}

	for _, kv := range os.Environ() {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch {
		case strings.HasPrefix(name, "CORINT_"):
			key := strings.ToLower(strings.TrimPrefix(name, "CORINT_"))
			env[key] = coerceEnvValue(raw)
		case strings.HasPrefix(name, "FEATURE_"):
			key := strings.ToLower(strings.TrimPrefix(name, "FEATURE_"))
			flags[key] = value.Bool(isTruthyFlag(raw))
		}
	}

	env["feature_flags"] = value.Object(flags)
	if _, ok := env["max_score"]; !ok {
		env["max_score"] = value.Number(100)
	}
	if _, ok := env["default_action"]; !ok {
		env["default_action"] = value.String("approve")
	}
	return env
}

// coerceEnvValue applies the CORINT_* coercion table (spec §6): decimal
// number, canonical boolean spelling, JSON, else string.
func coerceEnvValue(raw string) value.Value {
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return value.Number(n)
	}
	if b, ok := parseCanonicalBool(raw); ok {
		return value.Bool(b)
	}
	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
		return value.FromGo(parsed)
	}
	return value.String(raw)
}

func parseCanonicalBool(raw string) (bool, bool) {
	switch strings.ToLower(raw) {
	case "true", "yes", "1", "on":
		return true, true
	case "false", "no", "0", "off":
		return false, true
	default:
		return false, false
	}
}

func isTruthyFlag(raw string) bool {
	b, ok := parseCanonicalBool(raw)
	return ok && b
}
