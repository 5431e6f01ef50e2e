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

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"os"

	"github.com/binaek/cling"

	"github.com/corint-sh/corint/engine"
)

func addExecCmd(cli *cling.CLI) {
	cli.WithCommand(
		cling.NewCommand("exec", execCmd).
			WithFlag(cling.
				NewStringCmdInput("repo").
				WithDefault(".").
				WithDescription("Policy repository directory to load").
				AsFlag(),
			).
			WithFlag(cling.
				NewStringCmdInput("output").
				WithDefault("table").
				WithValidator(cling.NewEnumValidator("table", "json")).
				WithDescription("Output format to use. One of: table, json").
				AsFlag(),
			).
			WithFlag(cling.
				NewStringCmdInput("event-file").
				WithDefault("").
				WithDescription("File to load the event envelope from").
				AsFlag(),
			).
			WithFlag(cling.
				NewStringCmdInput("event").
				WithDefault("{}").
				WithDescription("Event envelope JSON, merged over --event-file").
				AsFlag(),
			).
			WithFlag(cling.
				NewBoolCmdInput("trace").
				WithDefault(false).
				WithDescription("Include the pipeline execution trace in the response").
				AsFlag(),
			).
			WithFlag(cling.
				NewBoolCmdInput("return-features").
				WithDefault(false).
				WithDescription("Include resolved feature values in the response").
				AsFlag(),
			),
	)
}

type execCmdArgs struct {
	Repo           string `cling-name:"repo"`
	Output         string `cling-name:"output"`
	EventFile      string `cling-name:"event-file"`
	Event          string `cling-name:"event"`
	Trace          bool   `cling-name:"trace"`
	ReturnFeatures bool   `cling-name:"return-features"`
}

// execCmd runs a single decision against a loaded repository from the
// command line, bypassing the HTTP surface entirely. It merges
// --event-file under --event: a key given in --event overrides the same
// key read from --event-file.
func execCmd(ctx context.Context, args []string) error {
	input := execCmdArgs{}
	if err := cling.Hydrate(ctx, args, &input); err != nil {
		return err
	}

	eventFileMap := make(map[string]any)
	if input.EventFile != "" {
		content, err := os.ReadFile(input.EventFile)
		if err != nil {
			return err
		}
		decoder := json.NewDecoder(bytes.NewReader(content))
		if err := decoder.Decode(&eventFileMap); err != nil {
			return err
		}
	}

	var eventFlagMap map[string]any
	decoder := json.NewDecoder(bytes.NewReader([]byte(input.Event)))
	if err := decoder.Decode(&eventFlagMap); err != nil {
		return err
	}

	event := make(map[string]any)
	maps.Copy(event, eventFileMap)
	maps.Copy(event, eventFlagMap)

	repo, err := engine.LoadRepository(input.Repo)
	if err != nil {
		return err
	}

	eng := engine.NewEngine(nil, slog.Default())
	if err := eng.Reload(ctx, repo); err != nil {
		return err
	}

	req := engine.DecisionRequest{
		Event: event,
		Options: engine.Options{
			ReturnFeatures: input.ReturnFeatures,
			EnableTrace:    input.Trace,
		},
	}

	resp, err := eng.Decide(ctx, req)
	if err != nil {
		return err
	}

	if input.Output == "json" {
		formatExecOutputJSON(resp)
	} else {
		formatExecOutputTable(resp)
	}
	return nil
}

func formatExecOutputJSON(resp engine.DecisionResponse) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(resp)
}

// formatExecOutputTable prints a decision the way a terminal operator
// reads it.
//
// Example:
//
// Pipeline:  card_not_present
// Result:    REVIEW
// Score:     209 (raw 340)
// Actions:   [hold_for_review]
// Triggered: [velocity_abuse account_takeover]
func formatExecOutputTable(resp engine.DecisionResponse) {
	fmt.Printf("Pipeline:  %s\n", resp.PipelineID)
	fmt.Printf("Result:    %s\n", resp.Decision.Result)
	fmt.Printf("Score:     %d (raw %d)\n", resp.Decision.Scores.Canonical, resp.Decision.Scores.Raw)
	if len(resp.Decision.Actions) > 0 {
		fmt.Printf("Actions:   %v\n", resp.Decision.Actions)
	}
	if len(resp.Decision.Evidence.TriggeredRules) > 0 {
		fmt.Printf("Triggered: %v\n", resp.Decision.Evidence.TriggeredRules)
	}
	if resp.Decision.Cognition.Summary != "" {
		fmt.Printf("Summary:   %s\n", resp.Decision.Cognition.Summary)
	}
	if len(resp.Features) > 0 {
		fmt.Printf("Features:  %v\n", resp.Features)
	}
}
