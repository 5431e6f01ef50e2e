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
	"context"
	"fmt"

	"github.com/binaek/cling"

	"github.com/corint-sh/corint/engine"
)

func addValidateCmd(cli *cling.CLI) {
	cli.WithCommand(
		cling.NewCommand("validate", validateCmd).
			WithFlag(cling.
				NewStringCmdInput("repo").
				WithDefault(".").
				WithDescription("Policy repository directory to validate").
				AsFlag(),
			),
	)
}

type validateCmdArgs struct {
	Repo string `cling-name:"repo"`
}

// validateCmd loads every ruleset, rule and pipeline in a repository
// and runs them through the full YAML -> AST -> IR pipeline without
// starting a server, surfacing the first parse or semantic error found.
func validateCmd(ctx context.Context, args []string) error {
	input := validateCmdArgs{}
	if err := cling.Hydrate(ctx, args, &input); err != nil {
		return err
	}

	repo, err := engine.LoadRepository(input.Repo)
	if err != nil {
		return err
	}

	eng := engine.NewEngine(nil, nil)
	if err := eng.Reload(ctx, repo); err != nil {
		return err
	}

	rules, rulesets, pipelines := eng.ProgramIDs()
	fmt.Printf("repository is valid: %d rules, %d rulesets, %d pipelines\n",
		len(rules), len(rulesets), len(pipelines))
	return nil
}
