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

// Package cmd wires corint's subcommands (spec §6 "C14") on top of the
// pack's own cling CLI framework, grounded on its cmd/cmd.go.
package cmd

import (
	"context"
	"log/slog"

	"github.com/binaek/cling"
)

// Setup builds the corint CLI: serve, validate, exec.
func Setup(ctx context.Context, version string) *cling.CLI {
	cli := cling.NewCLI("corint", version).
		WithDescription("Corint is a YAML-defined fraud and risk decision engine").
		WithPreRun(func(ctx context.Context, args []string) error {
			slog.DebugContext(ctx, "==> starting corint", slog.String("version", version))
			return nil
		}).
		WithPostRun(func(ctx context.Context, args []string) error {
			slog.DebugContext(ctx, "==> exiting corint")
			return nil
		})

	addServeCmd(cli)
	addValidateCmd(cli)
	addExecCmd(cli)

	return cli
}

// Execute runs cli against args.
func Execute(ctx context.Context, cli *cling.CLI, args []string) error {
	if cli == nil {
		panic("CLI cannot be NIL")
	}
	return cli.Run(ctx, args)
}
