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
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/binaek/cling"

	"github.com/corint-sh/corint/api"
	"github.com/corint-sh/corint/collab"
	"github.com/corint-sh/corint/config"
	"github.com/corint-sh/corint/constants"
	"github.com/corint-sh/corint/engine"
	"github.com/corint-sh/corint/telemetry"
)

func addServeCmd(cli *cling.CLI) {
	cli.WithCommand(
		cling.NewCommand("serve", serveCmd).
			WithFlag(cling.
				NewStringCmdInput("repo").
				WithDefault("./").
				WithDescription("Policy repository directory to serve").
				AsFlag(),
			).
			WithFlag(cling.
				NewStringCmdInput("config").
				WithDefault("corint.toml").
				WithDescription("Path to the engine configuration file").
				AsFlag().
				FromEnv([]string{constants.EnvConfigFile}),
			).
			WithFlag(cling.
				NewIntCmdInput("port").
				WithDefault(0).
				WithDescription("Port to listen on, overrides corint.toml [server].addr").
				AsFlag(),
			).
			WithFlag(cling.
				NewCmdSliceInput[string]("listen").
				WithDefault([]string{"local"}).
				WithDescription("Address(es) to listen on").
				AsFlag(),
			).
			WithFlag(
				cling.NewBoolCmdInput("otel-enabled").
					WithDefault(false).
					WithDescription("Enable OpenTelemetry export").
					AsFlag().
					FromEnv([]string{constants.EnvOtelEnabled}),
			).
			WithFlag(
				cling.NewStringCmdInput("otel-endpoint").
					WithDefault("http://localhost:4318").
					WithDescription("OpenTelemetry collector endpoint").
					AsFlag().
					FromEnv([]string{constants.EnvOtelEndpoint}),
			).
			WithFlag(
				cling.NewStringCmdInput("otel-protocol").
					WithDefault("http").
					WithValidator(cling.NewEnumValidator("http", "grpc")).
					WithDescription("OpenTelemetry protocol. One of: http, grpc.").
					AsFlag().
					FromEnv([]string{constants.EnvOtelProtocol}),
			),
	)
}

type serveCmdArgs struct {
	Repo         string   `cling-name:"repo"`
	ConfigPath   string   `cling-name:"config"`
	Port         int      `cling-name:"port"`
	Listen       []string `cling-name:"listen"`
	OtelEnabled  bool     `cling-name:"otel-enabled"`
	OtelEndpoint string   `cling-name:"otel-endpoint"`
	OtelProtocol string   `cling-name:"otel-protocol"`
}

func serveCmd(ctx context.Context, args []string) error {
	input := serveCmdArgs{}
	if err := cling.Hydrate(ctx, args, &input); err != nil {
		return err
	}

	cfg, err := config.Load(input.ConfigPath)
	if err != nil {
		return err
	}

	repo, err := engine.LoadRepository(input.Repo)
	if err != nil {
		return err
	}

	otelCfg := telemetry.Config{
		Enabled:        input.OtelEnabled || cfg.OTel.Enabled,
		Endpoint:       firstNonEmpty(input.OtelEndpoint, cfg.OTel.Endpoint),
		Protocol:       firstNonEmpty(input.OtelProtocol, cfg.OTel.Protocol),
		ServiceName:    constants.AppName,
		ServiceVersion: constants.AppVersion,
	}

	var shutdownTelemetry telemetry.ShutdownFn
	if otelCfg.Enabled {
		shutdownTelemetry, err = telemetry.InitProvider(ctx, otelCfg)
		if err != nil {
			return err
		}
		defer func() {
			if shutdownTelemetry != nil {
				_ = shutdownTelemetry(context.WithoutCancel(ctx))
			}
		}()
	}

	metrics, err := telemetry.NewDecisionMetrics()
	if err != nil {
		return err
	}

	collaborators, err := buildCollaborators(repo, cfg)
	if err != nil {
		return err
	}

	eng := engine.NewEngine(collaborators, slog.Default())
	if err := eng.Reload(ctx, repo); err != nil {
		return err
	}

	server := api.NewHTTPAPI(eng, metrics, slog.Default())
	server.MarkReloaded()

	port := input.Port
	if port == 0 {
		port = portFromAddr(cfg.Server.Addr, 8080)
	}

	if err := server.Setup(ctx, port, input.Listen); err != nil {
		return err
	}

	go server.StartServer(ctx)

	<-ctx.Done()

	return server.StopServer(context.WithoutCancel(ctx))
}

// buildCollaborators assembles the I/O dependencies Decide needs from
// the repository's config surface (spec §4.9). A repository with no
// configured data source still serves: feature lookups simply return
// Null (spec §4.5 fallback).
func buildCollaborators(repo *engine.Repository, cfg config.Config) (*collab.Collaborators, error) {
	var dataSource collab.DataSourceClient
	if len(repo.DataSources) > 0 {
		if dsCfg, ok := cfg.DataSource["primary"]; ok && dsCfg.DSNEnv != "" {
			dsn := os.Getenv(dsCfg.DSNEnv)
			db, err := sql.Open(dsCfg.Driver, dsn)
			if err != nil {
				return nil, fmt.Errorf("opening data source: %w", err)
			}
			if dsCfg.PoolSize > 0 {
				db.SetMaxOpenConns(dsCfg.PoolSize)
			}
			sqlSource, err := collab.NewSQLDataSourceClient(db, repo.DataSources[0])
			if err != nil {
				return nil, err
			}

			ttl := time.Duration(cfg.Cache.L1TTLSeconds) * time.Second
			capacity := cfg.Cache.L1MaxEntries
			if capacity <= 0 {
				capacity = 10000
			}
			dataSource = collab.NewCachedDataSource(sqlSource, capacity, func(string) time.Duration { return ttl }, nil)
		}
	}

	return &collab.Collaborators{
		DataSource:  dataSource,
		ExternalAPI: collab.NewHTTPExternalAPIClient(repo.APIs),
		Service:     collab.NewHTTPServiceClient(nil, slog.Default()),
		List:        collab.NewStaticListService(repo.Lists, slog.Default()),
		LLM:         collab.NewMockLLMClient(),
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// portFromAddr extracts the numeric port from a "[host]:port" address
// string, falling back to def on any parse failure.
func portFromAddr(addr string, def int) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return def
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return def
	}
	return port
}
