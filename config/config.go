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

// Package config parses corint.toml (spec §6 "C15"), the engine's own
// operational configuration — distinct from the YAML policy repository
// a Repository is loaded from.
package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr          string `toml:"addr"`
	ReadTimeoutMS int    `toml:"read_timeout_ms"`
}

// DataSourceConfig configures one named upstream data source pool.
type DataSourceConfig struct {
	Driver   string `toml:"driver"`
	DSNEnv   string `toml:"dsn_env"`
	PoolSize int    `toml:"pool_size"`
}

// CacheConfig configures the feature-cache L1 layer.
type CacheConfig struct {
	L1TTLSeconds int `toml:"l1_ttl_seconds"`
	L1MaxEntries int `toml:"l1_max_entries"`
}

// OTelConfig configures telemetry export.
type OTelConfig struct {
	Enabled     bool   `toml:"enabled"`
	Endpoint    string `toml:"endpoint"`
	Protocol    string `toml:"protocol"`
	ServiceName string `toml:"service_name"`
}

// Config is the root of corint.toml.
type Config struct {
	Server     ServerConfig                `toml:"server"`
	DataSource map[string]DataSourceConfig `toml:"datasource"`
	Cache      CacheConfig                 `toml:"cache"`
	OTel       OTelConfig                  `toml:"otel"`
}

// Default returns the configuration corint serve falls back to when no
// corint.toml is present.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080", ReadTimeoutMS: 5000},
		Cache:  CacheConfig{L1TTLSeconds: 30, L1MaxEntries: 10000},
		OTel:   OTelConfig{Protocol: "http", ServiceName: "corint"},
	}
}

// Load reads and parses path. A missing file is not an error: Default
// is returned instead, matching the teacher's "config is optional,
// flags/env fill the rest" posture.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, errors.Wrapf(err, "reading %q", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing %q", path)
	}
	return cfg, nil
}
