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

package yamlload

import (
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// APIConfig describes one named external API collaborator (spec §6,
// configs/apis/*.yaml), consumed by package collab.
type APIConfig struct {
	Name      string            `yaml:"name"`
	BaseURL   string            `yaml:"base_url"`
	TimeoutMS int64             `yaml:"timeout_ms"`
	Headers   map[string]string `yaml:"headers"`
}

// LoadAPIConfig decodes one configs/apis/*.yaml entry.
func LoadAPIConfig(source string, data []byte) (*APIConfig, error) {
	var c APIConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, wrapErr(source, 0, err)
	}
	if c.Name == "" {
		return nil, wrapErr(source, 0, errors.New("api config: missing name"))
	}
	return &c, nil
}

// ListConfig describes one named static list (spec §6,
// configs/lists/*.yaml) used by the `in`/`not in` operators.
type ListConfig struct {
	ID     string   `yaml:"id"`
	Path   string   `yaml:"path"`
	Format string   `yaml:"format"`
	Values []string `yaml:"values"`
}

// LoadListConfig decodes one configs/lists/*.yaml entry.
func LoadListConfig(source string, data []byte) (*ListConfig, error) {
	var c ListConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, wrapErr(source, 0, err)
	}
	if c.ID == "" {
		return nil, wrapErr(source, 0, errors.New("list config: missing id"))
	}
	return &c, nil
}

// FeatureConfig describes one named feature source (spec §6,
// configs/features/*.yaml) consumed by a CallFeature instruction.
type FeatureConfig struct {
	Type        string
	Source      string `yaml:"source"`
	TTL         time.Duration
	Aggregation string `yaml:"aggregation"`
}

type featureConfigDoc struct {
	Type        string `yaml:"type"`
	Source      string `yaml:"source"`
	TTL         string `yaml:"ttl"`
	Aggregation string `yaml:"aggregation"`
}

// LoadFeatureConfig decodes one configs/features/*.yaml entry. TTL is
// written as a duration string ("5m", "30s") since yaml.v3 has no
// built-in time.Duration codec.
func LoadFeatureConfig(source string, data []byte) (*FeatureConfig, error) {
	var doc featureConfigDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, wrapErr(source, 0, err)
	}
	if doc.Type == "" {
		return nil, wrapErr(source, 0, errors.New("feature config: missing type"))
	}
	fc := &FeatureConfig{Type: doc.Type, Source: doc.Source, Aggregation: doc.Aggregation}
	if doc.TTL != "" {
		ttl, err := time.ParseDuration(doc.TTL)
		if err != nil {
			return nil, wrapErr(source, 0, errors.Wrap(err, "feature config: ttl"))
		}
		fc.TTL = ttl
	}
	return fc, nil
}

// DataSourceConfig describes one named database collaborator (spec
// §6, configs/datasources/*.yaml) consumed by package collab.
type DataSourceConfig struct {
	Name     string `yaml:"name"`
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	PoolSize int    `yaml:"pool_size"`
}

// LoadDataSourceConfig decodes one configs/datasources/*.yaml entry.
func LoadDataSourceConfig(source string, data []byte) (*DataSourceConfig, error) {
	var c DataSourceConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, wrapErr(source, 0, err)
	}
	if c.Name == "" {
		return nil, wrapErr(source, 0, errors.New("datasource config: missing name"))
	}
	return &c, nil
}
