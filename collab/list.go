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

package collab

import (
	"context"
	"log/slog"
	"sync"

	"github.com/corint-sh/corint/value"
	"github.com/corint-sh/corint/yamlload"
)

// StaticListService answers `in list.ID` membership checks from
// in-memory sets built at load time from configs/lists/*.yaml (spec
// §4.9, §6). A list id with no matching config is treated as empty
// and logged, never as an error (spec §7).
type StaticListService struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
	log  *slog.Logger
}

// NewStaticListService builds a StaticListService from decoded list
// configs (yamlload.LoadListConfig results).
func NewStaticListService(configs []*yamlload.ListConfig, log *slog.Logger) *StaticListService {
	if log == nil {
		log = slog.Default()
	}
	sets := make(map[string]map[string]struct{}, len(configs))
	for _, c := range configs {
		set := make(map[string]struct{}, len(c.Values))
		for _, v := range c.Values {
			set[v] = struct{}{}
		}
		sets[c.ID] = set
	}
	return &StaticListService{sets: sets, log: log}
}

// Contains implements ListService.
func (s *StaticListService) Contains(_ context.Context, listID string, v value.Value) (bool, error) {
	s.mu.RLock()
	set, ok := s.sets[listID]
	s.mu.RUnlock()
	if !ok {
		s.log.Debug("list lookup against unknown list id, treating as empty", "list_id", listID)
		return false, nil
	}
	if v.Kind() != value.KindString {
		v = value.String(v.String())
	}
	_, found := set[v.AsString()]
	return found, nil
}

// Reload atomically replaces the list set, used by the engine's
// reload path (spec §5).
func (s *StaticListService) Reload(configs []*yamlload.ListConfig) {
	sets := make(map[string]map[string]struct{}, len(configs))
	for _, c := range configs {
		set := make(map[string]struct{}, len(c.Values))
		for _, v := range c.Values {
			set[v] = struct{}{}
		}
		sets[c.ID] = set
	}
	s.mu.Lock()
	s.sets = sets
	s.mu.Unlock()
}
