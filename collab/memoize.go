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
	"time"

	"github.com/binaek/perch"
	"github.com/mitchellh/hashstructure/v2"

	"github.com/corint-sh/corint/value"
)

// MemoizedServiceClient wraps a ServiceClient with a short-lived
// per-(service, op, params) cache, the same shape the teacher's
// evalCall used for memoized call expressions: a content hash of the
// arguments keys the cache entry rather than a caller-supplied key,
// so two steps issuing the same idempotent lookup within the TTL
// window share one round trip.
//
// Only services explicitly marked memoizable at construction are
// cached — internal services are frequently side-effecting (spec
// §4.9's HTTPServiceClient doc comment), and caching those would
// silently suppress a second, distinct side effect.
type MemoizedServiceClient struct {
	inner      ServiceClient
	cache      *perch.Perch[ServiceResponse]
	ttl        time.Duration
	memoizable map[string]bool
}

// NewMemoizedServiceClient builds a memoizing decorator. memoizable
// names the set of service names eligible for caching; ttl defaults to
// 5 minutes, matching the teacher's default memoization window.
func NewMemoizedServiceClient(inner ServiceClient, memoizable []string, ttl time.Duration) *MemoizedServiceClient {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	set := make(map[string]bool, len(memoizable))
	for _, name := range memoizable {
		set[name] = true
	}
	return &MemoizedServiceClient{
		inner:      inner,
		cache:      perch.New[ServiceResponse](256),
		ttl:        ttl,
		memoizable: set,
	}
}

// Call implements ServiceClient. Non-memoizable services bypass the
// cache entirely.
func (m *MemoizedServiceClient) Call(ctx context.Context, req ServiceRequest) (ServiceResponse, error) {
	if !m.memoizable[req.Service] {
		return m.inner.Call(ctx, req)
	}

	argHash, err := hashstructure.Hash(value.ToGo(value.Object(req.Params)), hashstructure.FormatV2, nil)
	if err != nil {
		return m.inner.Call(ctx, req)
	}
	key := req.Service + "/" + req.Op + "#" + hashKey(argHash)

	return m.cache.Get(ctx, key, m.ttl, func(ctx context.Context, _ string) (ServiceResponse, error) {
		return m.inner.Call(ctx, req)
	})
}

func hashKey(h uint64) string {
	const digits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = digits[h&0xf]
		h >>= 4
	}
	return string(buf)
}
