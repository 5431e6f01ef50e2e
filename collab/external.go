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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pkg/errors"

	"github.com/corint-sh/corint/value"
	"github.com/corint-sh/corint/yamlload"
)

// HTTPExternalAPIClient is the default ExternalAPIClient: a plain
// net/http client with exponential backoff retry, one registered base
// URL/headers per named API (spec §4.9, §6 configs/apis/*.yaml).
type HTTPExternalAPIClient struct {
	client *http.Client
	apis   map[string]*yamlload.APIConfig
}

// NewHTTPExternalAPIClient builds a client from decoded API configs.
func NewHTTPExternalAPIClient(configs []*yamlload.APIConfig) *HTTPExternalAPIClient {
	apis := make(map[string]*yamlload.APIConfig, len(configs))
	for _, c := range configs {
		apis[c.Name] = c
	}
	return &HTTPExternalAPIClient{client: &http.Client{}, apis: apis}
}

// Call implements ExternalAPIClient. The per-step timeout (spec §5)
// governs the whole retried call, not just one attempt.
func (c *HTTPExternalAPIClient) Call(ctx context.Context, api, endpoint string, params map[string]value.Value, timeout time.Duration) (value.Value, error) {
	cfg, ok := c.apis[api]
	if !ok {
		return value.Null, errors.Errorf("external api %q is not configured", api)
	}

	if timeout <= 0 {
		timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(value.ToGo(value.Object(params)))
	if err != nil {
		return value.Null, errors.Wrap(err, "marshal external api params")
	}

	op := func() (value.Value, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+endpoint, bytes.NewReader(body))
		if err != nil {
			return value.Null, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range cfg.Headers {
			req.Header.Set(k, v)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return value.Null, err // retryable: network error
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return value.Null, errors.Errorf("external api %q returned %d", api, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return value.Null, backoff.Permanent(errors.Errorf("external api %q returned %d", api, resp.StatusCode))
		}

		var parsed any
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return value.Null, backoff.Permanent(errors.Wrap(err, "decode external api response"))
		}
		return value.FromGo(parsed), nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
}
