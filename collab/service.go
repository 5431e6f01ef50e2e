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
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/corint-sh/corint/value"
)

// ServiceEndpoint names one internal service's base URL (spec §6,
// configs/services/*.yaml).
type ServiceEndpoint struct {
	Name    string
	BaseURL string
	Timeout time.Duration
}

// HTTPServiceClient is the default ServiceClient: a thin JSON-over-HTTP
// client against internally-addressable services (spec §4.9). Unlike
// ExternalAPIClient it does not retry — internal services are expected
// to be fast and idempotent-unsafe (e.g. decrementing inventory), so a
// blind retry would double-apply side effects.
type HTTPServiceClient struct {
	client    *http.Client
	endpoints map[string]ServiceEndpoint
	log       *slog.Logger
}

// NewHTTPServiceClient builds a client from a set of named endpoints.
func NewHTTPServiceClient(endpoints []ServiceEndpoint, log *slog.Logger) *HTTPServiceClient {
	if log == nil {
		log = slog.Default()
	}
	m := make(map[string]ServiceEndpoint, len(endpoints))
	for _, e := range endpoints {
		m[e.Name] = e
	}
	return &HTTPServiceClient{client: &http.Client{}, endpoints: m, log: log}
}

// Call implements ServiceClient. A missing endpoint or a failed round
// trip is returned as an error; the VM's CallService instruction is
// responsible for turning that into a Null-and-continue (spec §7).
func (c *HTTPServiceClient) Call(ctx context.Context, req ServiceRequest) (ServiceResponse, error) {
	ep, ok := c.endpoints[req.Service]
	if !ok {
		return ServiceResponse{}, errors.Errorf("service %q is not configured", req.Service)
	}

	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"op":     req.Op,
		"params": value.ToGo(value.Object(req.Params)),
	})
	if err != nil {
		return ServiceResponse{}, errors.Wrap(err, "marshal service request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.BaseURL+"/"+req.Op, bytes.NewReader(body))
	if err != nil {
		return ServiceResponse{}, errors.Wrap(err, "build service request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return ServiceResponse{}, errors.Wrapf(err, "call service %q", req.Service)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return ServiceResponse{}, errors.Errorf("service %q returned %d", req.Service, resp.StatusCode)
	}

	var parsed any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.log.Debug("service call returned non-JSON body", "service", req.Service, "err", err)
		return ServiceResponse{Value: value.Null}, nil
	}
	return ServiceResponse{Value: value.FromGo(parsed)}, nil
}
