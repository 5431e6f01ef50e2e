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

// Package api exposes the decision engine over HTTP (spec §6, "C13"):
// POST /v1/decide, GET /healthz and GET /v1/programs/{id}, grounded on
// the pack's own api/http.go (ListenerServerPair multi-bind, Go 1.22+
// pattern routing, RFC 9457 Problem Details errors).
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/exp/slices"

	"github.com/corint-sh/corint/engine"
	"github.com/corint-sh/corint/telemetry"
)

// ListenerServerPair binds one net.Listener to one *http.Server so
// multi-address Setup/StopServer can close each cleanly.
type ListenerServerPair struct {
	Listener net.Listener
	Server   *http.Server
}

func (p *ListenerServerPair) Close() error {
	if err := p.Listener.Close(); err != nil {
		return err
	}
	return p.Server.Close()
}

// HTTPAPI serves the decision engine's HTTP surface.
type HTTPAPI struct {
	engine    *engine.Engine
	metrics   *telemetry.DecisionMetrics
	log       *slog.Logger
	listeners []*ListenerServerPair
	ready     atomic.Bool
	generation atomic.Int64
}

// NewHTTPAPI builds an HTTPAPI in front of eng. metrics may be nil
// (the no-op OTel defaults still work; only the extra instrument
// lookups are skipped).
func NewHTTPAPI(eng *engine.Engine, metrics *telemetry.DecisionMetrics, log *slog.Logger) *HTTPAPI {
	if log == nil {
		log = slog.Default()
	}
	api := &HTTPAPI{engine: eng, metrics: metrics, log: log}
	api.ready.Store(true)
	return api
}

// MarkReloaded bumps the reload generation healthz reports, and should
// be called right after a successful engine.Reload.
func (api *HTTPAPI) MarkReloaded() {
	api.generation.Add(1)
}

var predefinedBindings = [...]string{"local", "local4", "local6", "network", "network4", "network6"}

func resolveBindings(port int, listen []string) ([]string, error) {
	for _, addr := range listen {
		if slices.Contains(predefinedBindings[:], addr) && len(listen) != 1 {
			return nil, fmt.Errorf("when using predefined listen addresses, there must be exactly one address")
		}
	}

	if len(listen) == 0 {
		listen = []string{"local"}
	}

	if slices.Contains(predefinedBindings[:], listen[0]) {
		portStr := fmt.Sprintf("%d", port)
		switch listen[0] {
		case "local":
			return []string{net.JoinHostPort("localhost", portStr)}, nil
		case "local4":
			return []string{net.JoinHostPort("127.0.0.1", portStr)}, nil
		case "local6":
			return []string{net.JoinHostPort("::1", portStr)}, nil
		case "network":
			return []string{net.JoinHostPort("", portStr)}, nil
		case "network4":
			return []string{net.JoinHostPort("0.0.0.0", portStr)}, nil
		case "network6":
			return []string{net.JoinHostPort("::", portStr)}, nil
		}
	}

	addresses := make([]string, 0, len(listen))
	for _, addr := range listen {
		addresses = append(addresses, net.JoinHostPort(addr, fmt.Sprintf("%d", port)))
	}
	return addresses, nil
}

// Setup builds the mux and binds a listener per address, but does not
// yet start serving (call StartServer for that).
func (api *HTTPAPI) Setup(ctx context.Context, port int, listen []string) error {
	mux := http.NewServeMux()
	mux.Handle("POST /v1/decide", http.HandlerFunc(api.handleDecide))
	mux.Handle("GET /healthz", http.HandlerFunc(api.handleHealth))
	mux.Handle("GET /v1/programs/{id}", http.HandlerFunc(api.handleProgramInfo))

	handler := otelhttp.NewHandler(mux, "corint.http")

	bindings, err := resolveBindings(port, listen)
	if err != nil {
		return err
	}

	api.listeners = make([]*ListenerServerPair, 0, len(bindings))
	for _, binding := range bindings {
		ln, err := net.Listen("tcp", binding)
		if err != nil {
			for _, l := range api.listeners {
				l.Close()
			}
			api.listeners = nil
			return fmt.Errorf("listening on %s: %w", binding, err)
		}
		api.listeners = append(api.listeners, &ListenerServerPair{
			Listener: ln,
			Server: &http.Server{
				Handler:      handler,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
				BaseContext: func(net.Listener) context.Context {
					return ctx
				},
			},
		})
		api.log.DebugContext(ctx, "listening", "binding", binding)
	}
	return nil
}

// StartServer serves every bound listener concurrently; it returns
// once all of them stop (on StopServer or a listener error).
func (api *HTTPAPI) StartServer(ctx context.Context) {
	var wg sync.WaitGroup
	for _, ln := range api.listeners {
		ln := ln
		wg.Add(1)
		go func() {
			defer wg.Done()
			api.log.InfoContext(ctx, "decision endpoint available",
				"address", ln.Listener.Addr().String(), "method", "POST", "path", "/v1/decide")
			if err := ln.Server.Serve(ln.Listener); err != nil && err != http.ErrServerClosed {
				api.log.ErrorContext(ctx, "listener stopped", "error", err)
			}
		}()
	}
	wg.Wait()
}

// StopServer closes every bound listener, unblocking StartServer.
func (api *HTTPAPI) StopServer(ctx context.Context) error {
	for _, ln := range api.listeners {
		if err := ln.Close(); err != nil {
			api.log.WarnContext(ctx, "error closing listener", "error", err)
		}
	}
	api.listeners = nil
	return nil
}

func (api *HTTPAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":     "healthy",
		"generation": api.generation.Load(),
		"time":       time.Now().UTC().Format(time.RFC3339),
	})
}

func (api *HTTPAPI) handleProgramInfo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	info, ok := api.engine.ProgramInfo(id)
	if !ok {
		api.writeErrorResponse(w, r, http.StatusNotFound, "Unknown Program", fmt.Sprintf("no compiled program with id %q", id))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":          info.ID,
		"source_type": info.SourceType,
		"name":        info.Name,
	})
}

// ProblemDetails is an RFC 9457 Problem Details body.
type ProblemDetails struct {
	Type     string         `json:"type,omitempty"`
	Title    string         `json:"title"`
	Status   int            `json:"status,omitempty"`
	Detail   string         `json:"detail,omitempty"`
	Instance string         `json:"instance,omitempty"`
	Ext      map[string]any `json:"-"`
}

// MarshalJSON merges Ext alongside the standard RFC 9457 fields.
func (p *ProblemDetails) MarshalJSON() ([]byte, error) {
	result := map[string]any{}
	if p.Type != "" {
		result["type"] = p.Type
	}
	if p.Title != "" {
		result["title"] = p.Title
	}
	if p.Status != 0 {
		result["status"] = p.Status
	}
	if p.Detail != "" {
		result["detail"] = p.Detail
	}
	if p.Instance != "" {
		result["instance"] = p.Instance
	}
	for k, v := range p.Ext {
		result[k] = v
	}
	return json.Marshal(result)
}

func (api *HTTPAPI) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(statusCode)
	resp := ProblemDetails{
		Type:     fmt.Sprintf("https://corint.sh/problems/%d", statusCode),
		Title:    title,
		Status:   statusCode,
		Detail:   detail,
		Instance: r.URL.Path,
		Ext:      map[string]any{"timestamp": time.Now().UTC().Format(time.RFC3339)},
	}
	if err := json.NewEncoder(w).Encode(&resp); err != nil {
		api.log.DebugContext(r.Context(), "error encoding problem details", "error", err)
	}
}
