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

// Package telemetry wires Corint's OTLP trace/metric/log providers
// (spec §6 "C12"), grounded on the pack's own otel/provider.go:
// protocol-switched (grpc/http) exporters behind a single
// InitProvider call, a slog bridge so every log/slog call becomes an
// OTel log record, and a runtime/metrics gauge publisher.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"runtime/metrics"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config holds OpenTelemetry initialization parameters (spec §6,
// corint.toml [otel] section).
type Config struct {
	Enabled        bool
	Endpoint       string
	Protocol       string // "grpc" | "http"
	ServiceName    string
	ServiceVersion string
	RepositoryName string
}

// ShutdownFn flushes and closes every provider InitProvider started.
type ShutdownFn func(context.Context) error

// InitProvider sets up the global trace/metric/log providers, the
// slog-to-OTel bridge, and the runtime metrics gauge publisher. A
// disabled config is a no-op: Decide and the HTTP surface still call
// otel.Tracer/Meter, which default to no-op implementations.
func InitProvider(ctx context.Context, cfg Config) (ShutdownFn, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	endpointURL, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("telemetry: invalid endpoint URL: %w", err)
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(cfg.ServiceVersion),
	}
	if cfg.RepositoryName != "" {
		attrs = append(attrs, semconv.ServiceNamespaceKey.String(cfg.RepositoryName))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating resource: %w", err)
	}

	var cleanupFuncs []func(context.Context) error

	traceExporter, traceCleanup, err := createTraceExporter(ctx, cfg.Protocol, endpointURL)
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating trace exporter: %w", err)
	}
	cleanupFuncs = append(cleanupFuncs, traceCleanup)

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	cleanupFuncs = append(cleanupFuncs, tracerProvider.Shutdown)

	metricExporter, metricCleanup, err := createMetricExporter(ctx, cfg.Protocol, endpointURL)
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating metric exporter: %w", err)
	}
	cleanupFuncs = append(cleanupFuncs, metricCleanup)

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	cleanupFuncs = append(cleanupFuncs, meterProvider.Shutdown)

	logExporter, logCleanup, err := createLogExporter(ctx, cfg.Protocol, endpointURL)
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating log exporter: %w", err)
	}
	cleanupFuncs = append(cleanupFuncs, logCleanup)

	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)
	cleanupFuncs = append(cleanupFuncs, loggerProvider.Shutdown)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	global.SetLoggerProvider(loggerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	slog.SetDefault(otelslog.NewLogger("corint"))

	meter := meterProvider.Meter("corint/runtime")
	if err := setupRuntimeMetrics(ctx, meter); err != nil {
		return nil, fmt.Errorf("telemetry: setting up runtime metrics: %w", err)
	}

	return func(ctx context.Context) error {
		var allErr error
		for _, cleanup := range cleanupFuncs {
			if err := cleanup(ctx); err != nil {
				allErr = errors.Join(allErr, err)
			}
		}
		return allErr
	}, nil
}

func createTraceExporter(ctx context.Context, protocol string, endpointURL *url.URL) (sdktrace.SpanExporter, func(context.Context) error, error) {
	switch protocol {
	case "grpc":
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(endpointURL.Host),
			otlptracegrpc.WithInsecure(),
		)
		return exporter, exporter.Shutdown, err
	case "http":
		endpoint := fmt.Sprintf("%s://%s", endpointURL.Scheme, endpointURL.Host)
		exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
		return exporter, exporter.Shutdown, err
	default:
		return nil, nil, fmt.Errorf("unsupported protocol: %s", protocol)
	}
}

func createMetricExporter(ctx context.Context, protocol string, endpointURL *url.URL) (sdkmetric.Exporter, func(context.Context) error, error) {
	switch protocol {
	case "grpc":
		exporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(endpointURL.Host),
			otlpmetricgrpc.WithInsecure(),
		)
		return exporter, exporter.Shutdown, err
	case "http":
		endpoint := fmt.Sprintf("%s://%s", endpointURL.Scheme, endpointURL.Host)
		exporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(endpoint))
		return exporter, exporter.Shutdown, err
	default:
		return nil, nil, fmt.Errorf("unsupported protocol: %s", protocol)
	}
}

func createLogExporter(ctx context.Context, protocol string, endpointURL *url.URL) (sdklog.Exporter, func(context.Context) error, error) {
	switch protocol {
	case "grpc":
		exporter, err := otlploggrpc.New(ctx,
			otlploggrpc.WithEndpoint(endpointURL.Host),
			otlploggrpc.WithInsecure(),
		)
		return exporter, exporter.Shutdown, err
	case "http":
		endpoint := fmt.Sprintf("%s://%s", endpointURL.Scheme, endpointURL.Host)
		exporter, err := otlploghttp.New(ctx, otlploghttp.WithEndpointURL(endpoint))
		return exporter, exporter.Shutdown, err
	default:
		return nil, nil, fmt.Errorf("unsupported protocol: %s", protocol)
	}
}

// runtimeMetricMap pairs an exported gauge name with the
// runtime/metrics key it mirrors.
var runtimeMetricMap = map[string]string{
	"memory_classes_heap_objects_bytes": "/memory/classes/heap/objects:bytes",
	"memory_classes_total_bytes":        "/memory/classes/total:bytes",
	"gc_cycles_total_gc_cycles":         "/gc/cycles/total:gc-cycles",
	"gc_heap_goal_bytes":                "/gc/heap/goal:bytes",
	"sched_goroutines_goroutines":       "/sched/goroutines:goroutines",
	"cpu_classes_total_cpu_seconds":     "/cpu/classes/total:cpu-seconds",
}

// setupRuntimeMetrics starts a 10s-ticker goroutine that republishes
// Go runtime metrics as OTel gauges (grounded on the pack's approach,
// preferred there over metric.Registry's pull-based Observer because
// one cycle records every gauge instead of one callback each).
func setupRuntimeMetrics(ctx context.Context, meter metric.Meter) error {
	gauges := make(map[string]metric.Int64Gauge, len(runtimeMetricMap))
	for name := range runtimeMetricMap {
		gauge, err := meter.Int64Gauge(name)
		if err != nil {
			return fmt.Errorf("creating gauge %s: %w", name, err)
		}
		gauges[name] = gauge
	}

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				descriptions := metrics.All()
				samples := make([]metrics.Sample, len(descriptions))
				for i, desc := range descriptions {
					samples[i].Name = desc.Name
				}
				metrics.Read(samples)

				for _, sample := range samples {
					for otelName, runtimeName := range runtimeMetricMap {
						if sample.Name != runtimeName {
							continue
						}
						gauge, ok := gauges[otelName]
						if !ok {
							continue
						}
						switch sample.Value.Kind() {
						case metrics.KindUint64:
							gauge.Record(ctx, int64(sample.Value.Uint64()))
						case metrics.KindFloat64:
							gauge.Record(ctx, int64(sample.Value.Float64()))
						}
						break
					}
				}
			}
		}
	}()
	return nil
}
