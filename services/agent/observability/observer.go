// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"context"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation scope for pipeline spans.
const TracerName = "scholar.agent"

// Observer is the observability context handed to every pipeline stage.
//
// # Description
//
// Bundles the metrics, a tracer and a logger so stages never reach for
// process-wide globals. Tests build one with NewTestObserver or substitute a
// recording TracerProvider.
//
// # Thread Safety
//
// Observer is immutable after construction and safe for concurrent use.
type Observer struct {
	Metrics *Metrics
	Tracer  trace.Tracer
	Logger  *slog.Logger
}

// NewObserver assembles an Observer.
//
// # Inputs
//
//   - metrics: Registered pipeline metrics. Required.
//   - tp: Tracer provider. Nil uses a no-op provider.
//   - logger: Logger. Nil discards output.
func NewObserver(metrics *Metrics, tp trace.TracerProvider, logger *slog.Logger) *Observer {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Observer{
		Metrics: metrics,
		Tracer:  tp.Tracer(TracerName),
		Logger:  logger,
	}
}

// NewTestObserver returns an Observer backed by a fresh registry, a no-op
// tracer and a discarding logger, plus the registry for assertions.
func NewTestObserver() (*Observer, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewObserver(NewMetrics(reg), nil, nil), reg
}

// StartSpan starts a child span of whatever span ctx carries.
func (o *Observer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError marks span as failed with err.
func RecordError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if span == nil || err == nil {
		return
	}
	opts := make([]trace.EventOption, 0, 1)
	if len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks span as successful.
func SetSpanOK(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

// TraceID returns the hex trace id carried by ctx, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
