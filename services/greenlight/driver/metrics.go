// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package driver

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ===== METRICS =====

const instrumentationName = "github.com/AleutianAI/GreenlightFOSS/services/greenlight/driver"

var (
	metricsOnce sync.Once

	driverTracer trace.Tracer

	featuresCompleted metric.Int64Counter
	cycleDuration     metric.Float64Histogram
	attemptCount      metric.Int64Histogram
)

// initMetrics lazily creates the package tracer and instruments.
func initMetrics() {
	metricsOnce.Do(func() {
		driverTracer = otel.Tracer(instrumentationName)
		meter := otel.Meter(instrumentationName)

		featuresCompleted, _ = meter.Int64Counter(
			"greenlight.driver.features",
			metric.WithDescription("Features driven through the TDD cycle, by outcome"),
		)
		cycleDuration, _ = meter.Float64Histogram(
			"greenlight.driver.cycle_seconds",
			metric.WithDescription("Wall time from RED start to completion"),
		)
		attemptCount, _ = meter.Int64Histogram(
			"greenlight.driver.implementation_attempts",
			metric.WithDescription("Implementation attempts per feature"),
		)
	})
}

// startSpan opens a driver span, tolerating uninitialized tracing.
func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if driverTracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return driverTracer.Start(ctx, name)
}

// recordCompletion records one finished driver run.
func recordCompletion(ctx context.Context, success bool, seconds float64, attempts int) {
	if featuresCompleted == nil {
		return
	}
	featuresCompleted.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", success),
	))
	cycleDuration.Record(ctx, seconds)
	attemptCount.Record(ctx, int64(attempts))
}
