// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package parallel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ===== METRICS =====

const instrumentationName = "github.com/AleutianAI/GreenlightFOSS/services/greenlight/parallel"

var (
	metricsOnce sync.Once

	featuresProcessed metric.Int64Counter
	batchesRun        metric.Int64Counter
	batchSize         metric.Int64Histogram
	batchDuration     metric.Float64Histogram
)

// initMetrics lazily creates the package instruments. Failures leave the
// instruments nil; recording helpers tolerate that.
func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter(instrumentationName)

		featuresProcessed, _ = meter.Int64Counter(
			"greenlight.parallel.features_processed",
			metric.WithDescription("Features processed, by outcome"),
		)
		batchesRun, _ = meter.Int64Counter(
			"greenlight.parallel.batches",
			metric.WithDescription("Scheduling batches executed"),
		)
		batchSize, _ = meter.Int64Histogram(
			"greenlight.parallel.batch_size",
			metric.WithDescription("Features dispatched per batch"),
		)
		batchDuration, _ = meter.Float64Histogram(
			"greenlight.parallel.batch_duration_seconds",
			metric.WithDescription("Wall time per batch"),
		)
	})
}

// recordFeature counts one finished feature.
func recordFeature(ctx context.Context, success bool) {
	if featuresProcessed == nil {
		return
	}
	featuresProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", success),
	))
}

// recordBatch counts one batch and its size and duration.
func recordBatch(ctx context.Context, size int, seconds float64) {
	if batchesRun == nil {
		return
	}
	batchesRun.Add(ctx, 1)
	batchSize.Record(ctx, int64(size))
	batchDuration.Record(ctx, seconds)
}
