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
	"time"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
)

// InferenceMode selects how implicit dependencies are discovered.
type InferenceMode string

const (
	// InferenceSubstring additionally infers a dependency when another
	// feature's id or title appears in a feature's description. Best
	// effort: false positives from coincidental title words are accepted.
	InferenceSubstring InferenceMode = "substring"

	// InferenceExplicitOnly uses only declared dependency lists, for
	// callers that need deterministic scheduling.
	InferenceExplicitOnly InferenceMode = "explicit_only"
)

// FeatureDependency is the resolved dependency view of one feature.
type FeatureDependency struct {
	// DependsOn holds the ids this feature waits for.
	DependsOn map[string]struct{}

	// Dependents holds the ids waiting for this feature (reverse edges).
	Dependents map[string]struct{}

	// Independent is true when DependsOn is empty.
	Independent bool
}

// Outcome is what the feature-implementation routine produces.
type Outcome struct {
	// Code is the implementation produced for the feature.
	Code feature.CodePayload

	// TestResult is the final test run for the feature.
	TestResult *feature.TestResult
}

// ImplementFunc runs the full TDD cycle for one feature. The accumulated
// payload is the caller's own copy; implementations may mutate it freely.
type ImplementFunc func(ctx context.Context, feat *feature.Feature, accumulated feature.CodePayload) (*Outcome, error)

// Result is the per-feature outcome of a parallel run.
type Result struct {
	FeatureID string              `json:"feature_id"`
	Success   bool                `json:"success"`
	Error     string              `json:"error,omitempty"`
	Code      feature.CodePayload `json:"code,omitempty"`
	TestRun   *feature.TestResult `json:"test_result,omitempty"`

	// DispatchedAt is when the feature's worker started.
	DispatchedAt time.Time `json:"dispatched_at"`

	// CompletedAt is when the worker finished (or was marked failed).
	CompletedAt time.Time `json:"completed_at"`
}

// RunMetrics summarizes one ProcessFeatures call.
type RunMetrics struct {
	Batches      int `json:"batches"`
	MaxBatchSize int `json:"max_batch_size"`
	Completed    int `json:"completed"`
	Failed       int `json:"failed"`
	Unresolved   int `json:"unresolved"`
}

// Default scheduling limits.
const (
	DefaultMaxWorkers   = 4
	DefaultBatchTimeout = 10 * time.Minute
)

// Options configures a Processor.
type Options struct {
	// MaxWorkers bounds in-flight features.
	MaxWorkers int

	// BatchTimeout bounds each batch; features unfinished at the deadline
	// are marked failed and their workers cancelled.
	BatchTimeout time.Duration

	// Inference selects the dependency-inference mode.
	Inference InferenceMode
}

// Option mutates Options.
type Option func(*Options)

// WithMaxWorkers bounds concurrent features.
func WithMaxWorkers(n int) Option {
	return func(o *Options) { o.MaxWorkers = n }
}

// WithBatchTimeout bounds each batch's wall time.
func WithBatchTimeout(d time.Duration) Option {
	return func(o *Options) { o.BatchTimeout = d }
}

// WithInferenceMode selects dependency inference.
func WithInferenceMode(mode InferenceMode) Option {
	return func(o *Options) { o.Inference = mode }
}
