// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package parallel schedules independent features concurrently: explicit
// and inferred dependencies gate dispatch, a weighted semaphore bounds
// in-flight work, and each batch runs under a single cancellable timeout.
package parallel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
)

// Processor runs many feature TDD cycles concurrently.
//
// Thread Safety: Safe for concurrent use; each ProcessFeatures call keeps
// its own scheduling state.
type Processor struct {
	implement ImplementFunc
	opts      Options
	logger    *slog.Logger

	mu          sync.Mutex
	lastMetrics RunMetrics
}

// NewProcessor creates a parallel processor around the given
// feature-implementation routine.
func NewProcessor(implement ImplementFunc, logger *slog.Logger, options ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	opts := Options{
		MaxWorkers:   DefaultMaxWorkers,
		BatchTimeout: DefaultBatchTimeout,
		Inference:    InferenceSubstring,
	}
	for _, o := range options {
		o(&opts)
	}
	initMetrics()
	return &Processor{
		implement: implement,
		opts:      opts,
		logger:    logger,
	}
}

// AnalyzeDependencies resolves each feature's dependency view.
//
// Description:
//
//	Explicit depends_on lists always apply. In substring mode, another
//	feature's id or title occurring inside this feature's description
//	also counts as a dependency. The reverse index is built from the
//	forward edges. Unknown ids in depends_on are kept: they can never
//	complete, which surfaces the misdeclaration as a stuck feature
//	instead of silently dropping the edge.
func (p *Processor) AnalyzeDependencies(features []*feature.Feature) map[string]*FeatureDependency {
	deps := make(map[string]*FeatureDependency, len(features))
	for _, f := range features {
		deps[f.ID] = &FeatureDependency{
			DependsOn:  make(map[string]struct{}),
			Dependents: make(map[string]struct{}),
		}
	}

	for _, f := range features {
		for _, dep := range f.DependsOn {
			if dep != f.ID {
				deps[f.ID].DependsOn[dep] = struct{}{}
			}
		}

		if p.opts.Inference == InferenceSubstring {
			desc := strings.ToLower(f.Description)
			for _, other := range features {
				if other.ID == f.ID {
					continue
				}
				if strings.Contains(desc, strings.ToLower(other.ID)) ||
					(other.Title != "" && strings.Contains(desc, strings.ToLower(other.Title))) {
					deps[f.ID].DependsOn[other.ID] = struct{}{}
				}
			}
		}
	}

	for id, d := range deps {
		d.Independent = len(d.DependsOn) == 0
		for dep := range d.DependsOn {
			if rev, ok := deps[dep]; ok {
				rev.Dependents[id] = struct{}{}
			}
		}
	}
	return deps
}

// ProcessableFeatures returns the features ready for dispatch: not yet
// completed or failed, and either independent or with every dependency in
// the completed set. Recomputed once per batch.
func (p *Processor) ProcessableFeatures(features []*feature.Feature, deps map[string]*FeatureDependency, completed, failed map[string]struct{}) []*feature.Feature {
	var ready []*feature.Feature
	for _, f := range features {
		if _, done := completed[f.ID]; done {
			continue
		}
		if _, bad := failed[f.ID]; bad {
			continue
		}

		d := deps[f.ID]
		if d == nil || d.Independent {
			ready = append(ready, f)
			continue
		}

		allDone := true
		for dep := range d.DependsOn {
			if _, done := completed[dep]; !done {
				allDone = false
				break
			}
		}
		if allDone {
			ready = append(ready, f)
		}
	}
	return ready
}

// ProcessFeatures runs every feature's TDD cycle, respecting dependencies.
//
// Description:
//
//	Loops batch by batch: compute the processable set, dispatch it under
//	the worker semaphore, await the whole batch under one timeout with
//	real cancellation propagated to in-flight workers, record outcomes.
//	A stuck remainder (circular or unresolvable dependencies) stops the
//	loop; stuck features get no result. A single feature's failure or
//	panic becomes a synthetic failed result, never an aborted batch.
//
// Outputs:
//
//	[]*Result - Results in the original input order, for every feature
//	    that was dispatched.
//	error - Only systemic failures (context cancelled between batches).
func (p *Processor) ProcessFeatures(ctx context.Context, features []*feature.Feature, baseCode feature.CodePayload) ([]*Result, error) {
	sem := semaphore.NewWeighted(int64(p.opts.MaxWorkers))

	completed := make(map[string]struct{})
	failed := make(map[string]struct{})
	results := make(map[string]*Result)
	codeByFeature := make(map[string]feature.CodePayload)
	var stateMu sync.Mutex

	metrics := RunMetrics{}

	for len(completed)+len(failed) < len(features) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("parallel processing cancelled: %w", err)
		}

		deps := p.AnalyzeDependencies(features)
		batch := p.ProcessableFeatures(features, deps, completed, failed)
		if len(batch) == 0 {
			remaining := len(features) - len(completed) - len(failed)
			metrics.Unresolved = remaining
			p.logger.Warn("No processable features remain, stopping",
				slog.Int("unresolved", remaining),
			)
			break
		}

		metrics.Batches++
		if len(batch) > metrics.MaxBatchSize {
			metrics.MaxBatchSize = len(batch)
		}
		batchStart := time.Now()

		batchCtx, cancel := context.WithTimeout(ctx, p.opts.BatchTimeout)
		g, gctx := errgroup.WithContext(batchCtx)

		for _, f := range batch {
			feat := f

			// Each worker gets its own copy of the accumulated code.
			stateMu.Lock()
			accumulated := baseCode.Clone()
			for id := range completed {
				accumulated = accumulated.Merge(codeByFeature[id])
			}
			stateMu.Unlock()

			g.Go(func() error {
				if err := sem.Acquire(gctx, 1); err != nil {
					return nil
				}
				defer sem.Release(1)

				result := p.runFeature(gctx, feat, accumulated)

				stateMu.Lock()
				results[feat.ID] = result
				if result.Success {
					completed[feat.ID] = struct{}{}
					codeByFeature[feat.ID] = result.Code
				} else {
					failed[feat.ID] = struct{}{}
				}
				stateMu.Unlock()

				recordFeature(gctx, result.Success)
				return nil
			})
		}

		_ = g.Wait()
		cancel()
		recordBatch(ctx, len(batch), time.Since(batchStart).Seconds())

		// Anything dispatched but unrecorded hit the batch deadline.
		stateMu.Lock()
		for _, f := range batch {
			if _, ok := results[f.ID]; !ok {
				now := time.Now()
				results[f.ID] = &Result{
					FeatureID:    f.ID,
					Success:      false,
					Error:        "batch timeout exceeded",
					DispatchedAt: batchStart,
					CompletedAt:  now,
				}
				failed[f.ID] = struct{}{}
				recordFeature(ctx, false)
			}
		}
		stateMu.Unlock()
	}

	metrics.Completed = len(completed)
	metrics.Failed = len(failed)

	p.mu.Lock()
	p.lastMetrics = metrics
	p.mu.Unlock()

	p.logger.Info("Parallel processing finished",
		slog.Int("completed", metrics.Completed),
		slog.Int("failed", metrics.Failed),
		slog.Int("batches", metrics.Batches),
		slog.Int("max_batch_size", metrics.MaxBatchSize),
	)

	// Input order is the external contract, whatever order workers won.
	ordered := make([]*Result, 0, len(results))
	for _, f := range features {
		if r, ok := results[f.ID]; ok {
			ordered = append(ordered, r)
		}
	}
	return ordered, nil
}

// runFeature invokes the implementation routine with panic isolation.
func (p *Processor) runFeature(ctx context.Context, feat *feature.Feature, accumulated feature.CodePayload) (result *Result) {
	dispatched := time.Now()
	result = &Result{FeatureID: feat.ID, DispatchedAt: dispatched}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Feature implementation panicked",
				slog.String("feature_id", feat.ID),
				slog.Any("panic", r),
			)
			result.Success = false
			result.Error = fmt.Sprintf("panic: %v", r)
		}
		result.CompletedAt = time.Now()
	}()

	outcome, err := p.implement(ctx, feat, accumulated)
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		return result
	}

	result.Success = true
	if outcome != nil {
		result.Code = outcome.Code
		result.TestRun = outcome.TestResult
	}
	return result
}

// LastRunMetrics returns the metrics of the most recent ProcessFeatures
// call.
func (p *Processor) LastRunMetrics() RunMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastMetrics
}

// Parallelism heuristic defaults.
const (
	DefaultMinFeatures        = 3
	DefaultMaxDependencyRatio = 0.3
)

// ShouldUseParallel recommends whether parallel processing is worthwhile:
// enough features, and few enough declared dependency edges per feature.
// Advisory only; callers decide whether to honor it.
func ShouldUseParallel(features []*feature.Feature, minFeatures int, maxDependencyRatio float64) bool {
	if minFeatures <= 0 {
		minFeatures = DefaultMinFeatures
	}
	if maxDependencyRatio <= 0 {
		maxDependencyRatio = DefaultMaxDependencyRatio
	}

	if len(features) < minFeatures {
		return false
	}
	edges := 0
	for _, f := range features {
		edges += len(f.DependsOn)
	}
	return float64(edges)/float64(len(features)) <= maxDependencyRatio
}
