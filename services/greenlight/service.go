// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package greenlight exposes the TDD execution core as an HTTP service.
//
// The service drives features through the RED, YELLOW, GREEN phase cycle:
// failing tests first, implementation against a cached test runner, review
// hold, then completion. Batches with independent features run in parallel.
package greenlight

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/cache"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/driver"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/green"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/parallel"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/phase"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/red"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/storage"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/watch"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/yellow"
)

// ServiceConfig configures the greenlight service.
type ServiceConfig struct {
	// ProjectRoot is the working directory handed to the test runner.
	// Default: "."
	ProjectRoot string

	// Dialect selects the failure parser ("pytest" or "gotest").
	// Default: "pytest"
	Dialect string

	// CacheDir, when set, enables durable test-result caching via Badger.
	CacheDir string

	// CachePersistPath, when set, snapshots the cache to this JSON file.
	CachePersistPath string

	// MaxWorkers bounds parallel feature processing.
	// Default: 4
	MaxWorkers int

	// WatchPaths are directories watched for source changes that
	// invalidate cached test results.
	WatchPaths []string

	// SubmitTimeout bounds a single submit request.
	// Default: 30m
	SubmitTimeout time.Duration
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ProjectRoot:   ".",
		Dialect:       "pytest",
		MaxWorkers:    parallel.DefaultMaxWorkers,
		SubmitTimeout: 30 * time.Minute,
	}
}

// Agents bundles the LLM-backed collaborators the service cannot build
// itself.
type Agents struct {
	Executor   red.Executor
	TestWriter driver.TestWriter
	Coder      driver.Coder
	Reviewer   driver.Reviewer
}

// Service wires the phase tracker, orchestrators, cache, and driver into
// one unit behind the HTTP handlers.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	config  ServiceConfig
	tracker *phase.Tracker
	greenO  *green.Orchestrator
	cache   *cache.ResultCache
	drv     *driver.Driver
	proc    *parallel.Processor
	watcher *watch.Watcher
	logger  *slog.Logger

	// codeStore holds the accumulated code of completed features.
	codeStore *storage.Manager
}

// NewService builds a service from config and agents.
//
// Description:
//
//	Constructs the full component stack: tracker, RED/YELLOW/GREEN
//	orchestrators, result cache (durable when CacheDir is set), the
//	driver, and the parallel processor. When WatchPaths is non-empty a
//	file watcher feeds cache invalidations; call Run to start it and
//	Close to release resources.
//
// Outputs:
//
//	*Service - The wired service.
//	error - Cache store or watcher setup failures.
func NewService(config ServiceConfig, agents Agents, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.ProjectRoot == "" {
		config.ProjectRoot = "."
	}
	if config.Dialect == "" {
		config.Dialect = "pytest"
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = parallel.DefaultMaxWorkers
	}
	if config.SubmitTimeout <= 0 {
		config.SubmitTimeout = 30 * time.Minute
	}

	cacheOpts := []cache.Option{cache.WithPersistPath(config.CachePersistPath)}
	if config.CacheDir != "" {
		store, err := cache.OpenBadgerStore(config.CacheDir, cache.DefaultMaxAge)
		if err != nil {
			return nil, fmt.Errorf("opening cache store: %w", err)
		}
		cacheOpts = append(cacheOpts, cache.WithStore(store))
	}
	resultCache := cache.NewResultCache(logger, cacheOpts...)

	tracker := phase.NewTracker(logger)
	redOrch := red.NewOrchestrator(tracker, agents.Executor, config.Dialect, logger)
	yellowO := yellow.NewOrchestrator(tracker, logger)
	greenO := green.NewOrchestrator(tracker, logger)

	drv := driver.NewDriver(tracker, redOrch, yellowO, greenO, resultCache,
		agents.Executor, agents.TestWriter, agents.Coder, agents.Reviewer, logger,
		driver.WithProjectRoot(config.ProjectRoot))

	proc := parallel.NewProcessor(drv.AsImplementFunc(), logger,
		parallel.WithMaxWorkers(config.MaxWorkers))

	svc := &Service{
		config:    config,
		tracker:   tracker,
		greenO:    greenO,
		cache:     resultCache,
		drv:       drv,
		proc:      proc,
		logger:    logger,
		codeStore: storage.NewManager(logger),
	}

	if len(config.WatchPaths) > 0 {
		watcher, err := watch.NewWatcher(resultCache, watch.DefaultDebounce, logger)
		if err != nil {
			return nil, fmt.Errorf("creating file watcher: %w", err)
		}
		for _, path := range config.WatchPaths {
			if err := watcher.Add(path); err != nil {
				watcher.Close()
				return nil, err
			}
		}
		svc.watcher = watcher
	}
	return svc, nil
}

// Run starts background work (the file watcher) until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if s.watcher != nil {
		s.watcher.Run(ctx)
	} else {
		<-ctx.Done()
	}
}

// Submit implements a batch of features, in parallel when the batch
// shape warrants it.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	if len(req.Features) == 0 {
		return nil, fmt.Errorf("%w: empty batch", feature.ErrEmptyFeature)
	}
	for _, feat := range req.Features {
		if err := feat.Validate(); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.SubmitTimeout)
	defer cancel()

	baseCode := feature.CodePayload(req.BaseCode).Clone()
	start := time.Now()

	useParallel := parallel.ShouldUseParallel(req.Features,
		parallel.DefaultMinFeatures, parallel.DefaultMaxDependencyRatio)
	if req.Parallel != nil {
		useParallel = *req.Parallel
	}

	var results []FeatureResult
	if useParallel && len(req.Features) > 1 {
		runResults, err := s.proc.ProcessFeatures(ctx, req.Features, baseCode)
		if err != nil {
			return nil, err
		}
		for _, r := range runResults {
			if r.Success {
				s.retainCode(r.Code)
			}
			results = append(results, s.toFeatureResult(r.FeatureID, r.Success, r.Error, r.Code, r.TestRun))
		}
	} else {
		accumulated := baseCode
		for _, feat := range req.Features {
			outcome, err := s.drv.ImplementFeature(ctx, feat, accumulated)
			if err != nil {
				results = append(results, s.toFeatureResult(feat.ID, false, err.Error(), nil, nil))
				continue
			}
			accumulated = accumulated.Merge(outcome.Code)
			s.retainCode(outcome.Code)
			results = append(results, s.toFeatureResult(feat.ID, true, "", outcome.Code, outcome.TestResult))
		}
	}

	return &SubmitResponse{
		Results:  results,
		Parallel: useParallel && len(req.Features) > 1,
		Duration: time.Since(start).String(),
	}, nil
}

// toFeatureResult folds one feature's outcome into the response shape.
func (s *Service) toFeatureResult(id string, success bool, errMsg string, code feature.CodePayload, run *feature.TestResult) FeatureResult {
	current, _ := s.tracker.CurrentPhase(id)
	fr := FeatureResult{
		FeatureID: id,
		Success:   success,
		Phase:     current,
		Code:      code,
		Error:     errMsg,
	}
	if run != nil {
		fr.Passed = run.Passed
		fr.Failed = run.Failed
	}
	return fr
}

// retainCode stores a completed feature's code in the service-level
// store, spilling large files to disk.
func (s *Service) retainCode(code feature.CodePayload) {
	if err := s.codeStore.Update(code); err != nil {
		s.logger.Warn("Retaining completed code failed",
			slog.String("error", err.Error()),
		)
	}
}

// Features lists every tracked feature with its current status.
func (s *Service) Features() []phase.FeatureStatus {
	return s.tracker.Statuses()
}

// Phase reports a feature's current phase.
func (s *Service) Phase(featureID string) (*PhaseResponse, error) {
	current, ok := s.tracker.CurrentPhase(featureID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", phase.ErrUntrackedFeature, featureID)
	}
	return &PhaseResponse{
		FeatureID: featureID,
		Phase:     current,
		Complete:  s.tracker.IsComplete(featureID),
	}, nil
}

// History reports a feature's transition history.
func (s *Service) History(featureID string) (*HistoryResponse, error) {
	if _, ok := s.tracker.CurrentPhase(featureID); !ok {
		return nil, fmt.Errorf("%w: %s", phase.ErrUntrackedFeature, featureID)
	}
	transitions := s.tracker.History(featureID)
	records := make([]TransitionRecord, 0, len(transitions))
	for _, t := range transitions {
		records = append(records, TransitionRecord{
			From:      t.From,
			To:        t.To,
			Timestamp: t.Timestamp,
			Reason:    t.Reason,
		})
	}
	return &HistoryResponse{FeatureID: featureID, Transitions: records}, nil
}

// Report aggregates completed features and phase occupancy.
func (s *Service) Report() *ReportResponse {
	return &ReportResponse{
		Report: s.greenO.CompletionReport(),
		Phases: s.tracker.Stats(),
	}
}

// StorageStats exposes the completed-code store metrics.
func (s *Service) StorageStats() storage.Metrics {
	return s.codeStore.Metrics()
}

// CacheStats exposes the result cache counters.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// CacheInsights exposes cache effectiveness findings.
func (s *Service) CacheInsights() cache.Insights {
	return s.cache.Insights(5)
}

// Close releases the watcher and the cache's durable store, snapshotting
// the cache first when a persist path is configured.
func (s *Service) Close() error {
	var firstErr error
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			firstErr = err
		}
	}
	if s.config.CachePersistPath != "" {
		if err := s.cache.SaveToFile(s.config.CachePersistPath); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.cache.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.codeStore.Cleanup()
	return firstErr
}
