// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package driver runs the full TDD cycle for a feature: write failing
// tests (RED), iterate implementation attempts against the cached test
// runner, hold for review (YELLOW), and finalize on approval (GREEN).
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/cache"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/green"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/parallel"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/phase"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/red"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/storage"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/yellow"
)

// Driver orchestrates one feature's journey through RED, YELLOW, GREEN.
//
// Thread Safety: Safe for concurrent use across distinct features; the
// shared tracker, cache, and orchestrators synchronize internally.
type Driver struct {
	tracker  *phase.Tracker
	redOrch  *red.Orchestrator
	yellowO  *yellow.Orchestrator
	greenO   *green.Orchestrator
	cache    *cache.ResultCache
	executor red.Executor

	testWriter TestWriter
	coder      Coder
	reviewer   Reviewer

	opts   Options
	logger *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewDriver wires a driver from its collaborators.
func NewDriver(
	tracker *phase.Tracker,
	redOrch *red.Orchestrator,
	yellowO *yellow.Orchestrator,
	greenO *green.Orchestrator,
	resultCache *cache.ResultCache,
	executor red.Executor,
	testWriter TestWriter,
	coder Coder,
	reviewer Reviewer,
	logger *slog.Logger,
	options ...Option,
) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	opts := Options{
		MaxImplementationAttempts: DefaultMaxImplementationAttempts,
		MaxReviewRounds:           DefaultMaxReviewRounds,
		MaxAgentRetries:           DefaultMaxAgentRetries,
		InitialRetryInterval:      DefaultInitialRetryInterval,
		ProjectRoot:               ".",
	}
	for _, o := range options {
		o(&opts)
	}
	initMetrics()
	return &Driver{
		tracker:    tracker,
		redOrch:    redOrch,
		yellowO:    yellowO,
		greenO:     greenO,
		cache:      resultCache,
		executor:   executor,
		testWriter: testWriter,
		coder:      coder,
		reviewer:   reviewer,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// callAgent retries a flaky agent call with exponential backoff.
func (d *Driver) callAgent(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.opts.InitialRetryInterval
	return backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, d.opts.MaxAgentRetries), ctx))
}

// flattenPayload renders a code payload deterministically for cache keys.
func flattenPayload(p feature.CodePayload) string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteString("\n")
		b.WriteString(p[name])
		b.WriteString("\n")
	}
	return b.String()
}

// ImplementFeature drives one feature from RED start to GREEN completion.
//
// Description:
//
//	Starts tracking, asks the test writer for a failing suite, validates
//	RED, then iterates coder attempts against the (cached) test runner.
//	A passing run enters YELLOW and requests a review; rejection returns
//	to RED with the feedback attached to the next attempt. Approval
//	finalizes through the GREEN orchestrator.
//
// Inputs:
//
//	ctx - Context for cancellation; propagated to agents and the runner.
//	feat - The feature to implement.
//	baseCode - Pre-existing code the implementation builds on.
//
// Outputs:
//
//	*Outcome - The accumulated code, final run, and completion summary.
//	error - Phase violations, agent failures, or *RetryExhaustedError.
func (d *Driver) ImplementFeature(ctx context.Context, feat *feature.Feature, baseCode feature.CodePayload) (*Outcome, error) {
	if err := feat.Validate(); err != nil {
		return nil, err
	}

	ctx, span := startSpan(ctx, "driver.ImplementFeature")
	defer span.End()

	sessionID := uuid.NewString()
	logger := d.logger.With(
		slog.String("feature_id", feat.ID),
		slog.String("session_id", sessionID),
	)

	if err := d.tracker.StartFeature(feat.ID, map[string]any{
		"title":      feat.Title,
		"session_id": sessionID,
	}); err != nil {
		return nil, err
	}

	metrics := &green.Metrics{RedPhaseStart: d.now()}

	// Write the failing suite.
	var testPayload feature.CodePayload
	var testFiles []string
	err := d.callAgent(ctx, func() error {
		var werr error
		testPayload, testFiles, werr = d.testWriter.WriteTests(ctx, feat)
		return werr
	})
	if err != nil {
		return nil, fmt.Errorf("writing tests for feature %s: %w", feat.ID, err)
	}
	if len(testFiles) == 0 {
		return nil, fmt.Errorf("%w: feature %s", ErrNoTests, feat.ID)
	}

	accumulator := storage.NewAccumulator(feat.ID, logger)
	defer accumulator.Cleanup()
	if err := accumulator.AddRetryAttempt(0, testPayload, nil); err != nil {
		return nil, err
	}

	// RED: the suite must fail before any implementation exists.
	guidance, err := d.redOrch.EnforceRedPhase(ctx, feat, testPayload, testFiles, d.opts.ProjectRoot)
	if err != nil {
		return nil, err
	}
	metrics.TestExecutions++

	logger.Info("RED phase validated, starting implementation",
		slog.Int("failures", len(guidance.Failures)),
	)

	var feedback []string
	var lastErr error

	for attempt := 1; attempt <= d.opts.MaxImplementationAttempts; attempt++ {
		accumulated := baseCode.Merge(accumulator.GetAccumulatedCode())

		var code feature.CodePayload
		err := d.callAgent(ctx, func() error {
			var cerr error
			code, cerr = d.coder.Implement(ctx, feat, guidance, accumulated, feedback)
			return cerr
		})
		if err != nil {
			lastErr = fmt.Errorf("coder attempt %d: %w", attempt, err)
			continue
		}
		metrics.ImplementationAttempts++

		if err := accumulator.AddRetryAttempt(attempt, code, nil); err != nil {
			return nil, err
		}
		merged := baseCode.Merge(accumulator.GetAccumulatedCode())

		result, err := d.cache.GetOrCompute(ctx, flattenPayload(merged), testFiles, feat.ID,
			func(ctx context.Context) (*feature.TestResult, error) {
				metrics.TestExecutions++
				return d.executor.Execute(ctx, red.ExecRequest{
					FeatureID:      feat.ID,
					TestFiles:      testFiles,
					TestPayload:    testPayload,
					Implementation: merged,
					ProjectRoot:    d.opts.ProjectRoot,
				})
			})
		if err != nil {
			lastErr = fmt.Errorf("executing tests on attempt %d: %w", attempt, err)
			continue
		}

		if !result.Success {
			guidance = d.redOrch.PrepareImplementationContext(feat, d.redOrch.ParseFailures(result))
			lastErr = fmt.Errorf("tests still failing after attempt %d (%d failed)", attempt, result.Failed)
			logger.Info("Attempt failed, iterating",
				slog.Int("attempt", attempt),
				slog.Int("failed", result.Failed),
			)
			continue
		}

		// YELLOW: hold for review.
		if metrics.YellowPhaseStart.IsZero() {
			metrics.YellowPhaseStart = d.now()
		}
		summaryText := fmt.Sprintf("attempt %d, %d file(s)", attempt, len(code))
		if err := d.yellowO.EnterYellow(feat, result, d.opts.ProjectRoot, summaryText); err != nil {
			return nil, err
		}

		reviewCtx, err := d.yellowO.PrepareReviewContext(feat.ID)
		if err != nil {
			return nil, err
		}

		var approved bool
		var verdictFeedback string
		err = d.callAgent(ctx, func() error {
			var rerr error
			approved, verdictFeedback, rerr = d.reviewer.Review(ctx, reviewCtx, merged)
			return rerr
		})
		if err != nil {
			return nil, fmt.Errorf("reviewing feature %s: %w", feat.ID, err)
		}
		metrics.ReviewAttempts++

		next, err := d.yellowO.HandleReviewResult(feat.ID, approved, verdictFeedback)
		if err != nil {
			return nil, err
		}

		if next == phase.PhaseGreen {
			return d.finalize(ctx, feat, sessionID, metrics, merged, result, feedback, verdictFeedback, logger)
		}

		// Rejected: back to RED with the feedback attached.
		if verdictFeedback != "" {
			feedback = append(feedback, verdictFeedback)
		}
		lastErr = fmt.Errorf("review rejected on attempt %d", attempt)
		if metrics.ReviewAttempts >= d.opts.MaxReviewRounds {
			break
		}
	}

	recordCompletion(ctx, false, d.now().Sub(metrics.RedPhaseStart).Seconds(), metrics.ImplementationAttempts)
	return nil, &RetryExhaustedError{
		FeatureID: feat.ID,
		Attempts:  metrics.ImplementationAttempts,
		LastErr:   lastErr,
	}
}

// finalize closes out an approved feature through the GREEN orchestrator.
func (d *Driver) finalize(ctx context.Context, feat *feature.Feature, sessionID string, metrics *green.Metrics, code feature.CodePayload, result *feature.TestResult, feedback []string, finalFeedback string, logger *slog.Logger) (*Outcome, error) {
	metrics.GreenPhaseStart = d.now()
	metrics.TestsPassed = true
	metrics.CodeReviewed = true
	metrics.CodeApproved = true

	if finalFeedback != "" {
		feedback = append(feedback, finalFeedback)
	}
	greenCtx := &green.Context{
		Feature:         feat,
		Metrics:         metrics,
		ReviewFeedback:  feedback,
		CompletionNotes: []string{},
	}

	summary, err := d.greenO.CompleteFeature(greenCtx, []string{
		fmt.Sprintf("completed in session %s", sessionID),
	})
	if err != nil {
		return nil, err
	}

	recordCompletion(ctx, true, metrics.TotalCycleTime.Seconds(), metrics.ImplementationAttempts)
	logger.Info("Feature completed",
		slog.Duration("total_cycle_time", metrics.TotalCycleTime),
		slog.Int("implementation_attempts", metrics.ImplementationAttempts),
	)

	return &Outcome{
		FeatureID:  feat.ID,
		SessionID:  sessionID,
		Code:       code,
		TestResult: result,
		Summary:    summary,
	}, nil
}

// AsImplementFunc adapts the driver for the parallel processor.
func (d *Driver) AsImplementFunc() parallel.ImplementFunc {
	return func(ctx context.Context, feat *feature.Feature, accumulated feature.CodePayload) (*parallel.Outcome, error) {
		outcome, err := d.ImplementFeature(ctx, feat, accumulated)
		if err != nil {
			return nil, err
		}
		return &parallel.Outcome{
			Code:       outcome.Code,
			TestResult: outcome.TestResult,
		}, nil
	}
}
