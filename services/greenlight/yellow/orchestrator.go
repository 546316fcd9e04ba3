// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package yellow implements the YELLOW holding phase: tests pass, a
// reviewer verdict is pending. The orchestrator owns the per-feature
// review context and drives the two permitted exits (approve to GREEN,
// reject back to RED).
package yellow

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/phase"
)

// maxRecentFeedback bounds the feedback strings surfaced to the reviewer.
const maxRecentFeedback = 3

// Orchestrator manages YELLOW-phase contexts.
//
// Thread Safety: Safe for concurrent use.
type Orchestrator struct {
	mu       sync.Mutex
	tracker  *phase.Tracker
	contexts map[string]*Context
	logger   *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewOrchestrator creates a YELLOW orchestrator.
func NewOrchestrator(tracker *phase.Tracker, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		tracker:  tracker,
		contexts: make(map[string]*Context),
		logger:   logger,
		now:      time.Now,
	}
}

// EnterYellow admits a feature to YELLOW after a passing test run.
//
// Description:
//
//	Entry is legal from RED (the normal path) and from YELLOW itself:
//	retries may fix the implementation and re-confirm a passing run while
//	the feature still awaits review. Re-entry refreshes the context's
//	result and entry time but carries over review attempts and feedback
//	history, which must survive for the next attempt. The tracker is only
//	asked to transition when the feature is actually in RED.
//
// Inputs:
//
//	feat - Feature entering review.
//	result - The passing test run. Must report success.
//	implementationPath - Where the implementation lives.
//	summary - Optional implementation summary.
//
// Outputs:
//
//	error - ErrFailingTests, ErrWrongPhase, or a tracker error.
func (o *Orchestrator) EnterYellow(feat *feature.Feature, result *feature.TestResult, implementationPath, summary string) error {
	if result == nil || !result.Success {
		return fmt.Errorf("%w: feature %s", ErrFailingTests, feat.ID)
	}

	current, ok := o.tracker.CurrentPhase(feat.ID)
	if !ok || (current != phase.PhaseRed && current != phase.PhaseYellow) {
		return fmt.Errorf("%w: feature %s is in %s", ErrWrongPhase, feat.ID, current)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	ctx := &Context{
		Feature:               feat,
		TestResult:            result,
		ImplementationPath:    implementationPath,
		ImplementationSummary: summary,
		EnteredAt:             o.now(),
	}
	if prev, exists := o.contexts[feat.ID]; exists {
		// Re-entry must not reset review bookkeeping.
		ctx.ReviewAttempts = prev.ReviewAttempts
		ctx.Feedback = prev.Feedback
	}
	o.contexts[feat.ID] = ctx

	if current == phase.PhaseRed {
		if err := o.tracker.TransitionTo(feat.ID, phase.PhaseYellow, "tests passing, awaiting review", nil); err != nil {
			delete(o.contexts, feat.ID)
			return err
		}
	}

	o.logger.Info("Feature entered YELLOW",
		slog.String("feature_id", feat.ID),
		slog.Int("tests_passed", result.Passed),
		slog.Int("review_attempts", ctx.ReviewAttempts),
	)
	return nil
}

// PrepareReviewContext builds the payload for the next review round.
//
// Outputs:
//
//	*ReviewContext - Review payload with at most the last three feedback
//	    strings attached.
//	error - *YellowPhaseError wrapping ErrNoContext if the feature has no
//	    live context.
func (o *Orchestrator) PrepareReviewContext(featureID string) (*ReviewContext, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx, exists := o.contexts[featureID]
	if !exists {
		return nil, &YellowPhaseError{FeatureID: featureID, Err: ErrNoContext}
	}

	rc := &ReviewContext{
		FeatureID:             ctx.Feature.ID,
		FeatureTitle:          ctx.Feature.Title,
		FeatureDescription:    ctx.Feature.Description,
		ImplementationPath:    ctx.ImplementationPath,
		ImplementationSummary: ctx.ImplementationSummary,
		TestsPassing:          ctx.TestResult.Success,
		TestsPassed:           ctx.TestResult.Passed,
		ExecutionTime:         ctx.TestResult.ExecutionTime,
		TimeInPhase:           o.now().Sub(ctx.EnteredAt),
		ReviewAttempt:         ctx.ReviewAttempts + 1,
		HasPriorFeedback:      len(ctx.Feedback) > 0,
	}
	// Acceptance criteria are optional on a feature.
	if tc := ctx.Feature.TestCriteria; tc != nil {
		rc.EdgeCases = tc.EdgeCases
		rc.ErrorConditions = tc.ErrorConditions
	}
	if n := len(ctx.Feedback); n > 0 {
		start := n - maxRecentFeedback
		if start < 0 {
			start = 0
		}
		rc.RecentFeedback = append([]string(nil), ctx.Feedback[start:]...)
	}
	return rc, nil
}

// HandleReviewResult applies a reviewer verdict.
//
// Description:
//
//	Increments the attempt counter and records feedback, then drives the
//	tracker: approval moves the feature to GREEN and deletes the context;
//	rejection moves it back to RED but keeps the context alive, since its
//	feedback history feeds the next implementation attempt.
//
// Outputs:
//
//	phase.Phase - The feature's resulting phase (GREEN or RED).
//	error - *YellowPhaseError, or a tracker error.
func (o *Orchestrator) HandleReviewResult(featureID string, approved bool, feedback string) (phase.Phase, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx, exists := o.contexts[featureID]
	if !exists {
		return phase.PhaseNone, &YellowPhaseError{FeatureID: featureID, Err: ErrNoContext}
	}

	ctx.ReviewAttempts++
	if feedback != "" {
		ctx.Feedback = append(ctx.Feedback, feedback)
	}

	if approved {
		reason := fmt.Sprintf("approved after %d review(s)", ctx.ReviewAttempts)
		if err := o.tracker.TransitionTo(featureID, phase.PhaseGreen, reason, nil); err != nil {
			return phase.PhaseNone, err
		}
		delete(o.contexts, featureID)
		o.logger.Info("Review approved",
			slog.String("feature_id", featureID),
			slog.Int("review_attempts", ctx.ReviewAttempts),
		)
		return phase.PhaseGreen, nil
	}

	reason := fmt.Sprintf("revision needed - attempt %d", ctx.ReviewAttempts)
	if err := o.tracker.TransitionTo(featureID, phase.PhaseRed, reason, nil); err != nil {
		return phase.PhaseNone, err
	}
	o.logger.Info("Review rejected, feature returned to RED",
		slog.String("feature_id", featureID),
		slog.Int("review_attempts", ctx.ReviewAttempts),
	)
	return phase.PhaseRed, nil
}

// GetContext returns the live context for a feature, if any.
func (o *Orchestrator) GetContext(featureID string) (*Context, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ctx, exists := o.contexts[featureID]
	return ctx, exists
}

// FeaturesAwaitingReview returns the IDs of all features with live
// contexts.
func (o *Orchestrator) FeaturesAwaitingReview() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.contexts))
	for id := range o.contexts {
		ids = append(ids, id)
	}
	return ids
}

// TimeInPhase returns how long a feature has been waiting in YELLOW.
func (o *Orchestrator) TimeInPhase(featureID string) (time.Duration, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ctx, exists := o.contexts[featureID]
	if !exists {
		return 0, false
	}
	return o.now().Sub(ctx.EnteredAt), true
}

// FormatDuration renders a duration the way review payloads show waits:
// whole seconds under a minute, tenths of minutes under an hour, tenths
// of hours beyond that.
func FormatDuration(d time.Duration) string {
	secs := d.Seconds()
	switch {
	case secs < 60:
		return fmt.Sprintf("%.0fs", secs)
	case secs < 3600:
		return fmt.Sprintf("%.1fm", secs/60)
	default:
		return fmt.Sprintf("%.1fh", secs/3600)
	}
}
