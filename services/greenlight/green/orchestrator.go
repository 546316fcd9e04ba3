// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package green finalizes features: GREEN entry after approval, cycle-time
// metrics, and the completion report.
package green

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/phase"
)

// Celebration thresholds. Deterministic: tests reproduce the exact strings.
const (
	fastCycleSeconds = 300
	goodCycleSeconds = 900
	goodAttemptLimit = 3
)

// Orchestrator manages GREEN entry and feature completion.
//
// Thread Safety: Safe for concurrent use.
type Orchestrator struct {
	mu        sync.Mutex
	tracker   *phase.Tracker
	completed []*Context
	logger    *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewOrchestrator creates a GREEN orchestrator.
func NewOrchestrator(tracker *phase.Tracker, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		tracker: tracker,
		logger:  logger,
		now:     time.Now,
	}
}

// ValidateEntry checks that the feature may enter GREEN right now.
// The only legal source phase is YELLOW.
func (o *Orchestrator) ValidateEntry(featureID string) error {
	current, ok := o.tracker.CurrentPhase(featureID)
	if !ok || current != phase.PhaseYellow {
		return fmt.Errorf("%w: feature %s is in %s", ErrNotInYellow, featureID, current)
	}
	return nil
}

// EnterGreen moves an approved feature into GREEN.
//
// Description:
//
//	Re-checks approval independently of the YELLOW orchestrator so this
//	entry point stays safe when called standalone. On success the metrics
//	are stamped and flagged, the tracker records the transition, and a
//	fresh GREEN context is returned.
//
// Inputs:
//
//	feat - The approved feature.
//	metrics - The feature's cycle metrics, filled so far by the driver.
//	approved - The reviewer verdict. Must be true.
//	feedback - Reviewer feedback carried into the context.
//
// Outputs:
//
//	*Context - Live GREEN context with empty completion notes.
//	error - ErrNotInYellow, ErrNotApproved, or a tracker error.
func (o *Orchestrator) EnterGreen(feat *feature.Feature, metrics *Metrics, approved bool, feedback []string) (*Context, error) {
	if err := o.ValidateEntry(feat.ID); err != nil {
		return nil, err
	}
	if !approved {
		return nil, fmt.Errorf("%w: feature %s", ErrNotApproved, feat.ID)
	}

	metrics.GreenPhaseStart = o.now()
	metrics.TestsPassed = true
	metrics.CodeReviewed = true
	metrics.CodeApproved = true

	if err := o.tracker.TransitionTo(feat.ID, phase.PhaseGreen, "review approved", nil); err != nil {
		return nil, err
	}

	o.logger.Info("Feature entered GREEN",
		slog.String("feature_id", feat.ID),
		slog.Int("implementation_attempts", metrics.ImplementationAttempts),
	)
	return &Context{
		Feature:         feat,
		Metrics:         metrics,
		ReviewFeedback:  feedback,
		CompletionNotes: []string{},
	}, nil
}

// CompleteFeature closes out a GREEN feature's cycle.
//
// Description:
//
//	Re-checks the phase: external state may have changed since EnterGreen.
//	Stamps the end time, derives the phase durations, records the context
//	in the completed list, and builds the completion summary with a
//	deterministic celebration message.
//
// Outputs:
//
//	*CompletionSummary - Summary with per-phase breakdown and celebration.
//	error - ErrNotInGreen wrapped in *GreenPhaseError.
func (o *Orchestrator) CompleteFeature(ctx *Context, completionNotes []string) (*CompletionSummary, error) {
	id := ctx.Feature.ID
	if current, ok := o.tracker.CurrentPhase(id); !ok || current != phase.PhaseGreen {
		return nil, &GreenPhaseError{FeatureID: id, Err: ErrNotInGreen}
	}

	m := ctx.Metrics
	m.GreenPhaseEnd = o.now()
	m.RedDuration = m.YellowPhaseStart.Sub(m.RedPhaseStart)
	m.YellowDuration = m.GreenPhaseStart.Sub(m.YellowPhaseStart)
	m.TotalCycleTime = m.GreenPhaseEnd.Sub(m.RedPhaseStart)
	ctx.CompletionNotes = append(ctx.CompletionNotes, completionNotes...)

	o.mu.Lock()
	o.completed = append(o.completed, ctx)
	o.mu.Unlock()

	summary := &CompletionSummary{
		FeatureID:  id,
		Context:    ctx,
		TDDSuccess: m.TestsPassed && m.CodeReviewed && m.CodeApproved,
		TestsFirst: true,
		Reviewed:   m.CodeReviewed,
		Approved:   m.CodeApproved,
		Breakdown: []PhaseBreakdown{
			{Phase: "RED", Duration: m.RedDuration, Description: "tests written and failing"},
			{Phase: "YELLOW", Duration: m.YellowDuration, Description: "tests passing, under review"},
			{Phase: "GREEN", Duration: m.GreenPhaseEnd.Sub(m.GreenPhaseStart), Description: "approved and finalized"},
		},
		Celebration: celebrationMessage(m),
	}

	o.logger.Info("Feature completed",
		slog.String("feature_id", id),
		slog.Duration("total_cycle_time", m.TotalCycleTime),
		slog.Int("implementation_attempts", m.ImplementationAttempts),
	)
	return summary, nil
}

// celebrationMessage builds the fixed-format completion message from the
// attempt count and total cycle time.
func celebrationMessage(m *Metrics) string {
	var attemptPhrase string
	switch {
	case m.ImplementationAttempts == 1:
		attemptPhrase = "First try success!"
	case m.ImplementationAttempts <= goodAttemptLimit:
		attemptPhrase = "Good iteration!"
	default:
		attemptPhrase = "Persistence pays off!"
	}

	var timePhrase string
	secs := m.TotalCycleTime.Seconds()
	switch {
	case secs < fastCycleSeconds:
		timePhrase = "Lightning fast!"
	case secs < goodCycleSeconds:
		timePhrase = "Great pace!"
	default:
		timePhrase = "Well done!"
	}

	return fmt.Sprintf("%s %s Feature complete - RED, YELLOW, GREEN.", attemptPhrase, timePhrase)
}

// CompletedFeatures returns the contexts of every completed feature.
func (o *Orchestrator) CompletedFeatures() []*Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*Context, len(o.completed))
	copy(out, o.completed)
	return out
}

// CompletionReport aggregates cycle metrics across completed features.
//
// Description:
//
//	With no completed features it returns the zero-count sentinel rather
//	than computing over an empty list. Otherwise it reports total and
//	average cycle time, the fastest feature, and the feature that needed
//	the most implementation attempts.
func (o *Orchestrator) CompletionReport() *CompletionReport {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.completed) == 0 {
		return &CompletionReport{
			TotalFeatures: 0,
			Message:       "No features completed yet",
		}
	}

	report := &CompletionReport{TotalFeatures: len(o.completed)}
	fastest := o.completed[0]
	mostAttempts := o.completed[0]
	for _, ctx := range o.completed {
		report.TotalCycleTime += ctx.Metrics.TotalCycleTime
		if ctx.Metrics.TotalCycleTime < fastest.Metrics.TotalCycleTime {
			fastest = ctx
		}
		if ctx.Metrics.ImplementationAttempts > mostAttempts.Metrics.ImplementationAttempts {
			mostAttempts = ctx
		}
	}
	report.AverageCycleTime = report.TotalCycleTime / time.Duration(len(o.completed))
	report.FastestFeature = featureLabel(fastest.Feature)
	report.MostAttempts = featureLabel(mostAttempts.Feature)
	return report
}

// featureLabel names a feature by title, falling back to the id for
// untitled features.
func featureLabel(f *feature.Feature) string {
	if f.Title != "" {
		return f.Title
	}
	return f.ID
}
