// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package green

import (
	"time"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
)

// Metrics records the lifecycle timestamps and counters for one feature's
// TDD cycle. The driver fills the attempt counters; the orchestrator
// stamps the GREEN timestamps and derives the durations on completion.
type Metrics struct {
	RedPhaseStart    time.Time `json:"red_phase_start"`
	YellowPhaseStart time.Time `json:"yellow_phase_start"`
	GreenPhaseStart  time.Time `json:"green_phase_start"`
	GreenPhaseEnd    time.Time `json:"green_phase_end"`

	// Derived on completion.
	RedDuration    time.Duration `json:"red_duration"`
	YellowDuration time.Duration `json:"yellow_duration"`
	TotalCycleTime time.Duration `json:"total_cycle_time"`

	ImplementationAttempts int `json:"implementation_attempts"`
	ReviewAttempts         int `json:"review_attempts"`
	TestExecutions         int `json:"test_executions"`

	TestsPassed  bool `json:"tests_passed"`
	CodeReviewed bool `json:"code_reviewed"`
	CodeApproved bool `json:"code_approved"`
}

// Context is the state a feature carries once it has entered GREEN.
type Context struct {
	Feature         *feature.Feature `json:"feature"`
	Metrics         *Metrics         `json:"metrics"`
	ReviewFeedback  []string         `json:"review_feedback,omitempty"`
	CompletionNotes []string         `json:"completion_notes,omitempty"`
}

// PhaseBreakdown describes one phase's contribution to the cycle.
type PhaseBreakdown struct {
	Phase       string        `json:"phase"`
	Duration    time.Duration `json:"duration"`
	Description string        `json:"description"`
}

// CompletionSummary is returned when a feature finishes its cycle.
type CompletionSummary struct {
	FeatureID   string           `json:"feature_id"`
	Context     *Context         `json:"context"`
	TDDSuccess  bool             `json:"tdd_success"`
	TestsFirst  bool             `json:"tests_first"`
	Reviewed    bool             `json:"reviewed"`
	Approved    bool             `json:"approved"`
	Breakdown   []PhaseBreakdown `json:"phase_breakdown"`
	Celebration string           `json:"celebration"`
}

// CompletionReport aggregates every completed feature.
type CompletionReport struct {
	TotalFeatures    int           `json:"total_features"`
	Message          string        `json:"message,omitempty"`
	TotalCycleTime   time.Duration `json:"total_cycle_time,omitempty"`
	AverageCycleTime time.Duration `json:"average_cycle_time,omitempty"`

	// FastestFeature labels the completed feature with the shortest
	// cycle, by title when one is set.
	FastestFeature string `json:"fastest_feature,omitempty"`

	// MostAttempts is the feature that needed the most implementation
	// attempts.
	MostAttempts string `json:"most_attempts,omitempty"`
}
