// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package yellow

import (
	"time"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
)

// Context is the per-feature state held while a feature sits in YELLOW.
//
// A context survives a review rejection (the feedback history feeds the
// next implementation attempt) and is deleted only on approval.
type Context struct {
	// Feature is the descriptor of the feature under review.
	Feature *feature.Feature `json:"feature"`

	// TestResult is the passing run that admitted the feature to YELLOW.
	TestResult *feature.TestResult `json:"test_result"`

	// ImplementationPath locates the implementation under review.
	ImplementationPath string `json:"implementation_path"`

	// ImplementationSummary is an optional short description of the change.
	ImplementationSummary string `json:"implementation_summary,omitempty"`

	// EnteredAt is when the feature (most recently) entered YELLOW.
	EnteredAt time.Time `json:"entered_at"`

	// ReviewAttempts counts completed review rounds.
	ReviewAttempts int `json:"review_attempts"`

	// Feedback is the ordered history of reviewer feedback strings.
	Feedback []string `json:"feedback,omitempty"`
}

// ReviewContext is the payload handed to the reviewer agent.
type ReviewContext struct {
	FeatureID             string   `json:"feature_id"`
	FeatureTitle          string   `json:"feature_title"`
	FeatureDescription    string   `json:"feature_description"`
	EdgeCases             []string `json:"edge_cases,omitempty"`
	ErrorConditions       []string `json:"error_conditions,omitempty"`
	ImplementationPath    string   `json:"implementation_path"`
	ImplementationSummary string   `json:"implementation_summary,omitempty"`

	// TestsPassing is always true for a live YELLOW context.
	TestsPassing  bool          `json:"tests_passing"`
	TestsPassed   int           `json:"tests_passed"`
	ExecutionTime time.Duration `json:"execution_time"`

	// TimeInPhase is how long the feature has waited in YELLOW.
	TimeInPhase time.Duration `json:"time_in_phase"`

	// ReviewAttempt is the 1-based number of the upcoming review round.
	ReviewAttempt int `json:"review_attempt"`

	// HasPriorFeedback is true when earlier rounds left feedback.
	HasPriorFeedback bool `json:"has_prior_feedback"`

	// RecentFeedback holds at most the last three feedback strings.
	RecentFeedback []string `json:"recent_feedback,omitempty"`
}
