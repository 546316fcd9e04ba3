// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package phase

import "time"

// =============================================================================
// PHASES
// =============================================================================

// Phase represents a TDD phase in the RED/YELLOW/GREEN discipline.
type Phase string

const (
	// PhaseNone is the pre-tracking phase (a feature that has not started).
	PhaseNone Phase = ""

	// PhaseRed means tests are written and failing, no implementation yet.
	PhaseRed Phase = "RED"

	// PhaseYellow means tests pass and the feature awaits review.
	PhaseYellow Phase = "YELLOW"

	// PhaseGreen means tests pass and the review was approved. Terminal.
	PhaseGreen Phase = "GREEN"
)

// String returns the phase name, or "none" for the zero phase.
func (p Phase) String() string {
	if p == PhaseNone {
		return "none"
	}
	return string(p)
}

// IsTerminal returns true if no transition may leave this phase.
func (p Phase) IsTerminal() bool {
	return p == PhaseGreen
}

// Valid returns true for the three tracked phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseRed, PhaseYellow, PhaseGreen:
		return true
	default:
		return false
	}
}

// AllPhases returns the tracked phases in pipeline order.
func AllPhases() []Phase {
	return []Phase{PhaseRed, PhaseYellow, PhaseGreen}
}

// legalTransitions is the static transition table. A feature may only move
// along these edges; everything else is a discipline violation.
//
//	(none)  -> RED
//	RED     -> YELLOW
//	YELLOW  -> GREEN, RED
//	GREEN   -> (terminal)
var legalTransitions = map[Phase][]Phase{
	PhaseNone:   {PhaseRed},
	PhaseRed:    {PhaseYellow},
	PhaseYellow: {PhaseGreen, PhaseRed},
	PhaseGreen:  {},
}

// canTransition reports whether from -> to is a legal edge.
func canTransition(from, to Phase) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Transition is one immutable entry in a feature's phase history.
type Transition struct {
	// From is the previous phase. PhaseNone for the initial transition.
	From Phase `json:"from_phase"`

	// To is the phase entered.
	To Phase `json:"to_phase"`

	// Timestamp is when the transition happened.
	Timestamp time.Time `json:"timestamp"`

	// Reason is a free-form explanation (e.g. "tests passing").
	Reason string `json:"reason,omitempty"`

	// Metadata carries opaque caller-supplied values.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// featureState is the per-feature tracking record.
type featureState struct {
	current  Phase
	history  []Transition
	metadata map[string]any
}

// =============================================================================
// SUMMARIES
// =============================================================================

// Stats is a structured summary of the tracker state.
type Stats struct {
	// TotalFeatures is the number of tracked features.
	TotalFeatures int `json:"total_features"`

	// PerPhase counts features currently in each phase.
	PerPhase map[Phase]int `json:"per_phase"`

	// TotalTransitions is the total transition count across all features.
	TotalTransitions int `json:"total_transitions"`
}

// FeatureStatus is one row of the human-readable summary.
type FeatureStatus struct {
	// FeatureID identifies the feature.
	FeatureID string `json:"feature_id"`

	// Phase is the current phase.
	Phase Phase `json:"phase"`

	// LastReason is the reason on the most recent transition.
	LastReason string `json:"last_reason,omitempty"`

	// Transitions is the length of the feature's history.
	Transitions int `json:"transitions"`
}
