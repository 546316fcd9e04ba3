// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package phase implements the TDD phase state machine.
//
// The Tracker is the single source of truth for "what phase is feature X
// in". The RED/YELLOW/GREEN orchestrators mutate phases exclusively through
// TransitionTo; they never bypass the tracker. History is append-only: a
// transition record, once appended, is never mutated or removed.
package phase

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Tracker maps feature IDs to their current TDD phase and transition
// history, enforcing the legal transition table.
//
// Thread Safety: Safe for concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	features map[string]*featureState
	logger   *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewTracker creates an empty tracker.
//
// Inputs:
//
//	logger - Logger for structured logging. Nil uses slog.Default().
//
// Outputs:
//
//	*Tracker - Ready-to-use tracker.
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		features: make(map[string]*featureState),
		logger:   logger,
		now:      time.Now,
	}
}

// StartFeature begins tracking a feature, recording the initial
// (none) -> RED transition.
//
// Inputs:
//
//	id - Feature ID. Must not already be tracked.
//	metadata - Opaque values kept with the feature (title, index, etc).
//
// Outputs:
//
//	error - ErrDuplicateFeature if the ID is already tracked.
func (t *Tracker) StartFeature(id string, metadata map[string]any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.features[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFeature, id)
	}

	ts := t.now()
	t.features[id] = &featureState{
		current: PhaseRed,
		history: []Transition{{
			From:      PhaseNone,
			To:        PhaseRed,
			Timestamp: ts,
			Reason:    "feature started",
		}},
		metadata: metadata,
	}

	t.logger.Info("Feature tracking started",
		slog.String("feature_id", id),
		slog.String("phase", PhaseRed.String()),
	)
	return nil
}

// TransitionTo moves a feature to a new phase if the edge is legal.
//
// Description:
//
//	Validates the move against the static transition table. On success a
//	transition record is appended to the feature's history and the current
//	phase is updated. Illegal moves leave state untouched.
//
// Inputs:
//
//	id - Feature ID. Must be tracked.
//	to - Target phase.
//	reason - Free-form explanation recorded in the history.
//	metadata - Opaque values recorded on the transition.
//
// Outputs:
//
//	error - ErrUntrackedFeature, ErrInvalidPhase, or *InvalidTransitionError.
func (t *Tracker) TransitionTo(id string, to Phase, reason string, metadata map[string]any) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidPhase, to)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	state, exists := t.features[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUntrackedFeature, id)
	}

	from := state.current
	if !canTransition(from, to) {
		return &InvalidTransitionError{FeatureID: id, From: from, To: to}
	}

	state.history = append(state.history, Transition{
		From:      from,
		To:        to,
		Timestamp: t.now(),
		Reason:    reason,
		Metadata:  metadata,
	})
	state.current = to

	t.logger.Info("Phase transition",
		slog.String("feature_id", id),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.String("reason", reason),
	)
	return nil
}

// CurrentPhase returns the feature's current phase.
//
// Outputs:
//
//	Phase - The current phase (PhaseNone if untracked).
//	bool - True if the feature is tracked.
func (t *Tracker) CurrentPhase(id string) (Phase, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state, exists := t.features[id]
	if !exists {
		return PhaseNone, false
	}
	return state.current, true
}

// History returns a copy of the feature's ordered transition history.
// Untracked features get an empty slice.
func (t *Tracker) History(id string) []Transition {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state, exists := t.features[id]
	if !exists {
		return []Transition{}
	}
	out := make([]Transition, len(state.history))
	copy(out, state.history)
	return out
}

// IsComplete returns true iff the feature is in GREEN.
func (t *Tracker) IsComplete(id string) bool {
	current, ok := t.CurrentPhase(id)
	return ok && current == PhaseGreen
}

// FeaturesInPhase returns the IDs of all features currently in the given
// phase, sorted for deterministic output.
func (t *Tracker) FeaturesInPhase(p Phase) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0)
	for id, state := range t.features {
		if state.current == p {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// PhaseDuration returns the total time the feature has spent in a phase.
//
// Description:
//
//	Sums every interval the feature spent in the phase: RED in particular
//	can be re-entered after a review rejection. If the feature is in the
//	phase right now, the open interval is bounded by the current time.
//
// Outputs:
//
//	time.Duration - Total time in the phase.
//	bool - False if the feature never entered the phase (or is untracked).
func (t *Tracker) PhaseDuration(id string, p Phase) (time.Duration, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state, exists := t.features[id]
	if !exists {
		return 0, false
	}

	var total time.Duration
	entered := false
	for i, tr := range state.history {
		if tr.To != p {
			continue
		}
		entered = true
		end := t.now()
		if i+1 < len(state.history) {
			// The next transition is always the exit from this phase.
			end = state.history[i+1].Timestamp
		}
		total += end.Sub(tr.Timestamp)
	}
	if !entered {
		return 0, false
	}
	return total, true
}

// EnforceRedStart fails unless the feature is currently in RED.
//
// Used as a guard before allowing implementation work to begin: writing
// code for a feature that is not in RED violates tests-first discipline.
func (t *Tracker) EnforceRedStart(id string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state, exists := t.features[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUntrackedFeature, id)
	}
	if state.current != PhaseRed {
		return &InvalidTransitionError{FeatureID: id, From: state.current, To: PhaseRed}
	}
	return nil
}

// Metadata returns the metadata stored when the feature was started.
func (t *Tracker) Metadata(id string) (map[string]any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state, exists := t.features[id]
	if !exists {
		return nil, false
	}
	return state.metadata, true
}

// Stats returns a structured summary of the tracker state.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := Stats{
		TotalFeatures: len(t.features),
		PerPhase:      make(map[Phase]int, 3),
	}
	for _, p := range AllPhases() {
		stats.PerPhase[p] = 0
	}
	for _, state := range t.features {
		stats.PerPhase[state.current]++
		stats.TotalTransitions += len(state.history)
	}
	return stats
}

// Statuses returns one status row per tracked feature, sorted by ID.
func (t *Tracker) Statuses() []FeatureStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]FeatureStatus, 0, len(t.features))
	for id, state := range t.features {
		status := FeatureStatus{
			FeatureID:   id,
			Phase:       state.current,
			Transitions: len(state.history),
		}
		if n := len(state.history); n > 0 {
			status.LastReason = state.history[n-1].Reason
		}
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FeatureID < out[j].FeatureID })
	return out
}

// Summary renders a human-readable report of per-phase counts and
// per-feature status, suitable for logging or printing.
func (t *Tracker) Summary() string {
	stats := t.Stats()
	statuses := t.Statuses()

	var b strings.Builder
	b.WriteString("TDD Phase Summary\n")
	b.WriteString("=================\n")
	for _, p := range AllPhases() {
		fmt.Fprintf(&b, "%-7s %d\n", p.String()+":", stats.PerPhase[p])
	}
	fmt.Fprintf(&b, "features: %d, transitions: %d\n", stats.TotalFeatures, stats.TotalTransitions)
	if len(statuses) > 0 {
		b.WriteString("\n")
	}
	for _, s := range statuses {
		fmt.Fprintf(&b, "  %s [%s]", s.FeatureID, s.Phase)
		if s.LastReason != "" {
			fmt.Fprintf(&b, " - %s", s.LastReason)
		}
		b.WriteString("\n")
	}
	return b.String()
}
