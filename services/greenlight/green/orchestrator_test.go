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
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/phase"
)

func newGreenFixture(t *testing.T) (*Orchestrator, *phase.Tracker, *feature.Feature) {
	t.Helper()
	tracker := phase.NewTracker(nil)
	feat := &feature.Feature{ID: "f1", Title: "login"}
	if err := tracker.StartFeature(feat.ID, nil); err != nil {
		t.Fatal(err)
	}
	if err := tracker.TransitionTo(feat.ID, phase.PhaseYellow, "", nil); err != nil {
		t.Fatal(err)
	}
	return NewOrchestrator(tracker, nil), tracker, feat
}

func baseMetrics(start time.Time) *Metrics {
	return &Metrics{
		RedPhaseStart:          start,
		YellowPhaseStart:       start.Add(2 * time.Minute),
		ImplementationAttempts: 1,
		TestExecutions:         2,
	}
}

func TestEnterGreen(t *testing.T) {
	t.Run("enters from YELLOW with approval", func(t *testing.T) {
		orch, tracker, feat := newGreenFixture(t)
		m := baseMetrics(time.Now())

		ctx, err := orch.EnterGreen(feat, m, true, []string{"looks good"})
		if err != nil {
			t.Fatalf("EnterGreen failed: %v", err)
		}
		if current, _ := tracker.CurrentPhase(feat.ID); current != phase.PhaseGreen {
			t.Errorf("phase = %s, want GREEN", current)
		}
		if !m.CodeApproved || !m.CodeReviewed || !m.TestsPassed {
			t.Error("metrics flags should all be set")
		}
		if m.GreenPhaseStart.IsZero() {
			t.Error("green phase start should be stamped")
		}
		if len(ctx.CompletionNotes) != 0 {
			t.Errorf("completion notes = %v, want empty", ctx.CompletionNotes)
		}
	})

	t.Run("rejects without approval", func(t *testing.T) {
		orch, tracker, feat := newGreenFixture(t)
		_, err := orch.EnterGreen(feat, baseMetrics(time.Now()), false, nil)
		if !errors.Is(err, ErrNotApproved) {
			t.Errorf("err = %v, want ErrNotApproved", err)
		}
		if current, _ := tracker.CurrentPhase(feat.ID); current != phase.PhaseYellow {
			t.Errorf("phase = %s, want unchanged YELLOW", current)
		}
	})

	t.Run("rejects entry from RED", func(t *testing.T) {
		tracker := phase.NewTracker(nil)
		feat := &feature.Feature{ID: "f1"}
		if err := tracker.StartFeature(feat.ID, nil); err != nil {
			t.Fatal(err)
		}
		orch := NewOrchestrator(tracker, nil)

		_, err := orch.EnterGreen(feat, baseMetrics(time.Now()), true, nil)
		if !errors.Is(err, ErrNotInYellow) {
			t.Errorf("err = %v, want ErrNotInYellow", err)
		}
	})
}

func TestCompleteFeature(t *testing.T) {
	t.Run("derives durations and records completion", func(t *testing.T) {
		orch, _, feat := newGreenFixture(t)

		start := time.Unix(1000, 0)
		clock := start
		orch.now = func() time.Time { return clock }

		m := baseMetrics(start)
		clock = start.Add(5 * time.Minute)
		ctx, err := orch.EnterGreen(feat, m, true, nil)
		if err != nil {
			t.Fatal(err)
		}

		clock = start.Add(6 * time.Minute)
		summary, err := orch.CompleteFeature(ctx, []string{"shipped"})
		if err != nil {
			t.Fatalf("CompleteFeature failed: %v", err)
		}

		if m.RedDuration != 2*time.Minute {
			t.Errorf("red duration = %s, want 2m", m.RedDuration)
		}
		if m.YellowDuration != 3*time.Minute {
			t.Errorf("yellow duration = %s, want 3m", m.YellowDuration)
		}
		if m.TotalCycleTime != 6*time.Minute {
			t.Errorf("total cycle = %s, want 6m", m.TotalCycleTime)
		}
		if !summary.TDDSuccess {
			t.Error("summary should report TDD success")
		}
		if len(summary.Breakdown) != 3 {
			t.Errorf("breakdown = %d phases, want 3", len(summary.Breakdown))
		}
		if len(ctx.CompletionNotes) != 1 || ctx.CompletionNotes[0] != "shipped" {
			t.Errorf("notes = %v, want [shipped]", ctx.CompletionNotes)
		}
		if got := len(orch.CompletedFeatures()); got != 1 {
			t.Errorf("completed features = %d, want 1", got)
		}
	})

	t.Run("rejects completion outside GREEN", func(t *testing.T) {
		orch, _, feat := newGreenFixture(t)
		ctx := &Context{Feature: feat, Metrics: baseMetrics(time.Now())}

		_, err := orch.CompleteFeature(ctx, nil)
		var gpe *GreenPhaseError
		if !errors.As(err, &gpe) || !errors.Is(err, ErrNotInGreen) {
			t.Errorf("err = %v, want GreenPhaseError wrapping ErrNotInGreen", err)
		}
	})
}

func TestCelebrationMessage(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		cycle    time.Duration
		want     []string
	}{
		{"first try and fast", 1, 100 * time.Second, []string{"First try success!", "Lightning fast!"}},
		{"few attempts medium pace", 3, 600 * time.Second, []string{"Good iteration!", "Great pace!"}},
		{"many attempts slow", 5, 2000 * time.Second, []string{"Persistence pays off!", "Well done!"}},
		{"boundary at 300s is not fast", 1, 300 * time.Second, []string{"First try success!", "Great pace!"}},
		{"boundary at 900s is not great", 1, 900 * time.Second, []string{"First try success!", "Well done!"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := &Metrics{ImplementationAttempts: tc.attempts, TotalCycleTime: tc.cycle}
			got := celebrationMessage(m)
			for _, w := range tc.want {
				if !strings.Contains(got, w) {
					t.Errorf("message %q missing %q", got, w)
				}
			}
		})
	}
}

func TestCompletionReport(t *testing.T) {
	t.Run("empty report uses sentinel", func(t *testing.T) {
		orch := NewOrchestrator(phase.NewTracker(nil), nil)
		report := orch.CompletionReport()
		if report.TotalFeatures != 0 {
			t.Errorf("total = %d, want 0", report.TotalFeatures)
		}
		if report.Message != "No features completed yet" {
			t.Errorf("message = %q, want sentinel", report.Message)
		}
	})

	t.Run("aggregates across completed features", func(t *testing.T) {
		tracker := phase.NewTracker(nil)
		orch := NewOrchestrator(tracker, nil)

		complete := func(id string, cycle time.Duration, attempts int) {
			t.Helper()
			feat := &feature.Feature{ID: id}
			if err := tracker.StartFeature(id, nil); err != nil {
				t.Fatal(err)
			}
			if err := tracker.TransitionTo(id, phase.PhaseYellow, "", nil); err != nil {
				t.Fatal(err)
			}

			start := time.Unix(1000, 0)
			clock := start
			orch.now = func() time.Time { return clock }

			m := &Metrics{
				RedPhaseStart:          start,
				YellowPhaseStart:       start,
				ImplementationAttempts: attempts,
			}
			ctx, err := orch.EnterGreen(feat, m, true, nil)
			if err != nil {
				t.Fatal(err)
			}
			clock = start.Add(cycle)
			if _, err := orch.CompleteFeature(ctx, nil); err != nil {
				t.Fatal(err)
			}
		}

		complete("fast", 1*time.Minute, 4)
		complete("slow", 9*time.Minute, 1)

		report := orch.CompletionReport()
		if report.TotalFeatures != 2 {
			t.Errorf("total = %d, want 2", report.TotalFeatures)
		}
		if report.TotalCycleTime != 10*time.Minute {
			t.Errorf("total cycle = %s, want 10m", report.TotalCycleTime)
		}
		if report.AverageCycleTime != 5*time.Minute {
			t.Errorf("average cycle = %s, want 5m", report.AverageCycleTime)
		}
		if report.FastestFeature != "fast" {
			t.Errorf("fastest = %q, want fast", report.FastestFeature)
		}
		if report.MostAttempts != "fast" {
			t.Errorf("most attempts = %q, want fast", report.MostAttempts)
		}
	})

	t.Run("names features by title when one is set", func(t *testing.T) {
		tracker := phase.NewTracker(nil)
		orch := NewOrchestrator(tracker, nil)

		feat := &feature.Feature{ID: "auth-1", Title: "User auth"}
		if err := tracker.StartFeature(feat.ID, nil); err != nil {
			t.Fatal(err)
		}
		if err := tracker.TransitionTo(feat.ID, phase.PhaseYellow, "", nil); err != nil {
			t.Fatal(err)
		}

		start := time.Unix(1000, 0)
		orch.now = func() time.Time { return start }
		m := &Metrics{RedPhaseStart: start, YellowPhaseStart: start, ImplementationAttempts: 1}
		ctx, err := orch.EnterGreen(feat, m, true, nil)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := orch.CompleteFeature(ctx, nil); err != nil {
			t.Fatal(err)
		}

		report := orch.CompletionReport()
		if report.FastestFeature != "User auth" {
			t.Errorf("fastest = %q, want the title", report.FastestFeature)
		}
		if report.MostAttempts != "User auth" {
			t.Errorf("most attempts = %q, want the title", report.MostAttempts)
		}
	})
}
