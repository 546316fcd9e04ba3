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

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestStartFeature(t *testing.T) {
	t.Run("starts feature in RED", func(t *testing.T) {
		tr := NewTracker(nil)
		if err := tr.StartFeature("f1", map[string]any{"title": "login"}); err != nil {
			t.Fatalf("StartFeature failed: %v", err)
		}

		current, ok := tr.CurrentPhase("f1")
		if !ok {
			t.Fatal("feature should be tracked")
		}
		if current != PhaseRed {
			t.Errorf("phase = %s, want RED", current)
		}

		history := tr.History("f1")
		if len(history) != 1 {
			t.Fatalf("history length = %d, want 1", len(history))
		}
		if history[0].From != PhaseNone || history[0].To != PhaseRed {
			t.Errorf("initial transition = %s -> %s, want none -> RED",
				history[0].From, history[0].To)
		}
	})

	t.Run("rejects duplicate start", func(t *testing.T) {
		tr := NewTracker(nil)
		if err := tr.StartFeature("f1", nil); err != nil {
			t.Fatalf("first StartFeature failed: %v", err)
		}
		err := tr.StartFeature("f1", nil)
		if !errors.Is(err, ErrDuplicateFeature) {
			t.Errorf("err = %v, want ErrDuplicateFeature", err)
		}
	})
}

func TestTransitionTo(t *testing.T) {
	t.Run("allows the full legal cycle", func(t *testing.T) {
		tr := NewTracker(nil)
		mustStart(t, tr, "f1")

		steps := []Phase{PhaseYellow, PhaseRed, PhaseYellow, PhaseGreen}
		for _, to := range steps {
			if err := tr.TransitionTo("f1", to, "step", nil); err != nil {
				t.Fatalf("transition to %s failed: %v", to, err)
			}
		}

		if !tr.IsComplete("f1") {
			t.Error("feature should be complete after reaching GREEN")
		}
		if got := len(tr.History("f1")); got != 5 {
			t.Errorf("history length = %d, want 5", got)
		}
	})

	t.Run("rejects RED to GREEN", func(t *testing.T) {
		tr := NewTracker(nil)
		mustStart(t, tr, "f1")

		err := tr.TransitionTo("f1", PhaseGreen, "", nil)
		if err == nil {
			t.Fatal("expected error for RED -> GREEN")
		}
		if !IsInvalidTransition(err) {
			t.Errorf("err = %v, want InvalidTransitionError", err)
		}
		if !strings.Contains(err.Error(), "RED to GREEN") {
			t.Errorf("error message %q should name both phases", err.Error())
		}
	})

	t.Run("GREEN is terminal", func(t *testing.T) {
		tr := NewTracker(nil)
		mustStart(t, tr, "f1")
		mustTransition(t, tr, "f1", PhaseYellow)
		mustTransition(t, tr, "f1", PhaseGreen)

		for _, to := range []Phase{PhaseRed, PhaseYellow} {
			if err := tr.TransitionTo("f1", to, "", nil); !IsInvalidTransition(err) {
				t.Errorf("GREEN -> %s: err = %v, want InvalidTransitionError", to, err)
			}
		}
	})

	t.Run("rejects untracked feature", func(t *testing.T) {
		tr := NewTracker(nil)
		err := tr.TransitionTo("ghost", PhaseYellow, "", nil)
		if !errors.Is(err, ErrUntrackedFeature) {
			t.Errorf("err = %v, want ErrUntrackedFeature", err)
		}
	})

	t.Run("rejects unknown phase", func(t *testing.T) {
		tr := NewTracker(nil)
		mustStart(t, tr, "f1")
		err := tr.TransitionTo("f1", Phase("PURPLE"), "", nil)
		if !errors.Is(err, ErrInvalidPhase) {
			t.Errorf("err = %v, want ErrInvalidPhase", err)
		}
	})

	t.Run("history grows by exactly one per successful transition", func(t *testing.T) {
		tr := NewTracker(nil)
		mustStart(t, tr, "f1")

		before := len(tr.History("f1"))
		mustTransition(t, tr, "f1", PhaseYellow)
		if got := len(tr.History("f1")); got != before+1 {
			t.Errorf("history length = %d, want %d", got, before+1)
		}

		// Failed transition must not touch history.
		_ = tr.TransitionTo("f1", PhaseYellow, "", nil)
		if got := len(tr.History("f1")); got != before+1 {
			t.Errorf("history length after failed transition = %d, want %d", got, before+1)
		}
	})
}

func TestPhaseDuration(t *testing.T) {
	t.Run("sums every interval spent in a phase", func(t *testing.T) {
		tr := NewTracker(nil)
		clock := time.Unix(1000, 0)
		tr.now = func() time.Time { return clock }

		mustStart(t, tr, "f1") // RED at t=1000

		clock = clock.Add(10 * time.Second)
		mustTransition(t, tr, "f1", PhaseYellow) // RED for 10s

		clock = clock.Add(5 * time.Second)
		mustTransition(t, tr, "f1", PhaseRed) // YELLOW for 5s

		clock = clock.Add(20 * time.Second)
		mustTransition(t, tr, "f1", PhaseYellow) // RED for another 20s

		red, ok := tr.PhaseDuration("f1", PhaseRed)
		if !ok {
			t.Fatal("feature entered RED")
		}
		if red != 30*time.Second {
			t.Errorf("RED duration = %s, want 30s", red)
		}
	})

	t.Run("open interval is bounded by now", func(t *testing.T) {
		tr := NewTracker(nil)
		clock := time.Unix(1000, 0)
		tr.now = func() time.Time { return clock }

		mustStart(t, tr, "f1")
		clock = clock.Add(42 * time.Second)

		red, ok := tr.PhaseDuration("f1", PhaseRed)
		if !ok || red != 42*time.Second {
			t.Errorf("RED duration = %s ok=%v, want 42s", red, ok)
		}
	})

	t.Run("reports false for a phase never entered", func(t *testing.T) {
		tr := NewTracker(nil)
		mustStart(t, tr, "f1")
		if _, ok := tr.PhaseDuration("f1", PhaseGreen); ok {
			t.Error("GREEN was never entered")
		}
		if _, ok := tr.PhaseDuration("ghost", PhaseRed); ok {
			t.Error("untracked features have no durations")
		}
	})
}

func TestEnforceRedStart(t *testing.T) {
	tr := NewTracker(nil)
	mustStart(t, tr, "f1")

	if err := tr.EnforceRedStart("f1"); err != nil {
		t.Errorf("EnforceRedStart in RED failed: %v", err)
	}

	mustTransition(t, tr, "f1", PhaseYellow)
	if err := tr.EnforceRedStart("f1"); !IsInvalidTransition(err) {
		t.Errorf("err = %v, want InvalidTransitionError in YELLOW", err)
	}

	if err := tr.EnforceRedStart("ghost"); !errors.Is(err, ErrUntrackedFeature) {
		t.Errorf("err = %v, want ErrUntrackedFeature", err)
	}
}

func TestFeaturesInPhase(t *testing.T) {
	tr := NewTracker(nil)
	mustStart(t, tr, "b")
	mustStart(t, tr, "a")
	mustStart(t, tr, "c")
	mustTransition(t, tr, "c", PhaseYellow)

	red := tr.FeaturesInPhase(PhaseRed)
	if len(red) != 2 || red[0] != "a" || red[1] != "b" {
		t.Errorf("RED features = %v, want [a b]", red)
	}
	yellow := tr.FeaturesInPhase(PhaseYellow)
	if len(yellow) != 1 || yellow[0] != "c" {
		t.Errorf("YELLOW features = %v, want [c]", yellow)
	}
	if green := tr.FeaturesInPhase(PhaseGreen); len(green) != 0 {
		t.Errorf("GREEN features = %v, want empty", green)
	}
}

func TestSummary(t *testing.T) {
	tr := NewTracker(nil)
	mustStart(t, tr, "f1")
	mustTransition(t, tr, "f1", PhaseYellow)
	mustStart(t, tr, "f2")

	stats := tr.Stats()
	if stats.TotalFeatures != 2 {
		t.Errorf("TotalFeatures = %d, want 2", stats.TotalFeatures)
	}
	if stats.TotalTransitions != 3 {
		t.Errorf("TotalTransitions = %d, want 3", stats.TotalTransitions)
	}
	if stats.PerPhase[PhaseYellow] != 1 || stats.PerPhase[PhaseRed] != 1 {
		t.Errorf("PerPhase = %v, want 1 RED and 1 YELLOW", stats.PerPhase)
	}

	summary := tr.Summary()
	for _, want := range []string{"RED:", "YELLOW:", "GREEN:", "f1 [YELLOW]", "f2 [RED]"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}

// mustStart is a test helper that fails the test on error.
func mustStart(t *testing.T, tr *Tracker, id string) {
	t.Helper()
	if err := tr.StartFeature(id, nil); err != nil {
		t.Fatalf("StartFeature(%s) failed: %v", id, err)
	}
}

// mustTransition is a test helper that fails the test on error.
func mustTransition(t *testing.T, tr *Tracker, id string, to Phase) {
	t.Helper()
	if err := tr.TransitionTo(id, to, "test", nil); err != nil {
		t.Fatalf("TransitionTo(%s, %s) failed: %v", id, to, err)
	}
}
