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
	"errors"
	"fmt"
)

// Sentinel errors for the yellow package.
var (
	// ErrFailingTests is returned when entry is attempted with a failing
	// test run.
	ErrFailingTests = errors.New("cannot enter YELLOW with failing tests")

	// ErrNoContext is returned when an operation references a feature with
	// no live YELLOW context.
	ErrNoContext = errors.New("no YELLOW context for feature")

	// ErrWrongPhase is returned when a feature's current phase does not
	// allow YELLOW entry.
	ErrWrongPhase = errors.New("feature cannot enter YELLOW from its current phase")
)

// YellowPhaseError wraps any failure during YELLOW orchestration with the
// feature it belongs to.
type YellowPhaseError struct {
	FeatureID string
	Err       error
}

// Error implements the error interface.
func (e *YellowPhaseError) Error() string {
	return fmt.Sprintf("YELLOW phase failed for feature %q: %v", e.FeatureID, e.Err)
}

// Unwrap returns the underlying error.
func (e *YellowPhaseError) Unwrap() error {
	return e.Err
}
