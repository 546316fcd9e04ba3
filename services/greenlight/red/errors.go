// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package red

import (
	"errors"
	"fmt"
)

// Sentinel errors for the red package.
var (
	// ErrNotInRed is returned when RED-phase work is attempted for a
	// feature that is not currently in RED.
	ErrNotInRed = errors.New("feature is not in RED phase")

	// ErrTestsPassed is returned when the new test suite passes before any
	// implementation exists. Tests that cannot fail prove nothing.
	ErrTestsPassed = errors.New("tests passed unexpectedly in RED phase")

	// ErrNoTestFiles is returned when a RED validation request carries no
	// test files.
	ErrNoTestFiles = errors.New("no test files provided")
)

// RedPhaseError wraps any failure during RED-phase orchestration with the
// feature it belongs to.
type RedPhaseError struct {
	FeatureID string
	Err       error
}

// Error implements the error interface.
func (e *RedPhaseError) Error() string {
	return fmt.Sprintf("RED phase failed for feature %q: %v", e.FeatureID, e.Err)
}

// Unwrap returns the underlying error.
func (e *RedPhaseError) Unwrap() error {
	return e.Err
}
