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
	"fmt"
)

// Sentinel errors for the green package.
var (
	// ErrNotInYellow is returned when GREEN entry is attempted from any
	// phase other than YELLOW.
	ErrNotInYellow = errors.New("feature must be in YELLOW to enter GREEN")

	// ErrNotApproved is returned when GREEN entry is attempted without
	// reviewer approval.
	ErrNotApproved = errors.New("cannot enter GREEN without approval")

	// ErrNotInGreen is returned when completion is attempted for a feature
	// no longer in GREEN.
	ErrNotInGreen = errors.New("feature is not in GREEN phase")
)

// GreenPhaseError wraps any failure during GREEN orchestration with the
// feature it belongs to.
type GreenPhaseError struct {
	FeatureID string
	Err       error
}

// Error implements the error interface.
func (e *GreenPhaseError) Error() string {
	return fmt.Sprintf("GREEN phase failed for feature %q: %v", e.FeatureID, e.Err)
}

// Unwrap returns the underlying error.
func (e *GreenPhaseError) Unwrap() error {
	return e.Err
}
