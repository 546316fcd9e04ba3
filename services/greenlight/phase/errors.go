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
	"fmt"
)

// Sentinel errors for the phase package.
var (
	// ErrUntrackedFeature is returned when operating on a feature that was
	// never started.
	ErrUntrackedFeature = errors.New("feature is not tracked")

	// ErrDuplicateFeature is returned when starting a feature twice.
	ErrDuplicateFeature = errors.New("feature is already tracked")

	// ErrInvalidPhase is returned when a caller passes an unknown phase.
	ErrInvalidPhase = errors.New("invalid phase")
)

// InvalidTransitionError indicates an attempt to move a feature along an
// edge that is not in the transition table. The message names both phases
// so a workflow bug can be diagnosed from the error alone.
type InvalidTransitionError struct {
	FeatureID string
	From      Phase
	To        Phase
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid phase transition for feature %q: %s to %s",
		e.FeatureID, e.From, e.To)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var ite *InvalidTransitionError
	return errors.As(err, &ite)
}
