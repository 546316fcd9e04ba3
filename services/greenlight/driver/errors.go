// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package driver

import (
	"errors"
	"fmt"
)

// ErrNoTests is returned when the test writer produces no test files.
var ErrNoTests = errors.New("test writer produced no test files")

// RetryExhaustedError indicates a feature ran out of implementation
// attempts or review rounds without reaching GREEN.
type RetryExhaustedError struct {
	FeatureID string
	Attempts  int
	LastErr   error
}

// Error implements the error interface.
func (e *RetryExhaustedError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("feature %q not completed after %d attempts: %v",
			e.FeatureID, e.Attempts, e.LastErr)
	}
	return fmt.Sprintf("feature %q not completed after %d attempts", e.FeatureID, e.Attempts)
}

// Unwrap returns the last underlying error.
func (e *RetryExhaustedError) Unwrap() error {
	return e.LastErr
}
