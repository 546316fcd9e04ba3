// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package greenlight

import (
	"time"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/green"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/phase"
)

// ServiceVersion is the greenlight service version.
const ServiceVersion = "0.1.0"

// SubmitRequest asks the service to implement one or more features.
type SubmitRequest struct {
	// Features to implement. Dependencies between them are honored.
	Features []*feature.Feature `json:"features" binding:"required"`

	// BaseCode is pre-existing code the implementations build on,
	// keyed by file name.
	BaseCode map[string]string `json:"base_code,omitempty"`

	// Parallel forces parallel processing. When unset the service
	// decides from the batch shape.
	Parallel *bool `json:"parallel,omitempty"`
}

// FeatureResult is the per-feature outcome of a submit.
type FeatureResult struct {
	FeatureID string            `json:"feature_id"`
	Success   bool              `json:"success"`
	Phase     phase.Phase       `json:"phase"`
	Error     string            `json:"error,omitempty"`
	Code      map[string]string `json:"code,omitempty"`
	Passed    int               `json:"tests_passed"`
	Failed    int               `json:"tests_failed"`
}

// SubmitResponse reports the outcome of a submit request.
type SubmitResponse struct {
	Results  []FeatureResult `json:"results"`
	Parallel bool            `json:"parallel"`
	Duration string          `json:"duration"`
}

// PhaseResponse reports a feature's current phase.
type PhaseResponse struct {
	FeatureID string      `json:"feature_id"`
	Phase     phase.Phase `json:"phase"`
	Complete  bool        `json:"complete"`
}

// TransitionRecord is one phase transition in a feature's history.
type TransitionRecord struct {
	From      phase.Phase `json:"from"`
	To        phase.Phase `json:"to"`
	Timestamp time.Time   `json:"timestamp"`
	Reason    string      `json:"reason,omitempty"`
}

// HistoryResponse reports a feature's full transition history.
type HistoryResponse struct {
	FeatureID   string             `json:"feature_id"`
	Transitions []TransitionRecord `json:"transitions"`
}

// ReportResponse wraps the completion report.
type ReportResponse struct {
	Report *green.CompletionReport `json:"report"`
	Phases phase.Stats             `json:"phases"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is the error payload for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}
