// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
)

// RetryRecord documents one retry attempt's contribution.
type RetryRecord struct {
	RetryCount   int                 `json:"retry_count"`
	FilesTouched []string            `json:"files_touched"`
	TestResult   *feature.TestResult `json:"test_result,omitempty"`
	Timestamp    time.Time           `json:"timestamp"`
}

// RetrySummary aggregates a feature's retry history and storage state.
type RetrySummary struct {
	FeatureID    string        `json:"feature_id"`
	TotalRetries int           `json:"total_retries"`
	History      []RetryRecord `json:"history"`
	Storage      Metrics       `json:"storage"`
}

// Accumulator is the feature-scoped facade over a storage Manager: it
// collects the code produced across a feature's TDD retries.
//
// Thread Safety: Safe for concurrent use.
type Accumulator struct {
	mu        sync.Mutex
	featureID string
	manager   *Manager
	history   []RetryRecord
	logger    *slog.Logger
}

// NewAccumulator creates an accumulator whose spillover directory is
// prefixed with the feature id, keeping concurrent features apart.
func NewAccumulator(featureID string, logger *slog.Logger, options ...Option) *Accumulator {
	if logger == nil {
		logger = slog.Default()
	}
	options = append(options,
		WithTempDirPrefix(fmt.Sprintf("greenlight-%s-", safeName(featureID))))
	return &Accumulator{
		featureID: featureID,
		manager:   NewManager(logger, options...),
		logger:    logger,
	}
}

// AddRetryAttempt stores a retry's code updates and records the attempt.
//
// Description:
//
//	Storage is rebalanced after any non-initial retry, since repeated
//	attempts tend to grow files past the memory threshold.
func (a *Accumulator) AddRetryAttempt(retryCount int, updates feature.CodePayload, testResult *feature.TestResult) error {
	if err := a.manager.Update(updates); err != nil {
		return fmt.Errorf("storing retry %d for feature %s: %w", retryCount, a.featureID, err)
	}

	touched := make([]string, 0, len(updates))
	for name := range updates {
		touched = append(touched, name)
	}
	sort.Strings(touched)

	a.mu.Lock()
	a.history = append(a.history, RetryRecord{
		RetryCount:   retryCount,
		FilesTouched: touched,
		TestResult:   testResult,
		Timestamp:    time.Now(),
	})
	a.mu.Unlock()

	if retryCount > 0 {
		if err := a.manager.OptimizeStorage(); err != nil {
			a.logger.Warn("Storage optimization failed",
				slog.String("feature_id", a.featureID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// GetAccumulatedCode returns every file stored so far.
func (a *Accumulator) GetAccumulatedCode() feature.CodePayload {
	return a.manager.GetAll()
}

// RetrySummary reports the retry history and underlying storage metrics.
func (a *Accumulator) RetrySummary() RetrySummary {
	a.mu.Lock()
	history := make([]RetryRecord, len(a.history))
	copy(history, a.history)
	a.mu.Unlock()

	return RetrySummary{
		FeatureID:    a.featureID,
		TotalRetries: len(history),
		History:      history,
		Storage:      a.manager.Metrics(),
	}
}

// Cleanup releases the underlying manager's spillover directory.
func (a *Accumulator) Cleanup() {
	a.manager.Cleanup()
}
