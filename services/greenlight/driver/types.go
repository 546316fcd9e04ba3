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
	"context"
	"time"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/green"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/red"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/yellow"
)

// TestWriter produces the failing test suite for a feature. Backed by an
// LLM agent outside this module.
type TestWriter interface {
	// WriteTests returns the test files (payload plus ordered file names).
	WriteTests(ctx context.Context, feat *feature.Feature) (feature.CodePayload, []string, error)
}

// Coder produces an implementation attempt. Backed by an LLM agent
// outside this module.
type Coder interface {
	// Implement returns the code for one attempt, guided by the failure
	// context and any prior review feedback.
	Implement(ctx context.Context, feat *feature.Feature, guidance *red.ImplementationContext, accumulated feature.CodePayload, feedback []string) (feature.CodePayload, error)
}

// Reviewer delivers a verdict on a passing implementation. Backed by an
// LLM agent outside this module.
type Reviewer interface {
	// Review returns the verdict and optional feedback.
	Review(ctx context.Context, reviewCtx *yellow.ReviewContext, code feature.CodePayload) (approved bool, feedback string, err error)
}

// Outcome is the driver's result for one feature.
type Outcome struct {
	FeatureID string `json:"feature_id"`

	// SessionID identifies this driver run in logs.
	SessionID string `json:"session_id"`

	// Code is the accumulated implementation.
	Code feature.CodePayload `json:"code"`

	// TestResult is the final passing run.
	TestResult *feature.TestResult `json:"test_result"`

	// Summary is the GREEN-phase completion summary.
	Summary *green.CompletionSummary `json:"summary"`
}

// Default driver limits.
const (
	DefaultMaxImplementationAttempts = 5
	DefaultMaxReviewRounds           = 3
	DefaultMaxAgentRetries           = 2
	DefaultInitialRetryInterval      = 500 * time.Millisecond
)

// Options configures a Driver.
type Options struct {
	// MaxImplementationAttempts bounds coder iterations per feature.
	MaxImplementationAttempts int

	// MaxReviewRounds bounds review cycles per feature.
	MaxReviewRounds int

	// MaxAgentRetries bounds retries of a single agent call.
	MaxAgentRetries uint64

	// InitialRetryInterval seeds the exponential backoff for agent calls.
	InitialRetryInterval time.Duration

	// ProjectRoot is the working directory for test execution.
	ProjectRoot string
}

// Option mutates Options.
type Option func(*Options)

// WithMaxImplementationAttempts bounds coder iterations.
func WithMaxImplementationAttempts(n int) Option {
	return func(o *Options) { o.MaxImplementationAttempts = n }
}

// WithMaxReviewRounds bounds review cycles.
func WithMaxReviewRounds(n int) Option {
	return func(o *Options) { o.MaxReviewRounds = n }
}

// WithMaxAgentRetries bounds per-call agent retries.
func WithMaxAgentRetries(n uint64) Option {
	return func(o *Options) { o.MaxAgentRetries = n }
}

// WithInitialRetryInterval seeds the agent-call backoff.
func WithInitialRetryInterval(d time.Duration) Option {
	return func(o *Options) { o.InitialRetryInterval = d }
}

// WithProjectRoot sets the test execution directory.
func WithProjectRoot(root string) Option {
	return func(o *Options) { o.ProjectRoot = root }
}
