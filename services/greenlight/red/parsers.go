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
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
)

// =============================================================================
// FAILURE PARSERS
// =============================================================================

// FailureParser extracts structured failure contexts from a test run.
//
// Parsers are heuristic text processing over test-runner output whose
// format is not contractually guaranteed. A parser returning nothing is a
// graceful-degradation path, never a hard failure: the orchestrator
// synthesizes a generic context when the executor independently reports
// failure.
type FailureParser interface {
	// Parse extracts failure contexts from the result. May return nil.
	Parse(result *feature.TestResult) []FailureContext
}

// parserRegistry maps test-runner dialects to their parsers.
// Protected by parserMu for concurrent access.
var (
	parserRegistry = map[string]FailureParser{
		"pytest": &PytestParser{},
		"gotest": &GoTestParser{},
	}
	parserMu sync.RWMutex
)

// GetFailureParser returns the parser registered for a dialect, or nil.
//
// Thread Safety: Safe for concurrent use.
func GetFailureParser(dialect string) FailureParser {
	parserMu.RLock()
	defer parserMu.RUnlock()
	return parserRegistry[dialect]
}

// RegisterFailureParser registers a custom parser for a dialect.
//
// Thread Safety: Safe for concurrent use.
func RegisterFailureParser(dialect string, parser FailureParser) {
	parserMu.Lock()
	defer parserMu.Unlock()
	parserRegistry[dialect] = parser
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// Extraction patterns for failure messages. Classification order matters:
// messages frequently contain several of these keywords, so import errors
// are checked before assertions, assertions before attribute errors, and
// so on.
var (
	noModulePattern     = regexp.MustCompile(`No module named '([^']+)'`)
	cannotImportPattern = regexp.MustCompile(`cannot import name '([^']+)'`)
	assertEqPattern     = regexp.MustCompile(`assert (.+?) == (.+)`)
	noAttributePattern  = regexp.MustCompile(`'(\w+)' object has no attribute '(\w+)'`)
	nameUndefPattern    = regexp.MustCompile(`name '([^']+)' is not defined`)
	lineNumberPattern   = regexp.MustCompile(`(?m)^(?:.+?):(\d+):`)
)

// ClassifyFailure classifies a raw failure message and fills the derived
// fields (expected/actual, missing component) on the returned context.
//
// Description:
//
//	Applies the detection rules in priority order:
//	  1. ImportError / ModuleNotFoundError
//	  2. AssertionError
//	  3. AttributeError
//	  4. NameError
//	  5. TypeError
//	Anything else is FailureUnknown.
func ClassifyFailure(message string) FailureContext {
	fc := FailureContext{Message: message, Type: FailureUnknown}

	switch {
	case strings.Contains(message, "ImportError"),
		strings.Contains(message, "ModuleNotFoundError"):
		fc.Type = FailureImport
		if m := noModulePattern.FindStringSubmatch(message); len(m) > 1 {
			fc.MissingComponent = m[1]
		} else if m := cannotImportPattern.FindStringSubmatch(message); len(m) > 1 {
			fc.MissingComponent = m[1]
		}

	case strings.Contains(message, "AssertionError"):
		fc.Type = FailureAssertion
		if m := assertEqPattern.FindStringSubmatch(message); len(m) > 2 {
			fc.Actual = strings.TrimSpace(m[1])
			fc.Expected = strings.TrimSpace(m[2])
		}

	case strings.Contains(message, "AttributeError"):
		fc.Type = FailureAttribute
		if m := noAttributePattern.FindStringSubmatch(message); len(m) > 2 {
			fc.MissingComponent = m[1] + "." + m[2]
		}

	case strings.Contains(message, "NameError"):
		fc.Type = FailureName
		if m := nameUndefPattern.FindStringSubmatch(message); len(m) > 1 {
			fc.MissingComponent = m[1]
		}

	case strings.Contains(message, "TypeError"):
		fc.Type = FailureTypeError
	}

	if m := lineNumberPattern.FindStringSubmatch(message); len(m) > 1 {
		if line, err := strconv.Atoi(m[1]); err == nil {
			fc.Line = line
		}
	}

	return fc
}

// =============================================================================
// PYTEST DIALECT
// =============================================================================

// Pytest output patterns.
var (
	pytestFailedLine = regexp.MustCompile(`(?m)^FAILED ([^:\s]+)::(\S+?)(?: - (.+))?$`)
	pytestErrorLine  = regexp.MustCompile(`(?m)^ERROR ([^:\s]+)(?:::(\S+))?(?: - (.+))?$`)
)

// PytestParser parses pytest output into failure contexts.
type PytestParser struct{}

// Parse extracts failures from structured details when the executor
// provides them, falling back to the `FAILED file::test - message` short
// summary lines and finally to the run's error strings.
func (p *PytestParser) Parse(result *feature.TestResult) []FailureContext {
	if result == nil {
		return nil
	}

	contexts := make([]FailureContext, 0)

	// Prefer structured details from the executor.
	for _, d := range result.FailureDetails {
		fc := ClassifyFailure(d.Message)
		fc.TestFile = d.TestFile
		fc.TestName = d.TestName
		contexts = append(contexts, fc)
	}
	if len(contexts) > 0 {
		return contexts
	}

	// Short summary lines: FAILED tests/test_x.py::test_name - message
	for _, m := range pytestFailedLine.FindAllStringSubmatch(result.Output, -1) {
		fc := ClassifyFailure(m[3])
		fc.TestFile = m[1]
		fc.TestName = m[2]
		contexts = append(contexts, fc)
	}

	// Collection errors: ERROR tests/test_x.py - message
	for _, m := range pytestErrorLine.FindAllStringSubmatch(result.Output, -1) {
		fc := ClassifyFailure(m[3])
		fc.TestFile = m[1]
		fc.TestName = m[2]
		contexts = append(contexts, fc)
	}
	if len(contexts) > 0 {
		return contexts
	}

	// Last resort: classify the run's error strings.
	for _, e := range result.Errors {
		contexts = append(contexts, ClassifyFailure(e))
	}
	return contexts
}

// =============================================================================
// GO TEST DIALECT
// =============================================================================

// Go test output patterns.
var (
	goFailLine  = regexp.MustCompile(`(?m)^--- FAIL: (\S+)`)
	goPanicLine = regexp.MustCompile(`(?m)^panic: (.+)$`)
)

// GoTestParser parses `go test -v` output into failure contexts.
type GoTestParser struct{}

// Parse extracts failures from --- FAIL lines and panics.
func (p *GoTestParser) Parse(result *feature.TestResult) []FailureContext {
	if result == nil {
		return nil
	}

	contexts := make([]FailureContext, 0)
	testFile := ""
	if len(result.TestFiles) > 0 {
		testFile = result.TestFiles[0]
	}

	for _, m := range goFailLine.FindAllStringSubmatch(result.Output, -1) {
		contexts = append(contexts, FailureContext{
			TestFile: testFile,
			TestName: m[1],
			Type:     FailureAssertion,
			Message:  "test failed: " + m[1],
		})
	}
	for _, m := range goPanicLine.FindAllStringSubmatch(result.Output, -1) {
		fc := ClassifyFailure(m[1])
		fc.TestFile = testFile
		if fc.Type == FailureUnknown {
			fc.Type = FailureTypeError
		}
		contexts = append(contexts, fc)
	}
	return contexts
}
