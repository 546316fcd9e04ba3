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
	"testing"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
)

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name        string
		message     string
		wantType    FailureType
		wantMissing string
	}{
		{
			name:        "module not found",
			message:     "ModuleNotFoundError: No module named 'payments'",
			wantType:    FailureImport,
			wantMissing: "payments",
		},
		{
			name:        "cannot import name",
			message:     "ImportError: cannot import name 'Gateway'",
			wantType:    FailureImport,
			wantMissing: "Gateway",
		},
		{
			name:     "assertion",
			message:  "AssertionError: assert 500 == 200",
			wantType: FailureAssertion,
		},
		{
			name:        "attribute error",
			message:     "AttributeError: 'Cart' object has no attribute 'total'",
			wantType:    FailureAttribute,
			wantMissing: "Cart.total",
		},
		{
			name:        "name error",
			message:     "NameError: name 'checkout' is not defined",
			wantType:    FailureName,
			wantMissing: "checkout",
		},
		{
			name:     "type error",
			message:  "TypeError: apply() takes 2 positional arguments but 3 were given",
			wantType: FailureTypeError,
		},
		{
			name:     "unclassifiable",
			message:  "something exploded",
			wantType: FailureUnknown,
		},
		{
			// Import errors mention the module in quotes; the check order
			// must not let a later rule steal the match.
			name:        "import beats name error keywords",
			message:     "ImportError while loading: NameError-adjacent text, No module named 'db'",
			wantType:    FailureImport,
			wantMissing: "db",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fc := ClassifyFailure(tc.message)
			if fc.Type != tc.wantType {
				t.Errorf("type = %s, want %s", fc.Type, tc.wantType)
			}
			if fc.MissingComponent != tc.wantMissing {
				t.Errorf("missing = %q, want %q", fc.MissingComponent, tc.wantMissing)
			}
		})
	}

	t.Run("assertion extracts expected and actual", func(t *testing.T) {
		fc := ClassifyFailure("AssertionError: assert 'got' == 'want'")
		if fc.Actual != "'got'" || fc.Expected != "'want'" {
			t.Errorf("actual=%q expected=%q, want 'got'/'want'", fc.Actual, fc.Expected)
		}
	})
}

func TestPytestParser(t *testing.T) {
	parser := &PytestParser{}

	t.Run("parses short summary lines", func(t *testing.T) {
		output := `
FAILED tests/test_cart.py::test_total - AssertionError: assert 0 == 10
FAILED tests/test_cart.py::test_add - AttributeError: 'Cart' object has no attribute 'add'
ERROR tests/test_checkout.py - ModuleNotFoundError: No module named 'checkout'
`
		contexts := parser.Parse(&feature.TestResult{Success: false, Output: output})
		if len(contexts) != 3 {
			t.Fatalf("contexts = %d, want 3", len(contexts))
		}
		if contexts[0].TestFile != "tests/test_cart.py" || contexts[0].TestName != "test_total" {
			t.Errorf("first context = %+v, want test_cart.py::test_total", contexts[0])
		}
		if contexts[1].Type != FailureAttribute {
			t.Errorf("second type = %s, want attribute_error", contexts[1].Type)
		}
		if contexts[2].Type != FailureImport || contexts[2].MissingComponent != "checkout" {
			t.Errorf("collection error = %+v, want import_error/checkout", contexts[2])
		}
	})

	t.Run("structured details take precedence over output", func(t *testing.T) {
		contexts := parser.Parse(&feature.TestResult{
			Success: false,
			Output:  "FAILED tests/other.py::test_x - AssertionError",
			FailureDetails: []feature.FailureDetail{
				{TestFile: "tests/test_a.py", TestName: "test_a", Message: "NameError: name 'f' is not defined"},
			},
		})
		if len(contexts) != 1 {
			t.Fatalf("contexts = %d, want 1 from structured details", len(contexts))
		}
		if contexts[0].Type != FailureName || contexts[0].TestFile != "tests/test_a.py" {
			t.Errorf("context = %+v, want name_error from structured detail", contexts[0])
		}
	})

	t.Run("falls back to error strings", func(t *testing.T) {
		contexts := parser.Parse(&feature.TestResult{
			Success: false,
			Errors:  []string{"ImportError: cannot import name 'Session'"},
		})
		if len(contexts) != 1 || contexts[0].MissingComponent != "Session" {
			t.Errorf("contexts = %+v, want one import failure for Session", contexts)
		}
	})

	t.Run("nil result is empty", func(t *testing.T) {
		if got := parser.Parse(nil); len(got) != 0 {
			t.Errorf("contexts = %v, want empty", got)
		}
	})
}

func TestGoTestParser(t *testing.T) {
	parser := &GoTestParser{}

	output := `=== RUN   TestCartTotal
--- FAIL: TestCartTotal (0.00s)
=== RUN   TestCartAdd
--- FAIL: TestCartAdd (0.01s)
FAIL
`
	contexts := parser.Parse(&feature.TestResult{
		Success:   false,
		Output:    output,
		TestFiles: []string{"cart_test.go"},
	})
	if len(contexts) != 2 {
		t.Fatalf("contexts = %d, want 2", len(contexts))
	}
	if contexts[0].TestName != "TestCartTotal" || contexts[0].TestFile != "cart_test.go" {
		t.Errorf("first context = %+v, want TestCartTotal in cart_test.go", contexts[0])
	}
}

func TestParserRegistry(t *testing.T) {
	if GetFailureParser("pytest") == nil {
		t.Error("pytest parser should be registered by default")
	}
	if GetFailureParser("gotest") == nil {
		t.Error("gotest parser should be registered by default")
	}
	if GetFailureParser("jest") != nil {
		t.Error("unknown dialect should return nil")
	}

	RegisterFailureParser("custom", &PytestParser{})
	if GetFailureParser("custom") == nil {
		t.Error("custom parser should be retrievable after registration")
	}
}
