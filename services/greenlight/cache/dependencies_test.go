// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDependenciesPython(t *testing.T) {
	code := `# filename: src/cart.py
from helper import compute
import utils.math
from models.order import Order
`
	deps := ExtractDependencies(code)

	assert.Contains(t, deps, "src/cart.py", "filename marker should be recorded")
	assert.Contains(t, deps, "helper.py")
	assert.Contains(t, deps, "utils/math.py")
	assert.Contains(t, deps, "models/order.py")
	assert.Contains(t, deps, "helper", "raw module names should be recorded too")
}

func TestExtractDependenciesGoImports(t *testing.T) {
	code := `// filename: internal/cart/cart.go
package cart

import (
	"fmt"

	"example.com/shop/internal/pricing"
)
`
	deps := ExtractDependencies(code)

	assert.Contains(t, deps, "internal/cart/cart.go")
	assert.Contains(t, deps, "example.com/shop/internal/pricing")
	assert.NotContains(t, deps, "fmt", "bare stdlib imports carry no file to invalidate on")
}

func TestExtractDependenciesSortedAndDeduped(t *testing.T) {
	code := `from helper import a
from helper import b
import helper
`
	deps := ExtractDependencies(code)
	require.True(t, sort.StringsAreSorted(deps), "dependencies must be sorted: %v", deps)

	seen := map[string]int{}
	for _, d := range deps {
		seen[d]++
	}
	assert.Equal(t, 1, seen["helper.py"], "repeated imports must collapse")
}

func TestExtractDependenciesNoImports(t *testing.T) {
	deps := ExtractDependencies("x = 1\ny = x + 1\n")
	assert.Empty(t, deps)
}
