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
	"regexp"
	"sort"
	"strings"
)

// Dependency extraction is language-agnostic best effort: import-like
// statements plus explicit filename markers. Misses are tolerated; the
// extracted set only drives invalidation, never correctness of results.
var (
	fromImportPattern = regexp.MustCompile(`(?m)^\s*from\s+([\w.]+)\s+import\b`)
	importPattern     = regexp.MustCompile(`(?m)^\s*import\s+([\w.]+)`)
	goImportPattern   = regexp.MustCompile(`(?m)^\s*(?:import\s+)?(?:\w+\s+)?"([^"]+)"`)
	filenameMarker    = regexp.MustCompile(`(?m)^\s*(?://|#)\s*filename:\s*(\S+)`)
)

// ExtractDependencies scans code for files it references.
//
// Description:
//
//	Collects `# filename:` / `// filename:` markers verbatim, and maps
//	import statements to candidate file paths (module dots become path
//	separators, a .py suffix is added for python-style imports). Both the
//	raw module name and the derived path are recorded so invalidation
//	works whichever form the caller uses.
//
// Outputs:
//
//	[]string - Sorted, de-duplicated dependency names. Never nil.
func ExtractDependencies(code string) []string {
	deps := make(map[string]struct{})

	add := func(name string) {
		if name != "" {
			deps[name] = struct{}{}
		}
	}

	for _, m := range filenameMarker.FindAllStringSubmatch(code, -1) {
		add(m[1])
	}
	for _, pattern := range []*regexp.Regexp{fromImportPattern, importPattern} {
		for _, m := range pattern.FindAllStringSubmatch(code, -1) {
			module := m[1]
			add(module)
			add(strings.ReplaceAll(module, ".", "/") + ".py")
		}
	}
	for _, m := range goImportPattern.FindAllStringSubmatch(code, -1) {
		if strings.Contains(m[1], "/") || strings.HasSuffix(m[1], ".go") {
			add(m[1])
		}
	}

	out := make([]string, 0, len(deps))
	for name := range deps {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
