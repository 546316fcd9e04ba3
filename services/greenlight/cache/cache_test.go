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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
)

func result(passed int) *feature.TestResult {
	return &feature.TestResult{Success: true, Passed: passed}
}

func TestCacheDeterminism(t *testing.T) {
	c := NewResultCache(nil)
	code := "def add(a, b):\n    return a + b\n"
	files := []string{"tests/test_add.py"}

	c.Set(code, files, result(3), "f1")

	got, ok := c.Get(code, files, "f1")
	if !ok {
		t.Fatal("expected hit immediately after set")
	}
	if got.Passed != 3 {
		t.Errorf("passed = %d, want 3 unchanged", got.Passed)
	}

	t.Run("any code change is a miss", func(t *testing.T) {
		if _, ok := c.Get(code+" ", files, "f1"); ok {
			t.Error("one changed byte must change the key")
		}
	})

	t.Run("feature id scopes the key", func(t *testing.T) {
		if _, ok := c.Get(code, files, "f2"); ok {
			t.Error("different feature id must not share the slot")
		}
		if _, ok := c.Get(code, files, ""); ok {
			t.Error("unscoped lookup must not see feature-scoped entry")
		}
	})

	t.Run("test file order does not matter", func(t *testing.T) {
		c.Set(code, []string{"b.py", "a.py"}, result(1), "")
		if _, ok := c.Get(code, []string{"a.py", "b.py"}, ""); !ok {
			t.Error("sorted file list should normalize the key")
		}
	})
}

func TestCacheEviction(t *testing.T) {
	t.Run("never exceeds max entries", func(t *testing.T) {
		c := NewResultCache(nil, WithMaxEntries(3))
		for i := 0; i < 10; i++ {
			c.Set(fmt.Sprintf("code%d", i), []string{"t.py"}, result(i), "")
		}
		if got := c.Len(); got != 3 {
			t.Errorf("entries = %d, want 3", got)
		}
	})

	t.Run("a touched entry survives eviction", func(t *testing.T) {
		c := NewResultCache(nil, WithMaxEntries(3))
		c.Set("code0", []string{"t.py"}, result(0), "")
		c.Set("code1", []string{"t.py"}, result(1), "")
		c.Set("code2", []string{"t.py"}, result(2), "")

		// Touch code0 so code1 becomes the LRU victim.
		if _, ok := c.Get("code0", []string{"t.py"}, ""); !ok {
			t.Fatal("code0 should be cached")
		}

		c.Set("code3", []string{"t.py"}, result(3), "")

		if _, ok := c.Get("code0", []string{"t.py"}, ""); !ok {
			t.Error("recently touched entry should survive")
		}
		if _, ok := c.Get("code1", []string{"t.py"}, ""); ok {
			t.Error("never-touched entry should have been evicted")
		}
	})

	t.Run("stale entries are evicted on read", func(t *testing.T) {
		c := NewResultCache(nil, WithMaxAge(time.Minute))
		clock := time.Unix(1000, 0)
		c.now = func() time.Time { return clock }

		c.Set("code", []string{"t.py"}, result(1), "")
		clock = clock.Add(2 * time.Minute)

		if _, ok := c.Get("code", []string{"t.py"}, ""); ok {
			t.Error("entry past max age must be a miss")
		}
		if got := c.Len(); got != 0 {
			t.Errorf("stale entry should be removed, entries = %d", got)
		}
	})
}

func TestCacheInvalidation(t *testing.T) {
	t.Run("by dependency file", func(t *testing.T) {
		c := NewResultCache(nil)
		code := "from helper import compute\n\ndef run():\n    return compute()\n"
		c.Set(code, []string{"t.py"}, result(1), "")

		removed := c.InvalidateByFile("helper.py")
		if removed != 1 {
			t.Errorf("removed = %d, want 1", removed)
		}
		if _, ok := c.Get(code, []string{"t.py"}, ""); ok {
			t.Error("entry depending on helper.py must be gone")
		}
		if again := c.InvalidateByFile("helper.py"); again != 0 {
			t.Errorf("second invalidation removed %d, want 0 (no dangling index)", again)
		}
	})

	t.Run("by filename marker", func(t *testing.T) {
		c := NewResultCache(nil)
		code := "# filename: src/payments.py\nclass Gateway:\n    pass\n"
		c.Set(code, []string{"t.py"}, result(1), "")

		if removed := c.InvalidateByFile("src/payments.py"); removed != 1 {
			t.Errorf("removed = %d, want 1", removed)
		}
	})

	t.Run("by feature", func(t *testing.T) {
		c := NewResultCache(nil)
		c.Set("code-a", []string{"t.py"}, result(1), "f1")
		c.Set("code-b", []string{"t.py"}, result(2), "f1")
		c.Set("code-c", []string{"t.py"}, result(3), "f2")

		if removed := c.InvalidateByFeature("f1"); removed != 2 {
			t.Errorf("removed = %d, want 2", removed)
		}
		if _, ok := c.Get("code-c", []string{"t.py"}, "f2"); !ok {
			t.Error("other feature's entry must survive")
		}
	})
}

func TestCacheStats(t *testing.T) {
	c := NewResultCache(nil)
	c.Set("code", []string{"t.py"}, result(1), "")

	c.Get("code", []string{"t.py"}, "")  // hit
	c.Get("other", []string{"t.py"}, "") // miss
	c.Get("code", []string{"t.py"}, "")  // hit

	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 1 || stats.TotalRequests != 3 {
		t.Errorf("stats = %+v, want 2 hits, 1 miss, 3 requests", stats)
	}
	if stats.HitRate < 0.66 || stats.HitRate > 0.67 {
		t.Errorf("hit rate = %f, want 2/3", stats.HitRate)
	}
	if stats.Entries != 1 || stats.SizeBytes <= 0 {
		t.Errorf("entries=%d size=%d, want 1 entry with positive size", stats.Entries, stats.SizeBytes)
	}
}

func TestCacheInsights(t *testing.T) {
	c := NewResultCache(nil)
	c.Set("hot", []string{"t.py"}, result(1), "f1")
	c.Set("cold", []string{"t.py"}, result(2), "f2")
	for i := 0; i < 3; i++ {
		c.Get("hot", []string{"t.py"}, "f1")
	}
	for i := 0; i < 20; i++ {
		c.Get("nothing-cached", []string{"t.py"}, "")
	}

	insights := c.Insights(1)
	if len(insights.Findings) == 0 {
		t.Error("low hit rate should produce a finding")
	}
	if len(insights.TopEntries) != 1 {
		t.Fatalf("top entries = %d, want 1", len(insights.TopEntries))
	}
	if insights.TopEntries[0].FeatureID != "f1" || insights.TopEntries[0].HitCount != 3 {
		t.Errorf("top entry = %+v, want the hot f1 entry", insights.TopEntries[0])
	}
}

func TestCacheInsightsConcurrentWithTraffic(t *testing.T) {
	c := NewResultCache(nil)
	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("code-%d", i), []string{"t.py"}, result(i), fmt.Sprintf("f%d", i))
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.Get(fmt.Sprintf("code-%d", i%10), []string{"t.py"}, fmt.Sprintf("f%d", i%10))
				c.Set(fmt.Sprintf("code-%d-%d", w, i), []string{"t.py"}, result(i), "")
			}
		}(w)
	}
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				insights := c.Insights(5)
				if len(insights.TopEntries) > 5 {
					t.Errorf("top entries = %d, want at most 5", len(insights.TopEntries))
				}
			}
		}()
	}
	wg.Wait()
}

func TestCachePersistence(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.json")

		c := NewResultCache(nil, WithPersistPath(path))
		c.Set("code", []string{"t.py"}, result(7), "f1")
		if err := c.SaveToFile(""); err != nil {
			t.Fatalf("SaveToFile failed: %v", err)
		}

		reloaded := NewResultCache(nil, WithPersistPath(path))
		got, ok := reloaded.Get("code", []string{"t.py"}, "f1")
		if !ok {
			t.Fatal("reloaded cache should hit")
		}
		if got.Passed != 7 {
			t.Errorf("passed = %d, want 7", got.Passed)
		}

		// Invalidation indices must be rebuilt too.
		if removed := reloaded.InvalidateByFeature("f1"); removed != 1 {
			t.Errorf("invalidate after reload removed %d, want 1", removed)
		}
	})

	t.Run("corrupt file falls back to empty", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}

		c := NewResultCache(nil, WithPersistPath(path))
		if got := c.Len(); got != 0 {
			t.Errorf("entries = %d, want empty cache on corrupt file", got)
		}
	})

	t.Run("wrong schema version falls back to empty", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.json")
		if err := os.WriteFile(path, []byte(`{"schema_version": 99, "entries": []}`), 0o644); err != nil {
			t.Fatal(err)
		}

		c := NewResultCache(nil, WithPersistPath(path))
		if got := c.Len(); got != 0 {
			t.Errorf("entries = %d, want empty cache on version mismatch", got)
		}
	})
}

func TestGetOrCompute(t *testing.T) {
	t.Run("computes once and caches", func(t *testing.T) {
		c := NewResultCache(nil)
		var calls atomic.Int64
		compute := func(ctx context.Context) (*feature.TestResult, error) {
			calls.Add(1)
			return result(5), nil
		}

		for i := 0; i < 3; i++ {
			got, err := c.GetOrCompute(context.Background(), "code", []string{"t.py"}, "f1", compute)
			if err != nil {
				t.Fatalf("GetOrCompute failed: %v", err)
			}
			if got.Passed != 5 {
				t.Errorf("passed = %d, want 5", got.Passed)
			}
		}
		if calls.Load() != 1 {
			t.Errorf("compute calls = %d, want 1", calls.Load())
		}
	})

	t.Run("concurrent callers share one computation", func(t *testing.T) {
		c := NewResultCache(nil)
		var calls atomic.Int64
		release := make(chan struct{})
		compute := func(ctx context.Context) (*feature.TestResult, error) {
			calls.Add(1)
			<-release
			return result(1), nil
		}

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := c.GetOrCompute(context.Background(), "code", []string{"t.py"}, "", compute); err != nil {
					t.Errorf("GetOrCompute failed: %v", err)
				}
			}()
		}
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		if calls.Load() != 1 {
			t.Errorf("compute calls = %d, want 1 shared", calls.Load())
		}
	})
}
