// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agents

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/yellow"
)

func TestWriteTestsRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/agents/write_tests" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req writeTestsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Feature.ID != "f1" {
			t.Errorf("feature id = %s", req.Feature.ID)
		}
		json.NewEncoder(w).Encode(writeTestsResponse{
			Tests:     feature.CodePayload{"tests/test_f1.py": "def test(): ..."},
			TestFiles: []string{"tests/test_f1.py"},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second)
	tests, files, err := client.WriteTests(context.Background(), &feature.Feature{ID: "f1", Title: "f1"})
	if err != nil {
		t.Fatalf("WriteTests failed: %v", err)
	}
	if len(tests) != 1 || len(files) != 1 {
		t.Errorf("tests = %d files = %d, want 1 each", len(tests), len(files))
	}
}

func TestImplementRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req implementRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if len(req.Feedback) != 1 || req.Feedback[0] != "simplify" {
			t.Errorf("feedback = %v", req.Feedback)
		}
		json.NewEncoder(w).Encode(implementResponse{
			Code: feature.CodePayload{"src/f1.py": "# impl"},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second)
	code, err := client.Implement(context.Background(), &feature.Feature{ID: "f1"}, nil, nil, []string{"simplify"})
	if err != nil {
		t.Fatalf("Implement failed: %v", err)
	}
	if _, ok := code["src/f1.py"]; !ok {
		t.Errorf("code = %v, want src/f1.py", code)
	}
}

func TestReviewRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(reviewResponse{Approved: false, Feedback: "needs docs"})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second)
	approved, feedback, err := client.Review(context.Background(), &yellow.ReviewContext{}, nil)
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if approved || feedback != "needs docs" {
		t.Errorf("verdict = %v %q, want rejection with feedback", approved, feedback)
	}
}

func TestPostNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second)
	if _, _, err := client.WriteTests(context.Background(), &feature.Feature{ID: "f1"}); err == nil {
		t.Error("expected error on 503")
	}
}
