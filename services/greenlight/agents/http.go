// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agents provides an HTTP client for an external agent service
// implementing the test writer, coder, and reviewer roles.
//
// The execution core never talks to an LLM directly; it talks to agent
// endpoints that do. This client is the default binding for deployments
// where those agents run as a separate service.
package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/red"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/yellow"
)

// DefaultTimeout bounds a single agent call. Agent calls run LLM
// inference, so this is generous.
const DefaultTimeout = 5 * time.Minute

// HTTPClient calls an external agent service over HTTP.
//
// Thread Safety: Safe for concurrent use.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a client for the agent service at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type writeTestsRequest struct {
	Feature *feature.Feature `json:"feature"`
}

type writeTestsResponse struct {
	Tests     feature.CodePayload `json:"tests"`
	TestFiles []string            `json:"test_files"`
}

type implementRequest struct {
	Feature     *feature.Feature           `json:"feature"`
	Guidance    *red.ImplementationContext `json:"guidance,omitempty"`
	Accumulated feature.CodePayload        `json:"accumulated,omitempty"`
	Feedback    []string                   `json:"feedback,omitempty"`
}

type implementResponse struct {
	Code feature.CodePayload `json:"code"`
}

type reviewRequest struct {
	Review *yellow.ReviewContext `json:"review"`
	Code   feature.CodePayload   `json:"code"`
}

type reviewResponse struct {
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback,omitempty"`
}

// WriteTests asks the agent service for a failing test suite.
func (c *HTTPClient) WriteTests(ctx context.Context, feat *feature.Feature) (feature.CodePayload, []string, error) {
	var resp writeTestsResponse
	if err := c.post(ctx, "/v1/agents/write_tests", writeTestsRequest{Feature: feat}, &resp); err != nil {
		return nil, nil, err
	}
	return resp.Tests, resp.TestFiles, nil
}

// Implement asks the agent service for an implementation attempt.
func (c *HTTPClient) Implement(ctx context.Context, feat *feature.Feature, guidance *red.ImplementationContext, accumulated feature.CodePayload, feedback []string) (feature.CodePayload, error) {
	var resp implementResponse
	err := c.post(ctx, "/v1/agents/implement", implementRequest{
		Feature:     feat,
		Guidance:    guidance,
		Accumulated: accumulated,
		Feedback:    feedback,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Code, nil
}

// Review asks the agent service for a code review verdict.
func (c *HTTPClient) Review(ctx context.Context, rc *yellow.ReviewContext, code feature.CodePayload) (bool, string, error) {
	var resp reviewResponse
	err := c.post(ctx, "/v1/agents/review", reviewRequest{Review: rc, Code: code}, &resp)
	if err != nil {
		return false, "", err
	}
	return resp.Approved, resp.Feedback, nil
}

// post sends a JSON request and decodes a JSON response.
func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding agent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling agent %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("agent %s returned %d: %s", path, resp.StatusCode, string(data))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding agent response from %s: %w", path, err)
	}
	return nil
}
