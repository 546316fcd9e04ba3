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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/driver"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/feature"
	"github.com/AleutianAI/GreenlightFOSS/services/greenlight/phase"
)

// Handlers contains the HTTP handlers for the greenlight service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleSubmit handles POST /v1/greenlight/features.
//
// Description:
//
//	Implements a batch of features through the full TDD cycle. Blocks
//	until the batch finishes or the submit timeout fires.
//
// Response:
//
//	200 OK: SubmitResponse
//	400 Bad Request: Validation error
//	409 Conflict: A feature was already submitted
//	500 Internal Server Error: Processing error
func (h *Handlers) HandleSubmit(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSubmit")

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request body",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.svc.Submit(c.Request.Context(), &req)
	if err != nil {
		logger.Error("Submit failed", "error", err)
		c.JSON(submitStatusCode(err), ErrorResponse{Error: err.Error()})
		return
	}

	logger.Info("Batch finished",
		"features", len(resp.Results),
		"parallel", resp.Parallel,
		"duration", resp.Duration,
	)
	c.JSON(http.StatusOK, resp)
}

// submitStatusCode maps a submit error to an HTTP status.
func submitStatusCode(err error) int {
	var ree *driver.RetryExhaustedError
	switch {
	case errors.Is(err, phase.ErrDuplicateFeature), phase.IsInvalidTransition(err):
		return http.StatusConflict
	case errors.As(err, &ree):
		return http.StatusUnprocessableEntity
	case errors.Is(err, feature.ErrMissingID), errors.Is(err, feature.ErrEmptyFeature),
		errors.Is(err, driver.ErrNoTests):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// HandleListFeatures handles GET /v1/greenlight/features.
func (h *Handlers) HandleListFeatures(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"features": h.svc.Features()})
}

// HandlePhase handles GET /v1/greenlight/features/:id/phase.
func (h *Handlers) HandlePhase(c *gin.Context) {
	resp, err := h.svc.Phase(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleHistory handles GET /v1/greenlight/features/:id/history.
func (h *Handlers) HandleHistory(c *gin.Context) {
	resp, err := h.svc.History(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleReport handles GET /v1/greenlight/report.
func (h *Handlers) HandleReport(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Report())
}

// HandleStorageStats handles GET /v1/greenlight/storage/stats.
func (h *Handlers) HandleStorageStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.StorageStats())
}

// HandleCacheStats handles GET /v1/greenlight/cache/stats.
func (h *Handlers) HandleCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.CacheStats())
}

// HandleCacheInsights handles GET /v1/greenlight/cache/insights.
func (h *Handlers) HandleCacheInsights(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.CacheInsights())
}

// HandleHealth handles GET /v1/greenlight/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/greenlight/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ready",
		Version: ServiceVersion,
	})
}

// getOrCreateRequestID returns the X-Request-ID header, minting one when
// the client sent none, and echoes it back on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
