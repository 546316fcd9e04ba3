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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers all greenlight routes with the router group.
//
// Description:
//
//	Registers all /v1/greenlight/* endpoints with the given Gin router
//	group. The group should already have any required middleware applied.
//
// Endpoints:
//
//	POST /v1/greenlight/features - Implement a batch of features
//	GET  /v1/greenlight/features - List tracked features and phases
//	GET  /v1/greenlight/features/:id/phase - Current phase of a feature
//	GET  /v1/greenlight/features/:id/history - Phase transition history
//	GET  /v1/greenlight/report - Completion report and phase occupancy
//	GET  /v1/greenlight/cache/stats - Result cache counters
//	GET  /v1/greenlight/cache/insights - Cache effectiveness findings
//	GET  /v1/greenlight/storage/stats - Completed-code store metrics
//	GET  /v1/greenlight/metrics - Prometheus metrics
//	GET  /v1/greenlight/health - Health check
//	GET  /v1/greenlight/ready - Readiness check
//
// Example:
//
//	svc, _ := greenlight.NewService(greenlight.DefaultServiceConfig(), agents, logger)
//	handlers := greenlight.NewHandlers(svc)
//
//	v1 := router.Group("/v1")
//	greenlight.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	gl := rg.Group("/greenlight")
	{
		gl.POST("/features", handlers.HandleSubmit)
		gl.GET("/features", handlers.HandleListFeatures)
		gl.GET("/features/:id/phase", handlers.HandlePhase)
		gl.GET("/features/:id/history", handlers.HandleHistory)

		gl.GET("/report", handlers.HandleReport)
		gl.GET("/cache/stats", handlers.HandleCacheStats)
		gl.GET("/cache/insights", handlers.HandleCacheInsights)
		gl.GET("/storage/stats", handlers.HandleStorageStats)

		gl.GET("/metrics", gin.WrapH(promhttp.Handler()))

		gl.GET("/health", handlers.HandleHealth)
		gl.GET("/ready", handlers.HandleReady)
	}
}
