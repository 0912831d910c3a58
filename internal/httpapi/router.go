// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package httpapi is the router and boundary-validation layer:
// session CRUD, the per-session WebSocket upgrade, the
// crawler-aware SPA shell, and the admin/metrics surface. Every
// handler here either validates and hands off to internal/engine, or
// (SPA, metrics) serves static/instrumentation content directly — none
// of it touches SessionState except through the engine's actor.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/aleutian-labs/stepseq/internal/engine"
	"github.com/aleutian-labs/stepseq/internal/logging"
	"github.com/aleutian-labs/stepseq/internal/metrics"
	"github.com/aleutian-labs/stepseq/internal/store"
	"github.com/aleutian-labs/stepseq/pkg/extensions"
)

// RouterConfig bundles everything NewRouter needs to wire handlers and
// middleware.
type RouterConfig struct {
	Registry      *engine.Registry
	Store         store.Store
	Metrics       *metrics.SessionMetrics
	Log           *logging.Logger
	AuthProvider  extensions.AuthProvider
	AuditLogger   extensions.AuditLogger
	SPAShellHTML  string
	PublicBaseURL string
}

// NewRouter builds the full *gin.Engine: gin.Default() plus otelgin
// tracing middleware and a route-group layout per concern.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("stepseqd"))
	router.Use(RequestID())

	authProvider := cfg.AuthProvider
	if authProvider == nil {
		authProvider = &extensions.NopAuthProvider{}
	}
	auditLogger := cfg.AuditLogger
	if auditLogger == nil {
		auditLogger = &extensions.NopAuditLogger{}
	}

	sessions := NewSessionHandlers(cfg.Registry, cfg.Store, cfg.Metrics, cfg.Log, auditLogger)
	sockets := NewWebSocketHandlers(cfg.Registry, cfg.Metrics, cfg.Log)
	spa := NewSPAHandler(cfg.Registry, cfg.Log, cfg.SPAShellHTML, cfg.PublicBaseURL)

	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/sessions")
	api.Use(BodySizeLimit())
	{
		api.POST("", sessions.Create)
		api.GET("/:id", ValidSessionID(), sessions.Get)
		api.PUT("/:id", ValidSessionID(), sessions.Update)
		api.POST("/:id/remix", ValidSessionID(), AdminAuth(authProvider), sessions.Remix)
		api.POST("/:id/publish", ValidSessionID(), AdminAuth(authProvider), sessions.Publish)

		admin := api.Group("")
		admin.Use(AdminAuth(authProvider))
		{
			admin.GET("", sessions.AdminList)
			admin.DELETE("/:id", ValidSessionID(), sessions.AdminDelete)
		}
	}

	router.GET("/ws/sessions/:id", ValidSessionID(), sockets.Handle)
	router.GET("/s/*path", spa.Handle)

	return router
}
