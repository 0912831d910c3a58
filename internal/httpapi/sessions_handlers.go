// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aleutian-labs/stepseq/internal/engine"
	"github.com/aleutian-labs/stepseq/internal/logging"
	"github.com/aleutian-labs/stepseq/internal/metrics"
	"github.com/aleutian-labs/stepseq/internal/model"
	"github.com/aleutian-labs/stepseq/internal/store"
	"github.com/aleutian-labs/stepseq/internal/validate"
	"github.com/aleutian-labs/stepseq/pkg/extensions"
)

// SessionHandlers implements the /api/sessions surface:
// create, read, full-state update, remix and publish all go through
// registry so a session with a live WS actor is never bypassed, and
// every write lands through the same single-writer engine that serves
// the socket.
type SessionHandlers struct {
	registry *engine.Registry
	store    store.Store
	metrics  *metrics.SessionMetrics
	log      *logging.Logger
	audit    extensions.AuditLogger
}

// NewSessionHandlers builds the handler set. registry and store share
// the same underlying durable backend; store is used directly only
// for operations a live Engine doesn't expose (create's initial
// persist, admin list/delete). audit records every mutating call
// (create/update/remix/publish/delete); pass &extensions.NopAuditLogger{}
// for deployments with no audit requirement.
func NewSessionHandlers(reg *engine.Registry, st store.Store, m *metrics.SessionMetrics, log *logging.Logger, audit extensions.AuditLogger) *SessionHandlers {
	return &SessionHandlers{registry: reg, store: st, metrics: m, log: log, audit: audit}
}

// logAudit records a best-effort audit event; a logging failure never
// fails the request it's describing.
func (h *SessionHandlers) logAudit(ctx context.Context, c *gin.Context, action, resourceID, outcome string) {
	userID := "local-user"
	if info := AuthInfoFromContext(c); info != nil {
		userID = info.UserID
	}
	err := h.audit.Log(ctx, extensions.AuditEvent{
		EventType:    "session." + action,
		UserID:       userID,
		Action:       action,
		ResourceType: "session",
		ResourceID:   resourceID,
		Outcome:      outcome,
		Metadata: map[string]any{
			"request_id": RequestIDFromContext(c),
		},
	})
	if err != nil {
		h.log.Warn("audit log failed", "action", action, "resource_id", resourceID, "error", err)
	}
}

func respondError(c *gin.Context, status int, message string, details ...string) {
	c.JSON(status, errorResponse{Error: message, Details: details})
}

// Create handles POST /api/sessions: a fresh or state-seeded session.
func (h *SessionHandlers) Create(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, "malformed request body", err.Error())
		return
	}
	if err := bodyValidate.Struct(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	name, err := validate.ValidateSessionName(req.Name)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	state := model.NewDefaultSessionState()
	if req.State != nil {
		state = *req.State
		if ok, errs := validate.ValidateSessionState(&state); !ok {
			respondError(c, http.StatusBadRequest, "invalid session state", errs...)
			return
		}
	}

	now := time.Now().UnixMilli()
	sess := &model.Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
		State:     state,
	}
	if name != nil {
		sess.Name = *name
	}

	if err := h.store.Save(c.Request.Context(), sess); err != nil {
		h.log.Error("persist new session failed", "error", err)
		respondError(c, http.StatusInternalServerError, "failed to create session")
		return
	}

	e := engine.New(sess, h.store, h.metrics, h.log)
	h.registry.Track(e)

	h.logAudit(c.Request.Context(), c, "create", sess.ID, "success")
	c.JSON(http.StatusOK, CreateSessionResponse{
		ID:  sess.ID,
		URL: "/s/" + sess.ID,
	})
}

// Get handles GET /api/sessions/:id.
func (h *SessionHandlers) Get(c *gin.Context) {
	id := c.Param("id")
	e, err := h.registry.Get(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, err)
		return
	}
	sess := e.Snapshot(c.Request.Context())
	c.JSON(http.StatusOK, sess)
}

// Update handles PUT /api/sessions/:id: a full-state replacement.
// Rejected with 409 on a published session (one-way
// immutability still applies to the HTTP path, not just WS commands).
func (h *SessionHandlers) Update(c *gin.Context) {
	id := c.Param("id")
	var req UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "malformed request body", err.Error())
		return
	}
	if err := bodyValidate.Struct(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if ok, errs := validate.ValidateSessionState(&req.State); !ok {
		respondError(c, http.StatusBadRequest, "invalid session state", errs...)
		return
	}

	e, err := h.registry.Get(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, err)
		return
	}

	if err := e.ReplaceState(c.Request.Context(), req.State); err != nil {
		if errors.Is(err, engine.ErrImmutable) {
			h.logAudit(c.Request.Context(), c, "update", id, "blocked")
			respondError(c, http.StatusConflict, "session is published and cannot be modified")
			return
		}
		h.log.Error("replace state failed", "error", err)
		h.logAudit(c.Request.Context(), c, "update", id, "error")
		respondError(c, http.StatusInternalServerError, "failed to update session")
		return
	}

	h.logAudit(c.Request.Context(), c, "update", id, "success")
	sess := e.Snapshot(c.Request.Context())
	c.JSON(http.StatusOK, sess)
}

// Remix handles POST /api/sessions/:id/remix: deep-copies the source
// session's state into a brand new session and links lineage. The
// source session's remixCount is incremented through its own engine
// so the increment is never lost to a concurrent WS write.
func (h *SessionHandlers) Remix(c *gin.Context) {
	id := c.Param("id")
	var req RemixSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, "malformed request body", err.Error())
		return
	}
	if err := bodyValidate.Struct(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	source, err := h.registry.Get(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, err)
		return
	}
	sourceSess := source.Snapshot(c.Request.Context())

	name, err := validate.ValidateSessionName(req.Name)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	remixName := sourceSess.Name
	if name != nil {
		remixName = *name
	}

	now := time.Now().UnixMilli()
	remix := &model.Session{
		ID:              uuid.New().String(),
		CreatedAt:       now,
		UpdatedAt:       now,
		Name:            remixName,
		RemixedFrom:     sourceSess.ID,
		RemixedFromName: sourceSess.Name,
		State:           sourceSess.State,
	}
	if err := h.store.Save(c.Request.Context(), remix); err != nil {
		h.log.Error("persist remixed session failed", "error", err)
		respondError(c, http.StatusInternalServerError, "failed to create remix")
		return
	}

	e := engine.New(remix, h.store, h.metrics, h.log)
	h.registry.Track(e)

	if err := source.IncrementRemixCount(c.Request.Context()); err != nil {
		h.log.Warn("remix count increment failed", "session_id", id, "error", err)
	}

	h.logAudit(c.Request.Context(), c, "remix", remix.ID, "success")
	c.JSON(http.StatusOK, CreateSessionResponse{
		ID:  remix.ID,
		URL: "/s/" + remix.ID,
	})
}

// Publish handles POST /api/sessions/:id/publish: the one-way
// immutable transition. A second call returns 409.
func (h *SessionHandlers) Publish(c *gin.Context) {
	id := c.Param("id")
	e, err := h.registry.Get(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, err)
		return
	}
	if err := e.Publish(c.Request.Context()); err != nil {
		if errors.Is(err, engine.ErrImmutable) {
			h.logAudit(c.Request.Context(), c, "publish", id, "blocked")
			respondError(c, http.StatusConflict, "session is already published")
			return
		}
		h.log.Error("publish failed", "error", err)
		h.logAudit(c.Request.Context(), c, "publish", id, "error")
		respondError(c, http.StatusInternalServerError, "failed to publish session")
		return
	}
	h.logAudit(c.Request.Context(), c, "publish", id, "success")
	sess := e.Snapshot(c.Request.Context())
	c.JSON(http.StatusOK, sess)
}

// AdminList handles GET /api/sessions (admin-gated): every session
// record known to the durable store, live or hibernated.
func (h *SessionHandlers) AdminList(c *gin.Context) {
	sessions, err := h.store.List(c.Request.Context())
	if err != nil {
		h.log.Error("list sessions failed", "error", err)
		respondError(c, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// AdminDelete handles DELETE /api/sessions/:id (admin-gated): evicts
// any live engine and removes the durable record.
func (h *SessionHandlers) AdminDelete(c *gin.Context) {
	id := c.Param("id")
	h.registry.Evict(id)
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.log.Error("delete session failed", "error", err)
		h.logAudit(c.Request.Context(), c, "delete", id, "error")
		respondError(c, http.StatusInternalServerError, "failed to delete session")
		return
	}
	h.logAudit(c.Request.Context(), c, "delete", id, "success")
	c.Status(http.StatusOK)
}

func (h *SessionHandlers) respondLookupError(c *gin.Context, err error) {
	if errors.Is(err, engine.ErrNotFound) {
		respondError(c, http.StatusNotFound, "session not found")
		return
	}
	h.log.Error("session lookup failed", "error", err)
	respondError(c, http.StatusInternalServerError, "failed to load session")
}
