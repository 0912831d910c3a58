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
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aleutian-labs/stepseq/internal/model"
	"github.com/aleutian-labs/stepseq/internal/validate"
	"github.com/aleutian-labs/stepseq/pkg/extensions"
)

// requestIDKey is the Gin context key request-id middleware stores
// under.
const requestIDKey = "stepseq_request_id"

// requestIDHeader is the response header the generated id is echoed
// on, so a client or proxy can correlate its own logs.
const requestIDHeader = "X-Request-Id"

// RequestID assigns a UUID v4 to every request, storing it in the
// context for handlers/logging and echoing it back on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || !validate.IsValidUUID(id) {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestIDFromContext retrieves the id RequestID stored, or "" if
// the middleware never ran.
func RequestIDFromContext(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// BodySizeLimit rejects request bodies over model.MaxMessageSize with
// 413 (oversize is distinct from a 400 validation failure).
// Content-Length is checked up front so we reject before reading
// anything; http.MaxBytesReader backstops a missing or lying
// Content-Length.
func BodySizeLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > model.MaxMessageSize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorResponse{
				Error: "request body exceeds maximum size",
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, model.MaxMessageSize)
		c.Next()
	}
}

// ValidSessionID rejects any request whose :id path parameter is not
// a canonical UUID v4.
func ValidSessionID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !validate.IsValidUUID(id) {
			c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
				Error: "session id must be a UUID v4",
			})
			return
		}
		c.Next()
	}
}

// AdminAuth authenticates admin-only routes (publish/remix/delete)
// against provider. With provider left as extensions.NopAuthProvider
// (the default when no secret is configured) every request succeeds
// as "local-user" with the admin role, so the service works out of the box with no auth
// configured.
func AdminAuth(provider extensions.AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		info, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, extensions.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "authentication failed"})
			return
		}
		c.Set(authInfoKey, info)
		c.Next()
	}
}

const authInfoKey = "stepseq_auth_info"

// AuthInfoFromContext retrieves the identity AdminAuth stored.
func AuthInfoFromContext(c *gin.Context) *extensions.AuthInfo {
	if v, ok := c.Get(authInfoKey); ok {
		if info, ok := v.(*extensions.AuthInfo); ok {
			return info
		}
	}
	return nil
}

// extractBearerToken parses "Authorization: Bearer <token>", case
// insensitively on the scheme. Returns "" if absent or malformed,
// which NopAuthProvider treats as a valid local-user request.
func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
