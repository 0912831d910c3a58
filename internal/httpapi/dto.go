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
	"github.com/go-playground/validator/v10"

	"github.com/aleutian-labs/stepseq/internal/model"
)

// bodyValidate is the shared struct-tag validator instance for the
// HTTP request DTOs below. It only ever checks scalar shape (string
// length, presence); the nested SessionState is authoritatively
// checked by internal/validate once the DTO is unpacked.
var bodyValidate = validator.New()

// CreateSessionRequest is the body of POST /api/sessions. State is
// optional; an absent or empty state creates a fresh default session.
type CreateSessionRequest struct {
	Name  *string             `json:"name,omitempty" validate:"omitempty,max=100"`
	State *model.SessionState `json:"state,omitempty"`
}

// UpdateSessionRequest is the body of PUT /api/sessions/:id: a
// full-state replacement.
type UpdateSessionRequest struct {
	Name  *string            `json:"name,omitempty" validate:"omitempty,max=100"`
	State model.SessionState `json:"state" validate:"required"`
}

// RemixSessionRequest is the body of POST /api/sessions/:id/remix.
// Every field is optional; an absent Name derives one from the
// source session.
type RemixSessionRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,max=100"`
}

// CreateSessionResponse is returned on successful session creation.
type CreateSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// errorResponse is the shared JSON shape for every rejected request
// (`{error, details[]}`).
type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}
