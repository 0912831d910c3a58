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
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aleutian-labs/stepseq/pkg/extensions"
)

// jwtClaims is the minimal claim set stepseqd's admin tokens carry: a
// subject and role list, nothing enterprise-specific.
type jwtClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

// JWTAuthProvider validates HS256 bearer tokens against a fixed
// shared secret. It exists so the admin routes (publish/remix/delete)
// can be gated in deployments that set STEPSEQ_ADMIN_JWT_SECRET,
// while still satisfying extensions.AuthProvider so NopAuthProvider
// can stand in when no secret is configured.
type JWTAuthProvider struct {
	secret []byte
	issuer string
}

var _ extensions.AuthProvider = (*JWTAuthProvider)(nil)

// NewJWTAuthProvider builds a provider signing/verifying with secret.
// Returns an error if secret is too short to be a meaningful HMAC key.
func NewJWTAuthProvider(secret string) (*JWTAuthProvider, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("httpapi: admin JWT secret must be at least 32 characters")
	}
	return &JWTAuthProvider{secret: []byte(secret), issuer: "stepseqd"}, nil
}

// Validate parses and verifies token, returning the caller's identity
// on success.
func (p *JWTAuthProvider) Validate(_ context.Context, token string) (*extensions.AuthInfo, error) {
	if token == "" {
		return nil, fmt.Errorf("missing bearer token: %w", extensions.ErrUnauthorized)
	}

	claims := &jwtClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("token expired: %w", extensions.ErrUnauthorized)
		}
		return nil, fmt.Errorf("invalid token: %w", extensions.ErrUnauthorized)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token: %w", extensions.ErrUnauthorized)
	}

	return &extensions.AuthInfo{
		UserID: claims.Subject,
		Roles:  claims.Roles,
	}, nil
}

// IssueToken mints an admin-scoped token, for operators bootstrapping
// a first credential (e.g. from a CLI subcommand, not wired here).
func (p *JWTAuthProvider) IssueToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Roles: []string{"admin"},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}
