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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/stepseq/pkg/extensions"
)

const testJWTSecret = "this-is-a-test-secret-at-least-32-bytes-long"

func TestNewJWTAuthProviderRejectsShortSecrets(t *testing.T) {
	_, err := NewJWTAuthProvider("too-short")
	assert.Error(t, err)
}

func TestJWTAuthProviderRoundTripsAnIssuedToken(t *testing.T) {
	provider, err := NewJWTAuthProvider(testJWTSecret)
	require.NoError(t, err)

	token, err := provider.IssueToken("operator-1", time.Hour)
	require.NoError(t, err)

	info, err := provider.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "operator-1", info.UserID)
	assert.Contains(t, info.Roles, "admin")
}

func TestJWTAuthProviderRejectsExpiredToken(t *testing.T) {
	provider, err := NewJWTAuthProvider(testJWTSecret)
	require.NoError(t, err)

	token, err := provider.IssueToken("operator-1", -time.Minute)
	require.NoError(t, err)

	_, err = provider.Validate(context.Background(), token)
	assert.ErrorIs(t, err, extensions.ErrUnauthorized)
}

func TestJWTAuthProviderRejectsEmptyToken(t *testing.T) {
	provider, err := NewJWTAuthProvider(testJWTSecret)
	require.NoError(t, err)

	_, err = provider.Validate(context.Background(), "")
	assert.ErrorIs(t, err, extensions.ErrUnauthorized)
}

func TestJWTAuthProviderRejectsTokenFromDifferentSecret(t *testing.T) {
	provider, err := NewJWTAuthProvider(testJWTSecret)
	require.NoError(t, err)

	other, err := NewJWTAuthProvider("a-completely-different-secret-value-32b")
	require.NoError(t, err)
	token, err := other.IssueToken("operator-1", time.Hour)
	require.NoError(t, err)

	_, err = provider.Validate(context.Background(), token)
	assert.ErrorIs(t, err, extensions.ErrUnauthorized)
}
