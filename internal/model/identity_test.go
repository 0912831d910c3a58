// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityForIsDeterministic(t *testing.T) {
	c1, a1, col1 := IdentityFor("player-42")
	c2, a2, col2 := IdentityFor("player-42")

	assert.Equal(t, c1, c2)
	assert.Equal(t, a1, a2)
	assert.Equal(t, col1, col2)
}

func TestIdentityForSpansFullSpace(t *testing.T) {
	assert.Equal(t, 18, len(colorNames))
	assert.Equal(t, 73, len(animalNames))

	seen := map[string]bool{}
	for i := 0; i < 2000; i++ {
		_, animal, color := IdentityFor(string(rune(i)) + "-probe")
		seen[color+"/"+animal] = true
	}
	// With 1314 combinations and 2000 samples we expect broad but not
	// necessarily complete coverage; just assert it's not degenerate.
	assert.Greater(t, len(seen), 100)
}
