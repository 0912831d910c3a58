// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate

import (
	"testing"

	"github.com/aleutian-labs/stepseq/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidUUID(t *testing.T) {
	assert.True(t, IsValidUUID("3fa85f64-5717-4562-b3fc-2c963f66afa6"))
	assert.False(t, IsValidUUID("not-a-uuid"))
	assert.False(t, IsValidUUID("3fa85f64-5717-1562-b3fc-2c963f66afa6")) // wrong version nibble
}

func TestIsBodySizeValid(t *testing.T) {
	assert.True(t, IsBodySizeValid(0))
	assert.True(t, IsBodySizeValid(model.MaxMessageSize))
	assert.False(t, IsBodySizeValid(model.MaxMessageSize+1))
}

func TestValidateSessionNameRejectsScriptInjection(t *testing.T) {
	bad := `<script>alert(1)</script>`
	_, err := ValidateSessionName(&bad)
	assert.Error(t, err)

	bad2 := `onclick=alert(1)`
	_, err = ValidateSessionName(&bad2)
	assert.Error(t, err)

	bad3 := `javascript:alert(1)`
	_, err = ValidateSessionName(&bad3)
	assert.Error(t, err)
}

func TestValidateSessionNameAllowsNil(t *testing.T) {
	out, err := ValidateSessionName(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestValidateSessionNameRejectsTooLong(t *testing.T) {
	long := make([]byte, model.MaxSessionNameLength+1)
	for i := range long {
		long[i] = 'a'
	}
	s := string(long)
	_, err := ValidateSessionName(&s)
	assert.Error(t, err)
}

func TestClampTempoBoundary(t *testing.T) {
	assert.Equal(t, model.MinTempo, ClampTempo(59))
	assert.Equal(t, model.MaxTempo, ClampTempo(181))
	assert.Equal(t, 120, ClampTempo(120))
}

func TestValidateParameterLockClampsAndDrops(t *testing.T) {
	pitch := 100
	lock := ValidateParameterLock(&pitch, nil, nil)
	require.NotNil(t, lock)
	require.NotNil(t, lock.Pitch)
	assert.Equal(t, model.MaxPlockPitch, *lock.Pitch)

	empty := ValidateParameterLock(nil, nil, nil)
	assert.Nil(t, empty)
}

func TestValidateEffectsRejectsOutOfRange(t *testing.T) {
	e := &model.Effects{
		Reverb: model.ReverbEffect{Decay: 5, Wet: 0.5},
		Delay:  model.DelayEffect{Time: "4n", Feedback: 0.5, Wet: 0.5},
		Chorus: model.ChorusEffect{Frequency: 1, Depth: 0.5, Wet: 0.5},
		Distortion: model.DistortionEffect{Amount: 0.5, Wet: 0.5},
	}
	assert.NoError(t, ValidateEffects(e))

	e.Delay.Time = "not-a-note-length"
	assert.Error(t, ValidateEffects(e))
}

func TestRepairStateInvariantsIsIdempotent(t *testing.T) {
	s := model.NewDefaultSessionState()
	s.Tempo = 5000
	s.Tracks = []*model.Track{
		model.NewTrack("a", "A", "s1"),
		model.NewTrack("a", "dup", "s2"),
	}
	s.Tracks[0].Volume = 50

	first := RepairStateInvariants(&s)
	assert.NotEmpty(t, first.Repairs)
	valid, errs := ValidateSessionState(&s)
	assert.True(t, valid, "expected valid after repair, errors: %v", errs)

	second := RepairStateInvariants(&s)
	assert.Empty(t, second.Repairs, "repair should be idempotent")
}

func TestRepairDedupeFirstWins(t *testing.T) {
	s := model.NewDefaultSessionState()
	s.Tracks = []*model.Track{
		model.NewTrack("a", "first", "s1"),
		model.NewTrack("a", "second", "s2"),
	}
	RepairStateInvariants(&s)
	require.Len(t, s.Tracks, 1)
	assert.Equal(t, "first", s.Tracks[0].Name)
}
