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
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T) *SessionState {
	t.Helper()
	s := NewDefaultSessionState()
	require.NoError(t, s.AddTrack(NewTrack("track-1", "Kick", "sample-1")))
	require.NoError(t, s.AddTrack(NewTrack("track-2", "Snare", "sample-2")))
	return &s
}

func TestToggleStepFlipsAndReturnsFinalValue(t *testing.T) {
	s := newTestState(t)

	v, err := s.ToggleStep("track-1", 0)
	require.NoError(t, err)
	assert.True(t, v)

	v, err = s.ToggleStep("track-1", 0)
	require.NoError(t, err)
	assert.False(t, v)
}

func TestToggleStepUnknownTrack(t *testing.T) {
	s := newTestState(t)
	_, err := s.ToggleStep("nope", 0)
	assert.ErrorIs(t, err, ErrTrackNotFound)
}

func TestAddTrackRejectsDuplicateWithoutMutating(t *testing.T) {
	s := newTestState(t)
	before := len(s.Tracks)

	err := s.AddTrack(NewTrack("track-1", "Kick2", "sample-99"))
	assert.ErrorIs(t, err, ErrTrackExists)
	assert.Len(t, s.Tracks, before)
	// Original track-1 fields are untouched.
	assert.Equal(t, "Kick", s.FindTrack("track-1").Name)
}

func TestAddTrackRejectsAtCapacity(t *testing.T) {
	s := &SessionState{}
	for i := 0; i < MaxTracks; i++ {
		require.NoError(t, s.AddTrack(NewTrack(idx(i), "t", "s")))
	}
	err := s.AddTrack(NewTrack("overflow", "t", "s"))
	assert.ErrorIs(t, err, ErrTrackCapacity)
	assert.Len(t, s.Tracks, MaxTracks)
}

func idx(i int) string {
	return "track-" + string(rune('a'+i))
}

func TestDeleteTrackOfAbsentTrackIsNoop(t *testing.T) {
	s := newTestState(t)
	before := len(s.Tracks)
	err := s.DeleteTrack("does-not-exist")
	assert.ErrorIs(t, err, ErrTrackNotFound)
	assert.Len(t, s.Tracks, before)
}

func TestClearTrackResetsFullLengthBuffers(t *testing.T) {
	s := newTestState(t)
	_, err := s.ToggleStep("track-1", 5)
	require.NoError(t, err)
	require.NoError(t, s.SetParameterLock("track-1", 5, &Plock{}))

	require.NoError(t, s.ClearTrack("track-1"))

	tr := s.FindTrack("track-1")
	for i := 0; i < MaxSteps; i++ {
		assert.False(t, tr.Steps[i])
		assert.Nil(t, tr.ParameterLocks[i])
	}
}

func TestCopySequenceLeavesSourceIntact(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.SetStep("track-1", 0, true))
	require.NoError(t, s.SetTrackStepCount("track-1", 32))

	require.NoError(t, s.CopySequence("track-1", "track-2"))

	assert.True(t, s.FindTrack("track-2").Steps[0])
	assert.Equal(t, 32, s.FindTrack("track-2").StepCount)
	assert.True(t, s.FindTrack("track-1").Steps[0], "source unchanged by copy")
}

func TestMoveSequenceResetsSource(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.SetStep("track-1", 0, true))

	require.NoError(t, s.MoveSequence("track-1", "track-2"))

	assert.True(t, s.FindTrack("track-2").Steps[0])
	assert.False(t, s.FindTrack("track-1").Steps[0], "source reset by move")
}

func TestSetTrackStepCountIsNonDestructive(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.SetStep("track-1", 100, true))
	require.NoError(t, s.SetTrackStepCount("track-1", 16))

	assert.True(t, s.FindTrack("track-1").Steps[100], "steps beyond active window survive")
}

func TestBatchClearStepsClearsStepsAndLocks(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.SetStep("track-1", 1, true))
	require.NoError(t, s.SetStep("track-1", 2, true))
	require.NoError(t, s.SetParameterLock("track-1", 1, &Plock{}))

	require.NoError(t, s.BatchClearSteps("track-1", []int{1, 2}))

	tr := s.FindTrack("track-1")
	assert.False(t, tr.Steps[1])
	assert.False(t, tr.Steps[2])
	assert.Nil(t, tr.ParameterLocks[1])
}

func TestSetLoopRegionNormalizesOrder(t *testing.T) {
	s := newTestState(t)
	s.SetLoopRegion(10, 2)
	require.NotNil(t, s.LoopRegion)
	assert.Equal(t, 2, s.LoopRegion.Start)
	assert.Equal(t, 10, s.LoopRegion.End)
}

func TestMuteSoloAreLocalOnlyFields(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.SetMuted("track-1", true))
	require.NoError(t, s.SetSoloed("track-2", true))

	assert.True(t, s.FindTrack("track-1").Muted)
	assert.True(t, s.FindTrack("track-2").Soloed)
}
