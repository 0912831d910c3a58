// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package proto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsStateMutatingClassifiesAllTwentyOneTypes(t *testing.T) {
	mutating := []string{
		TypeToggleStep, TypeSetTempo, TypeSetSwing, TypeSetParameterLock,
		TypeAddTrack, TypeDeleteTrack, TypeClearTrack,
		TypeSetTrackSample, TypeSetTrackVolume, TypeSetTrackTranspose,
		TypeSetTrackStepCount, TypeSetTrackSwing,
		TypeSetEffects, TypeSetScale, TypeSetFMParams,
		TypeCopySequence, TypeMoveSequence,
		TypeSetSessionName,
		TypeBatchClearSteps, TypeBatchSetParameterLock,
		TypeSetLoopRegion,
	}
	require.Len(t, mutating, 21)
	for _, m := range mutating {
		assert.True(t, IsStateMutating(m), "%s should be mutating", m)
	}
}

func TestIsStateMutatingRejectsReadOnlyTypes(t *testing.T) {
	readOnly := []string{
		TypePlay, TypeStop, TypeStateHash, TypeRequestSnapshot,
		TypeClockSyncRequest, TypeCursorMove, TypeMuteTrack, TypeSoloTrack,
	}
	for _, r := range readOnly {
		assert.False(t, IsStateMutating(r), "%s should not be mutating", r)
	}
}

func TestBroadcastForIsOneToOne(t *testing.T) {
	b, ok := BroadcastFor(TypeToggleStep)
	require.True(t, ok)
	assert.Equal(t, BroadcastStepToggled, b)

	_, ok = BroadcastFor(TypePlay)
	assert.False(t, ok, "play is not a mutating command and has no broadcast mapping")
}

func TestParseEnvelopeRejectsMissingType(t *testing.T) {
	_, err := ParseEnvelope([]byte(`{"seq":1}`))
	assert.Error(t, err)
}

func TestParseEnvelopeRejectsMalformedJSON(t *testing.T) {
	_, err := ParseEnvelope([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseEnvelopeExtractsSeqAndAck(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"toggle_step","seq":5,"ack":4}`))
	require.NoError(t, err)
	assert.Equal(t, TypeToggleStep, env.Type)
	require.NotNil(t, env.Seq)
	assert.EqualValues(t, 5, *env.Seq)
	require.NotNil(t, env.Ack)
	assert.EqualValues(t, 4, *env.Ack)
}

func TestBroadcastMarshalFlattensFieldsAndOmitsAbsentClientSeq(t *testing.T) {
	seq := uint64(42)
	b := Broadcast{
		Type:     BroadcastStepToggled,
		Seq:      &seq,
		PlayerID: "p1",
		Fields:   map[string]interface{}{"trackId": "t1", "step": 3, "value": true},
	}
	out, err := json.Marshal(b)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, BroadcastStepToggled, decoded["type"])
	assert.EqualValues(t, 42, decoded["seq"])
	assert.Equal(t, "p1", decoded["playerId"])
	assert.Equal(t, "t1", decoded["trackId"])
	assert.NotContains(t, decoded, "clientSeq")
}

func TestBroadcastMarshalIncludesClientSeqWhenPresent(t *testing.T) {
	seq := uint64(10)
	cs := uint64(7)
	b := Broadcast{Type: BroadcastTrackAdded, Seq: &seq, ClientSeq: &cs}
	out, err := json.Marshal(b)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.EqualValues(t, 7, decoded["clientSeq"])
}

func TestBroadcastMarshalOmitsSeqForInformationalEvents(t *testing.T) {
	b := Broadcast{
		Type:     BroadcastCursorMoved,
		PlayerID: "p1",
		Fields:   map[string]interface{}{"x": 0.5, "y": 0.5},
	}
	out, err := json.Marshal(b)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.NotContains(t, decoded, "seq")
	assert.Equal(t, BroadcastCursorMoved, decoded["type"])
}

func TestDecodeEffectsRejectsLegacyFieldNames(t *testing.T) {
	valid := []byte(`{
		"reverb":{"decay":2,"wet":0.5},
		"delay":{"time":"4n","feedback":0.3,"wet":0.2},
		"chorus":{"frequency":1,"depth":0.5,"wet":0.5},
		"distortion":{"amount":0.5,"wet":0.5}
	}`)
	e, err := DecodeEffects(valid)
	require.NoError(t, err)
	assert.Equal(t, "4n", e.Delay.Time)

	legacy := []byte(`{
		"reverb":{"decay":2,"mix":0.5},
		"delay":{"time":"4n","feedback":0.3,"wet":0.2},
		"chorus":{"frequency":1,"depth":0.5,"wet":0.5},
		"distortion":{"amount":0.5,"wet":0.5}
	}`)
	_, err = DecodeEffects(legacy)
	assert.Error(t, err)
}

func TestNewErrorFrameSetsTypeTag(t *testing.T) {
	f := NewErrorFrame("boom")
	assert.Equal(t, BroadcastError, f.Type)
	assert.Equal(t, "boom", f.Message)
}
