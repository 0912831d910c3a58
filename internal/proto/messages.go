// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package proto defines the client/server wire schema: the tagged
// unions for inbound commands and outbound broadcasts, and the single
// classification point (IsStateMutating) that the engine consults to
// enforce immutability on published sessions.
package proto

import (
	"encoding/json"
	"fmt"
)

// Inbound command types. Mutating types are the
// authoritative set; read-only types are permitted on published
// sessions.
const (
	TypeToggleStep            = "toggle_step"
	TypeSetTempo              = "set_tempo"
	TypeSetSwing              = "set_swing"
	TypeSetParameterLock      = "set_parameter_lock"
	TypeAddTrack              = "add_track"
	TypeDeleteTrack           = "delete_track"
	TypeClearTrack            = "clear_track"
	TypeSetTrackSample        = "set_track_sample"
	TypeSetTrackVolume        = "set_track_volume"
	TypeSetTrackTranspose     = "set_track_transpose"
	TypeSetTrackStepCount     = "set_track_step_count"
	TypeSetTrackSwing         = "set_track_swing"
	TypeSetEffects            = "set_effects"
	TypeSetScale              = "set_scale"
	TypeSetFMParams           = "set_fm_params"
	TypeCopySequence          = "copy_sequence"
	TypeMoveSequence          = "move_sequence"
	TypeSetSessionName        = "set_session_name"
	TypeBatchClearSteps       = "batch_clear_steps"
	TypeBatchSetParameterLock = "batch_set_parameter_locks"
	TypeSetLoopRegion         = "set_loop_region"

	TypePlay               = "play"
	TypeStop               = "stop"
	TypeStateHash          = "state_hash"
	TypeRequestSnapshot    = "request_snapshot"
	TypeClockSyncRequest   = "clock_sync_request"
	TypeCursorMove         = "cursor_move"
	TypeMuteTrack          = "mute_track"
	TypeSoloTrack          = "solo_track"
)

// mutatingTypes is the authoritative set consulted by IsStateMutating.
// This is the single branch point for immutability enforcement; no
// per-handler checks exist elsewhere.
var mutatingTypes = map[string]bool{
	TypeToggleStep:            true,
	TypeSetTempo:              true,
	TypeSetSwing:              true,
	TypeSetParameterLock:      true,
	TypeAddTrack:              true,
	TypeDeleteTrack:           true,
	TypeClearTrack:            true,
	TypeSetTrackSample:        true,
	TypeSetTrackVolume:        true,
	TypeSetTrackTranspose:     true,
	TypeSetTrackStepCount:     true,
	TypeSetTrackSwing:         true,
	TypeSetEffects:            true,
	TypeSetScale:              true,
	TypeSetFMParams:           true,
	TypeCopySequence:          true,
	TypeMoveSequence:          true,
	TypeSetSessionName:        true,
	TypeBatchClearSteps:       true,
	TypeBatchSetParameterLock: true,
	TypeSetLoopRegion:         true,
}

// IsStateMutating reports whether msgType names a mutating command.
// This is the sole place immutability enforcement branches on message
// type: published sessions reject everything in this set
// and accept everything else.
func IsStateMutating(msgType string) bool {
	return mutatingTypes[msgType]
}

// Broadcast type names, one-to-one with their triggering commands,
// plus the snapshot-less informational broadcasts that never carry a
// serverSeq.
const (
	BroadcastStepToggled        = "step_toggled"
	BroadcastTempoSet           = "tempo_set"
	BroadcastSwingSet           = "swing_set"
	BroadcastParameterLockSet   = "parameter_lock_set"
	BroadcastTrackAdded         = "track_added"
	BroadcastTrackDeleted       = "track_deleted"
	BroadcastTrackCleared       = "track_cleared"
	BroadcastTrackSampleSet     = "track_sample_set"
	BroadcastTrackVolumeSet     = "track_volume_set"
	BroadcastTrackTransposeSet  = "track_transpose_set"
	BroadcastTrackStepCountSet  = "track_step_count_set"
	BroadcastTrackSwingSet      = "track_swing_set"
	BroadcastEffectsSet         = "effects_set"
	BroadcastScaleSet           = "scale_set"
	BroadcastFMParamsSet        = "fm_params_set"
	BroadcastSequenceCopied     = "sequence_copied"
	BroadcastSequenceMoved      = "sequence_moved"
	BroadcastSessionNameSet     = "session_name_set"
	BroadcastStepsBatchCleared  = "steps_batch_cleared"
	BroadcastParameterLocksBatchSet = "parameter_locks_batch_set"
	BroadcastLoopRegionSet      = "loop_region_set"

	BroadcastCursorMoved        = "cursor_moved"
	BroadcastPlayerJoined       = "player_joined"
	BroadcastPlayerLeft         = "player_left"
	BroadcastPlaybackStarted    = "playback_started"
	BroadcastPlaybackStopped    = "playback_stopped"
	BroadcastClockSyncResponse  = "clock_sync_response"
	BroadcastSnapshot           = "snapshot"
	BroadcastStateSync          = "state_sync"
	BroadcastError              = "error"
	BroadcastTrackMuted         = "track_muted"
	BroadcastTrackSoloed        = "track_soloed"

	// BroadcastSessionReplaced and BroadcastSessionPublished have no
	// inbound command counterpart: they report HTTP-driven session
	// operations (PUT full-state update, one-way publish) to every
	// attached stream.
	BroadcastSessionReplaced  = "session_replaced"
	BroadcastSessionPublished = "session_published"
)

// broadcastForCommand maps each mutating command to its broadcast
// type, one command type per envelope.
var broadcastForCommand = map[string]string{
	TypeToggleStep:            BroadcastStepToggled,
	TypeSetTempo:              BroadcastTempoSet,
	TypeSetSwing:              BroadcastSwingSet,
	TypeSetParameterLock:      BroadcastParameterLockSet,
	TypeAddTrack:              BroadcastTrackAdded,
	TypeDeleteTrack:           BroadcastTrackDeleted,
	TypeClearTrack:            BroadcastTrackCleared,
	TypeSetTrackSample:        BroadcastTrackSampleSet,
	TypeSetTrackVolume:        BroadcastTrackVolumeSet,
	TypeSetTrackTranspose:     BroadcastTrackTransposeSet,
	TypeSetTrackStepCount:     BroadcastTrackStepCountSet,
	TypeSetTrackSwing:         BroadcastTrackSwingSet,
	TypeSetEffects:            BroadcastEffectsSet,
	TypeSetScale:              BroadcastScaleSet,
	TypeSetFMParams:           BroadcastFMParamsSet,
	TypeCopySequence:          BroadcastSequenceCopied,
	TypeMoveSequence:          BroadcastSequenceMoved,
	TypeSetSessionName:        BroadcastSessionNameSet,
	TypeBatchClearSteps:       BroadcastStepsBatchCleared,
	TypeBatchSetParameterLock: BroadcastParameterLocksBatchSet,
	TypeSetLoopRegion:         BroadcastLoopRegionSet,
}

// BroadcastFor returns the broadcast type name for a mutating command
// type, and false if cmdType is not a mutating command.
func BroadcastFor(cmdType string) (string, bool) {
	b, ok := broadcastForCommand[cmdType]
	return b, ok
}

// Envelope is the minimal shape every inbound frame must satisfy to
// be routed: a type tag plus the optional sequence/ack pair.
type Envelope struct {
	Type string `json:"type"`
	Seq  *uint64 `json:"seq,omitempty"`
	Ack  *uint64 `json:"ack,omitempty"`
}

// ParseEnvelope extracts the routing envelope from a raw inbound
// frame. The caller re-decodes raw into a type-specific payload using
// the Type field to select which struct to use.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("proto: malformed frame: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("proto: frame missing type")
	}
	return env, nil
}

// Broadcast is the outbound envelope for a broadcast frame. Seq is set
// only for state-mutating broadcasts (the serverSeq that advances the
// mutation-confirmation contract); informational broadcasts
// (player_joined, cursor_moved, playback_started, ...) leave it nil so
// "seq" is omitted entirely — they're not part of that contract and
// don't advance serverSeq, so they have no sequence number to ship.
// ClientSeq is the echoed client sequence, when the triggering command
// supplied one. Fields marshal flattened into the top-level object
// alongside whatever payload fields the caller sets in Fields.
type Broadcast struct {
	Type      string
	Seq       *uint64
	ClientSeq *uint64
	PlayerID  string
	Fields    map[string]interface{}
}

// MarshalJSON flattens Type/Seq/ClientSeq/PlayerID and Fields into a
// single JSON object.
func (b Broadcast) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(b.Fields)+4)
	for k, v := range b.Fields {
		out[k] = v
	}
	out["type"] = b.Type
	if b.Seq != nil {
		out["seq"] = *b.Seq
	}
	if b.ClientSeq != nil {
		out["clientSeq"] = *b.ClientSeq
	}
	if b.PlayerID != "" {
		out["playerId"] = b.PlayerID
	}
	return json.Marshal(out)
}

// ErrorFrame is the typed error reply sent to a single stream.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewErrorFrame builds an ErrorFrame with the fixed "error" type tag.
func NewErrorFrame(message string) ErrorFrame {
	return ErrorFrame{Type: BroadcastError, Message: message}
}
