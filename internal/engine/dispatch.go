// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/aleutian-labs/stepseq/internal/canon"
	"github.com/aleutian-labs/stepseq/internal/model"
	"github.com/aleutian-labs/stepseq/internal/proto"
	"github.com/aleutian-labs/stepseq/internal/validate"
)

// handleDispatch runs the per-frame pipeline: parse,
// immutability check, route to the command's handler (which itself
// validates and applies), then a single write-through flush for
// whatever that handler dirtied.
func (e *Engine) handleDispatch(cmd command) {
	e.lastActivity = time.Now()
	if info, ok := e.players[cmd.playerID]; ok {
		info.LastMessageAt = time.Now().UnixMilli()
		info.MessageCount++
		e.players[cmd.playerID] = info
	}

	env, err := proto.ParseEnvelope(cmd.raw)
	if err != nil {
		e.log.Debug("dropping malformed frame", "player_id", cmd.playerID, "error", err)
		return
	}
	e.metrics.MessagesInboundTotal.WithLabelValues(env.Type).Inc()

	if proto.IsStateMutating(env.Type) && e.session.Immutable {
		e.metrics.MutationsRejectedTotal.WithLabelValues("immutable").Inc()
		e.sendError(cmd.playerID, "session is published and read-only")
		return
	}

	e.routeCommand(cmd.playerID, env, cmd.raw)

	if err := e.flushLocked(); err != nil {
		e.sendError(cmd.playerID, "failed to persist change, request a fresh snapshot")
	}
}

func (e *Engine) routeCommand(playerID string, env proto.Envelope, raw []byte) {
	switch env.Type {
	case proto.TypeToggleStep:
		e.handleToggleStep(playerID, env.Seq, raw)
	case proto.TypeSetTempo:
		e.handleSetTempo(playerID, env.Seq, raw)
	case proto.TypeSetSwing:
		e.handleSetSwing(playerID, env.Seq, raw)
	case proto.TypeSetParameterLock:
		e.handleSetParameterLock(playerID, env.Seq, raw)
	case proto.TypeAddTrack:
		e.handleAddTrack(playerID, env.Seq, raw)
	case proto.TypeDeleteTrack:
		e.handleDeleteTrack(playerID, env.Seq, raw)
	case proto.TypeClearTrack:
		e.handleClearTrack(playerID, env.Seq, raw)
	case proto.TypeSetTrackSample:
		e.handleSetTrackSample(playerID, env.Seq, raw)
	case proto.TypeSetTrackVolume:
		e.handleSetTrackVolume(playerID, env.Seq, raw)
	case proto.TypeSetTrackTranspose:
		e.handleSetTrackTranspose(playerID, env.Seq, raw)
	case proto.TypeSetTrackStepCount:
		e.handleSetTrackStepCount(playerID, env.Seq, raw)
	case proto.TypeSetTrackSwing:
		e.handleSetTrackSwing(playerID, env.Seq, raw)
	case proto.TypeSetEffects:
		e.handleSetEffects(playerID, env.Seq, raw)
	case proto.TypeSetScale:
		e.handleSetScale(playerID, env.Seq, raw)
	case proto.TypeSetFMParams:
		e.handleSetFMParams(playerID, env.Seq, raw)
	case proto.TypeCopySequence:
		e.handleCopySequence(playerID, env.Seq, raw)
	case proto.TypeMoveSequence:
		e.handleMoveSequence(playerID, env.Seq, raw)
	case proto.TypeSetSessionName:
		e.handleSetSessionName(playerID, env.Seq, raw)
	case proto.TypeBatchClearSteps:
		e.handleBatchClearSteps(playerID, env.Seq, raw)
	case proto.TypeBatchSetParameterLock:
		e.handleBatchSetParameterLocks(playerID, env.Seq, raw)
	case proto.TypeSetLoopRegion:
		e.handleSetLoopRegion(playerID, env.Seq, raw)

	case proto.TypePlay:
		e.handlePlay(playerID)
	case proto.TypeStop:
		e.handleStop(playerID)
	case proto.TypeStateHash:
		e.handleStateHash(playerID)
	case proto.TypeRequestSnapshot:
		e.sendSnapshot(playerID)
	case proto.TypeClockSyncRequest:
		e.handleClockSync(playerID, raw)
	case proto.TypeCursorMove:
		e.handleCursorMove(playerID, raw)
	case proto.TypeMuteTrack:
		e.handleMuteTrack(playerID, raw)
	case proto.TypeSoloTrack:
		e.handleSoloTrack(playerID, raw)

	default:
		e.log.Debug("unrecognized message type", "player_id", playerID, "type", env.Type)
	}
}

func (e *Engine) rejectValidation(playerID, message string) {
	e.metrics.MutationsRejectedTotal.WithLabelValues("validation").Inc()
	e.sendError(playerID, message)
}

func (e *Engine) handleToggleStep(playerID string, clientSeq *uint64, raw []byte) {
	var cmd proto.ToggleStepCmd
	if err := json.Unmarshal(raw, &cmd); err != nil {
		e.rejectValidation(playerID, "malformed toggle_step")
		return
	}
	if cmd.Step < 0 || cmd.Step >= model.MaxSteps {
		e.rejectValidation(playerID, "step out of range")
		return
	}
	value, err := e.session.State.ToggleStep(cmd.TrackID, cmd.Step)
	if errors.Is(err, model.ErrTrackNotFound) {
		e.rejectValidation(playerID, "unknown track")
		return
	}
	// Broadcast carries the final value, not the toggle direction, so
	// clients can set rather than toggle under retries.
	e.broadcastMutation(proto.BroadcastStepToggled, clientSeq, map[string]interface{}{
		"trackId": cmd.TrackID, "step": cmd.Step, "value": value,
	})
}

func (e *Engine) handleSetTempo(playerID string, clientSeq *uint64, raw []byte) {
	var cmd proto.SetTempoCmd
	if err := json.Unmarshal(raw, &cmd); err != nil {
		e.rejectValidation(playerID, "malformed set_tempo")
		return
	}
	tempo := validate.ClampTempo(cmd.Tempo)
	e.session.State.SetTempo(tempo)
	e.broadcastMutation(proto.BroadcastTempoSet, clientSeq, map[string]interface{}{"tempo": tempo})
}

func (e *Engine) handleSetSwing(playerID string, clientSeq *uint64, raw []byte) {
	var cmd proto.SetSwingCmd
	if err := json.Unmarshal(raw, &cmd); err != nil {
		e.rejectValidation(playerID, "malformed set_swing")
		return
	}
	swing := validate.ClampSwing(cmd.Swing)
	e.session.State.SetSwing(swing)
	e.broadcastMutation(proto.BroadcastSwingSet, clientSeq, map[string]interface{}{"swing": swing})
}

func (e *Engine) handleSetParameterLock(playerID string, clientSeq *uint64, raw []byte) {
	var cmd proto.SetParameterLockCmd
	if err := json.Unmarshal(raw, &cmd); err != nil {
		e.rejectValidation(playerID, "malformed set_parameter_lock")
		return
	}
	if cmd.Step < 0 || cmd.Step >= model.MaxSteps {
		e.rejectValidation(playerID, "step out of range")
		return
	}
	lock := validate.ValidateParameterLock(cmd.Pitch, cmd.Volume, cmd.Tie)
	if err := e.session.State.SetParameterLock(cmd.TrackID, cmd.Step, lock); errors.Is(err, model.ErrTrackNotFound) {
		e.rejectValidation(playerID, "unknown track")
		return
	}
	e.broadcastMutation(proto.BroadcastParameterLockSet, clientSeq, map[string]interface{}{
		"trackId": cmd.TrackID, "step": cmd.Step, "lock": lock,
	})
}

func (e *Engine) handleAddTrack(playerID string, clientSeq *uint64, raw []byte) {
	var cmd proto.AddTrackCmd
	if err := json.Unmarshal(raw, &cmd); err != nil || cmd.TrackID == "" {
		e.rejectValidation(playerID, "malformed add_track")
		return
	}
	if existing := e.session.State.FindTrack(cmd.TrackID); existing != nil {
		// Re-add of an existing id is a no-op, but the sender's pending
		// mutation must still resolve.
		e.broadcastMutation(proto.BroadcastTrackAdded, clientSeq, map[string]interface{}{"track": existing})
		return
	}
	t := model.NewTrack(cmd.TrackID, cmd.Name, cmd.SampleID)
	if err := e.session.State.AddTrack(t); errors.Is(err, model.ErrTrackCapacity) {
		e.metrics.MutationsRejectedTotal.WithLabelValues("capacity").Inc()
		e.sendError(playerID, "track capacity exceeded")
		return
	}
	e.broadcastMutation(proto.BroadcastTrackAdded, clientSeq, map[string]interface{}{"track": t})
}

func (e *Engine) handleDeleteTrack(playerID string, clientSeq *uint64, raw []byte) {
	var cmd proto.TrackIDCmd
	if err := json.Unmarshal(raw, &cmd); err != nil {
		e.rejectValidation(playerID, "malformed delete_track")
		return
	}
	// Delete-of-absent is a no-op but still resolves the sender's
	// pending mutation.
	_ = e.session.State.DeleteTrack(cmd.TrackID)
	e.broadcastMutation(proto.BroadcastTrackDeleted, clientSeq, map[string]interface{}{"trackId": cmd.TrackID})
}

func (e *Engine) handleClearTrack(playerID string, clientSeq *uint64, raw []byte) {
	var cmd proto.TrackIDCmd
	if err := json.Unmarshal(raw, &cmd); err != nil {
		e.rejectValidation(playerID, "malformed clear_track")
		return
	}
	if err := e.session.State.ClearTrack(cmd.TrackID); errors.Is(err, model.ErrTrackNotFound) {
		e.rejectValidation(playerID, "unknown track")
		return
	}
	e.broadcastMutation(proto.BroadcastTrackCleared, clientSeq, map[string]interface{}{"trackId": cmd.TrackID})
}

func (e *Engine) handleSetTrackSample(playerID string, clientSeq *uint64, raw []byte) {
	var cmd proto.SetTrackSampleCmd
	if err := json.Unmarshal(raw, &cmd); err != nil {
		e.rejectValidation(playerID, "malformed set_track_sample")
		return
	}
	if err := e.session.State.SetTrackSample(cmd.TrackID, cmd.SampleID); errors.Is(err, model.ErrTrackNotFound) {
		e.rejectValidation(playerID, "unknown track")
		return
	}
	e.broadcastMutation(proto.BroadcastTrackSampleSet, clientSeq, map[string]interface{}{
		"trackId": cmd.TrackID, "sampleId": cmd.SampleID,
	})
}

func (e *Engine) handleSetTrackVolume(playerID string, clientSeq *uint64, raw []byte) {
	var cmd proto.SetTrackVolumeCmd
	if err := json.Unmarshal(raw, &cmd); err != nil {
		e.rejectValidation(playerID, "malformed set_track_volume")
		return
	}
	volume := validate.ClampVolume(cmd.Volume)
	if err := e.session.State.SetTrackVolume(cmd.TrackID, volume); errors.Is(err, model.ErrTrackNotFound) {
		e.rejectValidation(playerID, "unknown track")
		return
	}
	e.broadcastMutation(proto.BroadcastTrackVolumeSet, clientSeq, map[string]interface{}{
		"trackId": cmd.TrackID, "volume": volume,
	})
}

func (e *Engine) handleSetTrackTranspose(playerID string, clientSeq *uint64, raw []byte) {
	var cmd proto.SetTrackTransposeCmd
	if err := json.Unmarshal(raw, &cmd); err != nil {
		e.rejectValidation(playerID, "malformed set_track_transpose")
		return
	}
	transpose := validate.ClampTranspose(cmd.Transpose)
	if err := e.session.State.SetTrackTranspose(cmd.TrackID, transpose); errors.Is(err, model.ErrTrackNotFound) {
		e.rejectValidation(playerID, "unknown track")
		return
	}
	e.broadcastMutation(proto.BroadcastTrackTransposeSet, clientSeq, map[string]interface{}{
		"trackId": cmd.TrackID, "transpose": transpose,
	})
}

func (e *Engine) handleSetTrackStepCount(playerID string, clientSeq *uint64, raw []byte) {
	var cmd proto.SetTrackStepCountCmd
	if err := json.Unmarshal(raw, &cmd); err != nil {
		e.rejectValidation(playerID, "malformed set_track_step_count")
		return
	}
	if !validate.ValidateStepCount(cmd.StepCount) {
		e.rejectValidation(playerID, "unsupported step count")
		return
	}
	if err := e.session.State.SetTrackStepCount(cmd.TrackID, cmd.StepCount); errors.Is(err, model.ErrTrackNotFound) {
		e.rejectValidation(playerID, "unknown track")
		return
	}
	e.broadcastMutation(proto.BroadcastTrackStepCountSet, clientSeq, map[string]interface{}{
		"trackId": cmd.TrackID, "stepCount": cmd.StepCount,
	})
}

// trackSwingWire decodes set_track_swing's nullable swing (the wire
// payload may omit it to clear a track's per-track override); proto's
// SetTrackSwingCmd carries a bare int so this is decoded locally.
type trackSwingWire struct {
	TrackID string `json:"trackId"`
	Swing   *int   `json:"swing"`
}

func (e *Engine) handleSetTrackSwing(playerID string, clientSeq *uint64, raw []byte) {
	var w trackSwingWire
	if err := json.Unmarshal(raw, &w); err != nil {
		e.rejectValidation(playerID, "malformed set_track_swing")
		return
	}
	var swing *int
	if w.Swing != nil {
		clamped := validate.ClampSwing(*w.Swing)
		swing = &clamped
	}
	if err := e.session.State.SetTrackSwing(w.TrackID, swing); errors.Is(err, model.ErrTrackNotFound) {
		e.rejectValidation(playerID, "unknown track")
		return
	}
	e.broadcastMutation(proto.BroadcastTrackSwingSet, clientSeq, map[string]interface{}{
		"trackId": w.TrackID, "swing": swing,
	})
}

func (e *Engine) handleSetEffects(playerID string, clientSeq *uint64, raw []byte) {
	effects, err := proto.DecodeEffects(raw)
	if err != nil {
		e.rejectValidation(playerID, err.Error())
		return
	}
	if err := validate.ValidateEffects(effects); err != nil {
		e.rejectValidation(playerID, err.Error())
		return
	}
	e.session.State.SetEffects(effects)
	e.broadcastMutation(proto.BroadcastEffectsSet, clientSeq, map[string]interface{}{"effects": effects})
}

func (e *Engine) handleSetScale(playerID string, clientSeq *uint64, raw []byte) {
	var cmd proto.SetScaleCmd
	if err := json.Unmarshal(raw, &cmd); err != nil {
		e.rejectValidation(playerID, "malformed set_scale")
		return
	}
	if !validate.ValidateScaleRoot(cmd.Root) || !validate.ValidateScaleID(cmd.ScaleID) {
		e.rejectValidation(playerID, "unrecognized scale")
		return
	}
	scale := &model.Scale{Root: cmd.Root, ScaleID: cmd.ScaleID, Locked: cmd.Locked}
	e.session.State.SetScale(scale)
	e.broadcastMutation(proto.BroadcastScaleSet, clientSeq, map[string]interface{}{"scale": scale})
}

func (e *Engine) handleSetFMParams(playerID string, clientSeq *uint64, raw []byte) {
	var cmd proto.SetFMParamsCmd
	if err := json.Unmarshal(raw, &cmd); err != nil {
		e.rejectValidation(playerID, "malformed set_fm_params")
		return
	}
	if err := e.session.State.SetFMParams(cmd.TrackID, cmd.Params); errors.Is(err, model.ErrTrackNotFound) {
		e.rejectValidation(playerID, "unknown track")
		return
	}
	e.broadcastMutation(proto.BroadcastFMParamsSet, clientSeq, map[string]interface{}{
		"trackId": cmd.TrackID, "params": cmd.Params,
	})
}

func (e *Engine) handleCopySequence(playerID string, clientSeq *uint64, raw []byte) {
	var cmd proto.CopySequenceCmd
	if err := json.Unmarshal(raw, &cmd); err != nil {
		e.rejectValidation(playerID, "malformed copy_sequence")
		return
	}
	if err := e.session.State.CopySequence(cmd.SourceTrackID, cmd.DestTrackID); errors.Is(err, model.ErrTrackNotFound) {
		e.rejectValidation(playerID, "unknown source or destination track")
		return
	}
	e.broadcastMutation(proto.BroadcastSequenceCopied, clientSeq, map[string]interface{}{
		"sourceTrackId": cmd.SourceTrackID, "destTrackId": cmd.DestTrackID,
	})
}

func (e *Engine) handleMoveSequence(playerID string, clientSeq *uint64, raw []byte) {
	var cmd proto.CopySequenceCmd
	if err := json.Unmarshal(raw, &cmd); err != nil {
		e.rejectValidation(playerID, "malformed move_sequence")
		return
	}
	if err := e.session.State.MoveSequence(cmd.SourceTrackID, cmd.DestTrackID); errors.Is(err, model.ErrTrackNotFound) {
		e.rejectValidation(playerID, "unknown source or destination track")
		return
	}
	e.broadcastMutation(proto.BroadcastSequenceMoved, clientSeq, map[string]interface{}{
		"sourceTrackId": cmd.SourceTrackID, "destTrackId": cmd.DestTrackID,
	})
}

func (e *Engine) handleSetSessionName(playerID string, clientSeq *uint64, raw []byte) {
	var cmd proto.SetSessionNameCmd
	if err := json.Unmarshal(raw, &cmd); err != nil {
		e.rejectValidation(playerID, "malformed set_session_name")
		return
	}
	name, err := validate.ValidateSessionName(cmd.Name)
	if err != nil {
		e.rejectValidation(playerID, err.Error())
		return
	}
	if name == nil {
		e.session.Name = ""
	} else {
		e.session.Name = *name
	}
	e.broadcastMutation(proto.BroadcastSessionNameSet, clientSeq, map[string]interface{}{"name": name})
}

func (e *Engine) handleBatchClearSteps(playerID string, clientSeq *uint64, raw []byte) {
	var cmd proto.BatchClearStepsCmd
	if err := json.Unmarshal(raw, &cmd); err != nil {
		e.rejectValidation(playerID, "malformed batch_clear_steps")
		return
	}
	inRange := cmd.Steps[:0]
	for _, step := range cmd.Steps {
		if step >= 0 && step < model.MaxSteps {
			inRange = append(inRange, step)
		}
	}
	if err := e.session.State.BatchClearSteps(cmd.TrackID, inRange); errors.Is(err, model.ErrTrackNotFound) {
		e.rejectValidation(playerID, "unknown track")
		return
	}
	e.broadcastMutation(proto.BroadcastStepsBatchCleared, clientSeq, map[string]interface{}{
		"trackId": cmd.TrackID, "steps": inRange,
	})
}

func (e *Engine) handleBatchSetParameterLocks(playerID string, clientSeq *uint64, raw []byte) {
	var cmd proto.BatchSetParameterLocksCmd
	if err := json.Unmarshal(raw, &cmd); err != nil {
		e.rejectValidation(playerID, "malformed batch_set_parameter_locks")
		return
	}
	locks := make(map[int]*model.Plock, len(cmd.Locks))
	for key, lp := range cmd.Locks {
		step, err := strconv.Atoi(key)
		if err != nil || step < 0 || step >= model.MaxSteps {
			continue
		}
		if lp == nil {
			locks[step] = nil
			continue
		}
		locks[step] = validate.ValidateParameterLock(lp.Pitch, lp.Volume, lp.Tie)
	}
	if err := e.session.State.BatchSetParameterLocks(cmd.TrackID, locks); errors.Is(err, model.ErrTrackNotFound) {
		e.rejectValidation(playerID, "unknown track")
		return
	}
	e.broadcastMutation(proto.BroadcastParameterLocksBatchSet, clientSeq, map[string]interface{}{
		"trackId": cmd.TrackID, "locks": locks,
	})
}

func (e *Engine) handleSetLoopRegion(playerID string, clientSeq *uint64, raw []byte) {
	var cmd proto.SetLoopRegionCmd
	if err := json.Unmarshal(raw, &cmd); err != nil {
		e.rejectValidation(playerID, "malformed set_loop_region")
		return
	}
	e.session.State.SetLoopRegion(cmd.Start, cmd.End)
	e.broadcastMutation(proto.BroadcastLoopRegionSet, clientSeq, map[string]interface{}{
		"start": e.session.State.LoopRegion.Start, "end": e.session.State.LoopRegion.End,
	})
}

// --- Read-only commands: never mutatingTypes, never dirty the
// session, permitted on published sessions. ---

func (e *Engine) handlePlay(playerID string) {
	if e.playing[playerID] {
		return
	}
	e.playing[playerID] = true
	e.broadcastInformationalAll(proto.BroadcastPlaybackStarted, map[string]interface{}{"playerId": playerID})
}

func (e *Engine) handleStop(playerID string) {
	if !e.playing[playerID] {
		return
	}
	delete(e.playing, playerID)
	e.broadcastInformationalAll(proto.BroadcastPlaybackStopped, map[string]interface{}{"playerId": playerID})
}

func (e *Engine) handleStateHash(playerID string) {
	s, ok := e.streams[playerID]
	if !ok {
		return
	}
	e.sendTo(s, map[string]interface{}{
		"type": proto.TypeStateHash,
		"hash": canon.Hash(&e.session.State),
	})
}

func (e *Engine) handleClockSync(playerID string, raw []byte) {
	var cmd proto.ClockSyncRequestCmd
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return
	}
	s, ok := e.streams[playerID]
	if !ok {
		return
	}
	e.sendTo(s, map[string]interface{}{
		"type":       proto.BroadcastClockSyncResponse,
		"clientTime": cmd.ClientTime,
		"serverTime": time.Now().UnixMilli(),
	})
}

func (e *Engine) handleCursorMove(playerID string, raw []byte) {
	var cmd proto.CursorMoveCmd
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return
	}
	pos := validate.ValidateCursorPosition(cmd.X, cmd.Y, cmd.TrackID, cmd.Step)
	e.broadcastInformationalExcept(playerID, proto.BroadcastCursorMoved, map[string]interface{}{
		"playerId": playerID, "x": pos.X, "y": pos.Y, "trackId": pos.TrackID, "step": pos.Step,
	})
}

// muteSoloWire decodes mute_track/solo_track's shared {trackId, value}
// shape.
type muteSoloWire struct {
	TrackID string `json:"trackId"`
	Value   bool   `json:"value"`
}

func (e *Engine) handleMuteTrack(playerID string, raw []byte) {
	var w muteSoloWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return
	}
	// Local-only: mutates the in-memory view so joiners' state_sync
	// reflects it, but never sets dirty. flushLocked clears
	// Muted/Soloed in the record it saves and canon.Hash excludes them,
	// so this never reaches durable storage or the canonical hash.
	if err := e.session.State.SetMuted(w.TrackID, w.Value); err != nil {
		return
	}
	e.broadcastInformationalAll(proto.BroadcastTrackMuted, map[string]interface{}{
		"trackId": w.TrackID, "muted": w.Value, "playerId": playerID,
	})
}

func (e *Engine) handleSoloTrack(playerID string, raw []byte) {
	var w muteSoloWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return
	}
	if err := e.session.State.SetSoloed(w.TrackID, w.Value); err != nil {
		return
	}
	e.broadcastInformationalAll(proto.BroadcastTrackSoloed, map[string]interface{}{
		"trackId": w.TrackID, "soloed": w.Value, "playerId": playerID,
	})
}
