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

import "errors"

// ErrTrackNotFound is returned by mutations that address a track by id
// when no track with that id exists in the session.
var ErrTrackNotFound = errors.New("track not found")

// ErrTrackExists is returned by AddTrack when a track with the given id
// is already present. Callers must still resolve the triggering
// client's pending mutation (see engine's add_track handling) even
// though no mutation occurred here.
var ErrTrackExists = errors.New("track already exists")

// ErrTrackCapacity is returned by AddTrack when the session is already
// at MaxTracks.
var ErrTrackCapacity = errors.New("track capacity exceeded")

// FindTrack returns the track with the given id, or nil.
func (s *SessionState) FindTrack(id string) *Track {
	for _, t := range s.Tracks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// ToggleStep flips steps[step] on the named track and returns the
// resulting value so broadcasts can carry the final state rather than
// the toggle direction (idempotent under client retries).
func (s *SessionState) ToggleStep(trackID string, step int) (bool, error) {
	t := s.FindTrack(trackID)
	if t == nil {
		return false, ErrTrackNotFound
	}
	t.Steps[step] = !t.Steps[step]
	return t.Steps[step], nil
}

// SetStep sets steps[step] directly to value.
func (s *SessionState) SetStep(trackID string, step int, value bool) error {
	t := s.FindTrack(trackID)
	if t == nil {
		return ErrTrackNotFound
	}
	t.Steps[step] = value
	return nil
}

// AddTrack appends a new track. Returns ErrTrackExists (without
// mutating) if the id is already present, and ErrTrackCapacity if the
// session is already at MaxTracks. ErrTrackExists is non-fatal:
// callers still emit a broadcast carrying the original clientSeq.
// ErrTrackCapacity is a rejection: callers reply with an error and
// emit no broadcast.
func (s *SessionState) AddTrack(t *Track) error {
	if s.FindTrack(t.ID) != nil {
		return ErrTrackExists
	}
	if len(s.Tracks) >= MaxTracks {
		return ErrTrackCapacity
	}
	s.Tracks = append(s.Tracks, t)
	return nil
}

// DeleteTrack removes the named track. Returns ErrTrackNotFound
// (without mutating) if absent; callers still emit a broadcast.
func (s *SessionState) DeleteTrack(trackID string) error {
	for i, t := range s.Tracks {
		if t.ID == trackID {
			s.Tracks = append(s.Tracks[:i], s.Tracks[i+1:]...)
			return nil
		}
	}
	return ErrTrackNotFound
}

// ClearTrack resets a track's steps and parameter locks to full-length
// defaults.
func (s *SessionState) ClearTrack(trackID string) error {
	t := s.FindTrack(trackID)
	if t == nil {
		return ErrTrackNotFound
	}
	t.Steps = [MaxSteps]bool{}
	t.ParameterLocks = [MaxSteps]*Plock{}
	return nil
}

// CopySequence copies steps, parameter locks and stepCount from src to
// dst, leaving src untouched.
func (s *SessionState) CopySequence(srcID, dstID string) error {
	src := s.FindTrack(srcID)
	dst := s.FindTrack(dstID)
	if src == nil || dst == nil {
		return ErrTrackNotFound
	}
	dst.Steps = src.Steps
	dst.ParameterLocks = src.ParameterLocks
	dst.StepCount = src.StepCount
	return nil
}

// MoveSequence copies steps, parameter locks and stepCount from src to
// dst, then resets src to full-length defaults.
func (s *SessionState) MoveSequence(srcID, dstID string) error {
	if err := s.CopySequence(srcID, dstID); err != nil {
		return err
	}
	return s.ClearTrack(srcID)
}

// SetTrackStepCount changes only the active-window length; the backing
// arrays remain MaxSteps long (non-destructive).
func (s *SessionState) SetTrackStepCount(trackID string, count int) error {
	t := s.FindTrack(trackID)
	if t == nil {
		return ErrTrackNotFound
	}
	t.StepCount = count
	return nil
}

// SetParameterLock assigns a sanitized lock (or nil, to clear) at step.
func (s *SessionState) SetParameterLock(trackID string, step int, lock *Plock) error {
	t := s.FindTrack(trackID)
	if t == nil {
		return ErrTrackNotFound
	}
	t.ParameterLocks[step] = lock
	return nil
}

// BatchClearSteps clears a set of step indices on one track in one
// atomic application.
func (s *SessionState) BatchClearSteps(trackID string, steps []int) error {
	t := s.FindTrack(trackID)
	if t == nil {
		return ErrTrackNotFound
	}
	for _, step := range steps {
		t.Steps[step] = false
		t.ParameterLocks[step] = nil
	}
	return nil
}

// BatchSetParameterLocks assigns several step/lock pairs on one track
// in one atomic application.
func (s *SessionState) BatchSetParameterLocks(trackID string, locks map[int]*Plock) error {
	t := s.FindTrack(trackID)
	if t == nil {
		return ErrTrackNotFound
	}
	for step, lock := range locks {
		t.ParameterLocks[step] = lock
	}
	return nil
}

// SetLoopRegion normalizes start/end so Start <= End.
func (s *SessionState) SetLoopRegion(start, end int) {
	if start > end {
		start, end = end, start
	}
	s.LoopRegion = &LoopRegion{Start: start, End: end}
}

// SetTempo assigns the session tempo (already clamped by the caller's
// validator).
func (s *SessionState) SetTempo(tempo int) { s.Tempo = tempo }

// SetSwing assigns the session swing (already clamped).
func (s *SessionState) SetSwing(swing int) { s.Swing = swing }

// SetScale assigns the session scale.
func (s *SessionState) SetScale(scale *Scale) { s.Scale = scale }

// SetEffects assigns the session effects rack.
func (s *SessionState) SetEffects(effects *Effects) { s.Effects = effects }

// SetTrackVolume assigns a track's volume (already clamped).
func (s *SessionState) SetTrackVolume(trackID string, volume float64) error {
	t := s.FindTrack(trackID)
	if t == nil {
		return ErrTrackNotFound
	}
	t.Volume = volume
	return nil
}

// SetTrackSample assigns a track's sample id.
func (s *SessionState) SetTrackSample(trackID, sampleID string) error {
	t := s.FindTrack(trackID)
	if t == nil {
		return ErrTrackNotFound
	}
	t.SampleID = sampleID
	return nil
}

// SetTrackTranspose assigns a track's transpose (already clamped).
func (s *SessionState) SetTrackTranspose(trackID string, transpose int) error {
	t := s.FindTrack(trackID)
	if t == nil {
		return ErrTrackNotFound
	}
	t.Transpose = transpose
	return nil
}

// SetTrackSwing assigns a track's per-track swing override (already
// clamped), or clears it when swing is nil.
func (s *SessionState) SetTrackSwing(trackID string, swing *int) error {
	t := s.FindTrack(trackID)
	if t == nil {
		return ErrTrackNotFound
	}
	t.Swing = swing
	return nil
}

// SetFMParams assigns a track's FM synthesis parameters.
func (s *SessionState) SetFMParams(trackID string, params map[string]float64) error {
	t := s.FindTrack(trackID)
	if t == nil {
		return ErrTrackNotFound
	}
	t.FMParams = params
	return nil
}

// SetMuted sets a track's local-only mute flag. Never part of the
// canonical hash or the persisted broadcast contract.
func (s *SessionState) SetMuted(trackID string, muted bool) error {
	t := s.FindTrack(trackID)
	if t == nil {
		return ErrTrackNotFound
	}
	t.Muted = muted
	return nil
}

// SetSoloed sets a track's local-only solo flag.
func (s *SessionState) SetSoloed(trackID string, soloed bool) error {
	t := s.FindTrack(trackID)
	if t == nil {
		return ErrTrackNotFound
	}
	t.Soloed = soloed
	return nil
}
