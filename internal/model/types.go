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

// Session is the persistent, one-per-id entity. It wraps the mutable
// SessionState plus lineage and lifecycle metadata.
type Session struct {
	ID              string `json:"id"`
	CreatedAt       int64  `json:"createdAt"`
	UpdatedAt       int64  `json:"updatedAt"`
	LastAccessedAt  int64  `json:"lastAccessedAt"`
	Name            string `json:"name,omitempty"`
	RemixedFrom     string `json:"remixedFrom,omitempty"`
	RemixedFromName string `json:"remixedFromName,omitempty"`
	RemixCount      int    `json:"remixCount"`
	Immutable       bool   `json:"immutable"`

	State SessionState `json:"state"`
}

// SessionState is the authoritative, mutated-in-place sequencer state
// for one session.
type SessionState struct {
	Tracks     []*Track    `json:"tracks"`
	Tempo      int         `json:"tempo"`
	Swing      int         `json:"swing"`
	Effects    *Effects    `json:"effects,omitempty"`
	Scale      *Scale      `json:"scale,omitempty"`
	LoopRegion *LoopRegion `json:"loopRegion,omitempty"`
	Version    int         `json:"version"`
}

// Track is one instrument lane: a 128-slot step buffer plus per-step
// parameter locks and per-track parameters.
type Track struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	SampleID       string            `json:"sampleId"`
	Steps          [MaxSteps]bool    `json:"steps"`
	ParameterLocks [MaxSteps]*Plock  `json:"parameterLocks"`
	Volume         float64           `json:"volume"`
	Muted          bool              `json:"muted"`
	Soloed         bool              `json:"soloed"`
	Transpose      int               `json:"transpose"`
	StepCount      int               `json:"stepCount"`
	Swing          *int              `json:"swing,omitempty"`
	FMParams       map[string]float64 `json:"fmParams,omitempty"`

	// legacyPlaybackMode tolerates an older mock-data field on read.
	// It is never part of the canonical form and never re-serialized.
	legacyPlaybackMode *string
}

// Plock is a parameter lock: a per-step override of pitch, volume and
// tie. An empty lock normalizes to nil at the validation boundary.
type Plock struct {
	Pitch  *int     `json:"pitch,omitempty"`
	Volume *float64 `json:"volume,omitempty"`
	Tie    *bool    `json:"tie,omitempty"`
}

// Effects is the required shape for the effects rack when present.
type Effects struct {
	Reverb     ReverbEffect     `json:"reverb"`
	Delay      DelayEffect      `json:"delay"`
	Chorus     ChorusEffect     `json:"chorus"`
	Distortion DistortionEffect `json:"distortion"`
}

type ReverbEffect struct {
	Decay float64 `json:"decay"`
	Wet   float64 `json:"wet"`
}

type DelayEffect struct {
	Time     string  `json:"time"`
	Feedback float64 `json:"feedback"`
	Wet      float64 `json:"wet"`
}

type ChorusEffect struct {
	Frequency float64 `json:"frequency"`
	Depth     float64 `json:"depth"`
	Wet       float64 `json:"wet"`
}

type DistortionEffect struct {
	Amount float64 `json:"amount"`
	Wet    float64 `json:"wet"`
}

// Scale pins the session to a root note and scale, optionally locked
// against further changes.
type Scale struct {
	Root    string `json:"root"`
	ScaleID string `json:"scaleId"`
	Locked  bool   `json:"locked"`
}

// LoopRegion is the playback loop window, normalized so Start <= End.
type LoopRegion struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// CursorPosition is a transient pointer-position broadcast, never
// persisted.
type CursorPosition struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	TrackID *string `json:"trackId,omitempty"`
	Step    *int    `json:"step,omitempty"`
}

// PlayerInfo is transient per-connection identity, never persisted.
type PlayerInfo struct {
	ID            string `json:"id"`
	ConnectedAt   int64  `json:"connectedAt"`
	LastMessageAt int64  `json:"lastMessageAt"`
	MessageCount  int    `json:"messageCount"`
	ColorIndex    int    `json:"colorIndex"`
	Animal        string `json:"animal"`
	Color         string `json:"color"`
	Name          string `json:"name"`
}

// NewDefaultSessionState returns a freshly initialized, invariant-valid
// state with no tracks.
func NewDefaultSessionState() SessionState {
	return SessionState{
		Tracks:  []*Track{},
		Tempo:   120,
		Swing:   0,
		Version: CurrentSchemaVersion,
	}
}

// NewTrack returns a track with full-length default buffers.
func NewTrack(id, name, sampleID string) *Track {
	t := &Track{
		ID:        id,
		Name:      name,
		SampleID:  sampleID,
		Volume:    0.8,
		Transpose: 0,
		StepCount: 16,
	}
	return t
}
