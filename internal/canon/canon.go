// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package canon produces a deterministic, byte-for-byte serialization
// of session state for client/server agreement hashing.
//
// Two properties distinguish this from the ordinary wire encoding in
// internal/model:
//
//   - Field order is fixed and object keys are sorted, so two
//     logically-identical states serialize identically regardless of
//     map iteration order or which optional fields were present.
//   - Local-only fields (muted, soloed) are excluded entirely: they
//     are rendered and transmitted but never authoritative, per the
//     "My Ears, My Control" rule.
package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/aleutian-labs/stepseq/internal/model"
)

// canonTrack mirrors Track's fields in a fixed order, dropping Muted
// and Soloed, and normalizing Swing/FMParams absence to stable
// defaults.
type canonTrack struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	SampleID       string          `json:"sampleId"`
	Steps          [model.MaxSteps]bool    `json:"steps"`
	ParameterLocks [model.MaxSteps]*model.Plock `json:"parameterLocks"`
	Volume         float64         `json:"volume"`
	Transpose      int             `json:"transpose"`
	StepCount      int             `json:"stepCount"`
	Swing          int             `json:"swing"`
	FMParams       map[string]float64 `json:"fmParams"`
}

type canonState struct {
	Tracks     []canonTrack   `json:"tracks"`
	Tempo      int            `json:"tempo"`
	Swing      int            `json:"swing"`
	Effects    *model.Effects `json:"effects"`
	Scale      *model.Scale   `json:"scale"`
	LoopRegion *model.LoopRegion `json:"loopRegion"`
	Version    int            `json:"version"`
}

// Canonicalize produces the canonical JSON bytes for state. Optional
// fields with defined defaults are normalized: a track's missing
// per-track swing becomes 0, and a nil fmParams becomes an empty,
// sorted-key object.
func Canonicalize(s *model.SessionState) []byte {
	cs := canonState{
		Tempo:      s.Tempo,
		Swing:      s.Swing,
		Effects:    s.Effects,
		Scale:      s.Scale,
		LoopRegion: s.LoopRegion,
		Version:    s.Version,
	}
	for _, t := range s.Tracks {
		ct := canonTrack{
			ID:             t.ID,
			Name:           t.Name,
			SampleID:       t.SampleID,
			Steps:          t.Steps,
			ParameterLocks: t.ParameterLocks,
			Volume:         t.Volume,
			Transpose:      t.Transpose,
			StepCount:      t.StepCount,
			FMParams:       normalizeParams(t.FMParams),
		}
		if t.Swing != nil {
			ct.Swing = *t.Swing
		}
		cs.Tracks = append(cs.Tracks, ct)
	}

	// encoding/json already sorts map keys on marshal, so FMParams'
	// key order is stable; struct field order is fixed by declaration
	// order above, giving a fully deterministic byte stream.
	out, err := json.Marshal(cs)
	if err != nil {
		// cs contains no channels, functions, or cyclic structures;
		// Marshal cannot fail for this shape.
		panic("canon: unexpected marshal failure: " + err.Error())
	}
	return out
}

func normalizeParams(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	out := make(map[string]float64, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out[k] = m[k]
	}
	return out
}

// Hash returns the hex-encoded sha256 of the canonical serialization,
// used as a cheap integrity check for state snapshots.
func Hash(s *model.SessionState) string {
	sum := sha256.Sum256(Canonicalize(s))
	return hex.EncodeToString(sum[:])
}
