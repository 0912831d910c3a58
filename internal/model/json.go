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

import "encoding/json"

// trackWire mirrors Track's exported shape for JSON decode, plus the
// deprecated playbackMode field that only ever shows up in older
// snapshots. Decoding through this alias avoids infinite recursion
// through Track's own UnmarshalJSON.
type trackWire struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	SampleID       string             `json:"sampleId"`
	Steps          [MaxSteps]bool     `json:"steps"`
	ParameterLocks [MaxSteps]*Plock   `json:"parameterLocks"`
	Volume         float64            `json:"volume"`
	Muted          bool               `json:"muted"`
	Soloed         bool               `json:"soloed"`
	Transpose      int                `json:"transpose"`
	StepCount      int                `json:"stepCount"`
	Swing          *int               `json:"swing,omitempty"`
	FMParams       map[string]float64 `json:"fmParams,omitempty"`
	PlaybackMode   *string            `json:"playbackMode,omitempty"`
}

// UnmarshalJSON tolerates the deprecated playbackMode field seen in
// older mock data: it is captured then discarded, never surfaced on
// the public Track API and never re-written on save.
func (t *Track) UnmarshalJSON(data []byte) error {
	var w trackWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t.ID = w.ID
	t.Name = w.Name
	t.SampleID = w.SampleID
	t.Steps = w.Steps
	t.ParameterLocks = w.ParameterLocks
	t.Volume = w.Volume
	t.Muted = w.Muted
	t.Soloed = w.Soloed
	t.Transpose = w.Transpose
	t.StepCount = w.StepCount
	t.Swing = w.Swing
	t.FMParams = w.FMParams
	t.legacyPlaybackMode = w.PlaybackMode
	return nil
}
