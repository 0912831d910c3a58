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
	"fmt"

	"github.com/aleutian-labs/stepseq/internal/model"
)

// Command payload shapes. Each mirrors one inbound command type's
// fields; validation/clamping happens in internal/validate, not here
// — this package only shapes the wire bytes into typed Go values.

type ToggleStepCmd struct {
	TrackID string `json:"trackId"`
	Step    int    `json:"step"`
}

type SetTempoCmd struct {
	Tempo int `json:"tempo"`
}

type SetSwingCmd struct {
	Swing int `json:"swing"`
}

type SetParameterLockCmd struct {
	TrackID string   `json:"trackId"`
	Step    int      `json:"step"`
	Pitch   *int     `json:"pitch,omitempty"`
	Volume  *float64 `json:"volume,omitempty"`
	Tie     *bool    `json:"tie,omitempty"`
}

type AddTrackCmd struct {
	TrackID  string `json:"trackId"`
	Name     string `json:"name"`
	SampleID string `json:"sampleId"`
}

type TrackIDCmd struct {
	TrackID string `json:"trackId"`
}

type SetTrackSampleCmd struct {
	TrackID  string `json:"trackId"`
	SampleID string `json:"sampleId"`
}

type SetTrackVolumeCmd struct {
	TrackID string  `json:"trackId"`
	Volume  float64 `json:"volume"`
}

type SetTrackTransposeCmd struct {
	TrackID   string `json:"trackId"`
	Transpose int    `json:"transpose"`
}

type SetTrackStepCountCmd struct {
	TrackID   string `json:"trackId"`
	StepCount int    `json:"stepCount"`
}

type SetTrackSwingCmd struct {
	TrackID string `json:"trackId"`
	Swing   int    `json:"swing"`
}

// effectsWire mirrors model.Effects' shape plus the legacy field
// names that must be explicitly rejected. Including them
// here, as *json.RawMessage sinks, lets DecodeEffects
// detect their presence even though they have no target field.
type effectsWire struct {
	Reverb struct {
		Decay float64 `json:"decay"`
		Wet   float64 `json:"wet"`
		Mix   *json.RawMessage `json:"mix,omitempty"`
	} `json:"reverb"`
	Delay struct {
		Time     string  `json:"time"`
		Feedback float64 `json:"feedback"`
		Wet      float64 `json:"wet"`
		Rate     *json.RawMessage `json:"rate,omitempty"`
	} `json:"delay"`
	Chorus struct {
		Frequency float64 `json:"frequency"`
		Depth     float64 `json:"depth"`
		Wet       float64 `json:"wet"`
	} `json:"chorus"`
	Distortion struct {
		Amount float64 `json:"amount"`
		Wet    float64 `json:"wet"`
		Drive  *json.RawMessage `json:"drive,omitempty"`
	} `json:"distortion"`
}

// DecodeEffects decodes a set_effects payload, rejecting the legacy
// field names (reverb.mix, delay.rate, distortion.drive) that earlier
// client versions sent. Range validation happens separately in
// internal/validate.ValidateEffects.
func DecodeEffects(raw json.RawMessage) (*model.Effects, error) {
	var w effectsWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("proto: malformed effects payload: %w", err)
	}
	if w.Reverb.Mix != nil {
		return nil, fmt.Errorf("proto: legacy field reverb.mix is not supported, use reverb.wet")
	}
	if w.Delay.Rate != nil {
		return nil, fmt.Errorf("proto: legacy field delay.rate is not supported, use delay.time")
	}
	if w.Distortion.Drive != nil {
		return nil, fmt.Errorf("proto: legacy field distortion.drive is not supported, use distortion.amount")
	}
	return &model.Effects{
		Reverb: model.ReverbEffect{Decay: w.Reverb.Decay, Wet: w.Reverb.Wet},
		Delay: model.DelayEffect{
			Time:     w.Delay.Time,
			Feedback: w.Delay.Feedback,
			Wet:      w.Delay.Wet,
		},
		Chorus: model.ChorusEffect{
			Frequency: w.Chorus.Frequency,
			Depth:     w.Chorus.Depth,
			Wet:       w.Chorus.Wet,
		},
		Distortion: model.DistortionEffect{
			Amount: w.Distortion.Amount,
			Wet:    w.Distortion.Wet,
		},
	}, nil
}

type SetScaleCmd struct {
	Root    string `json:"root"`
	ScaleID string `json:"scaleId"`
	Locked  bool   `json:"locked"`
}

type SetFMParamsCmd struct {
	TrackID string             `json:"trackId"`
	Params  map[string]float64 `json:"params"`
}

type CopySequenceCmd struct {
	SourceTrackID string `json:"sourceTrackId"`
	DestTrackID   string `json:"destTrackId"`
}

type SetSessionNameCmd struct {
	Name *string `json:"name"`
}

type BatchClearStepsCmd struct {
	TrackID string `json:"trackId"`
	Steps   []int  `json:"steps"`
}

type BatchSetParameterLocksCmd struct {
	TrackID string                  `json:"trackId"`
	Locks   map[string]*lockPayload `json:"locks"`
}

type lockPayload struct {
	Pitch  *int     `json:"pitch,omitempty"`
	Volume *float64 `json:"volume,omitempty"`
	Tie    *bool    `json:"tie,omitempty"`
}

type SetLoopRegionCmd struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type CursorMoveCmd struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	TrackID *string `json:"trackId,omitempty"`
	Step    *int    `json:"step,omitempty"`
}

type ClockSyncRequestCmd struct {
	ClientTime int64 `json:"clientTime"`
}
