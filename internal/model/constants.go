// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model holds the step-sequencer session data model: sessions,
// tracks, parameter locks, effects, and the pure mutation operations
// that act on them. It never talks to transport or storage.
package model

// Size and range limits shared between the wire protocol and the
// session engine. These must stay numerically identical to any
// client-side copy of the same constants — that parity is enforced by
// a test fixture, not by code sharing across languages.
const (
	MaxTracks = 16
	MaxSteps  = 128

	MinTempo = 60
	MaxTempo = 180

	MinSwing = 0
	MaxSwing = 100

	MinVolume = 0.0
	MaxVolume = 1.0

	MinTranspose = -24
	MaxTranspose = 24

	MinPlockPitch = -24
	MaxPlockPitch = 24

	MinPlockVolume = 0.0
	MaxPlockVolume = 1.0

	MinCursorPosition = 0.0
	MaxCursorPosition = 100.0

	MaxMessageSize = 64 * 1024

	MaxStreamsPerSession = 10

	MaxSessionNameLength = 100

	// CurrentSchemaVersion is written onto freshly created sessions and
	// compared against on load to decide whether repair/migration runs.
	CurrentSchemaVersion = 1
)

// ValidDelayTimes is the approved set of musical note-length delay
// times. Legacy free-form delay time strings are rejected.
var ValidDelayTimes = map[string]bool{
	"32n": true, "16n": true, "16t": true, "8n": true, "8t": true,
	"4n": true, "4t": true, "2n": true, "2t": true,
	"1n": true, "1m": true, "2m": true, "4m": true,
}

// ValidStepCounts is the approved set of active-window lengths for a
// track. The backing arrays are always MaxSteps long regardless of
// which of these is active.
var ValidStepCounts = map[int]bool{
	3: true, 4: true, 5: true, 6: true, 7: true, 8: true, 9: true,
	10: true, 11: true, 12: true, 13: true, 15: true, 16: true,
	18: true, 20: true, 21: true, 24: true, 27: true, 32: true,
	36: true, 48: true, 64: true, 96: true, 128: true,
}

// ValidScaleRoots is the twelve note names a scale root may take.
var ValidScaleRoots = map[string]bool{
	"C": true, "C#": true, "D": true, "D#": true, "E": true, "F": true,
	"F#": true, "G": true, "G#": true, "A": true, "A#": true, "B": true,
}

// ValidScaleIDs is the set of scales known to the sequencer.
var ValidScaleIDs = map[string]bool{
	"chromatic": true, "major": true, "minor": true, "dorian": true,
	"phrygian": true, "lydian": true, "mixolydian": true, "locrian": true,
	"majorPentatonic": true, "minorPentatonic": true, "blues": true,
	"harmonicMinor": true, "melodicMinor": true,
}
