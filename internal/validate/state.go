// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate

import (
	"fmt"

	"github.com/aleutian-labs/stepseq/internal/model"
)

// ValidateStateInvariants runs the full invariant sweep
// and returns every violation found (nil slice means valid).
func ValidateStateInvariants(s *model.SessionState) []string {
	var errs []string

	if len(s.Tracks) > model.MaxTracks {
		errs = append(errs, fmt.Sprintf("too many tracks: %d > %d", len(s.Tracks), model.MaxTracks))
	}
	seen := make(map[string]bool, len(s.Tracks))
	for _, t := range s.Tracks {
		if seen[t.ID] {
			errs = append(errs, fmt.Sprintf("duplicate track id %q", t.ID))
		}
		seen[t.ID] = true

		if t.Volume < model.MinVolume || t.Volume > model.MaxVolume {
			errs = append(errs, fmt.Sprintf("track %q volume out of range", t.ID))
		}
		if t.Transpose < model.MinTranspose || t.Transpose > model.MaxTranspose {
			errs = append(errs, fmt.Sprintf("track %q transpose out of range", t.ID))
		}
		if !model.ValidStepCounts[t.StepCount] {
			errs = append(errs, fmt.Sprintf("track %q stepCount %d not approved", t.ID, t.StepCount))
		}
		if t.Swing != nil && (*t.Swing < model.MinSwing || *t.Swing > model.MaxSwing) {
			errs = append(errs, fmt.Sprintf("track %q swing out of range", t.ID))
		}
	}

	if s.Tempo < model.MinTempo || s.Tempo > model.MaxTempo {
		errs = append(errs, fmt.Sprintf("tempo %d out of range", s.Tempo))
	}
	if s.Swing < model.MinSwing || s.Swing > model.MaxSwing {
		errs = append(errs, fmt.Sprintf("swing %d out of range", s.Swing))
	}
	if s.LoopRegion != nil && s.LoopRegion.Start > s.LoopRegion.End {
		errs = append(errs, "loopRegion.start > loopRegion.end")
	}
	if err := ValidateEffects(s.Effects); err != nil {
		errs = append(errs, err.Error())
	}
	if s.Scale != nil {
		if !model.ValidScaleRoots[s.Scale.Root] {
			errs = append(errs, fmt.Sprintf("scale root %q not recognized", s.Scale.Root))
		}
		if !model.ValidScaleIDs[s.Scale.ScaleID] {
			errs = append(errs, fmt.Sprintf("scale id %q not recognized", s.Scale.ScaleID))
		}
	}

	return errs
}

// RepairResult summarizes the normalizations RepairStateInvariants
// applied.
type RepairResult struct {
	Repairs []string
}

// RepairStateInvariants best-effort normalizes state in place:
// deduplicating track ids (first instance wins), clamping
// tempo/swing/volume/stepCount/transpose, and dropping unrecognized
// scale/effects data. It is idempotent: repeated application is a
// no-op once the state is already valid.
func RepairStateInvariants(s *model.SessionState) RepairResult {
	var result RepairResult

	seen := make(map[string]bool, len(s.Tracks))
	deduped := s.Tracks[:0:0]
	for _, t := range s.Tracks {
		if seen[t.ID] {
			result.Repairs = append(result.Repairs, fmt.Sprintf("dropped duplicate track id %q", t.ID))
			continue
		}
		seen[t.ID] = true
		deduped = append(deduped, t)
	}
	s.Tracks = deduped

	if len(s.Tracks) > model.MaxTracks {
		result.Repairs = append(result.Repairs, fmt.Sprintf("truncated tracks from %d to %d", len(s.Tracks), model.MaxTracks))
		s.Tracks = s.Tracks[:model.MaxTracks]
	}

	for _, t := range s.Tracks {
		if clamped := ClampVolume(t.Volume); clamped != t.Volume {
			t.Volume = clamped
			result.Repairs = append(result.Repairs, fmt.Sprintf("clamped track %q volume", t.ID))
		}
		if clamped := ClampTranspose(t.Transpose); clamped != t.Transpose {
			t.Transpose = clamped
			result.Repairs = append(result.Repairs, fmt.Sprintf("clamped track %q transpose", t.ID))
		}
		if !model.ValidStepCounts[t.StepCount] {
			t.StepCount = 16
			result.Repairs = append(result.Repairs, fmt.Sprintf("reset track %q stepCount to default", t.ID))
		}
		if t.Swing != nil {
			if clamped := ClampSwing(*t.Swing); clamped != *t.Swing {
				*t.Swing = clamped
				result.Repairs = append(result.Repairs, fmt.Sprintf("clamped track %q swing", t.ID))
			}
		}
	}

	if clamped := ClampTempo(s.Tempo); clamped != s.Tempo {
		s.Tempo = clamped
		result.Repairs = append(result.Repairs, "clamped tempo")
	}
	if clamped := ClampSwing(s.Swing); clamped != s.Swing {
		s.Swing = clamped
		result.Repairs = append(result.Repairs, "clamped swing")
	}
	if s.LoopRegion != nil && s.LoopRegion.Start > s.LoopRegion.End {
		s.LoopRegion.Start, s.LoopRegion.End = s.LoopRegion.End, s.LoopRegion.Start
		result.Repairs = append(result.Repairs, "normalized loopRegion order")
	}
	if s.Effects != nil {
		if err := ValidateEffects(s.Effects); err != nil {
			s.Effects = nil
			result.Repairs = append(result.Repairs, "dropped invalid effects rack: "+err.Error())
		}
	}
	if s.Scale != nil {
		if !model.ValidScaleRoots[s.Scale.Root] || !model.ValidScaleIDs[s.Scale.ScaleID] {
			s.Scale = nil
			result.Repairs = append(result.Repairs, "dropped invalid scale")
		}
	}
	if s.Version == 0 {
		s.Version = model.CurrentSchemaVersion
		result.Repairs = append(result.Repairs, "set missing schema version")
	}

	return result
}

// ValidateSessionState reports whether a (possibly partial) candidate
// state is acceptable for the HTTP create/update paths, running
// per-track subvalidation. It does not mutate s.
func ValidateSessionState(s *model.SessionState) (bool, []string) {
	errs := ValidateStateInvariants(s)
	return len(errs) == 0, errs
}
