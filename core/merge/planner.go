// Package merge plans release merges: it matches recordings across releases,
// reconciles medium positions for append merges, validates the requested
// strategy and builds the directive the edit subsystem persists. All
// functions are pure and operate on fully-loaded aggregates; callers load
// data up front and persist results themselves.
package merge

import (
	"fmt"
	"sort"

	"musedb/model"
)

// Request is the validated input for one merge computation. Releases holds
// every candidate (target included) in submission order; the planner never
// mutates it.
type Request struct {
	Strategy        model.MergeStrategy
	TargetReleaseID int64
	Releases        []*model.ReleaseAggregate
	// Confirmed 表示编辑者已确认署名不一致的录音合并组
	Confirmed bool
}

// ValidationError is a recoverable, field-level rejection. The handler maps
// it onto the form instead of failing the request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validationErrorf(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// splitTarget returns the target aggregate and the remaining sources in
// submission order. The target must be part of the candidate set.
func splitTarget(req *Request) (*model.ReleaseAggregate, []*model.ReleaseAggregate, *ValidationError) {
	var target *model.ReleaseAggregate
	sources := make([]*model.ReleaseAggregate, 0, len(req.Releases))
	for _, rel := range req.Releases {
		if rel.Release.ID == req.TargetReleaseID {
			target = rel
			continue
		}
		sources = append(sources, rel)
	}
	if target == nil {
		return nil, nil, validationErrorf("target", "target release %d is not part of the merge", req.TargetReleaseID)
	}
	return target, sources, nil
}

// ValidateRequest checks the structural applicability of the requested
// strategy: known strategy, at least two releases, target inside the set.
// Position collisions for append merges are checked later against the
// reconciled positions (see BuildDirective).
func ValidateRequest(req *Request) *ValidationError {
	if !req.Strategy.Valid() {
		return validationErrorf("strategy", "unknown merge strategy %q", req.Strategy)
	}
	if len(req.Releases) < 2 {
		return validationErrorf("releases", "a merge needs at least two releases")
	}
	seen := make(map[int64]bool, len(req.Releases))
	for _, rel := range req.Releases {
		if seen[rel.Release.ID] {
			return validationErrorf("releases", "release %d listed more than once", rel.Release.ID)
		}
		seen[rel.Release.ID] = true
	}
	_, _, verr := splitTarget(req)
	return verr
}

// MatchRecordings groups tracks positionally (same medium index, same track
// index) across the releases and selects, per group, the destination
// recording from the target release and the source recordings from the
// others. Groups whose tracks do not all share one artist-credit are
// annotated BadMerge; the matcher never blocks on that, the form layer
// demands explicit confirmation instead.
func MatchRecordings(target *model.ReleaseAggregate, sources []*model.ReleaseAggregate) []model.RecordingMerge {
	var groups []model.RecordingMerge

	for mi, medium := range target.Mediums {
		for ti, destTrack := range medium.Tracks {
			dest := target.RecordingFor(destTrack)
			if dest == nil {
				continue
			}

			group := model.RecordingMerge{
				MediumPosition: medium.Medium.Position,
				TrackPosition:  destTrack.Position,
				Destination:    recordingRef(dest),
			}

			credit := destTrack.ArtistCreditID
			seen := map[int64]bool{dest.ID: true}

			for _, src := range sources {
				srcTrack := trackAt(src, mi, ti)
				if srcTrack == nil {
					continue
				}
				rec := src.RecordingFor(srcTrack)
				if rec == nil {
					continue
				}
				if srcTrack.ArtistCreditID != credit {
					group.BadMerge = true
				}
				if seen[rec.ID] {
					// 同一录音无需并入自身
					continue
				}
				seen[rec.ID] = true
				group.Sources = append(group.Sources, recordingRef(rec))
			}

			if len(group.Sources) == 0 {
				continue
			}
			groups = append(groups, group)
		}
	}

	return groups
}

// trackAt returns the track at (medium index, track index) or nil when the
// release has no track there.
func trackAt(rel *model.ReleaseAggregate, mediumIdx, trackIdx int) *model.Track {
	if mediumIdx >= len(rel.Mediums) {
		return nil
	}
	tracks := rel.Mediums[mediumIdx].Tracks
	if trackIdx >= len(tracks) {
		return nil
	}
	return tracks[trackIdx]
}

func recordingRef(rec *model.Recording) model.RecordingRef {
	return model.RecordingRef{
		ID:       rec.ID,
		GID:      rec.GID,
		Title:    rec.Title,
		LengthMs: rec.LengthMs,
	}
}

// ReconcilePositions proposes a new position for every medium of an append
// merge. Mediums keep their relative order and positions, shifted past the
// mediums already placed; a single-medium release whose medium has no name
// gets its position and name inferred from a "(disc N: Name)" title suffix
// when present. Malformed titles fall back to the shifted default. The
// result is sorted ascending by proposed position, ties keep input order.
func ReconcilePositions(target *model.ReleaseAggregate, sources []*model.ReleaseAggregate) []model.MediumChange {
	var changes []model.MediumChange
	highest := 0

	ordered := append([]*model.ReleaseAggregate{target}, sources...)
	for _, rel := range ordered {
		base := highest
		single := len(rel.Mediums) == 1 && !rel.Mediums[0].Medium.Name.Valid

		for _, mw := range rel.Mediums {
			med := mw.Medium
			change := model.MediumChange{
				MediumID:    med.ID,
				ReleaseID:   med.ReleaseID,
				OldPosition: med.Position,
				NewPosition: base + med.Position,
				OldName:     med.Name.String,
				NewName:     med.Name.String,
			}

			if single {
				if pos, name, ok := ParseDiscTitle(rel.Release.Title); ok {
					change.NewPosition = pos
					change.NewName = name
				}
			}

			if change.NewPosition > highest {
				highest = change.NewPosition
			}
			changes = append(changes, change)
		}
	}

	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].NewPosition < changes[j].NewPosition
	})
	return changes
}

// GroupChangesByRelease regroups reconciled medium changes per release for
// form rendering. Release order follows the request, not the sorted
// positions.
func GroupChangesByRelease(req *Request, changes []model.MediumChange) []model.ReleaseMediumsView {
	byRelease := make(map[int64][]model.MediumChange, len(req.Releases))
	for _, ch := range changes {
		byRelease[ch.ReleaseID] = append(byRelease[ch.ReleaseID], ch)
	}

	views := make([]model.ReleaseMediumsView, 0, len(req.Releases))
	for _, rel := range req.Releases {
		views = append(views, model.ReleaseMediumsView{
			ReleaseID:    rel.Release.ID,
			ReleaseTitle: rel.Release.Title,
			Changes:      byRelease[rel.Release.ID],
		})
	}
	return views
}

// checkPositionCollisions rejects an append plan that would place two
// mediums at the same position (possible when disc-pattern inference
// collides with an already occupied slot).
func checkPositionCollisions(changes []model.MediumChange) *ValidationError {
	seen := make(map[int]int64, len(changes))
	for _, ch := range changes {
		if other, dup := seen[ch.NewPosition]; dup {
			return validationErrorf("mediums",
				"mediums %d and %d both end up at position %d", other, ch.MediumID, ch.NewPosition)
		}
		seen[ch.NewPosition] = ch.MediumID
	}
	return nil
}

// Preview computes the view model the merge form renders: medium
// destinations for append merges, recording merge groups and bad-merge
// warnings for full merges.
func Preview(req *Request) (*model.MergePreview, *ValidationError) {
	if verr := ValidateRequest(req); verr != nil {
		return nil, verr
	}
	target, sources, verr := splitTarget(req)
	if verr != nil {
		return nil, verr
	}

	preview := &model.MergePreview{
		Strategy:        req.Strategy,
		TargetReleaseID: target.Release.ID,
	}

	switch req.Strategy {
	case model.MergeStrategyAppend:
		preview.MediumChanges = ReconcilePositions(target, sources)
		preview.ByRelease = GroupChangesByRelease(req, preview.MediumChanges)
	case model.MergeStrategyMerge:
		preview.RecordingMerges = MatchRecordings(target, sources)
		for _, g := range preview.RecordingMerges {
			if g.BadMerge {
				preview.BadMergeCount++
			}
		}
	}

	return preview, nil
}

// BuildDirective validates the request and assembles the directive consumed
// by the edit subsystem. The computation is deterministic: the same request
// always yields an identical directive.
func BuildDirective(req *Request) (*model.MergeDirective, *ValidationError) {
	if verr := ValidateRequest(req); verr != nil {
		return nil, verr
	}
	target, sources, verr := splitTarget(req)
	if verr != nil {
		return nil, verr
	}

	directive := &model.MergeDirective{
		Strategy:        req.Strategy,
		TargetReleaseID: target.Release.ID,
	}
	for _, src := range sources {
		directive.SourceReleaseIDs = append(directive.SourceReleaseIDs, src.Release.ID)
	}

	switch req.Strategy {
	case model.MergeStrategyAppend:
		directive.MediumChanges = ReconcilePositions(target, sources)
		if verr := checkPositionCollisions(directive.MediumChanges); verr != nil {
			return nil, verr
		}
	case model.MergeStrategyMerge:
		directive.RecordingMerges = MatchRecordings(target, sources)
		if !req.Confirmed {
			for _, g := range directive.RecordingMerges {
				if g.BadMerge {
					return nil, validationErrorf("confirmed",
						"recording merge at medium %d track %d has mismatched artist credits and needs confirmation",
						g.MediumPosition, g.TrackPosition)
				}
			}
		}
	}

	return directive, nil
}
