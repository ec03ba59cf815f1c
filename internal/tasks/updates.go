package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a build run.
//
// Used to send real-time updates to the CLI or web layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase; zero when unknown
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Phase enumerates the stages of a build run.
type Phase int

const (
	PhaseProfile Phase = iota
	PhaseAffinity
	PhaseMatch
	PhaseResolve
	PhaseCreate
	PhaseAppend
	PhaseRecord
)

func (p Phase) String() string {
	switch p {
	case PhaseProfile:
		return "fetch_profile"
	case PhaseAffinity:
		return "build_affinity"
	case PhaseMatch:
		return "match_releases"
	case PhaseResolve:
		return "resolve_releases"
	case PhaseCreate:
		return "create_playlist"
	case PhaseAppend:
		return "add_tracks"
	case PhaseRecord:
		return "record_run"
	default:
		return ""
	}
}

// Listing names a paged collection read during a build.
type Listing string

const (
	ListingSavedTracks Listing = "saved_tracks"
	ListingNewReleases Listing = "new_releases"
)

// SlotRef locates an empty or malformed item in a paged listing.
type SlotRef struct {
	Listing Listing `json:"listing" yaml:"listing"`
	Page    int     `json:"page" yaml:"page"`
	Slot    int     `json:"slot" yaml:"slot"`
}

func (s SlotRef) String() string {
	return fmt.Sprintf("%s page %d slot %d", s.Listing, s.Page, s.Slot)
}

func fetchProfileUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseProfile,
		Step:    1,
		Total:   1,
		Message: "Fetching user profile...",
	}
}

func affinityPageUpdate(page, added, size int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseAffinity,
		Step:    page + 1,
		Message: fmt.Sprintf("Saved tracks page %d: %d new artists (%d total)", page+1, added, size),
		Data:    size,
	}
}

func matchPageUpdate(page, matched, seen int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseMatch,
		Step:    page + 1,
		Message: fmt.Sprintf("New releases page %d: %d matched of %d seen", page+1, matched, seen),
		Data:    matched,
	}
}

func badSlotUpdate(phase Phase, ref SlotRef) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    ref.Page + 1,
		Message: fmt.Sprintf("Skipped empty item at %s", ref),
		Data:    ref,
	}
}

func resolveUpdate(batches, ids int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseResolve,
		Step:    0,
		Total:   batches,
		Message: fmt.Sprintf("Resolving %d releases in %d batches...", ids, batches),
	}
}

func createPlaylistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseCreate,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist %q...", name),
	}
}

func addTracksUpdate(step, total, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseAppend,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Adding %d tracks...", step, total, count),
	}
}

func recordRunUpdate(result *BuildResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseRecord,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Matched %d of %d releases", result.MatchedCount, result.TotalSeen),
		Data:    result,
	}
}
