package tasks

import (
	"fmt"
	"iter"

	"github.com/desertthunder/radar/internal/models"
)

// MatchSet holds matched releases in insertion order, at most one per release id.
type MatchSet struct {
	releases []models.Release
	index    map[string]struct{}
}

func NewMatchSet() *MatchSet {
	return &MatchSet{index: make(map[string]struct{})}
}

// Add appends r unless a release with the same id is already present.
func (m *MatchSet) Add(r models.Release) bool {
	if _, ok := m.index[r.ID]; ok {
		return false
	}
	m.index[r.ID] = struct{}{}
	m.releases = append(m.releases, r)
	return true
}

func (m *MatchSet) Len() int { return len(m.releases) }

func (m *MatchSet) Releases() []models.Release {
	return append([]models.Release(nil), m.releases...)
}

// IDs returns the release ids in match order.
func (m *MatchSet) IDs() []string {
	ids := make([]string, len(m.releases))
	for i, r := range m.releases {
		ids[i] = r.ID
	}
	return ids
}

// Matches reports whether any of the release's artists is in the affinity set.
func Matches(r models.Release, affinity *AffinitySet) bool {
	for _, id := range r.ArtistIDs {
		if affinity.Contains(id) {
			return true
		}
	}
	return false
}

// MatchResult is the outcome of one pass over the new-release listing.
type MatchResult struct {
	Matches   *MatchSet
	TotalSeen int
	Skipped   []SlotRef
}

// MatchReleases scans every release page against a frozen affinity set.
//
// Empty slots are skipped and reported; every other release counts toward
// TotalSeen whether it matches or not.
func MatchReleases(pages iter.Seq2[models.Page[models.Release], error], affinity *AffinitySet, obs Observer) (*MatchResult, error) {
	if affinity == nil || !affinity.Frozen() {
		return nil, ErrAffinityNotFrozen
	}
	if obs == nil {
		obs = nopObserver{}
	}

	result := &MatchResult{Matches: NewMatchSet()}
	for page, err := range pages {
		if err != nil {
			return nil, fmt.Errorf("failed to read new releases: %w", err)
		}

		for slot, release := range page.Items {
			if release == nil {
				ref := SlotRef{Listing: ListingNewReleases, Page: page.Index, Slot: slot}
				result.Skipped = append(result.Skipped, ref)
				obs.BadSlot(PhaseMatch, ref)
				continue
			}

			result.TotalSeen++
			if release.ID != "" && Matches(*release, affinity) {
				result.Matches.Add(*release)
			}
		}
		obs.PageDone(PhaseMatch, page.Index, result.Matches.Len(), result.TotalSeen)
	}

	return result, nil
}
