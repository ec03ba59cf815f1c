package tasks

import (
	"errors"
	"fmt"
	"iter"

	"github.com/desertthunder/radar/internal/models"
)

var (
	ErrAffinityFrozen    = errors.New("affinity set is frozen")
	ErrAffinityNotFrozen = errors.New("affinity set is still being built")
)

// AffinitySet is the deduplicated set of artists found in a user's library,
// kept in order of discovery.
type AffinitySet struct {
	order   []models.ArtistID
	index   map[models.ArtistID]struct{}
	skipped []SlotRef
	frozen  bool
}

// NewAffinitySet returns an empty, open set.
func NewAffinitySet() *AffinitySet {
	return &AffinitySet{index: make(map[models.ArtistID]struct{})}
}

// Contains reports whether id is a member.
func (a *AffinitySet) Contains(id models.ArtistID) bool {
	_, ok := a.index[id]
	return ok
}

func (a *AffinitySet) Len() int { return len(a.order) }

// IDs returns the members in discovery order.
func (a *AffinitySet) IDs() []models.ArtistID {
	return append([]models.ArtistID(nil), a.order...)
}

// Freeze closes the set to further pages.
func (a *AffinitySet) Freeze() { a.frozen = true }

func (a *AffinitySet) Frozen() bool { return a.frozen }

// Skipped returns the saved-track slots that held no track.
func (a *AffinitySet) Skipped() []SlotRef {
	return append([]SlotRef(nil), a.skipped...)
}

// Absorb folds one page of saved tracks into the set and returns the number of
// artists added plus the slots that held no track.
//
// Artist ids are first deduplicated within the page, then against the set.
func (a *AffinitySet) Absorb(page models.Page[models.SavedTrack]) (int, []SlotRef, error) {
	if a.frozen {
		return 0, nil, ErrAffinityFrozen
	}

	var skipped []SlotRef
	var pageIDs []models.ArtistID
	inPage := make(map[models.ArtistID]struct{})

	for slot, track := range page.Items {
		if track == nil {
			skipped = append(skipped, SlotRef{Listing: ListingSavedTracks, Page: page.Index, Slot: slot})
			continue
		}
		for _, id := range track.ArtistIDs {
			if id == "" {
				continue
			}
			if _, seen := inPage[id]; seen {
				continue
			}
			inPage[id] = struct{}{}
			pageIDs = append(pageIDs, id)
		}
	}

	a.skipped = append(a.skipped, skipped...)

	added := 0
	for _, id := range pageIDs {
		if a.Contains(id) {
			continue
		}
		a.index[id] = struct{}{}
		a.order = append(a.order, id)
		added++
	}
	return added, skipped, nil
}

// BuildAffinity consumes every saved-track page and returns the frozen set.
//
// An empty library yields an empty set. Any page error aborts the build.
func BuildAffinity(pages iter.Seq2[models.Page[models.SavedTrack], error], obs Observer) (*AffinitySet, error) {
	if obs == nil {
		obs = nopObserver{}
	}

	set := NewAffinitySet()
	for page, err := range pages {
		if err != nil {
			return nil, fmt.Errorf("failed to read saved tracks: %w", err)
		}

		added, skipped, err := set.Absorb(page)
		if err != nil {
			return nil, err
		}
		for _, ref := range skipped {
			obs.BadSlot(PhaseAffinity, ref)
		}
		obs.PageDone(PhaseAffinity, page.Index, added, set.Len())
	}

	set.Freeze()
	return set, nil
}
