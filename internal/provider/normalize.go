package provider

import (
	"log/slog"
	"slices"

	"golang.org/x/text/unicode/norm"
)

// normalizeDeltaItems applies delta-specific quirk handling to a batch of
// items before the reconciliation engine ever sees them. Fixed order:
//  1. NFC-normalize each item's name.
//  2. Deduplicate items appearing multiple times in one page (keep last).
//  3. Reorder so tombstones at a parent are processed before creations,
//     avoiding a spurious "already exists" when a name is reused at the
//     same parent within one page.
func normalizeDeltaItems(items []Item, logger *slog.Logger) []Item {
	for i := range items {
		items[i].Name = norm.NFC.String(items[i].Name)
	}

	items = deduplicateItems(items, logger)
	items = reorderTombstones(items, logger)

	return items
}

// deduplicateItems keeps only the last occurrence of each external id.
// The provider can report the same item more than once in a single page
// if it changed again between pages being assembled server-side.
func deduplicateItems(items []Item, logger *slog.Logger) []Item {
	if len(items) == 0 {
		return items
	}

	reversed := make([]Item, len(items))
	copy(reversed, items)
	slices.Reverse(reversed)

	seen := make(map[string]bool, len(reversed))
	kept := make([]Item, 0, len(reversed))

	for i := range reversed {
		if seen[reversed[i].ExternalID] {
			continue
		}

		seen[reversed[i].ExternalID] = true
		kept = append(kept, reversed[i])
	}

	slices.Reverse(kept)

	if dupes := len(items) - len(kept); dupes > 0 {
		logger.Info("deduplicated items in delta page",
			slog.Int("duplicate_count", dupes), slog.Int("remaining_count", len(kept)))
	}

	return kept
}

// reorderTombstones moves tombstones ahead of non-tombstones that share a
// parent (keeping the relative order within each group, and keeping each
// parent's items in the positions that parent's items already held), so a
// rename-then-recreate at the same parent within one page classifies
// cleanly instead of racing a not-yet-applied delete.
func reorderTombstones(items []Item, logger *slog.Logger) []Item {
	if len(items) == 0 {
		return items
	}

	slots := make(map[string][]int)
	for i := range items {
		slots[items[i].ParentExternalID] = append(slots[items[i].ParentExternalID], i)
	}

	reordered := false

	for _, idx := range slots {
		group := make([]Item, 0, len(idx))
		for _, tomb := range []bool{true, false} {
			for _, i := range idx {
				if items[i].Tombstone == tomb {
					group = append(group, items[i])
				}
			}
		}

		for k, i := range idx {
			reordered = reordered || items[i].ExternalID != group[k].ExternalID
			items[i] = group[k]
		}
	}

	if reordered {
		logger.Debug("reordered tombstones before creations in delta page")
	}

	return items
}
