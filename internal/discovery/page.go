package discovery

import (
	"strings"

	"github.com/influo/discovery/models"
)

// paginateBatch slices one page out of a cached batch. The cursor is located
// by a linear identifier scan; an unknown cursor restarts from the top.
//
// Exhaustion rule: when the tail left after this page is smaller than a full
// page and the whole batch holds fewer than two pages, the batch is treated
// as spent. The caller then mints a future cursor and invalidates the cache
// entry so the next request regenerates fresh candidates.
func paginateBatch(b *CandidateBatch, cursor string, limit int) (page []models.CreatorProfile, hasMore bool, next Cursor, exhausted bool) {
	start := 0
	if cursor != "" {
		for i, item := range b.Items {
			if item.ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if start > len(b.Items) {
		start = len(b.Items)
	}
	end := start + limit
	if end > len(b.Items) {
		end = len(b.Items)
	}
	page = b.Items[start:end]
	remaining := len(b.Items) - end

	switch {
	case remaining < limit && len(b.Items) < 2*limit:
		return page, true, FutureCursor(), true
	case remaining > 0:
		return page, true, RealCursor(page[len(page)-1].ID), false
	default:
		return page, false, Cursor{}, false
	}
}

// harvestTags folds the canonical tags of returned items into the query's
// expanded tag set, deduplicating case-insensitively. This is what the
// client sees as normalizedTags.
func harvestTags(queryTags []string, items []models.CreatorProfile) []string {
	out := make([]string, 0, len(queryTags))
	seen := make(map[string]struct{})
	add := func(tag string) {
		c := CanonicalTag(tag)
		if c == "" {
			return
		}
		k := strings.ToLower(c)
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	for _, t := range queryTags {
		add(t)
	}
	for _, item := range items {
		for _, t := range item.Tags {
			add(t)
		}
	}
	return out
}

// relatedItemTags returns the item tags fuzzy-related to the requested tag
// set, for the relatedTags echo. Empty when the query had no tags.
func relatedItemTags(queryTags []string, items []models.CreatorProfile) []string {
	if len(queryTags) == 0 {
		return nil
	}
	var out []string
	seen := make(map[string]struct{})
	for _, item := range items {
		for _, t := range item.Tags {
			c := CanonicalTag(t)
			k := strings.ToLower(c)
			if _, ok := seen[k]; ok {
				continue
			}
			if RelatedToAny(c, queryTags) {
				seen[k] = struct{}{}
				out = append(out, c)
			}
		}
	}
	return out
}

// countProvenance tallies page items per origin path.
func countProvenance(items []models.CreatorProfile) models.ProvenanceCounts {
	var pc models.ProvenanceCounts
	for _, item := range items {
		if item.Provenance == models.ProvenanceGenerated {
			pc.AI++
		} else {
			pc.DB++
		}
	}
	return pc
}
