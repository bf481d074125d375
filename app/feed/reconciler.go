package feed

import (
	"log/slog"
	"time"
)

// Reconcile diffs a parsed document against the stored update-relevant
// snapshots and computes the minimal set of writes. It is pure computation:
// no I/O, no storage access. The caller stamps caching tokens onto the
// returned feed intent before applying it.
//
// prior is nil when the feed has never been stored. entryPriors maps entry
// id to its stored snapshot. batchStart is the wall-clock start of the
// update batch and becomes last_updated on every intent.
func Reconcile(parsed *ParsedFeed, prior *FeedForUpdate, entryPriors map[string]EntryForUpdate, batchStart time.Time) (FeedUpdateIntent, []EntryUpdateIntent) {
	intent := FeedUpdateIntent{
		URL:         parsed.URL,
		LastUpdated: batchStart,
	}

	stale := prior != nil && prior.Stale

	switch {
	case prior == nil:
		// First reconciliation of this URL.
		intent.Feed = parsed
	case prior.Stale:
		// Forced full re-sync rewrites metadata unconditionally.
		intent.Feed = parsed
	case prior.LastUpdated == nil:
		// Provisioned but never successfully updated.
		intent.Feed = parsed
	case parsed.Updated == nil:
		// Without a document timestamp there is no way to tell whether
		// metadata changed; take the update.
		intent.Feed = parsed
	case !timeEqual(parsed.Updated, prior.Updated):
		intent.Feed = parsed
	}

	var entryIntents []EntryUpdateIntent
	seenInDoc := make(map[string]bool, len(parsed.Entries))
	for i, entry := range parsed.Entries {
		if seenInDoc[entry.ID] {
			// Some feeds repeat an id; the first occurrence wins.
			slog.Debug("Duplicate entry id in document", "feed", parsed.URL, "entry", entry.ID)
			continue
		}
		seenInDoc[entry.ID] = true

		entryPrior, seen := entryPriors[entry.ID]
		entry, dateless := resolveEntryTimes(entry, parsed.rssFamily(), entryPrior, batchStart)

		isNew := false
		switch {
		case !seen:
			isNew = true
		case stale:
			// Re-sync every entry regardless of timestamps.
		case dateless:
			// The document carries no entry timestamp, so changes are
			// undetectable; rewrite the entry while keeping its stored
			// updated pinned to the first observation.
		case entryPrior.Updated == nil:
			// No stored timestamp to compare against; take the update.
		case entryPrior.Updated.Before(*entry.Updated):
			// Strictly newer than stored.
		default:
			continue // unchanged
		}

		entryIntent := EntryUpdateIntent{
			URL:         parsed.URL,
			Entry:       entry,
			LastUpdated: batchStart,
			FeedOrder:   i,
			New:         isNew,
		}
		if isNew {
			epoch := batchStart
			entryIntent.FirstUpdatedEpoch = &epoch
		}
		entryIntents = append(entryIntents, entryIntent)
	}

	return intent, entryIntents
}

// resolveEntryTimes guarantees a non-nil Updated on the returned entry and
// reports whether the document itself carried no usable date. RSS reports
// only a publication date; that date is promoted to updated and published is
// cleared. Entries with no date at all keep the previously stored updated
// when one exists, otherwise they get the batch start time.
func resolveEntryTimes(entry ParsedEntry, rssFamily bool, prior EntryForUpdate, batchStart time.Time) (ParsedEntry, bool) {
	if entry.Updated == nil && rssFamily && entry.Published != nil {
		entry.Updated = entry.Published
		entry.Published = nil
	}
	if entry.Updated != nil {
		return entry, false
	}
	if prior.Updated != nil {
		entry.Updated = prior.Updated
	} else {
		fallback := batchStart
		entry.Updated = &fallback
	}
	return entry, true
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
