package update

import (
	"context"

	"refeed/app/feed"
	"refeed/app/retrieval"
)

// Retriever fetches a feed document, honoring the caching validators from
// the previous successful retrieval.
type Retriever interface {
	Retrieve(ctx context.Context, url string, etag string, lastModified string) (*retrieval.Result, error)
}

// Parser turns a retrieved document into a normalized feed.
type Parser interface {
	Parse(data []byte, url string) (*feed.ParsedFeed, error)
}

// Store provides the update-relevant snapshots and applies write intents.
type Store interface {
	GetFeedForUpdate(url string) (*feed.FeedForUpdate, error)
	GetEntriesForUpdate(url string) (map[string]feed.EntryForUpdate, error)
	ApplyUpdate(feedIntent feed.FeedUpdateIntent, entryIntents []feed.EntryUpdateIntent) error
}

// FeedLister enumerates the feeds eligible for a batch update.
type FeedLister interface {
	GetFeedURLsForUpdate() ([]string, error)
}
