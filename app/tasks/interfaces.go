package tasks

import (
	"context"
	"time"

	"refeed/app/database"
	"refeed/app/feed"
	"refeed/app/update"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the HTTP API to run background work.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	QueueDepth() int
}

// FeedUpdater drives the update pipeline. Satisfied by *update.Updater.
type FeedUpdater interface {
	UpdateFeed(ctx context.Context, ref feed.Ref) (*feed.UpdateResult, error)
	UpdateFeeds(ctx context.Context) (*update.Batch, error)
}

var _ FeedUpdater = (*update.Updater)(nil)

// ExtractionStore is the slice of entry storage the extraction task needs.
type ExtractionStore interface {
	GetEntriesForExtraction(feedURL string, limit int) ([]database.EntryForExtraction, error)
	MarkExtracted(feedURL, id, content string, extractedAt time.Time) error
	MarkExtractionFailed(feedURL, id, errMsg string, final bool) error
}

var _ ExtractionStore = (*database.EntryRepository)(nil)
