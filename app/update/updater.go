package update

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"refeed/app/feed"
)

// Updater drives feed updates end to end: retrieve, parse, reconcile
// against stored state, persist, and fire the registered hooks.
type Updater struct {
	retriever Retriever
	parser    Parser
	store     Store
	feeds     FeedLister
	hooks     *feed.Hooks
	workers   int
}

func NewUpdater(retriever Retriever, parser Parser, store Store, feeds FeedLister,
	workers int) *Updater {
	if workers < 1 {
		workers = 1
	}

	return &Updater{
		retriever: retriever,
		parser:    parser,
		store:     store,
		feeds:     feeds,
		hooks:     feed.NewHooks(),
		workers:   workers,
	}
}

// Hooks exposes the hook registry. Register everything before the first
// update call.
func (u *Updater) Hooks() *feed.Hooks {
	return u.hooks
}

// Result is the outcome of a single feed's update attempt within a batch.
// Err is nil on success; Entries holds the new and modified entries in
// document order.
type Result struct {
	URL     string
	Entries []feed.UpdatedEntry
	Err     error
}

// UpdateFeed updates one feed immediately. Batch-level hooks do not run;
// the per-feed hooks do. Any error, including per-feed hook errors, is
// returned directly.
func (u *Updater) UpdateFeed(ctx context.Context, ref feed.Ref) (*feed.UpdateResult, error) {
	url, err := feed.ResolveRef(ref)
	if err != nil {
		return nil, err
	}

	result := u.updateOne(ctx, url, time.Now().UTC())
	if result.Err != nil {
		return nil, result.Err
	}

	return &feed.UpdateResult{Entries: result.Entries}, nil
}

// Batch is a handle to an in-progress batch update. Results arrive on
// Results as feeds finish, in completion order. Once the channel is
// closed, Err reports whether the closing after-feeds hook failed.
type Batch struct {
	results chan Result
	err     error
}

func (b *Batch) Results() <-chan Result {
	return b.results
}

// Err is valid only after the Results channel has been closed.
func (b *Batch) Err() error {
	return b.err
}

// UpdateFeeds updates every feed that has updates enabled, running at most
// the configured number of retrievals concurrently. Per-feed failures are
// reported in the corresponding Result and never affect other feeds;
// batch-level hook errors fail the whole call.
//
// Canceling ctx stops new feeds from being dispatched and discards
// results from feeds still in flight, but lets that work finish. The
// after-feeds hooks run once everything has settled either way.
func (u *Updater) UpdateFeeds(ctx context.Context) (*Batch, error) {
	if err := u.hooks.RunBeforeFeeds(ctx); err != nil {
		return nil, err
	}

	urls, err := u.feeds.GetFeedURLsForUpdate()
	if err != nil {
		return nil, err
	}

	batchStart := time.Now().UTC()

	// In-flight updates and closing hooks keep running after a consumer
	// stop, so they get a context that survives cancellation.
	workCtx := context.WithoutCancel(ctx)
	worker := func(url string) Result {
		return u.updateOne(workCtx, url, batchStart)
	}

	slog.Debug("Starting batch update", "feeds", len(urls), "workers", u.workers)

	out := Run(ctx, urls, worker, u.workers)

	b := &Batch{results: make(chan Result)}
	go func() {
		defer close(b.results)

		for result := range out {
			select {
			case b.results <- result:
			case <-ctx.Done():
			}
		}

		if err := u.hooks.RunAfterFeeds(workCtx); err != nil {
			b.err = err
		}
	}()

	return b, nil
}

// updateOne runs the per-feed sequence: before-feed hooks, the update
// work, after-entry hooks for each changed entry, after-feed hooks. The
// feed hooks bracket the attempt even when the work itself fails; a hook
// error aborts the rest of this feed's sequence only.
func (u *Updater) updateOne(ctx context.Context, url string, batchStart time.Time) Result {
	result := Result{URL: url}

	if err := u.hooks.RunBeforeFeed(ctx, url); err != nil {
		result.Err = err
		return result
	}

	entries, err := u.applyFeed(ctx, url, batchStart)
	if err != nil {
		result.Err = err
		if hookErr := u.hooks.RunAfterFeed(ctx, url); hookErr != nil {
			slog.Error("After-feed hook failed on errored feed", "feed", url, "error", hookErr)
		}
		return result
	}
	result.Entries = entries

	for _, entry := range entries {
		status := feed.EntryModified
		if entry.New {
			status = feed.EntryNew
		}
		if err := u.hooks.RunAfterEntry(ctx, url, entry.Entry, status); err != nil {
			result.Err = err
			return result
		}
	}

	if err := u.hooks.RunAfterFeed(ctx, url); err != nil {
		result.Err = err
	}

	return result
}

// applyFeed performs the update work for one feed and persists the
// outcome in a single transaction. A not-modified response counts as a
// success with no changes.
func (u *Updater) applyFeed(ctx context.Context, url string, batchStart time.Time) ([]feed.UpdatedEntry, error) {
	prior, err := u.store.GetFeedForUpdate(url)
	if err != nil {
		return nil, err
	}

	var etag, lastModified string
	if prior != nil && !prior.Stale {
		// A stale feed must bypass the not-modified short-circuit, so its
		// validators are withheld to force a full response.
		etag = prior.HTTPETag
		lastModified = prior.HTTPLastModified
	}

	retrieved, err := u.retriever.Retrieve(ctx, url, etag, lastModified)
	if err != nil {
		if errors.Is(err, feed.ErrNotModified) {
			slog.Debug("Feed not modified", "feed", url)
			return nil, nil
		}
		return nil, err
	}

	parsed, err := u.parser.Parse(retrieved.Data, url)
	if err != nil {
		return nil, err
	}

	entryPriors, err := u.store.GetEntriesForUpdate(url)
	if err != nil {
		return nil, err
	}

	feedIntent, entryIntents := feed.Reconcile(parsed, prior, entryPriors, batchStart)
	feedIntent.HTTPETag = retrieved.ETag
	feedIntent.HTTPLastModified = retrieved.LastModified

	if err := u.store.ApplyUpdate(feedIntent, entryIntents); err != nil {
		return nil, err
	}

	updated := make([]feed.UpdatedEntry, 0, len(entryIntents))
	newCount := 0
	for _, intent := range entryIntents {
		updated = append(updated, feed.UpdatedEntry{Entry: intent.Entry, New: intent.New})
		if intent.New {
			newCount++
		}
	}

	slog.Info("Feed updated", "feed", url, "new", newCount, "modified", len(updated)-newCount)

	return updated, nil
}
