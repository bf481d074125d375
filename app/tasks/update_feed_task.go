package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"refeed/app/feed"
)

// UpdateFeedTask runs the full update pipeline for one feed: retrieve,
// parse, reconcile, persist, dispatch hooks. Batch-level hooks do not run.
type UpdateFeedTask struct {
	Task
	updater FeedUpdater
}

func NewUpdateFeedTask(feedURL string, updater FeedUpdater) *UpdateFeedTask {
	return &UpdateFeedTask{
		Task:    NewTask(TaskTypeUpdateFeed, feedURL),
		updater: updater,
	}
}

func (t *UpdateFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.updater.UpdateFeed(ctx, feed.URL(t.FeedURL))
	if err != nil {
		return fmt.Errorf("failed to update feed: %w", err)
	}

	newCount := 0
	for _, entry := range result.Entries {
		if entry.New {
			newCount++
		}
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"feed", t.FeedURL,
		"duration", t.GetDuration(),
		"new", newCount,
		"modified", len(result.Entries)-newCount)

	return nil
}
