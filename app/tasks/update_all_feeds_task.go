package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// UpdateAllFeedsTask updates every feed with updates enabled. Per-feed
// failures are logged and counted; only batch-level failures (before/after
// feeds hooks) fail the task.
type UpdateAllFeedsTask struct {
	Task
	updater FeedUpdater
}

func NewUpdateAllFeedsTask(updater FeedUpdater) *UpdateAllFeedsTask {
	return &UpdateAllFeedsTask{
		Task:    NewTask(TaskTypeUpdateAllFeeds, ""),
		updater: updater,
	}
}

func (t *UpdateAllFeedsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	batch, err := t.updater.UpdateFeeds(ctx)
	if err != nil {
		return fmt.Errorf("failed to start batch update: %w", err)
	}

	succeeded := 0
	failed := 0
	for result := range batch.Results() {
		if result.Err != nil {
			slog.Warn("Feed update failed", "feed", result.URL, "error", result.Err)
			failed++
			continue
		}
		succeeded++
	}
	if err := batch.Err(); err != nil {
		return fmt.Errorf("batch update failed: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"succeeded", succeeded,
		"failed", failed)

	return nil
}
