package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"refeed/app/config"
)

// SyncSubscriptionsTask reloads the subscription files and reconciles them
// into the database: new subscriptions are registered, user titles, enabled
// state and tags of known ones are brought up to date.
type SyncSubscriptionsTask struct {
	Task
	subs   *config.Cache
	syncer *config.Syncer
}

func NewSyncSubscriptionsTask(subs *config.Cache, syncer *config.Syncer) *SyncSubscriptionsTask {
	return &SyncSubscriptionsTask{
		Task:   NewTask(TaskTypeSyncSubscriptions, ""),
		subs:   subs,
		syncer: syncer,
	}
}

func (t *SyncSubscriptionsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.subs.Run(); err != nil {
		return fmt.Errorf("failed to load subscriptions: %w", err)
	}

	created, updated := t.syncer.Run()

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"subscriptions", t.subs.Count(),
		"created", created,
		"updated", updated)

	return nil
}
