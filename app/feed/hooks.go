package feed

import (
	"context"
)

type BatchHook func(ctx context.Context) error

type FeedHook func(ctx context.Context, url string) error

type EntryHook func(ctx context.Context, url string, entry ParsedEntry, status EntryStatus) error

// Hooks is an explicit observer registry with one append-only ordered list
// per hook kind. Register everything before updates start; registration is
// not synchronized with dispatch.
//
// Batch hooks (before_feeds, after_feeds) bracket a whole update batch and
// their errors are fatal to it. Per-feed hooks bracket one feed's update;
// their errors are isolated to that feed and wrapped in HookError.
type Hooks struct {
	beforeFeeds []BatchHook
	beforeFeed  []FeedHook
	afterEntry  []EntryHook
	afterFeed   []FeedHook
	afterFeeds  []BatchHook
}

func NewHooks() *Hooks {
	return &Hooks{}
}

func (h *Hooks) OnBeforeFeeds(hook BatchHook) {
	h.beforeFeeds = append(h.beforeFeeds, hook)
}

func (h *Hooks) OnBeforeFeed(hook FeedHook) {
	h.beforeFeed = append(h.beforeFeed, hook)
}

func (h *Hooks) OnAfterEntry(hook EntryHook) {
	h.afterEntry = append(h.afterEntry, hook)
}

func (h *Hooks) OnAfterFeed(hook FeedHook) {
	h.afterFeed = append(h.afterFeed, hook)
}

func (h *Hooks) OnAfterFeeds(hook BatchHook) {
	h.afterFeeds = append(h.afterFeeds, hook)
}

// RunBeforeFeeds invokes the batch-start hooks in registration order. The
// first error aborts the remaining hooks and is returned unwrapped: batch
// hook failures are fatal to the whole update operation.
func (h *Hooks) RunBeforeFeeds(ctx context.Context) error {
	for _, hook := range h.beforeFeeds {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hooks) RunAfterFeeds(ctx context.Context) error {
	for _, hook := range h.afterFeeds {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunBeforeFeed invokes the feed-start hooks. The first error aborts the
// remaining hooks and comes back as a HookError owned by this feed alone.
func (h *Hooks) RunBeforeFeed(ctx context.Context, url string) error {
	for _, hook := range h.beforeFeed {
		if err := hook(ctx, url); err != nil {
			return &HookError{Hook: "before_feed", URL: url, Err: err}
		}
	}
	return nil
}

func (h *Hooks) RunAfterEntry(ctx context.Context, url string, entry ParsedEntry, status EntryStatus) error {
	for _, hook := range h.afterEntry {
		if err := hook(ctx, url, entry, status); err != nil {
			return &HookError{Hook: "after_entry", URL: url, Err: err}
		}
	}
	return nil
}

func (h *Hooks) RunAfterFeed(ctx context.Context, url string) error {
	for _, hook := range h.afterFeed {
		if err := hook(ctx, url); err != nil {
			return &HookError{Hook: "after_feed", URL: url, Err: err}
		}
	}
	return nil
}
