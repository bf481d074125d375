package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestHooksRunInRegistrationOrder(t *testing.T) {
	hooks := NewHooks()
	ctx := context.Background()

	var calls []string
	hooks.OnBeforeFeed(func(ctx context.Context, url string) error {
		calls = append(calls, "first:"+url)
		return nil
	})
	hooks.OnBeforeFeed(func(ctx context.Context, url string) error {
		calls = append(calls, "second:"+url)
		return nil
	})

	if err := hooks.RunBeforeFeed(ctx, "https://example.com/feed.xml"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(calls) != 2 {
		t.Fatalf("Expected 2 calls, got: %d", len(calls))
	}
	if calls[0] != "first:https://example.com/feed.xml" || calls[1] != "second:https://example.com/feed.xml" {
		t.Errorf("Expected registration order preserved, got: %v", calls)
	}
}

func TestHooksFeedErrorWrapped(t *testing.T) {
	hooks := NewHooks()
	ctx := context.Background()

	cause := errors.New("hook failed")
	hooks.OnAfterFeed(func(ctx context.Context, url string) error {
		return cause
	})

	err := hooks.RunAfterFeed(ctx, "https://example.com/feed.xml")
	if err == nil {
		t.Fatal("Expected error from failing hook")
	}

	var hookErr *HookError
	if !errors.As(err, &hookErr) {
		t.Fatalf("Expected HookError, got: %T", err)
	}
	if hookErr.Hook != "after_feed" {
		t.Errorf("Expected hook 'after_feed', got: %s", hookErr.Hook)
	}
	if hookErr.URL != "https://example.com/feed.xml" {
		t.Errorf("Expected URL 'https://example.com/feed.xml', got: %s", hookErr.URL)
	}
	if !errors.Is(err, cause) {
		t.Error("Expected wrapped cause reachable via errors.Is")
	}
}

func TestHooksFirstErrorAbortsRemaining(t *testing.T) {
	hooks := NewHooks()
	ctx := context.Background()

	var calls []string
	hooks.OnAfterEntry(func(ctx context.Context, url string, entry ParsedEntry, status EntryStatus) error {
		calls = append(calls, "failing")
		return fmt.Errorf("boom")
	})
	hooks.OnAfterEntry(func(ctx context.Context, url string, entry ParsedEntry, status EntryStatus) error {
		calls = append(calls, "skipped")
		return nil
	})

	err := hooks.RunAfterEntry(ctx, "https://example.com/feed.xml", ParsedEntry{ID: "one"}, EntryNew)
	if err == nil {
		t.Fatal("Expected error from failing hook")
	}

	if len(calls) != 1 || calls[0] != "failing" {
		t.Errorf("Expected only the failing hook to run, got: %v", calls)
	}
}

func TestHooksEntryPayload(t *testing.T) {
	hooks := NewHooks()
	ctx := context.Background()

	var gotURL string
	var gotEntry ParsedEntry
	var gotStatus EntryStatus
	hooks.OnAfterEntry(func(ctx context.Context, url string, entry ParsedEntry, status EntryStatus) error {
		gotURL = url
		gotEntry = entry
		gotStatus = status
		return nil
	})

	entry := ParsedEntry{ID: "one", Title: "Test Entry"}
	if err := hooks.RunAfterEntry(ctx, "https://example.com/feed.xml", entry, EntryModified); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if gotURL != "https://example.com/feed.xml" {
		t.Errorf("Expected URL 'https://example.com/feed.xml', got: %s", gotURL)
	}
	if gotEntry.ID != "one" || gotEntry.Title != "Test Entry" {
		t.Errorf("Expected entry payload passed through, got: %+v", gotEntry)
	}
	if gotStatus != EntryModified {
		t.Errorf("Expected status %q, got: %q", EntryModified, gotStatus)
	}
}

func TestHooksBatchErrorNotWrapped(t *testing.T) {
	hooks := NewHooks()
	ctx := context.Background()

	cause := errors.New("batch hook failed")
	hooks.OnBeforeFeeds(func(ctx context.Context) error {
		return cause
	})

	err := hooks.RunBeforeFeeds(ctx)
	if !errors.Is(err, cause) {
		t.Fatalf("Expected raw batch hook error, got: %v", err)
	}

	var hookErr *HookError
	if errors.As(err, &hookErr) {
		t.Error("Expected batch hook error not wrapped in HookError")
	}
}

func TestHooksEmptyRegistry(t *testing.T) {
	hooks := NewHooks()
	ctx := context.Background()

	if err := hooks.RunBeforeFeeds(ctx); err != nil {
		t.Errorf("Expected no error from empty registry, got: %v", err)
	}
	if err := hooks.RunBeforeFeed(ctx, "https://example.com/feed.xml"); err != nil {
		t.Errorf("Expected no error from empty registry, got: %v", err)
	}
	if err := hooks.RunAfterFeeds(ctx); err != nil {
		t.Errorf("Expected no error from empty registry, got: %v", err)
	}
}
