package database

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"refeed/app/feed"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func fullFeedIntent(url string, batch time.Time, etag string) feed.FeedUpdateIntent {
	updated := batch
	return feed.FeedUpdateIntent{
		URL:         url,
		LastUpdated: batch,
		Feed: &feed.ParsedFeed{
			URL:     url,
			Type:    feed.TypeAtom,
			Updated: &updated,
			Title:   "Feed",
		},
		HTTPETag: etag,
	}
}

func TestApplyUpdatePreservesUserState(t *testing.T) {
	db := newTestDB(t)
	updateRepo := NewUpdateRepository(db)
	entryRepo := NewEntryRepository(db)

	const url = "http://example.com/feed.xml"
	batch1 := time.Date(2023, 7, 1, 12, 0, 0, 0, time.UTC)
	firstSeen := time.Date(2023, 7, 1, 10, 0, 0, 0, time.UTC)

	epoch := batch1
	newIntent := feed.EntryUpdateIntent{
		URL:               url,
		Entry:             feed.ParsedEntry{ID: "e1", Updated: &firstSeen, Title: "First"},
		LastUpdated:       batch1,
		FirstUpdatedEpoch: &epoch,
		New:               true,
	}
	if err := updateRepo.ApplyUpdate(fullFeedIntent(url, batch1, `"v1"`), []feed.EntryUpdateIntent{newIntent}); err != nil {
		t.Fatalf("Expected first update to succeed, got: %v", err)
	}

	if err := entryRepo.SetRead(url, "e1", true); err != nil {
		t.Fatalf("Expected SetRead to succeed, got: %v", err)
	}
	if err := entryRepo.SetImportant(url, "e1", true); err != nil {
		t.Fatalf("Expected SetImportant to succeed, got: %v", err)
	}

	// A previously-seen entry's intent carries no epoch; the stored one
	// must survive, as must the user flags.
	batch2 := batch1.Add(time.Hour)
	newer := firstSeen.Add(2 * time.Hour)
	modifiedIntent := feed.EntryUpdateIntent{
		URL:         url,
		Entry:       feed.ParsedEntry{ID: "e1", Updated: &newer, Title: "Second"},
		LastUpdated: batch2,
	}
	if err := updateRepo.ApplyUpdate(fullFeedIntent(url, batch2, `"v2"`), []feed.EntryUpdateIntent{modifiedIntent}); err != nil {
		t.Fatalf("Expected second update to succeed, got: %v", err)
	}

	entry, err := entryRepo.GetEntry(url, "e1")
	if err != nil {
		t.Fatalf("Expected GetEntry to succeed, got: %v", err)
	}
	if entry == nil {
		t.Fatal("Expected entry to exist after update")
	}

	if !entry.Read {
		t.Error("Expected read flag to survive the update")
	}
	if !entry.Important {
		t.Error("Expected important flag to survive the update")
	}
	if entry.FirstUpdatedEpoch == nil || !entry.FirstUpdatedEpoch.Equal(batch1) {
		t.Errorf("Expected first_updated_epoch %v to be preserved, got: %v", batch1, entry.FirstUpdatedEpoch)
	}
	if entry.Title != "Second" {
		t.Errorf("Expected title 'Second', got: %q", entry.Title)
	}
	if !entry.Updated.Equal(newer) {
		t.Errorf("Expected updated %v, got: %v", newer, entry.Updated)
	}
}

func TestApplyUpdateTokenRefreshOnly(t *testing.T) {
	db := newTestDB(t)
	updateRepo := NewUpdateRepository(db)
	feedRepo := NewFeedRepository(db)

	const url = "http://example.com/feed.xml"
	batch1 := time.Date(2023, 7, 1, 12, 0, 0, 0, time.UTC)
	if err := updateRepo.ApplyUpdate(fullFeedIntent(url, batch1, `"v1"`), nil); err != nil {
		t.Fatalf("Expected initial update to succeed, got: %v", err)
	}

	batch2 := batch1.Add(time.Hour)
	refresh := feed.FeedUpdateIntent{
		URL:              url,
		LastUpdated:      batch2,
		HTTPETag:         `"v2"`,
		HTTPLastModified: "Sat, 01 Jul 2023 13:00:00 GMT",
	}
	if err := updateRepo.ApplyUpdate(refresh, nil); err != nil {
		t.Fatalf("Expected token refresh to succeed, got: %v", err)
	}

	snapshot, err := updateRepo.GetFeedForUpdate(url)
	if err != nil {
		t.Fatalf("Expected GetFeedForUpdate to succeed, got: %v", err)
	}
	if snapshot.HTTPETag != `"v2"` {
		t.Errorf("Expected etag to be refreshed, got: %q", snapshot.HTTPETag)
	}
	if snapshot.HTTPLastModified != "Sat, 01 Jul 2023 13:00:00 GMT" {
		t.Errorf("Expected last-modified to be refreshed, got: %q", snapshot.HTTPLastModified)
	}
	if snapshot.LastUpdated == nil || !snapshot.LastUpdated.Equal(batch2) {
		t.Errorf("Expected last_updated %v, got: %v", batch2, snapshot.LastUpdated)
	}

	f, err := feedRepo.GetFeed(url)
	if err != nil {
		t.Fatalf("Expected GetFeed to succeed, got: %v", err)
	}
	if f.Title != "Feed" {
		t.Errorf("Expected metadata to be left alone, got title: %q", f.Title)
	}
}

func TestApplyUpdateFullWriteClearsStale(t *testing.T) {
	db := newTestDB(t)
	updateRepo := NewUpdateRepository(db)
	feedRepo := NewFeedRepository(db)

	const url = "http://example.com/feed.xml"
	batch1 := time.Date(2023, 7, 1, 12, 0, 0, 0, time.UTC)
	if err := updateRepo.ApplyUpdate(fullFeedIntent(url, batch1, `"v1"`), nil); err != nil {
		t.Fatalf("Expected initial update to succeed, got: %v", err)
	}

	if err := feedRepo.SetStale(url, true); err != nil {
		t.Fatalf("Expected SetStale to succeed, got: %v", err)
	}

	if err := updateRepo.ApplyUpdate(fullFeedIntent(url, batch1.Add(time.Hour), `"v2"`), nil); err != nil {
		t.Fatalf("Expected full update to succeed, got: %v", err)
	}

	snapshot, err := updateRepo.GetFeedForUpdate(url)
	if err != nil {
		t.Fatalf("Expected GetFeedForUpdate to succeed, got: %v", err)
	}
	if snapshot.Stale {
		t.Error("Expected full write to clear the stale flag")
	}
}

func TestGetEntriesForUpdateSnapshots(t *testing.T) {
	db := newTestDB(t)
	updateRepo := NewUpdateRepository(db)

	const url = "http://example.com/feed.xml"
	batch := time.Date(2023, 7, 1, 12, 0, 0, 0, time.UTC)

	var intents []feed.EntryUpdateIntent
	for i := 1; i <= 3; i++ {
		updated := batch.Add(time.Duration(i) * time.Minute)
		epoch := batch
		intents = append(intents, feed.EntryUpdateIntent{
			URL:               url,
			Entry:             feed.ParsedEntry{ID: fmt.Sprintf("e%d", i), Updated: &updated},
			LastUpdated:       batch,
			FirstUpdatedEpoch: &epoch,
			New:               true,
		})
	}
	if err := updateRepo.ApplyUpdate(fullFeedIntent(url, batch, `"v1"`), intents); err != nil {
		t.Fatalf("Expected update to succeed, got: %v", err)
	}

	priors, err := updateRepo.GetEntriesForUpdate(url)
	if err != nil {
		t.Fatalf("Expected GetEntriesForUpdate to succeed, got: %v", err)
	}
	if len(priors) != 3 {
		t.Fatalf("Expected 3 snapshots, got: %d", len(priors))
	}

	want := batch.Add(2 * time.Minute)
	if prior := priors["e2"]; prior.Updated == nil || !prior.Updated.Equal(want) {
		t.Errorf("Expected snapshot updated %v, got: %v", want, prior.Updated)
	}
}
