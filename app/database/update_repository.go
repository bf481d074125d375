package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"refeed/app/feed"
)

// Chunk size for scanning stored entry snapshots during reconciliation.
// Keeps memory bounded on feeds with very large archives.
const entriesForUpdateChunkSize = 256

// UpdateRepository is the storage side of the update pipeline: it serves
// the prior snapshots reconciliation diffs against and applies the write
// intents it produces.
type UpdateRepository struct {
	db *DB
}

// NewUpdateRepository creates a new update repository
func NewUpdateRepository(db *DB) *UpdateRepository {
	return &UpdateRepository{db: db}
}

// GetFeedForUpdate returns the update-relevant snapshot of a feed, or nil
// if the feed is not stored.
func (r *UpdateRepository) GetFeedForUpdate(url string) (*feed.FeedForUpdate, error) {
	var f feed.FeedForUpdate
	err := r.db.QueryRow(`
		SELECT url, updated, http_etag, http_last_modified, stale, last_updated
		FROM feeds
		WHERE url = ?
	`, url).Scan(&f.URL, &f.Updated, &f.HTTPETag, &f.HTTPLastModified, &f.Stale, &f.LastUpdated)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &feed.StorageError{Op: "get feed for update", Err: err}
	}

	return &f, nil
}

// GetEntriesForUpdate returns the stored entry snapshots of a feed keyed by
// entry id, scanning in bounded chunks.
func (r *UpdateRepository) GetEntriesForUpdate(url string) (map[string]feed.EntryForUpdate, error) {
	type snapshot struct {
		id      string
		updated *time.Time
	}

	fetch := func(size int, cursor string) ([]Keyed[snapshot], error) {
		query := `
			SELECT id, updated
			FROM entries
			WHERE feed_url = ? AND id > ?
			ORDER BY id`
		args := []any{url, cursor}
		if size > 0 {
			query += ` LIMIT ?`
			args = append(args, size)
		}

		rows, err := r.db.Query(query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var chunk []Keyed[snapshot]
		for rows.Next() {
			var s snapshot
			if err := rows.Scan(&s.id, &s.updated); err != nil {
				return nil, err
			}
			chunk = append(chunk, Keyed[snapshot]{Item: s, Key: s.id})
		}
		return chunk, rows.Err()
	}

	priors := make(map[string]feed.EntryForUpdate)
	it := Paginate(fetch, entriesForUpdateChunkSize, "", 0)
	for {
		s, ok := it.Next()
		if !ok {
			break
		}
		priors[s.id] = feed.EntryForUpdate{Updated: s.updated}
	}
	if err := it.Err(); err != nil {
		return nil, &feed.StorageError{Op: "get entries for update", Err: err}
	}

	return priors, nil
}

// ApplyUpdate persists one feed's reconciliation outcome: the feed-level
// intent and every entry intent are committed together as a single write.
func (r *UpdateRepository) ApplyUpdate(feedIntent feed.FeedUpdateIntent, entryIntents []feed.EntryUpdateIntent) error {
	err := r.db.withWriteTx(func(tx *sql.Tx) error {
		if err := applyFeedIntent(tx, feedIntent); err != nil {
			return err
		}
		for _, intent := range entryIntents {
			if err := applyEntryIntent(tx, intent); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &feed.StorageError{Op: "apply update", Err: err}
	}
	return nil
}

func applyFeedIntent(tx *sql.Tx, intent feed.FeedUpdateIntent) error {
	lastUpdated := intent.LastUpdated.UTC()

	if intent.Feed == nil {
		// Metadata unchanged; refresh caching tokens and the update stamp.
		_, err := tx.Exec(`
			UPDATE feeds
			SET http_etag = ?, http_last_modified = ?, last_updated = ?
			WHERE url = ?
		`, intent.HTTPETag, intent.HTTPLastModified, lastUpdated, intent.URL)
		if err != nil {
			return fmt.Errorf("failed to update feed tokens: %w", err)
		}
		return nil
	}

	// A successful full write always clears stale. user_title, added and
	// updates_enabled belong to the user and are never touched here.
	_, err := tx.Exec(`
		INSERT INTO feeds (url, updated, title, link, author, http_etag, http_last_modified, stale, last_updated, added)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT (url) DO UPDATE SET
			updated = excluded.updated,
			title = excluded.title,
			link = excluded.link,
			author = excluded.author,
			http_etag = excluded.http_etag,
			http_last_modified = excluded.http_last_modified,
			stale = 0,
			last_updated = excluded.last_updated
	`, intent.URL, toUTC(intent.Feed.Updated), intent.Feed.Title, intent.Feed.Link, intent.Feed.Author,
		intent.HTTPETag, intent.HTTPLastModified, lastUpdated, lastUpdated)
	if err != nil {
		return fmt.Errorf("failed to upsert feed: %w", err)
	}
	return nil
}

func applyEntryIntent(tx *sql.Tx, intent feed.EntryUpdateIntent) error {
	content, err := encodeJSONList(intent.Entry.Content)
	if err != nil {
		return err
	}
	enclosures, err := encodeJSONList(intent.Entry.Enclosures)
	if err != nil {
		return err
	}

	// An intent for a previously-seen entry carries no epoch. The stored
	// column is NOT NULL and is checked on the proposed row before the
	// conflict clause resolves, so the insert arm needs a concrete value;
	// the batch time is only kept when the row turns out to be new.
	epoch := toUTC(intent.FirstUpdatedEpoch)
	if epoch == nil {
		fallback := intent.LastUpdated.UTC()
		epoch = &fallback
	}

	// read, important and the extraction columns belong to the user side of
	// the schema; the conflict clause leaves them untouched.
	// first_updated_epoch keeps the stored value once set.
	_, err = tx.Exec(`
		INSERT INTO entries (
			feed_url, id, updated, published, title, link, author, summary,
			content, enclosures, feed_order, first_updated_epoch, last_updated
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (feed_url, id) DO UPDATE SET
			updated = excluded.updated,
			published = excluded.published,
			title = excluded.title,
			link = excluded.link,
			author = excluded.author,
			summary = excluded.summary,
			content = excluded.content,
			enclosures = excluded.enclosures,
			feed_order = excluded.feed_order,
			first_updated_epoch = COALESCE(first_updated_epoch, excluded.first_updated_epoch),
			last_updated = excluded.last_updated
	`, intent.URL, intent.Entry.ID, toUTC(intent.Entry.Updated), toUTC(intent.Entry.Published),
		intent.Entry.Title, intent.Entry.Link, intent.Entry.Author, intent.Entry.Summary,
		content, enclosures, intent.FeedOrder, epoch, intent.LastUpdated.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert entry %s: %w", intent.Entry.ID, err)
	}
	return nil
}

func encodeJSONList[T any](items []T) (string, error) {
	if len(items) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(data), nil
}

func toUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
