package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"refeed/app/feed"
)

var (
	ErrFeedExists   = errors.New("feed already exists")
	ErrFeedNotFound = errors.New("feed not found")
)

// FeedRepository handles database operations for feeds
type FeedRepository struct {
	db *DB
}

// NewFeedRepository creates a new feed repository
func NewFeedRepository(db *DB) *FeedRepository {
	return &FeedRepository{db: db}
}

// AddFeed registers a new feed URL. The feed's metadata stays empty until
// its first successful update.
func (r *FeedRepository) AddFeed(url string, added time.Time) error {
	result, err := r.db.execWrite(`
		INSERT INTO feeds (url, added)
		VALUES (?, ?)
		ON CONFLICT (url) DO NOTHING
	`, url, added.UTC())
	if err != nil {
		return fmt.Errorf("failed to add feed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to add feed: %w", err)
	}
	if affected == 0 {
		return ErrFeedExists
	}
	return nil
}

// DeleteFeed removes a feed along with its entries and tags.
func (r *FeedRepository) DeleteFeed(url string) error {
	result, err := r.db.execWrite(`DELETE FROM feeds WHERE url = ?`, url)
	if err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}
	if affected == 0 {
		return ErrFeedNotFound
	}
	return nil
}

// GetFeed returns a stored feed, or nil if the URL is unknown.
func (r *FeedRepository) GetFeed(url string) (*feed.Feed, error) {
	f, err := scanFeed(r.db.QueryRow(feedSelect+` WHERE url = ?`, url))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}
	return f, nil
}

// ListFeeds returns all stored feeds ordered by URL.
func (r *FeedRepository) ListFeeds() ([]feed.Feed, error) {
	rows, err := r.db.Query(feedSelect + ` ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	defer rows.Close()

	var feeds []feed.Feed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to list feeds: %w", err)
		}
		feeds = append(feeds, *f)
	}
	return feeds, rows.Err()
}

// GetFeedURLsForUpdate returns the URLs of all feeds with updates enabled,
// ordered by URL.
func (r *FeedRepository) GetFeedURLsForUpdate() ([]string, error) {
	rows, err := r.db.Query(`SELECT url FROM feeds WHERE updates_enabled = 1 ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("failed to get feed urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to get feed urls: %w", err)
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}

// SetUserTitle sets the user's title override; an empty title clears it.
func (r *FeedRepository) SetUserTitle(url, title string) error {
	return r.setFeedField(url, `UPDATE feeds SET user_title = ? WHERE url = ?`, title)
}

// SetStale marks a feed for full re-evaluation on its next update.
func (r *FeedRepository) SetStale(url string, stale bool) error {
	return r.setFeedField(url, `UPDATE feeds SET stale = ? WHERE url = ?`, stale)
}

// SetUpdatesEnabled includes or excludes a feed from scheduled updates.
func (r *FeedRepository) SetUpdatesEnabled(url string, enabled bool) error {
	return r.setFeedField(url, `UPDATE feeds SET updates_enabled = ? WHERE url = ?`, enabled)
}

func (r *FeedRepository) setFeedField(url, query string, value any) error {
	result, err := r.db.execWrite(query, value, url)
	if err != nil {
		return fmt.Errorf("failed to update feed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update feed: %w", err)
	}
	if affected == 0 {
		return ErrFeedNotFound
	}
	return nil
}

// GetFeedCount returns the number of stored feeds.
func (r *FeedRepository) GetFeedCount() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM feeds`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count feeds: %w", err)
	}
	return count, nil
}

const feedSelect = `
	SELECT url, updated, title, link, author, user_title, stale, updates_enabled, last_updated, added
	FROM feeds`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (*feed.Feed, error) {
	var f feed.Feed
	err := row.Scan(&f.URL, &f.Updated, &f.Title, &f.Link, &f.Author,
		&f.UserTitle, &f.Stale, &f.UpdatesEnabled, &f.LastUpdated, &f.Added)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
