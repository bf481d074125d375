package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// TagRepository handles database operations for feed tags. Tag values are
// arbitrary JSON documents keyed by (feed_url, key); plugins use them to
// carry per-feed configuration.
type TagRepository struct {
	db *DB
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db *DB) *TagRepository {
	return &TagRepository{db: db}
}

// SetTag stores a tag value, replacing any previous value. A nil value
// stores JSON null, which marks the tag as present without data.
func (r *TagRepository) SetTag(feedURL, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode tag value: %w", err)
	}

	_, err = r.db.execWrite(`
		INSERT INTO feed_tags (feed_url, key, value)
		VALUES (?, ?, ?)
		ON CONFLICT (feed_url, key) DO UPDATE SET value = excluded.value
	`, feedURL, key, string(data))
	if err != nil {
		return fmt.Errorf("failed to set tag: %w", err)
	}
	return nil
}

// GetTag returns a tag's JSON value and whether the tag exists.
func (r *TagRepository) GetTag(feedURL, key string) (json.RawMessage, bool, error) {
	var value string
	err := r.db.QueryRow(`
		SELECT value FROM feed_tags WHERE feed_url = ? AND key = ?
	`, feedURL, key).Scan(&value)

	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get tag: %w", err)
	}
	return json.RawMessage(value), true, nil
}

// DeleteTag removes a tag if present.
func (r *TagRepository) DeleteTag(feedURL, key string) error {
	_, err := r.db.execWrite(`DELETE FROM feed_tags WHERE feed_url = ? AND key = ?`, feedURL, key)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	return nil
}

// ListTags returns all tags of a feed keyed by tag key.
func (r *TagRepository) ListTags(feedURL string) (map[string]json.RawMessage, error) {
	rows, err := r.db.Query(`SELECT key, value FROM feed_tags WHERE feed_url = ? ORDER BY key`, feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	tags := make(map[string]json.RawMessage)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		tags[key] = json.RawMessage(value)
	}
	return tags, rows.Err()
}
