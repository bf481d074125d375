package database

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"refeed/app/feed"
)

var ErrEntryNotFound = errors.New("entry not found")

// Default chunk size for listing scans.
const listEntriesChunkSize = 128

// EntryFilter narrows a listing scan. Nil pointer fields are "don't care".
type EntryFilter struct {
	FeedURL   string
	Read      *bool
	Important *bool
}

// ListOptions controls pagination of a listing scan.
type ListOptions struct {
	Cursor string // resume after a previously returned cursor
	Limit  int    // 0 = no limit
}

// EntryRepository handles database operations for entries
type EntryRepository struct {
	db *DB
}

// NewEntryRepository creates a new entry repository
func NewEntryRepository(db *DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// ListEntries streams entries most-recently-seen first (first observation
// time, then id, both descending). The scan is keyset-paginated and can be
// resumed from any cursor it has yielded.
func (r *EntryRepository) ListEntries(filter EntryFilter, opts ListOptions) *Iterator[feed.Entry] {
	fetch := func(size int, cursor string) ([]Keyed[feed.Entry], error) {
		query := entrySelect + ` WHERE 1=1`
		var args []any

		if filter.FeedURL != "" {
			query += ` AND feed_url = ?`
			args = append(args, filter.FeedURL)
		}
		if filter.Read != nil {
			query += ` AND read = ?`
			args = append(args, *filter.Read)
		}
		if filter.Important != nil {
			query += ` AND important = ?`
			args = append(args, *filter.Important)
		}
		if cursor != "" {
			after, err := decodeEntryCursor(cursor)
			if err != nil {
				return nil, err
			}
			query += ` AND (first_updated_epoch < ? OR (first_updated_epoch = ? AND id < ?))`
			args = append(args, after.Epoch, after.Epoch, after.ID)
		}

		query += ` ORDER BY first_updated_epoch DESC, id DESC`
		if size > 0 {
			query += ` LIMIT ?`
			args = append(args, size)
		}

		rows, err := r.db.Query(query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to list entries: %w", err)
		}
		defer rows.Close()

		var chunk []Keyed[feed.Entry]
		for rows.Next() {
			entry, epoch, err := scanEntry(rows)
			if err != nil {
				return nil, fmt.Errorf("failed to scan entry row: %w", err)
			}
			key := encodeEntryCursor(entryCursor{Epoch: epoch, ID: entry.ID})
			chunk = append(chunk, Keyed[feed.Entry]{Item: *entry, Key: key})
		}
		return chunk, rows.Err()
	}

	return Paginate(fetch, listEntriesChunkSize, opts.Cursor, opts.Limit)
}

// GetEntry returns a stored entry, or nil if it does not exist.
func (r *EntryRepository) GetEntry(feedURL, id string) (*feed.Entry, error) {
	row := r.db.QueryRow(entrySelect+` WHERE feed_url = ? AND id = ?`, feedURL, id)
	entry, _, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return entry, nil
}

// SetRead sets the user's read flag. User flags bypass the update pipeline
// and are never touched by it.
func (r *EntryRepository) SetRead(feedURL, id string, read bool) error {
	return r.setEntryFlag(`UPDATE entries SET read = ? WHERE feed_url = ? AND id = ?`, read, feedURL, id)
}

// SetImportant sets the user's important flag.
func (r *EntryRepository) SetImportant(feedURL, id string, important bool) error {
	return r.setEntryFlag(`UPDATE entries SET important = ? WHERE feed_url = ? AND id = ?`, important, feedURL, id)
}

func (r *EntryRepository) setEntryFlag(query string, value any, feedURL, id string) error {
	result, err := r.db.execWrite(query, value, feedURL, id)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	if affected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// GetEntryStats returns counts about stored entries, optionally scoped to
// one feed.
func (r *EntryRepository) GetEntryStats(feedURL string) (total, unread, important int, err error) {
	query := `
		SELECT
			COUNT(*) as total,
			SUM(CASE WHEN read = 0 THEN 1 ELSE 0 END) as unread,
			SUM(CASE WHEN important = 1 THEN 1 ELSE 0 END) as important
		FROM entries`
	var args []any
	if feedURL != "" {
		query += ` WHERE feed_url = ?`
		args = append(args, feedURL)
	}

	var unreadVal, importantVal sql.NullInt64
	err = r.db.QueryRow(query, args...).Scan(&total, &unreadVal, &importantVal)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get entry stats: %w", err)
	}

	return total, int(unreadVal.Int64), int(importantVal.Int64), nil
}

// EntryForExtraction identifies an entry whose linked page still needs
// content extraction.
type EntryForExtraction struct {
	FeedURL  string
	ID       string
	Link     string
	Attempts int
}

// GetEntriesForExtraction returns up to limit entries pending content
// extraction, oldest first.
func (r *EntryRepository) GetEntriesForExtraction(feedURL string, limit int) ([]EntryForExtraction, error) {
	query := `
		SELECT feed_url, id, link, extraction_attempts
		FROM entries
		WHERE extraction_status = 'pending' AND link != ''`
	var args []any
	if feedURL != "" {
		query += ` AND feed_url = ?`
		args = append(args, feedURL)
	}
	query += ` ORDER BY first_updated_epoch ASC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries for extraction: %w", err)
	}
	defer rows.Close()

	var entries []EntryForExtraction
	for rows.Next() {
		var e EntryForExtraction
		if err := rows.Scan(&e.FeedURL, &e.ID, &e.Link, &e.Attempts); err != nil {
			return nil, fmt.Errorf("failed to scan extraction row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkExtracted stores successfully extracted page content.
func (r *EntryRepository) MarkExtracted(feedURL, id, content string, extractedAt time.Time) error {
	_, err := r.db.execWrite(`
		UPDATE entries
		SET extracted_content = ?, extraction_status = 'success', extracted_at = ?,
		    extraction_error = '', extraction_attempts = extraction_attempts + 1
		WHERE feed_url = ? AND id = ?
	`, content, extractedAt.UTC(), feedURL, id)
	if err != nil {
		return fmt.Errorf("failed to mark entry extracted: %w", err)
	}
	return nil
}

// MarkExtractionFailed records a failed extraction attempt. When final is
// true the entry stops being offered for extraction.
func (r *EntryRepository) MarkExtractionFailed(feedURL, id, errMsg string, final bool) error {
	status := "pending"
	if final {
		status = "failed"
	}
	_, err := r.db.execWrite(`
		UPDATE entries
		SET extraction_status = ?, extraction_error = ?,
		    extraction_attempts = extraction_attempts + 1
		WHERE feed_url = ? AND id = ?
	`, status, errMsg, feedURL, id)
	if err != nil {
		return fmt.Errorf("failed to mark extraction failed: %w", err)
	}
	return nil
}

// GetExtractedContent returns the extraction status and, when successful,
// the extracted page content of an entry.
func (r *EntryRepository) GetExtractedContent(feedURL, id string) (status, content string, err error) {
	err = r.db.QueryRow(`
		SELECT extraction_status, extracted_content
		FROM entries
		WHERE feed_url = ? AND id = ?
	`, feedURL, id).Scan(&status, &content)
	if err == sql.ErrNoRows {
		return "", "", ErrEntryNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to get extracted content: %w", err)
	}
	return status, content, nil
}

type entryCursor struct {
	Epoch time.Time `json:"epoch"`
	ID    string    `json:"id"`
}

func encodeEntryCursor(c entryCursor) string {
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeEntryCursor(s string) (entryCursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return entryCursor{}, fmt.Errorf("invalid cursor: %w", err)
	}
	var c entryCursor
	if err := json.Unmarshal(data, &c); err != nil {
		return entryCursor{}, fmt.Errorf("invalid cursor: %w", err)
	}
	return c, nil
}

const entrySelect = `
	SELECT feed_url, id, updated, published, title, link, author, summary,
	       content, enclosures, read, important, feed_order,
	       first_updated_epoch, last_updated
	FROM entries`

func scanEntry(row rowScanner) (*feed.Entry, time.Time, error) {
	var e feed.Entry
	var content, enclosures string
	var epoch time.Time

	err := row.Scan(&e.FeedURL, &e.ID, &e.Updated, &e.Published, &e.Title, &e.Link,
		&e.Author, &e.Summary, &content, &enclosures, &e.Read, &e.Important,
		&e.FeedOrder, &epoch, &e.LastUpdated)
	if err != nil {
		return nil, time.Time{}, err
	}

	if err := json.Unmarshal([]byte(content), &e.Content); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to decode content: %w", err)
	}
	if err := json.Unmarshal([]byte(enclosures), &e.Enclosures); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to decode enclosures: %w", err)
	}

	e.FirstUpdatedEpoch = &epoch
	return &e, epoch, nil
}
