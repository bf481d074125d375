package feed

import (
	"fmt"
	"time"
)

// Persisted types

type Feed struct {
	URL            string     `json:"url"`
	Updated        *time.Time `json:"updated,omitempty"` // feed-reported timestamp
	Title          string     `json:"title"`
	Link           string     `json:"link"`
	Author         string     `json:"author"`
	UserTitle      string     `json:"user_title"` // user override, never touched by reconciliation
	Stale          bool       `json:"stale"`
	UpdatesEnabled bool       `json:"updates_enabled"`
	LastUpdated    *time.Time `json:"last_updated,omitempty"`
	Added          time.Time  `json:"added"`
}

func (f *Feed) FeedURL() string {
	return f.URL
}

type Entry struct {
	FeedURL           string      `json:"feed_url"`
	ID                string      `json:"id"`
	Updated           time.Time   `json:"updated"` // never zero once persisted
	Published         *time.Time  `json:"published,omitempty"`
	Title             string      `json:"title"`
	Link              string      `json:"link"`
	Author            string      `json:"author"`
	Summary           string      `json:"summary"`
	Content           []Content   `json:"content,omitempty"`
	Enclosures        []Enclosure `json:"enclosures,omitempty"`
	Read              bool        `json:"read"`      // user-owned
	Important         bool        `json:"important"` // user-owned
	FeedOrder         int         `json:"feed_order"`
	FirstUpdatedEpoch *time.Time  `json:"first_updated_epoch,omitempty"`
	LastUpdated       time.Time   `json:"last_updated"`
}

type Content struct {
	Value    string `json:"value"`
	Type     string `json:"type,omitempty"`
	Language string `json:"language,omitempty"`
}

type Enclosure struct {
	Href   string `json:"href"`
	Type   string `json:"type,omitempty"`
	Length int64  `json:"length,omitempty"`
}

// Update-relevant snapshots, read from storage before reconciliation

type FeedForUpdate struct {
	URL              string
	Updated          *time.Time
	HTTPETag         string
	HTTPLastModified string
	Stale            bool // forces full re-evaluation of every entry
	LastUpdated      *time.Time
}

type EntryForUpdate struct {
	Updated *time.Time
}

// Normalizer output

const (
	TypeRSS  = "rss"
	TypeAtom = "atom"
	TypeJSON = "json"
)

type ParsedFeed struct {
	URL     string
	Type    string // one of TypeRSS, TypeAtom, TypeJSON
	Updated *time.Time
	Title   string
	Link    string
	Author  string
	Entries []ParsedEntry
}

// rssFamily reports whether the document format has no distinct
// "updated" semantic, which drives published-to-updated promotion.
func (p *ParsedFeed) rssFamily() bool {
	return p.Type == TypeRSS
}

type ParsedEntry struct {
	ID         string
	Updated    *time.Time // may be absent until reconciliation assigns one
	Published  *time.Time
	Title      string
	Link       string
	Author     string
	Summary    string
	Content    []Content
	Enclosures []Enclosure
}

// Write intents, consumed by storage

type FeedUpdateIntent struct {
	URL              string
	LastUpdated      time.Time
	Feed             *ParsedFeed // nil when feed metadata did not change
	HTTPETag         string
	HTTPLastModified string
}

type EntryUpdateIntent struct {
	URL         string
	Entry       ParsedEntry
	LastUpdated time.Time
	// FirstUpdatedEpoch is the batch start for brand-new entries and nil for
	// previously-seen ones; storage keeps the stored value when nil.
	FirstUpdatedEpoch *time.Time
	FeedOrder         int
	New               bool
}

// Results

type EntryStatus string

const (
	EntryNew      EntryStatus = "new"
	EntryModified EntryStatus = "modified"
)

type UpdatedEntry struct {
	Entry ParsedEntry
	New   bool
}

type UpdateResult struct {
	Entries []UpdatedEntry
}

// Ref identifies a feed at the API boundary: either a bare URL or an
// already-loaded Feed.
type Ref interface {
	FeedURL() string
}

type URL string

func (u URL) FeedURL() string {
	return string(u)
}

// ResolveRef coerces a Ref into a feed URL.
func ResolveRef(ref Ref) (string, error) {
	if ref == nil {
		return "", fmt.Errorf("feed reference is nil")
	}
	url := ref.FeedURL()
	if url == "" {
		return "", fmt.Errorf("feed reference has no URL")
	}
	return url, nil
}
