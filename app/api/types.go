package api

import (
	"encoding/json"
	"time"

	"refeed/app/database"
	"refeed/app/feed"
	"refeed/app/opml"
	"refeed/app/tasks"
)

type FeedStore interface {
	AddFeed(url string, added time.Time) error
	DeleteFeed(url string) error
	GetFeed(url string) (*feed.Feed, error)
	ListFeeds() ([]feed.Feed, error)
	SetUserTitle(url, title string) error
	SetStale(url string, stale bool) error
	GetFeedCount() (int, error)
}

type EntryStore interface {
	ListEntries(filter database.EntryFilter, opts database.ListOptions) *database.Iterator[feed.Entry]
	SetRead(feedURL, id string, read bool) error
	SetImportant(feedURL, id string, important bool) error
	GetEntryStats(feedURL string) (total, unread, important int, err error)
}

type TagStore interface {
	GetTag(feedURL, key string) (json.RawMessage, bool, error)
	SetTag(feedURL, key string, value any) error
	DeleteTag(feedURL, key string) error
	ListTags(feedURL string) (map[string]json.RawMessage, error)
}

type OPMLImporter interface {
	Import(data []byte) (*opml.ImportResult, error)
}

var (
	_ FeedStore    = (*database.FeedRepository)(nil)
	_ EntryStore   = (*database.EntryRepository)(nil)
	_ TagStore     = (*database.TagRepository)(nil)
	_ OPMLImporter = (*opml.Importer)(nil)
)

type Handler struct {
	feeds     FeedStore
	entries   EntryStore
	tags      TagStore
	updater   tasks.FeedUpdater
	scheduler tasks.TaskSchedulerInterface
	importer  OPMLImporter
}

type addFeedRequest struct {
	URL       string `json:"url" binding:"required"`
	UserTitle string `json:"user_title"`
}

type patchFeedRequest struct {
	UserTitle *string `json:"user_title"`
	Stale     *bool   `json:"stale"`
}

type patchEntryRequest struct {
	Read      *bool `json:"read"`
	Important *bool `json:"important"`
}
