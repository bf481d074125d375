package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"refeed/app/database"
	"refeed/app/feed"
)

// TagExtractContent marks a feed for article content extraction.
const TagExtractContent = "extract-content"

type FeedStore interface {
	AddFeed(url string, added time.Time) error
	GetFeed(url string) (*feed.Feed, error)
	SetUserTitle(url, title string) error
	SetStale(url string, stale bool) error
	SetUpdatesEnabled(url string, enabled bool) error
}

type TagStore interface {
	SetTag(feedURL, key string, value any) error
	ListTags(feedURL string) (map[string]json.RawMessage, error)
}

// Syncer applies the loaded subscriptions to the database: it subscribes
// new feeds and reconciles user title, enabled state, and tags for known
// ones. Tags removed from a subscription file are left in place; deleting
// a tag is an explicit user action.
type Syncer struct {
	subs  *Cache
	feeds FeedStore
	tags  TagStore
}

func NewSyncer(subs *Cache, feeds FeedStore, tags TagStore) *Syncer {
	return &Syncer{
		subs:  subs,
		feeds: feeds,
		tags:  tags,
	}
}

// Run syncs every cached subscription and returns how many feeds were
// created and how many existing ones changed. A failing subscription is
// logged and skipped; the rest still sync.
func (s *Syncer) Run() (created, updated int) {
	for name, sub := range s.subs.GetAll() {
		wasCreated, changed, err := s.syncOne(sub)
		if err != nil {
			slog.Warn("Failed to sync subscription", "name", name, "url", sub.URL, "error", err)
			continue
		}
		if wasCreated {
			created++
		} else if changed {
			updated++
		}
	}

	return created, updated
}

func (s *Syncer) syncOne(sub *Subscription) (created, changed bool, err error) {
	err = s.feeds.AddFeed(sub.URL, time.Now().UTC())
	switch {
	case err == nil:
		created = true
	case errors.Is(err, database.ErrFeedExists):
	default:
		return false, false, err
	}

	if created {
		if sub.UserTitle != "" {
			if err := s.feeds.SetUserTitle(sub.URL, sub.UserTitle); err != nil {
				return true, false, err
			}
		}
		if !sub.UpdatesEnabled() {
			if err := s.feeds.SetUpdatesEnabled(sub.URL, false); err != nil {
				return true, false, err
			}
		}
		for key, value := range s.desiredTags(sub) {
			if err := s.tags.SetTag(sub.URL, key, value); err != nil {
				return true, false, err
			}
		}
		return true, false, nil
	}

	current, err := s.feeds.GetFeed(sub.URL)
	if err != nil {
		return false, false, err
	}
	if current == nil {
		return false, false, errors.New("feed disappeared during sync")
	}

	if current.UserTitle != sub.UserTitle {
		if err := s.feeds.SetUserTitle(sub.URL, sub.UserTitle); err != nil {
			return false, false, err
		}
		changed = true
	}
	if current.UpdatesEnabled != sub.UpdatesEnabled() {
		if err := s.feeds.SetUpdatesEnabled(sub.URL, sub.UpdatesEnabled()); err != nil {
			return false, false, err
		}
		changed = true
	}

	tagsChanged, err := s.syncTags(sub)
	if err != nil {
		return false, false, err
	}

	// Changed tags can alter how entries are processed (plugin rules,
	// extraction), so force a full re-evaluation on the next update.
	if tagsChanged {
		if err := s.feeds.SetStale(sub.URL, true); err != nil {
			return false, false, err
		}
		changed = true
	}

	return false, changed, nil
}

func (s *Syncer) syncTags(sub *Subscription) (bool, error) {
	desired := s.desiredTags(sub)
	if len(desired) == 0 {
		return false, nil
	}

	current, err := s.tags.ListTags(sub.URL)
	if err != nil {
		return false, err
	}

	changed := false
	for key, value := range desired {
		encoded, err := json.Marshal(value)
		if err != nil {
			slog.Warn("Skipping unencodable tag", "url", sub.URL, "tag", key, "error", err)
			continue
		}
		if bytes.Equal(encoded, current[key]) {
			continue
		}
		if err := s.tags.SetTag(sub.URL, key, value); err != nil {
			return changed, err
		}
		changed = true
	}

	return changed, nil
}

func (s *Syncer) desiredTags(sub *Subscription) map[string]any {
	desired := make(map[string]any, len(sub.Tags)+1)
	for key, value := range sub.Tags {
		desired[key] = value
	}
	if sub.ExtractContent {
		desired[TagExtractContent] = true
	}
	return desired
}
