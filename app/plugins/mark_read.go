package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"sync"

	"refeed/app/database"
	"refeed/app/feed"
)

// markReadTag is the feed tag holding the rules, e.g.
// {"title": ["^Sponsored", "\\[ad\\]"]}.
const markReadTag = "mark-read"

type EntryFlagStore interface {
	SetRead(feedURL, id string, read bool) error
}

type TagReader interface {
	GetTag(feedURL, key string) (json.RawMessage, bool, error)
}

// MarkRead marks newly seen entries as read when their title matches one
// of the regular expressions in the feed's mark-read tag. Entries the
// user has already seen are never touched, and the read flag is written
// directly so a later update cannot flip it back.
type MarkRead struct {
	entries EntryFlagStore
	tags    TagReader

	mu    sync.Mutex
	cache map[string]*compiledRules
}

type compiledRules struct {
	raw      string
	patterns []*regexp.Regexp
}

func NewMarkRead(entries EntryFlagStore, tags TagReader) *MarkRead {
	return &MarkRead{
		entries: entries,
		tags:    tags,
		cache:   make(map[string]*compiledRules),
	}
}

// Register attaches the plugin to the hook registry.
func (p *MarkRead) Register(hooks *feed.Hooks) {
	hooks.OnAfterEntry(p.afterEntry)
}

func (p *MarkRead) afterEntry(_ context.Context, url string, entry feed.ParsedEntry, status feed.EntryStatus) error {
	if status != feed.EntryNew {
		return nil
	}

	patterns, err := p.titlePatterns(url)
	if err != nil {
		return err
	}

	for _, pattern := range patterns {
		if !pattern.MatchString(entry.Title) {
			continue
		}

		err := p.entries.SetRead(url, entry.ID, true)
		if errors.Is(err, database.ErrEntryNotFound) {
			// Another hook may have deleted the entry in the meantime.
			slog.Debug("Entry gone before mark-read", "feed", url, "entry", entry.ID)
			return nil
		}
		if err != nil {
			return err
		}

		slog.Debug("Entry marked read", "feed", url, "entry", entry.ID, "pattern", pattern.String())
		return nil
	}

	return nil
}

// titlePatterns returns the compiled title rules for a feed. A missing or
// malformed tag yields no rules; individual patterns that do not compile
// are logged and skipped.
func (p *MarkRead) titlePatterns(url string) ([]*regexp.Regexp, error) {
	raw, ok, err := p.tags.GetTag(url, markReadTag)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if cached, ok := p.cache[url]; ok && cached.raw == string(raw) {
		return cached.patterns, nil
	}

	var rules struct {
		Title []string `json:"title"`
	}
	if err := json.Unmarshal(raw, &rules); err != nil {
		slog.Warn("Malformed mark-read tag, ignoring", "feed", url, "error", err)
		p.cache[url] = &compiledRules{raw: string(raw)}
		return nil, nil
	}

	patterns := make([]*regexp.Regexp, 0, len(rules.Title))
	for _, rule := range rules.Title {
		pattern, err := regexp.Compile(rule)
		if err != nil {
			slog.Warn("Invalid mark-read pattern, skipping", "feed", url, "pattern", rule, "error", err)
			continue
		}
		patterns = append(patterns, pattern)
	}

	p.cache[url] = &compiledRules{raw: string(raw), patterns: patterns}
	return patterns, nil
}
