package feed

import (
	"bytes"
	"cmp"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Parse normalizes a raw document into a ParsedFeed. Entry timestamps are
// passed through as reported; resolving missing ones is the reconciler's job.
func (p *Parser) Parse(data []byte, url string) (*ParsedFeed, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{URL: url, Err: err}
	}

	result := &ParsedFeed{
		URL:     url,
		Type:    parsed.FeedType,
		Updated: parsed.UpdatedParsed,
		Title:   parsed.Title,
		Link:    parsed.Link,
		Author:  formatAuthor(firstAuthor(parsed.Authors, parsed.Author)),
	}

	// RSS has no distinct "updated" element at the channel level either;
	// pubDate is the only date available.
	if result.Updated == nil && result.rssFamily() && parsed.PublishedParsed != nil {
		result.Updated = parsed.PublishedParsed
	}

	result.Entries = make([]ParsedEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		id := cmp.Or(item.GUID, item.Link)
		if id == "" {
			slog.Warn("Skipping entry without id or link", "feed", url, "title", item.Title)
			continue
		}
		result.Entries = append(result.Entries, p.normalizeItem(item, id))
	}

	return result, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item, id string) ParsedEntry {
	normalized := ParsedEntry{
		ID:        id,
		Updated:   item.UpdatedParsed,
		Published: item.PublishedParsed,
		Title:     item.Title,
		Link:      item.Link,
		Summary:   item.Description,
		Author:    formatAuthor(firstAuthor(item.Authors, item.Author)),
	}

	if item.Content != "" {
		normalized.Content = []Content{{Value: item.Content}}
	}

	for _, enclosure := range item.Enclosures {
		if enclosure == nil || enclosure.URL == "" {
			continue
		}
		normalizedEnclosure := Enclosure{
			Href: enclosure.URL,
			Type: enclosure.Type,
		}

		// Parse length as int64, drop the field on malformed values
		if enclosure.Length != "" {
			if length, err := strconv.ParseInt(enclosure.Length, 10, 64); err == nil {
				normalizedEnclosure.Length = length
			}
		}

		normalized.Enclosures = append(normalized.Enclosures, normalizedEnclosure)
	}

	return normalized
}

func firstAuthor(authors []*gofeed.Person, fallback *gofeed.Person) *gofeed.Person {
	for _, author := range authors {
		if author != nil {
			return author
		}
	}
	return fallback
}

func formatAuthor(author *gofeed.Person) string {
	if author == nil {
		return ""
	}

	name := strings.TrimSpace(author.Name)
	email := strings.TrimSpace(author.Email)

	if name != "" && email != "" {
		return name + " (" + email + ")"
	} else if name != "" {
		return name
	} else if email != "" {
		return email
	}

	return ""
}
