package opml

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gilliek/go-opml/opml"

	"refeed/app/database"
)

// FeedStore is the slice of feed storage the importer needs.
type FeedStore interface {
	AddFeed(url string, added time.Time) error
	SetUserTitle(url, title string) error
}

// ImportResult summarizes one OPML import.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []string
}

// Importer subscribes to every feed outline in an OPML document.
type Importer struct {
	feeds FeedStore
}

func NewImporter(feeds FeedStore) *Importer {
	return &Importer{feeds: feeds}
}

// Import parses OPML data and subscribes to each outline carrying an
// xmlUrl, walking nested outlines (folders) recursively. Already-known
// feeds are skipped; a failing outline is recorded and does not stop the
// rest.
func (i *Importer) Import(data []byte) (*ImportResult, error) {
	doc, err := opml.NewOPML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OPML: %w", err)
	}

	result := &ImportResult{}
	for _, outline := range doc.Body.Outlines {
		i.importOutline(&outline, result)
	}

	slog.Info("OPML import completed", "imported", result.Imported, "skipped", result.Skipped, "errors", len(result.Errors))

	return result, nil
}

func (i *Importer) importOutline(outline *opml.Outline, result *ImportResult) {
	if outline.XMLURL != "" {
		i.importFeed(outline, result)
	}

	// Outlines without an xmlUrl are folders; the hierarchy itself is not
	// kept, only the feeds inside it.
	for idx := range outline.Outlines {
		i.importOutline(&outline.Outlines[idx], result)
	}
}

func (i *Importer) importFeed(outline *opml.Outline, result *ImportResult) {
	url := outline.XMLURL

	err := i.feeds.AddFeed(url, time.Now().UTC())
	if errors.Is(err, database.ErrFeedExists) {
		result.Skipped++
		return
	}
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", url, err))
		return
	}

	title := outline.Title
	if title == "" {
		title = outline.Text
	}
	if title != "" {
		if err := i.feeds.SetUserTitle(url, title); err != nil {
			slog.Warn("Failed to set imported feed title", "feed", url, "error", err)
		}
	}

	result.Imported++
}
