package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"refeed/app/database"
	"refeed/app/feed"
)

// Cap on entries handled per task run; the rest are picked up next time.
const maxExtractionsPerRun = 20

// ExtractContentTask fetches the linked pages of entries pending content
// extraction and stores the readable article text. Extraction state lives
// beside the user flags: the update pipeline never touches it.
type ExtractContentTask struct {
	Task
	httpClient  *http.Client
	extractor   *feed.Extractor
	entries     ExtractionStore
	userAgent   string
	itemTimeout time.Duration
}

func NewExtractContentTask(feedURL string, httpClient *http.Client, extractor *feed.Extractor,
	entries ExtractionStore, userAgent string, itemTimeout time.Duration) *ExtractContentTask {
	return &ExtractContentTask{
		Task:        NewTask(TaskTypeExtractContent, feedURL),
		httpClient:  httpClient,
		extractor:   extractor,
		entries:     entries,
		userAgent:   userAgent,
		itemTimeout: itemTimeout,
	}
}

func (t *ExtractContentTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	entries, err := t.entries.GetEntriesForExtraction(t.FeedURL, maxExtractionsPerRun)
	if err != nil {
		return fmt.Errorf("failed to get entries for content extraction: %w", err)
	}

	if len(entries) == 0 {
		slog.Debug("No entries need content extraction", "feed", t.FeedURL)
		return nil
	}

	successCount := 0
	errorCount := 0

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		extractCtx, cancel := context.WithTimeout(ctx, t.itemTimeout)
		err := t.extractOne(extractCtx, entry)
		cancel()

		if err != nil {
			slog.Error("Failed to extract content for entry", "feed", entry.FeedURL, "entry", entry.ID, "url", entry.Link, "error", err)
			errorCount++

			final := entry.Attempts+1 >= t.MaxRetries
			if markErr := t.entries.MarkExtractionFailed(entry.FeedURL, entry.ID, err.Error(), final); markErr != nil {
				slog.Error("Failed to update content extraction status", "feed", entry.FeedURL, "entry", entry.ID, "error", markErr)
			}
		} else {
			successCount++
		}
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"feed", t.FeedURL,
		"duration", t.GetDuration(),
		"success", successCount,
		"errors", errorCount)

	return nil
}

func (t *ExtractContentTask) extractOne(ctx context.Context, entry database.EntryForExtraction) error {
	data, err := t.fetchArticle(ctx, entry.Link)
	if err != nil {
		return fmt.Errorf("failed to fetch article: %w", err)
	}

	content, err := t.extractor.Run(data)
	if err != nil {
		return fmt.Errorf("failed to extract content: %w", err)
	}

	if err := t.entries.MarkExtracted(entry.FeedURL, entry.ID, content, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to store extracted content: %w", err)
	}

	slog.Debug("Content extracted", "feed", entry.FeedURL, "entry", entry.ID, "content_length", len(content))
	return nil
}

func (t *ExtractContentTask) fetchArticle(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return nil, fmt.Errorf("content type is not HTML: %s", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
