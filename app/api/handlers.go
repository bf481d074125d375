package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"refeed/app/database"
	"refeed/app/tasks"
)

// Default and maximum page sizes for entry listings.
const (
	defaultEntryLimit = 50
	maxEntryLimit     = 500
)

func NewHandler(feeds FeedStore, entries EntryStore, tags TagStore,
	updater tasks.FeedUpdater, scheduler tasks.TaskSchedulerInterface, importer OPMLImporter) *Handler {
	return &Handler{
		feeds:     feeds,
		entries:   entries,
		tags:      tags,
		updater:   updater,
		scheduler: scheduler,
		importer:  importer,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feeds.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	feedCount, err := h.feeds.GetFeedCount()
	if err != nil {
		slog.Error("Database error", "operation", "feed_count", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	total, unread, important, err := h.entries.GetEntryStats("")
	if err != nil {
		slog.Error("Database error", "operation", "entry_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": feedCount,
		"entries": gin.H{
			"total":     total,
			"unread":    unread,
			"important": important,
		},
		"queue_depth": h.scheduler.QueueDepth(),
	})
}

func (h *Handler) ListFeeds(c *gin.Context) {
	feeds, err := h.feeds.ListFeeds()
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	out := make([]gin.H, 0, len(feeds))
	for _, f := range feeds {
		info := gin.H{
			"url":             f.URL,
			"title":           f.Title,
			"link":            f.Link,
			"author":          f.Author,
			"user_title":      f.UserTitle,
			"stale":           f.Stale,
			"updates_enabled": f.UpdatesEnabled,
			"last_updated":    f.LastUpdated,
			"added":           f.Added,
		}

		if total, unread, important, err := h.entries.GetEntryStats(f.URL); err == nil {
			info["entries"] = gin.H{
				"total":     total,
				"unread":    unread,
				"important": important,
			}
		}

		out = append(out, info)
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": out,
		"total": len(out),
	})
}

func (h *Handler) AddFeed(c *gin.Context) {
	var req addFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	err := h.feeds.AddFeed(req.URL, time.Now().UTC())
	if errors.Is(err, database.ErrFeedExists) {
		c.JSON(http.StatusConflict, gin.H{"error": "Feed already exists"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "add_feed", "feed", req.URL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if req.UserTitle != "" {
		if err := h.feeds.SetUserTitle(req.URL, req.UserTitle); err != nil {
			slog.Error("Database error", "operation", "set_user_title", "feed", req.URL, "error", err)
		}
	}

	// Fetch the new feed right away instead of waiting for the next
	// scheduled batch.
	task := tasks.NewUpdateFeedTask(req.URL, h.updater)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue initial update", "feed", req.URL, "error", err)
	}

	c.JSON(http.StatusCreated, gin.H{"url": req.URL})
}

func (h *Handler) DeleteFeed(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing url parameter"})
		return
	}

	err := h.feeds.DeleteFeed(url)
	if errors.Is(err, database.ErrFeedNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "delete_feed", "feed", url, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) PatchFeed(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing url parameter"})
		return
	}

	var req patchFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if req.UserTitle != nil {
		if err := h.feeds.SetUserTitle(url, *req.UserTitle); err != nil {
			h.feedWriteError(c, "set_user_title", url, err)
			return
		}
	}
	if req.Stale != nil {
		if err := h.feeds.SetStale(url, *req.Stale); err != nil {
			h.feedWriteError(c, "set_stale", url, err)
			return
		}
	}

	c.Status(http.StatusNoContent)
}

// RefreshFeeds enqueues an update for one feed, or for all feeds when the
// url parameter is omitted.
func (h *Handler) RefreshFeeds(c *gin.Context) {
	url := c.Query("url")

	var task tasks.TaskInterface
	if url == "" {
		task = tasks.NewUpdateAllFeedsTask(h.updater)
	} else {
		f, err := h.feeds.GetFeed(url)
		if err != nil {
			slog.Error("Database error", "operation", "get_feed", "feed", url, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		if f == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
			return
		}
		task = tasks.NewUpdateFeedTask(url, h.updater)
	}

	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Failed to enqueue update task", "feed", url, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to enqueue task", "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task": gin.H{
			"id":   task.GetID(),
			"type": task.GetType(),
		},
	})
}

func (h *Handler) ListEntries(c *gin.Context) {
	filter := database.EntryFilter{FeedURL: c.Query("feed")}

	var err error
	if filter.Read, err = boolQuery(c, "read"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid read parameter"})
		return
	}
	if filter.Important, err = boolQuery(c, "important"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid important parameter"})
		return
	}

	limit := defaultEntryLimit
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		if limit > maxEntryLimit {
			limit = maxEntryLimit
		}
	}

	it := h.entries.ListEntries(filter, database.ListOptions{
		Cursor: c.Query("cursor"),
		Limit:  limit,
	})
	entries, err := it.All()
	if err != nil {
		slog.Error("Database error", "operation", "list_entries", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := gin.H{
		"entries": entries,
		"total":   len(entries),
	}
	// A full page means there may be more; hand out the resume cursor.
	if len(entries) == limit {
		response["next_cursor"] = it.Cursor()
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) PatchEntry(c *gin.Context) {
	feedURL := c.Query("feed")
	id := c.Query("id")
	if feedURL == "" || id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed or id parameter"})
		return
	}

	var req patchEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if req.Read != nil {
		if err := h.entries.SetRead(feedURL, id, *req.Read); err != nil {
			h.entryWriteError(c, feedURL, id, err)
			return
		}
	}
	if req.Important != nil {
		if err := h.entries.SetImportant(feedURL, id, *req.Important); err != nil {
			h.entryWriteError(c, feedURL, id, err)
			return
		}
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) ListTags(c *gin.Context) {
	feedURL := c.Query("feed")
	if feedURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed parameter"})
		return
	}

	tags, err := h.tags.ListTags(feedURL)
	if err != nil {
		slog.Error("Database error", "operation", "list_tags", "feed", feedURL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

// SetTag stores the request body as the tag value; any JSON document is a
// valid value.
func (h *Handler) SetTag(c *gin.Context) {
	feedURL := c.Query("feed")
	key := c.Query("key")
	if feedURL == "" || key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed or key parameter"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}
	if len(body) == 0 {
		body = []byte("null")
	}
	if !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Tag value must be valid JSON"})
		return
	}

	if err := h.tags.SetTag(feedURL, key, json.RawMessage(body)); err != nil {
		slog.Error("Database error", "operation", "set_tag", "feed", feedURL, "tag", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteTag(c *gin.Context) {
	feedURL := c.Query("feed")
	key := c.Query("key")
	if feedURL == "" || key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed or key parameter"})
		return
	}

	if err := h.tags.DeleteTag(feedURL, key); err != nil {
		slog.Error("Database error", "operation", "delete_tag", "feed", feedURL, "tag", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) ImportOPML(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing OPML document in request body"})
		return
	}

	result, err := h.importer.Import(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse OPML", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"imported": result.Imported,
		"skipped":  result.Skipped,
		"errors":   result.Errors,
	})
}

func (h *Handler) feedWriteError(c *gin.Context, op, url string, err error) {
	if errors.Is(err, database.ErrFeedNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}
	slog.Error("Database error", "operation", op, "feed", url, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
}

func (h *Handler) entryWriteError(c *gin.Context, feedURL, id string, err error) {
	if errors.Is(err, database.ErrEntryNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
		return
	}
	slog.Error("Database error", "operation", "patch_entry", "feed", feedURL, "entry", id, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
}

func boolQuery(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &value, nil
}
