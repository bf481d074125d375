package retrieval

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"refeed/app/feed"
)

// Accept header enumerating the supported feed media types, matching what
// desktop aggregators send.
const acceptHeader = "application/atom+xml,application/rdf+xml,application/rss+xml,application/x-netcdf,application/xml;q=0.9,text/xml;q=0.2,*/*;q=0.1"

// Result is a successfully retrieved document plus the caching validators
// to store for the next conditional request.
type Result struct {
	Data         []byte
	ETag         string
	LastModified string
}

// Options configures a Client. There is no process-wide registration:
// everything a Client needs is passed here.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// FeedRoot is the directory file URLs and bare paths resolve under.
	// Empty disables file access entirely.
	FeedRoot string
}

// Client fetches feed documents over HTTP(S) or, when a feed root is
// configured, from local files.
type Client struct {
	httpClient *http.Client
	userAgent  string
	feedRoot   string
}

// New creates a retrieval client for the given options.
func New(opts Options) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		userAgent:  opts.UserAgent,
		feedRoot:   opts.FeedRoot,
	}
}

// Retrieve fetches the document at url. etag and lastModified are the
// caching validators stored by the previous retrieval; when the remote
// reports the document unchanged, Retrieve returns feed.ErrNotModified.
func (c *Client) Retrieve(ctx context.Context, url, etag, lastModified string) (*Result, error) {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return c.retrieveHTTP(ctx, url, etag, lastModified)
	}
	return c.retrieveFile(url)
}

func (c *Client) retrieveHTTP(ctx context.Context, url, etag, lastModified string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &feed.RetrieveError{URL: url, Err: err}
	}

	req.Header.Set("Accept", acceptHeader)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
		// RFC 3229 delta encoding signal, sent only with a validator.
		req.Header.Set("A-IM", "feed")
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &feed.RetrieveError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		slog.Debug("Feed not modified", "feed", url)
		return nil, feed.ErrNotModified
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &feed.RetrieveError{URL: url, Err: fmt.Errorf("bad HTTP status: %s", resp.Status)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &feed.RetrieveError{URL: url, Err: err}
	}

	// Responses without validators keep the stored ones.
	result := &Result{
		Data:         data,
		ETag:         etag,
		LastModified: lastModified,
	}
	if v := resp.Header.Get("ETag"); v != "" {
		result.ETag = v
	}
	if v := resp.Header.Get("Last-Modified"); v != "" {
		result.LastModified = v
	}

	return result, nil
}
