package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"refeed/app/feed"
)

func TestRetrieveFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "feed.xml")
	if err := os.WriteFile(path, []byte("<rss/>"), 0o644); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	client := New(Options{FeedRoot: root})
	result, err := client.Retrieve(context.Background(), "feed.xml", "", "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if string(result.Data) != "<rss/>" {
		t.Errorf("Expected file contents, got: %s", result.Data)
	}
	if result.ETag != "" || result.LastModified != "" {
		t.Error("Expected no caching validators for local files")
	}
}

func TestRetrieveFileURL(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "feed.xml")
	if err := os.WriteFile(path, []byte("<rss/>"), 0o644); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	client := New(Options{FeedRoot: root})
	result, err := client.Retrieve(context.Background(), "file://"+path, "", "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if string(result.Data) != "<rss/>" {
		t.Errorf("Expected file contents, got: %s", result.Data)
	}
}

func TestRetrieveFileEscapingPathRejected(t *testing.T) {
	root := t.TempDir()
	client := New(Options{FeedRoot: root})

	tests := []struct {
		name string
		url  string
	}{
		{"absolute path outside root", "file:///etc/passwd"},
		{"relative escape", "../../etc/passwd"},
		{"nested relative escape", "feeds/../../outside.xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Retrieve(context.Background(), tt.url, "", "")

			var retrieveErr *feed.RetrieveError
			if !errors.As(err, &retrieveErr) {
				t.Fatalf("Expected RetrieveError, got: %v", err)
			}
		})
	}
}

func TestRetrieveFileAccessDisabled(t *testing.T) {
	client := New(Options{})

	_, err := client.Retrieve(context.Background(), "feed.xml", "", "")

	var retrieveErr *feed.RetrieveError
	if !errors.As(err, &retrieveErr) {
		t.Fatalf("Expected RetrieveError without a feed root, got: %v", err)
	}
}

func TestIsReservedName(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		expected bool
	}{
		{"con", "CON", true},
		{"con lowercase", "con", true},
		{"con with extension", "con.xml", true},
		{"nul", "nul", true},
		{"com port", "COM1", true},
		{"lpt port", "lpt9.txt", true},
		{"com zero not reserved", "COM0", false},
		{"regular name", "feed.xml", false},
		{"prefix only", "console", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isReservedName(tt.base); got != tt.expected {
				t.Errorf("isReservedName(%q) = %v, want %v", tt.base, got, tt.expected)
			}
		})
	}
}

func TestRetrieveReservedNameRejected(t *testing.T) {
	root := t.TempDir()
	client := New(Options{FeedRoot: root})

	_, err := client.Retrieve(context.Background(), "nul.xml", "", "")

	var retrieveErr *feed.RetrieveError
	if !errors.As(err, &retrieveErr) {
		t.Fatalf("Expected RetrieveError for reserved name, got: %v", err)
	}
}
