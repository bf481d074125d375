package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSubscription(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestCacheLoadValidSubscription(t *testing.T) {
	tempDir := t.TempDir()

	content := `
url: "https://example.com/feed.xml"
user_title: "Example Feed"
extract_content: true

tags:
  mark-read:
    title:
      - "^Sponsored"
`
	writeSubscription(t, tempDir, "example.yml", content)

	cache := NewCache(tempDir)
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}

	if cache.Count() != 1 {
		t.Errorf("Expected 1 subscription, got %d", cache.Count())
	}

	sub, err := cache.Get("example")
	if err != nil {
		t.Fatal(err)
	}

	if sub.Name != "example" {
		t.Errorf("Expected name 'example', got '%s'", sub.Name)
	}
	if sub.URL != "https://example.com/feed.xml" {
		t.Errorf("Expected URL 'https://example.com/feed.xml', got '%s'", sub.URL)
	}
	if sub.UserTitle != "Example Feed" {
		t.Errorf("Expected user title 'Example Feed', got '%s'", sub.UserTitle)
	}
	if !sub.ExtractContent {
		t.Error("Expected extract_content to be enabled")
	}
	if !sub.UpdatesEnabled() {
		t.Error("Expected subscription to be enabled by default")
	}
	if _, ok := sub.Tags["mark-read"]; !ok {
		t.Error("Expected mark-read tag to be loaded")
	}
}

func TestCacheLoadDisabledSubscription(t *testing.T) {
	tempDir := t.TempDir()

	content := `
url: "https://example.com/feed.xml"
enabled: false
`
	writeSubscription(t, tempDir, "disabled.yml", content)

	cache := NewCache(tempDir)
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}

	sub, err := cache.Get("disabled")
	if err != nil {
		t.Fatal(err)
	}

	if sub.UpdatesEnabled() {
		t.Error("Expected subscription to be disabled")
	}
}

func TestCacheLoadMissingURL(t *testing.T) {
	tempDir := t.TempDir()

	writeSubscription(t, tempDir, "broken.yml", `user_title: "No URL"`)

	cache := NewCache(tempDir)
	err := cache.Run()
	if err == nil {
		t.Fatal("Expected an error for a subscription without a URL")
	}
	if !strings.Contains(err.Error(), "feed URL is required") {
		t.Errorf("Expected URL validation error, got: %v", err)
	}
}

func TestCacheLoadInvalidYAML(t *testing.T) {
	tempDir := t.TempDir()

	writeSubscription(t, tempDir, "broken.yml", "url: [unclosed")

	cache := NewCache(tempDir)
	if err := cache.Run(); err == nil {
		t.Fatal("Expected an error for invalid YAML")
	}
}

func TestCacheMissingDirectory(t *testing.T) {
	cache := NewCache(filepath.Join(t.TempDir(), "does-not-exist"))
	if err := cache.Run(); err != nil {
		t.Errorf("Expected a missing directory to be tolerated, got: %v", err)
	}
	if cache.Count() != 0 {
		t.Errorf("Expected no subscriptions, got %d", cache.Count())
	}
}

func TestCacheYAMLExtension(t *testing.T) {
	tempDir := t.TempDir()

	writeSubscription(t, tempDir, "alt.yaml", `url: "https://alt.example.com/feed.xml"`)

	cache := NewCache(tempDir)
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}

	sub, err := cache.Get("alt")
	if err != nil {
		t.Fatal(err)
	}
	if sub.URL != "https://alt.example.com/feed.xml" {
		t.Errorf("Expected .yaml files to load, got URL '%s'", sub.URL)
	}
}

func TestCacheGetByURL(t *testing.T) {
	tempDir := t.TempDir()

	writeSubscription(t, tempDir, "one.yml", `url: "https://one.example.com/feed.xml"`)
	writeSubscription(t, tempDir, "two.yml", `url: "https://two.example.com/feed.xml"`)

	cache := NewCache(tempDir)
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}

	sub, ok := cache.GetByURL("https://two.example.com/feed.xml")
	if !ok {
		t.Fatal("Expected to find subscription by URL")
	}
	if sub.Name != "two" {
		t.Errorf("Expected name 'two', got '%s'", sub.Name)
	}

	if _, ok := cache.GetByURL("https://missing.example.com/feed.xml"); ok {
		t.Error("Expected no subscription for an unknown URL")
	}
}

func TestCacheGetUnknownName(t *testing.T) {
	cache := NewCache(t.TempDir())
	if _, err := cache.Get("missing"); err == nil {
		t.Error("Expected an error for an unknown subscription name")
	}
}
