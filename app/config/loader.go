package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Cache loads subscription files from the feeds directory and keeps them
// in memory, keyed by subscription name.
type Cache struct {
	feedsDir string
	cache    map[string]*Subscription
	mu       sync.RWMutex
}

func NewCache(feedsDir string) *Cache {
	return &Cache{
		feedsDir: feedsDir,
		cache:    make(map[string]*Subscription),
	}
}

// Run loads every subscription file in the feeds directory. A missing
// directory is not an error; an invalid file is.
func (c *Cache) Run() error {
	if _, err := os.Stat(c.feedsDir); os.IsNotExist(err) {
		return nil
	}

	var files []string
	for _, pattern := range []string{"*.yml", "*.yaml"} {
		matches, err := filepath.Glob(filepath.Join(c.feedsDir, pattern))
		if err != nil {
			return fmt.Errorf("failed to find subscription files: %w", err)
		}
		files = append(files, matches...)
	}

	for _, file := range files {
		name := subscriptionName(file)

		sub, err := c.Load(name)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Subscription loaded", "name", name, "url", sub.URL, "enabled", sub.UpdatesEnabled())
	}

	return nil
}

// Load reads and caches one subscription by name, preferring the .yml
// extension when both exist.
func (c *Cache) Load(name string) (*Subscription, error) {
	file := c.subscriptionFilePath(name)
	sub, err := c.parse(file)
	if err != nil {
		return nil, err
	}

	sub.Name = name

	if err := c.validate(sub); err != nil {
		return nil, fmt.Errorf("invalid subscription %s: %w", file, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[sub.Name] = sub

	return sub, nil
}

func (c *Cache) Get(name string) (*Subscription, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sub, ok := c.cache[name]
	if !ok {
		return nil, fmt.Errorf("subscription with name '%s' not found", name)
	}
	return sub, nil
}

func (c *Cache) GetAll() map[string]*Subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()

	subsCopy := make(map[string]*Subscription, len(c.cache))
	for k, v := range c.cache {
		subsCopy[k] = v
	}
	return subsCopy
}

// GetByURL returns the subscription for a feed URL, if one exists.
func (c *Cache) GetByURL(url string) (*Subscription, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, sub := range c.cache {
		if sub.URL == url {
			return sub, true
		}
	}
	return nil, false
}

func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func (c *Cache) parse(file string) (*Subscription, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var sub Subscription
	if err := yaml.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &sub, nil
}

func (c *Cache) validate(sub *Subscription) error {
	if sub == nil {
		return fmt.Errorf("subscription is nil")
	}
	if sub.Name == "" {
		return fmt.Errorf("subscription name is required")
	}
	if sub.URL == "" {
		return fmt.Errorf("feed URL is required")
	}

	for key := range sub.Tags {
		if key == "" {
			return fmt.Errorf("tag keys must not be empty")
		}
	}

	return nil
}

func (c *Cache) subscriptionFilePath(name string) string {
	yml := filepath.Join(c.feedsDir, name+".yml")
	if _, err := os.Stat(yml); err == nil {
		return yml
	}
	return filepath.Join(c.feedsDir, name+".yaml")
}

func subscriptionName(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
