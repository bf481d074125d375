package cfg

import (
	"testing"
)

func TestGetVersion(t *testing.T) {
	// Test default version
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}

	// Test that version is at least "dev" or "unknown"
	version := GetVersion()
	if version != "dev" && version != "unknown" {
		// This is fine, version could be set at build time
		t.Logf("Version: %s", version)
	}
}

func TestConfigFields(t *testing.T) {
	// Create a config instance to test field access
	cfg := &Cfg{
		DBPath:          "./data/test.db",
		FeedsDir:        "./feeds",
		FeedRoot:        "/srv/feeds",
		Port:            "8080",
		WorkerCount:     5,
		UpdateSchedule:  "@every 30m",
		ExtractSchedule: "@every 15m",
		APIAccessKey:    "test-key",
		UserAgent:       "Test Agent",
		Timeout:         30,
		Timezone:        "UTC",
		Debug:           true,
		Version:         "test-version",
	}

	// Test direct field access
	if cfg.DBPath != "./data/test.db" {
		t.Errorf("Expected DB path './data/test.db', got '%s'", cfg.DBPath)
	}
	if cfg.FeedsDir != "./feeds" {
		t.Errorf("Expected feeds dir './feeds', got '%s'", cfg.FeedsDir)
	}
	if cfg.FeedRoot != "/srv/feeds" {
		t.Errorf("Expected feed root '/srv/feeds', got '%s'", cfg.FeedRoot)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected port '8080', got '%s'", cfg.Port)
	}
	if cfg.WorkerCount != 5 {
		t.Errorf("Expected worker count 5, got %d", cfg.WorkerCount)
	}
	if cfg.UpdateSchedule != "@every 30m" {
		t.Errorf("Expected update schedule '@every 30m', got '%s'", cfg.UpdateSchedule)
	}
	if cfg.ExtractSchedule != "@every 15m" {
		t.Errorf("Expected extract schedule '@every 15m', got '%s'", cfg.ExtractSchedule)
	}
	if cfg.APIAccessKey != "test-key" {
		t.Errorf("Expected API key 'test-key', got '%s'", cfg.APIAccessKey)
	}
	if cfg.UserAgent != "Test Agent" {
		t.Errorf("Expected user agent 'Test Agent', got '%s'", cfg.UserAgent)
	}
	if cfg.Timeout != 30 {
		t.Errorf("Expected timeout 30, got %d", cfg.Timeout)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("Expected timezone 'UTC', got '%s'", cfg.Timezone)
	}
	if !cfg.Debug {
		t.Error("Expected debug to be enabled")
	}
	if cfg.Version != "test-version" {
		t.Errorf("Expected version 'test-version', got '%s'", cfg.Version)
	}
}
