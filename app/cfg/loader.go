package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/refeed.db" description:"Path to the SQLite database file"`

	// Application configuration
	FeedsDir        string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing subscription configuration files"`
	FeedRoot        string `long:"feed-root" env:"FEED_ROOT" description:"Directory local file feeds resolve under (empty disables file feeds)"`
	Port            string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount     int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of concurrent feed updates"`
	UpdateSchedule  string `long:"update-schedule" env:"UPDATE_SCHEDULE" default:"@every 30m" description:"Cron schedule for feed updates"`
	ExtractSchedule string `long:"extract-schedule" env:"EXTRACT_SCHEDULE" default:"@every 15m" description:"Cron schedule for content extraction"`
	APIAccessKey    string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Retrieval configuration
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"refeed/1.0" description:"User agent string for HTTP requests"`
	Timeout   int    `long:"timeout" env:"TIMEOUT" default:"30" description:"HTTP request timeout in seconds"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:          raw.DBPath,
		FeedsDir:        raw.FeedsDir,
		FeedRoot:        raw.FeedRoot,
		Port:            raw.Port,
		WorkerCount:     raw.WorkerCount,
		UpdateSchedule:  raw.UpdateSchedule,
		ExtractSchedule: raw.ExtractSchedule,
		APIAccessKey:    raw.APIAccessKey,
		UserAgent:       raw.UserAgent,
		Timeout:         raw.Timeout,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
