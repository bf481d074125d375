package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"refeed/app/api"
	"refeed/app/cfg"
	"refeed/app/config"
	"refeed/app/database"
	"refeed/app/feed"
	"refeed/app/opml"
	"refeed/app/plugins"
	"refeed/app/retrieval"
	"refeed/app/tasks"
	"refeed/app/update"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting refeed", "version", appCfg.Version)

	db, err := database.NewDB(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	feedRepo := database.NewFeedRepository(db)
	entryRepo := database.NewEntryRepository(db)
	tagRepo := database.NewTagRepository(db)
	updateRepo := database.NewUpdateRepository(db)

	subs := config.NewCache(appCfg.FeedsDir)
	syncer := config.NewSyncer(subs, feedRepo, tagRepo)

	retriever := retrieval.New(retrieval.Options{
		Timeout:   time.Duration(appCfg.Timeout) * time.Second,
		UserAgent: appCfg.UserAgent,
		FeedRoot:  appCfg.FeedRoot,
	})
	parser := feed.NewParser()

	updater := update.NewUpdater(retriever, parser, updateRepo, feedRepo, appCfg.WorkerCount)

	plugins.NewMarkRead(entryRepo, tagRepo).Register(updater.Hooks())

	updater.Hooks().OnBeforeFeeds(func(ctx context.Context) error {
		slog.Debug("Batch update starting")
		return nil
	})
	updater.Hooks().OnAfterFeeds(func(ctx context.Context) error {
		slog.Debug("Batch update finished")
		return nil
	})

	scheduler := tasks.NewScheduler(appCfg.WorkerCount)
	scheduler.Start()
	defer scheduler.Stop()

	extractor := feed.NewExtractor()
	extractClient := &http.Client{Timeout: time.Duration(appCfg.Timeout) * time.Second}

	enqueueUpdates := func() {
		if err := scheduler.EnqueueTask(tasks.NewSyncSubscriptionsTask(subs, syncer)); err != nil {
			slog.Warn("Failed to enqueue subscription sync", "error", err)
		}
		if err := scheduler.EnqueueTask(tasks.NewUpdateAllFeedsTask(updater)); err != nil {
			slog.Warn("Failed to enqueue batch update", "error", err)
		}
	}

	enqueueExtractions := func() {
		for _, sub := range subs.GetAll() {
			if !sub.ExtractContent {
				continue
			}
			task := tasks.NewExtractContentTask(sub.URL, extractClient, extractor, entryRepo,
				appCfg.UserAgent, time.Duration(appCfg.Timeout)*time.Second)
			if err := scheduler.EnqueueTask(task); err != nil {
				slog.Warn("Failed to enqueue content extraction", "feed", sub.URL, "error", err)
			}
		}
	}

	enqueueUpdates()

	triggers := cron.New()
	if _, err := triggers.AddFunc(appCfg.UpdateSchedule, enqueueUpdates); err != nil {
		slog.Error("Invalid update schedule", "schedule", appCfg.UpdateSchedule, "error", err)
		os.Exit(1)
	}
	if _, err := triggers.AddFunc(appCfg.ExtractSchedule, enqueueExtractions); err != nil {
		slog.Error("Invalid extract schedule", "schedule", appCfg.ExtractSchedule, "error", err)
		os.Exit(1)
	}
	triggers.Start()
	defer triggers.Stop()

	importer := opml.NewImporter(feedRepo)
	handler := api.NewHandler(feedRepo, entryRepo, tagRepo, updater, scheduler, importer)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Shutting down", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("HTTP server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}

	slog.Info("Shutdown complete")
}
