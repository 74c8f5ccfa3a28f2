package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"calnotes/internal/config"
	"calnotes/internal/google"
	"calnotes/internal/httpauth"
	"calnotes/internal/icloud"
	"calnotes/internal/ics"
	"calnotes/internal/storage"
	"calnotes/internal/syncer"
)

const feedTimeout = 30 * time.Second

// buildSources creates the calendar sources for the configured source kind.
// Google yields one source per authenticated account.
func buildSources(ctx context.Context, logger *slog.Logger, cfg *config.Config) ([]syncer.CalendarSource, error) {
	switch cfg.Source {
	case config.SourceGoogle:
		accounts := []string{cfg.Google.Account}
		if cfg.Google.Account == "" {
			found, err := google.GetTokenAccounts(cfg.Google.TokenDir)
			if err != nil {
				return nil, fmt.Errorf("could not find any google accounts, did you run auth command? %w", err)
			}
			accounts = found
		}
		if len(accounts) == 0 {
			return nil, fmt.Errorf("no google accounts found. Run the 'auth' command first")
		}

		var sources []syncer.CalendarSource
		for _, acc := range accounts {
			client, err := google.NewClient(ctx, logger, cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.TokenDir, acc)
			if err != nil {
				return nil, fmt.Errorf("failed to create google client for account %s: %w", acc, err)
			}
			sources = append(sources, client)
		}
		logger.Info("Initialized Google clients for all accounts.", "count", len(sources))
		return sources, nil

	case config.SourceCalDAV:
		httpClient := httpauth.NewClient(cfg.CalDAV.Username, cfg.CalDAV.Password, cfg.CalDAV.RequestsPerSecond)
		client, err := icloud.NewClient(logger, httpClient, cfg.CalDAV.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to create caldav client: %w", err)
		}
		return []syncer.CalendarSource{client}, nil

	case config.SourceICS:
		return []syncer.CalendarSource{ics.NewSource(logger, &http.Client{Timeout: feedTimeout}, cfg.ICS.Location)}, nil

	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}

// buildStore creates the note store. Remote stores get a read cache.
func buildStore(logger *slog.Logger, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Kind {
	case config.StorageFS:
		return storage.NewFS(cfg.Storage.Root)

	case config.StorageWebDAV:
		httpClient := httpauth.NewClient(cfg.Storage.Username, cfg.Storage.Password, cfg.Storage.RequestsPerSecond)
		store, err := storage.NewWebDAV(logger, httpClient, cfg.Storage.Endpoint)
		if err != nil {
			return nil, err
		}
		if cfg.Storage.CacheSize <= 0 {
			return store, nil
		}
		return storage.NewCached(store, cfg.Storage.CacheSize)

	default:
		return nil, fmt.Errorf("unknown storage kind %q", cfg.Storage.Kind)
	}
}
