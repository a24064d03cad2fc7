// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package recordstore

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSeedDebounce absorbs the burst of events one editor save produces.
const DefaultSeedDebounce = 500 * time.Millisecond

// SeedWatcher reloads a seed file into a store whenever it changes.
//
// # Description
//
// Watches the file's directory rather than the file so that editors which
// save by rename are still seen. Events for other files are ignored. A
// reload runs once the file has been quiet for the debounce window.
// Reloads upsert; records removed from the file stay in the store.
//
// # Thread Safety
//
// Run should be called once.
type SeedWatcher struct {
	path     string
	store    Store
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	// OnReload, when set, is called after every reload attempt.
	OnReload func(count int, err error)
}

// NewSeedWatcher creates a watcher for path. A zero debounce uses
// DefaultSeedDebounce.
func NewSeedWatcher(path string, store Store, debounce time.Duration, logger *slog.Logger) (*SeedWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultSeedDebounce
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SeedWatcher{
		path:     abs,
		store:    store,
		watcher:  watcher,
		debounce: debounce,
		logger:   logger.With("component", "seed_watcher", "path", abs),
	}, nil
}

// Run blocks until ctx is cancelled, then closes the watcher.
//
// # Example
//
//	w, _ := recordstore.NewSeedWatcher("students.yaml", store, 0, logger)
//	go w.Run(ctx)
func (w *SeedWatcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	w.logger.Debug("Started watching seed file")
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			w.reload(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Seed watcher error", "error", err)

		case <-ctx.Done():
			w.logger.Debug("Seed watcher stopping")
			return
		}
	}
}

func (w *SeedWatcher) reload(ctx context.Context) {
	n, err := SeedFromFile(ctx, w.store, w.path)
	if err != nil {
		w.logger.Warn("Seed reload failed", "error", err)
	} else {
		w.logger.Info("Seed file reloaded", "count", n)
	}
	if w.OnReload != nil {
		w.OnReload(n, err)
	}
}
