// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// SNAPSHOT FILE WATCHER
// =============================================================================

// Watcher reloads the store when the snapshot file is rewritten by
// another process (a second client instance or a sync tool). Events are
// debounced because an atomic write shows up as Create+Rename pairs.
type Watcher struct {
	store    *Store
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu          sync.Mutex
	lastChange  time.Time
	pendingLoad bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWatcher creates a watcher for the snapshot file at path.
func NewWatcher(s *Store, path string, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		store:    s,
		path:     path,
		watcher:  fsw,
		debounce: debounce,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Watch starts the event and debounce goroutines. Watching the parent
// directory rather than the file itself survives atomic rename-replace.
func (w *Watcher) Watch() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	go w.processEvents()
	go w.processPending()

	return nil
}

// Close stops the watcher goroutines.
func (w *Watcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.lastChange = time.Now()
				w.pendingLoad = true
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("store watcher error: %v", err)
		}
	}
}

func (w *Watcher) processPending() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			w.mu.Lock()
			ready := w.pendingLoad && time.Since(w.lastChange) >= w.debounce
			if ready {
				w.pendingLoad = false
			}
			w.mu.Unlock()

			if ready {
				if err := w.store.LoadFile(w.path); err != nil {
					log.Printf("store reload failed: %v", err)
				}
			}
		}
	}
}
