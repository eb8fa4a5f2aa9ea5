// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/taibuivan/yomira-reader/internal/platform/constants"
)

// # Debounced Saver

/*
Saver collapses the page-change firehose into occasional persisted saves.

Every observed position is keyed by (comic, chapter, page): identical
consecutive states inside the debounce window collapse into one write, a
changed state cancels the pending timer and reschedules. The viewer
identity is resolved at write time, not at observe time, so a login during
the debounce window routes the save to the right backend.

Flush writes the last known position synchronously to the guest store as a
durability net before teardown.
*/
type Saver struct {
	service  *Service
	identity func() Identity
	window   time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending *Entry
	key     string
	last    *Entry
	closed  bool
}

// NewSaver constructs a debounced progress saver.
//
// # Parameters
//   - service: Progress service performing the actual writes.
//   - identity: Resolver called at write time for the current viewer.
//   - window: Debounce window (constants.DefaultSaveDebounce when zero).
//   - logger: Structured logger for write failures.
func NewSaver(service *Service, identity func() Identity, window time.Duration, logger *slog.Logger) *Saver {
	if window <= 0 {
		window = constants.DefaultSaveDebounce
	}
	return &Saver{
		service:  service,
		identity: identity,
		window:   window,
		logger:   logger,
	}
}

// stateKey identifies a position for collapse purposes.
func stateKey(entry *Entry) string {
	return fmt.Sprintf("%s|%s|%d", entry.ComicID, entry.ChapterID, entry.PageNumber)
}

// Observe records a position change and (re)schedules the debounced write.
func (saver *Saver) Observe(entry Entry) {
	saver.mu.Lock()
	defer saver.mu.Unlock()

	if saver.closed {
		return
	}

	saver.last = &entry

	// Identical state already pending: let the running timer carry it
	key := stateKey(&entry)
	if saver.pending != nil && saver.key == key {
		return
	}

	// State changed: drop the pending write and restart the window
	if saver.timer != nil {
		saver.timer.Stop()
	}
	saver.pending = &entry
	saver.key = key
	saver.timer = time.AfterFunc(saver.window, saver.fire)
}

// fire performs the debounced write once the window closes.
func (saver *Saver) fire() {
	saver.mu.Lock()
	entry := saver.pending
	saver.pending = nil
	saver.key = ""
	saver.mu.Unlock()

	if entry == nil {
		return
	}

	if err := saver.service.SaveProgress(context.Background(), saver.identity(), entry); err != nil {
		saver.logger.Warn("progress_debounced_save_failed",
			slog.String("comic_id", entry.ComicID),
			slog.String("error", err.Error()),
		)
	}
}

/*
Flush cancels any pending debounce and writes the last known position
synchronously to the guest store.

Description: Best-effort durability net for teardown. The flush always
wins over a debounced write that already fired: it runs after the timer
is stopped and carries the most recent observed state.

Parameters:
  - context: context.Context

Returns:
  - error: Guest-store write failure
*/
func (saver *Saver) Flush(context context.Context) error {
	saver.mu.Lock()
	if saver.timer != nil {
		saver.timer.Stop()
	}
	saver.pending = nil
	saver.key = ""
	entry := saver.last
	saver.mu.Unlock()

	if entry == nil {
		return nil
	}

	return saver.service.SaveLocal(context, saver.identity(), entry)
}

// Close flushes and permanently stops the saver.
func (saver *Saver) Close(context context.Context) error {
	err := saver.Flush(context)

	saver.mu.Lock()
	saver.closed = true
	saver.mu.Unlock()

	return err
}
