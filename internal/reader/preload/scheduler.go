// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package preload decides when the next chapter of a continuous-mode reading
session should be fetched ahead of the viewer.

The rule: once the viewer has read 90% (configurable) of the chapter under
the current page, preload the immediately-following catalog chapter — at most
once per chapter, gate permitting. The single-attempt bookkeeping lives on
the scheduler instance (one per reading session), never in package state, so
scroll jitter back and forth across the threshold cannot trigger a second
attempt.

Single-chapter mode does no preloading; sessions simply never attach the
scheduler there.
*/
package preload

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/taibuivan/yomira-reader/internal/reader/access"
	"github.com/taibuivan/yomira-reader/internal/reader/buffer"
)

// Scheduler watches in-chapter progress and triggers next-chapter preloads.
//
// # State
//
// lastPreloadedChapterID records the chapter whose "next" was already
// attempted this session. It is set regardless of the load's outcome: a
// failed preload is not retried near the boundary (the explicit navigation
// path handles it with proper error surfacing instead).
type Scheduler struct {
	buffer    *buffer.Buffer
	threshold float64
	logger    *slog.Logger
	now       func() time.Time

	mu                     sync.Mutex
	lastPreloadedChapterID string
}

// NewScheduler constructs a [Scheduler] for one reading session.
//
// # Parameters
//   - buf: The session's chapter buffer.
//   - threshold: In-chapter progress fraction that arms the preload (0..1].
//   - logger: Structured logger.
func NewScheduler(buf *buffer.Buffer, threshold float64, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		buffer:    buf,
		threshold: threshold,
		logger:    logger,
		now:       time.Now,
	}
}

/*
OnPageChange reacts to a current-page update from the visibility tracker.

Description: Locates the chapter containing the page and, when the progress
fraction reaches the threshold, preloads the following catalog chapter if it
is not buffered yet and the access gate permits. The attempt marker is set
before the load is issued so boundary oscillation never schedules twice.

Parameters:
  - context: context.Context (Governs the background fetch)
  - absolutePage: int (1-based page across the buffered chapters)
*/
func (scheduler *Scheduler) OnPageChange(context context.Context, absolutePage int) {
	location, ok := scheduler.buffer.Locate(absolutePage)
	if !ok || location.PageCount == 0 {
		return
	}

	if location.Fraction < scheduler.threshold {
		return
	}

	scheduler.mu.Lock()
	if scheduler.lastPreloadedChapterID == location.ChapterID {
		scheduler.mu.Unlock()
		return
	}

	navigation := scheduler.buffer.NavigationMeta(location.ChapterID)
	if !navigation.HasNext {
		// Final chapter: nothing to preload, but mark the attempt so the
		// lookup does not repeat on every page update near the end.
		scheduler.lastPreloadedChapterID = location.ChapterID
		scheduler.mu.Unlock()
		return
	}

	next := navigation.Next
	if scheduler.buffer.Contains(next.ID) {
		scheduler.mu.Unlock()
		return
	}

	// One attempt per chapter, success or not.
	scheduler.lastPreloadedChapterID = location.ChapterID
	scheduler.mu.Unlock()

	// Gate check up front: a denied next chapter is silently skipped here;
	// explicit navigation will surface the proper messaging.
	decision := access.Evaluate(next.Policy, scheduler.buffer.Tier(), scheduler.now())
	if !decision.Allowed {
		scheduler.logger.Debug("preload_skipped_gated",
			slog.String("chapter_id", next.ID),
			slog.String("reason", string(decision.Reason)),
		)
		return
	}

	scheduler.logger.Debug("preload_triggered",
		slog.String("current_chapter_id", location.ChapterID),
		slog.String("next_chapter_id", next.ID),
		slog.Int("page_in_chapter", location.PageInChapter),
	)

	go func() {
		if _, err := scheduler.buffer.LoadChapter(context, next.ID); err != nil {
			scheduler.logger.Warn("preload_failed",
				slog.String("chapter_id", next.ID),
				slog.Any("error", err),
			)
		}
	}()
}

// LastPreloadedChapterID returns the attempt marker. Test hook.
func (scheduler *Scheduler) LastPreloadedChapterID() string {
	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()
	return scheduler.lastPreloadedChapterID
}

// WithClock overrides the gate clock. Test hook.
func (scheduler *Scheduler) WithClock(now func() time.Time) *Scheduler {
	scheduler.now = now
	return scheduler
}
