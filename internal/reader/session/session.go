// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package session composes the reader engine for one comic and one viewer.

A session owns the chapter buffer, the viewport tracker, the preload
scheduler, the debounced progress saver, and the restoration protocol, and
wires the page-change stream through them: the tracker emits the current
absolute page, the scheduler decides whether the next chapter should be
prefetched, and the saver debounces the position into the progress store.

Teardown is ordered: the viewport tracker closes first (resolving every
parked scroll wait), then the saver flushes the last known position to the
guest store, then the session context is cancelled.
*/
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/taibuivan/yomira-reader/internal/catalog"
	"github.com/taibuivan/yomira-reader/internal/platform/constants"
	"github.com/taibuivan/yomira-reader/internal/reader/access"
	"github.com/taibuivan/yomira-reader/internal/reader/buffer"
	"github.com/taibuivan/yomira-reader/internal/reader/preload"
	"github.com/taibuivan/yomira-reader/internal/reader/progress"
	"github.com/taibuivan/yomira-reader/internal/reader/restore"
	"github.com/taibuivan/yomira-reader/internal/reader/viewport"
)

// # Reading Modes

// Mode selects how chapter navigation behaves.
type Mode string

const (
	// ModeContinuous appends chapters to one scroll surface and preloads
	// the next chapter near the end of the current one.
	ModeContinuous Mode = "continuous"

	// ModeSingle shows one chapter at a time; navigation swaps the buffer
	// and no preloading occurs.
	ModeSingle Mode = "single"
)

// # Session Composition

// Config carries the collaborators a session is assembled from.
type Config struct {
	Comic     *catalog.Comic
	Mode      Mode
	Tier      access.Tier
	Fetcher   buffer.Fetcher
	Container viewport.Container
	Progress  *progress.Service
	Identity  func() progress.Identity
	Logger    *slog.Logger

	// Zero values fall back to the deployment defaults.
	PreloadThreshold float64
	SaveDebounce     time.Duration
}

// Session is a live reading session for one comic.
type Session struct {
	comic     *catalog.Comic
	mode      Mode
	buffer    *buffer.Buffer
	tracker   *viewport.Tracker
	scheduler *preload.Scheduler
	saver     *progress.Saver
	protocol  *restore.Protocol
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// New assembles a session and wires the page-change stream.
func New(config Config) *Session {
	threshold := config.PreloadThreshold
	if threshold <= 0 {
		threshold = constants.DefaultPreloadThreshold
	}

	ctx, cancel := context.WithCancel(context.Background())

	buf := buffer.New(config.Comic, config.Fetcher, config.Tier, config.Logger)
	tracker := viewport.NewTracker(config.Container)

	session := &Session{
		comic:     config.Comic,
		mode:      config.Mode,
		buffer:    buf,
		tracker:   tracker,
		scheduler: preload.NewScheduler(buf, threshold, config.Logger),
		saver:     progress.NewSaver(config.Progress, config.Identity, config.SaveDebounce, config.Logger),
		protocol:  restore.NewProtocol(buf, tracker, config.Logger),
		logger:    config.Logger,
		ctx:       ctx,
		cancel:    cancel,
	}

	tracker.OnPageChange(session.onPageChange)
	return session
}

// onPageChange fans the current absolute page out to the scheduler and the
// debounced saver.
func (session *Session) onPageChange(absolutePage int) {
	session.mu.Lock()
	closed := session.closed
	session.mu.Unlock()
	if closed {
		return
	}

	// Preloading only exists on the continuous scroll surface
	if session.mode == ModeContinuous {
		session.scheduler.OnPageChange(session.ctx, absolutePage)
	}

	location, ok := session.buffer.Locate(absolutePage)
	if !ok {
		return
	}
	session.saver.Observe(progress.Entry{
		ComicID:         session.comic.ID,
		ChapterID:       location.ChapterID,
		PageNumber:      location.PageInChapter,
		ProgressPercent: location.Fraction * 100,
	})
}

/*
Open loads the session's initial chapter.

Parameters:
  - context: context.Context
  - chapterID: string

Returns:
  - *catalog.Chapter: Loaded chapter with its page manifest
  - error: Typed access or fetch error
*/
func (session *Session) Open(context context.Context, chapterID string) (*catalog.Chapter, error) {
	return session.buffer.LoadChapter(context, chapterID)
}

/*
NavigateTo moves the session to another chapter.

Description: In continuous mode the chapter joins the scroll surface; in
single mode the buffer is swapped to hold only the target.

Parameters:
  - context: context.Context
  - chapterID: string

Returns:
  - *catalog.Chapter: Loaded chapter
  - error: Typed access or fetch error
*/
func (session *Session) NavigateTo(context context.Context, chapterID string) (*catalog.Chapter, error) {
	if session.mode == ModeSingle {
		return session.buffer.ClearAndLoad(context, chapterID)
	}
	return session.buffer.LoadChapter(context, chapterID)
}

/*
RestoreTo scrolls the session to a saved position.

Parameters:
  - context: context.Context
  - chapterID: string
  - pageInChapter: int (1-based)

Returns:
  - error: readererr.RestorationTimeoutError when the budget runs out
*/
func (session *Session) RestoreTo(context context.Context, chapterID string, pageInChapter int) error {
	return session.protocol.Restore(context, chapterID, pageInChapter)
}

// RetryRestore reruns the last restoration target with the longer manual
// budget.
func (session *Session) RetryRestore(context context.Context) error {
	return session.protocol.Retry(context)
}

// RestoreState exposes the restoration lifecycle phase for the UI.
func (session *Session) RestoreState() restore.State {
	return session.protocol.State()
}

// Buffer exposes the chapter buffer for rendering and navigation metadata.
func (session *Session) Buffer() *buffer.Buffer {
	return session.buffer
}

// Tracker exposes the viewport tracker for geometry and visibility input.
func (session *Session) Tracker() *viewport.Tracker {
	return session.tracker
}

// Mode returns the session's navigation mode.
func (session *Session) Mode() Mode {
	return session.mode
}

/*
Close tears the session down.

Description: Closes the viewport tracker first, resolving every parked
scroll wait, then flushes the last known position to the guest store and
stops the debounce timers, then cancels the session context. Idempotent.

Parameters:
  - context: context.Context

Returns:
  - error: Flush failure (teardown still completes)
*/
func (session *Session) Close(context context.Context) error {
	session.mu.Lock()
	if session.closed {
		session.mu.Unlock()
		return nil
	}
	session.closed = true
	session.mu.Unlock()

	// 1. No more visibility input or parked waiters
	session.tracker.Close()

	// 2. Best-effort durability for the final position
	err := session.saver.Close(context)

	// 3. Stop any in-flight preloads
	session.cancel()

	if err != nil {
		session.logger.Warn("session_close_flush_failed",
			slog.String("comic_id", session.comic.ID),
			slog.String("error", err.Error()),
		)
	}
	return err
}
