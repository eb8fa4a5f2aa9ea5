// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package restore_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-reader/internal/catalog"
	"github.com/taibuivan/yomira-reader/internal/reader/access"
	"github.com/taibuivan/yomira-reader/internal/reader/buffer"
	"github.com/taibuivan/yomira-reader/internal/reader/readererr"
	"github.com/taibuivan/yomira-reader/internal/reader/restore"
	"github.com/taibuivan/yomira-reader/internal/reader/viewport"
)

// fakeContainer records scroll offsets.
type fakeContainer struct {
	mu      sync.Mutex
	offsets []float64
}

func (container *fakeContainer) ScrollTo(offset float64) {
	container.mu.Lock()
	defer container.mu.Unlock()
	container.offsets = append(container.offsets, offset)
}

func (container *fakeContainer) scrolled() []float64 {
	container.mu.Lock()
	defer container.mu.Unlock()
	return append([]float64(nil), container.offsets...)
}

// staticFetcher serves a fixed chapter set.
type staticFetcher struct {
	chapters map[string]*catalog.Chapter
}

func (fetcher *staticFetcher) GetChapter(_ context.Context, chapterID string, _ access.Tier) (*catalog.Chapter, error) {
	return fetcher.chapters[chapterID], nil
}

func pages(count int) []string {
	manifest := make([]string, count)
	for i := range manifest {
		manifest[i] = "https://img.yomira.app/p.jpg"
	}
	return manifest
}

// fixture builds a two-chapter comic (10 + 8 pages) with nothing buffered.
func fixture(t *testing.T) *buffer.Buffer {
	t.Helper()

	comic := &catalog.Comic{
		ID:   "comic-1",
		Slug: "test",
		Chapters: []*catalog.ChapterMeta{
			{ID: "ch-1", ComicID: "comic-1", Number: 1, PageCount: 10},
			{ID: "ch-2", ComicID: "comic-1", Number: 2, PageCount: 8},
		},
	}
	fetcher := &staticFetcher{chapters: map[string]*catalog.Chapter{
		"ch-1": {ID: "ch-1", ComicID: "comic-1", Number: 1, Pages: pages(10)},
		"ch-2": {ID: "ch-2", ComicID: "comic-1", Number: 2, Pages: pages(8)},
	}}

	return buffer.New(comic, fetcher, access.TierStandard, discard())
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// registerPages gives the tracker geometry for a run of absolute pages.
func registerPages(tracker *viewport.Tracker, from int, to int) {
	for page := from; page <= to; page++ {
		tracker.RegisterPage(page, &viewport.Element{
			Offset: float64(page-1) * 1000,
			Height: 1000,
		})
	}
}

/*
TestRestore_FastPath verifies the direct computation when the target
chapter is already buffered and rendered: chapter 2 page 3 on top of a
10-page chapter 1 is absolute page 13.
*/
func TestRestore_FastPath(t *testing.T) {
	buf := fixture(t)
	_, err := buf.LoadChapter(context.Background(), "ch-1")
	require.NoError(t, err)
	_, err = buf.LoadChapter(context.Background(), "ch-2")
	require.NoError(t, err)

	container := &fakeContainer{}
	tracker := viewport.NewTracker(container)
	defer tracker.Close()
	registerPages(tracker, 1, 18)

	protocol := restore.NewProtocol(buf, tracker, discard()).
		WithTimeouts(time.Second, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, protocol.Restore(context.Background(), "ch-2", 3))
	assert.Equal(t, restore.StateResolved, protocol.State())
	assert.Equal(t, []float64{12000}, container.scrolled())
}

/*
TestRestore_PollsUntilChapterLoads verifies the slow path: the target
chapter lands in the buffer mid-restore and the scroll still completes
within the original budget.
*/
func TestRestore_PollsUntilChapterLoads(t *testing.T) {
	buf := fixture(t)
	container := &fakeContainer{}
	tracker := viewport.NewTracker(container)
	defer tracker.Close()

	protocol := restore.NewProtocol(buf, tracker, discard()).
		WithTimeouts(time.Second, 2*time.Second, 10*time.Millisecond)

	go func() {
		time.Sleep(50 * time.Millisecond)
		if _, err := buf.LoadChapter(context.Background(), "ch-1"); err != nil {
			return
		}
		registerPages(tracker, 1, 10)
	}()

	require.NoError(t, protocol.Restore(context.Background(), "ch-1", 4))
	assert.Equal(t, restore.StateResolved, protocol.State())
	assert.Equal(t, []float64{3000}, container.scrolled())
}

/*
TestRestore_TimeoutSurfacesRetryableError verifies that a chapter that
never loads produces a typed timeout error and the failed state, leaving
the session usable.
*/
func TestRestore_TimeoutSurfacesRetryableError(t *testing.T) {
	buf := fixture(t)
	tracker := viewport.NewTracker(&fakeContainer{})
	defer tracker.Close()

	protocol := restore.NewProtocol(buf, tracker, discard()).
		WithTimeouts(80*time.Millisecond, 2*time.Second, 10*time.Millisecond)

	err := protocol.Restore(context.Background(), "ch-2", 1)
	require.Error(t, err)

	var timeoutErr *readererr.RestorationTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, restore.StateFailed, protocol.State())
	assert.False(t, readererr.IsTerminal(err))
}

/*
TestRestore_RetryAfterFailure verifies the manual retry path: the first
attempt times out, the chapter then loads, and Retry resolves the same
target with its fresh budget.
*/
func TestRestore_RetryAfterFailure(t *testing.T) {
	buf := fixture(t)
	container := &fakeContainer{}
	tracker := viewport.NewTracker(container)
	defer tracker.Close()

	protocol := restore.NewProtocol(buf, tracker, discard()).
		WithTimeouts(60*time.Millisecond, time.Second, 10*time.Millisecond)

	// 1. Initial attempt fails: nothing buffered
	require.Error(t, protocol.Restore(context.Background(), "ch-1", 6))
	assert.Equal(t, restore.StateFailed, protocol.State())

	// 2. Chapter arrives
	_, err := buf.LoadChapter(context.Background(), "ch-1")
	require.NoError(t, err)
	registerPages(tracker, 1, 10)

	// 3. Manual retry reruns the remembered target
	require.NoError(t, protocol.Retry(context.Background()))
	assert.Equal(t, restore.StateResolved, protocol.State())
	assert.Equal(t, []float64{5000}, container.scrolled())
}

/*
TestRestore_RetryWithoutTargetIsNoop verifies that a stray retry before
any restore does nothing.
*/
func TestRestore_RetryWithoutTargetIsNoop(t *testing.T) {
	buf := fixture(t)
	tracker := viewport.NewTracker(&fakeContainer{})
	defer tracker.Close()

	protocol := restore.NewProtocol(buf, tracker, discard())
	assert.NoError(t, protocol.Retry(context.Background()))
	assert.Equal(t, restore.StateIdle, protocol.State())
}
