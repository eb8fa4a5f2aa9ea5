// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package preload_test

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-reader/internal/catalog"
	"github.com/taibuivan/yomira-reader/internal/reader/access"
	"github.com/taibuivan/yomira-reader/internal/reader/buffer"
	"github.com/taibuivan/yomira-reader/internal/reader/preload"
)

// countingFetcher serves fixed chapters and counts every fetch.
type countingFetcher struct {
	mu       sync.Mutex
	chapters map[string]*catalog.Chapter
	total    atomic.Int32
}

func (f *countingFetcher) GetChapter(_ context.Context, chapterID string, _ access.Tier) (*catalog.Chapter, error) {
	f.total.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chapters[chapterID], nil
}

func pages(count int) []string {
	manifest := make([]string, count)
	for i := range manifest {
		manifest[i] = "https://img.yomira.app/p.jpg"
	}
	return manifest
}

// sessionFixture builds a two-chapter comic with chapter 1 (10 pages)
// already buffered and chapter 2 (8 pages) available for preload.
func sessionFixture(t *testing.T, nextPolicy access.Policy, tier access.Tier) (*buffer.Buffer, *countingFetcher) {
	t.Helper()

	comic := &catalog.Comic{
		ID:   "comic-1",
		Slug: "test",
		Chapters: []*catalog.ChapterMeta{
			{ID: "ch-1", ComicID: "comic-1", Number: 1, PageCount: 10},
			{ID: "ch-2", ComicID: "comic-1", Number: 2, PageCount: 8, Policy: nextPolicy},
		},
	}
	fetcher := &countingFetcher{chapters: map[string]*catalog.Chapter{
		"ch-1": {ID: "ch-1", ComicID: "comic-1", Number: 1, Pages: pages(10)},
		"ch-2": {ID: "ch-2", ComicID: "comic-1", Number: 2, Pages: pages(8)},
	}}

	buf := buffer.New(comic, fetcher, tier, slog.New(slog.DiscardHandler))
	_, err := buf.LoadChapter(context.Background(), "ch-1")
	require.NoError(t, err)
	fetcher.total.Store(0)

	return buf, fetcher
}

/*
TestScheduler_TriggersOnceAtThreshold verifies the 90% trigger and the
single-attempt rule under scroll jitter across the boundary.
*/
func TestScheduler_TriggersOnceAtThreshold(t *testing.T) {
	buf, fetcher := sessionFixture(t, access.Policy{}, access.TierStandard)
	scheduler := preload.NewScheduler(buf, 0.90, slog.New(slog.DiscardHandler))

	// 1. Below the threshold: pages 1..8 of 10 (80%) do nothing
	for page := 1; page <= 8; page++ {
		scheduler.OnPageChange(context.Background(), page)
	}
	assert.Equal(t, int32(0), fetcher.total.Load())

	// 2. Page 9 of 10 crosses 90%: exactly one preload of chapter 2
	scheduler.OnPageChange(context.Background(), 9)

	require.Eventually(t, func() bool {
		return buf.Contains("ch-2")
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), fetcher.total.Load())

	// 3. Jitter back and forth across the boundary: no further attempts
	for _, page := range []int{8, 9, 8, 10, 9, 10} {
		scheduler.OnPageChange(context.Background(), page)
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fetcher.total.Load())
	assert.Equal(t, "ch-1", scheduler.LastPreloadedChapterID())
}

/*
TestScheduler_GatedNextChapterSkipped verifies that a gated next chapter is
never fetched and the attempt is not repeated.
*/
func TestScheduler_GatedNextChapterSkipped(t *testing.T) {
	availableAt := time.Now().Add(48 * time.Hour)
	policy := access.Policy{EarlyAccessWindowDays: 3, PublicAvailableAt: &availableAt}

	buf, fetcher := sessionFixture(t, policy, access.TierStandard)
	scheduler := preload.NewScheduler(buf, 0.90, slog.New(slog.DiscardHandler))

	for _, page := range []int{9, 10, 9, 10} {
		scheduler.OnPageChange(context.Background(), page)
	}
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(0), fetcher.total.Load())
	assert.False(t, buf.Contains("ch-2"))
	assert.Equal(t, "ch-1", scheduler.LastPreloadedChapterID())
}

/*
TestScheduler_PrivilegedViewerPreloadsGatedChapter verifies that the gate
check honors the viewer tier.
*/
func TestScheduler_PrivilegedViewerPreloadsGatedChapter(t *testing.T) {
	availableAt := time.Now().Add(48 * time.Hour)
	policy := access.Policy{EarlyAccessWindowDays: 3, PublicAvailableAt: &availableAt}

	buf, _ := sessionFixture(t, policy, access.TierPrivileged)
	scheduler := preload.NewScheduler(buf, 0.90, slog.New(slog.DiscardHandler))

	scheduler.OnPageChange(context.Background(), 9)

	require.Eventually(t, func() bool {
		return buf.Contains("ch-2")
	}, time.Second, 10*time.Millisecond)
}

/*
TestScheduler_AlreadyBufferedNextChapter verifies no duplicate fetch when
the next chapter is already in the buffer.
*/
func TestScheduler_AlreadyBufferedNextChapter(t *testing.T) {
	buf, fetcher := sessionFixture(t, access.Policy{}, access.TierStandard)
	_, err := buf.LoadChapter(context.Background(), "ch-2")
	require.NoError(t, err)
	fetcher.total.Store(0)

	scheduler := preload.NewScheduler(buf, 0.90, slog.New(slog.DiscardHandler))
	scheduler.OnPageChange(context.Background(), 9)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(0), fetcher.total.Load())
}

/*
TestScheduler_FinalChapterNoNext verifies graceful behavior at the end of
the catalog.
*/
func TestScheduler_FinalChapterNoNext(t *testing.T) {
	buf, fetcher := sessionFixture(t, access.Policy{}, access.TierStandard)
	_, err := buf.LoadChapter(context.Background(), "ch-2")
	require.NoError(t, err)
	fetcher.total.Store(0)

	scheduler := preload.NewScheduler(buf, 0.90, slog.New(slog.DiscardHandler))

	// Deep into chapter 2 (absolute page 18 = page 8 of 8)
	scheduler.OnPageChange(context.Background(), 18)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(0), fetcher.total.Load())
	assert.Equal(t, "ch-2", scheduler.LastPreloadedChapterID())
}
