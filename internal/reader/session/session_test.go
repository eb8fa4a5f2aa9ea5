// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session_test

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
	"github.com/taibuivan/yomira-reader/internal/reader/progress"
	"github.com/taibuivan/yomira-reader/internal/reader/readererr"
	"github.com/taibuivan/yomira-reader/internal/reader/session"
	"github.com/taibuivan/yomira-reader/internal/reader/viewport"
)

// # Test Doubles

// recordingContainer captures scroll offsets.
type recordingContainer struct {
	mu      sync.Mutex
	offsets []float64
}

func (container *recordingContainer) ScrollTo(offset float64) {
	container.mu.Lock()
	defer container.mu.Unlock()
	container.offsets = append(container.offsets, offset)
}

func (container *recordingContainer) scrolled() []float64 {
	container.mu.Lock()
	defer container.mu.Unlock()
	return append([]float64(nil), container.offsets...)
}

// staticFetcher serves a fixed chapter set.
type staticFetcher struct {
	chapters map[string]*catalog.Chapter
}

func (fetcher *staticFetcher) GetChapter(_ context.Context, chapterID string, _ access.Tier) (*catalog.Chapter, error) {
	chapter, ok := fetcher.chapters[chapterID]
	if !ok {
		return nil, &readererr.NotFoundError{Resource: "Chapter"}
	}
	return chapter, nil
}

// memoryBackend is a minimal in-memory [progress.Backend].
type memoryBackend struct {
	mu      sync.Mutex
	entries map[string]map[string]*progress.Entry
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{entries: make(map[string]map[string]*progress.Entry)}
}

func (backend *memoryBackend) Save(_ context.Context, owner string, entry *progress.Entry) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.entries[owner] == nil {
		backend.entries[owner] = make(map[string]*progress.Entry)
	}
	copied := *entry
	backend.entries[owner][entry.ComicID] = &copied
	return nil
}

func (backend *memoryBackend) Get(_ context.Context, owner string, comicID string) (*progress.Entry, error) {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	entry, ok := backend.entries[owner][comicID]
	if !ok {
		return nil, &readererr.NotFoundError{Resource: "Reading progress"}
	}
	copied := *entry
	return &copied, nil
}

func (backend *memoryBackend) Recent(_ context.Context, _ string, _ int) ([]*progress.Entry, error) {
	return nil, nil
}

func (backend *memoryBackend) All(_ context.Context, owner string) ([]*progress.Entry, error) {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	var all []*progress.Entry
	for _, entry := range backend.entries[owner] {
		copied := *entry
		all = append(all, &copied)
	}
	return all, nil
}

func (backend *memoryBackend) Clear(_ context.Context, owner string, comicID string) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	delete(backend.entries[owner], comicID)
	return nil
}

func (backend *memoryBackend) ClearAll(_ context.Context, owner string) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	delete(backend.entries, owner)
	return nil
}

// # Fixtures

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func pages(count int) []string {
	manifest := make([]string, count)
	for i := range manifest {
		manifest[i] = "https://img.yomira.app/p.jpg"
	}
	return manifest
}

func testComic() *catalog.Comic {
	return &catalog.Comic{
		ID:   "comic-1",
		Slug: "test",
		Chapters: []*catalog.ChapterMeta{
			{ID: "ch-1", ComicID: "comic-1", Number: 1, PageCount: 10},
			{ID: "ch-2", ComicID: "comic-1", Number: 2, PageCount: 8},
		},
	}
}

func testFetcher() *staticFetcher {
	return &staticFetcher{chapters: map[string]*catalog.Chapter{
		"ch-1": {ID: "ch-1", ComicID: "comic-1", Number: 1, Pages: pages(10)},
		"ch-2": {ID: "ch-2", ComicID: "comic-1", Number: 2, Pages: pages(8)},
	}}
}

// newSession assembles a continuous-mode session with in-memory progress
// stores and a short save debounce.
func newSession(t *testing.T, mode session.Mode) (*session.Session, *recordingContainer, *memoryBackend) {
	t.Helper()

	container := &recordingContainer{}
	local := newMemoryBackend()
	service := progress.NewService(local, newMemoryBackend(), discard())

	reader := session.New(session.Config{
		Comic:     testComic(),
		Mode:      mode,
		Tier:      access.TierStandard,
		Fetcher:   testFetcher(),
		Container: container,
		Progress:  service,
		Identity: func() progress.Identity {
			return progress.Identity{DeviceID: "device-1"}
		},
		Logger:       discard(),
		SaveDebounce: 30 * time.Millisecond,
	})
	t.Cleanup(func() { _ = reader.Close(context.Background()) })

	return reader, container, local
}

// registerPages gives the tracker geometry for a run of absolute pages.
func registerPages(reader *session.Session, from int, to int) {
	for page := from; page <= to; page++ {
		reader.Tracker().RegisterPage(page, &viewport.Element{
			Offset: float64(page-1) * 1000,
			Height: 1000,
		})
	}
}

// scrollTo simulates the viewport moving onto one page.
func scrollTo(reader *session.Session, page int) {
	entries := []viewport.Visibility{{Page: page, Ratio: 0.95}}
	if page > 1 {
		entries = append(entries, viewport.Visibility{Page: page - 1, Ratio: 0})
	}
	reader.Tracker().ReportVisibility(entries)
}

// # Scenario Tests

/*
TestSession_ContinuousReadThrough walks a viewer through chapter 1 into
chapter 2: approaching the end of chapter 1 preloads chapter 2, and page
13 of the combined surface reads as chapter 2, page 3.
*/
func TestSession_ContinuousReadThrough(t *testing.T) {
	reader, _, local := newSession(t, session.ModeContinuous)

	_, err := reader.Open(context.Background(), "ch-1")
	require.NoError(t, err)
	registerPages(reader, 1, 10)

	// 1. Read to page 8: still below the preload threshold
	for page := 1; page <= 8; page++ {
		scrollTo(reader, page)
	}
	assert.False(t, reader.Buffer().Contains("ch-2"))

	// 2. Page 9 of 10 crosses 90%: chapter 2 joins the surface
	scrollTo(reader, 9)
	require.Eventually(t, func() bool {
		return reader.Buffer().Contains("ch-2")
	}, time.Second, 10*time.Millisecond)

	// 3. Absolute page 13 is chapter 2, page 3
	registerPages(reader, 11, 18)
	scrollTo(reader, 13)

	location, ok := reader.Buffer().Locate(13)
	require.True(t, ok)
	assert.Equal(t, "ch-2", location.ChapterID)
	assert.Equal(t, 3, location.PageInChapter)

	// 4. The debounced saver lands the latest position in the guest store
	require.Eventually(t, func() bool {
		entry, err := local.Get(context.Background(), "device-1", "comic-1")
		return err == nil && entry.ChapterID == "ch-2" && entry.PageNumber == 3
	}, time.Second, 10*time.Millisecond)
}

/*
TestSession_SingleModeNavigation verifies that single mode swaps the buffer
on navigation and never preloads.
*/
func TestSession_SingleModeNavigation(t *testing.T) {
	reader, _, _ := newSession(t, session.ModeSingle)

	_, err := reader.Open(context.Background(), "ch-1")
	require.NoError(t, err)
	registerPages(reader, 1, 10)

	// Deep into the chapter: no preload in single mode
	scrollTo(reader, 9)
	scrollTo(reader, 10)
	time.Sleep(50 * time.Millisecond)
	assert.False(t, reader.Buffer().Contains("ch-2"))

	// Explicit navigation swaps the buffer
	_, err = reader.NavigateTo(context.Background(), "ch-2")
	require.NoError(t, err)
	assert.True(t, reader.Buffer().Contains("ch-2"))
	assert.False(t, reader.Buffer().Contains("ch-1"))
}

/*
TestSession_RestoreSavedPosition verifies the deep-link flow: open the
saved chapter, then restore scrolls to the saved page.
*/
func TestSession_RestoreSavedPosition(t *testing.T) {
	reader, container, _ := newSession(t, session.ModeContinuous)

	_, err := reader.Open(context.Background(), "ch-1")
	require.NoError(t, err)
	registerPages(reader, 1, 10)

	require.NoError(t, reader.RestoreTo(context.Background(), "ch-1", 6))
	assert.Equal(t, []float64{5000}, container.scrolled())
	assert.Equal(t, "resolved", string(reader.RestoreState()))
}

/*
TestSession_CloseFlushesAndResolvesWaits verifies the teardown ordering:
pending scroll waits resolve instead of leaking, and the final observed
position is flushed to the guest store without waiting out the debounce.
*/
func TestSession_CloseFlushesAndResolvesWaits(t *testing.T) {
	container := &recordingContainer{}
	local := newMemoryBackend()
	service := progress.NewService(local, newMemoryBackend(), discard())

	reader := session.New(session.Config{
		Comic:     testComic(),
		Mode:      session.ModeContinuous,
		Tier:      access.TierStandard,
		Fetcher:   testFetcher(),
		Container: container,
		Progress:  service,
		Identity: func() progress.Identity {
			return progress.Identity{DeviceID: "device-1"}
		},
		Logger:       discard(),
		SaveDebounce: time.Hour,
	})

	_, err := reader.Open(context.Background(), "ch-1")
	require.NoError(t, err)
	registerPages(reader, 1, 10)
	scrollTo(reader, 4)

	// Park a wait on a page that never registers
	done := make(chan viewport.Result, 1)
	go func() {
		done <- reader.Tracker().WaitForAndScroll(context.Background(), 99, time.Minute)
	}()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, reader.Close(context.Background()))

	// Waiter resolved by teardown, not left hanging
	select {
	case result := <-done:
		assert.False(t, result.Success)
	case <-time.After(time.Second):
		t.Fatal("pending scroll wait never resolved on close")
	}

	// Debounce never fired, yet the position survived via the flush
	entry, err := local.Get(context.Background(), "device-1", "comic-1")
	require.NoError(t, err)
	assert.Equal(t, 4, entry.PageNumber)

	// Idempotent
	assert.NoError(t, reader.Close(context.Background()))
}
