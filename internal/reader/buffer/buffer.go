// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package buffer maintains the ordered, deduplicated set of chapters loaded
into a reading session and the absolute page arithmetic across them.

An absolute page is a 1-based index unique across the concatenation of all
buffered chapters' pages: the prefix sum of page counts of every buffered
chapter before the target, plus the in-chapter page number. Chapters may
finish loading out of order; the buffer keeps them sorted by chapter number
regardless of arrival order.

Load de-duplication is the invariant the preloader and restoration protocol
rely on: a chapter id is in at most one of {loading, loaded}, and a load call
for an id already in either set returns immediately without fetching.
*/
package buffer

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/taibuivan/yomira-reader/internal/catalog"
	"github.com/taibuivan/yomira-reader/internal/reader/access"
	"github.com/taibuivan/yomira-reader/internal/reader/readererr"
)

// # Collaborator Contracts

// Fetcher is the narrow slice of the catalog service the buffer consumes.
// [catalog.Service] satisfies it.
type Fetcher interface {
	GetChapter(context context.Context, chapterID string, tier access.Tier) (*catalog.Chapter, error)
}

// # Navigation

// NavigationMeta positions a chapter inside the full catalog order, which is
// distinct from (and usually larger than) the buffered set.
type NavigationMeta struct {
	Prev    *catalog.ChapterMeta `json:"prev,omitempty"`
	Next    *catalog.ChapterMeta `json:"next,omitempty"`
	HasPrev bool                 `json:"has_prev"`
	HasNext bool                 `json:"has_next"`
}

// Location identifies where an absolute page falls inside the buffered set.
type Location struct {
	ChapterID     string
	ChapterNumber int
	PageInChapter int
	PageCount     int

	// Fraction is PageInChapter / PageCount, the in-chapter progress the
	// preloader thresholds on.
	Fraction float64
}

// # Buffer

// Buffer is the per-session chapter collection.
//
// # Concurrency
//
// All methods are safe for concurrent use. Fetches run outside the lock so
// a slow chapter load never blocks page arithmetic.
type Buffer struct {
	comicID string
	fetcher Fetcher
	tier    access.Tier
	now     func() time.Time
	logger  *slog.Logger

	// catalogOrder is the comic's full ordered chapter list.
	catalogOrder []*catalog.ChapterMeta
	metaByID     map[string]*catalog.ChapterMeta

	mu       sync.Mutex
	chapters []*catalog.Chapter
	loading  map[string]struct{}
	loaded   map[string]struct{}

	// generation is bumped by ClearAndLoad so fetches that were in flight
	// when the buffer was cleared discard their result on completion.
	generation uint64
}

// New constructs a [Buffer] for one comic's reading session.
//
// # Parameters
//   - comic: The comic metadata including its full ordered chapter list.
//   - fetcher: Chapter content source (the catalog service).
//   - tier: The viewer's access tier, fixed for the session.
//   - logger: Structured logger.
func New(comic *catalog.Comic, fetcher Fetcher, tier access.Tier, logger *slog.Logger) *Buffer {
	metaByID := make(map[string]*catalog.ChapterMeta, len(comic.Chapters))
	for _, meta := range comic.Chapters {
		metaByID[meta.ID] = meta
	}

	return &Buffer{
		comicID:      comic.ID,
		fetcher:      fetcher,
		tier:         tier,
		now:          time.Now,
		logger:       logger,
		catalogOrder: comic.Chapters,
		metaByID:     metaByID,
		loading:      make(map[string]struct{}),
		loaded:       make(map[string]struct{}),
	}
}

// # Loading

/*
LoadChapter fetches a chapter into the buffer.

Description: Duplicate suppression comes first — an id already loaded or in
flight returns (nil, nil) without fetching. The access gate is evaluated
before the id enters the loading set, so denied chapters never occupy a
loading slot and retry freely once their window opens. A failed fetch also
leaves the loaded set untouched for the same reason.

Parameters:
  - context: context.Context
  - chapterID: string (UUID)

Returns:
  - *catalog.Chapter: The materialized chapter, or nil when suppressed
  - error: Typed access denial, readererr.NotFoundError, or fetch failure
*/
func (buffer *Buffer) LoadChapter(context context.Context, chapterID string) (*catalog.Chapter, error) {
	buffer.mu.Lock()

	// Duplicate suppression: loaded or in flight means no second fetch.
	if _, ok := buffer.loaded[chapterID]; ok {
		buffer.mu.Unlock()
		return nil, nil
	}
	if _, ok := buffer.loading[chapterID]; ok {
		buffer.mu.Unlock()
		return nil, nil
	}

	meta, ok := buffer.metaByID[chapterID]
	if !ok {
		buffer.mu.Unlock()
		return nil, &readererr.NotFoundError{Resource: "Chapter"}
	}

	// Gate check before the id may enter the loading set.
	decision := access.Evaluate(meta.Policy, buffer.tier, buffer.now())
	if !decision.Allowed {
		buffer.mu.Unlock()
		if decision.Reason == access.ReasonEarlyAccess && decision.AvailableAt != nil {
			return nil, &readererr.EarlyAccessError{ChapterID: chapterID, AvailableAt: *decision.AvailableAt}
		}
		return nil, &readererr.RestrictedError{ChapterID: chapterID}
	}

	buffer.loading[chapterID] = struct{}{}
	generation := buffer.generation
	buffer.mu.Unlock()

	// Fetch outside the lock.
	chapter, err := buffer.fetcher.GetChapter(context, chapterID, buffer.tier)

	buffer.mu.Lock()

	// A clear while the fetch was in flight makes the result stale. The
	// registration went with the old loading set, so any entry present now
	// belongs to a newer load and must not be deleted.
	if generation != buffer.generation {
		buffer.mu.Unlock()
		return nil, nil
	}

	delete(buffer.loading, chapterID)

	if err != nil {
		// Failure must not poison the loaded set; the caller may retry.
		buffer.mu.Unlock()
		return nil, err
	}

	buffer.insertSorted(chapter)
	buffer.loaded[chapterID] = struct{}{}
	buffer.mu.Unlock()

	buffer.logger.Info("chapter_buffered",
		slog.String("comic_id", buffer.comicID),
		slog.String("chapter_id", chapterID),
		slog.Int("pages", chapter.PageCount()),
	)

	return chapter, nil
}

/*
ClearAndLoad empties the buffer, then loads a single chapter.

Description: Used when continuous mode is switched off and the session
narrows to one explicitly navigated chapter. The clear is authoritative:
loads in flight when it runs discard their result on completion instead
of repopulating the emptied buffer.

Parameters:
  - context: context.Context
  - chapterID: string (UUID)
*/
func (buffer *Buffer) ClearAndLoad(context context.Context, chapterID string) (*catalog.Chapter, error) {
	buffer.mu.Lock()
	buffer.generation++
	buffer.chapters = nil
	buffer.loading = make(map[string]struct{})
	buffer.loaded = make(map[string]struct{})
	buffer.mu.Unlock()

	return buffer.LoadChapter(context, chapterID)
}

// insertSorted places a chapter into ascending chapter-number order.
// Caller holds the lock.
func (buffer *Buffer) insertSorted(chapter *catalog.Chapter) {
	index := sort.Search(len(buffer.chapters), func(i int) bool {
		return buffer.chapters[i].Number >= chapter.Number
	})
	buffer.chapters = append(buffer.chapters, nil)
	copy(buffer.chapters[index+1:], buffer.chapters[index:])
	buffer.chapters[index] = chapter
}

// # Absolute Page Arithmetic

/*
AbsoluteOffsetOf returns the page offset of a buffered chapter: the sum of
page counts of every buffered chapter strictly before it.

Returns:
  - int: The offset (0 for the first buffered chapter)
  - bool: false when the chapter is not buffered (offset is then undefined)
*/
func (buffer *Buffer) AbsoluteOffsetOf(chapterID string) (int, bool) {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	offset := 0
	for _, chapter := range buffer.chapters {
		if chapter.ID == chapterID {
			return offset, true
		}
		offset += chapter.PageCount()
	}
	return 0, false
}

// AbsolutePage converts a 1-based in-chapter page number into the 1-based
// absolute page across the buffered set.
func (buffer *Buffer) AbsolutePage(chapterID string, pageInChapter int) (int, bool) {
	offset, ok := buffer.AbsoluteOffsetOf(chapterID)
	if !ok {
		return 0, false
	}
	return offset + pageInChapter, true
}

/*
Locate maps an absolute page back to the chapter containing it.

Returns:
  - Location: Chapter identity, in-chapter page, and progress fraction
  - bool: false when the page is outside the buffered range
*/
func (buffer *Buffer) Locate(absolutePage int) (Location, bool) {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	if absolutePage < 1 {
		return Location{}, false
	}

	remaining := absolutePage
	for _, chapter := range buffer.chapters {
		pageCount := chapter.PageCount()
		if remaining <= pageCount {
			return Location{
				ChapterID:     chapter.ID,
				ChapterNumber: chapter.Number,
				PageInChapter: remaining,
				PageCount:     pageCount,
				Fraction:      float64(remaining) / float64(pageCount),
			}, true
		}
		remaining -= pageCount
	}
	return Location{}, false
}

// TotalPages returns the page count across all buffered chapters.
func (buffer *Buffer) TotalPages() int {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	total := 0
	for _, chapter := range buffer.chapters {
		total += chapter.PageCount()
	}
	return total
}

// # Catalog Navigation

/*
NavigationMeta positions a chapter within the full catalog chapter list.

Description: Derived from the catalog order, not the buffered set, so the
"next chapter" exists even before it is loaded.
*/
func (buffer *Buffer) NavigationMeta(chapterID string) NavigationMeta {
	for index, meta := range buffer.catalogOrder {
		if meta.ID != chapterID {
			continue
		}

		navigation := NavigationMeta{}
		if index > 0 {
			navigation.Prev = buffer.catalogOrder[index-1]
			navigation.HasPrev = true
		}
		if index < len(buffer.catalogOrder)-1 {
			navigation.Next = buffer.catalogOrder[index+1]
			navigation.HasNext = true
		}
		return navigation
	}
	return NavigationMeta{}
}

// Meta returns the catalog descriptor for a chapter id, if the comic has it.
func (buffer *Buffer) Meta(chapterID string) (*catalog.ChapterMeta, bool) {
	meta, ok := buffer.metaByID[chapterID]
	return meta, ok
}

// Contains reports whether a chapter is fully buffered.
func (buffer *Buffer) Contains(chapterID string) bool {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()
	_, ok := buffer.loaded[chapterID]
	return ok
}

// Chapters returns the buffered chapters in ascending number order.
func (buffer *Buffer) Chapters() []*catalog.Chapter {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()
	return append([]*catalog.Chapter(nil), buffer.chapters...)
}

// Tier returns the viewer tier the buffer gates with.
func (buffer *Buffer) Tier() access.Tier {
	return buffer.tier
}

// WithClock overrides the gate clock. Test hook.
func (buffer *Buffer) WithClock(now func() time.Time) *Buffer {
	buffer.now = now
	return buffer
}
