// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/taibuivan/yomira-reader/internal/reader/access"
	"github.com/taibuivan/yomira-reader/internal/reader/readererr"
	"github.com/taibuivan/yomira-reader/pkg/pagination"
	"github.com/taibuivan/yomira-reader/pkg/slug"
)

// # Service Layer

// Service orchestrates catalog reads and enforces chapter access windows.
//
// # Enforcement
//
// GetChapter is the authoritative gate: even when a client skips its local
// access check, restricted and early-access chapters fail here with typed
// errors carrying availability information.
type Service struct {
	catalogRepo Repository
	logger      *slog.Logger

	// now is injected for deterministic gate evaluation in tests.
	now func() time.Time
}

// NewService constructs a new [Service] with its required repository.
func NewService(catalogRepo Repository, logger *slog.Logger) *Service {
	return &Service{
		catalogRepo: catalogRepo,
		logger:      logger,
		now:         time.Now,
	}
}

// # Comic Operations

/*
GetComic retrieves comic metadata and the full ordered chapter list.

Description: Chapter access policies are included so the client can render
lock states and availability times, but no gating is applied — metadata is
public even when content is not.

Parameters:
  - context: context.Context
  - rawSlug: string (URL slug, or a raw title which is normalized first)

Returns:
  - *Comic: Hydrated metadata
  - error: readererr.NotFoundError if missing
*/
func (service *Service) GetComic(context context.Context, rawSlug string) (*Comic, error) {
	// Normalizing is a no-op for a well-formed slug, and lets percent-decoded
	// titles ("Solo Leveling") resolve to the stored slug ("solo-leveling").
	return service.catalogRepo.FindComicBySlug(context, slug.From(rawSlug))
}

/*
ListChapters retrieves one page of a comic's chapter descriptors.

Description: Like GetComic, this is metadata-only — policies are included so
lock states can be rendered, but no gating is applied.

Parameters:
  - context: context.Context
  - rawSlug: string (URL slug or raw title)
  - params: pagination.Params

Returns:
  - []*ChapterMeta: Ascending by chapter number
  - int: Total chapter count for the comic
  - error: readererr.NotFoundError if the comic is missing
*/
func (service *Service) ListChapters(context context.Context, rawSlug string, params pagination.Params) ([]*ChapterMeta, int, error) {
	return service.catalogRepo.ListChaptersBySlug(context, slug.From(rawSlug), params.Limit, params.Offset())
}

// # Chapter Operations

/*
GetChapter retrieves a chapter's page manifest for a viewer.

Description: Evaluates the chapter's access policy against the viewer tier
before touching page data. Denied access surfaces as a typed
readererr.RestrictedError or readererr.EarlyAccessError (with availability
timestamp), never as a generic failure.

Parameters:
  - context: context.Context
  - chapterID: string (UUID)
  - tier: access.Tier (Resolved by the caller from the viewer's role)

Returns:
  - *Chapter: Metadata plus ordered page URIs
  - error: Access denial, readererr.NotFoundError, or storage failure
*/
func (service *Service) GetChapter(context context.Context, chapterID string, tier access.Tier) (*Chapter, error) {

	// Descriptor lookup: number, page count, access policy
	meta, err := service.catalogRepo.FindChapterMeta(context, chapterID)
	if err != nil {
		return nil, err
	}

	// Server-side access enforcement
	decision := access.Evaluate(meta.Policy, tier, service.now())
	if !decision.Allowed {
		service.logger.Info("chapter_access_denied",
			slog.String("chapter_id", chapterID),
			slog.String("reason", string(decision.Reason)),
		)

		if decision.Reason == access.ReasonEarlyAccess && decision.AvailableAt != nil {
			return nil, &readererr.EarlyAccessError{ChapterID: chapterID, AvailableAt: *decision.AvailableAt}
		}
		return nil, &readererr.RestrictedError{ChapterID: chapterID}
	}

	// Page manifest hydration
	pages, err := service.catalogRepo.FindChapterPages(context, chapterID)
	if err != nil {
		return nil, err
	}

	return &Chapter{
		ID:      meta.ID,
		ComicID: meta.ComicID,
		Number:  meta.Number,
		Title:   meta.Title,
		Pages:   pages,
	}, nil
}
