// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/taibuivan/yomira-reader/internal/platform/request"
	"github.com/taibuivan/yomira-reader/internal/platform/respond"
	"github.com/taibuivan/yomira-reader/internal/platform/sec"
	"github.com/taibuivan/yomira-reader/internal/reader/access"
	"github.com/taibuivan/yomira-reader/internal/reader/readererr"
	"github.com/taibuivan/yomira-reader/pkg/pagination"
)

// # Handler Implementation

// Handler implements the HTTP layer for catalog reads.
type Handler struct {
	service *Service
}

// NewHandler constructs a new catalog [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes attaches catalog endpoints to the root API router.
func (handler *Handler) RegisterRoutes(api chi.Router) {
	api.Get("/comics/{slug}", handler.GetComic)
	api.Get("/comics/{slug}/chapters", handler.ListChapters)
	api.Get("/chapters/{id}", handler.GetChapter)
}

// # Comic Retrieval

/*
GET /api/v1/comics/{slug}.

Description: Returns comic metadata with the full ordered chapter list,
including per-chapter page counts and access policies. Metadata is public;
gating applies to chapter content only.

Request:
  - slug: string (URL slug)

Response:
  - 200: Comic
  - 404: NOT_FOUND: Comic not found
*/
func (handler *Handler) GetComic(writer http.ResponseWriter, request *http.Request) {
	slug := requestutil.ID(request, "slug")

	comic, err := handler.service.GetComic(request.Context(), slug)
	if err != nil {
		respond.Error(writer, request, readererr.ToApp(err))
		return
	}

	respond.OK(writer, comic)
}

/*
GET /api/v1/comics/{slug}/chapters.

Description: Returns one page of the comic's chapter descriptors in the
standard paginated envelope. Useful for very long series where the inline
chapter list on the comic resource is too heavy.

Request:
  - slug: string (URL slug)
  - page, limit: int (query; clamped)

Response:
  - 200: []ChapterMeta with pagination metadata
  - 404: NOT_FOUND: Comic not found
*/
func (handler *Handler) ListChapters(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)

	chapters, total, err := handler.service.ListChapters(request.Context(), requestutil.ID(request, "slug"), params)
	if err != nil {
		respond.Error(writer, request, readererr.ToApp(err))
		return
	}

	respond.Paginated(writer, chapters, pagination.NewMeta(params.Page, params.Limit, total))
}

// # Chapter Retrieval

/*
GET /api/v1/chapters/{id}.

Description: Returns the chapter's ordered page manifest. The viewer's tier
is resolved from the authenticated claims (anonymous viewers are standard);
restricted and early-access chapters answer 403 with a machine-readable code
and, for early access, the unlock timestamp.

Request:
  - id: string (UUID)

Response:
  - 200: Chapter
  - 403: RESTRICTED | EARLY_ACCESS
  - 404: NOT_FOUND: Chapter not found
*/
func (handler *Handler) GetChapter(writer http.ResponseWriter, request *http.Request) {
	chapterID := requestutil.ID(request, "id")

	// Resolve the viewer tier from the (optional) authenticated claims.
	tier := access.TierStandard
	if claims := requestutil.Claims(request); claims != nil {
		tier = access.TierFor(sec.UserRole(claims.Role))
	}

	chapter, err := handler.service.GetChapter(request.Context(), chapterID, tier)
	if err != nil {
		respond.Error(writer, request, readererr.ToApp(err))
		return
	}

	respond.OK(writer, chapter)
}
