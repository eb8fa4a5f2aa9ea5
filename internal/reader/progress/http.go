// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package progress

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/yomira-reader/internal/platform/apperr"
	"github.com/taibuivan/yomira-reader/internal/platform/constants"
	"github.com/taibuivan/yomira-reader/internal/platform/ctxutil"
	requestutil "github.com/taibuivan/yomira-reader/internal/platform/request"
	"github.com/taibuivan/yomira-reader/internal/platform/respond"
	"github.com/taibuivan/yomira-reader/internal/platform/validate"
	"github.com/taibuivan/yomira-reader/internal/reader/readererr"
)

// # Handler Implementation

// Handler implements the HTTP layer for reading progress.
//
// Authenticated requests are scoped to the JWT subject; guest requests are
// scoped to the X-Device-ID header. Requests carrying neither are rejected.
type Handler struct {
	service *Service
}

// NewHandler constructs a new progress [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes attaches progress endpoints to the root API router.
func (handler *Handler) RegisterRoutes(api chi.Router) {
	api.Route("/progress", func(router chi.Router) {
		router.Get("/", handler.List)
		router.Delete("/", handler.ClearAll)
		router.Put("/{comicId}", handler.Save)
		router.Get("/{comicId}", handler.Get)
		router.Delete("/{comicId}", handler.Clear)
	})
}

// identity resolves the viewer scope from claims or the device header.
// The device ID is normally surfaced by [middleware.DeviceID]; the header
// read is a fallback for routes mounted without the full chain.
func identity(request *http.Request) (Identity, error) {
	viewer := Identity{DeviceID: ctxutil.GetDeviceID(request.Context())}
	if viewer.DeviceID == "" {
		viewer.DeviceID = request.Header.Get(constants.HeaderXDeviceID)
	}

	if claims := requestutil.Claims(request); claims != nil {
		viewer.UserID = claims.UserID
		viewer.Authenticated = true
		return viewer, nil
	}

	if viewer.DeviceID == "" {
		return Identity{}, apperr.ValidationError("Missing X-Device-ID header for guest progress")
	}
	return viewer, nil
}

// # Request Payloads

type saveRequest struct {
	ChapterID       string  `json:"chapterId"`
	PageNumber      int     `json:"pageNumber"`
	ProgressPercent float64 `json:"progressPercent"`
}

/*
Save persists the viewer's position for a comic.

PUT /api/v1/progress/{comicId}

Request:
  - comicId: string (UUID)
  - Body: saveRequest (ChapterID, PageNumber, ProgressPercent)

Response:
  - 204: Saved
  - 400: Validation failure or missing guest device header
*/
func (handler *Handler) Save(writer http.ResponseWriter, request *http.Request) {
	viewer, err := identity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input saveRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	comicID := requestutil.ID(request, "comicId")

	validator := &validate.Validator{}
	validator.UUID("comicId", comicID).
		Required("chapterId", input.ChapterID).
		Custom("pageNumber", input.PageNumber < 1, "must be at least 1").
		Custom("progressPercent", input.ProgressPercent < 0 || input.ProgressPercent > 100, "must be between 0 and 100")

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	entry := &Entry{
		ComicID:         comicID,
		ChapterID:       input.ChapterID,
		PageNumber:      input.PageNumber,
		ProgressPercent: input.ProgressPercent,
	}
	if err := handler.service.SaveProgress(request.Context(), viewer, entry); err != nil {
		respond.Error(writer, request, readererr.ToApp(err))
		return
	}

	respond.NoContent(writer)
}

/*
Get returns the viewer's position for a comic.

GET /api/v1/progress/{comicId}

Response:
  - 200: Entry
  - 404: NOT_FOUND: No stored position
*/
func (handler *Handler) Get(writer http.ResponseWriter, request *http.Request) {
	viewer, err := identity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	entry, err := handler.service.GetProgress(request.Context(), viewer, requestutil.ID(request, "comicId"))
	if err != nil {
		respond.Error(writer, request, readererr.ToApp(err))
		return
	}

	respond.OK(writer, entry)
}

/*
List returns the viewer's positions, most recently updated first.

GET /api/v1/progress?limit=N

Request:
  - limit: int (optional; omitted returns the full history)

Response:
  - 200: []Entry
*/
func (handler *Handler) List(writer http.ResponseWriter, request *http.Request) {
	viewer, err := identity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var entries []*Entry
	if raw := request.URL.Query().Get("limit"); raw != "" {
		limit, convErr := strconv.Atoi(raw)
		if convErr != nil || limit < 1 {
			respond.Error(writer, request, apperr.ValidationError("limit must be a positive integer"))
			return
		}
		entries, err = handler.service.Recent(request.Context(), viewer, limit)
	} else {
		entries, err = handler.service.All(request.Context(), viewer)
	}
	if err != nil {
		respond.Error(writer, request, readererr.ToApp(err))
		return
	}

	if entries == nil {
		entries = []*Entry{}
	}
	respond.OK(writer, entries)
}

/*
Clear removes the viewer's position for a comic.

DELETE /api/v1/progress/{comicId}

Response:
  - 204: Removed (idempotent)
*/
func (handler *Handler) Clear(writer http.ResponseWriter, request *http.Request) {
	viewer, err := identity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.Clear(request.Context(), viewer, requestutil.ID(request, "comicId")); err != nil {
		respond.Error(writer, request, readererr.ToApp(err))
		return
	}

	respond.NoContent(writer)
}

/*
ClearAll removes the viewer's entire position history.

DELETE /api/v1/progress

Response:
  - 204: Removed (idempotent)
*/
func (handler *Handler) ClearAll(writer http.ResponseWriter, request *http.Request) {
	viewer, err := identity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.ClearAll(request.Context(), viewer); err != nil {
		respond.Error(writer, request, readererr.ToApp(err))
		return
	}

	respond.NoContent(writer)
}
