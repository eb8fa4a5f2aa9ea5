// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/yomira-reader/internal/platform/database/schema"
	"github.com/taibuivan/yomira-reader/internal/reader/readererr"
)

// # PostgreSQL Repository

// postgresRepository implements the [Repository] interface using pgx.
type postgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed catalog store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

/*
FindComicBySlug retrieves a comic and its ordered chapter list by URL slug.

Parameters:
  - context: context.Context
  - slug: string

Returns:
  - *Comic: Hydrated entity with chapters ascending by number
  - error: readererr.NotFoundError if missing
*/
func (repository *postgresRepository) FindComicBySlug(context context.Context, slug string) (*Comic, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL
	`,
		schema.CoreComic.ID,
		schema.CoreComic.Title,
		schema.CoreComic.Slug,
		schema.CoreComic.Status,
		schema.CoreComic.CoverURL,
		schema.CoreComic.Description,
		schema.CoreComic.CreatedAt,
		schema.CoreComic.UpdatedAt,
		schema.CoreComic.Table,
		schema.CoreComic.Slug,
		schema.CoreComic.DeletedAt,
	)

	return repository.findComic(context, query, slug)
}

/*
FindComicByID retrieves a comic and its ordered chapter list by UUID.

Parameters:
  - context: context.Context
  - id: string (UUID)

Returns:
  - *Comic: Hydrated entity
  - error: readererr.NotFoundError if missing
*/
func (repository *postgresRepository) FindComicByID(context context.Context, id string) (*Comic, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL
	`,
		schema.CoreComic.ID,
		schema.CoreComic.Title,
		schema.CoreComic.Slug,
		schema.CoreComic.Status,
		schema.CoreComic.CoverURL,
		schema.CoreComic.Description,
		schema.CoreComic.CreatedAt,
		schema.CoreComic.UpdatedAt,
		schema.CoreComic.Table,
		schema.CoreComic.ID,
		schema.CoreComic.DeletedAt,
	)

	return repository.findComic(context, query, id)
}

// findComic executes a single-comic lookup and hydrates the chapter list.
func (repository *postgresRepository) findComic(context context.Context, query string, arg any) (*Comic, error) {

	// Comic row hydration
	var comic Comic
	var coverURL, description *string

	err := repository.pool.QueryRow(context, query, arg).Scan(
		&comic.ID,
		&comic.Title,
		&comic.Slug,
		&comic.Status,
		&coverURL,
		&description,
		&comic.CreatedAt,
		&comic.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &readererr.NotFoundError{Resource: "Comic"}
		}
		return nil, fmt.Errorf("postgres: failed to find comic: %w", err)
	}

	if coverURL != nil {
		comic.CoverURL = *coverURL
	}
	if description != nil {
		comic.Description = *description
	}

	// Chapter list hydration (ascending by chapter number)
	chapters, err := repository.listChapterMeta(context, comic.ID)
	if err != nil {
		return nil, err
	}
	comic.Chapters = chapters

	return &comic, nil
}

// listChapterMeta returns all chapter descriptors for a comic ordered by number.
func (repository *postgresRepository) listChapterMeta(context context.Context, comicID string) ([]*ChapterMeta, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL
		ORDER BY %s ASC
	`,
		schema.CoreChapter.ID,
		schema.CoreChapter.ComicID,
		schema.CoreChapter.Number,
		schema.CoreChapter.Title,
		schema.CoreChapter.PageCount,
		schema.CoreChapter.IsRestricted,
		schema.CoreChapter.EarlyAccessDays,
		schema.CoreChapter.PublicAvailableAt,
		schema.CoreChapter.Table,
		schema.CoreChapter.ComicID,
		schema.CoreChapter.DeletedAt,
		schema.CoreChapter.Number,
	)

	rows, err := repository.pool.Query(context, query, comicID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list chapters: %w", err)
	}
	defer rows.Close()

	var chapters []*ChapterMeta
	for rows.Next() {
		meta, err := scanChapterMeta(rows)
		if err != nil {
			return nil, err
		}
		chapters = append(chapters, meta)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: chapter row iteration failed: %w", err)
	}

	return chapters, nil
}

/*
ListChaptersBySlug retrieves one page of a comic's chapter descriptors.

Parameters:
  - context: context.Context
  - slug: string (URL slug)
  - limit: int (page size)
  - offset: int (rows to skip)

Returns:
  - []*ChapterMeta: Ascending by chapter number
  - int: Total chapter count for the comic
  - error: readererr.NotFoundError if the comic is missing
*/
func (repository *postgresRepository) ListChaptersBySlug(context context.Context, slug string, limit, offset int) ([]*ChapterMeta, int, error) {

	// 1. Resolve the comic; a missing slug is a typed not-found, not an empty page
	lookup := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND %s IS NULL`,
		schema.CoreComic.ID,
		schema.CoreComic.Table,
		schema.CoreComic.Slug,
		schema.CoreComic.DeletedAt,
	)

	var comicID string
	if err := repository.pool.QueryRow(context, lookup, slug).Scan(&comicID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, &readererr.NotFoundError{Resource: "Comic"}
		}
		return nil, 0, fmt.Errorf("postgres: failed to resolve comic slug: %w", err)
	}

	// 2. Total count for pagination metadata
	count := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1 AND %s IS NULL`,
		schema.CoreChapter.Table,
		schema.CoreChapter.ComicID,
		schema.CoreChapter.DeletedAt,
	)

	var total int
	if err := repository.pool.QueryRow(context, count, comicID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: failed to count chapters: %w", err)
	}

	// 3. Page of descriptors
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL
		ORDER BY %s ASC
		LIMIT $2 OFFSET $3
	`,
		schema.CoreChapter.ID,
		schema.CoreChapter.ComicID,
		schema.CoreChapter.Number,
		schema.CoreChapter.Title,
		schema.CoreChapter.PageCount,
		schema.CoreChapter.IsRestricted,
		schema.CoreChapter.EarlyAccessDays,
		schema.CoreChapter.PublicAvailableAt,
		schema.CoreChapter.Table,
		schema.CoreChapter.ComicID,
		schema.CoreChapter.DeletedAt,
		schema.CoreChapter.Number,
	)

	rows, err := repository.pool.Query(context, query, comicID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: failed to list chapter page: %w", err)
	}
	defer rows.Close()

	chapters := make([]*ChapterMeta, 0, limit)
	for rows.Next() {
		meta, err := scanChapterMeta(rows)
		if err != nil {
			return nil, 0, err
		}
		chapters = append(chapters, meta)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres: chapter row iteration failed: %w", err)
	}

	return chapters, total, nil
}

/*
FindChapterMeta retrieves the descriptor for a single chapter.

Parameters:
  - context: context.Context
  - chapterID: string (UUID)

Returns:
  - *ChapterMeta: Number, page count, and access policy
  - error: readererr.NotFoundError if missing
*/
func (repository *postgresRepository) FindChapterMeta(context context.Context, chapterID string) (*ChapterMeta, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL
	`,
		schema.CoreChapter.ID,
		schema.CoreChapter.ComicID,
		schema.CoreChapter.Number,
		schema.CoreChapter.Title,
		schema.CoreChapter.PageCount,
		schema.CoreChapter.IsRestricted,
		schema.CoreChapter.EarlyAccessDays,
		schema.CoreChapter.PublicAvailableAt,
		schema.CoreChapter.Table,
		schema.CoreChapter.ID,
		schema.CoreChapter.DeletedAt,
	)

	row := repository.pool.QueryRow(context, query, chapterID)
	meta, err := scanChapterMeta(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &readererr.NotFoundError{Resource: "Chapter"}
		}
		return nil, err
	}

	return meta, nil
}

/*
FindChapterPages retrieves the ordered page manifest for a chapter.

Parameters:
  - context: context.Context
  - chapterID: string (UUID)

Returns:
  - []string: Image URIs ordered by page number
  - error: Retrieval failure
*/
func (repository *postgresRepository) FindChapterPages(context context.Context, chapterID string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = $1
		ORDER BY %s ASC
	`,
		schema.CorePage.ImageURL,
		schema.CorePage.Table,
		schema.CorePage.ChapterID,
		schema.CorePage.PageNumber,
	)

	rows, err := repository.pool.Query(context, query, chapterID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list pages: %w", err)
	}
	defer rows.Close()

	var pages []string
	for rows.Next() {
		var imageURL string
		if err := rows.Scan(&imageURL); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan page: %w", err)
		}
		pages = append(pages, imageURL)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: page row iteration failed: %w", err)
	}

	return pages, nil
}

// # Scan Helpers

// scanChapterMeta hydrates a [ChapterMeta] from a chapter row, folding the
// access-policy columns into an [access.Policy].
func scanChapterMeta(row pgx.Row) (*ChapterMeta, error) {
	var meta ChapterMeta
	var title *string

	err := row.Scan(
		&meta.ID,
		&meta.ComicID,
		&meta.Number,
		&title,
		&meta.PageCount,
		&meta.Policy.RestrictedToPrivileged,
		&meta.Policy.EarlyAccessWindowDays,
		&meta.Policy.PublicAvailableAt,
	)
	if err != nil {
		return nil, err
	}

	if title != nil {
		meta.Title = *title
	}

	return &meta, nil
}
