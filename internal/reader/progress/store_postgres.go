// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/yomira-reader/internal/platform/database/schema"
	"github.com/taibuivan/yomira-reader/internal/platform/dberr"
	"github.com/taibuivan/yomira-reader/internal/reader/readererr"
	"github.com/taibuivan/yomira-reader/pkg/uuidv7"
)

// # Remote Backend

// PostgresBackend implements [Backend] for authenticated users, keyed by
// the (userid, comicid) pair. Save is an upsert on that composite key so a
// user never accumulates duplicate rows for the same comic.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend creates the PostgreSQL-backed remote store.
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

/*
Save upserts the entry on the (userid, comicid) composite key.

Parameters:
  - context: context.Context
  - owner: string (user ID)
  - entry: *Entry

Returns:
  - error: Execution failures
*/
func (backend *PostgresBackend) Save(context context.Context, owner string, entry *Entry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (%s, %s) DO UPDATE SET
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s
	`,
		schema.LibraryReadingProgress.Table,
		schema.LibraryReadingProgress.ID,
		schema.LibraryReadingProgress.UserID,
		schema.LibraryReadingProgress.ComicID,
		schema.LibraryReadingProgress.ChapterID,
		schema.LibraryReadingProgress.PageNumber,
		schema.LibraryReadingProgress.ProgressPercent,
		schema.LibraryReadingProgress.UpdatedAt,
		schema.LibraryReadingProgress.UserID,
		schema.LibraryReadingProgress.ComicID,
		schema.LibraryReadingProgress.ChapterID,
		schema.LibraryReadingProgress.ChapterID,
		schema.LibraryReadingProgress.PageNumber,
		schema.LibraryReadingProgress.PageNumber,
		schema.LibraryReadingProgress.ProgressPercent,
		schema.LibraryReadingProgress.ProgressPercent,
		schema.LibraryReadingProgress.UpdatedAt,
		schema.LibraryReadingProgress.UpdatedAt,
	)

	_, err := backend.pool.Exec(context, query,
		uuidv7.Must(),
		owner,
		entry.ComicID,
		entry.ChapterID,
		entry.PageNumber,
		entry.ProgressPercent,
		entry.UpdatedAt,
	)

	return dberr.Wrap(err, "save_progress")
}

/*
Get retrieves the stored position for one comic.

Parameters:
  - context: context.Context
  - owner: string (user ID)
  - comicID: string

Returns:
  - *Entry: Stored position
  - error: readererr.NotFoundError if absent
*/
func (backend *PostgresBackend) Get(context context.Context, owner string, comicID string) (*Entry, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s = $2
	`,
		schema.LibraryReadingProgress.ComicID,
		schema.LibraryReadingProgress.ChapterID,
		schema.LibraryReadingProgress.PageNumber,
		schema.LibraryReadingProgress.ProgressPercent,
		schema.LibraryReadingProgress.UpdatedAt,
		schema.LibraryReadingProgress.Table,
		schema.LibraryReadingProgress.UserID,
		schema.LibraryReadingProgress.ComicID,
	)

	entry, err := scanEntry(backend.pool.QueryRow(context, query, owner, comicID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &readererr.NotFoundError{Resource: "Reading progress"}
		}
		return nil, err
	}

	return entry, nil
}

/*
Recent returns up to limit entries, most recently updated first.

Parameters:
  - context: context.Context
  - owner: string (user ID)
  - limit: int

Returns:
  - []*Entry: Ordered positions
  - error: Retrieval failures
*/
func (backend *PostgresBackend) Recent(context context.Context, owner string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1
		ORDER BY %s DESC
		LIMIT $2
	`,
		schema.LibraryReadingProgress.ComicID,
		schema.LibraryReadingProgress.ChapterID,
		schema.LibraryReadingProgress.PageNumber,
		schema.LibraryReadingProgress.ProgressPercent,
		schema.LibraryReadingProgress.UpdatedAt,
		schema.LibraryReadingProgress.Table,
		schema.LibraryReadingProgress.UserID,
		schema.LibraryReadingProgress.UpdatedAt,
	)

	rows, err := backend.pool.Query(context, query, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres_progress_recent_failed: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

/*
All returns every stored entry for the user, most recent first.

Parameters:
  - context: context.Context
  - owner: string (user ID)

Returns:
  - []*Entry: Ordered positions
  - error: Retrieval failures
*/
func (backend *PostgresBackend) All(context context.Context, owner string) ([]*Entry, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1
		ORDER BY %s DESC
	`,
		schema.LibraryReadingProgress.ComicID,
		schema.LibraryReadingProgress.ChapterID,
		schema.LibraryReadingProgress.PageNumber,
		schema.LibraryReadingProgress.ProgressPercent,
		schema.LibraryReadingProgress.UpdatedAt,
		schema.LibraryReadingProgress.Table,
		schema.LibraryReadingProgress.UserID,
		schema.LibraryReadingProgress.UpdatedAt,
	)

	rows, err := backend.pool.Query(context, query, owner)
	if err != nil {
		return nil, fmt.Errorf("postgres_progress_all_failed: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

/*
Clear removes the stored position for one comic.

Parameters:
  - context: context.Context
  - owner: string (user ID)
  - comicID: string

Returns:
  - error: Deletion failures
*/
func (backend *PostgresBackend) Clear(context context.Context, owner string, comicID string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE %s = $1 AND %s = $2
	`,
		schema.LibraryReadingProgress.Table,
		schema.LibraryReadingProgress.UserID,
		schema.LibraryReadingProgress.ComicID,
	)

	_, err := backend.pool.Exec(context, query, owner, comicID)

	return dberr.Wrap(err, "clear_progress")
}

/*
ClearAll removes every stored position for the user.

Parameters:
  - context: context.Context
  - owner: string (user ID)

Returns:
  - error: Deletion failures
*/
func (backend *PostgresBackend) ClearAll(context context.Context, owner string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE %s = $1
	`,
		schema.LibraryReadingProgress.Table,
		schema.LibraryReadingProgress.UserID,
	)

	_, err := backend.pool.Exec(context, query, owner)

	return dberr.Wrap(err, "clear_all_progress")
}

// # Scan Helpers

// scanEntry hydrates an [Entry] from a progress row.
func scanEntry(row pgx.Row) (*Entry, error) {
	var entry Entry
	err := row.Scan(
		&entry.ComicID,
		&entry.ChapterID,
		&entry.PageNumber,
		&entry.ProgressPercent,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// collectEntries drains a progress result set.
func collectEntries(rows pgx.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres_progress_scan_failed: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_progress_rows_failed: %w", err)
	}
	return entries, nil
}
