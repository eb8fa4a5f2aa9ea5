// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package catalog exposes the published content the reading engine consumes:
comics, their ordered chapter lists, and per-chapter page manifests.

The reading engine treats this package as an external collaborator behind two
narrow operations — comic metadata (with per-chapter page counts and access
policies) and chapter content. Access windows are enforced here, server-side;
the client-side gate in internal/reader/access is a UX optimization only.
*/
package catalog

import (
	"time"

	"github.com/taibuivan/yomira-reader/internal/reader/access"
)

// # Domain Entities

// Comic is a published multi-chapter title.
type Comic struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Status      string    `json:"status"`
	CoverURL    string    `json:"cover_url,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Chapters is the full ordered chapter list (ascending number), with
	// page counts and access policies but without page manifests.
	Chapters []*ChapterMeta `json:"chapters,omitempty"`
}

// ChapterMeta is the lightweight chapter descriptor carried in comic
// metadata. It is everything the reading engine needs to compute absolute
// page offsets and evaluate access before fetching content.
type ChapterMeta struct {
	ID        string        `json:"id"`
	ComicID   string        `json:"comic_id"`
	Number    int           `json:"number"`
	Title     string        `json:"title,omitempty"`
	PageCount int           `json:"page_count"`
	Policy    access.Policy `json:"access_policy"`
}

// Chapter is a fully materialized chapter: metadata plus the ordered page
// manifest. Immutable once loaded.
type Chapter struct {
	ID      string `json:"id"`
	ComicID string `json:"comic_id"`
	Number  int    `json:"number"`
	Title   string `json:"title,omitempty"`

	// Pages holds the image URIs in reading order. Page numbers are 1-based
	// positions in this slice.
	Pages []string `json:"pages"`
}

// PageCount returns the number of pages in the manifest.
func (c *Chapter) PageCount() int {
	return len(c.Pages)
}
