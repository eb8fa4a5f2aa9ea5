// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import "context"

// # Catalog Data Access

// Repository defines the data access contract for published comics and chapters.
type Repository interface {

	/*
		FindComicBySlug returns a comic with its full ordered chapter list.

		Parameters:
		  - context: context.Context
		  - slug: string (URL slug)

		Returns:
		  - *Comic: Hydrated metadata including chapter page counts and policies
		  - error: readererr.NotFoundError if missing
	*/
	FindComicBySlug(context context.Context, slug string) (*Comic, error)

	/*
		FindComicByID returns a comic with its full ordered chapter list.

		Parameters:
		  - context: context.Context
		  - id: string (UUID)

		Returns:
		  - *Comic: Hydrated metadata
		  - error: readererr.NotFoundError if missing
	*/
	FindComicByID(context context.Context, id string) (*Comic, error)

	/*
		ListChaptersBySlug returns one page of a comic's chapter descriptors.

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
	ListChaptersBySlug(context context.Context, slug string, limit, offset int) ([]*ChapterMeta, int, error)

	/*
		FindChapterMeta returns the descriptor for a single chapter.

		Parameters:
		  - context: context.Context
		  - chapterID: string (UUID)

		Returns:
		  - *ChapterMeta: Number, page count, and access policy
		  - error: readererr.NotFoundError if missing
	*/
	FindChapterMeta(context context.Context, chapterID string) (*ChapterMeta, error)

	/*
		FindChapterPages returns the ordered page manifest for a chapter.

		Parameters:
		  - context: context.Context
		  - chapterID: string (UUID)

		Returns:
		  - []string: Image URIs in reading order
		  - error: Retrieval failure
	*/
	FindChapterPages(context context.Context, chapterID string) ([]string, error)
}
