// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package progress persists last-read positions per comic.

Two interchangeable backends implement an identical contract: a Redis-backed
store for guest devices (volatile, TTL-expired, capped per device) and a
PostgreSQL-backed store for authenticated users (durable, upsert-keyed).
Backend selection is resolved per call from the viewer identity, and a
one-shot merge reconciles guest history into the user's remote history at
the moment of authentication.

Core Responsibilities:

  - Durability: Last position per (owner, comic) survives the session.
  - Selection: Guest writes land in Redis, authenticated writes in Postgres.
  - Reconciliation: Guest-to-user transitions merge last-write-wins.
*/
package progress

import (
	"context"
	"time"
)

// # Domain Model

// Entry is the persisted reading position for a single comic.
type Entry struct {
	ComicID         string    `json:"comicId"`
	ChapterID       string    `json:"chapterId"`
	PageNumber      int       `json:"pageNumber"`
	ProgressPercent float64   `json:"progressPercent"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Identity describes the viewer a progress operation is scoped to.
//
// DeviceID is the client-minted guest identifier (X-Device-ID). UserID is
// set only for authenticated viewers. Authenticated decides which backend
// owns the write; the guest device keeps its history until the merge runs.
type Identity struct {
	UserID        string
	DeviceID      string
	Authenticated bool
}

// Owner returns the storage key the identity's entries are scoped under.
func (identity Identity) Owner() string {
	if identity.Authenticated {
		return identity.UserID
	}
	return identity.DeviceID
}

// # Backend Contract

// Backend is the storage contract shared by the guest and remote stores.
//
// All operations are scoped to a single owner: a device ID for the guest
// backend, a user ID for the remote backend.
type Backend interface {

	// Save persists the entry, replacing any prior position for the comic.
	Save(context context.Context, owner string, entry *Entry) error

	// Get returns the stored position for one comic.
	// Returns readererr.NotFoundError when no position exists.
	Get(context context.Context, owner string, comicID string) (*Entry, error)

	// Recent returns up to limit entries, most recently updated first.
	Recent(context context.Context, owner string, limit int) ([]*Entry, error)

	// All returns every stored entry for the owner, most recent first.
	All(context context.Context, owner string) ([]*Entry, error)

	// Clear removes the stored position for one comic.
	Clear(context context.Context, owner string, comicID string) error

	// ClearAll removes every stored position for the owner.
	ClearAll(context context.Context, owner string) error
}
