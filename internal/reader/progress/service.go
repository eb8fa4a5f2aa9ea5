// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// # Service Implementation

// Service routes progress operations to the backend owning the viewer's
// history. Selection is re-evaluated on every call from the identity the
// caller passes in, never cached, so an authentication change between two
// calls is picked up immediately.
type Service struct {
	local  Backend
	remote Backend
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the dual-backend progress service.
//
// # Parameters
//   - local: Guest store (Redis).
//   - remote: Authenticated store (Postgres).
//   - logger: Structured logger for fallback and merge events.
func NewService(local Backend, remote Backend, logger *slog.Logger) *Service {
	return &Service{
		local:  local,
		remote: remote,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (service *Service) WithClock(now func() time.Time) *Service {
	service.now = now
	return service
}

// backendFor resolves the canonical backend and owner key for a call.
func (service *Service) backendFor(identity Identity) (Backend, string) {
	if identity.Authenticated {
		return service.remote, identity.UserID
	}
	return service.local, identity.DeviceID
}

/*
SaveProgress persists a reading position for the viewer.

Description: Authenticated viewers write to the remote store; guests write
to the device-scoped guest store. A failed remote write falls back to the
guest store so the position is never silently dropped.

Parameters:
  - context: context.Context
  - identity: Identity
  - entry: *Entry (UpdatedAt stamped when zero)

Returns:
  - error: Failure of both the canonical write and the fallback
*/
func (service *Service) SaveProgress(context context.Context, identity Identity, entry *Entry) error {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = service.now()
	}

	backend, owner := service.backendFor(identity)
	err := backend.Save(context, owner, entry)
	if err == nil {
		return nil
	}

	// Guest writes have no further net to fall into
	if !identity.Authenticated {
		return err
	}

	// Remote failed: keep the position on the device rather than losing it
	service.logger.Warn("progress_remote_save_fallback",
		slog.String("comic_id", entry.ComicID),
		slog.String("error", err.Error()),
	)

	fallbackOwner := identity.DeviceID
	if fallbackOwner == "" {
		fallbackOwner = identity.UserID
	}
	if localErr := service.local.Save(context, fallbackOwner, entry); localErr != nil {
		return fmt.Errorf("progress_save_failed: %w", errors.Join(err, localErr))
	}

	return nil
}

/*
GetProgress returns the stored position for one comic.

Parameters:
  - context: context.Context
  - identity: Identity
  - comicID: string

Returns:
  - *Entry: Stored position
  - error: readererr.NotFoundError if absent
*/
func (service *Service) GetProgress(context context.Context, identity Identity, comicID string) (*Entry, error) {
	backend, owner := service.backendFor(identity)
	return backend.Get(context, owner, comicID)
}

/*
Recent returns up to limit positions, most recently updated first.

Parameters:
  - context: context.Context
  - identity: Identity
  - limit: int

Returns:
  - []*Entry: Ordered positions
  - error: Retrieval failures
*/
func (service *Service) Recent(context context.Context, identity Identity, limit int) ([]*Entry, error) {
	backend, owner := service.backendFor(identity)
	return backend.Recent(context, owner, limit)
}

/*
All returns every stored position for the viewer, most recent first.

Parameters:
  - context: context.Context
  - identity: Identity

Returns:
  - []*Entry: Ordered positions
  - error: Retrieval failures
*/
func (service *Service) All(context context.Context, identity Identity) ([]*Entry, error) {
	backend, owner := service.backendFor(identity)
	return backend.All(context, owner)
}

/*
Clear removes the stored position for one comic.

Parameters:
  - context: context.Context
  - identity: Identity
  - comicID: string

Returns:
  - error: Deletion failures
*/
func (service *Service) Clear(context context.Context, identity Identity, comicID string) error {
	backend, owner := service.backendFor(identity)
	return backend.Clear(context, owner, comicID)
}

/*
ClearAll removes every stored position for the viewer.

Parameters:
  - context: context.Context
  - identity: Identity

Returns:
  - error: Deletion failures
*/
func (service *Service) ClearAll(context context.Context, identity Identity) error {
	backend, owner := service.backendFor(identity)
	return backend.ClearAll(context, owner)
}

// SaveLocal writes the entry straight to the guest store, bypassing backend
// selection. Used by the flush-on-exit path as a durability net when the
// canonical (possibly remote) write may not have had time to complete.
func (service *Service) SaveLocal(context context.Context, identity Identity, entry *Entry) error {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = service.now()
	}
	owner := identity.DeviceID
	if owner == "" {
		owner = identity.UserID
	}
	return service.local.Save(context, owner, entry)
}

// # Authentication Merge

/*
MergeOnAuthentication folds a device's guest history into a user's remote
history at the moment the guest authenticates.

Description: Last-write-wins per comic. A guest entry replaces the remote
entry only when its UpdatedAt is strictly later; ties keep the remote row
so no redundant upsert is issued. Once every winning entry is upserted the
guest history is cleared. Re-running with an already-empty guest history
is a no-op, so the merge is idempotent.

Parameters:
  - context: context.Context
  - deviceID: string (guest owner)
  - userID: string (remote owner)

Returns:
  - error: Read or upsert failures (guest history is kept on failure)
*/
func (service *Service) MergeOnAuthentication(context context.Context, deviceID string, userID string) error {

	// 1. Read the guest history; empty means nothing to reconcile
	localEntries, err := service.local.All(context, deviceID)
	if err != nil {
		return fmt.Errorf("progress_merge_local_read_failed: %w", err)
	}
	if len(localEntries) == 0 {
		return nil
	}

	// 2. Index the remote history by comic
	remoteEntries, err := service.remote.All(context, userID)
	if err != nil {
		return fmt.Errorf("progress_merge_remote_read_failed: %w", err)
	}
	remoteByComic := make(map[string]*Entry, len(remoteEntries))
	for _, entry := range remoteEntries {
		remoteByComic[entry.ComicID] = entry
	}

	// 3. Upsert every guest entry that is strictly newer than remote
	merged := 0
	for _, local := range localEntries {
		remote, exists := remoteByComic[local.ComicID]
		if exists && !local.UpdatedAt.After(remote.UpdatedAt) {
			continue
		}
		if err := service.remote.Save(context, userID, local); err != nil {
			return fmt.Errorf("progress_merge_upsert_failed: %w", err)
		}
		merged++
	}

	// 4. All upserts succeeded: retire the guest history
	if err := service.local.ClearAll(context, deviceID); err != nil {
		return fmt.Errorf("progress_merge_local_clear_failed: %w", err)
	}

	service.logger.Info("progress_merge_completed",
		slog.String("user_id", userID),
		slog.Int("local_entries", len(localEntries)),
		slog.Int("merged", merged),
	)

	return nil
}

// OnAuthenticated is the transition-stream hook. Merge failures are logged
// and swallowed: a failed reconciliation must never break the login flow,
// and the guest history survives for the next attempt.
func (service *Service) OnAuthenticated(context context.Context, deviceID string, userID string) {
	if deviceID == "" || userID == "" {
		return
	}
	if err := service.MergeOnAuthentication(context, deviceID, userID); err != nil {
		service.logger.Error("progress_merge_failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
