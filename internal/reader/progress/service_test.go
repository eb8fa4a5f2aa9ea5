// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package progress_test

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-reader/internal/reader/progress"
	"github.com/taibuivan/yomira-reader/internal/reader/readererr"
)

// memoryBackend is an in-memory [progress.Backend] for service tests.
type memoryBackend struct {
	mu       sync.Mutex
	entries  map[string]map[string]*progress.Entry
	saves    int
	failSave bool
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{entries: make(map[string]map[string]*progress.Entry)}
}

func (backend *memoryBackend) Save(_ context.Context, owner string, entry *progress.Entry) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.failSave {
		return errors.New("backend unavailable")
	}
	backend.saves++
	if backend.entries[owner] == nil {
		backend.entries[owner] = make(map[string]*progress.Entry)
	}
	copied := *entry
	backend.entries[owner][entry.ComicID] = &copied
	return nil
}

func (backend *memoryBackend) Get(_ context.Context, owner string, comicID string) (*progress.Entry, error) {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	entry, ok := backend.entries[owner][comicID]
	if !ok {
		return nil, &readererr.NotFoundError{Resource: "Reading progress"}
	}
	copied := *entry
	return &copied, nil
}

func (backend *memoryBackend) Recent(context context.Context, owner string, limit int) ([]*progress.Entry, error) {
	all, err := backend.All(context, owner)
	if err != nil {
		return nil, err
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (backend *memoryBackend) All(_ context.Context, owner string) ([]*progress.Entry, error) {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	var all []*progress.Entry
	for _, entry := range backend.entries[owner] {
		copied := *entry
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})
	return all, nil
}

func (backend *memoryBackend) Clear(_ context.Context, owner string, comicID string) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	delete(backend.entries[owner], comicID)
	return nil
}

func (backend *memoryBackend) ClearAll(_ context.Context, owner string) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	delete(backend.entries, owner)
	return nil
}

func (backend *memoryBackend) saveCount() int {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	return backend.saves
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func guest(deviceID string) progress.Identity {
	return progress.Identity{DeviceID: deviceID}
}

func member(userID string, deviceID string) progress.Identity {
	return progress.Identity{UserID: userID, DeviceID: deviceID, Authenticated: true}
}

func entryAt(comicID string, page int, updatedAt time.Time) *progress.Entry {
	return &progress.Entry{
		ComicID:    comicID,
		ChapterID:  "ch-" + comicID,
		PageNumber: page,
		UpdatedAt:  updatedAt,
	}
}

/*
TestService_BackendSelection verifies per-call routing: guest saves land in
the guest store, authenticated saves in the remote store.
*/
func TestService_BackendSelection(t *testing.T) {
	local, remote := newMemoryBackend(), newMemoryBackend()
	service := progress.NewService(local, remote, discard())

	// 1. Guest write scoped to the device
	require.NoError(t, service.SaveProgress(context.Background(), guest("device-1"),
		entryAt("comic-1", 3, time.Now())))

	_, err := local.Get(context.Background(), "device-1", "comic-1")
	assert.NoError(t, err)
	assert.Equal(t, 0, remote.saveCount())

	// 2. Authenticated write scoped to the user
	require.NoError(t, service.SaveProgress(context.Background(), member("user-1", "device-1"),
		entryAt("comic-2", 5, time.Now())))

	_, err = remote.Get(context.Background(), "user-1", "comic-2")
	assert.NoError(t, err)

	// 3. Reads follow the same selection
	got, err := service.GetProgress(context.Background(), member("user-1", ""), "comic-2")
	require.NoError(t, err)
	assert.Equal(t, 5, got.PageNumber)
}

/*
TestService_RemoteFailureFallsBackToLocal verifies that a failed remote
write parks the position on the device instead of dropping it.
*/
func TestService_RemoteFailureFallsBackToLocal(t *testing.T) {
	local, remote := newMemoryBackend(), newMemoryBackend()
	remote.failSave = true
	service := progress.NewService(local, remote, discard())

	err := service.SaveProgress(context.Background(), member("user-1", "device-1"),
		entryAt("comic-1", 7, time.Now()))
	require.NoError(t, err)

	got, err := local.Get(context.Background(), "device-1", "comic-1")
	require.NoError(t, err)
	assert.Equal(t, 7, got.PageNumber)
}

/*
TestMerge_RemoteEntryNewer verifies last-write-wins when the remote entry
is the later one: a guest reads to page 4, then reads the same comic to
page 9 on another logged-in device. After authenticating on the first
device the remote position survives and the guest history is gone.
*/
func TestMerge_RemoteEntryNewer(t *testing.T) {
	local, remote := newMemoryBackend(), newMemoryBackend()
	service := progress.NewService(local, remote, discard())

	base := time.Now()
	require.NoError(t, local.Save(context.Background(), "device-1", entryAt("comic-1", 4, base)))
	require.NoError(t, remote.Save(context.Background(), "user-1", entryAt("comic-1", 9, base.Add(time.Hour))))
	remoteSavesBefore := remote.saveCount()

	require.NoError(t, service.MergeOnAuthentication(context.Background(), "device-1", "user-1"))

	got, err := remote.Get(context.Background(), "user-1", "comic-1")
	require.NoError(t, err)
	assert.Equal(t, 9, got.PageNumber)

	// Losing guest entry was never upserted
	assert.Equal(t, remoteSavesBefore, remote.saveCount())

	// Guest history retired
	leftover, err := local.All(context.Background(), "device-1")
	require.NoError(t, err)
	assert.Empty(t, leftover)
}

/*
TestMerge_LocalEntryNewer verifies that a strictly-later guest entry
replaces the remote one.
*/
func TestMerge_LocalEntryNewer(t *testing.T) {
	local, remote := newMemoryBackend(), newMemoryBackend()
	service := progress.NewService(local, remote, discard())

	base := time.Now()
	require.NoError(t, remote.Save(context.Background(), "user-1", entryAt("comic-1", 2, base)))
	require.NoError(t, local.Save(context.Background(), "device-1", entryAt("comic-1", 6, base.Add(time.Minute))))

	require.NoError(t, service.MergeOnAuthentication(context.Background(), "device-1", "user-1"))

	got, err := remote.Get(context.Background(), "user-1", "comic-1")
	require.NoError(t, err)
	assert.Equal(t, 6, got.PageNumber)
}

/*
TestMerge_TieKeepsRemote verifies that equal timestamps issue no redundant
upsert.
*/
func TestMerge_TieKeepsRemote(t *testing.T) {
	local, remote := newMemoryBackend(), newMemoryBackend()
	service := progress.NewService(local, remote, discard())

	at := time.Now()
	require.NoError(t, remote.Save(context.Background(), "user-1", entryAt("comic-1", 2, at)))
	require.NoError(t, local.Save(context.Background(), "device-1", entryAt("comic-1", 8, at)))
	remoteSavesBefore := remote.saveCount()

	require.NoError(t, service.MergeOnAuthentication(context.Background(), "device-1", "user-1"))

	got, err := remote.Get(context.Background(), "user-1", "comic-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.PageNumber)
	assert.Equal(t, remoteSavesBefore, remote.saveCount())
}

/*
TestMerge_Idempotent verifies that re-running the merge with an emptied
guest history changes nothing.
*/
func TestMerge_Idempotent(t *testing.T) {
	local, remote := newMemoryBackend(), newMemoryBackend()
	service := progress.NewService(local, remote, discard())

	require.NoError(t, local.Save(context.Background(), "device-1", entryAt("comic-1", 5, time.Now())))
	require.NoError(t, local.Save(context.Background(), "device-1", entryAt("comic-2", 1, time.Now())))

	require.NoError(t, service.MergeOnAuthentication(context.Background(), "device-1", "user-1"))
	savesAfterFirst := remote.saveCount()

	require.NoError(t, service.MergeOnAuthentication(context.Background(), "device-1", "user-1"))
	assert.Equal(t, savesAfterFirst, remote.saveCount())

	all, err := remote.All(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

/*
TestMerge_UpsertFailureKeepsGuestHistory verifies that a failed upsert
leaves the guest history in place for the next attempt.
*/
func TestMerge_UpsertFailureKeepsGuestHistory(t *testing.T) {
	local, remote := newMemoryBackend(), newMemoryBackend()
	service := progress.NewService(local, remote, discard())

	require.NoError(t, local.Save(context.Background(), "device-1", entryAt("comic-1", 5, time.Now())))
	remote.failSave = true

	err := service.MergeOnAuthentication(context.Background(), "device-1", "user-1")
	require.Error(t, err)

	leftover, localErr := local.All(context.Background(), "device-1")
	require.NoError(t, localErr)
	assert.Len(t, leftover, 1)
}
