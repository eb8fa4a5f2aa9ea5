// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-reader/internal/auth"
	"github.com/taibuivan/yomira-reader/internal/platform/apperr"
	"github.com/taibuivan/yomira-reader/internal/platform/sec"
)

// # Test Doubles

type fakeUserRepository struct {
	users map[string]*auth.User // keyed by email
}

func (repository *fakeUserRepository) FindByID(_ context.Context, id string) (*auth.User, error) {
	for _, user := range repository.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, apperr.NotFound("User not found")
}

func (repository *fakeUserRepository) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	if user, ok := repository.users[email]; ok {
		return user, nil
	}
	return nil, apperr.NotFound("User not found with this email")
}

func (repository *fakeUserRepository) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	for _, user := range repository.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, apperr.NotFound("User not found with this username")
}

func (repository *fakeUserRepository) Create(_ context.Context, user *auth.User) error {
	repository.users[user.Email] = user
	return nil
}

type fakeSessionRepository struct {
	sessions map[string]*auth.Session // keyed by token hash
}

func (repository *fakeSessionRepository) Create(_ context.Context, session *auth.Session) error {
	repository.sessions[session.TokenHash] = session
	return nil
}

func (repository *fakeSessionRepository) FindByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	session, ok := repository.sessions[tokenHash]
	if !ok || session.IsRevoked {
		return nil, apperr.NotFound("Session not found or expired")
	}
	return session, nil
}

func (repository *fakeSessionRepository) Revoke(_ context.Context, sessionID string) error {
	for _, session := range repository.sessions {
		if session.ID == sessionID {
			session.IsRevoked = true
		}
	}
	return nil
}

func (repository *fakeSessionRepository) RevokeAll(_ context.Context, userID string) error {
	for _, session := range repository.sessions {
		if session.UserID == userID {
			session.IsRevoked = true
		}
	}
	return nil
}

func (repository *fakeSessionRepository) DeleteExpired(_ context.Context) error { return nil }

type staticTokenProvider struct{}

func (staticTokenProvider) GenerateAccessToken(_, _, _ string, _ time.Duration) (string, error) {
	return "signed-token", nil
}

// # Fixtures

func newService(t *testing.T) (*auth.Service, *auth.TransitionBus) {
	t.Helper()

	hash, err := sec.HashPassword("correct horse")
	require.NoError(t, err)

	users := &fakeUserRepository{users: map[string]*auth.User{
		"reader@yomira.app": {
			ID:           "user-1",
			Username:     "reader",
			Email:        "reader@yomira.app",
			PasswordHash: hash,
			Role:         sec.RoleMember,
		},
	}}
	sessions := &fakeSessionRepository{sessions: make(map[string]*auth.Session)}
	bus := auth.NewTransitionBus()

	return auth.NewService(users, sessions, staticTokenProvider{}, bus), bus
}

// # Tests

/*
TestLogin_PublishesTransitionForGuestDevice verifies that a login carrying
a guest device ID emits exactly one authentication transition, and a login
without one emits none.
*/
func TestLogin_PublishesTransitionForGuestDevice(t *testing.T) {
	service, bus := newService(t)

	received := make(chan auth.Transition, 4)
	bus.Subscribe(func(_ context.Context, transition auth.Transition) {
		received <- transition
	})

	// 1. Guest device authenticates: transition published
	_, err := service.Login(context.Background(), auth.LoginInput{
		Login:    "reader@yomira.app",
		Password: "correct horse",
		DeviceID: "device-1",
	})
	require.NoError(t, err)

	select {
	case transition := <-received:
		assert.Equal(t, "device-1", transition.DeviceID)
		assert.Equal(t, "user-1", transition.UserID)
		assert.False(t, transition.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected a transition after guest login")
	}

	// 2. Login without a device header: silent
	_, err = service.Login(context.Background(), auth.LoginInput{
		Login:    "reader@yomira.app",
		Password: "correct horse",
	})
	require.NoError(t, err)

	select {
	case <-received:
		t.Fatal("login without a device ID must not publish a transition")
	case <-time.After(50 * time.Millisecond):
	}
}

/*
TestLogin_RejectsBadCredentials verifies the enumeration-safe failure path.
*/
func TestLogin_RejectsBadCredentials(t *testing.T) {
	service, _ := newService(t)

	_, err := service.Login(context.Background(), auth.LoginInput{
		Login:    "reader@yomira.app",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)

	_, err = service.Login(context.Background(), auth.LoginInput{
		Login:    "nobody@yomira.app",
		Password: "correct horse",
	})
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
}

/*
TestTransitionBus_SuppressesDuplicateInflight verifies that a transition
for a (device, user) pair already being delivered is dropped, and that the
pair becomes deliverable again once the first delivery completes.
*/
func TestTransitionBus_SuppressesDuplicateInflight(t *testing.T) {
	bus := auth.NewTransitionBus()

	release := make(chan struct{})
	delivered := make(chan auth.Transition, 4)
	bus.Subscribe(func(_ context.Context, transition auth.Transition) {
		<-release
		delivered <- transition
	})

	event := auth.Transition{DeviceID: "device-1", UserID: "user-1", At: time.Now()}

	// 1. First publish parks in the slow listener; second is suppressed
	bus.Publish(event)
	bus.Publish(event)
	close(release)

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("first transition never delivered")
	}
	select {
	case <-delivered:
		t.Fatal("duplicate in-flight transition must be suppressed")
	case <-time.After(50 * time.Millisecond):
	}

	// 2. Pair is deliverable again after completion
	bus.Publish(event)
	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("transition after completion never delivered")
	}
}

/*
TestRefreshSession_RotatesTokens verifies refresh-token rotation: the old
session is revoked and a new one is issued.
*/
func TestRefreshSession_RotatesTokens(t *testing.T) {
	service, _ := newService(t)

	session, err := service.Login(context.Background(), auth.LoginInput{
		Login:    "reader@yomira.app",
		Password: "correct horse",
	})
	require.NoError(t, err)

	rotated, err := service.RefreshSession(context.Background(), session.RefreshToken, "", "")
	require.NoError(t, err)
	assert.NotEqual(t, session.RefreshToken, rotated.RefreshToken)

	// The old token is now unusable
	_, err = service.RefreshSession(context.Background(), session.RefreshToken, "", "")
	require.Error(t, err)
}
