// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package dberr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-reader/internal/platform/apperr"
)

func TestWrap_NilPassesThrough(t *testing.T) {
	assert.NoError(t, Wrap(nil, "save_progress"))
}

func TestWrap_NoRowsBecomesNotFound(t *testing.T) {
	err := Wrap(fmt.Errorf("query: %w", pgx.ErrNoRows), "find_user")

	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, http.StatusNotFound, appError.HTTPStatus)
}

func TestWrap_UnknownErrorBecomesInternal(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := Wrap(cause, "create_session")

	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, http.StatusInternalServerError, appError.HTTPStatus)

	// The cause is preserved for logs, never for the client
	assert.ErrorIs(t, err, cause)
}
