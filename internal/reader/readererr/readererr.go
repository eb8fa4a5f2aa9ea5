// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package readererr defines the typed error taxonomy of the reading engine and
its bridge into [apperr.AppError] HTTP responses.

Taxonomy:

  - RestrictedError: chapter is permanently gated for this viewer. Terminal.
  - EarlyAccessError: chapter unlocks at a known instant. Terminal until then.
  - NetworkError: transient transport failure. Eligible for one manual retry.
  - NotFoundError: the referenced resource does not exist. Terminal.
  - RestorationTimeoutError: deep-link scroll restoration ran out of budget.
    Non-fatal — reading continues without auto-scroll.

Access-denied errors must surface as specific, actionable messaging (which
tier unlocks the chapter, when it unlocks), never as a generic failure.
*/
package readererr

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/taibuivan/yomira-reader/internal/platform/apperr"
)

// # Access Errors

// RestrictedError reports a chapter that is never available to the viewer's
// tier. There is no point retrying; the UI should explain the required tier.
type RestrictedError struct {
	ChapterID string
}

func (e *RestrictedError) Error() string {
	return fmt.Sprintf("chapter %s is restricted to privileged viewers", e.ChapterID)
}

// EarlyAccessError reports a chapter still inside its early-access window.
// AvailableAt is when standard viewers gain access; the UI should offer a
// "remind me" affordance rather than a retry.
type EarlyAccessError struct {
	ChapterID   string
	AvailableAt time.Time
}

func (e *EarlyAccessError) Error() string {
	return fmt.Sprintf("chapter %s is in early access until %s", e.ChapterID, e.AvailableAt.Format(time.RFC3339))
}

// # Transport & Lookup Errors

// NetworkError wraps a transient transport failure. It is eligible for a
// manual retry but must never be auto-retried more than once.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// NotFoundError reports a missing comic, chapter, or progress record.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// # Restoration Errors

// RestorationTimeoutError reports that scroll restoration exhausted its time
// budget. It degrades the session (no auto-scroll) but never blocks it.
type RestorationTimeoutError struct {
	AbsolutePage int
	Elapsed      time.Duration
}

func (e *RestorationTimeoutError) Error() string {
	return fmt.Sprintf("timed out restoring scroll position to page %d after %s", e.AbsolutePage, e.Elapsed)
}

// # HTTP Bridging

// ToApp maps a reader error onto the [apperr.AppError] envelope used by all
// HTTP handlers. Unknown errors are wrapped as internal.
func ToApp(err error) *apperr.AppError {
	if err == nil {
		return nil
	}

	var restricted *RestrictedError
	if errors.As(err, &restricted) {
		return &apperr.AppError{
			Code:       "RESTRICTED",
			Message:    "This chapter is available to premium subscribers only",
			HTTPStatus: http.StatusForbidden,
			Cause:      err,
		}
	}

	var earlyAccess *EarlyAccessError
	if errors.As(err, &earlyAccess) {
		return &apperr.AppError{
			Code: "EARLY_ACCESS",
			Message: fmt.Sprintf("This chapter is in early access and unlocks at %s",
				earlyAccess.AvailableAt.Format(time.RFC3339)),
			HTTPStatus: http.StatusForbidden,
			Cause:      err,
		}
	}

	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return apperr.NotFound(notFound.Resource)
	}

	var network *NetworkError
	if errors.As(err, &network) {
		return &apperr.AppError{
			Code:       "UPSTREAM_UNAVAILABLE",
			Message:    "A dependent service did not respond. Please retry.",
			HTTPStatus: http.StatusBadGateway,
			Cause:      err,
		}
	}

	// AppErrors produced deeper in the stack pass through unchanged.
	if app := apperr.As(err); app != nil {
		return app
	}

	return apperr.Internal(err)
}

// IsTerminal reports whether the error can never succeed on retry
// (restricted, not found). Early-access errors become retryable once their
// window lapses, so they are not terminal in this sense.
func IsTerminal(err error) bool {
	var restricted *RestrictedError
	var notFound *NotFoundError
	return errors.As(err, &restricted) || errors.As(err, &notFound)
}
