// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package restore returns a reader session to its last saved position.

Given a saved (chapter, page-in-chapter) target, the protocol computes the
absolute page and drives the viewport's scroll primitive. When the target
chapter is already buffered the offset is computed directly; otherwise the
chapter buffer is polled on a short fixed interval under the same overall
deadline until the chapter lands. A timeout degrades to a retry affordance
instead of failing the session: reading continues, just without the
auto-scroll.
*/
package restore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/taibuivan/yomira-reader/internal/platform/constants"
	"github.com/taibuivan/yomira-reader/internal/reader/buffer"
	"github.com/taibuivan/yomira-reader/internal/reader/readererr"
	"github.com/taibuivan/yomira-reader/internal/reader/viewport"
)

// # State Machine

// State is the restoration lifecycle phase.
type State string

const (
	// StateIdle means no restoration has been requested.
	StateIdle State = "idle"
	// StatePending means the initial attempt is in flight.
	StatePending State = "pending"
	// StateResolved means the position was restored.
	StateResolved State = "resolved"
	// StateFailed means the attempt timed out; a retry is offered.
	StateFailed State = "failed"
	// StateRetrying means a manual retry is in flight.
	StateRetrying State = "retrying"
)

// errChapterNotBuffered drives the polling loop; never escapes the package.
var errChapterNotBuffered = errors.New("target chapter not buffered yet")

// # Protocol Implementation

// Protocol restores a saved reading position against a live session.
//
// The protocol never mutates the chapter buffer; it only observes it and
// drives the viewport scroll primitive.
type Protocol struct {
	buffer  *buffer.Buffer
	tracker *viewport.Tracker
	logger  *slog.Logger

	waitTimeout  time.Duration
	retryTimeout time.Duration
	pollInterval time.Duration

	mu           sync.Mutex
	state        State
	chapterID    string
	relativePage int
}

// NewProtocol constructs a restoration protocol over a session's buffer
// and viewport.
func NewProtocol(buf *buffer.Buffer, tracker *viewport.Tracker, logger *slog.Logger) *Protocol {
	return &Protocol{
		buffer:       buf,
		tracker:      tracker,
		logger:       logger,
		waitTimeout:  constants.DefaultScrollWaitTimeout,
		retryTimeout: constants.DefaultScrollRetryTimeout,
		pollInterval: constants.DefaultRestorePollInterval,
		state:        StateIdle,
	}
}

// WithTimeouts overrides the wait, retry, and poll durations. Test hook.
func (protocol *Protocol) WithTimeouts(wait time.Duration, retry time.Duration, poll time.Duration) *Protocol {
	protocol.waitTimeout = wait
	protocol.retryTimeout = retry
	protocol.pollInterval = poll
	return protocol
}

// State returns the current lifecycle phase.
func (protocol *Protocol) State() State {
	protocol.mu.Lock()
	defer protocol.mu.Unlock()
	return protocol.state
}

func (protocol *Protocol) setState(state State) {
	protocol.mu.Lock()
	protocol.state = state
	protocol.mu.Unlock()
}

/*
Restore scrolls the session to a saved (chapter, page-in-chapter) target.

Description: Runs the initial attempt under the wait timeout. If the target
chapter is buffered the absolute page is computed immediately; otherwise
the buffer is polled at the fixed interval until the chapter appears, and
the scroll runs on whatever budget remains. The target is remembered for
[Protocol.Retry].

Parameters:
  - context: context.Context
  - chapterID: string
  - relativePage: int (1-based page within the chapter)

Returns:
  - error: readererr.RestorationTimeoutError when the budget runs out
*/
func (protocol *Protocol) Restore(context context.Context, chapterID string, relativePage int) error {
	protocol.mu.Lock()
	protocol.chapterID = chapterID
	protocol.relativePage = relativePage
	protocol.state = StatePending
	protocol.mu.Unlock()

	err := protocol.attempt(context, protocol.waitTimeout)
	if err != nil {
		protocol.setState(StateFailed)
		return err
	}

	protocol.setState(StateResolved)
	return nil
}

/*
Retry reruns the last restoration target with a fresh, longer budget.

Description: Manual affordance after a failed restore. A retry with no
prior target is a no-op.

Parameters:
  - context: context.Context

Returns:
  - error: readererr.RestorationTimeoutError when the budget runs out
*/
func (protocol *Protocol) Retry(context context.Context) error {
	protocol.mu.Lock()
	if protocol.chapterID == "" {
		protocol.mu.Unlock()
		return nil
	}
	protocol.state = StateRetrying
	protocol.mu.Unlock()

	err := protocol.attempt(context, protocol.retryTimeout)
	if err != nil {
		protocol.setState(StateFailed)
		return err
	}

	protocol.setState(StateResolved)
	return nil
}

// attempt runs one restoration pass under the given overall budget.
func (protocol *Protocol) attempt(parent context.Context, budget time.Duration) error {
	start := time.Now()
	deadline, cancel := context.WithTimeout(parent, budget)
	defer cancel()

	protocol.mu.Lock()
	chapterID, relativePage := protocol.chapterID, protocol.relativePage
	protocol.mu.Unlock()

	// 1. Resolve the absolute page, polling the buffer if needed
	absolutePage, err := protocol.resolveAbsolutePage(deadline, chapterID, relativePage)
	if err != nil {
		elapsed := time.Since(start)
		protocol.logger.Warn("restore_chapter_wait_timeout",
			slog.String("chapter_id", chapterID),
			slog.Duration("elapsed", elapsed),
		)
		return &readererr.RestorationTimeoutError{AbsolutePage: 0, Elapsed: elapsed}
	}

	// 2. Scroll with whatever budget remains
	remaining := budget - time.Since(start)
	if remaining <= 0 {
		return &readererr.RestorationTimeoutError{AbsolutePage: absolutePage, Elapsed: time.Since(start)}
	}

	result := protocol.tracker.WaitForAndScroll(deadline, absolutePage, remaining)
	if !result.Success {
		elapsed := time.Since(start)
		protocol.logger.Warn("restore_scroll_failed",
			slog.Int("absolute_page", absolutePage),
			slog.String("reason", string(result.Reason)),
			slog.Duration("elapsed", elapsed),
		)
		return &readererr.RestorationTimeoutError{AbsolutePage: absolutePage, Elapsed: elapsed}
	}

	protocol.logger.Info("restore_position_resolved",
		slog.String("chapter_id", chapterID),
		slog.Int("absolute_page", absolutePage),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// resolveAbsolutePage computes the absolute page for the target, polling
// the buffer at the fixed interval until the chapter is loaded or the
// deadline expires.
func (protocol *Protocol) resolveAbsolutePage(deadline context.Context, chapterID string, relativePage int) (int, error) {

	// Fast path: chapter already buffered, page counts known
	if page, ok := protocol.buffer.AbsolutePage(chapterID, relativePage); ok {
		return page, nil
	}

	// Slow path: constant-interval poll bounded by the overall deadline
	poll := func() error {
		if protocol.buffer.Contains(chapterID) {
			return nil
		}
		return errChapterNotBuffered
	}
	policy := backoff.WithContext(backoff.NewConstantBackOff(protocol.pollInterval), deadline)
	if err := backoff.Retry(poll, policy); err != nil {
		return 0, err
	}

	page, ok := protocol.buffer.AbsolutePage(chapterID, relativePage)
	if !ok {
		return 0, errChapterNotBuffered
	}
	return page, nil
}
