// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package viewport tracks which pages of a reading session are visible and
derives the single "current page" from visibility batches.

The rendering layer owns layout and intersection measurement; it feeds this
package two signals — page geometry registrations and visibility batches —
and receives scroll commands back through the [Container] interface. The
tracker itself never measures anything.

Wait semantics: deep-link restoration needs to scroll to a page that may not
be registered yet. [Tracker.WaitForAndScroll] parks the caller until the
page's registration arrives or the budget lapses, with a single waiter slot
per page (a later wait supersedes the earlier one). Teardown drains every
parked waiter so no caller is left hanging.
*/
package viewport

import (
	"context"
	"sync"
	"time"
)

// # Rendering Contracts

// Container abstracts the scrollable viewport owned by the rendering layer.
type Container interface {
	// ScrollTo moves the viewport so the given vertical offset is at its top.
	ScrollTo(offset float64)
}

// Element is the registered geometry of one page inside the container.
type Element struct {
	// Offset is the page's top edge relative to the container top.
	Offset float64
	// Height is the rendered page height.
	Height float64
}

// Visibility is one entry of a visibility-change batch reported by the
// rendering layer's intersection measurements.
type Visibility struct {
	Page  int
	Ratio float64
}

// # Scroll Outcomes

// Reason classifies how a wait-and-scroll attempt concluded.
type Reason string

const (
	// ReasonAlreadyVisible: the page was registered before the call; the
	// scroll happened synchronously.
	ReasonAlreadyVisible Reason = "already-visible"

	// ReasonRegistered: the page registered while waiting; the scroll
	// happened on registration.
	ReasonRegistered Reason = "registered"

	// ReasonTimeout: the budget lapsed (or the tracker tore down) before
	// the page registered.
	ReasonTimeout Reason = "timeout"

	// ReasonNoContainer: no scroll container is attached; nothing to do.
	ReasonNoContainer Reason = "no-container"

	// ReasonCancelled: a later wait for the same page superseded this one,
	// or the caller's context ended.
	ReasonCancelled Reason = "cancelled"
)

// Result is the outcome of a wait-and-scroll attempt.
type Result struct {
	Success bool
	Reason  Reason
	Elapsed time.Duration
}

// waiter is the single-slot pending record for one page number.
type waiter struct {
	ch    chan Result
	timer *time.Timer
	start time.Time
}

// # Tracker

// Tracker owns the page-visibility state of one reading session.
//
// # Current Page
//
// The current page is the highest page number whose last reported
// intersection ratio is greater than zero. When two pages are visible at
// once (common at page boundaries) the furthest-scrolled page wins; this
// tie-break is deliberate, not an iteration artifact.
//
// # Concurrency
//
// All methods are safe for concurrent use. The page-change callback is
// invoked without the internal lock held.
type Tracker struct {
	mu        sync.Mutex
	container Container
	elements  map[int]Element
	visible   map[int]float64
	current   int
	waiters   map[int]*waiter
	onChange  func(page int)
	closed    bool
}

// NewTracker constructs a [Tracker] for the given container. A nil container
// is tolerated: scroll attempts then resolve with [ReasonNoContainer].
func NewTracker(container Container) *Tracker {
	return &Tracker{
		container: container,
		elements:  make(map[int]Element),
		visible:   make(map[int]float64),
		waiters:   make(map[int]*waiter),
	}
}

// OnPageChange sets the callback fired whenever the current page changes.
// Must be called before the first visibility batch arrives.
func (tracker *Tracker) OnPageChange(fn func(page int)) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	tracker.onChange = fn
}

// # Page Registration

/*
RegisterPage binds (or, with a nil element, unbinds) a page's rendered
geometry to a page number.

Description: Re-registering identical geometry is a no-op. A registration
resolves any pending waiter for that page number by performing the scroll it
was parked for.

Parameters:
  - page: int (1-based absolute page number)
  - element: *Element (nil to unregister and stop observing)
*/
func (tracker *Tracker) RegisterPage(page int, element *Element) {
	tracker.mu.Lock()

	if tracker.closed {
		tracker.mu.Unlock()
		return
	}

	// Unregister: drop geometry and visibility state for the page.
	if element == nil {
		delete(tracker.elements, page)
		delete(tracker.visible, page)
		tracker.mu.Unlock()
		return
	}

	// Duplicate registration with identical geometry is a no-op.
	if existing, ok := tracker.elements[page]; ok && existing == *element {
		tracker.mu.Unlock()
		return
	}

	tracker.elements[page] = *element

	// Resolve a parked waiter, performing the scroll it was waiting for.
	pending := tracker.waiters[page]
	if pending != nil {
		delete(tracker.waiters, page)
		pending.timer.Stop()
	}
	container := tracker.container
	tracker.mu.Unlock()

	if pending == nil {
		return
	}

	if container != nil {
		container.ScrollTo(element.Offset)
	}
	pending.resolve(Result{
		Success: true,
		Reason:  ReasonRegistered,
		Elapsed: time.Since(pending.start),
	})
}

// # Visibility Derivation

/*
ReportVisibility ingests one visibility-change batch.

Description: Ratios at or below zero remove the page from the visible set.
After applying the batch the current page is recomputed as the maximum
visible page number; the page-change callback fires when the value changed.

Parameters:
  - entries: []Visibility (Partial update — pages absent from the batch keep
    their previous ratio)
*/
func (tracker *Tracker) ReportVisibility(entries []Visibility) {
	tracker.mu.Lock()

	if tracker.closed {
		tracker.mu.Unlock()
		return
	}

	for _, entry := range entries {
		if entry.Ratio > 0 {
			tracker.visible[entry.Page] = entry.Ratio
		} else {
			delete(tracker.visible, entry.Page)
		}
	}

	// Highest visible page wins (prefer furthest-scrolled page).
	highest := 0
	for page := range tracker.visible {
		if page > highest {
			highest = page
		}
	}

	changed := highest > 0 && highest != tracker.current
	if changed {
		tracker.current = highest
	}
	callback := tracker.onChange
	tracker.mu.Unlock()

	if changed && callback != nil {
		callback(highest)
	}
}

// CurrentPage returns the current page, or 0 before any page became visible.
func (tracker *Tracker) CurrentPage() int {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	return tracker.current
}

// # Scrolling

/*
ScrollToPage synchronously scrolls to a page using already-registered geometry.

Returns:
  - bool: false when the page is not registered or no container is attached
*/
func (tracker *Tracker) ScrollToPage(page int) bool {
	tracker.mu.Lock()
	element, ok := tracker.elements[page]
	container := tracker.container
	tracker.mu.Unlock()

	if !ok || container == nil {
		return false
	}

	container.ScrollTo(element.Offset)
	return true
}

/*
WaitForAndScroll scrolls to a page, waiting for its registration if needed.

Description: Resolves immediately when the page is already registered
(ReasonAlreadyVisible) or no container exists (ReasonNoContainer). Otherwise
the call parks until the next RegisterPage for that number (ReasonRegistered),
the timeout lapses (ReasonTimeout), or the context ends (ReasonCancelled).
Only one waiter may be parked per page number — a later call supersedes the
earlier one, resolving it with ReasonCancelled.

Parameters:
  - context: context.Context (Cancellation for the calling task)
  - page: int (1-based absolute page number)
  - timeout: time.Duration

Returns:
  - Result: Outcome with elapsed wall time
*/
func (tracker *Tracker) WaitForAndScroll(context context.Context, page int, timeout time.Duration) Result {
	start := time.Now()

	tracker.mu.Lock()

	if tracker.closed {
		tracker.mu.Unlock()
		return Result{Success: false, Reason: ReasonTimeout}
	}

	// Absence of a container is not fatal to the caller.
	if tracker.container == nil {
		tracker.mu.Unlock()
		return Result{Success: false, Reason: ReasonNoContainer}
	}

	// Fast path: geometry already known.
	if element, ok := tracker.elements[page]; ok {
		container := tracker.container
		tracker.mu.Unlock()
		container.ScrollTo(element.Offset)
		return Result{Success: true, Reason: ReasonAlreadyVisible, Elapsed: time.Since(start)}
	}

	// Supersede any earlier waiter for this page.
	if previous, ok := tracker.waiters[page]; ok {
		delete(tracker.waiters, page)
		previous.timer.Stop()
		previous.resolve(Result{
			Success: false,
			Reason:  ReasonCancelled,
			Elapsed: time.Since(previous.start),
		})
	}

	pending := &waiter{
		ch:    make(chan Result, 1),
		start: start,
	}
	pending.timer = time.AfterFunc(timeout, func() {
		tracker.expireWaiter(page, pending)
	})
	tracker.waiters[page] = pending
	tracker.mu.Unlock()

	select {
	case result := <-pending.ch:
		return result
	case <-context.Done():
		tracker.mu.Lock()
		if tracker.waiters[page] == pending {
			delete(tracker.waiters, page)
		}
		tracker.mu.Unlock()
		pending.timer.Stop()
		return Result{Success: false, Reason: ReasonCancelled, Elapsed: time.Since(start)}
	}
}

// expireWaiter resolves a parked waiter with a timeout outcome, unless it was
// already resolved or superseded.
func (tracker *Tracker) expireWaiter(page int, pending *waiter) {
	tracker.mu.Lock()
	if tracker.waiters[page] != pending {
		tracker.mu.Unlock()
		return
	}
	delete(tracker.waiters, page)
	tracker.mu.Unlock()

	pending.resolve(Result{
		Success: false,
		Reason:  ReasonTimeout,
		Elapsed: time.Since(pending.start),
	})
}

// # Teardown

// Close disconnects the tracker: visibility state is dropped and every
// parked waiter resolves with ReasonTimeout so no promise is leaked.
func (tracker *Tracker) Close() {
	tracker.mu.Lock()
	if tracker.closed {
		tracker.mu.Unlock()
		return
	}
	tracker.closed = true

	drained := make([]*waiter, 0, len(tracker.waiters))
	for page, pending := range tracker.waiters {
		delete(tracker.waiters, page)
		pending.timer.Stop()
		drained = append(drained, pending)
	}
	tracker.elements = make(map[int]Element)
	tracker.visible = make(map[int]float64)
	tracker.onChange = nil
	tracker.mu.Unlock()

	for _, pending := range drained {
		pending.resolve(Result{
			Success: false,
			Reason:  ReasonTimeout,
			Elapsed: time.Since(pending.start),
		})
	}
}

// resolve delivers a result exactly once; later deliveries are dropped.
func (w *waiter) resolve(result Result) {
	select {
	case w.ch <- result:
	default:
	}
}
