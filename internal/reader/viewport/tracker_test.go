// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package viewport_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-reader/internal/reader/viewport"
)

// fakeContainer records scroll commands issued by the tracker.
type fakeContainer struct {
	mu      sync.Mutex
	offsets []float64
}

func (c *fakeContainer) ScrollTo(offset float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offsets = append(c.offsets, offset)
}

func (c *fakeContainer) scrolls() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]float64(nil), c.offsets...)
}

/*
TestTracker_CurrentPage verifies the highest-visible-page rule including the
boundary tie-break and partial batch updates.
*/
func TestTracker_CurrentPage(t *testing.T) {
	tracker := viewport.NewTracker(&fakeContainer{})
	defer tracker.Close()

	// 1. No visibility yet
	assert.Equal(t, 0, tracker.CurrentPage())

	// 2. Single visible page
	tracker.ReportVisibility([]viewport.Visibility{{Page: 3, Ratio: 0.8}})
	assert.Equal(t, 3, tracker.CurrentPage())

	// 3. Two pages visible at a boundary: the furthest-scrolled page wins
	tracker.ReportVisibility([]viewport.Visibility{{Page: 4, Ratio: 0.1}})
	assert.Equal(t, 4, tracker.CurrentPage())

	// 4. Page 4 leaves the viewport: fall back to the remaining maximum
	tracker.ReportVisibility([]viewport.Visibility{{Page: 4, Ratio: 0}})
	assert.Equal(t, 3, tracker.CurrentPage())
}

/*
TestTracker_PageChangeCallback verifies that the callback fires only on
actual current-page transitions.
*/
func TestTracker_PageChangeCallback(t *testing.T) {
	tracker := viewport.NewTracker(&fakeContainer{})
	defer tracker.Close()

	var mu sync.Mutex
	var changes []int
	tracker.OnPageChange(func(page int) {
		mu.Lock()
		changes = append(changes, page)
		mu.Unlock()
	})

	tracker.ReportVisibility([]viewport.Visibility{{Page: 1, Ratio: 1.0}})
	// Ratio change without a page change must not fire
	tracker.ReportVisibility([]viewport.Visibility{{Page: 1, Ratio: 0.5}})
	tracker.ReportVisibility([]viewport.Visibility{{Page: 2, Ratio: 0.2}})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, changes)
}

/*
TestTracker_ScrollToPage verifies the synchronous scroll primitive.
*/
func TestTracker_ScrollToPage(t *testing.T) {
	container := &fakeContainer{}
	tracker := viewport.NewTracker(container)
	defer tracker.Close()

	// 1. Unregistered page: refused
	assert.False(t, tracker.ScrollToPage(7))

	// 2. Registered page: scrolls to its offset
	tracker.RegisterPage(7, &viewport.Element{Offset: 4200, Height: 600})
	assert.True(t, tracker.ScrollToPage(7))
	assert.Equal(t, []float64{4200}, container.scrolls())

	// 3. Unregistering stops scrolling
	tracker.RegisterPage(7, nil)
	assert.False(t, tracker.ScrollToPage(7))
}

/*
TestTracker_WaitForAndScroll_AlreadyVisible verifies the fast path.
*/
func TestTracker_WaitForAndScroll_AlreadyVisible(t *testing.T) {
	container := &fakeContainer{}
	tracker := viewport.NewTracker(container)
	defer tracker.Close()

	tracker.RegisterPage(5, &viewport.Element{Offset: 3000, Height: 600})

	result := tracker.WaitForAndScroll(context.Background(), 5, time.Second)
	assert.True(t, result.Success)
	assert.Equal(t, viewport.ReasonAlreadyVisible, result.Reason)
	assert.Equal(t, []float64{3000}, container.scrolls())
}

/*
TestTracker_WaitForAndScroll_Registered verifies that a waiter parked before
registration resolves when the registration arrives within the budget.
*/
func TestTracker_WaitForAndScroll_Registered(t *testing.T) {
	container := &fakeContainer{}
	tracker := viewport.NewTracker(container)
	defer tracker.Close()

	done := make(chan viewport.Result, 1)
	go func() {
		done <- tracker.WaitForAndScroll(context.Background(), 5, 3*time.Second)
	}()

	// Give the waiter time to park, then register the page.
	time.Sleep(20 * time.Millisecond)
	tracker.RegisterPage(5, &viewport.Element{Offset: 2500, Height: 600})

	select {
	case result := <-done:
		assert.True(t, result.Success)
		assert.Equal(t, viewport.ReasonRegistered, result.Reason)
		assert.Equal(t, []float64{2500}, container.scrolls())
	case <-time.After(time.Second):
		t.Fatal("waiter did not resolve after registration")
	}
}

/*
TestTracker_WaitForAndScroll_Timeout verifies that an unresolved waiter
times out close to its budget.
*/
func TestTracker_WaitForAndScroll_Timeout(t *testing.T) {
	tracker := viewport.NewTracker(&fakeContainer{})
	defer tracker.Close()

	start := time.Now()
	result := tracker.WaitForAndScroll(context.Background(), 9, 100*time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, result.Success)
	assert.Equal(t, viewport.ReasonTimeout, result.Reason)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 250*time.Millisecond)
}

/*
TestTracker_WaitForAndScroll_Superseded verifies the single-slot rule: a
later wait for the same page cancels the earlier one.
*/
func TestTracker_WaitForAndScroll_Superseded(t *testing.T) {
	container := &fakeContainer{}
	tracker := viewport.NewTracker(container)
	defer tracker.Close()

	first := make(chan viewport.Result, 1)
	go func() {
		first <- tracker.WaitForAndScroll(context.Background(), 5, 3*time.Second)
	}()
	time.Sleep(20 * time.Millisecond)

	second := make(chan viewport.Result, 1)
	go func() {
		second <- tracker.WaitForAndScroll(context.Background(), 5, 3*time.Second)
	}()

	// 1. The first waiter resolves as cancelled once superseded
	select {
	case result := <-first:
		assert.False(t, result.Success)
		assert.Equal(t, viewport.ReasonCancelled, result.Reason)
	case <-time.After(time.Second):
		t.Fatal("superseded waiter did not resolve")
	}

	// 2. The second waiter still resolves on registration
	time.Sleep(20 * time.Millisecond)
	tracker.RegisterPage(5, &viewport.Element{Offset: 999, Height: 600})

	select {
	case result := <-second:
		assert.True(t, result.Success)
		assert.Equal(t, viewport.ReasonRegistered, result.Reason)
	case <-time.After(time.Second):
		t.Fatal("replacement waiter did not resolve")
	}
}

/*
TestTracker_WaitForAndScroll_NoContainer verifies the degraded mode without
a scroll container.
*/
func TestTracker_WaitForAndScroll_NoContainer(t *testing.T) {
	tracker := viewport.NewTracker(nil)
	defer tracker.Close()

	result := tracker.WaitForAndScroll(context.Background(), 1, time.Second)
	assert.False(t, result.Success)
	assert.Equal(t, viewport.ReasonNoContainer, result.Reason)
}

/*
TestTracker_Close_DrainsWaiters verifies that teardown resolves every parked
waiter instead of leaking it.
*/
func TestTracker_Close_DrainsWaiters(t *testing.T) {
	tracker := viewport.NewTracker(&fakeContainer{})

	results := make(chan viewport.Result, 2)
	for _, page := range []int{3, 8} {
		go func(page int) {
			results <- tracker.WaitForAndScroll(context.Background(), page, 10*time.Second)
		}(page)
	}
	time.Sleep(20 * time.Millisecond)

	tracker.Close()

	for i := 0; i < 2; i++ {
		select {
		case result := <-results:
			assert.False(t, result.Success)
			assert.Equal(t, viewport.ReasonTimeout, result.Reason)
		case <-time.After(time.Second):
			t.Fatal("waiter leaked through teardown")
		}
	}

	// Registrations after teardown are ignored.
	tracker.RegisterPage(3, &viewport.Element{Offset: 1, Height: 1})
	assert.False(t, tracker.ScrollToPage(3))
}

/*
TestTracker_RegisterPage_DuplicateNoOp verifies idempotent registration.
*/
func TestTracker_RegisterPage_DuplicateNoOp(t *testing.T) {
	container := &fakeContainer{}
	tracker := viewport.NewTracker(container)
	defer tracker.Close()

	element := &viewport.Element{Offset: 100, Height: 600}
	tracker.RegisterPage(1, element)
	tracker.RegisterPage(1, element)

	require.True(t, tracker.ScrollToPage(1))
	assert.Equal(t, []float64{100}, container.scrolls())
}
