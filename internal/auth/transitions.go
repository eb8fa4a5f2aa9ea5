// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"sync"
	"time"
)

// # Authentication Transitions

// Transition records one guest-to-member authentication event: the device
// that was reading as a guest and the user it now belongs to.
type Transition struct {
	DeviceID string
	UserID   string
	At       time.Time
}

// TransitionListener consumes authentication transitions.
type TransitionListener func(context context.Context, transition Transition)

/*
TransitionBus is the in-process authentication-state event stream.

Login publishes a transition when the request carried a guest device ID;
subscribers (the progress merge) run once per event. Delivery is
asynchronous so a slow consumer never stalls the login path, and an
in-flight guard suppresses duplicate events for the same (device, user)
pair — a double-submitted login triggers the merge once.
*/
type TransitionBus struct {
	mu        sync.Mutex
	listeners []TransitionListener
	inflight  map[string]struct{}
}

// NewTransitionBus creates an empty transition bus.
func NewTransitionBus() *TransitionBus {
	return &TransitionBus{inflight: make(map[string]struct{})}
}

// Subscribe registers a listener for future transitions.
func (bus *TransitionBus) Subscribe(listener TransitionListener) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.listeners = append(bus.listeners, listener)
}

/*
Publish fans a transition out to every listener.

Description: Listeners run in one background goroutine per event, detached
from the request context so the work survives the login response. A
transition for a (device, user) pair already being delivered is dropped.

Parameters:
  - transition: Transition
*/
func (bus *TransitionBus) Publish(transition Transition) {
	key := transition.DeviceID + "|" + transition.UserID

	bus.mu.Lock()
	if _, busy := bus.inflight[key]; busy {
		bus.mu.Unlock()
		return
	}
	bus.inflight[key] = struct{}{}
	listeners := append([]TransitionListener(nil), bus.listeners...)
	bus.mu.Unlock()

	go func() {
		defer func() {
			bus.mu.Lock()
			delete(bus.inflight, key)
			bus.mu.Unlock()
		}()
		for _, listener := range listeners {
			listener(context.Background(), transition)
		}
	}()
}
