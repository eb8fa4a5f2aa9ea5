// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package access decides whether a viewer may fetch or display a gated chapter.

It is a pure predicate layer: role resolution and clock reading are injected
by the caller, so evaluation never performs I/O. The same rules are applied
twice in the platform — once client-side as a UX optimization (skip doomed
fetches, render actionable messaging) and once server-side in the catalog
service as the actual enforcement point.
*/
package access

import (
	"time"

	"github.com/taibuivan/yomira-reader/internal/platform/sec"
)

// # Viewer Tiers

// Tier is the collapsed viewer classification the gate operates on.
type Tier string

const (
	// TierStandard covers guests and regular members.
	TierStandard Tier = "standard"

	// TierPrivileged covers premium subscribers and staff; it bypasses all
	// access windows.
	TierPrivileged Tier = "privileged"
)

// TierFor maps an account role onto a gate tier. The zero role (anonymous
// viewer) maps to [TierStandard].
func TierFor(role sec.UserRole) Tier {
	if role.Privileged() {
		return TierPrivileged
	}
	return TierStandard
}

// # Access Policy

// Policy describes the publication window attached to a chapter.
type Policy struct {
	// RestrictedToPrivileged marks a chapter that never becomes public.
	// When set, timestamps are ignored entirely.
	RestrictedToPrivileged bool `json:"restricted_to_privileged"`

	// EarlyAccessWindowDays is the length of the privileged-only window.
	// Zero means the chapter was never gated by time.
	EarlyAccessWindowDays int `json:"early_access_window_days"`

	// PublicAvailableAt is the instant standard viewers gain access.
	// Only meaningful while EarlyAccessWindowDays > 0.
	PublicAvailableAt *time.Time `json:"public_available_at,omitempty"`
}

// # Decisions

// Reason classifies why a decision denied access.
type Reason string

const (
	// ReasonRestricted means the chapter is permanently staff/premium-only.
	ReasonRestricted Reason = "restricted"

	// ReasonEarlyAccess means the chapter is inside its early-access window.
	ReasonEarlyAccess Reason = "early-access"
)

// Decision is the derived (never stored) outcome of a gate evaluation.
type Decision struct {
	Allowed bool `json:"allowed"`

	// Reason is set only when Allowed is false.
	Reason Reason `json:"reason,omitempty"`

	// AvailableAt echoes the public availability instant for early-access
	// denials so the UI can render "unlocks at ..." messaging.
	AvailableAt *time.Time `json:"available_at,omitempty"`
}

// # Evaluation

// Evaluate applies the access rules for a chapter policy against a viewer tier.
//
// Rules, in order:
//  1. Privileged tier is always allowed, for any policy.
//  2. RestrictedToPrivileged denies standard viewers regardless of timestamps.
//  3. An early-access window with a future PublicAvailableAt denies standard
//     viewers until that instant (inclusive boundary: at the instant itself,
//     access is granted).
//  4. Everything else is allowed.
func Evaluate(policy Policy, tier Tier, now time.Time) Decision {
	if tier == TierPrivileged {
		return Decision{Allowed: true}
	}

	if policy.RestrictedToPrivileged {
		return Decision{Allowed: false, Reason: ReasonRestricted}
	}

	if policy.EarlyAccessWindowDays > 0 && policy.PublicAvailableAt != nil {
		if now.Before(*policy.PublicAvailableAt) {
			availableAt := *policy.PublicAvailableAt
			return Decision{
				Allowed:     false,
				Reason:      ReasonEarlyAccess,
				AvailableAt: &availableAt,
			}
		}
	}

	return Decision{Allowed: true}
}
