// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/yomira-reader/internal/platform/sec"
	"github.com/taibuivan/yomira-reader/internal/reader/access"
)

/*
TestEvaluate_PrivilegedAlwaysAllowed verifies rule 1: a privileged viewer is
allowed through every policy shape, including permanently restricted ones.
*/
func TestEvaluate_PrivilegedAlwaysAllowed(t *testing.T) {
	now := time.Now()
	future := now.Add(48 * time.Hour)

	policies := []access.Policy{
		{},
		{RestrictedToPrivileged: true},
		{EarlyAccessWindowDays: 3, PublicAvailableAt: &future},
		{RestrictedToPrivileged: true, EarlyAccessWindowDays: 7, PublicAvailableAt: &future},
	}

	for _, policy := range policies {
		decision := access.Evaluate(policy, access.TierPrivileged, now)
		assert.True(t, decision.Allowed)
		assert.Empty(t, decision.Reason)
		assert.Nil(t, decision.AvailableAt)
	}
}

/*
TestEvaluate_RestrictedDeniesStandard verifies rule 2: restriction wins over
any timestamp state for standard viewers.
*/
func TestEvaluate_RestrictedDeniesStandard(t *testing.T) {
	now := time.Now()
	past := now.Add(-48 * time.Hour)

	// 1. Plain restricted chapter
	decision := access.Evaluate(access.Policy{RestrictedToPrivileged: true}, access.TierStandard, now)
	assert.False(t, decision.Allowed)
	assert.Equal(t, access.ReasonRestricted, decision.Reason)

	// 2. Restricted wins even when the early-access window has already lapsed
	decision = access.Evaluate(access.Policy{
		RestrictedToPrivileged: true,
		EarlyAccessWindowDays:  3,
		PublicAvailableAt:      &past,
	}, access.TierStandard, now)
	assert.False(t, decision.Allowed)
	assert.Equal(t, access.ReasonRestricted, decision.Reason)
}

/*
TestEvaluate_EarlyAccessWindow verifies rule 3 including the inclusive
boundary and the echoed availability timestamp.
*/
func TestEvaluate_EarlyAccessWindow(t *testing.T) {
	now := time.Now()
	availableAt := now.Add(2 * 24 * time.Hour)

	policy := access.Policy{EarlyAccessWindowDays: 3, PublicAvailableAt: &availableAt}

	// 1. Before the window closes: denied with the timestamp echoed back
	decision := access.Evaluate(policy, access.TierStandard, now)
	assert.False(t, decision.Allowed)
	assert.Equal(t, access.ReasonEarlyAccess, decision.Reason)
	assert.NotNil(t, decision.AvailableAt)
	assert.True(t, decision.AvailableAt.Equal(availableAt))

	// 2. Exactly at the availability instant: allowed
	decision = access.Evaluate(policy, access.TierStandard, availableAt)
	assert.True(t, decision.Allowed)

	// 3. After the instant: allowed
	decision = access.Evaluate(policy, access.TierStandard, availableAt.Add(time.Minute))
	assert.True(t, decision.Allowed)
}

/*
TestEvaluate_OpenPolicies verifies rule 4 fall-through cases.
*/
func TestEvaluate_OpenPolicies(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)

	// 1. Zero policy is public
	assert.True(t, access.Evaluate(access.Policy{}, access.TierStandard, now).Allowed)

	// 2. A window length without a timestamp cannot gate
	assert.True(t, access.Evaluate(access.Policy{EarlyAccessWindowDays: 5}, access.TierStandard, now).Allowed)

	// 3. A timestamp without a window length cannot gate
	assert.True(t, access.Evaluate(access.Policy{PublicAvailableAt: &future}, access.TierStandard, now).Allowed)
}

/*
TestTierFor verifies the role-to-tier collapse.
*/
func TestTierFor(t *testing.T) {
	assert.Equal(t, access.TierPrivileged, access.TierFor(sec.RoleAdmin))
	assert.Equal(t, access.TierPrivileged, access.TierFor(sec.RoleModerator))
	assert.Equal(t, access.TierPrivileged, access.TierFor(sec.RoleAuthor))
	assert.Equal(t, access.TierPrivileged, access.TierFor(sec.RolePremium))
	assert.Equal(t, access.TierStandard, access.TierFor(sec.RoleMember))

	// Anonymous viewers carry the zero role
	assert.Equal(t, access.TierStandard, access.TierFor(sec.UserRole("")))
}
